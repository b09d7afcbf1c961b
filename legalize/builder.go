// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package legalize

import (
	"fmt"

	"github.com/texl-org/texl/ir"
	"github.com/texl-org/texl/te"
)

// Builder appends expressions to the function a rewrite is building.
// Rules use it to allocate their result and to emit intermediate
// bindings for values shared by several consumers.
type Builder struct {
	fn    *ir.Function
	fresh int
}

func newBuilder(fn *ir.Function) *Builder {
	return &Builder{fn: fn}
}

// NewExpr allocates an expression in the function arena.
func (b *Builder) NewExpr(e ir.Expr) ir.ExprID {
	return b.fn.NewExpr(e)
}

// Expr returns the node addressed by an identifier.
func (b *Builder) Expr(id ir.ExprID) ir.Expr {
	return b.fn.Expr(id)
}

// Emit allocates an expression and binds it to a fresh local name so
// that several consumers can share the value.
func (b *Builder) Emit(e ir.Expr) ir.ExprID {
	id := b.fn.NewExpr(e)
	b.fn.Bind(b.freshName(), id)
	return id
}

// Bind names an existing arena value with a fresh local name.
func (b *Builder) Bind(id ir.ExprID) {
	b.fn.Bind(b.freshName(), id)
}

func (b *Builder) freshName() string {
	name := fmt.Sprintf("lv%d", b.fresh)
	b.fresh++
	return name
}

// Tensor wraps a tensor expression into an arena node. The inputs map
// associates every placeholder the expression reads with the IR value
// it reads from.
func (b *Builder) Tensor(op ir.OpKind, t *te.TensorExpr, inputs map[*te.Input]ir.ExprID) (ir.ExprID, error) {
	args := make([]ir.ExprID, len(t.Inputs))
	for i, in := range t.Inputs {
		id, ok := inputs[in]
		if !ok {
			return ir.InvalidExpr, errorf(op, "tensor expression input %s is not mapped to a value", in.Name)
		}
		args[i] = id
	}
	return b.fn.NewExpr(ir.NewTensor(t, args)), nil
}

// EmitTensor is Tensor followed by a fresh binding.
func (b *Builder) EmitTensor(op ir.OpKind, t *te.TensorExpr, inputs map[*te.Input]ir.ExprID) (ir.ExprID, error) {
	id, err := b.Tensor(op, t, inputs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	b.fn.Bind(b.freshName(), id)
	return id, nil
}

// TensorArg returns the tensor type of a rule argument.
func (b *Builder) TensorArg(op ir.OpKind, id ir.ExprID) (*ir.TensorType, error) {
	t, ok := b.fn.Expr(id).Type().(*ir.TensorType)
	if !ok {
		return nil, errorf(op, "argument is not a tensor but %s", b.fn.Expr(id).Type().String())
	}
	return t, nil
}
