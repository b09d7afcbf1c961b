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

// Package ir is the graph-level tensor intermediate representation.
//
// A module maps global names to functions. A function owns an arena of
// expression nodes addressed by stable identifiers; its dataflow block
// is an ordered list of bindings from local names to arena nodes, in
// single static assignment form. Expressions form a DAG: sharing a
// sub-expression is sharing its identifier.
package ir

import (
	"fmt"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/texl-org/texl/shape"
	"github.com/texl-org/texl/te"
)

// ExprID addresses an expression node in a function arena.
type ExprID int32

// InvalidExpr is the zero-value-adjacent identifier of no expression.
const InvalidExpr ExprID = -1

// ----------------------------------------------------------------------------
// Types of IR values.
type (
	// Type of an expression value.
	Type interface {
		// typ prevents implementations outside this package.
		typ()
		String() string
		Equal(Type) bool
	}

	// TensorType is the type of a (possibly rank-0) tensor value.
	TensorType struct {
		DType dtype.DataType
		Shape shape.Shape
	}

	// TupleType is the type of a fixed-arity tuple of values.
	TupleType struct {
		Fields []Type
	}
)

func (*TensorType) typ() {}
func (*TupleType) typ()  {}

// NewTensorType returns the type of a tensor given its element type and
// its shape.
func NewTensorType(dt dtype.DataType, sh shape.Shape) *TensorType {
	return &TensorType{DType: dt, Shape: sh}
}

func (t *TensorType) String() string {
	return fmt.Sprintf("%s%s", t.Shape.String(), t.DType.String())
}

// Equal reports if other is a tensor type with the same element type
// and the same shape.
func (t *TensorType) Equal(other Type) bool {
	o, ok := other.(*TensorType)
	if !ok {
		return false
	}
	return t.DType == o.DType && t.Shape.Equal(o.Shape)
}

func (t *TupleType) String() string {
	ss := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		ss[i] = f.String()
	}
	return "tuple(" + strings.Join(ss, ", ") + ")"
}

// Equal reports if other is a tuple type with pairwise equal fields.
func (t *TupleType) Equal(other Type) bool {
	o, ok := other.(*TupleType)
	if !ok || len(t.Fields) != len(o.Fields) {
		return false
	}
	for i, f := range t.Fields {
		if !f.Equal(o.Fields[i]) {
			return false
		}
	}
	return true
}

// ----------------------------------------------------------------------------
// Expression nodes.
type (
	// Expr is a node in a function arena.
	Expr interface {
		// expr prevents implementations outside this package.
		expr()
		// Type of the value computed by the node.
		Type() Type
	}

	// Var is a reference to a function parameter.
	Var struct {
		Name string
		T    Type
	}

	// Const is a scalar compile-time constant.
	Const struct {
		Value float64
		DType dtype.DataType
	}

	// Call applies a high-level operator to arguments. Its type
	// carries the result shape computed by upstream inference, which
	// legalization trusts.
	Call struct {
		Op    OpKind
		Args  []ExprID
		Attrs Attributes
		T     Type
	}

	// Tuple packs values into a fixed-arity tuple.
	Tuple struct {
		Fields []ExprID
		T      *TupleType
	}

	// TupleGet projects one field out of a tuple value.
	TupleGet struct {
		Tuple ExprID
		Index int
		T     Type
	}

	// Tensor is a tensor-expression leaf: a symbolic loop nest over
	// the elements of its arguments. Args[i] is the IR value read by
	// the i-th placeholder of the tensor expression.
	Tensor struct {
		Expr *te.TensorExpr
		Args []ExprID
		T    *TensorType
	}
)

func (*Var) expr()      {}
func (*Const) expr()    {}
func (*Call) expr()     {}
func (*Tuple) expr()    {}
func (*TupleGet) expr() {}
func (*Tensor) expr()   {}

// Type of the parameter.
func (e *Var) Type() Type { return e.T }

// Type of the constant: a rank-0 tensor.
func (e *Const) Type() Type {
	return &TensorType{DType: e.DType, Shape: shape.Shape{}}
}

// Type of the call result.
func (e *Call) Type() Type { return e.T }

// Type of the tuple.
func (e *Tuple) Type() Type { return e.T }

// Type of the projected field.
func (e *TupleGet) Type() Type { return e.T }

// Type of the tensor expression value.
func (e *Tensor) Type() Type { return e.T }

// NewTensor wraps a tensor expression into an IR node, deriving the
// node type from the expression domain.
func NewTensor(expr *te.TensorExpr, args []ExprID) *Tensor {
	return &Tensor{
		Expr: expr,
		Args: args,
		T:    &TensorType{DType: expr.DType, Shape: expr.Domain},
	}
}

// Operands returns the identifiers of the expressions a node reads.
func Operands(e Expr) []ExprID {
	switch eT := e.(type) {
	case *Call:
		return eT.Args
	case *Tuple:
		return eT.Fields
	case *TupleGet:
		return []ExprID{eT.Tuple}
	case *Tensor:
		return eT.Args
	}
	return nil
}
