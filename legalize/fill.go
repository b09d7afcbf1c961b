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
	"github.com/gx-org/backend/dtype"
	"github.com/texl-org/texl/ir"
	"github.com/texl-org/texl/te"
)

// fillValue broadcasts a rank-0 fill value over the result domain.
func fillValue(b *Builder, op ir.OpKind, value ir.ExprID, outT *ir.TensorType) (ir.ExprID, error) {
	vT, err := b.TensorArg(op, value)
	if err != nil {
		return ir.InvalidExpr, err
	}
	if vT.Shape.Rank() != 0 {
		return ir.InvalidExpr, errorf(op, "fill value of shape %s is not a scalar", vT.Shape.String())
	}
	v := te.Placeholder("value", vT.DType, vT.Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		e := v.At()
		if vT.DType != outT.DType {
			e = te.ToDType(e, outT.DType)
		}
		return e
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{v: value})
}

// checkFillDType rejects a declared element type that disagrees with
// the result type. An invalid declared type defers to the value
// argument, which fillValue casts to the result type.
func checkFillDType(op ir.OpKind, a *ir.FullAttrs, outT *ir.TensorType) error {
	if a.DType != dtype.Invalid && a.DType != outT.DType {
		return errorf(op, "declared element type %s disagrees with result type %s", a.DType.String(), outT.String())
	}
	return nil
}

func lowerFull(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpFull
	a, err := attrsAs[*ir.FullAttrs](op, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	if err := checkFillDType(op, a, outT); err != nil {
		return ir.InvalidExpr, err
	}
	return fillValue(b, op, args[0], outT)
}

func lowerFullLike(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpFullLike
	a, err := attrsAs[*ir.FullAttrs](op, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	if err := checkFillDType(op, a, outT); err != nil {
		return ir.InvalidExpr, err
	}
	return fillValue(b, op, args[1], outT)
}

// lowerConstFill builds the zeros and ones family of rules.
func lowerConstFill(op ir.OpKind, value float64) rule {
	return func(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
		outT, err := tensorResult(op, out)
		if err != nil {
			return ir.InvalidExpr, err
		}
		t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
			return te.Float(value, outT.DType)
		})
		if err != nil {
			return ir.InvalidExpr, err
		}
		return b.Tensor(op, t, nil)
	}
}
