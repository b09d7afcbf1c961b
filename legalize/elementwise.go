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

// lowerBinary builds the rule of an elementwise binary operator. The
// operands broadcast against the result shape following numpy rules.
func lowerBinary(op ir.OpKind, f func(x, y te.Scalar) te.Scalar) rule {
	return func(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
		outT, err := tensorResult(op, out)
		if err != nil {
			return ir.InvalidExpr, err
		}
		ts, err := argTypes(b, op, args)
		if err != nil {
			return ir.InvalidExpr, err
		}
		x := te.Placeholder("x", ts[0].DType, ts[0].Shape)
		y := te.Placeholder("y", ts[1].DType, ts[1].Shape)
		t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
			return f(
				x.At(te.BroadcastIndices(ix, ts[0].Shape, outT.Shape)...),
				y.At(te.BroadcastIndices(ix, ts[1].Shape, outT.Shape)...),
			)
		})
		if err != nil {
			return ir.InvalidExpr, err
		}
		return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0], y: args[1]})
	}
}

// lowerUnary builds the rule of an elementwise unary operator.
func lowerUnary(op ir.OpKind, f func(x te.Scalar, dt dtype.DataType) te.Scalar) rule {
	return func(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
		outT, err := tensorResult(op, out)
		if err != nil {
			return ir.InvalidExpr, err
		}
		xT, err := b.TensorArg(op, args[0])
		if err != nil {
			return ir.InvalidExpr, err
		}
		id, _, err := unaryTensor(b, op, args[0], xT, outT, f)
		return id, err
	}
}

// unaryTensor allocates an elementwise unary tensor expression over an
// argument. It returns the arena identifier and the expression.
func unaryTensor(b *Builder, op ir.OpKind, arg ir.ExprID, xT, outT *ir.TensorType, f func(x te.Scalar, dt dtype.DataType) te.Scalar) (ir.ExprID, *te.TensorExpr, error) {
	x := te.Placeholder("x", xT.DType, xT.Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		return f(x.At(ix...), xT.DType)
	})
	if err != nil {
		return ir.InvalidExpr, nil, err
	}
	id, err := b.Tensor(op, t, map[*te.Input]ir.ExprID{x: arg})
	return id, t, err
}

func sigmoidFormula(x te.Scalar, dt dtype.DataType) te.Scalar {
	one := te.Float(1, dt)
	return te.Div(one, te.Add(one, te.Exp(te.Neg(x))))
}

func lowerCast(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	a, err := attrsAs[*ir.CastAttrs](ir.OpCast, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	return lowerUnary(ir.OpCast, func(x te.Scalar, _ dtype.DataType) te.Scalar {
		return te.ToDType(x, a.DType)
	})(b, args, attrs, out)
}
