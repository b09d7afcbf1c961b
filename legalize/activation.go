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
	"math"

	"github.com/gx-org/backend/dtype"
	"github.com/texl-org/texl/ir"
	"github.com/texl-org/texl/shape"
	"github.com/texl-org/texl/te"
)

// lowerGelu expands gelu(x) = x * (0.5 + 0.5*erf(x/sqrt(2))).
func lowerGelu(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	return lowerUnary(ir.OpGelu, func(x te.Scalar, dt dtype.DataType) te.Scalar {
		half := te.Float(0.5, dt)
		return te.Mul(x, te.Add(half, te.Mul(te.Erf(te.Mul(x, te.Float(1/math.Sqrt2, dt))), half)))
	})(b, args, attrs, out)
}

// lowerSilu expands silu(x) = x * sigmoid(x). The sigmoid is emitted
// as an intermediate binding so that it is computed once.
func lowerSilu(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpSilu
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	xT, err := b.TensorArg(op, args[0])
	if err != nil {
		return ir.InvalidExpr, err
	}
	sig, sigTE, err := unaryTensor(b, op, args[0], xT, xT, sigmoidFormula)
	if err != nil {
		return ir.InvalidExpr, err
	}
	b.Bind(sig)

	x := te.Placeholder("x", xT.DType, xT.Shape)
	s := te.Placeholder("sigmoid", sigTE.DType, sigTE.Domain)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		return te.Mul(x.At(ix...), s.At(ix...))
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0], s: sig})
}

// emitSoftmax emits the max-shifted softmax of an argument along a
// resolved axis and returns the identifier of the resulting tensor.
func emitSoftmax(b *Builder, op ir.OpKind, arg ir.ExprID, xT *ir.TensorType, axis int) (ir.ExprID, error) {
	dt := xT.DType
	keep := xT.Shape.Clone()
	keep[axis] = shape.Static(1)
	if err := checkReducible(op, []shape.Dim{xT.Shape[axis]}); err != nil {
		return ir.InvalidExpr, err
	}

	// Running maximum along the axis, kept as a unit dimension.
	x := te.Placeholder("x", dt, xT.Shape)
	k := te.ReduceAxis("k", xT.Shape[axis])
	maxTE, err := te.ComputeReduce(dt, keep, te.ReduceMax, []*te.Axis{k}, func(ix, r []te.Scalar) te.Scalar {
		in := append([]te.Scalar{}, ix...)
		in[axis] = r[0]
		return x.At(in...)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	maxID, err := b.EmitTensor(op, maxTE, map[*te.Input]ir.ExprID{x: arg})
	if err != nil {
		return ir.InvalidExpr, err
	}

	// Shifted exponentials.
	x2 := te.Placeholder("x", dt, xT.Shape)
	m := te.Placeholder("max", dt, keep)
	expTE, err := te.Compute(dt, xT.Shape, func(ix []te.Scalar) te.Scalar {
		return te.Exp(te.Sub(x2.At(ix...), m.At(te.BroadcastIndices(ix, keep, xT.Shape)...)))
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	expID, err := b.EmitTensor(op, expTE, map[*te.Input]ir.ExprID{x2: arg, m: maxID})
	if err != nil {
		return ir.InvalidExpr, err
	}

	// Normalization term.
	e := te.Placeholder("exp", dt, xT.Shape)
	k2 := te.ReduceAxis("k", xT.Shape[axis])
	sumTE, err := te.ComputeReduce(dt, keep, te.ReduceSum, []*te.Axis{k2}, func(ix, r []te.Scalar) te.Scalar {
		in := append([]te.Scalar{}, ix...)
		in[axis] = r[0]
		return e.At(in...)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	sumID, err := b.EmitTensor(op, sumTE, map[*te.Input]ir.ExprID{e: expID})
	if err != nil {
		return ir.InvalidExpr, err
	}

	e2 := te.Placeholder("exp", dt, xT.Shape)
	s := te.Placeholder("sum", dt, keep)
	outTE, err := te.Compute(dt, xT.Shape, func(ix []te.Scalar) te.Scalar {
		return te.Div(e2.At(ix...), s.At(te.BroadcastIndices(ix, keep, xT.Shape)...))
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, outTE, map[*te.Input]ir.ExprID{e2: expID, s: sumID})
}

func lowerSoftmax(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpSoftmax
	a, err := attrsAs[*ir.SoftmaxAttrs](op, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	xT, err := b.TensorArg(op, args[0])
	if err != nil {
		return ir.InvalidExpr, err
	}
	axis, err := normAxis(op, a.Axis, xT.Shape.Rank())
	if err != nil {
		return ir.InvalidExpr, err
	}
	if !outT.Shape.Equal(xT.Shape) {
		return ir.InvalidExpr, errorf(op, "result shape %s differs from input shape %s", outT.Shape.String(), xT.Shape.String())
	}
	return emitSoftmax(b, op, args[0], xT, axis)
}
