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
	"github.com/texl-org/texl/ir"
	"github.com/texl-org/texl/shape"
	"github.com/texl-org/texl/te"
)

// lowerLayerNorm normalizes over the listed axes with the mean and
// variance computed per remaining position, then applies the affine
// parameters when scaling and centering are enabled.
func lowerLayerNorm(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpLayerNorm
	a, err := attrsAs[*ir.LayerNormAttrs](op, attrs)
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
	dt := xT.DType
	rank := xT.Shape.Rank()
	axes, err := normAxes(op, a.Axis, rank)
	if err != nil {
		return ir.InvalidExpr, err
	}
	reduced := make(map[int]bool, len(axes))
	var normDims []shape.Dim
	keep := xT.Shape.Clone()
	for _, ax := range axes {
		reduced[ax] = true
		normDims = append(normDims, xT.Shape[ax])
		keep[ax] = shape.Static(1)
	}
	if err := checkReducible(op, normDims); err != nil {
		return ir.InvalidExpr, err
	}
	n := func() te.Scalar { return te.ToDType(te.ExtentProd(normDims), dt) }
	index := sumIndexer(xT.Shape, reduced, true)
	rAxes := func() []*te.Axis { return reduceAxesFor(xT.Shape, reduced) }

	// Mean over the normalized axes, kept as unit dimensions.
	x := te.Placeholder("x", dt, xT.Shape)
	meanTE, err := te.ComputeReduce(dt, keep, te.ReduceSum, rAxes(), func(ix, r []te.Scalar) te.Scalar {
		return te.Div(x.At(index(ix, r)...), n())
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	meanID, err := b.EmitTensor(op, meanTE, map[*te.Input]ir.ExprID{x: args[0]})
	if err != nil {
		return ir.InvalidExpr, err
	}

	// Biased variance.
	x2 := te.Placeholder("x", dt, xT.Shape)
	m := te.Placeholder("mean", dt, keep)
	varTE, err := te.ComputeReduce(dt, keep, te.ReduceSum, rAxes(), func(ix, r []te.Scalar) te.Scalar {
		d := te.Sub(x2.At(index(ix, r)...), m.At(ix...))
		return te.Div(te.Mul(d, d), n())
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	varID, err := b.EmitTensor(op, varTE, map[*te.Input]ir.ExprID{x2: args[0], m: meanID})
	if err != nil {
		return ir.InvalidExpr, err
	}

	normIx := func(ix []te.Scalar) []te.Scalar {
		var sel []te.Scalar
		for _, ax := range axes {
			sel = append(sel, ix[ax])
		}
		return sel
	}
	x3 := te.Placeholder("x", dt, xT.Shape)
	m2 := te.Placeholder("mean", dt, keep)
	v := te.Placeholder("var", dt, keep)
	gamma := te.Placeholder("gamma", dt, shape.Shape(normDims))
	beta := te.Placeholder("beta", dt, shape.Shape(normDims))
	inputs := map[*te.Input]ir.ExprID{x3: args[0], m2: meanID, v: varID}
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		kix := te.BroadcastIndices(ix, keep, outT.Shape)
		res := te.Div(
			te.Sub(x3.At(ix...), m2.At(kix...)),
			te.Sqrt(te.Add(v.At(kix...), te.Float(a.Epsilon, dt))))
		if a.Scale {
			res = te.Mul(res, gamma.At(normIx(ix)...))
		}
		if a.Center {
			res = te.Add(res, beta.At(normIx(ix)...))
		}
		return res
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	if a.Scale {
		inputs[gamma] = args[1]
	}
	if a.Center {
		inputs[beta] = args[2]
	}
	return b.Tensor(op, t, inputs)
}

// lowerBatchNorm applies the inference form of batch normalization,
// reading the moving statistics along the channel axis. The result
// carries the statistics through unchanged.
func lowerBatchNorm(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpBatchNorm
	a, err := attrsAs[*ir.BatchNormAttrs](op, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	outT, err := tupleResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	if len(outT.Fields) != 3 {
		return ir.InvalidExpr, errorf(op, "result tuple has %d fields, want 3", len(outT.Fields))
	}
	dataT, ok := outT.Fields[0].(*ir.TensorType)
	if !ok {
		return ir.InvalidExpr, errorf(op, "result field 0 is not a tensor but %s", outT.Fields[0].String())
	}
	xT, err := b.TensorArg(op, args[0])
	if err != nil {
		return ir.InvalidExpr, err
	}
	dt := xT.DType
	axis, err := normAxis(op, a.Axis, xT.Shape.Rank())
	if err != nil {
		return ir.InvalidExpr, err
	}
	channel := shape.Shape{xT.Shape[axis]}

	x := te.Placeholder("x", dt, xT.Shape)
	gamma := te.Placeholder("gamma", dt, channel)
	beta := te.Placeholder("beta", dt, channel)
	mean := te.Placeholder("moving_mean", dt, channel)
	variance := te.Placeholder("moving_var", dt, channel)
	inputs := map[*te.Input]ir.ExprID{x: args[0], mean: args[3], variance: args[4]}
	t, err := te.Compute(dataT.DType, dataT.Shape, func(ix []te.Scalar) te.Scalar {
		c := ix[axis]
		res := te.Div(
			te.Sub(x.At(ix...), mean.At(c)),
			te.Sqrt(te.Add(variance.At(c), te.Float(a.Epsilon, dt))))
		if a.Scale {
			res = te.Mul(res, gamma.At(c))
		}
		if a.Center {
			res = te.Add(res, beta.At(c))
		}
		return res
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	if a.Scale {
		inputs[gamma] = args[1]
	}
	if a.Center {
		inputs[beta] = args[2]
	}
	data, err := b.EmitTensor(op, t, inputs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.NewExpr(&ir.Tuple{Fields: []ir.ExprID{data, args[3], args[4]}, T: outT}), nil
}
