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

// sumIndexer maps output index variables and reduction index variables
// onto the input axes of an axis reduction. keepDims keeps reduced
// axes in the output as unit axes.
func sumIndexer(in shape.Shape, reduced map[int]bool, keepDims bool) func(ix, r []te.Scalar) []te.Scalar {
	return func(ix, r []te.Scalar) []te.Scalar {
		index := make([]te.Scalar, in.Rank())
		nextOut, nextRed := 0, 0
		for i := range in {
			if reduced[i] {
				index[i] = r[nextRed]
				nextRed++
				if keepDims {
					nextOut++
				}
				continue
			}
			index[i] = ix[nextOut]
			nextOut++
		}
		return index
	}
}

// resolveReduceAxes normalizes the axis set of a reduction, defaulting
// to all axes.
func resolveReduceAxes(op ir.OpKind, axis []int, in shape.Shape) (map[int]bool, error) {
	if axis == nil {
		axis = allAxes(in.Rank())
	}
	resolved, err := normAxes(op, axis, in.Rank())
	if err != nil {
		return nil, err
	}
	reduced := make(map[int]bool, len(resolved))
	var dims []shape.Dim
	for _, ax := range resolved {
		reduced[ax] = true
		dims = append(dims, in[ax])
	}
	return reduced, checkReducible(op, dims)
}

// lowerReduceSum lowers an axis sum, optionally dividing every term by
// a divisor scalar (the mean rule divides by the reduced element
// count).
func lowerReduceSum(op ir.OpKind, b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type, divide bool) (ir.ExprID, error) {
	a, err := attrsAs[*ir.ReduceAttrs](op, attrs)
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
	reduced, err := resolveReduceAxes(op, a.Axis, xT.Shape)
	if err != nil {
		return ir.InvalidExpr, err
	}
	var reducedDims []shape.Dim
	for i, d := range xT.Shape {
		if reduced[i] {
			reducedDims = append(reducedDims, d)
		}
	}
	axes := reduceAxesFor(xT.Shape, reduced)
	index := sumIndexer(xT.Shape, reduced, a.KeepDims)
	x := te.Placeholder("x", xT.DType, xT.Shape)
	if len(axes) == 0 {
		// An explicit empty axis list reduces nothing.
		t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
			return x.At(ix...)
		})
		if err != nil {
			return ir.InvalidExpr, err
		}
		return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
	}
	t, err := te.ComputeReduce(outT.DType, outT.Shape, te.ReduceSum, axes, func(ix, r []te.Scalar) te.Scalar {
		v := x.At(index(ix, r)...)
		if divide {
			// The divisor is the exact product of the reduced
			// extents, folded to a constant when they are static.
			v = te.Div(v, te.ToDType(te.ExtentProd(reducedDims), outT.DType))
		}
		return v
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}

func lowerSum(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	return lowerReduceSum(ir.OpSum, b, args, attrs, out, false)
}

func lowerMean(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	return lowerReduceSum(ir.OpMean, b, args, attrs, out, true)
}

// lowerCumsum sums every element at or before the output position
// along the cumulative axis. A nil axis operates on the flattened
// tensor.
func lowerCumsum(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpCumsum
	a, err := attrsAs[*ir.CumsumAttrs](op, attrs)
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
	x := te.Placeholder("x", xT.DType, xT.Shape)
	var t *te.TensorExpr
	if a.Axis == nil {
		total, ok := xT.Shape.NumElements()
		if !ok {
			return ir.InvalidExpr, errorf(op, "flattened cumulative sum over symbolic shape %s", xT.Shape.String())
		}
		k := te.ReduceAxis("k", shape.Static(total))
		t, err = te.ComputeReduce(outT.DType, outT.Shape, te.ReduceSum, []*te.Axis{k}, func(ix, r []te.Scalar) te.Scalar {
			return te.Where(te.LE(r[0], ix[0]), x.At(unravel(r[0], xT.Shape)...), te.Float(0, outT.DType))
		})
	} else {
		var axis int
		axis, err = normAxis(op, *a.Axis, xT.Shape.Rank())
		if err != nil {
			return ir.InvalidExpr, err
		}
		k := te.ReduceAxis("k", xT.Shape[axis])
		t, err = te.ComputeReduce(outT.DType, outT.Shape, te.ReduceSum, []*te.Axis{k}, func(ix, r []te.Scalar) te.Scalar {
			in := append([]te.Scalar{}, ix...)
			in[axis] = r[0]
			return te.Where(te.LE(r[0], ix[axis]), x.At(in...), te.Float(0, outT.DType))
		})
	}
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}

// collapseSum reduces an input down to a target shape by summing over
// every axis that is missing from the target or broadcast in it.
func collapseSum(op ir.OpKind, b *Builder, arg ir.ExprID, outT *ir.TensorType) (ir.ExprID, error) {
	xT, err := b.TensorArg(op, arg)
	if err != nil {
		return ir.InvalidExpr, err
	}
	in, target := xT.Shape, outT.Shape
	offset := in.Rank() - target.Rank()
	if offset < 0 {
		return ir.InvalidExpr, errorf(op, "target shape %s has higher rank than input %s", target.String(), in.String())
	}
	reduced := make(map[int]bool)
	for i := range offset {
		reduced[i] = true
	}
	for i, d := range target {
		if d.IsOne() && !in[offset+i].IsOne() {
			reduced[offset+i] = true
		}
	}
	axes := reduceAxesFor(in, reduced)
	x := te.Placeholder("x", xT.DType, in)
	if len(axes) == 0 {
		// Nothing to collapse: the value is copied as is.
		t, err := te.Compute(outT.DType, target, func(ix []te.Scalar) te.Scalar {
			return x.At(ix...)
		})
		if err != nil {
			return ir.InvalidExpr, err
		}
		return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: arg})
	}
	t, err := te.ComputeReduce(outT.DType, target, te.ReduceSum, axes, func(ix, r []te.Scalar) te.Scalar {
		index := make([]te.Scalar, in.Rank())
		nextRed := 0
		for i := range in {
			if reduced[i] {
				index[i] = r[nextRed]
				nextRed++
				continue
			}
			index[i] = ix[i-offset]
		}
		return x.At(index...)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: arg})
}

func lowerCollapseSumTo(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	outT, err := tensorResult(ir.OpCollapseSumTo, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	return collapseSum(ir.OpCollapseSumTo, b, args[0], outT)
}

func lowerCollapseSumLike(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	outT, err := tensorResult(ir.OpCollapseSumLike, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	return collapseSum(ir.OpCollapseSumLike, b, args[0], outT)
}
