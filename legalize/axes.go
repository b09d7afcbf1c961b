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
	"github.com/texl-org/texl/te"
)

func lowerTranspose(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpTranspose
	a, err := attrsAs[*ir.TransposeAttrs](op, attrs)
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
	rank := xT.Shape.Rank()
	axes := a.Axes
	if axes == nil {
		// Reverse the axis order.
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		return ir.InvalidExpr, errorf(op, "permutation of %d axes on a tensor of rank %d", len(axes), rank)
	}
	perm, err := normAxes(op, axes, rank)
	if err != nil {
		return ir.InvalidExpr, err
	}
	x := te.Placeholder("x", xT.DType, xT.Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		in := make([]te.Scalar, rank)
		for i, src := range perm {
			in[src] = ix[i]
		}
		return x.At(in...)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}

// lowerExpandDims maps output axes that are not inserted unit axes,
// in order, onto the input axes.
func lowerExpandDims(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpExpandDims
	a, err := attrsAs[*ir.ExpandDimsAttrs](op, attrs)
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
	outRank := outT.Shape.Rank()
	inserted, err := normAxes(op, a.Axis, outRank)
	if err != nil {
		return ir.InvalidExpr, err
	}
	isInserted := make(map[int]bool, len(inserted))
	for _, ax := range inserted {
		isInserted[ax] = true
	}
	var dataDims []int
	for i := range outRank {
		if !isInserted[i] {
			dataDims = append(dataDims, i)
		}
	}
	if len(dataDims) != xT.Shape.Rank() {
		return ir.InvalidExpr, errorf(op, "%d non-inserted output axes for an input of rank %d", len(dataDims), xT.Shape.Rank())
	}
	x := te.Placeholder("x", xT.DType, xT.Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		in := make([]te.Scalar, len(dataDims))
		for i, dim := range dataDims {
			in[i] = ix[dim]
		}
		return x.At(in...)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}

func lowerSqueeze(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpSqueeze
	a, err := attrsAs[*ir.SqueezeAttrs](op, attrs)
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
	rank := xT.Shape.Rank()
	removed := make(map[int]bool)
	if a.Axis == nil {
		for i, d := range xT.Shape {
			if d.IsOne() {
				removed[i] = true
			}
		}
	} else {
		axes, err := normAxes(op, a.Axis, rank)
		if err != nil {
			return ir.InvalidExpr, err
		}
		for _, ax := range axes {
			if !xT.Shape[ax].IsOne() {
				return ir.InvalidExpr, errorf(op, "axis %d has extent %s, not 1", ax, xT.Shape[ax].String())
			}
			removed[ax] = true
		}
	}
	x := te.Placeholder("x", xT.DType, xT.Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		in := make([]te.Scalar, rank)
		next := 0
		for i := range rank {
			if removed[i] {
				in[i] = te.Int(0)
			} else {
				in[i] = ix[next]
				next++
			}
		}
		return x.At(in...)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}

// lowerReshape maps every output index onto its row-major linear
// offset and unravels the offset into the input shape.
func lowerReshape(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpReshape
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	xT, err := b.TensorArg(op, args[0])
	if err != nil {
		return ir.InvalidExpr, err
	}
	if outN, ok := outT.Shape.NumElements(); ok {
		if inN, inOK := xT.Shape.NumElements(); inOK && outN != inN {
			return ir.InvalidExpr, errorf(op, "cannot reshape %s into %s", xT.Shape.String(), outT.Shape.String())
		}
	}
	x := te.Placeholder("x", xT.DType, xT.Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		if xT.Shape.Rank() == 0 {
			return x.At()
		}
		var lin te.Scalar = te.Int(0)
		if outT.Shape.Rank() > 0 {
			lin = linearize(ix, outT.Shape)
		}
		return x.At(unravel(lin, xT.Shape)...)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}

// lowerFlatten reshapes to (batch, product of the remaining axes).
func lowerFlatten(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpFlatten
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	xT, err := b.TensorArg(op, args[0])
	if err != nil {
		return ir.InvalidExpr, err
	}
	if outT.Shape.Rank() != 2 || xT.Shape.Rank() < 1 {
		return ir.InvalidExpr, errorf(op, "flattening %s into %s", xT.Shape.String(), outT.Shape.String())
	}
	x := te.Placeholder("x", xT.DType, xT.Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		in := append([]te.Scalar{ix[0]}, unravel(ix[1], xT.Shape[1:])...)
		return x.At(in...)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}
