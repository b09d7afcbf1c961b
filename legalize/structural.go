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
	"slices"

	"github.com/texl-org/texl/ir"
	"github.com/texl-org/texl/shape"
	"github.com/texl-org/texl/te"
)

// tupleFields flattens a tuple-typed argument into its constituent
// fields, emitting projections when the argument is not a literal
// tuple.
func tupleFields(b *Builder, op ir.OpKind, arg ir.ExprID) ([]ir.ExprID, []*ir.TensorType, error) {
	if tup, ok := b.Expr(arg).(*ir.Tuple); ok {
		ts, err := argTypes(b, op, tup.Fields)
		if err != nil {
			return nil, nil, err
		}
		return tup.Fields, ts, nil
	}
	tupT, ok := b.Expr(arg).Type().(*ir.TupleType)
	if !ok {
		return nil, nil, errorf(op, "argument is not a tuple but %s", b.Expr(arg).Type().String())
	}
	fields := make([]ir.ExprID, len(tupT.Fields))
	types := make([]*ir.TensorType, len(tupT.Fields))
	for i, fT := range tupT.Fields {
		t, ok := fT.(*ir.TensorType)
		if !ok {
			return nil, nil, errorf(op, "tuple field %d is not a tensor but %s", i, fT.String())
		}
		types[i] = t
		fields[i] = b.Emit(&ir.TupleGet{Tuple: arg, Index: i, T: fT})
	}
	return fields, types, nil
}

func lowerConcatenate(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpConcatenate
	a, err := attrsAs[*ir.ConcatAttrs](op, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	fields, types, err := tupleFields(b, op, args[0])
	if err != nil {
		return ir.InvalidExpr, err
	}
	if len(fields) == 0 {
		return ir.InvalidExpr, errorf(op, "concatenation of an empty tuple")
	}
	if a.Axis == nil {
		return concatFlattened(b, op, fields, types, outT)
	}
	rank := types[0].Shape.Rank()
	axis, err := normAxis(op, *a.Axis, rank)
	if err != nil {
		return ir.InvalidExpr, err
	}
	for i, t := range types {
		if t.Shape.Rank() != rank {
			return ir.InvalidExpr, errorf(op, "field %d has rank %d, want %d", i, t.Shape.Rank(), rank)
		}
		for d := range rank {
			if d == axis {
				continue
			}
			want, wantOK := types[0].Shape[d].Static()
			got, gotOK := t.Shape[d].Static()
			if wantOK && gotOK && want != got {
				return ir.InvalidExpr, errorf(op, "field %d has extent %d on axis %d, want %d", i, got, d, want)
			}
		}
	}

	ins := make([]*te.Input, len(fields))
	inputs := make(map[*te.Input]ir.ExprID, len(fields))
	for i, t := range types {
		ins[i] = te.Placeholder(fmt.Sprintf("t%d", i), t.DType, t.Shape)
		inputs[ins[i]] = fields[i]
	}
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		// Fields are selected by comparing the concatenation index
		// against the running offset of each field.
		read := func(i int, offset te.Scalar) te.Scalar {
			in := append([]te.Scalar{}, ix...)
			in[axis] = te.Sub(ix[axis], offset)
			return ins[i].At(in...)
		}
		body := read(len(fields)-1, offsetOf(types[:len(fields)-1], axis))
		for i := len(fields) - 2; i >= 0; i-- {
			offset := offsetOf(types[:i], axis)
			end := te.Add(offset, te.Ext(types[i].Shape[axis]))
			body = te.Where(te.LT(ix[axis], end), read(i, offset), body)
		}
		return body
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, inputs)
}

// offsetOf returns the summed extents of the fields before a given
// field along the concatenation axis.
func offsetOf(before []*ir.TensorType, axis int) te.Scalar {
	var total te.Scalar = te.Int(0)
	for _, t := range before {
		total = te.Add(total, te.Ext(t.Shape[axis]))
	}
	return total
}

// concatFlattened concatenates the row-major flattening of every
// field into a rank-1 result.
func concatFlattened(b *Builder, op ir.OpKind, fields []ir.ExprID, types []*ir.TensorType, outT *ir.TensorType) (ir.ExprID, error) {
	if outT.Shape.Rank() != 1 {
		return ir.InvalidExpr, errorf(op, "flattened concatenation must produce a rank-1 tensor, got %s", outT.Shape.String())
	}
	ins := make([]*te.Input, len(fields))
	inputs := make(map[*te.Input]ir.ExprID, len(fields))
	sizes := make([]int64, len(fields))
	for i, t := range types {
		n, ok := t.Shape.NumElements()
		if !ok {
			return ir.InvalidExpr, errorf(op, "flattened concatenation over symbolic shape %s", t.Shape.String())
		}
		sizes[i] = n
		ins[i] = te.Placeholder(fmt.Sprintf("t%d", i), t.DType, t.Shape)
		inputs[ins[i]] = fields[i]
	}
	ends := make([]int64, len(sizes))
	offset := int64(0)
	for i, n := range sizes {
		offset += n
		ends[i] = offset
	}
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		read := func(i int) te.Scalar {
			start := ends[i] - sizes[i]
			return ins[i].At(unravel(te.Sub(ix[0], te.Int(start)), types[i].Shape)...)
		}
		body := read(len(fields) - 1)
		for i := len(fields) - 2; i >= 0; i-- {
			body = te.Where(te.LT(ix[0], te.Int(ends[i])), read(i), body)
		}
		return body
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, inputs)
}

func lowerSplit(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpSplit
	a, err := attrsAs[*ir.SplitAttrs](op, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	outT, err := tupleResult(op, out)
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

	// Cut the axis into [start, start+extent) pieces.
	var starts []int64
	if a.Sections > 0 {
		n, ok := xT.Shape[axis].Static()
		if !ok {
			return ir.InvalidExpr, errorf(op, "equal partition of symbolic extent %s", xT.Shape[axis].String())
		}
		if n%a.Sections != 0 {
			return ir.InvalidExpr, errorf(op, "extent %d of axis %d is not divisible into %d sections", n, axis, a.Sections)
		}
		width := n / a.Sections
		for i := range a.Sections {
			starts = append(starts, i*width)
		}
	} else {
		if !slices.IsSorted(a.Indices) {
			return ir.InvalidExpr, errorf(op, "cut indices %v are not ascending", a.Indices)
		}
		starts = append([]int64{0}, a.Indices...)
	}
	if len(starts) != len(outT.Fields) {
		return ir.InvalidExpr, errorf(op, "%d pieces for a result tuple of %d fields", len(starts), len(outT.Fields))
	}

	pieces := make([]ir.ExprID, len(starts))
	for i, start := range starts {
		pieceT, ok := outT.Fields[i].(*ir.TensorType)
		if !ok {
			return ir.InvalidExpr, errorf(op, "result field %d is not a tensor but %s", i, outT.Fields[i].String())
		}
		x := te.Placeholder("x", xT.DType, xT.Shape)
		t, err := te.Compute(pieceT.DType, pieceT.Shape, func(ix []te.Scalar) te.Scalar {
			in := append([]te.Scalar{}, ix...)
			in[axis] = te.Add(ix[axis], te.Int(start))
			return x.At(in...)
		})
		if err != nil {
			return ir.InvalidExpr, err
		}
		id, err := b.EmitTensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
		if err != nil {
			return ir.InvalidExpr, err
		}
		pieces[i] = id
	}
	return b.NewExpr(&ir.Tuple{Fields: pieces, T: outT}), nil
}

func lowerStridedSlice(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpStridedSlice
	a, err := attrsAs[*ir.StridedSliceAttrs](op, attrs)
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
	listed := a.Axes
	if listed == nil {
		listed = allAxes(len(a.Begin))
	}
	if len(a.Begin) != len(listed) || len(a.End) != len(listed) {
		return ir.InvalidExpr, errorf(op, "%d begin and %d end values for %d axes", len(a.Begin), len(a.End), len(listed))
	}
	axes, err := normAxes(op, listed, rank)
	if err != nil {
		return ir.InvalidExpr, err
	}
	begin := make([]int64, rank)
	stride := make([]int64, rank)
	for i := range rank {
		stride[i] = 1
	}
	for i, ax := range axes {
		begin[ax] = a.Begin[i]
		if a.Strides != nil {
			if a.Strides[i] == 0 {
				return ir.InvalidExpr, errorf(op, "stride 0 on axis %d", ax)
			}
			stride[ax] = a.Strides[i]
		}
		if begin[ax] < 0 {
			n, ok := xT.Shape[ax].Static()
			if !ok {
				return ir.InvalidExpr, errorf(op, "negative start %d on symbolic axis %d", begin[ax], ax)
			}
			begin[ax] += n
		}
	}
	// The stop values only determine the output extents, which shape
	// inference already resolved; indexing needs starts and strides.
	x := te.Placeholder("x", xT.DType, xT.Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		in := make([]te.Scalar, rank)
		for i := range rank {
			in[i] = te.Add(te.Mul(ix[i], te.Int(stride[i])), te.Int(begin[i]))
		}
		return x.At(in...)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}

func lowerWhere(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpWhere
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	ts, err := argTypes(b, op, args)
	if err != nil {
		return ir.InvalidExpr, err
	}
	cond := te.Placeholder("cond", ts[0].DType, ts[0].Shape)
	x := te.Placeholder("x", ts[1].DType, ts[1].Shape)
	y := te.Placeholder("y", ts[2].DType, ts[2].Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		return te.Where(
			cond.At(te.BroadcastIndices(ix, ts[0].Shape, outT.Shape)...),
			x.At(te.BroadcastIndices(ix, ts[1].Shape, outT.Shape)...),
			y.At(te.BroadcastIndices(ix, ts[2].Shape, outT.Shape)...),
		)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{cond: args[0], x: args[1], y: args[2]})
}

func lowerBroadcastTo(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpBroadcastTo
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	xT, err := b.TensorArg(op, args[0])
	if err != nil {
		return ir.InvalidExpr, err
	}
	if xT.Shape.Rank() > outT.Shape.Rank() {
		return ir.InvalidExpr, errorf(op, "cannot broadcast %s to lower-rank %s", xT.Shape.String(), outT.Shape.String())
	}
	x := te.Placeholder("x", xT.DType, xT.Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		return x.At(te.BroadcastIndices(ix, xT.Shape, outT.Shape)...)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}

func lowerTake(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpTake
	a, err := attrsAs[*ir.TakeAttrs](op, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	if a.BatchDims != 0 {
		return ir.InvalidExpr, errorf(op, "batch_dims %d is not supported", a.BatchDims)
	}
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	ts, err := argTypes(b, op, args)
	if err != nil {
		return ir.InvalidExpr, err
	}
	xT, idxT := ts[0], ts[1]

	switch a.Mode {
	case "", "clip", "wrap", "fast":
	default:
		return ir.InvalidExpr, errorf(op, "unknown index mode %q", a.Mode)
	}
	// guard clamps or wraps a raw index into [0, extent).
	guard := func(i te.Scalar, extent shape.Dim) te.Scalar {
		switch a.Mode {
		case "wrap":
			return te.Mod(te.Add(te.Mod(i, te.Ext(extent)), te.Ext(extent)), te.Ext(extent))
		case "fast":
			return i
		}
		return te.Min(te.Max(i, te.Int(0)), te.Sub(te.Ext(extent), te.Int(1)))
	}

	x := te.Placeholder("x", xT.DType, xT.Shape)
	indices := te.Placeholder("indices", idxT.DType, idxT.Shape)
	var t *te.TensorExpr
	if a.Axis == nil {
		n, ok := xT.Shape.NumElements()
		if !ok {
			return ir.InvalidExpr, errorf(op, "flattened gather over symbolic shape %s", xT.Shape.String())
		}
		t, err = te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
			i := guard(indices.At(ix...), shape.Static(n))
			return x.At(unravel(i, xT.Shape)...)
		})
	} else {
		var axis int
		axis, err = normAxis(op, *a.Axis, xT.Shape.Rank())
		if err != nil {
			return ir.InvalidExpr, err
		}
		idxRank := idxT.Shape.Rank()
		t, err = te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
			i := guard(indices.At(ix[axis:axis+idxRank]...), xT.Shape[axis])
			in := make([]te.Scalar, 0, xT.Shape.Rank())
			in = append(in, ix[:axis]...)
			in = append(in, i)
			in = append(in, ix[axis+idxRank:]...)
			return x.At(in...)
		})
	}
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0], indices: args[1]})
}

// lowerTrilu keeps the upper or lower triangle of the two trailing
// axes, starting at diagonal K, and zeroes the rest.
func lowerTrilu(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpTrilu
	a, err := attrsAs[*ir.TriluAttrs](op, attrs)
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
	if rank < 2 {
		return ir.InvalidExpr, errorf(op, "input of rank %d has no matrix axes", rank)
	}
	x := te.Placeholder("x", xT.DType, xT.Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		row, col := ix[rank-2], ix[rank-1]
		diag := te.Add(row, te.Int(a.K))
		cond := te.LE(diag, col)
		if !a.Upper {
			cond = te.GE(diag, col)
		}
		return te.Where(cond, x.At(ix...), te.Float(0, outT.DType))
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}
