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
	"github.com/texl-org/texl/shape"
	"github.com/texl-org/texl/te"
)

// spatial2D normalizes the stride, padding and dilation attributes of
// a two-dimensional spatial operator.
type spatial2D struct {
	strideH, strideW     int64
	padTop, padLeft      int64
	dilationH, dilationW int64
}

func newSpatial2D(op ir.OpKind, strides, padding, dilation []int64) (*spatial2D, error) {
	s := &spatial2D{strideH: 1, strideW: 1, dilationH: 1, dilationW: 1}
	if err := s.pair(op, "strides", strides, &s.strideH, &s.strideW); err != nil {
		return nil, err
	}
	if err := s.pair(op, "dilation", dilation, &s.dilationH, &s.dilationW); err != nil {
		return nil, err
	}
	switch len(padding) {
	case 0:
	case 1:
		s.padTop, s.padLeft = padding[0], padding[0]
	case 2:
		s.padTop, s.padLeft = padding[0], padding[1]
	case 4:
		// (top, left, bottom, right): the bottom and right amounts
		// only widen the inferred output shape.
		s.padTop, s.padLeft = padding[0], padding[1]
	default:
		return nil, errorf(op, "padding %v does not describe two spatial axes", padding)
	}
	return s, nil
}

func (s *spatial2D) pair(op ir.OpKind, name string, v []int64, h, w *int64) error {
	switch len(v) {
	case 0:
	case 1:
		*h, *w = v[0], v[0]
	case 2:
		*h, *w = v[0], v[1]
	default:
		return errorf(op, "%s %v does not describe two spatial axes", name, v)
	}
	return nil
}

// at maps an output spatial position and a window position onto the
// input spatial position before padding is removed.
func (s *spatial2D) at(oy, ox, ky, kx te.Scalar) (te.Scalar, te.Scalar) {
	iy := te.Sub(te.Add(te.Mul(oy, te.Int(s.strideH)), te.Mul(ky, te.Int(s.dilationH))), te.Int(s.padTop))
	ix := te.Sub(te.Add(te.Mul(ox, te.Int(s.strideW)), te.Mul(kx, te.Int(s.dilationW))), te.Int(s.padLeft))
	return iy, ix
}

// guard replaces reads that fall into the padded border with a
// neutral element.
func guard2D(iy, ix te.Scalar, h, w shape.Dim, read, pad te.Scalar) te.Scalar {
	inside := read
	inside = te.Where(te.LT(ix, te.Ext(w)), inside, pad)
	inside = te.Where(te.GE(ix, te.Int(0)), inside, pad)
	inside = te.Where(te.LT(iy, te.Ext(h)), inside, pad)
	inside = te.Where(te.GE(iy, te.Int(0)), inside, pad)
	return inside
}

func checkLayout(op ir.OpKind, name, got, want string) error {
	if got != "" && got != want {
		return errorf(op, "%s layout %q is not supported, want %q", name, got, want)
	}
	return nil
}

// lowerConv2D expands a grouped two-dimensional convolution over NCHW
// data with an OIHW kernel.
func lowerConv2D(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpConv2D
	a, err := attrsAs[*ir.Conv2DAttrs](op, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	if err := checkLayout(op, "data", a.DataLayout, "NCHW"); err != nil {
		return ir.InvalidExpr, err
	}
	if err := checkLayout(op, "kernel", a.KernelLayout, "OIHW"); err != nil {
		return ir.InvalidExpr, err
	}
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	ts, err := argTypes(b, op, args)
	if err != nil {
		return ir.InvalidExpr, err
	}
	xT, wT := ts[0], ts[1]
	if xT.Shape.Rank() != 4 || wT.Shape.Rank() != 4 {
		return ir.InvalidExpr, errorf(op, "data %s and kernel %s must both have rank 4", xT.Shape.String(), wT.Shape.String())
	}
	s, err := newSpatial2D(op, a.Strides, a.Padding, a.Dilation)
	if err != nil {
		return ir.InvalidExpr, err
	}
	groups := int64(a.Groups)
	if groups <= 0 {
		groups = 1
	}
	inC, ok := xT.Shape[1].Static()
	if !ok && groups > 1 {
		return ir.InvalidExpr, errorf(op, "grouping over symbolic channel extent %s", xT.Shape[1].String())
	}
	if groups > 1 && inC%groups != 0 {
		return ir.InvalidExpr, errorf(op, "channel extent %d is not divisible into %d groups", inC, groups)
	}
	outC, ok := outT.Shape[1].Static()
	if !ok && groups > 1 {
		return ir.InvalidExpr, errorf(op, "grouping over symbolic output channel extent %s", outT.Shape[1].String())
	}

	dt := outT.DType
	if a.OutDType != dtype.Invalid {
		dt = a.OutDType
	}
	if err := checkReducible(op, []shape.Dim{wT.Shape[1], wT.Shape[2], wT.Shape[3]}); err != nil {
		return ir.InvalidExpr, err
	}
	x := te.Placeholder("x", xT.DType, xT.Shape)
	w := te.Placeholder("weight", wT.DType, wT.Shape)
	c := te.ReduceAxis("c", wT.Shape[1])
	ky := te.ReduceAxis("ky", wT.Shape[2])
	kx := te.ReduceAxis("kx", wT.Shape[3])
	t, err := te.ComputeReduce(dt, outT.Shape, te.ReduceSum, []*te.Axis{c, ky, kx}, func(ix, r []te.Scalar) te.Scalar {
		n, o := ix[0], ix[1]
		iy, ixw := s.at(ix[2], ix[3], r[1], r[2])
		inChannel := r[0]
		if groups > 1 {
			// Output channel o belongs to group o/(outC/groups) and
			// reads channels group*(inC/groups)+c of the data.
			group := te.FloorDiv(o, te.Int(outC/groups))
			inChannel = te.Add(te.Mul(group, te.Int(inC/groups)), r[0])
		}
		xv := x.At(n, inChannel, iy, ixw)
		if xT.DType != dt {
			xv = te.ToDType(xv, dt)
		}
		wv := w.At(o, r[0], r[1], r[2])
		if wT.DType != dt {
			wv = te.ToDType(wv, dt)
		}
		return te.Mul(guard2D(iy, ixw, xT.Shape[2], xT.Shape[3], xv, te.Float(0, dt)), wv)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0], w: args[1]})
}

// lowerMaxPool2D reduces each pooling window with a running maximum,
// reading the padded border as the lowest representable value.
func lowerMaxPool2D(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpMaxPool2D
	a, err := attrsAs[*ir.Pool2DAttrs](op, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	if err := checkLayout(op, "data", a.Layout, "NCHW"); err != nil {
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
	if xT.Shape.Rank() != 4 {
		return ir.InvalidExpr, errorf(op, "data %s must have rank 4", xT.Shape.String())
	}
	s, err := newSpatial2D(op, a.Strides, a.Padding, a.Dilation)
	if err != nil {
		return ir.InvalidExpr, err
	}
	poolH, poolW := int64(1), int64(1)
	if err := s.pair(op, "pool_size", a.PoolSize, &poolH, &poolW); err != nil {
		return ir.InvalidExpr, err
	}
	if poolH <= 0 || poolW <= 0 {
		return ir.InvalidExpr, errorf(op, "pool size %v is empty", a.PoolSize)
	}
	dt := outT.DType
	x := te.Placeholder("x", xT.DType, xT.Shape)
	ky := te.ReduceAxis("ky", shape.Static(poolH))
	kx := te.ReduceAxis("kx", shape.Static(poolW))
	t, err := te.ComputeReduce(dt, outT.Shape, te.ReduceMax, []*te.Axis{ky, kx}, func(ix, r []te.Scalar) te.Scalar {
		iy, ixw := s.at(ix[2], ix[3], r[0], r[1])
		return guard2D(iy, ixw, xT.Shape[2], xT.Shape[3], x.At(ix[0], ix[1], iy, ixw), te.Lowest(dt))
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}

// lowerAdaptiveAvgPool2D averages over evenly divided windows. Output
// sizes that do not divide the input extents are rejected.
func lowerAdaptiveAvgPool2D(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpAdaptiveAvgPool2D
	a, err := attrsAs[*ir.AdaptivePool2DAttrs](op, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	if err := checkLayout(op, "data", a.Layout, "NCHW"); err != nil {
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
	if xT.Shape.Rank() != 4 {
		return ir.InvalidExpr, errorf(op, "data %s must have rank 4", xT.Shape.String())
	}
	window := func(axis int, outSize int64) (int64, error) {
		n, ok := xT.Shape[axis].Static()
		if !ok {
			return 0, errorf(op, "adaptive pooling over symbolic extent %s", xT.Shape[axis].String())
		}
		if outSize <= 0 || n%outSize != 0 {
			return 0, errorf(op, "output size %d does not divide input extent %d", outSize, n)
		}
		return n / outSize, nil
	}
	outH, okH := outT.Shape[2].Static()
	outW, okW := outT.Shape[3].Static()
	if !okH || !okW {
		return ir.InvalidExpr, errorf(op, "adaptive pooling to symbolic shape %s", outT.Shape.String())
	}
	winH, err := window(2, outH)
	if err != nil {
		return ir.InvalidExpr, err
	}
	winW, err := window(3, outW)
	if err != nil {
		return ir.InvalidExpr, err
	}
	dt := outT.DType
	x := te.Placeholder("x", xT.DType, xT.Shape)
	ky := te.ReduceAxis("ky", shape.Static(winH))
	kx := te.ReduceAxis("kx", shape.Static(winW))
	area := te.Float(float64(winH*winW), dt)
	t, err := te.ComputeReduce(dt, outT.Shape, te.ReduceSum, []*te.Axis{ky, kx}, func(ix, r []te.Scalar) te.Scalar {
		iy := te.Add(te.Mul(ix[2], te.Int(winH)), r[0])
		ixw := te.Add(te.Mul(ix[3], te.Int(winW)), r[1])
		return te.Div(x.At(ix[0], ix[1], iy, ixw), area)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}

// lowerResize2D resamples the spatial axes with nearest-neighbor
// lookups under asymmetric coordinates.
func lowerResize2D(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpResize2D
	a, err := attrsAs[*ir.Resize2DAttrs](op, attrs)
	if err != nil {
		return ir.InvalidExpr, err
	}
	if err := checkLayout(op, "data", a.Layout, "NCHW"); err != nil {
		return ir.InvalidExpr, err
	}
	if a.Method != "" && a.Method != "nearest_neighbor" {
		return ir.InvalidExpr, errorf(op, "resampling method %q is not supported", a.Method)
	}
	if a.CoordinateMode != "" && a.CoordinateMode != "asymmetric" {
		return ir.InvalidExpr, errorf(op, "coordinate transformation %q is not supported", a.CoordinateMode)
	}
	if a.RoundingMethod != "" && a.RoundingMethod != "floor" {
		return ir.InvalidExpr, errorf(op, "rounding method %q is not supported", a.RoundingMethod)
	}
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	xT, err := b.TensorArg(op, args[0])
	if err != nil {
		return ir.InvalidExpr, err
	}
	if xT.Shape.Rank() != 4 {
		return ir.InvalidExpr, errorf(op, "data %s must have rank 4", xT.Shape.String())
	}
	outH, okH := outT.Shape[2].Static()
	outW, okW := outT.Shape[3].Static()
	if !okH || !okW {
		return ir.InvalidExpr, errorf(op, "resizing to symbolic shape %s", outT.Shape.String())
	}
	x := te.Placeholder("x", xT.DType, xT.Shape)
	t, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		// Asymmetric nearest neighbor: in = floor(out * in_extent / out_extent).
		iy := te.FloorDiv(te.Mul(ix[2], te.Ext(xT.Shape[2])), te.Int(outH))
		ixw := te.FloorDiv(te.Mul(ix[3], te.Ext(xT.Shape[3])), te.Int(outW))
		return x.At(ix[0], ix[1], iy, ixw)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0]})
}
