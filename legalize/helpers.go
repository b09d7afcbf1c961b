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

// attrsAs narrows call attributes to the record an operator expects.
func attrsAs[T ir.Attributes](op ir.OpKind, attrs ir.Attributes) (T, error) {
	t, ok := attrs.(T)
	if !ok {
		var zero T
		return zero, errorf(op, "unexpected attributes of type %T", attrs)
	}
	return t, nil
}

// tensorResult narrows the trusted result type to a tensor type.
func tensorResult(op ir.OpKind, out ir.Type) (*ir.TensorType, error) {
	t, ok := out.(*ir.TensorType)
	if !ok {
		return nil, errorf(op, "result type %s is not a tensor", out.String())
	}
	return t, nil
}

// tupleResult narrows the trusted result type to a tuple type.
func tupleResult(op ir.OpKind, out ir.Type) (*ir.TupleType, error) {
	t, ok := out.(*ir.TupleType)
	if !ok {
		return nil, errorf(op, "result type %s is not a tuple", out.String())
	}
	return t, nil
}

// normAxis resolves a possibly negative axis index on a tensor of a
// given rank. Axis a resolves to a+rank when a is negative; the
// resolved index must land in [0, rank).
func normAxis(op ir.OpKind, axis, rank int) (int, error) {
	resolved := axis
	if resolved < 0 {
		resolved += rank
	}
	if resolved < 0 || resolved >= rank {
		return 0, errorf(op, "axis %d is out of range for rank %d", axis, rank)
	}
	return resolved, nil
}

// normAxes resolves a list of axes, rejecting duplicates after
// resolution.
func normAxes(op ir.OpKind, axes []int, rank int) ([]int, error) {
	resolved := make([]int, len(axes))
	seen := make(map[int]bool, len(axes))
	for i, a := range axes {
		r, err := normAxis(op, a, rank)
		if err != nil {
			return nil, err
		}
		if seen[r] {
			return nil, errorf(op, "axis %d appears more than once after normalization", r)
		}
		seen[r] = true
		resolved[i] = r
	}
	return resolved, nil
}

// allAxes returns 0..rank-1.
func allAxes(rank int) []int {
	axes := make([]int, rank)
	for i := range axes {
		axes[i] = i
	}
	return axes
}

// checkReducible rejects reductions over axes statically known to be
// empty.
func checkReducible(op ir.OpKind, dims []shape.Dim) error {
	for _, d := range dims {
		if n, ok := d.Static(); ok && n == 0 {
			return errorf(op, "reduction over axis of extent 0")
		}
	}
	return nil
}

// reduceAxesFor allocates one te reduction axis per reduced input axis.
// The reduced set is given as resolved axis indices of the input shape.
func reduceAxesFor(in shape.Shape, reduced map[int]bool) []*te.Axis {
	var axes []*te.Axis
	for i, d := range in {
		if reduced[i] {
			axes = append(axes, te.ReduceAxis(reduceName(len(axes)), d))
		}
	}
	return axes
}

func reduceName(i int) string {
	if i == 0 {
		return "k"
	}
	return "k" + string(rune('0'+i))
}

// linearize folds an index vector over dims into a row-major linear
// offset.
func linearize(ix []te.Scalar, dims shape.Shape) te.Scalar {
	lin := ix[0]
	for i := 1; i < len(dims); i++ {
		lin = te.Add(te.Mul(lin, te.Ext(dims[i])), ix[i])
	}
	return lin
}

// unravel splits a row-major linear offset into an index vector over
// dims. Strides over symbolic dimensions stay symbolic.
func unravel(lin te.Scalar, dims shape.Shape) []te.Scalar {
	ix := make([]te.Scalar, len(dims))
	for i := range dims {
		stride := te.ExtentProd(dims[i+1:])
		ix[i] = te.Mod(te.FloorDiv(lin, stride), te.Ext(dims[i]))
	}
	if len(dims) > 0 {
		// The leading index needs no modulo: the offset is in range.
		ix[0] = te.FloorDiv(lin, te.ExtentProd(dims[1:]))
	}
	return ix
}

// argTypes returns the tensor types of every argument.
func argTypes(b *Builder, op ir.OpKind, args []ir.ExprID) ([]*ir.TensorType, error) {
	ts := make([]*ir.TensorType, len(args))
	for i, a := range args {
		t, err := b.TensorArg(op, a)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return ts, nil
}
