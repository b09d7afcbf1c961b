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

package te

import (
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/texl-org/texl/shape"
)

func TestCompute(t *testing.T) {
	x := Placeholder("x", dtype.Float32, shape.Of(2, 3))
	te, err := Compute(dtype.Float32, shape.Of(2, 3), func(ix []Scalar) Scalar {
		return Add(x.At(ix...), Float(1, dtype.Float32))
	})
	require.NoError(t, err)
	assert.Equal(t, shape.Of(2, 3), te.Domain)
	assert.Len(t, te.Axes, 2)
	assert.Empty(t, te.Reduce)
	assert.Equal(t, ReduceNone, te.Combine)
	require.Len(t, te.Inputs, 1)
	assert.Same(t, x, te.Inputs[0])
}

func TestComputeReduce(t *testing.T) {
	x := Placeholder("x", dtype.Float32, shape.Of(2, 3))
	k := ReduceAxis("k", shape.Static(3))
	te, err := ComputeReduce(dtype.Float32, shape.Of(2), ReduceSum, []*Axis{k}, func(ix, r []Scalar) Scalar {
		return x.At(ix[0], r[0])
	})
	require.NoError(t, err)
	assert.Equal(t, []*Axis{k}, te.Reduce)
	assert.Equal(t, ReduceSum, te.Combine)
}

func TestComputeReduceMismatch(t *testing.T) {
	k := ReduceAxis("k", shape.Static(3))
	_, err := ComputeReduce(dtype.Float32, shape.Of(2), ReduceNone, []*Axis{k}, func(ix, r []Scalar) Scalar {
		return Float(0, dtype.Float32)
	})
	assert.Error(t, err)
	_, err = ComputeReduce(dtype.Float32, shape.Of(2), ReduceSum, nil, func(ix, r []Scalar) Scalar {
		return Float(0, dtype.Float32)
	})
	assert.Error(t, err)
}

func TestComputeRejectsForeignAxis(t *testing.T) {
	foreign := ReduceAxis("k", shape.Static(5))
	_, err := Compute(dtype.Float32, shape.Of(2), func(ix []Scalar) Scalar {
		return Idx(foreign)
	})
	assert.ErrorContains(t, err, "free index variable")
}

func TestComputeRejectsRankMismatch(t *testing.T) {
	x := Placeholder("x", dtype.Float32, shape.Of(2, 3))
	_, err := Compute(dtype.Float32, shape.Of(2), func(ix []Scalar) Scalar {
		return x.At(ix[0])
	})
	assert.ErrorContains(t, err, "indexed with")
}

func TestInputsCollectedInFirstUseOrder(t *testing.T) {
	x := Placeholder("x", dtype.Float32, shape.Of(2))
	y := Placeholder("y", dtype.Float32, shape.Of(2))
	te, err := Compute(dtype.Float32, shape.Of(2), func(ix []Scalar) Scalar {
		return Add(Mul(y.At(ix...), x.At(ix...)), y.At(ix...))
	})
	require.NoError(t, err)
	require.Len(t, te.Inputs, 2)
	assert.Same(t, y, te.Inputs[0])
	assert.Same(t, x, te.Inputs[1])
}

func TestStaticShape(t *testing.T) {
	te, err := Compute(dtype.Int32, shape.Of(4, 5), func(ix []Scalar) Scalar {
		return Int(0)
	})
	require.NoError(t, err)
	sh, err := te.StaticShape()
	require.NoError(t, err)
	assert.Equal(t, dtype.Int32, sh.DType)
	assert.Equal(t, []int{4, 5}, sh.AxisLengths)

	sym, err := Compute(dtype.Int32, shape.Shape{shape.Sym("n")}, func(ix []Scalar) Scalar {
		return Int(0)
	})
	require.NoError(t, err)
	_, err = sym.StaticShape()
	assert.ErrorContains(t, err, "symbolic")
}

func TestBroadcastIndices(t *testing.T) {
	out := shape.Of(4, 5, 6)
	axes := make([]*Axis, out.Rank())
	ix := make([]Scalar, out.Rank())
	for i, d := range out {
		axes[i] = &Axis{Name: "i", Extent: d}
		ix[i] = Idx(axes[i])
	}
	tests := []struct {
		name string
		in   shape.Shape
		want []Scalar
	}{
		{name: "same shape", in: shape.Of(4, 5, 6), want: []Scalar{ix[0], ix[1], ix[2]}},
		{name: "missing leading axes", in: shape.Of(6), want: []Scalar{ix[2]}},
		{name: "unit axis pinned", in: shape.Of(4, 1, 6), want: []Scalar{ix[0], Int(0), ix[2]}},
		{name: "rank 0", in: shape.Shape{}, want: []Scalar{}},
		{name: "symbolic never broadcast", in: shape.Shape{shape.Sym("n"), shape.Static(6)}, want: []Scalar{ix[1], ix[2]}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, BroadcastIndices(ix, test.in, out))
		})
	}
}

func TestExtentProd(t *testing.T) {
	tests := []struct {
		name string
		dims []shape.Dim
		want Scalar
	}{
		{name: "empty", dims: nil, want: Int(1)},
		{name: "static", dims: []shape.Dim{shape.Static(2), shape.Static(3)}, want: Int(6)},
		{name: "symbolic", dims: []shape.Dim{shape.Sym("n")}, want: Ext(shape.Sym("n"))},
		{
			name: "mixed",
			dims: []shape.Dim{shape.Static(4), shape.Sym("n")},
			want: Mul(Int(4), Ext(shape.Sym("n"))),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, ExtentProd(test.dims))
		})
	}
}
