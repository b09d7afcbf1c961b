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

package ir

import "github.com/gx-org/backend/dtype"

// Attributes is the operator-specific record of compile-time-constant
// parameters attached to a call. Attributes are read-only: rules only
// consult them.
type Attributes interface {
	// attrs prevents implementations outside this package.
	attrs()
}

// SliceMode selects the meaning of the stop value of a strided slice.
type SliceMode int

const (
	// SliceModeEnd interprets the stop value as an end index.
	SliceModeEnd SliceMode = iota
	// SliceModeSize interprets the stop value as a length, with a
	// negative value meaning "to the end of the axis".
	SliceModeSize
)

type (
	// CastAttrs parameterize an element type conversion.
	CastAttrs struct {
		DType dtype.DataType
	}

	// TransposeAttrs hold the axis permutation. A nil Axes reverses
	// the axis order.
	TransposeAttrs struct {
		Axes []int
	}

	// ExpandDimsAttrs hold the output positions of inserted unit axes.
	ExpandDimsAttrs struct {
		Axis []int
	}

	// SqueezeAttrs hold the axes to remove. A nil Axis removes every
	// static unit axis.
	SqueezeAttrs struct {
		Axis []int
	}

	// ReduceAttrs parameterize sum and mean. A nil Axis reduces over
	// all axes. KeepDims keeps reduced axes as unit axes.
	ReduceAttrs struct {
		Axis     []int
		KeepDims bool
	}

	// CumsumAttrs hold the cumulative axis. A nil Axis operates on
	// the flattened tensor.
	CumsumAttrs struct {
		Axis *int
	}

	// ConcatAttrs hold the concatenation axis. A nil Axis
	// concatenates the flattened fields.
	ConcatAttrs struct {
		Axis *int
	}

	// SplitAttrs partition an axis. Either Sections is the number of
	// equal parts, or Indices is an ascending list of cut positions.
	SplitAttrs struct {
		Sections int64
		Indices  []int64
		Axis     int
	}

	// StridedSliceAttrs select a strided region per listed axis. The
	// stop values (End, read per SliceMode) only determine the result
	// extents, which arrive resolved on the call type; indexing uses
	// Begin and Strides alone.
	StridedSliceAttrs struct {
		Axes      []int
		Begin     []int64
		End       []int64
		Strides   []int64
		SliceMode SliceMode
	}

	// TakeAttrs parameterize indexed gather. A nil Axis gathers from
	// the flattened tensor.
	TakeAttrs struct {
		Axis      *int
		BatchDims int
		Mode      string
	}

	// TriluAttrs select the upper or lower triangle starting at
	// diagonal K.
	TriluAttrs struct {
		K     int64
		Upper bool
	}

	// MatmulAttrs hold the optional accumulation type. An invalid
	// OutDType accumulates in the operand type.
	MatmulAttrs struct {
		OutDType dtype.DataType
	}

	// SoftmaxAttrs hold the normalization axis.
	SoftmaxAttrs struct {
		Axis int
	}

	// LayerNormAttrs parameterize layer normalization.
	LayerNormAttrs struct {
		Axis    []int
		Epsilon float64
		Center  bool
		Scale   bool
	}

	// BatchNormAttrs parameterize batch normalization over moving
	// statistics.
	BatchNormAttrs struct {
		Axis    int
		Epsilon float64
		Center  bool
		Scale   bool
	}

	// FullAttrs hold the declared element type of a constant-filled
	// tensor. A valid DType must agree with the result type; an
	// invalid one defers to the type of the value argument.
	FullAttrs struct {
		DType dtype.DataType
	}

	// Conv2DAttrs parameterize a 2-D convolution.
	Conv2DAttrs struct {
		Strides      []int64
		Padding      []int64
		Dilation     []int64
		Groups       int
		DataLayout   string
		KernelLayout string
		OutDType     dtype.DataType
	}

	// Pool2DAttrs parameterize a 2-D pooling window. CeilMode only
	// widens the result extents, which arrive resolved on the call
	// type; a window reaching past the input edge reads the padded
	// border, which max pooling fills with the lowest representable
	// value.
	Pool2DAttrs struct {
		PoolSize []int64
		Strides  []int64
		Padding  []int64
		Dilation []int64
		CeilMode bool
		Layout   string
	}

	// AdaptivePool2DAttrs hold the target spatial size.
	AdaptivePool2DAttrs struct {
		OutputSize []int64
		Layout     string
	}

	// Resize2DAttrs parameterize 2-D image resizing.
	Resize2DAttrs struct {
		Size           []int64
		Layout         string
		Method         string
		CoordinateMode string
		RoundingMethod string
	}
)

func (*CastAttrs) attrs()           {}
func (*TransposeAttrs) attrs()      {}
func (*ExpandDimsAttrs) attrs()     {}
func (*SqueezeAttrs) attrs()        {}
func (*ReduceAttrs) attrs()         {}
func (*CumsumAttrs) attrs()         {}
func (*ConcatAttrs) attrs()         {}
func (*SplitAttrs) attrs()          {}
func (*StridedSliceAttrs) attrs()   {}
func (*TakeAttrs) attrs()           {}
func (*TriluAttrs) attrs()          {}
func (*MatmulAttrs) attrs()         {}
func (*SoftmaxAttrs) attrs()        {}
func (*LayerNormAttrs) attrs()      {}
func (*BatchNormAttrs) attrs()      {}
func (*FullAttrs) attrs()           {}
func (*Conv2DAttrs) attrs()         {}
func (*Pool2DAttrs) attrs()         {}
func (*AdaptivePool2DAttrs) attrs() {}
func (*Resize2DAttrs) attrs()       {}
