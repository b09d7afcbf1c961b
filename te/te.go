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

// Package te builds tensor expressions: symbolic loop nests made of an
// iteration domain and a scalar formula computing each output element,
// optionally combined over reduction axes.
package te

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/gx-org/backend/dtype"
	backendshape "github.com/gx-org/backend/shape"
	"github.com/texl-org/texl/shape"
)

// Axis is one iteration or reduction axis of a tensor expression.
// Axes are compared by identity: two axes with the same name are
// distinct index variables.
type Axis struct {
	Name   string
	Extent shape.Dim
}

// ReduceAxis returns a reduction axis spanning an extent.
func ReduceAxis(name string, extent shape.Dim) *Axis {
	return &Axis{Name: name, Extent: extent}
}

// ReduceKind is the combinator applied over reduction axes.
type ReduceKind int

// Reduction combinators.
const (
	ReduceNone ReduceKind = iota
	ReduceSum
	ReduceMax
	ReduceMin
)

// Input is a placeholder for a tensor read by a formula. The caller
// wiring a tensor expression into a larger program maps each input,
// in order of declaration, to the value it reads.
type Input struct {
	Name  string
	DType dtype.DataType
	Shape shape.Shape
}

// Placeholder declares an input tensor.
func Placeholder(name string, dt dtype.DataType, sh shape.Shape) *Input {
	return &Input{Name: name, DType: dt, Shape: sh}
}

// At reads the element of the input at an index vector.
func (in *Input) At(index ...Scalar) Scalar {
	return &Elem{Input: in, Index: index}
}

// TensorExpr is a symbolic loop nest: for every index vector of Domain,
// the element value is Body, combined with Combine over the Reduce
// axes when there are any.
//
// Invariant: the free index variables of Body are the Domain axes plus
// the Reduce axes. Compute and ComputeReduce enforce it.
type TensorExpr struct {
	DType   dtype.DataType
	Domain  shape.Shape
	Axes    []*Axis
	Body    Scalar
	Reduce  []*Axis
	Combine ReduceKind
	Inputs  []*Input
}

// Compute builds a tensor expression without reduction axes. The
// callback receives one index variable per domain axis and returns the
// formula of the element at that index vector.
func Compute(dt dtype.DataType, domain shape.Shape, f func(ix []Scalar) Scalar) (*TensorExpr, error) {
	return ComputeReduce(dt, domain, ReduceNone, nil, func(ix, _ []Scalar) Scalar {
		return f(ix)
	})
}

// ComputeReduce builds a tensor expression whose elements combine the
// formula over reduction axes. The callback receives the domain index
// variables and the reduction index variables.
func ComputeReduce(dt dtype.DataType, domain shape.Shape, combine ReduceKind, reduce []*Axis, f func(ix, r []Scalar) Scalar) (*TensorExpr, error) {
	if (combine == ReduceNone) != (len(reduce) == 0) {
		return nil, errors.Errorf("tensor expression: %d reduction axes for combinator %d", len(reduce), combine)
	}
	axes := make([]*Axis, domain.Rank())
	ix := make([]Scalar, domain.Rank())
	for i, d := range domain {
		axes[i] = &Axis{Name: fmt.Sprintf("i%d", i), Extent: d}
		ix[i] = Idx(axes[i])
	}
	r := make([]Scalar, len(reduce))
	for i, ax := range reduce {
		r[i] = Idx(ax)
	}
	t := &TensorExpr{
		DType:   dt,
		Domain:  domain.Clone(),
		Axes:    axes,
		Body:    f(ix, r),
		Reduce:  reduce,
		Combine: combine,
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// validate checks the free-variable invariant and collects the inputs
// read by the body in first-use order.
func (t *TensorExpr) validate() error {
	bound := make(map[*Axis]bool, len(t.Axes)+len(t.Reduce))
	for _, ax := range t.Axes {
		bound[ax] = true
	}
	for _, ax := range t.Reduce {
		if bound[ax] {
			return errors.Errorf("tensor expression: axis %s is both a domain and a reduction axis", ax.Name)
		}
		bound[ax] = true
	}
	t.Inputs = nil
	seen := make(map[*Input]bool)
	var walk func(s Scalar) error
	walk = func(s Scalar) error {
		switch sT := s.(type) {
		case *IndexVar:
			if !bound[sT.Axis] {
				return errors.Errorf("tensor expression: free index variable %s is not a domain or reduction axis", sT.Axis.Name)
			}
		case *Elem:
			if !seen[sT.Input] {
				seen[sT.Input] = true
				t.Inputs = append(t.Inputs, sT.Input)
			}
			if len(sT.Index) != sT.Input.Shape.Rank() {
				return errors.Errorf("tensor expression: input %s of rank %d indexed with %d indices", sT.Input.Name, sT.Input.Shape.Rank(), len(sT.Index))
			}
			for _, sub := range sT.Index {
				if err := walk(sub); err != nil {
					return err
				}
			}
		case *Binary:
			if err := walk(sT.X); err != nil {
				return err
			}
			return walk(sT.Y)
		case *Compare:
			if err := walk(sT.X); err != nil {
				return err
			}
			return walk(sT.Y)
		case *Unary:
			return walk(sT.X)
		case *Cast:
			return walk(sT.X)
		case *Select:
			if err := walk(sT.Cond); err != nil {
				return err
			}
			if err := walk(sT.Then); err != nil {
				return err
			}
			return walk(sT.Else)
		}
		return nil
	}
	return walk(t.Body)
}

// StaticShape converts the domain into a backend shape. It fails if
// any extent is symbolic.
func (t *TensorExpr) StaticShape() (*backendshape.Shape, error) {
	lengths := make([]int, t.Domain.Rank())
	for i, d := range t.Domain {
		n, ok := d.Static()
		if !ok {
			return nil, errors.Errorf("tensor expression: axis %d of domain %s is symbolic", i, t.Domain.String())
		}
		lengths[i] = int(n)
	}
	return &backendshape.Shape{DType: t.DType, AxisLengths: lengths}, nil
}

// BroadcastIndices maps an output index vector onto the indices of an
// input being broadcast against the output shape, following numpy
// alignment: the input shape is right-aligned with the output shape,
// missing leading axes are dropped, and axes statically known to have
// length 1 are pinned to index 0. Symbolic extents are never treated
// as broadcast.
func BroadcastIndices(ix []Scalar, in shape.Shape, out shape.Shape) []Scalar {
	offset := out.Rank() - in.Rank()
	index := make([]Scalar, in.Rank())
	for i, d := range in {
		if d.IsOne() && !out[offset+i].IsOne() {
			index[i] = Int(0)
		} else {
			index[i] = ix[offset+i]
		}
	}
	return index
}
