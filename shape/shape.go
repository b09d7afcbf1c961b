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

// Package shape represents tensor shapes whose axis lengths are either
// static integers or named symbols resolved at a later compilation stage.
package shape

import (
	"fmt"
	"strings"
)

// Dim is the length of one tensor axis. A dimension is either static,
// in which case its length is known at compile time, or symbolic, in
// which case only its name is known.
type Dim struct {
	sym string
	n   int64
}

// Static returns a dimension with a compile-time length.
func Static(n int64) Dim {
	return Dim{n: n}
}

// Sym returns a symbolic dimension identified by its name.
func Sym(name string) Dim {
	return Dim{sym: name}
}

// Static returns the length of the dimension and true if the dimension
// is static, or false if the dimension is symbolic.
func (d Dim) Static() (int64, bool) {
	return d.n, d.sym == ""
}

// Symbol returns the name of a symbolic dimension, or the empty string
// for a static dimension.
func (d Dim) Symbol() string {
	return d.sym
}

// IsOne reports if the dimension is statically known to have length 1.
// A symbolic dimension is never one: callers that use IsOne to decide
// broadcasting must treat unknown lengths as greater than one.
func (d Dim) IsOne() bool {
	n, ok := d.Static()
	return ok && n == 1
}

// Equal reports if two dimensions are the same static length or the
// same symbol.
func (d Dim) Equal(other Dim) bool {
	return d == other
}

func (d Dim) String() string {
	if d.sym != "" {
		return d.sym
	}
	return fmt.Sprint(d.n)
}

// Shape is an ordered list of axis lengths. A rank-0 shape is a scalar.
type Shape []Dim

// Of returns a static shape given its axis lengths.
func Of(dims ...int64) Shape {
	s := make(Shape, len(dims))
	for i, n := range dims {
		s[i] = Static(n)
	}
	return s
}

// Rank returns the number of axes of the shape.
func (s Shape) Rank() int {
	return len(s)
}

// Equal reports if two shapes have the same rank and pairwise equal
// dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i, d := range s {
		if !d.Equal(other[i]) {
			return false
		}
	}
	return true
}

// NumElements returns the product of all axis lengths and true if every
// dimension is static.
func (s Shape) NumElements() (int64, bool) {
	total := int64(1)
	for _, d := range s {
		n, ok := d.Static()
		if !ok {
			return 0, false
		}
		total *= n
	}
	return total, true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	return append(Shape{}, s...)
}

func (s Shape) String() string {
	ss := make([]string, len(s))
	for i, d := range s {
		ss[i] = d.String()
	}
	return "(" + strings.Join(ss, ",") + ")"
}
