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

import (
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/texl-org/texl/shape"
	"github.com/texl-org/texl/te"
)

func float32Type(dims ...int64) *TensorType {
	return NewTensorType(dtype.Float32, shape.Of(dims...))
}

func TestTypeEqual(t *testing.T) {
	tests := []struct {
		name string
		x, y Type
		want bool
	}{
		{name: "same tensor", x: float32Type(2, 3), y: float32Type(2, 3), want: true},
		{name: "different shape", x: float32Type(2, 3), y: float32Type(3, 2), want: false},
		{name: "different dtype", x: float32Type(2), y: NewTensorType(dtype.Int32, shape.Of(2)), want: false},
		{
			name: "same tuple",
			x:    &TupleType{Fields: []Type{float32Type(2), float32Type(3)}},
			y:    &TupleType{Fields: []Type{float32Type(2), float32Type(3)}},
			want: true,
		},
		{
			name: "tuple against tensor",
			x:    &TupleType{Fields: []Type{float32Type(2)}},
			y:    float32Type(2),
			want: false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.x.Equal(test.y); got != test.want {
				t.Errorf("%s.Equal(%s) = %v, want %v", test.x.String(), test.y.String(), got, test.want)
			}
		})
	}
}

func TestNewTensorType(t *testing.T) {
	x := te.Placeholder("x", dtype.Float32, shape.Of(2, 3))
	expr, err := te.Compute(dtype.Float32, shape.Of(2, 3), func(ix []te.Scalar) te.Scalar {
		return x.At(ix...)
	})
	if err != nil {
		t.Fatal(err)
	}
	f := NewFunction("f")
	arg := f.AddParam("x", float32Type(2, 3))
	tensor := NewTensor(expr, []ExprID{arg})
	if !tensor.T.Equal(float32Type(2, 3)) {
		t.Errorf("NewTensor type = %s, want %s", tensor.T.String(), float32Type(2, 3).String())
	}
	if got := Operands(tensor); len(got) != 1 || got[0] != arg {
		t.Errorf("Operands() = %v, want [%d]", got, arg)
	}
}

func TestFunctionArena(t *testing.T) {
	f := NewFunction("f")
	x := f.AddParam("x", float32Type(2))
	if got := f.Expr(x).(*Var); got.Name != "x" {
		t.Errorf("parameter variable name = %q, want %q", got.Name, "x")
	}
	c := f.NewExpr(&Const{Value: 1, DType: dtype.Float32})
	f.Bind("c", c)
	f.SetReturn(c)
	if got, want := f.NumExprs(), 2; got != want {
		t.Errorf("NumExprs() = %d, want %d", got, want)
	}
	if got := f.Return(); got != c {
		t.Errorf("Return() = %d, want %d", got, c)
	}
}

// twoCallFunc binds a call on its parameter, then a call on that call,
// and returns the second.
func twoCallFunc(op1, op2 OpKind) *Function {
	f := NewFunction("f")
	x := f.AddParam("x", float32Type(2, 3))
	c1 := f.NewExpr(&Call{Op: op1, Args: []ExprID{x}, T: float32Type(2, 3)})
	f.Bind("a", c1)
	c2 := f.NewExpr(&Call{Op: op2, Args: []ExprID{c1}, T: float32Type(2, 3)})
	f.Bind("b", c2)
	f.SetReturn(c2)
	return f
}

func TestFunctionEqual(t *testing.T) {
	if !twoCallFunc(OpExp, OpNegative).Equal(twoCallFunc(OpExp, OpNegative)) {
		t.Errorf("structurally identical functions compare unequal")
	}
	if twoCallFunc(OpExp, OpNegative).Equal(twoCallFunc(OpLog, OpNegative)) {
		t.Errorf("functions with different operators compare equal")
	}
	other := twoCallFunc(OpExp, OpNegative)
	other.Name = "g"
	if twoCallFunc(OpExp, OpNegative).Equal(other) {
		t.Errorf("functions with different names compare equal")
	}
}

func TestFunctionEqualIgnoresArenaLayout(t *testing.T) {
	// Same dataflow, different node allocation order.
	f := NewFunction("f")
	fx := f.AddParam("x", float32Type(2))
	fc := f.NewExpr(&Call{Op: OpExp, Args: []ExprID{fx}, T: float32Type(2)})
	f.Bind("a", fc)
	f.SetReturn(fc)

	g := NewFunction("f")
	g.NewExpr(&Const{Value: 7, DType: dtype.Float32})
	gx := g.AddParam("x", float32Type(2))
	gc := g.NewExpr(&Call{Op: OpExp, Args: []ExprID{gx}, T: float32Type(2)})
	g.Bind("a", gc)
	g.SetReturn(gc)

	if !f.Equal(g) {
		t.Errorf("functions with the same dataflow compare unequal")
	}
}

func TestModuleEqual(t *testing.T) {
	mod := func(ops ...OpKind) *Module {
		m := NewModule()
		for i, op := range ops {
			f := twoCallFunc(op, OpNegative)
			f.Name = string(rune('f' + i))
			m.SetFunc(f)
		}
		return m
	}
	if !mod(OpExp, OpLog).Equal(mod(OpExp, OpLog)) {
		t.Errorf("identical modules compare unequal")
	}
	if mod(OpExp).Equal(mod(OpLog)) {
		t.Errorf("modules with different functions compare equal")
	}
	if mod(OpExp).Equal(mod(OpExp, OpLog)) {
		t.Errorf("modules with different sizes compare equal")
	}
}

func TestOpKindNames(t *testing.T) {
	for k := OpKind(1); k < OpKindCount; k++ {
		name := k.String()
		if name == "" {
			t.Errorf("operator %d has no name", k)
			continue
		}
		got, ok := OpKindFromName(name)
		if !ok || got != k {
			t.Errorf("OpKindFromName(%q) = (%v, %v), want (%v, true)", name, got, ok, k)
		}
	}
}

func TestEffectful(t *testing.T) {
	if !OpPrint.Effectful() {
		t.Errorf("print is not effectful")
	}
	for _, k := range []OpKind{OpAdd, OpMatmul, OpUnique} {
		if k.Effectful() {
			t.Errorf("%s is effectful", k.String())
		}
	}
}
