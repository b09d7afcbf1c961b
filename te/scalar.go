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
	"github.com/gx-org/backend/dtype"
	"github.com/texl-org/texl/shape"
)

// BinOp is a scalar binary operator.
type BinOp int

// Scalar binary operators.
const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinFloorDiv
	BinMod
	BinMax
	BinMin
)

// CmpOp is a scalar comparison operator.
type CmpOp int

// Scalar comparison operators.
const (
	CmpLT CmpOp = iota
	CmpLE
	CmpGT
	CmpGE
	CmpEQ
	CmpNE
)

// UnOp is a scalar unary function.
type UnOp int

// Scalar unary functions.
const (
	UnExp UnOp = iota
	UnLog
	UnErf
	UnSqrt
	UnTanh
	UnSin
	UnCos
	UnNeg
	UnFloor
	UnCeil
)

// ----------------------------------------------------------------------------
// Scalar formula nodes.
type (
	// Scalar is a node of the per-element formula of a tensor
	// expression.
	Scalar interface {
		// scalar prevents implementations outside this package.
		scalar()
	}

	// IndexVar references an iteration or reduction axis.
	IndexVar struct {
		Axis *Axis
	}

	// Const is a floating-point constant.
	Const struct {
		Value float64
		DType dtype.DataType
	}

	// IntConst is an integer constant, used in index arithmetic.
	IntConst struct {
		Value int64
	}

	// Extent is the integer length of a dimension. A symbolic
	// dimension stays symbolic until a later stage resolves it.
	Extent struct {
		Dim shape.Dim
	}

	// Elem reads one element of an input tensor.
	Elem struct {
		Input *Input
		Index []Scalar
	}

	// Binary applies a binary operator.
	Binary struct {
		Op   BinOp
		X, Y Scalar
	}

	// Compare applies a comparison operator, producing a boolean.
	Compare struct {
		Op   CmpOp
		X, Y Scalar
	}

	// Unary applies a unary function.
	Unary struct {
		Op UnOp
		X  Scalar
	}

	// Cast converts a scalar to another element type.
	Cast struct {
		X     Scalar
		DType dtype.DataType
	}

	// Select picks between two values given a boolean condition.
	Select struct {
		Cond, Then, Else Scalar
	}

	// MinValue is the lowest representable value of an element type.
	MinValue struct {
		DType dtype.DataType
	}
)

func (*IndexVar) scalar() {}
func (*Const) scalar()    {}
func (*IntConst) scalar() {}
func (*Extent) scalar()   {}
func (*Elem) scalar()     {}
func (*Binary) scalar()   {}
func (*Compare) scalar()  {}
func (*Unary) scalar()    {}
func (*Cast) scalar()     {}
func (*Select) scalar()   {}
func (*MinValue) scalar() {}

// ----------------------------------------------------------------------------
// Formula constructors.

// Idx references an axis index variable.
func Idx(a *Axis) Scalar { return &IndexVar{Axis: a} }

// Float returns a typed floating-point constant.
func Float(v float64, dt dtype.DataType) Scalar { return &Const{Value: v, DType: dt} }

// Int returns an integer constant.
func Int(v int64) Scalar { return &IntConst{Value: v} }

// Ext returns the length of a dimension as an integer scalar.
func Ext(d shape.Dim) Scalar { return &Extent{Dim: d} }

// Lowest returns the smallest representable value of an element type.
func Lowest(dt dtype.DataType) Scalar { return &MinValue{DType: dt} }

// Add returns x + y.
func Add(x, y Scalar) Scalar { return &Binary{Op: BinAdd, X: x, Y: y} }

// Sub returns x - y.
func Sub(x, y Scalar) Scalar { return &Binary{Op: BinSub, X: x, Y: y} }

// Mul returns x * y.
func Mul(x, y Scalar) Scalar { return &Binary{Op: BinMul, X: x, Y: y} }

// Div returns x / y.
func Div(x, y Scalar) Scalar { return &Binary{Op: BinDiv, X: x, Y: y} }

// FloorDiv returns x / y rounded towards negative infinity.
func FloorDiv(x, y Scalar) Scalar { return &Binary{Op: BinFloorDiv, X: x, Y: y} }

// Mod returns x modulo y.
func Mod(x, y Scalar) Scalar { return &Binary{Op: BinMod, X: x, Y: y} }

// Max returns the larger of x and y.
func Max(x, y Scalar) Scalar { return &Binary{Op: BinMax, X: x, Y: y} }

// Min returns the smaller of x and y.
func Min(x, y Scalar) Scalar { return &Binary{Op: BinMin, X: x, Y: y} }

// LT returns x < y.
func LT(x, y Scalar) Scalar { return &Compare{Op: CmpLT, X: x, Y: y} }

// LE returns x <= y.
func LE(x, y Scalar) Scalar { return &Compare{Op: CmpLE, X: x, Y: y} }

// GT returns x > y.
func GT(x, y Scalar) Scalar { return &Compare{Op: CmpGT, X: x, Y: y} }

// GE returns x >= y.
func GE(x, y Scalar) Scalar { return &Compare{Op: CmpGE, X: x, Y: y} }

// Exp returns e**x.
func Exp(x Scalar) Scalar { return &Unary{Op: UnExp, X: x} }

// Log returns the natural logarithm of x.
func Log(x Scalar) Scalar { return &Unary{Op: UnLog, X: x} }

// Erf returns the error function of x.
func Erf(x Scalar) Scalar { return &Unary{Op: UnErf, X: x} }

// Sqrt returns the square root of x.
func Sqrt(x Scalar) Scalar { return &Unary{Op: UnSqrt, X: x} }

// Tanh returns the hyperbolic tangent of x.
func Tanh(x Scalar) Scalar { return &Unary{Op: UnTanh, X: x} }

// Sin returns the sine of x.
func Sin(x Scalar) Scalar { return &Unary{Op: UnSin, X: x} }

// Cos returns the cosine of x.
func Cos(x Scalar) Scalar { return &Unary{Op: UnCos, X: x} }

// Neg returns -x.
func Neg(x Scalar) Scalar { return &Unary{Op: UnNeg, X: x} }

// Floor returns x rounded towards negative infinity.
func Floor(x Scalar) Scalar { return &Unary{Op: UnFloor, X: x} }

// Ceil returns x rounded towards positive infinity.
func Ceil(x Scalar) Scalar { return &Unary{Op: UnCeil, X: x} }

// ToDType converts x to another element type.
func ToDType(x Scalar, dt dtype.DataType) Scalar { return &Cast{X: x, DType: dt} }

// Where returns then if cond holds and otherwise els.
func Where(cond, then, els Scalar) Scalar { return &Select{Cond: cond, Then: then, Else: els} }

// ExtentProd returns the product of dimension lengths as a scalar.
// Static lengths are folded into a single constant at build time;
// symbolic lengths are carried as symbolic factors.
func ExtentProd(dims []shape.Dim) Scalar {
	static := int64(1)
	var sym Scalar
	for _, d := range dims {
		if n, ok := d.Static(); ok {
			static *= n
			continue
		}
		if sym == nil {
			sym = Ext(d)
		} else {
			sym = Mul(sym, Ext(d))
		}
	}
	if sym == nil {
		return Int(static)
	}
	if static == 1 {
		return sym
	}
	return Mul(Int(static), sym)
}
