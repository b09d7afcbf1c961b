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
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/texl-org/texl/ir"
	"github.com/texl-org/texl/shape"
	"github.com/texl-org/texl/te"
)

func tensorType(dims ...int64) *ir.TensorType {
	return ir.NewTensorType(dtype.Float32, shape.Of(dims...))
}

func intPtr(v int) *int { return &v }

// callModule builds a module with a single function binding one call on
// its parameters and returning the result.
func callModule(op ir.OpKind, attrs ir.Attributes, out ir.Type, params ...ir.Type) *ir.Module {
	fn := ir.NewFunction("main")
	args := make([]ir.ExprID, len(params))
	for i, p := range params {
		args[i] = fn.AddParam(fmt.Sprintf("p%d", i), p)
	}
	call := fn.NewExpr(&ir.Call{Op: op, Args: args, Attrs: attrs, T: out})
	fn.Bind("y", call)
	fn.SetReturn(call)
	mod := ir.NewModule()
	mod.SetFunc(fn)
	return mod
}

func mainFunc(t *testing.T, res *Result) *ir.Function {
	t.Helper()
	fn, ok := res.Module.Func("main")
	if !ok {
		t.Fatal("function main is missing from the result")
	}
	return fn
}

// remainingCalls counts the call nodes reachable from the bindings and
// the return value of a function.
func remainingCalls(fn *ir.Function) int {
	seen := make(map[ir.ExprID]bool)
	count := 0
	var walk func(id ir.ExprID)
	walk = func(id ir.ExprID) {
		if seen[id] {
			return
		}
		seen[id] = true
		if _, ok := fn.Expr(id).(*ir.Call); ok {
			count++
		}
		for _, op := range ir.Operands(fn.Expr(id)) {
			walk(op)
		}
	}
	for _, b := range fn.Bindings {
		walk(b.Value)
	}
	if ret := fn.Return(); ret != ir.InvalidExpr {
		walk(ret)
	}
	return count
}

func legalized(t *testing.T, mod *ir.Module) *Result {
	t.Helper()
	res, err := Apply(mod)
	if err != nil {
		t.Fatalf("Apply: %+v", err)
	}
	return res
}

func TestResultTypesMatchCallTypes(t *testing.T) {
	tests := []struct {
		name   string
		mod    *ir.Module
		out    ir.Type
		reduce int
	}{
		{
			name: "add broadcast",
			mod:  callModule(ir.OpAdd, nil, tensorType(2, 4, 3), tensorType(2, 1, 3), tensorType(4, 3)),
			out:  tensorType(2, 4, 3),
		},
		{
			name: "relu",
			mod:  callModule(ir.OpRelu, nil, tensorType(5), tensorType(5)),
			out:  tensorType(5),
		},
		{
			name: "gelu",
			mod:  callModule(ir.OpGelu, nil, tensorType(2, 2), tensorType(2, 2)),
			out:  tensorType(2, 2),
		},
		{
			name: "softmax",
			mod:  callModule(ir.OpSoftmax, &ir.SoftmaxAttrs{Axis: -1}, tensorType(2, 3), tensorType(2, 3)),
			out:  tensorType(2, 3),
		},
		{
			name: "transpose reversed",
			mod:  callModule(ir.OpTranspose, &ir.TransposeAttrs{}, tensorType(4, 3, 2), tensorType(2, 3, 4)),
			out:  tensorType(4, 3, 2),
		},
		{
			name: "reshape",
			mod:  callModule(ir.OpReshape, nil, tensorType(6, 4), tensorType(2, 3, 4)),
			out:  tensorType(6, 4),
		},
		{
			name:   "sum one axis",
			mod:    callModule(ir.OpSum, &ir.ReduceAttrs{Axis: []int{1}}, tensorType(2, 4), tensorType(2, 3, 4)),
			out:    tensorType(2, 4),
			reduce: 1,
		},
		{
			name: "squeeze",
			mod:  callModule(ir.OpSqueeze, &ir.SqueezeAttrs{}, tensorType(2, 3), tensorType(1, 2, 1, 3)),
			out:  tensorType(2, 3),
		},
		{
			name: "broadcast_to",
			mod:  callModule(ir.OpBroadcastTo, nil, tensorType(4, 2, 3), tensorType(1, 3)),
			out:  tensorType(4, 2, 3),
		},
		{
			name: "where",
			mod: callModule(ir.OpWhere, nil, tensorType(2, 3),
				ir.NewTensorType(dtype.Bool, shape.Of(2, 3)), tensorType(2, 3), tensorType(3)),
			out: tensorType(2, 3),
		},
		{
			name: "trilu",
			mod:  callModule(ir.OpTrilu, &ir.TriluAttrs{K: 1, Upper: true}, tensorType(4, 4), tensorType(4, 4)),
			out:  tensorType(4, 4),
		},
		{
			name: "take",
			mod: callModule(ir.OpTake, &ir.TakeAttrs{Axis: intPtr(0)}, tensorType(5, 3),
				tensorType(4, 3), ir.NewTensorType(dtype.Int64, shape.Of(5))),
			out: tensorType(5, 3),
		},
		{
			name: "take flattened",
			mod: callModule(ir.OpTake, &ir.TakeAttrs{}, tensorType(4),
				tensorType(2, 3), ir.NewTensorType(dtype.Int64, shape.Of(4))),
			out: tensorType(4),
		},
		{
			name: "expand_dims",
			mod:  callModule(ir.OpExpandDims, &ir.ExpandDimsAttrs{Axis: []int{0, -1}}, tensorType(1, 2, 3, 1), tensorType(2, 3)),
			out:  tensorType(1, 2, 3, 1),
		},
		{
			name:   "cumsum",
			mod:    callModule(ir.OpCumsum, &ir.CumsumAttrs{Axis: intPtr(1)}, tensorType(2, 3), tensorType(2, 3)),
			out:    tensorType(2, 3),
			reduce: 1,
		},
		{
			name:   "cumsum flattened",
			mod:    callModule(ir.OpCumsum, &ir.CumsumAttrs{}, tensorType(6), tensorType(2, 3)),
			out:    tensorType(6),
			reduce: 1,
		},
		{
			name:   "collapse_sum_to",
			mod:    callModule(ir.OpCollapseSumTo, nil, tensorType(3, 1), tensorType(2, 3, 4)),
			out:    tensorType(3, 1),
			reduce: 2,
		},
		{
			name: "collapse_sum_like identity",
			mod:  callModule(ir.OpCollapseSumLike, nil, tensorType(2, 3), tensorType(2, 3), tensorType(2, 3)),
			out:  tensorType(2, 3),
		},
		{
			name: "strided_slice",
			mod: callModule(ir.OpStridedSlice,
				&ir.StridedSliceAttrs{Axes: []int{0}, Begin: []int64{1}, End: []int64{5}, Strides: []int64{2}},
				tensorType(2, 3), tensorType(6, 3)),
			out: tensorType(2, 3),
		},
		{
			name: "layer_norm",
			mod: callModule(ir.OpLayerNorm,
				&ir.LayerNormAttrs{Axis: []int{-1}, Epsilon: 1e-5, Center: true, Scale: true},
				tensorType(2, 3, 4), tensorType(2, 3, 4), tensorType(4), tensorType(4)),
			out: tensorType(2, 3, 4),
		},
		{
			name:   "cross_entropy",
			mod:    callModule(ir.OpCrossEntropy, nil, tensorType(), tensorType(3, 5), tensorType(3, 5)),
			out:    tensorType(),
			reduce: 2,
		},
		{
			name:   "softmax_cross_entropy",
			mod:    callModule(ir.OpSoftmaxCrossEntropy, nil, tensorType(), tensorType(3, 5), tensorType(3, 5)),
			out:    tensorType(),
			reduce: 2,
		},
		{
			name: "full",
			mod:  callModule(ir.OpFull, &ir.FullAttrs{}, tensorType(2, 3), tensorType()),
			out:  tensorType(2, 3),
		},
		{
			name: "full_like",
			mod:  callModule(ir.OpFullLike, &ir.FullAttrs{DType: dtype.Float32}, tensorType(2, 3), tensorType(2, 3), tensorType()),
			out:  tensorType(2, 3),
		},
		{
			name:   "adaptive_avg_pool2d",
			mod:    callModule(ir.OpAdaptiveAvgPool2D, &ir.AdaptivePool2DAttrs{OutputSize: []int64{3, 3}}, tensorType(1, 3, 3, 3), tensorType(1, 3, 6, 6)),
			out:    tensorType(1, 3, 3, 3),
			reduce: 2,
		},
		{
			name:   "conv2d",
			mod:    callModule(ir.OpConv2D, &ir.Conv2DAttrs{Strides: []int64{1, 1}, Padding: []int64{1, 1}}, tensorType(1, 8, 6, 6), tensorType(1, 3, 6, 6), tensorType(8, 3, 3, 3)),
			out:    tensorType(1, 8, 6, 6),
			reduce: 3,
		},
		{
			name:   "max_pool2d",
			mod:    callModule(ir.OpMaxPool2D, &ir.Pool2DAttrs{PoolSize: []int64{2, 2}, Strides: []int64{2, 2}}, tensorType(1, 3, 2, 2), tensorType(1, 3, 4, 4)),
			out:    tensorType(1, 3, 2, 2),
			reduce: 2,
		},
		{
			name: "resize2d",
			mod:  callModule(ir.OpResize2D, &ir.Resize2DAttrs{Size: []int64{8, 8}}, tensorType(1, 3, 8, 8), tensorType(1, 3, 4, 4)),
			out:  tensorType(1, 3, 8, 8),
		},
		{
			name: "zeros",
			mod:  callModule(ir.OpZeros, nil, tensorType(2, 3)),
			out:  tensorType(2, 3),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := legalized(t, test.mod)
			fn := mainFunc(t, res)
			if n := remainingCalls(fn); n != 0 {
				t.Errorf("%d call nodes left after legalization", n)
			}
			if len(res.Unhandled) != 0 {
				t.Errorf("unexpected diagnostics: %v", res.Unhandled)
			}
			ret := fn.Expr(fn.Return())
			tensor, ok := ret.(*ir.Tensor)
			if !ok {
				t.Fatalf("return value is %T, want *ir.Tensor", ret)
			}
			if !tensor.T.Equal(test.out) {
				t.Errorf("result type = %s, want %s", tensor.T.String(), test.out.String())
			}
			if got := len(tensor.Expr.Reduce); got != test.reduce {
				t.Errorf("%d reduction axes, want %d", got, test.reduce)
			}
		})
	}
}

func TestIdempotent(t *testing.T) {
	mods := []*ir.Module{
		callModule(ir.OpSilu, nil, tensorType(2, 3), tensorType(2, 3)),
		callModule(ir.OpSoftmax, &ir.SoftmaxAttrs{Axis: 1}, tensorType(2, 3), tensorType(2, 3)),
		callModule(ir.OpMatmul, &ir.MatmulAttrs{}, tensorType(2, 4), tensorType(2, 3), tensorType(3, 4)),
		callModule(ir.OpUnique, nil, tensorType(4), tensorType(4)),
	}
	for _, mod := range mods {
		once := legalized(t, mod)
		twice := legalized(t, once.Module)
		if !once.Module.Equal(twice.Module) {
			t.Errorf("legalizing a legalized module changed it")
		}
	}
}

func TestNegativeAxesNormalize(t *testing.T) {
	pos := legalized(t, callModule(ir.OpSum, &ir.ReduceAttrs{Axis: []int{1}}, tensorType(2), tensorType(2, 3)))
	neg := legalized(t, callModule(ir.OpSum, &ir.ReduceAttrs{Axis: []int{-1}}, tensorType(2), tensorType(2, 3)))
	if !pos.Module.Equal(neg.Module) {
		t.Errorf("sum over axis -1 differs from sum over axis 1")
	}
}

func TestMatmul(t *testing.T) {
	tests := []struct {
		name    string
		a, b    *ir.TensorType
		out     *ir.TensorType
		kExtent int64
	}{
		{name: "matrix matrix", a: tensorType(2, 3), b: tensorType(3, 4), out: tensorType(2, 4), kExtent: 3},
		{name: "vector promoted row", a: tensorType(3), b: tensorType(3, 4), out: tensorType(4), kExtent: 3},
		{name: "vector promoted column", a: tensorType(2, 3), b: tensorType(3), out: tensorType(2), kExtent: 3},
		{name: "vector vector", a: tensorType(3), b: tensorType(3), out: tensorType(), kExtent: 3},
		{
			name: "broadcast batches",
			a:    tensorType(5, 1, 2, 3), b: tensorType(1, 6, 3, 4),
			out: tensorType(5, 6, 2, 4), kExtent: 3,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mod := callModule(ir.OpMatmul, &ir.MatmulAttrs{}, test.out, test.a, test.b)
			res := legalized(t, mod)
			fn := mainFunc(t, res)
			tensor, ok := fn.Expr(fn.Return()).(*ir.Tensor)
			if !ok {
				t.Fatalf("return value is %T, want *ir.Tensor", fn.Expr(fn.Return()))
			}
			if !tensor.Expr.Domain.Equal(test.out.Shape) {
				t.Errorf("domain = %s, want %s", tensor.Expr.Domain.String(), test.out.Shape.String())
			}
			if len(tensor.Expr.Reduce) != 1 {
				t.Fatalf("%d reduction axes, want 1", len(tensor.Expr.Reduce))
			}
			if n, ok := tensor.Expr.Reduce[0].Extent.Static(); !ok || n != test.kExtent {
				t.Errorf("reduction extent = %s, want %d", tensor.Expr.Reduce[0].Extent.String(), test.kExtent)
			}
			if tensor.Expr.Combine != te.ReduceSum {
				t.Errorf("combinator = %d, want sum", tensor.Expr.Combine)
			}
		})
	}
}

func TestMatmulContractionMismatch(t *testing.T) {
	mod := callModule(ir.OpMatmul, &ir.MatmulAttrs{}, tensorType(2, 5), tensorType(2, 3), tensorType(4, 5))
	_, err := Apply(mod)
	var lerr *LegalizationError
	if !errors.As(err, &lerr) || lerr.Op != ir.OpMatmul {
		t.Fatalf("Apply error = %v, want a matmul legalization error", err)
	}
}

// tupleCallModule binds the parameters into a tuple before applying the
// operator to it.
func tupleCallModule(op ir.OpKind, attrs ir.Attributes, out ir.Type, params ...*ir.TensorType) *ir.Module {
	fn := ir.NewFunction("main")
	fields := make([]ir.ExprID, len(params))
	types := make([]ir.Type, len(params))
	for i, p := range params {
		fields[i] = fn.AddParam(fmt.Sprintf("p%d", i), p)
		types[i] = p
	}
	tup := fn.NewExpr(&ir.Tuple{Fields: fields, T: &ir.TupleType{Fields: types}})
	fn.Bind("args", tup)
	call := fn.NewExpr(&ir.Call{Op: op, Args: []ir.ExprID{tup}, Attrs: attrs, T: out})
	fn.Bind("y", call)
	fn.SetReturn(call)
	mod := ir.NewModule()
	mod.SetFunc(fn)
	return mod
}

func TestConcatenate(t *testing.T) {
	out := tensorType(1, 9, 3)
	mod := tupleCallModule(ir.OpConcatenate, &ir.ConcatAttrs{Axis: intPtr(1)}, out,
		tensorType(1, 2, 3), tensorType(1, 3, 3), tensorType(1, 4, 3))
	res := legalized(t, mod)
	fn := mainFunc(t, res)
	tensor, ok := fn.Expr(fn.Return()).(*ir.Tensor)
	if !ok {
		t.Fatalf("return value is %T, want *ir.Tensor", fn.Expr(fn.Return()))
	}
	if !tensor.T.Equal(out) {
		t.Errorf("result type = %s, want %s", tensor.T.String(), out.String())
	}
	if got, want := len(tensor.Args), 3; got != want {
		t.Errorf("concatenation reads %d values, want %d", got, want)
	}
}

func TestConcatenateExtentMismatch(t *testing.T) {
	mod := tupleCallModule(ir.OpConcatenate, &ir.ConcatAttrs{Axis: intPtr(1)}, tensorType(3, 5, 3),
		tensorType(1, 2, 3), tensorType(2, 3, 3))
	_, err := Apply(mod)
	var lerr *LegalizationError
	if !errors.As(err, &lerr) || lerr.Op != ir.OpConcatenate {
		t.Fatalf("Apply error = %v, want a concatenate legalization error", err)
	}
}

func TestSplit(t *testing.T) {
	fields := make([]ir.Type, 5)
	for i := range fields {
		fields[i] = tensorType(2, 4)
	}
	out := &ir.TupleType{Fields: fields}
	mod := callModule(ir.OpSplit, &ir.SplitAttrs{Sections: 5, Axis: 0}, out, tensorType(10, 4))
	res := legalized(t, mod)
	fn := mainFunc(t, res)
	tup, ok := fn.Expr(fn.Return()).(*ir.Tuple)
	if !ok {
		t.Fatalf("return value is %T, want *ir.Tuple", fn.Expr(fn.Return()))
	}
	if len(tup.Fields) != 5 {
		t.Fatalf("%d pieces, want 5", len(tup.Fields))
	}
	for i, id := range tup.Fields {
		piece, ok := fn.Expr(id).(*ir.Tensor)
		if !ok {
			t.Fatalf("piece %d is %T, want *ir.Tensor", i, fn.Expr(id))
		}
		if !piece.T.Equal(tensorType(2, 4)) {
			t.Errorf("piece %d type = %s, want %s", i, piece.T.String(), tensorType(2, 4).String())
		}
	}
}

func TestSplitNonDivisible(t *testing.T) {
	out := &ir.TupleType{Fields: []ir.Type{tensorType(4, 4), tensorType(3, 4), tensorType(3, 4)}}
	mod := callModule(ir.OpSplit, &ir.SplitAttrs{Sections: 3, Axis: 0}, out, tensorType(10, 4))
	_, err := Apply(mod)
	var lerr *LegalizationError
	if !errors.As(err, &lerr) || lerr.Op != ir.OpSplit {
		t.Fatalf("Apply error = %v, want a split legalization error", err)
	}
}

func TestSplitByIndices(t *testing.T) {
	out := &ir.TupleType{Fields: []ir.Type{tensorType(3, 4), tensorType(4, 4), tensorType(3, 4)}}
	mod := callModule(ir.OpSplit, &ir.SplitAttrs{Indices: []int64{3, 7}, Axis: 0}, out, tensorType(10, 4))
	res := legalized(t, mod)
	fn := mainFunc(t, res)
	if _, ok := fn.Expr(fn.Return()).(*ir.Tuple); !ok {
		t.Fatalf("return value is %T, want *ir.Tuple", fn.Expr(fn.Return()))
	}
}

func TestBatchNormInference(t *testing.T) {
	stat := tensorType(3)
	out := &ir.TupleType{Fields: []ir.Type{tensorType(2, 3), stat, stat}}
	mod := callModule(ir.OpBatchNorm,
		&ir.BatchNormAttrs{Axis: 1, Epsilon: 1e-5, Center: true, Scale: true}, out,
		tensorType(2, 3), stat, stat, stat, stat)
	res := legalized(t, mod)
	fn := mainFunc(t, res)
	tup, ok := fn.Expr(fn.Return()).(*ir.Tuple)
	if !ok {
		t.Fatalf("return value is %T, want *ir.Tuple", fn.Expr(fn.Return()))
	}
	if len(tup.Fields) != 3 {
		t.Fatalf("%d result fields, want 3", len(tup.Fields))
	}
	data, ok := fn.Expr(tup.Fields[0]).(*ir.Tensor)
	if !ok {
		t.Fatalf("data field is %T, want *ir.Tensor", fn.Expr(tup.Fields[0]))
	}
	if !data.T.Equal(tensorType(2, 3)) {
		t.Errorf("data type = %s, want %s", data.T.String(), tensorType(2, 3).String())
	}
	for i, id := range tup.Fields[1:] {
		if _, ok := fn.Expr(id).(*ir.Var); !ok {
			t.Errorf("moving statistic %d is %T, want the parameter passed through", i, fn.Expr(id))
		}
	}
}

func TestAdaptiveAvgPoolNonDivisible(t *testing.T) {
	mod := callModule(ir.OpAdaptiveAvgPool2D, &ir.AdaptivePool2DAttrs{OutputSize: []int64{3, 3}},
		tensorType(1, 3, 3, 3), tensorType(1, 3, 7, 7))
	_, err := Apply(mod)
	var lerr *LegalizationError
	if !errors.As(err, &lerr) || lerr.Op != ir.OpAdaptiveAvgPool2D {
		t.Fatalf("Apply error = %v, want an adaptive pool legalization error", err)
	}
}

func TestTakeUnknownMode(t *testing.T) {
	mod := callModule(ir.OpTake, &ir.TakeAttrs{Axis: intPtr(0), Mode: "strict"}, tensorType(5, 3),
		tensorType(4, 3), ir.NewTensorType(dtype.Int64, shape.Of(5)))
	_, err := Apply(mod)
	var lerr *LegalizationError
	if !errors.As(err, &lerr) || lerr.Op != ir.OpTake {
		t.Fatalf("Apply error = %v, want a take legalization error", err)
	}
}

func TestFullDeclaredTypeMismatch(t *testing.T) {
	mod := callModule(ir.OpFull, &ir.FullAttrs{DType: dtype.Float64}, tensorType(2, 2), tensorType())
	_, err := Apply(mod)
	var lerr *LegalizationError
	if !errors.As(err, &lerr) || lerr.Op != ir.OpFull {
		t.Fatalf("Apply error = %v, want a fill legalization error", err)
	}
}

func TestMeanDividesByElementCount(t *testing.T) {
	mod := callModule(ir.OpMean, &ir.ReduceAttrs{}, tensorType(), tensorType(2, 3, 4))
	res := legalized(t, mod)
	fn := mainFunc(t, res)
	tensor, ok := fn.Expr(fn.Return()).(*ir.Tensor)
	if !ok {
		t.Fatalf("return value is %T, want *ir.Tensor", fn.Expr(fn.Return()))
	}
	if got := tensor.Expr.Domain.Rank(); got != 0 {
		t.Fatalf("domain rank = %d, want 0", got)
	}
	div, ok := tensor.Expr.Body.(*te.Binary)
	if !ok || div.Op != te.BinDiv {
		t.Fatalf("body is not a division: %#v", tensor.Expr.Body)
	}
	cast, ok := div.Y.(*te.Cast)
	if !ok {
		t.Fatalf("divisor is %T, want a cast of the element count", div.Y)
	}
	n, ok := cast.X.(*te.IntConst)
	if !ok || n.Value != 24 {
		t.Errorf("divisor = %#v, want the constant 24", cast.X)
	}
}

func TestTransposeDuplicateAxes(t *testing.T) {
	mod := callModule(ir.OpTranspose, &ir.TransposeAttrs{Axes: []int{0, -2}}, tensorType(3, 2), tensorType(2, 3))
	_, err := Apply(mod)
	var lerr *LegalizationError
	if !errors.As(err, &lerr) || lerr.Op != ir.OpTranspose {
		t.Fatalf("Apply error = %v, want a transpose legalization error", err)
	}
}

func TestUnhandledOperatorPassesThrough(t *testing.T) {
	mod := callModule(ir.OpUnique, nil, tensorType(4), tensorType(4))
	res := legalized(t, mod)
	want := []Diagnostic{{Function: "main", Op: ir.OpUnique}}
	if diff := cmp.Diff(want, res.Unhandled); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	fn := mainFunc(t, res)
	call, ok := fn.Expr(fn.Return()).(*ir.Call)
	if !ok {
		t.Fatalf("return value is %T, want the original call", fn.Expr(fn.Return()))
	}
	if call.Op != ir.OpUnique {
		t.Errorf("passthrough call operator = %s, want %s", call.Op.String(), ir.OpUnique.String())
	}
}

func TestEffectfulCallSurvivesWithoutConsumers(t *testing.T) {
	fn := ir.NewFunction("main")
	x := fn.AddParam("x", tensorType(2))
	print := fn.NewExpr(&ir.Call{Op: ir.OpPrint, Args: []ir.ExprID{x}, T: tensorType(2)})
	fn.Bind("p", print)
	fn.SetReturn(x)
	mod := ir.NewModule()
	mod.SetFunc(fn)

	res := legalized(t, mod)
	out := mainFunc(t, res)
	if len(out.Bindings) != 1 {
		t.Fatalf("%d bindings, want the print call to survive", len(out.Bindings))
	}
	if want := []Diagnostic{{Function: "main", Op: ir.OpPrint}}; !cmp.Equal(want, res.Unhandled) {
		t.Errorf("diagnostics = %v, want %v", res.Unhandled, want)
	}
}

func TestDeadIntermediatesRemoved(t *testing.T) {
	fn := ir.NewFunction("main")
	x := fn.AddParam("x", tensorType(2, 3))
	dead := fn.NewExpr(&ir.Call{Op: ir.OpSum, Args: []ir.ExprID{x}, Attrs: &ir.ReduceAttrs{}, T: tensorType()})
	fn.Bind("dead", dead)
	fn.SetReturn(x)
	mod := ir.NewModule()
	mod.SetFunc(fn)

	res := legalized(t, mod)
	out := mainFunc(t, res)
	if len(out.Bindings) != 0 {
		t.Errorf("%d bindings left, want the unused reduction removed", len(out.Bindings))
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	build := func() *ir.Module {
		mod := ir.NewModule()
		specs := []struct {
			name string
			op   ir.OpKind
		}{
			{name: "a", op: ir.OpExp}, {name: "b", op: ir.OpLog},
			{name: "c", op: ir.OpRelu}, {name: "d", op: ir.OpSigmoid},
			{name: "e", op: ir.OpUnique},
		}
		for _, s := range specs {
			fn := ir.NewFunction(s.name)
			x := fn.AddParam("x", tensorType(3, 3))
			call := fn.NewExpr(&ir.Call{Op: s.op, Args: []ir.ExprID{x}, T: tensorType(3, 3)})
			fn.Bind("y", call)
			fn.SetReturn(call)
			mod.SetFunc(fn)
		}
		return mod
	}
	seq, err := Options{Workers: 1}.Apply(build())
	if err != nil {
		t.Fatalf("sequential Apply: %+v", err)
	}
	par, err := Options{Workers: 4}.Apply(build())
	if err != nil {
		t.Fatalf("parallel Apply: %+v", err)
	}
	if !seq.Module.Equal(par.Module) {
		t.Errorf("parallel and sequential legalization disagree")
	}
	if diff := cmp.Diff(seq.Unhandled, par.Unhandled); diff != "" {
		t.Errorf("diagnostics mismatch (-sequential +parallel):\n%s", diff)
	}
}

func TestRegistered(t *testing.T) {
	for _, k := range []ir.OpKind{ir.OpAdd, ir.OpMatmul, ir.OpConv2D, ir.OpTrilu} {
		if !Registered(k) {
			t.Errorf("%s has no rule", k.String())
		}
	}
	for _, k := range []ir.OpKind{ir.OpPrint, ir.OpUnique, ir.OpInvalid} {
		if Registered(k) {
			t.Errorf("%s has a rule", k.String())
		}
	}
}

func TestRegisteredOpsSorted(t *testing.T) {
	kinds := RegisteredOps()
	if len(kinds) == 0 {
		t.Fatal("no registered operators")
	}
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1].String() >= kinds[i].String() {
			t.Errorf("operators not sorted: %s before %s", kinds[i-1].String(), kinds[i].String())
		}
	}
	for _, k := range kinds {
		if k == ir.OpPrint || k == ir.OpUnique {
			t.Errorf("%s listed as registered", k.String())
		}
	}
}
