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

// crossEntropy sums -log(p)*y over every element into a rank-0 result.
func crossEntropy(b *Builder, op ir.OpKind, pred, label ir.ExprID, predT *ir.TensorType, outT *ir.TensorType) (ir.ExprID, error) {
	if outT.Shape.Rank() != 0 {
		return ir.InvalidExpr, errorf(op, "result shape %s is not a scalar", outT.Shape.String())
	}
	reduced := make(map[int]bool, predT.Shape.Rank())
	for i := range predT.Shape {
		reduced[i] = true
	}
	if err := checkReducible(op, predT.Shape); err != nil {
		return ir.InvalidExpr, err
	}
	p := te.Placeholder("pred", predT.DType, predT.Shape)
	y := te.Placeholder("label", predT.DType, predT.Shape)
	t, err := te.ComputeReduce(outT.DType, shape.Shape{}, te.ReduceSum, reduceAxesFor(predT.Shape, reduced), func(ix, r []te.Scalar) te.Scalar {
		return te.Neg(te.Mul(te.Log(p.At(r...)), y.At(r...)))
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, t, map[*te.Input]ir.ExprID{p: pred, y: label})
}

func lowerCrossEntropy(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpCrossEntropy
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	xT, err := b.TensorArg(op, args[0])
	if err != nil {
		return ir.InvalidExpr, err
	}
	return crossEntropy(b, op, args[0], args[1], xT, outT)
}

// lowerSoftmaxCrossEntropy applies a softmax on the last axis of the
// predictions before taking the cross entropy against the labels.
func lowerSoftmaxCrossEntropy(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpSoftmaxCrossEntropy
	outT, err := tensorResult(op, out)
	if err != nil {
		return ir.InvalidExpr, err
	}
	xT, err := b.TensorArg(op, args[0])
	if err != nil {
		return ir.InvalidExpr, err
	}
	if xT.Shape.Rank() == 0 {
		return ir.InvalidExpr, errorf(op, "predictions of rank 0 have no class axis")
	}
	sm, err := emitSoftmax(b, op, args[0], xT, xT.Shape.Rank()-1)
	if err != nil {
		return ir.InvalidExpr, err
	}
	b.Bind(sm)
	return crossEntropy(b, op, sm, args[1], xT, outT)
}
