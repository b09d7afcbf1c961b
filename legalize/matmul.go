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

// lowerMatmul contracts the last axis of the first operand with the
// second-to-last axis of the second operand, broadcasting the batch
// axes. Rank-1 operands are promoted with a unit row or column axis
// that the result does not carry.
func lowerMatmul(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error) {
	const op = ir.OpMatmul
	a, err := attrsAs[*ir.MatmulAttrs](op, attrs)
	if err != nil {
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
	aT, bT := ts[0], ts[1]
	if aT.Shape.Rank() == 0 || bT.Shape.Rank() == 0 {
		return ir.InvalidExpr, errorf(op, "matmul of rank-0 operand")
	}
	aPrepended := aT.Shape.Rank() == 1
	bAppended := bT.Shape.Rank() == 1

	aK := aT.Shape[aT.Shape.Rank()-1]
	bK := bT.Shape[0]
	if !bAppended {
		bK = bT.Shape[bT.Shape.Rank()-2]
	}
	if an, aOK := aK.Static(); aOK {
		if bn, bOK := bK.Static(); bOK && an != bn {
			return ir.InvalidExpr, errorf(op, "contraction extents %d and %d differ", an, bn)
		}
	}
	kDim := aK
	if _, ok := aK.Static(); !ok {
		kDim = bK
	}
	if err := checkReducible(op, []shape.Dim{kDim}); err != nil {
		return ir.InvalidExpr, err
	}

	// Batch axes of each operand, right-aligned against the batch axes
	// of the result.
	aBatch := aT.Shape[:max(aT.Shape.Rank()-2, 0)]
	bBatch := bT.Shape[:max(bT.Shape.Rank()-2, 0)]
	numBatch := outT.Shape.Rank()
	if !aPrepended {
		numBatch--
	}
	if !bAppended {
		numBatch--
	}
	if numBatch < 0 {
		return ir.InvalidExpr, errorf(op, "result shape %s has too low a rank", outT.Shape.String())
	}

	dt := outT.DType
	if a.OutDType != dtype.Invalid {
		dt = a.OutDType
	}
	x := te.Placeholder("a", aT.DType, aT.Shape)
	y := te.Placeholder("b", bT.DType, bT.Shape)
	k := te.ReduceAxis("k", kDim)
	t, err := te.ComputeReduce(dt, outT.Shape, te.ReduceSum, []*te.Axis{k}, func(ix, r []te.Scalar) te.Scalar {
		batch := ix[:numBatch]
		next := numBatch
		var row, col te.Scalar = te.Int(0), te.Int(0)
		if !aPrepended {
			row = ix[next]
			next++
		}
		if !bAppended {
			col = ix[next]
		}

		aIx := batchIndices(batch, aBatch)
		if !aPrepended {
			aIx = append(aIx, row)
		}
		aIx = append(aIx, r[0])

		bIx := batchIndices(batch, bBatch)
		bIx = append(bIx, r[0])
		if !bAppended {
			bIx = append(bIx, col)
		}

		av := x.At(aIx...)
		bv := y.At(bIx...)
		if aT.DType != dt {
			av = te.ToDType(av, dt)
		}
		if bT.DType != dt {
			bv = te.ToDType(bv, dt)
		}
		return te.Mul(av, bv)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	res, err := b.Tensor(op, t, map[*te.Input]ir.ExprID{x: args[0], y: args[1]})
	if err != nil {
		return ir.InvalidExpr, err
	}
	if dt == outT.DType {
		return res, nil
	}
	b.Bind(res)
	xc := te.Placeholder("acc", dt, outT.Shape)
	cast, err := te.Compute(outT.DType, outT.Shape, func(ix []te.Scalar) te.Scalar {
		return te.ToDType(xc.At(ix...), outT.DType)
	})
	if err != nil {
		return ir.InvalidExpr, err
	}
	return b.Tensor(op, cast, map[*te.Input]ir.ExprID{xc: res})
}

// batchIndices selects the operand batch indices from the result batch
// indices, right-aligned, pinning broadcast unit axes at zero.
func batchIndices(batch []te.Scalar, operand shape.Shape) []te.Scalar {
	offset := len(batch) - operand.Rank()
	ix := make([]te.Scalar, 0, operand.Rank()+2)
	for i, d := range operand {
		if d.IsOne() {
			ix = append(ix, te.Int(0))
			continue
		}
		ix = append(ix, batch[offset+i])
	}
	return ix
}
