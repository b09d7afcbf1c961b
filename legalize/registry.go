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
	"sort"

	"golang.org/x/exp/maps"

	"github.com/gx-org/backend/dtype"
	"github.com/texl-org/texl/ir"
	"github.com/texl-org/texl/te"
)

// rule lowers one operator kind. It is a pure function of the call
// arguments, the call attributes, and the result type computed by
// upstream shape inference. The expression it returns replaces the
// call node.
type rule func(b *Builder, args []ir.ExprID, attrs ir.Attributes, out ir.Type) (ir.ExprID, error)

// ruleTable is the closed mapping from operator kind to lowering rule.
// The table is fully populated before the first rewrite and never
// mutated afterwards: a nil entry means the operator intentionally has
// no tensor-expression lowering and takes the passthrough path.
var ruleTable = [ir.OpKindCount]rule{
	ir.OpAdd:         lowerBinary(ir.OpAdd, te.Add),
	ir.OpSubtract:    lowerBinary(ir.OpSubtract, te.Sub),
	ir.OpMultiply:    lowerBinary(ir.OpMultiply, te.Mul),
	ir.OpDivide:      lowerBinary(ir.OpDivide, te.Div),
	ir.OpFloorDivide: lowerBinary(ir.OpFloorDivide, te.FloorDiv),
	ir.OpLess:        lowerBinary(ir.OpLess, te.LT),

	ir.OpSin:      lowerUnary(ir.OpSin, func(x te.Scalar, _ dtype.DataType) te.Scalar { return te.Sin(x) }),
	ir.OpCos:      lowerUnary(ir.OpCos, func(x te.Scalar, _ dtype.DataType) te.Scalar { return te.Cos(x) }),
	ir.OpTanh:     lowerUnary(ir.OpTanh, func(x te.Scalar, _ dtype.DataType) te.Scalar { return te.Tanh(x) }),
	ir.OpExp:      lowerUnary(ir.OpExp, func(x te.Scalar, _ dtype.DataType) te.Scalar { return te.Exp(x) }),
	ir.OpLog:      lowerUnary(ir.OpLog, func(x te.Scalar, _ dtype.DataType) te.Scalar { return te.Log(x) }),
	ir.OpSqrt:     lowerUnary(ir.OpSqrt, func(x te.Scalar, _ dtype.DataType) te.Scalar { return te.Sqrt(x) }),
	ir.OpNegative: lowerUnary(ir.OpNegative, func(x te.Scalar, _ dtype.DataType) te.Scalar { return te.Neg(x) }),
	ir.OpSigmoid:  lowerUnary(ir.OpSigmoid, sigmoidFormula),
	ir.OpRelu:     lowerUnary(ir.OpRelu, func(x te.Scalar, dt dtype.DataType) te.Scalar { return te.Max(x, te.Float(0, dt)) }),
	ir.OpCast:     lowerCast,

	ir.OpGelu:    lowerGelu,
	ir.OpSilu:    lowerSilu,
	ir.OpSoftmax: lowerSoftmax,

	ir.OpReshape:    lowerReshape,
	ir.OpTranspose:  lowerTranspose,
	ir.OpExpandDims: lowerExpandDims,
	ir.OpSqueeze:    lowerSqueeze,
	ir.OpFlatten:    lowerFlatten,

	ir.OpSum:             lowerSum,
	ir.OpMean:            lowerMean,
	ir.OpCumsum:          lowerCumsum,
	ir.OpCollapseSumTo:   lowerCollapseSumTo,
	ir.OpCollapseSumLike: lowerCollapseSumLike,

	ir.OpConcatenate:  lowerConcatenate,
	ir.OpSplit:        lowerSplit,
	ir.OpStridedSlice: lowerStridedSlice,
	ir.OpWhere:        lowerWhere,
	ir.OpBroadcastTo:  lowerBroadcastTo,
	ir.OpTake:         lowerTake,
	ir.OpTrilu:        lowerTrilu,

	ir.OpMatmul:              lowerMatmul,
	ir.OpLayerNorm:           lowerLayerNorm,
	ir.OpBatchNorm:           lowerBatchNorm,
	ir.OpCrossEntropy:        lowerCrossEntropy,
	ir.OpSoftmaxCrossEntropy: lowerSoftmaxCrossEntropy,
	ir.OpConv2D:              lowerConv2D,
	ir.OpMaxPool2D:           lowerMaxPool2D,
	ir.OpAdaptiveAvgPool2D:   lowerAdaptiveAvgPool2D,
	ir.OpResize2D:            lowerResize2D,

	ir.OpFull:      lowerFull,
	ir.OpFullLike:  lowerFullLike,
	ir.OpZeros:     lowerConstFill(ir.OpZeros, 0),
	ir.OpZerosLike: lowerConstFill(ir.OpZerosLike, 0),
	ir.OpOnes:      lowerConstFill(ir.OpOnes, 1),
	ir.OpOnesLike:  lowerConstFill(ir.OpOnesLike, 1),
}

func lookup(k ir.OpKind) (rule, bool) {
	if k < 0 || k >= ir.OpKindCount {
		return nil, false
	}
	r := ruleTable[k]
	return r, r != nil
}

// Registered reports if an operator kind has a lowering rule.
func Registered(k ir.OpKind) bool {
	_, ok := lookup(k)
	return ok
}

// RegisteredOps returns the operator kinds with a lowering rule,
// sorted by operator name.
func RegisteredOps() []ir.OpKind {
	byName := make(map[string]ir.OpKind)
	for k := range ir.OpKindCount {
		if Registered(k) {
			byName[k.String()] = k
		}
	}
	names := maps.Keys(byName)
	sort.Strings(names)
	kinds := make([]ir.OpKind, len(names))
	for i, name := range names {
		kinds[i] = byName[name]
	}
	return kinds
}
