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

// OpKind identifies a high-level operator. The set of operators is
// closed: every operator the system can represent has a kind, so a
// kind without a lowering rule is a visible gap in the rule table
// rather than a key silently missing from a map.
type OpKind int

// Operator kinds.
const (
	OpInvalid OpKind = iota

	// Elementwise binary.
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpFloorDivide
	OpLess

	// Elementwise unary.
	OpSin
	OpCos
	OpTanh
	OpExp
	OpLog
	OpSqrt
	OpNegative
	OpSigmoid
	OpRelu
	OpCast

	// Composite activations.
	OpGelu
	OpSilu
	OpSoftmax

	// Axis manipulations.
	OpReshape
	OpTranspose
	OpExpandDims
	OpSqueeze
	OpFlatten

	// Reductions.
	OpSum
	OpMean
	OpCumsum
	OpCollapseSumTo
	OpCollapseSumLike

	// Structural.
	OpConcatenate
	OpSplit
	OpStridedSlice
	OpWhere
	OpBroadcastTo
	OpTake
	OpTrilu

	// Linear algebra and neural-network operators.
	OpMatmul
	OpLayerNorm
	OpBatchNorm
	OpCrossEntropy
	OpSoftmaxCrossEntropy
	OpConv2D
	OpMaxPool2D
	OpAdaptiveAvgPool2D
	OpResize2D

	// Fill family.
	OpFull
	OpFullLike
	OpZeros
	OpZerosLike
	OpOnes
	OpOnesLike

	// Operators with no tensor-expression lowering.
	OpPrint
	OpUnique

	// OpKindCount is the number of operator kinds. It sizes the
	// lowering rule table.
	OpKindCount
)

var opNames = [OpKindCount]string{
	OpInvalid:             "invalid",
	OpAdd:                 "add",
	OpSubtract:            "subtract",
	OpMultiply:            "multiply",
	OpDivide:              "divide",
	OpFloorDivide:         "floor_divide",
	OpLess:                "less",
	OpSin:                 "sin",
	OpCos:                 "cos",
	OpTanh:                "tanh",
	OpExp:                 "exp",
	OpLog:                 "log",
	OpSqrt:                "sqrt",
	OpNegative:            "negative",
	OpSigmoid:             "sigmoid",
	OpRelu:                "nn.relu",
	OpCast:                "cast",
	OpGelu:                "nn.gelu",
	OpSilu:                "nn.silu",
	OpSoftmax:             "nn.softmax",
	OpReshape:             "reshape",
	OpTranspose:           "transpose",
	OpExpandDims:          "expand_dims",
	OpSqueeze:             "squeeze",
	OpFlatten:             "nn.flatten",
	OpSum:                 "sum",
	OpMean:                "mean",
	OpCumsum:              "cumsum",
	OpCollapseSumTo:       "collapse_sum_to",
	OpCollapseSumLike:     "collapse_sum_like",
	OpConcatenate:         "concatenate",
	OpSplit:               "split",
	OpStridedSlice:        "strided_slice",
	OpWhere:               "where",
	OpBroadcastTo:         "broadcast_to",
	OpTake:                "take",
	OpTrilu:               "trilu",
	OpMatmul:              "nn.matmul",
	OpLayerNorm:           "nn.layer_norm",
	OpBatchNorm:           "nn.batch_norm",
	OpCrossEntropy:        "nn.cross_entropy",
	OpSoftmaxCrossEntropy: "nn.softmax_cross_entropy",
	OpConv2D:              "nn.conv2d",
	OpMaxPool2D:           "nn.max_pool2d",
	OpAdaptiveAvgPool2D:   "nn.adaptive_avg_pool2d",
	OpResize2D:            "image.resize2d",
	OpFull:                "full",
	OpFullLike:            "full_like",
	OpZeros:               "zeros",
	OpZerosLike:           "zeros_like",
	OpOnes:                "ones",
	OpOnesLike:            "ones_like",
	OpPrint:               "print",
	OpUnique:              "unique",
}

// String returns the namespaced operator name.
func (k OpKind) String() string {
	if k < 0 || k >= OpKindCount {
		return "invalid"
	}
	return opNames[k]
}

// Effectful reports if calls to the operator have side effects beyond
// their returned value. Effectful calls are never removed by dead-code
// elimination.
func (k OpKind) Effectful() bool {
	return k == OpPrint
}

// OpKindFromName returns the kind of an operator given its namespaced
// name.
func OpKindFromName(name string) (OpKind, bool) {
	for k, n := range opNames {
		if n == name && OpKind(k) != OpInvalid {
			return OpKind(k), true
		}
	}
	return OpInvalid, false
}
