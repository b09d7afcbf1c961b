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
	"fmt"

	"github.com/pkg/errors"

	"github.com/texl-org/texl/ir"
)

// LegalizationError is an internal consistency failure inside a
// lowering rule: an axis index out of range after normalization, a
// non-divisible equal-partition split, duplicate transpose axes, and
// the like. It is distinct from user-facing shape errors, which
// upstream inference has already rejected.
type LegalizationError struct {
	// Op is the operator whose rule failed.
	Op ir.OpKind
	// Reason describes the violated invariant.
	Reason string
}

func (e *LegalizationError) Error() string {
	return fmt.Sprintf("cannot legalize %s: %s", e.Op.String(), e.Reason)
}

// errorf returns a legalization error annotated with a stack trace.
func errorf(op ir.OpKind, format string, args ...any) error {
	return errors.WithStack(&LegalizationError{
		Op:     op,
		Reason: fmt.Sprintf(format, args...),
	})
}
