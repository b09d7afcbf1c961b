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

// RemoveUnused returns an equivalent function with every binding
// stripped whose value is not transitively referenced by the return
// value or by an effectful call. The arena is shared with the input
// function: unreachable nodes simply stop being named.
//
// RemoveUnused is idempotent.
func RemoveUnused(f *Function) *Function {
	marked := make(map[ExprID]bool)
	var mark func(id ExprID)
	mark = func(id ExprID) {
		if marked[id] {
			return
		}
		marked[id] = true
		for _, op := range Operands(f.Expr(id)) {
			mark(op)
		}
	}
	if ret := f.Return(); ret != InvalidExpr {
		mark(ret)
	}
	for _, b := range f.Bindings {
		if call, ok := f.Expr(b.Value).(*Call); ok && call.Op.Effectful() {
			mark(b.Value)
		}
	}
	out := &Function{
		Name:   f.Name,
		params: f.params,
		exprs:  f.exprs,
		ret:    f.ret,
	}
	for _, b := range f.Bindings {
		if marked[b.Value] {
			out.Bindings = append(out.Bindings, b)
		}
	}
	return out
}
