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

	"github.com/google/go-cmp/cmp"
)

func bindingNames(f *Function) []string {
	names := make([]string, len(f.Bindings))
	for i, b := range f.Bindings {
		names[i] = b.Name
	}
	return names
}

func TestRemoveUnused(t *testing.T) {
	f := NewFunction("f")
	x := f.AddParam("x", float32Type(2))
	live := f.NewExpr(&Call{Op: OpExp, Args: []ExprID{x}, T: float32Type(2)})
	f.Bind("live", live)
	dead := f.NewExpr(&Call{Op: OpLog, Args: []ExprID{x}, T: float32Type(2)})
	f.Bind("dead", dead)
	ret := f.NewExpr(&Call{Op: OpNegative, Args: []ExprID{live}, T: float32Type(2)})
	f.Bind("ret", ret)
	f.SetReturn(ret)

	got := RemoveUnused(f)
	want := []string{"live", "ret"}
	if diff := cmp.Diff(want, bindingNames(got)); diff != "" {
		t.Errorf("RemoveUnused bindings mismatch (-want +got):\n%s", diff)
	}
	if got.Return() != f.Return() {
		t.Errorf("RemoveUnused changed the return value")
	}
	// The input function keeps its dead binding.
	if len(f.Bindings) != 3 {
		t.Errorf("RemoveUnused mutated its input: %d bindings, want 3", len(f.Bindings))
	}
}

func TestRemoveUnusedKeepsEffectfulCalls(t *testing.T) {
	f := NewFunction("f")
	x := f.AddParam("x", float32Type(2))
	dead := f.NewExpr(&Call{Op: OpLog, Args: []ExprID{x}, T: float32Type(2)})
	f.Bind("dead", dead)
	print := f.NewExpr(&Call{Op: OpPrint, Args: []ExprID{dead}, T: float32Type(2)})
	f.Bind("print", print)
	f.SetReturn(x)

	got := RemoveUnused(f)
	// The print call stays, and so does the value it reads.
	want := []string{"dead", "print"}
	if diff := cmp.Diff(want, bindingNames(got)); diff != "" {
		t.Errorf("RemoveUnused bindings mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveUnusedIdempotent(t *testing.T) {
	f := NewFunction("f")
	x := f.AddParam("x", float32Type(2))
	dead := f.NewExpr(&Call{Op: OpLog, Args: []ExprID{x}, T: float32Type(2)})
	f.Bind("dead", dead)
	f.SetReturn(x)

	once := RemoveUnused(f)
	twice := RemoveUnused(once)
	if !once.Equal(twice) {
		t.Errorf("RemoveUnused is not idempotent")
	}
}

func TestRemoveUnusedNoReturn(t *testing.T) {
	f := NewFunction("f")
	x := f.AddParam("x", float32Type(2))
	dead := f.NewExpr(&Call{Op: OpLog, Args: []ExprID{x}, T: float32Type(2)})
	f.Bind("dead", dead)

	if got := RemoveUnused(f); len(got.Bindings) != 0 {
		t.Errorf("RemoveUnused kept %d bindings in a function with no return", len(got.Bindings))
	}
}
