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
	"fmt"
	"reflect"

	"github.com/texl-org/texl/base/ordered"
)

// Param is a function parameter.
type Param struct {
	Name string
	T    Type
	id   ExprID
}

// ID returns the arena identifier referencing the parameter.
func (p *Param) ID() ExprID { return p.id }

// Binding assigns a local name to an arena expression. Every name is
// assigned exactly once.
type Binding struct {
	Name  string
	Value ExprID
}

// Function is an ordered parameter list, a dataflow block of bindings,
// and a return expression.
type Function struct {
	Name     string
	params   []*Param
	exprs    []Expr
	Bindings []Binding
	ret      ExprID
}

// NewFunction returns an empty function.
func NewFunction(name string) *Function {
	return &Function{Name: name, ret: InvalidExpr}
}

// AddParam appends a parameter to the signature and returns the arena
// identifier referencing it.
func (f *Function) AddParam(name string, t Type) ExprID {
	id := f.NewExpr(&Var{Name: name, T: t})
	f.params = append(f.params, &Param{Name: name, T: t, id: id})
	return id
}

// Params returns the ordered parameter list.
func (f *Function) Params() []*Param { return f.params }

// NewExpr appends an expression node to the arena and returns its
// identifier.
func (f *Function) NewExpr(e Expr) ExprID {
	f.exprs = append(f.exprs, e)
	return ExprID(len(f.exprs) - 1)
}

// Expr returns the node addressed by an identifier.
func (f *Function) Expr(id ExprID) Expr {
	return f.exprs[id]
}

// NumExprs returns the number of nodes in the arena.
func (f *Function) NumExprs() int { return len(f.exprs) }

// Bind appends a binding from a local name to an expression.
func (f *Function) Bind(name string, v ExprID) {
	f.Bindings = append(f.Bindings, Binding{Name: name, Value: v})
}

// SetReturn sets the function return expression.
func (f *Function) SetReturn(id ExprID) { f.ret = id }

// Return returns the function return expression.
func (f *Function) Return() ExprID { return f.ret }

func (f *Function) String() string {
	return fmt.Sprintf("func %s: %d params, %d bindings", f.Name, len(f.params), len(f.Bindings))
}

// Equal reports if two functions have the same signature and
// structurally equal bodies. Arena identifiers are not compared:
// equality follows the expression DAGs from the bindings and the
// return value.
func (f *Function) Equal(other *Function) bool {
	if f.Name != other.Name || len(f.params) != len(other.params) || len(f.Bindings) != len(other.Bindings) {
		return false
	}
	for i, p := range f.params {
		op := other.params[i]
		if p.Name != op.Name || !p.T.Equal(op.T) {
			return false
		}
	}
	eq := &exprComparer{f: f, g: other, seen: make(map[[2]ExprID]bool)}
	for i, b := range f.Bindings {
		ob := other.Bindings[i]
		if b.Name != ob.Name || !eq.equal(b.Value, ob.Value) {
			return false
		}
	}
	if f.ret == InvalidExpr || other.ret == InvalidExpr {
		return f.ret == other.ret
	}
	return eq.equal(f.ret, other.ret)
}

type exprComparer struct {
	f, g *Function
	seen map[[2]ExprID]bool
}

func (c *exprComparer) equalAll(xs, ys []ExprID) bool {
	if len(xs) != len(ys) {
		return false
	}
	for i, x := range xs {
		if !c.equal(x, ys[i]) {
			return false
		}
	}
	return true
}

func (c *exprComparer) equal(x, y ExprID) bool {
	key := [2]ExprID{x, y}
	if done, ok := c.seen[key]; ok {
		return done
	}
	// Bindings are acyclic so marking the pair before recursing only
	// short-circuits repeated shared references.
	c.seen[key] = true
	ok := c.equalExpr(c.f.Expr(x), c.g.Expr(y))
	c.seen[key] = ok
	return ok
}

func (c *exprComparer) equalExpr(x, y Expr) bool {
	switch xT := x.(type) {
	case *Var:
		yT, ok := y.(*Var)
		return ok && xT.Name == yT.Name && xT.T.Equal(yT.T)
	case *Const:
		yT, ok := y.(*Const)
		return ok && *xT == *yT
	case *Call:
		yT, ok := y.(*Call)
		return ok && xT.Op == yT.Op &&
			reflect.DeepEqual(xT.Attrs, yT.Attrs) &&
			xT.T.Equal(yT.T) &&
			c.equalAll(xT.Args, yT.Args)
	case *Tuple:
		yT, ok := y.(*Tuple)
		return ok && xT.T.Equal(yT.T) && c.equalAll(xT.Fields, yT.Fields)
	case *TupleGet:
		yT, ok := y.(*TupleGet)
		return ok && xT.Index == yT.Index && xT.T.Equal(yT.T) && c.equal(xT.Tuple, yT.Tuple)
	case *Tensor:
		yT, ok := y.(*Tensor)
		return ok && xT.T.Equal(yT.T) &&
			reflect.DeepEqual(xT.Expr, yT.Expr) &&
			c.equalAll(xT.Args, yT.Args)
	}
	return false
}

// Module maps global function names to functions. Iteration follows
// the order in which functions have been added.
type Module struct {
	funcs *ordered.Map[string, *Function]
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{funcs: ordered.NewMap[string, *Function]()}
}

// SetFunc adds a function to the module or replaces the function of
// the same name.
func (m *Module) SetFunc(f *Function) {
	m.funcs.Store(f.Name, f)
}

// Func returns a function given its global name.
func (m *Module) Func(name string) (*Function, bool) {
	return m.funcs.Load(name)
}

// Funcs returns an iterator over the module functions in order.
func (m *Module) Funcs() func(func(string, *Function) bool) {
	return m.funcs.Iter()
}

// NumFuncs returns the number of functions in the module.
func (m *Module) NumFuncs() int {
	return m.funcs.Size()
}

// Equal reports if two modules hold structurally equal functions under
// the same names in the same order.
func (m *Module) Equal(other *Module) bool {
	if m.funcs.Size() != other.funcs.Size() {
		return false
	}
	equal := true
	i := 0
	names := make([]string, 0, m.funcs.Size())
	for name := range m.funcs.Keys() {
		names = append(names, name)
	}
	for name, g := range other.funcs.Iter() {
		if names[i] != name {
			return false
		}
		i++
		f, ok := m.funcs.Load(name)
		if !ok || !f.Equal(g) {
			equal = false
			break
		}
	}
	return equal
}
