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

// Package legalize rewrites high-level tensor operators into tensor
// expressions.
//
// The pass visits every function of a module. Within a function, call
// nodes are visited in post-order: the arguments of a call are fully
// legalized before the call itself. A call whose operator has a
// lowering rule is replaced in place by the rule's expansion; a call
// whose operator has none is left unchanged and reported as a
// diagnostic. Rule expansion frequently leaves intermediate bindings
// without consumers, so each function ends with a dead-code
// elimination sweep.
//
// Legalizing an already-legalized module is a no-op.
package legalize

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"

	"github.com/texl-org/texl/ir"
)

// Diagnostic reports a call to an operator with no lowering rule. The
// call is left in the output module for downstream consumers to reject
// or handle.
type Diagnostic struct {
	// Function is the global name of the function holding the call.
	Function string
	// Op is the operator with no rule.
	Op ir.OpKind
}

// Result of legalizing a module.
type Result struct {
	// Module holds the rewritten functions. Function signatures are
	// those of the input module.
	Module *ir.Module
	// Unhandled lists the operators left in place, one entry per
	// call node encountered, in module order.
	Unhandled []Diagnostic
}

// Options configure the pass.
type Options struct {
	// Workers bounds the number of functions legalized concurrently.
	// Zero selects a default; one forces the sequential path.
	Workers int
}

const maxWorkers = 16

func (o Options) workers(n int) int {
	w := o.Workers
	if w <= 0 {
		w = min(runtime.NumCPU(), maxWorkers)
	}
	return min(w, n)
}

// Apply legalizes every function of a module with default options.
func Apply(mod *ir.Module) (*Result, error) {
	return Options{}.Apply(mod)
}

// Apply legalizes every function of a module. Functions share no
// bindings, so they are processed concurrently; each function body is
// still visited in post-order.
func (o Options) Apply(mod *ir.Module) (*Result, error) {
	type slot struct {
		name string
		src  *ir.Function
		out  *ir.Function
		diag []Diagnostic
		err  error
	}
	slots := make([]*slot, 0, mod.NumFuncs())
	for name, fn := range mod.Funcs() {
		slots = append(slots, &slot{name: name, src: fn})
	}

	run := func(s *slot) {
		out, diag, err := Func(s.src)
		if err != nil {
			s.err = errors.Wrapf(err, "legalizing function %q", s.name)
			return
		}
		s.out, s.diag = out, diag
	}
	if w := o.workers(len(slots)); w <= 1 {
		for _, s := range slots {
			run(s)
		}
	} else {
		var wg sync.WaitGroup
		work := make(chan *slot)
		for range w {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for s := range work {
					run(s)
				}
			}()
		}
		for _, s := range slots {
			work <- s
		}
		close(work)
		wg.Wait()
	}

	var errs error
	res := &Result{Module: ir.NewModule()}
	for _, s := range slots {
		if s.err != nil {
			errs = multierr.Append(errs, s.err)
			continue
		}
		res.Module.SetFunc(s.out)
		for _, d := range s.diag {
			d.Function = s.name
			res.Unhandled = append(res.Unhandled, d)
		}
	}
	if errs != nil {
		return nil, errs
	}
	return res, nil
}

// Func legalizes a single function. The returned function has the same
// signature; only the body changes. Diagnostics list the call nodes
// whose operator has no rule, in visit order.
func Func(fn *ir.Function) (*ir.Function, []Diagnostic, error) {
	rw := &rewriter{
		src:     fn,
		out:     ir.NewFunction(fn.Name),
		mapping: make(map[ir.ExprID]ir.ExprID),
	}
	rw.b = newBuilder(rw.out)
	for _, p := range fn.Params() {
		rw.mapping[p.ID()] = rw.out.AddParam(p.Name, p.T)
	}
	for _, bind := range fn.Bindings {
		id, err := rw.rewrite(bind.Value)
		if err != nil {
			return nil, nil, err
		}
		rw.out.Bind(bind.Name, id)
	}
	if ret := fn.Return(); ret != ir.InvalidExpr {
		id, err := rw.rewrite(ret)
		if err != nil {
			return nil, nil, err
		}
		rw.out.SetReturn(id)
	}
	return ir.RemoveUnused(rw.out), rw.unhandled, nil
}

type rewriter struct {
	src       *ir.Function
	out       *ir.Function
	b         *Builder
	mapping   map[ir.ExprID]ir.ExprID
	unhandled []Diagnostic
}

func (rw *rewriter) rewriteAll(ids []ir.ExprID) ([]ir.ExprID, error) {
	if ids == nil {
		return nil, nil
	}
	to := make([]ir.ExprID, len(ids))
	for i, id := range ids {
		var err error
		if to[i], err = rw.rewrite(id); err != nil {
			return nil, err
		}
	}
	return to, nil
}

// rewrite legalizes the expression DAG rooted at an identifier and
// returns the identifier of the equivalent node in the output arena.
// Shared sub-expressions are rewritten once.
func (rw *rewriter) rewrite(id ir.ExprID) (ir.ExprID, error) {
	if to, ok := rw.mapping[id]; ok {
		return to, nil
	}
	to, err := rw.rewriteExpr(rw.src.Expr(id))
	if err != nil {
		return ir.InvalidExpr, err
	}
	rw.mapping[id] = to
	return to, nil
}

func (rw *rewriter) rewriteExpr(e ir.Expr) (ir.ExprID, error) {
	switch eT := e.(type) {
	case *ir.Var:
		// Parameters are pre-mapped; any other variable escaped its
		// defining function.
		return ir.InvalidExpr, errors.Errorf("unbound variable %s", eT.Name)
	case *ir.Const:
		cp := *eT
		return rw.out.NewExpr(&cp), nil
	case *ir.Tuple:
		fields, err := rw.rewriteAll(eT.Fields)
		if err != nil {
			return ir.InvalidExpr, err
		}
		return rw.out.NewExpr(&ir.Tuple{Fields: fields, T: eT.T}), nil
	case *ir.TupleGet:
		tup, err := rw.rewrite(eT.Tuple)
		if err != nil {
			return ir.InvalidExpr, err
		}
		return rw.out.NewExpr(&ir.TupleGet{Tuple: tup, Index: eT.Index, T: eT.T}), nil
	case *ir.Tensor:
		args, err := rw.rewriteAll(eT.Args)
		if err != nil {
			return ir.InvalidExpr, err
		}
		return rw.out.NewExpr(&ir.Tensor{Expr: eT.Expr, Args: args, T: eT.T}), nil
	case *ir.Call:
		return rw.rewriteCall(eT)
	}
	return ir.InvalidExpr, errors.Errorf("cannot rewrite expression of type %T", e)
}

func (rw *rewriter) rewriteCall(call *ir.Call) (ir.ExprID, error) {
	args, err := rw.rewriteAll(call.Args)
	if err != nil {
		return ir.InvalidExpr, err
	}
	rule, ok := lookup(call.Op)
	if !ok {
		rw.unhandled = append(rw.unhandled, Diagnostic{Op: call.Op})
		klog.Warningf("no lowering rule for operator %s: leaving the call in place", call.Op.String())
		return rw.out.NewExpr(&ir.Call{Op: call.Op, Args: args, Attrs: call.Attrs, T: call.T}), nil
	}
	return rule(rw.b, args, call.Attrs, call.T)
}
