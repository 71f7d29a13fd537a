package enumerable

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
)

// Compiler turns a procedure into something executable.
type Compiler interface {
	Compile(p *Procedure) (Executable, error)
}

// Executable is a compiled plan.
type Executable interface {
	// Execute binds the plan to dc. No table is opened until the returned
	// Enumerable is enumerated, and every enumeration starts over.
	Execute(dc catalog.DataContext) (ir.Enumerable, error)
}

// CompileError reports a procedure that failed to compile. Source is the
// full listing that was being compiled.
type CompileError struct {
	Source string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling procedure: %v\n%s", e.Err, e.Source)
}

func (e *CompileError) Unwrap() error { return e.Err }

// IsCompileError reports whether err is, or wraps, a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// source produces a fresh iterator per call.
type source func(ctx context.Context, dc catalog.DataContext) (ir.RowIterator, error)

// ClosureCompiler composes operator closures. It never generates code.
type ClosureCompiler struct{}

// Compile implements Compiler.
func (ClosureCompiler) Compile(p *Procedure) (Executable, error) {
	src := p.Source()

	vars := make(map[string]source, len(p.Stmts))
	for _, s := range p.Stmts {
		ins := make([]source, len(s.Inputs))
		for i, name := range s.Inputs {
			in, ok := vars[name]
			if !ok {
				return nil, &CompileError{Source: src, Err: fmt.Errorf("%s: undefined variable %s", s.Var, name)}
			}
			ins[i] = in
		}
		compiled, err := compileOp(s.Op, ins)
		if err != nil {
			return nil, &CompileError{Source: src, Err: fmt.Errorf("%s: %w", s.Var, err)}
		}
		vars[s.Var] = compiled
	}
	root, ok := vars[p.Result]
	if !ok {
		return nil, &CompileError{Source: src, Err: fmt.Errorf("undefined result %s", p.Result)}
	}
	return &executable{root: root}, nil
}

type executable struct {
	root source
}

func (e *executable) Execute(dc catalog.DataContext) (ir.Enumerable, error) {
	return ir.EnumerableFunc(func(ctx context.Context) (ir.RowIterator, error) {
		return e.root(ctx, dc)
	}), nil
}

func compileOp(op Op, ins []source) (source, error) {
	switch o := op.(type) {
	case ScanOp:
		return scanSource(o), nil
	case ValuesOp:
		return valuesSource(o), nil
	case CalcOp:
		return calcSource(o, ins[0])
	case JoinOp:
		return joinSource(o, ins[0], ins[1])
	case AggregateOp:
		return aggregateSource(o, ins[0])
	case SortOp:
		return sortSource(o, ins[0]), nil
	case SetOpOp:
		return setOpSource(o, ins), nil
	default:
		return nil, fmt.Errorf("unknown operator %T", op)
	}
}
