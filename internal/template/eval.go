package template

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Evaluator renders parsed templates. It holds no per-evaluation state and may
// be shared across goroutines.
type Evaluator struct {
	funcs *Registry
	dir   Directory
	clock Clock
}

// NewEvaluator returns an Evaluator using funcs for name resolution. dir may
// be nil, in which case member lists come from Guild.Members and no context
// refresh happens.
func NewEvaluator(funcs *Registry, dir Directory) *Evaluator {
	if funcs == nil {
		funcs = Default()
	}
	return &Evaluator{funcs: funcs, dir: dir, clock: realClock{}}
}

func (e *Evaluator) WithClock(clock Clock) {
	e.clock = clock
}

func (e *Evaluator) EvaluateValue(ctx context.Context, node Node, c Context) (Value, error) {
	v, err := e.eval(newEnv(ctx, e.dir, c), node)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func (e *Evaluator) EvaluateText(ctx context.Context, text Text, c Context) (string, error) {
	return e.evalText(newEnv(ctx, e.dir, c), text)
}

func (e *Evaluator) evalText(env *Env, text Text) (string, error) {
	var sb strings.Builder
	for _, seg := range text {
		if lit, ok := seg.(*Literal); ok {
			sb.WriteString(lit.Value.String())
			continue
		}
		v, err := e.eval(env, seg)
		if err != nil {
			return "", err
		}
		sb.WriteString(v.String())
	}
	return sb.String(), nil
}

func (e *Evaluator) eval(env *Env, node Node) (Value, error) {
	switch n := node.(type) {
	case *Literal:
		return n.Value, nil
	case *Call:
		return e.call(env, n)
	default:
		return Value{}, evalErrorf("Unsupported template node %T.", node)
	}
}

func (e *Evaluator) call(env *Env, call *Call) (Value, error) {
	fn, ok := e.funcs.Resolve(env, call.Name)
	if !ok {
		return Value{}, unrecognized(-1, call.Name)
	}
	for _, key := range fn.Fetch {
		if err := env.fetch(key); err != nil {
			return Value{}, err
		}
	}
	if err := fn.Arity.check(-1, call.Name, len(call.Args)); err != nil {
		return Value{}, err
	}
	args, err := e.evalArgs(env, call.Args)
	if err != nil {
		return Value{}, err
	}
	return fn.Apply(env, args)
}

// evalArgs evaluates arguments into a slice in source order. When more than
// one argument is itself a call they run concurrently.
func (e *Evaluator) evalArgs(env *Env, nodes []Node) ([]Value, error) {
	args := make([]Value, len(nodes))
	calls := 0
	for i, node := range nodes {
		if lit, ok := node.(*Literal); ok {
			args[i] = lit.Value
			continue
		}
		calls++
	}
	if calls == 0 {
		return args, nil
	}
	if calls == 1 {
		for i, node := range nodes {
			if _, ok := node.(*Call); !ok {
				continue
			}
			v, err := e.eval(env, node)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return args, nil
	}

	var g errgroup.Group
	errs := make([]error, len(nodes))
	for i, node := range nodes {
		if _, ok := node.(*Call); !ok {
			continue
		}
		g.Go(func() error {
			args[i], errs[i] = e.eval(env, node)
			return errs[i]
		})
	}
	if g.Wait() != nil {
		// Report the leftmost failure so errors do not depend on scheduling.
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}
	return args, nil
}
