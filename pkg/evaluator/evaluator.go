package evaluator

import (
	"math"
	"sort"
	"sync"
)

// Evaluator holds a parsed expression and the current variable bindings.
// The parsed tree never changes; bindings may be updated between evaluations.
type Evaluator struct {
	expr  string
	root  node
	names []string

	mu   sync.RWMutex
	vars map[string]value
}

// New parses expr. Malformed input returns a *ParseError.
func New(expr string) (*Evaluator, error) {
	root, vars, err := parse(expr)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Evaluator{
		expr:  expr,
		root:  root,
		names: names,
		vars:  make(map[string]value),
	}, nil
}

// MustNew is like New but panics on a parse error.
func MustNew(expr string) *Evaluator {
	ev, err := New(expr)
	if err != nil {
		panic(err)
	}
	return ev
}

// Expression returns the source text.
func (ev *Evaluator) Expression() string {
	return ev.expr
}

// Variables returns the sorted names referenced by the expression, excluding the
// built-in constants.
func (ev *Evaluator) Variables() []string {
	out := make([]string, len(ev.names))
	copy(out, ev.names)
	return out
}

func (ev *Evaluator) SetIntVariable(name string, v int64) {
	ev.mu.Lock()
	ev.vars[name] = intValue(v)
	ev.mu.Unlock()
}

func (ev *Evaluator) SetDoubleVariable(name string, v float64) {
	ev.mu.Lock()
	ev.vars[name] = doubleValue(v)
	ev.mu.Unlock()
}

// EvaluateAsInt64 evaluates the expression and truncates a floating result toward zero.
func (ev *Evaluator) EvaluateAsInt64() (int64, error) {
	v, err := ev.evaluate(modeInt64)
	if err != nil {
		return 0, err
	}
	if !v.isDouble {
		return v.i, nil
	}
	if math.IsNaN(v.f) || v.f >= math.MaxInt64 || v.f < math.MinInt64 {
		return 0, ErrNotRepresentable
	}
	return int64(v.f), nil
}

// EvaluateAsDouble evaluates the expression. Division by zero yields ±Inf or NaN.
func (ev *Evaluator) EvaluateAsDouble() (float64, error) {
	v, err := ev.evaluate(modeDouble)
	if err != nil {
		return 0, err
	}
	return v.float64(), nil
}

func (ev *Evaluator) evaluate(m mode) (value, error) {
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	return ev.root.eval(&env{mode: m, vars: ev.vars})
}
