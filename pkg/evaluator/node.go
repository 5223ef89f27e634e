package evaluator

import (
	"fmt"
	"math"
)

type mode int

const (
	modeInt64 mode = iota
	modeDouble
)

// value is an int64 or float64 operand.
type value struct {
	isDouble bool
	i        int64
	f        float64
}

func intValue(i int64) value      { return value{i: i} }
func doubleValue(f float64) value { return value{isDouble: true, f: f} }

func boolValue(b bool) value {
	if b {
		return intValue(1)
	}
	return intValue(0)
}

func (v value) int64() int64 {
	if v.isDouble {
		return int64(v.f)
	}
	return v.i
}

func (v value) float64() float64 {
	if v.isDouble {
		return v.f
	}
	return float64(v.i)
}

func (v value) truthy() bool {
	if v.isDouble {
		return v.f != 0
	}
	return v.i != 0
}

type env struct {
	mode mode
	vars map[string]value
}

type node interface {
	eval(e *env) (value, error)
}

type literalNode struct {
	v value
}

func (n *literalNode) eval(_ *env) (value, error) {
	return n.v, nil
}

type variableNode struct {
	name        string
	fallback    value
	hasFallback bool
}

func (n *variableNode) eval(e *env) (value, error) {
	if v, ok := e.vars[n.name]; ok {
		return v, nil
	}
	if n.hasFallback {
		return n.fallback, nil
	}
	return value{}, fmt.Errorf("%w: %s", ErrUndefinedVariable, n.name)
}

type unaryNode struct {
	op tokenKind
	x  node
}

func (n *unaryNode) eval(e *env) (value, error) {
	x, err := n.x.eval(e)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case tokMinus:
		if x.isDouble {
			return doubleValue(-x.f), nil
		}
		return intValue(-x.i), nil
	case tokBitNot:
		return intValue(^x.int64()), nil
	default:
		return x, nil
	}
}

type ternaryNode struct {
	cond, then, els node
}

func (n *ternaryNode) eval(e *env) (value, error) {
	c, err := n.cond.eval(e)
	if err != nil {
		return value{}, err
	}
	if c.truthy() {
		return n.then.eval(e)
	}
	return n.els.eval(e)
}

type binaryNode struct {
	op   tokenKind
	x, y node
}

func (n *binaryNode) eval(e *env) (value, error) {
	x, err := n.x.eval(e)
	if err != nil {
		return value{}, err
	}

	// Logical operators short-circuit.
	switch n.op {
	case tokLogicalAnd:
		if !x.truthy() {
			return intValue(0), nil
		}
		y, err := n.y.eval(e)
		if err != nil {
			return value{}, err
		}
		return boolValue(y.truthy()), nil
	case tokLogicalOr:
		if x.truthy() {
			return intValue(1), nil
		}
		y, err := n.y.eval(e)
		if err != nil {
			return value{}, err
		}
		return boolValue(y.truthy()), nil
	}

	y, err := n.y.eval(e)
	if err != nil {
		return value{}, err
	}
	anyDouble := x.isDouble || y.isDouble

	switch n.op {
	case tokPlus:
		if anyDouble {
			return doubleValue(x.float64() + y.float64()), nil
		}
		return intValue(x.i + y.i), nil
	case tokMinus:
		if anyDouble {
			return doubleValue(x.float64() - y.float64()), nil
		}
		return intValue(x.i - y.i), nil
	case tokMul:
		if anyDouble {
			return doubleValue(x.float64() * y.float64()), nil
		}
		return intValue(x.i * y.i), nil
	case tokDiv:
		d := y.float64()
		if d == 0 && e.mode == modeInt64 {
			return value{}, ErrDivisionByZero
		}
		return doubleValue(x.float64() / d), nil
	case tokRem:
		d := y.int64()
		if d == 0 {
			return value{}, ErrDivisionByZero
		}
		return intValue(x.int64() % d), nil
	case tokPow:
		return doubleValue(math.Pow(x.float64(), y.float64())), nil
	case tokBitAnd:
		return intValue(x.int64() & y.int64()), nil
	case tokBitOr:
		return intValue(x.int64() | y.int64()), nil
	case tokBitXor:
		return intValue(x.int64() ^ y.int64()), nil
	case tokShiftLeft:
		return intValue(shift(x.int64(), y.int64(), true)), nil
	case tokShiftRight:
		return intValue(shift(x.int64(), y.int64(), false)), nil
	case tokEqual, tokNotEqual, tokLess, tokGreater, tokLessEqual, tokGreaterEqual:
		return boolValue(compare(n.op, x, y, anyDouble)), nil
	}
	return value{}, fmt.Errorf("unsupported operator %s", n.op)
}

// shift treats a negative count as a shift in the opposite direction.
func shift(v, count int64, left bool) int64 {
	if count < 0 {
		count = -count
		left = !left
	}
	if left {
		return v << uint64(count)
	}
	return v >> uint64(count)
}

func compare(op tokenKind, x, y value, asDouble bool) bool {
	var c int
	if asDouble {
		a, b := x.float64(), y.float64()
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		case a != b:
			// NaN compares unequal to everything.
			return op == tokNotEqual
		}
	} else {
		switch {
		case x.i < y.i:
			c = -1
		case x.i > y.i:
			c = 1
		}
	}

	switch op {
	case tokEqual:
		return c == 0
	case tokNotEqual:
		return c != 0
	case tokLess:
		return c < 0
	case tokGreater:
		return c > 0
	case tokLessEqual:
		return c <= 0
	default:
		return c >= 0
	}
}

type function func(v value) value

var functions = map[string]function{
	"SIN":   floatFunc(math.Sin),
	"COS":   floatFunc(math.Cos),
	"TAN":   floatFunc(math.Tan),
	"ASIN":  floatFunc(math.Asin),
	"ACOS":  floatFunc(math.Acos),
	"ATAN":  floatFunc(math.Atan),
	"EXP":   floatFunc(math.Exp),
	"LN":    floatFunc(math.Log),
	"LG":    floatFunc(math.Log10),
	"SQRT":  floatFunc(math.Sqrt),
	"TRUNC": floatFunc(math.Trunc),
	"FLOOR": floatFunc(math.Floor),
	"CEIL":  floatFunc(math.Ceil),
	"ABS": func(v value) value {
		if v.isDouble {
			return doubleValue(math.Abs(v.f))
		}
		if v.i < 0 {
			return intValue(-v.i)
		}
		return v
	},
	"NEG": func(v value) value {
		if v.isDouble {
			return doubleValue(-v.f)
		}
		return intValue(-v.i)
	},
	"SGN": func(v value) value {
		f := v.float64()
		switch {
		case f > 0:
			return intValue(1)
		case f < 0:
			return intValue(-1)
		default:
			return intValue(0)
		}
	},
}

func floatFunc(f func(float64) float64) function {
	return func(v value) value {
		return doubleValue(f(v.float64()))
	}
}

type callNode struct {
	name string
	fn   function
	arg  node
}

func (n *callNode) eval(e *env) (value, error) {
	v, err := n.arg.eval(e)
	if err != nil {
		return value{}, err
	}
	return n.fn(v), nil
}
