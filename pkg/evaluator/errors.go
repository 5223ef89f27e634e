package evaluator

import (
	"errors"
	"fmt"
)

// Evaluation errors.
var (
	ErrParse             = errors.New("parse error")
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrNotRepresentable  = errors.New("result not representable as int64")
)

// ParseError reports malformed expression text and the byte offset where it was found.
type ParseError struct {
	Expression string
	Pos        int
	Msg        string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d in %q: %s", e.Pos, e.Expression, e.Msg)
}

// Is makes errors.Is(err, ErrParse) match any *ParseError.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
