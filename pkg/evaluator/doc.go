// Package evaluator parses and evaluates the small arithmetic expressions used by
// derived camera feature nodes (PayloadSize, AcquisitionFrameRateMax, ...).
//
// # Usage
//
// Parse once, bind variables, evaluate as often as needed:
//
//	ev, err := evaluator.New("WIDTH * HEIGHT * ((PIXELFORMAT >> 16) & 0xFF) / 8")
//	if err != nil {
//	    return err // *evaluator.ParseError, errors.Is(err, evaluator.ErrParse)
//	}
//	ev.SetIntVariable("WIDTH", 128)
//	ev.SetIntVariable("HEIGHT", 128)
//	ev.SetIntVariable("PIXELFORMAT", 0x01080001)
//	payload, err := ev.EvaluateAsInt64() // 16384
//
// # Operators
//
// From lowest to highest precedence:
//
//	?:            ternary (right associative)
//	||            logical or
//	&&            logical and
//	|             bitwise or
//	^             bitwise xor
//	&             bitwise and
//	= <>          equality
//	< > <= >=     comparison
//	<< >>         shifts
//	+ -           addition, subtraction
//	* / %         multiplication, division, remainder
//	**            power (right associative)
//	- + ~         unary minus, plus, bitwise not
//
// Functions (case-insensitive): SIN COS TAN ASIN ACOS ATAN ABS SGN NEG EXP LN LG SQRT
// TRUNC FLOOR CEIL. Constants PI and E apply when no variable of that name is bound.
//
// # Numeric rules
//
// Literals and variables are either int64 or float64. Addition, subtraction,
// multiplication and negation stay integral while both operands are int64 and promote to
// float64 otherwise. Division and power are always computed as float64. Remainder,
// shifts and bitwise operators work on int64, truncating float64 operands. Comparisons
// and logical operators produce int64 0 or 1.
//
// EvaluateAsInt64 truncates a float64 result toward zero, so "1+2*4.4" yields 9 while
// EvaluateAsDouble yields 9.8.
//
// # Division by zero
//
// EvaluateAsInt64 fails with ErrDivisionByZero on a zero divisor. EvaluateAsDouble lets
// "/" follow IEEE-754 (±Inf or NaN). "%" is an integer operator and fails with
// ErrDivisionByZero in both modes.
package evaluator
