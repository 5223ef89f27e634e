package evaluator

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokDouble
	tokIdent
	tokLParen
	tokRParen
	tokQuestion
	tokColon
	tokLogicalOr
	tokLogicalAnd
	tokBitOr
	tokBitXor
	tokBitAnd
	tokBitNot
	tokEqual
	tokNotEqual
	tokLess
	tokGreater
	tokLessEqual
	tokGreaterEqual
	tokShiftLeft
	tokShiftRight
	tokPlus
	tokMinus
	tokMul
	tokDiv
	tokRem
	tokPow
)

var tokenNames = map[tokenKind]string{
	tokEOF:          "end of expression",
	tokInt:          "integer",
	tokDouble:       "number",
	tokIdent:        "identifier",
	tokLParen:       "(",
	tokRParen:       ")",
	tokQuestion:     "?",
	tokColon:        ":",
	tokLogicalOr:    "||",
	tokLogicalAnd:   "&&",
	tokBitOr:        "|",
	tokBitXor:       "^",
	tokBitAnd:       "&",
	tokBitNot:       "~",
	tokEqual:        "=",
	tokNotEqual:     "<>",
	tokLess:         "<",
	tokGreater:      ">",
	tokLessEqual:    "<=",
	tokGreaterEqual: ">=",
	tokShiftLeft:    "<<",
	tokShiftRight:   ">>",
	tokPlus:         "+",
	tokMinus:        "-",
	tokMul:          "*",
	tokDiv:          "/",
	tokRem:          "%",
	tokPow:          "**",
}

func (k tokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return "unknown"
}

type token struct {
	kind tokenKind
	pos  int
	text string
	i    int64
	f    float64
}

// operators ordered so that two-character forms match before their prefixes.
var operators = []struct {
	text string
	kind tokenKind
}{
	{"**", tokPow},
	{"||", tokLogicalOr},
	{"&&", tokLogicalAnd},
	{"<>", tokNotEqual},
	{"<=", tokLessEqual},
	{">=", tokGreaterEqual},
	{"<<", tokShiftLeft},
	{">>", tokShiftRight},
	{"(", tokLParen},
	{")", tokRParen},
	{"?", tokQuestion},
	{":", tokColon},
	{"|", tokBitOr},
	{"^", tokBitXor},
	{"&", tokBitAnd},
	{"~", tokBitNot},
	{"=", tokEqual},
	{"<", tokLess},
	{">", tokGreater},
	{"+", tokPlus},
	{"-", tokMinus},
	{"*", tokMul},
	{"/", tokDiv},
	{"%", tokRem},
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue
		case isDigit(c) || (c == '.' && i+1 < len(expr) && isDigit(expr[i+1])):
			tok, n, err := lexNumber(expr, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i += n
			continue
		case isIdentStart(c):
			start := i
			for i < len(expr) && isIdentPart(expr[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, pos: start, text: expr[start:i]})
			continue
		}

		matched := false
		for _, op := range operators {
			if strings.HasPrefix(expr[i:], op.text) {
				tokens = append(tokens, token{kind: op.kind, pos: i, text: op.text})
				i += len(op.text)
				matched = true
				break
			}
		}
		if !matched {
			return nil, &ParseError{Expression: expr, Pos: i, Msg: "unknown character " + strconv.QuoteRune(rune(c))}
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(expr)})
	return tokens, nil
}

func lexNumber(expr string, start int) (token, int, error) {
	i := start
	if strings.HasPrefix(expr[i:], "0x") || strings.HasPrefix(expr[i:], "0X") {
		i += 2
		for i < len(expr) && isHexDigit(expr[i]) {
			i++
		}
		text := expr[start:i]
		v, err := strconv.ParseUint(text[2:], 16, 64)
		if err != nil || len(text) == 2 {
			return token{}, 0, &ParseError{Expression: expr, Pos: start, Msg: "invalid hexadecimal literal " + text}
		}
		return token{kind: tokInt, pos: start, text: text, i: int64(v)}, i - start, nil
	}

	isDouble := false
	for i < len(expr) && isDigit(expr[i]) {
		i++
	}
	if i < len(expr) && expr[i] == '.' {
		isDouble = true
		i++
		for i < len(expr) && isDigit(expr[i]) {
			i++
		}
	}
	if i < len(expr) && (expr[i] == 'e' || expr[i] == 'E') {
		j := i + 1
		if j < len(expr) && (expr[j] == '+' || expr[j] == '-') {
			j++
		}
		if j < len(expr) && isDigit(expr[j]) {
			isDouble = true
			i = j
			for i < len(expr) && isDigit(expr[i]) {
				i++
			}
		}
	}

	text := expr[start:i]
	if isDouble {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, 0, &ParseError{Expression: expr, Pos: start, Msg: "invalid number " + text}
		}
		return token{kind: tokDouble, pos: start, text: text, f: f}, i - start, nil
	}

	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token{}, 0, &ParseError{Expression: expr, Pos: start, Msg: "integer literal out of range " + text}
	}
	return token{kind: tokInt, pos: start, text: text, i: v}, i - start, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}
