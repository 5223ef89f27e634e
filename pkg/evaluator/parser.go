package evaluator

import (
	"fmt"
	"math"
	"strings"
)

type parser struct {
	expr   string
	tokens []token
	pos    int
	vars   map[string]struct{}
}

// binaryLevels lists binary operators from lowest to highest precedence.
// Power is handled separately because it is right associative.
var binaryLevels = [][]tokenKind{
	{tokLogicalOr},
	{tokLogicalAnd},
	{tokBitOr},
	{tokBitXor},
	{tokBitAnd},
	{tokEqual, tokNotEqual},
	{tokLess, tokGreater, tokLessEqual, tokGreaterEqual},
	{tokShiftLeft, tokShiftRight},
	{tokPlus, tokMinus},
	{tokMul, tokDiv, tokRem},
}

func parse(expr string) (node, map[string]struct{}, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil, &ParseError{Expression: expr, Pos: 0, Msg: "empty expression"}
	}

	tokens, err := tokenize(expr)
	if err != nil {
		return nil, nil, err
	}

	p := &parser{expr: expr, tokens: tokens, vars: make(map[string]struct{})}
	root, err := p.parseTernary()
	if err != nil {
		return nil, nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, nil, p.errorf(tok, "unexpected %s", describe(tok))
	}
	return root, p.vars, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, p.errorf(tok, "expected %s, found %s", kind, describe(tok))
	}
	return tok, nil
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &ParseError{Expression: p.expr, Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseTernary() (node, error) {
	cond, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokQuestion {
		return cond, nil
	}
	p.next()

	then, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon); err != nil {
		return nil, err
	}
	els, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &ternaryNode{cond: cond, then: then, els: els}, nil
}

func (p *parser) parseBinary(level int) (node, error) {
	if level == len(binaryLevels) {
		return p.parsePower()
	}

	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if !containsKind(binaryLevels[level], tok.kind) {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tok.kind, x: left, y: right}
	}
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokPow {
		return base, nil
	}
	p.next()
	exp, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: tokPow, x: base, y: exp}, nil
}

func (p *parser) parseUnary() (node, error) {
	switch tok := p.peek(); tok.kind {
	case tokMinus, tokPlus, tokBitNot:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: tok.kind, x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokInt:
		return &literalNode{v: intValue(tok.i)}, nil
	case tokDouble:
		return &literalNode{v: doubleValue(tok.f)}, nil
	case tokLParen:
		inner, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case tokIdent:
		return p.parseIdent(tok)
	case tokEOF:
		return nil, p.errorf(tok, "unexpected end of expression")
	default:
		return nil, p.errorf(tok, "unexpected %s", describe(tok))
	}
}

func (p *parser) parseIdent(tok token) (node, error) {
	if p.peek().kind == tokLParen {
		fn, ok := functions[strings.ToUpper(tok.text)]
		if !ok {
			return nil, p.errorf(tok, "unknown function %s", tok.text)
		}
		p.next()
		arg, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &callNode{name: strings.ToUpper(tok.text), fn: fn, arg: arg}, nil
	}

	v := &variableNode{name: tok.text}
	switch tok.text {
	case "PI":
		v.fallback, v.hasFallback = doubleValue(math.Pi), true
	case "E":
		v.fallback, v.hasFallback = doubleValue(math.E), true
	default:
		p.vars[tok.text] = struct{}{}
	}
	return v, nil
}

func containsKind(kinds []tokenKind, k tokenKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func describe(tok token) string {
	if tok.text != "" {
		return fmt.Sprintf("%q", tok.text)
	}
	return tok.kind.String()
}
