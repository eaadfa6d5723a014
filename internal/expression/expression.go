// Package expression evaluates the boolean condition expressions used by
// iterate, repeat and timer containers, e.g. "i lt 5" or
// "(count gt= 3) and (status = 'done')".
//
// Operators: lt, lt=, gt, gt=, =, != (and their symbolic forms <, <=, >, >=,
// ==), combined with and / or and parentheses. Operands are numbers, bare
// words or single-quoted strings; true and false are boolean literals.
package expression

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokOpen
	tokClose
)

type token struct {
	kind tokenKind
	text string
}

// Evaluate parses and evaluates expr.
func Evaluate(expr string) (bool, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return false, err
	}
	if len(tokens) == 0 {
		return false, fmt.Errorf("empty boolean expression")
	}

	p := &parser{tokens: tokens, expr: expr}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos != len(p.tokens) {
		return false, fmt.Errorf("unexpected token '%s' in expression '%s'", p.tokens[p.pos].text, expr)
	}
	return result, nil
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	runes := []rune(expr)
	for i := 0; i < len(runes); {
		ch := runes[i]
		switch {
		case unicode.IsSpace(ch):
			i++
		case ch == '(':
			tokens = append(tokens, token{kind: tokOpen, text: "("})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokClose, text: ")"})
			i++
		case ch == '\'':
			end := i + 1
			for end < len(runes) && runes[end] != '\'' {
				end++
			}
			if end >= len(runes) {
				return nil, fmt.Errorf("unterminated string in expression '%s'", expr)
			}
			tokens = append(tokens, token{kind: tokString, text: string(runes[i+1 : end])})
			i = end + 1
		default:
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) && runes[i] != '(' && runes[i] != ')' {
				i++
			}
			tokens = append(tokens, token{kind: tokWord, text: string(runes[start:i])})
		}
	}
	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
	expr   string
}

func (p *parser) peekKeyword(word string) bool {
	if p.pos >= len(p.tokens) {
		return false
	}
	t := p.tokens[p.pos]
	return t.kind == tokWord && strings.EqualFold(t.text, word)
}

func (p *parser) parseOr() (bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.peekKeyword("or") {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

func (p *parser) parseAnd() (bool, error) {
	left, err := p.parseComparison()
	if err != nil {
		return false, err
	}
	for p.peekKeyword("and") {
		p.pos++
		right, err := p.parseComparison()
		if err != nil {
			return false, err
		}
		left = left && right
	}
	return left, nil
}

func (p *parser) parseComparison() (bool, error) {
	if p.pos >= len(p.tokens) {
		return false, fmt.Errorf("unexpected end of expression '%s'", p.expr)
	}

	if p.tokens[p.pos].kind == tokOpen {
		p.pos++
		v, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if p.pos >= len(p.tokens) || p.tokens[p.pos].kind != tokClose {
			return false, fmt.Errorf("missing ')' in expression '%s'", p.expr)
		}
		p.pos++
		return v, nil
	}

	left := p.tokens[p.pos]
	if left.kind == tokClose {
		return false, fmt.Errorf("unexpected ')' in expression '%s'", p.expr)
	}
	p.pos++

	if p.pos >= len(p.tokens) || !isOperator(p.tokens[p.pos]) {
		return literal(left, p.expr)
	}

	op := p.tokens[p.pos].text
	p.pos++
	if p.pos >= len(p.tokens) {
		return false, fmt.Errorf("missing right operand for '%s' in expression '%s'", op, p.expr)
	}
	right := p.tokens[p.pos]
	if right.kind == tokOpen || right.kind == tokClose {
		return false, fmt.Errorf("invalid right operand for '%s' in expression '%s'", op, p.expr)
	}
	p.pos++

	return compare(left.text, op, right.text)
}

func literal(t token, expr string) (bool, error) {
	if t.kind == tokWord {
		switch strings.ToLower(t.text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("'%s' is not a boolean value in expression '%s'", t.text, expr)
}

var operators = map[string]string{
	"lt": "<", "<": "<",
	"lt=": "<=", "<=": "<=",
	"gt": ">", ">": ">",
	"gt=": ">=", ">=": ">=",
	"=": "==", "==": "==",
	"!=": "!=",
}

func isOperator(t token) bool {
	if t.kind != tokWord {
		return false
	}
	_, ok := operators[strings.ToLower(t.text)]
	return ok
}

func compare(left, op, right string) (bool, error) {
	canonical := operators[strings.ToLower(op)]

	l, lerr := strconv.ParseFloat(left, 64)
	r, rerr := strconv.ParseFloat(right, 64)
	if lerr == nil && rerr == nil {
		switch canonical {
		case "<":
			return l < r, nil
		case "<=":
			return l <= r, nil
		case ">":
			return l > r, nil
		case ">=":
			return l >= r, nil
		case "==":
			return l == r, nil
		case "!=":
			return l != r, nil
		}
	}

	switch canonical {
	case "==":
		return left == right, nil
	case "!=":
		return left != right, nil
	}
	return false, fmt.Errorf("operator '%s' requires numeric operands, got '%s' and '%s'", op, left, right)
}
