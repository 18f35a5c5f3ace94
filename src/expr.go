package sifzz

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// The expression grammar evaluates the text left after variable substitution:
// literals, identifiers, unary and binary operators, chained comparisons,
// and/or/not, and calls into the function table.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
)

type exprToken struct {
	kind  tokenKind
	text  string
	value interface{}
	pos   int
}

// exprScope resolves names and calls during evaluation
type exprScope interface {
	lookup(name string) (interface{}, bool)
	call(name string, args []interface{}) (interface{}, error)
}

var twoCharOps = []string{"**", "//", "==", "!=", "<=", ">="}

func tokenize(src string) ([]exprToken, error) {
	var tokens []exprToken
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			isFloat := false
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			if i < len(runes) && runes[i] == '.' {
				isFloat = true
				i++
				for i < len(runes) && unicode.IsDigit(runes[i]) {
					i++
				}
			}
			if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
				j := i + 1
				if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
					j++
				}
				if j < len(runes) && unicode.IsDigit(runes[j]) {
					isFloat = true
					i = j
					for i < len(runes) && unicode.IsDigit(runes[i]) {
						i++
					}
				}
			}
			text := string(runes[start:i])
			tok := exprToken{kind: tokNumber, text: text, pos: start}
			if isFloat {
				f, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return nil, fmt.Errorf("bad number %q", text)
				}
				tok.value = f
			} else {
				n, err := strconv.ParseInt(text, 10, 64)
				if err != nil {
					// too large for int64
					f, ferr := strconv.ParseFloat(text, 64)
					if ferr != nil {
						return nil, fmt.Errorf("bad number %q", text)
					}
					tok.value = f
				} else {
					tok.value = n
				}
			}
			tokens = append(tokens, tok)
		case r == '"' || r == '\'':
			s, next, err := scanString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, exprToken{kind: tokString, text: string(runes[i:next]), value: s, pos: i})
			i = next
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			tokens = append(tokens, exprToken{kind: tokIdent, text: string(runes[start:i]), pos: start})
		default:
			matched := false
			if i+1 < len(runes) {
				pair := string(runes[i : i+2])
				for _, op := range twoCharOps {
					if pair == op {
						tokens = append(tokens, exprToken{kind: tokOp, text: op, pos: i})
						i += 2
						matched = true
						break
					}
				}
			}
			if matched {
				continue
			}
			if strings.ContainsRune("+-*/%<>(),", r) {
				tokens = append(tokens, exprToken{kind: tokOp, text: string(r), pos: i})
				i++
				continue
			}
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}
	tokens = append(tokens, exprToken{kind: tokEOF, pos: len(runes)})
	return tokens, nil
}

// scanString reads a quoted literal starting at runes[start], returning the
// decoded text and the index just past the closing quote
func scanString(runes []rune, start int) (string, int, error) {
	quote := runes[start]
	var sb strings.Builder
	i := start + 1
	for i < len(runes) {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) {
			i++
			switch runes[i] {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '\\':
				sb.WriteRune('\\')
			case '"':
				sb.WriteRune('"')
			case '\'':
				sb.WriteRune('\'')
			default:
				sb.WriteRune('\\')
				sb.WriteRune(runes[i])
			}
			i++
			continue
		}
		if r == quote {
			return sb.String(), i + 1, nil
		}
		sb.WriteRune(r)
		i++
	}
	return "", 0, fmt.Errorf("unterminated string")
}

// AST

type exprNode interface {
	eval(s exprScope) (interface{}, error)
}

type literalNode struct{ value interface{} }

type identNode struct{ name string }

type unaryNode struct {
	op      string
	operand exprNode
}

type binaryNode struct {
	op          string
	left, right exprNode
}

type logicNode struct {
	op          string // "and" / "or"
	left, right exprNode
}

type notNode struct{ operand exprNode }

type compareNode struct {
	operands []exprNode
	ops      []string
}

type callNode struct {
	name string
	args []exprNode
}

func (n *literalNode) eval(exprScope) (interface{}, error) { return n.value, nil }

func (n *identNode) eval(s exprScope) (interface{}, error) {
	if v, ok := s.lookup(n.name); ok {
		return v, nil
	}
	return nil, fmt.Errorf("name %q is not defined", n.name)
}

func (n *unaryNode) eval(s exprScope) (interface{}, error) {
	v, err := n.operand.eval(s)
	if err != nil {
		return nil, err
	}
	if !isNumeric(v) {
		return nil, fmt.Errorf("bad operand type for unary %s", n.op)
	}
	if n.op == "+" {
		if b, ok := v.(bool); ok {
			v, _ = intOnly(b)
		}
		return v, nil
	}
	if f, ok := v.(float64); ok {
		return -f, nil
	}
	i, _ := intOnly(v)
	if i == math.MinInt64 {
		return -float64(i), nil
	}
	return -i, nil
}

func (n *binaryNode) eval(s exprScope) (interface{}, error) {
	l, err := n.left.eval(s)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(s)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "+":
		ls, lok := l.(string)
		rs, rok := r.(string)
		if lok && rok {
			return ls + rs, nil
		}
	case "*":
		if str, ok := l.(string); ok {
			if count, ok := intOnly(r); ok {
				return repeatString(str, count)
			}
		}
		if str, ok := r.(string); ok {
			if count, ok := intOnly(l); ok {
				return repeatString(str, count)
			}
		}
	}
	v, ok := arith(n.op, l, r)
	if !ok {
		return nil, fmt.Errorf("unsupported operands for %s: %s and %s", n.op, FormatValue(l), FormatValue(r))
	}
	return v, nil
}

// maxRepeat caps the length of a string built with *
const maxRepeat = 16 << 20

func repeatString(str string, count int64) (interface{}, error) {
	if count <= 0 || str == "" {
		return "", nil
	}
	if count > int64(maxRepeat/len(str)) {
		return nil, fmt.Errorf("repeated string would exceed %d bytes", maxRepeat)
	}
	return strings.Repeat(str, int(count)), nil
}

func (n *logicNode) eval(s exprScope) (interface{}, error) {
	l, err := n.left.eval(s)
	if err != nil {
		return nil, err
	}
	if n.op == "and" {
		if !Truthy(l) {
			return l, nil
		}
	} else if Truthy(l) {
		return l, nil
	}
	return n.right.eval(s)
}

func (n *notNode) eval(s exprScope) (interface{}, error) {
	v, err := n.operand.eval(s)
	if err != nil {
		return nil, err
	}
	return !Truthy(v), nil
}

func (n *compareNode) eval(s exprScope) (interface{}, error) {
	left, err := n.operands[0].eval(s)
	if err != nil {
		return nil, err
	}
	for i, op := range n.ops {
		right, err := n.operands[i+1].eval(s)
		if err != nil {
			return nil, err
		}
		var holds bool
		switch op {
		case "==":
			holds = valuesEqual(left, right)
		case "!=":
			holds = !valuesEqual(left, right)
		default:
			c, ok := compareValues(left, right)
			if !ok {
				return nil, fmt.Errorf("cannot compare %s and %s", FormatValue(left), FormatValue(right))
			}
			switch op {
			case "<":
				holds = c < 0
			case "<=":
				holds = c <= 0
			case ">":
				holds = c > 0
			case ">=":
				holds = c >= 0
			}
		}
		if !holds {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func (n *callNode) eval(s exprScope) (interface{}, error) {
	args := make([]interface{}, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(s)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return s.call(n.name, args)
}

// Parser

type exprParser struct {
	tokens []exprToken
	pos    int
}

// parseExpr builds an expression tree from source text
func parseExpr(src string) (exprNode, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, fmt.Errorf("empty expression")
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d", tok.text, tok.pos)
	}
	return node, nil
}

func (p *exprParser) peek() exprToken { return p.tokens[p.pos] }

func (p *exprParser) next() exprToken {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *exprParser) isKeyword(word string) bool {
	tok := p.peek()
	return tok.kind == tokIdent && tok.text == word
}

func (p *exprParser) isOp(ops ...string) bool {
	tok := p.peek()
	if tok.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if tok.text == op {
			return true
		}
	}
	return false
}

func (p *exprParser) parseOr() (exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (exprNode, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logicNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseNot() (exprNode, error) {
	if p.isKeyword("not") {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *exprParser) parseComparison() (exprNode, error) {
	first, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	cmp := &compareNode{operands: []exprNode{first}}
	for p.isOp("==", "!=", "<", "<=", ">", ">=") {
		op := p.next().text
		right, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		cmp.ops = append(cmp.ops, op)
		cmp.operands = append(cmp.operands, right)
	}
	if len(cmp.ops) == 0 {
		return first, nil
	}
	return cmp, nil
}

func (p *exprParser) parseSum() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+", "-") {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseTerm() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*", "/", "//", "%") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (exprNode, error) {
	if p.isOp("-", "+") {
		op := p.next().text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePower()
}

// parsePower is right-associative and binds tighter than a unary minus on its left
func (p *exprParser) parsePower() (exprNode, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.isOp("**") {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: "**", left: base, right: exp}, nil
	}
	return base, nil
}

func (p *exprParser) parsePrimary() (exprNode, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber, tokString:
		return &literalNode{value: tok.value}, nil
	case tokIdent:
		switch tok.text {
		case "True", "true":
			return &literalNode{value: true}, nil
		case "False", "false":
			return &literalNode{value: false}, nil
		case "None":
			return &literalNode{value: nil}, nil
		case "and", "or", "not":
			return nil, fmt.Errorf("unexpected %q", tok.text)
		}
		if p.isOp("(") {
			p.next()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &callNode{name: tok.text, args: args}, nil
		}
		return &identNode{name: tok.text}, nil
	case tokOp:
		if tok.text == "(" {
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if !p.isOp(")") {
				return nil, fmt.Errorf("missing )")
			}
			p.next()
			return inner, nil
		}
	}
	if tok.kind == tokEOF {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q at %d", tok.text, tok.pos)
}

func (p *exprParser) parseArgs() ([]exprNode, error) {
	var args []exprNode
	if p.isOp(")") {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.isOp(",") {
			p.next()
			continue
		}
		if p.isOp(")") {
			p.next()
			return args, nil
		}
		return nil, fmt.Errorf("expected , or ) in call")
	}
}

// evalGrammar parses and evaluates src in one step
func evalGrammar(src string, s exprScope) (v interface{}, err error) {
	node, err := parseExpr(src)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			v, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return node.eval(s)
}
