package sifzz

import (
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Evaluator resolves expression text to values and condition text to booleans.
// It never fails: unresolvable expressions yield their own text and
// unresolvable conditions yield false.
type Evaluator struct {
	host   *Host
	logger *Logger
}

var (
	callExprRe   = regexp.MustCompile(`^([A-Za-z_]\w*)\s*\((.*)\)$`)
	caseExprRe   = regexp.MustCompile(`^(\w+)\s+(uppercase|lowercase)$`)
	lengthExprRe = regexp.MustCompile(`^length of\s+(\w+)$`)
)

// Eval evaluates expr against env
func (ev *Evaluator) Eval(env *Environment, expr string) interface{} {
	expr = strings.TrimSpace(expr)
	v, err := ev.eval(env, expr)
	if err != nil {
		ev.logger.TraceCat(CatEval, "%q left as text: %v", expr, err)
		return expr
	}
	return v
}

func (ev *Evaluator) eval(env *Environment, expr string) (interface{}, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	// single quoted literal
	if expr[0] == '"' || expr[0] == '\'' {
		if tokens, err := tokenize(expr); err == nil && len(tokens) == 2 && tokens[0].kind == tokString {
			return tokens[0].value, nil
		}
	}

	// name(args) spanning the whole text
	if m := callExprRe.FindStringSubmatch(expr); m != nil {
		if fn, ok := ev.host.registry.Function(m[1]); ok && closingParen(expr, strings.Index(expr, "(")) == len(expr)-1 {
			var args []interface{}
			if strings.TrimSpace(m[2]) != "" {
				for _, part := range splitTopLevel(m[2], ',') {
					args = append(args, ev.Eval(env, part))
				}
			}
			v, err := callExprFunc(fn, args)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m[1], err)
			}
			return normalize(v), nil
		}
	}

	// extension value forms
	c := ev.host.newContext(nil, env, expr, nil)
	if v, matched, err := ev.host.registry.evalValue(c, expr); matched {
		return v, err
	}

	if m := caseExprRe.FindStringSubmatch(expr); m != nil {
		if v, ok := env.Get(m[1]); ok {
			if m[2] == "uppercase" {
				return strings.ToUpper(FormatValue(v)), nil
			}
			return strings.ToLower(FormatValue(v)), nil
		}
	}

	if m := lengthExprRe.FindStringSubmatch(expr); m != nil {
		if v, ok := env.Get(m[1]); ok {
			return int64(utf8.RuneCountInString(FormatValue(v))), nil
		}
		if items, ok := env.List(m[1]); ok {
			return int64(len(items)), nil
		}
	}

	if v, ok := parseNumberLiteral(expr); ok {
		return v, nil
	}

	if v, ok := env.Get(expr); ok {
		return v, nil
	}

	// a top-level + always means text concatenation of the parts
	if hasTopLevel(expr, '+') {
		var sb strings.Builder
		for _, part := range splitTopLevel(expr, '+') {
			sb.WriteString(FormatValue(ev.Eval(env, part)))
		}
		return sb.String(), nil
	}

	substituted := ev.substitute(env, expr, false)
	ev.logger.TraceCat(CatEval, "%q -> %q", expr, substituted)
	return evalGrammar(substituted, &grammarScope{ev: ev})
}

// conditionPhrases are rewritten in order, so longer phrases come first
var conditionPhrases = []struct{ phrase, op string }{
	{" is greater than or equal to ", " >= "},
	{" is less than or equal to ", " <= "},
	{" is greater than ", " > "},
	{" is less than ", " < "},
	{" is not equal to ", " != "},
	{" is equal to ", " == "},
	{" is not ", " != "},
	{" greater than or equal to ", " >= "},
	{" less than or equal to ", " <= "},
	{" greater than ", " > "},
	{" less than ", " < "},
	{" equals ", " == "},
	{" is ", " == "},
}

// Condition evaluates a condition against env
func (ev *Evaluator) Condition(env *Environment, text string) bool {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, " contains "); idx >= 0 {
		left := strings.TrimSpace(text[:idx])
		right := strings.TrimSpace(text[idx+len(" contains "):])
		item := ev.Eval(env, right)
		if items, ok := env.List(left); ok {
			for _, it := range items {
				if valuesEqual(it, item) {
					return true
				}
			}
			return false
		}
		return strings.Contains(FormatValue(ev.Eval(env, left)), FormatValue(item))
	}

	// a value form spanning the whole condition, e.g. "file X exists"
	c := ev.host.newContext(nil, env, text, nil)
	if v, matched, err := ev.host.registry.evalValue(c, text); matched {
		if err != nil {
			ev.logger.DebugCat(CatEval, "condition %q is false: %v", text, err)
			return false
		}
		return Truthy(v)
	}

	rewritten := rewriteOutsideQuotes(text, func(segment string) string {
		for _, p := range conditionPhrases {
			segment = strings.ReplaceAll(segment, p.phrase, p.op)
		}
		return segment
	})
	substituted := ev.substitute(env, rewritten, true)
	ev.logger.DebugCat(CatEval, "condition %q -> %q", text, substituted)

	v, err := evalGrammar(substituted, &grammarScope{ev: ev})
	if err != nil {
		ev.logger.DebugCat(CatEval, "condition %q is false: %v", text, err)
		return false
	}
	return Truthy(v)
}

// substitute replaces identifier tokens naming known variables with their
// printed values. Quoted text and function names before "(" are left alone.
func (ev *Evaluator) substitute(env *Environment, text string, quoteStrings bool) string {
	var sb strings.Builder
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			end := skipQuoted(runes, i)
			sb.WriteString(string(runes[i:end]))
			i = end
		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && isWordRune(runes[i]) {
				i++
			}
			sb.WriteString(string(runes[start:i]))
		case isWordRune(r):
			start := i
			for i < len(runes) && isWordRune(runes[i]) {
				i++
			}
			name := string(runes[start:i])
			v, known := env.Get(name)
			if known && followedByParen(runes, i) {
				if _, isFunc := ev.host.registry.Function(name); isFunc {
					known = false
				}
			}
			switch {
			case !known:
				sb.WriteString(name)
			case quoteStrings:
				sb.WriteString(QuoteValue(v))
			default:
				sb.WriteString(FormatValue(v))
			}
		default:
			sb.WriteRune(r)
			i++
		}
	}
	return sb.String()
}

type grammarScope struct {
	ev *Evaluator
}

// lookup sees no variables: known ones were substituted as text already
func (s *grammarScope) lookup(string) (interface{}, bool) { return nil, false }

func (s *grammarScope) call(name string, args []interface{}) (interface{}, error) {
	fn, ok := s.ev.host.registry.Function(name)
	if !ok {
		return nil, fmt.Errorf("name %q is not defined", name)
	}
	v, err := callExprFunc(fn, args)
	return normalize(v), err
}

// callExprFunc runs an expression function, turning a panic into an error
func callExprFunc(fn ExprFunc, args []interface{}) (v interface{}, err error) {
	err = safeCall(func() error {
		var callErr error
		v, callErr = fn.Call(args)
		return callErr
	})
	return v, err
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func followedByParen(runes []rune, i int) bool {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i < len(runes) && runes[i] == '('
}

// skipQuoted returns the index past the quoted run starting at i, or len(runes)
func skipQuoted(runes []rune, i int) int {
	quote := runes[i]
	i++
	for i < len(runes) {
		if runes[i] == '\\' {
			i += 2
			continue
		}
		if runes[i] == quote {
			return i + 1
		}
		i++
	}
	return len(runes)
}

// rewriteOutsideQuotes applies fn to every unquoted stretch of text
func rewriteOutsideQuotes(text string, fn func(string) string) string {
	var sb strings.Builder
	runes := []rune(text)
	start := 0
	i := 0
	for i < len(runes) {
		if runes[i] == '"' || runes[i] == '\'' {
			sb.WriteString(fn(string(runes[start:i])))
			end := skipQuoted(runes, i)
			sb.WriteString(string(runes[i:end]))
			i = end
			start = i
			continue
		}
		i++
	}
	sb.WriteString(fn(string(runes[start:])))
	return sb.String()
}

// splitTopLevel splits text at sep occurring outside quotes and parentheses
func splitTopLevel(text string, sep rune) []string {
	var parts []string
	runes := []rune(text)
	depth := 0
	start := 0
	i := 0
	for i < len(runes) {
		switch r := runes[i]; {
		case r == '"' || r == '\'':
			i = skipQuoted(runes, i)
			continue
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == sep && depth == 0:
			parts = append(parts, strings.TrimSpace(string(runes[start:i])))
			start = i + 1
		}
		i++
	}
	return append(parts, strings.TrimSpace(string(runes[start:])))
}

func hasTopLevel(text string, sep rune) bool {
	return len(splitTopLevel(text, sep)) > 1
}

// closingParen returns the byte index of the parenthesis closing the one at
// open, or -1
func closingParen(text string, open int) int {
	if open < 0 {
		return -1
	}
	depth := 0
	inQuote := byte(0)
	for i := open; i < len(text); i++ {
		ch := text[i]
		if inQuote != 0 {
			if ch == '\\' {
				i++
			} else if ch == inQuote {
				inQuote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			inQuote = ch
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// core expression functions and value forms

type coreUnit struct{}

func (coreUnit) Name() string        { return "core" }
func (coreUnit) Description() string { return "Built-in expression functions" }

func (coreUnit) Commands(*Host) []Command { return nil }

func (coreUnit) Functions(*Host) []ExprFunc {
	return []ExprFunc{
		{Name: "sqrt", Description: "Square root", Call: oneNumber(func(f float64) (interface{}, error) {
			if f < 0 {
				return nil, fmt.Errorf("math domain error")
			}
			return math.Sqrt(f), nil
		})},
		{Name: "round", Description: "Round half to even; round(x, digits) keeps a float", Call: builtinRound},
		{Name: "abs", Description: "Absolute value", Call: func(args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("abs takes 1 argument")
			}
			switch v := args[0].(type) {
			case int64:
				if v < 0 {
					return -v, nil
				}
				return v, nil
			case float64:
				return math.Abs(v), nil
			case bool:
				n, _ := intOnly(v)
				return n, nil
			}
			return nil, fmt.Errorf("bad operand for abs: %s", FormatValue(args[0]))
		}},
		{Name: "int", Description: "Convert to an integer", Call: func(args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("int takes 1 argument")
			}
			if s, ok := args[0].(string); ok {
				n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid literal for int: %q", s)
				}
				return n, nil
			}
			n, ok := toInt64(args[0])
			if !ok {
				return nil, fmt.Errorf("cannot convert %s to int", FormatValue(args[0]))
			}
			return n, nil
		}},
		{Name: "float", Description: "Convert to a float", Call: func(args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("float takes 1 argument")
			}
			if s, ok := args[0].(string); ok {
				f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err != nil {
					return nil, fmt.Errorf("could not convert string to float: %q", s)
				}
				return f, nil
			}
			f, ok := toFloat64(args[0])
			if !ok {
				return nil, fmt.Errorf("cannot convert %s to float", FormatValue(args[0]))
			}
			return f, nil
		}},
		{Name: "str", Description: "Convert to text", Call: func(args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("str takes 1 argument")
			}
			return FormatValue(args[0]), nil
		}},
		{Name: "len", Description: "Length of a text", Call: func(args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("len takes 1 argument")
			}
			if items, ok := args[0].([]interface{}); ok {
				return int64(len(items)), nil
			}
			s, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("object has no len()")
			}
			return int64(utf8.RuneCountInString(s)), nil
		}},
		{Name: "min", Description: "Smallest argument", Call: extremum(-1)},
		{Name: "max", Description: "Largest argument", Call: extremum(1)},
	}
}

func (coreUnit) Values(*Host) []ValueForm {
	return []ValueForm{
		{
			Pattern:     `random number between (.+) and (.+)`,
			Description: "Random integer in an inclusive range",
			Eval: func(c *Context) (interface{}, error) {
				return randomBetween(c.Eval(c.Arg(1)), c.Eval(c.Arg(2)))
			},
		},
	}
}

func randomBetween(a, b interface{}) (int64, error) {
	lo, ok1 := toInt64(a)
	hi, ok2 := toInt64(b)
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("random range needs numbers, got %s and %s", FormatValue(a), FormatValue(b))
	}
	if lo > hi {
		return 0, fmt.Errorf("empty range for random number between %d and %d", lo, hi)
	}
	return lo + rand.Int64N(hi-lo+1), nil
}

func oneNumber(fn func(float64) (interface{}, error)) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		f, ok := toFloat64(args[0])
		if !ok {
			return nil, fmt.Errorf("must be a number, not %s", FormatValue(args[0]))
		}
		return fn(f)
	}
}

func builtinRound(args []interface{}) (interface{}, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("round takes 1 or 2 arguments")
	}
	if n, ok := args[0].(int64); ok && len(args) == 1 {
		return n, nil
	}
	f, ok := toFloat64(args[0])
	if !ok {
		return nil, fmt.Errorf("must be a number, not %s", FormatValue(args[0]))
	}
	if len(args) == 1 {
		r := math.RoundToEven(f)
		if math.IsNaN(r) || r < minIntFloat || r >= maxIntFloat {
			return r, nil
		}
		return int64(r), nil
	}
	digits, ok := toInt64(args[1])
	if !ok {
		return nil, fmt.Errorf("digits must be an integer")
	}
	scale := math.Pow(10, float64(digits))
	return math.RoundToEven(f*scale) / scale, nil
}

func extremum(sign int) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("expected at least 1 argument")
		}
		best := args[0]
		for _, v := range args[1:] {
			c, ok := compareValues(v, best)
			if !ok {
				return nil, fmt.Errorf("cannot compare %s and %s", FormatValue(v), FormatValue(best))
			}
			if c*sign > 0 {
				best = v
			}
		}
		return best, nil
	}
}
