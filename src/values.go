package sifzz

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Runtime values are one of: int64, float64, string, bool, or []interface{}
// for list contents handed to extensions. nil means "no value".

// FormatValue renders a value the way say/write print it
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case string:
		return val
	case bool:
		if val {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return formatFloat(val)
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = reprValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// reprValue is FormatValue with strings quoted, used inside list renderings
func reprValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
	}
	return FormatValue(v)
}

// QuoteValue renders a value as source text the expression grammar reads back
func QuoteValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return FormatValue(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// parseNumberLiteral reads a bare numeric literal: a dot means float, otherwise int
func parseNumberLiteral(text string) (interface{}, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	if strings.Contains(text, ".") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		if f, ferr := strconv.ParseFloat(text, 64); ferr == nil {
			return f, true
		}
	}
	if err != nil {
		return nil, false
	}
	return n, true
}

// isNumeric reports whether v takes part in arithmetic
func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int64, float64, bool, int:
		return true
	}
	return false
}

// toInt64 narrows numeric values; floats truncate toward zero
func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case float64:
		if math.IsNaN(val) || val < minIntFloat || val >= maxIntFloat {
			return 0, false
		}
		return int64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		if n, ok := parseNumberLiteral(val); ok {
			return toInt64(n)
		}
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case float64:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// normalize turns Go-native values handed in by extensions into runtime values
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	}
	return v
}

// Truthy converts a value to a boolean for conditions
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int64:
		return val != 0
	case int:
		return val != 0
	case float64:
		return val != 0
	case string:
		return val != ""
	case []interface{}:
		return len(val) > 0
	}
	return true
}

// valuesEqual compares with numeric promotion; other kinds compare by type and value
func valuesEqual(a, b interface{}) bool {
	if isNumeric(a) && isNumeric(b) {
		if ai, ok := a.(int64); ok {
			if bi, ok := b.(int64); ok {
				return ai == bi
			}
		}
		af, _ := toFloat64(a)
		bf, _ := toFloat64(b)
		return af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	}
	return false
}

// addValues is numeric addition for statement mutation; ok is false for non-numeric operands
func addValues(a, b interface{}) (interface{}, bool) {
	return arith("+", a, b)
}

// arith applies a numeric binary operator with int/float promotion.
// Division always produces a float.
func arith(op string, a, b interface{}) (interface{}, bool) {
	if !isNumeric(a) || !isNumeric(b) {
		return nil, false
	}
	ai, aInt := intOnly(a)
	bi, bInt := intOnly(b)
	if aInt && bInt {
		switch op {
		case "+":
			if sum, ok := addInt64(ai, bi); ok {
				return sum, true
			}
			return float64(ai) + float64(bi), true
		case "-":
			if bi != math.MinInt64 {
				if diff, ok := addInt64(ai, -bi); ok {
					return diff, true
				}
			}
			return float64(ai) - float64(bi), true
		case "*":
			if product, ok := mulInt64(ai, bi); ok {
				return product, true
			}
			return float64(ai) * float64(bi), true
		case "/":
			if bi == 0 {
				return nil, false
			}
			return float64(ai) / float64(bi), true
		case "//":
			if bi == 0 {
				return nil, false
			}
			if ai == math.MinInt64 && bi == -1 {
				return -float64(ai), true
			}
			q := ai / bi
			if (ai%bi != 0) && ((ai < 0) != (bi < 0)) {
				q--
			}
			return q, true
		case "%":
			if bi == 0 {
				return nil, false
			}
			m := ai % bi
			if m != 0 && ((m < 0) != (bi < 0)) {
				m += bi
			}
			return m, true
		case "**":
			if bi >= 0 {
				if result, ok := powInt64(ai, bi); ok {
					return result, true
				}
			}
			return math.Pow(float64(ai), float64(bi)), true
		}
		return nil, false
	}
	af, _ := toFloat64(a)
	bf, _ := toFloat64(b)
	switch op {
	case "+":
		return af + bf, true
	case "-":
		return af - bf, true
	case "*":
		return af * bf, true
	case "/":
		if bf == 0 {
			return nil, false
		}
		return af / bf, true
	case "//":
		if bf == 0 {
			return nil, false
		}
		return math.Floor(af / bf), true
	case "%":
		if bf == 0 {
			return nil, false
		}
		m := math.Mod(af, bf)
		if m != 0 && ((m < 0) != (bf < 0)) {
			m += bf
		}
		return m, true
	case "**":
		return math.Pow(af, bf), true
	}
	return nil, false
}

// addInt64 adds a and b; ok is false when the sum overflows int64
func addInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return 0, false
	}
	return sum, true
}

// mulInt64 multiplies a and b; ok is false when the product overflows int64
func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	product := a * b
	if product/b != a {
		return 0, false
	}
	return product, true
}

// powInt64 raises base to a non-negative exponent by squaring
func powInt64(base, exp int64) (int64, bool) {
	result := int64(1)
	for exp > 0 {
		var ok bool
		if exp&1 == 1 {
			if result, ok = mulInt64(result, base); !ok {
				return 0, false
			}
		}
		exp >>= 1
		if exp > 0 {
			if base, ok = mulInt64(base, base); !ok {
				return 0, false
			}
		}
	}
	return result, true
}

// int64 range as floats: [minIntFloat, maxIntFloat)
const (
	minIntFloat = -(1 << 63)
	maxIntFloat = 1 << 63
)

// intOnly treats bools as ints, the way comparisons and arithmetic see them
func intOnly(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// compareValues orders two values; ok is false when they are not comparable
func compareValues(a, b interface{}) (int, bool) {
	if isNumeric(a) && isNumeric(b) {
		af, _ := toFloat64(a)
		bf, _ := toFloat64(b)
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// ToFloat converts a runtime value (or numeric text) to float64
func ToFloat(v interface{}) (float64, bool) {
	if s, ok := v.(string); ok {
		n, ok := parseNumberLiteral(strings.TrimSpace(s))
		if !ok {
			return 0, false
		}
		v = n
	}
	return toFloat64(v)
}

// ToInt converts a runtime value (or numeric text) to int64, truncating floats
func ToInt(v interface{}) (int64, bool) {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	return toInt64(v)
}
