// Package mathpack adds trigonometry, powers, logarithms and rounding helpers
// to Sifzz expressions:
//
//	set s to sin(angle)
//	set p to power(2, 10)
//	set area to pi() * r * r
package mathpack

import (
	"fmt"
	"math"

	sifzz "github.com/stuffzez/sifzz/src"
)

// Pack is the math extension unit
type Pack struct{}

// New creates the math pack
func New() *Pack { return &Pack{} }

func (*Pack) Name() string        { return "math" }
func (*Pack) Description() string { return "Advanced math functions" }

// Commands returns no statements; everything is expression level
func (*Pack) Commands(*sifzz.Host) []sifzz.Command { return nil }

func (*Pack) Functions(*sifzz.Host) []sifzz.ExprFunc {
	return []sifzz.ExprFunc{
		{Name: "sin", Description: "Sine of an angle in radians", Call: unary(math.Sin)},
		{Name: "cos", Description: "Cosine of an angle in radians", Call: unary(math.Cos)},
		{Name: "tan", Description: "Tangent of an angle in radians", Call: unary(math.Tan)},
		{Name: "power", Description: "power(base, exponent)", Call: power},
		{Name: "log", Description: "Natural logarithm; log(x, base) for another base", Call: logarithm},
		{Name: "floor", Description: "Largest whole number not above x", Call: rounding(math.Floor)},
		{Name: "ceil", Description: "Smallest whole number not below x", Call: rounding(math.Ceil)},
		{Name: "pi", Description: "The constant pi", Call: func(args []interface{}) (interface{}, error) {
			if len(args) != 0 {
				return nil, fmt.Errorf("pi takes no arguments")
			}
			return math.Pi, nil
		}},
	}
}

func (*Pack) Values(*sifzz.Host) []sifzz.ValueForm {
	return []sifzz.ValueForm{
		{Pattern: `pi`, Description: "The constant pi", Eval: func(*sifzz.Context) (interface{}, error) {
			return math.Pi, nil
		}},
	}
}

func numbers(args []interface{}, want ...int) ([]float64, error) {
	ok := false
	for _, n := range want {
		if len(args) == n {
			ok = true
		}
	}
	if !ok {
		return nil, fmt.Errorf("expected %d arguments, got %d", want[0], len(args))
	}
	out := make([]float64, len(args))
	for i, a := range args {
		f, isNum := sifzz.ToFloat(a)
		if !isNum {
			return nil, fmt.Errorf("must be a number, not %s", sifzz.FormatValue(a))
		}
		out[i] = f
	}
	return out, nil
}

func unary(fn func(float64) float64) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		nums, err := numbers(args, 1)
		if err != nil {
			return nil, err
		}
		return fn(nums[0]), nil
	}
}

func rounding(fn func(float64) float64) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		if n, ok := singleInt(args); ok {
			return n, nil
		}
		nums, err := numbers(args, 1)
		if err != nil {
			return nil, err
		}
		r := fn(nums[0])
		if math.IsInf(r, 0) || math.IsNaN(r) {
			return nil, fmt.Errorf("cannot convert %v to an integer", r)
		}
		return int64(r), nil
	}
}

func singleInt(args []interface{}) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	n, ok := args[0].(int64)
	return n, ok
}

// power always returns a float, like math.Pow
func power(args []interface{}) (interface{}, error) {
	nums, err := numbers(args, 2)
	if err != nil {
		return nil, err
	}
	r := math.Pow(nums[0], nums[1])
	if math.IsNaN(r) {
		return nil, fmt.Errorf("math domain error")
	}
	return r, nil
}

func logarithm(args []interface{}) (interface{}, error) {
	nums, err := numbers(args, 1, 2)
	if err != nil {
		return nil, err
	}
	if nums[0] <= 0 {
		return nil, fmt.Errorf("math domain error")
	}
	if len(nums) == 1 {
		return math.Log(nums[0]), nil
	}
	if nums[1] <= 0 || nums[1] == 1 {
		return nil, fmt.Errorf("math domain error")
	}
	return math.Log(nums[0]) / math.Log(nums[1]), nil
}
