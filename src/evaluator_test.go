package sifzz

import (
	"math"
	"testing"
)

func TestEval(t *testing.T) {
	h, _, _ := newTestHost("")
	env := h.Env()
	env.Set("x", int64(7))
	env.Set("f", 2.5)
	env.Set("name", "Ada")
	env.CreateList("items")
	env.Append("items", "a")
	env.Append("items", "b")

	tests := []struct {
		expr string
		want interface{}
	}{
		{"42", int64(42)},
		{"-3", int64(-3)},
		{"1.50", 1.5},
		{`"hello"`, "hello"},
		{`'single'`, "single"},
		{"x", int64(7)},
		{"x * 2 - 1", int64(13)},
		{"2 ** 10", int64(1024)},
		{"7 / 2", 3.5},
		{"-7 // 2", int64(-4)},
		{"-7 % 3", int64(2)},
		{"f * 2", 5.0},
		{"(x - 1) * (x + 1)", int64(48)},
		{"x > 3 and x < 10", true},
		{"not x", false},
		{"1 < x < 5", false},
		{`"ab" * 3`, "ababab"},
		{`"Hi " + name`, "Hi Ada"},
		{`"a" + 1`, "a1"},
		{"1 + 2", "12"},
		{"name uppercase", "ADA"},
		{"name lowercase", "ada"},
		{"length of name", int64(3)},
		{"length of items", int64(2)},
		{"round(2.5)", int64(2)},
		{"round(3.5)", int64(4)},
		{"round(2.25, 1)", 2.2},
		{"abs(-4)", int64(4)},
		{"int(3.9)", int64(3)},
		{`int("12")`, int64(12)},
		{`float("1.5")`, 1.5},
		{"str(5)", "5"},
		{`len("héllo")`, int64(5)},
		{"min(3, 1, 2)", int64(1)},
		{"max(1, 2.5)", 2.5},
		{"sqrt(16)", 4.0},
		{"sqrt(x * x)", 7.0},
		{"True", true},
		{"None", nil},
		{"no such thing", "no such thing"},
		{"sqrt(-1)", "sqrt(-1)"},
		{"1 / 0", "1 / 0"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			if got := h.Eval(tt.expr); got != tt.want {
				t.Errorf("Eval(%q) = %#v, want %#v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalRandomValueForm(t *testing.T) {
	h, _, _ := newTestHost("")
	for i := 0; i < 20; i++ {
		v, ok := h.Eval("random number between 2 and 4").(int64)
		if !ok || v < 2 || v > 4 {
			t.Fatalf("Expected an int in [2, 4], got %#v", v)
		}
	}
}

func TestCondition(t *testing.T) {
	h, _, _ := newTestHost("")
	env := h.Env()
	env.Set("score", int64(85))
	env.Set("name", "Ada")
	env.Set("done", false)
	env.CreateList("pets")
	env.Append("pets", "cat")

	tests := []struct {
		cond string
		want bool
	}{
		{"score is 85", true},
		{"score is not 85", false},
		{"score is greater than 80", true},
		{"score is less than 80", false},
		{"score is greater than or equal to 85", true},
		{"score is less than or equal to 84", false},
		{"score greater than 100", false},
		{"score equals 85", true},
		{"score is equal to 85", true},
		{"score is not equal to 1", true},
		{"score >= 85 and score < 90", true},
		{`name is "Ada"`, true},
		{`name is "Bob"`, false},
		{`name == "Ada is here"`, false},
		{"done", false},
		{"not done", true},
		{"pets contains \"cat\"", true},
		{"pets contains \"dog\"", false},
		{"name contains \"d\"", true},
		{"unknown > 3", false},
		{"score >", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := h.Condition(tt.cond); got != tt.want {
			t.Errorf("Condition(%q) = %v, want %v", tt.cond, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "None"},
		{true, "True"},
		{false, "False"},
		{int64(-12), "-12"},
		{3.0, "3.0"},
		{0.1, "0.1"},
		{1e20, "1e+20"},
		{math.Inf(1), "inf"},
		{"text", "text"},
		{[]interface{}{"a", int64(1), 2.5}, "['a', 1, 2.5]"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruthy(t *testing.T) {
	truthy := []interface{}{true, int64(1), 0.5, "x", []interface{}{int64(0)}}
	falsy := []interface{}{nil, false, int64(0), 0.0, "", []interface{}{}}
	for _, v := range truthy {
		if !Truthy(v) {
			t.Errorf("Expected %#v to be truthy", v)
		}
	}
	for _, v := range falsy {
		if Truthy(v) {
			t.Errorf("Expected %#v to be falsy", v)
		}
	}
}

func TestToNumber(t *testing.T) {
	if f, ok := ToFloat(" 2.5 "); !ok || f != 2.5 {
		t.Errorf("ToFloat: got %v %v", f, ok)
	}
	if _, ok := ToFloat("abc"); ok {
		t.Error("ToFloat should reject text")
	}
	if n, ok := ToInt("12"); !ok || n != 12 {
		t.Errorf("ToInt: got %v %v", n, ok)
	}
	if n, ok := ToInt(9.9); !ok || n != 9 {
		t.Errorf("ToInt(9.9): got %v %v", n, ok)
	}
}

func TestIntegerOverflowPromotesToFloat(t *testing.T) {
	h, _, _ := newTestHost("")
	h.Env().Set("big", int64(math.MaxInt64))

	tests := []struct {
		expr string
		want float64
	}{
		{"3 ** 50", 7.178979876918526e23},
		{"99999999999 * 99999999999", 9.9999999998e21},
		{"(big + 1)", 9.223372036854775808e18},
		{"-big - 2", -9.223372036854775809e18},
		{"round(1.0e300)", 1e300},
		{"99999999999999999999", 1e20},
		{"(99999999999999999999 + 1)", 1e20},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok := h.Eval(tt.expr).(float64)
			if !ok {
				t.Fatalf("Eval(%q) = %#v, want a float", tt.expr, h.Eval(tt.expr))
			}
			if math.Abs(got-tt.want) > math.Abs(tt.want)*1e-12 {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}

	exact := map[string]int64{
		"2 ** 62":         1 << 62,
		"3 ** 39":         4052555153018976267,
		"big - 1":         math.MaxInt64 - 1,
		"(-big - 1) // 2": math.MinInt64 / 2,
	}
	for expr, want := range exact {
		if got := h.Eval(expr); got != want {
			t.Errorf("Eval(%q) = %#v, want %d", expr, got, want)
		}
	}
}

func TestEvalNeverPanics(t *testing.T) {
	h, _, _ := newTestHost("")
	unit := &testUnit{name: "faulty", functions: []ExprFunc{{
		Name: "boom",
		Call: func([]interface{}) (interface{}, error) { panic("kaboom") },
	}}}
	if err := h.LoadExtension(unit); err != nil {
		t.Fatalf("LoadExtension failed: %v", err)
	}

	for _, expr := range []string{
		`"ab" * 9000000000000000000`,
		`"a" * 100000000000`,
		`9000000000000000000 * "ab"`,
		"boom(1)",
		"boom(1) * 2",
	} {
		if got := h.Eval(expr); got != expr {
			t.Errorf("Eval(%q) = %#v, want the text back", expr, got)
		}
	}

	if got := h.Eval(`"ab" * 2`); got != "abab" {
		t.Errorf("small repeat broke: %#v", got)
	}

	_, out, _ := runScript(t, "set x to \"ab\" * 9000000000000000000\nsay \"after\"")
	if out != "after\n" {
		t.Errorf("script did not continue, output %q", out)
	}
}
