package sifzz

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// testUnit is an extension assembled from literal tables
type testUnit struct {
	name      string
	commands  []Command
	functions []ExprFunc
	values    []ValueForm
}

func (u *testUnit) Name() string { return u.name }
func (u *testUnit) Description() string { return "test unit " + u.name }
func (u *testUnit) Commands(*Host) []Command { return u.commands }
func (u *testUnit) Functions(*Host) []ExprFunc { return u.functions }
func (u *testUnit) Values(*Host) []ValueForm { return u.values }

func TestCoreStatementsWinOverExtensions(t *testing.T) {
	h, out, _ := newTestHost("")
	hijack := &testUnit{name: "hijack", commands: []Command{{
		Pattern: `say (.+)`,
		Handler: func(c *Context) error {
			_, err := c.Out().Write([]byte("hijacked\n"))
			return err
		},
	}}}
	if err := h.LoadExtension(hijack); err != nil {
		t.Fatalf("LoadExtension failed: %v", err)
	}
	if err := h.Run(context.Background(), `say "core"`, "t.sfzz"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.String() != "core\n" {
		t.Errorf("Expected the core say to run, got %q", out.String())
	}
}

func TestFirstLoadedUnitWins(t *testing.T) {
	h, out, _ := newTestHost("")
	mk := func(name string) *testUnit {
		return &testUnit{name: name, commands: []Command{{
			Pattern: `greet (\w+)`,
			Handler: func(c *Context) error {
				_, err := c.Out().Write([]byte(name + ":" + c.Arg(1) + "\n"))
				return err
			},
		}}}
	}
	if err := h.Load(mk("first"), mk("second")); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.Run(context.Background(), "greet Ada", "t.sfzz"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.String() != "first:Ada\n" {
		t.Errorf("Expected the first unit to handle the line, got %q", out.String())
	}
	if got := h.Units(); len(got) != 3 || got[1] != "first" || got[2] != "second" {
		t.Errorf("Unexpected unit order %v", got)
	}
}

func TestLoadRejectsBadUnits(t *testing.T) {
	h, _, _ := newTestHost("")
	bad := &testUnit{name: "bad", commands: []Command{{Pattern: `(unclosed`, Handler: func(*Context) error { return nil }}}}
	if err := h.LoadExtension(bad); err == nil {
		t.Error("Expected an error for an invalid pattern")
	}
	nohandler := &testUnit{name: "nohandler", commands: []Command{{Pattern: `x`}}}
	if err := h.LoadExtension(nohandler); err == nil {
		t.Error("Expected an error for a missing handler")
	}
	ok := &testUnit{name: "ok"}
	if err := h.LoadExtension(ok); err != nil {
		t.Fatalf("LoadExtension failed: %v", err)
	}
	if err := h.LoadExtension(&testUnit{name: "ok"}); err == nil {
		t.Error("Expected an error loading the same unit twice")
	}
	for _, name := range h.Units() {
		if name == "bad" || name == "nohandler" {
			t.Errorf("Rejected unit %s was registered", name)
		}
	}
}

func TestFailingHandlerIsLoggedAndTreatedAsUnhandled(t *testing.T) {
	h, out, errOut := newTestHost("")
	flaky := &testUnit{name: "flaky", commands: []Command{
		{Pattern: `explode`, Handler: func(*Context) error { panic("boom") }},
		{Pattern: `fail`, Handler: func(*Context) error { return errors.New("nope") }},
	}}
	if err := h.LoadExtension(flaky); err != nil {
		t.Fatalf("LoadExtension failed: %v", err)
	}
	if err := h.Run(context.Background(), "explode\nfail\nsay \"alive\"", "t.sfzz"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.String() != "alive\n" {
		t.Errorf("Expected the script to continue, got %q", out.String())
	}
	log := errOut.String()
	if !strings.Contains(log, "Module command failed (flaky): panic: boom") {
		t.Errorf("Expected the panic to be logged, got %q", log)
	}
	if !strings.Contains(log, "Module command failed (flaky): nope") {
		t.Errorf("Expected the error to be logged, got %q", log)
	}
	if strings.Count(log, "Unknown command") != 2 {
		t.Errorf("Expected both lines to be reported as unhandled, got %q", log)
	}
}

func TestHandlerExitStopsRun(t *testing.T) {
	h, out, _ := newTestHost("")
	quit := &testUnit{name: "quit", commands: []Command{{
		Pattern: `bail out`,
		Handler: func(c *Context) error { return c.RunLine("exit") },
	}}}
	if err := h.LoadExtension(quit); err != nil {
		t.Fatalf("LoadExtension failed: %v", err)
	}
	err := h.Run(context.Background(), "bail out\nsay \"after\"", "t.sfzz")
	if !errors.Is(err, ErrExit) {
		t.Errorf("Expected ErrExit, got %v", err)
	}
	if out.String() != "" {
		t.Errorf("Expected no output, got %q", out.String())
	}
}

func TestExtensionFunctionsAndValues(t *testing.T) {
	h, _, _ := newTestHost("")
	u := &testUnit{
		name: "extras",
		functions: []ExprFunc{{
			Name: "twice",
			Call: func(args []interface{}) (interface{}, error) {
				n, _ := toInt64(args[0])
				return int(n * 2), nil
			},
		}},
		values: []ValueForm{{
			Pattern: `the answer`,
			Eval:    func(*Context) (interface{}, error) { return 42, nil },
		}},
	}
	if err := h.LoadExtension(u); err != nil {
		t.Fatalf("LoadExtension failed: %v", err)
	}
	if v := h.Eval("twice(21)"); v != int64(42) {
		t.Errorf("twice(21): expected 42, got %#v", v)
	}
	if v := h.Eval("twice(4) * 2"); v != int64(16) {
		t.Errorf("Expected functions inside arithmetic, got %#v", v)
	}
	if v := h.Eval("the answer"); v != int64(42) {
		t.Errorf("Expected the value form to be normalized to int64, got %#v", v)
	}
	if v := h.Eval("the answer is here"); v != "the answer is here" {
		t.Errorf("Value forms must match the whole expression, got %#v", v)
	}

	infos := h.Commands()
	var kinds []string
	for _, info := range infos {
		if info.Unit == "extras" {
			kinds = append(kinds, info.Kind)
		}
	}
	if strings.Join(kinds, ",") != "value,function" {
		t.Errorf("Unexpected listing %v", kinds)
	}
	if h.UnitDescription("extras") != "test unit extras" {
		t.Errorf("Unexpected description %q", h.UnitDescription("extras"))
	}
}

func TestSubstituteGroups(t *testing.T) {
	groups := []string{"greet Ada", "Ada"}
	tests := []struct {
		body string
		want string
	}{
		{`say "Hello, $1"`, `say "Hello, Ada"`},
		{`say "$0"`, `say "greet Ada"`},
		{`say "$5 missing"`, `say " missing"`},
		{`cost $x`, `cost $x`},
		{`trailing $`, `trailing $`},
	}
	for _, tt := range tests {
		if got := substituteGroups(tt.body, groups); got != tt.want {
			t.Errorf("substituteGroups(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
