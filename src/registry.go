package sifzz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// Handler runs a matched extension command
type Handler func(c *Context) error

// Command is one registration entry of an extension unit. Pattern is a
// regular expression matched at the start of the line.
type Command struct {
	Pattern     string
	Description string
	Handler     Handler
}

// ExprFunc is a function callable from expressions as name(args)
type ExprFunc struct {
	Name        string
	Description string
	Call        func(args []interface{}) (interface{}, error)
}

// ValueForm is an expression-level pattern producing a value. Pattern must
// match the whole expression text.
type ValueForm struct {
	Pattern     string
	Description string
	Eval        func(c *Context) (interface{}, error)
}

// Extension is a unit contributing statement patterns
type Extension interface {
	Name() string
	Commands(host *Host) []Command
}

// FunctionProvider is implemented by extensions adding expression functions
type FunctionProvider interface {
	Functions(host *Host) []ExprFunc
}

// ValueProvider is implemented by extensions adding expression value forms
type ValueProvider interface {
	Values(host *Host) []ValueForm
}

// Describer gives an extension a one-line description for listings
type Describer interface {
	Description() string
}

// Context is passed to extension handlers
type Context struct {
	Groups   []string // Groups[0] is the whole match
	Line     string
	Position *SourcePosition
	Env      *Environment

	ctx    context.Context
	host   *Host
	logger *Logger
}

// Arg returns capture group i, or "" when absent
func (c *Context) Arg(i int) string {
	if i < 0 || i >= len(c.Groups) {
		return ""
	}
	return c.Groups[i]
}

// Eval evaluates an expression against the shared environment
func (c *Context) Eval(expr string) interface{} {
	return c.host.evaluator.Eval(c.Env, expr)
}

// EvalString evaluates an expression and renders it as text
func (c *Context) EvalString(expr string) string {
	return FormatValue(c.Eval(expr))
}

// Condition evaluates a condition against the shared environment
func (c *Context) Condition(text string) bool {
	return c.host.evaluator.Condition(c.Env, text)
}

// RunLine synchronously executes one statement
func (c *Context) RunLine(line string) error {
	return c.host.RunLine(c.ctx, line)
}

// RunSource synchronously executes a script fragment
func (c *Context) RunSource(source string) error {
	return c.host.RunSource(c.ctx, source)
}

// Post queues a message for the execution thread
func (c *Context) Post(msg Message) {
	c.host.Post(msg)
}

// Out is the script's output stream
func (c *Context) Out() io.Writer {
	return c.host.out
}

// Context returns the run context
func (c *Context) Context() context.Context {
	return c.ctx
}

// Logger returns the host logger
func (c *Context) Logger() *Logger {
	return c.logger
}

// Host returns the host running the script
func (c *Context) Host() *Host {
	return c.host
}

// LogWarn logs a warning at the current statement
func (c *Context) LogWarn(cat LogCategory, message string) {
	c.logger.WarnWithPosition(cat, message, c.Position, c.Position.Context())
}

type compiledCommand struct {
	Command
	re *regexp.Regexp
}

type compiledValue struct {
	ValueForm
	unit string
	re   *regexp.Regexp
}

type unit struct {
	name        string
	description string
	commands    []compiledCommand
}

// Registry holds the loaded extension units in load order
type Registry struct {
	units     []*unit
	functions map[string]ExprFunc
	funcOrder []string
	funcUnit  map[string]string
	values    []compiledValue
	logger    *Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *Logger) *Registry {
	return &Registry{
		functions: make(map[string]ExprFunc),
		funcUnit:  make(map[string]string),
		logger:    logger,
	}
}

// Load calls the registration hooks of ext once and stores its entries.
// A unit with an invalid pattern is rejected as a whole.
func (r *Registry) Load(host *Host, ext Extension) error {
	name := ext.Name()
	for _, u := range r.units {
		if u.name == name {
			return fmt.Errorf("extension %q already loaded", name)
		}
	}

	u := &unit{name: name}
	if d, ok := ext.(Describer); ok {
		u.description = d.Description()
	}
	for _, cmd := range ext.Commands(host) {
		if cmd.Handler == nil {
			return fmt.Errorf("extension %q: pattern %q has no handler", name, cmd.Pattern)
		}
		re, err := regexp.Compile("^(?:" + cmd.Pattern + ")")
		if err != nil {
			return fmt.Errorf("extension %q: bad pattern %q: %w", name, cmd.Pattern, err)
		}
		u.commands = append(u.commands, compiledCommand{Command: cmd, re: re})
	}

	var values []compiledValue
	if vp, ok := ext.(ValueProvider); ok {
		for _, vf := range vp.Values(host) {
			if vf.Eval == nil {
				return fmt.Errorf("extension %q: value form %q has no evaluator", name, vf.Pattern)
			}
			re, err := regexp.Compile("^(?:" + vf.Pattern + ")$")
			if err != nil {
				return fmt.Errorf("extension %q: bad value pattern %q: %w", name, vf.Pattern, err)
			}
			values = append(values, compiledValue{ValueForm: vf, unit: name, re: re})
		}
	}

	var funcs []ExprFunc
	if fp, ok := ext.(FunctionProvider); ok {
		for _, fn := range fp.Functions(host) {
			if fn.Call == nil || fn.Name == "" {
				return fmt.Errorf("extension %q: incomplete function %q", name, fn.Name)
			}
			funcs = append(funcs, fn)
		}
	}

	r.units = append(r.units, u)
	r.values = append(r.values, values...)
	for _, fn := range funcs {
		if owner, exists := r.funcUnit[fn.Name]; exists {
			r.logger.DebugCat(CatModule, "Function %s from %s shadowed by %s", fn.Name, name, owner)
			continue
		}
		r.functions[fn.Name] = fn
		r.funcUnit[fn.Name] = name
		r.funcOrder = append(r.funcOrder, fn.Name)
	}
	r.logger.DebugCat(CatModule, "Loaded extension %s (%d commands, %d functions, %d value forms)",
		name, len(u.commands), len(funcs), len(values))
	return nil
}

// Units returns the loaded unit names in load order
func (r *Registry) Units() []string {
	names := make([]string, len(r.units))
	for i, u := range r.units {
		names[i] = u.name
	}
	return names
}

// Function looks up an expression function
func (r *Registry) Function(name string) (ExprFunc, bool) {
	fn, ok := r.functions[name]
	return fn, ok
}

// match finds the first command matching line across all units
func (r *Registry) match(line string) (*unit, *compiledCommand, []string) {
	for _, u := range r.units {
		for i := range u.commands {
			cmd := &u.commands[i]
			if groups := cmd.re.FindStringSubmatch(line); groups != nil {
				return u, cmd, groups
			}
		}
	}
	return nil, nil, nil
}

// dispatch runs the first matching handler. A failing or panicking handler
// is logged and the line counts as unhandled. ErrExit from a handler (for
// example through RunLine) is passed through.
func (r *Registry) dispatch(c *Context) (handled bool, err error) {
	u, cmd, groups := r.match(c.Line)
	if cmd == nil {
		return false, nil
	}
	c.Groups = groups
	r.logger.TraceCat(CatModule, "%s matched %q", u.name, cmd.Pattern)

	herr := safeCall(func() error { return cmd.Handler(c) })
	if herr == nil {
		return true, nil
	}
	if isTerminal(herr) {
		return true, herr
	}
	r.logger.ModuleError(u.name, herr, c.Position)
	return false, nil
}

// evalValue tries every value form against expr
func (r *Registry) evalValue(c *Context, expr string) (interface{}, bool, error) {
	for _, vf := range r.values {
		groups := vf.re.FindStringSubmatch(expr)
		if groups == nil {
			continue
		}
		c.Groups = groups
		var v interface{}
		err := safeCall(func() error {
			var err error
			v, err = vf.Eval(c)
			return err
		})
		if err != nil {
			return nil, true, err
		}
		return normalize(v), true, nil
	}
	return nil, false, nil
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}

// isTerminal reports errors that must stop the run rather than be absorbed
func isTerminal(err error) bool {
	return errors.Is(err, ErrExit) || errors.Is(err, ErrCallDepth) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// CommandInfo describes one registered pattern for listings
type CommandInfo struct {
	Unit        string
	Kind        string // "command", "function", "value"
	Pattern     string
	Description string
}

// Describe lists every registered entry in dispatch order
func (r *Registry) Describe() []CommandInfo {
	var out []CommandInfo
	for _, u := range r.units {
		for _, cmd := range u.commands {
			out = append(out, CommandInfo{Unit: u.name, Kind: "command", Pattern: cmd.Pattern, Description: cmd.Description})
		}
		for _, vf := range r.values {
			if vf.unit == u.name {
				out = append(out, CommandInfo{Unit: u.name, Kind: "value", Pattern: vf.Pattern, Description: vf.Description})
			}
		}
		var names []string
		for name, owner := range r.funcUnit {
			if owner == u.name {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			fn := r.functions[name]
			out = append(out, CommandInfo{Unit: u.name, Kind: "function", Pattern: name + "(...)", Description: fn.Description})
		}
	}
	return out
}

// UnitDescription returns the description of a loaded unit
func (r *Registry) UnitDescription(name string) string {
	for _, u := range r.units {
		if u.name == name {
			return u.description
		}
	}
	return ""
}

// substituteGroups replaces $0..$9 in body with captured groups
func substituteGroups(body string, groups []string) string {
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '$' && i+1 < len(body) && body[i+1] >= '0' && body[i+1] <= '9' {
			idx := int(body[i+1] - '0')
			if idx < len(groups) {
				sb.WriteString(groups[idx])
			}
			i++
			continue
		}
		sb.WriteByte(body[i])
	}
	return sb.String()
}
