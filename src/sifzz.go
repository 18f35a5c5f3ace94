package sifzz

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Version of the interpreter
const Version = "2.0.0"

// FileExtension is the script file suffix
const FileExtension = ".sfzz"

// Host owns one environment and the extension units loaded into it
type Host struct {
	config    *Config
	logger    *Logger
	env       *Environment
	registry  *Registry
	evaluator *Evaluator
	executor  *Executor
	queue     *Queue
	in        *bufio.Reader
	out       io.Writer

	extensions []Extension
	runCtx     context.Context
}

// New creates a host with the core functions loaded
func New(config *Config) *Host {
	if config == nil {
		config = DefaultConfig()
	}

	logger := NewLogger(config.Debug)
	logger.SetOutput(config.Stdout, config.Stderr)
	if config.Debug {
		if len(config.DebugCategories) == 0 {
			logger.EnableAllCategories()
		}
		for _, cat := range config.DebugCategories {
			logger.EnableCategory(cat)
		}
	}
	if config.LogFormat == "json" {
		logger.UseJSON()
	}

	h := &Host{
		config: config,
		logger: logger,
		env:    NewEnvironment(),
		queue:  NewQueue(),
		out:    config.Stdout,
	}
	if h.out == nil {
		h.out = os.Stdout
	}
	in := config.Stdin
	if in == nil {
		in = os.Stdin
	}
	h.in = bufio.NewReader(in)
	h.registry = NewRegistry(logger)
	h.evaluator = &Evaluator{host: h, logger: logger}
	h.executor = newExecutor(h)

	if err := h.registry.Load(h, coreUnit{}); err != nil {
		logger.Fatal("loading core functions: %v", err)
	}
	return h
}

// LoadExtension registers one extension unit after those already loaded
func (h *Host) LoadExtension(ext Extension) error {
	if err := h.registry.Load(h, ext); err != nil {
		return err
	}
	h.extensions = append(h.extensions, ext)
	return nil
}

// Load registers extension units in order. A failing unit is logged and
// skipped; the others still load.
func (h *Host) Load(exts ...Extension) error {
	var errs []error
	for _, ext := range exts {
		if err := h.LoadExtension(ext); err != nil {
			h.logger.WarnCat(CatModule, "Failed to load extension: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run executes a whole script. ErrExit is returned when the script exits
// explicitly.
func (h *Host) Run(ctx context.Context, source, filename string) error {
	err := h.run(ctx, source, filename)
	h.env.resetLoopFlags()
	return err
}

// RunFile reads and executes a script file
func (h *Host) RunFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	return h.Run(ctx, string(data), path)
}

// RunSource executes a fragment in the current environment. Loop flags are
// left as the fragment sets them, so a break reaches the enclosing loop.
func (h *Host) RunSource(ctx context.Context, source string) error {
	return h.run(ctx, source, "<command>")
}

// RunLine executes a single statement
func (h *Host) RunLine(ctx context.Context, line string) error {
	return h.RunSource(ctx, line)
}

func (h *Host) run(ctx context.Context, source, filename string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	program := NewProgram(source, filename)
	nodes := Parse(program)
	h.logger.DebugCat(CatParse, "%s: %d lines, %d top-level statements", filename, program.Len(), len(nodes))

	saved := h.runCtx
	h.runCtx = ctx
	defer func() { h.runCtx = saved }()
	return h.executor.Execute(ctx, h.env, nodes)
}

func (h *Host) runContext() context.Context {
	if h.runCtx == nil {
		return context.Background()
	}
	return h.runCtx
}

func (h *Host) newContext(ctx context.Context, env *Environment, line string, pos *SourcePosition) *Context {
	if ctx == nil {
		ctx = h.runContext()
	}
	if pos == nil {
		pos = &SourcePosition{OriginalText: line}
	}
	return &Context{Line: line, Position: pos, Env: env, ctx: ctx, host: h, logger: h.logger}
}

// Post queues a message for the execution thread. Safe from any goroutine.
func (h *Host) Post(msg Message) {
	h.queue.Post(msg)
}

// drainQueue applies every pending message
func (h *Host) drainQueue(ctx context.Context, env *Environment) error {
	for _, msg := range h.queue.Drain() {
		h.logger.TraceCat(CatSystem, "message from %s", msg.Source)
		if msg.Apply != nil {
			apply := msg.Apply
			if err := safeCall(func() error { apply(env); return nil }); err != nil {
				h.logger.ErrorCat(CatModule, "message from %s failed: %v", msg.Source, err)
			}
		}
		if msg.Command == "" {
			continue
		}
		if err := h.RunSource(ctx, msg.Command); err != nil {
			if isTerminal(err) {
				return err
			}
			h.logger.ErrorCat(CatModule, "message from %s failed: %v", msg.Source, err)
		}
	}
	return nil
}

// Serve applies queued messages until done is closed, ctx ends, or a
// message exits the script
func (h *Host) Serve(ctx context.Context, done <-chan struct{}) error {
	for {
		if err := h.drainQueue(ctx, h.env); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return h.drainQueue(ctx, h.env)
		case <-h.queue.Notify():
		}
	}
}

// sleep waits for d while still applying queued messages
func (h *Host) sleep(ctx context.Context, env *Environment, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		if err := h.drainQueue(ctx, env); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-h.queue.Notify():
		}
	}
}

// Eval evaluates an expression in the host environment
func (h *Host) Eval(expr string) interface{} {
	return h.evaluator.Eval(h.env, expr)
}

// Condition evaluates a condition in the host environment
func (h *Host) Condition(text string) bool {
	return h.evaluator.Condition(h.env, text)
}

// Env returns the shared environment
func (h *Host) Env() *Environment { return h.env }

// Logger returns the host logger
func (h *Host) Logger() *Logger { return h.logger }

// Config returns the host configuration
func (h *Host) Config() *Config { return h.config }

// Out returns the script output stream
func (h *Host) Out() io.Writer { return h.out }

// SetOutput redirects script output
func (h *Host) SetOutput(w io.Writer) {
	if w != nil {
		h.out = w
	}
}

// SetInput redirects script input
func (h *Host) SetInput(r io.Reader) {
	if r != nil {
		h.in = bufio.NewReader(r)
	}
}

// Commands lists every registered pattern in dispatch order
func (h *Host) Commands() []CommandInfo {
	return h.registry.Describe()
}

// Units lists the loaded extension unit names, core first
func (h *Host) Units() []string {
	return h.registry.Units()
}

// UnitDescription returns a loaded unit's description
func (h *Host) UnitDescription(name string) string {
	return h.registry.UnitDescription(name)
}

// Close stops the queue and releases extensions that hold resources
func (h *Host) Close() error {
	h.queue.Close()
	var errs []error
	for i := len(h.extensions) - 1; i >= 0; i-- {
		if c, ok := h.extensions[i].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", h.extensions[i].Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
