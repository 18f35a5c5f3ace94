package sifzz

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// maxCallDepth bounds nested function calls so runaway recursion ends the
// run with an error instead of exhausting the goroutine stack
const maxCallDepth = 10000

var rangeExprRe = regexp.MustCompile(`^range\s*\((.*)\)$`)

// Executor walks the statement tree
type Executor struct {
	host      *Host
	logger    *Logger
	rules     []statementRule
	callDepth int
}

func newExecutor(host *Host) *Executor {
	return &Executor{host: host, logger: host.logger, rules: coreRules()}
}

// Execute runs nodes in order. It stops early when a break or continue is
// pending, leaving the flag for the enclosing loop.
func (x *Executor) Execute(ctx context.Context, env *Environment, nodes []*Node) error {
	for _, node := range nodes {
		if err := x.host.drainQueue(ctx, env); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := x.execNode(ctx, env, node); err != nil {
			return err
		}
		if env.interrupted() {
			return nil
		}
	}
	return nil
}

func (x *Executor) execNode(ctx context.Context, env *Environment, node *Node) error {
	switch node.Kind {
	case NodeStatement:
		return x.execStatement(ctx, env, node)
	case NodeIf:
		return x.execIf(ctx, env, node)
	case NodeWhile:
		return x.execWhile(ctx, env, node)
	case NodeRepeat:
		return x.execRepeat(ctx, env, node)
	case NodeForEach:
		return x.execForEach(ctx, env, node)
	case NodeFunction:
		env.DefineFunction(&Function{
			Name:     node.Name,
			Start:    node.Start,
			End:      node.End,
			Body:     node.Body,
			Position: node.Position,
		})
		x.logger.DebugCat(CatFlow, "defined function %s (lines %d-%d)", node.Name, node.Start+1, node.End)
		return nil
	case NodeMalformed:
		x.logger.WarnWithPosition(CatParse,
			fmt.Sprintf("Malformed block header, skipping block: %s", node.Text),
			node.Position, node.Position.Context())
		return nil
	}
	return fmt.Errorf("unknown node kind %v", node.Kind)
}

// execStatement tries the built-in rules, then the extensions
func (x *Executor) execStatement(ctx context.Context, env *Environment, node *Node) error {
	line := node.Text
	x.logger.TraceCat(CatCommand, "line %d: %s", node.Position.Line, line)

	for _, r := range x.rules {
		if m := r.pattern.FindStringSubmatch(line); m != nil {
			return r.run(x, ctx, env, m, node.Position)
		}
	}

	handled, err := x.host.registry.dispatch(x.host.newContext(ctx, env, line, node.Position))
	if err != nil {
		return err
	}
	if !handled {
		x.logger.UnknownCommand(line, node.Position, node.Position.Context())
	}
	return nil
}

// execIf runs the body of the first clause that holds
func (x *Executor) execIf(ctx context.Context, env *Environment, node *Node) error {
	for _, clause := range node.Clauses {
		if clause.Else || x.host.evaluator.Condition(env, clause.Cond) {
			x.logger.DebugCat(CatFlow, "if: taking clause at line %d", clause.Position.Line)
			return x.Execute(ctx, env, clause.Body)
		}
	}
	return nil
}

// runIteration executes one loop body pass and reports whether the loop
// should stop because of a break
func (x *Executor) runIteration(ctx context.Context, env *Environment, body []*Node) (bool, error) {
	env.resetLoopFlags()
	if err := x.Execute(ctx, env, body); err != nil {
		return true, err
	}
	if env.consumeBreak() {
		env.continueRequested = false
		return true, nil
	}
	env.continueRequested = false
	return false, x.host.drainQueue(ctx, env)
}

func (x *Executor) execWhile(ctx context.Context, env *Environment, node *Node) error {
	env.resetLoopFlags()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !x.host.evaluator.Condition(env, node.Expr) {
			return nil
		}
		stop, err := x.runIteration(ctx, env, node.Body)
		if err != nil || stop {
			return err
		}
	}
}

func (x *Executor) execRepeat(ctx context.Context, env *Environment, node *Node) error {
	count, ok := toInt64(x.eval(env, node.Expr))
	if !ok {
		x.logger.WarnWithPosition(CatFlow,
			fmt.Sprintf("repeat count %q is not a number, skipping block", node.Expr),
			node.Position, node.Position.Context())
		return nil
	}
	env.resetLoopFlags()
	for i := int64(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		stop, err := x.runIteration(ctx, env, node.Body)
		if err != nil || stop {
			return err
		}
	}
	return nil
}

func (x *Executor) execForEach(ctx context.Context, env *Environment, node *Node) error {
	items := x.iterable(env, node.Expr)
	env.resetLoopFlags()
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		env.Set(node.Name, item)
		stop, err := x.runIteration(ctx, env, node.Body)
		if err != nil || stop {
			return err
		}
	}
	return nil
}

// iterable resolves a for-each source: a list name (snapshot) or range(a, b)
func (x *Executor) iterable(env *Environment, expr string) []interface{} {
	expr = strings.TrimSpace(expr)
	if items, ok := env.List(expr); ok {
		return items
	}
	m := rangeExprRe.FindStringSubmatch(expr)
	if m == nil {
		x.logger.DebugCat(CatFlow, "for each over %q: nothing to iterate", expr)
		return nil
	}
	args := splitTopLevel(m[1], ',')
	var lo, hi int64
	var ok1, ok2 bool
	switch len(args) {
	case 1:
		ok1 = true
		hi, ok2 = toInt64(x.eval(env, args[0]))
	case 2:
		lo, ok1 = toInt64(x.eval(env, args[0]))
		hi, ok2 = toInt64(x.eval(env, args[1]))
	}
	if !ok1 || !ok2 {
		x.logger.DebugCat(CatFlow, "for each over %q: bad range", expr)
		return nil
	}
	var items []interface{}
	for i := lo; i < hi; i++ {
		items = append(items, i)
	}
	return items
}

// callFunction re-executes a stored function body; unknown names do nothing
func (x *Executor) callFunction(ctx context.Context, env *Environment, name string, pos *SourcePosition) error {
	fn, ok := env.LookupFunction(name)
	if !ok {
		x.logger.DebugCat(CatFlow, "call %s: no such function", name)
		return nil
	}
	if x.callDepth >= maxCallDepth {
		return &ScriptError{
			Message:  fmt.Sprintf("call %s: maximum call depth %d exceeded", name, maxCallDepth),
			Position: pos,
			Err:      ErrCallDepth,
		}
	}
	x.callDepth++
	defer func() { x.callDepth-- }()
	x.logger.DebugCat(CatFlow, "call %s", name)
	return x.Execute(ctx, env, fn.Body)
}
