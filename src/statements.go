package sifzz

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// statementRule is one built-in single-line form. Rules are tried in table
// order; the first whose pattern matches the whole line handles it.
type statementRule struct {
	name    string
	pattern *regexp.Regexp
	run     func(x *Executor, ctx context.Context, env *Environment, m []string, pos *SourcePosition) error
}

func rule(name, pattern string, run func(x *Executor, ctx context.Context, env *Environment, m []string, pos *SourcePosition) error) statementRule {
	return statementRule{name: name, pattern: regexp.MustCompile("^" + pattern + "$"), run: run}
}

// coreRules builds the ordered statement table
func coreRules() []statementRule {
	return []statementRule{
		rule("exit", `(?:stop script|exit)`, func(*Executor, context.Context, *Environment, []string, *SourcePosition) error {
			return ErrExit
		}),
		rule("break", `break`, func(_ *Executor, _ context.Context, env *Environment, _ []string, _ *SourcePosition) error {
			env.RequestBreak()
			return nil
		}),
		rule("continue", `continue`, func(_ *Executor, _ context.Context, env *Environment, _ []string, _ *SourcePosition) error {
			env.RequestContinue()
			return nil
		}),
		// terminators and clause lines reached outside their block do nothing
		rule("terminator", `(?:end (?:if|loop|repeat|for|function)|else:?|else if .*)`, func(*Executor, context.Context, *Environment, []string, *SourcePosition) error {
			return nil
		}),
		rule("call", `call\s+(\w+)`, func(x *Executor, ctx context.Context, env *Environment, m []string, pos *SourcePosition) error {
			return x.callFunction(ctx, env, m[1], pos)
		}),

		rule("size of", `set\s+(\w+)\s+to\s+size of\s+(\w+)`, func(x *Executor, _ context.Context, env *Environment, m []string, _ *SourcePosition) error {
			if items, ok := env.List(m[2]); ok {
				env.Set(m[1], int64(len(items)))
			} else {
				x.logger.DebugCat(CatList, "size of unknown list %s", m[2])
			}
			return nil
		}),
		rule("item of", `set\s+(\w+)\s+to\s+item\s+(.+)\s+of\s+(\w+)`, func(x *Executor, _ context.Context, env *Environment, m []string, _ *SourcePosition) error {
			items, ok := env.List(m[3])
			if !ok {
				x.logger.DebugCat(CatList, "item of unknown list %s", m[3])
				return nil
			}
			idx, ok := toInt64(x.eval(env, m[2]))
			if ok && idx >= 0 && idx < int64(len(items)) {
				env.Set(m[1], items[idx])
			} else {
				x.logger.DebugCat(CatList, "index %s out of range for %s", m[2], m[3])
			}
			return nil
		}),
		rule("random number", `set\s+(\w+)\s+to\s+random number between\s+(.+)\s+and\s+(.+)`, func(x *Executor, _ context.Context, env *Environment, m []string, pos *SourcePosition) error {
			n, err := randomBetween(x.eval(env, m[2]), x.eval(env, m[3]))
			if err != nil {
				x.logger.WarnWithPosition(CatMath, err.Error(), pos, pos.Context())
				return nil
			}
			env.Set(m[1], n)
			return nil
		}),
		rule("random choice", `set\s+(\w+)\s+to\s+random choice from\s+(\w+)`, func(_ *Executor, _ context.Context, env *Environment, m []string, _ *SourcePosition) error {
			if items, ok := env.List(m[2]); ok && len(items) > 0 {
				env.Set(m[1], items[rand.IntN(len(items))])
			}
			return nil
		}),
		rule("set", `set\s+(\w+)\s+to\s+(.+)`, func(x *Executor, _ context.Context, env *Environment, m []string, _ *SourcePosition) error {
			v := x.eval(env, m[2])
			x.logger.DebugCat(CatVariable, "%s = %s", m[1], FormatValue(v))
			env.Set(m[1], v)
			return nil
		}),

		rule("create list", `create list\s+(\w+)`, func(_ *Executor, _ context.Context, env *Environment, m []string, _ *SourcePosition) error {
			env.CreateList(m[1])
			return nil
		}),
		rule("add", `add\s+(.+)\s+to\s+(\w+)`, func(x *Executor, _ context.Context, env *Environment, m []string, pos *SourcePosition) error {
			value := x.eval(env, m[1])
			target := m[2]
			switch {
			case env.HasList(target):
				env.Append(target, value)
			case env.Has(target):
				x.mutate(env, target, "+", value, pos)
			default:
				env.Set(target, value)
			}
			return nil
		}),
		rule("remove", `remove\s+(.+)\s+from\s+(\w+)`, func(x *Executor, _ context.Context, env *Environment, m []string, _ *SourcePosition) error {
			if !env.RemoveValue(m[2], x.eval(env, m[1])) {
				x.logger.DebugCat(CatList, "nothing removed from %s", m[2])
			}
			return nil
		}),
		rule("clear", `clear\s+(\w+)`, func(_ *Executor, _ context.Context, env *Environment, m []string, _ *SourcePosition) error {
			env.ClearList(m[1])
			return nil
		}),

		rule("say", `say(?:\s+(.*))?`, func(x *Executor, _ context.Context, env *Environment, m []string, _ *SourcePosition) error {
			text := ""
			if strings.TrimSpace(m[1]) != "" {
				text = FormatValue(x.eval(env, m[1]))
			}
			_, err := fmt.Fprintln(x.host.out, text)
			return x.outputErr(err)
		}),
		rule("write", `write\s+(.+)`, func(x *Executor, _ context.Context, env *Environment, m []string, _ *SourcePosition) error {
			_, err := fmt.Fprint(x.host.out, FormatValue(x.eval(env, m[1])))
			return x.outputErr(err)
		}),
		rule("newline", `newline`, func(x *Executor, _ context.Context, _ *Environment, _ []string, _ *SourcePosition) error {
			_, err := fmt.Fprintln(x.host.out)
			return x.outputErr(err)
		}),
		rule("wait", `wait\s+(.+?)\s+seconds?`, func(x *Executor, ctx context.Context, env *Environment, m []string, pos *SourcePosition) error {
			secs, ok := toFloat64(x.eval(env, m[1]))
			if !ok || secs < 0 {
				x.logger.WarnWithPosition(CatFlow, fmt.Sprintf("wait needs a number of seconds, got %q", m[1]), pos, pos.Context())
				return nil
			}
			return x.host.sleep(ctx, env, time.Duration(secs*float64(time.Second)))
		}),

		rule("subtract", `subtract\s+(.+)\s+from\s+(\w+)`, func(x *Executor, _ context.Context, env *Environment, m []string, pos *SourcePosition) error {
			x.mutate(env, m[2], "-", x.eval(env, m[1]), pos)
			return nil
		}),
		rule("multiply", `multiply\s+(\w+)\s+by\s+(.+)`, func(x *Executor, _ context.Context, env *Environment, m []string, pos *SourcePosition) error {
			x.mutate(env, m[1], "*", x.eval(env, m[2]), pos)
			return nil
		}),
		rule("divide", `divide\s+(\w+)\s+by\s+(.+)`, func(x *Executor, _ context.Context, env *Environment, m []string, pos *SourcePosition) error {
			divisor := x.eval(env, m[2])
			if f, ok := toFloat64(divisor); ok && f == 0 {
				x.logger.DebugCat(CatMath, "divide %s by zero ignored", m[1])
				return nil
			}
			x.mutate(env, m[1], "/", divisor, pos)
			return nil
		}),
		rule("increase", `increase\s+(\w+)(?:\s+by\s+(.+))?`, func(x *Executor, _ context.Context, env *Environment, m []string, pos *SourcePosition) error {
			x.step(env, m[1], m[2], "+", pos)
			return nil
		}),
		rule("decrease", `decrease\s+(\w+)(?:\s+by\s+(.+))?`, func(x *Executor, _ context.Context, env *Environment, m []string, pos *SourcePosition) error {
			x.step(env, m[1], m[2], "-", pos)
			return nil
		}),

		rule("ask for number", `ask for number\s+"([^"]*)"\s+and store in\s+(\w+)`, func(x *Executor, _ context.Context, env *Environment, m []string, _ *SourcePosition) error {
			answer, err := x.ask(m[1])
			if err != nil {
				return err
			}
			if f, perr := strconv.ParseFloat(strings.TrimSpace(answer), 64); perr == nil {
				env.Set(m[2], f)
			} else {
				env.Set(m[2], int64(0))
			}
			return nil
		}),
		rule("ask", `ask\s+"([^"]*)"\s+and store in\s+(\w+)`, func(x *Executor, _ context.Context, env *Environment, m []string, _ *SourcePosition) error {
			answer, err := x.ask(m[1])
			if err != nil {
				return err
			}
			env.Set(m[2], answer)
			return nil
		}),
	}
}

func (x *Executor) eval(env *Environment, expr string) interface{} {
	return x.host.evaluator.Eval(env, expr)
}

// mutate applies numeric op to an existing variable. Absent variables are
// left alone; non-numeric operands log a warning and change nothing.
func (x *Executor) mutate(env *Environment, name, op string, operand interface{}, pos *SourcePosition) {
	current, ok := env.Get(name)
	if !ok {
		x.logger.DebugCat(CatMath, "%s is not set", name)
		return
	}
	result, ok := arith(op, current, operand)
	if !ok {
		x.logger.WarnWithPosition(CatMath,
			fmt.Sprintf("Cannot apply %s to %s and %s", op, FormatValue(current), FormatValue(operand)),
			pos, pos.Context())
		return
	}
	env.Set(name, result)
}

// step implements increase/decrease; an absent variable starts from 0
func (x *Executor) step(env *Environment, name, by, op string, pos *SourcePosition) {
	var amount interface{} = int64(1)
	if strings.TrimSpace(by) != "" {
		amount = x.eval(env, by)
	}
	if !env.Has(name) {
		env.Set(name, int64(0))
	}
	x.mutate(env, name, op, amount, pos)
}

// ask writes the prompt and reads one line of input
func (x *Executor) ask(prompt string) (string, error) {
	if _, err := fmt.Fprint(x.host.out, prompt+" "); err != nil {
		return "", x.outputErr(err)
	}
	line, err := x.host.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// outputErr logs a failed write without stopping the script
func (x *Executor) outputErr(err error) error {
	if err != nil {
		x.logger.ErrorCat(CatIO, "output failed: %v", err)
	}
	return nil
}
