package sifzz

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

// newTestHost returns a host writing script output to out and log output to
// errOut, reading input from stdin
func newTestHost(stdin string) (*Host, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cfg := DefaultConfig()
	cfg.Stdin = strings.NewReader(stdin)
	cfg.Stdout = out
	cfg.Stderr = errOut
	return New(cfg), out, errOut
}

func runScript(t *testing.T, src string) (*Host, string, string) {
	t.Helper()
	h, out, errOut := newTestHost("")
	if err := h.Run(context.Background(), src, "test.sfzz"); err != nil && !errors.Is(err, ErrExit) {
		t.Fatalf("Run failed: %v", err)
	}
	return h, out.String(), errOut.String()
}

func TestIfRunsExactlyOneClause(t *testing.T) {
	src := `if x is 1:
    say "one"
else if x is 2:
    say "two"
else if x > 0:
    say "positive"
else:
    say "other"
end if`
	cases := map[string]string{
		"1":  "one\n",
		"2":  "two\n",
		"7":  "positive\n",
		"-3": "other\n",
	}
	for value, want := range cases {
		_, out, _ := runScript(t, "set x to "+value+"\n"+src)
		if out != want {
			t.Errorf("x=%s: expected %q, got %q", value, want, out)
		}
	}

	_, out, _ := runScript(t, "if 1 > 2:\n  say \"yes\"\nend if\nsay \"after\"")
	if out != "after\n" {
		t.Errorf("Expected only 'after', got %q", out)
	}
}

func TestLoops(t *testing.T) {
	t.Run("loop while false runs zero times", func(t *testing.T) {
		_, out, _ := runScript(t, "loop while false:\n  say \"body\"\nend loop\nsay \"done\"")
		if out != "done\n" {
			t.Errorf("Expected %q, got %q", "done\n", out)
		}
	})

	t.Run("repeat counts", func(t *testing.T) {
		h, _, _ := runScript(t, "set n to 0\nrepeat 0 times:\n  increase n\nend repeat")
		if v, _ := h.Env().Get("n"); v != int64(0) {
			t.Errorf("repeat 0: expected 0, got %v", v)
		}
		h, _, _ = runScript(t, "set n to 0\nrepeat 3 times:\n  increase n\nend repeat")
		if v, _ := h.Env().Get("n"); v != int64(3) {
			t.Errorf("repeat 3: expected 3, got %v", v)
		}
	})

	t.Run("for each over range", func(t *testing.T) {
		h, out, _ := runScript(t, "for each x in range(0,5):\n  write x\nend for")
		if out != "01234" {
			t.Errorf("Expected %q, got %q", "01234", out)
		}
		if v, _ := h.Env().Get("x"); v != int64(4) {
			t.Errorf("Expected x to be 4 after the loop, got %v", v)
		}
	})

	t.Run("for each over a list snapshot", func(t *testing.T) {
		src := `create list fruits
add "apple" to fruits
add "pear" to fruits
for each f in fruits:
    add f to fruits
    say f
end for
set n to size of fruits`
		h, out, _ := runScript(t, src)
		if out != "apple\npear\n" {
			t.Errorf("Expected the two original items, got %q", out)
		}
		if v, _ := h.Env().Get("n"); v != int64(4) {
			t.Errorf("Expected 4 items after the loop, got %v", v)
		}
	})

	t.Run("while loop counts", func(t *testing.T) {
		_, out, _ := runScript(t, "set i to 0\nloop while i < 3:\n  write i\n  increase i\nend loop")
		if out != "012" {
			t.Errorf("Expected %q, got %q", "012", out)
		}
	})
}

func TestBreakAndContinue(t *testing.T) {
	t.Run("break leaves the innermost loop", func(t *testing.T) {
		src := `repeat 2 times:
    for each i in range(10):
        if i is 3:
            break
        end if
        write i
    end for
    newline
end repeat`
		_, out, _ := runScript(t, src)
		if out != "012\n012\n" {
			t.Errorf("Expected %q, got %q", "012\n012\n", out)
		}
	})

	t.Run("continue skips to the next pass", func(t *testing.T) {
		src := `for each i in range(6):
    if i % 2 is 0:
        continue
    end if
    write i
end for`
		_, out, _ := runScript(t, src)
		if out != "135" {
			t.Errorf("Expected %q, got %q", "135", out)
		}
	})

	t.Run("break inside a called function ends the caller's loop", func(t *testing.T) {
		src := `function stop_now:
    break
end function
set n to 0
loop while true:
    increase n
    call stop_now
    say "unreachable"
end loop
say n`
		_, out, _ := runScript(t, src)
		if out != "1\n" {
			t.Errorf("Expected %q, got %q", "1\n", out)
		}
	})
}

func TestFunctions(t *testing.T) {
	src := `function double:
    multiply n by 2
end function
set n to 3
call double
call double
call missing
say n`
	_, out, _ := runScript(t, src)
	if out != "12\n" {
		t.Errorf("Expected %q, got %q", "12\n", out)
	}
}

func TestRunawayRecursion(t *testing.T) {
	h, _, _ := newTestHost("")
	err := h.Run(context.Background(), "function f:\n  call f\nend function\ncall f", "rec.sfzz")
	if !errors.Is(err, ErrCallDepth) {
		t.Fatalf("Expected ErrCallDepth, got %v", err)
	}
	var se *ScriptError
	if !errors.As(err, &se) || se.Position == nil || se.Position.Line != 2 {
		t.Errorf("Expected a positioned ScriptError, got %v", err)
	}
}

func TestExit(t *testing.T) {
	h, out, _ := newTestHost("")
	err := h.Run(context.Background(), "say \"a\"\nrepeat 3 times:\n  stop script\nend repeat\nsay \"b\"", "exit.sfzz")
	if !errors.Is(err, ErrExit) {
		t.Errorf("Expected ErrExit, got %v", err)
	}
	if out.String() != "a\n" {
		t.Errorf("Expected %q, got %q", "a\n", out.String())
	}
}

func TestUnknownCommandContinues(t *testing.T) {
	_, out, errOut := runScript(t, "frobnicate the widget\nsay \"still here\"")
	if out != "still here\n" {
		t.Errorf("Expected the next line to run, got %q", out)
	}
	if !strings.Contains(errOut, "Unknown command: frobnicate the widget") {
		t.Errorf("Expected an unknown command warning, got %q", errOut)
	}
	if !strings.Contains(errOut, "at line 1 in test.sfzz") {
		t.Errorf("Expected the warning to carry the position, got %q", errOut)
	}
}

func TestMalformedBlockIsSkipped(t *testing.T) {
	_, out, errOut := runScript(t, "repeat lots:\n  say \"inside\"\nend repeat\nsay \"after\"")
	if out != "after\n" {
		t.Errorf("Expected only %q, got %q", "after\n", out)
	}
	if !strings.Contains(errOut, "Malformed block header") {
		t.Errorf("Expected a malformed header warning, got %q", errOut)
	}
}

func TestUnterminatedBlockRunsToEnd(t *testing.T) {
	_, out, _ := runScript(t, "repeat 2 times:\n  write \"x\"")
	if out != "xx" {
		t.Errorf("Expected %q, got %q", "xx", out)
	}
}

func TestCancelledContextStopsRun(t *testing.T) {
	h, _, _ := newTestHost("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Run(ctx, "loop while true:\n  set x to 1\nend loop", "spin.sfzz")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestQueuedMessagesAreAppliedBetweenStatements(t *testing.T) {
	h, out, _ := newTestHost("")
	h.Post(Message{Source: "test", Apply: func(env *Environment) { env.Set("ready", "yes") }})
	h.Post(Message{Source: "test", Command: `say "from queue"`})
	if err := h.Run(context.Background(), "say ready", "queue.sfzz"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.String() != "from queue\nyes\n" {
		t.Errorf("Expected queued work before the statement, got %q", out.String())
	}
}
