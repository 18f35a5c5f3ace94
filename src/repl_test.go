package sifzz

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestREPL(t *testing.T) (*REPL, *bytes.Buffer, *bytes.Buffer, string) {
	t.Helper()
	h, out, errOut := newTestHost("")
	r := NewREPL(h, "dark")
	path := filepath.Join(t.TempDir(), "history.yaml")
	r.SetHistoryPath(path)
	return r, out, errOut, path
}

func TestREPLRunsEntriesInOneEnvironment(t *testing.T) {
	r, out, _, _ := newTestREPL(t)
	input := strings.Join([]string{
		"set x to 1",
		"if x is 1:",
		`  say "yes"`,
		"end if",
		"",
		"increase x",
		"say x",
		"exit",
		`say "never"`,
	}, "\n")
	prompts := &bytes.Buffer{}

	require.NoError(t, r.Run(context.Background(), strings.NewReader(input), prompts))
	assert.Equal(t, "yes\n2\n", out.String())
	assert.Equal(t, "sifzz> sifzz> ...> ...> sifzz> sifzz> sifzz> sifzz> ", prompts.String())
	assert.Equal(t, []string{"set x to 1", "if x is 1:\n  say \"yes\"\nend if", "increase x", "say x"}, r.History())
}

func TestREPLExitStatementEndsSession(t *testing.T) {
	r, out, _, _ := newTestREPL(t)
	input := "say \"a\"\nstop script\nsay \"b\"\n"
	require.NoError(t, r.Run(context.Background(), strings.NewReader(input), &bytes.Buffer{}))
	assert.Equal(t, "a\n", out.String())
}

func TestREPLKeepsGoingAfterErrors(t *testing.T) {
	r, out, errOut, _ := newTestREPL(t)
	input := "function f:\n  call f\nend function\ncall f\nsay \"still here\"\n"
	require.NoError(t, r.Run(context.Background(), strings.NewReader(input), &bytes.Buffer{}))
	assert.Equal(t, "still here\n", out.String())
	assert.Contains(t, errOut.String(), "maximum call depth")
}

func TestREPLStopsWhenSessionContextEnds(t *testing.T) {
	r, _, _, _ := newTestREPL(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Run(ctx, strings.NewReader("say 1\nsay 2\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestREPLHistoryPersists(t *testing.T) {
	r, _, _, path := newTestREPL(t)
	require.NoError(t, os.WriteFile(path, []byte("- say \"old\"\n"), 0o644))

	require.NoError(t, r.Run(context.Background(), strings.NewReader("say 1\nsay 1\nsay 2\n"), &bytes.Buffer{}))
	assert.Equal(t, []string{`say "old"`, "say 1", "say 2"}, r.History())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved []string
	require.NoError(t, yaml.Unmarshal(content, &saved))
	assert.Equal(t, r.History(), saved)
}

func TestREPLHistoryIsBounded(t *testing.T) {
	h := &replHistory{}
	for i := 0; i < replMaxHistoryLines+5; i++ {
		h.Add(strings.Repeat("x", i%3+1) + string(rune('a'+i%26)))
	}
	assert.Equal(t, replMaxHistoryLines, h.Len())
	h.Add("latest")
	assert.Equal(t, "latest", h.At(0))
	h.Add("   ")
	assert.Equal(t, "latest", h.At(0))
}

func TestREPLFeed(t *testing.T) {
	r, _, _, _ := newTestREPL(t)

	_, ready, quit := r.feed("QUIT")
	assert.False(t, ready)
	assert.True(t, quit)

	_, ready, _ = r.feed("repeat 2 times:")
	assert.False(t, ready)
	assert.Equal(t, replContinuePrompt, r.prompt())

	// exit inside an open block is part of the block
	_, ready, quit = r.feed("  exit")
	assert.False(t, ready)
	assert.False(t, quit)

	entry, ready, _ := r.feed("end repeat")
	assert.True(t, ready)
	assert.Equal(t, "repeat 2 times:\n  exit\nend repeat", entry)
	assert.Equal(t, replPrompt, r.prompt())
}
