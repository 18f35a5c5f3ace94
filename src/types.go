package sifzz

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// SourcePosition tracks the position of a statement in a script
type SourcePosition struct {
	Line         int // 1-based
	Index        int // 0-based index into Program.Lines
	OriginalText string
	Filename     string

	source []string // untrimmed program lines for error context
}

// Context returns the program lines around this position, if known
func (p *SourcePosition) Context() []string {
	if p == nil {
		return nil
	}
	return p.source
}

func (p *SourcePosition) String() string {
	if p == nil {
		return "<unknown>"
	}
	filename := p.Filename
	if filename == "" {
		filename = "<script>"
	}
	return fmt.Sprintf("%s:%d", filename, p.Line)
}

// Config holds configuration options for the interpreter
type Config struct {
	Debug            bool
	DebugCategories  []LogCategory // empty with Debug set means all categories
	LogFormat        string        // "text" (default) or "json"
	ShowErrorContext bool
	ContextLines     int

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Debug:            false,
		LogFormat:        "text",
		ShowErrorContext: true,
		ContextLines:     2,
		Stdin:            os.Stdin,
		Stdout:           os.Stdout,
		Stderr:           os.Stderr,
	}
}

// ErrExit is returned by Run when a script executes "exit" or "stop script".
// It is a deliberate termination, not a failure.
var ErrExit = errors.New("script requested exit")

// ErrCallDepth stops a run whose function calls nest too deeply
var ErrCallDepth = errors.New("maximum call depth exceeded")

// ScriptError represents an error with position information
type ScriptError struct {
	Message  string
	Position *SourcePosition
	Err      error
}

func (e *ScriptError) Error() string {
	if e.Position != nil {
		return fmt.Sprintf("%s: %s", e.Position, e.Message)
	}
	return e.Message
}

func (e *ScriptError) Unwrap() error { return e.Err }
