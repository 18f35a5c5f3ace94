package sifzz

import (
	"strings"
)

// Program is the immutable line sequence of one script
type Program struct {
	Filename string
	lines    []string // trimmed
	raw      []string
}

// NewProgram splits script text into lines. Lines are addressed by 0-based index.
func NewProgram(source, filename string) *Program {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.TrimPrefix(source, "\ufeff")
	raw := strings.Split(source, "\n")
	if len(raw) > 0 && raw[len(raw)-1] == "" {
		raw = raw[:len(raw)-1]
	}
	lines := make([]string, len(raw))
	for i, line := range raw {
		lines[i] = strings.TrimSpace(line)
	}
	return &Program{Filename: filename, lines: lines, raw: raw}
}

// Len returns the number of lines
func (p *Program) Len() int { return len(p.lines) }

// Line returns the trimmed text at index i
func (p *Program) Line(i int) string {
	if i < 0 || i >= len(p.lines) {
		return ""
	}
	return p.lines[i]
}

// Lines returns a copy of the trimmed lines
func (p *Program) Lines() []string {
	out := make([]string, len(p.lines))
	copy(out, p.lines)
	return out
}

// Source returns the untrimmed lines, used for error context
func (p *Program) Source() []string { return p.raw }

// Position builds the source position of line index i
func (p *Program) Position(i int) *SourcePosition {
	return &SourcePosition{
		Line:         i + 1,
		Index:        i,
		OriginalText: p.Line(i),
		Filename:     p.Filename,
		source:       p.raw,
	}
}

// isIgnorable reports blank and comment lines
func isIgnorable(line string) bool {
	return line == "" || strings.HasPrefix(line, "#")
}
