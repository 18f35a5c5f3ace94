package sifzz

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var coreStatementDocs = [][2]string{
	{"set V to EXPR", "Store a value"},
	{"set V to size of L", "Number of items in list L"},
	{"set V to item N of L", "Item N (from 0) of list L"},
	{"set V to random number between A and B", "Random whole number, A and B included"},
	{"set V to random choice from L", "Random item of list L"},
	{"create list L", "Make an empty list"},
	{"add X to T", "Append to list T, or add to number T"},
	{"remove X from L", "Remove the first matching item"},
	{"clear L", "Empty a list"},
	{"say EXPR", "Print with a newline"},
	{"write EXPR", "Print without a newline"},
	{"newline", "Print an empty line"},
	{"wait N seconds", "Pause"},
	{"subtract X from V", "V = V - X"},
	{"multiply V by X", "V = V * X"},
	{"divide V by X", "V = V / X, dividing by zero does nothing"},
	{"increase V [by N]", "Add 1 (or N)"},
	{"decrease V [by N]", "Subtract 1 (or N)"},
	{`ask "P" and store in V`, "Read a line of text"},
	{`ask for number "P" and store in V`, "Read a number, 0 when invalid"},
	{"call NAME", "Run a function"},
	{"break / continue", "Leave the loop / skip to the next pass"},
	{"exit / stop script", "End the script"},
}

var coreBlockDocs = [][2]string{
	{"if COND: ... else if COND: ... else: ... end if", "Run the first matching branch"},
	{"loop while COND: ... end loop", "Repeat while COND holds"},
	{"repeat N times: ... end repeat", "Repeat N times"},
	{"for each X in L: ... end for", "Visit each item of list L, or range(A, B)"},
	{"function NAME: ... end function", "Define a function"},
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// CommandReference renders every statement form the host understands as Markdown
func (h *Host) CommandReference() string {
	var sb strings.Builder
	sb.WriteString("# Sifzz command reference\n\n")

	sb.WriteString("## Blocks\n\n| Form | Meaning |\n|---|---|\n")
	for _, d := range coreBlockDocs {
		fmt.Fprintf(&sb, "| `%s` | %s |\n", escapeCell(d[0]), escapeCell(d[1]))
	}

	sb.WriteString("\n## Statements\n\n| Form | Meaning |\n|---|---|\n")
	for _, d := range coreStatementDocs {
		fmt.Fprintf(&sb, "| `%s` | %s |\n", escapeCell(d[0]), escapeCell(d[1]))
	}

	byUnit := make(map[string][]CommandInfo)
	for _, info := range h.Commands() {
		byUnit[info.Unit] = append(byUnit[info.Unit], info)
	}
	for _, name := range h.Units() {
		infos := byUnit[name]
		if len(infos) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", name)
		if desc := h.UnitDescription(name); desc != "" {
			sb.WriteString(desc + "\n\n")
		}
		sb.WriteString("| Kind | Pattern | Meaning |\n|---|---|---|\n")
		for _, info := range infos {
			fmt.Fprintf(&sb, "| %s | `%s` | %s |\n", info.Kind, escapeCell(info.Pattern), escapeCell(info.Description))
		}
	}
	return sb.String()
}

// RenderHTML converts Markdown to an HTML fragment
func RenderHTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering reference: %w", err)
	}
	return buf.String(), nil
}
