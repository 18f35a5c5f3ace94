package sifzz

import (
	"regexp"
	"strings"
)

// Canonical block terminators
const (
	EndIf       = "end if"
	EndLoop     = "end loop"
	EndRepeat   = "end repeat"
	EndFor      = "end for"
	EndFunction = "end function"
)

var blockOpeners = []string{"if ", "repeat ", "loop ", "for each ", "function "}

var blockTerminators = map[string]bool{
	EndIf: true, EndLoop: true, EndRepeat: true, EndFor: true, EndFunction: true,
}

func isBlockOpener(line string) bool {
	for _, prefix := range blockOpeners {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// IsTerminator reports whether line closes a block
func IsTerminator(line string) bool {
	return blockTerminators[line]
}

func isClauseLine(line string) bool {
	return line == "else:" || line == "else" || strings.HasPrefix(line, "else if ")
}

// FindBlockEnd scans forward from the header at start for the line closing
// it. Nested openers deepen the search and any terminator pops one level.
// For "end if", a clause line at the header's own depth returns the index
// just before it. When nothing closes the block the result is len(lines).
func FindBlockEnd(lines []string, start int, expected string) int {
	end, _ := findBlockEnd(lines, start, expected)
	return end
}

// findBlockEnd also reports whether the stop was caused by a sibling clause
func findBlockEnd(lines []string, start int, expected string) (int, bool) {
	depth := 1
	for i := start + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if isBlockOpener(line) {
			depth++
			continue
		}
		if blockTerminators[line] {
			depth--
			if depth == 0 && line == expected {
				return i, false
			}
			continue
		}
		if expected == EndIf && depth == 1 && isClauseLine(line) {
			return i - 1, true
		}
	}
	return len(lines), false
}

// NodeKind identifies a statement tree node
type NodeKind int

const (
	NodeStatement NodeKind = iota
	NodeIf
	NodeWhile
	NodeRepeat
	NodeForEach
	NodeFunction
	NodeMalformed
)

func (k NodeKind) String() string {
	switch k {
	case NodeStatement:
		return "statement"
	case NodeIf:
		return "if"
	case NodeWhile:
		return "loop"
	case NodeRepeat:
		return "repeat"
	case NodeForEach:
		return "for each"
	case NodeFunction:
		return "function"
	case NodeMalformed:
		return "malformed"
	}
	return "unknown"
}

// Node is one statement or block in the parsed tree
type Node struct {
	Kind     NodeKind
	Text     string // the statement or header line
	Position *SourcePosition

	Expr string // loop condition, repeat count, or for-each source
	Name string // for-each variable or function name

	Body    []*Node
	Clauses []*Clause // if only

	// Start and End delimit the body lines [Start, End) in the program
	Start, End int
}

// Clause is one branch of an if chain. Else clauses have an empty Cond.
type Clause struct {
	Cond     string
	Else     bool
	Position *SourcePosition
	Body     []*Node
}

var (
	ifHeaderRe      = regexp.MustCompile(`^if\s+(.+?)\s*:?$`)
	elseIfHeaderRe  = regexp.MustCompile(`^else if\s+(.+?)\s*:?$`)
	whileHeaderRe   = regexp.MustCompile(`^loop while\s+(.+?)\s*:?$`)
	repeatHeaderRe  = regexp.MustCompile(`^repeat\s+(.+?)\s+times?\s*:?$`)
	forEachHeaderRe = regexp.MustCompile(`^for each\s+(\w+)\s+in\s+(.+?)\s*:?$`)
	functionHeadRe  = regexp.MustCompile(`^function\s+(\w+)\s*:?$`)
)

// Parse builds the statement tree of a program
func Parse(p *Program) []*Node {
	return parseRange(p, p.lines, 0, len(p.lines))
}

func parseRange(p *Program, lines []string, lo, hi int) []*Node {
	var nodes []*Node
	i := lo
	for i < hi {
		line := lines[i]
		if isIgnorable(line) {
			i++
			continue
		}
		var node *Node
		switch {
		case strings.HasPrefix(line, "if "):
			node, i = parseIf(p, lines, i, hi)
		case strings.HasPrefix(line, "loop "):
			node, i = parseSimpleBlock(p, lines, i, hi, EndLoop)
		case strings.HasPrefix(line, "repeat "):
			node, i = parseSimpleBlock(p, lines, i, hi, EndRepeat)
		case strings.HasPrefix(line, "for each "):
			node, i = parseSimpleBlock(p, lines, i, hi, EndFor)
		case strings.HasPrefix(line, "function "):
			node, i = parseSimpleBlock(p, lines, i, hi, EndFunction)
		default:
			node = &Node{Kind: NodeStatement, Text: line, Position: p.Position(i)}
			i++
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// parseSimpleBlock handles every block kind without clauses
func parseSimpleBlock(p *Program, lines []string, start, hi int, terminator string) (*Node, int) {
	line := lines[start]
	end := min(FindBlockEnd(lines, start, terminator), hi)
	node := &Node{Text: line, Position: p.Position(start), Start: start + 1, End: end}

	switch terminator {
	case EndLoop:
		if m := whileHeaderRe.FindStringSubmatch(line); m != nil {
			node.Kind = NodeWhile
			node.Expr = m[1]
		}
	case EndRepeat:
		if m := repeatHeaderRe.FindStringSubmatch(line); m != nil {
			node.Kind = NodeRepeat
			node.Expr = m[1]
		}
	case EndFor:
		if m := forEachHeaderRe.FindStringSubmatch(line); m != nil {
			node.Kind = NodeForEach
			node.Name = m[1]
			node.Expr = m[2]
		}
	case EndFunction:
		if m := functionHeadRe.FindStringSubmatch(line); m != nil {
			node.Kind = NodeFunction
			node.Name = m[1]
		}
	}
	if node.Kind == NodeStatement {
		node.Kind = NodeMalformed
	} else {
		node.Body = parseRange(p, lines, start+1, end)
	}
	return node, end + 1
}

// parseIf resolves every clause of an if chain
func parseIf(p *Program, lines []string, start, hi int) (*Node, int) {
	node := &Node{Kind: NodeIf, Text: lines[start], Position: p.Position(start), Start: start + 1}
	m := ifHeaderRe.FindStringSubmatch(lines[start])
	if m == nil {
		node.Kind = NodeMalformed
		end := min(FindBlockEnd(lines, start, EndIf), hi)
		return node, end + 1
	}
	clause := &Clause{Cond: m[1], Position: node.Position}
	header := start
	for {
		end, atClause := findBlockEnd(lines, header, EndIf)
		if atClause && end+1 < hi {
			clause.Body = parseRange(p, lines, header+1, end+1)
			node.Clauses = append(node.Clauses, clause)

			header = end + 1
			next := lines[header]
			clause = &Clause{Position: p.Position(header)}
			if em := elseIfHeaderRe.FindStringSubmatch(next); em != nil {
				clause.Cond = em[1]
			} else {
				clause.Else = true
			}
			continue
		}
		end = min(end, hi)
		clause.Body = parseRange(p, lines, header+1, end)
		node.Clauses = append(node.Clauses, clause)
		node.End = end
		return node, end + 1
	}
}

// blockBalance counts unclosed blocks in text, used by the REPL to decide
// whether to keep reading
func blockBalance(lines []string) int {
	depth := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if isBlockOpener(line) {
			depth++
		} else if blockTerminators[line] {
			depth--
		}
	}
	return depth
}
