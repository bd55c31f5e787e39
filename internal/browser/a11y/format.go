package a11y

import (
	"strings"
	"unicode"

	"github.com/xkilldash9x/domsnap/api/schemas"
)

// Indent is the per-level outline indentation.
const Indent = "  "

// Line is one rendered outline row. ID is zero for nodes without a DOM
// counterpart, which render without a leading [id] token.
type Line struct {
	Depth int
	ID    schemas.EncodedID
	Text  string
}

// String renders the line with its indentation.
func (l Line) String() string {
	var b strings.Builder
	for i := 0; i < l.Depth; i++ {
		b.WriteString(Indent)
	}
	if !l.ID.IsZero() {
		b.WriteByte('[')
		b.WriteString(l.ID.String())
		b.WriteString("] ")
	}
	b.WriteString(l.Text)
	return b.String()
}

func isNBSP(r rune) bool {
	switch r {
	case '\u00a0', '\u202f', '\u2007', '\ufeff':
		return true
	}
	return false
}

// CleanText strips private-use glyphs (icon fonts) and folds non-breaking
// space variants into single spaces.
func CleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r >= '\ue000' && r <= '\uf8ff' {
			continue
		}
		if isNBSP(r) {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		b.WriteRune(r)
		prevSpace = r == ' '
	}
	return strings.TrimSpace(b.String())
}

// NormaliseSpaces collapses every whitespace run into one space.
func NormaliseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == '\ufeff' {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		b.WriteRune(r)
		inSpace = false
	}
	return b.String()
}

// Label is the "role: name" text of a node.
func Label(n *Node) string {
	name := CleanText(n.Name)
	if name == "" {
		return n.Role
	}
	return n.Role + ": " + name
}

// RenderLines flattens the forest depth-first.
func RenderLines(roots []*Node) []Line {
	type entry struct {
		node  *Node
		depth int
	}
	var lines []Line
	stack := make([]entry, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, entry{node: roots[i]})
	}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		lines = append(lines, Line{Depth: e.depth, ID: e.node.EncodedID, Text: Label(e.node)})
		for i := len(e.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, entry{node: e.node.Children[i], depth: e.depth + 1})
		}
	}
	return lines
}

// JoinLines renders lines as newline-separated text.
func JoinLines(lines []Line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.String()
	}
	return strings.TrimRight(strings.Join(parts, "\n"), " \t\n")
}
