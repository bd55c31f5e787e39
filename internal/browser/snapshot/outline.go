package snapshot

import (
	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser/a11y"
)

// Outline is a rendered accessibility outline kept as structured lines so
// frames can be spliced by id rather than by scanning text.
type Outline struct {
	Lines []a11y.Line
}

// String renders the outline.
func (o Outline) String() string {
	return a11y.JoinLines(o.Lines)
}

// Splice inserts each child outline directly beneath the line carrying its
// owner's id, one level deeper than that line. Spliced outlines are
// themselves spliced, and every owner is expanded at most once.
func (o Outline) Splice(children map[schemas.EncodedID]Outline) Outline {
	type cursor struct {
		lines []a11y.Line
		next  int
		shift int
	}

	out := make([]a11y.Line, 0, len(o.Lines))
	visited := make(map[schemas.EncodedID]bool)
	stack := []cursor{{lines: o.Lines}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.lines) {
			stack = stack[:len(stack)-1]
			continue
		}
		line := top.lines[top.next]
		top.next++
		line.Depth += top.shift
		out = append(out, line)

		if line.ID.IsZero() || visited[line.ID] {
			continue
		}
		child, ok := children[line.ID]
		if !ok {
			continue
		}
		visited[line.ID] = true
		stack = append(stack, cursor{lines: child.Lines, shift: line.Depth + 1})
	}
	return Outline{Lines: out}
}
