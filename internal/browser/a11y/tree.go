package a11y

import (
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/accessibility"

	"github.com/xkilldash9x/domsnap/internal/browser/dom"
)

// DefaultMaxPruneDepth bounds the recursive pruning pass.
const DefaultMaxPruneDepth = 1024

// BuildTree links decorated nodes into a forest. Structural nodes with no
// name and no children are dropped; roots are the nodes without a parent id.
func BuildTree(nodes []*Node) []*Node {
	kept := make(map[accessibility.NodeID]*Node, len(nodes))
	for _, n := range nodes {
		keep := strings.TrimSpace(n.Name) != "" || len(n.ChildIDs) > 0 || !IsStructural(n.Role)
		if !keep {
			continue
		}
		cp := *n
		cp.Children = nil
		kept[n.NodeID] = &cp
	}

	var roots []*Node
	for _, n := range nodes {
		cur, ok := kept[n.NodeID]
		if !ok {
			continue
		}
		// A node whose parent was dropped, or never reported, starts its own tree.
		parent, ok := kept[n.ParentID]
		if n.ParentID == "" || !ok {
			roots = append(roots, cur)
			continue
		}
		parent.Children = append(parent.Children, cur)
	}
	return roots
}

func negativeID(id accessibility.NodeID) bool {
	v, err := strconv.Atoi(string(id))
	return err == nil && v < 0
}

// Prune collapses structural noise bottom-up and returns nil when nothing
// of n survives. It never modifies n.
func Prune(n *Node, domMap *dom.DomMap, maxDepth int) *Node {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxPruneDepth
	}
	return prune(n, domMap, 0, maxDepth)
}

func prune(n *Node, domMap *dom.DomMap, depth, maxDepth int) *Node {
	if negativeID(n.NodeID) {
		return nil
	}
	if depth >= maxDepth {
		return n
	}

	if len(n.Children) == 0 {
		if IsStructural(n.Role) {
			return nil
		}
		return relabel(n, domMap, nil)
	}

	kids := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if p := prune(c, domMap, depth+1, maxDepth); p != nil {
			kids = append(kids, p)
		}
	}
	kids = dropRedundantStaticText(n, kids)

	if IsStructural(n.Role) {
		switch len(kids) {
		case 0:
			return nil
		case 1:
			return kids[0]
		}
	}
	return relabel(n, domMap, kids)
}

func relabel(n *Node, domMap *dom.DomMap, kids []*Node) *Node {
	out := *n
	if len(kids) == 0 {
		kids = nil
	}
	out.Children = kids

	if n.EncodedID.IsZero() {
		return &out
	}
	tag := domMap.Tag(n.EncodedID)
	switch {
	case (n.Role == "generic" || n.Role == "none") && tag != "":
		out.Role = tag
	case n.Role == "combobox" && tag == "select":
		out.Role = "select"
	}
	return &out
}

// dropRedundantStaticText removes StaticText children when together they
// spell out the parent's name.
func dropRedundantStaticText(parent *Node, kids []*Node) []*Node {
	if parent.Name == "" {
		return kids
	}
	want := strings.TrimSpace(NormaliseSpaces(parent.Name))

	var combined strings.Builder
	for _, c := range kids {
		if c.Role == "StaticText" && c.Name != "" {
			combined.WriteString(strings.TrimSpace(NormaliseSpaces(c.Name)))
		}
	}
	if combined.String() != want {
		return kids
	}

	out := kids[:0:0]
	for _, c := range kids {
		if c.Role != "StaticText" {
			out = append(out, c)
		}
	}
	return out
}
