// Package a11y turns a frame's accessibility tree into a pruned text outline
// whose lines carry the encoded ids of the DOM nodes they describe.
package a11y

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/accessibility"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser/dom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Node is an accessibility node after decoration. EncodedID is zero when the
// node has no DOM counterpart.
type Node struct {
	Role        string
	Name        string
	Description string
	Value       string

	NodeID    accessibility.NodeID
	EncodedID schemas.EncodedID
	ParentID  accessibility.NodeID
	ChildIDs  []accessibility.NodeID
	Children  []*Node
}

// IsStructural reports whether role carries no semantics of its own.
func IsStructural(role string) bool {
	switch strings.ToLower(role) {
	case "generic", "none", "inlinetextbox":
		return true
	}
	return false
}

// ValueString decodes an AX value to its display text.
func ValueString(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	raw := []byte(v.Value)

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded != nil {
		return fmt.Sprint(decoded)
	}
	return ""
}

// ExtractURL returns the trimmed url property of a link-like node.
func ExtractURL(n *accessibility.Node) string {
	for _, p := range n.Properties {
		if p == nil || p.Name != accessibility.PropertyNameURL {
			continue
		}
		return strings.TrimSpace(ValueString(p.Value))
	}
	return ""
}

// Decorate converts raw AX nodes, attaching encoded ids and surfacing DOM
// scrollability in the role.
func Decorate(raw []*accessibility.Node, domMap *dom.DomMap, encode schemas.Encoder) []*Node {
	out := make([]*Node, 0, len(raw))
	for _, n := range raw {
		if n == nil {
			continue
		}
		d := &Node{
			Role:        ValueString(n.Role),
			Name:        ValueString(n.Name),
			Description: ValueString(n.Description),
			Value:       ValueString(n.Value),
			NodeID:      n.NodeID,
			ParentID:    n.ParentID,
			ChildIDs:    n.ChildIDs,
		}
		if n.BackendDOMNodeID > 0 {
			d.EncodedID = encode(n.BackendDOMNodeID)
		}

		if !d.EncodedID.IsZero() {
			tag := domMap.Tag(d.EncodedID)
			if (domMap.IsScrollable(d.EncodedID) || tag == "html") && tag != "#document" {
				if label := strings.TrimPrefix(tag, "#"); label != "" {
					d.Role = "scrollable, " + label
				} else {
					d.Role = "scrollable"
				}
			}
		}
		out = append(out, d)
	}
	return out
}
