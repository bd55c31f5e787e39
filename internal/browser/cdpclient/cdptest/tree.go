// Package cdptest provides an in-memory cdpclient.Client for tests.
package cdptest

import (
	"encoding/json"
	"strings"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"golang.org/x/net/html"
)

// IDSource hands out node ids for one simulated CDP session.
type IDSource struct {
	next int64
}

// NewIDSource starts numbering at 1, as Chrome does.
func NewIDSource() *IDSource { return &IDSource{next: 1} }

func (s *IDSource) take() int64 {
	id := s.next
	s.next++
	return id
}

// FromHTML parses markup into a CDP-shaped document. NodeID and BackendNodeID
// are assigned in document order from ids. An <iframe srcdoc="..."> gets its
// srcdoc parsed as a same-process content document, and a data-scrollable
// attribute marks an element scrollable.
func FromHTML(markup string, ids *IDSource) *cdp.Node {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		panic(err)
	}
	return convert(doc, ids)
}

func convert(n *html.Node, ids *IDSource) *cdp.Node {
	id := ids.take()
	out := &cdp.Node{
		NodeID:        cdp.NodeID(id),
		BackendNodeID: cdp.BackendNodeID(id),
	}

	switch n.Type {
	case html.DocumentNode:
		out.NodeType = cdp.NodeTypeDocument
		out.NodeName = "#document"
	case html.DoctypeNode:
		out.NodeType = cdp.NodeTypeDocumentType
		out.NodeName = n.Data
	case html.TextNode:
		out.NodeType = cdp.NodeTypeText
		out.NodeName = "#text"
		out.NodeValue = n.Data
	case html.CommentNode:
		out.NodeType = cdp.NodeTypeComment
		out.NodeName = "#comment"
		out.NodeValue = n.Data
	default:
		out.NodeType = cdp.NodeTypeElement
		out.NodeName = strings.ToUpper(n.Data)
		out.LocalName = n.Data
		for _, a := range n.Attr {
			out.Attributes = append(out.Attributes, a.Key, a.Val)
			if a.Key == "data-scrollable" {
				out.IsScrollable = true
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out.Children = append(out.Children, convert(c, ids))
	}
	out.ChildNodeCount = int64(len(out.Children))

	if out.NodeType == cdp.NodeTypeElement && n.Data == "iframe" {
		if src := out.AttributeValue("srcdoc"); src != "" {
			out.ContentDocument = FromHTML(src, ids)
		}
	}
	return out
}

// Find returns the first node (document order, piercing frames and shadow
// roots) for which match returns true.
func Find(root *cdp.Node, match func(*cdp.Node) bool) *cdp.Node {
	var found *cdp.Node
	Walk(root, func(n *cdp.Node) bool {
		if found == nil && match(n) {
			found = n
		}
		return found == nil
	})
	return found
}

// ByAttr matches elements whose attribute key has value val.
func ByAttr(key, val string) func(*cdp.Node) bool {
	return func(n *cdp.Node) bool {
		if n.NodeType != cdp.NodeTypeElement {
			return false
		}
		v, ok := n.Attribute(key)
		return ok && v == val
	}
}

// ByTag matches elements by lowercase tag name.
func ByTag(tag string) func(*cdp.Node) bool {
	return func(n *cdp.Node) bool {
		return n.NodeType == cdp.NodeTypeElement && strings.EqualFold(n.NodeName, tag)
	}
}

// Walk visits nodes in document order until fn returns false.
func Walk(root *cdp.Node, fn func(*cdp.Node) bool) {
	stack := []*cdp.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			return
		}
		if n.ContentDocument != nil {
			stack = append(stack, n.ContentDocument)
		}
		for i := len(n.ShadowRoots) - 1; i >= 0; i-- {
			stack = append(stack, n.ShadowRoots[i])
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// AttachShadow gives host an open shadow root containing the parsed markup's
// body children.
func AttachShadow(host *cdp.Node, markup string, ids *IDSource) *cdp.Node {
	parsed := FromHTML("<body>"+markup+"</body>", ids)
	body := Find(parsed, ByTag("body"))
	id := ids.take()
	root := &cdp.Node{
		NodeID:        cdp.NodeID(id),
		BackendNodeID: cdp.BackendNodeID(id),
		NodeType:      cdp.NodeTypeDocumentFragment,
		NodeName:      "#document-fragment",
		Children:      body.Children,
	}
	root.ChildNodeCount = int64(len(root.Children))
	host.ShadowRoots = append(host.ShadowRoots, root)
	return root
}

// Deep returns a document nested depth elements deep under <body>.
func Deep(depth int, ids *IDSource) *cdp.Node {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < depth; i++ {
		b.WriteString("<div>")
	}
	b.WriteString("<span>leaf</span>")
	for i := 0; i < depth; i++ {
		b.WriteString("</div>")
	}
	b.WriteString("</body></html>")
	return FromHTML(b.String(), ids)
}

// AXValue builds a string-typed accessibility value.
func AXValue(s string) *accessibility.Value {
	raw, _ := json.Marshal(s)
	return &accessibility.Value{Type: accessibility.ValueTypeString, Value: raw}
}

// AX builds an accessibility node. backend 0 leaves the DOM link unset.
func AX(id, role, name string, backend int64, parent string, children ...string) *accessibility.Node {
	n := &accessibility.Node{
		NodeID:           accessibility.NodeID(id),
		Role:             AXValue(role),
		ParentID:         accessibility.NodeID(parent),
		BackendDOMNodeID: cdp.BackendNodeID(backend),
	}
	if name != "" {
		n.Name = AXValue(name)
	}
	for _, c := range children {
		n.ChildIDs = append(n.ChildIDs, accessibility.NodeID(c))
	}
	return n
}

// WithURL adds the url property links carry.
func WithURL(n *accessibility.Node, url string) *accessibility.Node {
	n.Properties = append(n.Properties, &accessibility.Property{
		Name:  accessibility.PropertyNameURL,
		Value: AXValue(url),
	})
	return n
}
