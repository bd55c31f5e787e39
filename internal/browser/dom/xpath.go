// browser/dom/xpath.go
package dom

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/chromedp/cdproto/cdp"
)

// ShadowHop is the step appended when descending into a shadow root. It
// reads as "any descendant", since shadow boundaries have no child axis.
const ShadowHop = "//"

var (
	xpathPrefixRe    = regexp.MustCompile(`(?i)^xpath=`)
	trailingTextStep = regexp.MustCompile(`/text\(\)\[\d+\]$`)
)

// ChildSteps returns the XPath step of every sibling in kids. Ordinals are
// 1-based and counted per (node type, lowercase name), so text nodes,
// comments and each tag are numbered independently.
func ChildSteps(kids []*cdp.Node) []string {
	steps := make([]string, len(kids))
	counters := make(map[string]int, len(kids))

	for i, child := range kids {
		tag := strings.ToLower(child.NodeName)
		key := fmt.Sprintf("%d:%s", child.NodeType, tag)
		counters[key]++
		idx := counters[key]

		switch {
		case child.NodeType == cdp.NodeTypeText:
			steps[i] = fmt.Sprintf("text()[%d]", idx)
		case child.NodeType == cdp.NodeTypeComment:
			steps[i] = fmt.Sprintf("comment()[%d]", idx)
		case strings.Contains(tag, ":"):
			steps[i] = fmt.Sprintf("*[name()='%s'][%d]", tag, idx)
		default:
			steps[i] = fmt.Sprintf("%s[%d]", tag, idx)
		}
	}
	return steps
}

// JoinXPath appends one step to base. A ShadowHop step leaves the path
// ending in "//" so the next step attaches directly to it.
func JoinXPath(base, step string) string {
	if step == ShadowHop {
		if base == "" || base == "/" {
			return ShadowHop
		}
		if strings.HasSuffix(base, "/") {
			return base + "/"
		}
		return base + ShadowHop
	}
	if base == "" || base == "/" {
		if step == "" {
			return "/"
		}
		return "/" + step
	}
	if strings.HasSuffix(base, ShadowHop) {
		return base + step
	}
	if step == "" {
		return base
	}
	return base + "/" + step
}

// PrefixXPath places a frame-relative path beneath the absolute path of the
// frame's document. A child path opening with a shadow hop keeps it.
func PrefixXPath(parentAbs, child string) string {
	p := parentAbs
	if p == "/" {
		p = ""
	}
	p = strings.TrimSuffix(p, "/")

	if child == "" || child == "/" {
		if p == "" {
			return "/"
		}
		return p
	}
	if strings.HasPrefix(child, ShadowHop) {
		return p + ShadowHop + child[len(ShadowHop):]
	}
	c := strings.TrimPrefix(child, "/")
	return p + "/" + c
}

// NormalizeXPath strips an "xpath=" prefix, forces a leading "/" and drops a
// single trailing "/" unless it is part of a shadow hop.
func NormalizeXPath(x string) string {
	s := strings.TrimSpace(x)
	if s == "" {
		return ""
	}
	s = xpathPrefixRe.ReplaceAllString(s, "")
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	if len(s) > 1 && strings.HasSuffix(s, "/") && !strings.HasSuffix(s, ShadowHop) {
		s = s[:len(s)-1]
	}
	return s
}

// RelativizeXPath expresses nodeAbs relative to the document rooted at
// baseAbs. Paths outside baseAbs are returned unchanged (normalized).
func RelativizeXPath(baseAbs, nodeAbs string) string {
	base := NormalizeXPath(baseAbs)
	abs := NormalizeXPath(nodeAbs)

	if abs == base {
		return "/"
	}
	if base == "/" || base == "" {
		return abs
	}
	if strings.HasPrefix(abs, base) {
		tail := abs[len(base):]
		// Only a whole-step boundary counts as containment.
		if strings.HasPrefix(tail, "/") {
			return tail
		}
	}
	return abs
}

// TrimTrailingTextNode drops a final text() step so the path addresses the
// text's element.
func TrimTrailingTextNode(xpath string) string {
	return trailingTextStep.ReplaceAllString(xpath, "")
}

// LooksLikeXPath reports whether a selector is an XPath rather than CSS.
func LooksLikeXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return xpathPrefixRe.MatchString(s) || strings.HasPrefix(s, "/")
}

// ExtractXPath returns the expression of an "xpath=" selector.
func ExtractXPath(selector string) string {
	return xpathPrefixRe.ReplaceAllString(strings.TrimSpace(selector), "")
}
