package dom

import (
	"github.com/chromedp/cdproto/cdp"

	"github.com/xkilldash9x/domsnap/api/schemas"
)

// DomMap is one frame's view of a SessionIndex, keyed by encoded id. XPaths
// are relative to the frame's own document root.
type DomMap struct {
	Tags       map[schemas.EncodedID]string
	XPaths     map[schemas.EncodedID]string
	Scrollable map[schemas.EncodedID]bool
}

// NewDomMap returns an empty DomMap.
func NewDomMap() *DomMap {
	return &DomMap{
		Tags:       make(map[schemas.EncodedID]string),
		XPaths:     make(map[schemas.EncodedID]string),
		Scrollable: make(map[schemas.EncodedID]bool),
	}
}

// Tag returns the lowercase tag of id, or "" when unknown.
func (m *DomMap) Tag(id schemas.EncodedID) string {
	if m == nil {
		return ""
	}
	return m.Tags[id]
}

// IsScrollable reports whether id is DOM-scrollable.
func (m *DomMap) IsScrollable(id schemas.EncodedID) bool {
	return m != nil && m.Scrollable[id]
}

// Extract derives the DomMap of the document rooted at docRoot.
func Extract(idx *SessionIndex, docRoot cdp.BackendNodeID, encode schemas.Encoder) *DomMap {
	out := NewDomMap()

	baseAbs, ok := idx.AbsoluteXPath[docRoot]
	if !ok {
		baseAbs = "/"
	}

	for be, abs := range idx.AbsoluteXPath {
		if idx.DocumentRoot[be] != docRoot {
			continue
		}
		key := encode(be)
		out.XPaths[key] = RelativizeXPath(baseAbs, abs)
		if tag := idx.Tag[be]; tag != "" {
			out.Tags[key] = tag
		}
		if idx.Scrollable[be] {
			out.Scrollable[key] = true
		}
	}
	return out
}

// DocumentRootFor picks the document a frame lives in: the content document
// of its owner element when this session holds it, else the session's top
// document.
func (idx *SessionIndex) DocumentRootFor(owner cdp.BackendNodeID) cdp.BackendNodeID {
	if owner > 0 {
		if root, ok := idx.ContentDocumentRoot[owner]; ok {
			return root
		}
	}
	return idx.RootBackend
}
