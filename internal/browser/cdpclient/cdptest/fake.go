package cdptest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"

	"github.com/xkilldash9x/domsnap/internal/browser/cdpclient"
)

// ErrStackLimit mimics the message Chrome returns when CBOR serialization
// of a deep tree overflows.
var ErrStackLimit = errors.New("CBOR: stack limit exceeded")

// Fake is a scriptable, in-memory cdpclient.Client for one CDP session.
type Fake struct {
	mu sync.Mutex

	Document   *cdp.Node
	FrameTree  *page.FrameTree
	Owners     map[cdp.FrameID]cdp.BackendNodeID
	OwnerErrs  map[cdp.FrameID]error
	AXTrees    map[cdp.FrameID][]*accessibility.Node // "" is the unscoped tree
	AXErrs     map[cdp.FrameID]error
	Sessions   map[cdp.FrameID]*Fake // out-of-process frames, for SessionFor
	SessionKey string

	// DocumentFailDepths makes GetDocument fail with the stack limit at the
	// listed depths.
	DocumentFailDepths map[int64]bool
	// DescribeMaxDepth > 0 makes DescribeNode fail with the stack limit for
	// depth -1 and any depth above it.
	DescribeMaxDepth int64
	// DescribeErr, when set, is returned by every DescribeNode call.
	DescribeErr error
	// DocumentErr, when set, is returned by every GetDocument call.
	DocumentErr error
	// EnableErr, when set, is returned by every Enable* call.
	EnableErr error

	calls []string
}

var (
	_ cdpclient.Client        = (*Fake)(nil)
	_ cdpclient.SessionRouter = (*Fake)(nil)
)

// NewFake returns a single-frame fake serving doc under frame id "main".
func NewFake(doc *cdp.Node) *Fake {
	return &Fake{
		Document:   doc,
		FrameTree:  &page.FrameTree{Frame: &cdp.Frame{ID: "main"}},
		Owners:     map[cdp.FrameID]cdp.BackendNodeID{},
		OwnerErrs:  map[cdp.FrameID]error{},
		AXTrees:    map[cdp.FrameID][]*accessibility.Node{},
		AXErrs:     map[cdp.FrameID]error{},
		Sessions:   map[cdp.FrameID]*Fake{},
		SessionKey: cdpclient.RootSession,
	}
}

// AddChildFrame appends a child frame under parent in the frame tree.
func (f *Fake) AddChildFrame(parent, child cdp.FrameID) {
	var find func(t *page.FrameTree) *page.FrameTree
	find = func(t *page.FrameTree) *page.FrameTree {
		if t.Frame.ID == parent {
			return t
		}
		for _, c := range t.ChildFrames {
			if got := find(c); got != nil {
				return got
			}
		}
		return nil
	}
	p := find(f.FrameTree)
	if p == nil {
		panic(fmt.Sprintf("unknown parent frame %s", parent))
	}
	p.ChildFrames = append(p.ChildFrames, &page.FrameTree{Frame: &cdp.Frame{ID: child, ParentID: parent}})
}

// Calls returns the methods invoked so far, with their depth where relevant.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *Fake) EnableDOM(ctx context.Context) error {
	f.record("DOM.enable")
	return f.EnableErr
}

func (f *Fake) EnableRuntime(ctx context.Context) error {
	f.record("Runtime.enable")
	return f.EnableErr
}

func (f *Fake) EnableAccessibility(ctx context.Context) error {
	f.record("Accessibility.enable")
	return f.EnableErr
}

func (f *Fake) GetDocument(ctx context.Context, depth int64, pierce bool) (*cdp.Node, error) {
	f.record("DOM.getDocument depth=%d", depth)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.DocumentErr != nil {
		return nil, f.DocumentErr
	}
	if f.DocumentFailDepths[depth] {
		return nil, ErrStackLimit
	}
	return copyTree(f.Document, depth, pierce, true), nil
}

func (f *Fake) DescribeNode(ctx context.Context, ref cdpclient.NodeRef, depth int64, pierce bool) (*cdp.Node, error) {
	f.record("DOM.describeNode depth=%d", depth)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.DescribeErr != nil {
		return nil, f.DescribeErr
	}
	if f.DescribeMaxDepth > 0 && (depth < 0 || depth > f.DescribeMaxDepth) {
		return nil, ErrStackLimit
	}
	n := Find(f.Document, func(n *cdp.Node) bool {
		if ref.NodeID > 0 {
			return n.NodeID == ref.NodeID
		}
		return n.BackendNodeID == ref.BackendID
	})
	if n == nil {
		return nil, errors.New("No node with given id found")
	}
	return copyTree(n, depth, pierce, false), nil
}

func (f *Fake) GetFrameTree(ctx context.Context) (*page.FrameTree, error) {
	f.record("Page.getFrameTree")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.FrameTree, nil
}

func (f *Fake) GetFrameOwner(ctx context.Context, frameID cdp.FrameID) (cdp.BackendNodeID, error) {
	f.record("DOM.getFrameOwner %s", frameID)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := f.OwnerErrs[frameID]; err != nil {
		return 0, err
	}
	be, ok := f.Owners[frameID]
	if !ok {
		return 0, errors.New("Frame with the given id was not found.")
	}
	return be, nil
}

func (f *Fake) GetFullAXTree(ctx context.Context, frameID cdp.FrameID) ([]*accessibility.Node, error) {
	f.record("Accessibility.getFullAXTree %s", frameID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.AXErrs[frameID]; err != nil {
		return nil, err
	}
	return f.AXTrees[frameID], nil
}

func (f *Fake) SessionFor(ctx context.Context, frameID cdp.FrameID) (cdpclient.Client, string, error) {
	if s, ok := f.Sessions[frameID]; ok {
		return s, s.SessionKey, nil
	}
	return f, f.SessionKey, nil
}

// copyTree clones n down to depth levels of descendants (-1 for all),
// keeping ChildNodeCount so truncation stays detectable. Shadow roots and
// content documents are only served when pierce is set.
func copyTree(n *cdp.Node, depth int64, pierce, keepNodeIDs bool) *cdp.Node {
	out := &cdp.Node{
		BackendNodeID:  n.BackendNodeID,
		NodeType:       n.NodeType,
		NodeName:       n.NodeName,
		LocalName:      n.LocalName,
		NodeValue:      n.NodeValue,
		ChildNodeCount: n.ChildNodeCount,
		Attributes:     append([]string(nil), n.Attributes...),
		IsScrollable:   n.IsScrollable,
		FrameID:        n.FrameID,
	}
	if keepNodeIDs {
		out.NodeID = n.NodeID
	}

	next := depth - 1
	if depth < 0 {
		next = -1
	}

	if depth != 0 {
		for _, c := range n.Children {
			out.Children = append(out.Children, copyTree(c, next, pierce, keepNodeIDs))
		}
	}
	if pierce {
		budget := next
		if depth == 0 {
			budget = 0
		}
		for _, sr := range n.ShadowRoots {
			out.ShadowRoots = append(out.ShadowRoots, copyTree(sr, budget, pierce, keepNodeIDs))
		}
		if n.ContentDocument != nil {
			out.ContentDocument = copyTree(n.ContentDocument, budget, pierce, keepNodeIDs)
		}
	}
	return out
}
