// Package cdpclient defines the protocol surface the snapshot engine consumes
// and a chromedp-backed implementation of it.
package cdpclient

import (
	"context"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
)

// NodeRef addresses a DOM node for DOM.describeNode. NodeID is preferred when
// set; BackendID is the fallback for nodes that were never pushed to the client.
type NodeRef struct {
	NodeID    cdp.NodeID
	BackendID cdp.BackendNodeID
}

// Valid reports whether the ref carries at least one usable id.
func (r NodeRef) Valid() bool {
	return r.NodeID > 0 || r.BackendID > 0
}

// Client is the abstract CDP client the engine is written against. Every
// call blocks until the browser replies, the per-call timeout elapses, or ctx
// is cancelled.
//
// GetDocument and DescribeNode must report Chrome's serialization recursion
// limit so that IsStackLimit recognizes it. GetFullAXTree must report stale
// frame ids so that IsFrameScope recognizes them.
type Client interface {
	EnableDOM(ctx context.Context) error
	EnableRuntime(ctx context.Context) error
	EnableAccessibility(ctx context.Context) error

	GetDocument(ctx context.Context, depth int64, pierce bool) (*cdp.Node, error)
	DescribeNode(ctx context.Context, ref NodeRef, depth int64, pierce bool) (*cdp.Node, error)

	GetFrameTree(ctx context.Context) (*page.FrameTree, error)
	GetFrameOwner(ctx context.Context, frameID cdp.FrameID) (cdp.BackendNodeID, error)

	// GetFullAXTree fetches the accessibility tree. An empty frameID fetches
	// the tree of the session's main frame without frame scoping.
	GetFullAXTree(ctx context.Context, frameID cdp.FrameID) ([]*accessibility.Node, error)
}

// RootSession is the session key of the page's own target.
const RootSession = "root"

// SessionRouter is implemented by clients able to address out-of-process
// frames through their own CDP sessions. SessionFor returns the client to use
// for frameID together with a key identifying its session; frames served by
// the same session share a key.
type SessionRouter interface {
	SessionFor(ctx context.Context, frameID cdp.FrameID) (Client, string, error)
}
