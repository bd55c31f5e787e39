// Package frames discovers a page's frame topology and locates every frame's
// document inside the outer page's XPath space.
package frames

import (
	"context"
	"errors"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser/cdpclient"
)

// Context is the frame tree of one page, flattened in preorder. A frame's
// position in Frames is its ordinal.
type Context struct {
	RootID   cdp.FrameID
	ParentOf map[cdp.FrameID]cdp.FrameID // the root maps to ""
	Frames   []cdp.FrameID
	URLs     map[cdp.FrameID]string

	ordinals map[cdp.FrameID]schemas.FrameOrdinal
	children map[cdp.FrameID][]cdp.FrameID
}

// NewContext builds a Context from a preorder frame list and parent links.
func NewContext(frames []cdp.FrameID, parentOf map[cdp.FrameID]cdp.FrameID) *Context {
	c := &Context{
		ParentOf: parentOf,
		Frames:   frames,
		URLs:     make(map[cdp.FrameID]string),
		ordinals: make(map[cdp.FrameID]schemas.FrameOrdinal, len(frames)),
		children: make(map[cdp.FrameID][]cdp.FrameID),
	}
	for i, id := range frames {
		c.ordinals[id] = schemas.FrameOrdinal(i)
		if p := parentOf[id]; p != "" {
			c.children[p] = append(c.children[p], id)
		} else if c.RootID == "" {
			c.RootID = id
		}
	}
	return c
}

// Ordinal returns the ordinal of frameID.
func (c *Context) Ordinal(frameID cdp.FrameID) (schemas.FrameOrdinal, bool) {
	o, ok := c.ordinals[frameID]
	return o, ok
}

// Encoder returns the encoded-id function for nodes of frameID.
func (c *Context) Encoder(frameID cdp.FrameID) schemas.Encoder {
	return c.ordinals[frameID].Encoder()
}

// Children lists the direct child frames of parent in tree order.
func (c *Context) Children(parent cdp.FrameID) []cdp.FrameID {
	return c.children[parent]
}

// IsRoot reports whether frameID is the page's main frame.
func (c *Context) IsRoot(frameID cdp.FrameID) bool {
	return frameID == c.RootID
}

// Resolver discovers frames and computes their XPath prefixes.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger.Named("frame_resolver")}
}

// Discover walks Page.getFrameTree in preorder.
func (r *Resolver) Discover(ctx context.Context, client cdpclient.Client) (*Context, error) {
	tree, err := client.GetFrameTree(ctx)
	if err != nil {
		return nil, cdpclient.Protocol("Page.getFrameTree", err)
	}
	if tree == nil || tree.Frame == nil {
		return nil, cdpclient.Protocol("Page.getFrameTree", errors.New("empty frame tree"))
	}

	type entry struct {
		node   *page.FrameTree
		parent cdp.FrameID
	}
	var frames []cdp.FrameID
	parentOf := make(map[cdp.FrameID]cdp.FrameID)
	urls := make(map[cdp.FrameID]string)

	stack := []entry{{node: tree}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.node == nil || e.node.Frame == nil {
			continue
		}

		id := e.node.Frame.ID
		if _, dup := parentOf[id]; dup {
			continue
		}
		parentOf[id] = e.parent
		frames = append(frames, id)
		urls[id] = e.node.Frame.URL + e.node.Frame.URLFragment

		for i := len(e.node.ChildFrames) - 1; i >= 0; i-- {
			stack = append(stack, entry{node: e.node.ChildFrames[i], parent: id})
		}
	}

	r.logger.Debug("Discovered frames.", zap.Int("count", len(frames)), zap.String("root", string(tree.Frame.ID)))
	fc := NewContext(frames, parentOf)
	fc.URLs = urls
	return fc, nil
}
