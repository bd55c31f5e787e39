package cdpclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// DefaultCallTimeout bounds a single protocol call when no timeout is configured.
const DefaultCallTimeout = 30 * time.Second

// ChromeClient implements Client on top of a chromedp target context.
// It also implements SessionRouter: out-of-process iframes are reached by
// attaching a child chromedp context to their target.
type ChromeClient struct {
	ctx     context.Context // chromedp context carrying the page target
	logger  *zap.Logger
	timeout time.Duration
	session string

	mu       sync.Mutex
	children map[target.ID]*ChromeClient
	cancels  []context.CancelFunc
}

var (
	_ Client        = (*ChromeClient)(nil)
	_ SessionRouter = (*ChromeClient)(nil)
)

// NewChromeClient wraps a chromedp context (one created by chromedp.NewContext
// and already attached to its target). timeout <= 0 selects DefaultCallTimeout.
func NewChromeClient(ctx context.Context, logger *zap.Logger, timeout time.Duration) *ChromeClient {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &ChromeClient{
		ctx:      ctx,
		logger:   logger.Named("cdp_client"),
		timeout:  timeout,
		session:  RootSession,
		children: make(map[target.ID]*ChromeClient),
	}
}

// run executes fn against the page target within both the operational
// deadline and the lifetime of the target context.
func (c *ChromeClient) run(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	runCtx, runCancel := CombineContext(c.ctx, opCtx)
	defer runCancel()

	err := chromedp.Run(runCtx, chromedp.ActionFunc(fn))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
	if opCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s timed out after %v: %w", method, c.timeout, opCtx.Err())
	}
	return classify(err)
}

// classify attaches the package sentinels to Chrome's textual errors.
func classify(err error) error {
	switch {
	case IsStackLimit(err):
		return fmt.Errorf("%w: %w", ErrStackLimit, err)
	case IsFrameScope(err):
		return fmt.Errorf("%w: %w", ErrFrameScope, err)
	default:
		return err
	}
}

func (c *ChromeClient) EnableDOM(ctx context.Context) error {
	return c.run(ctx, "DOM.enable", func(ctx context.Context) error {
		return dom.Enable().Do(ctx)
	})
}

func (c *ChromeClient) EnableRuntime(ctx context.Context) error {
	return c.run(ctx, "Runtime.enable", func(ctx context.Context) error {
		return runtime.Enable().Do(ctx)
	})
}

func (c *ChromeClient) EnableAccessibility(ctx context.Context) error {
	return c.run(ctx, "Accessibility.enable", func(ctx context.Context) error {
		return accessibility.Enable().Do(ctx)
	})
}

func (c *ChromeClient) GetDocument(ctx context.Context, depth int64, pierce bool) (*cdp.Node, error) {
	var root *cdp.Node
	err := c.run(ctx, "DOM.getDocument", func(ctx context.Context) error {
		var err error
		root, err = dom.GetDocument().WithDepth(depth).WithPierce(pierce).Do(ctx)
		return err
	})
	return root, err
}

func (c *ChromeClient) DescribeNode(ctx context.Context, ref NodeRef, depth int64, pierce bool) (*cdp.Node, error) {
	p := dom.DescribeNode().WithDepth(depth).WithPierce(pierce)
	if ref.NodeID > 0 {
		p = p.WithNodeID(ref.NodeID)
	} else {
		p = p.WithBackendNodeID(ref.BackendID)
	}

	var node *cdp.Node
	err := c.run(ctx, "DOM.describeNode", func(ctx context.Context) error {
		var err error
		node, err = p.Do(ctx)
		return err
	})
	return node, err
}

func (c *ChromeClient) GetFrameTree(ctx context.Context) (*page.FrameTree, error) {
	var tree *page.FrameTree
	err := c.run(ctx, "Page.getFrameTree", func(ctx context.Context) error {
		var err error
		tree, err = page.GetFrameTree().Do(ctx)
		return err
	})
	return tree, err
}

func (c *ChromeClient) GetFrameOwner(ctx context.Context, frameID cdp.FrameID) (cdp.BackendNodeID, error) {
	var backend cdp.BackendNodeID
	err := c.run(ctx, "DOM.getFrameOwner", func(ctx context.Context) error {
		var err error
		backend, _, err = dom.GetFrameOwner(frameID).Do(ctx)
		return err
	})
	return backend, err
}

func (c *ChromeClient) GetFullAXTree(ctx context.Context, frameID cdp.FrameID) ([]*accessibility.Node, error) {
	p := accessibility.GetFullAXTree()
	if frameID != "" {
		p = p.WithFrameID(frameID)
	}

	var nodes []*accessibility.Node
	err := c.run(ctx, "Accessibility.getFullAXTree", func(ctx context.Context) error {
		var err error
		nodes, err = p.Do(ctx)
		return err
	})
	return nodes, err
}

// SessionFor returns a client attached to frameID's own target when the frame
// is an out-of-process iframe, and the receiver otherwise.
func (c *ChromeClient) SessionFor(ctx context.Context, frameID cdp.FrameID) (Client, string, error) {
	tid := target.ID(frameID)

	c.mu.Lock()
	child, ok := c.children[tid]
	c.mu.Unlock()
	if ok {
		return child, child.session, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	runCtx, runCancel := CombineContext(c.ctx, opCtx)
	defer runCancel()

	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, "", fmt.Errorf("Target.getTargets: %w", err)
	}

	for _, info := range infos {
		if info.TargetID != tid || info.Type != "iframe" {
			continue
		}

		childCtx, childCancel := chromedp.NewContext(c.ctx, chromedp.WithTargetID(tid))
		if err := chromedp.Run(childCtx); err != nil {
			childCancel()
			return nil, "", fmt.Errorf("attach to frame target %s: %w", tid, err)
		}

		child := &ChromeClient{
			ctx:      childCtx,
			logger:   c.logger.With(zap.String("target_id", string(tid))),
			timeout:  c.timeout,
			session:  string(tid),
			children: make(map[target.ID]*ChromeClient),
		}

		c.mu.Lock()
		c.children[tid] = child
		c.cancels = append(c.cancels, childCancel)
		c.mu.Unlock()

		c.logger.Debug("Attached to out-of-process frame target.", zap.String("frame_id", string(frameID)))
		return child, child.session, nil
	}

	return c, c.session, nil
}

// Close releases the child contexts created for out-of-process frames. The
// page's own context belongs to the caller and is left alone.
func (c *ChromeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
	c.children = make(map[target.ID]*ChromeClient)
}
