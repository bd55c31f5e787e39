package frames

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domsnap/internal/browser/cdpclient"
)

// OwnerLookup resolves the backend id of the element that owns a frame,
// expressed in the parent frame's session.
type OwnerLookup interface {
	FrameOwner(ctx context.Context, frameID cdp.FrameID) (cdp.BackendNodeID, error)
}

// ClientFor returns the client serving frameID's session.
type ClientFor func(frameID cdp.FrameID) cdpclient.Client

type ownerResult struct {
	backend cdp.BackendNodeID
	err     error
}

// OwnerCache issues DOM.getFrameOwner at most once per frame for the
// lifetime of one capture, asking the parent frame's session.
type OwnerCache struct {
	logger    *zap.Logger
	fc        *Context
	clientFor ClientFor

	mu      sync.Mutex
	results map[cdp.FrameID]ownerResult
}

// NewOwnerCache creates an OwnerCache for the frames in fc.
func NewOwnerCache(logger *zap.Logger, fc *Context, clientFor ClientFor) *OwnerCache {
	return &OwnerCache{
		logger:    logger.Named("frame_owners"),
		fc:        fc,
		clientFor: clientFor,
		results:   make(map[cdp.FrameID]ownerResult),
	}
}

// FrameOwner implements OwnerLookup. Cancellation is never cached.
func (c *OwnerCache) FrameOwner(ctx context.Context, frameID cdp.FrameID) (cdp.BackendNodeID, error) {
	c.mu.Lock()
	if r, ok := c.results[frameID]; ok {
		c.mu.Unlock()
		return r.backend, r.err
	}
	c.mu.Unlock()

	parent := c.fc.ParentOf[frameID]
	if parent == "" {
		parent = frameID
	}
	backend, err := c.clientFor(parent).GetFrameOwner(ctx, frameID)
	if err != nil {
		if ctx.Err() != nil {
			return 0, cdpclient.Protocol("DOM.getFrameOwner", ctx.Err())
		}
		c.logger.Debug("Frame owner lookup failed.", zap.String("frame_id", string(frameID)), zap.Error(err))
		err = &cdpclient.FrameScopeError{Method: "DOM.getFrameOwner", FrameID: frameID, Err: err}
	}

	c.mu.Lock()
	c.results[frameID] = ownerResult{backend: backend, err: err}
	c.mu.Unlock()
	return backend, err
}
