package frames

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser/dom"
)

// Prefixes locates each frame's document within the page. Absolute is ""
// for the main frame; OwnerEncodedID is set for every child frame whose
// owner element could be resolved.
type Prefixes struct {
	Absolute       map[cdp.FrameID]string
	OwnerEncodedID map[cdp.FrameID]schemas.EncodedID
}

// ComputePrefixes walks the frame tree breadth-first from the root. A child
// whose owner cannot be resolved inherits its parent's prefix. Only
// cancellation of ctx is an error.
func (r *Resolver) ComputePrefixes(ctx context.Context, owners OwnerLookup, fc *Context, domMaps map[cdp.FrameID]*dom.DomMap) (*Prefixes, error) {
	out := &Prefixes{
		Absolute:       map[cdp.FrameID]string{fc.RootID: ""},
		OwnerEncodedID: make(map[cdp.FrameID]schemas.EncodedID),
	}

	queue := []cdp.FrameID{fc.RootID}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		parentAbs := out.Absolute[parent]

		for _, child := range fc.Children(parent) {
			queue = append(queue, child)

			owner, err := owners.FrameOwner(ctx, child)
			if err != nil || owner <= 0 {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				out.Absolute[child] = parentAbs
				continue
			}

			parentOrd, _ := fc.Ordinal(parent)
			enc := schemas.NewEncodedID(parentOrd, owner)
			out.OwnerEncodedID[child] = enc

			ownerXPath := ""
			if m := domMaps[parent]; m != nil {
				ownerXPath = m.XPaths[enc]
			}
			if ownerXPath == "" {
				r.logger.Debug("Frame owner missing from parent DOM map; inheriting prefix.",
					zap.String("frame_id", string(child)), zap.Stringer("owner", enc))
				out.Absolute[child] = parentAbs
				continue
			}

			base := parentAbs
			if base == "" {
				base = "/"
			}
			out.Absolute[child] = dom.PrefixXPath(base, ownerXPath)
		}
	}
	return out, nil
}
