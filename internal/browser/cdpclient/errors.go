package cdpclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
)

// Sentinels a Client may wrap to make its failures recognizable without
// relying on the browser's message text.
var (
	ErrStackLimit = errors.New("cdp: serialization stack limit exceeded")
	ErrFrameScope = errors.New("cdp: frame not addressable from this target")
)

// Fragments of Chrome's own messages for the two distinguished conditions.
var (
	stackLimitMarkers = []string{"stack limit exceeded"}
	frameScopeMarkers = []string{
		"Frame with the given",
		"does not belong to the target",
		"is not found",
	}
)

// IsStackLimit reports whether err is Chrome's CBOR recursion limit.
func IsStackLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStackLimit) {
		return true
	}
	return containsAny(err.Error(), stackLimitMarkers)
}

// IsFrameScope reports whether err means a frame id was stale or belonged to
// another target.
func IsFrameScope(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFrameScope) {
		return true
	}
	return containsAny(err.Error(), frameScopeMarkers)
}

func containsAny(msg string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// ProtocolError is a client failure the engine does not retry.
type ProtocolError struct {
	Method string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Method, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// DepthExceededError is returned once every depth in a fallback sequence hit
// the recursion limit.
type DepthExceededError struct {
	Method    string
	Node      NodeRef
	LastDepth int64
	Err       error
}

func (e *DepthExceededError) Error() string {
	target := "document"
	if e.Node.Valid() {
		target = fmt.Sprintf("node (nodeId=%d backendId=%d)", e.Node.NodeID, e.Node.BackendID)
	}
	return fmt.Sprintf("%s on %s failed after adaptive depth retries (last depth %d): %v",
		e.Method, target, e.LastDepth, e.Err)
}

func (e *DepthExceededError) Unwrap() error { return e.Err }

// FrameScopeError reports a frame-scoped call whose frame id was not usable.
type FrameScopeError struct {
	Method  string
	FrameID cdp.FrameID
	Err     error
}

func (e *FrameScopeError) Error() string {
	return fmt.Sprintf("%s for frame %s failed: %v", e.Method, e.FrameID, e.Err)
}

func (e *FrameScopeError) Unwrap() error { return e.Err }

// Protocol wraps err as a ProtocolError unless it already carries one of the
// engine's typed errors.
func Protocol(method string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProtocolError
	var de *DepthExceededError
	var fe *FrameScopeError
	if errors.As(err, &pe) || errors.As(err, &de) || errors.As(err, &fe) {
		return err
	}
	return &ProtocolError{Method: method, Err: err}
}
