package cdpclient

import (
	"context"
)

// CombineContext creates a context derived from ctx1 (the chromedp target
// context) that is also cancelled when ctx2 (the operational context) is.
// Values, and with them the CDP target, are inherited from ctx1 only.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
