// internal/browser/allocator.go
package browser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/domsnap/internal/config"
)

// AllocatorFlags returns the Chrome command line switches (without the
// leading dashes) used to launch a local browser for cfg.
func AllocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"disable-gpu":                    true,
		"no-sandbox":                     true,
		"disable-dev-shm-usage":          true,
		"enable-automation":              true,
		"no-first-run":                   true,
		"no-default-browser-check":       true,
		"disable-background-networking":  true,
		"disable-renderer-backgrounding": true,
		"hide-scrollbars":                true,
		"mute-audio":                     true,
	}
	if cfg.Headless {
		flags["headless"] = "new"
	}
	if cfg.DisableCache {
		flags["disk-cache-size"] = "1"
		flags["media-cache-size"] = "1"
		flags["disable-cache"] = true
	}
	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
		flags["allow-insecure-localhost"] = true
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", w, h)
	}

	// --key=value becomes a valued switch, --key a boolean one.
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if key == "" {
			continue
		}
		if found {
			flags[key] = value
		} else {
			flags[key] = true
		}
	}
	return flags
}

// DefaultAllocatorOptions converts AllocatorFlags into chromedp exec allocator
// options, in a stable order.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	flags := AllocatorFlags(cfg)
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	opts := make([]chromedp.ExecAllocatorOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, chromedp.Flag(k, flags[k]))
	}
	return opts
}
