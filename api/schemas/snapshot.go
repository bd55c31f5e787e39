package schemas

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/cdp"
)

// -- Hybrid Snapshot Schemas --

// FrameOrdinal is the position of a frame in the page's frame tree traversal.
// It disambiguates backend node ids reused by unrelated CDP sessions.
type FrameOrdinal int

// EncodedID identifies a DOM node uniquely across every frame of a page.
// Its text form is "<frameOrdinal>-<backendNodeId>".
type EncodedID struct {
	Frame   FrameOrdinal
	Backend cdp.BackendNodeID
}

// NewEncodedID pairs a frame ordinal with a backend node id.
func NewEncodedID(frame FrameOrdinal, backend cdp.BackendNodeID) EncodedID {
	return EncodedID{Frame: frame, Backend: backend}
}

// Encoder maps a backend node id of one frame to its page-wide id.
type Encoder func(cdp.BackendNodeID) EncodedID

// Encoder returns the encoder for nodes belonging to frame o.
func (o FrameOrdinal) Encoder() Encoder {
	return func(be cdp.BackendNodeID) EncodedID { return NewEncodedID(o, be) }
}

// String renders the id in its canonical "<frame>-<backend>" form.
func (e EncodedID) String() string {
	return strconv.Itoa(int(e.Frame)) + "-" + strconv.FormatInt(int64(e.Backend), 10)
}

// IsZero reports whether the id was never assigned. Backend ids start at 1.
func (e EncodedID) IsZero() bool {
	return e.Backend == 0
}

// MarshalText implements encoding.TextMarshaler.
func (e EncodedID) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EncodedID) UnmarshalText(b []byte) error {
	parsed, err := ParseEncodedID(string(b))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEncodedID parses the "<frame>-<backend>" form. Both parts must be
// non-negative decimal integers.
func ParseEncodedID(s string) (EncodedID, error) {
	frame, backend, ok := strings.Cut(s, "-")
	if !ok || frame == "" || backend == "" {
		return EncodedID{}, fmt.Errorf("malformed encoded id %q", s)
	}
	if !isDigits(frame) || !isDigits(backend) {
		return EncodedID{}, fmt.Errorf("malformed encoded id %q", s)
	}
	f, err := strconv.Atoi(frame)
	if err != nil {
		return EncodedID{}, fmt.Errorf("invalid frame ordinal in %q: %w", s, err)
	}
	b, err := strconv.ParseInt(backend, 10, 64)
	if err != nil {
		return EncodedID{}, fmt.Errorf("invalid backend id in %q: %w", s, err)
	}
	return EncodedID{Frame: FrameOrdinal(f), Backend: cdp.BackendNodeID(b)}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// HybridSnapshot is the merged DOM + accessibility view of a whole page.
// The three maps are keyed by the string form of EncodedID.
type HybridSnapshot struct {
	ID               string            `json:"id,omitempty"`
	URL              string            `json:"url,omitempty"`
	CombinedTree     string            `json:"combinedTree"`
	CombinedXPathMap map[string]string `json:"combinedXpathMap"`
	CombinedURLMap   map[string]string `json:"combinedUrlMap"`
	PerFrame         []FrameSnapshot   `json:"perFrame,omitempty"`
}

// FrameSnapshot is the per-frame breakdown of a HybridSnapshot. XPaths are
// relative to the frame's own document root.
type FrameSnapshot struct {
	FrameID  string            `json:"frameId"`
	Outline  string            `json:"outline"`
	XPathMap map[string]string `json:"xpathMap"`
	URLMap   map[string]string `json:"urlMap"`
}
