// Package pathgrammar parses the restricted `/`-delimited path grammar
// accepted by the sandbox's virtual filesystem. It never touches the
// tree itself; callers walk the returned directions against whatever
// node they start from.
package pathgrammar

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind distinguishes the three traversal directions a parsed path can
// produce.
type Kind int

const (
	// Down descends into a named child of the current directory.
	Down Kind = iota
	// Up moves to the parent of the current node. Up from the root is
	// idempotent.
	Up
	// Stay leaves the current node unchanged ("" or "." segments).
	Stay
)

// Direction is one step of a parsed path.
type Direction struct {
	Kind    Kind
	Segment string // only meaningful when Kind == Down
}

func (d Direction) String() string {
	switch d.Kind {
	case Up:
		return ".."
	case Stay:
		return "."
	default:
		return d.Segment
	}
}

// Limits bounds the size of a path and of each of its segments.
type Limits struct {
	MaxPathLength      int
	MaxPathSegmentSize int
}

// Parsed is the result of parsing a path: whether it was absolute, and
// the ordered sequence of directions to apply starting from the root
// (if Absolute) or from the caller-supplied base (otherwise).
type Parsed struct {
	Absolute   bool
	Directions []Direction
}

// Join reassembles Parsed back into its canonical slash-separated
// string form. Used by the path round-trip property: Parse(Join(Parse(p)))
// produces the same Directions as Parse(p).
func (p Parsed) Join() string {
	var b strings.Builder
	if p.Absolute {
		b.WriteByte('/')
	}
	for i, d := range p.Directions {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(d.String())
	}
	return b.String()
}

// ErrorKind enumerates the ways Parse can fail.
type ErrorKind int

const (
	ErrInvalidFilename ErrorKind = iota
	ErrLimitExceeded
)

// Error is returned by Parse. Message mirrors the concrete wording
// used in the scenario fixtures (S2): "path limit reached: limit<=N
// current==0 requested+=M".
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func limitExceeded(name string, limit, requested int) error {
	return &Error{
		Kind:    ErrLimitExceeded,
		Message: errors.Errorf("%s limit reached: limit<=%d current==0 requested+=%d", name, limit, requested).Error(),
	}
}

func invalidFilename(reason string) error {
	return &Error{Kind: ErrInvalidFilename, Message: "invalid filename: " + reason}
}

// Parse splits p on '/' into a traversal sequence, enforcing the
// length caps in lim before scanning ("|p| > max_path_length" is
// checked up front) and per-segment during iteration.
//
// Semantics: a leading empty element (p starts with '/') marks the
// path absolute. Each element maps "" or "." to Stay, ".." to Up, and
// anything else to Down(segment). Overshoot at the root (".." applied
// to root) is permitted by the traversal rule, not by Parse itself.
func Parse(p string, lim Limits) (Parsed, error) {
	if len(p) == 0 {
		return Parsed{}, invalidFilename("empty path")
	}
	if strings.IndexByte(p, 0) >= 0 {
		return Parsed{}, invalidFilename("contains NUL byte")
	}
	if lim.MaxPathLength > 0 && len(p) > lim.MaxPathLength {
		return Parsed{}, limitExceeded("path", lim.MaxPathLength, len(p))
	}

	absolute := p[0] == '/'
	elems := strings.Split(p, "/")
	dirs := make([]Direction, 0, len(elems))
	for _, e := range elems {
		switch e {
		case "", ".":
			dirs = append(dirs, Direction{Kind: Stay})
		case "..":
			dirs = append(dirs, Direction{Kind: Up})
		default:
			if lim.MaxPathSegmentSize > 0 && len(e) > lim.MaxPathSegmentSize {
				return Parsed{}, limitExceeded("path segment", lim.MaxPathSegmentSize, len(e))
			}
			dirs = append(dirs, Direction{Kind: Down, Segment: e})
		}
	}

	// The leading "" produced by an absolute path's split is already
	// represented as a Stay; drop it so Directions reflects only the
	// meaningful steps, matching the S1 fixture.
	if absolute && len(dirs) > 0 && dirs[0].Kind == Stay {
		dirs = dirs[1:]
	}

	return Parsed{Absolute: absolute, Directions: dirs}, nil
}
