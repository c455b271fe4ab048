package vfs

import "github.com/wasmudf/sandbox-host/pathgrammar"

// Traverse walks dirs starting from root (if absolute) or base
// otherwise, per the traversal rule:
//   - Down(s) requires the current node be a directory containing s,
//     else NoEntry; descending into a file yields NotDirectory.
//   - Up moves to the parent; Up from the root is idempotent.
//   - Stay leaves the current node unchanged.
func Traverse(root, base *Node, p pathgrammar.Parsed) (*Node, error) {
	cur := base
	if p.Absolute {
		cur = root
	}
	for _, d := range p.Directions {
		switch d.Kind {
		case pathgrammar.Stay:
			// no-op
		case pathgrammar.Up:
			if cur.parent != nil {
				cur = cur.parent
			}
		case pathgrammar.Down:
			cur.mu.RLock()
			if cur.kind != Directory {
				cur.mu.RUnlock()
				return nil, newErr(ErrNotDirectory, d.Segment)
			}
			child, ok := cur.lookupLocked(d.Segment)
			cur.mu.RUnlock()
			if !ok {
				return nil, newErr(ErrNoEntry, d.Segment)
			}
			cur = child
		}
	}
	return cur, nil
}

// splitParent parses path and separates it into the directions leading
// to the parent directory plus the final Down segment, as required by
// create_directory_at/open_at. A path whose last direction
// is not Down(segment) is InvalidFilename.
func splitParent(p pathgrammar.Parsed) (pathgrammar.Parsed, string, error) {
	if len(p.Directions) == 0 || p.Directions[len(p.Directions)-1].Kind != pathgrammar.Down {
		return pathgrammar.Parsed{}, "", newErr(ErrInvalid, "path does not name a final segment")
	}
	last := p.Directions[len(p.Directions)-1]
	return pathgrammar.Parsed{Absolute: p.Absolute, Directions: p.Directions[:len(p.Directions)-1]}, last.Segment, nil
}
