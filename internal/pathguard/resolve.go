package pathguard

import (
	"fmt"
	"path/filepath"
)

// ResolveExisting canonicalizes path through symlinks. If path itself (or
// some suffix of it) does not yet exist, it walks toward the root until it
// finds an existing ancestor, canonicalizes that ancestor, then rejoins
// the unresolved suffix. This lets a not-yet-created path (e.g. an
// artifact about to be written) be validated without permitting a
// symlink planted at an existing prefix to redirect it outside the root.
func ResolveExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to make path absolute: %w", err)
	}
	abs = filepath.Clean(abs)

	// Walk toward the root looking for the deepest existing ancestor,
	// remembering each missing path component along the way.
	var suffix []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached the filesystem root without finding an existing ancestor.
			return "", fmt.Errorf("no existing ancestor found for %q", path)
		}
		suffix = append(suffix, filepath.Base(cur))
		cur = parent
	}
}
