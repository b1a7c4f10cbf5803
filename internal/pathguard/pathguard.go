// Package pathguard resolves and validates filesystem paths against a set
// of allowed roots and deny-globs, resisting symlink escape and
// directory-traversal tricks including TOCTOU-style not-yet-existing-path
// escapes.
package pathguard

import (
	"path/filepath"
	"strings"
)

// Result is the outcome of a Validate call.
type Result struct {
	Allowed  bool
	Resolved string
	Reason   string
}

// Validate resolves path to its canonical form and checks it against
// contextRoots and denyGlobs per the algorithm in spec.md §4.2.
func Validate(path string, contextRoots []string, denyGlobs []string) Result {
	if path == "" {
		return Result{Reason: "path is empty"}
	}
	if strings.ContainsRune(path, 0) {
		return Result{Reason: "path contains null byte"}
	}

	resolved, err := ResolveExisting(path)
	if err != nil {
		return Result{Reason: err.Error()}
	}

	var matchedRoot string
	for _, root := range contextRoots {
		canonicalRoot, err := ResolveExisting(root)
		if err != nil {
			continue
		}
		if isUnder(resolved, canonicalRoot) {
			matchedRoot = canonicalRoot
			break
		}
	}
	if matchedRoot == "" {
		return Result{Reason: "path is not under any allowed root"}
	}

	rel, err := filepath.Rel(matchedRoot, resolved)
	if err != nil {
		return Result{Reason: "failed to compute relative path: " + err.Error()}
	}
	relSlash := filepath.ToSlash(rel)

	for _, g := range denyGlobs {
		if MatchGlob(g, relSlash) {
			return Result{Reason: "path matches deny glob: " + g}
		}
	}

	return Result{Allowed: true, Resolved: resolved}
}

// isUnder reports whether target is equal to root or a descendant of it,
// comparing canonical forms. "/a/b" must not match "/a/bc".
func isUnder(target, root string) bool {
	if target == root {
		return true
	}
	sep := string(filepath.Separator)
	rootWithSep := root
	if !strings.HasSuffix(rootWithSep, sep) {
		rootWithSep += sep
	}
	return strings.HasPrefix(target, rootWithSep)
}
