// Package gate implements the process-wide single-slot mutual exclusion
// primitive that admits at most one running task at a time.
package gate

import "sync"

// Gate holds at most one (workspace, sessionID) pair.
type Gate struct {
	mu        sync.Mutex
	workspace string
	sessionID string
	held      bool
}

// New returns an empty Gate.
func New() *Gate {
	return &Gate{}
}

// Acquire succeeds iff the gate is currently empty, in which case it stores
// (workspace, sessionID) and returns true. Otherwise it is a no-op and
// returns false.
func (g *Gate) Acquire(workspace, sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held {
		return false
	}
	g.workspace = workspace
	g.sessionID = sessionID
	g.held = true
	return true
}

// Release succeeds iff the stored pair equals (workspace, sessionID), in
// which case it empties the gate. A stale or mismatched release is a no-op,
// so an old session's abort cannot free a newer session's slot.
func (g *Gate) Release(workspace, sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.held || g.workspace != workspace || g.sessionID != sessionID {
		return false
	}
	g.workspace = ""
	g.sessionID = ""
	g.held = false
	return true
}

// ActiveSessionID returns the current holder's session id and true, or
// ("", false) if the gate is empty.
func (g *Gate) ActiveSessionID() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.held {
		return "", false
	}
	return g.sessionID, true
}
