// Package session owns the host state surface.
//
// Ownership boundary:
// - the injected Session contract the dispatch core executes against
// - the in-memory reference host used by the daemon and tests
// - the command catalog binding names and safety tiers to the session
package session

import "errors"

var (
	ErrUnknownOperation = errors.New("session: unknown operation")
	ErrInvalidParams    = errors.New("session: invalid params")
	ErrTrackNotFound    = errors.New("session: track not found")
	ErrTrackExists      = errors.New("session: track exists")
	ErrNothingToUndo    = errors.New("session: nothing to undo")
	ErrNothingToRedo    = errors.New("session: nothing to redo")
)

// Session is the host's own state-mutation surface. Invoke is
// synchronous and must only be called from the execution serializer's
// consumer goroutine; the core translates any error it returns into the
// generic error result shape.
type Session interface {
	Invoke(name string, params map[string]any) (any, error)
}
