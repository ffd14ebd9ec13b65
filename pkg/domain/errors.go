package domain

import "errors"

// ErrFlowNotFound is returned when a flow ID cannot be found in the store.
var ErrFlowNotFound = errors.New("flow not found")

// ErrNodeNotFound is returned when a node ID is absent from the canvas.
var ErrNodeNotFound = errors.New("node not found")

// ErrNothingToUndo is returned when the history stack is empty.
var ErrNothingToUndo = errors.New("nothing to undo")

// ErrNoInterrupt is returned when resume/ignore is called outside an
// interrupted session.
var ErrNoInterrupt = errors.New("session is not interrupted")

// ErrSessionClosed is returned when an event arrives for a session that
// already ended or was replaced by a newer run.
var ErrSessionClosed = errors.New("session closed")
