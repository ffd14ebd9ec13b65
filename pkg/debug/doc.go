// Package debug runs streaming execution sessions against the remote flow
// engine: it opens a run, folds the event stream into per-node and
// session-level state, handles mid-run interrupts with resume, ignore and
// abort, and keeps the conversation transcript.
package debug
