package ports

import "context"

// RunStreamer opens streaming runs against the remote execution engine.
//
// The returned channel delivers events in arrival order and is closed when
// the stream ends or the context is cancelled. Implementations must stop
// sending promptly after cancellation; consumers additionally drop
// post-cancel events before dispatch.
type RunStreamer interface {
	// Run starts a new run of the flow.
	Run(ctx context.Context, req RunRequest) (<-chan RunEvent, error)

	// Resume continues (or explicitly ignores/aborts) an interrupted run.
	Resume(ctx context.Context, req ResumeRequest) (<-chan RunEvent, error)
}
