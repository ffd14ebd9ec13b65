// Package ports defines the boundary interfaces of the canvasflow engine
// (flow loading, persistence, streaming runs, distributed locking) and the
// wire shapes exchanged with the remote execution engine. Adapters under
// pkg/adapters implement these interfaces; the core packages depend only on
// the contracts here.
package ports
