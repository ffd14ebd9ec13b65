// Package canvasflow is the state engine behind a visual flow editor: it
// owns the graph of nodes and edges for one flow, keeps reference bindings
// between nodes consistent as the topology changes, validates nodes with
// debounced feedback, autosaves edits with publish gating, and drives
// streaming debug runs against a remote execution engine.
//
// The Workspace type is the main entry point; adapters under pkg/adapters
// connect it to HTTP, Redis, YAML files and MCP.
package canvasflow
