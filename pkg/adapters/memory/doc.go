// Package memory provides in-memory implementations of the workspace
// ports: a transcript store, a flow service and a scripted run streamer.
// They back tests and the CLI's offline mode.
package memory
