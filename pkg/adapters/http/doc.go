// Package http connects the workspace to the network in both directions:
// Client speaks to the remote flow engine (saves, builds, streaming runs),
// and Server exposes a workspace's editing and debug surface to editor
// frontends, with live updates over SSE.
package http
