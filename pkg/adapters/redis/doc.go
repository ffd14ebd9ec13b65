// Package redis provides Redis-backed implementations of the transcript
// store and the distributed run lock, for workspaces running more than one
// replica.
package redis
