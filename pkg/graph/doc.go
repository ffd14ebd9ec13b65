/*
Package graph owns the mutable state of one flow canvas: the node and edge
collections, the editor selection, and the undo history.

The Store is the single writer for a flow's graph. Every mutator swaps the
whole collection for a fresh slice (copy-on-write), so snapshots handed out
earlier are never edited underneath their holders. Structural hooks let the
reference propagation engine and the persistence coordinator react to
mutations without this package depending on either.
*/
package graph
