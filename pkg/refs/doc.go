/*
Package refs maintains referential integrity across a mutable flow graph.

When topology changes (an edge connected or removed, a node deleted, an
output dropped, an iteration reshaped), the engine recomputes which
upstream outputs each dependent node may legally reference and repairs its
bindings: still-reachable targets get their cached label and type
refreshed, everything else is normalized to unbound. Bindings are never
left dangling.
*/
package refs
