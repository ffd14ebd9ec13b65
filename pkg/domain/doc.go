/*
Package domain contains the core domain models for the canvasflow engine.

It defines the fundamental entities of an editable flow graph, such as
Nodes, Edges, input/output slots and their value bindings, plus the
transient state of a debug run (node statuses, transcript entries,
interrupt state). This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Node: a unit of computation with typed input/output slots.
  - Edge: a port-to-port connection; the single source of truth for
    reachability between nodes.
  - Binding: how an input slot sources its value (inline literal or a
    reference to an upstream node's output).
  - TranscriptEntry / InterruptState: the ask/answer history and pause
    state of a debug session.
*/
package domain
