// Package validate runs per-node structural checks: required inputs bound
// and named, no duplicate names, output types well-formed, plus a pluggable
// per-node-type parameter predicate. Checks annotate transient slot fields
// for inline display and never block editing. DelayCheckNode debounces
// keystroke bursts into a single pass.
package validate
