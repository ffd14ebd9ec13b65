package canvasflow

// Version is the library version, overridable at build time via
// -ldflags "-X github.com/canvasflow/canvasflow.Version=...".
var Version = "0.1.0"
