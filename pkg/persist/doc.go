// Package persist coordinates optimistic, debounced persistence of the
// flow graph against the collaborator save service, and owns the
// publishable flag that only a successful remote build restores.
package persist
