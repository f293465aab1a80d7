// Package api
// Author: momentics
//
// Live debug introspection contract.

package api

// Debug exposes runtime introspection.
type Debug interface {
	// DumpState emits a snapshot of every registered probe.
	DumpState() map[string]any

	// RegisterProbe registers or replaces a named probe.
	RegisterProbe(name string, fn func() any)
}
