// Package backend provides a pluggable graphics device registry.
//
// Device implementations register themselves via init() functions and
// are selected at runtime. Importing an implementation package makes it
// available:
//
//	import _ "github.com/gogpu/textframe/backend/wgpu"
//
// Use Default() to get the best available factory, or Get() to request
// a specific one by name:
//
//	// Best available (wgpu when imported, null otherwise)
//	dev, err := backend.Open(backend.BackendWGPU, provider)
//
//	// Or pick explicitly
//	factory := backend.Get("null")
//
// The "null" device is always registered and fails every operation, so
// callers exercise their non-accelerated fallback paths without nil
// checks.
package backend
