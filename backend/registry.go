package backend

import (
	"sync"

	"github.com/gogpu/textframe/render"
)

// registry holds registered device factories.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for selection (first available wins).
	backendPriority = []string{BackendWGPU, BackendNull}
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in backend packages.
// If a factory with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a factory from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns a list of registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Get returns the factory registered under name, or nil.
func Get(name string) Factory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return factories[name]
}

// Default returns the best available factory based on priority.
// Returns nil if nothing is registered.
func Default() Factory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if f, ok := factories[name]; ok {
			return f
		}
	}

	// Fallback: first available.
	for _, f := range factories {
		return f
	}
	return nil
}

// Open constructs a device from the named backend.
// Returns ErrBackendNotAvailable if the backend is not registered.
func Open(name string, provider any) (render.Device, error) {
	f := Get(name)
	if f == nil {
		return nil, ErrBackendNotAvailable
	}
	return f(provider)
}

// OpenDefault constructs a device from the best available backend.
func OpenDefault(provider any) (render.Device, error) {
	f := Default()
	if f == nil {
		return nil, ErrBackendNotAvailable
	}
	return f(provider)
}
