package backend

import (
	"errors"

	"github.com/gogpu/textframe/render"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Backend name constants.
const (
	// BackendWGPU is the name of the gogpu/wgpu hal device.
	BackendWGPU = "wgpu"
	// BackendNull is the name of the always-failing fallback device.
	BackendNull = "null"
)

// Factory constructs a render.Device from a host device provider. The
// provider is backend-specific; the wgpu backend expects the host's
// DeviceHandle (anything exposing HalDevice/HalQueue), and the null
// backend ignores it.
type Factory func(provider any) (render.Device, error)
