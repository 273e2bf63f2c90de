package wgpu

import (
	"github.com/gogpu/textframe/backend"
	"github.com/gogpu/textframe/render"
)

// init registers the wgpu device on package import.
func init() {
	backend.Register(backend.BackendWGPU, func(provider any) (render.Device, error) {
		return FromProvider(provider)
	})
}
