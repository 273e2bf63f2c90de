package backend

import (
	"github.com/gogpu/textframe/render"
)

// init registers the null device on package import, so a fallback is
// always available.
func init() {
	Register(BackendNull, func(any) (render.Device, error) {
		return render.NullDevice{}, nil
	})
}
