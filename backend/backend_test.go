package backend

import (
	"errors"
	"testing"

	"github.com/gogpu/textframe/render"
)

func TestNullRegisteredByDefault(t *testing.T) {
	// The null device is auto-registered via init().
	if !IsRegistered(BackendNull) {
		t.Error("null backend should be auto-registered")
	}

	f := Get(BackendNull)
	if f == nil {
		t.Fatal("Get(null) returned nil")
	}
	dev, err := f(nil)
	if err != nil {
		t.Fatalf("null factory error = %v", err)
	}
	if dev == nil {
		t.Fatal("null factory returned nil device")
	}
}

func TestNullDeviceFailsEveryOperation(t *testing.T) {
	dev, err := Open(BackendNull, nil)
	if err != nil {
		t.Fatalf("Open(null) error = %v", err)
	}

	if _, err := dev.CreateSurface(100, 100, 1); !errors.Is(err, render.ErrPipelineUnavailable) {
		t.Errorf("CreateSurface error = %v, want ErrPipelineUnavailable", err)
	}
	if _, err := dev.CreateAtlasTexture(256, 256); !errors.Is(err, render.ErrPipelineUnavailable) {
		t.Errorf("CreateAtlasTexture error = %v, want ErrPipelineUnavailable", err)
	}
	if err := dev.SubmitDrawBatch(&render.Frame{}, nil); !errors.Is(err, render.ErrPipelineUnavailable) {
		t.Errorf("SubmitDrawBatch error = %v, want ErrPipelineUnavailable", err)
	}
}

func TestOpenUnregistered(t *testing.T) {
	if _, err := Open("nonexistent", nil); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(nonexistent) error = %v, want ErrBackendNotAvailable", err)
	}
	if f := Get("nonexistent"); f != nil {
		t.Error("Get(nonexistent) should return nil")
	}
}

func TestAvailable(t *testing.T) {
	found := false
	for _, name := range Available() {
		if name == BackendNull {
			found = true
			break
		}
	}
	if !found {
		t.Error("Available() should include the null backend")
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	Register("test-backend", func(any) (render.Device, error) {
		return render.NullDevice{}, nil
	})
	if !IsRegistered("test-backend") {
		t.Error("test-backend should be registered")
	}

	Unregister("test-backend")
	if IsRegistered("test-backend") {
		t.Error("test-backend should be unregistered")
	}
}

func TestDefaultPrefersWGPU(t *testing.T) {
	marker := errors.New("wgpu marker")
	Register(BackendWGPU, func(any) (render.Device, error) {
		return nil, marker
	})
	t.Cleanup(func() { Unregister(BackendWGPU) })

	if _, err := OpenDefault(nil); !errors.Is(err, marker) {
		t.Errorf("OpenDefault did not select the wgpu factory, error = %v", err)
	}
}

func TestOpenDefaultFallsBackToNull(t *testing.T) {
	// Without a wgpu registration the null device wins.
	if IsRegistered(BackendWGPU) {
		t.Skip("wgpu backend registered in this build")
	}
	dev, err := OpenDefault(nil)
	if err != nil {
		t.Fatalf("OpenDefault error = %v", err)
	}
	if _, ok := dev.(render.NullDevice); !ok {
		t.Errorf("OpenDefault returned %T, want render.NullDevice", dev)
	}
}
