// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render orchestrates text frames: it owns the target surface
// cache, the glyph quad batch builder, and the coordinator that turns
// laid-out lines into submitted GPU work.
package render

import (
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/textframe"
	"github.com/gogpu/textframe/atlas"
)

// Render errors.
var (
	// ErrPipelineUnavailable indicates accelerated rendering could not be
	// constructed at all. The component reports itself absent; callers
	// must fall back to a non-accelerated path.
	ErrPipelineUnavailable = errors.New("render: accelerated rendering unavailable")

	// ErrSurfaceUnavailable indicates a per-frame surface allocation
	// failure. The frame is skipped; the previously returned surface
	// remains valid for display.
	ErrSurfaceUnavailable = errors.New("render: surface allocation failed")

	// ErrNilDevice is returned when constructing a component without a device.
	ErrNilDevice = errors.New("render: device is nil")
)

// Surface is a reusable offscreen render target.
// Surfaces are created by a Device, cached by TargetCache, and handed to
// the caller by the Coordinator for display/compositing.
type Surface interface {
	// Width returns the surface width in pixels.
	Width() int

	// Height returns the surface height in pixels.
	Height() int

	// Scale returns the display scale the surface was created for.
	Scale() float64

	// Destroy releases the surface's GPU resources.
	Destroy()
}

// Draw is one draw call: a batch of glyph quads sampled from one atlas
// texture with one color.
type Draw struct {
	// Vertices is the raw vertex data (VertexStride bytes per vertex).
	Vertices []byte

	// Indices is the raw uint16 index data.
	Indices []byte

	// IndexCount is the number of indices to draw.
	IndexCount uint32

	// Color is the fill color for the batch (premultiplied at submit).
	Color textframe.RGBA

	// Atlas is the texture the quads sample coverage from.
	Atlas atlas.Texture
}

// Frame is the complete GPU workload of one rendered frame: a clear-load
// of the target followed by the frame's draw calls, submitted as a
// single command buffer.
type Frame struct {
	// Target is the surface the frame renders into.
	Target Surface

	// Background is the clear color loaded at the start of the pass.
	Background textframe.RGBA

	// Draws are the frame's draw calls, in submission order.
	Draws []Draw
}

// CompletionInfo is passed to the completion callback when the GPU
// finishes (or abandons) a submitted frame. It is the explicit context
// object handed back across the async boundary; callbacks fire on an
// arbitrary goroutine.
type CompletionInfo struct {
	// Err is non-nil if the GPU reported a failure or a lost device.
	Err error
}

// Device is the small capability interface the engine needs from a
// graphics API. Implement it per target API; backend/wgpu provides the
// gogpu/wgpu implementation.
type Device interface {
	// CreateSurface allocates an offscreen render target.
	CreateSurface(width, height int, scale float64) (Surface, error)

	// CreateAtlasTexture allocates a single-channel texture for glyph
	// coverage storage.
	CreateAtlasTexture(width, height int) (atlas.Texture, error)

	// SubmitDrawBatch encodes and submits one frame as a single command
	// buffer. done is invoked exactly once when GPU execution completes,
	// on an arbitrary goroutine. A non-nil error means nothing was
	// submitted and done will not be called.
	SubmitDrawBatch(f *Frame, done func(CompletionInfo)) error
}

// DeviceHandle provides GPU device access from the host application.
//
// The host (e.g. a gogpu App) implements DeviceHandle and passes it to
// the engine, allowing the engine to use the shared GPU device rather
// than creating its own.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider, providing an
// engine-specific name for the interface while maintaining full
// compatibility with the gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

// NullDeviceHandle is a DeviceHandle that provides nil implementations.
// Used where no GPU is available.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo returns zero-value adapter metadata for the null device.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo { return gpucontext.AdapterInfo{} }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Ensure NullDeviceHandle implements DeviceHandle.
var _ DeviceHandle = NullDeviceHandle{}

// NullDevice is a Device on which every operation fails. It stands in
// where pipeline construction failed, so callers exercise their fallback
// paths without nil checks.
type NullDevice struct{}

// CreateSurface always fails.
func (NullDevice) CreateSurface(int, int, float64) (Surface, error) {
	return nil, ErrPipelineUnavailable
}

// CreateAtlasTexture always fails.
func (NullDevice) CreateAtlasTexture(int, int) (atlas.Texture, error) {
	return nil, ErrPipelineUnavailable
}

// SubmitDrawBatch always fails.
func (NullDevice) SubmitDrawBatch(*Frame, func(CompletionInfo)) error {
	return ErrPipelineUnavailable
}

// Ensure NullDevice implements Device.
var _ Device = NullDevice{}
