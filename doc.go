// Package textframe provides a GPU-backed text rendering engine.
//
// # Overview
//
// textframe takes laid-out lines of styled text (produced by an external
// text-layout engine) and turns them into displayable offscreen surfaces.
// Individual glyphs are rasterized once and cached in a shared texture
// atlas; per-line geometry is assembled as one textured quad per glyph and
// submitted to the GPU as a single command batch per frame.
//
// # Architecture
//
//   - atlas: glyph atlas cache with append-only shelf packing
//   - render: device abstraction, quad batch building, target surface
//     cache, and the frame coordinator
//   - metrics: rolling frame-time statistics and cache/memory snapshots
//   - font: sfnt-based glyph rasterizer (golang.org/x/image)
//   - layout: go-text/typesetting adapter producing line runs
//   - backend/wgpu: hardware device implementation on gogpu/wgpu
//
// # Quick Start
//
//	dev, err := wgpu.New(halDevice, halQueue)
//	if err != nil {
//	    // accelerated rendering unavailable; use a fallback path
//	}
//	ras := font.NewRasterizer()
//	ras.Register(src)
//	rc, err := render.NewCoordinator(dev, ras, render.DefaultConfig())
//	surf, err := rc.RenderFrame(lines, bounds, visible, scale)
//
// # Concurrency
//
// At most three frames may be outstanding on the GPU at once; a fourth
// RenderFrame call blocks until a completion fires. CPU-side encoding and
// cache mutation are serialized to a single writer, so only GPU execution
// overlaps.
package textframe
