// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/textframe"
	"github.com/gogpu/textframe/atlas"
	"github.com/gogpu/textframe/metrics"
)

// DefaultMaxFramesInFlight bounds how many frames may be outstanding on
// the GPU simultaneously. This is the engine's sole backpressure
// mechanism.
const DefaultMaxFramesInFlight = 3

// DefaultRenderMargin is how far beyond the visible rect a frame
// pre-renders, in content units, so adjacent content is ready when the
// caller scrolls.
const DefaultRenderMargin = 256.0

// Config holds configuration for a Coordinator.
type Config struct {
	// MaxFramesInFlight bounds concurrent GPU frames.
	// Default: DefaultMaxFramesInFlight.
	MaxFramesInFlight int

	// TargetCacheSize bounds the offscreen surface cache.
	// Default: DefaultTargetCacheSize.
	TargetCacheSize int

	// Margin expands the visible rect before rendering, in content
	// units. Default: DefaultRenderMargin.
	Margin float64

	// Background is the clear color loaded at the start of every pass.
	Background textframe.RGBA

	// Atlas configures the glyph atlas.
	Atlas atlas.Config
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		MaxFramesInFlight: DefaultMaxFramesInFlight,
		TargetCacheSize:   DefaultTargetCacheSize,
		Margin:            DefaultRenderMargin,
		Atlas:             atlas.DefaultConfig(),
	}
}

// Coordinator orchestrates text frames. It exclusively owns its glyph
// atlas cache, target surface cache, and batch builder; callers create
// one Coordinator per rendering surface and pass references instead of
// reaching into shared state.
//
// RenderFrame may be called from any single goroutine (typically the UI
// thread); encoding and cache mutation are serialized internally, and
// completion callbacks arrive on arbitrary goroutines.
type Coordinator struct {
	dev     Device
	glyphs  *atlas.Atlas
	targets *TargetCache
	builder BatchBuilder
	rec     *metrics.Recorder

	// slots is the frame-concurrency semaphore. Acquiring blocks until
	// a previously submitted frame's GPU completion releases one.
	slots chan struct{}

	// encodeMu serializes the CPU-side encode-and-cache-mutate phase.
	// Up to MaxFramesInFlight frames overlap on the GPU, but the caches
	// only ever see one writer.
	encodeMu sync.Mutex

	margin     float64
	background textframe.RGBA
}

// NewCoordinator creates a frame coordinator over the given device and
// glyph rasterizer. Construction failure (the device cannot allocate the
// atlas texture, i.e. the pipeline is unusable) is component-fatal and
// reported as ErrPipelineUnavailable; the caller must fall back to a
// non-accelerated path.
func NewCoordinator(dev Device, ras atlas.Rasterizer, cfg Config) (*Coordinator, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if cfg.MaxFramesInFlight <= 0 {
		cfg.MaxFramesInFlight = DefaultMaxFramesInFlight
	}
	if cfg.Margin <= 0 {
		cfg.Margin = DefaultRenderMargin
	}
	if cfg.Atlas.Width <= 0 || cfg.Atlas.Height <= 0 {
		cfg.Atlas = atlas.DefaultConfig()
	}

	tex, err := dev.CreateAtlasTexture(cfg.Atlas.Width, cfg.Atlas.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: atlas texture: %v", ErrPipelineUnavailable, err)
	}
	glyphs, err := atlas.New(tex, ras, cfg.Atlas)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPipelineUnavailable, err)
	}
	targets, err := NewTargetCache(dev, cfg.TargetCacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPipelineUnavailable, err)
	}

	rec := metrics.New()
	rec.SetTextureMemoryFunc(targets.MemoryUsage)
	rec.SetCacheHitRateFunc(glyphs.HitRate)

	return &Coordinator{
		dev:        dev,
		glyphs:     glyphs,
		targets:    targets,
		rec:        rec,
		slots:      make(chan struct{}, cfg.MaxFramesInFlight),
		margin:     cfg.Margin,
		background: cfg.Background,
	}, nil
}

// Metrics returns the coordinator's metrics recorder for overlay polling.
func (c *Coordinator) Metrics() *metrics.Recorder {
	return c.rec
}

// Atlas returns the coordinator's glyph atlas cache.
func (c *Coordinator) Atlas() *atlas.Atlas {
	return c.glyphs
}

// Targets returns the coordinator's render target cache.
func (c *Coordinator) Targets() *TargetCache {
	return c.targets
}

// RenderFrame renders the lines intersecting the visible rect (expanded
// by the configured margin for smooth scrolling) into an offscreen
// surface and returns it; display responsibility passes to the caller.
//
// A nil surface with a non-nil error means the frame was skipped; the
// caller keeps displaying its previous surface. Surface allocation
// failure is per-frame recoverable and wraps ErrSurfaceUnavailable.
//
// RenderFrame blocks while MaxFramesInFlight frames are outstanding on
// the GPU, with no timeout: a stalled GPU blocks the caller
// indefinitely. The slot is released on every path: immediately when
// the frame fails before submission, from the GPU completion callback
// otherwise.
func (c *Coordinator) RenderFrame(lines []textframe.Line, bounds, visible textframe.Rect, scale float64) (Surface, error) {
	timer := c.rec.StartFrame()

	// Backpressure: block until a frame slot frees.
	c.slots <- struct{}{}
	submitted := false
	defer func() {
		if !submitted {
			<-c.slots
		}
	}()

	region := visible.Inflate(c.margin).Intersect(bounds)
	if region.IsEmpty() {
		return nil, fmt.Errorf("%w: empty render region", ErrSurfaceUnavailable)
	}

	w := int(math.Ceil(region.Width() * scale))
	h := int(math.Ceil(region.Height() * scale))

	c.encodeMu.Lock()
	defer c.encodeMu.Unlock()

	surf, err := c.targets.Acquire(w, h, scale)
	if err != nil {
		return nil, err
	}

	frame := &Frame{Target: surf, Background: c.background}
	origin := region.Min()

	for i := range lines {
		line := &lines[i]
		if !line.Bounds.Intersects(region) {
			continue
		}
		for j := range line.Runs {
			c.encodeRun(frame, &line.Runs[j], origin, scale)
		}
	}

	done := func(info CompletionInfo) {
		if info.Err != nil {
			textframe.Logger().Warn("frame completion failed", "err", info.Err)
		}
		timer.EndFrame(len(frame.Draws))
		<-c.slots
	}
	if err := c.dev.SubmitDrawBatch(frame, done); err != nil {
		return nil, fmt.Errorf("render: submit frame: %w", err)
	}
	submitted = true

	return surf, nil
}

// encodeRun resolves one styled run through the atlas cache and appends
// its draw calls to the frame, splitting above the per-draw quad bound.
func (c *Coordinator) encodeRun(frame *Frame, run *textframe.GlyphRun, origin textframe.Point, scale float64) {
	n := len(run.Glyphs)
	if n == 0 {
		return
	}

	reqs := make([]atlas.GlyphRequest, n)
	for i, gid := range run.Glyphs {
		reqs[i] = atlas.GlyphRequest{
			Font:   run.Font,
			GID:    gid,
			SizePx: run.Size * scale,
		}
	}
	entries := c.glyphs.Resolve(reqs)

	// Pen positions in device pixels, relative to the region origin.
	positions := make([]textframe.Point, n)
	for i, p := range run.Positions {
		positions[i] = p.Sub(origin).Mul(scale)
	}

	tex := c.glyphs.Texture()
	for start := 0; start < n; start += MaxQuadsPerDraw {
		end := min(start+MaxQuadsPerDraw, n)
		batch := c.builder.Build(entries[start:end], positions[start:end], textframe.Point{}, tex)
		frame.Draws = append(frame.Draws, Draw{
			Vertices:   batch.Vertices,
			Indices:    batch.Indices,
			IndexCount: batch.IndexCount,
			Color:      run.Color,
			Atlas:      tex,
		})
	}
}
