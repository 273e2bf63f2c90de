// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"sync"

	"github.com/gogpu/textframe"
)

// DefaultTargetCacheSize is the default bound on cached render targets.
const DefaultTargetCacheSize = 10

// TargetKey identifies a reusable offscreen surface.
type TargetKey struct {
	Width  int
	Height int
	Scale  float64
}

// TargetCache maps (pixel size, scale) to a reusable offscreen surface.
//
// On hit the existing surface is returned as-is; the cache never clears
// surface contents. The coordinator performs a full clear-load at the
// start of every render pass, so staleness is never observable.
//
// Eviction is deliberately coarse: when the cache is at its bound and a
// new distinct key arrives, the entire cache is discarded before the new
// surface is inserted. Render targets are large and few, and the common
// steady state is a single key; per-entry LRU bookkeeping buys nothing
// here.
type TargetCache struct {
	mu      sync.Mutex
	dev     Device
	entries map[TargetKey]Surface
	bound   int
}

// NewTargetCache creates a surface cache over the given device.
// A bound <= 0 selects DefaultTargetCacheSize.
func NewTargetCache(dev Device, bound int) (*TargetCache, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if bound <= 0 {
		bound = DefaultTargetCacheSize
	}
	return &TargetCache{
		dev:     dev,
		entries: make(map[TargetKey]Surface, bound),
		bound:   bound,
	}, nil
}

// Acquire returns the cached surface for (width, height, scale), or
// allocates a new one. Below the bound, an already-bound key always
// returns the identical surface instance.
func (c *TargetCache) Acquire(width, height int, scale float64) (Surface, error) {
	key := TargetKey{Width: width, Height: height, Scale: scale}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.entries[key]; ok {
		return s, nil
	}

	// Whole-cache eviction: at the bound, drop everything before
	// inserting the new surface.
	if len(c.entries) >= c.bound {
		textframe.Logger().Debug("render target cache full, discarding",
			"entries", len(c.entries), "bound", c.bound)
		c.destroyAllLocked()
	}

	s, err := c.dev.CreateSurface(width, height, scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %dx%d@%g: %v", ErrSurfaceUnavailable, width, height, scale, err)
	}
	c.entries[key] = s
	return s, nil
}

// MemoryUsage returns the estimated texture memory held by cached
// surfaces, at 4 bytes per pixel.
func (c *TargetCache) MemoryUsage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for key := range c.entries {
		total += int64(key.Width) * int64(key.Height) * 4
	}
	return total
}

// Len returns the number of cached surfaces.
func (c *TargetCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear destroys and drops all cached surfaces.
func (c *TargetCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyAllLocked()
}

// destroyAllLocked releases every cached surface. Caller must hold c.mu.
func (c *TargetCache) destroyAllLocked() {
	for key, s := range c.entries {
		s.Destroy()
		delete(c.entries, key)
	}
}
