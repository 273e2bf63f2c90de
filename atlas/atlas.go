// Package atlas maps glyphs to packed regions of a shared GPU texture.
//
// The cache rasterizes each distinct (glyph, font, size) once and packs
// the result into a fixed-size atlas surface using append-only shelf
// packing: glyphs fill the current row left to right, and a new row opens
// below when the current one runs out of width. Entries are immutable and
// never evicted; growth is bounded only by the atlas area.
package atlas

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/image/math/fixed"

	"github.com/gogpu/textframe"
)

// Atlas errors.
var (
	// ErrAtlasFull is returned when the atlas cannot fit another glyph.
	ErrAtlasFull = errors.New("atlas: texture atlas is full")

	// ErrNilTexture is returned when constructing an Atlas without a texture.
	ErrNilTexture = errors.New("atlas: texture is nil")

	// ErrNilRasterizer is returned when constructing an Atlas without a rasterizer.
	ErrNilRasterizer = errors.New("atlas: rasterizer is nil")
)

// Default atlas settings.
const (
	// DefaultSize is the default atlas dimension (2048x2048).
	DefaultSize = 2048

	// DefaultPadding is the padding between packed glyphs, in pixels.
	DefaultPadding = 1
)

// Config holds configuration for an Atlas.
type Config struct {
	// Width is the atlas width in pixels. Default: DefaultSize.
	Width int

	// Height is the atlas height in pixels. Default: DefaultSize.
	Height int

	// Padding is the spacing between packed glyphs. Default: DefaultPadding.
	Padding int
}

// DefaultConfig returns the default atlas configuration.
func DefaultConfig() Config {
	return Config{
		Width:   DefaultSize,
		Height:  DefaultSize,
		Padding: DefaultPadding,
	}
}

// GlyphKey uniquely identifies one rasterization instance.
// The pixel size is quantized to 1/64 px so that float jitter in
// size*scale does not fragment the cache.
type GlyphKey struct {
	// Font is a unique identifier for the font.
	Font textframe.FontID

	// GID is the glyph index within the font.
	GID textframe.GlyphID

	// SizePx is the device pixel size in 26.6 fixed point.
	SizePx fixed.Int26_6
}

// GlyphRequest asks the cache for one glyph at a device pixel size
// (font size already multiplied by the display scale).
type GlyphRequest struct {
	Font   textframe.FontID
	GID    textframe.GlyphID
	SizePx float64
}

// KeyFor computes the cache key for a request.
func KeyFor(r GlyphRequest) GlyphKey {
	return GlyphKey{
		Font:   r.Font,
		GID:    r.GID,
		SizePx: fixed.Int26_6(r.SizePx*64 + 0.5),
	}
}

// Region is a rectangle inside the atlas texture.
type Region struct {
	X, Y, Width, Height int
}

// IsEmpty returns true if the region has no area.
func (r Region) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Overlaps returns true if r and q share any pixels.
func (r Region) Overlaps(q Region) bool {
	return r.X < q.X+q.Width && q.X < r.X+r.Width &&
		r.Y < q.Y+q.Height && q.Y < r.Y+r.Height
}

// String returns a string representation of the region.
func (r Region) String() string {
	return fmt.Sprintf("Region(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// Entry is one cached glyph. Entries are owned by the Atlas and are
// immutable once created; batch builders hold references, never copies
// they mutate.
type Entry struct {
	// Key identifies the rasterization instance.
	Key GlyphKey

	// Region is the glyph's rectangle in the atlas texture.
	// Empty for whitespace glyphs and rasterization-failure placeholders.
	Region Region

	// Bounds is the logical glyph box relative to the pen position, in
	// device pixels (Y grows down; MinY is usually negative).
	Bounds textframe.Rect

	// Advance is the pen advance vector in device pixels.
	Advance textframe.Point
}

// stats holds the cache counters. Updated atomically so the hit rate is
// readable at any time, including from GPU completion callbacks.
type stats struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Atlas is the glyph atlas cache. It resolves glyph requests to packed
// atlas entries, rasterizing and packing on miss.
//
// Mutation is serialized by an internal mutex, but the engine contract is
// stricter: only one frame encodes (and therefore resolves) at a time.
// The counters tolerate concurrent readers.
type Atlas struct {
	mu      sync.Mutex
	entries map[GlyphKey]*Entry

	tex Texture
	ras Rasterizer

	// Packing cursor. Append-only: rows are never reopened and entries
	// are never relocated or evicted.
	currentX  int
	currentY  int
	rowHeight int

	width   int
	height  int
	padding int

	// full is set once vertical space runs out, so the exhaustion
	// warning is logged a single time.
	full bool

	stats stats
}

// New creates a glyph atlas cache over the given texture.
// The texture dimensions win over cfg when they disagree.
func New(tex Texture, ras Rasterizer, cfg Config) (*Atlas, error) {
	if tex == nil {
		return nil, ErrNilTexture
	}
	if ras == nil {
		return nil, ErrNilRasterizer
	}
	if cfg.Padding < 0 {
		cfg.Padding = DefaultPadding
	}

	return &Atlas{
		entries: make(map[GlyphKey]*Entry, 256),
		tex:     tex,
		ras:     ras,
		width:   tex.Width(),
		height:  tex.Height(),
		padding: cfg.Padding,
	}, nil
}

// Texture returns the underlying atlas texture.
func (a *Atlas) Texture() Texture {
	return a.tex
}

// Resolve maps each request to its atlas entry, rasterizing and packing
// on miss. The result is one-to-one with the input, preserving order and
// duplicates. An empty input returns an empty result with no GPU work.
//
// Resolve never fails: a glyph that cannot be rasterized or no longer
// fits in the atlas resolves to a zero-area placeholder entry, so a frame
// is never aborted by a single bad glyph.
func (a *Atlas) Resolve(reqs []GlyphRequest) []*Entry {
	if len(reqs) == 0 {
		return nil
	}

	out := make([]*Entry, len(reqs))

	a.mu.Lock()
	defer a.mu.Unlock()

	for i, req := range reqs {
		key := KeyFor(req)
		if e, ok := a.entries[key]; ok {
			a.stats.hits.Add(1)
			out[i] = e
			continue
		}
		a.stats.misses.Add(1)
		out[i] = a.insert(key, req)
	}
	return out
}

// insert rasterizes one glyph, packs it, uploads the pixels, and stores
// the entry. Caller must hold a.mu.
func (a *Atlas) insert(key GlyphKey, req GlyphRequest) *Entry {
	bm, err := a.ras.Rasterize(req.Font, req.GID, req.SizePx)
	if err != nil {
		textframe.Logger().Warn("glyph rasterization failed",
			"font", req.Font, "gid", req.GID, "err", err)
		e := &Entry{Key: key}
		a.entries[key] = e
		return e
	}

	e := &Entry{
		Key:     key,
		Advance: bm.Advance,
		Bounds: textframe.Rect{
			MinX: bm.Left,
			MinY: bm.Top,
			MaxX: bm.Left + float64(bm.Width),
			MaxY: bm.Top + float64(bm.Height),
		},
	}

	// Whitespace and other zero-area glyphs carry metrics but occupy no
	// atlas pixels.
	if bm.Width > 0 && bm.Height > 0 {
		region, ok := a.pack(bm.Width, bm.Height)
		if !ok {
			if !a.full {
				a.full = true
				textframe.Logger().Warn("glyph atlas exhausted",
					"width", a.width, "height", a.height, "entries", len(a.entries))
			}
			e.Bounds = textframe.Rect{}
		} else {
			e.Region = region
			if err := a.tex.Upload(region.X, region.Y, region.Width, region.Height, bm.Pix); err != nil {
				textframe.Logger().Warn("atlas upload failed",
					"region", region, "err", err)
			}
		}
	}

	a.entries[key] = e
	return e
}

// pack places a w x h rectangle using the append-only shelf cursor.
// Caller must hold a.mu.
func (a *Atlas) pack(w, h int) (Region, bool) {
	if w > a.width || h > a.height {
		return Region{}, false
	}

	// Row overflow: open a new shelf below the current one.
	if a.currentX+w > a.width {
		a.currentY += a.rowHeight + a.padding
		a.currentX = 0
		a.rowHeight = 0
	}

	// Vertical overflow: the atlas is full. No compaction, no eviction.
	if a.currentY+h > a.height {
		return Region{}, false
	}

	r := Region{X: a.currentX, Y: a.currentY, Width: w, Height: h}
	a.currentX += w + a.padding
	if h > a.rowHeight {
		a.rowHeight = h
	}
	return r, true
}

// Stats returns the cumulative hit and miss counters.
func (a *Atlas) Stats() (hits, misses uint64) {
	return a.stats.hits.Load(), a.stats.misses.Load()
}

// HitRate returns hits/(hits+misses) in [0, 1], or 0 before any lookup.
// Safe to call at any time from any goroutine.
func (a *Atlas) HitRate() float64 {
	hits := a.stats.hits.Load()
	misses := a.stats.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Len returns the number of cached entries.
func (a *Atlas) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
