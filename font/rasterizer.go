package font

import (
	"fmt"
	"image"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/gogpu/textframe"
	"github.com/gogpu/textframe/atlas"
)

// Rasterizer renders glyph outlines into alpha coverage bitmaps. It
// implements atlas.Rasterizer over registered Sources.
//
// Lookup is safe for concurrent use; Rasterize itself holds mutable
// sfnt and scanline state and must be called from one goroutine at a
// time, which matches the atlas cache's single-writer discipline.
type Rasterizer struct {
	mu    sync.RWMutex
	fonts map[textframe.FontID]*sfnt.Font

	buf sfnt.Buffer
	ras vector.Rasterizer
}

// NewRasterizer creates an empty Rasterizer.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{
		fonts: make(map[textframe.FontID]*sfnt.Font),
	}
}

// Register makes a font source available for rasterization.
// Registering the same source twice is harmless.
func (r *Rasterizer) Register(src *Source) {
	r.mu.Lock()
	r.fonts[src.ID()] = src.SFNT()
	r.mu.Unlock()
}

// Rasterize renders the glyph at the given pixel size into an alpha
// bitmap. Glyphs with no visible area (spaces) return a zero-size
// bitmap with a valid advance.
func (r *Rasterizer) Rasterize(id textframe.FontID, gid textframe.GlyphID, sizePx float64) (atlas.Bitmap, error) {
	r.mu.RLock()
	fnt := r.fonts[id]
	r.mu.RUnlock()
	if fnt == nil {
		return atlas.Bitmap{}, fmt.Errorf("%w: id %d", ErrUnknownFont, id)
	}

	ppem := fixedPPEM(sizePx)
	gi := sfnt.GlyphIndex(gid)

	bounds, advance, err := fnt.GlyphBounds(&r.buf, gi, ppem, font.HintingNone)
	if err != nil {
		return atlas.Bitmap{}, fmt.Errorf("font: glyph bounds for gid %d: %w", gid, err)
	}
	adv := textframe.Point{X: fixedToFloat(advance)}

	segments, err := fnt.LoadGlyph(&r.buf, gi, ppem, nil)
	if err != nil {
		return atlas.Bitmap{}, fmt.Errorf("font: load glyph %d: %w", gid, err)
	}
	if len(segments) == 0 {
		return atlas.Bitmap{Advance: adv}, nil
	}

	// Pixel box covering the outline. Y grows down; Min.Y is negative
	// above the baseline.
	left := math.Floor(fixedToFloat(bounds.Min.X))
	top := math.Floor(fixedToFloat(bounds.Min.Y))
	right := math.Ceil(fixedToFloat(bounds.Max.X))
	bottom := math.Ceil(fixedToFloat(bounds.Max.Y))

	w := int(right - left)
	h := int(bottom - top)
	if w <= 0 || h <= 0 {
		return atlas.Bitmap{Advance: adv}, nil
	}

	r.ras.Reset(w, h)
	dx := float32(-left)
	dy := float32(-top)
	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			r.ras.MoveTo(fixedToF32(seg.Args[0].X)+dx, fixedToF32(seg.Args[0].Y)+dy)
		case sfnt.SegmentOpLineTo:
			r.ras.LineTo(fixedToF32(seg.Args[0].X)+dx, fixedToF32(seg.Args[0].Y)+dy)
		case sfnt.SegmentOpQuadTo:
			r.ras.QuadTo(
				fixedToF32(seg.Args[0].X)+dx, fixedToF32(seg.Args[0].Y)+dy,
				fixedToF32(seg.Args[1].X)+dx, fixedToF32(seg.Args[1].Y)+dy,
			)
		case sfnt.SegmentOpCubeTo:
			r.ras.CubeTo(
				fixedToF32(seg.Args[0].X)+dx, fixedToF32(seg.Args[0].Y)+dy,
				fixedToF32(seg.Args[1].X)+dx, fixedToF32(seg.Args[1].Y)+dy,
				fixedToF32(seg.Args[2].X)+dx, fixedToF32(seg.Args[2].Y)+dy,
			)
		}
	}

	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	r.ras.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})

	return atlas.Bitmap{
		Pix:     dst.Pix,
		Width:   w,
		Height:  h,
		Left:    left,
		Top:     top,
		Advance: adv,
	}, nil
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func fixedToF32(v fixed.Int26_6) float32 {
	return float32(v) / 64
}

var _ atlas.Rasterizer = (*Rasterizer)(nil)
