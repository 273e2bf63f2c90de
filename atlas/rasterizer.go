package atlas

import "github.com/gogpu/textframe"

// Bitmap is the alpha-coverage raster of one glyph, produced by a
// Rasterizer. Coordinates are in device pixels at the requested size.
type Bitmap struct {
	// Pix holds Width*Height single-channel coverage values, row-major.
	// Empty for glyphs with no visible area (e.g. space).
	Pix []byte

	// Width and Height are the bitmap dimensions in pixels.
	Width, Height int

	// Left and Top offset the bitmap's top-left corner from the pen
	// position, in pixels. Top is typically negative (above baseline,
	// Y grows down).
	Left, Top float64

	// Advance is the pen advance vector in pixels.
	Advance textframe.Point
}

// Rasterizer turns a glyph into coverage pixels and metrics.
// Implementations must be safe for use from the single cache writer;
// they are not required to be safe for concurrent use.
//
// The font package provides an sfnt-backed implementation.
type Rasterizer interface {
	// Rasterize renders the glyph at the given pixel size (size already
	// multiplied by the display scale). A glyph with no visible area
	// returns a Bitmap with Width == 0 or Height == 0 and a valid
	// Advance.
	Rasterize(font textframe.FontID, gid textframe.GlyphID, sizePx float64) (Bitmap, error)
}

// Texture is the GPU-resident atlas surface entries are uploaded into.
// The render device creates one per Atlas.
type Texture interface {
	// Width returns the texture width in pixels.
	Width() int

	// Height returns the texture height in pixels.
	Height() int

	// Upload copies single-channel coverage pixels into the given
	// region. len(pix) must be w*h.
	Upload(x, y, w, h int, pix []byte) error
}
