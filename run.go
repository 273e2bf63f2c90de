package textframe

// FontID uniquely identifies a loaded font within the process.
// IDs are assigned by the font registry and are never reused.
type FontID uint64

// GlyphID is a glyph index within a font.
type GlyphID uint32

// GlyphRun is a sequence of glyphs from a single font at a single size,
// as produced by an external text-layout engine. Positions are pen
// positions in unscaled content coordinates, one per glyph.
type GlyphRun struct {
	// Font identifies the font all glyphs in the run come from.
	Font FontID

	// Size is the font size in content units (pre-scale).
	Size float64

	// Color is the fill color for the run.
	Color RGBA

	// Glyphs holds the glyph indices in visual order.
	Glyphs []GlyphID

	// Positions holds the pen position for each glyph.
	// len(Positions) == len(Glyphs).
	Positions []Point
}

// Line is one laid-out line of styled text.
type Line struct {
	// Runs are the styled glyph runs on this line, in visual order.
	Runs []GlyphRun

	// Bounds is the line box in content coordinates, used for
	// visibility culling against the render region.
	Bounds Rect
}
