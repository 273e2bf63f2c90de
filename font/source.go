// Package font loads font files and rasterizes glyph coverage bitmaps
// for the atlas cache.
package font

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/textframe"
)

// Font errors.
var (
	// ErrEmptyFont is returned when parsing zero-length font data.
	ErrEmptyFont = errors.New("font: empty font data")

	// ErrUnknownFont is returned when a FontID has not been registered.
	ErrUnknownFont = errors.New("font: unknown font")
)

// nextID hands out process-unique font identifiers. IDs start at 1 so
// the zero FontID stays invalid.
var nextID atomic.Uint64

// Source is a parsed font file. A Source is immutable after creation
// and safe for concurrent use; mutable sfnt state (sfnt.Buffer) lives
// in the Rasterizer, not here.
type Source struct {
	id   textframe.FontID
	fnt  *sfnt.Font
	data []byte
}

// New parses TTF/OTF font data and assigns it a fresh FontID.
// The data slice is retained; callers must not modify it afterwards.
func New(data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFont
	}
	fnt, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("font: parse: %w", err)
	}
	return &Source{
		id:   textframe.FontID(nextID.Add(1)),
		fnt:  fnt,
		data: data,
	}, nil
}

// ID returns the font's process-unique identifier.
func (s *Source) ID() textframe.FontID {
	return s.id
}

// SFNT returns the parsed sfnt font.
func (s *Source) SFNT() *sfnt.Font {
	return s.fnt
}

// Data returns the raw font file bytes the source was parsed from.
func (s *Source) Data() []byte {
	return s.data
}

// NumGlyphs returns the number of glyphs in the font.
func (s *Source) NumGlyphs() int {
	return s.fnt.NumGlyphs()
}

// GlyphIndex returns the glyph index for a rune, or 0 (.notdef) when
// the font has no mapping for it.
func (s *Source) GlyphIndex(r rune) textframe.GlyphID {
	var buf sfnt.Buffer
	gid, err := s.fnt.GlyphIndex(&buf, r)
	if err != nil {
		return 0
	}
	return textframe.GlyphID(gid)
}

// fixedPPEM converts a pixel size to 26.6 fixed point, rounding to the
// nearest 1/64th.
func fixedPPEM(sizePx float64) fixed.Int26_6 {
	return fixed.Int26_6(sizePx*64 + 0.5)
}
