// Package layout shapes styled text into positioned glyph runs using
// HarfBuzz shaping via go-text/typesetting.
//
// The render coordinator consumes laid-out lines and does not care who
// produced them; this package is the built-in producer for hosts that
// do not bring their own layout engine.
package layout

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/bidi"

	"github.com/gogpu/textframe"
	textfont "github.com/gogpu/textframe/font"
)

// Style selects the font, size and color for a span of text.
type Style struct {
	// Font identifies a registered font source.
	Font textframe.FontID

	// Size is the font size in content units.
	Size float64

	// Color is the fill color.
	Color textframe.RGBA
}

// Shaper converts text into laid-out lines.
//
// Shaper is safe for concurrent use. Parsed font.Font objects are
// thread-safe and cached per source; font.Face instances are created
// per call (font.Face is NOT safe for concurrent use), and the
// HarfbuzzShaper instances are pooled since they are not
// concurrent-safe either.
type Shaper struct {
	shaperPool sync.Pool

	mu    sync.RWMutex
	fonts map[textframe.FontID]*font.Font
}

// NewShaper creates an empty Shaper.
func NewShaper() *Shaper {
	return &Shaper{
		shaperPool: sync.Pool{
			New: func() any {
				return &shaping.HarfbuzzShaper{}
			},
		},
		fonts: make(map[textframe.FontID]*font.Font),
	}
}

// Register parses the source's font data for shaping. Fonts must be
// registered before any Style references them.
func (s *Shaper) Register(src *textfont.Source) error {
	face, err := font.ParseTTF(bytes.NewReader(src.Data()))
	if err != nil {
		return fmt.Errorf("layout: parse font %d: %w", src.ID(), err)
	}

	s.mu.Lock()
	// Cache the Font (thread-safe), not the Face.
	s.fonts[src.ID()] = face.Font
	s.mu.Unlock()
	return nil
}

// ShapeLine shapes a single line of text into one glyph run starting at
// origin (the pen position on the baseline). The text must not contain
// newlines; use ShapeText for multi-line input.
func (s *Shaper) ShapeLine(text string, style Style, origin textframe.Point) (textframe.Line, error) {
	s.mu.RLock()
	fnt := s.fonts[style.Font]
	s.mu.RUnlock()
	if fnt == nil {
		return textframe.Line{}, fmt.Errorf("%w: id %d", textfont.ErrUnknownFont, style.Font)
	}
	if text == "" {
		return textframe.Line{Bounds: textframe.Rect{MinX: origin.X, MinY: origin.Y, MaxX: origin.X, MaxY: origin.Y}}, nil
	}

	runes := []rune(text)
	dir := baseDirection(text)

	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      font.NewFace(fnt),
		Size:      fixed.Int26_6(style.Size * 64),
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	}

	hb := s.shaperPool.Get().(*shaping.HarfbuzzShaper)
	out := hb.Shape(input)
	s.shaperPool.Put(hb)

	run := textframe.GlyphRun{
		Font:      style.Font,
		Size:      style.Size,
		Color:     style.Color,
		Glyphs:    make([]textframe.GlyphID, len(out.Glyphs)),
		Positions: make([]textframe.Point, len(out.Glyphs)),
	}

	// Pen positions along the baseline. Shaping offsets are Y-up;
	// content coordinates are Y-down.
	x := origin.X
	for i, g := range out.Glyphs {
		run.Glyphs[i] = textframe.GlyphID(g.GlyphID)
		run.Positions[i] = textframe.Point{
			X: x + fixedToFloat(g.XOffset),
			Y: origin.Y - fixedToFloat(g.YOffset),
		}
		x += fixedToFloat(g.Advance)
	}

	ascent := fixedToFloat(out.LineBounds.Ascent)
	descent := fixedToFloat(out.LineBounds.Descent) // negative below baseline

	return textframe.Line{
		Runs: []textframe.GlyphRun{run},
		Bounds: textframe.Rect{
			MinX: origin.X,
			MinY: origin.Y - ascent,
			MaxX: x,
			MaxY: origin.Y - descent,
		},
	}, nil
}

// ShapeText shapes multi-line text, splitting on '\n'. Each line's
// baseline advances by the font's line height from origin.
func (s *Shaper) ShapeText(text string, style Style, origin textframe.Point) ([]textframe.Line, error) {
	parts := strings.Split(text, "\n")
	lines := make([]textframe.Line, 0, len(parts))

	pen := origin
	for _, part := range parts {
		line, err := s.ShapeLine(part, style, pen)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
		height := line.Bounds.Height()
		if height <= 0 {
			height = style.Size * 1.2
		}
		pen.Y += height
	}
	return lines, nil
}

// baseDirection resolves the paragraph's base direction with the
// Unicode bidi algorithm.
func baseDirection(text string) di.Direction {
	var p bidi.Paragraph
	if _, err := p.SetString(text); err != nil {
		return di.DirectionLTR
	}
	if p.Direction() == bidi.RightToLeft {
		return di.DirectionRTL
	}
	return di.DirectionLTR
}

// detectScript returns the script of the first non-space rune. Mixed
// script text should be split into runs by the caller before shaping.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
