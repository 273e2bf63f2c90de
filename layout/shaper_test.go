package layout

import (
	"errors"
	"testing"

	"github.com/go-text/typesetting/di"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/textframe"
	textfont "github.com/gogpu/textframe/font"
)

func newTestShaper(t *testing.T) (*Shaper, *textfont.Source) {
	t.Helper()
	src, err := textfont.New(goregular.TTF)
	if err != nil {
		t.Fatalf("font.New: %v", err)
	}
	s := NewShaper()
	if err := s.Register(src); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return s, src
}

func TestShapeLine(t *testing.T) {
	s, src := newTestShaper(t)
	style := Style{Font: src.ID(), Size: 16, Color: textframe.RGBA{A: 1}}
	origin := textframe.Point{X: 10, Y: 100}

	line, err := s.ShapeLine("Hello", style, origin)
	if err != nil {
		t.Fatalf("ShapeLine: %v", err)
	}
	if len(line.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(line.Runs))
	}

	run := line.Runs[0]
	if len(run.Glyphs) != 5 {
		t.Errorf("glyphs = %d, want 5", len(run.Glyphs))
	}
	if len(run.Positions) != len(run.Glyphs) {
		t.Fatalf("positions = %d, glyphs = %d", len(run.Positions), len(run.Glyphs))
	}
	if run.Font != src.ID() || run.Size != 16 {
		t.Errorf("run style = (%d, %g), want (%d, 16)", run.Font, run.Size, src.ID())
	}

	// Pen advances monotonically for LTR text.
	for i := 1; i < len(run.Positions); i++ {
		if run.Positions[i].X <= run.Positions[i-1].X {
			t.Errorf("position %d.X = %g did not advance past %g",
				i, run.Positions[i].X, run.Positions[i-1].X)
		}
	}
	if run.Positions[0].X != origin.X {
		t.Errorf("first pen X = %g, want %g", run.Positions[0].X, origin.X)
	}

	// The line box straddles the baseline.
	if line.Bounds.MinY >= origin.Y || line.Bounds.MaxY <= origin.Y {
		t.Errorf("bounds %v do not straddle baseline y=%g", line.Bounds, origin.Y)
	}
	if line.Bounds.Width() <= 0 {
		t.Error("line has no width")
	}
}

func TestShapeLineKerningChangesAdvance(t *testing.T) {
	s, src := newTestShaper(t)
	style := Style{Font: src.ID(), Size: 64}

	kerned, err := s.ShapeLine("AV", style, textframe.Point{})
	if err != nil {
		t.Fatalf("ShapeLine: %v", err)
	}
	straight, err := s.ShapeLine("AH", style, textframe.Point{})
	if err != nil {
		t.Fatalf("ShapeLine: %v", err)
	}

	// The AV pair kerns tighter than AH, so the second glyph starts
	// further left.
	if kerned.Runs[0].Positions[1].X >= straight.Runs[0].Positions[1].X {
		t.Errorf("AV second glyph at %g, AH at %g, want AV < AH",
			kerned.Runs[0].Positions[1].X, straight.Runs[0].Positions[1].X)
	}
}

func TestShapeLineEmpty(t *testing.T) {
	s, src := newTestShaper(t)
	line, err := s.ShapeLine("", Style{Font: src.ID(), Size: 16}, textframe.Point{X: 5, Y: 5})
	if err != nil {
		t.Fatalf("ShapeLine: %v", err)
	}
	if len(line.Runs) != 0 {
		t.Errorf("empty text produced %d runs", len(line.Runs))
	}
}

func TestShapeLineUnknownFont(t *testing.T) {
	s := NewShaper()
	_, err := s.ShapeLine("x", Style{Font: 42, Size: 16}, textframe.Point{})
	if !errors.Is(err, textfont.ErrUnknownFont) {
		t.Errorf("error = %v, want ErrUnknownFont", err)
	}
}

func TestShapeText(t *testing.T) {
	s, src := newTestShaper(t)
	style := Style{Font: src.ID(), Size: 16}

	lines, err := s.ShapeText("first\nsecond\nthird", style, textframe.Point{Y: 20})
	if err != nil {
		t.Fatalf("ShapeText: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}

	// Baselines advance downward.
	for i := 1; i < len(lines); i++ {
		if lines[i].Bounds.MinY <= lines[i-1].Bounds.MinY {
			t.Errorf("line %d top %g not below line %d top %g",
				i, lines[i].Bounds.MinY, i-1, lines[i-1].Bounds.MinY)
		}
	}
}

func TestShaperConcurrent(t *testing.T) {
	s, src := newTestShaper(t)
	style := Style{Font: src.ID(), Size: 16}

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := s.ShapeLine("concurrent shaping", style, textframe.Point{})
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent ShapeLine: %v", err)
		}
	}
}

func TestBaseDirection(t *testing.T) {
	tests := []struct {
		name string
		text string
		rtl  bool
	}{
		{"latin", "hello", false},
		{"hebrew", "שלום", true},
		{"arabic", "مرحبا", true},
		{"digits", "1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := di.DirectionLTR
			if tt.rtl {
				want = di.DirectionRTL
			}
			if got := baseDirection(tt.text); got != want {
				t.Errorf("baseDirection(%q) = %v, want %v", tt.text, got, want)
			}
		})
	}
}
