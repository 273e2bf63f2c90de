package atlas

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/textframe"
)

// fakeTexture records uploads.
type fakeTexture struct {
	width, height int
	uploads       []Region
	uploadErr     error
}

func (t *fakeTexture) Width() int  { return t.width }
func (t *fakeTexture) Height() int { return t.height }

func (t *fakeTexture) Upload(x, y, w, h int, pix []byte) error {
	if t.uploadErr != nil {
		return t.uploadErr
	}
	if len(pix) != w*h {
		return fmt.Errorf("upload size mismatch: %d for %dx%d", len(pix), w, h)
	}
	t.uploads = append(t.uploads, Region{X: x, Y: y, Width: w, Height: h})
	return nil
}

// fakeRasterizer renders every glyph as a solid square whose side is the
// glyph ID, so packing behavior is easy to script from the input.
type fakeRasterizer struct {
	calls   int
	failGID textframe.GlyphID
}

var errRasterFail = errors.New("raster fail")

func (r *fakeRasterizer) Rasterize(_ textframe.FontID, gid textframe.GlyphID, _ float64) (Bitmap, error) {
	r.calls++
	if gid == r.failGID && gid != 0 {
		return Bitmap{}, errRasterFail
	}
	side := int(gid)
	return Bitmap{
		Pix:     make([]byte, side*side),
		Width:   side,
		Height:  side,
		Left:    1,
		Top:     -float64(side),
		Advance: textframe.Point{X: float64(side) + 2},
	}, nil
}

func newTestAtlas(t *testing.T, w, h int) (*Atlas, *fakeTexture, *fakeRasterizer) {
	t.Helper()
	tex := &fakeTexture{width: w, height: h}
	ras := &fakeRasterizer{}
	a, err := New(tex, ras, Config{Width: w, Height: h, Padding: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, tex, ras
}

func req(gid textframe.GlyphID) GlyphRequest {
	return GlyphRequest{Font: 1, GID: gid, SizePx: 16}
}

func TestNewValidation(t *testing.T) {
	tex := &fakeTexture{width: 64, height: 64}
	ras := &fakeRasterizer{}

	tests := []struct {
		name    string
		tex     Texture
		ras     Rasterizer
		wantErr error
	}{
		{"nil texture", nil, ras, ErrNilTexture},
		{"nil rasterizer", tex, nil, ErrNilRasterizer},
		{"ok", tex, ras, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tex, tt.ras, DefaultConfig())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveHitAndMiss(t *testing.T) {
	a, _, ras := newTestAtlas(t, 256, 256)

	// [A, B, A]: two misses, one hit, and the repeated glyph resolves to
	// the identical entry.
	entries := a.Resolve([]GlyphRequest{req(10), req(12), req(10)})
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0] != entries[2] {
		t.Error("duplicate request did not return the identical entry")
	}
	if entries[0] == entries[1] {
		t.Error("distinct glyphs share an entry")
	}

	hits, misses := a.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("Stats() = (%d, %d), want (1, 2)", hits, misses)
	}
	if ras.calls != 2 {
		t.Errorf("rasterizer calls = %d, want 2", ras.calls)
	}
}

func TestResolveIdempotent(t *testing.T) {
	a, _, _ := newTestAtlas(t, 256, 256)

	first := a.Resolve([]GlyphRequest{req(10)})
	second := a.Resolve([]GlyphRequest{req(10)})

	if first[0] != second[0] {
		t.Fatal("resolving the same request twice returned different entries")
	}
	if first[0].Region != second[0].Region {
		t.Errorf("region changed across resolves: %v vs %v", first[0].Region, second[0].Region)
	}
}

func TestResolveEmpty(t *testing.T) {
	a, tex, ras := newTestAtlas(t, 256, 256)

	if got := a.Resolve(nil); got != nil {
		t.Errorf("Resolve(nil) = %v, want nil", got)
	}
	if ras.calls != 0 || len(tex.uploads) != 0 {
		t.Error("empty resolve touched the rasterizer or texture")
	}
}

func TestHitRateMonotonicOnHits(t *testing.T) {
	a, _, _ := newTestAtlas(t, 512, 512)

	// Warm the cache with distinct glyphs.
	var warm []GlyphRequest
	for gid := textframe.GlyphID(4); gid < 12; gid++ {
		warm = append(warm, req(gid))
	}
	a.Resolve(warm)
	_, missesBefore := a.Stats()

	// Repeated lookups raise the hit rate and leave misses untouched.
	prev := a.HitRate()
	for i := 0; i < 5; i++ {
		a.Resolve(warm)
		rate := a.HitRate()
		if rate <= prev {
			t.Fatalf("hit rate did not increase: %g -> %g", prev, rate)
		}
		prev = rate
	}

	_, missesAfter := a.Stats()
	if missesAfter != missesBefore {
		t.Errorf("misses grew on pure hits: %d -> %d", missesBefore, missesAfter)
	}
	if prev < 0 || prev > 1 {
		t.Errorf("hit rate %g outside [0, 1]", prev)
	}
}

func TestHitRateBeforeAnyLookup(t *testing.T) {
	a, _, _ := newTestAtlas(t, 64, 64)
	if got := a.HitRate(); got != 0 {
		t.Errorf("HitRate() = %g before any lookup, want 0", got)
	}
}

func TestPackRowOverflow(t *testing.T) {
	// Atlas 64 wide, glyphs 20 wide + 1 padding: three fit per row, the
	// fourth opens a new shelf at x = 0.
	a, _, _ := newTestAtlas(t, 64, 256)

	entries := a.Resolve([]GlyphRequest{req(20), req(21), req(19), req(22)})

	fourth := entries[3].Region
	if fourth.X != 0 {
		t.Errorf("new row X = %d, want 0", fourth.X)
	}
	// Row height is the tallest glyph (21) plus padding.
	if wantY := 21 + 1; fourth.Y != wantY {
		t.Errorf("new row Y = %d, want %d", fourth.Y, wantY)
	}
}

func TestPackNoOverlap(t *testing.T) {
	a, _, _ := newTestAtlas(t, 128, 128)

	var reqs []GlyphRequest
	for gid := textframe.GlyphID(3); gid < 30; gid++ {
		reqs = append(reqs, req(gid))
	}
	entries := a.Resolve(reqs)

	for i, e := range entries {
		if e.Region.IsEmpty() {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			o := entries[j].Region
			if o.IsEmpty() {
				continue
			}
			if e.Region.Overlaps(o) {
				t.Fatalf("entries %d and %d overlap: %v and %v", i, j, e.Region, o)
			}
		}
	}
}

func TestAtlasExhaustion(t *testing.T) {
	// 32x32 atlas cannot hold many 20x20 glyphs. Exhausted glyphs keep
	// resolving with empty regions instead of failing the frame.
	a, _, _ := newTestAtlas(t, 32, 32)

	var reqs []GlyphRequest
	for gid := textframe.GlyphID(20); gid < 26; gid++ {
		reqs = append(reqs, req(gid))
	}
	entries := a.Resolve(reqs)

	var packed, dropped int
	for _, e := range entries {
		if e == nil {
			t.Fatal("Resolve returned a nil entry")
		}
		if e.Region.IsEmpty() {
			dropped++
		} else {
			packed++
		}
	}
	if packed == 0 {
		t.Error("no glyph packed at all")
	}
	if dropped == 0 {
		t.Error("expected overflow placeholders in a tiny atlas")
	}

	// Overflow entries are still cached: resolving again is a pure hit.
	a.Resolve(reqs)
	hits, _ := a.Stats()
	if hits != uint64(len(reqs)) {
		t.Errorf("hits after re-resolve = %d, want %d", hits, len(reqs))
	}
}

func TestOversizedGlyphRejected(t *testing.T) {
	a, tex, _ := newTestAtlas(t, 32, 32)

	entries := a.Resolve([]GlyphRequest{req(40)})
	if !entries[0].Region.IsEmpty() {
		t.Errorf("oversized glyph got region %v, want empty", entries[0].Region)
	}
	if len(tex.uploads) != 0 {
		t.Error("oversized glyph was uploaded")
	}
}

func TestRasterizationFailurePlaceholder(t *testing.T) {
	tex := &fakeTexture{width: 128, height: 128}
	ras := &fakeRasterizer{failGID: 7}
	a, err := New(tex, ras, Config{Width: 128, Height: 128, Padding: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entries := a.Resolve([]GlyphRequest{req(7), req(8)})
	if !entries[0].Region.IsEmpty() {
		t.Error("failed glyph has a non-empty region")
	}
	if !entries[0].Bounds.IsEmpty() {
		t.Error("failed glyph has non-empty bounds")
	}
	if entries[1].Region.IsEmpty() {
		t.Error("healthy glyph after a failure did not pack")
	}

	// The placeholder is cached: no second rasterization attempt.
	calls := ras.calls
	a.Resolve([]GlyphRequest{req(7)})
	if ras.calls != calls {
		t.Error("failed glyph was rasterized again on hit")
	}
}

func TestZeroAreaGlyphKeepsAdvance(t *testing.T) {
	a, tex, _ := newTestAtlas(t, 128, 128)

	// GID 0 rasterizes to a 0x0 bitmap (whitespace).
	entries := a.Resolve([]GlyphRequest{{Font: 1, GID: 0, SizePx: 16}})
	e := entries[0]
	if !e.Region.IsEmpty() {
		t.Errorf("whitespace glyph got region %v", e.Region)
	}
	if e.Advance.X != 2 {
		t.Errorf("whitespace advance = %g, want 2", e.Advance.X)
	}
	if len(tex.uploads) != 0 {
		t.Error("whitespace glyph was uploaded")
	}
}

func TestUploadRegionsMatchEntries(t *testing.T) {
	a, tex, _ := newTestAtlas(t, 256, 256)

	entries := a.Resolve([]GlyphRequest{req(10), req(11), req(12)})
	if len(tex.uploads) != 3 {
		t.Fatalf("uploads = %d, want 3", len(tex.uploads))
	}
	for i, e := range entries {
		if tex.uploads[i] != e.Region {
			t.Errorf("upload %d = %v, entry region = %v", i, tex.uploads[i], e.Region)
		}
	}
}

func TestKeyQuantization(t *testing.T) {
	tests := []struct {
		name   string
		a, b   float64
		wantEq bool
	}{
		{"identical", 16.0, 16.0, true},
		{"sub-1/64 jitter", 16.0, 16.001, true},
		{"distinct sizes", 16.0, 17.0, false},
		{"half pixel", 16.0, 16.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka := KeyFor(GlyphRequest{Font: 1, GID: 5, SizePx: tt.a})
			kb := KeyFor(GlyphRequest{Font: 1, GID: 5, SizePx: tt.b})
			if (ka == kb) != tt.wantEq {
				t.Errorf("KeyFor(%g) == KeyFor(%g) is %v, want %v", tt.a, tt.b, ka == kb, tt.wantEq)
			}
		})
	}
}

func TestLen(t *testing.T) {
	a, _, _ := newTestAtlas(t, 256, 256)
	if a.Len() != 0 {
		t.Errorf("Len() = %d on empty atlas", a.Len())
	}
	a.Resolve([]GlyphRequest{req(10), req(11), req(10)})
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}
}

func TestRegionOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Region
		want bool
	}{
		{"identical", Region{0, 0, 10, 10}, Region{0, 0, 10, 10}, true},
		{"touching edges", Region{0, 0, 10, 10}, Region{10, 0, 10, 10}, false},
		{"disjoint", Region{0, 0, 5, 5}, Region{20, 20, 5, 5}, false},
		{"partial", Region{0, 0, 10, 10}, Region{5, 5, 10, 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}
