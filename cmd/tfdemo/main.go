// Command tfdemo exercises the text engine's CPU side without a GPU:
// it shapes a string, rasterizes the glyphs into an image-backed atlas,
// and writes the atlas texture to a PNG alongside cache statistics.
package main

import (
	"flag"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/textframe"
	"github.com/gogpu/textframe/atlas"
	"github.com/gogpu/textframe/font"
	"github.com/gogpu/textframe/layout"
)

// imageTexture backs the atlas with a CPU grayscale image so the demo
// runs without a GPU device.
type imageTexture struct {
	img *image.Gray
}

func (t *imageTexture) Width() int  { return t.img.Rect.Dx() }
func (t *imageTexture) Height() int { return t.img.Rect.Dy() }

func (t *imageTexture) Upload(x, y, w, h int, pix []byte) error {
	for row := 0; row < h; row++ {
		copy(t.img.Pix[(y+row)*t.img.Stride+x:], pix[row*w:(row+1)*w])
	}
	return nil
}

func main() {
	var (
		text      = flag.String("text", "The quick brown fox jumps over the lazy dog", "text to shape")
		size      = flag.Float64("size", 48, "font size in points")
		atlasSize = flag.Int("atlas", 512, "atlas texture dimension")
		output    = flag.String("output", "atlas.png", "output file")
		verbose   = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		textframe.SetLogger(slog.Default())
	}

	src, err := font.New(goregular.TTF)
	if err != nil {
		log.Fatalf("Failed to load font: %v", err)
	}

	shaper := layout.NewShaper()
	if err := shaper.Register(src); err != nil {
		log.Fatalf("Failed to register font: %v", err)
	}

	ras := font.NewRasterizer()
	ras.Register(src)

	tex := &imageTexture{img: image.NewGray(image.Rect(0, 0, *atlasSize, *atlasSize))}
	cache, err := atlas.New(tex, ras, atlas.Config{Width: *atlasSize, Height: *atlasSize, Padding: 1})
	if err != nil {
		log.Fatalf("Failed to create atlas: %v", err)
	}

	style := layout.Style{Font: src.ID(), Size: *size, Color: textframe.RGB(0, 0, 0)}
	lines, err := shaper.ShapeText(*text, style, textframe.Pt(0, *size))
	if err != nil {
		log.Fatalf("Failed to shape text: %v", err)
	}

	var glyphs int
	for _, line := range lines {
		for _, run := range line.Runs {
			reqs := make([]atlas.GlyphRequest, len(run.Glyphs))
			for i, gid := range run.Glyphs {
				reqs[i] = atlas.GlyphRequest{Font: run.Font, GID: gid, SizePx: run.Size}
			}
			cache.Resolve(reqs)
			glyphs += len(run.Glyphs)
		}
	}

	// Resolve a second time to show the cache at work.
	for _, line := range lines {
		for _, run := range line.Runs {
			reqs := make([]atlas.GlyphRequest, len(run.Glyphs))
			for i, gid := range run.Glyphs {
				reqs[i] = atlas.GlyphRequest{Font: run.Font, GID: gid, SizePx: run.Size}
			}
			cache.Resolve(reqs)
		}
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, tex.img); err != nil {
		log.Fatalf("Failed to encode PNG: %v", err)
	}

	hits, misses := cache.Stats()
	log.Printf("Shaped %d glyphs in %d lines", glyphs, len(lines))
	log.Printf("Atlas: %d entries, %d hits, %d misses, hit rate %.2f",
		cache.Len(), hits, misses, cache.HitRate())
	log.Printf("Atlas texture saved to %s (%dx%d)", *output, *atlasSize, *atlasSize)
}
