// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/textframe"
	"github.com/gogpu/textframe/atlas"
)

// VertexStride is the byte stride per vertex in the text pipeline.
// Layout per vertex:
//
//	position  (vec2<f32>) = 8 bytes  (location 0)
//	tex_coord (vec2<f32>) = 8 bytes  (location 1)
//
// Total = 16 bytes per vertex.
const VertexStride = 16

// MaxQuadsPerDraw is the largest quad count one draw call can hold with
// uint16 indices: 16384 quads * 4 vertices = 65536 addressable vertices.
const MaxQuadsPerDraw = 16384

// Batch is the geometry of one draw call: 4 vertices and 6 indices per
// glyph, always, so output sizes are predictable from the input length.
type Batch struct {
	// Vertices is the raw vertex data, QuadCount*4 vertices.
	Vertices []byte

	// Indices is the raw uint16 index data, QuadCount*6 indices.
	Indices []byte

	// IndexCount is the number of indices (QuadCount * 6).
	IndexCount uint32

	// QuadCount is the number of glyphs in the batch.
	QuadCount int
}

// BatchBuilder converts resolved atlas entries and pen positions into
// quad geometry. Each Build allocates fresh buffers; a frame holds
// several live batches at once, so they must not alias.
//
// BatchBuilder is not safe for concurrent use; the coordinator owns one
// and serializes encoding.
type BatchBuilder struct{}

// Build emits one textured quad per entry. positions[i] is the pen
// position for entries[i] in device pixels relative to origin; the quad
// rectangle is the entry's logical bounds translated to that pen.
//
// Zero-width entries (spaces, rasterization placeholders) still produce
// a degenerate quad rather than being skipped, keeping vertex and index
// counts exactly 4N and 6N for N input glyphs.
//
// Build panics if len(entries) != len(positions); that is a programming
// error in the caller, not a renderable state.
func (b *BatchBuilder) Build(entries []*atlas.Entry, positions []textframe.Point, origin textframe.Point, tex atlas.Texture) Batch {
	if len(entries) != len(positions) {
		panic("render: entries and positions length mismatch")
	}

	n := len(entries)
	if n == 0 {
		return Batch{}
	}

	verts := make([]byte, n*4*VertexStride)
	idx := make([]byte, n*6*2)

	aw := float32(tex.Width())
	ah := float32(tex.Height())

	off := 0
	for i, e := range entries {
		pen := positions[i].Sub(origin)

		x0 := float32(pen.X + e.Bounds.MinX)
		y0 := float32(pen.Y + e.Bounds.MinY)
		x1 := float32(pen.X + e.Bounds.MaxX)
		y1 := float32(pen.Y + e.Bounds.MaxY)

		u0 := float32(e.Region.X) / aw
		v0 := float32(e.Region.Y) / ah
		u1 := float32(e.Region.X+e.Region.Width) / aw
		v1 := float32(e.Region.Y+e.Region.Height) / ah

		// Vertex 0: top-left
		putVertex(verts[off:], x0, y0, u0, v0)
		off += VertexStride
		// Vertex 1: top-right
		putVertex(verts[off:], x1, y0, u1, v0)
		off += VertexStride
		// Vertex 2: bottom-right
		putVertex(verts[off:], x1, y1, u1, v1)
		off += VertexStride
		// Vertex 3: bottom-left
		putVertex(verts[off:], x0, y1, u0, v1)
		off += VertexStride
	}

	// Two triangles per quad sharing the 0-2 diagonal, consistent winding:
	// 0,1,2 then 2,3,0.
	for i := 0; i < n; i++ {
		base := i * 12
		v := uint16(i * 4) //nolint:gosec // n is bounded by MaxQuadsPerDraw

		binary.LittleEndian.PutUint16(idx[base+0:], v+0)
		binary.LittleEndian.PutUint16(idx[base+2:], v+1)
		binary.LittleEndian.PutUint16(idx[base+4:], v+2)
		binary.LittleEndian.PutUint16(idx[base+6:], v+2)
		binary.LittleEndian.PutUint16(idx[base+8:], v+3)
		binary.LittleEndian.PutUint16(idx[base+10:], v+0)
	}

	return Batch{
		Vertices:   verts,
		Indices:    idx,
		IndexCount: uint32(n * 6), //nolint:gosec // bounded by MaxQuadsPerDraw
		QuadCount:  n,
	}
}

// putVertex writes a single vertex into buf.
func putVertex(buf []byte, x, y, u, v float32) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(x))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(y))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(u))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(v))
}
