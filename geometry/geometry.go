// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package geometry builds the shared vertex buffer used by the watermark
// compositor.
//
// The buffer holds three position quads followed by one texture coordinate
// quad that every region shares:
//
//	offset  0  full frame
//	offset 32  image watermark (upper-left)
//	offset 64  text watermark (lower-right)
//	offset 96  texture coordinates
//
// Each quad is four (x, y) float32 pairs in triangle-strip order:
// bottom-left, bottom-right, top-left, top-right. Positions are in
// normalized device coordinates. Texture coordinates are flipped
// vertically so that row 0 of an uploaded image lands at the top of the
// surface.
//
// Byte offsets are never used directly by callers; use the Region
// accessors instead.
package geometry

import (
	"encoding/binary"
	"math"
)

const (
	// VerticesPerQuad is the vertex count of a triangle-strip quad.
	VerticesPerQuad = 4

	// ComponentsPerVertex is the number of float32 values per vertex.
	ComponentsPerVertex = 2

	// VertexStride is the byte distance between two consecutive vertices.
	VertexStride = ComponentsPerVertex * 4

	// QuadSize is the byte size of one quad.
	QuadSize = VerticesPerQuad * VertexStride

	regionCount = 3

	texCoordOffset = regionCount * QuadSize

	// BufferSize is the total byte size of the built buffer.
	BufferSize = texCoordOffset + QuadSize
)

// Region identifies one of the fixed quads in the shared buffer.
type Region uint8

// Regions in draw order.
const (
	FullFrame Region = iota
	ImageWatermark
	TextWatermark
)

// Regions returns every region in compositing order.
func Regions() []Region {
	return []Region{FullFrame, ImageWatermark, TextWatermark}
}

// String returns the region name.
func (r Region) String() string {
	switch r {
	case FullFrame:
		return "full-frame"
	case ImageWatermark:
		return "image-watermark"
	case TextWatermark:
		return "text-watermark"
	default:
		return "unknown"
	}
}

// PositionOffset returns the byte offset of the region's position quad.
func (r Region) PositionOffset() int {
	return int(r) * QuadSize
}

// TexCoordOffset returns the byte offset of the region's texture
// coordinates. All regions share one texture coordinate quad.
func (r Region) TexCoordOffset() int {
	return texCoordOffset
}

// Vertices returns the number of vertices drawn for the region.
func (Region) Vertices() int {
	return VerticesPerQuad
}

// Quad is four (x, y) vertices in triangle-strip order.
type Quad [VerticesPerQuad * ComponentsPerVertex]float32

// Rect returns the strip-ordered quad covering [left, right] x [bottom, top].
func Rect(left, bottom, right, top float32) Quad {
	return Quad{
		left, bottom,
		right, bottom,
		left, top,
		right, top,
	}
}

// Bounds returns the quad extents, assuming it was built by Rect.
func (q Quad) Bounds() (left, bottom, right, top float32) {
	return q[0], q[1], q[6], q[7]
}

// TexCoords is the texture coordinate quad shared by all regions.
var TexCoords = Quad{
	0, 1,
	1, 1,
	0, 0,
	1, 0,
}

// Layout holds the position quad of each region.
type Layout struct {
	Full  Quad
	Image Quad
	Text  Quad
}

// DefaultLayout returns the standard placement: full frame, the image
// watermark in the upper-left eighth and the text watermark in a thin band
// along the bottom-right.
func DefaultLayout() Layout {
	return Layout{
		Full:  Rect(-1, -1, 1, 1),
		Image: Rect(-1, 0.5, 0, 1),
		Text:  Rect(0, -1, 1, -0.8),
	}
}

// Quad returns the position quad for r.
func (l Layout) Quad(r Region) Quad {
	switch r {
	case ImageWatermark:
		return l.Image
	case TextWatermark:
		return l.Text
	default:
		return l.Full
	}
}

// Build packs the layout and the shared texture coordinates into one
// little-endian float32 buffer of BufferSize bytes.
func (l Layout) Build() []byte {
	buf := make([]byte, BufferSize)
	for _, r := range Regions() {
		putQuad(buf[r.PositionOffset():], l.Quad(r))
	}
	putQuad(buf[texCoordOffset:], TexCoords)
	return buf
}

// Build returns the buffer for the default layout.
func Build() []byte {
	return DefaultLayout().Build()
}

// ReadQuad decodes the quad stored at offset in buf.
func ReadQuad(buf []byte, offset int) Quad {
	var q Quad
	for i := range q {
		q[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[offset+i*4:]))
	}
	return q
}

func putQuad(dst []byte, q Quad) {
	for i, v := range q {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
