// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/overlay/gfx"
)

// vertex is a rasterizer vertex in target pixel space.
type vertex struct {
	x, y float64
	u, v float64
}

const vertexStride = 8

// fetch reads count vertices starting at first from the bound attribute
// offsets and maps positions from NDC to target pixels.
func (c *Context) fetch(buf []byte, first, count int) ([]vertex, error) {
	if first < 0 || count < 0 {
		return nil, fmt.Errorf("software: invalid range first=%d count=%d", first, count)
	}
	end := (first + count) * vertexStride
	for _, off := range c.attrs {
		if off+end > len(buf) {
			return nil, fmt.Errorf("%w: offset %d + %d bytes > %d", gfx.ErrOutOfRange, off, end, len(buf))
		}
	}

	vp := c.viewport
	verts := make([]vertex, count)
	for i := range verts {
		n := (first + i) * vertexStride
		x := readFloat(buf, c.attrs[gfx.AttribPosition]+n)
		y := readFloat(buf, c.attrs[gfx.AttribPosition]+n+4)
		verts[i] = vertex{
			x: float64(vp.Min.X) + (x+1)/2*float64(vp.Dx()),
			y: float64(vp.Min.Y) + (1-y)/2*float64(vp.Dy()),
			u: readFloat(buf, c.attrs[gfx.AttribTexCoord]+n),
			v: readFloat(buf, c.attrs[gfx.AttribTexCoord]+n+4),
		}
	}
	return verts, nil
}

func readFloat(buf []byte, off int) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])))
}

// edge is twice the signed area of (a, b, p).
func edge(a, b vertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// owns applies the top-left rule to a pixel centre lying exactly on the
// edge from a to b. Of two triangles sharing an edge, exactly one owns it.
func owns(a, b vertex) bool {
	dy := b.y - a.y
	return dy > 0 || (dy == 0 && b.x < a.x)
}

func covered(w float64, a, b vertex) bool {
	return w > 0 || (w == 0 && owns(a, b))
}

func (c *Context) drawTriangle(a, b, d vertex, tex *texture) {
	area := edge(a, b, d.x, d.y)
	if area == 0 {
		return
	}
	if area < 0 {
		b, d = d, b
		area = -area
	}

	clip := c.viewport.Intersect(c.target.Rect)
	box := image.Rect(
		int(math.Floor(min(a.x, b.x, d.x))),
		int(math.Floor(min(a.y, b.y, d.y))),
		int(math.Ceil(max(a.x, b.x, d.x))),
		int(math.Ceil(max(a.y, b.y, d.y))),
	).Intersect(clip)
	if box.Empty() {
		return
	}

	filter := tex.sampler.MagFilter
	if float64(box.Dx()) < float64(tex.img.Rect.Dx()) {
		filter = tex.sampler.MinFilter
	}

	pix := c.target.Pix
	stride := c.target.Stride
	for y := box.Min.Y; y < box.Max.Y; y++ {
		py := float64(y) + 0.5
		row := (y - c.target.Rect.Min.Y) * stride
		for x := box.Min.X; x < box.Max.X; x++ {
			px := float64(x) + 0.5
			w0 := edge(b, d, px, py)
			w1 := edge(d, a, px, py)
			w2 := edge(a, b, px, py)
			if !covered(w0, b, d) || !covered(w1, d, a) || !covered(w2, a, b) {
				continue
			}
			u := (w0*a.u + w1*b.u + w2*d.u) / area
			v := (w0*a.v + w1*b.v + w2*d.v) / area

			sr, sg, sb, sa := tex.sample(u, v, filter)
			i := row + (x-c.target.Rect.Min.X)*4
			if c.blend == gfx.BlendAlpha {
				k := 1 - sa/255
				sr += float64(pix[i]) * k
				sg += float64(pix[i+1]) * k
				sb += float64(pix[i+2]) * k
				sa += float64(pix[i+3]) * k
			}
			pix[i] = quantize(sr)
			pix[i+1] = quantize(sg)
			pix[i+2] = quantize(sb)
			pix[i+3] = quantize(sa)
		}
	}
}

// sample returns the premultiplied color at (u, v) in the 0..255 range.
func (t *texture) sample(u, v float64, filter gfx.FilterMode) (r, g, b, a float64) {
	w, h := t.img.Rect.Dx(), t.img.Rect.Dy()
	fx := u * float64(w)
	fy := v * float64(h)

	if filter == gfx.FilterNearest {
		x := wrap(int(math.Floor(fx)), w, t.sampler.WrapS)
		y := wrap(int(math.Floor(fy)), h, t.sampler.WrapT)
		return t.texel(x, y)
	}

	fx -= 0.5
	fy -= 0.5
	x0f, y0f := math.Floor(fx), math.Floor(fy)
	tx, ty := fx-x0f, fy-y0f
	x0 := wrap(int(x0f), w, t.sampler.WrapS)
	x1 := wrap(int(x0f)+1, w, t.sampler.WrapS)
	y0 := wrap(int(y0f), h, t.sampler.WrapT)
	y1 := wrap(int(y0f)+1, h, t.sampler.WrapT)

	r00, g00, b00, a00 := t.texel(x0, y0)
	r10, g10, b10, a10 := t.texel(x1, y0)
	r01, g01, b01, a01 := t.texel(x0, y1)
	r11, g11, b11, a11 := t.texel(x1, y1)

	w00 := (1 - tx) * (1 - ty)
	w10 := tx * (1 - ty)
	w01 := (1 - tx) * ty
	w11 := tx * ty
	r = r00*w00 + r10*w10 + r01*w01 + r11*w11
	g = g00*w00 + g10*w10 + g01*w01 + g11*w11
	b = b00*w00 + b10*w10 + b01*w01 + b11*w11
	a = a00*w00 + a10*w10 + a01*w01 + a11*w11
	return r, g, b, a
}

func (t *texture) texel(x, y int) (r, g, b, a float64) {
	i := y*t.img.Stride + x*4
	p := t.img.Pix[i : i+4 : i+4]
	return float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3])
}

func wrap(i, n int, mode gfx.WrapMode) int {
	if mode == gfx.WrapClamp {
		return min(max(i, 0), n-1)
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func quantize(f float64) uint8 {
	f = math.Round(f)
	if f <= 0 {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(f)
}
