// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software implements gfx.Context on the CPU.
//
// The render target is an *image.RGBA holding premultiplied colors. Quads
// are rasterized as triangles with a top-left fill rule, so adjacent
// triangles never blend a pixel twice. Textures are sampled with the
// sampler's wrap and filter modes.
//
// The backend registers itself as "software" with priority 10 and is always
// available.
package software

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/overlay/gfx"
	"github.com/gogpu/overlay/shader"
)

// BackendName is the registry name of this backend.
const BackendName = "software"

func init() {
	gfx.Register(gfx.Backend{
		Name:     BackendName,
		Priority: 10,
		New: func(opts gfx.Options) (gfx.Context, error) {
			return New(opts.Width, opts.Height, opts.Sink), nil
		},
	})
}

type texture struct {
	img     *image.RGBA
	sampler gfx.Sampler
}

// Context is a CPU gfx.Context.
//
// Example:
//
//	ctx := software.New(640, 360, nil)
//	defer ctx.Destroy()
//	ctx.Clear(color.White)
//	img := ctx.Target()
type Context struct {
	gfx.ErrState

	target   *image.RGBA
	viewport image.Rectangle
	sink     gfx.Sink

	next     uint64
	programs map[gfx.ProgramID]*shader.Program
	buffers  map[gfx.BufferID][]byte
	textures map[gfx.TextureID]*texture

	program gfx.ProgramID
	buffer  gfx.BufferID
	texture gfx.TextureID
	attrs   [2]int
	blend   gfx.BlendMode

	destroyed bool
}

var _ gfx.Context = (*Context)(nil)

// New creates a context with a width x height target. Frames are handed to
// sink on Present; sink may be nil.
func New(width, height int, sink gfx.Sink) *Context {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}

	return &Context{
		target:   image.NewRGBA(image.Rect(0, 0, width, height)),
		viewport: image.Rect(0, 0, width, height),
		sink:     sink,
		programs: make(map[gfx.ProgramID]*shader.Program),
		buffers:  make(map[gfx.BufferID][]byte),
		textures: make(map[gfx.TextureID]*texture),
	}
}

// Target returns the render target. It is overwritten by later frames.
func (c *Context) Target() *image.RGBA {
	return c.target
}

func (c *Context) id() uint64 {
	c.next++
	return c.next
}

// CreateProgram implements gfx.Context.
func (c *Context) CreateProgram(p *shader.Program) (gfx.ProgramID, error) {
	if c.destroyed {
		return gfx.InvalidID, gfx.ErrDestroyed
	}
	if p == nil || len(p.SPIRV) == 0 {
		return gfx.InvalidID, fmt.Errorf("software: program %v is not compiled", p)
	}
	id := gfx.ProgramID(c.id())
	c.programs[id] = p
	return id, nil
}

// UseProgram implements gfx.Context.
func (c *Context) UseProgram(id gfx.ProgramID) {
	if _, ok := c.programs[id]; !ok && id != gfx.InvalidID {
		c.Record(fmt.Errorf("%w: program %d", gfx.ErrUnknownResource, id))
		return
	}
	c.program = id
}

// DeleteProgram implements gfx.Context.
func (c *Context) DeleteProgram(id gfx.ProgramID) {
	if _, ok := c.programs[id]; !ok {
		c.Record(fmt.Errorf("%w: program %d", gfx.ErrUnknownResource, id))
		return
	}
	delete(c.programs, id)
	if c.program == id {
		c.program = gfx.InvalidID
	}
}

// CreateBuffer implements gfx.Context.
func (c *Context) CreateBuffer(data []byte) (gfx.BufferID, error) {
	if c.destroyed {
		return gfx.InvalidID, gfx.ErrDestroyed
	}
	id := gfx.BufferID(c.id())
	c.buffers[id] = append([]byte(nil), data...)
	return id, nil
}

// BindBuffer implements gfx.Context.
func (c *Context) BindBuffer(id gfx.BufferID) {
	if _, ok := c.buffers[id]; !ok && id != gfx.InvalidID {
		c.Record(fmt.Errorf("%w: buffer %d", gfx.ErrUnknownResource, id))
		return
	}
	c.buffer = id
}

// DeleteBuffer implements gfx.Context.
func (c *Context) DeleteBuffer(id gfx.BufferID) {
	if _, ok := c.buffers[id]; !ok {
		c.Record(fmt.Errorf("%w: buffer %d", gfx.ErrUnknownResource, id))
		return
	}
	delete(c.buffers, id)
	if c.buffer == id {
		c.buffer = gfx.InvalidID
	}
}

// CreateTexture implements gfx.Context.
func (c *Context) CreateTexture(img *image.RGBA, s gfx.Sampler) (gfx.TextureID, error) {
	if c.destroyed {
		return gfx.InvalidID, gfx.ErrDestroyed
	}
	if img == nil || img.Bounds().Empty() {
		return gfx.InvalidID, gfx.ErrEmptyTexture
	}
	id := gfx.TextureID(c.id())
	c.textures[id] = &texture{img: cloneRGBA(nil, img), sampler: s}
	return id, nil
}

// UpdateTexture implements gfx.Context.
func (c *Context) UpdateTexture(id gfx.TextureID, img *image.RGBA) {
	t, ok := c.textures[id]
	if !ok {
		c.Record(fmt.Errorf("%w: texture %d", gfx.ErrUnknownResource, id))
		return
	}
	if img == nil || img.Bounds().Empty() {
		c.Record(gfx.ErrEmptyTexture)
		return
	}
	t.img = cloneRGBA(t.img, img)
}

// BindTexture implements gfx.Context.
func (c *Context) BindTexture(id gfx.TextureID) {
	if _, ok := c.textures[id]; !ok && id != gfx.InvalidID {
		c.Record(fmt.Errorf("%w: texture %d", gfx.ErrUnknownResource, id))
		return
	}
	c.texture = id
}

// DeleteTexture implements gfx.Context.
func (c *Context) DeleteTexture(id gfx.TextureID) {
	if _, ok := c.textures[id]; !ok {
		c.Record(fmt.Errorf("%w: texture %d", gfx.ErrUnknownResource, id))
		return
	}
	delete(c.textures, id)
	if c.texture == id {
		c.texture = gfx.InvalidID
	}
}

// VertexAttrib implements gfx.Context.
func (c *Context) VertexAttrib(attr gfx.Attribute, offset int) {
	if int(attr) >= len(c.attrs) || offset < 0 {
		c.Record(fmt.Errorf("software: invalid attribute %v at %d", attr, offset))
		return
	}
	c.attrs[attr] = offset
}

// Viewport implements gfx.Context. Coordinates have a bottom-left origin.
// The target grows to cover the viewport.
func (c *Context) Viewport(x, y, width, height int) {
	if width <= 0 || height <= 0 {
		c.Record(fmt.Errorf("software: invalid viewport %dx%d", width, height))
		return
	}
	tw, th := max(c.target.Rect.Dx(), x+width), max(c.target.Rect.Dy(), y+height)
	if x == 0 && y == 0 {
		tw, th = width, height
	}
	if tw != c.target.Rect.Dx() || th != c.target.Rect.Dy() {
		c.target = image.NewRGBA(image.Rect(0, 0, tw, th))
	}
	top := th - (y + height)
	c.viewport = image.Rect(x, top, x+width, top+height)
}

// Blend implements gfx.Context.
func (c *Context) Blend(mode gfx.BlendMode) {
	c.blend = mode
}

// Clear implements gfx.Context. The whole target is cleared regardless of
// the viewport.
func (c *Context) Clear(col color.Color) {
	xdraw.Draw(c.target, c.target.Rect, image.NewUniform(col), image.Point{}, xdraw.Src)
}

// DrawArrays implements gfx.Context.
func (c *Context) DrawArrays(mode gfx.Primitive, first, count int) {
	if c.program == gfx.InvalidID {
		c.Record(gfx.ErrNoProgram)
		return
	}
	buf, ok := c.buffers[c.buffer]
	if !ok {
		c.Record(gfx.ErrNoBuffer)
		return
	}
	tex, ok := c.textures[c.texture]
	if !ok {
		c.Record(fmt.Errorf("%w: texture %d", gfx.ErrUnknownResource, c.texture))
		return
	}

	verts, err := c.fetch(buf, first, count)
	if err != nil {
		c.Record(err)
		return
	}

	switch mode {
	case gfx.TriangleStrip:
		for i := 0; i+2 < len(verts); i++ {
			c.drawTriangle(verts[i], verts[i+1], verts[i+2], tex)
		}
	case gfx.TriangleList:
		for i := 0; i+2 < len(verts); i += 3 {
			c.drawTriangle(verts[i], verts[i+1], verts[i+2], tex)
		}
	default:
		c.Record(fmt.Errorf("software: unsupported primitive %d", mode))
	}
}

// Present implements gfx.Context.
func (c *Context) Present() error {
	if c.destroyed {
		return gfx.ErrDestroyed
	}
	if c.sink == nil {
		return nil
	}
	return c.sink.Present(c.target)
}

// Err implements gfx.Context.
func (c *Context) Err() error {
	return c.ErrState.Err()
}

// Destroy implements gfx.Context.
func (c *Context) Destroy() {
	clear(c.programs)
	clear(c.buffers)
	clear(c.textures)
	c.program, c.buffer, c.texture = gfx.InvalidID, gfx.InvalidID, gfx.InvalidID
	c.destroyed = true
}

// cloneRGBA copies src into dst, reallocating dst when the size differs.
// The result always has a zero origin.
func cloneRGBA(dst, src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	if dst == nil || dst.Rect.Dx() != b.Dx() || dst.Rect.Dy() != b.Dy() {
		dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	xdraw.Draw(dst, dst.Rect, src, b.Min, xdraw.Src)
	return dst
}
