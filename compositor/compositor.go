// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package compositor draws a video frame with an image watermark and a text
// watermark on top.
//
// A frame is composited in three layers, each a textured quad from the
// shared geometry buffer:
//
//	FullFrame       the live frame, covering the surface
//	ImageWatermark  a static image in the upper-left eighth
//	TextWatermark   rendered text in the lower-right corner
//
// Layers are drawn in that order with alpha blending, so watermarks always
// cover the frame.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"log/slog"

	"github.com/gogpu/overlay/geometry"
	"github.com/gogpu/overlay/gfx"
	"github.com/gogpu/overlay/internal/logging"
	"github.com/gogpu/overlay/shader"
	"github.com/gogpu/overlay/texture"
)

func logger() *slog.Logger { return logging.L() }

// Renderer receives surface lifecycle callbacks on the render goroutine.
type Renderer interface {
	// OnSurfaceCreated allocates GPU resources on ctx. An error is fatal
	// to the surface.
	OnSurfaceCreated(ctx gfx.Context) error

	// OnSurfaceChanged is called whenever the surface dimensions change.
	OnSurfaceChanged(width, height int)

	// OnDrawFrame composites one frame. A nil frame redraws the last one.
	OnDrawFrame(frame *image.RGBA)
}

// Releaser is implemented by renderers that own GPU resources.
type Releaser interface {
	Release()
}

// Config describes the watermark layers.
type Config struct {
	// Resources holds the shader and the watermark image.
	Resources fs.FS

	// ShaderName is the WGSL file in Resources.
	ShaderName string

	// ImageRef is the watermark image in Resources.
	ImageRef string

	// Text is the text watermark.
	Text texture.TextOptions

	// ClearColor fills the surface before the frame is drawn.
	ClearColor color.Color

	// FitText resizes the text quad to the text's pixel size.
	FitText bool

	// MaxImageSize limits the watermark image, see texture.WithMaxImageSize.
	MaxImageSize int
}

// frameSampler clamps so the frame edges do not bleed.
var frameSampler = gfx.Sampler{
	WrapS:     gfx.WrapClamp,
	WrapT:     gfx.WrapClamp,
	MinFilter: gfx.FilterLinear,
	MagFilter: gfx.FilterLinear,
}

// Watermark is the watermark Renderer.
type Watermark struct {
	cfg Config

	ctx     gfx.Context
	program gfx.ProgramID
	buffer  gfx.BufferID
	layout  geometry.Layout

	base  texture.Texture
	image texture.Texture
	text  texture.Texture

	width, height int
}

var (
	_ Renderer = (*Watermark)(nil)
	_ Releaser = (*Watermark)(nil)
)

// New returns a Watermark renderer. Empty fields in cfg take defaults:
// the watermark shader, white clear color.
func New(cfg Config) *Watermark {
	if cfg.ShaderName == "" {
		cfg.ShaderName = shader.WatermarkName
	}
	if cfg.ClearColor == nil {
		cfg.ClearColor = color.White
	}
	return &Watermark{cfg: cfg, layout: geometry.DefaultLayout()}
}

// OnSurfaceCreated compiles the shader, uploads the geometry and creates the
// three layer textures. On failure everything allocated so far is released.
func (w *Watermark) OnSurfaceCreated(ctx gfx.Context) error {
	if ctx == nil {
		return errors.New("compositor: nil context")
	}
	if w.ctx != nil {
		w.Release()
	}
	w.ctx = ctx

	if err := w.setup(); err != nil {
		w.Release()
		return err
	}
	logger().Info("compositor: surface created",
		"image", w.cfg.ImageRef, "text", w.cfg.Text.Text,
		"text_width", w.text.Width, "text_height", w.text.Height)
	return nil
}

func (w *Watermark) setup() error {
	if w.cfg.Resources == nil {
		return errors.New("compositor: no resource bundle")
	}
	prog, err := shader.Load(w.cfg.Resources, w.cfg.ShaderName)
	if err != nil {
		return err
	}
	if w.program, err = w.ctx.CreateProgram(prog); err != nil {
		return fmt.Errorf("compositor: create program: %w", err)
	}
	if w.buffer, err = w.ctx.CreateBuffer(w.layout.Build()); err != nil {
		return fmt.Errorf("compositor: create geometry buffer: %w", err)
	}

	placeholder := image.NewRGBA(image.Rect(0, 0, 1, 1))
	id, err := w.ctx.CreateTexture(placeholder, frameSampler)
	if err != nil {
		return fmt.Errorf("compositor: create frame texture: %w", err)
	}
	w.base = texture.Texture{ID: id, Width: 1, Height: 1}

	provider := texture.NewProvider(w.ctx, w.cfg.Resources, texture.WithMaxImageSize(w.cfg.MaxImageSize))
	if w.image, err = provider.LoadStaticImage(w.cfg.ImageRef); err != nil {
		return err
	}
	if w.text, err = provider.RenderText(w.cfg.Text); err != nil {
		return err
	}

	w.ctx.Blend(gfx.BlendAlpha)
	return nil
}

// OnSurfaceChanged sets the viewport. With FitText it also refits the text
// quad; textures are never reallocated.
func (w *Watermark) OnSurfaceChanged(width, height int) {
	if w.ctx == nil {
		return
	}
	w.width, w.height = width, height
	w.ctx.Viewport(0, 0, width, height)
	if w.cfg.FitText {
		w.refit()
	}
}

func (w *Watermark) refit() {
	layout := geometry.DefaultLayout().FitText(w.text.Width, w.text.Height, w.width, w.height)
	if layout == w.layout {
		return
	}
	buf, err := w.ctx.CreateBuffer(layout.Build())
	if err != nil {
		logger().Warn("compositor: refit text quad", "err", err)
		return
	}
	w.ctx.DeleteBuffer(w.buffer)
	w.buffer = buf
	w.layout = layout
}

// OnDrawFrame clears the surface and draws the frame, the image watermark
// and the text watermark, in that order.
func (w *Watermark) OnDrawFrame(frame *image.RGBA) {
	if w.ctx == nil {
		return
	}
	w.ctx.Clear(w.cfg.ClearColor)
	if frame != nil && !frame.Rect.Empty() {
		w.ctx.UpdateTexture(w.base.ID, frame)
		w.base.Width, w.base.Height = frame.Rect.Dx(), frame.Rect.Dy()
	}

	w.ctx.UseProgram(w.program)
	w.ctx.BindBuffer(w.buffer)
	w.draw(geometry.FullFrame, w.base.ID)
	w.draw(geometry.ImageWatermark, w.image.ID)
	w.draw(geometry.TextWatermark, w.text.ID)
}

func (w *Watermark) draw(r geometry.Region, tex gfx.TextureID) {
	w.ctx.BindTexture(tex)
	w.ctx.VertexAttrib(gfx.AttribPosition, r.PositionOffset())
	w.ctx.VertexAttrib(gfx.AttribTexCoord, r.TexCoordOffset())
	w.ctx.DrawArrays(gfx.TriangleStrip, 0, r.Vertices())
}

// Release deletes the textures, the geometry buffer and the program.
// It is safe to call more than once.
func (w *Watermark) Release() {
	if w.ctx == nil {
		return
	}
	for _, t := range []*texture.Texture{&w.base, &w.image, &w.text} {
		if t.ID != gfx.InvalidID {
			w.ctx.DeleteTexture(t.ID)
		}
		*t = texture.Texture{}
	}
	if w.buffer != gfx.InvalidID {
		w.ctx.DeleteBuffer(w.buffer)
		w.buffer = gfx.InvalidID
	}
	if w.program != gfx.InvalidID {
		w.ctx.DeleteProgram(w.program)
		w.program = gfx.InvalidID
	}
	w.layout = geometry.DefaultLayout()
	w.ctx = nil
}

// TextSize returns the text watermark size in pixels.
func (w *Watermark) TextSize() (width, height int) {
	return w.text.Width, w.text.Height
}
