// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/overlay/geometry"
	"github.com/gogpu/overlay/gfx"
	"github.com/gogpu/overlay/shader"
)

var (
	red   = color.RGBA{255, 0, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	white = color.RGBA{255, 255, 255, 255}
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// setup returns a context with the layer program and the default geometry bound.
func setup(t *testing.T, w, h int) *Context {
	t.Helper()
	c := New(w, h, nil)
	prog, err := c.CreateProgram(&shader.Program{Name: "test", SPIRV: []uint32{0x07230203}})
	if err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	buf, err := c.CreateBuffer(geometry.Build())
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	c.UseProgram(prog)
	c.BindBuffer(buf)
	return c
}

func drawRegion(c *Context, r geometry.Region, tex gfx.TextureID) {
	c.BindTexture(tex)
	c.VertexAttrib(gfx.AttribPosition, r.PositionOffset())
	c.VertexAttrib(gfx.AttribTexCoord, r.TexCoordOffset())
	c.DrawArrays(gfx.TriangleStrip, 0, r.Vertices())
}

func TestClear(t *testing.T) {
	c := New(3, 2, nil)
	c.Clear(red)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			if got := c.Target().RGBAAt(x, y); got != red {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, red)
			}
		}
	}
}

func TestDrawFullFrame(t *testing.T) {
	c := setup(t, 8, 6)
	tex, err := c.CreateTexture(solid(8, 6, blue), gfx.DefaultSampler)
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	c.Clear(white)
	drawRegion(c, geometry.FullFrame, tex)

	if err := c.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			if got := c.Target().RGBAAt(x, y); got != blue {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, blue)
			}
		}
	}
}

func TestDrawKeepsImageUpright(t *testing.T) {
	c := setup(t, 2, 2)
	src := image.NewRGBA(image.Rect(0, 0, 1, 2))
	src.SetRGBA(0, 0, red)
	src.SetRGBA(0, 1, blue)

	s := gfx.DefaultSampler
	s.MinFilter, s.MagFilter = gfx.FilterNearest, gfx.FilterNearest
	tex, err := c.CreateTexture(src, s)
	if err != nil {
		t.Fatal(err)
	}
	drawRegion(c, geometry.FullFrame, tex)

	if got := c.Target().RGBAAt(0, 0); got != red {
		t.Errorf("top row = %v, want red", got)
	}
	if got := c.Target().RGBAAt(1, 1); got != blue {
		t.Errorf("bottom row = %v, want blue", got)
	}
}

func TestDrawImageWatermarkRegion(t *testing.T) {
	c := setup(t, 8, 8)
	tex, err := c.CreateTexture(solid(2, 2, red), gfx.DefaultSampler)
	if err != nil {
		t.Fatal(err)
	}
	c.Clear(white)
	drawRegion(c, geometry.ImageWatermark, tex)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := white
			if x < 4 && y < 2 {
				want = red
			}
			if got := c.Target().RGBAAt(x, y); got != want {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestDrawTextWatermarkRegion(t *testing.T) {
	c := setup(t, 10, 10)
	tex, err := c.CreateTexture(solid(1, 1, red), gfx.DefaultSampler)
	if err != nil {
		t.Fatal(err)
	}
	c.Clear(white)
	drawRegion(c, geometry.TextWatermark, tex)

	if got := c.Target().RGBAAt(9, 9); got != red {
		t.Errorf("bottom-right pixel = %v, want red", got)
	}
	if got := c.Target().RGBAAt(5, 9); got != red {
		t.Errorf("pixel (5,9) = %v, want red", got)
	}
	if got := c.Target().RGBAAt(4, 9); got != white {
		t.Errorf("pixel (4,9) = %v, want white", got)
	}
	if got := c.Target().RGBAAt(9, 8); got != white {
		t.Errorf("pixel (9,8) = %v, want white", got)
	}
}

func TestBlendCoversEachPixelOnce(t *testing.T) {
	c := setup(t, 7, 5)
	half := solid(1, 1, color.RGBA{0, 0, 128, 128})
	tex, err := c.CreateTexture(half, gfx.DefaultSampler)
	if err != nil {
		t.Fatal(err)
	}
	c.Blend(gfx.BlendAlpha)
	c.Clear(color.RGBA{})
	drawRegion(c, geometry.FullFrame, tex)

	want := color.RGBA{0, 0, 128, 128}
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			if got := c.Target().RGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestBlendOver(t *testing.T) {
	c := setup(t, 2, 2)
	tex, err := c.CreateTexture(solid(1, 1, color.RGBA{}), gfx.DefaultSampler)
	if err != nil {
		t.Fatal(err)
	}
	c.Blend(gfx.BlendAlpha)
	c.Clear(red)
	drawRegion(c, geometry.FullFrame, tex)

	if got := c.Target().RGBAAt(1, 1); got != red {
		t.Errorf("transparent layer changed pixel to %v", got)
	}
}

func TestUpdateTextureResizes(t *testing.T) {
	c := setup(t, 4, 4)
	tex, err := c.CreateTexture(solid(1, 1, red), gfx.DefaultSampler)
	if err != nil {
		t.Fatal(err)
	}
	c.UpdateTexture(tex, solid(4, 4, blue))
	drawRegion(c, geometry.FullFrame, tex)

	if err := c.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if got := c.Target().RGBAAt(2, 2); got != blue {
		t.Errorf("pixel = %v, want blue", got)
	}
}

func TestDrawErrors(t *testing.T) {
	c := New(4, 4, nil)
	c.DrawArrays(gfx.TriangleStrip, 0, 4)
	if err := c.Err(); !errors.Is(err, gfx.ErrNoProgram) {
		t.Errorf("Err() = %v, want ErrNoProgram", err)
	}

	c = setup(t, 4, 4)
	tex, _ := c.CreateTexture(solid(1, 1, red), gfx.DefaultSampler)
	c.BindTexture(tex)
	c.VertexAttrib(gfx.AttribPosition, 120)
	c.DrawArrays(gfx.TriangleStrip, 0, 4)
	if err := c.Err(); !errors.Is(err, gfx.ErrOutOfRange) {
		t.Errorf("Err() = %v, want ErrOutOfRange", err)
	}

	c.DeleteTexture(gfx.TextureID(999))
	if err := c.Err(); !errors.Is(err, gfx.ErrUnknownResource) {
		t.Errorf("Err() = %v, want ErrUnknownResource", err)
	}

	if _, err := c.CreateTexture(image.NewRGBA(image.Rectangle{}), gfx.DefaultSampler); !errors.Is(err, gfx.ErrEmptyTexture) {
		t.Errorf("CreateTexture(empty) error = %v, want ErrEmptyTexture", err)
	}
}

func TestViewportResizesTarget(t *testing.T) {
	c := New(4, 4, nil)
	c.Viewport(0, 0, 16, 9)
	if b := c.Target().Bounds(); b.Dx() != 16 || b.Dy() != 9 {
		t.Errorf("target = %v, want 16x9", b)
	}
}

func TestPresent(t *testing.T) {
	var got *image.RGBA
	c := New(3, 3, gfx.SinkFunc(func(img *image.RGBA) error {
		got = img
		return nil
	}))
	c.Clear(red)
	if err := c.Present(); err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if got == nil || got.RGBAAt(1, 1) != red {
		t.Error("sink did not receive the cleared frame")
	}

	c.Destroy()
	if err := c.Present(); !errors.Is(err, gfx.ErrDestroyed) {
		t.Errorf("Present() after Destroy = %v, want ErrDestroyed", err)
	}
}

func TestRegistered(t *testing.T) {
	ctx, err := gfx.NewContextByName(BackendName, gfx.Options{Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("NewContextByName() error = %v", err)
	}
	if _, ok := ctx.(*Context); !ok {
		t.Errorf("context = %T, want *Context", ctx)
	}
}
