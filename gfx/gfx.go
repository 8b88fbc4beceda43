// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gfx defines the graphics context the compositor draws through.
//
// Context is a small immediate-mode API in the spirit of GLES: resources are
// referenced by opaque IDs, state (program, buffer, texture, attributes) is
// bound before a draw, and the frame is handed to a Sink on Present.
// Per-frame calls do not return errors. The first failure is kept and
// reported by Err, the way glGetError reports failures of void calls.
//
// A Context is not safe for concurrent use. It belongs to the goroutine that
// created it.
package gfx

import (
	"errors"
	"image"
	"image/color"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/overlay/shader"
)

// Resource IDs. Zero is never a valid handle.
type (
	// ProgramID is an opaque handle to a linked program.
	ProgramID uint64

	// BufferID is an opaque handle to a vertex buffer.
	BufferID uint64

	// TextureID is an opaque handle to a 2D RGBA texture.
	TextureID uint64
)

// InvalidID is the zero value, representing a null resource.
const InvalidID = 0

// Attribute selects a vertex attribute of the layer program.
type Attribute uint8

// Attributes, numbered like the program locations.
const (
	AttribPosition Attribute = shader.LocationPosition
	AttribTexCoord Attribute = shader.LocationTexCoord
)

// String returns the attribute name.
func (a Attribute) String() string {
	switch a {
	case AttribPosition:
		return "position"
	case AttribTexCoord:
		return "texcoord"
	default:
		return "unknown"
	}
}

// Primitive is a primitive topology for DrawArrays.
type Primitive uint8

// Primitives.
const (
	TriangleStrip Primitive = iota
	TriangleList
)

// BlendMode selects how fragments combine with the target.
type BlendMode uint8

// Blend modes.
const (
	// BlendNone replaces the target.
	BlendNone BlendMode = iota

	// BlendAlpha is source-over with premultiplied colors.
	BlendAlpha
)

// WrapMode controls sampling outside [0, 1].
type WrapMode uint8

// Wrap modes.
const (
	WrapRepeat WrapMode = iota
	WrapClamp
)

// FilterMode controls texel interpolation.
type FilterMode uint8

// Filter modes.
const (
	FilterLinear FilterMode = iota
	FilterNearest
)

// Sampler describes how a texture is sampled.
type Sampler struct {
	WrapS, WrapT WrapMode
	MinFilter    FilterMode
	MagFilter    FilterMode
}

// DefaultSampler repeats in both directions with linear filtering.
var DefaultSampler = Sampler{
	WrapS:     WrapRepeat,
	WrapT:     WrapRepeat,
	MinFilter: FilterLinear,
	MagFilter: FilterLinear,
}

// Sink receives presented frames. The image is only valid during the call.
type Sink interface {
	Present(frame *image.RGBA) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(*image.RGBA) error

// Present calls f.
func (f SinkFunc) Present(frame *image.RGBA) error { return f(frame) }

// Context is the drawing API used by the compositor.
type Context interface {
	// CreateProgram links a compiled layer program.
	CreateProgram(p *shader.Program) (ProgramID, error)
	UseProgram(id ProgramID)
	DeleteProgram(id ProgramID)

	// CreateBuffer uploads static vertex data.
	CreateBuffer(data []byte) (BufferID, error)
	BindBuffer(id BufferID)
	DeleteBuffer(id BufferID)

	// CreateTexture uploads img as a new RGBA texture.
	CreateTexture(img *image.RGBA, s Sampler) (TextureID, error)
	// UpdateTexture replaces the texture contents, resizing when needed.
	UpdateTexture(id TextureID, img *image.RGBA)
	BindTexture(id TextureID)
	DeleteTexture(id TextureID)

	// VertexAttrib points attr at byte offset in the bound buffer.
	// Attributes are two tightly packed float32 values.
	VertexAttrib(attr Attribute, offset int)
	DrawArrays(mode Primitive, first, count int)

	Viewport(x, y, width, height int)
	Blend(mode BlendMode)
	Clear(c color.Color)

	// Present hands the finished frame to the sink.
	Present() error

	// Err returns and clears the first error recorded since the last call.
	Err() error

	// Destroy releases every resource still owned by the context.
	Destroy()
}

// Options configure a context created through the registry.
type Options struct {
	Width  int
	Height int
	Sink   Sink

	// Device is the host GPU device, used by hardware backends. Nil
	// selects software rendering.
	Device gpucontext.DeviceProvider
}

// Errors.
var (
	// ErrUnknownResource is recorded when a call names a deleted or foreign ID.
	ErrUnknownResource = errors.New("gfx: unknown resource")

	// ErrNoProgram is recorded when drawing without a program.
	ErrNoProgram = errors.New("gfx: no program bound")

	// ErrNoBuffer is recorded when drawing without a vertex buffer.
	ErrNoBuffer = errors.New("gfx: no vertex buffer bound")

	// ErrOutOfRange is recorded when attributes read past the buffer end.
	ErrOutOfRange = errors.New("gfx: vertex read out of range")

	// ErrEmptyTexture is returned for textures with no pixels.
	ErrEmptyTexture = errors.New("gfx: empty texture")

	// ErrDestroyed is returned by calls on a destroyed context.
	ErrDestroyed = errors.New("gfx: context destroyed")
)
