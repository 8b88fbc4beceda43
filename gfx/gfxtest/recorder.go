// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gfxtest provides a recording gfx.Context for tests.
package gfxtest

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/gogpu/overlay/gfx"
	"github.com/gogpu/overlay/shader"
)

// Call is one recorded context call.
type Call struct {
	Op   string
	Args []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Op, c.Args)
}

// Draw captures the state in effect when DrawArrays was issued.
type Draw struct {
	Program        gfx.ProgramID
	Buffer         gfx.BufferID
	Texture        gfx.TextureID
	PositionOffset int
	TexCoordOffset int
	Mode           gfx.Primitive
	First, Count   int
}

// Recorder is a gfx.Context that records every call and draws nothing.
// It is safe to inspect from another goroutine.
type Recorder struct {
	// Fail errors, when set, are returned by the matching create call.
	FailProgram error
	FailBuffer  error
	FailTexture error

	// Sink, when set, receives an empty frame on Present.
	Sink gfx.Sink

	mu        sync.Mutex
	calls     []Call
	draws     []Draw
	next      uint64
	live      map[uint64]string
	program   gfx.ProgramID
	buffer    gfx.BufferID
	texture   gfx.TextureID
	attrs     [2]int
	width     int
	height    int
	presents  int
	destroyed bool
	gfx.ErrState
}

var _ gfx.Context = (*Recorder)(nil)

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{live: make(map[uint64]string)}
}

func (r *Recorder) record(op string, args ...any) {
	r.calls = append(r.calls, Call{Op: op, Args: args})
}

func (r *Recorder) alloc(kind string) uint64 {
	if r.live == nil {
		r.live = make(map[uint64]string)
	}
	r.next++
	r.live[r.next] = kind
	return r.next
}

func (r *Recorder) free(kind string, id uint64) {
	if r.live[id] != kind {
		r.Record(fmt.Errorf("%w: %s %d", gfx.ErrUnknownResource, kind, id))
		return
	}
	delete(r.live, id)
}

// CreateProgram implements gfx.Context.
func (r *Recorder) CreateProgram(p *shader.Program) (gfx.ProgramID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CreateProgram", p.Name)
	if r.FailProgram != nil {
		return gfx.InvalidID, r.FailProgram
	}
	return gfx.ProgramID(r.alloc("program")), nil
}

// UseProgram implements gfx.Context.
func (r *Recorder) UseProgram(id gfx.ProgramID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("UseProgram", id)
	r.program = id
}

// DeleteProgram implements gfx.Context.
func (r *Recorder) DeleteProgram(id gfx.ProgramID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DeleteProgram", id)
	r.free("program", uint64(id))
}

// CreateBuffer implements gfx.Context.
func (r *Recorder) CreateBuffer(data []byte) (gfx.BufferID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CreateBuffer", len(data))
	if r.FailBuffer != nil {
		return gfx.InvalidID, r.FailBuffer
	}
	return gfx.BufferID(r.alloc("buffer")), nil
}

// BindBuffer implements gfx.Context.
func (r *Recorder) BindBuffer(id gfx.BufferID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("BindBuffer", id)
	r.buffer = id
}

// DeleteBuffer implements gfx.Context.
func (r *Recorder) DeleteBuffer(id gfx.BufferID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DeleteBuffer", id)
	r.free("buffer", uint64(id))
}

// CreateTexture implements gfx.Context.
func (r *Recorder) CreateTexture(img *image.RGBA, s gfx.Sampler) (gfx.TextureID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := img.Bounds()
	r.record("CreateTexture", b.Dx(), b.Dy(), s)
	if r.FailTexture != nil {
		return gfx.InvalidID, r.FailTexture
	}
	if b.Empty() {
		return gfx.InvalidID, gfx.ErrEmptyTexture
	}
	return gfx.TextureID(r.alloc("texture")), nil
}

// UpdateTexture implements gfx.Context.
func (r *Recorder) UpdateTexture(id gfx.TextureID, img *image.RGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := img.Bounds()
	r.record("UpdateTexture", id, b.Dx(), b.Dy())
	if r.live[uint64(id)] != "texture" {
		r.Record(fmt.Errorf("%w: texture %d", gfx.ErrUnknownResource, id))
	}
}

// BindTexture implements gfx.Context.
func (r *Recorder) BindTexture(id gfx.TextureID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("BindTexture", id)
	r.texture = id
}

// DeleteTexture implements gfx.Context.
func (r *Recorder) DeleteTexture(id gfx.TextureID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DeleteTexture", id)
	r.free("texture", uint64(id))
}

// VertexAttrib implements gfx.Context.
func (r *Recorder) VertexAttrib(attr gfx.Attribute, offset int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("VertexAttrib", attr, offset)
	if int(attr) < len(r.attrs) {
		r.attrs[attr] = offset
	}
}

// DrawArrays implements gfx.Context.
func (r *Recorder) DrawArrays(mode gfx.Primitive, first, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DrawArrays", mode, first, count)
	if r.program == gfx.InvalidID {
		r.Record(gfx.ErrNoProgram)
	}
	r.draws = append(r.draws, Draw{
		Program:        r.program,
		Buffer:         r.buffer,
		Texture:        r.texture,
		PositionOffset: r.attrs[gfx.AttribPosition],
		TexCoordOffset: r.attrs[gfx.AttribTexCoord],
		Mode:           mode,
		First:          first,
		Count:          count,
	})
}

// Viewport implements gfx.Context.
func (r *Recorder) Viewport(x, y, width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Viewport", x, y, width, height)
	r.width, r.height = width, height
}

// Blend implements gfx.Context.
func (r *Recorder) Blend(mode gfx.BlendMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Blend", mode)
}

// Clear implements gfx.Context.
func (r *Recorder) Clear(c color.Color) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Clear", color.NRGBAModel.Convert(c))
}

// Present implements gfx.Context.
func (r *Recorder) Present() error {
	r.mu.Lock()
	r.record("Present")
	r.presents++
	sink := r.Sink
	w, h := max(r.width, 1), max(r.height, 1)
	r.mu.Unlock()

	if sink != nil {
		return sink.Present(image.NewRGBA(image.Rect(0, 0, w, h)))
	}
	return nil
}

// Err implements gfx.Context.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ErrState.Err()
}

// Destroy implements gfx.Context.
func (r *Recorder) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Destroy")
	r.destroyed = true
	clear(r.live)
}

// Calls returns a copy of every recorded call.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Ops returns the recorded operation names in order.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]string, len(r.calls))
	for i, c := range r.calls {
		ops[i] = c.Op
	}
	return ops
}

// Draws returns a copy of every recorded draw.
func (r *Recorder) Draws() []Draw {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Draw(nil), r.draws...)
}

// Live returns the number of resources created and not yet deleted.
func (r *Recorder) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Presents returns how many frames were presented.
func (r *Recorder) Presents() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presents
}

// Destroyed reports whether Destroy was called.
func (r *Recorder) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// Reset forgets recorded calls and draws but keeps live resources.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.draws = nil
}
