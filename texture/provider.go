// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package texture decodes watermark images, rasterizes watermark text and
// uploads both as textures on a gfx.Context.
package texture

import (
	"io/fs"
	"log/slog"

	"github.com/gogpu/overlay/gfx"
	"github.com/gogpu/overlay/internal/logging"
)

func logger() *slog.Logger { return logging.L() }

// Texture is an uploaded texture and its size in pixels.
// The caller owns ID and deletes it on the context that created it.
type Texture struct {
	ID     gfx.TextureID
	Width  int
	Height int
}

// Provider creates watermark textures on one graphics context.
// It must be used from the goroutine that owns the context.
type Provider struct {
	ctx     gfx.Context
	fsys    fs.FS
	sampler gfx.Sampler
	maxSize int
}

// Option configures a Provider.
type Option func(*Provider)

// WithMaxImageSize scales down static images larger than n pixels on
// either side. Zero disables scaling.
func WithMaxImageSize(n int) Option {
	return func(p *Provider) { p.maxSize = n }
}

// WithSampler overrides the default repeat/linear sampler.
func WithSampler(s gfx.Sampler) Option {
	return func(p *Provider) { p.sampler = s }
}

// NewProvider returns a provider that reads resources from fsys and
// uploads to ctx.
func NewProvider(ctx gfx.Context, fsys fs.FS, opts ...Option) *Provider {
	p := &Provider{ctx: ctx, fsys: fsys, sampler: gfx.DefaultSampler}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LoadStaticImage decodes ref from the resource bundle and uploads it.
func (p *Provider) LoadStaticImage(ref string) (Texture, error) {
	img, err := LoadImage(p.fsys, ref, p.maxSize)
	if err != nil {
		return Texture{}, err
	}
	id, err := p.ctx.CreateTexture(img, p.sampler)
	if err != nil {
		return Texture{}, &ResourceDecodeError{Ref: ref, Err: err}
	}
	b := img.Bounds()
	logger().Debug("texture: static image uploaded", "ref", ref, "id", id)
	return Texture{ID: id, Width: b.Dx(), Height: b.Dy()}, nil
}

// RenderText rasterizes opts and uploads the result. The pixel buffer is
// not retained.
func (p *Provider) RenderText(opts TextOptions) (Texture, error) {
	img, err := RasterizeText(opts)
	if err != nil {
		return Texture{}, err
	}
	id, err := p.ctx.CreateTexture(img, p.sampler)
	if err != nil {
		return Texture{}, &ResourceDecodeError{Ref: opts.Text, Err: err}
	}
	b := img.Bounds()
	logger().Debug("texture: text uploaded",
		"text", opts.Text, "id", id, "width", b.Dx(), "height", b.Dy())
	return Texture{ID: id, Width: b.Dx(), Height: b.Dy()}, nil
}
