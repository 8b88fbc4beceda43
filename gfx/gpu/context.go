// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/overlay/gfx"
	"github.com/gogpu/overlay/internal/logging"
	"github.com/gogpu/overlay/shader"
)

const (
	targetFormat = gputypes.TextureFormatRGBA8Unorm

	// copyPitchAlignment is the WebGPU row alignment for texture copies.
	copyPitchAlignment = 256

	vertexStride = 8

	fenceTimeout = 5 * time.Second
)

// ErrNoDevice is returned when gfx.Options carries no usable HAL device.
var ErrNoDevice = errors.New("gpu: no HAL device provided")

func init() {
	gfx.Register(gfx.Backend{
		Name:     BackendName,
		Priority: 100,
		New: func(opts gfx.Options) (gfx.Context, error) {
			device, queue, err := halFrom(opts.Device)
			if err != nil {
				return nil, err
			}
			return New(device, queue, opts.Width, opts.Height, opts.Sink)
		},
		Accepts: func(opts gfx.Options) bool { return opts.Device != nil },
	})
}

// halFrom extracts the HAL device and queue from a host provider.
func halFrom(provider any) (hal.Device, hal.Queue, error) {
	hp, ok := provider.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok || provider == nil {
		return nil, nil, ErrNoDevice
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, ErrNoDevice
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, ErrNoDevice
	}
	return device, queue, nil
}

type program struct {
	module    hal.ShaderModule
	pipelines map[pipelineKey]hal.RenderPipeline
}

type pipelineKey struct {
	blend gfx.BlendMode
	mode  gfx.Primitive
}

type buffer struct {
	buf  hal.Buffer
	size int
}

type texture struct {
	tex     hal.Texture
	view    hal.TextureView
	bind    hal.BindGroup
	sampler gfx.Sampler
	width   uint32
	height  uint32
}

// Context is a HAL-backed gfx.Context.
type Context struct {
	gfx.ErrState

	device hal.Device
	queue  hal.Queue
	sink   gfx.Sink

	width, height uint32
	target        hal.Texture
	targetView    hal.TextureView

	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	samplers   map[gfx.Sampler]hal.Sampler

	next     uint64
	programs map[gfx.ProgramID]*program
	buffers  map[gfx.BufferID]*buffer
	textures map[gfx.TextureID]*texture

	program  gfx.ProgramID
	buffer   gfx.BufferID
	texture  gfx.TextureID
	attrs    [2]int
	blend    gfx.BlendMode
	viewport [4]float32

	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder

	destroyed bool
}

var _ gfx.Context = (*Context)(nil)

// New creates a context rendering width x height frames on device.
func New(device hal.Device, queue hal.Queue, width, height int, sink gfx.Sink) (*Context, error) {
	if device == nil || queue == nil {
		return nil, ErrNoDevice
	}
	c := &Context{
		device:   device,
		queue:    queue,
		sink:     sink,
		samplers: make(map[gfx.Sampler]hal.Sampler),
		programs: make(map[gfx.ProgramID]*program),
		buffers:  make(map[gfx.BufferID]*buffer),
		textures: make(map[gfx.TextureID]*texture),
	}

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "overlay_layer_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    shader.BindingTexture,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    shader.BindingSampler,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group layout: %w", err)
	}
	c.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "overlay_layer_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(bindLayout)
		return nil, fmt.Errorf("gpu: create pipeline layout: %w", err)
	}
	c.pipeLayout = pipeLayout

	if err := c.resizeTarget(uint32(max(width, 1)), uint32(max(height, 1))); err != nil { //nolint:gosec // clamped positive
		c.Destroy()
		return nil, err
	}

	logging.L().Debug("gpu: context created", "width", c.width, "height", c.height)
	return c, nil
}

func (c *Context) id() uint64 {
	c.next++
	return c.next
}

// resizeTarget (re)creates the render target.
func (c *Context) resizeTarget(w, h uint32) error {
	c.endFrame()
	c.destroyTarget()

	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "overlay_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        targetFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("gpu: create target texture: %w", err)
	}
	view, err := c.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "overlay_target_view",
		Format:        targetFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		c.device.DestroyTexture(tex)
		return fmt.Errorf("gpu: create target view: %w", err)
	}

	c.target, c.targetView = tex, view
	c.width, c.height = w, h
	c.viewport = [4]float32{0, 0, float32(w), float32(h)}
	return nil
}

func (c *Context) destroyTarget() {
	if c.targetView != nil {
		c.device.DestroyTextureView(c.targetView)
		c.targetView = nil
	}
	if c.target != nil {
		c.device.DestroyTexture(c.target)
		c.target = nil
	}
}

// CreateProgram implements gfx.Context.
func (c *Context) CreateProgram(p *shader.Program) (gfx.ProgramID, error) {
	if c.destroyed {
		return gfx.InvalidID, gfx.ErrDestroyed
	}
	if p == nil || len(p.SPIRV) == 0 {
		return gfx.InvalidID, fmt.Errorf("gpu: program %v is not compiled", p)
	}
	module, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.Name,
		Source: hal.ShaderSource{SPIRV: p.SPIRV},
	})
	if err != nil {
		return gfx.InvalidID, fmt.Errorf("gpu: create shader module %s: %w", p.Name, err)
	}
	id := gfx.ProgramID(c.id())
	c.programs[id] = &program{module: module, pipelines: make(map[pipelineKey]hal.RenderPipeline)}
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
	p, ok := c.programs[id]
	if !ok {
		c.Record(fmt.Errorf("%w: program %d", gfx.ErrUnknownResource, id))
		return
	}
	c.endFrame()
	for _, pl := range p.pipelines {
		c.device.DestroyRenderPipeline(pl)
	}
	c.device.DestroyShaderModule(p.module)
	delete(c.programs, id)
	if c.program == id {
		c.program = gfx.InvalidID
	}
}

// pipeline returns the render pipeline for the bound program and state.
func (c *Context) pipeline(p *program, mode gfx.Primitive) (hal.RenderPipeline, error) {
	key := pipelineKey{blend: c.blend, mode: mode}
	if pl, ok := p.pipelines[key]; ok {
		return pl, nil
	}

	topology := gputypes.PrimitiveTopologyTriangleStrip
	if mode == gfx.TriangleList {
		topology = gputypes.PrimitiveTopologyTriangleList
	}
	target := gputypes.ColorTargetState{
		Format:    targetFormat,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
	if c.blend == gfx.BlendAlpha {
		premulBlend := gputypes.BlendStatePremultiplied()
		target.Blend = &premulBlend
	}

	pl, err := c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "overlay_layer_pipeline",
		Layout: c.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.module,
			EntryPoint: shader.VertexEntry,
			Buffers:    layerVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.module,
			EntryPoint: shader.FragmentEntry,
			Targets:    []gputypes.ColorTargetState{target},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create render pipeline: %w", err)
	}
	p.pipelines[key] = pl
	return pl, nil
}

// layerVertexLayout binds positions and texture coordinates from two
// vertex buffer slots so each can start at its own region offset.
func layerVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: vertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: shader.LocationPosition},
			},
		},
		{
			ArrayStride: vertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: shader.LocationTexCoord},
			},
		},
	}
}

// CreateBuffer implements gfx.Context.
func (c *Context) CreateBuffer(data []byte) (gfx.BufferID, error) {
	if c.destroyed {
		return gfx.InvalidID, gfx.ErrDestroyed
	}
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "overlay_vertices",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gfx.InvalidID, fmt.Errorf("gpu: create vertex buffer: %w", err)
	}
	c.queue.WriteBuffer(buf, 0, data)

	id := gfx.BufferID(c.id())
	c.buffers[id] = &buffer{buf: buf, size: len(data)}
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
	b, ok := c.buffers[id]
	if !ok {
		c.Record(fmt.Errorf("%w: buffer %d", gfx.ErrUnknownResource, id))
		return
	}
	c.endFrame()
	c.device.DestroyBuffer(b.buf)
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
	t := &texture{sampler: s}
	if err := c.allocTexture(t, img); err != nil {
		return gfx.InvalidID, err
	}
	id := gfx.TextureID(c.id())
	c.textures[id] = t
	return id, nil
}

// allocTexture creates the texture, its view and bind group, then uploads img.
func (c *Context) allocTexture(t *texture, img *image.RGBA) error {
	b := img.Bounds()
	w, h := uint32(b.Dx()), uint32(b.Dy()) //nolint:gosec // image bounds are non-negative

	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "overlay_layer",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create texture: %w", err)
	}
	view, err := c.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "overlay_layer_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		c.device.DestroyTexture(tex)
		return fmt.Errorf("gpu: create texture view: %w", err)
	}
	sampler, err := c.sampler(t.sampler)
	if err != nil {
		c.device.DestroyTextureView(view)
		c.device.DestroyTexture(tex)
		return err
	}
	bind, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "overlay_layer_bind",
		Layout: c.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: shader.BindingTexture, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: shader.BindingSampler, Resource: gputypes.SamplerBinding{Sampler: sampler.NativeHandle()}},
		},
	})
	if err != nil {
		c.device.DestroyTextureView(view)
		c.device.DestroyTexture(tex)
		return fmt.Errorf("gpu: create bind group: %w", err)
	}

	t.tex, t.view, t.bind = tex, view, bind
	t.width, t.height = w, h
	c.upload(t, img)
	return nil
}

func (c *Context) releaseTexture(t *texture) {
	if t.bind != nil {
		c.device.DestroyBindGroup(t.bind)
	}
	if t.view != nil {
		c.device.DestroyTextureView(t.view)
	}
	if t.tex != nil {
		c.device.DestroyTexture(t.tex)
	}
	t.tex, t.view, t.bind = nil, nil, nil
}

func (c *Context) upload(t *texture, img *image.RGBA) {
	b := img.Bounds()
	pix := img.Pix
	if img.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		tight := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			copy(tight.Pix[y*tight.Stride:(y+1)*tight.Stride], img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		pix = tight.Pix
	}
	c.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		pix,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: t.width * 4, RowsPerImage: t.height},
		&hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)
}

// sampler returns a cached sampler for s.
func (c *Context) sampler(s gfx.Sampler) (hal.Sampler, error) {
	if smp, ok := c.samplers[s]; ok {
		return smp, nil
	}
	smp, err := c.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "overlay_sampler",
		AddressModeU: addressMode(s.WrapS),
		AddressModeV: addressMode(s.WrapT),
		AddressModeW: addressMode(s.WrapT),
		MagFilter:    filterMode(s.MagFilter),
		MinFilter:    filterMode(s.MinFilter),
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create sampler: %w", err)
	}
	c.samplers[s] = smp
	return smp, nil
}

func addressMode(m gfx.WrapMode) gputypes.AddressMode {
	if m == gfx.WrapClamp {
		return gputypes.AddressModeClampToEdge
	}
	return gputypes.AddressModeRepeat
}

func filterMode(m gfx.FilterMode) gputypes.FilterMode {
	if m == gfx.FilterNearest {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
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
	b := img.Bounds()
	if uint32(b.Dx()) == t.width && uint32(b.Dy()) == t.height { //nolint:gosec // non-negative
		c.upload(t, img)
		return
	}
	c.endFrame()
	c.releaseTexture(t)
	if err := c.allocTexture(t, img); err != nil {
		c.Record(err)
	}
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
	t, ok := c.textures[id]
	if !ok {
		c.Record(fmt.Errorf("%w: texture %d", gfx.ErrUnknownResource, id))
		return
	}
	c.endFrame()
	c.releaseTexture(t)
	delete(c.textures, id)
	if c.texture == id {
		c.texture = gfx.InvalidID
	}
}

// VertexAttrib implements gfx.Context.
func (c *Context) VertexAttrib(attr gfx.Attribute, offset int) {
	if int(attr) >= len(c.attrs) || offset < 0 {
		c.Record(fmt.Errorf("gpu: invalid attribute %v at %d", attr, offset))
		return
	}
	c.attrs[attr] = offset
}

// Viewport implements gfx.Context. A viewport at the origin also resizes
// the render target.
func (c *Context) Viewport(x, y, width, height int) {
	if width <= 0 || height <= 0 {
		c.Record(fmt.Errorf("gpu: invalid viewport %dx%d", width, height))
		return
	}
	w, h := uint32(width), uint32(height) //nolint:gosec // checked positive
	if x == 0 && y == 0 && (w != c.width || h != c.height) {
		if err := c.resizeTarget(w, h); err != nil {
			c.Record(err)
			return
		}
	}
	top := float32(c.height) - float32(y+height)
	c.viewport = [4]float32{float32(x), top, float32(width), float32(height)}
	if c.pass != nil {
		c.pass.SetViewport(c.viewport[0], c.viewport[1], c.viewport[2], c.viewport[3], 0, 1)
	}
}

// Blend implements gfx.Context.
func (c *Context) Blend(mode gfx.BlendMode) {
	c.blend = mode
}

// Clear implements gfx.Context. It starts a new render pass that clears the
// whole target.
func (c *Context) Clear(col color.Color) {
	r, g, b, a := col.RGBA()
	c.beginPass(gputypes.LoadOpClear, gputypes.Color{
		R: float64(r) / 0xffff,
		G: float64(g) / 0xffff,
		B: float64(b) / 0xffff,
		A: float64(a) / 0xffff,
	})
}

func (c *Context) beginPass(load gputypes.LoadOp, clearValue gputypes.Color) {
	if c.pass != nil {
		c.pass.End()
		c.pass = nil
	}
	if c.encoder == nil {
		encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "overlay_encoder"})
		if err != nil {
			c.Record(fmt.Errorf("gpu: create command encoder: %w", err))
			return
		}
		if err := encoder.BeginEncoding("overlay_frame"); err != nil {
			c.Record(fmt.Errorf("gpu: begin encoding: %w", err))
			return
		}
		c.encoder = encoder
	}
	c.pass = c.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "overlay_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       c.targetView,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clearValue,
		}},
	})
	c.pass.SetViewport(c.viewport[0], c.viewport[1], c.viewport[2], c.viewport[3], 0, 1)
}

// DrawArrays implements gfx.Context.
func (c *Context) DrawArrays(mode gfx.Primitive, first, count int) {
	p, ok := c.programs[c.program]
	if !ok {
		c.Record(gfx.ErrNoProgram)
		return
	}
	b, ok := c.buffers[c.buffer]
	if !ok {
		c.Record(gfx.ErrNoBuffer)
		return
	}
	t, ok := c.textures[c.texture]
	if !ok {
		c.Record(fmt.Errorf("%w: texture %d", gfx.ErrUnknownResource, c.texture))
		return
	}
	end := (first + count) * vertexStride
	for _, off := range c.attrs {
		if off+end > b.size {
			c.Record(fmt.Errorf("%w: offset %d + %d bytes > %d", gfx.ErrOutOfRange, off, end, b.size))
			return
		}
	}
	pl, err := c.pipeline(p, mode)
	if err != nil {
		c.Record(err)
		return
	}

	if c.pass == nil {
		c.beginPass(gputypes.LoadOpLoad, gputypes.Color{})
		if c.pass == nil {
			return
		}
	}
	c.pass.SetPipeline(pl)
	c.pass.SetBindGroup(0, t.bind, nil)
	posOffset := uint64(c.attrs[gfx.AttribPosition]) //nolint:gosec // offsets are validated non-negative
	texOffset := uint64(c.attrs[gfx.AttribTexCoord]) //nolint:gosec // offsets are validated non-negative
	c.pass.SetVertexBuffer(0, b.buf, posOffset)
	c.pass.SetVertexBuffer(1, b.buf, texOffset)
	c.pass.Draw(uint32(count), 1, uint32(first), 0) //nolint:gosec // vertex counts are small
}

// endFrame discards a frame in progress. Resource destruction must not
// happen while a pass references it.
func (c *Context) endFrame() {
	if c.pass != nil {
		c.pass.End()
		c.pass = nil
	}
	if c.encoder != nil {
		c.encoder.DiscardEncoding()
		c.encoder = nil
	}
}

// Present implements gfx.Context. It submits the frame, reads the target
// back and passes it to the sink.
func (c *Context) Present() error {
	if c.destroyed {
		return gfx.ErrDestroyed
	}
	if c.encoder == nil {
		c.beginPass(gputypes.LoadOpLoad, gputypes.Color{})
		if c.encoder == nil {
			return c.Err()
		}
	}
	if c.pass != nil {
		c.pass.End()
		c.pass = nil
	}
	encoder := c.encoder
	c.encoder = nil

	frame, err := c.readback(encoder)
	if err != nil {
		return err
	}
	if c.sink == nil {
		return nil
	}
	return c.sink.Present(frame)
}

func (c *Context) readback(encoder hal.CommandEncoder) (*image.RGBA, error) {
	w, h := c.width, c.height

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: c.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "overlay_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	defer c.device.DestroyBuffer(staging)

	encoder.CopyTextureToBuffer(c.target, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: c.target, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: c.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	fence, err := c.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpu: create fence: %w", err)
	}
	defer c.device.DestroyFence(fence)

	if err := c.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("gpu: submit: %w", err)
	}
	fenceOK, err := c.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return nil, fmt.Errorf("gpu: wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, stagingSize)
	if err := c.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("gpu: readback: %w", err)
	}

	frame := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	unpadRows(frame.Pix, readback, int(bytesPerRow), int(alignedBytesPerRow), int(h))
	return frame, nil
}

// unpadRows copies rows of rowBytes from a pitch-aligned buffer.
func unpadRows(dst, src []byte, rowBytes, pitch, rows int) {
	if rowBytes == pitch {
		copy(dst, src[:rowBytes*rows])
		return
	}
	for row := 0; row < rows; row++ {
		copy(dst[row*rowBytes:(row+1)*rowBytes], src[row*pitch:row*pitch+rowBytes])
	}
}

// Err implements gfx.Context.
func (c *Context) Err() error {
	return c.ErrState.Err()
}

// Destroy implements gfx.Context. Resources are released in reverse order
// of creation.
func (c *Context) Destroy() {
	if c.destroyed {
		return
	}
	c.endFrame()

	for id, t := range c.textures {
		c.releaseTexture(t)
		delete(c.textures, id)
	}
	for id, b := range c.buffers {
		c.device.DestroyBuffer(b.buf)
		delete(c.buffers, id)
	}
	for id, p := range c.programs {
		for _, pl := range p.pipelines {
			c.device.DestroyRenderPipeline(pl)
		}
		c.device.DestroyShaderModule(p.module)
		delete(c.programs, id)
	}
	for s, smp := range c.samplers {
		c.device.DestroySampler(smp)
		delete(c.samplers, s)
	}
	c.destroyTarget()
	if c.pipeLayout != nil {
		c.device.DestroyPipelineLayout(c.pipeLayout)
		c.pipeLayout = nil
	}
	if c.bindLayout != nil {
		c.device.DestroyBindGroupLayout(c.bindLayout)
		c.bindLayout = nil
	}
	c.destroyed = true
	logging.L().Debug("gpu: context destroyed")
}
