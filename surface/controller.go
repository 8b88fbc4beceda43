// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/jonboulle/clockwork"

	"github.com/gogpu/overlay/compositor"
	"github.com/gogpu/overlay/gfx"
	"github.com/gogpu/overlay/internal/logging"
)

func logger() *slog.Logger { return logging.L() }

// State is the controller lifecycle state.
type State int32

const (
	Uninitialized State = iota
	Created
	Sized
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Created:
		return "created"
	case Sized:
		return "sized"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Size is a surface dimension change.
type Size struct {
	Width, Height int
}

var (
	// ErrInvalidState is returned for a transition the current state does
	// not allow.
	ErrInvalidState = errors.New("surface: invalid state transition")

	// ErrInvalidSize is returned for non-positive dimensions.
	ErrInvalidSize = errors.New("surface: dimensions must be positive")
)

// Observer receives per-frame statistics.
type Observer interface {
	FrameRendered(d time.Duration)
	FrameDropped()
}

// Factory creates the graphics context for a new surface.
type Factory func(gfx.Options) (gfx.Context, error)

// Controller owns the render surface. Except for State and Ready, its
// methods must be called from a single goroutine.
type Controller struct {
	renderer compositor.Renderer
	factory  Factory
	device   gpucontext.DeviceProvider
	observer Observer
	clock    clockwork.Clock
	width    int
	height   int

	state     atomic.Int32
	ctx       gfx.Context
	ready     chan struct{}
	readyOnce sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

// WithSize sets the initial surface size. The default is 1280x720.
func WithSize(width, height int) Option {
	return func(c *Controller) { c.width, c.height = width, height }
}

// WithBackend selects a registered graphics backend by name instead of the
// best available one.
func WithBackend(name string) Option {
	return func(c *Controller) {
		if name == "" {
			return
		}
		c.factory = func(opts gfx.Options) (gfx.Context, error) {
			return gfx.NewContextByName(name, opts)
		}
	}
}

// WithFactory overrides how the graphics context is created.
func WithFactory(f Factory) Option {
	return func(c *Controller) { c.factory = f }
}

// WithDevice passes a host GPU device to hardware backends.
func WithDevice(d gpucontext.DeviceProvider) Option {
	return func(c *Controller) { c.device = d }
}

// WithObserver reports frame statistics to o.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithClock sets the clock used to time compositing.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// New returns an uninitialized controller for r.
func New(r compositor.Renderer, opts ...Option) *Controller {
	c := &Controller{
		renderer: r,
		factory:  gfx.NewContext,
		clock:    clockwork.NewRealClock(),
		width:    1280,
		height:   720,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state. Safe for concurrent use.
func (c *Controller) State() State { return State(c.state.Load()) }

// Ready is closed once the surface has been created and sized by Run.
func (c *Controller) Ready() <-chan struct{} { return c.ready }

func (c *Controller) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		logger().Debug("surface: state", "from", old, "to", s)
	}
}

// Create attaches the surface to sink. The renderer allocates its resources
// on the new context; if that fails the context is destroyed and the
// controller stays uninitialized.
func (c *Controller) Create(sink gfx.Sink) error {
	if st := c.State(); st != Uninitialized {
		return fmt.Errorf("%w: create in state %s", ErrInvalidState, st)
	}
	if c.width <= 0 || c.height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, c.width, c.height)
	}

	ctx, err := c.factory(gfx.Options{
		Width:  c.width,
		Height: c.height,
		Sink:   sink,
		Device: c.device,
	})
	if err != nil {
		return fmt.Errorf("surface: create context: %w", err)
	}
	if err := c.renderer.OnSurfaceCreated(ctx); err != nil {
		ctx.Destroy()
		return err
	}
	c.ctx = ctx
	c.setState(Created)
	logger().Info("surface: created", "width", c.width, "height", c.height)
	return nil
}

// Resize notifies the renderer of new dimensions.
func (c *Controller) Resize(width, height int) error {
	if st := c.State(); st != Created && st != Sized {
		return fmt.Errorf("%w: resize in state %s", ErrInvalidState, st)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	c.width, c.height = width, height
	c.renderer.OnSurfaceChanged(width, height)
	c.setState(Sized)
	return nil
}

// Tick composites frame and presents it. It reports whether a frame was
// presented; before Create and after Destroy it does nothing.
func (c *Controller) Tick(frame *image.RGBA) (bool, error) {
	if st := c.State(); st != Created && st != Sized {
		if c.observer != nil {
			c.observer.FrameDropped()
		}
		return false, nil
	}

	start := c.clock.Now()
	c.renderer.OnDrawFrame(frame)
	if err := c.ctx.Err(); err != nil {
		logger().Warn("surface: draw error", "err", err)
	}
	if err := c.ctx.Present(); err != nil {
		return false, fmt.Errorf("surface: present: %w", err)
	}
	if c.observer != nil {
		c.observer.FrameRendered(c.clock.Since(start))
	}
	return true, nil
}

// Destroy releases the renderer's resources and the context. Calling it
// again is a no-op.
func (c *Controller) Destroy() {
	if c.State() == Destroyed {
		return
	}
	if c.ctx != nil {
		if r, ok := c.renderer.(compositor.Releaser); ok {
			r.Release()
		}
		if err := c.ctx.Err(); err != nil {
			logger().Warn("surface: release error", "err", err)
		}
		c.ctx.Destroy()
		c.ctx = nil
	}
	c.setState(Destroyed)
	logger().Info("surface: destroyed")
}

// Run creates the surface on sink, then renders every frame received until
// frames is closed or ctx is done, and finally destroys the surface. Size
// changes from sizes are applied between frames; sizes may be nil.
func (c *Controller) Run(ctx context.Context, sink gfx.Sink, frames <-chan *image.RGBA, sizes <-chan Size) error {
	if err := c.Create(sink); err != nil {
		return err
	}
	defer c.Destroy()
	if err := c.Resize(c.width, c.height); err != nil {
		return err
	}
	c.readyOnce.Do(func() { close(c.ready) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-sizes:
			if !ok {
				sizes = nil
				continue
			}
			if err := c.Resize(s.Width, s.Height); err != nil {
				logger().Warn("surface: resize", "err", err)
			}
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if _, err := c.Tick(frame); err != nil {
				return err
			}
		}
	}
}
