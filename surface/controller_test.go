package surface

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gogpu/overlay/assets"
	"github.com/gogpu/overlay/compositor"
	"github.com/gogpu/overlay/gfx"
	"github.com/gogpu/overlay/gfx/gfxtest"
	"github.com/gogpu/overlay/texture"
)

type fakeRenderer struct {
	mu        sync.Mutex
	calls     []string
	createErr error
	sizes     []Size
}

func (r *fakeRenderer) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *fakeRenderer) OnSurfaceCreated(gfx.Context) error {
	r.add("created")
	return r.createErr
}

func (r *fakeRenderer) OnSurfaceChanged(w, h int) {
	r.add("changed")
	r.mu.Lock()
	r.sizes = append(r.sizes, Size{w, h})
	r.mu.Unlock()
}

func (r *fakeRenderer) OnDrawFrame(*image.RGBA) { r.add("draw") }
func (r *fakeRenderer) Release()                { r.add("release") }

func (r *fakeRenderer) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type countingObserver struct {
	mu       sync.Mutex
	rendered []time.Duration
	dropped  int
}

func (o *countingObserver) FrameRendered(d time.Duration) {
	o.mu.Lock()
	o.rendered = append(o.rendered, d)
	o.mu.Unlock()
}

func (o *countingObserver) FrameDropped() {
	o.mu.Lock()
	o.dropped++
	o.mu.Unlock()
}

func recorderFactory(rec *gfxtest.Recorder) Factory {
	return func(opts gfx.Options) (gfx.Context, error) {
		rec.Sink = opts.Sink
		return rec, nil
	}
}

func TestLifecycle(t *testing.T) {
	rec := gfxtest.New()
	r := &fakeRenderer{}
	obs := &countingObserver{}
	c := New(r, WithFactory(recorderFactory(rec)), WithObserver(obs))

	if c.State() != Uninitialized {
		t.Fatalf("initial state = %v", c.State())
	}
	if ok, err := c.Tick(nil); ok || err != nil {
		t.Errorf("Tick before create = %v, %v, want false, nil", ok, err)
	}
	if err := c.Resize(10, 10); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Resize before create err = %v, want ErrInvalidState", err)
	}

	if err := c.Create(nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.State() != Created {
		t.Errorf("state = %v, want created", c.State())
	}
	if err := c.Create(nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Create err = %v, want ErrInvalidState", err)
	}

	if ok, err := c.Tick(nil); !ok || err != nil {
		t.Errorf("Tick after create = %v, %v, want true, nil", ok, err)
	}
	if err := c.Resize(640, 480); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := c.Resize(320, 240); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if c.State() != Sized {
		t.Errorf("state = %v, want sized", c.State())
	}
	if err := c.Resize(0, 240); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Resize(0, 240) err = %v, want ErrInvalidSize", err)
	}
	if _, err := c.Tick(nil); err != nil {
		t.Fatal(err)
	}

	c.Destroy()
	c.Destroy()
	if c.State() != Destroyed || !rec.Destroyed() {
		t.Errorf("state = %v destroyed = %v", c.State(), rec.Destroyed())
	}
	if ok, _ := c.Tick(nil); ok {
		t.Error("Tick after destroy presented a frame")
	}

	want := []string{"created", "draw", "changed", "changed", "draw", "release"}
	got := r.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, got[i], want[i])
		}
	}
	if rec.Presents() != 2 {
		t.Errorf("presents = %d, want 2", rec.Presents())
	}
	if len(obs.rendered) != 2 || obs.dropped != 2 {
		t.Errorf("observer rendered %d dropped %d, want 2 and 2", len(obs.rendered), obs.dropped)
	}
}

func TestCreateFailure(t *testing.T) {
	rec := gfxtest.New()
	r := &fakeRenderer{createErr: texture.ErrDecode}
	c := New(r, WithFactory(recorderFactory(rec)))
	if err := c.Create(nil); !errors.Is(err, texture.ErrDecode) {
		t.Fatalf("Create err = %v, want ErrDecode", err)
	}
	if c.State() != Uninitialized {
		t.Errorf("state = %v, want uninitialized", c.State())
	}
	if !rec.Destroyed() {
		t.Error("context not destroyed after failed create")
	}

	factoryErr := errors.New("no backend")
	c = New(r, WithFactory(func(gfx.Options) (gfx.Context, error) { return nil, factoryErr }))
	if err := c.Create(nil); !errors.Is(err, factoryErr) {
		t.Errorf("Create err = %v, want %v", err, factoryErr)
	}
}

func TestDestroyBeforeCreate(t *testing.T) {
	r := &fakeRenderer{}
	c := New(r)
	c.Destroy()
	if c.State() != Destroyed {
		t.Errorf("state = %v, want destroyed", c.State())
	}
	if err := c.Create(nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Create after destroy err = %v, want ErrInvalidState", err)
	}
	if len(r.Calls()) != 0 {
		t.Errorf("renderer calls = %v, want none", r.Calls())
	}
}

func TestPresentError(t *testing.T) {
	rec := gfxtest.New()
	sinkErr := errors.New("encoder closed")
	c := New(&fakeRenderer{}, WithFactory(recorderFactory(rec)))
	if err := c.Create(gfx.SinkFunc(func(*image.RGBA) error { return sinkErr })); err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Tick(nil); ok || !errors.Is(err, sinkErr) {
		t.Errorf("Tick = %v, %v, want false, %v", ok, err, sinkErr)
	}
}

func TestRun(t *testing.T) {
	rec := gfxtest.New()
	r := &fakeRenderer{}
	clock := clockwork.NewFakeClock()
	c := New(r, WithFactory(recorderFactory(rec)), WithSize(64, 32), WithClock(clock))

	var mu sync.Mutex
	presented := 0
	sink := gfx.SinkFunc(func(*image.RGBA) error {
		mu.Lock()
		presented++
		mu.Unlock()
		return nil
	})

	frames := make(chan *image.RGBA)
	sizes := make(chan Size)
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), sink, frames, sizes) }()

	select {
	case <-c.Ready():
	case err := <-done:
		t.Fatalf("Run: %v", err)
	}
	frame := image.NewRGBA(image.Rect(0, 0, 2, 2))
	frame.Set(0, 0, color.White)
	frames <- frame
	sizes <- Size{128, 64}
	frames <- frame
	close(frames)

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if presented != 2 {
		t.Errorf("presented = %d, want 2", presented)
	}
	if c.State() != Destroyed {
		t.Errorf("state = %v, want destroyed", c.State())
	}
	if len(r.sizes) != 2 || r.sizes[0] != (Size{64, 32}) || r.sizes[1] != (Size{128, 64}) {
		t.Errorf("sizes = %v", r.sizes)
	}
}

func TestRunCancel(t *testing.T) {
	rec := gfxtest.New()
	c := New(&fakeRenderer{}, WithFactory(recorderFactory(rec)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, nil, make(chan *image.RGBA), nil) }()
	<-c.Ready()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rec.Destroyed() {
		t.Error("context not destroyed")
	}
}

func TestRunCreateError(t *testing.T) {
	c := New(&fakeRenderer{createErr: errors.New("boom")}, WithFactory(recorderFactory(gfxtest.New())))
	if err := c.Run(context.Background(), nil, nil, nil); err == nil {
		t.Fatal("Run succeeded")
	}
	select {
	case <-c.Ready():
		t.Error("Ready closed after failed create")
	default:
	}
}

func TestRunWatermark(t *testing.T) {
	rec := gfxtest.New()
	w := compositor.New(compositor.Config{
		Resources: assets.FS(),
		ImageRef:  assets.WatermarkImage,
		Text:      texture.TextOptions{Text: "water", SizePx: 12},
	})
	c := New(w, WithFactory(recorderFactory(rec)))
	frames := make(chan *image.RGBA, 2)
	frames <- image.NewRGBA(image.Rect(0, 0, 4, 4))
	frames <- image.NewRGBA(image.Rect(0, 0, 4, 4))
	close(frames)
	if err := c.Run(context.Background(), nil, frames, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.Draws()) != 6 {
		t.Errorf("draws = %d, want 6", len(rec.Draws()))
	}
	if rec.Live() != 0 {
		t.Errorf("live = %d, want 0", rec.Live())
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		Uninitialized: "uninitialized",
		Created:       "created",
		Sized:         "sized",
		Destroyed:     "destroyed",
		State(9):      "State(9)",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int32(s), s.String(), want)
		}
	}
}
