package encode

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/mux"
)

var (
	videoCfg = codec.VideoConfig{Width: 16, Height: 8, FrameRate: 30}
	audioCfg = codec.AudioConfig{SampleRate: 8000, Channels: 2, BitDepth: 16, MaxInputSize: 256}
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

type timeoutCounter struct {
	mu sync.Mutex
	n  map[codec.Kind]int
}

func (c *timeoutCounter) PollTimeout(kind codec.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = make(map[codec.Kind]int)
	}
	c.n[kind]++
}

func TestPairRecords(t *testing.T) {
	mem := &mux.MemoryContainer{}
	m := mux.NewCoordinator(mem)
	clock := clockwork.NewFakeClock()
	timeouts := &timeoutCounter{}

	video := NewVideoLeg(codec.NewMJPEG(videoCfg, nil), m, WithClock(clock), WithObserver(timeouts), WithPollTimeout(5*time.Millisecond))
	audio := NewAudioLeg(codec.NewPCM(audioCfg, nil), audioCfg, m, WithObserver(timeouts))
	pair := NewPair(video, audio, m)
	if err := pair.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pair.Run(ctx) }()

	frame := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for i := range 3 {
		if i > 0 {
			clock.Advance(ms(33))
		}
		if err := video.Present(frame); err != nil {
			t.Fatalf("Present: %v", err)
		}
	}
	// 10ms of audio, twice.
	pcm := make([]byte, 8000*4*10/1000)
	for range 2 {
		if _, err := audio.Write(pcm); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	// Let the legs register before stopping.
	select {
	case <-m.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not start")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if mem.Finalizes() != 1 {
		t.Errorf("finalizes = %d, want 1", mem.Finalizes())
	}
	if m.State() != mux.Stopped {
		t.Errorf("state = %v, want stopped", m.State())
	}

	var videoPTS, audioPTS []time.Duration
	tracks := mem.Tracks()
	for _, s := range mem.Samples() {
		switch tracks[s.Index].Kind {
		case codec.Video:
			videoPTS = append(videoPTS, s.Sample.PTS)
		case codec.Audio:
			audioPTS = append(audioPTS, s.Sample.PTS)
		}
	}
	if want := []time.Duration{0, ms(33), ms(66)}; !equalDurations(videoPTS, want) {
		t.Errorf("video pts = %v, want %v", videoPTS, want)
	}
	// 320-byte writes split into 256 + 64 byte samples.
	if want := []time.Duration{0, ms(8), ms(10), ms(18)}; !equalDurations(audioPTS, want) {
		t.Errorf("audio pts = %v, want %v", audioPTS, want)
	}
}

func equalDurations(a, b []time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSetupFailureAbortsSession(t *testing.T) {
	mem := &mux.MemoryContainer{}
	m := mux.NewCoordinator(mem)
	bad := audioCfg
	bad.BitDepth = 24

	video := NewVideoLeg(codec.NewMJPEG(videoCfg, nil), m)
	audio := NewAudioLeg(codec.NewPCM(bad, nil), bad, m)
	err := NewPair(video, audio, m).Setup()

	var se *SetupError
	if !errors.As(err, &se) || se.Kind != codec.Audio {
		t.Fatalf("err = %v, want audio SetupError", err)
	}
	if !errors.Is(err, ErrSetup) || !errors.Is(err, codec.ErrUnsupported) {
		t.Errorf("err = %v, want ErrSetup wrapping ErrUnsupported", err)
	}
	if m.State() != mux.Aborted {
		t.Errorf("state = %v, want aborted", m.State())
	}
	if err := video.Present(image.NewRGBA(image.Rect(0, 0, 1, 1))); !errors.Is(err, codec.ErrClosed) {
		t.Errorf("Present after failed setup err = %v, want ErrClosed", err)
	}
	if mem.Starts() != 0 || mem.Finalizes() != 0 {
		t.Error("container touched")
	}
}

// failingEncoder reports its format, then fails.
type failingEncoder struct {
	mu     sync.Mutex
	polls  int
	err    error
	closed bool
}

func (f *failingEncoder) Configure() error { return nil }

func (f *failingEncoder) Poll(time.Duration) (codec.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.polls == 1 {
		return codec.Output{Kind: codec.OutputFormat, Format: codec.Format{Kind: codec.Audio, Codec: codec.CodecLPCM}}, nil
	}
	return codec.Output{}, f.err
}

func (f *failingEncoder) SignalEndOfStream() {}

func (f *failingEncoder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *failingEncoder) EncodePCM([]byte, time.Duration) error { return nil }

func TestLegFailureStopsSibling(t *testing.T) {
	mem := &mux.MemoryContainer{}
	m := mux.NewCoordinator(mem)
	broken := &failingEncoder{err: errors.New("codec crashed")}

	video := NewVideoLeg(codec.NewMJPEG(videoCfg, nil), m)
	audio := NewAudioLeg(broken, audioCfg, m)
	pair := NewPair(video, audio, m)
	if err := pair.Setup(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- pair.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, broken.err) {
			t.Errorf("Run err = %v, want %v", err, broken.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sibling leg was not stopped")
	}
	if m.State() != mux.Aborted {
		t.Errorf("state = %v, want aborted", m.State())
	}
	if !errors.Is(m.Err(), broken.err) {
		t.Errorf("session err = %v, want %v", m.Err(), broken.err)
	}
	if !broken.closed {
		t.Error("failed encoder not closed")
	}
	if mem.Finalizes() > 1 {
		t.Errorf("finalizes = %d, want at most 1", mem.Finalizes())
	}
}

func TestStopBeforeSessionStarts(t *testing.T) {
	m := mux.NewCoordinator(&mux.MemoryContainer{})
	video := NewVideoLeg(codec.NewMJPEG(videoCfg, nil), m)
	if err := video.Setup(); err != nil {
		t.Fatal(err)
	}
	if err := video.Present(image.NewRGBA(image.Rect(0, 0, 16, 8))); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := video.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr := m.Track(codec.Video); !tr.Stopped || !tr.Registered() {
		t.Errorf("video track = %+v, want registered and stopped", tr)
	}
	if m.State() != mux.NotStarted {
		t.Errorf("state = %v, want not-started", m.State())
	}
	if video.dropped != 1 {
		t.Errorf("dropped = %d, want 1", video.dropped)
	}
}

func TestVideoStampMonotonic(t *testing.T) {
	clock := clockwork.NewFakeClock()
	v := NewVideoLeg(codec.NewMJPEG(videoCfg, nil), mux.NewCoordinator(&mux.MemoryContainer{}), WithClock(clock))
	got := []time.Duration{v.stamp(), v.stamp()}
	clock.Advance(ms(10))
	got = append(got, v.stamp())
	want := []time.Duration{0, time.Microsecond, ms(10)}
	if !equalDurations(got, want) {
		t.Errorf("stamps = %v, want %v", got, want)
	}
}

type pcmRecorder struct {
	failingEncoder
	calls []struct {
		n   int
		pts time.Duration
	}
}

func (p *pcmRecorder) EncodePCM(b []byte, pts time.Duration) error {
	p.calls = append(p.calls, struct {
		n   int
		pts time.Duration
	}{len(b), pts})
	return nil
}

func TestAudioWriteCarriesPartialFrames(t *testing.T) {
	rec := &pcmRecorder{}
	a := NewAudioLeg(rec, audioCfg, mux.NewCoordinator(&mux.MemoryContainer{}))
	for _, n := range []int{3, 5, 2, 2} {
		if got, err := a.Write(make([]byte, n)); got != n || err != nil {
			t.Fatalf("Write(%d) = %d, %v", n, got, err)
		}
	}
	// 3 -> carry 3; 5 -> 8 bytes; 2 -> carry 2; 2 -> 4 bytes.
	if len(rec.calls) != 2 || rec.calls[0].n != 8 || rec.calls[1].n != 4 {
		t.Fatalf("calls = %+v", rec.calls)
	}
	if rec.calls[1].pts != codec.PCMDuration(8, 8000, 2, 16) {
		t.Errorf("second pts = %v, want %v", rec.calls[1].pts, codec.PCMDuration(8, 8000, 2, 16))
	}
}

func TestAudioPump(t *testing.T) {
	rec := &pcmRecorder{}
	a := NewAudioLeg(rec, audioCfg, mux.NewCoordinator(&mux.MemoryContainer{}))
	src := make(chan []byte, 2)
	src <- make([]byte, 4)
	src <- make([]byte, 4)
	close(src)
	if err := a.Pump(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(rec.calls))
	}
}

func TestAudioPumpFlushesAfterCancel(t *testing.T) {
	rec := &pcmRecorder{}
	a := NewAudioLeg(rec, audioCfg, mux.NewCoordinator(&mux.MemoryContainer{}))
	src := make(chan []byte, 3)
	for range 3 {
		src <- make([]byte, 4096)
	}
	close(src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Pump(ctx, src); err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, c := range rec.calls {
		total += c.n
	}
	if total != 3*4096 {
		t.Errorf("bytes encoded = %d, want %d", total, 3*4096)
	}
}

// slowContainer delays every sample write so encoder output backs up.
type slowContainer struct {
	mux.MemoryContainer
	delay time.Duration
}

func (c *slowContainer) WriteSample(index int, s codec.Sample) error {
	time.Sleep(c.delay)
	return c.MemoryContainer.WriteSample(index, s)
}

func TestStopWithBackedUpEncoder(t *testing.T) {
	sc := &slowContainer{delay: 10 * time.Millisecond}
	m := mux.NewCoordinator(sc)
	video := NewVideoLeg(codec.NewMJPEG(videoCfg, nil), m)
	audio := NewAudioLeg(codec.NewPCM(audioCfg, nil), audioCfg, m)
	pair := NewPair(video, audio, m)
	if err := pair.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pair.Run(ctx) }()

	if _, err := audio.Write(make([]byte, 4)); err != nil {
		t.Fatal(err)
	}
	const frames = 60
	presented := make(chan int, 1)
	go func() {
		frame := image.NewRGBA(image.Rect(0, 0, 16, 8))
		n := 0
		for range frames {
			if err := video.Present(frame); err != nil {
				break
			}
			n++
		}
		presented <- n
	}()

	select {
	case <-m.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not start")
	}
	// Give the presenter time to fill both encoder queues.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if m.State() != mux.Stopped {
		t.Errorf("state = %v, want stopped", m.State())
	}
	if sc.Finalizes() != 1 {
		t.Errorf("finalizes = %d, want 1", sc.Finalizes())
	}

	n := <-presented
	videoSamples := 0
	tracks := sc.Tracks()
	for _, s := range sc.Samples() {
		if tracks[s.Index].Kind == codec.Video {
			videoSamples++
		}
	}
	if videoSamples != n {
		t.Errorf("video samples = %d, want %d presented", videoSamples, n)
	}
}
