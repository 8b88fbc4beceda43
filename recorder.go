// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package overlay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/gogpu/overlay/assets"
	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/compositor"
	"github.com/gogpu/overlay/encode"
	"github.com/gogpu/overlay/mux"
	"github.com/gogpu/overlay/mux/fmp4"
	"github.com/gogpu/overlay/mux/mkv"
	"github.com/gogpu/overlay/surface"
	"github.com/gogpu/overlay/texture"

	// Graphics backends register themselves.
	_ "github.com/gogpu/overlay/gfx/gpu"
	_ "github.com/gogpu/overlay/gfx/software"
)

// Session summarizes a finished recording.
type Session struct {
	ID    uuid.UUID
	State mux.State
	Video mux.TrackRegistration
	Audio mux.TrackRegistration
}

// Recorder composites raw frames with the watermark layers and records
// them, together with raw PCM audio, into one container file.
//
// A Recorder can run several recordings one after another; each gets its
// own session ID, surface and encoders.
type Recorder struct {
	cfg  Config
	opts options
	font []byte
	log  *slog.Logger
}

// NewRecorder validates cfg and returns a Recorder.
func NewRecorder(cfg Config, opts ...Option) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{
		resources: assets.FS(),
		clock:     clockwork.NewRealClock(),
		backend:   cfg.Surface.Backend,
	}
	for _, opt := range opts {
		opt(&o)
	}
	r := &Recorder{cfg: cfg, opts: o, log: o.logger}
	if r.log == nil {
		r.log = Logger()
	}
	if path := cfg.Watermark.FontFile; path != "" {
		font, err := os.ReadFile(path)
		if err != nil {
			return nil, &texture.ResourceDecodeError{Ref: path, Err: err}
		}
		r.font = font
	}
	return r, nil
}

// Config returns the validated configuration.
func (r *Recorder) Config() Config { return r.cfg }

// RecordFile creates Config.Output.Path and records into it.
func (r *Recorder) RecordFile(ctx context.Context, frames <-chan *image.RGBA, audio <-chan []byte) (Session, error) {
	f, err := os.Create(r.cfg.Output.Path)
	if err != nil {
		return Session{}, fmt.Errorf("overlay: create output: %w", err)
	}
	return r.Record(ctx, f, frames, audio)
}

// Record renders every frame from frames through the watermark compositor,
// encodes it with the audio from audio and writes both tracks to out. It
// returns once frames and audio are both closed, or ctx is done, and both
// tracks are drained, or when a stage fails. Audio already queued in audio
// when ctx is done is still recorded. out is always closed.
//
// Startup order: encoders are configured first, then the render surface is
// created; a failure in either aborts the session before any sample is
// written.
func (r *Recorder) Record(ctx context.Context, out io.WriteCloser, frames <-chan *image.RGBA, audio <-chan []byte) (Session, error) {
	id := uuid.New()
	log := r.log.With("session", id.String())

	var container mux.Container
	switch r.cfg.Output.Container {
	case ContainerMP4:
		container = fmp4.New(out)
	default:
		container = mkv.New(out)
	}
	muxOpts := []mux.Option{mux.WithID(id)}
	legOpts := []encode.Option{
		encode.WithPollTimeout(r.cfg.PollTimeout),
		encode.WithClock(r.opts.clock),
	}
	ctrlOpts := []surface.Option{
		surface.WithSize(r.cfg.Surface.Width, r.cfg.Surface.Height),
		surface.WithBackend(r.opts.backend),
		surface.WithDevice(r.opts.device),
		surface.WithClock(r.opts.clock),
	}
	if r.opts.factory != nil {
		ctrlOpts = append(ctrlOpts, surface.WithFactory(r.opts.factory))
	}
	if m := r.opts.metrics; m != nil {
		muxOpts = append(muxOpts, mux.WithObserver(m))
		legOpts = append(legOpts, encode.WithObserver(m))
		ctrlOpts = append(ctrlOpts, surface.WithObserver(m))
	}
	coord := mux.NewCoordinator(container, muxOpts...)

	audioCfg := r.cfg.audioConfig()
	video := encode.NewVideoLeg(codec.NewMJPEG(r.cfg.videoConfig(), r.opts.clock), coord, legOpts...)
	sound := encode.NewAudioLeg(codec.NewPCM(audioCfg, r.opts.clock), audioCfg, coord, legOpts...)
	pair := encode.NewPair(video, sound, coord)
	if err := pair.Setup(); err != nil {
		r.release(coord, container)
		return r.session(id, coord), err
	}

	wm := compositor.New(compositor.Config{
		Resources:    r.opts.resources,
		ImageRef:     r.cfg.Watermark.Image,
		Text:         r.cfg.TextOptions(r.font),
		ClearColor:   mustColor(r.cfg.Surface.ClearColor, nil),
		FitText:      r.cfg.Watermark.FitText,
		MaxImageSize: r.cfg.Watermark.MaxImageSize,
	})
	ctrl := surface.New(wm, ctrlOpts...)

	renderCtx, stopRender := context.WithCancel(ctx)
	defer stopRender()
	renderDone := make(chan error, 1)
	go func() { renderDone <- ctrl.Run(renderCtx, video, frames, nil) }()

	select {
	case <-ctrl.Ready():
	case err := <-renderDone:
		if err != nil {
			r.teardown(pair, coord, err)
			r.release(coord, container)
			return r.session(id, coord), err
		}
		// Run finished right after becoming ready.
		renderDone <- nil
	}
	log.Info("overlay: recording",
		"width", r.cfg.Surface.Width, "height", r.cfg.Surface.Height,
		"container", r.cfg.Output.Container)

	// The legs outlive ctx so they can drain after the last frame.
	legCtx, stopLegs := context.WithCancel(context.Background())
	defer stopLegs()
	pairDone := make(chan error, 1)
	go func() { pairDone <- pair.Run(legCtx) }()

	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	pumpDone := make(chan error, 1)
	go func() { pumpDone <- sound.Pump(pumpCtx, audio) }()

	// Video and audio end independently: each source is read until it is
	// closed or ctx is done. A failed stage stops the other one.
	var renderErr, pumpErr error
	renderWait, pumpWait := renderDone, pumpDone
	failed := coord.Done()
	for renderWait != nil || pumpWait != nil {
		select {
		case renderErr = <-renderWait:
			renderWait = nil
			if renderErr != nil {
				stopPump()
			}
		case pumpErr = <-pumpWait:
			pumpWait = nil
			if pumpErr != nil {
				stopRender()
			}
		case <-failed:
			// A leg failed and aborted the session.
			failed = nil
			stopRender()
			stopPump()
		}
	}

	// Both formats are queued at setup, so the session starts unless a leg
	// failed. Stopping earlier would drop the frames already presented.
	select {
	case <-coord.Started():
	case <-coord.Done():
	case err := <-pairDone:
		pairDone <- err
	}
	stopLegs()
	pairErr := <-pairDone

	if cerr := pair.Close(); cerr != nil {
		log.Warn("overlay: close encoders", "err", cerr)
	}
	if renderErr != nil || pumpErr != nil {
		if aerr := coord.Abort(errors.Join(renderErr, pumpErr)); aerr != nil {
			log.Warn("overlay: abort", "err", aerr)
		}
	}

	r.release(coord, container)

	s := r.session(id, coord)
	err := errors.Join(renderErr, pumpErr, pairErr)
	if err == nil {
		err = coord.Err()
	}
	if err != nil {
		log.Error("overlay: recording failed", "state", s.State, "err", err)
		return s, err
	}
	log.Info("overlay: recording finished", "state", s.State)
	return s, nil
}

// teardown releases the encoders and aborts the session after a startup
// failure.
func (r *Recorder) teardown(pair *encode.Pair, coord *mux.Coordinator, cause error) {
	if err := pair.Close(); err != nil {
		r.log.Warn("overlay: close encoders", "err", err)
	}
	if err := coord.Abort(cause); err != nil {
		r.log.Warn("overlay: abort", "err", err)
	}
}

// release finalizes a container the session never started, closing the
// output behind it.
func (r *Recorder) release(coord *mux.Coordinator, container mux.Container) {
	select {
	case <-coord.Started():
		return
	default:
	}
	if err := container.Finalize(); err != nil {
		r.log.Warn("overlay: close output", "err", err)
	}
}

func (r *Recorder) session(id uuid.UUID, coord *mux.Coordinator) Session {
	return Session{
		ID:    id,
		State: coord.State(),
		Video: coord.Track(codec.Video),
		Audio: coord.Track(codec.Audio),
	}
}
