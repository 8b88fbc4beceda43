// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package encode runs the audio and video encode legs.
//
// Each leg feeds its encoder from one side and polls it from another. The
// first output, the stream format, registers the track with the muxer
// coordinator and tries to start the session; samples wait for the session
// to start and are then written in order. When the leg's context is
// cancelled it signals end of stream, drains every remaining output and
// reports its track stopped.
package encode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/internal/logging"
	"github.com/gogpu/overlay/mux"
)

// DefaultPollTimeout bounds one wait for encoder output.
const DefaultPollTimeout = 10 * time.Millisecond

// Observer is told about polls that produced nothing.
type Observer interface {
	PollTimeout(kind codec.Kind)
}

// Option configures a leg.
type Option func(*legOptions)

type legOptions struct {
	timeout  time.Duration
	observer Observer
	clock    clockwork.Clock
}

// WithPollTimeout sets the encoder poll timeout.
func WithPollTimeout(d time.Duration) Option {
	return func(o *legOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithObserver reports poll timeouts to obs.
func WithObserver(obs Observer) Option {
	return func(o *legOptions) { o.observer = obs }
}

// WithClock sets the clock that stamps video frames.
func WithClock(c clockwork.Clock) Option {
	return func(o *legOptions) { o.clock = c }
}

func buildOptions(opts []Option) legOptions {
	o := legOptions{timeout: DefaultPollTimeout, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// errSessionEnded stops a leg whose session was stopped from elsewhere.
var errSessionEnded = errors.New("encode: session ended")

// leg is the poll loop shared by both legs.
type leg struct {
	kind codec.Kind
	enc  codec.Encoder
	mux  *mux.Coordinator
	opts legOptions
	log  *slog.Logger

	samples int
	dropped int
}

func newLeg(kind codec.Kind, enc codec.Encoder, m *mux.Coordinator, opts legOptions) leg {
	return leg{
		kind: kind,
		enc:  enc,
		mux:  m,
		opts: opts,
		log:  logging.L().With("leg", kind.String(), "session", m.ID.String()),
	}
}

func (l *leg) setup() error {
	if err := l.enc.Configure(); err != nil {
		return &SetupError{Kind: l.kind, Err: err}
	}
	l.log.Debug("encode: encoder configured")
	return nil
}

// run polls until end of stream. The encoder is closed on return.
func (l *leg) run(ctx context.Context) error {
	defer l.enc.Close()

	stop := ctx.Done()
	for {
		select {
		case <-stop:
			l.log.Debug("encode: stop requested, draining")
			l.enc.SignalEndOfStream()
			stop = nil
		default:
		}

		out, err := l.enc.Poll(l.opts.timeout)
		if err != nil {
			return fmt.Errorf("encode: %s poll: %w", l.kind, err)
		}

		switch out.Kind {
		case codec.OutputNone:
			if l.opts.observer != nil {
				l.opts.observer.PollTimeout(l.kind)
			}
		case codec.OutputFormat:
			err := l.register(out.Format)
			if errors.Is(err, mux.ErrStopped) {
				l.log.Info("encode: session ended before registration")
				return nil
			}
			if err != nil {
				return err
			}
		case codec.OutputSample:
			err := l.write(ctx, out.Sample)
			if errors.Is(err, errSessionEnded) {
				l.log.Info("encode: session ended elsewhere")
				return nil
			}
			if err != nil {
				return err
			}
		case codec.OutputEndOfStream:
			finalized, err := l.mux.TryStop(l.kind)
			l.log.Info("encode: end of stream",
				"samples", l.samples, "dropped", l.dropped, "finalized", finalized)
			return err
		}
	}
}

func (l *leg) register(f codec.Format) error {
	idx, err := l.mux.RegisterTrack(l.kind, f)
	if err != nil {
		return err
	}
	l.log.Info("encode: track registered", "index", idx, "codec", f.Codec)
	if _, err := l.mux.TryStart(); err != nil {
		return err
	}
	return nil
}

func (l *leg) write(ctx context.Context, s codec.Sample) error {
	if err := l.awaitStart(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Stopping before the other track arrived: the session never
			// starts, so there is nowhere to write.
			l.dropped++
			l.log.Warn("encode: sample dropped, session never started", "pts", s.PTS)
			return nil
		}
		return err
	}
	s.Kind = l.kind
	if err := l.mux.WriteSample(s); err != nil {
		if errors.Is(err, mux.ErrStopped) {
			return errSessionEnded
		}
		return err
	}
	l.samples++
	return nil
}

func (l *leg) awaitStart(ctx context.Context) error {
	select {
	case <-l.mux.Started():
		return nil
	default:
	}
	select {
	case <-l.mux.Started():
		return nil
	case <-l.mux.Done():
		return errSessionEnded
	case <-ctx.Done():
		return ctx.Err()
	}
}
