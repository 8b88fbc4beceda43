// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package mux gates a two-track container writer between the audio and
// video encode legs.
//
// The Coordinator is the only state shared by the legs. Every method takes
// the same mutex, so the session starts exactly once, after both tracks
// registered, and the container is finalized exactly once, after both
// tracks stopped, whatever order the legs arrive in:
//
//	not-started --TryStart (both registered)--> started
//	started     --TryStop (both stopped)------> stopped (finalized)
//	any         --Abort-----------------------> aborted (finalized if started)
package mux

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/internal/logging"
)

func logger() *slog.Logger { return logging.L() }

// State is the session lifecycle state.
type State int

const (
	NotStarted State = iota
	Started
	Stopped
	Aborted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TrackRegistration is the per-track session state.
type TrackRegistration struct {
	Kind codec.Kind

	// Index is the container track index, -1 until registered.
	Index int

	Format  codec.Format
	Started bool
	Stopped bool
}

// Registered reports whether the track has an index.
func (t TrackRegistration) Registered() bool { return t.Index >= 0 }

// Observer is told about written samples and state changes. pts is the
// presentation time of the sample just written, so the last value per track
// is the recorded duration so far.
type Observer interface {
	SampleWritten(kind codec.Kind, size int, pts time.Duration)
	SessionState(s State)
}

// Coordinator is the muxer session. It is safe for concurrent use.
type Coordinator struct {
	// ID identifies the recording session in logs and file names.
	ID uuid.UUID

	container Container
	observer  Observer
	log       *slog.Logger

	mu      sync.Mutex
	state   State
	tracks  [2]TrackRegistration
	next    int
	lastPTS [2]time.Duration
	written [2]int
	err     error

	started chan struct{}
	done    chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver reports samples and state changes to o.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// WithID sets the session ID instead of a random one.
func WithID(id uuid.UUID) Option {
	return func(c *Coordinator) { c.ID = id }
}

// NewCoordinator returns a not-started session writing to container.
func NewCoordinator(container Container, opts ...Option) *Coordinator {
	c := &Coordinator{
		ID:        uuid.New(),
		container: container,
		started:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, k := range codec.Kinds() {
		c.tracks[k] = TrackRegistration{Kind: k, Index: -1}
	}
	c.log = logger().With("session", c.ID.String())
	return c
}

func (c *Coordinator) track(kind codec.Kind) (*TrackRegistration, error) {
	if int(kind) >= len(c.tracks) {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	return &c.tracks[kind], nil
}

func (c *Coordinator) setState(s State) {
	c.state = s
	if c.observer != nil {
		c.observer.SessionState(s)
	}
}

// RegisterTrack assigns the next container index to kind. Each kind
// registers once, before the session starts. The first index is 0.
func (c *Coordinator) RegisterTrack(kind codec.Kind, format codec.Format) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.track(kind)
	if err != nil {
		return -1, err
	}
	switch c.state {
	case Started:
		return -1, fmt.Errorf("%w: register %v", ErrAlreadyStarted, kind)
	case Stopped, Aborted:
		return -1, ErrStopped
	}
	if t.Registered() {
		return -1, fmt.Errorf("%w: %v", ErrAlreadyRegistered, kind)
	}
	t.Index = c.next
	t.Format = format
	c.next++
	c.log.Debug("mux: track registered", "kind", kind, "index", t.Index, "codec", format.Codec)
	return t.Index, nil
}

// TryStart starts the session when both tracks are registered and reports
// whether this call started it. Before that, and after the session has
// started, it does nothing. A container start failure aborts the session.
func (c *Coordinator) TryStart() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Started:
		return false, nil
	case Stopped, Aborted:
		return false, ErrStopped
	}
	for _, t := range c.tracks {
		if !t.Registered() {
			return false, nil
		}
	}

	if err := c.container.Start(c.ordered()); err != nil {
		err = fmt.Errorf("mux: start container: %w", err)
		c.abortLocked(err)
		return false, err
	}
	for i := range c.tracks {
		c.tracks[i].Started = true
	}
	c.setState(Started)
	close(c.started)
	c.log.Info("mux: session started")
	return true, nil
}

// ordered returns the tracks sorted by index.
func (c *Coordinator) ordered() []TrackRegistration {
	out := make([]TrackRegistration, len(c.tracks))
	for _, t := range c.tracks {
		out[t.Index] = t
	}
	return out
}

// WriteSample appends s to its track. Writing before the session started
// fails with a NotStartedError; per track, timestamps must not decrease.
// A payload-less end-of-stream marker is accepted and not written.
func (c *Coordinator) WriteSample(s codec.Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.track(s.Kind)
	if err != nil {
		return err
	}
	switch c.state {
	case NotStarted:
		return &NotStartedError{Kind: s.Kind}
	case Stopped, Aborted:
		return ErrStopped
	}
	if t.Stopped {
		return fmt.Errorf("%w: %v", ErrTrackStopped, s.Kind)
	}
	if s.EndOfStream && len(s.Payload) == 0 {
		return nil
	}
	if c.written[s.Kind] > 0 && s.PTS < c.lastPTS[s.Kind] {
		return &TimestampOrderError{Kind: s.Kind, Last: c.lastPTS[s.Kind], PTS: s.PTS}
	}

	if err := c.container.WriteSample(t.Index, s); err != nil {
		return fmt.Errorf("mux: write %v sample: %w", s.Kind, err)
	}
	c.lastPTS[s.Kind] = s.PTS
	c.written[s.Kind]++
	if c.observer != nil {
		c.observer.SampleWritten(s.Kind, len(s.Payload), s.PTS)
	}
	return nil
}

// TryStop marks kind's track stopped and reports whether this call
// finalized the container. The container is finalized once, by the call
// that stops the second track. If the session never started, stopping
// both tracks ends it without touching the container.
func (c *Coordinator) TryStop(kind codec.Kind) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.track(kind)
	if err != nil {
		return false, err
	}
	if c.state == Stopped || c.state == Aborted {
		return false, nil
	}
	t.Stopped = true
	c.log.Debug("mux: track stopped", "kind", kind, "samples", c.written[kind])
	for _, other := range c.tracks {
		if !other.Stopped {
			return false, nil
		}
	}

	if c.state == NotStarted {
		c.setState(Stopped)
		close(c.done)
		c.log.Info("mux: session ended before start")
		return false, nil
	}

	err = c.container.Finalize()
	if err != nil {
		err = fmt.Errorf("mux: finalize: %w", err)
		c.err = err
	}
	c.setState(Stopped)
	close(c.done)
	c.log.Info("mux: session finalized",
		"video_samples", c.written[codec.Video], "audio_samples", c.written[codec.Audio])
	return true, err
}

// Abort force-stops the session. A started container is finalized so the
// file stays readable; a session that never started is just closed. Abort
// after the session ended does nothing.
func (c *Coordinator) Abort(cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abortLocked(cause)
}

func (c *Coordinator) abortLocked(cause error) error {
	if c.state == Stopped || c.state == Aborted {
		return nil
	}
	var err error
	if c.state == Started {
		if err = c.container.Finalize(); err != nil {
			err = fmt.Errorf("mux: finalize: %w", err)
		}
	}
	for i := range c.tracks {
		c.tracks[i].Stopped = true
	}
	c.err = cause
	c.setState(Aborted)
	close(c.done)
	c.log.Warn("mux: session aborted", "cause", cause)
	return err
}

// State returns the session state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Track returns a copy of kind's registration.
func (c *Coordinator) Track(kind codec.Kind) TrackRegistration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, err := c.track(kind); err == nil {
		return *t
	}
	return TrackRegistration{Kind: kind, Index: -1}
}

// Err returns the abort cause or the finalize error, if any.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Started is closed when the session starts.
func (c *Coordinator) Started() <-chan struct{} { return c.started }

// Done is closed when the session stops or is aborted.
func (c *Coordinator) Done() <-chan struct{} { return c.done }
