// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package encode

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/gfx"
	"github.com/gogpu/overlay/mux"
)

// VideoLeg encodes presented frames. It is the sink of the render
// surface: Present stamps each frame with its arrival time relative to the
// first frame and queues it on the encoder.
type VideoLeg struct {
	leg
	enc codec.VideoEncoder

	mu    sync.Mutex
	first time.Time
	last  time.Duration
	count int
}

var _ gfx.Sink = (*VideoLeg)(nil)

// NewVideoLeg returns a leg feeding enc and writing to m.
func NewVideoLeg(enc codec.VideoEncoder, m *mux.Coordinator, opts ...Option) *VideoLeg {
	return &VideoLeg{
		leg: newLeg(codec.Video, enc, m, buildOptions(opts)),
		enc: enc,
	}
}

// Present implements gfx.Sink.
func (v *VideoLeg) Present(frame *image.RGBA) error {
	return v.enc.EncodeFrame(frame, v.stamp())
}

// stamp returns a strictly increasing timestamp for the next frame.
func (v *VideoLeg) stamp() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.opts.clock.Now()
	if v.count == 0 {
		v.first = now
		v.count++
		return 0
	}
	pts := now.Sub(v.first)
	if pts <= v.last {
		pts = v.last + time.Microsecond
	}
	v.last = pts
	v.count++
	return pts
}

// Setup configures the encoder.
func (v *VideoLeg) Setup() error { return v.setup() }

// Run polls the encoder until ctx is done and the stream is drained.
func (v *VideoLeg) Run(ctx context.Context) error { return v.run(ctx) }

// Kind returns codec.Video.
func (v *VideoLeg) Kind() codec.Kind { return codec.Video }

// Close stops the encoder without draining.
func (v *VideoLeg) Close() error { return v.enc.Close() }
