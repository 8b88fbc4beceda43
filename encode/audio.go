// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package encode

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/mux"
)

// AudioLeg encodes interleaved PCM written to it. Timestamps follow the
// number of bytes written: pts = bytes * 1e6 / (rate * channels *
// bytesPerSample) microseconds.
type AudioLeg struct {
	leg
	enc codec.AudioEncoder
	cfg codec.AudioConfig

	mu      sync.Mutex
	written int
	carry   []byte
}

// NewAudioLeg returns a leg feeding enc, configured with cfg, and writing
// to m.
func NewAudioLeg(enc codec.AudioEncoder, cfg codec.AudioConfig, m *mux.Coordinator, opts ...Option) *AudioLeg {
	return &AudioLeg{
		leg: newLeg(codec.Audio, enc, m, buildOptions(opts)),
		enc: enc,
		cfg: cfg,
	}
}

// Write implements io.Writer. Bytes that do not complete a frame are kept
// for the next call.
func (a *AudioLeg) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame := a.cfg.Channels * a.cfg.BitDepth / 8
	if frame <= 0 {
		return 0, fmt.Errorf("encode: invalid audio format %+v", a.cfg)
	}
	buf := p
	if len(a.carry) > 0 {
		buf = append(a.carry, p...)
	}
	n := len(buf) / frame * frame
	if n > 0 {
		pts := codec.PCMDuration(a.written, a.cfg.SampleRate, a.cfg.Channels, a.cfg.BitDepth)
		if err := a.enc.EncodePCM(buf[:n], pts); err != nil {
			return 0, err
		}
		a.written += n
	}
	a.carry = append(a.carry[:0:0], buf[n:]...)
	return len(p), nil
}

// Pump writes every buffer from src until src is closed or ctx is done.
// Buffers already queued in src when ctx is done are still written.
func (a *AudioLeg) Pump(ctx context.Context, src <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return a.flush(src)
		case p, ok := <-src:
			if !ok {
				return nil
			}
			if _, err := a.Write(p); err != nil {
				return err
			}
		}
	}
}

// flush writes what src holds without waiting for more.
func (a *AudioLeg) flush(src <-chan []byte) error {
	for {
		select {
		case p, ok := <-src:
			if !ok {
				return nil
			}
			if _, err := a.Write(p); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// Setup configures the encoder.
func (a *AudioLeg) Setup() error { return a.setup() }

// Run polls the encoder until ctx is done and the stream is drained.
func (a *AudioLeg) Run(ctx context.Context) error { return a.run(ctx) }

// Kind returns codec.Audio.
func (a *AudioLeg) Kind() codec.Kind { return codec.Audio }

// Close stops the encoder without draining.
func (a *AudioLeg) Close() error { return a.enc.Close() }
