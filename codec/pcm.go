// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package codec

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// AudioConfig configures an audio encoder.
type AudioConfig struct {
	SampleRate int
	Channels   int
	BitDepth   int
	BitRate    int

	// MaxInputSize bounds the payload of one sample in bytes.
	MaxInputSize int
}

// PCM passes interleaved little-endian signed PCM through as LPCM samples
// of at most MaxInputSize bytes, cut on frame boundaries.
type PCM struct {
	worker
	cfg AudioConfig
}

var _ AudioEncoder = (*PCM)(nil)

// NewPCM returns an unconfigured PCM encoder. clock may be nil.
func NewPCM(cfg AudioConfig, clock clockwork.Clock) *PCM {
	e := &PCM{cfg: cfg}
	e.init(clock)
	return e
}

// Configure implements Encoder. Only 16-bit samples are supported.
func (e *PCM) Configure() error {
	c := e.cfg
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrUnsupported, c.SampleRate)
	case c.Channels < 1 || c.Channels > 8:
		return fmt.Errorf("%w: %d channels", ErrUnsupported, c.Channels)
	case c.BitDepth != 16:
		return fmt.Errorf("%w: %d-bit PCM", ErrUnsupported, c.BitDepth)
	}
	f := Format{
		Kind:       Audio,
		Codec:      CodecLPCM,
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		BitDepth:   c.BitDepth,
		BitRate:    c.BitRate,
	}
	if c.MaxInputSize < f.BytesPerFrame() {
		return fmt.Errorf("%w: max input size %d", ErrUnsupported, c.MaxInputSize)
	}
	return e.start(f, e.encodePCM)
}

// EncodePCM implements AudioEncoder. p must hold whole frames; it is copied
// before it is queued.
func (e *PCM) EncodePCM(p []byte, pts time.Duration) error {
	frame := e.cfg.Channels * e.cfg.BitDepth / 8
	if frame == 0 || len(p)%frame != 0 {
		return fmt.Errorf("codec: %d bytes is not a whole number of %d-byte frames", len(p), frame)
	}
	if len(p) == 0 {
		return nil
	}
	return e.submit(job{pcm: append([]byte(nil), p...), pts: pts})
}

func (e *PCM) encodePCM(j job) ([]Sample, error) {
	f := e.format
	frame := f.BytesPerFrame()
	chunk := e.cfg.MaxInputSize / frame * frame

	samples := make([]Sample, 0, (len(j.pcm)+chunk-1)/chunk)
	for off := 0; off < len(j.pcm); off += chunk {
		end := min(off+chunk, len(j.pcm))
		samples = append(samples, Sample{
			Kind:     Audio,
			Payload:  j.pcm[off:end],
			PTS:      j.pts + PCMDuration(off, f.SampleRate, f.Channels, f.BitDepth),
			KeyFrame: true,
		})
	}
	return samples, nil
}

// PCMDuration returns the play time of n bytes of PCM.
func PCMDuration(n, sampleRate, channels, bitDepth int) time.Duration {
	bytesPerSecond := int64(sampleRate) * int64(channels) * int64(bitDepth/8)
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(int64(n) * 1_000_000 / bytesPerSecond * int64(time.Microsecond))
}
