// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/overlay/internal/logging"
)

func logger() *slog.Logger { return logging.L() }

// VideoConfig configures a video encoder.
type VideoConfig struct {
	Width            int
	Height           int
	FrameRate        int
	KeyFrameInterval time.Duration
	BitRate          int

	// Quality is the JPEG quality, 1 to 100. Zero derives it from BitRate.
	Quality int
}

// MJPEG encodes every frame as a baseline JPEG. Frames of a different size
// are scaled to the configured size. Every sample is a key frame.
type MJPEG struct {
	worker
	cfg VideoConfig
}

var _ VideoEncoder = (*MJPEG)(nil)

// NewMJPEG returns an unconfigured MJPEG encoder. clock may be nil.
func NewMJPEG(cfg VideoConfig, clock clockwork.Clock) *MJPEG {
	e := &MJPEG{cfg: cfg}
	e.init(clock)
	return e
}

// Configure implements Encoder.
func (e *MJPEG) Configure() error {
	c := e.cfg
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: video size %dx%d", ErrUnsupported, c.Width, c.Height)
	case c.Width > 65535 || c.Height > 65535:
		return fmt.Errorf("%w: video size %dx%d exceeds JPEG limits", ErrUnsupported, c.Width, c.Height)
	case c.FrameRate <= 0:
		return fmt.Errorf("%w: frame rate %d", ErrUnsupported, c.FrameRate)
	case c.Quality < 0 || c.Quality > 100:
		return fmt.Errorf("%w: quality %d", ErrUnsupported, c.Quality)
	}
	if e.cfg.Quality == 0 {
		e.cfg.Quality = qualityFor(c.BitRate, c.Width, c.Height, c.FrameRate)
	}
	return e.start(Format{
		Kind:             Video,
		Codec:            CodecMJPEG,
		Width:            c.Width,
		Height:           c.Height,
		FrameRate:        c.FrameRate,
		KeyFrameInterval: c.KeyFrameInterval,
		BitRate:          c.BitRate,
	}, e.encodeFrame)
}

// qualityFor maps a bit budget to a JPEG quality. Around one bit per pixel
// per frame is already visually lossless for baseline JPEG.
func qualityFor(bitRate, w, h, fps int) int {
	if bitRate <= 0 {
		return jpeg.DefaultQuality
	}
	bpp := float64(bitRate) / float64(w*h*fps)
	q := int(40 + bpp*50)
	return min(max(q, 10), 95)
}

// EncodeFrame implements VideoEncoder. The frame is copied before it is
// queued.
func (e *MJPEG) EncodeFrame(frame *image.RGBA, pts time.Duration) error {
	if frame == nil || frame.Rect.Empty() {
		return fmt.Errorf("codec: empty frame")
	}
	dst := image.NewRGBA(image.Rect(0, 0, e.cfg.Width, e.cfg.Height))
	if frame.Rect.Size() == dst.Rect.Size() {
		xdraw.Draw(dst, dst.Rect, frame, frame.Rect.Min, xdraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(dst, dst.Rect, frame, frame.Rect, xdraw.Src, nil)
	}
	return e.submit(job{frame: dst, pts: pts})
}

func (e *MJPEG) encodeFrame(j job) ([]Sample, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, j.frame, &jpeg.Options{Quality: e.cfg.Quality}); err != nil {
		return nil, fmt.Errorf("codec: jpeg: %w", err)
	}
	return []Sample{{
		Kind:     Video,
		Payload:  buf.Bytes(),
		PTS:      j.pts,
		KeyFrame: true,
	}}, nil
}
