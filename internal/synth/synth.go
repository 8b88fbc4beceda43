// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package synth generates a moving test pattern and a sine tone, used as
// stand-ins for a camera and a microphone.
package synth

import (
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	xdraw "golang.org/x/image/draw"
)

// bars are the SMPTE-style color bars.
var bars = []color.RGBA{
	{0xc0, 0xc0, 0xc0, 0xff},
	{0xc0, 0xc0, 0x00, 0xff},
	{0x00, 0xc0, 0xc0, 0xff},
	{0x00, 0xc0, 0x00, 0xff},
	{0xc0, 0x00, 0xc0, 0xff},
	{0xc0, 0x00, 0x00, 0xff},
	{0x00, 0x00, 0xc0, 0xff},
}

// Pattern draws color bars with a white block that moves one step per
// frame.
type Pattern struct {
	Width, Height int
	n             int
}

// Next returns a new frame.
func (p *Pattern) Next() *image.RGBA {
	w, h := max(p.Width, 1), max(p.Height, 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	barW := max(w/len(bars), 1)
	for i, c := range bars {
		r := image.Rect(i*barW, 0, (i+1)*barW, h)
		if i == len(bars)-1 {
			r.Max.X = w
		}
		xdraw.Draw(img, r, image.NewUniform(c), image.Point{}, xdraw.Src)
	}

	size := max(h/8, 1)
	x := (p.n * 4) % max(w-size, 1)
	block := image.Rect(x, h-2*size, x+size, h-size)
	xdraw.Draw(img, block, image.White, image.Point{}, xdraw.Src)
	p.n++
	return img
}

// Frames sends pattern frames at fps until ctx is done or count frames
// were sent (count <= 0 means no limit). The channel is closed at the end.
func Frames(ctx context.Context, clock clockwork.Clock, p *Pattern, fps, count int) <-chan *image.RGBA {
	out := make(chan *image.RGBA)
	go func() {
		defer close(out)
		ticker := clock.NewTicker(time.Second / time.Duration(max(fps, 1)))
		defer ticker.Stop()
		for sent := 0; count <= 0 || sent < count; sent++ {
			select {
			case out <- p.Next():
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.Chan():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Sine is a 16-bit little-endian sine tone with the same signal on every
// channel.
type Sine struct {
	Freq       float64
	Amplitude  float64
	SampleRate int
	Channels   int
	pos        int
}

// Read fills p with whole frames and returns the number of bytes written.
func (s *Sine) Read(p []byte) (int, error) {
	frame := 2 * max(s.Channels, 1)
	n := len(p) / frame * frame
	amp := s.Amplitude
	if amp <= 0 || amp > 1 {
		amp = 0.5
	}
	for off := 0; off < n; off += frame {
		t := float64(s.pos) / float64(max(s.SampleRate, 1))
		v := int16(amp * math.MaxInt16 * math.Sin(2*math.Pi*s.Freq*t))
		for ch := 0; ch < frame; ch += 2 {
			binary.LittleEndian.PutUint16(p[off+ch:], uint16(v))
		}
		s.pos++
	}
	return n, nil
}

// Audio sends chunk-long PCM buffers in real time until ctx is done. The
// channel is closed at the end.
func Audio(ctx context.Context, clock clockwork.Clock, s *Sine, chunk time.Duration) <-chan []byte {
	out := make(chan []byte)
	frames := int(chunk.Seconds() * float64(s.SampleRate))
	size := max(frames, 1) * 2 * max(s.Channels, 1)
	go func() {
		defer close(out)
		ticker := clock.NewTicker(chunk)
		defer ticker.Stop()
		for {
			buf := make([]byte, size)
			n, _ := s.Read(buf)
			select {
			case out <- buf[:n]:
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.Chan():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
