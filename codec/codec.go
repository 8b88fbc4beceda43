// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package codec defines the encoder contract used by the encode legs and
// provides two software encoders: MJPEG for video and LPCM for audio.
//
// An Encoder works like a hardware codec. After Configure it accepts input
// and produces output asynchronously; Poll waits a bounded time for the
// next Output. The first output is always the stream format, then samples,
// and after SignalEndOfStream a final end-of-stream output once every
// pending input has been encoded.
package codec

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// Kind is the media type of a track.
type Kind uint8

const (
	Video Kind = iota
	Audio
)

// Kinds lists every track kind.
func Kinds() []Kind { return []Kind{Video, Audio} }

func (k Kind) String() string {
	switch k {
	case Video:
		return "video"
	case Audio:
		return "audio"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Codec names.
const (
	CodecMJPEG = "mjpeg"
	CodecLPCM  = "lpcm"
)

// Format describes an encoded elementary stream.
type Format struct {
	Kind  Kind
	Codec string

	// Video.
	Width            int
	Height           int
	FrameRate        int
	KeyFrameInterval time.Duration

	// Audio.
	SampleRate int
	Channels   int
	BitDepth   int

	BitRate int
}

// BytesPerFrame returns the size of one PCM frame (one sample for every
// channel).
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitDepth / 8
}

// Sample is one encoded access unit.
type Sample struct {
	Kind        Kind
	Payload     []byte
	PTS         time.Duration
	KeyFrame    bool
	EndOfStream bool
}

// OutputKind tells what Poll produced.
type OutputKind uint8

const (
	// OutputNone means nothing was ready within the timeout.
	OutputNone OutputKind = iota
	// OutputFormat carries the stream format. It precedes every sample.
	OutputFormat
	// OutputSample carries an encoded sample.
	OutputSample
	// OutputEndOfStream follows the last sample.
	OutputEndOfStream
)

func (k OutputKind) String() string {
	switch k {
	case OutputNone:
		return "none"
	case OutputFormat:
		return "format"
	case OutputSample:
		return "sample"
	case OutputEndOfStream:
		return "end-of-stream"
	default:
		return fmt.Sprintf("OutputKind(%d)", uint8(k))
	}
}

// Output is the result of Poll.
type Output struct {
	Kind   OutputKind
	Format Format
	Sample Sample
}

// Encoder is the common encoder contract.
type Encoder interface {
	// Configure validates the settings and starts the encoder.
	Configure() error

	// Poll waits up to timeout for the next output. A timeout is not an
	// error; it returns an Output of kind OutputNone.
	Poll(timeout time.Duration) (Output, error)

	// SignalEndOfStream asks the encoder to finish. Pending input is still
	// encoded and then an OutputEndOfStream is produced.
	SignalEndOfStream()

	// Close stops the encoder and discards pending output.
	Close() error
}

// VideoEncoder consumes frames.
type VideoEncoder interface {
	Encoder
	EncodeFrame(frame *image.RGBA, pts time.Duration) error
}

// AudioEncoder consumes interleaved PCM.
type AudioEncoder interface {
	Encoder
	EncodePCM(p []byte, pts time.Duration) error
}

var (
	// ErrNotConfigured is returned for input before Configure.
	ErrNotConfigured = errors.New("codec: encoder not configured")

	// ErrEndOfStream is returned for input after SignalEndOfStream.
	ErrEndOfStream = errors.New("codec: input after end of stream")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("codec: encoder closed")

	// ErrUnsupported is returned by Configure for settings the encoder
	// cannot handle.
	ErrUnsupported = errors.New("codec: unsupported format")
)
