// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package mkv writes the session as a Matroska file with an MJPEG video
// track and a little-endian LPCM audio track.
package mkv

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"

	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/internal/logging"
	"github.com/gogpu/overlay/mux"
)

// Matroska codec IDs.
const (
	CodecIDMJPEG = "V_MJPEG"
	CodecIDLPCM  = "A_PCM/INT/LIT"
)

// Track types.
const (
	trackTypeVideo = 1
	trackTypeAudio = 2
)

// Writer is a mux.Container producing Matroska. Timestamps are written
// with the default millisecond timecode scale.
type Writer struct {
	w   io.WriteCloser
	log *slog.Logger

	mu      sync.Mutex
	blocks  []webm.BlockWriteCloser
	fatal   error
	started bool
	closed  bool
}

var _ mux.Container = (*Writer)(nil)

// New returns a Writer on w. w is closed by Finalize.
func New(w io.WriteCloser) *Writer {
	return &Writer{w: w, log: logging.L().With("container", "mkv")}
}

// Start implements mux.Container. It writes the header with one entry per
// track, numbered from the track index.
func (m *Writer) Start(tracks []mux.TrackRegistration) error {
	if m.started {
		return errors.New("mkv: already started")
	}
	entries := make([]webm.TrackEntry, 0, len(tracks))
	for _, t := range tracks {
		e, err := trackEntry(t)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}

	blocks, err := webm.NewSimpleBlockWriter(m.w, entries,
		mkvcore.WithOnFatalHandler(func(err error) {
			m.mu.Lock()
			m.fatal = err
			m.mu.Unlock()
			m.log.Error("mkv: fatal write error", "err", err)
		}))
	if err != nil {
		return fmt.Errorf("mkv: create writer: %w", err)
	}
	m.blocks = blocks
	m.started = true
	m.log.Debug("mkv: header written", "tracks", len(entries))
	return nil
}

func trackEntry(t mux.TrackRegistration) (webm.TrackEntry, error) {
	n := uint64(t.Index + 1)
	f := t.Format
	switch f.Codec {
	case codec.CodecMJPEG:
		e := webm.TrackEntry{
			Name:        "Video",
			TrackNumber: n,
			TrackUID:    n,
			CodecID:     CodecIDMJPEG,
			TrackType:   trackTypeVideo,
			Video: &webm.Video{
				PixelWidth:  uint64(f.Width),
				PixelHeight: uint64(f.Height),
			},
		}
		if f.FrameRate > 0 {
			e.DefaultDuration = uint64(time.Second / time.Duration(f.FrameRate))
		}
		return e, nil
	case codec.CodecLPCM:
		return webm.TrackEntry{
			Name:        "Audio",
			TrackNumber: n,
			TrackUID:    n,
			CodecID:     CodecIDLPCM,
			TrackType:   trackTypeAudio,
			Audio: &webm.Audio{
				SamplingFrequency: float64(f.SampleRate),
				Channels:          uint64(f.Channels),
			},
		}, nil
	default:
		return webm.TrackEntry{}, fmt.Errorf("mkv: unsupported codec %q on %v track", f.Codec, t.Kind)
	}
}

// WriteSample implements mux.Container.
func (m *Writer) WriteSample(index int, s codec.Sample) error {
	m.mu.Lock()
	fatal := m.fatal
	m.mu.Unlock()
	if fatal != nil {
		return fmt.Errorf("mkv: writer failed: %w", fatal)
	}
	if !m.started || m.closed {
		return errors.New("mkv: writer not open")
	}
	if index < 0 || index >= len(m.blocks) {
		return fmt.Errorf("mkv: no track %d", index)
	}
	if _, err := m.blocks[index].Write(s.KeyFrame, s.PTS.Milliseconds(), s.Payload); err != nil {
		return fmt.Errorf("mkv: write block: %w", err)
	}
	return nil
}

// Finalize implements mux.Container. Closing the last block writer
// flushes the final cluster and closes the underlying writer.
func (m *Writer) Finalize() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if !m.started {
		return m.w.Close()
	}
	var errs []error
	for _, b := range m.blocks {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
