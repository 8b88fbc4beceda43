// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package fmp4 writes the session as fragmented MP4: an init segment
// followed by one fragment per written sample.
package fmp4

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"

	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/internal/logging"
	"github.com/gogpu/overlay/mux"
)

// videoTimeScale is the MP4 clock for video tracks.
const videoTimeScale = 90000

type track struct {
	id        int
	timeScale uint32
	// defaultDuration is used for the last video sample.
	defaultDuration uint32
	// frameSize is the LPCM frame size; zero for video.
	frameSize int
	pending         *fmp4.Sample
	pendingDTS      int64
	baseTime        uint64
	started         bool
}

// Writer is a mux.Container producing fragmented MP4. A sample's duration
// is only known once the next sample on the same track arrives, so each
// track holds one sample back; Finalize flushes them.
type Writer struct {
	w      io.WriteCloser
	log    *slog.Logger
	tracks []*track
	seq    uint32
	closed bool
}

var _ mux.Container = (*Writer)(nil)

// New returns a Writer on w. w is closed by Finalize.
func New(w io.WriteCloser) *Writer {
	return &Writer{w: w, log: logging.L().With("container", "fmp4"), seq: 1}
}

func toTimeScale(d time.Duration, scale uint32) int64 {
	if d <= 0 {
		return 0
	}
	return d.Microseconds() * int64(scale) / 1_000_000
}

// Start implements mux.Container. It writes the init segment.
func (f *Writer) Start(tracks []mux.TrackRegistration) error {
	if f.tracks != nil {
		return errors.New("fmp4: already started")
	}
	init := &fmp4.Init{}
	ts := make([]*track, len(tracks))
	for _, t := range tracks {
		if t.Index < 0 || t.Index >= len(tracks) {
			return fmt.Errorf("fmp4: track index %d out of range", t.Index)
		}
		c, scale, dur, err := codecFor(t.Format)
		if err != nil {
			return err
		}
		tr := &track{id: t.Index + 1, timeScale: scale, defaultDuration: dur}
		if t.Format.Codec == codec.CodecLPCM {
			tr.frameSize = t.Format.BytesPerFrame()
		}
		ts[t.Index] = tr
		init.Tracks = append(init.Tracks, &fmp4.InitTrack{
			ID:        tr.id,
			TimeScale: scale,
			Codec:     c,
		})
	}

	var buf seekablebuffer.Buffer
	if err := init.Marshal(&buf); err != nil {
		return fmt.Errorf("fmp4: marshal init: %w", err)
	}
	if _, err := f.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("fmp4: write init: %w", err)
	}
	f.tracks = ts
	f.log.Debug("fmp4: init segment written", "tracks", len(ts), "size", len(buf.Bytes()))
	return nil
}

func codecFor(f codec.Format) (mp4.Codec, uint32, uint32, error) {
	switch f.Codec {
	case codec.CodecMJPEG:
		dur := uint32(videoTimeScale / 30)
		if f.FrameRate > 0 {
			dur = uint32(videoTimeScale / f.FrameRate)
		}
		return &mp4.CodecMJPEG{Width: f.Width, Height: f.Height}, videoTimeScale, dur, nil
	case codec.CodecLPCM:
		if f.SampleRate <= 0 || f.BytesPerFrame() <= 0 {
			return nil, 0, 0, fmt.Errorf("fmp4: invalid LPCM format %+v", f)
		}
		return &mp4.CodecLPCM{
			LittleEndian: true,
			BitDepth:     f.BitDepth,
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
		}, uint32(f.SampleRate), 0, nil
	default:
		return nil, 0, 0, fmt.Errorf("fmp4: unsupported codec %q", f.Codec)
	}
}

// WriteSample implements mux.Container.
func (f *Writer) WriteSample(index int, s codec.Sample) error {
	if f.closed || f.tracks == nil {
		return errors.New("fmp4: writer not open")
	}
	if index < 0 || index >= len(f.tracks) {
		return fmt.Errorf("fmp4: no track %d", index)
	}
	tr := f.tracks[index]
	dts := toTimeScale(s.PTS, tr.timeScale)
	if !tr.started {
		tr.baseTime = uint64(dts)
		tr.started = true
	}

	if tr.pending != nil {
		if tr.frameSize == 0 {
			tr.pending.Duration = uint32(max(dts-tr.pendingDTS, 1))
		}
		if err := f.flush(tr); err != nil {
			return err
		}
	}

	tr.pending = &fmp4.Sample{
		IsNonSyncSample: !s.KeyFrame,
		Payload:         append([]byte(nil), s.Payload...),
	}
	if tr.frameSize > 0 {
		// One tick per PCM frame.
		tr.pending.Duration = uint32(len(s.Payload) / tr.frameSize)
	}
	tr.pendingDTS = dts
	return nil
}

func (f *Writer) flush(tr *track) error {
	part := &fmp4.Part{
		SequenceNumber: f.seq,
		Tracks: []*fmp4.PartTrack{{
			ID:       tr.id,
			BaseTime: tr.baseTime,
			Samples:  []*fmp4.Sample{tr.pending},
		}},
	}
	var buf seekablebuffer.Buffer
	if err := part.Marshal(&buf); err != nil {
		return fmt.Errorf("fmp4: marshal part: %w", err)
	}
	if _, err := f.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("fmp4: write part: %w", err)
	}
	f.seq++
	tr.baseTime += uint64(tr.pending.Duration)
	tr.pending = nil
	return nil
}

// Finalize implements mux.Container. It flushes the held-back samples and
// closes the underlying writer.
func (f *Writer) Finalize() error {
	if f.closed {
		return nil
	}
	f.closed = true
	var errs []error
	for _, tr := range f.tracks {
		if tr == nil || tr.pending == nil {
			continue
		}
		if tr.pending.Duration == 0 {
			tr.pending.Duration = max(tr.defaultDuration, 1)
		}
		if err := f.flush(tr); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.w.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
