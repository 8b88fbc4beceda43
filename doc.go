// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package overlay records video with a watermark burned into every frame.
//
// # Overview
//
// Raw frames are composited on a graphics surface with two fixed overlay
// layers, a static image and rendered text, then encoded together with raw
// PCM audio and written to one Matroska or fragmented MP4 file.
//
// # Quick Start
//
//	import "github.com/gogpu/overlay"
//
//	cfg := overlay.DefaultConfig()
//	cfg.Output.Path = "out.mkv"
//
//	rec, err := overlay.NewRecorder(cfg)
//	if err != nil {
//	    return err
//	}
//	session, err := rec.RecordFile(ctx, frames, audio)
//
// # Architecture
//
// The recorder is assembled from:
//   - texture: watermark image decoding and text rasterization
//   - compositor: the three-layer Renderer (frame, image, text)
//   - surface: the render surface lifecycle and render goroutine
//   - codec, encode: the encoders and the two encode legs
//   - mux: the session coordinator and the mkv and fmp4 containers
//   - metrics: Prometheus collectors for all of the above
//
// Graphics run on the software backend unless a GPU device is passed with
// WithDevice, see package gfx.
//
// # Logging
//
// overlay is silent by default. Call SetLogger to enable structured logging
// through log/slog.
package overlay
