// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package overlay

import (
	"io/fs"
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/jonboulle/clockwork"

	"github.com/gogpu/overlay/metrics"
	"github.com/gogpu/overlay/surface"
)

// Option configures a Recorder during creation.
//
// Example:
//
//	// Default software rendering into an MKV file
//	rec, err := overlay.NewRecorder(overlay.DefaultConfig())
//
//	// Render on a host GPU device and export metrics
//	rec, err := overlay.NewRecorder(cfg,
//	    overlay.WithDevice(provider),
//	    overlay.WithMetrics(metrics.New(prometheus.DefaultRegisterer)))
type Option func(*options)

// options holds optional configuration for Recorder creation.
type options struct {
	logger    *slog.Logger
	backend   string
	factory   surface.Factory
	resources fs.FS
	metrics   *metrics.Metrics
	clock     clockwork.Clock
	device    gpucontext.DeviceProvider
}

// WithLogger sets the logger for recorder lifecycle messages. Sub-packages
// keep logging through SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithBackend selects a graphics backend by name, overriding
// Config.Surface.Backend.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithGraphics overrides how the graphics context is created. It takes
// precedence over the backend name.
func WithGraphics(f surface.Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithResources replaces the built-in resource bundle. fsys must hold the
// watermark image and the layer shader.
func WithResources(fsys fs.FS) Option {
	return func(o *options) {
		o.resources = fsys
	}
}

// WithMetrics reports render, encode and session statistics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock sets the clock used for frame timestamps and timing.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithDevice renders on a host GPU device.
func WithDevice(d gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.device = d
	}
}
