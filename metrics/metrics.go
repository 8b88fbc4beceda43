// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package metrics exports recording statistics as Prometheus collectors.
//
// A *Metrics observes the render surface, the muxer coordinator and the
// encode legs. All methods are safe on a nil receiver, which records
// nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/encode"
	"github.com/gogpu/overlay/mux"
	"github.com/gogpu/overlay/surface"
)

const namespace = "overlay"

// Metrics holds the collectors.
type Metrics struct {
	framesRendered prometheus.Counter
	framesDropped  prometheus.Counter
	composite      prometheus.Histogram
	samples        *prometheus.CounterVec
	sampleBytes    *prometheus.CounterVec
	recorded       *prometheus.GaugeVec
	pollTimeouts   *prometheus.CounterVec
	session        prometheus.Gauge
}

var (
	_ surface.Observer = (*Metrics)(nil)
	_ mux.Observer     = (*Metrics)(nil)
	_ encode.Observer  = (*Metrics)(nil)
)

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rendered_total",
			Help:      "Frames composited and presented to the video encoder.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames received while the render surface was not ready.",
		}),
		composite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_composite_seconds",
			Help:      "Time to composite and present one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_written_total",
			Help:      "Encoded samples written to the container.",
		}, []string{"track"}),
		sampleBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_bytes_written_total",
			Help:      "Encoded payload bytes written to the container.",
		}, []string{"track"}),
		recorded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recorded_seconds",
			Help:      "Presentation time of the last sample written, per track.",
		}, []string{"track"}),
		pollTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_poll_timeouts_total",
			Help:      "Encoder polls that returned no output.",
		}, []string{"track"}),
		session: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Muxer session state: 0 not started, 1 started, 2 stopped, 3 aborted.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.framesRendered,
			m.framesDropped,
			m.composite,
			m.samples,
			m.sampleBytes,
			m.recorded,
			m.pollTimeouts,
			m.session,
		)
	}
	return m
}

// FrameRendered implements surface.Observer.
func (m *Metrics) FrameRendered(d time.Duration) {
	if m == nil {
		return
	}
	m.framesRendered.Inc()
	m.composite.Observe(d.Seconds())
}

// FrameDropped implements surface.Observer.
func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

// SampleWritten implements mux.Observer.
func (m *Metrics) SampleWritten(kind codec.Kind, size int, pts time.Duration) {
	if m == nil {
		return
	}
	track := kind.String()
	m.samples.WithLabelValues(track).Inc()
	m.sampleBytes.WithLabelValues(track).Add(float64(size))
	m.recorded.WithLabelValues(track).Set(pts.Seconds())
}

// SessionState implements mux.Observer.
func (m *Metrics) SessionState(s mux.State) {
	if m == nil {
		return
	}
	m.session.Set(float64(s))
}

// PollTimeout implements encode.Observer.
func (m *Metrics) PollTimeout(kind codec.Kind) {
	if m == nil {
		return
	}
	m.pollTimeouts.WithLabelValues(kind.String()).Inc()
}
