// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package mux

import (
	"errors"
	"sync"

	"github.com/gogpu/overlay/codec"
)

// Container writes the multiplexed file. The coordinator calls Start once
// with both tracks, then WriteSample in per-track timestamp order, then
// Finalize once. Calls are serialized by the coordinator.
type Container interface {
	Start(tracks []TrackRegistration) error
	WriteSample(index int, s codec.Sample) error
	Finalize() error
}

// WrittenSample is a sample recorded by MemoryContainer.
type WrittenSample struct {
	Index  int
	Sample codec.Sample
}

// MemoryContainer keeps everything in memory. Useful for inspection and
// tests. The Fail fields inject errors.
type MemoryContainer struct {
	FailStart    error
	FailWrite    error
	FailFinalize error

	mu        sync.Mutex
	tracks    []TrackRegistration
	samples   []WrittenSample
	starts    int
	finalizes int
}

var _ Container = (*MemoryContainer)(nil)

// Start implements Container.
func (m *MemoryContainer) Start(tracks []TrackRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStart != nil {
		return m.FailStart
	}
	m.starts++
	m.tracks = append([]TrackRegistration(nil), tracks...)
	return nil
}

// WriteSample implements Container.
func (m *MemoryContainer) WriteSample(index int, s codec.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite != nil {
		return m.FailWrite
	}
	if m.starts == 0 {
		return errors.New("mux: memory container not started")
	}
	s.Payload = append([]byte(nil), s.Payload...)
	m.samples = append(m.samples, WrittenSample{Index: index, Sample: s})
	return nil
}

// Finalize implements Container.
func (m *MemoryContainer) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalizes++
	return m.FailFinalize
}

// Tracks returns the tracks passed to Start.
func (m *MemoryContainer) Tracks() []TrackRegistration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TrackRegistration(nil), m.tracks...)
}

// Samples returns every written sample in write order.
func (m *MemoryContainer) Samples() []WrittenSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WrittenSample(nil), m.samples...)
}

// Starts returns how many times Start succeeded.
func (m *MemoryContainer) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Finalizes returns how many times Finalize was called.
func (m *MemoryContainer) Finalizes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalizes
}
