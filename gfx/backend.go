// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gfx

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"github.com/gogpu/overlay/internal/logging"
)

// Factory creates a Context with the given options.
type Factory func(opts Options) (Context, error)

// Backend is a graphics implementation that can be selected by name or
// chosen automatically. Backends register themselves from init:
//
//	func init() {
//	    gfx.Register(gfx.Backend{Name: "software", Priority: 10, New: New})
//	}
type Backend struct {
	Name string

	// Priority orders automatic selection, highest first. Hardware
	// backends use 100, the software rasterizer 10.
	Priority int

	New Factory

	// Accepts reports whether New can serve opts, e.g. whether a host
	// device is present. Nil accepts any options.
	Accepts func(Options) bool
}

// Usable reports whether b can create a context for opts.
func (b Backend) Usable(opts Options) bool {
	return b.Accepts == nil || b.Accepts(opts)
}

// backendSet keeps backends in selection order.
type backendSet struct {
	mu   sync.RWMutex
	list []Backend
}

var backends backendSet

// Register adds b, replacing any backend with the same name.
func Register(b Backend) { backends.register(b) }

// Backends returns the registered backends in selection order.
func Backends() []Backend { return backends.all() }

// NewContext creates a context with the first backend, in priority order,
// that accepts opts and succeeds.
func NewContext(opts Options) (Context, error) { return backends.newContext(opts) }

// NewContextByName creates a context with the named backend.
func NewContextByName(name string, opts Options) (Context, error) {
	return backends.newContextByName(name, opts)
}

func (s *backendSet) register(b Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = slices.DeleteFunc(s.list, func(e Backend) bool { return e.Name == b.Name })
	s.list = append(s.list, b)
	slices.SortFunc(s.list, func(x, y Backend) int {
		if c := cmp.Compare(y.Priority, x.Priority); c != 0 {
			return c
		}
		return cmp.Compare(x.Name, y.Name)
	})
}

func (s *backendSet) all() []Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.list)
}

func (s *backendSet) lookup(name string) (Backend, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.list, func(b Backend) bool { return b.Name == name })
	if i < 0 {
		return Backend{}, false
	}
	return s.list[i], true
}

func (s *backendSet) newContext(opts Options) (Context, error) {
	var lastErr error
	for _, b := range s.all() {
		if !b.Usable(opts) {
			continue
		}
		ctx, err := b.New(opts)
		if err == nil {
			logging.L().Debug("gfx: context created", "backend", b.Name, "width", opts.Width, "height", opts.Height)
			return ctx, nil
		}
		logging.L().Warn("gfx: backend failed, trying next", "backend", b.Name, "error", err)
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoBackendAvailable
}

func (s *backendSet) newContextByName(name string, opts Options) (Context, error) {
	b, ok := s.lookup(name)
	if !ok {
		return nil, &BackendNotFoundError{Name: name}
	}
	if !b.Usable(opts) {
		return nil, &BackendUnavailableError{Name: name}
	}
	ctx, err := b.New(opts)
	if err != nil {
		return nil, err
	}
	logging.L().Debug("gfx: context created", "backend", name, "width", opts.Width, "height", opts.Height)
	return ctx, nil
}

// ErrNoBackendAvailable is returned when no registered backend accepts the
// options.
var ErrNoBackendAvailable = errors.New("gfx: no backend available")

// BackendNotFoundError indicates a named backend is not registered.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return "gfx: backend not found: " + e.Name
}

// BackendUnavailableError indicates a backend cannot serve the options it
// was asked for, such as a hardware backend without a device.
type BackendUnavailableError struct {
	Name string
}

func (e *BackendUnavailableError) Error() string {
	return "gfx: backend unavailable: " + e.Name
}
