// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package mux

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/overlay/codec"
)

var (
	// ErrNotStarted is matched by NotStartedError.
	ErrNotStarted = errors.New("mux: session not started")

	// ErrTimestampOrder is matched by TimestampOrderError.
	ErrTimestampOrder = errors.New("mux: timestamp went backwards")

	// ErrStopped is returned for writes after the session stopped or was
	// aborted.
	ErrStopped = errors.New("mux: session stopped")

	// ErrTrackStopped is returned for writes to a track that reported stop.
	ErrTrackStopped = errors.New("mux: track stopped")

	// ErrAlreadyRegistered is returned when a kind registers twice.
	ErrAlreadyRegistered = errors.New("mux: track already registered")

	// ErrAlreadyStarted is returned when a track registers after start.
	ErrAlreadyStarted = errors.New("mux: session already started")

	// ErrUnknownKind is returned for a track kind other than audio or video.
	ErrUnknownKind = errors.New("mux: unknown track kind")
)

// NotStartedError reports a sample written before both tracks were
// registered and the session started.
type NotStartedError struct {
	Kind codec.Kind
}

func (e *NotStartedError) Error() string {
	return fmt.Sprintf("mux: %s sample written before the session started", e.Kind)
}

// Is reports whether target is ErrNotStarted.
func (e *NotStartedError) Is(target error) bool { return target == ErrNotStarted }

// TimestampOrderError reports a sample older than the previous one on the
// same track.
type TimestampOrderError struct {
	Kind codec.Kind
	Last time.Duration
	PTS  time.Duration
}

func (e *TimestampOrderError) Error() string {
	return fmt.Sprintf("mux: %s timestamp %v is before %v", e.Kind, e.PTS, e.Last)
}

// Is reports whether target is ErrTimestampOrder.
func (e *TimestampOrderError) Is(target error) bool { return target == ErrTimestampOrder }
