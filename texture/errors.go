// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is matched by every ResourceDecodeError.
	ErrDecode = errors.New("texture: resource decode failed")

	// ErrEmptyText is returned when text renders to an empty buffer.
	ErrEmptyText = errors.New("texture: text renders to an empty image")

	// ErrInvalidSize is returned for a non-positive text size.
	ErrInvalidSize = errors.New("texture: text size must be positive")
)

// ResourceDecodeError reports an image that could not be decoded or text
// that could not be rasterized.
type ResourceDecodeError struct {
	// Ref is the resource name, or the text for rasterization failures.
	Ref string
	Err error
}

func (e *ResourceDecodeError) Error() string {
	return fmt.Sprintf("texture: decode %q: %v", e.Ref, e.Err)
}

func (e *ResourceDecodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDecode.
func (e *ResourceDecodeError) Is(target error) bool { return target == ErrDecode }
