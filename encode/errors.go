// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package encode

import (
	"errors"
	"fmt"

	"github.com/gogpu/overlay/codec"
)

// ErrSetup is matched by SetupError.
var ErrSetup = errors.New("encode: encoder setup failed")

// SetupError reports a leg whose encoder could not be configured.
type SetupError struct {
	Kind codec.Kind
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("encode: %s encoder setup: %v", e.Kind, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSetup.
func (e *SetupError) Is(target error) bool { return target == ErrSetup }
