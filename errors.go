// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package overlay

import (
	"errors"

	"github.com/gogpu/overlay/encode"
	"github.com/gogpu/overlay/mux"
	"github.com/gogpu/overlay/shader"
	"github.com/gogpu/overlay/texture"
)

// Errors reported by a recording. Package error types match them with
// errors.Is.
var (
	// ErrResourceDecode means the watermark image could not be decoded or
	// the text could not be rendered.
	ErrResourceDecode = texture.ErrDecode

	// ErrShaderCompile means the layer shader failed to compile.
	ErrShaderCompile = shader.ErrCompile

	// ErrEncoderSetup means an encoder rejected its configuration.
	ErrEncoderSetup = encode.ErrSetup

	// ErrNotStarted means a sample was written before both tracks were
	// registered.
	ErrNotStarted = mux.ErrNotStarted
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("overlay: invalid config")
