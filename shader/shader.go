// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shader loads and compiles the WGSL program used to draw the
// compositor layers.
//
// Sources come from an fs.FS resource bundle. Bundle holds the built-in
// sources; callers may supply their own bundle to override them.
package shader

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/gogpu/naga"
)

// Bundle is the built-in shader resource bundle.
//
//go:embed *.wgsl
var Bundle embed.FS

// WatermarkName is the bundle name of the layer program.
const WatermarkName = "watermark.wgsl"

// Entry points every layer program must define.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// Attribute locations used by the layer program.
const (
	LocationPosition = 0
	LocationTexCoord = 1
)

// Bind group slots used by the layer program.
const (
	BindingTexture = 0
	BindingSampler = 1
)

var (
	// ErrCompile is matched by every CompileError.
	ErrCompile = errors.New("shader: compile failed")

	// ErrEmptySource is returned when a program source is blank.
	ErrEmptySource = errors.New("shader: empty source")
)

// CompileError reports a program that could not be loaded or compiled.
type CompileError struct {
	Name string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader: %s: %v", e.Name, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCompile.
func (e *CompileError) Is(target error) bool { return target == ErrCompile }

// Program is a validated layer program.
type Program struct {
	// Name is the bundle name the program was loaded from.
	Name string

	// Source is the WGSL text.
	Source string

	// SPIRV holds the compiled little-endian words.
	SPIRV []uint32
}

// Compile validates WGSL source and compiles it to SPIR-V.
func Compile(name, source string) (*Program, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &CompileError{Name: name, Err: ErrEmptySource}
	}
	for _, entry := range []string{VertexEntry, FragmentEntry} {
		if !strings.Contains(source, "fn "+entry) {
			return nil, &CompileError{Name: name, Err: fmt.Errorf("missing entry point %s", entry)}
		}
	}

	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, &CompileError{Name: name, Err: err}
	}

	return &Program{
		Name:   name,
		Source: source,
		SPIRV:  toWords(spirvBytes),
	}, nil
}

// Load reads name from fsys and compiles it. A missing source is reported
// as a CompileError.
func Load(fsys fs.FS, name string) (*Program, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, &CompileError{Name: name, Err: err}
	}
	return Compile(name, string(data))
}

// Watermark compiles the built-in layer program.
func Watermark() (*Program, error) {
	return Load(Bundle, WatermarkName)
}

// toWords converts little-endian SPIR-V bytes to 32-bit words.
func toWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}
