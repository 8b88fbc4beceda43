// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package assets is the built-in resource bundle: the default image
// watermark and the layer shader source.
package assets

import (
	"embed"
	"io/fs"

	"github.com/gogpu/overlay/shader"
)

// WatermarkImage is the bundle name of the default image watermark.
const WatermarkImage = "watermark.png"

//go:embed watermark.png
var images embed.FS

// FS returns the bundle. Image and shader names share one namespace.
func FS() fs.FS {
	return merged{images, shader.Bundle}
}

// merged resolves a name against each file system in turn.
type merged []fs.FS

func (m merged) Open(name string) (fs.File, error) {
	var firstErr error
	for _, fsys := range m {
		f, err := fsys.Open(name)
		if err == nil {
			return f, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
