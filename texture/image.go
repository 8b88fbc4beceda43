// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"bytes"
	"fmt"
	"image"
	"io/fs"

	// Registered image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	xdraw "golang.org/x/image/draw"
)

// DecodeImage decodes data into an RGBA image.
//
// When maxSize is positive and either dimension exceeds it, the image is
// scaled down to fit, preserving its aspect ratio.
func DecodeImage(ref string, data []byte, maxSize int) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, &ResourceDecodeError{Ref: ref, Err: fmt.Errorf("empty data")}
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ResourceDecodeError{Ref: ref, Err: err}
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, &ResourceDecodeError{Ref: ref, Err: ErrInvalidSize}
	}
	w, h := fitWithin(b.Dx(), b.Dy(), maxSize)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		xdraw.Draw(dst, dst.Rect, src, b.Min, xdraw.Src)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Rect, src, b, xdraw.Src, nil)
	}
	logger().Debug("texture: decoded image",
		"ref", ref, "format", format, "width", w, "height", h)
	return dst, nil
}

// LoadImage reads ref from fsys and decodes it.
func LoadImage(fsys fs.FS, ref string, maxSize int) (*image.RGBA, error) {
	data, err := fs.ReadFile(fsys, ref)
	if err != nil {
		return nil, &ResourceDecodeError{Ref: ref, Err: err}
	}
	return DecodeImage(ref, data, maxSize)
}

func fitWithin(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
