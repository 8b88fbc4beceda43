// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package geometry

// FitText returns a layout whose text quad keeps the text texture at its
// native pixel size on a surface of surfaceW x surfaceH, anchored to the
// bottom-right corner. The quad is clamped to the lower-right quadrant so
// an oversized texture never covers the image watermark.
//
// Non-positive sizes return l unchanged.
func (l Layout) FitText(texW, texH, surfaceW, surfaceH int) Layout {
	if texW <= 0 || texH <= 0 || surfaceW <= 0 || surfaceH <= 0 {
		return l
	}

	w := 2 * float32(texW) / float32(surfaceW)
	h := 2 * float32(texH) / float32(surfaceH)
	w = min(w, 1)
	h = min(h, 1)

	l.Text = Rect(1-w, -1, 1, -1+h)
	return l
}
