// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	gtfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/bidi"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/overlay/internal/cache"
)

// Shadow draws a copy of the text behind it.
type Shadow struct {
	DX, DY int
	Color  color.Color
}

// TextOptions describe a text watermark.
type TextOptions struct {
	// Text is the watermark text. Newlines start additional lines.
	Text string

	// SizePx is the font size in pixels.
	SizePx float64

	// Foreground is the text color. Nil means black.
	Foreground color.Color

	// Background fills the whole texture. Nil means transparent.
	Background color.Color

	// PaddingPx is added on every side.
	PaddingPx int

	// LineSpacing scales the distance between lines. Zero means 1.
	LineSpacing float64

	// Shadow is optional.
	Shadow *Shadow

	// Font is TrueType or OpenType data. Nil selects Go Regular.
	Font []byte
}

// fontSet holds one font parsed for rasterization and for shaping.
type fontSet struct {
	raster *opentype.Font
	shape  *gtfont.Font
}

var defaultFonts struct {
	once sync.Once
	set  *fontSet
	err  error
}

func parseFonts(data []byte) (*fontSet, error) {
	raster, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := gtfont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse font for shaping: %w", err)
	}
	return &fontSet{raster: raster, shape: face.Font}, nil
}

// customFonts keeps recently used caller fonts parsed, keyed by content.
var customFonts = cache.New[[sha256.Size]byte, *fontSet](8)

func fontsFor(data []byte) (*fontSet, error) {
	if data != nil {
		return customFonts.GetOrCreate(sha256.Sum256(data), func() (*fontSet, error) {
			return parseFonts(data)
		})
	}
	defaultFonts.once.Do(func() {
		defaultFonts.set, defaultFonts.err = parseFonts(goregular.TTF)
	})
	return defaultFonts.set, defaultFonts.err
}

// RasterizeText renders opts into a new image.
//
// A single line produces an image of measured width + 2*PaddingPx by
// ascent + descent + 2*PaddingPx. Identical options always produce
// identical pixels.
func RasterizeText(opts TextOptions) (*image.RGBA, error) {
	if opts.SizePx <= 0 || math.IsNaN(opts.SizePx) {
		return nil, &ResourceDecodeError{Ref: opts.Text, Err: ErrInvalidSize}
	}
	fg, bg := opts.Foreground, opts.Background
	if fg == nil {
		fg = color.Black
	}
	if bg == nil {
		bg = color.Transparent
	}
	spacing := opts.LineSpacing
	if spacing <= 0 {
		spacing = 1
	}
	pad := max(opts.PaddingPx, 0)

	fonts, err := fontsFor(opts.Font)
	if err != nil {
		return nil, &ResourceDecodeError{Ref: opts.Text, Err: err}
	}
	face, err := opentype.NewFace(fonts.raster, &opentype.FaceOptions{
		Size:    opts.SizePx,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, &ResourceDecodeError{Ref: opts.Text, Err: err}
	}
	defer face.Close()

	metrics := face.Metrics()
	lineHeight := (metrics.Ascent + metrics.Descent).Ceil()
	step := int(math.Ceil(float64(lineHeight) * spacing))

	lines := strings.Split(opts.Text, "\n")
	visual := make([]string, len(lines))
	textWidth := 0
	for i, line := range lines {
		runs := bidiRuns(line)
		visual[i] = visualString(runs)
		shaped := shapedAdvance(fonts.shape, runs, opts.SizePx).Ceil()
		// Never narrower than the drawn advance, so glyphs are not clipped.
		drawn := font.MeasureString(face, visual[i]).Ceil()
		textWidth = max(textWidth, shaped, drawn)
	}

	width := textWidth + 2*pad
	height := lineHeight + (len(lines)-1)*step + 2*pad
	if width <= 0 || height <= 0 {
		return nil, &ResourceDecodeError{Ref: opts.Text, Err: ErrEmptyText}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(img, img.Rect, image.NewUniform(bg), image.Point{}, xdraw.Src)

	d := font.Drawer{Dst: img, Face: face}
	for i, s := range visual {
		baseline := fixed.Point26_6{
			X: fixed.I(pad),
			Y: fixed.I(pad+i*step) + metrics.Ascent,
		}
		if opts.Shadow != nil && opts.Shadow.Color != nil {
			d.Src = image.NewUniform(opts.Shadow.Color)
			d.Dot = baseline.Add(fixed.P(opts.Shadow.DX, opts.Shadow.DY))
			d.DrawString(s)
		}
		d.Src = image.NewUniform(fg)
		d.Dot = baseline
		d.DrawString(s)
	}
	return img, nil
}

// textRun is a directional run in visual order.
type textRun struct {
	text string
	rtl  bool
}

// bidiRuns splits s into directional runs in visual order.
func bidiRuns(s string) []textRun {
	if s == "" {
		return nil
	}
	p := bidi.Paragraph{}
	if _, err := p.SetString(s, bidi.DefaultDirection(bidi.Neutral)); err != nil {
		return []textRun{{text: s}}
	}
	ordering, err := p.Order()
	if err != nil || ordering.NumRuns() == 0 {
		return []textRun{{text: s}}
	}
	runs := make([]textRun, 0, ordering.NumRuns())
	for i := 0; i < ordering.NumRuns(); i++ {
		run := ordering.Run(i)
		runs = append(runs, textRun{text: run.String(), rtl: run.Direction() == bidi.RightToLeft})
	}
	return runs
}

// visualString concatenates runs for left-to-right drawing.
func visualString(runs []textRun) string {
	var b strings.Builder
	for _, r := range runs {
		if !r.rtl {
			b.WriteString(r.text)
			continue
		}
		runes := []rune(r.text)
		for i := len(runes) - 1; i >= 0; i-- {
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

// shapedAdvance returns the HarfBuzz advance of runs at size pixels.
func shapedAdvance(f *gtfont.Font, runs []textRun, size float64) fixed.Int26_6 {
	face := gtfont.NewFace(f)
	var shaper shaping.HarfbuzzShaper
	var total fixed.Int26_6
	for _, run := range runs {
		runes := []rune(run.text)
		if len(runes) == 0 {
			continue
		}
		dir := di.DirectionLTR
		if run.rtl {
			dir = di.DirectionRTL
		}
		out := shaper.Shape(shaping.Input{
			Text:      runes,
			RunStart:  0,
			RunEnd:    len(runes),
			Direction: dir,
			Face:      face,
			Size:      fixed.Int26_6(size * 64),
			Script:    scriptOf(runes),
			Language:  language.NewLanguage("en"),
		})
		adv := out.Advance
		if adv < 0 {
			adv = -adv
		}
		total += adv
	}
	return total
}

// scriptOf returns the script of the first non-space rune.
func scriptOf(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}
