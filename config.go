// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package overlay

import (
	"fmt"
	"image/color"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gogpu/overlay/assets"
	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/encode"
	"github.com/gogpu/overlay/texture"
)

// Container names accepted by OutputConfig.Container.
const (
	ContainerMKV = "mkv"
	ContainerMP4 = "mp4"
)

// Config is the complete recording configuration. The mapstructure tags
// let the CLI bind flags, environment and a config file into it.
type Config struct {
	Surface   SurfaceConfig   `mapstructure:"surface"`
	Video     VideoConfig     `mapstructure:"video"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Watermark WatermarkConfig `mapstructure:"watermark"`
	Output    OutputConfig    `mapstructure:"output"`

	// PollTimeout bounds one wait for encoder output.
	PollTimeout time.Duration `mapstructure:"poll_timeout"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"log_level"`
}

// SurfaceConfig describes the render surface.
type SurfaceConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`

	// Backend names a graphics backend. Empty picks the best available one.
	Backend string `mapstructure:"backend"`

	ClearColor string `mapstructure:"clear_color"`
}

// VideoConfig describes the video track.
type VideoConfig struct {
	FrameRate        int           `mapstructure:"frame_rate"`
	KeyFrameInterval time.Duration `mapstructure:"key_frame_interval"`

	// BitRate in bits per second. Zero derives it as
	// width * height * RateFactor.
	BitRate    int     `mapstructure:"bit_rate"`
	RateFactor float64 `mapstructure:"rate_factor"`

	// Quality overrides the JPEG quality derived from BitRate.
	Quality int `mapstructure:"quality"`
}

// AudioConfig describes the audio track.
type AudioConfig struct {
	SampleRate   int `mapstructure:"sample_rate"`
	Channels     int `mapstructure:"channels"`
	BitDepth     int `mapstructure:"bit_depth"`
	BitRate      int `mapstructure:"bit_rate"`
	MaxInputSize int `mapstructure:"max_input_size"`
}

// WatermarkConfig describes the image and text layers.
type WatermarkConfig struct {
	// Image is the watermark image in the resource bundle.
	Image string `mapstructure:"image"`

	Text        string  `mapstructure:"text"`
	SizePx      float64 `mapstructure:"size_px"`
	Foreground  string  `mapstructure:"foreground"`
	Background  string  `mapstructure:"background"`
	Padding     int     `mapstructure:"padding"`
	LineSpacing float64 `mapstructure:"line_spacing"`

	// ShadowColor enables a drop shadow offset by ShadowDX, ShadowDY.
	ShadowColor string `mapstructure:"shadow_color"`
	ShadowDX    int    `mapstructure:"shadow_dx"`
	ShadowDY    int    `mapstructure:"shadow_dy"`

	// FontFile is a TrueType or OpenType file on disk. Empty uses Go Regular.
	FontFile string `mapstructure:"font_file"`

	FitText      bool `mapstructure:"fit_text"`
	MaxImageSize int  `mapstructure:"max_image_size"`
}

// OutputConfig describes the output file.
type OutputConfig struct {
	Path string `mapstructure:"path"`

	// Container is mkv or mp4. Empty derives it from the Path extension.
	Container string `mapstructure:"container"`
}

// DefaultConfig returns the defaults of the recorder: a 1280x720 surface,
// 30 fps video with a one second key-frame interval, 44.1 kHz stereo 16-bit
// audio and a red "this is water" text watermark.
func DefaultConfig() Config {
	return Config{
		Surface: SurfaceConfig{
			Width:      1280,
			Height:     720,
			ClearColor: "#ffffff",
		},
		Video: VideoConfig{
			FrameRate:        30,
			KeyFrameInterval: time.Second,
			RateFactor:       1,
		},
		Audio: AudioConfig{
			SampleRate:   44100,
			Channels:     2,
			BitDepth:     16,
			BitRate:      96000,
			MaxInputSize: 8192,
		},
		Watermark: WatermarkConfig{
			Image:       assets.WatermarkImage,
			Text:        "this is water",
			SizePx:      36,
			Foreground:  "#ff0000",
			Background:  "#00000000",
			LineSpacing: 1,
		},
		Output: OutputConfig{
			Path: "overlay.mkv",
		},
		PollTimeout: encode.DefaultPollTimeout,
		LogLevel:    "info",
	}
}

// Validate normalizes c in place and reports the first invalid value.
// Errors match ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", ErrInvalidConfig, c.Surface.Width, c.Surface.Height)
	}
	if c.Video.FrameRate <= 0 {
		return fmt.Errorf("%w: frame rate %d", ErrInvalidConfig, c.Video.FrameRate)
	}
	if c.Video.KeyFrameInterval < 0 {
		return fmt.Errorf("%w: key frame interval %v", ErrInvalidConfig, c.Video.KeyFrameInterval)
	}
	if c.Video.RateFactor <= 0 {
		c.Video.RateFactor = 1
	}
	if c.Video.BitRate <= 0 {
		c.Video.BitRate = int(float64(c.Surface.Width*c.Surface.Height) * c.Video.RateFactor)
	}
	if c.Video.Quality < 0 || c.Video.Quality > 100 {
		return fmt.Errorf("%w: video quality %d", ErrInvalidConfig, c.Video.Quality)
	}
	if c.Audio.SampleRate <= 0 || c.Audio.Channels <= 0 || c.Audio.BitDepth <= 0 {
		return fmt.Errorf("%w: audio format %d Hz, %d channels, %d bit",
			ErrInvalidConfig, c.Audio.SampleRate, c.Audio.Channels, c.Audio.BitDepth)
	}
	if c.Audio.MaxInputSize <= 0 {
		return fmt.Errorf("%w: audio max input size %d", ErrInvalidConfig, c.Audio.MaxInputSize)
	}
	if c.Watermark.SizePx <= 0 {
		return fmt.Errorf("%w: text size %v", ErrInvalidConfig, c.Watermark.SizePx)
	}
	if c.Watermark.LineSpacing <= 0 {
		c.Watermark.LineSpacing = 1
	}
	if c.Watermark.Padding < 0 {
		return fmt.Errorf("%w: text padding %d", ErrInvalidConfig, c.Watermark.Padding)
	}
	for _, col := range []struct{ name, value string }{
		{"clear color", c.Surface.ClearColor},
		{"text foreground", c.Watermark.Foreground},
		{"text background", c.Watermark.Background},
		{"text shadow", c.Watermark.ShadowColor},
	} {
		if col.value == "" {
			continue
		}
		if _, err := texture.ParseColor(col.value); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, col.name, err)
		}
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = encode.DefaultPollTimeout
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	c.Output.Container = strings.ToLower(c.Output.Container)
	if c.Output.Container == "" {
		switch strings.ToLower(filepath.Ext(c.Output.Path)) {
		case ".mp4", ".m4v", ".mov":
			c.Output.Container = ContainerMP4
		default:
			c.Output.Container = ContainerMKV
		}
	}
	if c.Output.Container != ContainerMKV && c.Output.Container != ContainerMP4 {
		return fmt.Errorf("%w: container %q", ErrInvalidConfig, c.Output.Container)
	}
	return nil
}

// Level returns the configured log level, or info when it is invalid.
func (c Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

func (c Config) videoConfig() codec.VideoConfig {
	return codec.VideoConfig{
		Width:            c.Surface.Width,
		Height:           c.Surface.Height,
		FrameRate:        c.Video.FrameRate,
		KeyFrameInterval: c.Video.KeyFrameInterval,
		BitRate:          c.Video.BitRate,
		Quality:          c.Video.Quality,
	}
}

func (c Config) audioConfig() codec.AudioConfig {
	return codec.AudioConfig{
		SampleRate:   c.Audio.SampleRate,
		Channels:     c.Audio.Channels,
		BitDepth:     c.Audio.BitDepth,
		BitRate:      c.Audio.BitRate,
		MaxInputSize: c.Audio.MaxInputSize,
	}
}

// TextOptions returns the text layer options. font is the raw font file,
// nil for the built-in face. Colors must have passed Validate.
func (c Config) TextOptions(font []byte) texture.TextOptions {
	w := c.Watermark
	opts := texture.TextOptions{
		Text:        w.Text,
		SizePx:      w.SizePx,
		Foreground:  mustColor(w.Foreground, color.Black),
		Background:  mustColor(w.Background, color.Transparent),
		PaddingPx:   w.Padding,
		LineSpacing: w.LineSpacing,
		Font:        font,
	}
	if w.ShadowColor != "" {
		opts.Shadow = &texture.Shadow{
			DX:    w.ShadowDX,
			DY:    w.ShadowDY,
			Color: mustColor(w.ShadowColor, color.Black),
		}
	}
	return opts
}

func mustColor(s string, fallback color.Color) color.Color {
	if s == "" {
		return fallback
	}
	c, err := texture.ParseColor(s)
	if err != nil {
		return fallback
	}
	return c
}
