package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gogpu/overlay"
)

// NewRootCommand creates the overlayrec command tree.
func NewRootCommand() *cobra.Command {
	v := newViper()
	var configFile string

	cmd := &cobra.Command{
		Use:           "overlayrec",
		Short:         "Record watermarked video",
		Long:          `overlayrec composites an image and a text watermark onto every frame of a synthetic test pattern and records it, together with a sine tone, into a Matroska or MP4 file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return nil
			}
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config %s: %w", configFile, err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (yaml, json or toml)")
	cmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	bindFlag(v, "log_level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(NewRecordCommand(v))
	cmd.AddCommand(NewBackendsCommand())
	cmd.AddCommand(NewTextCommand(v))
	return cmd
}

// newViper returns a viper instance holding the recorder defaults, with
// OVERLAY_SECTION_KEY environment overrides.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, overlay.DefaultConfig())
	v.SetEnvPrefix("OVERLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, c overlay.Config) {
	v.SetDefault("surface.width", c.Surface.Width)
	v.SetDefault("surface.height", c.Surface.Height)
	v.SetDefault("surface.backend", c.Surface.Backend)
	v.SetDefault("surface.clear_color", c.Surface.ClearColor)

	v.SetDefault("video.frame_rate", c.Video.FrameRate)
	v.SetDefault("video.key_frame_interval", c.Video.KeyFrameInterval)
	v.SetDefault("video.bit_rate", c.Video.BitRate)
	v.SetDefault("video.rate_factor", c.Video.RateFactor)
	v.SetDefault("video.quality", c.Video.Quality)

	v.SetDefault("audio.sample_rate", c.Audio.SampleRate)
	v.SetDefault("audio.channels", c.Audio.Channels)
	v.SetDefault("audio.bit_depth", c.Audio.BitDepth)
	v.SetDefault("audio.bit_rate", c.Audio.BitRate)
	v.SetDefault("audio.max_input_size", c.Audio.MaxInputSize)

	v.SetDefault("watermark.image", c.Watermark.Image)
	v.SetDefault("watermark.text", c.Watermark.Text)
	v.SetDefault("watermark.size_px", c.Watermark.SizePx)
	v.SetDefault("watermark.foreground", c.Watermark.Foreground)
	v.SetDefault("watermark.background", c.Watermark.Background)
	v.SetDefault("watermark.padding", c.Watermark.Padding)
	v.SetDefault("watermark.line_spacing", c.Watermark.LineSpacing)
	v.SetDefault("watermark.shadow_color", c.Watermark.ShadowColor)
	v.SetDefault("watermark.shadow_dx", c.Watermark.ShadowDX)
	v.SetDefault("watermark.shadow_dy", c.Watermark.ShadowDY)
	v.SetDefault("watermark.font_file", c.Watermark.FontFile)
	v.SetDefault("watermark.fit_text", c.Watermark.FitText)
	v.SetDefault("watermark.max_image_size", c.Watermark.MaxImageSize)

	v.SetDefault("output.path", c.Output.Path)
	v.SetDefault("output.container", c.Output.Container)

	v.SetDefault("poll_timeout", c.PollTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds the command's flags to config keys. Commands bind when
// they run since several of them share keys.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		bindFlag(v, key, cmd.Flags().Lookup(name))
	}
}

// bindFlag binds a flag to a config key. The flag must exist.
func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if f == nil {
		panic("overlayrec: no flag for " + key)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

// loadConfig decodes v into a validated config and installs the logger.
func loadConfig(v *viper.Viper) (overlay.Config, error) {
	var cfg overlay.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	overlay.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	})))
	return cfg, nil
}
