package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/internal/synth"
	"github.com/gogpu/overlay/metrics"
)

// RecordOptions holds record command options that are not part of the
// recorder config.
type RecordOptions struct {
	Duration    time.Duration
	Tone        float64
	MetricsAddr string
}

// NewRecordCommand creates the record command.
func NewRecordCommand(v *viper.Viper) *cobra.Command {
	opts := &RecordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a watermarked test pattern",
		Long:  `Record renders a moving test pattern and a sine tone for the given duration, burns the image and text watermarks into every frame and writes both tracks to the output file.`,
		Example: `  overlayrec record --duration 5s --output clip.mkv
  overlayrec record --width 640 --height 360 --output clip.mp4 --metrics-addr :9100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, v, opts)
		},
	}

	flags := cmd.Flags()
	flags.DurationVarP(&opts.Duration, "duration", "d", 5*time.Second, "Recording length")
	flags.Float64Var(&opts.Tone, "tone", 440, "Sine tone frequency in Hz")
	flags.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while recording")

	flags.Int("width", 0, "Surface width")
	flags.Int("height", 0, "Surface height")
	flags.String("backend", "", "Graphics backend (see overlayrec backends)")
	flags.Int("fps", 0, "Video frame rate")
	flags.StringP("output", "o", "", "Output file")
	flags.String("container", "", "Container: mkv or mp4 (default from the output extension)")
	flags.String("text", "", "Text watermark")
	flags.Bool("fit-text", false, "Keep the text watermark at its pixel size")

	return cmd
}

var recordFlags = map[string]string{
	"surface.width":      "width",
	"surface.height":     "height",
	"surface.backend":    "backend",
	"video.frame_rate":   "fps",
	"output.path":        "output",
	"output.container":   "container",
	"watermark.text":     "text",
	"watermark.fit_text": "fit-text",
}

func runRecord(cmd *cobra.Command, v *viper.Viper, opts *RecordOptions) error {
	bindFlags(v, cmd, recordFlags)
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if opts.MetricsAddr != "" {
		stop := serveMetrics(opts.MetricsAddr, reg)
		defer stop()
	}

	rec, err := overlay.NewRecorder(cfg, overlay.WithMetrics(m))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Duration)
	defer cancel()
	clock := clockwork.NewRealClock()
	frames := synth.Frames(ctx, clock, &synth.Pattern{Width: cfg.Surface.Width, Height: cfg.Surface.Height}, cfg.Video.FrameRate, 0)
	audio := synth.Audio(ctx, clock, &synth.Sine{
		Freq:       opts.Tone,
		Amplitude:  0.5,
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
	}, 20*time.Millisecond)

	session, err := rec.RecordFile(ctx, frames, audio)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s (%s, session %s)\n",
		cfg.Output.Path, cfg.Output.Container, session.ID)
	return nil
}

// serveMetrics serves reg on addr until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			overlay.Logger().Warn("overlayrec: metrics server", "addr", addr, "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
