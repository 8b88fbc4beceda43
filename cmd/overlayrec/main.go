// Command overlayrec records a watermarked test pattern with a sine tone.
//
// Usage:
//
//	overlayrec record --duration 10s --output clip.mkv
//	overlayrec backends
//	overlayrec text --text "hello" --output text.png
//
// Every setting can also come from a config file (--config) or from
// OVERLAY_* environment variables, e.g. OVERLAY_SURFACE_WIDTH=640.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
