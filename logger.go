// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package overlay

import (
	"log/slog"

	"github.com/gogpu/overlay/internal/logging"
)

// SetLogger configures the logger for overlay and all its sub-packages.
// By default, overlay produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by overlay:
//   - [slog.LevelDebug]: per-frame and per-sample diagnostics
//   - [slog.LevelInfo]: lifecycle events (surface created, session started, file finalized)
//   - [slog.LevelWarn]: non-fatal issues (backend fallback, resource release errors)
//   - [slog.LevelError]: encode leg failures
//
// Example:
//
//	// Enable info-level logging to stderr:
//	overlay.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	overlay.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by overlay.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.L()
}
