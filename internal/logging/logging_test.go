// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultIsSilent(t *testing.T) {
	if L().Enabled(context.Background(), slog.LevelError) {
		t.Error("default logger should not be enabled at any level")
	}
}

func TestSetAndRestore(t *testing.T) {
	var buf bytes.Buffer
	Set(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { Set(nil) })

	L().Info("surface created", "width", 640)
	if !strings.Contains(buf.String(), "surface created") {
		t.Errorf("log output = %q, want message", buf.String())
	}

	Set(nil)
	buf.Reset()
	L().Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("log output after Set(nil) = %q, want empty", buf.String())
	}
}
