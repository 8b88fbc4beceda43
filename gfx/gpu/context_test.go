// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package gpu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/overlay/gfx"
)

// fakeProvider is a host device handle whose HAL objects are not real.
type fakeProvider struct{ device, queue any }

func (fakeProvider) Device() gpucontext.Device   { return nil }
func (fakeProvider) Queue() gpucontext.Queue     { return nil }
func (fakeProvider) Adapter() gpucontext.Adapter { return nil }
func (fakeProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}
func (p fakeProvider) HalDevice() any { return p.device }
func (p fakeProvider) HalQueue() any  { return p.queue }

var _ gpucontext.DeviceProvider = fakeProvider{}

func TestHalFromRejectsMissingDevice(t *testing.T) {
	tests := []struct {
		name     string
		provider any
	}{
		{"nil", nil},
		{"wrong type", struct{}{}},
		{"nil device", fakeProvider{}},
		{"foreign device", fakeProvider{device: "dev", queue: "queue"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := halFrom(tt.provider); !errors.Is(err, ErrNoDevice) {
				t.Errorf("halFrom() error = %v, want ErrNoDevice", err)
			}
		})
	}
}

func TestBackendNeedsDevice(t *testing.T) {
	var unavailable *gfx.BackendUnavailableError
	if _, err := gfx.NewContextByName(BackendName, gfx.Options{Width: 4, Height: 4}); !errors.As(err, &unavailable) {
		t.Errorf("NewContextByName() error = %v, want BackendUnavailableError", err)
	}
	for _, b := range gfx.Backends() {
		if b.Name != BackendName {
			continue
		}
		if b.Usable(gfx.Options{}) {
			t.Error("Usable() without a device = true, want false")
		}
		if !b.Usable(gfx.Options{Device: fakeProvider{}}) {
			t.Error("Usable() with a device = false, want true")
		}
	}
	opts := gfx.Options{Width: 4, Height: 4, Device: fakeProvider{}}
	if _, err := gfx.NewContextByName(BackendName, opts); !errors.Is(err, ErrNoDevice) {
		t.Errorf("NewContextByName(fake) error = %v, want ErrNoDevice", err)
	}
}

func TestUnpadRows(t *testing.T) {
	src := []byte{
		1, 2, 3, 4, 0, 0, 0, 0,
		5, 6, 7, 8, 0, 0, 0, 0,
	}
	dst := make([]byte, 8)
	unpadRows(dst, src, 4, 8, 2)
	if want := []byte{1, 2, 3, 4, 5, 6, 7, 8}; !bytes.Equal(dst, want) {
		t.Errorf("unpadRows = %v, want %v", dst, want)
	}

	tight := make([]byte, 8)
	unpadRows(tight, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 4, 4, 2)
	if tight[7] != 8 {
		t.Errorf("unpadRows tight = %v", tight)
	}
}

func TestLayerVertexLayout(t *testing.T) {
	layout := layerVertexLayout()
	if len(layout) != 2 {
		t.Fatalf("len(layout) = %d, want 2", len(layout))
	}
	for i, l := range layout {
		if l.ArrayStride != vertexStride {
			t.Errorf("layout[%d].ArrayStride = %d, want %d", i, l.ArrayStride, vertexStride)
		}
		if len(l.Attributes) != 1 || l.Attributes[0].ShaderLocation != uint32(i) {
			t.Errorf("layout[%d] attributes = %+v", i, l.Attributes)
		}
	}
}
