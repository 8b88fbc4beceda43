// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gpu implements gfx.Context on a WebGPU HAL device.
//
// The backend does not create a device. The host passes one through
// gfx.Options.Device as a provider exposing HalDevice() and HalQueue()
// (the same contract gogpu uses to share its device), so overlay rendering
// runs on the application's GPU. Without a device the backend does not
// accept the options and automatic selection picks the software backend.
//
// Each frame is recorded into one render pass that targets an RGBA8 texture.
// Present copies the target into a staging buffer, waits for the GPU and
// hands the pixels to the sink.
//
// Build with the nogpu tag to leave the backend out.
package gpu

// BackendName is the registry name of this backend.
const BackendName = "wgpu"
