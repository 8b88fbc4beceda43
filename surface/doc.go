// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface manages the render surface and drives the compositor.
//
// A Controller moves through four states:
//
//	Uninitialized -> Created   Create: context from the backend registry,
//	                           renderer resources allocated
//	Created/Sized -> Sized     Resize: viewport only
//	any           -> Destroyed Destroy: renderer resources and context released
//
// The controller never produces frames on its own. Each Tick composites one
// frame and presents it to the sink. Run executes the whole lifecycle on
// the calling goroutine, which becomes the only goroutine that touches the
// graphics context:
//
//	ctrl := surface.New(renderer, surface.WithSize(1280, 720))
//	go ctrl.Run(ctx, sink, frames, nil)
//	<-ctrl.Ready()
package surface
