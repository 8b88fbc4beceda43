// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package encode

import (
	"context"
	"errors"
	"sync"

	"github.com/gogpu/overlay/codec"
	"github.com/gogpu/overlay/internal/logging"
	"github.com/gogpu/overlay/mux"
)

// Leg is one side of a Pair.
type Leg interface {
	Kind() codec.Kind
	Setup() error
	Run(ctx context.Context) error
	Close() error
}

var (
	_ Leg = (*VideoLeg)(nil)
	_ Leg = (*AudioLeg)(nil)
)

// Pair runs the video and audio legs against one coordinator. A leg that
// fails stops its sibling and aborts the session, so the session is never
// left half open.
type Pair struct {
	legs [2]Leg
	mux  *mux.Coordinator
}

// NewPair returns a pair of video and audio legs sharing m.
func NewPair(video, audio Leg, m *mux.Coordinator) *Pair {
	return &Pair{legs: [2]Leg{video, audio}, mux: m}
}

// Setup configures both encoders. If either fails, both are closed and the
// session is aborted; the returned error is a SetupError.
func (p *Pair) Setup() error {
	for _, l := range p.legs {
		if err := l.Setup(); err != nil {
			p.fail(err)
			return err
		}
	}
	return nil
}

func (p *Pair) fail(err error) {
	logging.L().Error("encode: leg failed", "err", err, "session", p.mux.ID.String())
	if aerr := p.mux.Abort(err); aerr != nil {
		logging.L().Warn("encode: abort", "err", aerr)
	}
	for _, l := range p.legs {
		if cerr := l.Close(); cerr != nil {
			logging.L().Warn("encode: close leg", "kind", l.Kind(), "err", cerr)
		}
	}
}

// Run runs both legs until ctx is done and both streams are drained, or a
// leg fails. It returns the first leg error.
func (p *Pair) Run(ctx context.Context) error {
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	ctxs := [2]context.Context{}
	cancels := [2]context.CancelFunc{}
	for i := range p.legs {
		ctxs[i], cancels[i] = context.WithCancel(ctx)
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	for i, l := range p.legs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Run(ctxs[i])
			if err == nil {
				return
			}
			once.Do(func() {
				firstErr = err
				if aerr := p.mux.Abort(err); aerr != nil {
					logging.L().Warn("encode: abort", "err", aerr)
				}
				logging.L().Error("encode: leg failed, stopping sibling",
					"kind", l.Kind(), "err", err, "session", p.mux.ID.String())
				cancels[1-i]()
			})
		}()
	}
	wg.Wait()
	return firstErr
}

// Close closes both encoders without draining.
func (p *Pair) Close() error {
	var errs []error
	for _, l := range p.legs {
		errs = append(errs, l.Close())
	}
	return errors.Join(errs...)
}
