// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package codec

import (
	"image"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// queueDepth bounds pending input and undelivered output.
const queueDepth = 8

type job struct {
	frame *image.RGBA
	pcm   []byte
	pts   time.Duration
}

type result struct {
	out Output
	err error
}

// worker runs an encode function on its own goroutine and hands results to
// Poll. It is embedded by the concrete encoders.
type worker struct {
	clock  clockwork.Clock
	format Format
	encode func(job) ([]Sample, error)

	mu         sync.Mutex
	configured bool
	eos        bool
	closed     bool

	jobs    chan job
	out     chan result
	done    chan struct{}
	eosCh   chan struct{}
	pending sync.WaitGroup // submits that passed the state check
	wg      sync.WaitGroup
}

func (w *worker) init(clock clockwork.Clock) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	w.clock = clock
	w.jobs = make(chan job, queueDepth)
	w.out = make(chan result, queueDepth)
	w.done = make(chan struct{})
	w.eosCh = make(chan struct{})
}

func (w *worker) start(f Format, encode func(job) ([]Sample, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.configured {
		return nil
	}
	w.format = f
	w.encode = encode
	w.configured = true
	w.wg.Add(1)
	go w.run()
	return nil
}

func (w *worker) run() {
	defer w.wg.Done()
	if !w.emit(result{out: Output{Kind: OutputFormat, Format: w.format}}) {
		return
	}
	for {
		var j job
		select {
		case j = <-w.jobs:
		case <-w.eosCh:
			// eosCh closes only after every accepted submit has queued its
			// job, so an empty queue here means the stream is complete.
			select {
			case j = <-w.jobs:
			default:
				w.emit(result{out: Output{Kind: OutputEndOfStream, Sample: Sample{Kind: w.format.Kind, EndOfStream: true}}})
				return
			}
		case <-w.done:
			return
		}
		samples, err := w.encode(j)
		if err != nil {
			if !w.emit(result{err: err}) {
				return
			}
			continue
		}
		for _, s := range samples {
			if !w.emit(result{out: Output{Kind: OutputSample, Sample: s}}) {
				return
			}
		}
	}
}

func (w *worker) emit(r result) bool {
	select {
	case w.out <- r:
		return true
	case <-w.done:
		return false
	}
}

func (w *worker) submit(j job) error {
	w.mu.Lock()
	switch {
	case w.closed:
		w.mu.Unlock()
		return ErrClosed
	case !w.configured:
		w.mu.Unlock()
		return ErrNotConfigured
	case w.eos:
		w.mu.Unlock()
		return ErrEndOfStream
	}
	w.pending.Add(1)
	w.mu.Unlock()
	defer w.pending.Done()

	select {
	case w.jobs <- j:
		return nil
	case <-w.done:
		return ErrClosed
	}
}

// Poll implements Encoder.
func (w *worker) Poll(timeout time.Duration) (Output, error) {
	w.mu.Lock()
	configured, closed := w.configured, w.closed
	w.mu.Unlock()
	if closed {
		return Output{}, ErrClosed
	}
	if !configured {
		return Output{}, ErrNotConfigured
	}

	select {
	case r := <-w.out:
		return r.out, r.err
	default:
	}
	select {
	case r := <-w.out:
		return r.out, r.err
	case <-w.done:
		return Output{}, ErrClosed
	case <-w.clock.After(timeout):
		return Output{Kind: OutputNone}, nil
	}
}

// SignalEndOfStream implements Encoder. It never blocks: inputs already
// accepted are encoded before the end-of-stream output. Extra calls are
// ignored.
func (w *worker) SignalEndOfStream() {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.closed:
		logger().Debug("codec: end of stream", "err", ErrClosed)
		return
	case !w.configured:
		logger().Debug("codec: end of stream", "err", ErrNotConfigured)
		return
	case w.eos:
		return
	}
	w.eos = true
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pending.Wait()
		close(w.eosCh)
	}()
}

// Close implements Encoder.
func (w *worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	w.mu.Unlock()
	w.wg.Wait()
	return nil
}
