// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gfx

// ErrState keeps the first recorded error until it is read. Backends embed
// it to implement Context.Err.
type ErrState struct {
	err error
}

// Record stores err unless an earlier error is pending.
func (s *ErrState) Record(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

// Err returns and clears the pending error.
func (s *ErrState) Err() error {
	err := s.err
	s.err = nil
	return err
}
