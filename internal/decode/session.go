// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package decode walks a captured Intel PT trace against a hive and reports
// every basic block the traced program executed.
//
// The decoder itself is libhoneybee, reached through cgo when built with the
// honeybee tag. A Session hands the decoder one trace at a time and calls
// back into Go for each block, strictly within Decode.
package decode

import (
	"context"
	"fmt"
	"sync"

	"github.com/honeybee-pt/honeycov/internal/hive"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const stopCodon = 0x55

var (
	ErrEngineUnavailable = errors.New("decode: built without the honeybee decoder (rebuild with -tags honeybee)")
	ErrUnterminatedTrace = errors.New("decode: trace does not end with the stop codon")
	ErrNotConfigured     = errors.New("decode: no trace configured; call Reconfigure")
	ErrDecodeInFlight    = errors.New("decode: an abandoned decode pass is still running")
	ErrDecoderContract   = errors.New("decode: decoder returned an invalid result")
	ErrClosed            = errors.New("decode: session closed")
)

// A DecodeError reports a decode pass that stopped before the end of the
// trace. Blocks reported before the failure are valid.
type DecodeError struct {
	Status Status
}

func (e *DecodeError) Error() string { return e.Status.Error() }

func (e *DecodeError) Unwrap() error { return e.Status }

// Engine is the foreign decoder. Results follow the C convention: a
// negative value is an error code, Decode returns -EndOfStream on success.
type Engine interface {
	// Reconfigure installs trace, whose first length bytes are packets and
	// whose next byte is the stop codon. slide is the load address of the
	// traced binary.
	Reconfigure(trace []byte, length, slide uint64) int
	// Decode calls onBlock for every block in the trace, in order, and
	// only before it returns.
	Decode(onBlock func(addr uint64)) int
	Close()
}

// A Session decodes traces of the binary described by one hive.
type Session struct {
	hive   *hive.Map
	engine Engine
	log    logrus.FieldLogger

	mu         sync.Mutex
	trace      []byte
	configured bool
	running    chan struct{} // non-nil while the engine is decoding
	closed     bool
	freed      chan struct{} // closed once the engine and hive are released
}

// NewSession returns a session decoding with libhoneybee. The session owns m.
func NewSession(m *hive.Map, log logrus.FieldLogger) (*Session, error) {
	e, err := newEngine(m)
	if err != nil {
		return nil, err
	}
	return NewSessionWithEngine(m, e, log), nil
}

// NewSessionWithEngine returns a session decoding with e. The session owns
// m and e.
func NewSessionWithEngine(m *hive.Map, e Engine, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{hive: m, engine: e, log: log, freed: make(chan struct{})}
}

// Hive returns the session's hive.
func (s *Session) Hive() *hive.Map { return s.hive }

// Reconfigure replaces the current trace. trace must end with the stop
// codon and must not be modified while the session holds it. slide is the
// address the traced binary was loaded at.
func (s *Session) Reconfigure(trace []byte, slide uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	if len(trace) == 0 || trace[len(trace)-1] != stopCodon {
		return ErrUnterminatedTrace
	}
	s.configured = false
	s.trace = trace
	if r := s.engine.Reconfigure(trace, uint64(len(trace)-1), slide); r < 0 {
		return errors.Wrapf(unix.Errno(-r), "reconfigure decoder (code %d)", r)
	}
	s.configured = true
	s.log.WithFields(logrus.Fields{"bytes": len(trace) - 1, "slide": fmt.Sprintf("%#x", slide)}).Debug("decoder configured")
	return nil
}

func (s *Session) usable() error {
	if s.closed {
		return ErrClosed
	}
	if s.running != nil {
		return ErrDecodeInFlight
	}
	return nil
}

// begin claims the configured trace for one decode pass.
func (s *Session) begin() (chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	if !s.configured {
		return nil, ErrNotConfigured
	}
	s.configured = false
	s.running = make(chan struct{})
	return s.running, nil
}

func (s *Session) end(running chan struct{}) {
	s.mu.Lock()
	s.running = nil
	s.mu.Unlock()
	close(running)
}

// Decode runs one pass over the configured trace, calling onBlock with the
// address of each block in execution order. onBlock must not retain
// anything beyond the call. Decode returns nil only if the decoder reached
// the end of the trace; any other outcome is a *DecodeError, and the blocks
// already reported are the valid prefix.
//
// Every pass consumes the trace: decoding again needs a new Reconfigure.
func (s *Session) Decode(onBlock func(addr uint64)) error {
	running, err := s.begin()
	if err != nil {
		return err
	}
	defer s.end(running)
	return s.result(s.engine.Decode(onBlock))
}

// DecodeContext is like Decode but gives up when ctx is done. It then
// returns ctx.Err() and onBlock is not called again, although the decoder
// keeps the session busy until it finishes on its own. Close does not wait
// for such a pass.
func (s *Session) DecodeContext(ctx context.Context, onBlock func(addr uint64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	running, err := s.begin()
	if err != nil {
		return err
	}

	var (
		gate      sync.Mutex
		abandoned bool
	)
	done := make(chan int, 1)
	go func() {
		r := s.engine.Decode(func(addr uint64) {
			gate.Lock()
			defer gate.Unlock()
			if !abandoned {
				onBlock(addr)
			}
		})
		s.end(running)
		done <- r
	}()

	select {
	case r := <-done:
		return s.result(r)
	case <-ctx.Done():
		gate.Lock()
		abandoned = true
		gate.Unlock()
		s.log.WithError(ctx.Err()).Warn("decode abandoned")
		return ctx.Err()
	}
}

func (s *Session) result(r int) error {
	if r >= 0 {
		return errors.Wrapf(ErrDecoderContract, "decode returned %d", r)
	}
	st := Status(-r)
	if !st.known() {
		return errors.Wrapf(ErrDecoderContract, "unknown status %d", -r)
	}
	if st == EndOfStream {
		s.log.Debug("decode reached end of stream")
		return nil
	}
	s.log.WithField("status", st).Debug("decode failed")
	return &DecodeError{Status: st}
}

// Close frees the decoder and the hive. If an abandoned pass is still
// running, Close returns at once and they are freed when the pass ends.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	running := s.running
	s.mu.Unlock()

	if running != nil {
		s.log.Warn("decoder still running; freeing it when the pass ends")
		go func() {
			<-running
			if err := s.free(); err != nil {
				s.log.WithError(err).Warn("free decoder")
			}
		}()
		return nil
	}
	return s.free()
}

func (s *Session) free() error {
	defer close(s.freed)
	s.engine.Close()
	s.trace = nil
	return s.hive.Close()
}
