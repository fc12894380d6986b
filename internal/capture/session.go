// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package capture drives Intel Processor Trace collection on a single CPU
// through the honey driver.
//
// A typical session pins the subject to the session's CPU, then calls
// SetBufferSize, ConfigureFilters and SetTraceEnable(true, true), lets the
// subject run, disables tracing and finally reads the packets with Trace.
package capture

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// StopCodon terminates every trace returned by Trace.
const StopCodon = 0x55

// DefaultDevice is the honey driver's device node.
const DefaultDevice = "/dev/honey_driver"

// ErrTooManyFilters is returned when more than MaxFilters filters are
// configured. It matches unix.EINVAL with errors.Is.
var ErrTooManyFilters = &tooManyFilters{}

type tooManyFilters struct{}

func (*tooManyFilters) Error() string        { return fmt.Sprintf("too many filters (max %d)", MaxFilters) }
func (*tooManyFilters) Is(target error) bool { return target == unix.EINVAL }

// Driver is the hardware surface a Session controls. Errors are expected to
// be unix.Errno values.
type Driver interface {
	ConfigureBuffers(count uint32, pagePower uint8) error
	SetEnabled(cpu uint16, enabled, reset bool) error
	ConfigureTrace(cpu uint16, pid uint64, filters [MaxFilters]AddressFilter) error
	// TraceLengths reports the number of packet bytes written and the
	// length of the trace buffer of cpu.
	TraceLengths(cpu uint16) (packets, length uint64, err error)
	// MapTrace maps the trace buffer of cpu read-write.
	MapTrace(cpu uint16, length uint64) ([]byte, error)
	Unmap(b []byte) error
	Close() error
}

// An AffinityError reports that a process may run on CPUs other than the
// session's, which makes an accurate trace impossible.
type AffinityError struct {
	PID  int
	CPU  uint16
	CPUs []int
}

func (e *AffinityError) Error() string {
	if len(e.CPUs) != 1 {
		return fmt.Sprintf("pid %d is not bound to a single CPU, it can run on CPUs %v", e.PID, e.CPUs)
	}
	return fmt.Sprintf("pid %d is bound to CPU %d, not to this session's CPU %d", e.PID, e.CPUs[0], e.CPU)
}

// getAffinity lists the CPUs pid may run on. Tests replace it.
var getAffinity = schedAffinity

// A Session captures traces on one CPU.
type Session struct {
	cpu    uint16
	driver Driver
	log    logrus.FieldLogger

	pageSize int
	buf      []byte // cached mapping of the trace buffer
	closed   bool
}

// Open opens the driver at device and returns a session for cpu.
func Open(device string, cpu uint16, log logrus.FieldLogger) (*Session, error) {
	d, err := OpenDriver(device)
	if err != nil {
		return nil, err
	}
	return NewSession(cpu, d, log), nil
}

// NewSession returns a session for cpu that controls d. The session owns d.
func NewSession(cpu uint16, d Driver, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		cpu:      cpu,
		driver:   d,
		log:      log.WithField("cpu", cpu),
		pageSize: os.Getpagesize(),
	}
}

// CPU returns the CPU the session traces.
func (s *Session) CPU() uint16 { return s.cpu }

// SetBufferSize sets the number of trace buffers and the size of each, in
// pages, as a power of two. It affects every CPU and must be called while
// tracing is disabled.
func (s *Session) SetBufferSize(count uint32, pagePower uint8) error {
	if count == 0 || count > uint32(s.pageSize-1) || pagePower == 0 {
		return errors.Wrapf(unix.EINVAL, "buffer count %d, page power %d", count, pagePower)
	}
	if err := s.unmap(); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"count": count, "page_power": pagePower}).Debug("configuring trace buffers")
	if err := s.driver.ConfigureBuffers(count, pagePower); err != nil {
		return errors.Wrap(err, "configure buffers")
	}
	return nil
}

// ConfigureFilters arms tracing for pid, which must be bound to the
// session's CPU and to no other. Unused filter slots are disabled.
func (s *Session) ConfigureFilters(pid int, filters []AddressFilter) error {
	if len(filters) > MaxFilters {
		return ErrTooManyFilters
	}
	cpus, err := getAffinity(pid)
	if err != nil {
		return errors.Wrapf(err, "sched_getaffinity(%d)", pid)
	}
	if len(cpus) != 1 || cpus[0] != int(s.cpu) {
		return &AffinityError{PID: pid, CPU: s.cpu, CPUs: cpus}
	}
	var slots [MaxFilters]AddressFilter
	copy(slots[:], filters)
	s.log.WithFields(logrus.Fields{"pid": pid, "filters": len(filters)}).Debug("configuring trace")
	if err := s.driver.ConfigureTrace(s.cpu, uint64(pid), slots); err != nil {
		return errors.Wrap(err, "configure trace")
	}
	return nil
}

// SetTraceEnable starts or stops tracing. If resetOutput is set the
// output buffers are rewound.
func (s *Session) SetTraceEnable(enable, resetOutput bool) error {
	s.log.WithFields(logrus.Fields{"enable": enable, "reset": resetOutput}).Debug("setting trace enable")
	if err := s.driver.SetEnabled(s.cpu, enable, resetOutput); err != nil {
		return errors.Wrap(err, "set enabled")
	}
	return nil
}

// Trace returns a copy of the captured packets followed by StopCodon.
// Tracing must be disabled. If the packets fill the buffer, the last packet
// byte is replaced by the codon.
func (s *Session) Trace() ([]byte, error) {
	packets, length, err := s.driver.TraceLengths(s.cpu)
	if err != nil {
		return nil, errors.Wrap(err, "get trace lengths")
	}
	if length == 0 {
		return nil, errors.Wrap(unix.ENOMEM, "trace buffer is not allocated")
	}
	if s.buf == nil || uint64(len(s.buf)) != length {
		if err := s.unmap(); err != nil {
			return nil, err
		}
		if s.buf, err = s.driver.MapTrace(s.cpu, length); err != nil {
			s.buf = nil
			return nil, errors.Wrap(err, "map trace buffer")
		}
	}
	if packets >= length {
		s.log.WithField("packets", packets).Warn("trace buffer full, trace truncated")
		packets = length - 1
	}
	s.buf[packets] = StopCodon
	out := make([]byte, packets+1)
	copy(out, s.buf)
	s.log.WithField("bytes", packets).Debug("read trace")
	return out, nil
}

func (s *Session) unmap() error {
	if s.buf == nil {
		return nil
	}
	b := s.buf
	s.buf = nil
	return errors.Wrap(s.driver.Unmap(b), "unmap trace buffer")
}

// Close releases the trace mapping and the driver.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.unmap()
	if cerr := s.driver.Close(); err == nil {
		err = cerr
	}
	return err
}
