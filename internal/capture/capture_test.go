// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

func TestParseFilter(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want AddressFilter
	}{
		{"0x1000-0x2000", AddressFilter{true, 0x1000, 0x2000}},
		{"true-4096-8192", AddressFilter{true, 0x1000, 0x2000}},
		{"false-0x1000-0x2000", AddressFilter{false, 0x1000, 0x2000}},
		{"yes-0b101-0o17", AddressFilter{true, 5, 15}},
	} {
		got, err := ParseFilter(tc.in)
		if err != nil {
			t.Errorf("ParseFilter(%q): %v", tc.in, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ParseFilter(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
		back, err := ParseFilter(got.String())
		if err != nil || back != got {
			t.Errorf("ParseFilter(%q.String()) = %v, %v", tc.in, back, err)
		}
	}

	for _, in := range []string{"0x1000", "1-2-3-4", "", "abc-def", "zz-0x10", "0x10-", "true-0x10-nope"} {
		_, err := ParseFilter(in)
		var pe *FilterParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParseFilter(%q) error = %v, want *FilterParseError", in, err)
		}
	}
}

func TestFiltersFlag(t *testing.T) {
	var fs Filters
	for _, v := range []string{"0x10-0x20", "false-0x30-0x40"} {
		if err := fs.Set(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := fs.Set("bogus"); err == nil {
		t.Errorf("Set accepted a malformed filter")
	}
	if got, want := fs.String(), "true-0x10-0x20,false-0x30-0x40"; got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
	if fs.Type() != "filter" {
		t.Errorf("Type = %q", fs.Type())
	}
}

// fakeDriver records the calls made to it.
type fakeDriver struct {
	calls   []string
	filters [MaxFilters]AddressFilter
	pid     uint64
	packets uint64
	buf     []byte
	maps    int
	unmaps  int
	closed  int
	err     error
}

func (d *fakeDriver) ConfigureBuffers(count uint32, pagePower uint8) error {
	d.calls = append(d.calls, "buffers")
	return d.err
}

func (d *fakeDriver) SetEnabled(cpu uint16, enabled, reset bool) error {
	d.calls = append(d.calls, "enabled")
	return d.err
}

func (d *fakeDriver) ConfigureTrace(cpu uint16, pid uint64, filters [MaxFilters]AddressFilter) error {
	d.calls = append(d.calls, "trace")
	d.pid, d.filters = pid, filters
	return d.err
}

func (d *fakeDriver) TraceLengths(cpu uint16) (uint64, uint64, error) {
	d.calls = append(d.calls, "lengths")
	return d.packets, uint64(len(d.buf)), d.err
}

func (d *fakeDriver) MapTrace(cpu uint16, length uint64) ([]byte, error) {
	d.maps++
	return d.buf, nil
}

func (d *fakeDriver) Unmap(b []byte) error {
	d.unmaps++
	return nil
}

func (d *fakeDriver) Close() error {
	d.closed++
	return nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func newTestSession(t *testing.T, cpu uint16, d *fakeDriver) *Session {
	t.Helper()
	s := NewSession(cpu, d, quietLogger())
	t.Cleanup(func() { s.Close() })
	return s
}

func withAffinity(t *testing.T, cpus ...int) {
	t.Helper()
	old := getAffinity
	getAffinity = func(int) ([]int, error) { return cpus, nil }
	t.Cleanup(func() { getAffinity = old })
}

func TestTooManyFilters(t *testing.T) {
	d := &fakeDriver{}
	s := newTestSession(t, 0, d)
	withAffinity(t, 0)
	err := s.ConfigureFilters(1, make([]AddressFilter, 5))
	if !errors.Is(err, unix.EINVAL) {
		t.Errorf("ConfigureFilters with 5 filters: %v, want EINVAL", err)
	}
	if len(d.calls) != 0 {
		t.Errorf("driver was called: %v", d.calls)
	}
}

func TestConfigureFilters(t *testing.T) {
	d := &fakeDriver{}
	s := newTestSession(t, 2, d)
	withAffinity(t, 2)
	in := []AddressFilter{{true, 0x1000, 0x2000}}
	if err := s.ConfigureFilters(1234, in); err != nil {
		t.Fatal(err)
	}
	want := [MaxFilters]AddressFilter{{true, 0x1000, 0x2000}}
	if diff := cmp.Diff(want, d.filters); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
	if d.pid != 1234 {
		t.Errorf("pid = %d, want 1234", d.pid)
	}
}

func TestConfigureFiltersAffinity(t *testing.T) {
	for _, cpus := range [][]int{{0, 1}, {1}, nil} {
		d := &fakeDriver{}
		s := newTestSession(t, 0, d)
		withAffinity(t, cpus...)
		err := s.ConfigureFilters(99, nil)
		var ae *AffinityError
		if !errors.As(err, &ae) {
			t.Errorf("affinity %v: error = %v, want *AffinityError", cpus, err)
			continue
		}
		if ae.PID != 99 || ae.CPU != 0 {
			t.Errorf("affinity %v: error fields %+v", cpus, ae)
		}
		if len(d.calls) != 0 {
			t.Errorf("affinity %v: driver was called: %v", cpus, d.calls)
		}
	}
}

func TestSetBufferSize(t *testing.T) {
	d := &fakeDriver{}
	s := newTestSession(t, 0, d)
	for _, tc := range []struct {
		count uint32
		power uint8
	}{
		{0, 5},
		{1, 0},
		{uint32(s.pageSize), 5},
	} {
		if err := s.SetBufferSize(tc.count, tc.power); !errors.Is(err, unix.EINVAL) {
			t.Errorf("SetBufferSize(%d, %d) = %v, want EINVAL", tc.count, tc.power, err)
		}
	}
	if len(d.calls) != 0 {
		t.Errorf("driver was called for invalid sizes: %v", d.calls)
	}
	if err := s.SetBufferSize(400, 5); err != nil {
		t.Fatal(err)
	}

	d.err = unix.ENOMEM
	if err := s.SetBufferSize(400, 5); !errors.Is(err, unix.ENOMEM) {
		t.Errorf("driver failure surfaced as %v", err)
	}
}

func TestTrace(t *testing.T) {
	d := &fakeDriver{buf: []byte{1, 2, 3, 4, 5, 6, 7, 8}, packets: 5}
	s := newTestSession(t, 0, d)
	got, err := s.Trace()
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{1, 2, 3, 4, 5, StopCodon}; !bytes.Equal(got, want) {
		t.Errorf("Trace = %x, want %x", got, want)
	}

	// The result is a copy.
	got[0] = 0xff
	if d.buf[0] != 1 {
		t.Errorf("Trace returned the mapping itself")
	}

	d.packets = 100
	got, err = s.Trace()
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{1, 2, 3, 4, 5, StopCodon, 7, StopCodon}; !bytes.Equal(got, want) {
		t.Errorf("full buffer Trace = %x, want %x", got, want)
	}
	if d.maps != 1 {
		t.Errorf("buffer mapped %d times, want 1", d.maps)
	}
}

func TestTraceUnallocated(t *testing.T) {
	s := newTestSession(t, 0, &fakeDriver{})
	if _, err := s.Trace(); !errors.Is(err, unix.ENOMEM) {
		t.Errorf("Trace with no buffer: %v", err)
	}
}

func TestSetBufferSizeDropsMapping(t *testing.T) {
	d := &fakeDriver{buf: make([]byte, 16)}
	s := newTestSession(t, 0, d)
	if _, err := s.Trace(); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBufferSize(10, 1); err != nil {
		t.Fatal(err)
	}
	if d.unmaps != 1 {
		t.Errorf("unmaps = %d, want 1", d.unmaps)
	}
	if _, err := s.Trace(); err != nil {
		t.Fatal(err)
	}
	if d.maps != 2 {
		t.Errorf("maps = %d, want 2", d.maps)
	}
}

func TestCloseOnce(t *testing.T) {
	d := &fakeDriver{buf: make([]byte, 4)}
	s := NewSession(0, d, quietLogger())
	if _, err := s.Trace(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	}
	if d.closed != 1 || d.unmaps != 1 {
		t.Errorf("closed %d times, unmapped %d times; want 1, 1", d.closed, d.unmaps)
	}
}
