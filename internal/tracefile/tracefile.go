// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracefile saves captured traces so they can be decoded later.
//
// A trace file is a fixed header followed by the trace bytes, stop codon
// included, in the snappy framing format.
package tracefile

import (
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

const (
	Magic   = "HCPT"
	Version = 1
)

// Header describes a saved trace.
type Header struct {
	Magic   string `struc:"[4]byte"`
	Version uint32 `struc:"uint32,little"`
	// CPU the trace was captured on.
	CPU uint16 `struc:"uint16,little"`
	// Slide is the load address to decode the trace with.
	Slide uint64 `struc:"uint64,little"`
	// Length is the trace length in bytes, stop codon included.
	Length uint64 `struc:"uint64,little"`
	// Subject is the base name of the traced program, right-null-padded.
	Subject string `struc:"[64]byte"`
}

// Write saves trace to w.
func Write(w io.Writer, h Header, trace []byte) error {
	h.Magic = Magic
	h.Version = Version
	h.Length = uint64(len(trace))
	if len(h.Subject) > 64 {
		h.Subject = h.Subject[:64]
	}
	if err := struc.Pack(w, &h); err != nil {
		return errors.Wrap(err, "failed to pack header")
	}
	zw := snappy.NewBufferedWriter(w)
	if _, err := zw.Write(trace); err != nil {
		return errors.Wrap(err, "failed to write trace")
	}
	return errors.Wrap(zw.Close(), "failed to write trace")
}

// Read loads a trace saved by Write.
func Read(r io.Reader) (Header, []byte, error) {
	var h Header
	if err := struc.Unpack(r, &h); err != nil {
		return h, nil, errors.Wrap(err, "failed to unpack header")
	}
	if h.Magic != Magic {
		return h, nil, errors.New("invalid trace file magic")
	}
	if h.Version != Version {
		return h, nil, errors.Errorf("unsupported trace file version %d", h.Version)
	}
	h.Subject = trimNull(h.Subject)

	trace, err := io.ReadAll(snappy.NewReader(r))
	if err != nil {
		return h, nil, errors.Wrap(err, "failed to read trace")
	}
	if uint64(len(trace)) != h.Length {
		return h, nil, errors.Errorf("trace is %d bytes, header says %d", len(trace), h.Length)
	}
	return h, trace, nil
}

func trimNull(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return s[:i]
		}
	}
	return s
}

// Save writes trace to the file at path.
func Save(path string, h Header, trace []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, h, trace); err != nil {
		f.Close()
		return errors.Wrap(err, path)
	}
	return f.Close()
}

// Load reads the trace file at path.
func Load(path string) (Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()
	h, trace, err := Read(f)
	return h, trace, errors.Wrap(err, path)
}
