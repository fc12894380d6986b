// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coverage

import (
	"fmt"
	"io"
)

// FullTrace32 stores every block, relative to the slide, truncated to 32 bits.
// Addresses further than 4GB from the slide wrap silently.
type FullTrace32 struct {
	base
	blocks []uint32
}

func NewFullTrace32(slide uint64) *FullTrace32 {
	return &FullTrace32{base: base{slide}, blocks: make([]uint32, 0, initialCapacity)}
}

func (t *FullTrace32) Name() string { return KindFullTrace32.String() }

func (t *FullTrace32) RecordBlock(addr uint64) {
	t.blocks = append(t.blocks, uint32(addr-t.slide))
}

func (t *FullTrace32) ReportSizes() (int, int) {
	return len(t.blocks), 4 * cap(t.blocks)
}

func (t *FullTrace32) PrintResult(w io.Writer) {
	fmt.Fprintf(w, "Trace length: %d values = %d bytes\n", len(t.blocks), 4*len(t.blocks))
}

// Values returns the stored trace. The caller must not modify it.
func (t *FullTrace32) Values() []uint32 { return t.blocks }

// FullTrace64 stores every block address as reported by the decoder.
type FullTrace64 struct {
	base
	blocks []uint64
}

func NewFullTrace64(slide uint64) *FullTrace64 {
	return &FullTrace64{base: base{slide}, blocks: make([]uint64, 0, initialCapacity)}
}

func (t *FullTrace64) Name() string { return KindFullTrace64.String() }

func (t *FullTrace64) RecordBlock(addr uint64) {
	t.blocks = append(t.blocks, addr)
}

func (t *FullTrace64) ReportSizes() (int, int) {
	return len(t.blocks), 8 * cap(t.blocks)
}

func (t *FullTrace64) PrintResult(w io.Writer) {
	fmt.Fprintf(w, "Trace length: %d values = %d bytes\n", len(t.blocks), 8*len(t.blocks))
}

// Values returns the stored trace. The caller must not modify it.
func (t *FullTrace64) Values() []uint64 { return t.blocks }

// TrivialDedup32 is FullTrace32 that drops a block equal to the one
// immediately before it.
type TrivialDedup32 struct {
	base
	primed bool
	last   uint64
	blocks []uint32
}

func NewTrivialDedup32(slide uint64) *TrivialDedup32 {
	return &TrivialDedup32{base: base{slide}, blocks: make([]uint32, 0, initialCapacity)}
}

func (t *TrivialDedup32) Name() string { return KindTrivialDedup32.String() }

func (t *TrivialDedup32) RecordBlock(addr uint64) {
	last, primed := t.last, t.primed
	t.last, t.primed = addr, true
	if primed && addr == last {
		return
	}
	t.blocks = append(t.blocks, uint32(addr-t.slide))
}

func (t *TrivialDedup32) ReportSizes() (int, int) {
	return len(t.blocks), 4 * cap(t.blocks)
}

func (t *TrivialDedup32) PrintResult(w io.Writer) {
	fmt.Fprintf(w, "Trace length: %d values = %d bytes\n", len(t.blocks), 4*len(t.blocks))
}

func (t *TrivialDedup32) Values() []uint32 { return t.blocks }

// TrivialDedup64 is FullTrace64 that drops a block equal to the one
// immediately before it.
type TrivialDedup64 struct {
	base
	primed bool
	last   uint64
	blocks []uint64
}

func NewTrivialDedup64(slide uint64) *TrivialDedup64 {
	return &TrivialDedup64{base: base{slide}, blocks: make([]uint64, 0, initialCapacity)}
}

func (t *TrivialDedup64) Name() string { return KindTrivialDedup64.String() }

func (t *TrivialDedup64) RecordBlock(addr uint64) {
	last, primed := t.last, t.primed
	t.last, t.primed = addr, true
	if primed && addr == last {
		return
	}
	t.blocks = append(t.blocks, addr)
}

func (t *TrivialDedup64) ReportSizes() (int, int) {
	return len(t.blocks), 8 * cap(t.blocks)
}

func (t *TrivialDedup64) PrintResult(w io.Writer) {
	fmt.Fprintf(w, "Trace length: %d values = %d bytes\n", len(t.blocks), 8*len(t.blocks))
}

func (t *TrivialDedup64) Values() []uint64 { return t.blocks }

// LessTrivialDedup32 drops a block only when it equals both of the two
// blocks before it. The two-entry history shifts on every call, including
// calls whose block is dropped. The first block fills both history slots.
type LessTrivialDedup32 struct {
	base
	primed         bool
	prev, prevprev uint64
	blocks         []uint32
}

func NewLessTrivialDedup32(slide uint64) *LessTrivialDedup32 {
	return &LessTrivialDedup32{base: base{slide}, blocks: make([]uint32, 0, initialCapacity)}
}

func (t *LessTrivialDedup32) Name() string { return KindLessTrivialDedup32.String() }

func (t *LessTrivialDedup32) RecordBlock(addr uint64) {
	if !t.primed {
		t.prev, t.prevprev, t.primed = addr, addr, true
		t.blocks = append(t.blocks, uint32(addr-t.slide))
		return
	}
	prev, prevprev := t.prev, t.prevprev
	t.prev, t.prevprev = addr, prev
	if addr == prev && addr == prevprev {
		return
	}
	t.blocks = append(t.blocks, uint32(addr-t.slide))
}

func (t *LessTrivialDedup32) ReportSizes() (int, int) {
	return len(t.blocks), 4 * cap(t.blocks)
}

func (t *LessTrivialDedup32) PrintResult(w io.Writer) {
	fmt.Fprintf(w, "Trace length: %d values = %d bytes\n", len(t.blocks), 4*len(t.blocks))
}

func (t *LessTrivialDedup32) Values() []uint32 { return t.blocks }
