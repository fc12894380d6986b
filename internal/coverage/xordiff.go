// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coverage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var errVarintOverflow = errors.New("coverage: varint overflows a 64-bit integer")

// XorDiff stores the trace as a stream of ULEB128 encoded values, each the
// XOR of a block with the block before it. The first block seeds the stream
// and is kept apart from the encoded values; repeats of the previous block
// are dropped.
type XorDiff struct {
	base
	primed bool
	first  uint64
	last   uint64
	n      int
	buf    []byte
}

func NewXorDiff(slide uint64) *XorDiff {
	return &XorDiff{base: base{slide}, buf: make([]byte, 0, initialCapacity)}
}

func (x *XorDiff) Name() string { return KindXorDiffULEB128.String() }

func (x *XorDiff) RecordBlock(addr uint64) {
	if !x.primed {
		x.primed, x.first, x.last = true, addr, addr
		return
	}
	last := x.last
	x.last = addr
	if addr == last {
		return
	}
	x.buf = binary.AppendUvarint(x.buf, addr^last)
	x.n++
}

func (x *XorDiff) ReportSizes() (int, int) {
	return x.n, cap(x.buf)
}

func (x *XorDiff) PrintResult(w io.Writer) {
	fmt.Fprintf(w, "Compressed length: %d values = %d bytes\n", x.n, len(x.buf))
}

// Bytes returns the encoded stream. The caller must not modify it.
func (x *XorDiff) Bytes() []byte { return x.buf }

// Count returns the number of encoded values.
func (x *XorDiff) Count() int { return x.n }

// Addresses reconstructs the deduplicated block sequence from the seed and
// the encoded stream.
func (x *XorDiff) Addresses() ([]uint64, error) {
	if !x.primed {
		return nil, nil
	}
	out := make([]uint64, 0, x.n+1)
	cur := x.first
	out = append(out, cur)
	for b := x.buf; len(b) > 0; {
		d, n := binary.Uvarint(b)
		if n == 0 {
			return out, errors.New("coverage: truncated compressed trace")
		}
		if n < 0 {
			return out, errVarintOverflow
		}
		cur ^= d
		out = append(out, cur)
		b = b[n:]
	}
	return out, nil
}
