// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coverage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	a = 0x401000
	b = 0x401020
	c = 0x401040
)

func record(acc Accumulator, addrs ...uint64) {
	for _, x := range addrs {
		acc.RecordBlock(x)
	}
}

func TestFullTrace64(t *testing.T) {
	tr := NewFullTrace64(0x400000)
	record(tr, a, b, c)
	if diff := cmp.Diff([]uint64{a, b, c}, tr.Values()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	if n, _ := tr.ReportSizes(); n != 3 {
		t.Errorf("value count = %d, want 3", n)
	}
}

func TestFullTrace32Truncates(t *testing.T) {
	const slide = 0x400000
	tr := NewFullTrace32(slide)
	record(tr, a, slide+0x1_0000_0010, slide-0x10)
	want := []uint32{0x1000, 0x10, 0xfffffff0}
	if diff := cmp.Diff(want, tr.Values()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestTrivialDedup(t *testing.T) {
	const slide = 0x400000
	t64 := NewTrivialDedup64(slide)
	record(t64, a, a, b)
	if diff := cmp.Diff([]uint64{a, b}, t64.Values()); diff != "" {
		t.Errorf("64-bit values mismatch (-want +got):\n%s", diff)
	}

	t32 := NewTrivialDedup32(slide)
	record(t32, a, a, b, a)
	if diff := cmp.Diff([]uint32{a - slide, b - slide, a - slide}, t32.Values()); diff != "" {
		t.Errorf("32-bit values mismatch (-want +got):\n%s", diff)
	}
}

func TestTrivialDedupRecordsLeadingZero(t *testing.T) {
	tr := NewTrivialDedup64(0)
	record(tr, 0, 0, a)
	if diff := cmp.Diff([]uint64{0, a}, tr.Values()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestLessTrivialDedup(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   []uint64
		want []uint32
	}{
		{"triple", []uint64{a, a, a}, []uint32{a}},
		{"alternating", []uint64{a, b, a, b}, []uint32{a, b, a, b}},
		{"pair then repeat", []uint64{a, b, b, b, a}, []uint32{a, b, b, a}},
		{"empty", nil, []uint32{}},
		{"zero first", []uint64{0, 0, 0, a}, []uint32{0, a}},
		{"zero then block", []uint64{0, a}, []uint32{0, a}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewLessTrivialDedup32(0)
			record(tr, tc.in...)
			if diff := cmp.Diff(tc.want, tr.Values()); diff != "" {
				t.Errorf("values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBlockSetsIgnoreOrder(t *testing.T) {
	orders := [][]uint64{
		{a, b, c, a, b},
		{c, c, b, a, a},
		{b, a, c},
	}
	for _, k := range []Kind{KindBlockHashSet, KindBlockBTreeSet} {
		for _, in := range orders {
			acc, err := New(k, 0)
			if err != nil {
				t.Fatal(err)
			}
			record(acc, in...)
			if n, _ := acc.ReportSizes(); n != 3 {
				t.Errorf("%v fed %x: count = %d, want 3", k, in, n)
			}
		}
	}

	h, o := NewBlockHashSet(0), NewBlockBTreeSet(0)
	record(h, c, a, b, a)
	record(o, c, a, b, a)
	if diff := cmp.Diff(h.Blocks(), o.Blocks()); diff != "" {
		t.Errorf("hash and ordered sets disagree (-hash +btree):\n%s", diff)
	}
	if !o.Contains(b) || o.Contains(0) {
		t.Errorf("Contains reported wrong membership")
	}
}

func TestEdgeSetSentinel(t *testing.T) {
	want := []Edge{{0, a}, {a, a}, {a, b}, {b, a}}
	for _, k := range []Kind{KindEdgeHashSet, KindEdgeBTreeSet} {
		acc, err := New(k, 0)
		if err != nil {
			t.Fatal(err)
		}
		record(acc, a, b, a, b, a, a)
		var got []Edge
		switch s := acc.(type) {
		case *EdgeHashSet:
			got = s.Edges()
		case *EdgeBTreeSet:
			got = s.Edges()
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%v edges mismatch (-want +got):\n%s", k, diff)
		}
		if n, _ := acc.ReportSizes(); n != len(want) {
			t.Errorf("%v count = %d, want %d", k, n, len(want))
		}
		sentinels := 0
		for _, e := range got {
			if e.From == 0 {
				sentinels++
			}
		}
		if sentinels != 1 {
			t.Errorf("%v recorded %d edges from 0, want 1", k, sentinels)
		}
	}
}

func TestXorDiff(t *testing.T) {
	x := NewXorDiff(0)
	record(x, a, a, b)
	if x.Count() != 1 {
		t.Fatalf("Count = %d, want 1", x.Count())
	}
	want := binary.AppendUvarint(nil, b^a)
	if !bytes.Equal(x.Bytes(), want) {
		t.Errorf("Bytes = %x, want %x", x.Bytes(), want)
	}
	addrs, err := x.Addresses()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint64{a, b}, addrs); diff != "" {
		t.Errorf("Addresses mismatch (-want +got):\n%s", diff)
	}
}

func TestXorDiffZeroFirst(t *testing.T) {
	x := NewXorDiff(0)
	record(x, 0, 0, a)
	if x.Count() != 1 {
		t.Fatalf("Count = %d, want 1", x.Count())
	}
	if want := binary.AppendUvarint(nil, a); !bytes.Equal(x.Bytes(), want) {
		t.Errorf("Bytes = %x, want %x", x.Bytes(), want)
	}
	addrs, err := x.Addresses()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint64{0, a}, addrs); diff != "" {
		t.Errorf("Addresses mismatch (-want +got):\n%s", diff)
	}
}

func TestXorDiffAllEqual(t *testing.T) {
	x := NewXorDiff(0)
	record(x, c, c, c, c)
	if n, _ := x.ReportSizes(); n != 0 {
		t.Errorf("value count = %d, want 0", n)
	}
	if len(x.Bytes()) != 0 {
		t.Errorf("Bytes = %x, want empty", x.Bytes())
	}
}

func TestXorDiffWideValues(t *testing.T) {
	in := []uint64{0x7f, 0x80, 0x3fff, 0x4000, 1<<32 - 1, 1<<63 + 5, ^uint64(0)}
	x := NewXorDiff(0)
	record(x, in...)
	addrs, err := x.Addresses()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, addrs); diff != "" {
		t.Errorf("Addresses mismatch (-want +got):\n%s", diff)
	}
}

func TestXorDiffEncoding(t *testing.T) {
	x := NewXorDiff(0)
	record(x, 0, 624485)
	if !bytes.Equal(x.Bytes(), []byte{0xe5, 0x8e, 0x26}) {
		t.Errorf("Bytes = %x, want e58e26", x.Bytes())
	}

	x.buf = append(x.buf, 0x80)
	if _, err := x.Addresses(); err == nil {
		t.Errorf("Addresses accepted a truncated stream")
	}
	x.buf = append(bytes.Repeat([]byte{0xff}, binary.MaxVarintLen64), 0x01)
	if _, err := x.Addresses(); !errors.Is(err, errVarintOverflow) {
		t.Errorf("Addresses on an overflowing stream: %v", err)
	}
}

func TestKinds(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kinds() {
		acc, err := New(k, 0x400000)
		if err != nil {
			t.Fatalf("New(%v): %v", k, err)
		}
		if acc.Name() != k.String() {
			t.Errorf("New(%v).Name() = %q", k, acc.Name())
		}
		if seen[acc.Name()] {
			t.Errorf("duplicate name %q", acc.Name())
		}
		seen[acc.Name()] = true

		pk, err := ParseKind(strings.ToLower(k.String()))
		if err != nil || pk != k {
			t.Errorf("ParseKind(%q) = %v, %v", k, pk, err)
		}

		var buf bytes.Buffer
		acc.PrintResult(&buf)
		if !strings.HasSuffix(buf.String(), "\n") {
			t.Errorf("%v PrintResult wrote %q", k, buf.String())
		}
	}
	if len(seen) != 10 {
		t.Errorf("got %d strategies, want 10", len(seen))
	}
	if _, err := ParseKind("bloom"); err == nil {
		t.Errorf("ParseKind accepted an unknown name")
	}
	if _, err := New(Kind(42), 0); err == nil {
		t.Errorf("New accepted an unknown kind")
	}
}
