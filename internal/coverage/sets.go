// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coverage

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/btree"
)

// An Edge is a pair of blocks executed one after the other.
type Edge struct {
	From, To uint64
}

func (e Edge) String() string { return fmt.Sprintf("%#x->%#x", e.From, e.To) }

func edgeLess(a, b Edge) bool {
	if a.From != b.From {
		return a.From < b.From
	}
	return a.To < b.To
}

func addrLess(a, b uint64) bool { return a < b }

// btreeDegree is the branching factor of the ordered sets.
const btreeDegree = 32

const (
	addrSize = 8
	edgeSize = 16
)

// mapBytes estimates the heap footprint of a Go map holding n keys of
// keySize bytes with empty values: buckets of eight slots, each with a tophash
// byte, filled to the runtime's 6.5 load factor.
func mapBytes(n, keySize int) int {
	if n == 0 {
		return 0
	}
	buckets := 1
	for float64(n) > 6.5*float64(buckets) {
		buckets <<= 1
	}
	return buckets * (8 + 8*keySize + 8)
}

// btreeBytes estimates the heap footprint of a btree holding n items of
// itemSize bytes. Nodes are assumed half full.
func btreeBytes(n, itemSize int) int {
	if n == 0 {
		return 0
	}
	perNode := btreeDegree - 1
	nodes := (n + perNode - 1) / perNode
	const nodeHeader = 3 * 24 // items, children and copy-on-write context
	return n*itemSize + nodes*(nodeHeader+btreeDegree*8)
}

// BlockHashSet records the distinct blocks executed.
type BlockHashSet struct {
	base
	set map[uint64]struct{}
}

func NewBlockHashSet(slide uint64) *BlockHashSet {
	return &BlockHashSet{base: base{slide}, set: make(map[uint64]struct{}, 100)}
}

func (s *BlockHashSet) Name() string { return KindBlockHashSet.String() }

func (s *BlockHashSet) RecordBlock(addr uint64) { s.set[addr] = struct{}{} }

func (s *BlockHashSet) ReportSizes() (int, int) {
	return len(s.set), mapBytes(len(s.set), addrSize)
}

func (s *BlockHashSet) PrintResult(w io.Writer) {
	v, b := s.ReportSizes()
	fmt.Fprintf(w, "Basic blocks: %d values = %d bytes\n", v, b)
}

// Contains reports whether addr was recorded.
func (s *BlockHashSet) Contains(addr uint64) bool {
	_, ok := s.set[addr]
	return ok
}

// Blocks returns the recorded blocks in ascending order.
func (s *BlockHashSet) Blocks() []uint64 {
	out := make([]uint64, 0, len(s.set))
	for a := range s.set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BlockBTreeSet records the distinct blocks executed, kept in address order.
type BlockBTreeSet struct {
	base
	set *btree.BTreeG[uint64]
}

func NewBlockBTreeSet(slide uint64) *BlockBTreeSet {
	return &BlockBTreeSet{base: base{slide}, set: btree.NewG[uint64](btreeDegree, addrLess)}
}

func (s *BlockBTreeSet) Name() string { return KindBlockBTreeSet.String() }

func (s *BlockBTreeSet) RecordBlock(addr uint64) { s.set.ReplaceOrInsert(addr) }

func (s *BlockBTreeSet) ReportSizes() (int, int) {
	return s.set.Len(), btreeBytes(s.set.Len(), addrSize)
}

func (s *BlockBTreeSet) PrintResult(w io.Writer) {
	v, b := s.ReportSizes()
	fmt.Fprintf(w, "Blocks: %d values = %d bytes\n", v, b)
}

func (s *BlockBTreeSet) Contains(addr uint64) bool { return s.set.Has(addr) }

// Blocks returns the recorded blocks in ascending order.
func (s *BlockBTreeSet) Blocks() []uint64 {
	out := make([]uint64, 0, s.set.Len())
	s.set.Ascend(func(a uint64) bool {
		out = append(out, a)
		return true
	})
	return out
}

// EdgeHashSet records the distinct edges executed. The first block of a
// stream produces an edge from the sentinel address 0.
type EdgeHashSet struct {
	base
	last uint64
	set  map[Edge]struct{}
}

func NewEdgeHashSet(slide uint64) *EdgeHashSet {
	return &EdgeHashSet{base: base{slide}, set: make(map[Edge]struct{}, 1000)}
}

func (s *EdgeHashSet) Name() string { return KindEdgeHashSet.String() }

func (s *EdgeHashSet) RecordBlock(addr uint64) {
	last := s.last
	s.last = addr
	s.set[Edge{last, addr}] = struct{}{}
}

func (s *EdgeHashSet) ReportSizes() (int, int) {
	return len(s.set), mapBytes(len(s.set), edgeSize)
}

func (s *EdgeHashSet) PrintResult(w io.Writer) {
	v, b := s.ReportSizes()
	fmt.Fprintf(w, "Edges:        %d values = %d bytes\n", v, b)
}

func (s *EdgeHashSet) Contains(e Edge) bool {
	_, ok := s.set[e]
	return ok
}

// Edges returns the recorded edges ordered by source then destination.
func (s *EdgeHashSet) Edges() []Edge {
	out := make([]Edge, 0, len(s.set))
	for e := range s.set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return edgeLess(out[i], out[j]) })
	return out
}

// EdgeBTreeSet records the distinct edges executed, kept in order.
// The first block of a stream produces an edge from the sentinel address 0.
type EdgeBTreeSet struct {
	base
	last uint64
	set  *btree.BTreeG[Edge]
}

func NewEdgeBTreeSet(slide uint64) *EdgeBTreeSet {
	return &EdgeBTreeSet{base: base{slide}, set: btree.NewG[Edge](btreeDegree, edgeLess)}
}

func (s *EdgeBTreeSet) Name() string { return KindEdgeBTreeSet.String() }

func (s *EdgeBTreeSet) RecordBlock(addr uint64) {
	last := s.last
	s.last = addr
	s.set.ReplaceOrInsert(Edge{last, addr})
}

func (s *EdgeBTreeSet) ReportSizes() (int, int) {
	return s.set.Len(), btreeBytes(s.set.Len(), edgeSize)
}

func (s *EdgeBTreeSet) PrintResult(w io.Writer) {
	v, b := s.ReportSizes()
	fmt.Fprintf(w, "Edges:        %d values = %d bytes\n", v, b)
}

func (s *EdgeBTreeSet) Contains(e Edge) bool { return s.set.Has(e) }

// Edges returns the recorded edges ordered by source then destination.
func (s *EdgeBTreeSet) Edges() []Edge {
	out := make([]Edge, 0, s.set.Len())
	s.set.Ascend(func(e Edge) bool {
		out = append(out, e)
		return true
	})
	return out
}
