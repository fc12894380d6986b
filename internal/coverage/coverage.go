// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coverage implements the coverage accumulators that consume a
// decoded stream of executed block addresses.
//
// Every accumulator grows monotonically through RecordBlock and is
// read-only once the stream has ended. The set of accumulators is closed:
// the Accumulator interface cannot be implemented outside this package,
// and each concrete type is named by a Kind.
package coverage

import (
	"fmt"
	"io"
	"strings"
)

// An Accumulator consumes executed block addresses in execution order.
type Accumulator interface {
	// Name returns the strategy name used in reports.
	Name() string

	// RecordBlock records one executed block address.
	RecordBlock(addr uint64)

	// ReportSizes returns the number of stored values and an estimate of
	// the heap bytes used to store them. The numbers are for comparing
	// strategies only.
	ReportSizes() (values, bytes int)

	// PrintResult writes a one-line human readable summary to w.
	PrintResult(w io.Writer)

	accumulator()
}

// base holds the state shared by every accumulator.
type base struct {
	slide uint64 // binary map slide supplied at construction
}

func (base) accumulator() {}

// Slide returns the slide the accumulator was constructed with.
func (b base) Slide() uint64 { return b.slide }

// A Kind names one accumulator strategy.
type Kind int

const (
	KindFullTrace32 Kind = iota
	KindFullTrace64
	KindTrivialDedup32
	KindTrivialDedup64
	KindLessTrivialDedup32
	KindBlockHashSet
	KindBlockBTreeSet
	KindEdgeHashSet
	KindEdgeBTreeSet
	KindXorDiffULEB128
	numKinds
)

var kindNames = [numKinds]string{
	KindFullTrace32:        "FullTrace32Bit",
	KindFullTrace64:        "FullTrace64Bit",
	KindTrivialDedup32:     "TrivialDedupFullTrace32Bit",
	KindTrivialDedup64:     "TrivialDedupFullTrace64Bit",
	KindLessTrivialDedup32: "LessTrivialDedupFullTrace32Bit",
	KindBlockHashSet:       "BlockHashSetCoverageInfo",
	KindBlockBTreeSet:      "BlockBTreeSetCoverageInfo",
	KindEdgeHashSet:        "EdgeHashSetCoverageInfo",
	KindEdgeBTreeSet:       "EdgeBTreeSetCoverageInfo",
	KindXorDiffULEB128:     "CompressedTraceXorDiffULeb128",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns every accumulator kind in a stable order.
func Kinds() []Kind {
	ks := make([]Kind, numKinds)
	for i := range ks {
		ks[i] = Kind(i)
	}
	return ks
}

// ParseKind returns the Kind with the given name. Matching ignores case.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown coverage strategy %q", name)
}

// New returns an empty accumulator of kind k.
func New(k Kind, slide uint64) (Accumulator, error) {
	switch k {
	case KindFullTrace32:
		return NewFullTrace32(slide), nil
	case KindFullTrace64:
		return NewFullTrace64(slide), nil
	case KindTrivialDedup32:
		return NewTrivialDedup32(slide), nil
	case KindTrivialDedup64:
		return NewTrivialDedup64(slide), nil
	case KindLessTrivialDedup32:
		return NewLessTrivialDedup32(slide), nil
	case KindBlockHashSet:
		return NewBlockHashSet(slide), nil
	case KindBlockBTreeSet:
		return NewBlockBTreeSet(slide), nil
	case KindEdgeHashSet:
		return NewEdgeHashSet(slide), nil
	case KindEdgeBTreeSet:
		return NewEdgeBTreeSet(slide), nil
	case KindXorDiffULEB128:
		return NewXorDiff(slide), nil
	}
	return nil, fmt.Errorf("unknown coverage strategy %v", k)
}

// initialCapacity matches the preallocation of the trace strategies.
const initialCapacity = 1000
