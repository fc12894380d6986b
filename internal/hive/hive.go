// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hive reads Honeybee hive files, the precomputed block maps that
// let the decoder walk a binary's basic blocks without disassembling it.
//
// A hive file is little endian and laid out as
//
//	magic            uint64 ("HONEYBEE")
//	block_count      uint64
//	uvip_slide       uint64
//	direct_map_count uint64
//	blocks           [block_count]struct{ packed_indices, packed_uvips uint64 }
//	direct_map       [direct_map_count]uint32
//
// Block virtual addresses are stored relative to uvip_slide, the slide.
package hive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"os"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Magic is "HONEYBEE" read as a little endian uint64.
const Magic uint64 = 0x45454259454E4F48

const headerSize = 4 * 8

// IndirectIndex is the block index recorded for an indirect branch target.
const IndirectIndex = 1<<31 - 1

var (
	ErrBadMagic = errors.New("hive: bad magic")
	ErrCorrupt  = errors.New("hive: corrupt file")
)

// A Block is one entry of the block table.
type Block struct {
	// [{31 bits not-taken index}, {0}][{31 bits taken index}, {conditional flag}]
	PackedIndices uint64 `struc:"uint64,little"`
	// [{32 bits not-taken uvip}][{32 bits taken uvip}]
	PackedUVIPs uint64 `struc:"uint64,little"`
}

// Conditional reports whether the block ends in a conditional branch.
func (b Block) Conditional() bool { return b.PackedIndices&1 != 0 }

// TakenIndex returns the index of the block reached when the branch is taken.
func (b Block) TakenIndex() uint32 { return uint32(b.PackedIndices>>1) & IndirectIndex }

// NotTakenIndex returns the index of the fall-through block.
func (b Block) NotTakenIndex() uint32 { return uint32(b.PackedIndices >> 33) }

// TakenUVIP returns the slid address of the taken target.
func (b Block) TakenUVIP() uint32 { return uint32(b.PackedUVIPs) }

// NotTakenUVIP returns the slid address of the fall-through target.
func (b Block) NotTakenUVIP() uint32 { return uint32(b.PackedUVIPs >> 32) }

type header struct {
	Magic          uint64 `struc:"uint64,little"`
	BlockCount     uint64 `struc:"uint64,little"`
	Slide          uint64 `struc:"uint64,little"`
	DirectMapCount uint64 `struc:"uint64,little"`
}

type file struct {
	Magic          uint64   `struc:"uint64,little"`
	BlockCount     uint64   `struc:"uint64,little,sizeof=Blocks"`
	Slide          uint64   `struc:"uint64,little"`
	DirectMapCount uint64   `struc:"uint64,little,sizeof=DirectMap"`
	Blocks         []Block
	DirectMap      []uint32 `struc:"[]uint32,little"`
}

// A Map is a loaded hive.
type Map struct {
	path      string
	slide     uint64
	blocks    []Block
	directMap []uint32
	closed    bool
}

// mapFile maps the first size bytes of f read-only. unmapFile releases it.
var (
	mapFile = func(f *os.File, size int) ([]byte, error) {
		return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE|unix.MAP_POPULATE)
	}
	unmapFile = unix.Munmap
)

// Load reads the hive file at path.
func Load(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open hive")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "could not stat hive %s", path)
	}
	if fi.Size() < headerSize {
		return nil, errors.Wrapf(ErrCorrupt, "%s: file too small to contain a header", path)
	}
	data, err := mapFile(f, int(fi.Size()))
	if err != nil {
		return nil, errors.Wrapf(err, "could not mmap hive %s", path)
	}
	defer unmapFile(data)

	m, err := parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	m.path = path
	return m, nil
}

// Parse decodes a hive held in memory.
func Parse(data []byte) (*Map, error) {
	return parse(data)
}

func parse(data []byte) (*Map, error) {
	if len(data) < headerSize {
		return nil, errors.Wrap(ErrCorrupt, "file too small to contain a header")
	}
	var h header
	if err := struc.UnpackWithOrder(bytes.NewReader(data[:headerSize]), &h, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "could not read hive header")
	}
	if h.Magic != Magic {
		return nil, ErrBadMagic
	}
	hi, blocksSize := bits.Mul64(h.BlockCount, 16)
	if hi != 0 {
		return nil, errors.Wrap(ErrCorrupt, "block_count overflow")
	}
	hi, mapSize := bits.Mul64(h.DirectMapCount, 4)
	if hi != 0 {
		return nil, errors.Wrap(ErrCorrupt, "direct_map_count overflow")
	}
	avail := uint64(len(data) - headerSize)
	if blocksSize > avail {
		return nil, errors.Wrap(ErrCorrupt, "blocks buffer overrun")
	}
	if mapSize > avail-blocksSize {
		return nil, errors.Wrap(ErrCorrupt, "direct map buffer overrun")
	}

	var hf file
	if err := struc.UnpackWithOrder(bytes.NewReader(data), &hf, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "could not read hive tables")
	}
	return &Map{
		slide:     hf.Slide,
		blocks:    hf.Blocks,
		directMap: hf.DirectMap,
	}, nil
}

// Write encodes a hive to w.
func Write(w io.Writer, slide uint64, blocks []Block, directMap []uint32) error {
	hf := file{
		Magic:          Magic,
		BlockCount:     uint64(len(blocks)),
		Slide:          slide,
		DirectMapCount: uint64(len(directMap)),
		Blocks:         blocks,
		DirectMap:      directMap,
	}
	return struc.PackWithOrder(w, &hf, binary.LittleEndian)
}

// Path returns the file the map was loaded from, or "" if it was parsed
// from memory.
func (m *Map) Path() string { return m.path }

// Slide returns the value by which block addresses in the hive are slid.
func (m *Map) Slide() uint64 { return m.slide }

// BlockCount returns the number of blocks in the hive.
func (m *Map) BlockCount() uint64 { return uint64(len(m.blocks)) }

// Block returns block i.
func (m *Map) Block(i uint64) (Block, bool) {
	if i >= uint64(len(m.blocks)) {
		return Block{}, false
	}
	return m.blocks[i], true
}

// BlockIndex returns the index of the block starting at the unslid virtual
// address addr.
func (m *Map) BlockIndex(addr uint64) (uint32, bool) {
	i := addr - m.slide
	if i >= uint64(len(m.directMap)) {
		return 0, false
	}
	return m.directMap[i], true
}

// DescribeBlock writes a description of block i to w.
func (m *Map) DescribeBlock(w io.Writer, i uint64) error {
	b, ok := m.Block(i)
	if !ok {
		return fmt.Errorf("block %d out of range [0, %d)", i, len(m.blocks))
	}
	fmt.Fprintf(w, "Block %d:\n", i)
	fmt.Fprintf(w, "Not-taken index = %d, Taken index = %d, Conditional=%t\n",
		b.NotTakenIndex(), b.TakenIndex(), b.Conditional())
	fmt.Fprintf(w, "Not-taken VIP = %#x, Taken VIP = %#x\n", b.NotTakenUVIP(), b.TakenUVIP())
	return nil
}

// Close releases the map's tables. It is safe to call more than once.
func (m *Map) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.blocks = nil
	m.directMap = nil
	return nil
}
