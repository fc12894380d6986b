// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Honey driver ioctl packets. The layouts match hb_driver_packets.h.

const iocMagic = 0xab

type configureBuffersPacket struct {
	Count          uint32
	PageCountPower uint8
	_              [3]byte
}

type setEnabledPacket struct {
	CPU         uint16
	Enabled     uint8
	ResetOutput uint8
}

type rangeFilterPacket struct {
	Start   uint64
	Stop    uint64
	Enabled uint8
	_       [7]byte
}

type configureTracePacket struct {
	CPU     uint16
	_       [6]byte
	Filters [MaxFilters]rangeFilterPacket
	PID     uint64
}

type traceLengthsPacket struct {
	CPU             uint16
	_               [6]byte
	PacketByteCount *uint64
	BufferLength    *uint64
}

// ior computes _IOR(iocMagic, nr, size).
func ior(nr, size uintptr) uintptr {
	const iocRead = 2
	return iocRead<<30 | size<<16 | iocMagic<<8 | nr
}

var (
	iocConfigureBuffers = ior(1, unsafe.Sizeof(configureBuffersPacket{}))
	iocSetEnabled       = ior(2, unsafe.Sizeof(setEnabledPacket{}))
	iocConfigureTrace   = ior(3, unsafe.Sizeof(configureTracePacket{}))
	iocGetTraceLengths  = ior(4, unsafe.Sizeof(traceLengthsPacket{}))
)

// ioctlDriver talks to the honey driver's device node.
type ioctlDriver struct {
	f *os.File
}

// OpenDriver opens the honey driver device node.
func OpenDriver(device string) (Driver, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, "could not open honey driver")
	}
	return &ioctlDriver{f: f}, nil
}

func (d *ioctlDriver) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *ioctlDriver) ConfigureBuffers(count uint32, pagePower uint8) error {
	p := configureBuffersPacket{Count: count, PageCountPower: pagePower}
	return d.ioctl(iocConfigureBuffers, unsafe.Pointer(&p))
}

func (d *ioctlDriver) SetEnabled(cpu uint16, enabled, reset bool) error {
	p := setEnabledPacket{CPU: cpu, Enabled: b2u(enabled), ResetOutput: b2u(reset)}
	return d.ioctl(iocSetEnabled, unsafe.Pointer(&p))
}

func (d *ioctlDriver) ConfigureTrace(cpu uint16, pid uint64, filters [MaxFilters]AddressFilter) error {
	p := configureTracePacket{CPU: cpu, PID: pid}
	for i, f := range filters {
		p.Filters[i] = rangeFilterPacket{Start: f.Start, Stop: f.Stop, Enabled: b2u(f.Enabled)}
	}
	return d.ioctl(iocConfigureTrace, unsafe.Pointer(&p))
}

func (d *ioctlDriver) TraceLengths(cpu uint16) (packets, length uint64, err error) {
	p := traceLengthsPacket{CPU: cpu, PacketByteCount: &packets, BufferLength: &length}
	err = d.ioctl(iocGetTraceLengths, unsafe.Pointer(&p))
	return packets, length, err
}

func (d *ioctlDriver) MapTrace(cpu uint16, length uint64) ([]byte, error) {
	off := int64(os.Getpagesize()) * int64(cpu)
	return unix.Mmap(int(d.f.Fd()), off, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func (d *ioctlDriver) Unmap(b []byte) error { return unix.Munmap(b) }

func (d *ioctlDriver) Close() error { return d.f.Close() }

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func schedAffinity(pid int) ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(pid, &set); err != nil {
		return nil, err
	}
	var cpus []int
	for i := 0; i < 1024; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
