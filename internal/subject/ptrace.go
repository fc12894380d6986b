// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package subject

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// ptraceRun runs all the closures from fc on a dedicated OS thread. Errors
// are returned on ec. Both channels must be unbuffered, to ensure that the
// resultant error is sent back to the same goroutine that sent the closure.
func ptraceRun(fc chan func() error, ec chan error) {
	if cap(fc) != 0 || cap(ec) != 0 {
		panic("ptraceRun was given buffered channels")
	}
	runtime.LockOSThread()
	for f := range fc {
		ec <- f()
	}
}

func (l *Launcher) do(f func() error) error {
	l.fc <- f
	return <-l.ec
}

// addrNoRandomize is ADDR_NO_RANDOMIZE from <linux/personality.h>.
const addrNoRandomize = 0x0040000

// personality calls personality(2). 0xffffffff queries without changing.
func personality(persona uint64) (int, error) {
	r, _, errno := unix.RawSyscall(unix.SYS_PERSONALITY, uintptr(persona), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}

// startProcess starts name with ASLR disabled. The personality is set on
// the ptrace thread only, which the child inherits, and is restored after
// the fork.
func (l *Launcher) startProcess(name string, argv []string, attr *os.ProcAttr) (proc *os.Process, err error) {
	err = l.do(func() error {
		old, err := personality(0xffffffff)
		if err != nil {
			return err
		}
		if _, err := personality(uint64(old) | addrNoRandomize); err != nil {
			return err
		}
		var err1 error
		proc, err1 = os.StartProcess(name, argv, attr)
		if _, err := personality(uint64(old)); err != nil && err1 == nil {
			err1 = err
		}
		return err1
	})
	return proc, err
}

func (l *Launcher) ptraceCont(pid int, signal int) error {
	return l.do(func() error {
		return unix.PtraceCont(pid, signal)
	})
}

func (l *Launcher) wait4(pid int) (status unix.WaitStatus, err error) {
	err = l.do(func() error {
		_, err1 := unix.Wait4(pid, &status, 0, nil)
		return err1
	})
	return status, err
}
