// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testenv provides information about what functionality
// is available in the test environment, and skips tests that need
// hardware or privileges the machine does not offer.
package testenv

import (
	"os"
	"runtime"
	"testing"
)

// NeedsOS skips t unless it runs on goos.
func NeedsOS(t testing.TB, goos string) {
	t.Helper()
	if runtime.GOOS != goos {
		t.Skipf("skipping test: needs %s, running on %s", goos, runtime.GOOS)
	}
}

// MustHaveDevice skips t unless the device node at path can be opened for
// reading and writing.
func MustHaveDevice(t testing.TB, path string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Skipf("skipping test: %v", err)
	}
	f.Close()
}

// MustHaveRoot skips t unless it runs as root.
func MustHaveRoot(t testing.TB) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("skipping test: needs root")
	}
}

// MustHavePtrace skips t on systems where processes may not be traced.
func MustHavePtrace(t testing.TB) {
	t.Helper()
	NeedsOS(t, "linux")
	b, err := os.ReadFile("/proc/sys/kernel/yama/ptrace_scope")
	if err == nil && len(b) > 0 && b[0] == '3' {
		t.Skip("skipping test: ptrace disabled by yama")
	}
}
