// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package capture

import (
	"runtime"

	"github.com/pkg/errors"
)

var errUnsupported = errors.New("capture: honey driver is not available on " + runtime.GOOS)

func OpenDriver(device string) (Driver, error) { return nil, errUnsupported }

func schedAffinity(pid int) ([]int, error) { return nil, errUnsupported }
