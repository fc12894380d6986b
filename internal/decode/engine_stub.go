// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !cgo || !honeybee

package decode

import "github.com/honeybee-pt/honeycov/internal/hive"

// Available reports whether the package was built with the decoder.
const Available = false

func newEngine(*hive.Map) (Engine, error) { return nil, ErrEngineUnavailable }
