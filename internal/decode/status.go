// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package decode

import "fmt"

// A Status is a terminal condition reported by the trace decoder.
// Status values are errors so that errors.Is can match them against a
// *DecodeError.
type Status int

const (
	NoError Status = iota
	// EndOfStream means the whole trace was decoded.
	EndOfStream
	Internal
	// CouldNotSync means no PSB packet was found to synchronize on.
	CouldNotSync
	// TraceDesync means the trace disagrees with the hive. Either the
	// decoder is buggy or the hive does not describe the traced binary.
	TraceDesync
	UnsupportedTracePacket
	// NoMap means a target address is missing from the hive.
	NoMap
)

var statusNames = [...]string{
	NoError:                "no error",
	EndOfStream:            "end of stream",
	Internal:               "internal decoder error",
	CouldNotSync:           "could not sync",
	TraceDesync:            "trace desync",
	UnsupportedTracePacket: "unsupported trace packet",
	NoMap:                  "address not in binary map",
}

func (s Status) known() bool { return s >= 0 && int(s) < len(statusNames) }

func (s Status) String() string {
	if s.known() {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) Error() string { return "decode: " + s.String() }
