// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// MaxFilters is the number of address range filters the hardware supports.
const MaxFilters = 4

// An AddressFilter restricts tracing to the address range [Start, Stop].
type AddressFilter struct {
	Enabled bool
	Start   uint64
	Stop    uint64
}

// String returns f in the three-field form accepted by ParseFilter.
func (f AddressFilter) String() string {
	return fmt.Sprintf("%t-%#x-%#x", f.Enabled, f.Start, f.Stop)
}

// A FilterParseError is returned by ParseFilter for malformed input.
type FilterParseError struct {
	Input  string
	Fields []string
	Err    error
}

func (e *FilterParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not parse %q as a capture filter: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("could not parse %q as a capture filter: expected {start}-{end} or {enabled}-{start}-{end}, got %q after splitting", e.Input, e.Fields)
}

func (e *FilterParseError) Unwrap() error { return e.Err }

// ParseFilter parses "{start}-{end}" as an enabled filter, or
// "{enabled}-{start}-{end}", which is disabled only when enabled is "false".
// Addresses may carry a 0x, 0o or 0b prefix.
func ParseFilter(s string) (AddressFilter, error) {
	fields := strings.Split(s, "-")
	f := AddressFilter{Enabled: true}
	switch len(fields) {
	case 2:
	case 3:
		f.Enabled = fields[0] != "false"
		fields = fields[1:]
	default:
		return AddressFilter{}, &FilterParseError{Input: s, Fields: fields}
	}
	var err error
	if f.Start, err = strconv.ParseUint(fields[0], 0, 64); err != nil {
		return AddressFilter{}, &FilterParseError{Input: s, Err: err}
	}
	if f.Stop, err = strconv.ParseUint(fields[1], 0, 64); err != nil {
		return AddressFilter{}, &FilterParseError{Input: s, Err: err}
	}
	return f, nil
}

// Filters is a list of filters usable as a repeatable command line flag.
type Filters []AddressFilter

var _ pflag.Value = (*Filters)(nil)

func (fs *Filters) String() string {
	s := make([]string, len(*fs))
	for i, f := range *fs {
		s[i] = f.String()
	}
	return strings.Join(s, ",")
}

func (fs *Filters) Set(v string) error {
	f, err := ParseFilter(v)
	if err != nil {
		return err
	}
	*fs = append(*fs, f)
	return nil
}

func (fs *Filters) Type() string { return "filter" }
