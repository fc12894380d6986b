// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads honeycov's configuration file.
package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/honeybee-pt/honeycov/internal/capture"
	"github.com/honeybee-pt/honeycov/internal/coverage"
	"github.com/pkg/errors"
)

// DefaultFile is the configuration file read when none is named.
const DefaultFile = "honeycov.toml"

// Config is the configuration shared by honeycov's commands. Command line
// flags override it.
type Config struct {
	// Device is the honey driver's device node.
	Device string `toml:"device"`
	// CPU is the CPU the subject is pinned to and traced on.
	CPU uint16 `toml:"cpu"`
	// BufferCount is the number of ToPA entries allocated per CPU.
	BufferCount uint32 `toml:"buffer_count"`
	// PagePower sets the size of each buffer to 2**PagePower pages.
	PagePower uint8 `toml:"page_power"`
	// Strategy names the coverage accumulator.
	Strategy string `toml:"strategy"`
	// StatsDir is where stats_<subject>.csv files are appended to.
	StatsDir string `toml:"stats_dir"`
	// DecodeTimeout bounds a decode pass. Zero means no limit.
	DecodeTimeout time.Duration `toml:"decode_timeout"`
	// Filters are address filters in ParseFilter syntax.
	Filters []string `toml:"filters"`
	// Slide is the load address passed to the decoder. Zero means the
	// start of the first filter.
	Slide uint64 `toml:"slide"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device:      capture.DefaultDevice,
		BufferCount: 400,
		PagePower:   5,
		Strategy:    coverage.KindFullTrace64.String(),
		StatsDir:    ".",
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Wrapf(err, "decode config file %q", path)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return nil, errors.Errorf("config file %q: unknown keys %s", path, strings.Join(names, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config file %q", path)
	}
	return c, nil
}

// Validate checks that the strategy and filters parse.
func (c *Config) Validate() error {
	if _, err := c.Kind(); err != nil {
		return err
	}
	_, err := c.AddressFilters()
	return err
}

// Kind returns the configured accumulator kind.
func (c *Config) Kind() (coverage.Kind, error) {
	return coverage.ParseKind(c.Strategy)
}

// AddressFilters parses the configured filters.
func (c *Config) AddressFilters() (capture.Filters, error) {
	if len(c.Filters) > capture.MaxFilters {
		return nil, capture.ErrTooManyFilters
	}
	var fs capture.Filters
	for _, s := range c.Filters {
		if err := fs.Set(s); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// TraceSlide returns the slide for decoding traces captured with filters.
func (c *Config) TraceSlide(filters []capture.AddressFilter) uint64 {
	if c.Slide != 0 || len(filters) == 0 {
		return c.Slide
	}
	return filters[0].Start
}
