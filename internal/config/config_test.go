// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/honeybee-pt/honeycov/internal/capture"
	"github.com/honeybee-pt/honeycov/internal/coverage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
cpu = 3
page_power = 8
strategy = "edgebtreesetcoverageinfo"
decode_timeout = "30s"
filters = ["0x400000-0x500000", "false-0x10-0x20"]
`)
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.CPU = 3
	want.PagePower = 8
	want.Strategy = "edgebtreesetcoverageinfo"
	want.DecodeTimeout = 30 * time.Second
	want.Filters = []string{"0x400000-0x500000", "false-0x10-0x20"}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	k, err := c.Kind()
	if err != nil || k != coverage.KindEdgeBTreeSet {
		t.Errorf("Kind = %v, %v", k, err)
	}
	fs, err := c.AddressFilters()
	if err != nil {
		t.Fatal(err)
	}
	if got := c.TraceSlide(fs); got != 0x400000 {
		t.Errorf("TraceSlide = %#x, want 0x400000", got)
	}
	c.Slide = 0x1000
	if got := c.TraceSlide(fs); got != 0x1000 {
		t.Errorf("TraceSlide with explicit slide = %#x", got)
	}
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name, body, want string
	}{
		{"unknown key", "cpus = 1\n", "unknown keys cpus"},
		{"bad strategy", `strategy = "bloom"` + "\n", "bloom"},
		{"bad filter", `filters = ["0x10"]` + "\n", "capture filter"},
		{"syntax", "cpu = \n", "decode config file"},
		{"too many filters", `filters = ["1-2", "1-2", "1-2", "1-2", "1-2"]` + "\n", "too many filters"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Load error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
	if c.Device != capture.DefaultDevice || c.BufferCount != 400 || c.PagePower != 5 {
		t.Errorf("unexpected defaults %+v", c)
	}
}
