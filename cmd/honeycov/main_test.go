// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmdRoot.SetOutput(&buf)
	cmdRoot.SetArgs(args)
	defer cmdRoot.SetOutput(nil)
	if err := cmdRoot.Execute(); err != nil {
		t.Fatalf("honeycov %s: %v", strings.Join(args, " "), err)
	}
	return buf.String()
}

func TestStrategies(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(execute(t, "strategies")), "\n")
	if len(lines) != 10 {
		t.Fatalf("got %d strategies, want 10:\n%s", len(lines), strings.Join(lines, "\n"))
	}
	if lines[0] != "FullTrace32Bit" || lines[9] != "CompressedTraceXorDiffULeb128" {
		t.Errorf("unexpected strategy order: %q ... %q", lines[0], lines[9])
	}
}

func TestFilterCommand(t *testing.T) {
	out := execute(t, "filter", "0x400000-0x401000", "false-16-32")
	for _, want := range []string{"true    0x400000 0x401000", "false   0x10     0x20"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "honeycov.toml")
	body := `
cpu = 1
strategy = "BlockHashSetCoverageInfo"
filters = ["0x1000-0x2000"]
stats_dir = "/tmp/stats"
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	cmd := cmdDecode
	if err := cmd.ParseFlags([]string{"--config", path, "--cpu", "2", "-f", "0x400000-0x500000"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CPU != 2 {
		t.Errorf("cpu = %d, want the flag's 2", cfg.CPU)
	}
	if cfg.Strategy != "BlockHashSetCoverageInfo" || cfg.StatsDir != "/tmp/stats" {
		t.Errorf("file settings lost: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"true-0x400000-0x500000"}, cfg.Filters); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}

	if err := cmd.ParseFlags([]string{"--strategy", "bloom"}); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(cmd); err == nil {
		t.Errorf("loadConfig accepted an unknown strategy")
	}
}
