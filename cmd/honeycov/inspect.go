// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/honeybee-pt/honeycov/internal/capture"
	"github.com/honeybee-pt/honeycov/internal/coverage"
	"github.com/honeybee-pt/honeycov/internal/hive"
	"github.com/honeybee-pt/honeycov/internal/stats"
	"github.com/honeybee-pt/honeycov/internal/tracefile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func runDecode(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(cmd)
	h, trace, err := tracefile.Load(args[1])
	if err != nil {
		exitf("%v\n", err)
	}
	slide := h.Slide
	if cmd.Flags().Changed("slide") {
		slide = cfg.Slide
	}
	m, err := hive.Load(args[0])
	if err != nil {
		exitf("%v\n", err)
	}
	logrus.WithFields(logrus.Fields{"subject": h.Subject, "cpu": h.CPU, "bytes": len(trace)}).Info("loaded trace")

	clock := stats.NewClock()
	acc, err := decodeTrace(cfg, m, trace, slide, clock)
	if err != nil {
		exitf("%v\n", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "decoded in %s\n", ms(clock.Between("configure decoder", "decode")))
	acc.PrintResult(cmd.OutOrStdout())
}

func runHive(cmd *cobra.Command, args []string) {
	m, err := hive.Load(args[0])
	if err != nil {
		exitf("%v\n", err)
	}
	defer m.Close()
	w := cmd.OutOrStdout()

	all, _ := cmd.Flags().GetBool("describe_all")
	if len(args) == 1 && !all {
		t := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
		fmt.Fprintf(t, "path\t%s\n", m.Path())
		fmt.Fprintf(t, "slide\t%#x\n", m.Slide())
		fmt.Fprintf(t, "blocks\t%d\n", m.BlockCount())
		t.Flush()
		return
	}
	var idx []uint64
	if all {
		for i := uint64(0); i < m.BlockCount(); i++ {
			idx = append(idx, i)
		}
	}
	for _, a := range args[1:] {
		i, err := strconv.ParseUint(a, 0, 64)
		if err != nil {
			exitf("bad block index %q: %v\n", a, err)
		}
		idx = append(idx, i)
	}
	for _, i := range idx {
		if err := m.DescribeBlock(w, i); err != nil {
			exitf("%v\n", err)
		}
	}
}

func runFilter(cmd *cobra.Command, args []string) {
	t := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 1, ' ', 0)
	fmt.Fprintf(t, "enabled\tstart\tstop\n")
	for _, a := range args {
		f, err := capture.ParseFilter(a)
		if err != nil {
			exitf("%v\n", err)
		}
		fmt.Fprintf(t, "%t\t%#x\t%#x\n", f.Enabled, f.Start, f.Stop)
	}
	t.Flush()
}

func runStrategies(cmd *cobra.Command, args []string) {
	for _, k := range coverage.Kinds() {
		fmt.Fprintln(cmd.OutOrStdout(), k)
	}
}
