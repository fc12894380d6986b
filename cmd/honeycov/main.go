// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// The honeycov tool traces a program with Intel Processor Trace, decodes
// the trace against the program's hive and measures the cost of several
// ways of keeping coverage.
// Run "honeycov help" for a list of commands.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/honeybee-pt/honeycov/internal/capture"
	"github.com/honeybee-pt/honeycov/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cmdRoot = &cobra.Command{
		Use:   "honeycov",
		Short: "honeycov traces a program and measures coverage strategies",
		Long: `honeycov runs a program pinned to one CPU, captures its Intel PT trace
through the honey driver and decodes the trace against a hive, feeding every
executed basic block to a coverage strategy.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("verbose"); v {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	cmdRun = &cobra.Command{
		Use:   "run <hive> -- <command> [args...]",
		Short: "trace a command, decode its trace and record the cost",
		Args:  cobra.MinimumNArgs(2),
		Run:   runRun,
	}

	cmdCapture = &cobra.Command{
		Use:   "capture -o <file> -- <command> [args...]",
		Short: "trace a command and save the raw trace",
		Args:  cobra.MinimumNArgs(1),
		Run:   runCapture,
	}

	cmdBaseline = &cobra.Command{
		Use:   "baseline -- <command> [args...]",
		Short: "run a command pinned under ptrace without tracing it",
		Args:  cobra.MinimumNArgs(1),
		Run:   runBaseline,
	}

	cmdDecode = &cobra.Command{
		Use:   "decode <hive> <trace file>",
		Short: "decode a saved trace",
		Args:  cobra.ExactArgs(2),
		Run:   runDecode,
	}

	cmdHive = &cobra.Command{
		Use:   "hive <hive> [block index...]",
		Short: "print a hive's header or describe some of its blocks",
		Args:  cobra.MinimumNArgs(1),
		Run:   runHive,
	}

	cmdFilter = &cobra.Command{
		Use:   "filter <filter>...",
		Short: "parse and print address filters",
		Args:  cobra.MinimumNArgs(1),
		Run:   runFilter,
	}

	cmdStrategies = &cobra.Command{
		Use:   "strategies",
		Short: "list coverage strategies",
		Args:  cobra.NoArgs,
		Run:   runStrategies,
	}
)

// filterFlags collects repeated --filter flags.
var filterFlags capture.Filters

func init() {
	pf := cmdRoot.PersistentFlags()
	pf.String("config", "", "configuration file (default ./"+config.DefaultFile+" if present)")
	pf.BoolP("verbose", "v", false, "log debugging information")
	pf.String("device", capture.DefaultDevice, "honey driver device node")
	pf.Uint16("cpu", 0, "CPU to pin the subject to and trace on")
	pf.Uint32P("buffer_count", "c", 400, "number of ToPA entries to allocate per CPU")
	pf.Uint8P("page_power", "p", 5, "allocate 2**page_power pages per ToPA entry")
	pf.StringP("strategy", "s", "FullTrace64Bit", "coverage strategy (see 'honeycov strategies')")
	pf.String("stats_dir", ".", "directory of the stats_<subject>.csv files")
	pf.Duration("decode_timeout", 0, "give up decoding after this long (0 for no limit)")
	pf.Uint64("slide", 0, "load address of the subject (default: start of the first filter)")
	pf.VarP(&filterFlags, "filter", "f", "address filter {start}-{end} or {enabled}-{start}-{end}; repeatable, at most 4")

	cmdCapture.Flags().StringP("out", "o", "", "trace file to write")
	cmdHive.Flags().Bool("describe_all", false, "describe every block")

	cmdRoot.AddCommand(cmdRun, cmdCapture, cmdBaseline, cmdDecode, cmdHive, cmdFilter, cmdStrategies)
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		os.Exit(2)
	}
}

func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}

// loadConfig reads the configuration file, if any, and applies the flags
// the user set on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg := config.Default()
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			path = config.DefaultFile
		}
	}
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
		logrus.WithField("path", path).Debug("loaded configuration")
	}

	if flags.Changed("device") {
		cfg.Device, _ = flags.GetString("device")
	}
	if flags.Changed("cpu") {
		cfg.CPU, _ = flags.GetUint16("cpu")
	}
	if flags.Changed("buffer_count") {
		cfg.BufferCount, _ = flags.GetUint32("buffer_count")
	}
	if flags.Changed("page_power") {
		cfg.PagePower, _ = flags.GetUint8("page_power")
	}
	if flags.Changed("strategy") {
		cfg.Strategy, _ = flags.GetString("strategy")
	}
	if flags.Changed("stats_dir") {
		cfg.StatsDir, _ = flags.GetString("stats_dir")
	}
	if flags.Changed("decode_timeout") {
		cfg.DecodeTimeout, _ = flags.GetDuration("decode_timeout")
	}
	if flags.Changed("slide") {
		cfg.Slide, _ = flags.GetUint64("slide")
	}
	if flags.Changed("filter") {
		cfg.Filters = cfg.Filters[:0]
		for _, f := range filterFlags {
			cfg.Filters = append(cfg.Filters, f.String())
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mustLoadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := loadConfig(cmd)
	if err != nil {
		exitf("%v\n", err)
	}
	return cfg
}

// ms formats d in milliseconds.
func ms(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
