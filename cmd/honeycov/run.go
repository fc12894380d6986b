// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/honeybee-pt/honeycov/internal/capture"
	"github.com/honeybee-pt/honeycov/internal/config"
	"github.com/honeybee-pt/honeycov/internal/coverage"
	"github.com/honeybee-pt/honeycov/internal/decode"
	"github.com/honeybee-pt/honeycov/internal/hive"
	"github.com/honeybee-pt/honeycov/internal/stats"
	"github.com/honeybee-pt/honeycov/internal/subject"
	"github.com/honeybee-pt/honeycov/internal/tracefile"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// commandLine returns the subject's command line: the arguments after "--",
// or all of args past the first skip if there is no dash.
func commandLine(cmd *cobra.Command, args []string, skip int) []string {
	if n := cmd.ArgsLenAtDash(); n >= 0 {
		if n != skip {
			exitf("%s: expected %d arguments before --, got %d\n", cmd.Name(), skip, n)
		}
		args = args[n:]
	} else {
		args = args[skip:]
	}
	if len(args) == 0 {
		exitf("%s: no command to run\n", cmd.Name())
	}
	return args
}

// traceSubject runs argv pinned to the configured CPU and returns its trace.
func traceSubject(cfg *config.Config, filters []capture.AddressFilter, argv []string, clock *stats.Clock) (*subject.Process, []byte, error) {
	log := logrus.StandardLogger()
	l := subject.NewLauncher(log)
	defer l.Close()

	p, err := l.Start(argv)
	if err != nil {
		return nil, nil, err
	}
	clock.Mark("spawn child")
	started := false
	defer func() {
		if !started {
			l.Kill(p)
		}
	}()
	if err := l.Pin(p, int(cfg.CPU)); err != nil {
		return nil, nil, err
	}
	clock.Mark("cpu pinned")

	s, err := capture.Open(cfg.Device, cfg.CPU, log)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()
	if err := s.SetBufferSize(cfg.BufferCount, cfg.PagePower); err != nil {
		return nil, nil, err
	}
	if err := s.ConfigureFilters(p.Pid, filters); err != nil {
		return nil, nil, err
	}
	if err := s.SetTraceEnable(true, true); err != nil {
		return nil, nil, err
	}

	clock.Mark("resume")
	if err := l.Resume(p); err != nil {
		return nil, nil, err
	}
	started = true
	werr := l.Wait(p)
	clock.Mark("child exit")
	if werr != nil {
		var ee *subject.ExitError
		if !errors.As(werr, &ee) {
			return nil, nil, werr
		}
		log.WithError(werr).Warn("subject failed")
	}

	if err := s.SetTraceEnable(false, false); err != nil {
		return nil, nil, err
	}
	trace, err := s.Trace()
	if err != nil {
		return nil, nil, err
	}
	clock.Mark("get trace")
	log.WithFields(logrus.Fields{"bytes": len(trace), "pid": p.Pid}).Info("captured trace")
	return p, trace, nil
}

// decodeTrace decodes trace into a new accumulator of the configured kind.
func decodeTrace(cfg *config.Config, m *hive.Map, trace []byte, slide uint64, clock *stats.Clock) (coverage.Accumulator, error) {
	kind, err := cfg.Kind()
	if err != nil {
		return nil, err
	}
	acc, err := coverage.New(kind, m.Slide())
	if err != nil {
		return nil, err
	}
	sess, err := decode.NewSession(m, logrus.StandardLogger())
	if err != nil {
		m.Close()
		return nil, err
	}
	defer sess.Close()
	if err := sess.Reconfigure(trace, slide); err != nil {
		return nil, err
	}
	clock.Mark("configure decoder")

	if cfg.DecodeTimeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DecodeTimeout)
		defer cancel()
		err = sess.DecodeContext(ctx, acc.RecordBlock)
	} else {
		err = sess.Decode(acc.RecordBlock)
	}
	clock.Mark("decode")
	if err != nil {
		n, _ := acc.ReportSizes()
		return acc, errors.Wrapf(err, "decode stopped after %d values", n)
	}
	return acc, nil
}

func runRun(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(cmd)
	argv := commandLine(cmd, args, 1)
	filters, err := cfg.AddressFilters()
	if err != nil {
		exitf("%v\n", err)
	}

	clock := stats.NewClock()
	m, err := hive.Load(args[0])
	if err != nil {
		exitf("%v\n", err)
	}
	clock.Mark("load hive")

	p, trace, err := traceSubject(cfg, filters, argv, clock)
	if err != nil {
		m.Close()
		exitf("%v\n", err)
	}
	acc, err := decodeTrace(cfg, m, trace, cfg.TraceSlide(filters), clock)
	if err != nil {
		exitf("%v\n", err)
	}
	values, bytes := acc.ReportSizes()
	clock.Mark("report")

	clock.Log(logrus.StandardLogger())
	r := &stats.Report{
		Strategy: acc.Name(),
		Total:    clock.Total(),
		Child:    clock.Between("resume", "child exit"),
		Decode:   clock.Between("configure decoder", "decode"),
		Values:   values,
		Bytes:    bytes,
	}
	fmt.Printf("percent slowdown: %.2f\n", r.Slowdown())
	acc.PrintResult(os.Stdout)
	if err := stats.Append(cfg.StatsDir, p.Path, r); err != nil {
		exitf("%v\n", err)
	}
}

func runCapture(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(cmd)
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		exitf("capture: no output file (-o)\n")
	}
	argv := commandLine(cmd, args, 0)
	filters, err := cfg.AddressFilters()
	if err != nil {
		exitf("%v\n", err)
	}

	clock := stats.NewClock()
	p, trace, err := traceSubject(cfg, filters, argv, clock)
	if err != nil {
		exitf("%v\n", err)
	}
	h := tracefile.Header{CPU: cfg.CPU, Slide: cfg.TraceSlide(filters), Subject: p.Name()}
	if err := tracefile.Save(out, h, trace); err != nil {
		exitf("%v\n", err)
	}
	fmt.Printf("wrote %d trace bytes to %s (child ran %s)\n", len(trace), out, ms(clock.Between("resume", "child exit")))
}

func runBaseline(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(cmd)
	argv := commandLine(cmd, args, 0)

	l := subject.NewLauncher(logrus.StandardLogger())
	defer l.Close()
	clock := stats.NewClock()
	p, err := l.Start(argv)
	if err != nil {
		exitf("%v\n", err)
	}
	clock.Mark("spawn child")
	if err := l.Pin(p, int(cfg.CPU)); err != nil {
		l.Kill(p)
		exitf("%v\n", err)
	}
	clock.Mark("resume")
	if err := l.Resume(p); err != nil {
		l.Kill(p)
		exitf("%v\n", err)
	}
	werr := l.Wait(p)
	clock.Mark("child exit")
	if werr != nil {
		logrus.WithError(werr).Warn("subject failed")
	}
	clock.Log(logrus.StandardLogger())
	fmt.Printf("child execution: %s\n", ms(clock.Between("resume", "child exit")))
}
