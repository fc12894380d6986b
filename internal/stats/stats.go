// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats times a tracing run and records its cost.
package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// A Mark is a named point in time.
type Mark struct {
	Name string
	At   time.Time
}

// A Clock records checkpoints of a run.
type Clock struct {
	now   func() time.Time
	marks []Mark
}

// NewClock returns a clock whose first mark, "start", is now.
func NewClock() *Clock {
	return newClock(time.Now)
}

func newClock(now func() time.Time) *Clock {
	c := &Clock{now: now}
	c.Mark("start")
	return c
}

// Mark records a checkpoint named name.
func (c *Clock) Mark(name string) {
	c.marks = append(c.marks, Mark{name, c.now()})
}

func (c *Clock) at(name string) (time.Time, bool) {
	for _, m := range c.marks {
		if m.Name == name {
			return m.At, true
		}
	}
	return time.Time{}, false
}

// Between returns the time from mark from to mark to, or 0 if either is
// missing.
func (c *Clock) Between(from, to string) time.Duration {
	a, ok1 := c.at(from)
	b, ok2 := c.at(to)
	if !ok1 || !ok2 {
		return 0
	}
	return b.Sub(a)
}

// Total returns the time from the first mark to the last.
func (c *Clock) Total() time.Duration {
	return c.marks[len(c.marks)-1].At.Sub(c.marks[0].At)
}

// Log logs the time taken by each step, named after the mark ending it.
func (c *Clock) Log(log logrus.FieldLogger) {
	fields := logrus.Fields{}
	for i := 1; i < len(c.marks); i++ {
		fields[c.marks[i].Name] = c.marks[i].At.Sub(c.marks[i-1].At)
	}
	log.WithFields(fields).WithField("total", c.Total()).Info("timings")
}

// A Report is the outcome of one traced run.
type Report struct {
	Strategy string
	Total    time.Duration
	Child    time.Duration // subject execution
	Decode   time.Duration
	Values   int
	Bytes    int
}

// Slowdown returns the whole run's time as a percentage of the subject's
// own execution time.
func (r *Report) Slowdown() float64 {
	if r.Child <= 0 {
		return 0
	}
	return float64(r.Total) / float64(r.Child) * 100
}

// Record returns the report as a CSV record:
// name, percent slowdown, child ms, decode ms, value count, byte estimate.
func (r *Report) Record() []string {
	return []string{
		r.Strategy,
		strconv.FormatFloat(r.Slowdown(), 'f', 2, 64),
		strconv.FormatInt(r.Child.Milliseconds(), 10),
		strconv.FormatInt(r.Decode.Milliseconds(), 10),
		strconv.Itoa(r.Values),
		strconv.Itoa(r.Bytes),
	}
}

// FileName returns the stats file for the subject at path.
func FileName(dir, path string) string {
	return filepath.Join(dir, fmt.Sprintf("stats_%s.csv", filepath.Base(path)))
}

// Append appends r to the stats file of the subject at path.
func Append(dir, path string, r *Report) error {
	name := FileName(dir, path)
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return errors.Wrap(err, "could not open stats file")
	}
	w := csv.NewWriter(f)
	w.Write(r.Record())
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.Wrapf(err, "could not write %s", name)
	}
	return errors.Wrapf(f.Close(), "could not write %s", name)
}
