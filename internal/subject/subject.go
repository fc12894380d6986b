// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Package subject launches the program under test. The program is started
// stopped under ptrace with address space randomization disabled, so that
// it can be pinned to a CPU and traced from its first instruction.
package subject

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// A Launcher starts and supervises subjects. All ptrace requests go
// through one locked OS thread, the tracer.
type Launcher struct {
	fc  chan func() error
	ec  chan error
	log logrus.FieldLogger
}

// NewLauncher starts the tracer thread. Close stops it.
func NewLauncher(log logrus.FieldLogger) *Launcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := &Launcher{
		fc:  make(chan func() error),
		ec:  make(chan error),
		log: log,
	}
	go ptraceRun(l.fc, l.ec)
	return l
}

// Close stops the tracer thread. The launcher must not be used afterwards.
func (l *Launcher) Close() {
	close(l.fc)
}

// A Process is a launched subject.
type Process struct {
	Pid  int
	Path string
	proc *os.Process
}

// Name returns the base name of the subject's executable.
func (p *Process) Name() string { return filepath.Base(p.Path) }

// Start launches argv stopped at its first instruction.
func (l *Launcher) Start(argv []string) (*Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("subject: empty command line")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, errors.Wrap(err, "subject")
	}
	proc, err := l.startProcess(path, argv, &os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
		Sys:   &syscall.SysProcAttr{Ptrace: true},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not start %s", path)
	}
	p := &Process{Pid: proc.Pid, Path: path, proc: proc}

	// Without PTRACE_O_TRACEEXEC a successful exec stops the child with SIGTRAP.
	status, err := l.wait4(p.Pid)
	if err != nil {
		return nil, errors.Wrapf(err, "wait for %s", path)
	}
	if !status.Stopped() || status.StopSignal() != unix.SIGTRAP {
		proc.Kill()
		return nil, fmt.Errorf("subject %s: unexpected status %#x after exec", path, uint32(status))
	}
	l.log.WithFields(logrus.Fields{"pid": p.Pid, "path": path}).Debug("subject started suspended")
	return p, nil
}

// Pin binds p to cpu and no other CPU.
func (l *Launcher) Pin(p *Process, cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(p.Pid, &set); err != nil {
		return errors.Wrapf(err, "could not pin pid %d to CPU %d", p.Pid, cpu)
	}
	l.log.WithFields(logrus.Fields{"pid": p.Pid, "cpu": cpu}).Debug("subject pinned")
	return nil
}

// Resume lets a stopped subject run.
func (l *Launcher) Resume(p *Process) error {
	return errors.Wrapf(l.ptraceCont(p.Pid, 0), "could not resume pid %d", p.Pid)
}

// An ExitError reports a subject that did not exit with status 0.
type ExitError struct {
	Pid    int
	Status unix.WaitStatus
}

func (e *ExitError) Error() string {
	if e.Status.Signaled() {
		return fmt.Sprintf("pid %d killed by %v", e.Pid, e.Status.Signal())
	}
	return fmt.Sprintf("pid %d exited with status %d", e.Pid, e.Status.ExitStatus())
}

// Wait waits for p to exit. Signals that stop it along the way are
// delivered. A nonzero exit is reported as an *ExitError.
func (l *Launcher) Wait(p *Process) error {
	for {
		status, err := l.wait4(p.Pid)
		if err != nil {
			return errors.Wrapf(err, "wait for pid %d", p.Pid)
		}
		switch {
		case status.Exited(), status.Signaled():
			p.proc.Release()
			l.log.WithFields(logrus.Fields{"pid": p.Pid, "status": status.ExitStatus()}).Info("subject finished")
			if status.Exited() && status.ExitStatus() == 0 {
				return nil
			}
			return &ExitError{Pid: p.Pid, Status: status}
		case status.Stopped():
			sig := status.StopSignal()
			if sig == unix.SIGTRAP {
				sig = 0
			}
			if err := l.ptraceCont(p.Pid, int(sig)); err != nil {
				return errors.Wrapf(err, "could not resume pid %d", p.Pid)
			}
		}
	}
}

// Kill terminates p.
func (l *Launcher) Kill(p *Process) error {
	return p.proc.Kill()
}
