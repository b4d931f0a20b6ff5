package runner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode"
)

// lineStream yields the non-blank lines of a child's combined output in
// arrival order. It is forward-only: once Next returns false the stream is
// exhausted and Wait collects the exit status.
type lineStream struct {
	cmd  *exec.Cmd
	pipe *os.File
	r    *bufio.Reader
	stop func() bool

	line    string
	eof     bool
	readErr error
}

// exitStatus is the terminal state of a child process.
type exitStatus struct {
	Code    int
	Signal  string // set when the child was killed by a signal
	ReadErr error  // a read failure other than EOF, if any
}

// startLines spawns argv with stdout and stderr sharing a single pipe.
func startLines(ctx context.Context, argv []string, dir string, env []string) (*lineStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}
	// The child holds its own copy of the write end; closing ours lets the
	// reader see EOF once the child (and anything it spawned) exits.
	_ = pw.Close()

	// A killed child may leave grandchildren holding the pipe open, so
	// cancellation also unblocks the reader.
	stop := context.AfterFunc(ctx, func() {
		_ = pr.SetReadDeadline(time.Now())
	})

	return &lineStream{
		cmd:  cmd,
		pipe: pr,
		r:    bufio.NewReader(pr),
		stop: stop,
	}, nil
}

// Next advances to the next non-blank line, blocking until one arrives or
// the output ends.
func (s *lineStream) Next() bool {
	for !s.eof {
		raw, err := s.r.ReadString('\n')
		if err != nil {
			s.eof = true
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrDeadlineExceeded) {
				s.readErr = err
			}
		}
		line := strings.TrimRightFunc(raw, unicode.IsSpace)
		if line != "" {
			s.line = line
			return true
		}
	}
	return false
}

// Text returns the line produced by the last call to Next.
func (s *lineStream) Text() string { return s.line }

// Wait releases the pipe and waits for the child to exit.
func (s *lineStream) Wait() exitStatus {
	s.stop()
	_ = s.pipe.Close()

	st := exitStatus{ReadErr: s.readErr}
	// Wait reports a non-zero exit as *exec.ExitError; the status itself is
	// read from ProcessState below.
	_ = s.cmd.Wait()
	if s.cmd.ProcessState == nil {
		st.Code = -1
		return st
	}
	st.Code, st.Signal = decodeStatus(s.cmd.ProcessState)
	return st
}
