// Package report persists execution records so their output can be
// inspected after the run, by run ID.
package report

import (
	"fmt"
	"time"

	"github.com/deixis/procexec/internal/match"
	"github.com/deixis/procexec/internal/runner"
)

// Kind identifies the type of a record.
type Kind string

const (
	// Run is a single command execution.
	Run Kind = "run"
	// Check is a pipeline of configured checks.
	Check Kind = "check"
)

// Store persists and retrieves records.
type Store interface {
	Save(rec *Record) error
	Load(runID string) (*Record, error)
}

// Record holds what is kept about a run.
type Record struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	// Single execution fields.
	Command  string   `json:"command,omitempty"`
	Dir      string   `json:"dir,omitempty"`
	ExitCode int      `json:"exit_code"`
	Signal   string   `json:"signal,omitempty"`
	Expected *int     `json:"expected,omitempty"`
	Output   []string `json:"output,omitempty"`
	Matches  []string `json:"matches,omitempty"`

	// Check pipeline fields.
	Steps []StepRecord `json:"steps,omitempty"`

	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// StepRecord is the outcome of one check in a pipeline.
type StepRecord struct {
	Name     string   `json:"name"`
	Command  string   `json:"command"`
	Status   string   `json:"status"`
	ExitCode int      `json:"exit_code"`
	Expected int      `json:"expected"`
	Detail   string   `json:"detail,omitempty"`
	Output   []string `json:"output,omitempty"`
	Matches  []string `json:"matches,omitempty"`
}

// FromResult builds a Run record from a completed execution.
func FromResult(res *runner.Result) *Record {
	return &Record{
		ID:       res.RunID,
		Kind:     Run,
		Command:  res.Command,
		Dir:      res.Dir,
		ExitCode: res.ExitCode,
		Signal:   res.Signal,
		Output:   res.OutputLog,
		Started:  res.Started,
		Duration: res.Duration,
	}
}

// Passed reports whether a Run record met its expectation. Records
// without an expectation pass on a zero exit.
func (r *Record) Passed() bool {
	if r.Kind == Check {
		for _, s := range r.Steps {
			if s.Status != "pass" {
				return false
			}
		}
		return true
	}
	want := runner.ExitOK
	if r.Expected != nil {
		want = *r.Expected
	}
	return r.ExitCode == want
}

// Expect returns an error if the record's Kind does not match want.
func (r *Record) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}

// Line is a stored output line with its origin.
type Line struct {
	Step string // check name; empty for Run records
	Text string
}

// Lines returns the stored output of rec, keeping only lines that start
// with a match of pattern when it is non-empty.
func Lines(rec *Record, pattern string, engine match.Engine) ([]Line, error) {
	var m match.Matcher
	if pattern != "" {
		var err error
		m, err = match.Compile(pattern, engine)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
		}
	}

	keep := func(text string) bool {
		if m == nil {
			return true
		}
		_, ok := m.MatchPrefix(text)
		return ok
	}

	var out []Line
	for _, text := range rec.Output {
		if keep(text) {
			out = append(out, Line{Text: text})
		}
	}
	for _, s := range rec.Steps {
		for _, text := range s.Output {
			if keep(text) {
				out = append(out, Line{Step: s.Name, Text: text})
			}
		}
	}
	return out, nil
}
