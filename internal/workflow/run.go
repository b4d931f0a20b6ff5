package workflow

import (
	"context"
	"time"

	"github.com/deixis/procexec/internal/match"
	"github.com/deixis/procexec/internal/report"
	"github.com/deixis/procexec/internal/runner"
)

// RunRequest describes a single ad-hoc execution.
type RunRequest struct {
	Command string
	Dir     string        // resolved like a check directory
	Shell   *bool         // nil uses the configured default
	Match   string        // anchored line pattern; empty keeps no matches
	Engine  match.Engine  // empty uses the configured engine
	Expect  *int          // nil compares against ExitOK
	Timeout time.Duration // zero uses the configured timeout

	// OnMatch is called for each matched line as it is produced.
	OnMatch runner.MatchHandler
}

// RunResult is the outcome of Run.
type RunResult struct {
	Record  *report.Record
	Result  *runner.Result
	Passed  bool     // exit status equals Expect, or zero when Expect is nil
	Matches []string // nil when no pattern was given
}

// Run executes req.Command once with output buffering and builds a Run
// record for it. The record is not saved.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	shell := e.Config.UseShell()
	if req.Shell != nil {
		shell = *req.Shell
	}
	timeout := e.Config.Timeout()
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	engine := req.Engine
	if engine == "" {
		engine = e.Config.RegexEngine()
	}

	r := runner.New(req.Command,
		runner.WithShell(shell),
		runner.WithDir(e.ResolveDir(req.Dir)),
		runner.WithTimeout(timeout),
		runner.WithLogger(e.Logf),
	)

	var matches []string
	if req.Match != "" {
		matches = []string{}
	}
	opts := runner.Options{
		MatchRegex: req.Match,
		Engine:     engine,
		RegexMatchHandler: func(m *runner.Match) {
			if req.Match == "" {
				return
			}
			matches = append(matches, m.Line)
			if req.OnMatch != nil {
				req.OnMatch(m)
			}
		},
		StoreOutputLog: true,
	}

	want := runner.ExitOK
	if req.Expect != nil {
		want = *req.Expect
	}
	passed, err := r.ExecuteCheckReturn(ctx, runner.CheckOptions{Options: opts, ExpectedReturnCode: want})
	if err != nil {
		return nil, err
	}

	res := r.Result()
	rec := report.FromResult(res)
	rec.Expected = req.Expect
	rec.Matches = matches
	return &RunResult{
		Record:  rec,
		Result:  res,
		Passed:  passed,
		Matches: matches,
	}, nil
}
