package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deixis/procexec/internal/config"
	"github.com/deixis/procexec/internal/report"
	"github.com/deixis/procexec/internal/runner"
	"github.com/google/uuid"
)

// Step statuses.
const (
	StatusPass    = "pass"
	StatusFail    = "fail"    // exit status differs from the expected one
	StatusError   = "error"   // the command could not be run
	StatusUnknown = "unknown" // no check with that name is configured
)

// ErrNoChecks is returned when the configuration declares no checks.
var ErrNoChecks = errors.New("no checks configured")

// CheckResult holds the full outcome of a check run.
type CheckResult struct {
	Record *report.Record
	Steps  []StepResult
}

// Failed reports whether any step did not pass.
func (r *CheckResult) Failed() bool {
	for _, s := range r.Steps {
		if s.Status != StatusPass {
			return true
		}
	}
	return false
}

// StepResult holds the outcome of a single check.
type StepResult struct {
	Name     string
	Command  string
	Status   string
	Detail   string // error text or a short explanation of the status
	ExitCode int
	Expected int
	Output   []string
	Matches  []string // lines selected by the check's match pattern
}

// Check runs the named checks, or every configured check when names is
// empty. Checks run one after another and a failing check does not stop
// the remaining ones.
func (e *Engine) Check(ctx context.Context, names []string) (*CheckResult, error) {
	if len(e.Config.Checks) == 0 {
		return nil, ErrNoChecks
	}
	if len(names) == 0 {
		for _, c := range e.Config.Checks {
			names = append(names, c.Name)
		}
	}

	rec := &report.Record{
		ID:      uuid.New().String(),
		Kind:    report.Check,
		Started: time.Now(),
	}

	results := make([]StepResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, ok := e.Config.Check(name)
		if !ok {
			results = append(results, StepResult{
				Name:   name,
				Status: StatusUnknown,
				Detail: fmt.Sprintf("unknown check: %s", name),
			})
			continue
		}
		results = append(results, e.runStep(ctx, c))
	}

	rec.Duration = time.Since(rec.Started)
	for _, s := range results {
		rec.Steps = append(rec.Steps, report.StepRecord{
			Name:     s.Name,
			Command:  s.Command,
			Status:   s.Status,
			ExitCode: s.ExitCode,
			Expected: s.Expected,
			Detail:   s.Detail,
			Output:   s.Output,
			Matches:  s.Matches,
		})
	}
	return &CheckResult{Record: rec, Steps: results}, nil
}

func (e *Engine) runStep(ctx context.Context, c config.CheckConfig) StepResult {
	step := StepResult{
		Name:     c.Name,
		Command:  c.Command,
		Expected: c.Expected(),
	}

	var matches []string
	r := e.factory()(c)
	ok, err := r.ExecuteCheckReturn(ctx, runner.CheckOptions{
		Options: runner.Options{
			MatchRegex:        c.Match,
			Engine:            e.Config.RegexEngine(),
			RegexMatchHandler: func(m *runner.Match) { matches = append(matches, m.Line) },
			StoreOutputLog:    true,
		},
		ExpectedReturnCode: step.Expected,
	})
	if err != nil {
		step.Status = StatusError
		step.Detail = err.Error()
		return step
	}

	if res := r.Result(); res != nil {
		step.ExitCode = res.ExitCode
		step.Output = res.OutputLog
		if res.Signal != "" {
			step.Detail = "terminated by " + res.Signal
		}
	}
	if c.Match != "" {
		step.Matches = matches
	}
	if ok {
		step.Status = StatusPass
	} else {
		step.Status = StatusFail
		if step.Detail == "" {
			step.Detail = fmt.Sprintf("exit status %d, want %d", step.ExitCode, step.Expected)
		}
	}
	return step
}
