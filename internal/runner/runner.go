// Package runner executes a command as a child process, streams its
// combined stdout and stderr line by line, optionally filters lines through
// a pattern and buffers them, and records the exit status.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/deixis/procexec/internal/match"
	"github.com/google/uuid"
)

// ExitOK is the conventional success exit status.
const ExitOK = 0

// LogFunc receives lifecycle messages and every produced output line.
type LogFunc func(format string, args ...any)

// Match is handed to a MatchHandler for each selected line.
type Match struct {
	Line string
	// Groups holds the matched prefix at index 0 followed by the capture
	// groups. It is nil when no pattern is configured.
	Groups []string

	names []string
}

// Group returns capture group i, or "" if it does not exist.
func (m *Match) Group(i int) string {
	if i < 0 || i >= len(m.Groups) {
		return ""
	}
	return m.Groups[i]
}

// Named returns the capture group called name, or "".
func (m *Match) Named(name string) string {
	if name == "" {
		return ""
	}
	for i, n := range m.names {
		if n == name {
			return m.Group(i)
		}
	}
	return ""
}

// MatchHandler is invoked synchronously, in line order.
type MatchHandler func(m *Match)

// Options controls a single execution.
type Options struct {
	// MatchRegex selects the lines passed to RegexMatchHandler. It must
	// match at the start of the line. When empty every line is passed.
	MatchRegex string
	// Engine compiles MatchRegex. Defaults to match.RE2.
	Engine match.Engine
	// RegexMatchHandler may be nil.
	RegexMatchHandler MatchHandler
	// StoreOutputLog retains every produced line in OutputLog.
	StoreOutputLog bool
}

// CheckOptions extends Options with the exit status a check expects.
type CheckOptions struct {
	Options
	ExpectedReturnCode int // default ExitOK
}

// Runner holds a command and the outcome of its most recent execution.
// A Runner can be executed any number of times, but only one execution
// may be in flight at once.
type Runner struct {
	command string
	shell   bool
	dir     string
	env     []string
	timeout time.Duration
	logf    LogFunc

	running atomic.Bool

	exitCode  *int
	outputLog []string
	last      *Result
}

// Option configures a Runner.
type Option func(*Runner)

// WithShell selects whether the command is interpreted by the host shell.
// The default is true. Without a shell, the command is split into
// arguments with POSIX quoting rules and executed directly.
func WithShell(useShell bool) Option {
	return func(r *Runner) { r.shell = useShell }
}

// WithDir sets the working directory. "~" and environment variables are
// expanded when the command runs.
func WithDir(dir string) Option {
	return func(r *Runner) { r.dir = dir }
}

// WithLogger replaces the default debug-level sink. A nil LogFunc
// disables logging.
func WithLogger(logf LogFunc) Option {
	return func(r *Runner) {
		if logf == nil {
			logf = func(string, ...any) {}
		}
		r.logf = logf
	}
}

// WithTimeout kills the child once d has elapsed. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env []string) Option {
	return func(r *Runner) { r.env = slices.Clone(env) }
}

// New creates a Runner for command.
func New(command string, opts ...Option) *Runner {
	r := &Runner{
		command: command,
		shell:   true,
		logf:    debugLog,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewArgs creates a Runner for args joined with single spaces. Whitespace
// inside an argument is not preserved as a boundary.
func NewArgs(args []string, opts ...Option) *Runner {
	return New(strings.Join(args, " "), opts...)
}

func debugLog(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...))
}

// Command returns the command text.
func (r *Runner) Command() string { return r.command }

// UsesShell reports whether the command is run through the host shell.
func (r *Runner) UsesShell() bool { return r.shell }

// Dir returns the configured working directory, unexpanded.
func (r *Runner) Dir() string { return r.dir }

// ExitCode returns the exit status of the most recent execution. The
// second result is false before any execution has completed.
func (r *Runner) ExitCode() (int, bool) {
	if r.exitCode == nil {
		return 0, false
	}
	return *r.exitCode, true
}

// OutputLog returns the lines buffered by the most recent execution, or
// nil if buffering was not requested.
func (r *Runner) OutputLog() []string {
	return slices.Clone(r.outputLog)
}

// Result returns a snapshot of the most recent completed execution, or nil.
func (r *Runner) Result() *Result {
	if r.last == nil {
		return nil
	}
	res := *r.last
	res.OutputLog = slices.Clone(r.last.OutputLog)
	return &res
}

// Execute runs the command to completion and returns its exit status.
//
// Lines are produced with trailing whitespace removed; lines that are
// empty after trimming are dropped before buffering, matching and logging.
// A non-zero exit is not an error. Errors are returned only when the
// pattern does not compile (*PatternError), the process cannot be started
// (*SpawnError), or another execution is in flight (ErrBusy).
func (r *Runner) Execute(ctx context.Context, opts Options) (int, error) {
	if !r.running.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer r.running.Store(false)

	r.exitCode = nil
	r.last = nil
	if opts.StoreOutputLog {
		r.outputLog = []string{}
	} else {
		r.outputLog = nil
	}

	var matcher match.Matcher
	if opts.MatchRegex != "" {
		m, err := match.Compile(opts.MatchRegex, opts.Engine)
		if err != nil {
			return 0, &PatternError{Pattern: opts.MatchRegex, Err: err}
		}
		matcher = m
	}
	handler := opts.RegexMatchHandler
	if handler == nil {
		handler = func(*Match) {}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	runID := uuid.New().String()
	started := time.Now()

	r.logf("Executing process '%s'", r.command)
	dir, err := expandDir(r.dir)
	if err != nil {
		return 0, &SpawnError{Command: r.command, Err: err}
	}
	argv, err := r.argv()
	if err != nil {
		return 0, &SpawnError{Command: r.command, Err: err}
	}
	lines, err := startLines(ctx, argv, dir, r.env)
	if err != nil {
		return 0, &SpawnError{Command: r.command, Err: err}
	}

	for lines.Next() {
		line := lines.Text()
		r.logf("%s", line)
		if opts.StoreOutputLog {
			r.outputLog = append(r.outputLog, line)
		}
		if matcher == nil {
			handler(&Match{Line: line})
			continue
		}
		if groups, ok := matcher.MatchPrefix(line); ok {
			handler(&Match{Line: line, Groups: groups, names: matcher.Names()})
		}
	}

	status := lines.Wait()
	if status.ReadErr != nil {
		r.logf("Reading output of '%s': %v", r.command, status.ReadErr)
	}
	if status.Signal != "" {
		r.logf("Process '%s' terminated by %s", r.command, status.Signal)
	}

	code := status.Code
	r.exitCode = &code
	r.last = &Result{
		RunID:     runID,
		Command:   r.command,
		Dir:       dir,
		ExitCode:  code,
		Signal:    status.Signal,
		OutputLog: r.outputLog,
		Started:   started,
		Duration:  time.Since(started),
	}
	return code, nil
}

// ExecuteCheckReturn runs Execute and reports whether the exit status
// equals opts.ExpectedReturnCode. A mismatch is not an error.
func (r *Runner) ExecuteCheckReturn(ctx context.Context, opts CheckOptions) (bool, error) {
	code, err := r.Execute(ctx, opts.Options)
	if err != nil {
		return false, err
	}
	return code == opts.ExpectedReturnCode, nil
}
