//go:build unix

package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deixis/procexec/internal/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// logRecorder captures everything written to a Runner's log sink.
type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *logRecorder) logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *logRecorder) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func newTestRunner(command string, opts ...Option) *Runner {
	return New(command, append([]Option{WithLogger(nil)}, opts...)...)
}

func TestExecute_StoreOutputLog(t *testing.T) {
	r := newTestRunner("printf '1\\n2\\n3\\n'")

	code, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"1", "2", "3"}, r.OutputLog())

	got, ok := r.ExitCode()
	assert.True(t, ok)
	assert.Equal(t, 0, got)
}

func TestExecute_BlankLinesDropped(t *testing.T) {
	r := newTestRunner("printf 'a\\n\\n   \\nb  \\n\\t\\n  c\\n'")

	_, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	// Trailing whitespace is trimmed, leading whitespace is kept.
	assert.Equal(t, []string{"a", "b", "  c"}, r.OutputLog())
}

func TestExecute_LastLineWithoutNewline(t *testing.T) {
	r := newTestRunner("printf 'first\\nlast'")

	_, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "last"}, r.OutputLog())
}

func TestExecute_CombinesStderr(t *testing.T) {
	r := newTestRunner("echo out; echo err 1>&2; echo out2")

	_, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"out", "err", "out2"}, r.OutputLog())
}

func TestExecute_ExitCode(t *testing.T) {
	for _, want := range []int{0, 1, 3, 7} {
		r := newTestRunner(fmt.Sprintf("exit %d", want))
		code, err := r.Execute(context.Background(), Options{})
		require.NoError(t, err)
		assert.Equal(t, want, code)

		got, ok := r.ExitCode()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestExecute_NoMatchRegexPassesEveryLine(t *testing.T) {
	r := newTestRunner("seq 1 3")

	var got []*Match
	_, err := r.Execute(context.Background(), Options{
		RegexMatchHandler: func(m *Match) { got = append(got, m) },
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, m := range got {
		assert.Equal(t, fmt.Sprint(i+1), m.Line)
		assert.Nil(t, m.Groups)
	}
	assert.Nil(t, r.OutputLog(), "buffering was not requested")
}

func TestExecute_MatchRegex(t *testing.T) {
	r := newTestRunner("seq 1 3")

	var got []*Match
	_, err := r.Execute(context.Background(), Options{
		MatchRegex:        "^2",
		RegexMatchHandler: func(m *Match) { got = append(got, m) },
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].Line)
	assert.Equal(t, "2", got[0].Group(0))
}

func TestExecute_MatchRegexAnchoredAtStart(t *testing.T) {
	r := newTestRunner("echo 12; echo 21; echo 2")

	var lines []string
	_, err := r.Execute(context.Background(), Options{
		MatchRegex:        "2",
		RegexMatchHandler: func(m *Match) { lines = append(lines, m.Line) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"21", "2"}, lines)
}

func TestExecute_MatchGroups(t *testing.T) {
	r := newTestRunner("echo 'rtt min/avg = 1.5/2.5 ms'; echo 'other'")

	var got *Match
	_, err := r.Execute(context.Background(), Options{
		MatchRegex:        `rtt min/avg = (?P<min>[\d.]+)/([\d.]+)`,
		RegexMatchHandler: func(m *Match) { got = m },
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1.5", got.Named("min"))
	assert.Equal(t, "2.5", got.Group(2))
	assert.Equal(t, "", got.Group(9))
	assert.Equal(t, "", got.Named("missing"))
}

func TestExecute_Regexp2Engine(t *testing.T) {
	r := newTestRunner("echo foobar; echo foobaz")

	var lines []string
	_, err := r.Execute(context.Background(), Options{
		MatchRegex:        "foo(?=bar)",
		Engine:            match.Regexp2,
		RegexMatchHandler: func(m *Match) { lines = append(lines, m.Line) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"foobar"}, lines)
}

func TestExecute_InvalidPattern(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "spawned")
	r := newTestRunner("touch " + marker)

	_, err := r.Execute(context.Background(), Options{MatchRegex: "("})
	require.Error(t, err)

	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "(", perr.Pattern)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "process must not be spawned for an invalid pattern")

	_, ok := r.ExitCode()
	assert.False(t, ok)
}

func TestExecute_UnbalancedPattern(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "spawned")
	r := newTestRunner("touch " + marker + "; echo zzy")

	called := false
	_, err := r.Execute(context.Background(), Options{
		MatchRegex:        "x)|(y",
		RegexMatchHandler: func(*Match) { called = true },
	})
	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "x)|(y", perr.Pattern)
	assert.False(t, called)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "process must not be spawned for an invalid pattern")

	_, ok := r.ExitCode()
	assert.False(t, ok)
}

func TestExecute_SpawnFailure(t *testing.T) {
	r := newTestRunner("nonexistent-binary-xyz-123 --flag", WithShell(false))

	called := false
	_, err := r.Execute(context.Background(), Options{
		StoreOutputLog:    true,
		RegexMatchHandler: func(*Match) { called = true },
	})
	require.Error(t, err)

	var serr *SpawnError
	require.ErrorAs(t, err, &serr)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
	assert.Contains(t, err.Error(), "nonexistent-binary-xyz-123")
	assert.False(t, called)

	_, ok := r.ExitCode()
	assert.False(t, ok, "exit code must stay unset after a spawn failure")
	assert.Nil(t, r.Result())
}

func TestExecute_SpawnFailureThroughShell(t *testing.T) {
	// The shell itself starts, so a missing executable is an ordinary exit.
	r := newTestRunner("nonexistent-binary-xyz-123")

	code, err := r.Execute(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 127, code)
}

func TestExecute_InvalidWorkingDirectory(t *testing.T) {
	r := newTestRunner("pwd", WithDir(filepath.Join(t.TempDir(), "missing")))

	_, err := r.Execute(context.Background(), Options{})
	var serr *SpawnError
	require.ErrorAs(t, err, &serr)
}

func TestExecute_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner("pwd", WithDir(dir))

	_, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	require.Len(t, r.OutputLog(), 1)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(r.OutputLog()[0])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExecute_WorkingDirectoryExpanded(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROCEXEC_TEST_DIR", dir)
	r := newTestRunner("pwd", WithDir("$PROCEXEC_TEST_DIR"))

	_, err := r.Execute(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, dir, r.Result().Dir)
}

func TestExecute_DirectMode(t *testing.T) {
	r := newTestRunner(`printf '%s\n' "a b" c`, WithShell(false))

	_, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a b", "c"}, r.OutputLog())
}

func TestExecute_DirectModeNoExpansion(t *testing.T) {
	t.Setenv("PROCEXEC_TEST_VAR", "expanded")
	r := newTestRunner("echo $PROCEXEC_TEST_VAR", WithShell(false))

	_, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"$PROCEXEC_TEST_VAR"}, r.OutputLog())
}

func TestExecute_ShellModeExpansion(t *testing.T) {
	t.Setenv("PROCEXEC_TEST_VAR", "expanded")
	r := newTestRunner("echo $PROCEXEC_TEST_VAR")

	_, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"expanded"}, r.OutputLog())
}

func TestExecute_Env(t *testing.T) {
	r := newTestRunner("echo $GREETING", WithEnv([]string{"GREETING=hello"}))

	_, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, r.OutputLog())
}

func TestExecute_ResetsStateBetweenRuns(t *testing.T) {
	r := newTestRunner("seq 1 3")

	_, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	require.Len(t, r.OutputLog(), 3)

	_, err = r.Execute(context.Background(), Options{StoreOutputLog: false})
	require.NoError(t, err)
	assert.Nil(t, r.OutputLog(), "second run without buffering must clear the log")
}

func TestExecute_EmptyOutputLogIsNotNil(t *testing.T) {
	r := newTestRunner("true")

	_, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	assert.NotNil(t, r.OutputLog())
	assert.Empty(t, r.OutputLog())
}

func TestExecute_ExitCodeUnsetBeforeRun(t *testing.T) {
	r := newTestRunner("true")
	_, ok := r.ExitCode()
	assert.False(t, ok)
	assert.Nil(t, r.OutputLog())
	assert.Nil(t, r.Result())
}

func TestExecute_LogSink(t *testing.T) {
	rec := &logRecorder{}
	r := New("echo 100%; echo; echo done", WithLogger(rec.logf))

	_, err := r.Execute(context.Background(), Options{})
	require.NoError(t, err)

	lines := rec.all()
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "Executing process 'echo 100%; echo; echo done'", lines[0])
	assert.Equal(t, "100%", lines[1])
	assert.Equal(t, "done", lines[2])
}

func TestExecute_Busy(t *testing.T) {
	r := newTestRunner("seq 1 2")

	var inner error
	_, err := r.Execute(context.Background(), Options{
		RegexMatchHandler: func(*Match) {
			_, inner = r.Execute(context.Background(), Options{})
		},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrBusy)

	// The runner is usable again once the first execution finished.
	_, err = r.Execute(context.Background(), Options{})
	assert.NoError(t, err)
}

func TestExecute_Timeout(t *testing.T) {
	r := newTestRunner("echo started; exec sleep 10", WithTimeout(200*time.Millisecond))

	start := time.Now()
	code, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, -9, code, "killed child reports -SIGKILL")
	assert.Equal(t, []string{"started"}, r.OutputLog())
	assert.Equal(t, "SIGKILL", r.Result().Signal)
}

func TestExecute_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRunner("true")
	_, err := r.Execute(ctx, Options{})
	var serr *SpawnError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_Result(t *testing.T) {
	r := newTestRunner("echo hi; exit 2")

	_, err := r.Execute(context.Background(), Options{StoreOutputLog: true})
	require.NoError(t, err)

	res := r.Result()
	require.NotNil(t, res)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "echo hi; exit 2", res.Command)
	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, []string{"hi"}, res.OutputLog)
	assert.True(t, res.Passed(2))
	assert.False(t, res.Started.IsZero())

	first := res.RunID
	_, err = r.Execute(context.Background(), Options{})
	require.NoError(t, err)
	assert.NotEqual(t, first, r.Result().RunID)
}

func TestExecuteCheckReturn(t *testing.T) {
	ok, err := newTestRunner("exit 0").ExecuteCheckReturn(context.Background(), CheckOptions{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = newTestRunner("exit 1").ExecuteCheckReturn(context.Background(), CheckOptions{})
	require.NoError(t, err)
	assert.False(t, ok)

	r := newTestRunner("exit 3")
	ok, err = r.ExecuteCheckReturn(context.Background(), CheckOptions{ExpectedReturnCode: 0})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.ExecuteCheckReturn(context.Background(), CheckOptions{ExpectedReturnCode: 3})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExecuteCheckReturn_ForwardsOptions(t *testing.T) {
	r := newTestRunner("seq 1 3")

	var lines []string
	ok, err := r.ExecuteCheckReturn(context.Background(), CheckOptions{
		Options: Options{
			MatchRegex:        "^3",
			RegexMatchHandler: func(m *Match) { lines = append(lines, m.Line) },
			StoreOutputLog:    true,
		},
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"3"}, lines)
	assert.Equal(t, []string{"1", "2", "3"}, r.OutputLog())
}

func TestExecuteCheckReturn_SpawnFailure(t *testing.T) {
	r := newTestRunner("nonexistent-binary-xyz-123", WithShell(false))
	ok, err := r.ExecuteCheckReturn(context.Background(), CheckOptions{})
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestNewArgs(t *testing.T) {
	r := NewArgs([]string{"ls", "-l", "My Docs"})
	assert.Equal(t, "ls -l My Docs", r.Command())
	assert.True(t, r.UsesShell())
	assert.Equal(t, "", r.Dir())
}

func TestArgv(t *testing.T) {
	r := New(`grep -e "a b" file`, WithShell(false))
	argv, err := r.argv()
	require.NoError(t, err)
	assert.Equal(t, []string{"grep", "-e", "a b", "file"}, argv)

	_, err = New("   ", WithShell(false)).argv()
	assert.Error(t, err)

	argv, err = New("echo $HOME").argv()
	require.NoError(t, err)
	assert.Equal(t, "echo $HOME", argv[len(argv)-1])
}

func TestExpandDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("HOME", home)

	got, err := expandDir("~/src")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "src"), got)

	got, err = expandDir("")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = expandDir("/plain/path")
	require.NoError(t, err)
	assert.Equal(t, "/plain/path", got)
}

func TestMatch_NilGroups(t *testing.T) {
	m := &Match{Line: "x"}
	assert.Equal(t, "", m.Group(0))
	assert.Equal(t, "", m.Named("x"))
	assert.True(t, strings.HasPrefix(m.Line, "x"))
}
