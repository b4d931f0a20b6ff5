package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/deixis/procexec/internal/report"
	"github.com/deixis/procexec/internal/runner"
)

func TestCheckResult_String_Pass(t *testing.T) {
	r := &CheckResult{
		Record: &report.Record{ID: "run-1"},
		Steps: []StepResult{
			{Name: "a", Command: "true", Status: StatusPass},
			{Name: "b", Command: "seq 1 3", Status: StatusPass, Output: []string{"1", "2", "3"}},
		},
	}
	out := r.String()
	assert.Contains(t, out, "Status: PASS")
	assert.Contains(t, out, "Run ID: run-1")
	assert.Contains(t, out, "All 2 checks passed.")
	assert.Contains(t, out, "[PASS] b: seq 1 3")
	assert.NotContains(t, out, "    1\n")
}

func TestCheckResult_String_Failure(t *testing.T) {
	r := &CheckResult{
		Steps: []StepResult{
			{Name: "a", Command: "exit 1", Status: StatusFail, Detail: "exit status 1, want 0", Output: []string{"boom"}},
			{Name: "zzz", Status: StatusUnknown, Detail: "unknown check: zzz"},
		},
	}
	out := r.String()
	assert.Contains(t, out, "Status: FAIL")
	assert.Contains(t, out, "Failed 2 of 2 checks.")
	assert.Contains(t, out, "  exit status 1, want 0\n")
	assert.Contains(t, out, "    boom\n")
	assert.Contains(t, out, "[UNKNOWN] zzz\n")
}

func TestFormatRun(t *testing.T) {
	res := &runner.Result{
		RunID:     "id-1",
		Command:   "exit 2",
		ExitCode:  2,
		OutputLog: []string{"x"},
		Duration:  time.Second,
	}

	out := FormatRun(res, nil, nil)
	assert.Contains(t, out, "Status: exit 2")
	assert.Contains(t, out, "Output:\n  x\n")

	want := 0
	out = FormatRun(res, &want, nil)
	assert.Contains(t, out, "Status: FAIL (exit 2, want 0)")

	want = 2
	out = FormatRun(res, &want, []string{})
	assert.Contains(t, out, "Status: PASS")
	assert.Contains(t, out, "Matched 0 lines:")
	assert.NotContains(t, out, "Output:")
}

func TestFormatRun_Truncates(t *testing.T) {
	var lines []string
	for i := range MaxOutputLines + 5 {
		lines = append(lines, fmt.Sprint(i))
	}
	out := FormatRun(&runner.Result{OutputLog: lines}, nil, nil)
	assert.Contains(t, out, "... (5 more lines)")
	assert.NotContains(t, out, fmt.Sprintf("  %d\n", MaxOutputLines))
}
