package workflow

import (
	"fmt"
	"strings"

	"github.com/deixis/procexec/internal/runner"
)

// MaxOutputLines is the maximum number of output lines shown per command
// in a text summary.
const MaxOutputLines = 40

func (r *CheckResult) String() string {
	var b strings.Builder

	failed := 0
	for _, s := range r.Steps {
		if s.Status != StatusPass {
			failed++
		}
	}

	if failed == 0 {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	if r.Record != nil {
		fmt.Fprintf(&b, "Run ID: %s\n", r.Record.ID)
	}
	fmt.Fprintln(&b)

	if failed == 0 {
		fmt.Fprintf(&b, "All %d checks passed.\n", len(r.Steps))
	} else {
		fmt.Fprintf(&b, "Failed %d of %d checks.\n", failed, len(r.Steps))
	}
	fmt.Fprintln(&b)

	for _, s := range r.Steps {
		fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(s.Status), s.Name)
		if s.Command != "" {
			fmt.Fprintf(&b, ": %s", s.Command)
		}
		fmt.Fprintln(&b)
		if s.Detail != "" {
			fmt.Fprintf(&b, "  %s\n", s.Detail)
		}
		lines := s.Matches
		if lines == nil && s.Status == StatusFail {
			lines = s.Output
		}
		writeLines(&b, lines, "    ")
	}

	return b.String()
}

// FormatRun renders a single execution as text. want is nil when no
// expected exit status was given.
func FormatRun(res *runner.Result, want *int, matches []string) string {
	var b strings.Builder

	switch {
	case want == nil:
		fmt.Fprintf(&b, "Status: exit %d\n", res.ExitCode)
	case res.Passed(*want):
		fmt.Fprintln(&b, "Status: PASS")
	default:
		fmt.Fprintf(&b, "Status: FAIL (exit %d, want %d)\n", res.ExitCode, *want)
	}
	fmt.Fprintf(&b, "Run ID: %s\n", res.RunID)
	fmt.Fprintf(&b, "Command: %s\n", res.Command)
	if res.Signal != "" {
		fmt.Fprintf(&b, "Terminated by %s\n", res.Signal)
	}
	fmt.Fprintf(&b, "Duration: %s\n", res.Duration)

	if matches != nil {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Matched %d lines:\n", len(matches))
		writeLines(&b, matches, "  ")
	} else if len(res.OutputLog) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Output:")
		writeLines(&b, res.OutputLog, "  ")
	}

	return b.String()
}

func writeLines(b *strings.Builder, lines []string, indent string) {
	shown := lines
	if len(shown) > MaxOutputLines {
		shown = shown[:MaxOutputLines]
	}
	for _, line := range shown {
		fmt.Fprintf(b, "%s%s\n", indent, line)
	}
	if n := len(lines) - len(shown); n > 0 {
		fmt.Fprintf(b, "%s... (%d more lines)\n", indent, n)
	}
}
