package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/procexec/internal/report"
)

type inspectParams struct {
	RunID   string `json:"run_id" jsonschema:"the run ID from a proc_run or proc_check result"`
	Pattern string `json:"pattern,omitempty" jsonschema:"regular expression; only lines that start with a match are shown"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	rec, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	eng, _ := h.snapshot()
	lines, err := report.Lines(rec, params.Pattern, eng.Config.RegexEngine())
	if err != nil {
		return errorResult(err.Error())
	}
	if len(lines) == 0 {
		if params.Pattern != "" {
			return textResult(fmt.Sprintf("No lines match %q in run %s (%s).", params.Pattern, rec.ID, rec.Kind))
		}
		return textResult(fmt.Sprintf("No output stored for run %s (%s).", rec.ID, rec.Kind))
	}

	return textResult(formatInspectOutput(rec, lines))
}

func formatInspectOutput(rec *report.Record, lines []report.Line) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", rec.ID, rec.Kind)
	if rec.Kind == report.Run {
		fmt.Fprintf(&b, "Command: %s\n", rec.Command)
		fmt.Fprintf(&b, "Exit status: %d\n", rec.ExitCode)
	}
	fmt.Fprintln(&b)

	// Group consecutive lines by step.
	step := "\x00"
	for _, l := range lines {
		if l.Step != step {
			if l.Step != "" {
				fmt.Fprintf(&b, "%s:\n", l.Step)
			}
			step = l.Step
		}
		if l.Step != "" {
			fmt.Fprintf(&b, "  %s\n", l.Text)
		} else {
			fmt.Fprintln(&b, l.Text)
		}
	}

	return b.String()
}
