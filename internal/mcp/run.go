package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/procexec/internal/match"
	"github.com/deixis/procexec/internal/workflow"
)

type runParams struct {
	Command string `json:"command" jsonschema:"the command line to execute"`
	Dir     string `json:"dir,omitempty" jsonschema:"working directory, relative to the workspace. ~ and environment variables are expanded."`
	Shell   *bool  `json:"shell,omitempty" jsonschema:"run through the host shell. Without a shell the command is split with POSIX quoting rules. Default: true."`
	Match   string `json:"match,omitempty" jsonschema:"regular expression that selects output lines. It must match at the start of the line."`
	Engine  string `json:"engine,omitempty" jsonschema:"regular expression engine for match: re2 (default) or regexp2 for lookarounds and backreferences."`
	Expect  *int   `json:"expect,omitempty" jsonschema:"expected exit status. When set the result reports PASS or FAIL."`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Command) == "" {
		return errorResult("command is required")
	}
	var engine match.Engine
	if params.Engine != "" {
		e, err := match.ParseEngine(params.Engine)
		if err != nil {
			return errorResult(err.Error())
		}
		engine = e
	}

	eng, _ := h.snapshot()
	result, err := eng.Run(ctx, workflow.RunRequest{
		Command: params.Command,
		Dir:     params.Dir,
		Shell:   params.Shell,
		Match:   params.Match,
		Engine:  engine,
		Expect:  params.Expect,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("run failed: %v", err))
	}

	// Save results for proc_inspect.
	_ = h.store.Save(result.Record)

	text := workflow.FormatRun(result.Result, params.Expect, result.Matches)
	text += fmt.Sprintf("\nInspect with proc_inspect(run_id=%q).\n", result.Record.ID)
	return textResult(text)
}
