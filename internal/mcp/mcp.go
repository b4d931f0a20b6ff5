// Package mcp provides the procexec MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/procexec"
	"github.com/deixis/procexec/internal/config"
	"github.com/deixis/procexec/internal/report"
	"github.com/deixis/procexec/internal/runner"
	"github.com/deixis/procexec/internal/workflow"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu         sync.RWMutex
	engine     workflow.Engine
	configPath string // empty when running on defaults

	store report.Store
}

// NewServer creates an MCP server with all procexec tools registered.
// Commands run in workspace unless a client root replaces it. logf
// receives runner log lines and may be nil.
func NewServer(cfg *config.Config, store report.Store, workspace string, logf runner.LogFunc) *mcp.Server {
	h := &handler{
		engine: workflow.Engine{
			Config:  cfg,
			BaseDir: workspace,
			Logf:    logf,
		},
		store: store,
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "procexec", Version: procexec.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "proc_workspace",
		Description: "Show the working directory, the configuration file in use, the execution defaults and the configured checks.",
	}, h.workspaceHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "proc_run",
		Description: `Run a shell command and report its exit status and output.

Blank lines are dropped and trailing whitespace is trimmed from each line.
Pass "match" to select lines that start with a regular expression match, and
"expect" to compare the exit status against a value. The output is stored
for drill-down via proc_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "proc_check",
		Description: `Run the checks declared in the .procexec configuration file.

Every check runs, even after a failure. A check passes when its command exits
with its expected status (0 unless configured). Results are stored for
drill-down via proc_inspect.`,
	}, h.checkHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "proc_inspect",
		Description: `Show the stored output of a proc_run or proc_check run.

Use the run_id from the tool output. Pass "pattern" to keep only lines that
start with a regular expression match.`,
	}, h.inspectHandler)

	return s
}

// snapshot returns a copy of the engine and config path, safe to use
// while the workspace is being replaced.
func (h *handler) snapshot() (workflow.Engine, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine, h.configPath
}

// updateWorkspaceFromRoots queries the client for MCP roots and switches
// the working directory and config to the first file root.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.engine.Config = loaded.Config
	h.engine.BaseDir = loaded.Root
	h.configPath = loaded.Path
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
