package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type workspaceParams struct{}

func (h *handler) workspaceHandler(ctx context.Context, req *mcp.CallToolRequest, _ workspaceParams) (*mcp.CallToolResult, any, error) {
	eng, path := h.snapshot()
	cfg := eng.Config

	var b strings.Builder

	fmt.Fprintf(&b, "Directory: %s\n", eng.BaseDir)
	if path != "" {
		fmt.Fprintf(&b, "Config: %s\n", path)
	} else {
		fmt.Fprintln(&b, "Config: (none, using defaults)")
	}
	fmt.Fprintf(&b, "Shell: %t\n", cfg.UseShell())
	if t := cfg.Timeout(); t > 0 {
		fmt.Fprintf(&b, "Timeout: %s\n", t)
	} else {
		fmt.Fprintln(&b, "Timeout: none")
	}
	fmt.Fprintf(&b, "Regex engine: %s\n", cfg.RegexEngine())
	fmt.Fprintln(&b)

	if len(cfg.Checks) == 0 {
		fmt.Fprintln(&b, "Checks: none configured")
		return textResult(b.String())
	}

	fmt.Fprintf(&b, "Checks (%d):\n", len(cfg.Checks))
	for _, c := range cfg.Checks {
		fmt.Fprintf(&b, "  %s: %s", c.Name, c.Command)
		if c.Expected() != 0 {
			fmt.Fprintf(&b, " (expect %d)", c.Expected())
		}
		fmt.Fprintln(&b)
	}

	return textResult(b.String())
}
