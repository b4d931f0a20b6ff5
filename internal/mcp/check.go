package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type checkParams struct {
	Names []string `json:"names,omitempty" jsonschema:"names of the checks to run. Defaults to every configured check."`
}

func (h *handler) checkHandler(ctx context.Context, req *mcp.CallToolRequest, params checkParams) (*mcp.CallToolResult, any, error) {
	eng, _ := h.snapshot()
	result, err := eng.Check(ctx, params.Names)
	if err != nil {
		return errorResult(fmt.Sprintf("check failed: %v", err))
	}

	// Save results for proc_inspect.
	_ = h.store.Save(result.Record)

	text := result.String()
	if result.Failed() {
		text += fmt.Sprintf("\nInspect with proc_inspect(run_id=%q, pattern=\"<regex>\").\n", result.Record.ID)
	}
	return textResult(text)
}
