// Package workflow runs the checks declared in the configuration file.
// It is consumed by both the MCP server and the CLI commands.
package workflow

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/deixis/procexec/internal/config"
	"github.com/deixis/procexec/internal/runner"
)

// CommandRunner executes a single check.
// Implemented by runner.Runner.
type CommandRunner interface {
	ExecuteCheckReturn(ctx context.Context, opts runner.CheckOptions) (bool, error)
	Result() *runner.Result
}

// Factory builds the CommandRunner for a check.
type Factory func(c config.CheckConfig) CommandRunner

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Config  *config.Config
	BaseDir string         // relative check directories resolve against this
	Logf    runner.LogFunc // runner log sink; nil disables runner logging
	Factory Factory        // nil builds a runner.Runner per check
}

// NewRunner builds a runner.Runner for c using the engine's defaults.
func (e *Engine) NewRunner(c config.CheckConfig) CommandRunner {
	return runner.New(c.Command,
		runner.WithShell(c.Shell(e.Config.UseShell())),
		runner.WithDir(e.ResolveDir(c.Dir)),
		runner.WithEnv(c.Env),
		runner.WithTimeout(e.Config.Timeout()),
		runner.WithLogger(e.Logf),
	)
}

// ResolveDir resolves a check directory against BaseDir. Absolute paths
// and paths starting with "~" or "$" are left for the runner to expand.
func (e *Engine) ResolveDir(dir string) string {
	switch {
	case dir == "":
		return e.BaseDir
	case filepath.IsAbs(dir), strings.HasPrefix(dir, "~"), strings.HasPrefix(dir, "$"):
		return dir
	case e.BaseDir == "":
		return dir
	default:
		return filepath.Join(e.BaseDir, dir)
	}
}

func (e *Engine) factory() Factory {
	if e.Factory != nil {
		return e.Factory
	}
	return e.NewRunner
}
