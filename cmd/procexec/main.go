// Command procexec runs commands as child processes, checks their exit
// status and serves the same operations over MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deixis/procexec"
	"github.com/deixis/procexec/internal/config"
	"github.com/deixis/procexec/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	fmt.Fprintf(os.Stderr, "procexec: %v\n", err)
	os.Exit(1)
}

// exitError carries the process exit status out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitStatus maps a child exit code to a status this process can exit
// with. Signal deaths are reported as 128 plus the signal number, as
// shells do.
func exitStatus(code int) int {
	if code < 0 {
		return 128 - code
	}
	return code
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "procexec",
		Short: "Run commands and check their exit status",
		Long: `procexec runs commands as child processes. Output from stdout and stderr is
combined and streamed line by line; blank lines are dropped. Lines can be
selected with an anchored regular expression, and exit statuses compared
against an expected value. Checks declared in a .procexec file run as a
pipeline, and every run is stored for later inspection.`,
		Example: `
# Run a command through the shell
procexec run -- make test

# Print only lines starting with "rtt"
procexec run --match 'rtt' -- ping -c 3 example.com

# Succeed only if grep finds nothing
procexec run --expect 1 -- grep -q TODO main.go

# Run the configured checks
procexec check

# Show the stored output of a run
procexec inspect 0b7c5e2a-... --match 'error:'
  `,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringP("cwd", "c", "", "Working directory (default: current directory)")
	root.PersistentFlags().String("config", "", "Configuration file (default: nearest .procexec)")
	root.PersistentFlags().BoolP("debug", "d", false, "Debug logging")

	root.AddCommand(
		newRunCmd(),
		newCheckCmd(),
		newInspectCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), procexec.Version)
		},
	}
}

// env holds what every command needs after flags are parsed.
type env struct {
	cfg    *config.Config
	cwd    string // where the command was started, or --cwd
	root   string // directory holding the config file; cwd without one
	path   string // config file path; empty without one
	logger *slog.Logger
}

func setup(cmd *cobra.Command) (*env, error) {
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining working directory: %w", err)
		}
		cwd = wd
	}

	e := &env{cwd: cwd, root: cwd}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		e.cfg, e.path, e.root = cfg, path, filepath.Dir(path)
	} else {
		loaded, err := config.Load(cwd)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		e.cfg, e.path, e.root = loaded.Config, loaded.Path, loaded.Root
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		e.cfg.Log.Level = "debug"
	}
	e.logger = logging.Setup(e.cfg, cmd.ErrOrStderr())
	if e.path != "" {
		e.logger.Debug("loaded config", "path", e.path)
	}
	return e, nil
}
