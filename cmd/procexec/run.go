package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deixis/procexec/internal/logging"
	"github.com/deixis/procexec/internal/match"
	"github.com/deixis/procexec/internal/report"
	"github.com/deixis/procexec/internal/runner"
	"github.com/deixis/procexec/internal/workflow"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [--] <command...>",
		Short: "Run a command and report its exit status",
		Long: `Run a command and exit with its exit status. Arguments are joined with
spaces into a single command line, which the host shell interprets unless
--no-shell is given. With --expect, procexec exits 0 when the status matches
and 1 when it does not. A command killed by a signal exits with 128 plus
the signal number.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRun,
	}
	// Flags after the command belong to the command.
	cmd.Flags().SetInterspersed(false)

	cmd.Flags().Bool("no-shell", false, "Split the command with POSIX quoting rules and execute it directly")
	cmd.Flags().String("dir", "", "Working directory for the command; ~ and $VARS are expanded")
	cmd.Flags().StringP("match", "m", "", "Print lines that start with a match of this regular expression")
	cmd.Flags().String("engine", "", "Regular expression engine: re2 or regexp2 (default from config)")
	cmd.Flags().Int("expect", 0, "Expected exit status; exit 1 when it differs")
	cmd.Flags().Bool("store", false, "Print the buffered output after the command exits")
	cmd.Flags().BoolP("quiet", "q", false, "Do not log output lines as they are produced")
	cmd.Flags().Duration("timeout", 0, "Kill the command after this long (default from config)")
	cmd.Flags().Bool("json", false, "Print the run record as JSON")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	noShell, _ := flags.GetBool("no-shell")
	dir, _ := flags.GetString("dir")
	pattern, _ := flags.GetString("match")
	engineName, _ := flags.GetString("engine")
	store, _ := flags.GetBool("store")
	quiet, _ := flags.GetBool("quiet")
	timeout, _ := flags.GetDuration("timeout")
	jsonOut, _ := flags.GetBool("json")

	req := workflow.RunRequest{
		Command: strings.Join(args, " "),
		Dir:     dir,
		Match:   pattern,
		Timeout: timeout,
	}
	if noShell {
		shell := false
		req.Shell = &shell
	}
	if engineName != "" {
		engine, err := match.ParseEngine(engineName)
		if err != nil {
			return err
		}
		req.Engine = engine
	}
	if flags.Changed("expect") {
		want, _ := flags.GetInt("expect")
		req.Expect = &want
	}

	out := cmd.OutOrStdout()
	if pattern != "" && !jsonOut {
		req.OnMatch = func(m *runner.Match) { fmt.Fprintln(out, m.Line) }
	}

	eng := &workflow.Engine{Config: e.cfg, BaseDir: e.cwd}
	if !quiet {
		eng.Logf = logging.Sink(e.logger, slog.LevelInfo)
	}

	res, err := eng.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	if err := report.NewDiskStore(e.cfg.RunStoreDir()).Save(res.Record); err != nil {
		e.logger.Warn("saving run record", "error", err)
	} else {
		e.logger.Info("run saved", "run_id", res.Record.ID)
	}

	switch {
	case jsonOut:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Record); err != nil {
			return err
		}
	case store:
		for _, line := range res.Result.OutputLog {
			fmt.Fprintln(out, line)
		}
	}

	if req.Expect != nil {
		if !res.Passed {
			e.logger.Error("unexpected exit status", "exit_code", res.Result.ExitCode, "want", *req.Expect)
			return &exitError{code: 1}
		}
		return nil
	}
	if code := exitStatus(res.Result.ExitCode); code != 0 {
		return &exitError{code: code}
	}
	return nil
}
