package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/deixis/procexec/internal/logging"
	"github.com/deixis/procexec/internal/report"
	"github.com/deixis/procexec/internal/workflow"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [names...]",
		Short: "Run the checks declared in .procexec",
		Long: `Run the named checks, or every configured check. All checks run even when
one fails. procexec exits 1 when any check does not pass.`,
		RunE: runCheck,
	}
	cmd.Flags().Bool("json", false, "Print the run record as JSON")
	cmd.Flags().BoolP("verbose", "v", false, "Log command output as it is produced")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	jsonOut, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	eng := &workflow.Engine{Config: e.cfg, BaseDir: e.root}
	if verbose {
		eng.Logf = logging.Sink(e.logger, slog.LevelInfo)
	}

	result, err := eng.Check(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	if err := report.NewDiskStore(e.cfg.RunStoreDir()).Save(result.Record); err != nil {
		e.logger.Warn("saving run record", "error", err)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Record); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, result.String())
	}

	if result.Failed() {
		return &exitError{code: 1}
	}
	return nil
}
