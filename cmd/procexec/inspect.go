package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deixis/procexec/internal/match"
	"github.com/deixis/procexec/internal/report"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <run-id>",
		Short: "Print the stored output of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	cmd.Flags().StringP("match", "m", "", "Print only lines that start with a match of this regular expression")
	cmd.Flags().String("engine", "", "Regular expression engine: re2 or regexp2 (default from config)")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	pattern, _ := cmd.Flags().GetString("match")
	engine := e.cfg.RegexEngine()
	if name, _ := cmd.Flags().GetString("engine"); name != "" {
		engine, err = match.ParseEngine(name)
		if err != nil {
			return err
		}
	}

	rec, err := report.NewDiskStore(e.cfg.RunStoreDir()).Load(args[0])
	if errors.Is(err, report.ErrNotFound) {
		return fmt.Errorf("no stored run %s", args[0])
	}
	if err != nil {
		return err
	}

	lines, err := report.Lines(rec, pattern, engine)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, l := range lines {
		if l.Step != "" {
			fmt.Fprintf(out, "%s: %s\n", l.Step, l.Text)
		} else {
			fmt.Fprintln(out, l.Text)
		}
	}
	return nil
}
