package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"casewatch/internal/history"
	"casewatch/internal/report"
)

var statusFlags struct {
	outDir  string
	history string
	recent  int
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest run status and recent run history",
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusFlags.outDir, "outdir", "out", "Output directory of the monitored runs")
	f.StringVar(&statusFlags.history, "history", ".casewatch/history.db", "Run-history database (empty = skip)")
	f.IntVar(&statusFlags.recent, "recent", 5, "Number of recent runs to show")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	out := cmd.OutOrStdout()

	data, err := os.ReadFile(filepath.Join(statusFlags.outDir, "status.json"))
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintln(out, "No status artifact yet. Run 'casewatch run' first.")
	case err != nil:
		return fmt.Errorf("read status artifact: %w", err)
	default:
		var st report.StatusArtifact
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("parse status artifact: %w", err)
		}
		fmt.Fprintf(out, "State:     %s\n", st.State)
		fmt.Fprintf(out, "Message:   %s\n", st.Message)
		fmt.Fprintf(out, "Generated: %s\n", st.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}

	if statusFlags.history == "" {
		return nil
	}
	if _, err := os.Stat(statusFlags.history); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	st, err := history.Open(statusFlags.history)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer st.Close()
	runs, err := st.Recent(statusFlags.recent)
	if err != nil {
		return fmt.Errorf("read run history: %w", err)
	}
	if len(runs) > 0 {
		fmt.Fprintf(out, "Recent runs:\n")
		for _, r := range runs {
			fmt.Fprintf(out, "  %s  %-8s  ok=%d err=%d  %s\n",
				r.StartedAt, r.State, r.CasesOK, r.CasesErr, r.Message)
		}
	}
	return nil
}
