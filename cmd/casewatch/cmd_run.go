package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"casewatch/internal/report"
	"casewatch/internal/run"
)

var runFlags struct {
	state     string
	selectors string
	outDir    string
	maxCases  int
	headless  bool
	format    string
	alarmFile string
	alarmCmd  string
	timeout   time.Duration
	archive   bool
	history   string
	lockFile  string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one extraction pass and write the report artifacts",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.state, "state", ".casewatch/session.json", "Session state file")
	f.StringVar(&runFlags.selectors, "selectors", "", "Selector document (YAML); built-in defaults when empty")
	f.StringVar(&runFlags.outDir, "outdir", "out", "Output directory for report and artifacts")
	f.IntVar(&runFlags.maxCases, "max", 0, "Maximum cases to extract (0 = all)")
	f.BoolVar(&runFlags.headless, "headless", true, "Run the browser headless")
	f.StringVar(&runFlags.format, "format", report.FormatBoth, "Report format (json, csv, both)")
	f.StringVar(&runFlags.alarmFile, "alarm-file", "ALERT_SESSION_EXPIRED.txt", "File written when the session is lost (empty = disabled)")
	f.StringVar(&runFlags.alarmCmd, "alarm-cmd", "", "Shell command executed when the session is lost")
	f.DurationVar(&runFlags.timeout, "timeout", 20*time.Minute, "Watchdog timeout for the whole run (0 = none)")
	f.BoolVar(&runFlags.archive, "archive", false, "Zip the output directory after the run")
	f.StringVar(&runFlags.history, "history", ".casewatch/history.db", "Run-history database (empty = disabled)")
	f.StringVar(&runFlags.lockFile, "lock-file", ".casewatch/run.lock", "Lock file preventing overlapping runs (empty = disabled)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	code := run.Run(cmd.Context(), run.Config{
		StatePath:     runFlags.state,
		SelectorsPath: runFlags.selectors,
		OutDir:        runFlags.outDir,
		MaxCases:      runFlags.maxCases,
		Headless:      runFlags.headless,
		Format:        runFlags.format,
		AlarmFile:     runFlags.alarmFile,
		AlarmCmd:      runFlags.alarmCmd,
		Timeout:       runFlags.timeout,
		Archive:       runFlags.archive,
		HistoryPath:   runFlags.history,
		LockFile:      runFlags.lockFile,
	})
	if code != run.ExitOK {
		os.Exit(code)
	}
	return nil
}
