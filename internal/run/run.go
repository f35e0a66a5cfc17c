// Package run orchestrates a full pipeline pass: session, discovery,
// per-case extraction, normalization and the final report/status artifacts.
// The pipeline degrades per case; only session loss or a watchdog expiry
// makes the whole run fail.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"casewatch/internal/browser"
	"casewatch/internal/discover"
	"casewatch/internal/extract"
	"casewatch/internal/history"
	"casewatch/internal/logging"
	"casewatch/internal/normalize"
	"casewatch/internal/report"
	"casewatch/internal/selectors"
	"casewatch/internal/session"
)

// Process exit codes. Per-case failures do not change the exit code; they are
// reported through the report's error list and the status artifact instead.
const (
	ExitOK             = 0
	ExitSessionFailure = 2
	ExitConfigError    = 3
	ExitWatchdog       = 4
)

// Config is the fully resolved run configuration.
type Config struct {
	StatePath     string
	SelectorsPath string
	OutDir        string
	MaxCases      int
	Headless      bool
	Format        string
	AlarmFile     string
	AlarmCmd      string
	Timeout       time.Duration
	Archive       bool
	HistoryPath   string
	LockFile      string
}

// Pipeline run states, logged at each transition.
const (
	stateInit         = "INIT"
	stateSessionReady = "SESSION_READY"
	stateDiscovering  = "DISCOVERING"
	stateExtracting   = "EXTRACTING"
	stateWriting      = "WRITING"
	stateDone         = "DONE"
	stateFailed       = "FAILED"
)

type pipeline struct {
	cfg    Config
	sel    *selectors.Config
	writer *report.Writer
	log    *slog.Logger

	state   string
	started time.Time

	cases  []report.CaseRecord
	errors []report.RunError
	comms  map[string]string
}

func (p *pipeline) transition(next string) {
	p.log.Info("state", "from", p.state, "to", next)
	p.state = next
}

// Run executes one pipeline pass and returns the process exit code.
func Run(ctx context.Context, cfg Config) int {
	log := logging.New("run")

	// The status artifact is the sole liveness signal for monitoring, so the
	// writer comes first: every outcome after this point, fatal config errors
	// included, leaves a fresh status.json behind.
	writer, err := report.NewWriter(cfg.OutDir)
	if err != nil {
		log.Error("prepare output dir", "error", err)
		return ExitConfigError
	}

	sel, err := loadSelectors(cfg.SelectorsPath)
	if err != nil {
		log.Error("load selectors", "error", err)
		writeCriticalStatus(writer, log, fmt.Sprintf("load selectors: %v", err))
		return ExitConfigError
	}

	if cfg.LockFile != "" {
		maxAge := cfg.Timeout
		if maxAge <= 0 {
			maxAge = defaultLockMaxAge
		}
		ok, err := acquireLock(cfg.LockFile, maxAge)
		if err != nil {
			log.Error("acquire lock", "error", err)
			writeCriticalStatus(writer, log, fmt.Sprintf("acquire lock: %v", err))
			return ExitConfigError
		}
		if !ok {
			log.Info("another run holds the lock, skipping", "lock", cfg.LockFile)
			return ExitOK
		}
		defer os.Remove(cfg.LockFile)
	}

	p := &pipeline{
		cfg:     cfg,
		sel:     sel,
		writer:  writer,
		log:     log,
		state:   stateInit,
		started: time.Now().UTC(),
		comms:   make(map[string]string),
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	}
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return p.execute(gctx) })
	err = g.Wait()

	code := p.finish(err)
	p.record(code)
	return code
}

func loadSelectors(path string) (*selectors.Config, error) {
	if path == "" {
		return selectors.Default(), nil
	}
	return selectors.LoadFromPath(path)
}

// defaultLockMaxAge bounds lock staleness when no watchdog timeout is set.
const defaultLockMaxAge = time.Hour

// acquireLock creates the lock file exclusively. A pre-existing file younger
// than maxAge means another run is in flight and this one is a no-op; an
// older one was left behind by a crashed run and is removed and retaken.
func acquireLock(path string, maxAge time.Duration) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			return true, f.Close()
		}
		if !errors.Is(err, os.ErrExist) {
			return false, err
		}
		info, err := os.Stat(path)
		if err != nil {
			// Holder released between the open and the stat; retry once.
			continue
		}
		if time.Since(info.ModTime()) <= maxAge {
			return false, nil
		}
		os.Remove(path)
	}
	return false, nil
}

// execute runs the pipeline body under the watchdog context.
func (p *pipeline) execute(ctx context.Context) error {
	b, err := browser.Start(ctx, browser.Options{Headless: p.cfg.Headless})
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer b.Close()

	mgr := session.NewManager(b, p.sel, p.cfg.StatePath, session.CredentialFromEnv(), p.writer.DebugDir())
	if err := mgr.Ensure(ctx); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	p.transition(stateSessionReady)

	p.transition(stateDiscovering)
	caseNos, err := discover.NewLister(b, p.sel).List(ctx, p.cfg.MaxCases)
	if err != nil {
		if errors.Is(err, session.ErrSessionExpired) {
			return fmt.Errorf("discover cases: %w", err)
		}
		// A broken case list leaves nothing to extract, but the run still
		// produces its artifacts so monitoring sees the failure.
		p.errors = append(p.errors, report.RunError{Message: fmt.Sprintf("discover cases: %v", err)})
		caseNos = nil
	}
	p.log.Info("discovered cases", "count", len(caseNos))

	p.transition(stateExtracting)
	ext := extract.NewExtractor(b, p.sel, p.writer.DebugDir())
	norm := normalize.NewNormalizer(p.sel)
	recovered := false
	for _, caseNo := range caseNos {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw, err := ext.Extract(ctx, caseNo)
		if err != nil && errors.Is(err, session.ErrSessionExpired) && !recovered {
			// One mid-run recovery attempt; a second expiry fails the run.
			recovered = true
			p.log.Warn("session expired mid-run, recovering", "case", caseNo)
			if rerr := mgr.Recover(ctx); rerr != nil {
				return fmt.Errorf("recover session: %w", rerr)
			}
			raw, err = ext.Extract(ctx, caseNo)
		}
		if err != nil {
			p.addCaseError(caseNo, err)
			continue
		}
		rec, redacted := norm.Normalize(raw, time.Now().UTC())
		p.comms[caseNo] = redacted
		p.cases = append(p.cases, rec)
	}

	if err := mgr.Refresh(ctx); err != nil {
		p.log.Warn("refresh session state", "error", err)
	}
	return nil
}

func (p *pipeline) addCaseError(caseNo string, err error) {
	re := report.RunError{CaseNo: caseNo, Message: err.Error()}
	var xerr *extract.Error
	if errors.As(err, &xerr) {
		if xerr.ScreenshotPath != "" {
			re.DebugArtifacts = append(re.DebugArtifacts, xerr.ScreenshotPath)
		}
		if xerr.HTMLPath != "" {
			re.DebugArtifacts = append(re.DebugArtifacts, xerr.HTMLPath)
		}
	}
	p.log.Warn("case failed", "case", caseNo, "error", err)
	p.errors = append(p.errors, re)
}

// finish writes the report and status artifacts for the outcome and maps it
// to an exit code. A failure during or after extraction still writes the
// partial report; a failure before extraction ever started writes only the
// status artifact, so the previous run's report survives a botched login.
func (p *pipeline) finish(err error) int {
	reachedExtraction := p.state == stateExtracting
	p.transition(stateWriting)
	now := time.Now().UTC()

	switch {
	case err == nil:
		p.writeArtifacts(now)
		msg := fmt.Sprintf("%d cases, %d errors", len(p.cases), len(p.errors))
		p.writeStatus(now, report.StateOK, msg)
		p.transition(stateDone)
		return ExitOK

	case errors.Is(err, context.DeadlineExceeded):
		p.errors = append(p.errors, report.RunError{Message: "watchdog timeout, run aborted"})
		p.writeArtifacts(now)
		p.writeStatus(now, report.StateCritical, "watchdog timeout")
		p.transition(stateFailed)
		return ExitWatchdog

	default:
		p.log.Error("run failed", "error", err)
		p.errors = append(p.errors, report.RunError{Message: err.Error()})
		if reachedExtraction {
			p.writeArtifacts(now)
		}
		p.writeStatus(now, report.StateCritical, err.Error())
		if errors.Is(err, session.ErrLoginRequired) || errors.Is(err, session.ErrSessionExpired) ||
			strings.Contains(err.Error(), "ensure session") {
			p.raiseAlarm(err)
		}
		p.transition(stateFailed)
		return ExitSessionFailure
	}
}

func (p *pipeline) writeArtifacts(now time.Time) {
	for caseNo, redacted := range p.comms {
		path, err := p.writer.WriteComms(caseNo, redacted)
		if err != nil {
			p.log.Error("write communications artifact", "case", caseNo, "error", err)
			continue
		}
		for i := range p.cases {
			if p.cases[i].CaseNo == caseNo {
				p.cases[i].CommsFile = path
			}
		}
	}

	rep := &report.Report{GeneratedAt: now, Cases: p.cases, Errors: p.errors}
	if rep.Errors == nil {
		rep.Errors = []report.RunError{}
	}
	if err := p.writer.WriteReport(rep, p.cfg.Format); err != nil {
		p.log.Error("write report", "error", err)
	}

	if p.cfg.Archive {
		// The archive lands next to the output directory, not inside it, so
		// later runs do not swallow earlier archives.
		dst := filepath.Join(filepath.Dir(p.cfg.OutDir), report.ArchiveName(p.cfg.OutDir, now.Format("20060102_150405")))
		if err := p.writer.Archive(dst); err != nil {
			p.log.Error("archive run output", "error", err)
		} else {
			p.log.Info("archived run output", "path", dst)
		}
	}
}

func (p *pipeline) writeStatus(now time.Time, state, msg string) {
	st := &report.StatusArtifact{GeneratedAt: now, State: state, Message: msg}
	if err := p.writer.WriteStatus(st); err != nil {
		p.log.Error("write status artifact", "error", err)
	}
}

// writeCriticalStatus leaves a CRITICAL status behind for runs that die
// before the pipeline is even constructed.
func writeCriticalStatus(w *report.Writer, log *slog.Logger, msg string) {
	st := &report.StatusArtifact{GeneratedAt: time.Now().UTC(), State: report.StateCritical, Message: msg}
	if err := w.WriteStatus(st); err != nil {
		log.Error("write status artifact", "error", err)
	}
}

// raiseAlarm signals an unattended session loss: the alarm file for humans to
// notice and the alarm command for whatever notifier is hooked up.
func (p *pipeline) raiseAlarm(cause error) {
	if p.cfg.AlarmFile != "" {
		body := fmt.Sprintf("%s session failure: %v\n", time.Now().UTC().Format(time.RFC3339), cause)
		if err := os.WriteFile(p.cfg.AlarmFile, []byte(body), 0644); err != nil {
			p.log.Error("write alarm file", "error", err)
		}
	}
	if p.cfg.AlarmCmd != "" {
		cmd := exec.Command("/bin/sh", "-c", p.cfg.AlarmCmd)
		if out, err := cmd.CombinedOutput(); err != nil {
			p.log.Error("alarm command failed", "error", err, "output", string(out))
		}
	}
}

// record appends the outcome to the run-history database. History is an
// observability extra and never changes the exit code.
func (p *pipeline) record(code int) {
	if p.cfg.HistoryPath == "" {
		return
	}
	st, err := history.Open(p.cfg.HistoryPath)
	if err != nil {
		p.log.Warn("open run history", "error", err)
		return
	}
	defer st.Close()
	state := report.StateOK
	if code != ExitOK {
		state = report.StateCritical
	}
	msg := fmt.Sprintf("exit=%d state=%s", code, p.state)
	if _, err := st.RecordRun(p.started, state, len(p.cases), len(p.errors), msg); err != nil {
		p.log.Warn("record run history", "error", err)
	}
}
