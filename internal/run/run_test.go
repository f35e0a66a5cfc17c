package run

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"casewatch/internal/extract"
	"casewatch/internal/logging"
	"casewatch/internal/report"
	"casewatch/internal/selectors"
	"casewatch/internal/session"
)

func newTestPipeline(t *testing.T) *pipeline {
	t.Helper()
	w, err := report.NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return &pipeline{
		cfg:     Config{OutDir: w.OutDir, Format: report.FormatJSON},
		sel:     selectors.Default(),
		writer:  w,
		log:     logging.New("run"),
		state:   stateInit,
		started: time.Now().UTC(),
		comms:   make(map[string]string),
	}
}

func readStatus(t *testing.T, outDir string) report.StatusArtifact {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(outDir, "status.json"))
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	var st report.StatusArtifact
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("parse status: %v", err)
	}
	return st
}

func TestFinish_Success(t *testing.T) {
	p := newTestPipeline(t)
	p.cases = []report.CaseRecord{{CaseNo: "5381234567"}}
	p.comms["5381234567"] = "thread"

	if code := p.finish(nil); code != ExitOK {
		t.Fatalf("exit code = %d, want %d", code, ExitOK)
	}
	st := readStatus(t, p.cfg.OutDir)
	if st.State != report.StateOK {
		t.Errorf("status state = %q", st.State)
	}
	if p.state != stateDone {
		t.Errorf("pipeline state = %q", p.state)
	}

	data, err := os.ReadFile(filepath.Join(p.cfg.OutDir, "cases_overview.json"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("parse report: %v", err)
	}
	if len(rep.Cases) != 1 || rep.Cases[0].CommsFile == "" {
		t.Errorf("report cases = %+v", rep.Cases)
	}
}

func TestFinish_PerCaseErrorsStillOK(t *testing.T) {
	p := newTestPipeline(t)
	p.errors = []report.RunError{{CaseNo: "5380000000", Message: "details panel empty"}}

	if code := p.finish(nil); code != ExitOK {
		t.Fatalf("exit code = %d, want %d despite per-case errors", code, ExitOK)
	}
	if st := readStatus(t, p.cfg.OutDir); st.State != report.StateOK {
		t.Errorf("status state = %q", st.State)
	}
}

func TestFinish_Watchdog(t *testing.T) {
	p := newTestPipeline(t)
	p.cases = []report.CaseRecord{{CaseNo: "5381234567"}}

	if code := p.finish(context.DeadlineExceeded); code != ExitWatchdog {
		t.Fatalf("exit code = %d, want %d", code, ExitWatchdog)
	}
	st := readStatus(t, p.cfg.OutDir)
	if st.State != report.StateCritical {
		t.Errorf("status state = %q", st.State)
	}

	// The partial report must still be written, with the timeout recorded.
	data, err := os.ReadFile(filepath.Join(p.cfg.OutDir, "cases_overview.json"))
	if err != nil {
		t.Fatalf("read partial report: %v", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("parse partial report: %v", err)
	}
	if len(rep.Cases) != 1 || len(rep.Errors) != 1 {
		t.Errorf("partial report: %d cases, %d errors", len(rep.Cases), len(rep.Errors))
	}
}

func TestFinish_SessionFailureRaisesAlarm(t *testing.T) {
	p := newTestPipeline(t)
	alarm := filepath.Join(t.TempDir(), "alarm.txt")
	p.cfg.AlarmFile = alarm

	code := p.finish(errors.New("ensure session: " + session.ErrLoginRequired.Error()))
	if code != ExitSessionFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitSessionFailure)
	}
	if _, err := os.Stat(alarm); err != nil {
		t.Errorf("alarm file not written: %v", err)
	}
	if st := readStatus(t, p.cfg.OutDir); st.State != report.StateCritical {
		t.Errorf("status state = %q", st.State)
	}
}

func TestFinish_PreExtractionFailureKeepsReportAbsent(t *testing.T) {
	p := newTestPipeline(t)

	code := p.finish(errors.New("ensure session: " + session.ErrLoginRequired.Error()))
	if code != ExitSessionFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitSessionFailure)
	}
	if st := readStatus(t, p.cfg.OutDir); st.State != report.StateCritical {
		t.Errorf("status state = %q", st.State)
	}
	// A run that never reached extraction has nothing to report; writing an
	// empty case list would clobber the previous run's report.
	if _, err := os.Stat(filepath.Join(p.cfg.OutDir, "cases_overview.json")); !os.IsNotExist(err) {
		t.Errorf("report written by pre-extraction failure: %v", err)
	}
}

func TestFinish_MidExtractionFailureWritesPartialReport(t *testing.T) {
	p := newTestPipeline(t)
	p.state = stateExtracting
	p.cases = []report.CaseRecord{{CaseNo: "5381234567"}}

	code := p.finish(errors.New("recover session: " + session.ErrSessionExpired.Error()))
	if code != ExitSessionFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitSessionFailure)
	}
	data, err := os.ReadFile(filepath.Join(p.cfg.OutDir, "cases_overview.json"))
	if err != nil {
		t.Fatalf("read partial report: %v", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("parse partial report: %v", err)
	}
	if len(rep.Cases) != 1 || len(rep.Errors) != 1 {
		t.Errorf("partial report: %d cases, %d errors", len(rep.Cases), len(rep.Errors))
	}
}

func TestAddCaseError_DebugArtifacts(t *testing.T) {
	p := newTestPipeline(t)
	p.addCaseError("5381234567", &extract.Error{
		CaseNo:         "5381234567",
		ScreenshotPath: "debug/5381234567_error.png",
		HTMLPath:       "debug/5381234567_error.html",
		Err:            errors.New("details section empty"),
	})
	if len(p.errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(p.errors))
	}
	want := []string{"debug/5381234567_error.png", "debug/5381234567_error.html"}
	if diff := cmp.Diff(want, p.errors[0].DebugArtifacts); diff != "" {
		t.Errorf("debug artifacts mismatch (-want +got):\n%s", diff)
	}
}

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")
	ok, err := acquireLock(path, time.Hour)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = acquireLock(path, time.Hour)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Error("second acquire succeeded while lock held")
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("release lock: %v", err)
	}
	ok, err = acquireLock(path, time.Hour)
	if err != nil || !ok {
		t.Fatalf("reacquire after release: ok=%v err=%v", ok, err)
	}
}

func TestAcquireLock_StaleLockReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")
	if err := os.WriteFile(path, []byte("123\n"), 0644); err != nil {
		t.Fatalf("seed lock: %v", err)
	}
	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatalf("age lock: %v", err)
	}
	ok, err := acquireLock(path, time.Hour)
	if err != nil || !ok {
		t.Fatalf("acquire over stale lock: ok=%v err=%v", ok, err)
	}
	// The reclaimed lock belongs to this run now.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock: %v", err)
	}
	if string(data) == "123\n" {
		t.Error("stale lock content survived reclamation")
	}
}

func TestRun_LockedIsNoOp(t *testing.T) {
	dir := t.TempDir()
	lock := filepath.Join(dir, "run.lock")
	if err := os.WriteFile(lock, []byte("123\n"), 0644); err != nil {
		t.Fatalf("seed lock: %v", err)
	}
	code := Run(context.Background(), Config{
		OutDir:   filepath.Join(dir, "out"),
		LockFile: lock,
	})
	if code != ExitOK {
		t.Fatalf("locked run exit = %d, want %d", code, ExitOK)
	}
	// The pre-existing lock must survive the skipped run.
	if _, err := os.Stat(lock); err != nil {
		t.Errorf("lock file removed by skipped run: %v", err)
	}
}

func TestRun_BadSelectorsWritesCriticalStatus(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	code := Run(context.Background(), Config{
		OutDir:        out,
		SelectorsPath: filepath.Join(dir, "missing.yaml"),
	})
	if code != ExitConfigError {
		t.Fatalf("exit code = %d, want %d", code, ExitConfigError)
	}
	// Monitoring polls status.json; even a run that dies on its
	// configuration must leave a fresh CRITICAL status behind.
	st := readStatus(t, out)
	if st.State != report.StateCritical {
		t.Errorf("status state = %q, want %q", st.State, report.StateCritical)
	}
	if st.Message == "" {
		t.Error("status message empty")
	}
}
