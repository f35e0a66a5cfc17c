// Package extract retrieves the raw rendered text of a single case: the
// Details pairs, the fully expanded Communications thread, and the optional
// Onsite Service section. A failing case never aborts the run; failures carry
// debug artifact paths for later inspection.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"casewatch/internal/browser"
	"casewatch/internal/logging"
	"casewatch/internal/selectors"
	"casewatch/internal/session"
)

// RawCase is the unprocessed extraction result for one case. It is ephemeral:
// normalization consumes it and it never reaches the persisted report.
type RawCase struct {
	CaseNo        string
	DetailsText   string
	CommsText     string
	OnsiteText    string
	OnsitePresent bool
}

// Error is a per-case extraction failure with paths to the debug artifacts
// captured at the point of failure.
type Error struct {
	CaseNo         string
	ScreenshotPath string
	HTMLPath       string
	Err            error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract case %s: %v", e.CaseNo, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Extractor scrapes one case at a time through the shared browser session.
type Extractor struct {
	b        *browser.Session
	cfg      *selectors.Config
	debugDir string
	log      *slog.Logger
}

// NewExtractor returns an Extractor writing debug artifacts under debugDir.
func NewExtractor(b *browser.Session, cfg *selectors.Config, debugDir string) *Extractor {
	return &Extractor{b: b, cfg: cfg, debugDir: debugDir, log: logging.New("extract")}
}

// Extract opens the case and captures its sections. On failure it records a
// screenshot and HTML snapshot and returns an *Error referencing them.
func (e *Extractor) Extract(ctx context.Context, caseNo string) (*RawCase, error) {
	raw, err := e.extract(ctx, caseNo)
	if err != nil {
		shot, html := e.dumpDebug(ctx, caseNo)
		return nil, &Error{CaseNo: caseNo, ScreenshotPath: shot, HTMLPath: html, Err: err}
	}
	return raw, nil
}

func (e *Extractor) extract(ctx context.Context, caseNo string) (*RawCase, error) {
	if err := e.openCase(ctx, caseNo); err != nil {
		return nil, err
	}

	details, err := e.detailsText(ctx)
	if err != nil {
		return nil, err
	}

	comms, err := e.commsText(ctx)
	if err != nil {
		return nil, err
	}

	raw := &RawCase{CaseNo: caseNo, DetailsText: details, CommsText: comms}

	// Onsite Service is optional; its absence is not an error.
	raw.OnsitePresent, raw.OnsiteText = e.onsiteText(ctx)

	return raw, nil
}

// openCase locates the case in the list via the search input when one is
// available, then clicks the entry and waits for the case header.
func (e *Extractor) openCase(ctx context.Context, caseNo string) error {
	if filled, _ := e.b.FillFirst(ctx, e.cfg.CaseSearchInputAny, caseNo); filled {
		_ = e.b.Sleep(ctx, 600*time.Millisecond)
	}

	label := "Case " + caseNo
	clicked, err := e.b.ClickFirstByText(ctx, label, nil)
	if err != nil {
		return fmt.Errorf("click case entry: %w", err)
	}
	if !clicked {
		return fmt.Errorf("case %s not present in list", caseNo)
	}

	deadline := time.Now().Add(25 * time.Second)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := e.b.VisibleText(ctx)
		if err != nil {
			return fmt.Errorf("wait for case header: %w", err)
		}
		if strings.Contains(text, caseNo) {
			return nil
		}
		if expired, _ := e.b.AnyTextVisible(ctx, e.cfg.SessionExpiredTextAny); expired {
			return fmt.Errorf("open case %s: %w", caseNo, session.ErrSessionExpired)
		}
		if err := e.b.Sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
	return fmt.Errorf("case %s header did not render", caseNo)
}

func (e *Extractor) detailsText(ctx context.Context) (string, error) {
	e.switchTab(ctx, e.cfg.TabDetailsAny, e.cfg.TabDetailsLabel)
	_ = e.b.Sleep(ctx, 500*time.Millisecond)

	text, err := e.b.VisibleText(ctx)
	if err != nil {
		return "", fmt.Errorf("read details: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("details section empty")
	}
	return text, nil
}

// commsText switches to Communications and materializes the full thread:
// enable the expand-all toggle, then click read-more affordances until none
// remain.
func (e *Extractor) commsText(ctx context.Context) (string, error) {
	e.switchTab(ctx, e.cfg.TabCommunicationsAny, e.cfg.TabCommunicationsLabel)
	_ = e.b.Sleep(ctx, 700*time.Millisecond)

	if ok, _ := e.b.SetCheckedFirst(ctx, e.cfg.ExpandAllAny); ok {
		_ = e.b.Sleep(ctx, 900*time.Millisecond)
	}
	for round := 0; round < 10; round++ {
		n, err := e.b.ClickAll(ctx, e.cfg.ReadMoreAny, 30)
		if err != nil || n == 0 {
			break
		}
		_ = e.b.Sleep(ctx, 250*time.Millisecond)
	}

	text, err := e.b.VisibleText(ctx)
	if err != nil {
		return "", fmt.Errorf("read communications: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("communications section empty")
	}
	return text, nil
}

// onsiteText detects and captures the optional Onsite Service section. Best
// effort only; it must never fail the case.
func (e *Extractor) onsiteText(ctx context.Context) (bool, string) {
	present, _ := e.b.FirstVisible(ctx, e.cfg.TabOnsiteAny)
	if !present {
		if text, err := e.b.VisibleText(ctx); err == nil && strings.Contains(text, e.cfg.TabOnsiteLabel) {
			present = true
		}
	}
	if !present {
		return false, ""
	}

	e.switchTab(ctx, e.cfg.TabOnsiteAny, e.cfg.TabOnsiteLabel)
	_ = e.b.Sleep(ctx, 900*time.Millisecond)

	text, err := e.b.VisibleText(ctx)
	if err != nil {
		return true, ""
	}
	for _, marker := range e.cfg.OnsiteMarkerAny {
		if strings.Contains(text, marker) {
			return true, text
		}
	}
	return true, ""
}

// switchTab clicks a tab by selector list first, falling back to its visible
// label. Headless layouts sometimes push tabs into overflow containers, which
// the selector click handles by scrolling into view.
func (e *Extractor) switchTab(ctx context.Context, sels []string, label string) {
	if clicked, _ := e.b.ClickFirst(ctx, sels); clicked {
		_ = e.b.Sleep(ctx, 400*time.Millisecond)
		return
	}
	if clicked, _ := e.b.ClickFirstByText(ctx, label, []string{"a", "li", "button"}); clicked {
		_ = e.b.Sleep(ctx, 400*time.Millisecond)
	}
}

// dumpDebug captures the failure evidence. Artifacts are named with the case
// number and a timestamp so repeated failures within a run never overwrite
// each other.
func (e *Extractor) dumpDebug(ctx context.Context, caseNo string) (shotPath, htmlPath string) {
	if e.debugDir == "" {
		return "", ""
	}
	if err := os.MkdirAll(e.debugDir, 0o755); err != nil {
		e.log.Warn("create debug dir", "error", err)
		return "", ""
	}
	ts := time.Now().Format("20060102_150405")
	if shot, err := e.b.Screenshot(ctx); err == nil {
		shotPath = filepath.Join(e.debugDir, fmt.Sprintf("%s_error_%s.png", caseNo, ts))
		if err := os.WriteFile(shotPath, shot, 0o644); err != nil {
			shotPath = ""
		}
	}
	if html, err := e.b.HTML(ctx); err == nil {
		htmlPath = filepath.Join(e.debugDir, fmt.Sprintf("%s_error_%s.html", caseNo, ts))
		if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
			htmlPath = ""
		}
	}
	return shotPath, htmlPath
}
