// Package discover enumerates the case identifiers currently visible to the
// authenticated account. It mirrors the portal's active view exactly and
// applies no filtering of its own.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"casewatch/internal/browser"
	"casewatch/internal/logging"
	"casewatch/internal/selectors"
	"casewatch/internal/session"
)

// stableRounds is how many consecutive scroll attempts may yield no new
// identifiers before the list is considered fully materialized.
const stableRounds = 3

// maxScrollRounds bounds the scroll loop regardless of progress.
const maxScrollRounds = 15

// Lister walks the cases list view and collects identifiers.
type Lister struct {
	b   *browser.Session
	cfg *selectors.Config
	log *slog.Logger
}

// NewLister returns a Lister bound to the shared browser session.
func NewLister(b *browser.Session, cfg *selectors.Config) *Lister {
	return &Lister{b: b, cfg: cfg, log: logging.New("discover")}
}

// List navigates to the cases view and returns the unique case numbers in
// first-seen order. An empty result is valid: it means zero visible cases,
// not a discovery failure. max > 0 stops collection early.
func (l *Lister) List(ctx context.Context, max int) ([]string, error) {
	if err := l.b.Navigate(ctx, l.cfg.CasesURL); err != nil {
		return nil, fmt.Errorf("open cases view: %w", err)
	}
	if err := l.waitReady(ctx, 45*time.Second); err != nil {
		return nil, err
	}

	rx := l.cfg.CaseRegexp()
	var found []string
	seen := make(map[string]bool)
	stale := 0

	for round := 0; round < maxScrollRounds && stale < stableRounds; round++ {
		text, err := l.b.VisibleText(ctx)
		if err != nil {
			return nil, fmt.Errorf("read cases list: %w", err)
		}

		added := 0
		for _, m := range rx.FindAllStringSubmatch(text, -1) {
			id := m[1]
			if seen[id] {
				continue
			}
			seen[id] = true
			found = append(found, id)
			added++
			if max > 0 && len(found) >= max {
				l.log.Info("case discovery stopped at limit", "cases", len(found))
				return found, nil
			}
		}
		if added == 0 {
			stale++
		} else {
			stale = 0
		}

		// Virtualized lists render more rows as their scroll panel advances.
		if err := l.b.ScrollList(ctx, l.cfg.CaseListContainerAny); err != nil {
			return nil, err
		}
		if err := l.b.Sleep(ctx, 800*time.Millisecond); err != nil {
			return nil, err
		}
	}

	l.log.Info("case discovery complete", "cases", len(found))
	return found, nil
}

// waitReady blocks until the cases view shows either the list container or a
// case-number pattern. Session-expiry indicators surface as an error so the
// caller can attempt recovery.
func (l *Lister) waitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if expired, err := l.b.AnyTextVisible(ctx, l.cfg.SessionExpiredTextAny); err != nil {
			return fmt.Errorf("inspect cases view: %w", err)
		} else if expired {
			return fmt.Errorf("cases view: %w", session.ErrSessionExpired)
		}
		if ok, _ := l.b.FirstVisible(ctx, l.cfg.CaseListContainerAny); ok {
			return nil
		}
		text, err := l.b.VisibleText(ctx)
		if err == nil && l.cfg.CaseRegexp().MatchString(text) {
			return nil
		}
		if err := l.b.Sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
	return fmt.Errorf("cases view not ready within %s", timeout)
}
