package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"casewatch/internal/browser"
	"casewatch/internal/logging"
	"casewatch/internal/selectors"
)

// ErrLoginRequired is returned when no valid session can be established and
// no credential fallback exists. It is the only condition requiring a human.
var ErrLoginRequired = errors.New("interactive login required")

// ErrSessionExpired marks a session that died mid-run.
var ErrSessionExpired = errors.New("session expired")

const loginDeadline = 2 * time.Minute

// Manager drives session lifecycle against the portal. It is the single
// owner of the session artifact; no other component reads or writes it.
type Manager struct {
	b         *browser.Session
	cfg       *selectors.Config
	statePath string
	cred      Credential
	debugDir  string
	log       *slog.Logger
}

// NewManager wires a session manager to an exclusive browser session.
// debugDir may be empty to disable login failure dumps.
func NewManager(b *browser.Session, cfg *selectors.Config, statePath string, cred Credential, debugDir string) *Manager {
	return &Manager{
		b:         b,
		cfg:       cfg,
		statePath: statePath,
		cred:      cred,
		debugDir:  debugDir,
		log:       logging.New("session"),
	}
}

// Ensure establishes a valid authenticated context: load the persisted state
// if present, verify readiness against the visible indicator sets, and fall
// back to automated login when a credential is available.
func (m *Manager) Ensure(ctx context.Context) error {
	if st, err := LoadState(m.statePath); err == nil {
		if err := m.b.ImportCookies(ctx, st.Cookies); err != nil {
			return fmt.Errorf("load persisted session: %w", err)
		}
		m.log.Info("session state loaded", "path", m.statePath, "cookies", len(st.Cookies))
	} else if !errors.Is(err, os.ErrNotExist) {
		m.log.Warn("session state unreadable, proceeding without it", "error", err)
	}

	if err := m.b.Navigate(ctx, m.cfg.HomeURL); err != nil {
		return fmt.Errorf("open portal: %w", err)
	}
	m.dismissCookieBanner(ctx)
	m.waitForPortalState(ctx, 10*time.Second)

	ok, err := m.ready(ctx)
	if err != nil {
		return fmt.Errorf("inspect portal state: %w", err)
	}
	if ok {
		m.log.Info("session valid")
		return nil
	}

	if !m.cred.IsSet() {
		return ErrLoginRequired
	}
	m.log.Warn("login required, attempting automated login", "user", m.cred.Username)
	if err := m.login(ctx); err != nil {
		return fmt.Errorf("automated login: %w", err)
	}
	// Persist immediately so a later crash does not cost the fresh session.
	if err := m.Refresh(ctx); err != nil {
		m.log.Warn("could not persist fresh session", "error", err)
	}
	return nil
}

// Refresh re-exports cookies and rewrites the session artifact. Sessions on
// this portal are rolling: without the rewrite the on-disk state expires
// after roughly a day and the operator must log in again.
func (m *Manager) Refresh(ctx context.Context) error {
	cookies, err := m.b.ExportCookies(ctx)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	now := time.Now().UTC()
	st := &State{CreatedAt: now, LastRefreshedAt: now, Cookies: cookies}
	if prev, err := LoadState(m.statePath); err == nil && !prev.CreatedAt.IsZero() {
		st.CreatedAt = prev.CreatedAt
	}
	if err := SaveState(m.statePath, st); err != nil {
		return err
	}
	m.log.Info("session state refreshed", "path", m.statePath)
	return nil
}

// Recover clears the dead session and retries automated login. Used when the
// session expires between discovery and extraction.
func (m *Manager) Recover(ctx context.Context) error {
	if !m.cred.IsSet() {
		return ErrLoginRequired
	}
	m.log.Warn("session expired mid-run, attempting recovery")
	if err := m.b.ClearCookies(ctx); err != nil {
		m.log.Warn("clear cookies failed", "error", err)
	}
	if err := m.login(ctx); err != nil {
		return fmt.Errorf("session recovery: %w", err)
	}
	return m.Refresh(ctx)
}

// Expired reports whether an expired-session indicator is visible.
func (m *Manager) Expired(ctx context.Context) (bool, error) {
	return m.b.AnyTextVisible(ctx, m.cfg.SessionExpiredTextAny)
}

// ready decides the authenticated state from visible indicators only. Ready
// indicators win; otherwise any logged-out signal means login is needed.
func (m *Manager) ready(ctx context.Context) (bool, error) {
	if expired, err := m.Expired(ctx); err != nil || expired {
		return false, err
	}
	if ok, err := m.b.AnyTextVisible(ctx, m.cfg.ReadyTextAny); err != nil || ok {
		return ok, err
	}
	text, err := m.b.VisibleText(ctx)
	if err != nil {
		return false, err
	}
	if m.cfg.CaseRegexp().MatchString(text) {
		return true, nil
	}
	if loggedOut, err := m.loggedOut(ctx); err != nil || loggedOut {
		return false, err
	}
	if onLogin, err := m.loginScreen(ctx); err != nil || onLogin {
		return false, err
	}
	// No negative signal either; treat as authenticated and let the cases
	// view confirm it.
	return true, nil
}

func (m *Manager) loggedOut(ctx context.Context) (bool, error) {
	if out, err := m.b.AnyTextVisible(ctx, m.cfg.SignoutTextAny); err != nil {
		return false, err
	} else if out {
		return false, nil
	}
	if trig, err := m.b.FirstVisible(ctx, m.cfg.SigninTriggerAny); err != nil || trig {
		return trig, err
	}
	return m.b.AnyTextVisible(ctx, m.cfg.LoggedOutTextAny)
}

func (m *Manager) loginScreen(ctx context.Context) (bool, error) {
	loc, err := m.b.Location(ctx)
	if err == nil && onAuthHost(loc, m.cfg.SigninURL) {
		return true, nil
	}
	if auth, err := m.b.AnyTextVisible(ctx, m.cfg.AuthPageTextAny); err != nil || auth {
		return auth, err
	}
	if user, err := m.b.FirstVisible(ctx, m.cfg.LoginUsernameAny); err != nil || user {
		return user, err
	}
	return m.b.FirstVisible(ctx, m.cfg.LoginPasswordAny)
}

func (m *Manager) authenticating(ctx context.Context) (bool, error) {
	return m.b.AnyTextVisible(ctx, m.cfg.AuthenticatingTextAny)
}

func (m *Manager) dismissCookieBanner(ctx context.Context) {
	if clicked, err := m.b.ClickFirst(ctx, m.cfg.CookieAcceptAny); err == nil && clicked {
		_ = m.b.Sleep(ctx, 800*time.Millisecond)
	}
}

// waitForPortalState waits until the SPA has rendered enough to decide the
// login state, avoiding a false verdict on a half-rendered page.
func (m *Manager) waitForPortalState(ctx context.Context, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		m.dismissCookieBanner(ctx)
		if on, _ := m.loginScreen(ctx); on {
			return
		}
		if trig, _ := m.b.FirstVisible(ctx, m.cfg.SigninTriggerAny); trig {
			return
		}
		if out, _ := m.b.AnyTextVisible(ctx, m.cfg.SignoutTextAny); out {
			return
		}
		if ok, _ := m.b.AnyTextVisible(ctx, m.cfg.ReadyTextAny); ok {
			return
		}
		if m.b.Sleep(ctx, 250*time.Millisecond) != nil {
			return
		}
	}
}

// login drives the automated credential flow. It supports single-step forms,
// two-step forms (username then password) and identity-provider frames, all
// located through the configured selector lists with generic fallbacks.
func (m *Manager) login(ctx context.Context) error {
	if err := m.b.Navigate(ctx, m.cfg.SigninURL); err != nil {
		// Some portals only accept the sign-in entry after a warm-up hit.
		if err2 := m.b.Navigate(ctx, m.cfg.HomeURL); err2 != nil {
			m.dumpDebug(ctx, "navfail")
			return err
		}
		m.dismissCookieBanner(ctx)
		if err := m.b.Navigate(ctx, m.cfg.SigninURL); err != nil {
			m.dumpDebug(ctx, "navfail")
			return err
		}
	}
	m.dismissCookieBanner(ctx)

	userSels := append(append([]string{}, m.cfg.LoginUsernameAny...), genericUserInputs...)
	passSels := append(append([]string{}, m.cfg.LoginPasswordAny...), genericPassInputs...)

	deadline := time.Now().Add(loginDeadline)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.dismissCookieBanner(ctx)

		loc, _ := m.b.Location(ctx)
		if m.backAtPortal(ctx, loc) {
			return nil
		}
		if auth, _ := m.authenticating(ctx); auth {
			_ = m.b.Sleep(ctx, 2*time.Second)
			continue
		}
		if expired, _ := m.Expired(ctx); expired {
			m.dumpDebug(ctx, "sessionexpired")
			return ErrSessionExpired
		}

		userVisible, _ := m.b.FirstVisible(ctx, userSels)
		passVisible, _ := m.b.FirstVisible(ctx, passSels)

		switch {
		case userVisible && !passVisible:
			// Two-step flow: username first, then advance.
			if ok, _ := m.b.FillFirst(ctx, userSels, m.cred.Username); !ok {
				m.dumpDebug(ctx, "filluserfail")
				return fmt.Errorf("username field not fillable")
			}
			if clicked, _ := m.b.ClickFirst(ctx, m.cfg.LoginNextAny); !clicked {
				_, _ = m.b.SubmitFirst(ctx, userSels)
			}
			_ = m.b.Sleep(ctx, 1200*time.Millisecond)

		case passVisible:
			if userVisible {
				_, _ = m.b.FillFirst(ctx, userSels, m.cred.Username)
			}
			if ok, _ := m.b.FillFirst(ctx, passSels, m.cred.Secret); !ok {
				m.dumpDebug(ctx, "fillpassfail")
				return fmt.Errorf("password field not fillable")
			}
			if clicked, _ := m.b.ClickFirst(ctx, m.cfg.LoginSubmitAny); !clicked {
				if clicked, _ = m.b.ClickFirst(ctx, m.cfg.LoginNextAny); !clicked {
					_, _ = m.b.SubmitFirst(ctx, passSels)
				}
			}
			_ = m.b.Sleep(ctx, 2*time.Second)
			loc, _ := m.b.Location(ctx)
			if m.backAtPortal(ctx, loc) {
				return nil
			}
			m.dumpDebug(ctx, "postsubmit")

		default:
			_ = m.b.Sleep(ctx, 800*time.Millisecond)
		}
	}
	m.dumpDebug(ctx, "timeout")
	return fmt.Errorf("login did not complete within %s", loginDeadline)
}

// backAtPortal reports whether the browser returned to the portal host in an
// authenticated state after a login submit.
func (m *Manager) backAtPortal(ctx context.Context, loc string) bool {
	if loc == "" || !sameHost(loc, m.cfg.HomeURL) {
		return false
	}
	if out, _ := m.loggedOut(ctx); out {
		return false
	}
	if on, _ := m.loginScreen(ctx); on {
		return false
	}
	return true
}

func (m *Manager) dumpDebug(ctx context.Context, tag string) {
	if m.debugDir == "" {
		return
	}
	if err := os.MkdirAll(m.debugDir, 0o755); err != nil {
		return
	}
	ts := time.Now().Format("20060102_150405")
	if shot, err := m.b.Screenshot(ctx); err == nil {
		_ = os.WriteFile(filepath.Join(m.debugDir, fmt.Sprintf("login_%s_%s.png", tag, ts)), shot, 0o644)
	}
	if html, err := m.b.HTML(ctx); err == nil {
		_ = os.WriteFile(filepath.Join(m.debugDir, fmt.Sprintf("login_%s_%s.html", tag, ts)), []byte(html), 0o644)
	}
}

// Generic fallbacks used after the configured selectors, so minor login form
// changes do not require a config update.
var genericUserInputs = []string{
	"input[type='email']",
	"input[autocomplete='username']",
	"input[name*='user' i]",
	"input[id*='user' i]",
	"input[name*='email' i]",
	"form input[type='text']",
}

var genericPassInputs = []string{
	"input[type='password']",
	"input[autocomplete='current-password']",
	"input[name*='pass' i]",
	"input[id*='pass' i]",
}

func sameHost(a, b string) bool {
	ua, err1 := url.Parse(a)
	ub, err2 := url.Parse(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return strings.EqualFold(ua.Hostname(), ub.Hostname())
}

func onAuthHost(loc, signinURL string) bool {
	u, err := url.Parse(signinURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	l, err := url.Parse(loc)
	if err != nil {
		return false
	}
	return !strings.EqualFold(l.Hostname(), "") &&
		strings.EqualFold(l.Hostname(), u.Hostname()) &&
		strings.Contains(l.Path, u.Path) && u.Path != "/"
}
