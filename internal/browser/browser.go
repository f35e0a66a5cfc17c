// Package browser wraps chromedp behind the small set of primitives the
// pipeline needs: navigate, read visible text, click, fill, screenshot, and
// cookie import/export. Nothing outside this package touches cdproto types.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"casewatch/internal/logging"
)

// Options configures a browser session.
type Options struct {
	Headless    bool
	StepTimeout time.Duration // per-interaction bound; 0 means 15s
	Width       int           // viewport width; 0 means 1600
	Height      int           // viewport height; 0 means 1000
}

// Session is a single exclusive browser context. It is not safe for
// concurrent use; the pipeline interacts with it strictly sequentially.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	step    time.Duration
	log     *slog.Logger
}

// Cookie is the serializable subset of a browser cookie the session artifact
// carries. Treated as equivalent to a password by callers.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// Start launches a browser context. The returned session is bound to ctx:
// cancelling ctx tears the browser down.
func Start(ctx context.Context, opts Options) (*Session, error) {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 15 * time.Second
	}
	if opts.Width <= 0 {
		opts.Width = 1600
	}
	if opts.Height <= 0 {
		opts.Height = 1000
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{browserCancel, allocCancel},
		step:    opts.StepTimeout,
		log:     logging.New("browser"),
	}

	// First Run starts the process; a failure here is a startup failure.
	if err := s.run(ctx, chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height))); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s, nil
}

// Close tears down the browser context. Safe to call more than once.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// run executes chromedp actions under the per-step timeout while still
// honoring cancellation of the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.ctx, s.step)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

// Navigate loads url. The portal is a SPA that occasionally aborts the
// navigation request after the client-side router has already switched views,
// so net::ERR_ABORTED is verified against the current location and retried
// with backoff instead of failing outright.
func (s *Session) Navigate(ctx context.Context, url string) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		err := s.run(ctx, chromedp.Navigate(url))
		if err == nil {
			return nil
		}
		lastErr = err
		s.log.Warn("navigation failed", "url", url, "attempt", attempt+1, "error", err)
		if !strings.Contains(err.Error(), "net::ERR_ABORTED") {
			continue
		}
		loc, locErr := s.Location(ctx)
		if locErr == nil && strings.HasPrefix(loc, strings.SplitN(url, "?", 2)[0]) {
			return nil
		}
	}
	return fmt.Errorf("navigate %s: %w", url, lastErr)
}

// Location returns the current page URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("location: %w", err)
	}
	return loc, nil
}

// Sleep pauses interaction to let the SPA settle, honoring cancellation.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Screenshot captures a full-page screenshot for debug artifacts.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// HTML returns the serialized document for debug artifacts.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

// ExportCookies reads all cookies from the browser context.
func (s *Session) ExportCookies(ctx context.Context) ([]Cookie, error) {
	var out []Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		cookies, err := storage.GetCookies().Do(cctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out = append(out, Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("export cookies: %w", err)
	}
	return out, nil
}

// ImportCookies loads persisted cookies into the browser context.
func (s *Session) ImportCookies(ctx context.Context, cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			t := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &t
		}
		params = append(params, p)
	}
	err := s.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		return storage.SetCookies(params).Do(cctx)
	}))
	if err != nil {
		return fmt.Errorf("import cookies: %w", err)
	}
	return nil
}

// ClearCookies wipes browser cookies, used when recovering from a dead
// session before re-login.
func (s *Session) ClearCookies(ctx context.Context) error {
	err := s.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		return network.ClearBrowserCookies().Do(cctx)
	}))
	if err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}
