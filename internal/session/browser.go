package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"dailybrief/internal/config"
	"dailybrief/internal/deps"
	"dailybrief/internal/logging"
	"dailybrief/internal/notebook"
)

// BrowserProvider drives a real Chrome/Chromium to the provider's login page
// and captures the resulting session once the signed-in UI appears.
type BrowserProvider struct {
	binary        string
	loginURL      string
	readySelector string
	cookieDomain  string
	headless      bool
	timeout       time.Duration
	profileDir    func(userID string) string
	logger        *slog.Logger

	resolve func(configured string) (string, error)
}

// NewBrowserProvider builds a provider from browser and notebook config.
func NewBrowserProvider(cfg *config.Config, logger *slog.Logger) *BrowserProvider {
	return &BrowserProvider{
		binary:        cfg.Browser.Binary,
		loginURL:      cfg.Notebook.LoginURL,
		readySelector: cfg.Browser.ReadySelector,
		cookieDomain:  cfg.Notebook.CookieDomain,
		headless:      cfg.Headless(),
		timeout:       cfg.LoginTimeout(),
		profileDir:    cfg.BrowserProfileDir,
		logger:        logging.NewComponentLogger(logger, "browser"),
		resolve:       deps.ResolveBrowser,
	}
}

// Name implements AuthProvider.
func (p *BrowserProvider) Name() string { return "browser" }

// Acquire opens the login page in a persistent per-user profile and waits for
// the ready selector. On timeout the current state is still captured and
// returned together with ErrLoginTimeout.
func (p *BrowserProvider) Acquire(ctx context.Context, userID string) (Capture, error) {
	binary, err := p.resolve(p.binary)
	if err != nil {
		return Capture{}, fmt.Errorf("%w: %v", ErrAutomationUnavailable, err)
	}
	profile := p.profileDir(userID)
	if err := os.MkdirAll(profile, 0o700); err != nil {
		return Capture{}, fmt.Errorf("%w: create browser profile: %v", ErrAuthenticationFailed, err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(binary),
		chromedp.UserDataDir(profile),
		chromedp.Flag("headless", p.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	p.logger.Info("opening provider login page",
		logging.String(logging.FieldUserID, userID),
		logging.String("url", p.loginURL),
		logging.Bool("headless", p.headless),
		logging.Duration("timeout", p.timeout),
	)
	// The first Run owns the browser lifetime, so it must use browserCtx.
	if err := chromedp.Run(browserCtx, chromedp.Navigate(p.loginURL)); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return Capture{}, err
		}
		return Capture{}, fmt.Errorf("%w: launch browser: %v", ErrAutomationUnavailable, err)
	}

	waitCtx, cancelWait := context.WithTimeout(browserCtx, p.timeout)
	waitErr := chromedp.Run(waitCtx, chromedp.WaitVisible(p.readySelector, chromedp.ByQuery))
	cancelWait()

	timedOut := false
	if waitErr != nil {
		if ctx.Err() != nil {
			return Capture{}, ctx.Err()
		}
		if !errors.Is(waitErr, context.DeadlineExceeded) {
			return Capture{}, fmt.Errorf("%w: wait for login: %v", ErrAuthenticationFailed, waitErr)
		}
		timedOut = true
	}

	state, err := p.capture(browserCtx)
	if err != nil {
		if timedOut {
			return Capture{}, ErrLoginTimeout
		}
		return Capture{}, fmt.Errorf("%w: capture session: %v", ErrAuthenticationFailed, err)
	}
	blob, err := state.Marshal()
	if err != nil {
		return Capture{}, fmt.Errorf("%w: encode session: %v", ErrAuthenticationFailed, err)
	}
	if timedOut {
		return Capture{Blob: blob, Partial: true}, ErrLoginTimeout
	}
	return Capture{Blob: blob}, nil
}

func (p *BrowserProvider) capture(ctx context.Context) (notebook.StorageState, error) {
	var (
		cookies  []*network.Cookie
		location string
		entries  [][]string
	)
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
		chromedp.Location(&location),
		chromedp.Evaluate(`Object.entries(window.localStorage)`, &entries),
	)
	if err != nil {
		return notebook.StorageState{}, err
	}

	state := notebook.StorageState{Cookies: make([]notebook.Cookie, 0, len(cookies))}
	for _, c := range cookies {
		if !domainMatches(c.Domain, p.cookieDomain) {
			continue
		}
		state.Cookies = append(state.Cookies, notebook.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}
	if origin := originOf(location); origin != "" && len(entries) > 0 {
		o := notebook.Origin{Origin: origin}
		for _, kv := range entries {
			if len(kv) == 2 {
				o.LocalStorage = append(o.LocalStorage, notebook.StorageEntry{Name: kv[0], Value: kv[1]})
			}
		}
		state.Origins = append(state.Origins, o)
	}
	return state, nil
}

func domainMatches(cookieDomain, want string) bool {
	want = strings.TrimPrefix(strings.ToLower(want), ".")
	if want == "" {
		return true
	}
	host := strings.TrimPrefix(strings.ToLower(cookieDomain), ".")
	return host == want || strings.HasSuffix(host, "."+want)
}

func originOf(location string) string {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
