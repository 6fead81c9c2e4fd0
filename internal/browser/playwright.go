package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

// Options configures how a Launcher starts Chromium.
type Options struct {
	Headless bool
	// SessionPath, when set, keeps cookies and storage in a persistent profile directory.
	SessionPath string
	UserAgent   string
	Proxy       string
	Cookies     []playwright.OptionalCookie
	Stealth     bool
}

// Launcher opens playwright-backed sessions.
type Launcher struct {
	opts   Options
	logger zerolog.Logger
}

func NewLauncher(opts Options, logger zerolog.Logger) *Launcher {
	return &Launcher{opts: opts, logger: logger}
}

// Install downloads the playwright driver and Chromium.
func Install() error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
}

func (l *Launcher) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	proxy, err := proxyOption(l.opts.Proxy)
	if err != nil {
		_ = pw.Stop()
		return nil, err
	}

	s := &pwSession{pw: pw}
	if l.opts.SessionPath != "" {
		err = l.launchPersistent(s, proxy)
	} else {
		err = l.launchEphemeral(s, proxy)
	}
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	if l.opts.Stealth {
		if err := s.context.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("add init script: %w", err)
		}
	}

	if len(l.opts.Cookies) > 0 {
		if err := s.context.AddCookies(l.opts.Cookies); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("add cookies: %w", err)
		}
	}

	if pages := s.context.Pages(); len(pages) > 0 {
		s.page = pages[0]
	} else {
		s.page, err = s.context.NewPage()
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("new page: %w", err)
		}
	}

	l.logger.Debug().
		Bool("headless", l.opts.Headless).
		Str("session_path", l.opts.SessionPath).
		Bool("proxy", proxy != nil).
		Int("cookies", len(l.opts.Cookies)).
		Msg("browser launched")

	return s, nil
}

func (l *Launcher) launchPersistent(s *pwSession, proxy *playwright.Proxy) error {
	if err := os.MkdirAll(l.opts.SessionPath, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Proxy:    proxy,
	}
	if l.opts.UserAgent != "" {
		opts.UserAgent = playwright.String(l.opts.UserAgent)
	}
	bctx, err := s.pw.Chromium.LaunchPersistentContext(l.opts.SessionPath, opts)
	if err != nil {
		return fmt.Errorf("launch persistent context: %w", err)
	}
	s.context = bctx
	return nil
}

func (l *Launcher) launchEphemeral(s *pwSession, proxy *playwright.Proxy) error {
	b, err := s.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Proxy:    proxy,
	})
	if err != nil {
		return fmt.Errorf("launch chromium: %w", err)
	}
	s.browser = b

	opts := playwright.BrowserNewContextOptions{}
	if l.opts.UserAgent != "" {
		opts.UserAgent = playwright.String(l.opts.UserAgent)
	}
	bctx, err := b.NewContext(opts)
	if err != nil {
		return fmt.Errorf("new context: %w", err)
	}
	s.context = bctx
	return nil
}

func proxyOption(raw string) (*playwright.Proxy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse proxy: missing host in %q", raw)
	}
	proxy := &playwright.Proxy{Server: u.Scheme + "://" + u.Host}
	if u.User != nil {
		proxy.Username = playwright.String(u.User.Username())
		if password, ok := u.User.Password(); ok {
			proxy.Password = playwright.String(password)
		}
	}
	return proxy, nil
}

type pwSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func (s *pwSession) Navigate(ctx context.Context, target string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(millis(remaining(ctx, timeout))),
	})
	return mapError(err)
}

func (s *pwSession) Content() (string, error) {
	return s.page.Content()
}

func (s *pwSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(millis(remaining(ctx, timeout))),
	})
	return mapError(err)
}

func (s *pwSession) QueryAll(selector string) ([]Element, error) {
	handles, err := s.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &pwElement{handle: h})
	}
	return out, nil
}

func (s *pwSession) QuerySingle(selector string) (Element, error) {
	h, err := s.page.QuerySelector(selector)
	if err != nil || h == nil {
		return nil, err
	}
	return &pwElement{handle: h}, nil
}

func (s *pwSession) Wait(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

// Close tears down context, browser and driver; every step runs even if an earlier one fails.
func (s *pwSession) Close() error {
	var errs []error
	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
	}
	return errors.Join(errs...)
}

type pwElement struct {
	handle playwright.ElementHandle
}

func (e *pwElement) QuerySingle(selector string) (Element, error) {
	h, err := e.handle.QuerySelector(selector)
	if err != nil || h == nil {
		return nil, err
	}
	return &pwElement{handle: h}, nil
}

func (e *pwElement) Text() (string, error) {
	return e.handle.InnerText()
}

func (e *pwElement) Attribute(name string) (string, error) {
	return e.handle.GetAttribute(name)
}

func (e *pwElement) Click() error {
	return e.handle.Click()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// millis never returns 0: playwright treats a zero timeout as "wait forever".
func millis(d time.Duration) float64 {
	if d < time.Millisecond {
		return 1
	}
	return float64(d.Milliseconds())
}
