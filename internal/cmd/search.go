package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jimezsa/indeedhub/internal/browser"
	"github.com/jimezsa/indeedhub/internal/config"
	"github.com/jimezsa/indeedhub/internal/export"
	"github.com/jimezsa/indeedhub/internal/models"
	"github.com/jimezsa/indeedhub/internal/network"
	"github.com/jimezsa/indeedhub/internal/scraper"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
)

type SearchCmd struct {
	Query string `arg:"" help:"Job title or keywords, e.g. \"web developer\"."`
	SearchOptions
}

type SearchOptions struct {
	Region       string `help:"Region or city (default from config)."`
	Origin       string `help:"Site origin, e.g. https://ca.indeed.com (default from config)."`
	Limit        int    `help:"Maximum number of cards to process (default from config)."`
	Headed       bool   `help:"Show the browser window."`
	Session      string `help:"Persistent browser profile directory; cookies and storage survive between runs."`
	NoBlockCheck bool   `help:"Skip the Cloudflare/captcha content check."`
	DetailWait   string `help:"Detail panel wait strategy: fixed or poll." enum:",fixed,poll" default:""`
	Format       string `help:"Output format: table, csv, tsv, json, md." enum:",table,csv,tsv,json,md" default:""`
	Output       string `name:"output" short:"o" help:"Write output to a file."`
	Details      bool   `help:"Print a full-description panel for every job (table output)."`
	Links        string `help:"Table link display: short or full." enum:"short,full" default:"full"`
	Proxies      string `help:"Comma-separated proxy URLs; each is tried against the origin and the first one not blocked is handed to the browser."`
}

// newOpener builds the browser backend for a run.
var newOpener = func(opts browser.Options, logger zerolog.Logger) browser.Opener {
	return browser.NewLauncher(opts, logger)
}

func (s *SearchCmd) Run(ctx *Context) error {
	return runSearch(ctx, s.Query, s.SearchOptions)
}

func runSearch(ctx *Context, query string, opts SearchOptions) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("a non-empty query is required")
	}

	cfg := applySearchOptions(ctx.Config, opts)
	params := models.SearchParams{
		Query:  query,
		Region: cfg.Region,
		Limit:  cfg.MaxResults,
	}

	waiter, err := scraper.NewDetailWaiter(cfg.DetailWait, cfg.DetailDelay())
	if err != nil {
		return err
	}

	proxy, err := selectProxy(ctx, cfg, opts.Proxies)
	if err != nil {
		return err
	}

	cookies, err := browser.LoadCookies(filepath.Join(ctx.ConfigDir, config.CookiesFileName))
	if err != nil {
		ctx.Logger.Warn().Err(err).Msg("ignoring unreadable cookies file")
		cookies = nil
	}

	outputPath := strings.TrimSpace(opts.Output)
	format, err := resolveFormat(ctx, opts, outputPath)
	if err != nil {
		return err
	}

	opener := newOpener(browser.Options{
		Headless:    cfg.Headless,
		SessionPath: cfg.SessionPath,
		UserAgent:   cfg.UserAgent,
		Proxy:       proxy,
		Cookies:     cookies,
		Stealth:     true,
	}, ctx.Logger)

	indicator := startSearchIndicator(ctx)
	observer := scraper.ObserverFunc(func(_ int, job models.Job) {
		indicator.progressf(ctx, "Extracted: %s", job.Title)
	})

	indeed := scraper.NewIndeed(opener, cfg.ScraperConfig(),
		scraper.WithDetailWaiter(waiter),
		scraper.WithObserver(observer),
		scraper.WithLogger(ctx.Logger),
	)
	res := indeed.Run(ctx.runContext(), params)
	indicator.stop()

	reportRunError(ctx, res.Err)
	reportCardFaults(ctx, res.Faults)

	if err := writeResults(ctx, res.Jobs, format, outputPath, opts); err != nil {
		return err
	}

	printSearchSummary(ctx, res)
	return nil
}

// applySearchOptions layers command flags over the loaded config.
func applySearchOptions(cfg config.Config, opts SearchOptions) config.Config {
	if v := strings.TrimSpace(opts.Region); v != "" {
		cfg.Region = v
	}
	if v := strings.TrimSpace(opts.Origin); v != "" {
		cfg.Origin = v
	}
	if opts.Limit > 0 {
		cfg.MaxResults = opts.Limit
	}
	if opts.Headed {
		cfg.Headless = false
	}
	if v := strings.TrimSpace(opts.Session); v != "" {
		cfg.SessionPath = v
	}
	if opts.NoBlockCheck {
		cfg.BlockCheck = false
	}
	if opts.DetailWait != "" {
		cfg.DetailWait = opts.DetailWait
	}
	return cfg
}

const (
	proxyBanDuration  = 10 * time.Minute
	proxyCheckTimeout = 15 * time.Second
)

// proxyChecker fetches a target through one pinned proxy.
type proxyChecker interface {
	SetProxy(proxy string) error
	Check(ctx context.Context, target string, timeout time.Duration) (network.CheckResult, error)
}

var newProxyChecker = func(userAgent string) (proxyChecker, error) {
	return network.NewClient(network.ClientOptions{
		UserAgent:      userAgent,
		TimeoutSeconds: int(proxyCheckTimeout / time.Second),
	})
}

// selectProxy returns the first configured proxy that reaches the origin
// without a 403/429, or "" when no proxies are configured.
func selectProxy(ctx *Context, cfg config.Config, flagValue string) (string, error) {
	proxies, err := config.LoadProxies(flagValue)
	if err != nil {
		return "", err
	}
	if len(proxies) == 0 {
		return "", nil
	}
	rotator, err := network.NewRotator(proxies, proxyBanDuration)
	if err != nil {
		return "", err
	}
	checker, err := newProxyChecker(cfg.UserAgent)
	if err != nil {
		return "", err
	}

	target := cfg.ScraperConfig().Origin
	proxy, err := rotator.FirstUsable(ctx.runContext(), func(runCtx context.Context, proxy *url.URL) (int, error) {
		if err := checker.SetProxy(proxy.String()); err != nil {
			return 0, err
		}
		res, err := checker.Check(runCtx, target, proxyCheckTimeout)
		if err != nil {
			ctx.Logger.Debug().Err(err).Str("proxy", proxy.Redacted()).Msg("proxy unreachable")
			return 0, err
		}
		ctx.Logger.Debug().Int("status", res.StatusCode).Str("proxy", proxy.Redacted()).Msg("proxy checked")
		return res.StatusCode, nil
	})
	if err != nil {
		return "", fmt.Errorf("select proxy: %w", err)
	}
	return proxy.String(), nil
}

func reportRunError(ctx *Context, err error) {
	if err == nil || ctx.UI == nil {
		return
	}
	switch {
	case errors.Is(err, scraper.ErrBlocked):
		ctx.UI.Warnf("Blocked by Cloudflare/Captcha. Try --headed, a --session profile or a proxy.")
	case errors.Is(err, scraper.ErrNoCards):
		ctx.UI.Warnf("No job cards found. The page layout may have changed or the search returned nothing.")
	default:
		ctx.UI.Errorf("Error during scrape: %v", err)
	}
}

func reportCardFaults(ctx *Context, faults []scraper.CardFault) {
	if ctx.UI == nil || !ctx.Verbose || len(faults) == 0 {
		return
	}
	ctx.UI.Warnf("\nSkipped cards:")
	for _, fault := range faults {
		ctx.UI.Warnf("  #%d %s: %v", fault.Index, fault.Stage, fault.Err)
	}
}

func writeResults(ctx *Context, jobs []models.Job, format export.Format, outputPath string, opts SearchOptions) error {
	writer := ctx.Out
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer file.Close()
		writer = file
	}

	colorEnabled := ctx.UI != nil && ctx.UI.ColorEnabled && outputPath == ""
	hyperlinks := colorEnabled && isTTY(writer)
	linkStyle := export.LinkStyleShort
	if strings.EqualFold(opts.Links, string(export.LinkStyleFull)) {
		linkStyle = export.LinkStyleFull
	}
	return export.WriteJobs(writer, jobs, format, export.WriteOptions{
		ColorEnabled: colorEnabled,
		Hyperlinks:   hyperlinks,
		LinkStyle:    linkStyle,
		Details:      opts.Details,
	})
}

func printSearchSummary(ctx *Context, res scraper.Result) {
	if ctx == nil || ctx.Err == nil {
		return
	}
	_, _ = fmt.Fprintf(ctx.Err, "%s\n", formatSearchSummary(res))
}

func formatSearchSummary(res scraper.Result) string {
	status := "ok"
	switch {
	case errors.Is(res.Err, scraper.ErrBlocked):
		status = "blocked"
	case errors.Is(res.Err, scraper.ErrNoCards):
		status = "no_cards"
	case res.Err != nil:
		status = "error"
	}
	return fmt.Sprintf("summary: jobs=%d skipped=%d status=%s", len(res.Jobs), len(res.Faults), status)
}

func resolveFormat(ctx *Context, opts SearchOptions, outputPath string) (export.Format, error) {
	if outputPath != "" {
		if ctx.JSONOutput {
			return export.FormatJSON, nil
		}
		if ctx.PlainText {
			return export.FormatTSV, nil
		}
		if opts.Format == "" {
			return formatFromPath(outputPath), nil
		}
		return parseFormat(opts.Format)
	}

	if ctx.JSONOutput {
		return export.FormatJSON, nil
	}
	if ctx.PlainText {
		return export.FormatTSV, nil
	}
	if opts.Format != "" {
		return parseFormat(opts.Format)
	}
	if isTTY(ctx.Out) {
		return export.FormatTable, nil
	}
	return export.FormatCSV, nil
}

// formatFromPath picks an export format from the file extension, defaulting to csv.
func formatFromPath(path string) export.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return export.FormatJSON
	case ".tsv":
		return export.FormatTSV
	case ".md", ".markdown":
		return export.FormatMarkdown
	default:
		return export.FormatCSV
	}
}

func parseFormat(value string) (export.Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return export.FormatCSV, nil
	case "json":
		return export.FormatJSON, nil
	case "md", "markdown":
		return export.FormatMarkdown, nil
	case "tsv":
		return export.FormatTSV, nil
	case "table", "":
		return export.FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format: %s", value)
	}
}

func isTTY(out io.Writer) bool {
	output := termenv.NewOutput(out)
	return output.ColorProfile() != termenv.Ascii
}

// searchIndicator draws the "Searching..." spinner on stderr. A nil indicator
// prints progress lines without the spinner.
type searchIndicator struct {
	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

func startSearchIndicator(ctx *Context) *searchIndicator {
	if ctx == nil || ctx.Err == nil || ctx.UI == nil {
		return nil
	}
	if !isTTY(ctx.Err) {
		return nil
	}

	ind := &searchIndicator{
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(ind.stopped)
		start := time.Now()
		frames := []string{"|", "/", "-", "\\"}
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		index := 0

		for {
			select {
			case <-ind.done:
				ind.mu.Lock()
				fmt.Fprint(ctx.Err, "\r\033[2K")
				ind.mu.Unlock()
				return
			case <-ticker.C:
				seconds := int(time.Since(start).Seconds())
				frame := frames[index%len(frames)]
				ind.mu.Lock()
				fmt.Fprintf(ctx.Err, "\r\033[2KSearching... %ds %s", seconds, frame)
				ind.mu.Unlock()
				index++
			}
		}
	}()

	return ind
}

func (ind *searchIndicator) progressf(ctx *Context, format string, args ...any) {
	if ctx == nil || ctx.UI == nil {
		return
	}
	if ind == nil {
		ctx.UI.Progressf(format, args...)
		return
	}
	ind.mu.Lock()
	defer ind.mu.Unlock()
	fmt.Fprint(ctx.Err, "\r\033[2K")
	ctx.UI.Progressf(format, args...)
}

func (ind *searchIndicator) stop() {
	if ind == nil {
		return
	}
	close(ind.done)
	<-ind.stopped
}
