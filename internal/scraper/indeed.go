package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jimezsa/indeedhub/internal/browser"
	"github.com/jimezsa/indeedhub/internal/models"
	"github.com/rs/zerolog"
)

const SiteIndeed = "indeed"

const (
	DefaultOrigin     = "https://ca.indeed.com"
	DefaultMaxResults = 15
)

const (
	cardSelector        = ".job_seen_beacon"
	titleSelector       = "h2.jobTitle"
	linkSelector        = "h2.jobTitle a"
	companySelector     = `[data-testid="company-name"]`
	descriptionSelector = "#jobDescriptionText"
)

// Result is the outcome of one extraction run. Err is set for run-level
// failures, in which case Jobs is empty. Faults lists dropped cards.
type Result struct {
	Jobs   []models.Job
	Faults []CardFault
	Err    error
}

var _ Scraper = (*Indeed)(nil)

type Indeed struct {
	opener   browser.Opener
	cfg      models.ScraperConfig
	waiter   DetailWaiter
	observer Observer
	logger   zerolog.Logger
}

type Option func(*Indeed)

func WithDetailWaiter(w DetailWaiter) Option {
	return func(i *Indeed) {
		if w != nil {
			i.waiter = w
		}
	}
}

func WithObserver(o Observer) Option {
	return func(i *Indeed) {
		i.observer = o
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(i *Indeed) {
		i.logger = logger
	}
}

func NewIndeed(opener browser.Opener, cfg models.ScraperConfig, opts ...Option) *Indeed {
	cfg.Origin = strings.TrimRight(strings.TrimSpace(cfg.Origin), "/")
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 60 * time.Second
	}
	if cfg.CardTimeout <= 0 {
		cfg.CardTimeout = 30 * time.Second
	}
	i := &Indeed{
		opener: opener,
		cfg:    cfg,
		waiter: FixedDelay{Delay: 3 * time.Second},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Indeed) Name() string {
	return SiteIndeed
}

func (i *Indeed) Search(ctx context.Context, params models.SearchParams) ([]models.Job, error) {
	res := i.Run(ctx, params)
	return res.Jobs, res.Err
}

// Run opens a browser session, extracts one result page and always closes the session.
func (i *Indeed) Run(ctx context.Context, params models.SearchParams) Result {
	session, err := i.opener.Open(ctx)
	if err != nil {
		return Result{Jobs: []models.Job{}, Err: fmt.Errorf("%w: launch browser: %w", ErrNavigation, err)}
	}
	defer func() {
		if err := session.Close(); err != nil {
			i.logger.Warn().Err(err).Msg("close browser session")
		}
	}()

	return i.Extract(ctx, session, params)
}

// Extract runs the listing extraction against an already open session.
func (i *Indeed) Extract(ctx context.Context, session browser.Session, params models.SearchParams) Result {
	res := Result{Jobs: []models.Job{}}

	target := buildIndeedURL(i.cfg.Origin, params)
	i.logger.Info().Str("url", target).Msg("navigating")
	if err := session.Navigate(ctx, target, i.cfg.NavigationTimeout); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrNavigation, err)
		return res
	}

	if i.cfg.BlockCheck {
		content, err := session.Content()
		if err != nil {
			res.Err = fmt.Errorf("%w: read page content: %w", ErrNavigation, err)
			return res
		}
		if marker, blocked := detectBlock(content, i.cfg.BlockMarkers); blocked {
			i.logger.Warn().Str("marker", marker).Msg("blocking page detected")
			res.Err = fmt.Errorf("%w (%s)", ErrBlocked, marker)
			return res
		}
	}

	if err := session.WaitForSelector(ctx, cardSelector, i.cfg.CardTimeout); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrNoCards, err)
		return res
	}

	cards, err := session.QueryAll(cardSelector)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrNoCards, err)
		return res
	}
	limit := min(len(cards), maxResults(params.Limit))
	if limit == 0 {
		res.Err = ErrNoCards
		return res
	}
	i.logger.Info().Int("cards", len(cards)).Int("limit", limit).Msg("cards found")

	for idx := 0; idx < limit; idx++ {
		if err := ctx.Err(); err != nil {
			i.logger.Warn().Err(err).Int("processed", idx).Msg("extraction interrupted")
			break
		}

		job, err := i.extractCard(ctx, session, idx)
		if err != nil {
			var fault *CardFault
			if !errors.As(err, &fault) {
				fault = &CardFault{Index: idx, Stage: StageLocate, Err: err}
			}
			res.Faults = append(res.Faults, *fault)
			i.logger.Debug().Err(fault.Err).Int("card", idx).Str("stage", string(fault.Stage)).Msg("card skipped")
			continue
		}

		res.Jobs = append(res.Jobs, job)
		i.logger.Debug().Int("card", idx).Str("title", job.Title).Msg("card extracted")
		if i.observer != nil {
			i.observer.Accepted(idx, job)
		}
	}

	return res
}

// extractCard re-queries the card list before touching card index: a click on the
// previous card may have re-rendered the list and detached every handle taken before it.
func (i *Indeed) extractCard(ctx context.Context, session browser.Session, index int) (job models.Job, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cardFault(index, StageLocate, fmt.Errorf("panic: %v", r))
		}
	}()

	cards, err := session.QueryAll(cardSelector)
	if err != nil {
		return job, cardFault(index, StageLocate, err)
	}
	if index >= len(cards) {
		return job, cardFault(index, StageLocate, fmt.Errorf("only %d cards on page", len(cards)))
	}
	card := cards[index]

	title, err := requiredText(card, titleSelector)
	if err != nil {
		return job, cardFault(index, StageTitle, err)
	}
	company, err := requiredText(card, companySelector)
	if err != nil {
		return job, cardFault(index, StageCompany, err)
	}
	link, err := i.cardLink(card)
	if err != nil {
		return job, cardFault(index, StageLink, err)
	}

	previous := panelText(session, descriptionSelector)
	if err := card.Click(); err != nil {
		return job, cardFault(index, StageClick, err)
	}

	description := models.DescriptionNotFound
	if err := i.waiter.WaitForDetail(ctx, session, previous); err != nil {
		if !errors.Is(err, browser.ErrTimeout) {
			return job, cardFault(index, StageDetail, err)
		}
		// the panel may legitimately repeat the previous card's text
		i.logger.Debug().Err(err).Int("card", index).Msg("detail panel did not change")
	}
	el, err := session.QuerySingle(descriptionSelector)
	if err != nil {
		return job, cardFault(index, StageDescription, err)
	}
	if el != nil {
		text, err := el.Text()
		if err != nil {
			return job, cardFault(index, StageDescription, err)
		}
		if text = normalizeNewlines(text); text != "" {
			description = text
		}
	}

	return models.Job{
		Title:       title,
		Company:     company,
		Link:        link,
		Description: description,
	}, nil
}

func (i *Indeed) cardLink(card browser.Element) (string, error) {
	anchor, err := card.QuerySingle(linkSelector)
	if err != nil {
		return "", err
	}
	if anchor == nil {
		return models.LinkUnavailable, nil
	}
	href, err := anchor.Attribute("href")
	if err != nil {
		return "", err
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return models.LinkUnavailable, nil
	}
	link := absoluteURL(i.cfg.Origin, href)
	// links leaving the search origin are not reported
	if !strings.HasPrefix(link, i.cfg.Origin+"/") {
		i.logger.Debug().Str("href", href).Msg("off-origin link dropped")
		return models.LinkUnavailable, nil
	}
	return link, nil
}

func requiredText(parent browser.Element, selector string) (string, error) {
	el, err := parent.QuerySingle(selector)
	if err != nil {
		return "", err
	}
	if el == nil {
		return "", fmt.Errorf("%w: %s", errMissingElement, selector)
	}
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	text = normalizeSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", errEmptyText, selector)
	}
	return text, nil
}

func buildIndeedURL(origin string, params models.SearchParams) string {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		origin = DefaultOrigin
	}
	return fmt.Sprintf("%s/jobs?q=%s&l=%s",
		origin,
		url.QueryEscape(strings.TrimSpace(params.Query)),
		url.QueryEscape(strings.TrimSpace(params.Region)),
	)
}

// maxResults lets a configured limit lower the cap, never raise it.
func maxResults(limit int) int {
	if limit <= 0 {
		return DefaultMaxResults
	}
	return min(limit, DefaultMaxResults)
}

// normalizeNewlines trims text and folds CRLF and lone CR to LF.
func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}
