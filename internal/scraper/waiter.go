package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jimezsa/indeedhub/internal/browser"
)

// DetailWaiter decides when the detail panel has loaded after a card click.
// previous is the panel text observed before the click.
type DetailWaiter interface {
	WaitForDetail(ctx context.Context, session browser.Session, previous string) error
}

// FixedDelay waits unconditionally. It is the default and never inspects the page.
type FixedDelay struct {
	Delay time.Duration
}

func (f FixedDelay) WaitForDetail(ctx context.Context, session browser.Session, _ string) error {
	return session.Wait(ctx, f.Delay)
}

// PollForContent polls the description element until it holds text that differs
// from what was shown before the click, or Timeout elapses.
type PollForContent struct {
	Selector string
	Timeout  time.Duration
	Interval time.Duration
}

func (p PollForContent) WaitForDetail(ctx context.Context, session browser.Session, previous string) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	deadline := time.Now().Add(p.Timeout)
	for {
		text := panelText(session, p.Selector)
		if text != "" && text != previous {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s did not change within %s", browser.ErrTimeout, p.Selector, p.Timeout)
		}
		if err := session.Wait(ctx, interval); err != nil {
			return err
		}
	}
}

// NewDetailWaiter maps the detail_wait setting onto a strategy.
func NewDetailWaiter(mode string, delay time.Duration) (DetailWaiter, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "fixed":
		return FixedDelay{Delay: delay}, nil
	case "poll":
		return PollForContent{Selector: descriptionSelector, Timeout: delay}, nil
	default:
		return nil, fmt.Errorf("unknown detail wait mode: %s", mode)
	}
}

// panelText reads an element's text, treating any failure as empty.
func panelText(session browser.Session, selector string) string {
	el, err := session.QuerySingle(selector)
	if err != nil || el == nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
