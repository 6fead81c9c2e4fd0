// Package browser is the page-automation capability set the extractor drives,
// plus a playwright-go implementation of it.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout reports that a navigation or selector wait ran out of time.
var ErrTimeout = errors.New("browser timeout")

// Session is one live page owned by a single run. Close must be called on every path.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Content() (string, error)
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	QueryAll(selector string) ([]Element, error)
	// QuerySingle returns a nil Element and no error when nothing matches.
	QuerySingle(selector string) (Element, error)
	Wait(ctx context.Context, d time.Duration) error
	Close() error
}

// Element is a handle to a DOM node. It may go stale after any interaction
// that mutates the page; callers re-query instead of holding handles across clicks.
type Element interface {
	QuerySingle(selector string) (Element, error)
	Text() (string, error)
	Attribute(name string) (string, error)
	Click() error
}

// Opener starts a new Session.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Session, error)

func (f OpenerFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// remaining clamps timeout to the time left before ctx's deadline.
func remaining(ctx context.Context, timeout time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return timeout
	}
	left := time.Until(deadline)
	if left < timeout {
		return left
	}
	return timeout
}
