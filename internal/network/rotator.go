package network

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
)

var ErrNoProxies = errors.New("no proxies available")

// Rotator hands out proxies round-robin and skips ones the target recently refused.
type Rotator struct {
	proxies     []*url.URL
	banDuration time.Duration
	bannedUntil map[string]time.Time
	index       int
	now         func() time.Time
	mu          sync.Mutex
}

func NewRotator(raw []string, banDuration time.Duration) (*Rotator, error) {
	rotator := &Rotator{
		banDuration: banDuration,
		bannedUntil: map[string]time.Time{},
		now:         time.Now,
	}

	for _, proxy := range raw {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", proxy, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("parse proxy %q: missing host", proxy)
		}
		rotator.proxies = append(rotator.proxies, u)
	}

	return rotator, nil
}

func (r *Rotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies)
}

func (r *Rotator) Next() (*url.URL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.proxies) == 0 {
		return nil, ErrNoProxies
	}

	start := r.index
	for {
		proxy := r.proxies[r.index]
		r.index = (r.index + 1) % len(r.proxies)

		if !r.isBanned(proxy) {
			return proxy, nil
		}

		if r.index == start {
			return nil, ErrNoProxies
		}
	}
}

// FirstUsable walks the pool once and returns the first proxy that check
// reaches without a block status. Blocked proxies are banned through Report;
// proxies check cannot reach are skipped.
func (r *Rotator) FirstUsable(ctx context.Context, check func(context.Context, *url.URL) (int, error)) (*url.URL, error) {
	var lastErr error
	seen := map[string]bool{}
	for i, n := 0, r.Len(); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		proxy, err := r.Next()
		if err != nil || seen[proxy.String()] {
			break
		}
		seen[proxy.String()] = true

		status, err := check(ctx, proxy)
		if err != nil {
			lastErr = fmt.Errorf("proxy %s: %w", proxy.Redacted(), err)
			continue
		}
		r.Report(proxy, status)
		if isBlockStatus(status) {
			lastErr = fmt.Errorf("proxy %s: blocked with status %d", proxy.Redacted(), status)
			continue
		}
		return proxy, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoProxies, lastErr)
	}
	return nil, ErrNoProxies
}

// Report bans proxy for the ban duration when the target answered with a block status.
func (r *Rotator) Report(proxy *url.URL, status int) {
	if proxy == nil {
		return
	}
	if !isBlockStatus(status) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bannedUntil[proxy.String()] = r.now().Add(r.banDuration)
}

func (r *Rotator) isBanned(proxy *url.URL) bool {
	until, ok := r.bannedUntil[proxy.String()]
	if !ok {
		return false
	}
	if r.now().After(until) {
		delete(r.bannedUntil, proxy.String())
		return false
	}
	return true
}

func isBlockStatus(status int) bool {
	return status == fhttp.StatusForbidden || status == fhttp.StatusTooManyRequests
}
