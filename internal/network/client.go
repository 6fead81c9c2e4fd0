package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	fhttpcookiejar "github.com/bogdanfinn/fhttp/cookiejar"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

var ErrRequestFailed = errors.New("request failed")

// Client is a Chrome-fingerprinted HTTP client used to test the job site
// through the same proxies the browser will use.
type Client struct {
	http      tls_client.HttpClient
	rotator   *Rotator
	userAgent string
}

type ClientOptions struct {
	Rotator        *Rotator
	UserAgent      string
	TimeoutSeconds int
}

func NewClient(opts ClientOptions) (*Client, error) {
	jar, _ := fhttpcookiejar.New(nil)

	timeout := opts.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	client, err := tls_client.NewHttpClient(
		tls_client.NewNoopLogger(),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithTimeoutSeconds(timeout),
		tls_client.WithCookieJar(jar),
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:      client,
		rotator:   opts.Rotator,
		userAgent: opts.UserAgent,
	}, nil
}

func (c *Client) Do(req *fhttp.Request) (*fhttp.Response, error) {
	proxy, err := c.rotateProxy()
	if err != nil {
		return nil, err
	}
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if proxy != nil {
		c.rotator.Report(proxy, resp.StatusCode)
	}
	return resp, nil
}

// CheckResult is the outcome of a single GET against a target.
type CheckResult struct {
	StatusCode int
	Latency    time.Duration
}

// Check issues a GET to target and discards the body.
func (c *Client) Check(ctx context.Context, target string, timeout time.Duration) (CheckResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, target, nil)
	if err != nil {
		return CheckResult{}, err
	}

	start := time.Now()
	resp, err := c.Do(req)
	if err != nil {
		return CheckResult{}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return CheckResult{StatusCode: resp.StatusCode, Latency: time.Since(start)}, nil
}

// SetProxy pins the client to one proxy. It only holds until the next request
// when the client was built with a rotator.
func (c *Client) SetProxy(proxy string) error {
	if err := c.http.SetProxy(proxy); err != nil {
		return fmt.Errorf("set proxy: %w", err)
	}
	return nil
}

func (c *Client) rotateProxy() (*url.URL, error) {
	if c.rotator == nil {
		return nil, nil
	}
	proxy, err := c.rotator.Next()
	if err != nil {
		return nil, err
	}

	if err := c.SetProxy(proxy.String()); err != nil {
		return nil, err
	}
	return proxy, nil
}
