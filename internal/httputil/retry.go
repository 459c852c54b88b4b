// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the JSON HTTP client shared by every external
// service: bounded retries with exponential backoff, an optional per-service
// rate limit, and an injectable sleep so tests never wait.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/pubenrich/pkg/types"
)

const (
	defaultRetries   = 3
	defaultBaseDelay = 1 * time.Second
	defaultTimeout   = 30 * time.Second
)

// ErrDecode marks a response body that could not be decoded as JSON.
var ErrDecode = errors.New("decoding response")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// IsClientError reports whether err carries a 4xx status other than 429.
func IsClientError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// IsNotFound reports whether err carries HTTP 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoSleep returns immediately. Tests use it in place of Sleep.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Client performs JSON requests with retry. The zero value is not usable;
// build one with NewClient.
type Client struct {
	HTTP      *http.Client
	Limiter   *rate.Limiter
	Retries   int
	BaseDelay time.Duration
	UserAgent string
	Sleep     SleepFunc

	// OnAttempt, when set, observes every attempt's outcome
	// ("ok", "retry", "error"). Used for request metrics.
	OnAttempt func(outcome string)
}

// NewClient builds a Client from shared HTTP settings. A zero RateLimit
// leaves requests unthrottled.
func NewClient(cfg types.HTTPConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		Limiter:   rate.NewLimiter(limit, 1),
		Retries:   cfg.Retries,
		BaseDelay: cfg.BackoffBase,
		UserAgent: cfg.UserAgent,
		Sleep:     Sleep,
	}
}

// GetJSON fetches rawURL and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	_, err := c.get(ctx, rawURL, out)
	return err
}

// GetJSONPage fetches one page of a paginated resource like GetJSON and
// returns the absolute URL of the next page from the response's
// Link: <...>; rel="next" header, or "" on the last page.
func (c *Client) GetJSONPage(ctx context.Context, rawURL string, out any) (string, error) {
	header, err := c.get(ctx, rawURL, out)
	if err != nil {
		return "", err
	}
	next := NextLink(header)
	if next == "" {
		return "", nil
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	ref, err := base.Parse(next)
	if err != nil {
		return "", fmt.Errorf("parsing next link %q: %w", next, err)
	}
	return ref.String(), nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) (http.Header, error) {
	return c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	}, out)
}

// NextLink returns the target of the rel="next" entry in the Link headers
// of h, or "".
func NextLink(h http.Header) string {
	for _, v := range h.Values("Link") {
		for v != "" {
			open := strings.IndexByte(v, '<')
			if open < 0 {
				break
			}
			end := strings.IndexByte(v[open:], '>')
			if end < 0 {
				break
			}
			target := v[open+1 : open+end]
			v = v[open+end+1:]

			params := v
			if i := strings.IndexByte(v, '<'); i >= 0 {
				params = v[:i]
			}
			for _, p := range strings.Split(params, ";") {
				key, val, ok := strings.Cut(strings.TrimSpace(p), "=")
				if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
					continue
				}
				for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(val), `"`)) {
					if strings.EqualFold(rel, "next") {
						return strings.TrimSpace(target)
					}
				}
			}
		}
	}
	return ""
}

// PostFormJSON posts form as application/x-www-form-urlencoded and decodes
// the JSON body into out.
func (c *Client) PostFormJSON(ctx context.Context, rawURL string, form url.Values, out any) error {
	body := form.Encode()
	_, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, out)
	return err
}

// do runs the request up to Retries times. Transport failures, 429, 5xx and
// undecodable bodies are retried after BaseDelay * 2^attempt; other 4xx
// statuses are returned at once. The last error is returned on exhaustion.
// out is written only by the successful attempt; the response headers of
// that attempt are returned.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error), out any) (http.Header, error) {
	retries := c.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	base := c.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		req.Header.Set("Accept", "application/json")

		var header http.Header
		header, lastErr = c.once(req, out)
		if lastErr == nil {
			c.observe("ok")
			return header, nil
		}
		if IsClientError(lastErr) || ctx.Err() != nil {
			c.observe("error")
			return nil, lastErr
		}
		if attempt == retries-1 {
			break
		}
		c.observe("retry")

		backoff := time.Duration(math.Pow(2, float64(attempt))) * base
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
	c.observe("error")
	return nil, lastErr
}

func (c *Client) once(req *http.Request, out any) (http.Header, error) {
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return resp.Header, nil
	}
	if err := decodeFresh(resp.Body, out); err != nil {
		return nil, fmt.Errorf("%w from %s: %v", ErrDecode, req.URL.Host, err)
	}
	return resp.Header, nil
}

// decodeFresh decodes r into a zero value of out's element type and copies
// it into out only on success, so a failed attempt leaves nothing behind.
func decodeFresh(r io.Reader, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return json.NewDecoder(r).Decode(out)
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := json.NewDecoder(r).Decode(fresh.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

func (c *Client) observe(outcome string) {
	if c.OnAttempt != nil {
		c.OnAttempt(outcome)
	}
}
