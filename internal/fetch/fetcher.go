// Package fetch performs the bounded HTTP GETs the engine feeds into the
// extractors, plus the robots gate and the optional response body cache.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gocolly/colly/v2"
)

// Config holds fetcher configuration.
type Config struct {
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
	RetryBase  time.Duration // first backoff step, doubled per attempt
}

// Body is a fetched response payload.
type Body struct {
	Bytes       []byte
	ContentType string
}

// Fetcher performs single HTTP GETs with timeout, User-Agent, and
// exponential backoff retries. Robots policy lives in RobotsGate; the
// engine consults it before calling Get.
type Fetcher struct {
	cfg Config
}

// New creates a Fetcher with the given configuration.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "harvester/1.0"
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	return &Fetcher{cfg: cfg}
}

// Get fetches the URL and returns the body plus content type. 5xx and
// transport errors are retried up to MaxRetries with exponential backoff;
// 4xx errors fail immediately.
func (f *Fetcher) Get(ctx context.Context, url string, headers map[string]string) (Body, error) {
	backoff := f.cfg.RetryBase
	var lastErr *Error

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying fetch", "url", url, "attempt", attempt, "backoff", backoff)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Body{}, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}

		body, err := f.getOnce(ctx, url, headers)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return Body{}, ctx.Err()
		}

		var fe *Error
		if !errors.As(err, &fe) {
			fe = &Error{Kind: KindConnect, URL: url, Err: err}
		}
		slog.Debug("fetch attempt failed", "url", url, "kind", fe.Kind.String(), "error", err)
		if !fe.Retryable() {
			return Body{}, fe
		}
		lastErr = fe
	}

	return Body{}, &Error{Kind: KindTooManyRetries, URL: url, Err: lastErr}
}

// getOnce performs a single attempt through a fresh collector. Collectors
// are per-request so response capture stays race-free under concurrent
// callers.
func (f *Fetcher) getOnce(ctx context.Context, url string, headers map[string]string) (Body, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(f.cfg.Timeout)

	var body Body
	var got bool
	var attemptErr error

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		body = Body{
			Bytes:       r.Body,
			ContentType: r.Headers.Get("Content-Type"),
		}
		got = true
	})
	c.OnError(func(r *colly.Response, err error) {
		attemptErr = f.classify(url, r, err)
	})

	visitErr := c.Visit(url)
	c.Wait()

	if got {
		return body, nil
	}
	if attemptErr != nil {
		return Body{}, attemptErr
	}
	if visitErr != nil {
		return Body{}, f.classify(url, nil, visitErr)
	}
	return Body{}, &Error{Kind: KindConnect, URL: url}
}

// classify maps a transport-level failure onto the fetch error taxonomy.
func (f *Fetcher) classify(url string, r *colly.Response, err error) *Error {
	if r != nil && r.StatusCode >= 500 {
		return &Error{Kind: KindHTTP5xx, URL: url, Status: r.StatusCode, Err: err}
	}
	if r != nil && r.StatusCode >= 400 {
		return &Error{Kind: KindHTTP4xx, URL: url, Status: r.StatusCode, Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindDNS, URL: url, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	return &Error{Kind: KindConnect, URL: url, Err: err}
}
