// Package fetch issues HTTP requests with bounded retries, jittered
// exponential backoff, per-attempt timeouts, and global admission control.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// Options configures the retry policy of a Fetcher.
type Options struct {
	MaxAttempts int           // total attempts including the first; minimum 1
	BaseDelay   time.Duration // backoff before the first retry
	MaxDelay    time.Duration // cap on the computed backoff
	Timeout     time.Duration // per-attempt timeout
	UserAgent   string
}

// DefaultOptions mirrors the settings the original per-site jobs ran with.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Timeout:     30 * time.Second,
		UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	}
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Observer receives fetch lifecycle events; typically the crawler's
// Prometheus metrics. All methods must tolerate concurrent calls.
type Observer interface {
	IncRequest(phase string)
	ObserveDuration(d time.Duration)
	IncRetries()
	IncError(errorType string)
}

// Fetcher wraps an http.Client with the retry state machine: an attempt
// either succeeds, fails transiently (backoff then retry until exhausted),
// or fails permanently.
type Fetcher struct {
	client   *http.Client
	limiter  *Limiter
	opts     Options
	observer Observer
}

// NewFetcher builds a fetcher gated by limiter. A nil observer disables
// instrumentation.
func NewFetcher(limiter *Limiter, opts Options, observer Observer) *Fetcher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Fetcher{
		client:   &http.Client{Transport: transport},
		limiter:  limiter,
		opts:     opts,
		observer: observer,
	}
}

// SetTransport swaps the HTTP transport. Tests use this to install a
// mock responder transport.
func (f *Fetcher) SetTransport(rt http.RoundTripper) {
	f.client.Transport = rt
}

// Do executes req, retrying transient failures. Each attempt holds one
// limiter slot for its duration only: acquire before send, release once the
// body is read or the attempt fails.
func (f *Fetcher) Do(ctx context.Context, req *http.Request) (*Response, error) {
	return f.DoPhase(ctx, req, "page")
}

// DoPhase is Do with an explicit phase label for the request counter
// ("page" for listing pages, "reveal" for the AJAX phone call).
func (f *Fetcher) DoPhase(ctx context.Context, req *http.Request, phase string) (*Response, error) {
	if req.Header.Get("User-Agent") == "" && f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &CancelledError{Err: err}
		}

		resp, err := f.attempt(ctx, req, phase)
		if err == nil {
			return resp, nil
		}
		if IsCancelled(err) {
			f.count(err)
			return nil, err
		}
		if !IsTransient(err) {
			f.count(err)
			return nil, err
		}

		lastErr = err
		if attempt == f.opts.MaxAttempts {
			break
		}

		if f.observer != nil {
			f.observer.IncRetries()
		}
		delay := f.backoff(attempt)
		slog.Debug("retrying fetch",
			slog.String("url", req.URL.String()),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &CancelledError{Err: ctx.Err()}
		case <-timer.C:
		}
	}

	err := &ExhaustedError{Attempts: f.opts.MaxAttempts, Err: lastErr}
	f.count(err)
	return nil, err
}

func (f *Fetcher) attempt(ctx context.Context, req *http.Request, phase string) (*Response, error) {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil, &CancelledError{Err: err}
	}
	defer f.limiter.Release()

	attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	cloned := req.Clone(attemptCtx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		cloned.Body = body
	}

	if f.observer != nil {
		f.observer.IncRequest(phase)
	}
	start := time.Now()

	resp, err := f.client.Do(cloned)
	if err != nil {
		// Cancellation of the run context, not the per-attempt timeout.
		if ctx.Err() != nil {
			return nil, &CancelledError{Err: ctx.Err()}
		}
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &CancelledError{Err: ctx.Err()}
		}
		return nil, &TransientError{Err: fmt.Errorf("read body: %w", err)}
	}

	if f.observer != nil {
		f.observer.ObserveDuration(time.Since(start))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &TransientError{
			Err:        fmt.Errorf("http %d from %s", resp.StatusCode, req.URL),
			StatusCode: resp.StatusCode,
		}
	case resp.StatusCode >= 400:
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// backoff doubles the base delay per attempt, caps it, and adds up to 50%
// random jitter.
func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := f.opts.BaseDelay * time.Duration(1<<(attempt-1))
	if f.opts.MaxDelay > 0 && delay > f.opts.MaxDelay {
		delay = f.opts.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

func (f *Fetcher) count(err error) {
	if f.observer == nil {
		return
	}
	f.observer.IncError(errorTypeLabel(err))
}
