package fetcher

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/coinassay/coinassay/internal/model"
	"github.com/coinassay/coinassay/internal/resilience"
)

// Options configures fetch transports.
type Options struct {
	UserAgent string
	Timeout   time.Duration

	// RequestsPerSecond throttles outbound fetches across all hosts. Crypto
	// project sites are small; hammering them trips anti-bot walls.
	RequestsPerSecond float64
	Burst             int

	MaxBodyBytes int64
	Retry        resilience.RetryConfig
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = "coinassay/1.0 (+https://coinassay.example.org/bot)"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 4
	}
	if o.Burst <= 0 {
		o.Burst = 4
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	return o
}

// HTTPFetcher fetches project pages over HTTP(S), converts them to
// plaintext, and classifies failures.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	opts = opts.withDefaults()
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		opts:    opts,
	}
}

// Fetch retrieves a URL and returns its plaintext. The returned Status is
// always set: ContentOK on success, and on failure the classification the
// orchestrator should persist.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	type page struct {
		body       []byte
		statusCode int
		header     http.Header
	}

	cfg := f.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("http", "fetch")
	}

	p, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (page, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return page{}, eris.Wrap(err, "http: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return page{}, eris.Wrapf(err, "http: create request for %s", rawURL)
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain")

		resp, err := f.client.Do(req)
		if err != nil {
			if resilience.IsTimeout(err) {
				return page{}, resilience.NewTimeoutError("fetch "+rawURL, f.opts.Timeout, err)
			}
			return page{}, eris.Wrapf(err, "http: fetch %s", rawURL)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
		if err != nil {
			return page{}, eris.Wrapf(err, "http: read body from %s", rawURL)
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return page{}, resilience.NewTransientError(
				eris.Errorf("http: status %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
		}
		return page{body: body, statusCode: resp.StatusCode, header: resp.Header}, nil
	})
	if err != nil {
		return Result{Status: classifyFetchError(err)}, err
	}

	if blocked, kind := detectBlock(p.statusCode, p.header, p.body); blocked {
		zap.L().Warn("fetch blocked by anti-bot protection",
			zap.String("url", rawURL),
			zap.String("kind", string(kind)),
		)
		return Result{Status: model.ContentBlocked},
			eris.Errorf("http: blocked by %s challenge at %s", kind, rawURL)
	}

	if p.statusCode == http.StatusNotFound || p.statusCode == http.StatusGone {
		return Result{Status: model.ContentDead},
			eris.Errorf("http: status %d from %s", p.statusCode, rawURL)
	}
	if p.statusCode >= 400 {
		return Result{Status: model.ContentFetchError},
			eris.Errorf("http: status %d from %s", p.statusCode, rawURL)
	}

	text := htmlToText(string(p.body))
	if len(text) < minUsefulText {
		// Parked domains and empty shells read as dead projects.
		return Result{Status: model.ContentDead},
			eris.Errorf("http: no usable text at %s (%d bytes)", rawURL, len(text))
	}

	return Result{
		Text:   text,
		Title:  extractTitle(p.body),
		Status: model.ContentOK,
	}, nil
}

// minUsefulText is the smallest plaintext size worth analyzing. Below this
// the page is a parked domain, a redirect shell, or an error page.
const minUsefulText = 100

// classifyFetchError maps a transport-level failure to a content status.
// DNS resolution failures mean the domain itself is gone.
func classifyFetchError(err error) model.ContentStatus {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "no such host") {
		return model.ContentDead
	}
	return model.ContentFetchError
}
