// Package fetcher retrieves project content (websites, whitepapers) and
// classifies source health so the pipeline can distinguish a dead project
// from a transient outage or an anti-bot wall.
package fetcher

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/coinassay/coinassay/internal/model"
)

// Result carries fetched plaintext plus the source health classification.
// Status is meaningful even when the fetch failed; the orchestrator persists
// it so batch sweeps can target dead or blocked sources later.
type Result struct {
	Text   string
	Title  string
	Status model.ContentStatus
}

// ContentFetcher retrieves the text behind a project source URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (Result, error)
}

// Router dispatches fetches by URL scheme. Websites come over HTTP(S);
// some whitepaper mirrors are still plain FTP.
type Router struct {
	HTTP ContentFetcher
	FTP  ContentFetcher
}

// NewRouter builds a Router with both transports configured from opts.
func NewRouter(opts Options) *Router {
	return &Router{
		HTTP: NewHTTPFetcher(opts),
		FTP:  NewFTPFetcher(opts),
	}
}

func (r *Router) Fetch(ctx context.Context, rawURL string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{Status: model.ContentFetchError}, eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return r.HTTP.Fetch(ctx, rawURL)
	case "ftp":
		return r.FTP.Fetch(ctx, rawURL)
	default:
		return Result{Status: model.ContentFetchError}, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}
