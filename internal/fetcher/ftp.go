package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coinassay/coinassay/internal/model"
)

// FTPFetcher retrieves whitepaper text from FTP mirrors. A few older
// projects still publish their papers this way.
type FTPFetcher struct {
	timeout      time.Duration
	maxBodyBytes int64
}

// NewFTPFetcher creates an FTPFetcher from the shared fetch options.
func NewFTPFetcher(opts Options) *FTPFetcher {
	opts = opts.withDefaults()
	return &FTPFetcher{timeout: opts.Timeout, maxBodyBytes: opts.MaxBodyBytes}
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" {
		return "", "", eris.New("ftp: empty path in url")
	}
	return host, u.Path, nil
}

// Fetch downloads the file and returns its text. Missing files classify the
// source as dead; connection problems classify it as a fetch error.
func (f *FTPFetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	host, path, err := parseFTPURL(rawURL)
	if err != nil {
		return Result{Status: model.ContentFetchError}, err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return Result{Status: classifyFetchError(err)}, eris.Wrap(err, "ftp: dial")
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return Result{Status: model.ContentFetchError}, eris.Wrap(err, "ftp: login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		// 550 means the file is gone, not that the transfer broke.
		if strings.Contains(err.Error(), "550") {
			return Result{Status: model.ContentDead}, eris.Wrapf(err, "ftp: retrieve %s", path)
		}
		return Result{Status: model.ContentFetchError}, eris.Wrapf(err, "ftp: retrieve %s", path)
	}
	defer func() { _ = resp.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp, f.maxBodyBytes))
	if err != nil {
		return Result{Status: model.ContentFetchError}, eris.Wrapf(err, "ftp: read %s", path)
	}

	text := strings.TrimSpace(string(body))
	if len(text) < minUsefulText {
		return Result{Status: model.ContentDead},
			eris.Errorf("ftp: no usable text at %s (%d bytes)", rawURL, len(text))
	}
	return Result{Text: text, Status: model.ContentOK}, nil
}
