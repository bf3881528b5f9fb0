package snapshot

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/obsidianstack/licenseaudit/internal/config"
	"github.com/obsidianstack/licenseaudit/internal/repodata"
)

// ErrStatus is wrapped by fetch errors caused by a non-200 response.
var ErrStatus = errors.New("unexpected status")

const (
	repodataFile = "repodata.json"
	zstdSuffix   = ".zst"
	userAgent    = "licenseaudit"
	acceptHeader = "application/zstd, application/json;q=0.9"
)

// State tells whether a snapshot could be loaded.
type State string

const (
	StateLoaded      State = "loaded"
	StateUnavailable State = "unavailable"
)

// Result is the outcome of loading one platform snapshot.
type Result struct {
	Platform string
	URL      string
	State    State

	// Tree is the decoded snapshot. Nil unless State is StateLoaded.
	Tree repodata.Tree

	// Err is the reason the snapshot is unavailable.
	Err error

	// FetchedBytes is the payload size on the wire, DecodedBytes after decompression.
	FetchedBytes int
	DecodedBytes int
	Elapsed      time.Duration
}

// Loaded reports whether the snapshot was fetched and decoded.
func (r Result) Loaded() bool { return r.State == StateLoaded }

// Loader fetches and decodes platform snapshots from one channel.
// It is safe for concurrent use.
type Loader struct {
	channel    string
	compressed bool
	timeout    time.Duration
	client     *http.Client
	decoder    *zstd.Decoder
	now        func() time.Time
}

// New returns a Loader for the channel described by cfg.
func New(cfg *config.Config) (*Loader, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("snapshot: build zstd decoder: %w", err)
	}
	return &Loader{
		channel:    cfg.ChannelURL,
		compressed: cfg.Compressed,
		timeout:    cfg.FetchTimeout,
		client:     buildHTTPClient(cfg),
		decoder:    dec,
		now:        time.Now,
	}, nil
}

// Close releases the decoder's resources.
func (l *Loader) Close() {
	l.decoder.Close()
}

// URL returns the snapshot location for platform under channel.
func URL(channel, platform string, compressed bool) string {
	u := strings.TrimRight(channel, "/") + "/" + platform + "/" + repodataFile
	if compressed {
		u += zstdSuffix
	}
	return u
}

// Load fetches, decompresses and parses the snapshot for platform.
// Failures are reported through the returned Result, never as an error.
func (l *Loader) Load(ctx context.Context, platform string) (res Result) {
	start := l.now()
	res = Result{
		Platform: platform,
		URL:      URL(l.channel, platform, l.compressed),
		State:    StateUnavailable,
	}
	defer func() { res.Elapsed = l.now().Sub(start) }()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	body, err := l.fetch(ctx, res.URL)
	if err != nil {
		res.Err = fmt.Errorf("snapshot %q: fetch: %w", platform, err)
		slog.Warn("snapshot: fetch failed", "platform", platform, "url", res.URL, "err", err)
		return res
	}
	res.FetchedBytes = len(body)

	if l.compressed {
		body, err = l.decoder.DecodeAll(body, nil)
		if err != nil {
			res.Err = fmt.Errorf("snapshot %q: decompress: %w", platform, err)
			slog.Warn("snapshot: decompress failed", "platform", platform, "err", err)
			return res
		}
	}
	res.DecodedBytes = len(body)

	tree, err := repodata.Parse(body)
	if err != nil {
		res.Err = fmt.Errorf("snapshot %q: %w", platform, err)
		slog.Warn("snapshot: parse failed", "platform", platform, "err", err)
		return res
	}

	res.Tree = tree
	res.State = StateLoaded
	return res
}

// fetch performs an HTTP GET to url and returns the full body.
func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the channel's auth and TLS
// settings. Deadlines come from the per-load context, not the client.
func buildHTTPClient(cfg *config.Config) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	return &http.Client{
		Transport: &authRoundTripper{base: base, auth: cfg.Auth},
	}
}
