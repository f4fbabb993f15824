// Package wiki downloads plain-text Wikipedia extracts for corpus documents.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultEndpoint is the English Wikipedia API.
const DefaultEndpoint = "https://en.wikipedia.org/w/api.php"

const (
	userAgent       = "kotae/1.0 (https://github.com/hyperjump/kotae)"
	maxResponseSize = 16 << 20
)

// ErrPageMissing is returned when the wiki has no page for a title.
var ErrPageMissing = errors.New("page does not exist")

// Fetcher talks to a MediaWiki API endpoint.
type Fetcher struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher returns a Fetcher for endpoint; empty selects DefaultEndpoint.
func NewFetcher(endpoint string, opts ...Option) *Fetcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	f := &Fetcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Extract returns the plain-text extract of the page titled title.
func (f *Fetcher) Extract(ctx context.Context, title string) (string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("titles", title)
	q.Set("prop", "extracts")
	q.Set("explaintext", "1")
	q.Set("redirects", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request %q: %w", title, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request %q: status %d", title, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("response for %q is not JSON", title)
	}

	var (
		extract string
		found   bool
		missing bool
	)
	gjson.GetBytes(body, "query.pages").ForEach(func(_, page gjson.Result) bool {
		if page.Get("missing").Exists() || page.Get("invalid").Exists() {
			missing = true
			return true
		}
		if e := page.Get("extract"); e.Type == gjson.String {
			extract, found = e.Str, true
			return false
		}
		return true
	})
	switch {
	case found:
		return extract, nil
	case missing:
		return "", fmt.Errorf("%q: %w", title, ErrPageMissing)
	default:
		return "", fmt.Errorf("no extract for %q", title)
	}
}

// Report lists the files written and the titles that failed.
type Report struct {
	Written []string          `json:"written"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// FileName returns the corpus file name for title.
func FileName(title string) string {
	return strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(title) + ".txt"
}

// Fetch writes "<dir>/<title>.txt" for every title. Per-title failures are
// collected in the report; only a failure to create dir is returned.
func (f *Fetcher) Fetch(ctx context.Context, titles []string, dir string) (*Report, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create corpus directory: %w", err)
	}
	report := &Report{Failed: map[string]string{}}
	for _, title := range titles {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		text, err := f.Extract(ctx, title)
		if err == nil {
			path := filepath.Join(dir, FileName(title))
			if err = os.WriteFile(path, []byte(text), 0644); err == nil {
				report.Written = append(report.Written, path)
				f.logger.Info("fetched page", zap.String("title", title), zap.Int("chars", len(text)), zap.String("path", path))
				continue
			}
		}
		report.Failed[title] = err.Error()
		f.logger.Warn("failed to fetch page", zap.String("title", title), zap.Error(err))
	}
	return report, nil
}
