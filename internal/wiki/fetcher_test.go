package wiki

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wikiServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "query" || q.Get("prop") != "extracts" || q.Get("explaintext") != "1" {
			http.Error(w, "bad params", http.StatusBadRequest)
			return
		}
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "user agent required", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("titles") {
		case "Boston":
			fmt.Fprint(w, `{"batchcomplete":"","query":{"pages":{"24437894":{"pageid":24437894,"ns":0,"title":"Boston","extract":"Boston is the capital of Massachusetts."}}}}`)
		case "Atlantis (city)":
			fmt.Fprint(w, `{"query":{"pages":{"-1":{"ns":0,"title":"Atlantis (city)","missing":""}}}}`)
		case "Broken":
			fmt.Fprint(w, `<html>oops</html>`)
		default:
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtract(t *testing.T) {
	f := NewFetcher(wikiServer(t).URL)
	text, err := f.Extract(context.Background(), "Boston")
	require.NoError(t, err)
	assert.Equal(t, "Boston is the capital of Massachusetts.", text)
}

func TestExtract_errors(t *testing.T) {
	f := NewFetcher(wikiServer(t).URL)

	_, err := f.Extract(context.Background(), "Atlantis (city)")
	assert.True(t, errors.Is(err, ErrPageMissing), "got %v", err)

	_, err = f.Extract(context.Background(), "Broken")
	assert.ErrorContains(t, err, "not JSON")

	_, err = f.Extract(context.Background(), "Houston")
	assert.ErrorContains(t, err, "status 503")
}

func TestFetch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	f := NewFetcher(wikiServer(t).URL)

	report, err := f.Fetch(context.Background(), []string{"Boston", "Atlantis (city)", "Houston"}, dir)
	require.NoError(t, err)
	require.Len(t, report.Written, 1)
	assert.Equal(t, filepath.Join(dir, "Boston.txt"), report.Written[0])
	assert.Len(t, report.Failed, 2)

	content, err := os.ReadFile(filepath.Join(dir, "Boston.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Boston is the capital of Massachusetts.", string(content))
}

func TestFetch_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFetcher(wikiServer(t).URL).Fetch(ctx, []string{"Boston"}, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Toronto.txt", FileName("Toronto"))
	assert.Equal(t, "AC_DC.txt", FileName("AC/DC"))
}

func TestNewFetcher_defaultEndpoint(t *testing.T) {
	assert.Equal(t, DefaultEndpoint, NewFetcher("").endpoint)
}
