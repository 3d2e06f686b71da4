package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgraph/pkg/config"
)

func newTestScraper() *Scraper {
	return New(config.IngestConfig{RateLimit: 1000})
}

func TestFetchHTML(t *testing.T) {
	html := `<html><head><title>Policy Portal</title></head><body>
		<nav>menu junk</nav>
		<p>Read the coverage summary below.</p>
		<a href="/docs/plan.pdf">Plan PDF</a>
		<a href="/docs/plan.pdf">Duplicate link</a>
		<a href="/about">About</a>
		<script>ignore();</script>
	</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}))
	defer srv.Close()

	page, err := newTestScraper().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Policy Portal", page.Title)
	assert.Contains(t, page.Text, "coverage summary")
	assert.NotContains(t, page.Text, "menu junk")
	assert.NotContains(t, page.Text, "ignore()")
	assert.Equal(t, []string{srv.URL + "/docs/plan.pdf"}, page.PDFLinks)
	assert.Nil(t, page.PDF)
}

func TestFetchPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer srv.Close()

	page, err := newTestScraper().Fetch(context.Background(), srv.URL+"/file.pdf")
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.7 fake"), page.PDF)
	assert.Empty(t, page.Text)
}

func TestFetchRejectsBadURL(t *testing.T) {
	_, err := newTestScraper().Fetch(context.Background(), "ftp://example.com/x")
	assert.ErrorContains(t, err, "invalid URL")
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestScraper().Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "unexpected status 404")
}

func TestFetchSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	_, err := newTestScraper().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, userAgent, got)
}
