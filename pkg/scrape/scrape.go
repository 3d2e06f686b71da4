// Package scrape fetches remote documents for ingestion. HTML pages are
// reduced to their text content; direct PDF links are downloaded as-is.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"docgraph/pkg/config"
	"docgraph/pkg/logx"
	"docgraph/pkg/textproc"
)

var log = logx.NewLogger("scrape")

const userAgent = "docgraph/1.0 (+document ingestion)"

// maxBodySize bounds remote downloads at 50MB.
const maxBodySize = 50 << 20

// Page is the fetched content of one URL. Exactly one of Text or PDF is set.
type Page struct {
	URL      string
	Title    string
	Text     string
	PDF      []byte
	PDFLinks []string
}

type Scraper struct {
	client  *http.Client
	limiter *rate.Limiter
}

func New(cfg config.IngestConfig) *Scraper {
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 2.0
	}
	return &Scraper{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
	}
}

// Fetch downloads one URL, honoring the rate limit.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL: %s", rawURL)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, rawURL)
	}

	body := io.LimitReader(resp.Body, maxBodySize)
	contentType := resp.Header.Get("Content-Type")

	if strings.Contains(contentType, "application/pdf") {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("error reading PDF body: %w", err)
		}
		log.Debug("fetched PDF %s (%d bytes)", rawURL, len(data))
		return &Page{URL: rawURL, PDF: data}, nil
	}

	page, err := parseHTML(parsed, body)
	if err != nil {
		return nil, err
	}
	page.URL = rawURL
	log.Debug("fetched page %s (%d chars, %d pdf links)", rawURL, len(page.Text), len(page.PDFLinks))
	return page, nil
}

func parseHTML(base *url.URL, r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header").Remove()

	page := &Page{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  textproc.Clean(doc.Find("body").Text()),
	}

	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			page.PDFLinks = append(page.PDFLinks, abs)
		}
	})

	return page, nil
}
