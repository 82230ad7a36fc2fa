package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// TrendSource scrapes headline text from a trends/request page using a CSS
// selector. Pages without the selector simply yield nothing.
type TrendSource struct {
	client   *http.Client
	url      string
	selector string
	limit    int
}

// NewTrendSource creates a trend scraper. An empty selector defaults to
// article headlines; limit caps extracted candidates (default 15).
func NewTrendSource(url, selector string, limit int) *TrendSource {
	if selector == "" {
		selector = "h2 a, h3 a"
	}
	if limit <= 0 {
		limit = 15
	}
	return &TrendSource{
		client:   &http.Client{Timeout: 20 * time.Second},
		url:      url,
		selector: selector,
		limit:    limit,
	}
}

// Name implements Source
func (t *TrendSource) Name() string {
	return "trends"
}

// Discover fetches and scrapes the configured page
func (t *TrendSource) Discover(ctx context.Context) ([]Idea, error) {
	if t.url == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "autoforge/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", t.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, t.url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", t.url, err)
	}

	var ideas []Idea
	doc.Find(t.selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := cleanTitle(sel.Text())
		if title != "" {
			ideas = append(ideas, Idea{Title: title})
		}
		return len(ideas) < t.limit
	})

	return ideas, nil
}
