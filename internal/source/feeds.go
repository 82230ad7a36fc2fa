package source

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedSource pulls candidate ideas from RSS/Atom feeds (maker forums,
// request boards, "show and tell" feeds). Each entry title becomes one
// candidate idea.
type FeedSource struct {
	parser  *gofeed.Parser
	urls    []string
	perFeed int
}

// NewFeedSource creates a feed source. perFeed caps how many entries are
// taken from each feed (default 10).
func NewFeedSource(urls []string, perFeed int) *FeedSource {
	if perFeed <= 0 {
		perFeed = 10
	}
	parser := gofeed.NewParser()
	parser.UserAgent = "autoforge/1.0"
	return &FeedSource{
		parser:  parser,
		urls:    urls,
		perFeed: perFeed,
	}
}

// Name implements Source
func (f *FeedSource) Name() string {
	return "feeds"
}

// Discover fetches every configured feed. Individual feed failures are
// logged and skipped; the source fails only when all feeds do.
func (f *FeedSource) Discover(ctx context.Context) ([]Idea, error) {
	if len(f.urls) == 0 {
		return nil, nil
	}

	var ideas []Idea
	failed := 0

	for _, url := range f.urls {
		feedCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		feed, err := f.parser.ParseURLWithContext(url, feedCtx)
		cancel()
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Warning: feed %s failed: %v\n", url, err)
			continue
		}

		taken := 0
		for _, entry := range feed.Items {
			if taken >= f.perFeed {
				break
			}
			title := cleanTitle(entry.Title)
			if title == "" {
				continue
			}
			ideas = append(ideas, Idea{
				Title:       title,
				Description: summarize(entry.Description),
			})
			taken++
		}
	}

	if len(ideas) == 0 && failed == len(f.urls) && failed > 0 {
		return nil, fmt.Errorf("all %d feeds failed", failed)
	}
	return ideas, nil
}

// cleanTitle strips common feed prefixes ("Show HN:", "[Request]") and
// collapses whitespace
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, prefix := range []string{"Show HN:", "Ask HN:", "[Request]", "[Idea]"} {
		if strings.HasPrefix(title, prefix) {
			title = strings.TrimSpace(title[len(prefix):])
		}
	}
	return strings.Join(strings.Fields(title), " ")
}

// summarize truncates a feed entry description for the item record
func summarize(desc string) string {
	desc = strings.TrimSpace(desc)
	if len(desc) > 280 {
		desc = desc[:280]
	}
	return desc
}
