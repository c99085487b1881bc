// Package rss provides feed fetching, routing and freshness filtering.
package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bryan-buckman/newsreel/internal/model"
	"github.com/mmcdole/gofeed"
)

// DefaultTimeout bounds a single feed request.
const DefaultTimeout = 15 * time.Second

const userAgent = "newsreel/1.0 (+https://github.com/bryan-buckman/newsreel)"

// FetchError reports a network or HTTP failure while retrieving a feed.
type FetchError struct {
	URL        string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch feed %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch feed %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// ParseError reports malformed feed markup.
type ParseError struct {
	URL   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed %s: %v", e.URL, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Fetcher retrieves a feed and normalizes it into entries.
type Fetcher struct {
	client *http.Client
	parser *gofeed.Parser
}

// NewFetcher creates a fetcher whose requests are bounded by timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
	}
}

// Fetch downloads feedURL and returns at most maxItems entries, most recent first.
// Atom and RSS documents are both accepted. Entries without a link or title are
// dropped, and duplicate links keep only their most recent occurrence.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string, maxItems int) ([]model.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: feedURL, StatusCode: resp.StatusCode}
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, &ParseError{URL: feedURL, Cause: err}
	}

	return normalize(parsed.Items, maxItems), nil
}

func normalize(items []*gofeed.Item, maxItems int) []model.Entry {
	entries := make([]model.Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		link := resolveLink(item)
		if title == "" || link == "" {
			continue
		}
		entries = append(entries, model.Entry{
			Title:       title,
			Link:        link,
			PublishedAt: itemTime(item),
		})
	}

	SortByRecency(entries)

	seen := make(map[string]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if _, dup := seen[e.Link]; dup {
			continue
		}
		seen[e.Link] = struct{}{}
		out = append(out, e)
	}

	if maxItems >= 0 && len(out) > maxItems {
		out = out[:maxItems]
	}
	return out
}

// SortByRecency orders entries newest first. Undated entries go last and keep
// their relative order.
func SortByRecency(entries []model.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].PublishedAt, entries[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

func resolveLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	for _, l := range item.Links {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	// Atom entries sometimes only carry their permalink in <id>.
	guid := strings.TrimSpace(item.GUID)
	if strings.HasPrefix(guid, "http://") || strings.HasPrefix(guid, "https://") {
		return guid
	}
	return ""
}

func itemTime(item *gofeed.Item) *time.Time {
	var t *time.Time
	switch {
	case item.PublishedParsed != nil:
		t = item.PublishedParsed
	case item.UpdatedParsed != nil:
		t = item.UpdatedParsed
	default:
		return nil
	}
	ts := t.UTC()
	return &ts
}
