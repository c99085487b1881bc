package rss

import (
	"testing"
	"time"

	"github.com/bryan-buckman/newsreel/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBuckets = []Bucket{
	{Name: "A", Domains: []string{"ahrefs.com", "moz.com", "seo.com"}},
	{Name: "B", Domains: []string{"developers.google.com", "blog.google", "searchengineland.com"}},
}

func entry(link string) model.Entry {
	return model.Entry{Title: link, Link: link}
}

func TestRouteBySubstring(t *testing.T) {
	entries := []model.Entry{
		entry("https://ahrefs.com/blog/a"),
		entry("https://searchengineland.com/b"),
		entry("https://example.org/c"),
		entry("https://moz.com/d"),
		entry("not a url at all"),
	}

	routed := Route(entries, testBuckets)

	require.Len(t, routed["A"], 2)
	assert.Equal(t, "https://ahrefs.com/blog/a", routed["A"][0].Link)
	assert.Equal(t, "https://moz.com/d", routed["A"][1].Link)
	require.Len(t, routed["B"], 1)
	assert.Equal(t, "https://searchengineland.com/b", routed["B"][0].Link)

	unassigned := Unassigned(entries, routed)
	require.Len(t, unassigned, 2)
	assert.Equal(t, "https://example.org/c", unassigned[0].Link)
	assert.Equal(t, "not a url at all", unassigned[1].Link)
}

func TestRouteIsLooseSubstringMatch(t *testing.T) {
	// "seo.com" is contained in "moz-seo.community" and in a query string; both match.
	entries := []model.Entry{
		entry("https://moz-seo.community/post"),
		entry("https://example.org/?ref=seo.com"),
		entry("https://SEO.COM/upper"),
	}

	routed := Route(entries, testBuckets)
	assert.Len(t, routed["A"], 2)
	assert.Empty(t, routed["B"])
}

func TestRouteEntryMayMatchSeveralBuckets(t *testing.T) {
	entries := []model.Entry{entry("https://blog.google/seo.com-recap")}

	routed := Route(entries, testBuckets)
	assert.Len(t, routed["A"], 1)
	assert.Len(t, routed["B"], 1)
	assert.Empty(t, Unassigned(entries, routed))
}

func TestRouteIsDeterministic(t *testing.T) {
	entries := []model.Entry{
		entry("https://ahrefs.com/1"),
		entry("https://blog.google/2"),
		entry("https://example.org/3"),
	}
	first := Route(entries, testBuckets)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Route(entries, testBuckets))
	}
}

func TestBucketsForChannels(t *testing.T) {
	buckets := BucketsFor([]model.Channel{
		{ID: model.ChannelA, Domains: []string{"moz.com"}},
		{ID: model.ChannelB, Domains: []string{"blog.google"}},
	})
	require.Len(t, buckets, 2)
	assert.Equal(t, "A", buckets[0].Name)
	assert.Equal(t, []string{"blog.google"}, buckets[1].Domains)
}

func TestFilterFresh(t *testing.T) {
	now := time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC)
	window := 48 * time.Hour
	entries := []model.Entry{
		entry("https://moz.com/never-seen"),
		entry("https://moz.com/seen-recently"),
		entry("https://moz.com/seen-exactly-window"),
		entry("https://moz.com/seen-long-ago"),
	}
	seen := model.SeenMap{
		"https://moz.com/seen-recently":       now.Add(-window + time.Second),
		"https://moz.com/seen-exactly-window": now.Add(-window),
		"https://moz.com/seen-long-ago":       now.Add(-10 * window),
	}

	fresh := FilterFresh(entries, seen, window, 10, now)
	require.Len(t, fresh, 3)
	assert.Equal(t, "https://moz.com/never-seen", fresh[0].Link)
	assert.Equal(t, "https://moz.com/seen-exactly-window", fresh[1].Link)
	assert.Equal(t, "https://moz.com/seen-long-ago", fresh[2].Link)
}

func TestFilterFreshHonorsLimit(t *testing.T) {
	now := time.Now()
	entries := []model.Entry{entry("a"), entry("b"), entry("c")}

	assert.Len(t, FilterFresh(entries, nil, time.Hour, 2, now), 2)
	assert.Equal(t, "a", FilterFresh(entries, nil, time.Hour, 1, now)[0].Link)
	assert.Empty(t, FilterFresh(entries, nil, time.Hour, 0, now))
}

func TestSortByRecencyPutsUndatedLast(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	entries := []model.Entry{
		{Link: "undated-1"},
		{Link: "old", PublishedAt: &t1},
		{Link: "undated-2"},
		{Link: "new", PublishedAt: &t2},
	}

	SortByRecency(entries)

	got := []string{entries[0].Link, entries[1].Link, entries[2].Link, entries[3].Link}
	assert.Equal(t, []string{"new", "old", "undated-1", "undated-2"}, got)
}
