package rss

import (
	"strings"
	"time"

	"github.com/bryan-buckman/newsreel/internal/model"
)

// Bucket is a named routing filter. An entry belongs to the bucket when its
// link contains any of Domains as a case-sensitive substring.
type Bucket struct {
	Name    string
	Domains []string
}

// BucketsFor builds one routing bucket per channel, keyed by channel ID.
func BucketsFor(channels []model.Channel) []Bucket {
	buckets := make([]Bucket, 0, len(channels))
	for _, ch := range channels {
		buckets = append(buckets, Bucket{Name: string(ch.ID), Domains: ch.Domains})
	}
	return buckets
}

// Route partitions entries into buckets. Buckets are independent filters, so an
// entry may appear in several buckets or in none. Every bucket name is present in
// the result, and input order is preserved within a bucket.
func Route(entries []model.Entry, buckets []Bucket) map[string][]model.Entry {
	out := make(map[string][]model.Entry, len(buckets))
	for _, b := range buckets {
		matched := []model.Entry{}
		for _, e := range entries {
			if matchesAny(e.Link, b.Domains) {
				matched = append(matched, e)
			}
		}
		out[b.Name] = matched
	}
	return out
}

// Unassigned returns the entries that are in no routed bucket.
func Unassigned(entries []model.Entry, routed map[string][]model.Entry) []model.Entry {
	assigned := make(map[string]struct{})
	for _, bucket := range routed {
		for _, e := range bucket {
			assigned[e.Link] = struct{}{}
		}
	}
	out := []model.Entry{}
	for _, e := range entries {
		if _, ok := assigned[e.Link]; !ok {
			out = append(out, e)
		}
	}
	return out
}

func matchesAny(link string, domains []string) bool {
	for _, d := range domains {
		if d != "" && strings.Contains(link, d) {
			return true
		}
	}
	return false
}

// FilterFresh returns up to limit entries, in input order, that were never seen
// or were last seen at least window before now.
func FilterFresh(entries []model.Entry, seen model.SeenMap, window time.Duration, limit int, now time.Time) []model.Entry {
	out := []model.Entry{}
	if limit <= 0 {
		return out
	}
	for _, e := range entries {
		if len(out) == limit {
			break
		}
		if IsFresh(e.Link, seen, window, now) {
			out = append(out, e)
		}
	}
	return out
}

// IsFresh reports whether link is eligible for processing at now.
func IsFresh(link string, seen model.SeenMap, window time.Duration, now time.Time) bool {
	at, ok := seen[link]
	if !ok {
		return true
	}
	return now.Sub(at) >= window
}
