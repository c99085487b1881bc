// Package model defines shared data structures.
package model

import (
	"strings"
	"time"
)

// SchemaVersion is the version stamped on persisted run documents.
const SchemaVersion = 1

// Persisted state keys.
const (
	KeySeenArticles = "seen-articles"
	KeyLastRun      = "lastRun"
)

// ChannelID identifies a persona channel.
type ChannelID string

// Known persona channels.
const (
	ChannelA ChannelID = "A"
	ChannelB ChannelID = "B"
)

// Valid reports whether id is one of the known channels.
func (id ChannelID) Valid() bool {
	return id == ChannelA || id == ChannelB
}

// ParseChannelID normalizes a user-supplied channel label.
func ParseChannelID(s string) (ChannelID, bool) {
	id := ChannelID(strings.ToUpper(strings.TrimSpace(s)))
	return id, id.Valid()
}

// Channel holds the per-persona publishing configuration.
type Channel struct {
	ID             ChannelID
	Name           string
	Domains        []string // substrings matched against article links
	TitlePrefix    string
	Description    string
	Tags           []string
	Persona        string // voice handed to the render API as target audience
	CommentPersona string // short hint prepended to comment prompts
}

// Entry is one normalized feed article.
type Entry struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// OrderType names a paid engagement order.
type OrderType string

// Engagement order types, in submission order.
const (
	OrderViews    OrderType = "views"
	OrderLikes    OrderType = "likes"
	OrderPinLikes OrderType = "pin_likes"
	OrderComments OrderType = "comments"
)

// ItemOutcome records one fully processed article.
type ItemOutcome struct {
	Channel            ChannelID            `json:"channel"`
	ArticleLink        string               `json:"article"`
	Title              string               `json:"title,omitempty"`
	VideoID            string               `json:"videoId,omitempty"`
	VideoWatchURL      string               `json:"video"`
	CommentURL         string               `json:"commentUrl"`
	EngagementOrderIDs map[OrderType]string `json:"orders"`
}

// ItemFailure records an article whose pipeline failed during a run.
type ItemFailure struct {
	Channel     ChannelID `json:"channel"`
	ArticleLink string    `json:"article"`
	Stage       string    `json:"stage"`
	Error       string    `json:"error"`
}

// RunRecord is the snapshot of the most recent orchestrator pass.
type RunRecord struct {
	SchemaVersion int           `json:"schemaVersion"`
	ID            string        `json:"id,omitempty"`
	StartedAt     *time.Time    `json:"at"`
	FinishedAt    *time.Time    `json:"finishedAt,omitempty"`
	Items         []ItemOutcome `json:"items"`
	Failures      []ItemFailure `json:"failures,omitempty"`
}

// EmptyRunRecord returns the record reported when no run has been persisted.
func EmptyRunRecord() RunRecord {
	return RunRecord{SchemaVersion: SchemaVersion, Items: []ItemOutcome{}}
}

// SeenMap maps an article link to the time it was last processed.
type SeenMap map[string]time.Time

// Clone returns an independent copy.
func (s SeenMap) Clone() SeenMap {
	out := make(SeenMap, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// RunState is the seen map and last run persisted together. Version is the
// compare-and-swap token; a store rejects a save whose Version is stale.
type RunState struct {
	Seen    SeenMap
	LastRun RunRecord
	Version int64
}
