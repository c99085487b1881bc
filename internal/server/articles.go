package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bryan-buckman/newsreel/internal/model"
	"github.com/bryan-buckman/newsreel/internal/rss"
	"golang.org/x/sync/errgroup"
)

// articleView is a routed feed entry annotated with processing history.
type articleView struct {
	model.Entry
	Processed      bool                       `json:"processed"`
	ProcessedAt    *time.Time                 `json:"processedAt"`
	UsedInLastRun  bool                       `json:"usedInLastRun"`
	LastRunChannel model.ChannelID            `json:"lastRunChannel,omitempty"`
	VideoURL       string                     `json:"videoUrl,omitempty"`
	CommentURL     string                     `json:"commentUrl,omitempty"`
	Orders         map[model.OrderType]string `json:"orders,omitempty"`
}

type channelArticles struct {
	ID       model.ChannelID `json:"id"`
	Name     string          `json:"name"`
	Articles []articleView   `json:"articles"`
	Count    int             `json:"count"`
}

// handleArticles lists routed feed entries for one channel, or for all
// channels plus the unassigned remainder.
func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	channels := s.deps.Runner.Channels()
	filter := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("channel")))
	if filter == "" {
		filter = "ALL"
	}
	if filter != "ALL" && !hasChannel(channels, model.ChannelID(filter)) {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "unknown channel " + filter})
		return
	}
	if s.opts.FeedURL == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "feed url not configured"})
		return
	}

	var (
		entries []model.Entry
		seen    model.SeenMap
		lastRun model.RunRecord
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		entries, err = s.deps.Fetcher.Fetch(ctx, s.opts.FeedURL, s.opts.ArticlesLimit)
		return err
	})
	g.Go(func() error {
		var err error
		if seen, err = s.deps.State.SeenArticles(ctx); err != nil {
			s.logger.Warn("articles: read seen map", "error", err)
			seen = model.SeenMap{}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if lastRun, err = s.deps.State.LastRun(ctx); err != nil {
			s.logger.Warn("articles: read last run", "error", err)
			lastRun = model.EmptyRunRecord()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "error": err.Error()})
		return
	}

	routed := rss.Route(entries, rss.BucketsFor(channels))
	annotate := newAnnotator(seen, lastRun)
	now := time.Now().UTC()

	if filter != "ALL" {
		for _, ch := range channels {
			if string(ch.ID) != filter {
				continue
			}
			articles := annotate(routed[string(ch.ID)])
			s.writeJSON(w, http.StatusOK, map[string]any{
				"success":     true,
				"channel":     ch.ID,
				"channelName": ch.Name,
				"articles":    articles,
				"count":       len(articles),
				"lastUpdated": now,
			})
			return
		}
	}

	perChannel := make([]channelArticles, 0, len(channels))
	for _, ch := range channels {
		articles := annotate(routed[string(ch.ID)])
		perChannel = append(perChannel, channelArticles{ID: ch.ID, Name: ch.Name, Articles: articles, Count: len(articles)})
	}
	unassigned := annotate(rss.Unassigned(entries, routed))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"channel":       "all",
		"totalArticles": len(entries),
		"channels":      perChannel,
		"unassigned":    map[string]any{"articles": unassigned, "count": len(unassigned)},
		"lastUpdated":   now,
	})
}

func newAnnotator(seen model.SeenMap, lastRun model.RunRecord) func([]model.Entry) []articleView {
	used := make(map[string]model.ItemOutcome, len(lastRun.Items))
	for _, item := range lastRun.Items {
		used[item.ArticleLink] = item
	}
	return func(entries []model.Entry) []articleView {
		out := make([]articleView, 0, len(entries))
		for _, e := range entries {
			v := articleView{Entry: e}
			if at, ok := seen[e.Link]; ok {
				v.Processed = true
				v.ProcessedAt = &at
			}
			if item, ok := used[e.Link]; ok {
				v.UsedInLastRun = true
				v.LastRunChannel = item.Channel
				v.VideoURL = item.VideoWatchURL
				v.CommentURL = item.CommentURL
				v.Orders = item.EngagementOrderIDs
			}
			out = append(out, v)
		}
		return out
	}
}

func hasChannel(channels []model.Channel, id model.ChannelID) bool {
	for _, ch := range channels {
		if ch.ID == id {
			return true
		}
	}
	return false
}
