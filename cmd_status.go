package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bryan-buckman/newsreel/internal/model"
	"github.com/bryan-buckman/newsreel/internal/rss"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the most recent run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.LastRun(cmd.Context())
			if err != nil {
				ctx.log().Warn("status read failed", "error", err)
				run = model.EmptyRunRecord()
			}
			if jsonOut {
				return writeJSON(cmd, map[string]any{"lastRun": run})
			}
			renderRunRecord(cmd.OutOrStdout(), run)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the last run as JSON")
	return cmd
}

type articleRow struct {
	Channel   model.ChannelID `json:"channel,omitempty"`
	Entry     model.Entry     `json:"entry"`
	Processed bool            `json:"processed"`
	LastRun   bool            `json:"usedInLastRun"`
}

func newArticlesCommand(ctx *commandContext) *cobra.Command {
	var channelFlag string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List feed articles per channel with their processing state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Feed.URL == "" {
				return fmt.Errorf("feed.url is not configured (set RSS_URL)")
			}
			channels := cfg.ModelChannels()
			filter := strings.ToUpper(strings.TrimSpace(channelFlag))
			if filter != "" {
				id, ok := model.ParseChannelID(filter)
				if !ok {
					return fmt.Errorf("unknown channel %q", channelFlag)
				}
				channels = selectChannel(channels, id)
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := loadArticles(cmd.Context(), ctx, rss.NewFetcher(cfg.FeedTimeout()), store, cfg.Feed.URL, limit, channels)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, rows)
			}

			out := make([][]string, 0, len(rows))
			for _, r := range rows {
				ch := string(r.Channel)
				if ch == "" {
					ch = "-"
				}
				out = append(out, []string{ch, r.Entry.Title, relTime(r.Entry.PublishedAt), yesNo(r.Processed), yesNo(r.LastRun)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Channel", "Title", "Published", "Processed", "Last run"}, out, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&channelFlag, "channel", "", "Only show one channel (A or B)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum feed items to read")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print articles as JSON")
	return cmd
}

type articleSource interface {
	Fetch(ctx context.Context, feedURL string, maxItems int) ([]model.Entry, error)
}

type articleState interface {
	LastRun(ctx context.Context) (model.RunRecord, error)
	SeenArticles(ctx context.Context) (model.SeenMap, error)
}

// loadArticles fetches the feed and annotates routed entries. State read
// failures degrade to "not processed".
func loadArticles(ctx context.Context, cc *commandContext, src articleSource, state articleState, feedURL string, limit int, channels []model.Channel) ([]articleRow, error) {
	var (
		entries []model.Entry
		seen    = model.SeenMap{}
		lastRun = model.EmptyRunRecord()
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = src.Fetch(gctx, feedURL, limit)
		return err
	})
	g.Go(func() error {
		if s, err := state.SeenArticles(gctx); err != nil {
			cc.log().Warn("articles: read seen map", "error", err)
		} else {
			seen = s
		}
		return nil
	})
	g.Go(func() error {
		if r, err := state.LastRun(gctx); err != nil {
			cc.log().Warn("articles: read last run", "error", err)
		} else {
			lastRun = r
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(lastRun.Items))
	for _, item := range lastRun.Items {
		used[item.ArticleLink] = true
	}

	routed := rss.Route(entries, rss.BucketsFor(channels))
	var rows []articleRow
	for _, ch := range channels {
		for _, e := range routed[string(ch.ID)] {
			_, processed := seen[e.Link]
			rows = append(rows, articleRow{Channel: ch.ID, Entry: e, Processed: processed, LastRun: used[e.Link]})
		}
	}
	if len(channels) > 1 {
		for _, e := range rss.Unassigned(entries, routed) {
			_, processed := seen[e.Link]
			rows = append(rows, articleRow{Entry: e, Processed: processed, LastRun: used[e.Link]})
		}
	}
	return rows, nil
}

func selectChannel(channels []model.Channel, id model.ChannelID) []model.Channel {
	for _, ch := range channels {
		if ch.ID == id {
			return []model.Channel{ch}
		}
	}
	return nil
}
