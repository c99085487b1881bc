package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bryan-buckman/newsreel/internal/config"
	"github.com/bryan-buckman/newsreel/internal/creatify"
	"github.com/bryan-buckman/newsreel/internal/database"
	"github.com/bryan-buckman/newsreel/internal/llm"
	"github.com/bryan-buckman/newsreel/internal/pipeline"
	"github.com/bryan-buckman/newsreel/internal/rss"
	"github.com/bryan-buckman/newsreel/internal/smm"
	"github.com/bryan-buckman/newsreel/internal/worker"
	"github.com/bryan-buckman/newsreel/internal/youtube"
)

// app holds the wired collaborators for commands that publish.
type app struct {
	cfg     *config.Config
	store   database.Store
	fetcher *rss.Fetcher
	youtube *youtube.Client
	worker  *worker.Worker
	closers []io.Closer
}

// openStore opens the configured state store, creating the SQLite
// directory when needed.
func openStore(cfg *config.Config) (database.Store, error) {
	if cfg.Database.Driver == "sqlite" {
		if err := ensureParentDir(cfg.Database.DSN); err != nil {
			return nil, fmt.Errorf("database directory: %w", err)
		}
	}
	store, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	return store, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.ValidateForRun(); err != nil {
		return nil, err
	}
	if err := ensureParentDir(cfg.Run.LockPath); err != nil {
		return nil, fmt.Errorf("lock directory: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: store, closers: []io.Closer{store}}

	completer, err := llm.NewCompleter(ctx, cfg.LLMConfig())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}
	if closer, ok := completer.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}

	a.fetcher = rss.NewFetcher(cfg.FeedTimeout())
	a.youtube = youtube.NewClient(cfg.YouTubeConfig(), store)
	renderer := creatify.NewClient(cfg.CreatifyConfig())
	orders := smm.NewClient(cfg.SMM.APIURL, cfg.SMM.APIKey, cfg.SMMTimeout())

	processor := pipeline.NewProcessor(renderer, completer, a.youtube, a.youtube, orders, pipeline.Options{
		PollInterval:  cfg.RenderPollInterval(),
		RenderTimeout: cfg.RenderTimeout(),
		VideoLength:   cfg.Render.VideoLength,
		TitleMaxLen:   cfg.YouTube.TitleMaxLen,
		ReplyCount:    cfg.SMM.ReplyCount,
		Services:      cfg.SMMServices(),
		CommentParams: cfg.CommentParams(),
		ReplyParams:   cfg.ReplyParams(),
	}, logger)

	a.worker = worker.New(worker.Config{
		FeedURL:         cfg.Feed.URL,
		MaxItems:        cfg.Feed.MaxItems,
		PerChannel:      cfg.Run.PerChannel,
		FreshnessWindow: cfg.FreshnessWindow(),
		Channels:        cfg.ModelChannels(),
		LockPath:        cfg.Run.LockPath,
	}, worker.Deps{
		Fetcher:    a.fetcher,
		Processor:  processor,
		Authorizer: a.youtube,
		Store:      store,
	}, logger)
	return a, nil
}

// Close releases collaborators in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ensureParentDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
