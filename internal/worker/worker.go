// Package worker runs the daily publishing pass across persona channels.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bryan-buckman/newsreel/internal/model"
	"github.com/bryan-buckman/newsreel/internal/pipeline"
	"github.com/bryan-buckman/newsreel/internal/rss"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// ErrRunInProgress is returned when another run holds the run lock.
var ErrRunInProgress = errors.New("run already in progress")

// Pass defaults. The config layer applies them; a zero PerChannel or
// FreshnessWindow given to New is honored as is.
const (
	DefaultMaxItems        = 30
	DefaultPerChannel      = 2
	DefaultFreshnessWindow = 48 * time.Hour

	// saveTimeout bounds the final persist, which outlives a cancelled run.
	saveTimeout = 30 * time.Second
)

// FeedFetcher reads the article feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string, maxItems int) ([]model.Entry, error)
}

// ItemProcessor runs the item pipeline for one article.
type ItemProcessor interface {
	ProcessOne(ctx context.Context, entry model.Entry, channel model.Channel) (model.ItemOutcome, error)
}

// Authorizer checks that a channel can publish.
type Authorizer interface {
	Authorized(ctx context.Context, channel model.ChannelID) error
}

// StateStore loads and saves run state.
type StateStore interface {
	LoadState(ctx context.Context) (*model.RunState, error)
	SaveState(ctx context.Context, state *model.RunState) error
	LastRun(ctx context.Context) (model.RunRecord, error)
}

// Config controls a pass.
type Config struct {
	FeedURL         string
	MaxItems        int
	// PerChannel caps picks per channel per pass. Zero pauses publishing.
	PerChannel int
	// FreshnessWindow is how long a processed article stays ineligible.
	// Zero makes every article eligible again on the next pass.
	FreshnessWindow time.Duration
	Channels        []model.Channel
	// LockPath is the advisory lock file shared by every process using the
	// same state store. Empty disables the cross-process lock.
	LockPath string
}

// Deps are the collaborators of a Worker.
type Deps struct {
	Fetcher    FeedFetcher
	Processor  ItemProcessor
	Authorizer Authorizer
	Store      StateStore
}

// Worker orchestrates one fetch, route, publish and persist pass.
type Worker struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	mu     sync.Mutex
	now    func() time.Time
	newID  func() string
}

// New creates a Worker.
func New(cfg Config, deps Deps, logger *slog.Logger) *Worker {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "worker"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Channels returns the configured channels in processing order.
func (w *Worker) Channels() []model.Channel {
	return w.cfg.Channels
}

// Run executes one pass. Items that fail are logged, listed in the record's
// failures and left unseen so the next pass retries them. A fetch, state or
// authorization failure aborts the pass; once any item has been attempted
// the partial record is still persisted.
func (w *Worker) Run(ctx context.Context) (*model.RunRecord, error) {
	if !w.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer w.mu.Unlock()

	if w.cfg.LockPath != "" {
		lock := flock.New(w.cfg.LockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !locked {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				w.logger.Warn("release run lock", "error", err)
			}
		}()
	}

	started := w.now().UTC()
	record := model.EmptyRunRecord()
	record.ID = w.newID()
	record.StartedAt = &started
	log := w.logger.With("run_id", record.ID)
	log.Info("run started", "feed", w.cfg.FeedURL)

	state, err := w.deps.Store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	entries, err := w.deps.Fetcher.Fetch(ctx, w.cfg.FeedURL, w.cfg.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	routed := rss.Route(entries, rss.BucketsFor(w.cfg.Channels))
	log.Info("feed routed", "entries", len(entries), "unassigned", len(rss.Unassigned(entries, routed)))

	seen := state.Seen.Clone()
	abortErr := w.processChannels(ctx, log, routed, state.Seen, seen, &record)

	attempted := len(record.Items) + len(record.Failures)
	if abortErr != nil && attempted == 0 {
		log.Error("run aborted", "error", abortErr)
		return nil, abortErr
	}

	finished := w.now().UTC()
	record.FinishedAt = &finished
	state.Seen = seen
	state.LastRun = record
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := w.deps.Store.SaveState(saveCtx, state); err != nil {
		log.Error("persist state failed", "error", err, "completed", len(record.Items))
		return nil, fmt.Errorf("persist state: %w", err)
	}

	if abortErr != nil {
		log.Error("run aborted after partial progress", "error", abortErr, "completed", len(record.Items))
		return &record, abortErr
	}
	log.Info("run finished", "completed", len(record.Items), "failed", len(record.Failures),
		"duration", finished.Sub(started).Round(time.Second))
	return &record, nil
}

// processChannels walks channels in order. Every channel filters against the
// snapshot loaded at the start of the pass, so an article routed to several
// channels is published on each of them. Successes are recorded in seen. It
// returns the error that stopped the pass early, if any.
func (w *Worker) processChannels(ctx context.Context, log *slog.Logger, routed map[string][]model.Entry, snapshot, seen model.SeenMap, record *model.RunRecord) error {
	now := w.now()
	for _, ch := range w.cfg.Channels {
		picks := rss.FilterFresh(routed[string(ch.ID)], snapshot, w.cfg.FreshnessWindow, w.cfg.PerChannel, now)
		clog := log.With("channel", ch.ID)
		clog.Info("channel picks", "candidates", len(routed[string(ch.ID)]), "picked", len(picks))
		if len(picks) == 0 {
			continue
		}
		if w.deps.Authorizer != nil {
			if err := w.deps.Authorizer.Authorized(ctx, ch.ID); err != nil {
				return err
			}
		}

		for _, entry := range picks {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcome, err := w.deps.Processor.ProcessOne(ctx, entry, ch)
			if err != nil {
				stage := "unknown"
				var stageErr *pipeline.StageError
				if errors.As(err, &stageErr) {
					stage = string(stageErr.Stage)
				}
				clog.Error("item failed", "article", entry.Link, "stage", stage, "error", err)
				record.Failures = append(record.Failures, model.ItemFailure{
					Channel:     ch.ID,
					ArticleLink: entry.Link,
					Stage:       stage,
					Error:       err.Error(),
				})
				continue
			}
			seen[entry.Link] = w.now().UTC()
			record.Items = append(record.Items, outcome)
			clog.Info("item published", "article", entry.Link, "video", outcome.VideoWatchURL)
		}
	}
	return nil
}

// LastRun returns the persisted run record, or an empty record if it cannot
// be read.
func (w *Worker) LastRun(ctx context.Context) model.RunRecord {
	run, err := w.deps.Store.LastRun(ctx)
	if err != nil {
		w.logger.Warn("read last run failed", "error", err)
		return model.EmptyRunRecord()
	}
	return run
}
