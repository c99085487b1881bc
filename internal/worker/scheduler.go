package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bryan-buckman/newsreel/internal/model"
)

// MinScheduleInterval is the shortest allowed gap between scheduled runs.
const MinScheduleInterval = 15 * time.Minute

// DefaultRunTimeout bounds a single scheduled or triggered run.
const DefaultRunTimeout = 2 * time.Hour

// Runner executes one pass.
type Runner interface {
	Run(ctx context.Context) (*model.RunRecord, error)
}

// Scheduler runs passes in the background at a fixed interval.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// NewScheduler creates a background scheduler. Intervals below
// MinScheduleInterval are raised to it.
func NewScheduler(r Runner, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if interval < MinScheduleInterval {
		interval = MinScheduleInterval
	}
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:     r,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger.With("component", "scheduler"),
		stopChan:   make(chan struct{}),
	}
}

// Start begins the run loop. The first run starts immediately.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			s.logger.Info("scheduled run starting", "interval", s.interval)

			ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
			go func() {
				select {
				case <-s.stopChan:
					cancel()
				case <-ctx.Done():
				}
			}()
			record, err := s.runner.Run(ctx)
			cancel()

			switch {
			case errors.Is(err, ErrRunInProgress):
				s.logger.Info("scheduled run skipped, another run is active")
			case err != nil:
				s.logger.Error("scheduled run failed", "error", err)
			default:
				s.logger.Info("scheduled run complete", "items", len(record.Items), "failures", len(record.Failures))
			}

			select {
			case <-s.stopChan:
				return
			case <-time.After(s.interval):
			}
		}
	}()
}

// Stop cancels any active run and waits for the loop to exit.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
