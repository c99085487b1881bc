package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryan-buckman/newsreel/internal/server"
	"github.com/bryan-buckman/newsreel/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	var schedule bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the trigger and status API, optionally running on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.log()

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			addr := cfg.Server.Bind
			if strings.TrimSpace(bind) != "" {
				addr = bind
			}
			srv := server.New(server.Deps{
				Runner:     a.worker,
				State:      a.store,
				Fetcher:    a.fetcher,
				Authorizer: a.youtube,
			}, server.Options{
				FeedURL:    cfg.Feed.URL,
				APIToken:   cfg.Server.APIToken,
				RunTimeout: cfg.RunTimeout(),
			}, logger)

			var sched *worker.Scheduler
			if schedule || cfg.Run.Schedule {
				sched = worker.NewScheduler(a.worker, cfg.ScheduleInterval(), cfg.RunTimeout(), logger)
				sched.Start()
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(addr)
			}()

			var serveErr error
			select {
			case serveErr = <-errCh:
			case <-sigCtx.Done():
				logger.Info("shutting down")
			}

			if sched != nil {
				sched.Stop()
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
				serveErr = err
			}
			return serveErr
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides server.bind)")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "Run passes on run.schedule_interval_minutes while serving")
	return cmd
}
