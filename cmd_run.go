package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one publishing pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, ctx.log())
			if err != nil {
				return err
			}
			defer a.Close()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			runCtx, cancel := context.WithTimeout(sigCtx, cfg.RunTimeout())
			defer cancel()

			record, runErr := a.worker.Run(runCtx)
			if record != nil {
				if jsonOut {
					if err := writeJSON(cmd, record); err != nil {
						return err
					}
				} else {
					renderRunRecord(cmd.OutOrStdout(), *record)
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run record as JSON")
	return cmd
}
