package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryan-buckman/newsreel/internal/model"
	"github.com/bryan-buckman/newsreel/internal/youtube"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage channel upload credentials",
	}
	authCmd.AddCommand(newAuthSetTokenCommand(ctx))
	authCmd.AddCommand(newAuthStatusCommand(ctx))
	return authCmd
}

func newAuthSetTokenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-token <channel> <refresh-token>",
		Short: "Store a YouTube OAuth refresh token for a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := model.ParseChannelID(args[0])
			if !ok {
				return fmt.Errorf("unknown channel %q (expected A or B)", args[0])
			}
			token := strings.TrimSpace(args[1])
			if token == "" {
				return errors.New("refresh token is empty")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SetRefreshToken(cmd.Context(), id, token); err != nil {
				return fmt.Errorf("store refresh token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored refresh token for channel %s\n", id)
			return nil
		},
	}
}

func newAuthStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which channels have stored credentials",
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

			yt := youtube.NewClient(cfg.YouTubeConfig(), store)
			rows := make([][]string, 0, len(cfg.Channels))
			for _, ch := range cfg.ModelChannels() {
				err := yt.Authorized(cmd.Context(), ch.ID)
				note := ""
				var missing *youtube.AuthorizationMissingError
				if err != nil && !errors.As(err, &missing) {
					note = err.Error()
				}
				rows = append(rows, []string{string(ch.ID), ch.Name, yesNo(err == nil), note})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Channel", "Name", "Authorized", "Error"}, rows, nil))
			return nil
		},
	}
}
