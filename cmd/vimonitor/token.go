package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/vi-monitor/internal/auth"
	"github.com/rickgao/vi-monitor/internal/config"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Acquire an access token to check credentials",
		Long:  "Requests an access token and prints its type and expiry. The token itself is never printed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log, os.Stderr)

			tok, err := fetchToken(cmd.Context(), cfg)
			if err != nil {
				logger.Error("token request failed", "error", err)
				return err
			}

			expiry := "none"
			if !tok.Expiry.IsZero() {
				expiry = tok.Expiry.Format(time.RFC3339)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token acquired: type=%s expires=%s\n", tok.Type(), expiry)
			return nil
		},
	}
}

func authConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		TokenURL:           cfg.API.TokenURL,
		Scope:              cfg.API.Scope,
		Timeout:            cfg.API.Timeout,
		InsecureSkipVerify: cfg.API.InsecureTLS(),
	}
}
