package main

import (
	"fmt"

	"github.com/meghashyamc/iiifsearch/api"
	"github.com/meghashyamc/iiifsearch/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(env)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return api.Run(cmd.Context(), cfg)
	},
}
