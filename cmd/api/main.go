package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/famalink/telemed-api/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPaths []string

	root := &cobra.Command{
		Use:           "api",
		Short:         "FamaLink doctor scheduling and teleconsultation API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&configPaths, "config-path", nil,
		"directories searched for config.yaml (default . and ./config)")

	load := func() (*config.Config, error) {
		return config.Load(configPaths...)
	}

	root.AddCommand(
		newServeCmd(load),
		newWorkerCmd(load),
		newMigrateCmd(load),
	)
	return root
}
