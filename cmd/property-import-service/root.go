package main

import (
	"fmt"

	"property-import-service/internal"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "property-import-service",
		Short:         "Async CSV import of property records",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: ./.env)")

	cmd.AddCommand(
		newRunCmd(internal.ModeAPI, "HTTP intake, import status and properties API", &envFile),
		newRunCmd(internal.ModeWorker, "Import queue consumer and dead-letter reconciler", &envFile),
		newRunCmd(internal.ModeAll, "API and worker in one process", &envFile),
		newMigrateCmd(&envFile),
		newTokenCmd(),
	)
	return cmd
}

func envPaths(envFile string) []string {
	if envFile == "" {
		return nil
	}
	return []string{envFile}
}

func newRunCmd(mode internal.Mode, short string, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   string(mode),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := internal.NewApp(mode, envPaths(*envFile)...)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run()
		},
	}
}
