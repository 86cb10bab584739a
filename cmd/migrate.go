package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the job and file store schemas",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context(), "job")
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("migrations applied",
			zap.String("store", cfg.Store.Driver),
			zap.String("storage", cfg.Storage.Driver),
		)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, versionCmd)
}
