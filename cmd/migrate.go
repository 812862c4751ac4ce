package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crucible-learn/crucible/db"
	"github.com/crucible-learn/crucible/internal/config"
	"github.com/crucible-learn/crucible/internal/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger := log.New(log.Config{})
		return db.Migrate(cfg.PostgresURL(), logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
