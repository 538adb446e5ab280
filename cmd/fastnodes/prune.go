package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fastnodes/internal/db"
	"fastnodes/internal/engine"
	"fastnodes/internal/logger"
)

var pruneCmd = &cobra.Command{
	Use:   "prune [days]",
	Short: "Remove nodes not seen recently",
	Long: `Removes stored nodes that no collection has seen within the given number of days,
together with their ranking rows. If no value is provided, 'database.prune_days' from
config.yaml is used.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()

		days := cfg.Database.PruneDays
		if len(args) > 0 {
			val, err := strconv.Atoi(args[0])
			if err != nil || val <= 0 {
				logger.Log.Fatalf("Invalid days argument: %q", args[0])
			}
			days = val
			logger.Log.Infof("🎯 Pruning window manually set to: %d days", days)
		}

		database := mustOpenDB(cfg)
		defer db.Close(database)

		removed, err := engine.PruneDatabase(database, time.Duration(days)*24*time.Hour, time.Now())
		if err != nil {
			logger.Log.Errorf("Pruning failed: %v", err)
			return
		}
		logger.Log.Infof("✅ Database maintenance complete. Removed %d nodes.", removed)
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
