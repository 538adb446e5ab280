package main

import (
	"os"

	"github.com/spf13/cobra"

	"fastnodes/internal/db"
	"fastnodes/internal/logger"
	"fastnodes/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect, test and publish in one pass",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		applyTestFlags(cfg)

		database := mustOpenDB(cfg)
		defer db.Close(database)

		mc := metrics.New()
		cs, err := runCollect(cmd.Context(), cfg, database, mc)
		if err != nil {
			logger.Log.Fatalf("Collection failed: %v", err)
		}

		records := cs.Records()
		rk, err := runTest(cmd.Context(), cfg, database, records, mc)
		if err != nil {
			logger.Log.Fatalf("Testing failed: %v", err)
		}
		mc.PrintReport(os.Stdout, cfg.Tester.Workers)

		runPublish(cmd.Context(), cfg, records, rk.Results, nil, nil)
		logger.Log.Info("🎉 Done!")
	},
}

func init() {
	runCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Override worker count")
	runCmd.Flags().IntVar(&flagTarget, "target", 0, "Stop tunnel testing after this many successes")
	runCmd.Flags().IntVar(&flagShortlist, "shortlist", 0, "Number of quick survivors promoted to tunnel testing")
	runCmd.Flags().StringVar(&flagEngine, "engine", "", "Tunnel engine: process or embedded")
	rootCmd.AddCommand(runCmd)
}
