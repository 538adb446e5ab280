package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"fastnodes/internal/config"
	"fastnodes/internal/db"
	"fastnodes/internal/geoip"
	"fastnodes/internal/logger"
	"fastnodes/internal/metrics"
	"fastnodes/internal/pipeline"
	"fastnodes/internal/store"
)

var collectParams map[string]string

var collectCmd = &cobra.Command{
	Use:   "collect [collector_names...]",
	Short: "Fetch, classify and store proxies",
	Long:  `Run all collectors defined in config, or specify specific ones by name. Use --param to override configuration parameters.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		cfg.FilterCollectors(args)
		if len(cfg.Collectors) == 0 {
			logger.Log.Warn("No collectors matched the provided names.")
			return
		}
		for i := range cfg.Collectors {
			cfg.Collectors[i].Params = applyParams(cfg.Collectors[i].Params, collectParams)
		}

		database := mustOpenDB(cfg)
		defer db.Close(database)

		mc := metrics.New()
		if _, err := runCollect(cmd.Context(), cfg, database, mc); err != nil {
			logger.Log.Fatalf("Collection failed: %v", err)
		}
		mc.PrintReport(os.Stdout, cfg.Tester.Workers)
	},
}

// runCollect fetches all sources, builds the candidate store and persists it.
func runCollect(ctx context.Context, cfg *config.Config, database *gorm.DB, mc *metrics.Collector) (*store.CandidateStore, error) {
	bl := pipeline.LoadBlacklist(ctx, cfg.Blacklist.Sources)

	resolver := geoip.Open(cfg.GeoIP.CountryPath, geoip.NewCache(), geoip.WithDNSTimeout(cfg.GeoIP.DNSTimeout))
	defer resolver.Close()

	logger.Log.Infof("🏃 Fetching %d sources...", len(cfg.Collectors))
	lines, err := pipeline.Collect(ctx, cfg.Collectors, mc)
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("📥 %d lines fetched", len(lines))

	cs, err := pipeline.New(bl, resolver, mc, cfg.Tester.Workers).Process(ctx, lines)
	if err != nil {
		return nil, err
	}
	if err := db.SaveRecords(database, cs.Records(), time.Now()); err != nil {
		return nil, err
	}
	logger.Log.Infof("✅ Stored %d candidates.", cs.Len())
	return cs, nil
}

func init() {
	collectCmd.Flags().StringToStringVarP(&collectParams, "param", "p", nil, "Override collector params")
	rootCmd.AddCommand(collectCmd)
}
