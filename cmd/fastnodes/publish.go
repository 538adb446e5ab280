package main

import (
	"context"

	"github.com/spf13/cobra"

	"fastnodes/internal/config"
	"fastnodes/internal/db"
	"fastnodes/internal/logger"
	"fastnodes/internal/model"
	"fastnodes/internal/pipeline"
	"fastnodes/internal/publishers"
)

var publishParams map[string]string

var publishCmd = &cobra.Command{
	Use:   "publish [publisher_names...]",
	Short: "Publish the stored ranking",
	Long:  `Run all publishers or specific ones over the last stored ranking. Use --param to override publisher configuration.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()

		database := mustOpenDB(cfg)
		defer db.Close(database)

		nodes, err := db.LoadNodes(database)
		if err != nil {
			logger.Log.Fatalf("Failed to load nodes: %v", err)
		}
		rows, err := db.LoadRanking(database)
		if err != nil {
			logger.Log.Fatalf("Failed to load ranking: %v", err)
		}

		records := pipeline.FromNodes(nodes)
		byKey := make(map[string]*model.ProxyRecord, len(records))
		for _, r := range records {
			byKey[r.DedupKey] = r
		}
		ranked := make([]model.ProbeResult, 0, len(rows))
		for _, row := range rows {
			r, ok := byKey[row.Node.DedupKey]
			if !ok {
				continue
			}
			phase := model.PhaseQuick
			if row.Phase == model.PhaseFull.String() {
				phase = model.PhaseFull
			}
			ranked = append(ranked, model.ProbeResult{Record: r, LatencyMs: row.LatencyMs, Phase: phase})
		}
		logger.Log.Infof("📦 %d stored nodes, %d ranked", len(records), len(ranked))

		runPublish(cmd.Context(), cfg, records, ranked, args, publishParams)
	},
}

// runPublish builds the groupings and hands them to every selected publisher.
// Publisher failures are logged and do not stop the others.
func runPublish(ctx context.Context, cfg *config.Config, records []*model.ProxyRecord, ranked []model.ProbeResult, names []string, overrides map[string]string) {
	cfg.FilterPublishers(names)
	if len(cfg.Publishers) == 0 {
		logger.Log.Warn("No publishers matched.")
		return
	}

	groups := publishers.BuildGroupings(records, ranked, cfg.Output)
	for _, pubCfg := range cfg.Publishers {
		logger.Log.Infof("📨 Running Publisher: %s (%s)...", pubCfg.Name, pubCfg.Type)

		plugin, err := publishers.Get(pubCfg.Type)
		if err != nil {
			logger.Log.Warnf("Plugin not found: %v", err)
			continue
		}

		params := applyParams(pubCfg.Params, overrides)
		params["_health_url"] = cfg.Output.HealthCheckURL
		params["_health_interval"] = cfg.Output.HealthInterval

		if err := plugin.Publish(ctx, publishers.Select(groups, pubCfg.Groupings), params); err != nil {
			logger.Log.Errorf("Publish failed: %v", err)
		} else {
			logger.Log.Info("✅ Published successfully.")
		}
	}
}

func init() {
	publishCmd.Flags().StringToStringVarP(&publishParams, "param", "p", nil, "Override publisher params (e.g. -p path=sub)")
	rootCmd.AddCommand(publishCmd)
}
