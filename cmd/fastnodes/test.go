package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"fastnodes/internal/config"
	"fastnodes/internal/db"
	"fastnodes/internal/engine"
	"fastnodes/internal/logger"
	"fastnodes/internal/metrics"
	"fastnodes/internal/model"
	"fastnodes/internal/pipeline"
	"fastnodes/internal/tester"
	"fastnodes/internal/xray"
)

var (
	flagWorkers   int
	flagTarget    int
	flagShortlist int
	flagEngine    string
	flagNoPublish bool
	flagProtocols []string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Rank stored proxies by quick and tunnel latency",
	Long:  `Load stored candidates, run the quick filter and tunnel tests, record history and publish the ranking.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		applyTestFlags(cfg)

		database := mustOpenDB(cfg)
		defer db.Close(database)

		nodes, err := db.LoadNodes(database, flagProtocols...)
		if err != nil {
			logger.Log.Fatalf("Failed to fetch candidates: %v", err)
		}
		if len(nodes) == 0 {
			logger.Log.Error("❌ No candidates stored. Run collect first.")
			return
		}
		records := pipeline.FromNodes(nodes)
		logger.Log.Infof("🔍 Loaded %d candidates", len(records))

		mc := metrics.New()
		rk, err := runTest(cmd.Context(), cfg, database, records, mc)
		if err != nil {
			logger.Log.Fatalf("Testing failed: %v", err)
		}
		mc.PrintReport(os.Stdout, cfg.Tester.Workers)

		if !flagNoPublish {
			runPublish(cmd.Context(), cfg, records, rk.Results, nil, nil)
		}
	},
}

func applyTestFlags(cfg *config.Config) {
	if flagWorkers > 0 {
		cfg.Tester.Workers = flagWorkers
	}
	if flagTarget > 0 {
		cfg.Tester.Target = flagTarget
	}
	if flagShortlist > 0 {
		cfg.Tester.ShortlistSize = flagShortlist
	}
	if flagEngine != "" {
		cfg.Tester.Engine = flagEngine
	}
	if err := cfg.Validate(); err != nil {
		logger.Log.Fatalf("Invalid configuration: %v", err)
	}
}

// runTest ranks records, then persists history and the resulting order.
func runTest(ctx context.Context, cfg *config.Config, database *gorm.DB, records []*model.ProxyRecord, mc *metrics.Collector) (*engine.Ranking, error) {
	eng, err := xray.NewEngine(cfg.Tester.Engine, cfg.Tester.EnginePath, cfg.Tester.EngineArgs)
	if err != nil {
		return nil, err
	}
	ports := tester.NewPortAllocator(cfg.Tester.PortBase, cfg.Tester.PortRange)
	quick := tester.NewQuickProbe(cfg.Tester, mc)
	full := tester.NewTunnelProbe(cfg.Tester, eng, ports, mc)

	bars := newPhaseBars()
	re := engine.NewRankingEngine(quick, full, engine.Options{
		Workers:        cfg.Tester.Workers,
		ShortlistSize:  cfg.Tester.ShortlistSize,
		Target:         cfg.Tester.Target,
		QuickThreshold: cfg.Tester.QuickThreshold,
		FullThreshold:  cfg.Tester.FullThreshold,
	}, mc, engine.Hooks{PhaseStarted: bars.start, Probed: bars.add})

	rk, err := re.Rank(ctx, records)
	bars.finish()
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("🏁 Ranked %d candidates (%d tunnel attempts, %d successes)", len(rk.Results), rk.FullAttempts, len(rk.Full))

	now := time.Now()
	if err := engine.NewHistoryEngine(database).Record(rk, now); err != nil {
		logger.Log.Warnf("Failed to record history: %v", err)
	}
	entries := make([]db.RankEntry, len(rk.Results))
	for i, res := range rk.Results {
		entries[i] = db.RankEntry{DedupKey: res.Record.DedupKey, Phase: res.Phase.String(), LatencyMs: res.LatencyMs}
	}
	if err := db.SaveRanking(database, entries, now); err != nil {
		logger.Log.Warnf("Failed to store ranking: %v", err)
	}
	return rk, nil
}

// phaseBars shows one progress bar per probe phase.
type phaseBars struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newPhaseBars() *phaseBars { return &phaseBars{} }

func (p *phaseBars) start(phase model.Phase, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		fmt.Fprint(os.Stderr, "\n")
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(15),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s probe...[reset]", phase)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *phaseBars) add(model.Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Add(1)
	}
}

func (p *phaseBars) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		fmt.Fprint(os.Stderr, "\n")
		p.bar = nil
	}
}

func init() {
	testCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Override worker count")
	testCmd.Flags().IntVar(&flagTarget, "target", 0, "Stop tunnel testing after this many successes")
	testCmd.Flags().IntVar(&flagShortlist, "shortlist", 0, "Number of quick survivors promoted to tunnel testing")
	testCmd.Flags().StringVar(&flagEngine, "engine", "", "Tunnel engine: process or embedded")
	testCmd.Flags().BoolVar(&flagNoPublish, "no-publish", false, "Skip publishing after ranking")
	testCmd.Flags().StringSliceVar(&flagProtocols, "protocol", nil, "Only test these protocols")
	rootCmd.AddCommand(testCmd)
}
