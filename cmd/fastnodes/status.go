package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fastnodes/internal/db"
	"fastnodes/internal/geoip"
	"fastnodes/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database statistics",
	Long:  `Displays a dashboard of the current database state, including node counts, file sizes, protocol and country breakdowns and the best stored latencies.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		database := mustOpenDB(cfg)
		defer db.Close(database)

		var totalNodes, tested int64
		database.Model(&model.Node{}).Count(&totalNodes)
		database.Model(&model.Node{}).Where("sample_count > 0").Count(&tested)

		dbSize := getFileSize(cfg.Database.Path)
		walSize := getFileSize(cfg.Database.Path + "-wal")

		type groupStat struct {
			Name  string
			Count int
		}
		var protoStats []groupStat
		database.Model(&model.Node{}).
			Select("protocol as name, count(*) as count").
			Group("protocol").
			Order("protocol").
			Scan(&protoStats)

		var countryStats []groupStat
		database.Model(&model.Node{}).
			Select("country as name, count(*) as count").
			Where("country != '' AND country != ?", geoip.UnknownCode).
			Group("country").
			Order("count desc").
			Limit(5).
			Scan(&countryStats)

		rows, _ := db.LoadRanking(database)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		fmt.Println("\n📊 \033[1mFASTNODES STATUS DASHBOARD\033[0m")
		fmt.Println("────────────────────────────────────────")

		fmt.Fprintln(w, "\033[1;36m[ SYSTEM ]\033[0m\t")
		fmt.Fprintf(w, "  Database Path:\t%s\n", cfg.Database.Path)
		fmt.Fprintf(w, "  DB Size:\t%s\n", formatBytes(dbSize))
		if walSize > 0 {
			fmt.Fprintf(w, "  WAL Size:\t%s (pending checkpoint)\n", formatBytes(walSize))
		}
		fmt.Fprintf(w, "  Total Nodes:\t%d\n", totalNodes)
		fmt.Fprintf(w, "  Tunnel Tested:\t%d\n", tested)
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ INVENTORY ]\033[0m\t")
		for _, p := range protoStats {
			fmt.Fprintf(w, "  %s:\t%d\n", p.Name, p.Count)
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ TOP LOCATIONS ]\033[0m\t")
		for _, c := range countryStats {
			fmt.Fprintf(w, "  %s %s:\t%d\n", geoip.Flag(c.Name), c.Name, c.Count)
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ LAST RANKING ]\033[0m\t")
		if len(rows) == 0 {
			fmt.Fprintln(w, "  (No ranking stored)")
		} else {
			fmt.Fprintf(w, "  Ranked At:\t%s (%s phase)\n", rows[0].RankedAt.Format("2006-01-02 15:04"), rows[0].Phase)
			fmt.Fprintf(w, "  Entries:\t%d\n", len(rows))
			for _, r := range rows[:min(5, len(rows))] {
				fmt.Fprintf(w, "  #%d %s:\t%dms\n", r.Position, r.Node.Remark, r.LatencyMs)
			}
		}

		w.Flush()
		fmt.Println("")
	},
}

func getFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
