package pipeline

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"fastnodes/internal/blacklist"
	"fastnodes/internal/collectors"
	"fastnodes/internal/config"
	"fastnodes/internal/logger"
	"fastnodes/internal/metrics"
)

// fetchConcurrency caps parallel source fetches.
const fetchConcurrency = 8

// Line is one raw line and the source it came from.
type Line struct {
	Text   string
	Source string
}

// Collect fetches every source. Failing sources are logged and skipped; lines
// keep source order so runs over the same feeds are reproducible.
func Collect(ctx context.Context, sources []config.CollectorConfig, mc *metrics.Collector) ([]Line, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	perSource := make([][]string, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			lines, err := fetch(gctx, src.Type, src.Params)
			if err != nil {
				logger.Log.Warnf("❌ Source %s failed: %v", src.Name, err)
				mc.Inc(metrics.FetchErrors)
				return nil
			}
			logger.Log.Infof("   ✅ %s: %d lines", src.Name, len(lines))
			perSource[i] = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Line
	for i, lines := range perSource {
		for _, l := range lines {
			out = append(out, Line{Text: l, Source: sources[i].Name})
		}
	}
	mc.Add(metrics.Fetched, len(out))
	if len(out) == 0 {
		return nil, ErrNoLines
	}
	return out, nil
}

func fetch(ctx context.Context, typ string, params map[string]interface{}) ([]string, error) {
	c, err := collectors.Get(typ)
	if err != nil {
		return nil, err
	}
	return c.Collect(ctx, params)
}

// LoadBlacklist fetches CIDR lists by location (URL or file path) and merges
// them. Unreachable sources are skipped.
func LoadBlacklist(ctx context.Context, locations []string) *blacklist.Blacklist {
	texts := make([]string, 0, len(locations))
	for _, loc := range locations {
		typ, params := collectors.ForLocation(loc)
		lines, err := fetch(ctx, typ, params)
		if err != nil {
			logger.Log.Warnf("⚠️  Blacklist source %s skipped: %v", loc, err)
			continue
		}
		texts = append(texts, strings.Join(lines, "\n"))
	}
	bl := blacklist.LoadStrings(texts...)
	logger.Log.Infof("🛡️  Blacklist: %d ranges from %d sources", bl.Len(), len(texts))
	return bl
}
