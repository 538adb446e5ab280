// Package pipeline turns raw feed lines into deduplicated, geo-tagged and
// relabelled proxy records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"golang.org/x/sync/errgroup"

	"fastnodes/internal/blacklist"
	"fastnodes/internal/classifier"
	"fastnodes/internal/dedup"
	"fastnodes/internal/geoip"
	"fastnodes/internal/logger"
	"fastnodes/internal/metrics"
	"fastnodes/internal/model"
	"fastnodes/internal/rename"
	"fastnodes/internal/store"
	"fastnodes/internal/xray"
	"fastnodes/internal/xray/parser"
)

// validationPort is the inbound port used when checking that a record's
// engine document builds. The real port is assigned at probe time.
const validationPort = 10808

// Resolver tags a host with its country.
type Resolver interface {
	Lookup(ctx context.Context, hostOrIP string) geoip.Result
}

type Pipeline struct {
	blacklist *blacklist.Blacklist
	resolver  Resolver
	metrics   *metrics.Collector
	workers   int
}

// New builds a pipeline. A nil blacklist blocks nothing.
func New(bl *blacklist.Blacklist, resolver Resolver, mc *metrics.Collector, workers int) *Pipeline {
	if bl == nil {
		bl = blacklist.LoadStrings()
	}
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{blacklist: bl, resolver: resolver, metrics: mc, workers: workers}
}

// Process classifies lines concurrently and inserts the survivors in line
// order, so the first occurrence of a key always wins.
func (p *Pipeline) Process(ctx context.Context, lines []Line) (*store.CandidateStore, error) {
	records := make([]*model.ProxyRecord, len(lines))
	errs := make([]error, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, l := range lines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i], errs[i] = p.Build(gctx, l)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cs := store.NewCandidateStore()
	for i, r := range records {
		if err := errs[i]; err != nil {
			p.count(err)
			logger.Log.Debugf("dropped line from %s: %v", lines[i].Source, err)
			continue
		}
		if !cs.TryAdd(r) {
			p.count(ErrDuplicate)
			continue
		}
		p.metrics.Inc(metrics.Accepted)
		if r.Protocol.Testable() && r.Engine == nil {
			p.metrics.Inc(metrics.ConfigFailures)
		}
	}
	logger.Log.Infof("Finished → %d unique (dupes skipped: %d, numbered junk skipped: %d, blacklisted skipped: %d, unclassifiable: %d)",
		cs.Len(), p.metrics.Count(metrics.Duplicates), p.metrics.Count(metrics.NumberedSkipped),
		p.metrics.Count(metrics.Blacklisted), p.metrics.Count(metrics.Unclassifiable))
	return cs, nil
}

func (p *Pipeline) count(err error) {
	switch {
	case errors.Is(err, errNumbered):
		p.metrics.Inc(metrics.NumberedSkipped)
	case errors.Is(err, ErrUnclassifiable):
		p.metrics.Inc(metrics.Unclassifiable)
	case errors.Is(err, ErrBlacklisted):
		p.metrics.Inc(metrics.Blacklisted)
	case errors.Is(err, ErrDuplicate):
		p.metrics.Inc(metrics.Duplicates)
	}
}

// Build turns one line into a record. It does not deduplicate. Engine config
// failures leave Engine nil rather than rejecting the record.
func (p *Pipeline) Build(ctx context.Context, l Line) (*model.ProxyRecord, error) {
	if classifier.IsNumberedDuplicate(l.Text) {
		return nil, errNumbered
	}
	c := classifier.Classify(l.Text)
	if c.Host == "" {
		return nil, ErrUnclassifiable
	}
	p.metrics.Inc(metrics.Parsed)

	res := p.resolver.Lookup(ctx, c.Host)
	if ip := blacklistTarget(c.Host, res); ip != "" && p.blacklist.IsBlocked(ip) {
		return nil, fmt.Errorf("%w: %s", ErrBlacklisted, ip)
	}

	country := res.Country
	if country.Code == "" || country.Code == geoip.UnknownCode {
		if guess, ok := geoip.GuessCountry(c.Host); ok {
			country = guess
		} else {
			country = geoip.Unknown
		}
	}

	r := &model.ProxyRecord{
		RawLine:     l.Text,
		Protocol:    c.Protocol,
		Host:        c.Host,
		Port:        c.Port,
		CountryCode: country.Code,
		CountryName: country.Name,
		Source:      l.Source,
	}
	r.Remark = rename.Label(geoip.Flag(country.Code), country.Name, c.Protocol, r.Endpoint())
	r.Link = rename.Rename(l.Text, c.Protocol, r.Remark)
	r.DedupKey = dedup.Key(c.Protocol, c.Host, c.Port, r.Remark)

	if c.Protocol.Testable() {
		cfg, err := EngineConfig(l.Text)
		if err != nil {
			logger.Log.Debugf("%s: %v", r.Endpoint(), err)
		} else {
			r.Engine = cfg
		}
	}
	return r, nil
}

// blacklistTarget picks the address checked against the blacklist: the
// literal IP, else the first resolved one. Unresolved hosts are not checked.
func blacklistTarget(host string, res geoip.Result) string {
	if _, err := netip.ParseAddr(host); err == nil {
		return host
	}
	if res.IP != nil {
		return res.IP.String()
	}
	return ""
}

// EngineConfig parses raw into an engine config and checks that the engine
// accepts it.
func EngineConfig(raw string) (model.EngineConfig, error) {
	prof, err := parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigGeneration, err)
	}
	cfg, err := prof.EngineConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigGeneration, err)
	}
	if _, err := xray.Prepare(cfg, validationPort); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigGeneration, err)
	}
	return cfg, nil
}
