package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fastnodes/internal/logger"
	"fastnodes/internal/metrics"
	"fastnodes/internal/model"
)

// Prober measures one candidate. It returns -1 and an error on failure.
type Prober interface {
	Probe(ctx context.Context, r *model.ProxyRecord) (int32, error)
}

// State is the ranking engine's lifecycle position.
type State int

const (
	Idle State = iota
	QuickFiltering
	ShortlistSelected
	FullTesting
	Ranked
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case QuickFiltering:
		return "quick-filtering"
	case ShortlistSelected:
		return "shortlist-selected"
	case FullTesting:
		return "full-testing"
	case Ranked:
		return "ranked"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Options struct {
	Workers       int
	ShortlistSize int
	Target        int
	// Zero thresholds accept any positive latency.
	QuickThreshold time.Duration
	FullThreshold  time.Duration
}

// Hooks receive progress notifications. Both fields are optional and may be
// called from several goroutines.
type Hooks struct {
	PhaseStarted func(phase model.Phase, total int)
	Probed       func(phase model.Phase)
}

// Ranking is the outcome of one run.
type Ranking struct {
	// Results is the final order: full successes, or the quick ranking when
	// Fallback is set.
	Results []model.ProbeResult
	Quick   []model.ProbeResult
	Full    []model.ProbeResult
	// FullFailed lists shortlisted candidates whose tunnel probe failed.
	FullFailed   []*model.ProxyRecord
	FullAttempts int
	Fallback     bool
}

// TopN returns the first n results, or all of them when fewer exist.
func (r *Ranking) TopN(n int) []model.ProbeResult {
	if n < 0 || n > len(r.Results) {
		n = len(r.Results)
	}
	return r.Results[:n]
}

// RankingEngine runs quick filtering, shortlisting and tunnel testing.
type RankingEngine struct {
	quick   Prober
	full    Prober
	opts    Options
	metrics *metrics.Collector
	hooks   Hooks

	mu    sync.Mutex
	state State
}

func NewRankingEngine(quick, full Prober, opts Options, mc *metrics.Collector, hooks Hooks) *RankingEngine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Target < 1 || opts.Target > opts.ShortlistSize {
		opts.Target = opts.ShortlistSize
	}
	return &RankingEngine{quick: quick, full: full, opts: opts, metrics: mc, hooks: hooks}
}

func (e *RankingEngine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *RankingEngine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	logger.Log.Debugf("ranking: %s", s)
}

// Rank probes the testable records and returns them ordered by latency.
// Unknown records are skipped. Only cancellation of ctx is an error.
func (e *RankingEngine) Rank(ctx context.Context, records []*model.ProxyRecord) (*Ranking, error) {
	var candidates []*model.ProxyRecord
	for _, r := range records {
		if r.Protocol.Testable() {
			candidates = append(candidates, r)
		}
	}

	e.setState(QuickFiltering)
	quick, err := e.quickPhase(ctx, candidates)
	if err != nil {
		return nil, err
	}
	e.metrics.Add(metrics.QuickPassed, len(quick))
	logger.Log.Infof("⚡ Quick filter: %d/%d candidates under threshold", len(quick), len(candidates))

	shortlist := e.selectShortlist(quick)
	e.setState(ShortlistSelected)
	logger.Log.Infof("📋 Shortlist: %d candidates for tunnel testing", len(shortlist))

	e.setState(FullTesting)
	rk, err := e.fullPhase(ctx, shortlist)
	if err != nil {
		return nil, err
	}
	rk.Quick = quick
	e.metrics.Add(metrics.FullPassed, len(rk.Full))

	SortByLatency(rk.Full)
	rk.Results = rk.Full
	if len(rk.Full) == 0 && len(quick) > 0 {
		rk.Fallback = true
		rk.Results = quick
		e.metrics.Inc(metrics.FallbackRankings)
		logger.Log.Warnf("⚠️  Tunnel testing produced no successes. Falling back to quick ranking (%d candidates).", len(quick))
	}
	e.setState(Ranked)
	return rk, nil
}

func (e *RankingEngine) quickPhase(ctx context.Context, candidates []*model.ProxyRecord) ([]model.ProbeResult, error) {
	e.phaseStarted(model.PhaseQuick, len(candidates))

	var (
		mu      sync.Mutex
		results []model.ProbeResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, r := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer e.probed(model.PhaseQuick)
			ms, err := e.quick.Probe(gctx, r)
			if err != nil || !within(ms, e.opts.QuickThreshold) {
				return nil
			}
			mu.Lock()
			results = append(results, model.ProbeResult{Record: r, LatencyMs: ms, Phase: model.PhaseQuick})
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	SortByLatency(results)
	return results, nil
}

// selectShortlist keeps the fastest tunnelable quick survivors.
func (e *RankingEngine) selectShortlist(quick []model.ProbeResult) []*model.ProxyRecord {
	sl := NewShortlist(e.opts.ShortlistSize)
	for _, q := range quick {
		if !q.Record.Tunnelable() {
			continue
		}
		sl.Offer(q)
	}
	kept := sl.Results()
	out := make([]*model.ProxyRecord, len(kept))
	for i, q := range kept {
		out[i] = q.Record
	}
	return out
}

// fullPhase admits shortlisted candidates until Target successes are in.
// In-flight probes finish normally once the target is met.
func (e *RankingEngine) fullPhase(ctx context.Context, shortlist []*model.ProxyRecord) (*Ranking, error) {
	e.phaseStarted(model.PhaseFull, len(shortlist))

	var (
		mu       sync.Mutex
		rk       = &Ranking{}
		accepted int
	)
	reached := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return accepted >= e.opts.Target
	}

	var g errgroup.Group
	slots := make(chan struct{}, e.opts.Workers)

admit:
	for _, r := range shortlist {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			break admit
		}
		if reached() {
			<-slots
			break
		}
		rk.FullAttempts++
		g.Go(func() error {
			defer func() { <-slots }()
			defer e.probed(model.PhaseFull)

			ms, err := e.full.Probe(ctx, r)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || !within(ms, e.opts.FullThreshold) {
				rk.FullFailed = append(rk.FullFailed, r)
				return nil
			}
			if accepted < e.opts.Target {
				accepted++
				rk.Full = append(rk.Full, model.ProbeResult{Record: r, LatencyMs: ms, Phase: model.PhaseFull})
			}
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rk, nil
}

func within(ms int32, threshold time.Duration) bool {
	if ms <= 0 {
		return false
	}
	return threshold <= 0 || time.Duration(ms)*time.Millisecond < threshold
}

func (e *RankingEngine) phaseStarted(p model.Phase, total int) {
	if e.hooks.PhaseStarted != nil {
		e.hooks.PhaseStarted(p, total)
	}
}

func (e *RankingEngine) probed(p model.Phase) {
	if e.hooks.Probed != nil {
		e.hooks.Probed(p)
	}
}
