package tester

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fastnodes/internal/config"
	"fastnodes/internal/logger"
	"fastnodes/internal/metrics"
	"fastnodes/internal/model"
	"fastnodes/internal/xray"
)

// TunnelProbe measures latency through a proxy engine started for the
// candidate. Every engine is closed before the probe returns.
type TunnelProbe struct {
	Engine xray.Engine
	Ports  *PortAllocator
	URLs   []string

	Warmup         time.Duration
	RequestTimeout time.Duration
	Timeout        time.Duration

	Metrics *metrics.Collector
}

func NewTunnelProbe(cfg config.TesterConfig, engine xray.Engine, ports *PortAllocator, mc *metrics.Collector) *TunnelProbe {
	return &TunnelProbe{
		Engine:         engine,
		Ports:          ports,
		URLs:           cfg.CheckURLs,
		Warmup:         cfg.Warmup,
		RequestTimeout: cfg.RequestTimeout,
		Timeout:        cfg.FullTimeout,
		Metrics:        mc,
	}
}

// IsAlive reports whether any check endpoint answers through the tunnel.
func (t *TunnelProbe) IsAlive(ctx context.Context, r *model.ProxyRecord) bool {
	err := t.withTunnel(ctx, r, func(ctx context.Context, c *http.Client) error {
		return t.alive(ctx, c)
	})
	return err == nil
}

// Probe checks liveness, then averages the endpoints that answer. It returns
// -1 with an error on any failure.
func (t *TunnelProbe) Probe(ctx context.Context, r *model.ProxyRecord) (int32, error) {
	var latency time.Duration
	err := t.withTunnel(ctx, r, func(ctx context.Context, c *http.Client) error {
		if err := t.alive(ctx, c); err != nil {
			return err
		}
		d, err := t.latency(ctx, c)
		latency = d
		return err
	})
	if err != nil {
		t.Metrics.RecordFailure(err)
		logger.Log.Debugf("full probe %s: %v", r.Endpoint(), err)
		return -1, err
	}
	t.Metrics.RecordSuccess(model.PhaseFull.String(), latency)
	return millis(latency), nil
}

func (t *TunnelProbe) withTunnel(ctx context.Context, r *model.ProxyRecord, fn func(context.Context, *http.Client) error) error {
	if r.Engine == nil {
		return fmt.Errorf("%w: %s has no engine config", ErrEngineStart, r.Endpoint())
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	port := t.Ports.Next()
	doc, err := xray.Prepare(r.Engine, port)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineStart, err)
	}
	inst, err := t.Engine.Start(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineStart, err)
	}
	defer inst.Close()

	if t.Warmup > 0 {
		timer := time.NewTimer(t.Warmup)
		select {
		case <-ctx.Done():
			timer.Stop()
			return classify(ctx, ctx.Err())
		case <-timer.C:
		}
	}

	client, err := NewSOCKSClient(port, t.RequestTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEngineStart, err)
	}
	return fn(ctx, client)
}

// alive stops at the first endpoint that answers.
func (t *TunnelProbe) alive(ctx context.Context, c *http.Client) error {
	var lastErr error
	for _, u := range t.URLs {
		_, err := roundTrip(ctx, c, http.MethodGet, u, t.RequestTimeout)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no check urls")
	}
	return classify(ctx, lastErr)
}

func (t *TunnelProbe) latency(ctx context.Context, c *http.Client) (time.Duration, error) {
	var (
		total   time.Duration
		ok      int
		lastErr error
	)
	for _, u := range t.URLs {
		d, err := roundTrip(ctx, c, http.MethodGet, u, t.RequestTimeout)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		total += d
		ok++
	}
	if ok == 0 {
		return 0, classify(ctx, lastErr)
	}
	return total / time.Duration(ok), nil
}
