package tester

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fastnodes/internal/config"
	"fastnodes/internal/metrics"
	"fastnodes/internal/model"
)

// QuickProbe estimates path quality with direct requests to well-known
// connectivity endpoints. It never routes through the candidate.
type QuickProbe struct {
	URLs         []string
	Method       string
	Timeout      time.Duration
	MinSuccesses int

	Client  *http.Client
	Limiter *rate.Limiter
	Metrics *metrics.Collector
}

func NewQuickProbe(cfg config.TesterConfig, mc *metrics.Collector) *QuickProbe {
	q := &QuickProbe{
		URLs:         cfg.CheckURLs,
		Method:       strings.ToUpper(cfg.QuickMethod),
		Timeout:      cfg.QuickTimeout,
		MinSuccesses: cfg.MinQuickSuccesses,
		Client:       DirectClient(cfg.QuickTimeout),
		Metrics:      mc,
	}
	if cfg.QuickRate > 0 {
		q.Limiter = rate.NewLimiter(rate.Limit(cfg.QuickRate), 1)
	}
	return q
}

// Probe returns the mean round trip over the endpoints that answered. Fewer
// than MinSuccesses answers is a failure and yields -1.
func (q *QuickProbe) Probe(ctx context.Context, r *model.ProxyRecord) (int32, error) {
	method := q.Method
	if method == "" {
		method = http.MethodGet
	}
	minOK := q.MinSuccesses
	if minOK < 1 {
		minOK = 1
	}

	var (
		total   time.Duration
		ok      int
		lastErr error
	)
	for _, u := range q.URLs {
		if q.Limiter != nil {
			if err := q.Limiter.Wait(ctx); err != nil {
				return -1, classify(ctx, err)
			}
		}
		d, err := roundTrip(ctx, q.Client, method, u, q.Timeout)
		if err != nil {
			lastErr = err
			q.Metrics.RecordFailure(err)
			continue
		}
		total += d
		ok++
	}

	if ok < minOK {
		if lastErr == nil {
			lastErr = fmt.Errorf("%d of %d endpoints answered", ok, len(q.URLs))
		}
		return -1, classify(ctx, lastErr)
	}
	mean := total / time.Duration(ok)
	q.Metrics.RecordSuccess(model.PhaseQuick.String(), mean)
	return millis(mean), nil
}
