package metrics

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

// Stage names a pipeline counter.
type Stage string

const (
	Fetched          Stage = "fetched"
	FetchErrors      Stage = "fetch errors"
	NumberedSkipped  Stage = "numbered skipped"
	Parsed           Stage = "parsed"
	Unclassifiable   Stage = "unclassifiable"
	Blacklisted      Stage = "blacklisted"
	Duplicates       Stage = "duplicates"
	Accepted         Stage = "accepted"
	ConfigFailures   Stage = "config failures"
	QuickPassed      Stage = "quick passed"
	FullPassed       Stage = "full passed"
	FallbackRankings Stage = "fallback rankings"
)

// reportOrder is the order stages appear in the report.
var reportOrder = []Stage{
	Fetched, FetchErrors, NumberedSkipped, Parsed, Unclassifiable, Blacklisted,
	Duplicates, Accepted, ConfigFailures, QuickPassed, FullPassed, FallbackRankings,
}

// Collector aggregates run counters and probe outcomes. Safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	stages map[Stage]int

	// Latency Tracking (Successes only), keyed by probe phase
	latencies map[string][]time.Duration

	// Error Tracking
	errorCounts map[string]int
	totalErrors int

	// Network Saturation Heuristic
	timeoutErrors int
}

func New() *Collector {
	return &Collector{
		stages:      make(map[Stage]int),
		latencies:   make(map[string][]time.Duration),
		errorCounts: make(map[string]int),
	}
}

// Add increases a stage counter. A nil collector ignores the call.
func (c *Collector) Add(s Stage, n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages[s] += n
}

func (c *Collector) Inc(s Stage) { c.Add(s, 1) }

func (c *Collector) Count(s Stage) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stages[s]
}

func (c *Collector) RecordSuccess(phase string, duration time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latencies[phase] = append(c.latencies[phase], duration)
}

func (c *Collector) RecordFailure(err error) {
	if c == nil || err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalErrors++
	errType := Categorize(err)
	if errType == CategoryTimeout {
		c.timeoutErrors++
	}
	c.errorCounts[errType]++
}

// Failure categories.
const (
	CategoryTimeout = "Timeout (Slow)"
	CategoryRefused = "Conn Refused (Fast)"
	CategoryReset   = "Conn Reset (Fast)"
	CategoryEOF     = "EOF / Empty"
	CategoryDNS     = "DNS Error"
	CategoryUnknown = "Unknown"
)

// Categorize buckets a probe error for the saturation heuristic.
func Categorize(err error) string {
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return CategoryTimeout
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return CategoryTimeout
	case strings.Contains(msg, "refused"):
		return CategoryRefused
	case strings.Contains(msg, "reset"):
		return CategoryReset
	case strings.Contains(msg, "EOF"):
		return CategoryEOF
	case strings.Contains(msg, "no such host"):
		return CategoryDNS
	}
	return CategoryUnknown
}

// Failures returns a copy of the per-category failure counts.
func (c *Collector) Failures() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.errorCounts))
	for k, v := range c.errorCounts {
		out[k] = v
	}
	return out
}

func (c *Collector) PrintReport(out io.Writer, workers int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(out, "\n📊 \033[1mRUN REPORT\033[0m")
	fmt.Fprintln(out, "────────────────────────────────────────")

	// 1. Stage counters
	fmt.Fprintln(w, "\033[1;36m[ PIPELINE ]\033[0m")
	for _, s := range reportOrder {
		fmt.Fprintf(w, "  %s:\t%d\n", s, c.stages[s])
	}
	fmt.Fprintln(w, "")

	// 2. Latency per phase
	phases := make([]string, 0, len(c.latencies))
	for p := range c.latencies {
		phases = append(phases, p)
	}
	sort.Strings(phases)
	for _, phase := range phases {
		lat := c.latencies[phase]
		if len(lat) == 0 {
			continue
		}
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })

		p50 := lat[len(lat)/2]
		p90 := lat[int(float64(len(lat)-1)*0.9)]

		fmt.Fprintf(w, "\033[1;36m[ LATENCY (%s) ]\033[0m\n", phase)
		fmt.Fprintf(w, "  Samples:\t%d\n", len(lat))
		fmt.Fprintf(w, "  Avg Duration:\t%v\n", average(lat).Round(time.Millisecond))
		fmt.Fprintf(w, "  p50 (Median):\t%v\n", p50.Round(time.Millisecond))
		fmt.Fprintf(w, "  p90 (Slowest 10%%):\t%v\n", p90.Round(time.Millisecond))
		fmt.Fprintln(w, "")
	}

	// 3. Network Saturation (The Limit Check)
	fmt.Fprintln(w, "\033[1;36m[ NETWORK HEALTH / ERRORS ]\033[0m")
	fmt.Fprintf(w, "  Total Failures:\t%d\n", c.totalErrors)

	if c.totalErrors > 0 {
		timeoutPct := float64(c.timeoutErrors) / float64(c.totalErrors) * 100
		fmt.Fprintf(w, "  Timeouts (Potential Congestion):\t%d (%.1f%%)\n", c.timeoutErrors, timeoutPct)

		keys := make([]string, 0, len(c.errorCounts))
		for k := range c.errorCounts {
			if k != CategoryTimeout {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s:\t%d\n", k, c.errorCounts[k])
		}

		fmt.Fprintln(w, "  --------------------------------")
		if timeoutPct > 70 {
			fmt.Fprintln(w, "  ⚠️  \033[1;31mHIGH SATURATION DETECTED\033[0m")
			fmt.Fprintln(w, "  >70% of failures are Timeouts. The local network or NAT table")
			fmt.Fprintln(w, "  may be choked, or packets are being dropped silently.")
			fmt.Fprintf(w, "  💡 Recommendation: \033[1mDECREASE workers\033[0m (Current: %d)\n", workers)
		} else {
			fmt.Fprintln(w, "  ✅ Network seems stable (Failures are mostly active rejections).")
		}
	}

	w.Flush()
	fmt.Fprintln(out, "")
}

func average(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return time.Duration(int64(sum) / int64(len(d)))
}
