package metrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStageCounters(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc(Parsed)
			c.Add(Fetched, 3)
		}()
	}
	wg.Wait()

	if got := c.Count(Parsed); got != 10 {
		t.Errorf("Parsed = %d", got)
	}
	if got := c.Count(Fetched); got != 30 {
		t.Errorf("Fetched = %d", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.Inc(Parsed)
	c.RecordSuccess("quick", time.Second)
	c.RecordFailure(errors.New("x"))
	if c.Count(Parsed) != 0 {
		t.Error("nil collector counted")
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, CategoryTimeout},
		{errors.New("dial tcp: i/o timeout"), CategoryTimeout},
		{errors.New("connect: connection refused"), CategoryRefused},
		{errors.New("read: connection reset by peer"), CategoryReset},
		{fmt.Errorf("get: %w", errors.New("unexpected EOF")), CategoryEOF},
		{errors.New("lookup x: no such host"), CategoryDNS},
		{errors.New("status 503"), CategoryUnknown},
	}
	for _, tt := range tests {
		if got := Categorize(tt.err); got != tt.want {
			t.Errorf("Categorize(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPrintReport(t *testing.T) {
	c := New()
	c.Add(Fetched, 42)
	c.RecordSuccess("full", 300*time.Millisecond)
	c.RecordSuccess("full", 500*time.Millisecond)
	for i := 0; i < 8; i++ {
		c.RecordFailure(context.DeadlineExceeded)
	}
	c.RecordFailure(errors.New("connection refused"))

	var buf bytes.Buffer
	c.PrintReport(&buf, 20)
	out := buf.String()

	for _, want := range []string{"fetched:", "42", "LATENCY (full)", "HIGH SATURATION", "Current: 20"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if c.Failures()[CategoryRefused] != 1 {
		t.Errorf("failures = %v", c.Failures())
	}
}
