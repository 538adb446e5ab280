package engine

import (
	"container/heap"
	"sort"

	"fastnodes/internal/model"
)

// resultHeap is a max-heap on latency: the root is the slowest kept result.
type resultHeap []model.ProbeResult

func (h resultHeap) Len() int { return len(h) }

// Less inverts the order so index 0 holds the worst entry.
func (h resultHeap) Less(i, j int) bool { return faster(h[j], h[i]) }

func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(model.ProbeResult)) }

func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Shortlist keeps the Capacity fastest results offered to it.
type Shortlist struct {
	Capacity int
	h        resultHeap
}

func NewShortlist(capacity int) *Shortlist {
	s := &Shortlist{Capacity: capacity, h: make(resultHeap, 0, capacity)}
	heap.Init(&s.h)
	return s
}

// Offer returns true if r was kept, possibly evicting the slowest entry.
func (s *Shortlist) Offer(r model.ProbeResult) bool {
	if s.Capacity <= 0 {
		return false
	}

	// 1. Not full -> Add it
	if s.h.Len() < s.Capacity {
		heap.Push(&s.h, r)
		return true
	}

	// 2. Full -> Compare with Worst (Root)
	if faster(r, s.h[0]) {
		heap.Pop(&s.h)
		heap.Push(&s.h, r)
		return true
	}
	return false
}

// Results returns the kept results, fastest first.
func (s *Shortlist) Results() []model.ProbeResult {
	out := make([]model.ProbeResult, len(s.h))
	copy(out, s.h)
	SortByLatency(out)
	return out
}

func (s *Shortlist) Len() int { return s.h.Len() }

// faster orders by latency, then by dedup key so equal latencies sort the
// same way on every run.
func faster(a, b model.ProbeResult) bool {
	if a.LatencyMs != b.LatencyMs {
		return a.LatencyMs < b.LatencyMs
	}
	return a.Record.DedupKey < b.Record.DedupKey
}

// SortByLatency orders results ascending by latency.
func SortByLatency(rs []model.ProbeResult) {
	sort.Slice(rs, func(i, j int) bool { return faster(rs[i], rs[j]) })
}
