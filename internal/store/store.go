// Package store holds the accepted candidates of one run.
package store

import (
	"sort"
	"sync"

	"fastnodes/internal/dedup"
	"fastnodes/internal/model"
)

// CandidateStore is insert-only for the length of a run and safe for
// concurrent use.
type CandidateStore struct {
	dedup *dedup.Deduplicator

	mu      sync.RWMutex
	records []*model.ProxyRecord
}

func NewCandidateStore() *CandidateStore {
	return &CandidateStore{dedup: dedup.New()}
}

// TryAdd appends r unless a record with the same DedupKey is already present.
func (s *CandidateStore) TryAdd(r *model.ProxyRecord) bool {
	if !s.dedup.TryAdd(r.DedupKey) {
		return false
	}
	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
	return true
}

// Records returns a snapshot in insertion order.
func (s *CandidateStore) Records() []*model.ProxyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.ProxyRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Testable returns the records that may enter probing.
func (s *CandidateStore) Testable() []*model.ProxyRecord {
	var out []*model.ProxyRecord
	for _, r := range s.Records() {
		if r.Protocol.Testable() {
			out = append(out, r)
		}
	}
	return out
}

// Keys returns every dedup key sorted ascending.
func (s *CandidateStore) Keys() []string {
	recs := s.Records()
	keys := make([]string, len(recs))
	for i, r := range recs {
		keys[i] = r.DedupKey
	}
	sort.Strings(keys)
	return keys
}

func (s *CandidateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
