// Package dedup computes record identity keys and enforces one record per key.
package dedup

import (
	"strconv"
	"strings"
	"sync"
	"unicode"

	"fastnodes/internal/model"
)

// Key builds "protocol:host:port#remark" with whitespace removed from the
// remark and the whole key lower-cased.
func Key(proto model.Protocol, host string, port uint16, remark string) string {
	var b strings.Builder
	b.WriteString(string(proto))
	b.WriteByte(':')
	b.WriteString(host)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(int(port)))
	b.WriteByte('#')
	b.WriteString(NormalizeRemark(remark))
	return strings.ToLower(b.String())
}

// NormalizeRemark drops every whitespace rune and lower-cases the rest.
func NormalizeRemark(remark string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, remark))
}

// Deduplicator remembers keys for the length of a run. Safe for concurrent use.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func New() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// TryAdd records key and reports whether it was new. The first caller wins.
func (d *Deduplicator) TryAdd(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
