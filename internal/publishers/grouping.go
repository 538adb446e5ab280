package publishers

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"fastnodes/internal/config"
	"fastnodes/internal/geoip"
	"fastnodes/internal/model"
)

// Entry is one record in a grouping. LatencyMs is zero for unranked groupings.
type Entry struct {
	Record    *model.ProxyRecord
	LatencyMs int32
}

// Grouping is a named subset of records. Name doubles as a relative output
// path ("everything", "protocols/vless", "countries/US", "best/top50").
type Grouping struct {
	Name  string
	Title string
	// Ranked groupings annotate each link with its latency.
	Ranked  bool
	Entries []Entry
}

// NormalizeProtocol folds protocol aliases onto one grouping key.
func NormalizeProtocol(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	switch {
	case p == "":
		return string(model.Unknown)
	case strings.Contains(p, "hysteria"), p == "hy2", p == "hy":
		return string(model.Hysteria2)
	case p == "shadowsocks":
		return string(model.ShadowSocks)
	case p == "socks5":
		return string(model.Socks)
	}
	return p
}

// BuildGroupings derives every output grouping from the accepted records and
// the final ranking. Record order is preserved inside each grouping.
func BuildGroupings(records []*model.ProxyRecord, ranked []model.ProbeResult, out config.OutputConfig) []Grouping {
	name := out.Name
	var groups []Grouping

	all := entries(records)
	groups = append(groups, Grouping{Name: "everything", Title: name + " Everything", Entries: all})

	byProto := make(map[string][]Entry)
	byCountry := make(map[string][]Entry)
	for _, e := range all {
		p := NormalizeProtocol(string(e.Record.Protocol))
		byProto[p] = append(byProto[p], e)
		if cc := e.Record.CountryCode; cc != "" && cc != geoip.UnknownCode {
			byCountry[cc] = append(byCountry[cc], e)
		}
	}

	for _, p := range sortedKeys(byProto) {
		if p == string(model.Unknown) && len(byProto[p]) < out.MinUnknownGroup {
			continue
		}
		groups = append(groups, Grouping{
			Name:    path.Join("protocols", safeName(p)),
			Title:   fmt.Sprintf("%s %s", name, strings.ToUpper(p)),
			Entries: byProto[p],
		})
	}
	for _, cc := range sortedKeys(byCountry) {
		if len(byCountry[cc]) < out.MinCountryGroup {
			continue
		}
		groups = append(groups, Grouping{
			Name:    path.Join("countries", safeName(cc)),
			Title:   fmt.Sprintf("%s %s", name, cc),
			Entries: byCountry[cc],
		})
	}

	for _, limit := range out.TopLimits {
		n := min(limit, len(ranked))
		top := make([]Entry, n)
		for i, res := range ranked[:n] {
			top[i] = Entry{Record: res.Record, LatencyMs: res.LatencyMs}
		}
		groups = append(groups, Grouping{
			Name:    fmt.Sprintf("best/top%d", limit),
			Title:   fmt.Sprintf("%s Top %d", name, limit),
			Ranked:  true,
			Entries: top,
		})
	}
	return groups
}

// Select keeps groupings matching any pattern. Patterns are path globs over
// the grouping name ("everything", "protocols/*", "best/top50"). No patterns
// keeps everything.
func Select(groups []Grouping, patterns []string) []Grouping {
	if len(patterns) == 0 {
		return groups
	}
	var out []Grouping
	for _, g := range groups {
		for _, p := range patterns {
			if ok, _ := path.Match(p, g.Name); ok {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

func entries(records []*model.ProxyRecord) []Entry {
	out := make([]Entry, len(records))
	for i, r := range records {
		out[i] = Entry{Record: r}
	}
	return out
}

func sortedKeys(m map[string][]Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// safeName keeps [a-zA-Z0-9-] and maps everything else to '-'.
func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, s)
}
