package publishers

import (
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"fastnodes/internal/config"
	"fastnodes/internal/model"
)

func rec(proto model.Protocol, cc string, i int) *model.ProxyRecord {
	host := fmt.Sprintf("10.0.0.%d", i)
	return &model.ProxyRecord{
		Link:        fmt.Sprintf("%s://x@%s:443#n%d", proto, host, i),
		Protocol:    proto,
		Host:        host,
		Port:        443,
		CountryCode: cc,
		Remark:      fmt.Sprintf("%s-%d", proto, i),
		DedupKey:    fmt.Sprintf("%s:%s:443", proto, host),
	}
}

func testOutput() config.OutputConfig {
	return config.OutputConfig{
		Name:            "FastNodes",
		TopLimits:       []int{2, 50},
		MinCountryGroup: 5,
		MinUnknownGroup: 10,
	}
}

func TestBuildGroupings(t *testing.T) {
	var records []*model.ProxyRecord
	for i := 0; i < 5; i++ {
		records = append(records, rec(model.VLess, "US", i))
	}
	for i := 5; i < 9; i++ {
		records = append(records, rec(model.Trojan, "DE", i))
	}
	records = append(records, rec(model.Unknown, "XX", 9), rec(model.Hysteria2, "XX", 10))

	ranked := []model.ProbeResult{
		{Record: records[3], LatencyMs: 40, Phase: model.PhaseFull},
		{Record: records[0], LatencyMs: 90, Phase: model.PhaseFull},
		{Record: records[6], LatencyMs: 120, Phase: model.PhaseFull},
	}
	groups := BuildGroupings(records, ranked, testOutput())

	sizes := make(map[string]int)
	for _, g := range groups {
		sizes[g.Name] = len(g.Entries)
	}
	want := map[string]int{
		"everything":          11,
		"protocols/vless":     5,
		"protocols/trojan":    4,
		"protocols/hysteria2": 1,
		"countries/US":        5,
		"best/top2":           2,
		"best/top50":          3,
	}
	if len(sizes) != len(want) {
		t.Errorf("groupings = %v, want %v", sizes, want)
	}
	for name, n := range want {
		if sizes[name] != n {
			t.Errorf("%s has %d entries, want %d", name, sizes[name], n)
		}
	}
	if _, ok := sizes["protocols/unknown"]; ok {
		t.Error("unknown grouping below threshold must be skipped")
	}
	if _, ok := sizes["countries/DE"]; ok {
		t.Error("country grouping below threshold must be skipped")
	}

	top, _ := Find(groups, "best/top2")
	text := Text(top)
	wantText := records[3].Link + " # latency=40ms\n" + records[0].Link + " # latency=90ms\n"
	if text != wantText {
		t.Errorf("Text() = %q, want %q", text, wantText)
	}
}

func TestNormalizeProtocol(t *testing.T) {
	tests := map[string]string{
		"hy2": "hysteria2", "Hysteria": "hysteria2", "hysteria2": "hysteria2",
		"": "unknown", "SS": "ss", "shadowsocks": "ss", "vless": "vless",
	}
	for in, want := range tests {
		if got := NormalizeProtocol(in); got != want {
			t.Errorf("NormalizeProtocol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSelect(t *testing.T) {
	groups := []Grouping{{Name: "everything"}, {Name: "protocols/vless"}, {Name: "protocols/ss"}, {Name: "best/top50"}}
	if got := Select(groups, nil); len(got) != 4 {
		t.Errorf("no patterns selected %d", len(got))
	}
	got := Select(groups, []string{"protocols/*", "best/top50"})
	if len(got) != 3 || got[0].Name != "protocols/vless" {
		t.Errorf("Select = %+v", got)
	}
}

func TestNewClashProxy(t *testing.T) {
	vless := rec(model.VLess, "US", 1)
	vless.Engine = &model.VLessConfig{
		Addr: model.Addr{Server: "10.0.0.1", Port: 443},
		Transport: model.Transport{
			Network: "ws", Security: "reality", SNI: "cdn.example.com",
			Host: "cdn.example.com", Path: "/ws", PublicKey: "pbk", ShortID: "ab",
		},
		UUID: "u-1", Flow: "xtls-rprx-vision",
	}
	ss := rec(model.ShadowSocks, "US", 2)
	ss.Engine = &model.ShadowsocksConfig{Addr: model.Addr{Server: "10.0.0.2", Port: 8388}, Cipher: "aes-256-gcm", Password: "pw"}
	bare := rec(model.Tuic, "US", 3)

	tests := []struct {
		name  string
		r     *model.ProxyRecord
		check func(ClashProxy) bool
	}{
		{"vless reality ws", vless, func(p ClashProxy) bool {
			return p.Type == "vless" && p.UUID == "u-1" && p.TLS && p.ServerName == "cdn.example.com" &&
				p.Network == "ws" && p.WSOpts.Headers["Host"] == "cdn.example.com" &&
				p.RealityOpts != nil && p.RealityOpts.PublicKey == "pbk"
		}},
		{"shadowsocks", ss, func(p ClashProxy) bool {
			return p.Type == "ss" && p.Port == 8388 && p.Cipher == "aes-256-gcm" && p.Password == "pw"
		}},
		{"no engine config", bare, func(p ClashProxy) bool {
			return p.Type == "tuic" && p.Server == "10.0.0.3" && p.Port == 443 && p.UUID == "" && p.Password == ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewClashProxy(tt.r)
			if p.Name != tt.r.Remark {
				t.Errorf("name = %q", p.Name)
			}
			if !tt.check(p) {
				t.Errorf("unexpected proxy %+v", p)
			}
		})
	}
}

func TestClashDocument(t *testing.T) {
	g := Grouping{Name: "everything", Title: "FastNodes Everything", Entries: []Entry{
		{Record: rec(model.VLess, "US", 1)}, {Record: rec(model.Trojan, "US", 2)},
	}}
	out, err := Clash(g, map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["name"] != "FastNodes Everything" {
		t.Errorf("name = %v", doc["name"])
	}
	groups := doc["proxy-groups"].([]interface{})
	auto := groups[0].(map[string]interface{})
	if auto["name"] != "AUTO" || auto["type"] != "url-test" || auto["url"] != DefaultHealthURL || auto["interval"] != 300 {
		t.Errorf("group = %v", auto)
	}
	if len(auto["proxies"].([]interface{})) != 2 {
		t.Errorf("group proxies = %v", auto["proxies"])
	}
	if rules := doc["rules"].([]interface{}); len(rules) != 1 || rules[0] != "MATCH,AUTO" {
		t.Errorf("rules = %v", rules)
	}
}

func TestPayload(t *testing.T) {
	g := Grouping{Entries: []Entry{{Record: rec(model.VLess, "US", 1)}}}
	b, err := Payload(g, map[string]interface{}{"base64": true})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "://") {
		t.Errorf("base64 payload leaked plain text: %s", b)
	}
	if _, err := Payload(g, map[string]interface{}{"format": "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}
