package classifier

import (
	"encoding/base64"
	"testing"

	"fastnodes/internal/model"
)

func vmessLine(body, frag string) string {
	s := "vmess://" + base64.StdEncoding.EncodeToString([]byte(body))
	if frag != "" {
		s += "#" + frag
	}
	return s
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Classification
	}{
		{
			"vless uri",
			"vless://uuid@1.2.3.4:443?flow=xtls#label",
			Classification{model.VLess, "1.2.3.4", 443, "label"},
		},
		{
			"percent-decoded remark",
			"trojan://pass@node.example.com:8443#%E2%9C%85%20fast",
			Classification{model.Trojan, "node.example.com", 8443, "✅ fast"},
		},
		{
			"hy2 scheme",
			"hy2://secret@5.5.5.5:443?sni=x.example#h",
			Classification{model.Hysteria2, "5.5.5.5", 443, "h"},
		},
		{
			"ipv6 host",
			"vless://uuid@[2001:db8::1]:2053?security=tls#six",
			Classification{model.VLess, "2001:db8::1", 2053, "six"},
		},
		{
			"legacy ss",
			"ss://" + base64.StdEncoding.EncodeToString([]byte("aes-256-gcm:pw@9.8.7.6:8388")) + "#old",
			Classification{model.ShadowSocks, "9.8.7.6", 8388, "old"},
		},
		{
			"vmess json",
			vmessLine(`{"add":"8.8.4.4","port":"2096","ps":"json remark","id":"x"}`, ""),
			Classification{model.VMess, "8.8.4.4", 2096, "json remark"},
		},
		{
			"vmess json numeric port",
			vmessLine(`{"add":"vm.example.net","port":443,"id":"x"}`, "frag"),
			Classification{model.VMess, "vm.example.net", 443, ""},
		},
		{
			"heuristic marker",
			"server 10.20.30.40:9000 pbk=abc sid=12 #relay",
			Classification{model.VLess, "10.20.30.40", 9000, "relay"},
		},
		{
			"heuristic vmess marker",
			"host=edge.example.org:9001&scy=auto&aid=0",
			Classification{model.VMess, "edge.example.org", 9001, ""},
		},
		{
			"heuristic port family",
			"some relay at 7.7.7.7:8080 unspecified",
			Classification{model.ShadowSocks, "7.7.7.7", 8080, ""},
		},
		{
			"heuristic socks port",
			"proxy list entry 6.6.6.6:1080",
			Classification{model.Socks, "6.6.6.6", 1080, ""},
		},
		{
			"heuristic embedded scheme",
			"copy this: trojan://p@198.51.100.7:443",
			Classification{model.Trojan, "198.51.100.7", 443, ""},
		},
		{
			"heuristic default port stays unknown",
			"a bare hostname mirror.example.com only",
			Classification{model.Unknown, "mirror.example.com", 443, ""},
		},
		{
			"nothing",
			"this line has no endpoint at all in it",
			Classification{Protocol: model.Unknown},
		},
		{
			"short",
			"ss://a@1.1.1.1:80",
			Classification{Protocol: model.Unknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.line); got != tt.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestShortLinesNeverClassify(t *testing.T) {
	for _, line := range []string{"", "vless://a@b.cc:1", "1.2.3.4:443", "               x"} {
		got := Classify(line)
		if got.Protocol != model.Unknown || got.Host != "" || got.Port != 0 {
			t.Errorf("Classify(%q) = %+v", line, got)
		}
	}
}

func TestStrategiesIndependently(t *testing.T) {
	jsonLine := vmessLine(`{"add":"1.1.1.1","port":"443"}`, "")
	if _, ok := FromURI(jsonLine); ok {
		t.Error("FromURI accepted a base64 vmess body")
	}
	if _, ok := FromVMessJSON(jsonLine); !ok {
		t.Error("FromVMessJSON rejected a valid body")
	}
	if _, ok := FromVMessJSON(vmessLine(`{"v":"2","id":"x"}`, "")); ok {
		t.Error("FromVMessJSON accepted a body without add/port")
	}
	if _, ok := FromVMessJSON("vless://uuid@1.2.3.4:443"); ok {
		t.Error("FromVMessJSON accepted a non-vmess line")
	}
	if _, ok := FromURI("vless://uuid@1.2.3.4:70000#x"); ok {
		t.Error("FromURI accepted an out of range port")
	}
	if _, ok := FromHeuristics("nothing here"); ok {
		t.Error("FromHeuristics matched plain words")
	}
}

func TestIsNumberedDuplicate(t *testing.T) {
	tests := map[string]bool{
		"vless://a@1.2.3.4:443#name (12)": true,
		"vless://a@1.2.3.4:443#name(3)  ": true,
		"vless://a@1.2.3.4:443#name":      false,
		"vless://a@1.2.3.4:443#(x)":       false,
	}
	for line, want := range tests {
		if got := IsNumberedDuplicate(line); got != want {
			t.Errorf("IsNumberedDuplicate(%q) = %v", line, got)
		}
	}
}

func TestValidHost(t *testing.T) {
	tests := map[string]bool{
		"1.2.3.4":            true,
		"::1":                true,
		"example.com":        true,
		"a-b.c-d.example.io": true,
		"localhost":          false,
		"-bad.example.com":   false,
		"eyJhZGQiOiIxIn0":    false,
		"":                   false,
	}
	for host, want := range tests {
		if got := ValidHost(host); got != want {
			t.Errorf("ValidHost(%q) = %v", host, got)
		}
	}
}
