package rename

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"fastnodes/internal/model"
	"fastnodes/internal/xray/parser"
)

func TestLabel(t *testing.T) {
	got := Label("🇩🇪", "Germany", model.VLess, "1.2.3.4:443")
	if want := "🇩🇪 Germany - VLESS - 1.2.3.4:443"; got != want {
		t.Errorf("Label = %q, want %q", got, want)
	}
}

func TestRenameFragment(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"replace", "vless://id@1.2.3.4:443?security=tls#old label", "vless://id@1.2.3.4:443?security=tls#new%20label"},
		{"no fragment", "trojan://pw@h.example.com:443", "trojan://pw@h.example.com:443#new%20label"},
		{"junk in query", "vless://id@1.2.3.4:443?path=/ws[ad]&x=Dynamic-42#a", "vless://id@1.2.3.4:443?path=/ws&x=#new%20label"},
		{"authority kept", "trojan://pw-12345@h.example.com:8443#x", "trojan://pw-12345@h.example.com:8443#new%20label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rename(tt.line, model.Trojan, "new label"); got != tt.want {
				t.Errorf("Rename = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenameVMessJSON(t *testing.T) {
	body := `{"v":"2","ps":"old","add":"1.1.1.1","port":443,"id":"uuid","path":"/a<b>&c","extra":{"nested":[1,2]}}`
	line := "vmess://" + base64.StdEncoding.EncodeToString([]byte(body)) + "#frag"

	first := decode(t, Rename(line, model.VMess, "🇺🇸 United States - VMESS - 1.1.1.1:443"))
	second := decode(t, Rename(line, model.VMess, "another"))

	var ps1, ps2 string
	json.Unmarshal(first["ps"], &ps1)
	json.Unmarshal(second["ps"], &ps2)
	if ps1 != "🇺🇸 United States - VMESS - 1.1.1.1:443" || ps2 != "another" {
		t.Fatalf("ps = %q / %q", ps1, ps2)
	}

	if len(first) != 7 || len(second) != 7 {
		t.Fatalf("property count changed: %d / %d", len(first), len(second))
	}
	for k, v := range first {
		if k == "ps" {
			continue
		}
		if string(v) != string(second[k]) {
			t.Errorf("property %s differs: %s vs %s", k, v, second[k])
		}
	}
	if string(first["path"]) != `"/a<b>&c"` {
		t.Errorf("path = %s", first["path"])
	}
}

func decode(t *testing.T, link string) map[string]json.RawMessage {
	t.Helper()
	if strings.Contains(link, "#") {
		t.Fatalf("vmess json link kept a fragment: %s", link)
	}
	b64 := strings.TrimPrefix(link, "vmess://")
	if strings.ContainsAny(b64, "+/=") {
		t.Fatalf("not url-safe unpadded: %s", b64)
	}
	raw, err := parser.DecodeBase64(b64)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRenameVMessFallback(t *testing.T) {
	line := "vmess://uuid@1.2.3.4:443?type=ws#old"
	if got, want := Rename(line, model.VMess, "x y"), "vmess://uuid@1.2.3.4:443?type=ws#x%20y"; got != want {
		t.Errorf("Rename = %q, want %q", got, want)
	}
	notJSON := "vmess://" + base64.StdEncoding.EncodeToString([]byte(`{"v":"2"}`))
	if got := Rename(notJSON, model.VMess, "z"); !strings.HasSuffix(got, "#z") {
		t.Errorf("Rename = %q", got)
	}
}
