package collectors

import (
	"encoding/base64"
	"reflect"
	"testing"
)

func TestSplitLines(t *testing.T) {
	plain := "vless://a@1.2.3.4:443#x\r\n\n  trojan://b@h.example.com:443  \r"
	blob := base64.StdEncoding.EncodeToString([]byte(plain))
	urlSafe := base64.RawURLEncoding.EncodeToString([]byte(plain))
	want := []string{"vless://a@1.2.3.4:443#x", "trojan://b@h.example.com:443"}

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"plain", plain, want},
		{"base64", blob, want},
		{"base64 wrapped", blob[:20] + "\n" + blob[20:] + "\n", want},
		{"url safe unpadded", urlSafe, want},
		{"empty", "  \n\r\n", nil},
		{"not base64", "hello world, not a blob!", []string{"hello world, not a blob!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLines(tt.body)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitLines() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestForLocation(t *testing.T) {
	tests := []struct {
		loc, typ, key string
	}{
		{"https://example.com/list.txt", "http", "url"},
		{"HTTP://example.com/x", "http", "url"},
		{"/etc/fastnodes/cidr.txt", "file", "path"},
		{"cidr.txt", "file", "path"},
	}
	for _, tt := range tests {
		typ, params := ForLocation(tt.loc)
		if typ != tt.typ || params[tt.key] != tt.loc {
			t.Errorf("ForLocation(%q) = %s %v", tt.loc, typ, params)
		}
	}
}

func TestStringParam(t *testing.T) {
	if _, err := StringParam(map[string]interface{}{}, "url"); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := StringParam(map[string]interface{}{"url": 3}, "url"); err == nil {
		t.Error("expected error for non-string value")
	}
	if v, err := StringParam(map[string]interface{}{"url": "x"}, "url"); err != nil || v != "x" {
		t.Errorf("got %q, %v", v, err)
	}
}
