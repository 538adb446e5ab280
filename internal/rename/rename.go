// Package rename rewrites the display label embedded in a proxy link.
package rename

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"fastnodes/internal/classifier"
	"fastnodes/internal/model"
	"fastnodes/internal/xray/parser"
)

var junkRe = regexp.MustCompile(`(?im)\[.*?\]|\(.*?\)|Dynamic-\d+|-\d{4,}|ok\d{5,}|sg\.ok|mgjhju|fvb|7no|10o|ccwu\.cc|indevs\.in|zem\.in|bffv|fbvb|mghjju|ggff|ffffvbbgh|mmmv\.kr|yhjt\.tc1|ns\.cloudflare\.com|\d{4,}$|\s*:\d+$`)

// Label builds the canonical display label "{flag} {country} - {PROTO} - {endpoint}".
func Label(flag, countryName string, proto model.Protocol, endpoint string) string {
	return fmt.Sprintf("%s %s - %s - %s", flag, countryName, proto.Label(), endpoint)
}

// Rename returns line with its label replaced by label. VMess links carrying a
// base64 JSON body get the "ps" property rewritten instead; any failure there
// falls back to replacing the fragment.
func Rename(line string, proto model.Protocol, label string) string {
	base, _ := parser.SplitFragment(strings.TrimSpace(line))
	base = strings.TrimRight(base, " \t")

	if proto == model.VMess {
		if renamed, ok := renameVMess(base, label); ok {
			return renamed
		}
		// Opaque base64 bodies are left untouched.
		if !strings.Contains(base, "@") {
			return base + "#" + url.PathEscape(label)
		}
	}
	return StripJunk(base) + "#" + url.PathEscape(label)
}

// StripJunk removes operator markers and numeric noise from the part of a
// link after its authority. Scheme, credentials, host and port are kept.
func StripJunk(base string) string {
	i := strings.Index(base, "://")
	if i < 0 {
		return strings.TrimSpace(junkRe.ReplaceAllString(base, ""))
	}
	rest := base[i+3:]
	j := strings.IndexAny(rest, "/?")
	if j < 0 {
		return base
	}
	head := base[:i+3+j]
	return head + strings.TrimSpace(junkRe.ReplaceAllString(rest[j:], ""))
}

func renameVMess(base, label string) (string, bool) {
	if len(base) < len("vmess://") || !strings.EqualFold(base[:len("vmess://")], "vmess://") {
		return "", false
	}
	fields, ok := classifier.DecodeVMessJSON(strings.TrimSpace(base[len("vmess://"):]))
	if !ok {
		return "", false
	}

	ps, err := marshal(label)
	if err != nil {
		return "", false
	}
	fields["ps"] = ps

	body, err := marshal(fields)
	if err != nil {
		return "", false
	}
	return "vmess://" + base64.RawURLEncoding.EncodeToString(body), true
}

// marshal encodes v without HTML escaping so labels and raw properties keep
// their characters.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
