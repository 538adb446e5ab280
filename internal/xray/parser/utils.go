package parser

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// DecodeBase64 decodes standard or URL-safe base64. '-' and '_' are mapped to
// '+' and '/', whitespace is dropped and padding is restored before decoding.
func DecodeBase64(s string) (string, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '-':
			return '+'
		case '_':
			return '/'
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "", nil
	}
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FixIllegalUrl cleans up common issues in scraped links.
func FixIllegalUrl(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

// SplitFragment returns the link before the first '#' and the text after it.
func SplitFragment(s string) (string, string) {
	base, frag, _ := strings.Cut(s, "#")
	return base, frag
}

// userInfo returns the unescaped userinfo of u as "user" or "user:pass".
func userInfo(u *url.URL) string {
	if u.User == nil {
		return ""
	}
	name := u.User.Username()
	if pass, ok := u.User.Password(); ok {
		return name + ":" + pass
	}
	return name
}

// ParseQueryParam extracts standard transport/security params from query values.
// This mimics the `getItemFormQuery` logic in v2rayNG.
func ParseQueryParam(p *Profile, q url.Values) {
	if v := q.Get("type"); v != "" {
		p.Network = v
	}
	if v := q.Get("headerType"); v != "" {
		p.HeaderType = v
	}
	if v := q.Get("host"); v != "" {
		p.Host = v
	}
	if v := q.Get("path"); v != "" {
		p.Path = v
	}
	if v := q.Get("seed"); v != "" {
		p.Seed = v
	}
	if v := q.Get("mode"); v != "" {
		p.Mode = v
	}
	if v := q.Get("serviceName"); v != "" {
		p.ServiceName = v
	}
	if v := q.Get("security"); v != "" {
		p.Security = v
	}
	if v := q.Get("sni"); v != "" {
		p.SNI = v
	} else if v := q.Get("peer"); v != "" {
		p.SNI = v
	}
	if v := q.Get("fp"); v != "" {
		p.Fingerprint = v
	}
	if v := q.Get("alpn"); v != "" {
		p.ALPN = strings.Split(v, ",")
	}
	if v := q.Get("pbk"); v != "" {
		p.Pbk = v
	}
	if v := q.Get("sid"); v != "" {
		p.Sid = v
	}
	if v := q.Get("spx"); v != "" {
		p.SpiderX = v
	}
	if v := q.Get("flow"); v != "" {
		p.Flow = v
	}

	// Insecure mapping (1/0/true/false)
	for _, key := range []string{"allowInsecure", "insecure", "allow_insecure"} {
		if val := q.Get(key); val != "" {
			p.Insecure = val == "1" || val == "true"
			break
		}
	}
}
