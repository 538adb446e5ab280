package parser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	obfsHostRe = regexp.MustCompile(`obfs-host=([^;]+)`)
	obfsPathRe = regexp.MustCompile(`path=([^;]+)`)
)

// Parse turns a full proxy link into a Profile.
func Parse(raw string) (*Profile, error) {
	raw = FixIllegalUrl(raw)
	parts := strings.SplitN(raw, "://", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid uri format")
	}

	scheme := strings.ToLower(parts[0])
	switch scheme {
	case "vmess":
		return parseVMess(raw)
	case "vless":
		return parseGeneric(raw, "vless")
	case "trojan":
		return parseTrojan(raw)
	case "ss", "shadowsocks":
		return parseShadowsocks(raw)
	case "socks", "socks5":
		return parseSocks(raw, "socks")
	case "http", "https":
		p, err := parseSocks(raw, "http")
		if err == nil && scheme == "https" {
			p.Security = "tls"
		}
		return p, err
	case "hysteria2", "hy2":
		return parseHysteria2(raw)
	case "tuic":
		return parseTUIC(raw)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", scheme)
	}
}

// --- VMess ---
type vmessJSON struct {
	V    interface{} `json:"v"`
	Ps   string      `json:"ps"`
	Add  string      `json:"add"`
	Port interface{} `json:"port"`
	Id   string      `json:"id"`
	Aid  interface{} `json:"aid"`
	Scy  string      `json:"scy"`
	Net  string      `json:"net"`
	Type string      `json:"type"`
	Host string      `json:"host"`
	Path string      `json:"path"`
	Tls  string      `json:"tls"`
	Sni  string      `json:"sni"`
	Alpn string      `json:"alpn"`
	Fp   string      `json:"fp"`
}

func parseVMess(raw string) (*Profile, error) {
	body, _ := SplitFragment(raw[len("vmess://"):])

	// Standard VMess URI (vmess://uuid@host:port?...)
	if strings.Contains(body, "@") {
		p, err := parseGeneric(raw, "vmess")
		if err != nil {
			return nil, err
		}
		p.Method = "auto"
		return p, nil
	}

	// Base64 JSON (Legacy)
	jsonStr, err := DecodeBase64(body)
	if err != nil {
		return nil, fmt.Errorf("vmess base64 error: %w", err)
	}

	var v vmessJSON
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		return nil, fmt.Errorf("vmess json error: %w", err)
	}

	p := &Profile{
		Protocol:    "vmess",
		RawURI:      raw,
		Remarks:     v.Ps,
		Address:     v.Add,
		Password:    v.Id,
		Method:      v.Scy,
		Network:     v.Net,
		Host:        v.Host,
		Path:        v.Path,
		Security:    v.Tls,
		SNI:         v.Sni,
		Fingerprint: v.Fp,
	}
	if p.Method == "" {
		p.Method = "auto"
	}
	if v.Alpn != "" {
		p.ALPN = strings.Split(v.Alpn, ",")
	}

	// Port and aid can be string or int in JSON
	p.Port, _ = strconv.Atoi(jsonScalar(v.Port))
	p.AlterID, _ = strconv.Atoi(jsonScalar(v.Aid))

	// Map generic "Type" to specific fields
	p.HeaderType = v.Type
	if p.Network == "grpc" {
		p.Mode = v.Type // "gun" or "multi" often in 'type'
		p.ServiceName = v.Path
	}
	if p.Network == "kcp" {
		p.Seed = v.Path
	}

	return p, nil
}

func jsonScalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// --- VLESS, Trojan, Hysteria2, TUIC (Generic URI) ---
func parseGeneric(raw string, protocol string) (*Profile, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		Protocol: protocol,
		RawURI:   raw,
		Address:  u.Hostname(),
		Remarks:  u.Fragment,
		Password: userInfo(u),
	}
	p.Port, _ = strconv.Atoi(u.Port())

	q := u.Query()
	ParseQueryParam(p, q)

	if protocol == "vless" {
		p.Method = q.Get("encryption")
		if p.Method == "" {
			p.Method = "none"
		}
	}
	return p, nil
}

func parseTrojan(raw string) (*Profile, error) {
	p, err := parseGeneric(raw, "trojan")
	if err != nil {
		return nil, err
	}
	if p.Network == "" {
		p.Network = "tcp"
	}
	// Trojan is TLS unless stated otherwise
	if p.Security == "" {
		p.Security = "tls"
	}
	return p, nil
}

func parseHysteria2(raw string) (*Profile, error) {
	p, err := parseGeneric(raw, "hysteria2")
	if err != nil {
		return nil, err
	}
	u, _ := url.Parse(raw)
	q := u.Query()
	p.ObfsPassword = q.Get("obfs-password")
	p.PortHopping = q.Get("mport")
	p.Obfs = q.Get("obfs")
	if p.ObfsPassword != "" && p.Obfs == "" {
		p.Obfs = "salamander"
	}
	return p, nil
}

func parseTUIC(raw string) (*Profile, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		Protocol: "tuic",
		RawURI:   raw,
		Address:  u.Hostname(),
		Remarks:  u.Fragment,
	}
	p.Port, _ = strconv.Atoi(u.Port())
	if u.User != nil {
		p.Username = u.User.Username()
		p.Password, _ = u.User.Password()
	}
	q := u.Query()
	ParseQueryParam(p, q)
	p.CongestionControl = q.Get("congestion_control")
	return p, nil
}

// --- Shadowsocks ---
func parseShadowsocks(raw string) (*Profile, error) {
	base, frag := SplitFragment(raw)
	body := base[strings.Index(base, "://")+3:]

	// Legacy form: the whole "method:pass@host:port" is base64
	if !strings.Contains(body, "@") {
		decoded, err := DecodeBase64(body)
		if err != nil || !strings.Contains(decoded, "@") {
			return nil, fmt.Errorf("invalid shadowsocks link")
		}
		base = "ss://" + decoded
		if frag != "" {
			base += "#" + frag
		}
		raw = base
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		Protocol: "shadowsocks",
		RawURI:   raw,
		Address:  u.Hostname(),
		Remarks:  u.Fragment,
	}
	p.Port, _ = strconv.Atoi(u.Port())

	info := userInfo(u)

	// SIP002 Logic: If no colon, Base64 decode the whole block
	if !strings.Contains(info, ":") {
		if decoded, err := DecodeBase64(info); err == nil {
			info = decoded
		}
	}

	method, password, ok := strings.Cut(info, ":")
	if !ok {
		return nil, fmt.Errorf("invalid shadowsocks userinfo")
	}
	p.Method = method
	p.Password = password

	// Plugin Logic (v2rayNG logic)
	p.Plugin = u.Query().Get("plugin")
	if strings.Contains(p.Plugin, "obfs=http") {
		p.Network = "tcp"
		p.HeaderType = "http"
		if match := obfsHostRe.FindStringSubmatch(p.Plugin); len(match) > 1 {
			p.Host = match[1]
		}
		if match := obfsPathRe.FindStringSubmatch(p.Plugin); len(match) > 1 {
			p.Path = match[1]
		}
	}

	return p, nil
}

// --- Socks / HTTP ---
func parseSocks(raw string, proto string) (*Profile, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		Protocol: proto,
		RawURI:   raw,
		Address:  u.Hostname(),
		Remarks:  u.Fragment,
	}
	p.Port, _ = strconv.Atoi(u.Port())

	if u.User != nil {
		p.Username = u.User.Username()
		p.Password, _ = u.User.Password()
		// Some feeds base64 the whole "user:pass"
		if p.Password == "" {
			if decoded, err := DecodeBase64(p.Username); err == nil && strings.Contains(decoded, ":") {
				p.Username, p.Password, _ = strings.Cut(decoded, ":")
			}
		}
	}
	return p, nil
}
