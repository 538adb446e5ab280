// Package classifier turns one raw subscription line into a normalized
// (protocol, host, port, remark) tuple.
//
// Strategies are pure functions tried in a fixed order; the first one that
// accepts the line wins.
package classifier

import (
	"encoding/json"
	"net/netip"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"fastnodes/internal/model"
	"fastnodes/internal/xray/parser"
)

// MinLineLength is the shortest line that can hold a usable link.
const MinLineLength = 20

// DefaultPort is assumed when a heuristic match carries no port.
const DefaultPort = 443

var (
	numberedDuplicateRe = regexp.MustCompile(`\s*\(\d+\)\s*$`)
	hostnameRe          = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+(?:[a-zA-Z]{2,}|xn--[a-zA-Z0-9-]+)$`)
	endpointRe          = regexp.MustCompile(`(?:(?:[0-9]{1,3}\.){3}[0-9]{1,3}|[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})(?::(\d{1,5}))?`)
)

// Classification is the result of classifying one line. A zero Host means
// no endpoint was found.
type Classification struct {
	Protocol model.Protocol
	Host     string
	Port     uint16
	Remark   string
}

// Strategy tries to classify a line.
type Strategy func(line string) (Classification, bool)

// Strategies is the fixed chain used by Classify.
var Strategies = []Strategy{FromURI, FromVMessJSON, FromHeuristics}

// Classify runs the strategy chain over a trimmed line. Lines that nothing
// accepts, and lines shorter than MinLineLength, yield Unknown with an empty
// endpoint.
func Classify(line string) Classification {
	line = strings.TrimSpace(line)
	if len(line) < MinLineLength {
		return Classification{Protocol: model.Unknown}
	}
	for _, s := range Strategies {
		if c, ok := s(line); ok {
			return c
		}
	}
	return Classification{Protocol: model.Unknown}
}

// IsNumberedDuplicate reports lines ending in a " (12)"-style marker.
func IsNumberedDuplicate(line string) bool {
	return numberedDuplicateRe.MatchString(line)
}

// FromURI accepts links with a recognised scheme and a valid host and port.
func FromURI(line string) (Classification, bool) {
	scheme, rest, ok := strings.Cut(line, "://")
	if !ok {
		return Classification{}, false
	}
	proto, ok := model.ProtocolFromScheme(scheme)
	if !ok {
		return Classification{}, false
	}

	base, frag := parser.SplitFragment(rest)
	// ss://BASE64(method:pass@host:port)
	if proto == model.ShadowSocks && !strings.Contains(base, "@") {
		if decoded, err := parser.DecodeBase64(base); err == nil && strings.Contains(decoded, "@") {
			base = decoded
		}
	}

	u, err := url.Parse(scheme + "://" + base)
	if err != nil {
		return Classification{}, false
	}
	host := u.Hostname()
	if !ValidHost(host) {
		return Classification{}, false
	}
	port, ok := parsePort(u.Port())
	if !ok {
		return Classification{}, false
	}
	return Classification{Protocol: proto, Host: host, Port: port, Remark: unescape(frag)}, true
}

// FromVMessJSON accepts vmess:// links whose body is a base64 JSON object
// carrying "add" or "port".
func FromVMessJSON(line string) (Classification, bool) {
	if len(line) < len("vmess://") || !strings.EqualFold(line[:len("vmess://")], "vmess://") {
		return Classification{}, false
	}
	body, _ := parser.SplitFragment(line[len("vmess://"):])
	fields, ok := DecodeVMessJSON(body)
	if !ok {
		return Classification{}, false
	}

	host := jsonString(fields["add"])
	if !ValidHost(host) {
		return Classification{}, false
	}
	port := uint16(DefaultPort)
	if raw, ok := fields["port"]; ok {
		if port, ok = parsePort(jsonString(raw)); !ok {
			return Classification{}, false
		}
	}
	return Classification{Protocol: model.VMess, Host: host, Port: port, Remark: jsonString(fields["ps"])}, true
}

// DecodeVMessJSON decodes a vmess body into its top-level properties. It
// fails unless the object has an "add" or "port" key.
func DecodeVMessJSON(body string) (map[string]json.RawMessage, bool) {
	decoded, err := parser.DecodeBase64(body)
	if err != nil || decoded == "" {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(decoded), &fields); err != nil {
		return nil, false
	}
	_, hasAdd := fields["add"]
	_, hasPort := fields["port"]
	if !hasAdd && !hasPort {
		return nil, false
	}
	return fields, true
}

// FromHeuristics scans the text before '#' for an IPv4 or hostname endpoint
// and guesses the protocol from the surrounding text.
func FromHeuristics(line string) (Classification, bool) {
	base, frag := parser.SplitFragment(line)
	for _, m := range endpointRe.FindAllStringSubmatchIndex(base, -1) {
		host := base[m[0]:m[1]]
		explicit := m[2] >= 0
		port := uint16(DefaultPort)
		if explicit {
			host = base[m[0] : m[2]-1]
			p, ok := parsePort(base[m[2]:m[3]])
			if !ok {
				continue
			}
			port = p
		}
		if !ValidHost(host) {
			continue
		}
		return Classification{
			Protocol: guessProtocol(strings.ToLower(line), port, explicit),
			Host:     host,
			Port:     port,
			Remark:   unescape(frag),
		}, true
	}
	return Classification{}, false
}

var (
	vlessMarkers = []string{"flow=", "pbk=", "sid="}
	vmessMarkers = []string{"scy=", "aid=", "ps="}

	portGuesses = map[uint16]model.Protocol{
		443: model.VLess, 8443: model.VLess, 2053: model.VLess, 2083: model.VLess, 2087: model.VLess, 2096: model.VLess,
		80: model.ShadowSocks, 8080: model.ShadowSocks, 8880: model.ShadowSocks,
		1080: model.Socks, 7890: model.Socks,
	}
)

func guessProtocol(lower string, port uint16, explicitPort bool) model.Protocol {
	for _, s := range model.Schemes() {
		if strings.Contains(lower, s+"://") {
			p, _ := model.ProtocolFromScheme(s)
			return p
		}
	}
	for _, m := range vlessMarkers {
		if strings.Contains(lower, m) {
			return model.VLess
		}
	}
	for _, m := range vmessMarkers {
		if strings.Contains(lower, m) {
			return model.VMess
		}
	}
	if explicitPort {
		if p, ok := portGuesses[port]; ok {
			return p
		}
	}
	return model.Unknown
}

// ValidHost accepts literal IPv4/IPv6 addresses and DNS-like hostnames.
func ValidHost(host string) bool {
	if host == "" {
		return false
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return true
	}
	return len(host) <= 253 && hostnameRe.MatchString(host)
}

func parsePort(s string) (uint16, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return 0, false
	}
	return uint16(n), true
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

func jsonString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
