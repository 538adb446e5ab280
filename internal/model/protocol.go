package model

import "strings"

// Protocol is the classification result of a proxy line.
type Protocol string

const (
	VMess       Protocol = "vmess"
	VLess       Protocol = "vless"
	Trojan      Protocol = "trojan"
	ShadowSocks Protocol = "ss"
	Hysteria2   Protocol = "hysteria2"
	Tuic        Protocol = "tuic"
	Socks       Protocol = "socks"
	HTTP        Protocol = "http"
	Unknown     Protocol = "unknown"
)

// schemes maps every recognised URI scheme to its protocol.
var schemes = map[string]Protocol{
	"vmess":       VMess,
	"vless":       VLess,
	"trojan":      Trojan,
	"ss":          ShadowSocks,
	"shadowsocks": ShadowSocks,
	"hysteria2":   Hysteria2,
	"hy2":         Hysteria2,
	"hysteria":    Hysteria2,
	"tuic":        Tuic,
	"socks":       Socks,
	"socks5":      Socks,
	"http":        HTTP,
	"https":       HTTP,
}

// ProtocolFromScheme returns the protocol for a URI scheme, or Unknown.
func ProtocolFromScheme(scheme string) (Protocol, bool) {
	p, ok := schemes[strings.ToLower(scheme)]
	if !ok {
		return Unknown, false
	}
	return p, true
}

// Schemes lists the recognised schemes, longest first so substring scans
// prefer "hysteria2" over "hy2" and "socks5" over "socks".
func Schemes() []string {
	return []string{"shadowsocks", "hysteria2", "hysteria", "socks5", "trojan", "vmess", "vless", "socks", "https", "tuic", "http", "hy2", "ss"}
}

// Label is the upper-case form used in display remarks.
func (p Protocol) Label() string {
	return strings.ToUpper(string(p))
}

// Testable reports whether records of this protocol may enter tunnel testing.
func (p Protocol) Testable() bool {
	return p != Unknown && p != ""
}
