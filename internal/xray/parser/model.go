package parser

// Profile represents a normalized proxy configuration derived from any protocol link.
// It is the intermediate form between raw URIs and model.EngineConfig variants.
type Profile struct {
	Protocol string // vmess, vless, trojan, shadowsocks, socks, http, hysteria2, tuic
	RawURI   string
	Remarks  string

	// Connection Details
	Address string
	Port    int

	// Authentication
	Username string // User for Socks/HTTP, UUID for TUIC
	Password string // UUID, Key, Password
	Method   string // Encryption method (SS/VMess)
	AlterID  int

	// Shadowsocks plugin
	Plugin string

	// Hysteria2 / TUIC Specifics
	Obfs              string // "salamander"
	ObfsPassword      string
	PortHopping       string // mport
	CongestionControl string

	// Transport (StreamSettings)
	Network     string // tcp, kcp, ws, http, grpc
	HeaderType  string // none, http
	Host        string // Request Host
	Path        string // WS/HTTP Path
	Seed        string // KCP Seed
	Mode        string // GRPC mode (gun)
	ServiceName string // GRPC ServiceName

	// Security (TLS/REALITY)
	Security    string // tls, reality, none
	Insecure    bool   // AllowInsecure
	SNI         string
	Fingerprint string   // fp
	ALPN        []string // alpn

	// REALITY Specifics
	Pbk     string // PublicKey
	Sid     string // ShortId
	SpiderX string // spx
	Flow    string // xtls-rprx-vision
}
