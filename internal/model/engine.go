package model

// EngineConfig is the protocol-specific parameter set handed to the proxy
// engine. It is a closed union: only the variants in this file implement it.
type EngineConfig interface {
	Protocol() Protocol
	Address() Addr
	engineConfig()
}

// Addr is the server a variant connects to.
type Addr struct {
	Server string
	Port   int
}

// Transport carries stream settings shared by the TLS-capable protocols.
type Transport struct {
	Network     string // tcp, ws, grpc, kcp, http
	Security    string // tls, reality, none
	SNI         string
	Host        string
	Path        string
	HeaderType  string
	ServiceName string
	Mode        string
	Seed        string
	Fingerprint string
	ALPN        []string
	Insecure    bool

	// REALITY
	PublicKey string
	ShortID   string
	SpiderX   string
}

// TLS reports whether the transport is wrapped in TLS or REALITY.
func (t Transport) TLS() bool {
	return t.Security == "tls" || t.Security == "reality"
}

type VMessConfig struct {
	Addr
	Transport
	UUID    string
	AlterID int
	Cipher  string
}

type VLessConfig struct {
	Addr
	Transport
	UUID       string
	Flow       string
	Encryption string
}

type TrojanConfig struct {
	Addr
	Transport
	Password string
}

type ShadowsocksConfig struct {
	Addr
	Cipher   string
	Password string
	Plugin   string
	// HTTP obfs plugin parameters.
	ObfsHost string
	ObfsPath string
}

type Hysteria2Config struct {
	Addr
	Password     string
	SNI          string
	Insecure     bool
	Obfs         string
	ObfsPassword string
	PortHopping  string
}

type TuicConfig struct {
	Addr
	UUID              string
	Password          string
	SNI               string
	ALPN              []string
	CongestionControl string
	Insecure          bool
}

type SocksConfig struct {
	Addr
	Username string
	Password string
}

type HTTPConfig struct {
	Addr
	Username string
	Password string
	TLS      bool
}

func (c *VMessConfig) Protocol() Protocol       { return VMess }
func (c *VLessConfig) Protocol() Protocol       { return VLess }
func (c *TrojanConfig) Protocol() Protocol      { return Trojan }
func (c *ShadowsocksConfig) Protocol() Protocol { return ShadowSocks }
func (c *Hysteria2Config) Protocol() Protocol   { return Hysteria2 }
func (c *TuicConfig) Protocol() Protocol        { return Tuic }
func (c *SocksConfig) Protocol() Protocol       { return Socks }
func (c *HTTPConfig) Protocol() Protocol        { return HTTP }

func (c *VMessConfig) Address() Addr       { return c.Addr }
func (c *VLessConfig) Address() Addr       { return c.Addr }
func (c *TrojanConfig) Address() Addr      { return c.Addr }
func (c *ShadowsocksConfig) Address() Addr { return c.Addr }
func (c *Hysteria2Config) Address() Addr   { return c.Addr }
func (c *TuicConfig) Address() Addr        { return c.Addr }
func (c *SocksConfig) Address() Addr       { return c.Addr }
func (c *HTTPConfig) Address() Addr        { return c.Addr }

func (*VMessConfig) engineConfig()       {}
func (*VLessConfig) engineConfig()       {}
func (*TrojanConfig) engineConfig()      {}
func (*ShadowsocksConfig) engineConfig() {}
func (*Hysteria2Config) engineConfig()   {}
func (*TuicConfig) engineConfig()        {}
func (*SocksConfig) engineConfig()       {}
func (*HTTPConfig) engineConfig()        {}
