package publishers

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"fastnodes/internal/model"
)

// ClashProxy is the Clash representation of one record.
type ClashProxy struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Server string `yaml:"server"`
	Port   int    `yaml:"port"`

	UUID     string `yaml:"uuid,omitempty"`
	AlterID  *int   `yaml:"alterId,omitempty"`
	Cipher   string `yaml:"cipher,omitempty"`
	Password string `yaml:"password,omitempty"`
	Username string `yaml:"username,omitempty"`
	Flow     string `yaml:"flow,omitempty"`

	TLS               bool     `yaml:"tls,omitempty"`
	ServerName        string   `yaml:"servername,omitempty"`
	SNI               string   `yaml:"sni,omitempty"`
	SkipCertVerify    bool     `yaml:"skip-cert-verify,omitempty"`
	ClientFingerprint string   `yaml:"client-fingerprint,omitempty"`
	ALPN              []string `yaml:"alpn,omitempty"`
	UDP               bool     `yaml:"udp,omitempty"`

	Network     string            `yaml:"network,omitempty"`
	WSOpts      *wsOpts           `yaml:"ws-opts,omitempty"`
	GRPCOpts    *grpcOpts         `yaml:"grpc-opts,omitempty"`
	RealityOpts *realityOpts      `yaml:"reality-opts,omitempty"`
	Plugin      string            `yaml:"plugin,omitempty"`
	PluginOpts  map[string]string `yaml:"plugin-opts,omitempty"`

	Obfs                 string `yaml:"obfs,omitempty"`
	ObfsPassword         string `yaml:"obfs-password,omitempty"`
	Ports                string `yaml:"ports,omitempty"`
	CongestionController string `yaml:"congestion-controller,omitempty"`
}

type wsOpts struct {
	Path    string            `yaml:"path,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

type grpcOpts struct {
	ServiceName string `yaml:"grpc-service-name"`
}

type realityOpts struct {
	PublicKey string `yaml:"public-key"`
	ShortID   string `yaml:"short-id,omitempty"`
}

type ProxyGroup struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Proxies  []string `yaml:"proxies"`
	URL      string   `yaml:"url"`
	Interval int      `yaml:"interval"`
}

type ClashDocument struct {
	Name        string       `yaml:"name"`
	Proxies     []ClashProxy `yaml:"proxies"`
	ProxyGroups []ProxyGroup `yaml:"proxy-groups"`
	Rules       []string     `yaml:"rules"`
}

// NewClashProxy maps a record onto its Clash form. Records without an engine
// config get only name, type, server and port.
func NewClashProxy(r *model.ProxyRecord) ClashProxy {
	p := ClashProxy{
		Name:   r.Remark,
		Type:   clashType(r.Protocol),
		Server: r.Host,
		Port:   int(r.Port),
	}

	switch c := r.Engine.(type) {
	case *model.VMessConfig:
		aid := c.AlterID
		p.UUID, p.AlterID = c.UUID, &aid
		p.Cipher = c.Cipher
		if p.Cipher == "" {
			p.Cipher = "auto"
		}
		applyTransport(&p, c.Transport, true)
	case *model.VLessConfig:
		p.UUID, p.Flow = c.UUID, c.Flow
		applyTransport(&p, c.Transport, true)
	case *model.TrojanConfig:
		p.Password = c.Password
		applyTransport(&p, c.Transport, false)
	case *model.ShadowsocksConfig:
		p.Cipher, p.Password = c.Cipher, c.Password
		if c.Plugin != "" {
			p.Plugin = "obfs"
			p.PluginOpts = map[string]string{"mode": "http"}
			if c.ObfsHost != "" {
				p.PluginOpts["host"] = c.ObfsHost
			}
		}
	case *model.Hysteria2Config:
		p.Password, p.SNI, p.SkipCertVerify = c.Password, c.SNI, c.Insecure
		p.Obfs, p.ObfsPassword, p.Ports = c.Obfs, c.ObfsPassword, c.PortHopping
	case *model.TuicConfig:
		p.UUID, p.Password, p.SNI = c.UUID, c.Password, c.SNI
		p.ALPN, p.SkipCertVerify = c.ALPN, c.Insecure
		p.CongestionController = c.CongestionControl
	case *model.SocksConfig:
		p.Username, p.Password = c.Username, c.Password
	case *model.HTTPConfig:
		p.Username, p.Password, p.TLS = c.Username, c.Password, c.TLS
	}
	if r.Engine != nil {
		a := r.Engine.Address()
		p.Server, p.Port = a.Server, a.Port
	}
	return p
}

// applyTransport copies stream settings. sniAsServerName selects the vmess
// and vless key ("servername") over trojan's ("sni").
func applyTransport(p *ClashProxy, t model.Transport, sniAsServerName bool) {
	p.TLS = t.TLS()
	if sniAsServerName {
		p.ServerName = t.SNI
	} else {
		p.SNI = t.SNI
	}
	p.SkipCertVerify = t.Insecure
	p.ClientFingerprint = t.Fingerprint
	p.ALPN = t.ALPN

	switch t.Network {
	case "ws", "httpupgrade":
		p.Network = "ws"
		ws := &wsOpts{Path: t.Path}
		if t.Host != "" {
			ws.Headers = map[string]string{"Host": t.Host}
		}
		p.WSOpts = ws
	case "grpc":
		p.Network = "grpc"
		p.GRPCOpts = &grpcOpts{ServiceName: t.ServiceName}
	case "", "tcp":
	default:
		p.Network = t.Network
	}
	if t.Security == "reality" {
		p.RealityOpts = &realityOpts{PublicKey: t.PublicKey, ShortID: t.ShortID}
	}
}

func clashType(p model.Protocol) string {
	switch p {
	case model.Socks:
		return "socks5"
	case "":
		return string(model.Unknown)
	}
	return string(p)
}

// NewClashDocument builds the document for one grouping: every proxy plus a
// single url-test group over all of them.
func NewClashDocument(g Grouping, healthURL string, interval int) ClashDocument {
	doc := ClashDocument{
		Name:    g.Title,
		Proxies: make([]ClashProxy, 0, len(g.Entries)),
		Rules:   []string{"MATCH,AUTO"},
	}
	names := make([]string, 0, len(g.Entries))
	for _, e := range g.Entries {
		p := NewClashProxy(e.Record)
		doc.Proxies = append(doc.Proxies, p)
		names = append(names, p.Name)
	}
	doc.ProxyGroups = []ProxyGroup{{
		Name:     "AUTO",
		Type:     "url-test",
		Proxies:  names,
		URL:      healthURL,
		Interval: interval,
	}}
	return doc
}

func (d ClashDocument) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal clash document: %w", err)
	}
	return out, nil
}
