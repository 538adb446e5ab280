package parser

import (
	"fmt"

	"fastnodes/internal/model"
)

// EngineConfig converts the profile into the protocol variant handed to the
// proxy engine. Missing endpoint or credentials are reported as errors.
func (p *Profile) EngineConfig() (model.EngineConfig, error) {
	if p.Address == "" {
		return nil, fmt.Errorf("%s: missing address", p.Protocol)
	}
	if p.Port < 1 || p.Port > 65535 {
		return nil, fmt.Errorf("%s: port %d out of range", p.Protocol, p.Port)
	}
	addr := model.Addr{Server: p.Address, Port: p.Port}

	switch p.Protocol {
	case "vmess":
		if p.Password == "" {
			return nil, fmt.Errorf("vmess: missing id")
		}
		return &model.VMessConfig{Addr: addr, Transport: p.transport(), UUID: p.Password, AlterID: p.AlterID, Cipher: p.Method}, nil
	case "vless":
		if p.Password == "" {
			return nil, fmt.Errorf("vless: missing id")
		}
		return &model.VLessConfig{Addr: addr, Transport: p.transport(), UUID: p.Password, Flow: p.Flow, Encryption: p.Method}, nil
	case "trojan":
		if p.Password == "" {
			return nil, fmt.Errorf("trojan: missing password")
		}
		return &model.TrojanConfig{Addr: addr, Transport: p.transport(), Password: p.Password}, nil
	case "shadowsocks":
		if p.Method == "" || p.Password == "" {
			return nil, fmt.Errorf("shadowsocks: missing method or password")
		}
		c := &model.ShadowsocksConfig{Addr: addr, Cipher: p.Method, Password: p.Password, Plugin: p.Plugin}
		if p.HeaderType == "http" {
			c.ObfsHost, c.ObfsPath = p.Host, p.Path
		}
		return c, nil
	case "hysteria2":
		if p.Password == "" {
			return nil, fmt.Errorf("hysteria2: missing auth")
		}
		return &model.Hysteria2Config{
			Addr: addr, Password: p.Password, SNI: p.SNI, Insecure: p.Insecure,
			Obfs: p.Obfs, ObfsPassword: p.ObfsPassword, PortHopping: p.PortHopping,
		}, nil
	case "tuic":
		if p.Username == "" {
			return nil, fmt.Errorf("tuic: missing uuid")
		}
		return &model.TuicConfig{
			Addr: addr, UUID: p.Username, Password: p.Password, SNI: p.SNI, ALPN: p.ALPN,
			CongestionControl: p.CongestionControl, Insecure: p.Insecure,
		}, nil
	case "socks":
		return &model.SocksConfig{Addr: addr, Username: p.Username, Password: p.Password}, nil
	case "http":
		return &model.HTTPConfig{Addr: addr, Username: p.Username, Password: p.Password, TLS: p.Security == "tls"}, nil
	}
	return nil, fmt.Errorf("unsupported protocol: %s", p.Protocol)
}

func (p *Profile) transport() model.Transport {
	network := p.Network
	if network == "" {
		network = "tcp"
	}
	return model.Transport{
		Network:     network,
		Security:    p.Security,
		SNI:         p.SNI,
		Host:        p.Host,
		Path:        p.Path,
		HeaderType:  p.HeaderType,
		ServiceName: p.ServiceName,
		Mode:        p.Mode,
		Seed:        p.Seed,
		Fingerprint: p.Fingerprint,
		ALPN:        p.ALPN,
		Insecure:    p.Insecure,
		PublicKey:   p.Pbk,
		ShortID:     p.Sid,
		SpiderX:     p.SpiderX,
	}
}
