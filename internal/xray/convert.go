package xray

import (
	"errors"
	"fmt"

	"fastnodes/internal/model"
)

// ErrUnsupported is returned for protocols xray has no outbound for.
var ErrUnsupported = errors.New("no xray outbound for protocol")

// Outbound converts an engine config into an xray outbound object tagged
// "proxy". It is a pure function of the variant.
func Outbound(cfg model.EngineConfig) (map[string]interface{}, error) {
	if cfg == nil {
		return nil, errors.New("nil engine config")
	}

	var (
		protocol string
		settings map[string]interface{}
		stream   map[string]interface{}
	)

	switch c := cfg.(type) {
	case *model.VMessConfig:
		protocol = "vmess"
		settings = buildVMess(c)
		stream = buildStreamSettings(c.Transport)
	case *model.VLessConfig:
		protocol = "vless"
		settings = buildVLESS(c)
		stream = buildStreamSettings(c.Transport)
	case *model.TrojanConfig:
		protocol = "trojan"
		settings = buildTrojan(c)
		stream = buildStreamSettings(c.Transport)
	case *model.ShadowsocksConfig:
		protocol = "shadowsocks"
		settings = buildShadowsocks(c)
		if c.ObfsHost != "" || c.ObfsPath != "" {
			stream = httpObfsStream(c.ObfsHost, c.ObfsPath)
		}
	case *model.Hysteria2Config:
		// Native support in recent Xray versions
		protocol = "hysteria2"
		settings = buildHysteria2(c)
		stream = map[string]interface{}{
			"security":    "tls",
			"tlsSettings": tlsSettings(model.Transport{SNI: c.SNI, Insecure: c.Insecure}),
		}
	case *model.SocksConfig:
		protocol = "socks"
		settings = buildServerWithUsers(c.Addr, c.Username, c.Password)
	case *model.HTTPConfig:
		protocol = "http"
		settings = buildServerWithUsers(c.Addr, c.Username, c.Password)
		if c.TLS {
			stream = map[string]interface{}{"security": "tls"}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Protocol())
	}

	out := map[string]interface{}{
		"tag":      "proxy",
		"protocol": protocol,
		"settings": settings,
	}
	if stream != nil {
		out["streamSettings"] = stream
	}
	return out, nil
}

// --- Settings Builders ---

func buildVMess(c *model.VMessConfig) map[string]interface{} {
	security := c.Cipher
	if security == "" {
		security = "auto"
	}
	return map[string]interface{}{
		"vnext": []interface{}{
			map[string]interface{}{
				"address": c.Server,
				"port":    c.Port,
				"users": []interface{}{
					map[string]interface{}{
						"id":       c.UUID,
						"alterId":  c.AlterID,
						"security": security,
					},
				},
			},
		},
	}
}

func buildVLESS(c *model.VLessConfig) map[string]interface{} {
	encryption := c.Encryption
	if encryption == "" {
		encryption = "none"
	}
	user := map[string]interface{}{
		"id":         c.UUID,
		"encryption": encryption,
	}
	if c.Flow != "" {
		user["flow"] = c.Flow
	}
	return map[string]interface{}{
		"vnext": []interface{}{
			map[string]interface{}{
				"address": c.Server,
				"port":    c.Port,
				"users":   []interface{}{user},
			},
		},
	}
}

func buildTrojan(c *model.TrojanConfig) map[string]interface{} {
	return map[string]interface{}{
		"servers": []interface{}{
			map[string]interface{}{
				"address":  c.Server,
				"port":     c.Port,
				"password": c.Password,
			},
		},
	}
}

func buildShadowsocks(c *model.ShadowsocksConfig) map[string]interface{} {
	return map[string]interface{}{
		"servers": []interface{}{
			map[string]interface{}{
				"address":  c.Server,
				"port":     c.Port,
				"method":   c.Cipher,
				"password": c.Password,
			},
		},
	}
}

func buildHysteria2(c *model.Hysteria2Config) map[string]interface{} {
	s := map[string]interface{}{
		"address": c.Server,
		"port":    c.Port,
		"auth":    c.Password,
	}
	if c.Obfs != "" {
		s["obfs"] = map[string]interface{}{
			"type": c.Obfs, // "salamander"
			"salamander": map[string]interface{}{
				"password": c.ObfsPassword,
			},
		}
	}
	return s
}

// SOCKS and HTTP share the "servers" array with optional users.
func buildServerWithUsers(addr model.Addr, user, pass string) map[string]interface{} {
	server := map[string]interface{}{
		"address": addr.Server,
		"port":    addr.Port,
	}
	if user != "" {
		server["users"] = []interface{}{
			map[string]interface{}{"user": user, "pass": pass},
		}
	}
	return map[string]interface{}{
		"servers": []interface{}{server},
	}
}

func buildStreamSettings(t model.Transport) map[string]interface{} {
	network := t.Network
	if network == "" {
		network = "tcp"
	}
	sc := map[string]interface{}{"network": network}

	// TLS / REALITY
	switch t.Security {
	case "tls":
		sc["security"] = "tls"
		sc["tlsSettings"] = tlsSettings(t)
	case "reality":
		sc["security"] = "reality"
		sc["realitySettings"] = map[string]interface{}{
			"serverName":  t.SNI,
			"fingerprint": orDefault(t.Fingerprint, "chrome"),
			"publicKey":   t.PublicKey,
			"shortId":     t.ShortID,
			"spiderX":     t.SpiderX,
		}
	}

	// Transports
	switch network {
	case "ws":
		sc["wsSettings"] = map[string]interface{}{
			"path": t.Path,
			"host": t.Host,
		}
	case "grpc":
		sc["grpcSettings"] = map[string]interface{}{
			"serviceName": t.ServiceName,
			"multiMode":   t.Mode == "multi",
		}
	case "httpupgrade":
		sc["httpupgradeSettings"] = map[string]interface{}{
			"path": t.Path,
			"host": t.Host,
		}
	case "xhttp", "splithttp":
		sc["xhttpSettings"] = map[string]interface{}{
			"path": t.Path,
			"host": t.Host,
			"mode": orDefault(t.Mode, "auto"),
		}
	case "kcp":
		if t.Seed != "" {
			sc["kcpSettings"] = map[string]interface{}{"seed": t.Seed}
		}
	case "tcp", "raw":
		if t.HeaderType == "http" {
			sc["tcpSettings"] = httpObfsStream(t.Host, t.Path)["tcpSettings"]
		}
	}
	return sc
}

func tlsSettings(t model.Transport) map[string]interface{} {
	s := map[string]interface{}{
		"serverName": t.SNI,
	}
	if t.Insecure {
		s["allowInsecure"] = true
	}
	if t.Fingerprint != "" {
		s["fingerprint"] = t.Fingerprint
	}
	if len(t.ALPN) > 0 {
		s["alpn"] = t.ALPN
	}
	return s
}

func httpObfsStream(host, path string) map[string]interface{} {
	if path == "" {
		path = "/"
	}
	request := map[string]interface{}{
		"path": []string{path},
	}
	if host != "" {
		request["headers"] = map[string]interface{}{"Host": []string{host}}
	}
	return map[string]interface{}{
		"network": "tcp",
		"tcpSettings": map[string]interface{}{
			"header": map[string]interface{}{
				"type":    "http",
				"request": request,
			},
		},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
