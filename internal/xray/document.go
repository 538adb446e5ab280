package xray

import (
	"encoding/json"
	"fmt"

	"github.com/xtls/xray-core/core"
	"github.com/xtls/xray-core/infra/conf"

	// Import distro to register all protocols/transports
	_ "github.com/xtls/xray-core/main/distro/all"

	"fastnodes/internal/model"
)

// ListenAddr is where every generated SOCKS inbound binds.
const ListenAddr = "127.0.0.1"

// Document renders a complete xray config with one local SOCKS inbound on
// port and one outbound for cfg.
func Document(cfg model.EngineConfig, port int) ([]byte, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid inbound port %d", port)
	}
	out, err := Outbound(cfg)
	if err != nil {
		return nil, err
	}

	doc := map[string]interface{}{
		"log": map[string]interface{}{
			"loglevel": "none",
		},
		"inbounds": []interface{}{
			map[string]interface{}{
				"tag":      "in",
				"listen":   ListenAddr,
				"port":     port,
				"protocol": "socks",
				"settings": map[string]interface{}{
					"auth": "noauth",
					"udp":  false,
				},
			},
		},
		"outbounds": []interface{}{out},
	}
	return json.Marshal(doc)
}

// Build parses a document with xray's config loader and builds it, which
// also validates every outbound setting.
func Build(doc []byte) (*core.Config, error) {
	var c conf.Config
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode xray config: %w", err)
	}
	return buildConfig(&c)
}

func buildConfig(c *conf.Config) (pb *core.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xray config panic: %v", r)
		}
	}()
	pb, err = c.Build()
	if err != nil {
		return nil, fmt.Errorf("build xray config: %w", err)
	}
	return pb, nil
}

// Prepare renders and validates the document for cfg in one step.
func Prepare(cfg model.EngineConfig, port int) ([]byte, error) {
	doc, err := Document(cfg, port)
	if err != nil {
		return nil, err
	}
	if _, err := Build(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
