package publishers

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	DefaultHealthURL      = "http://cp.cloudflare.com/generate_204"
	DefaultHealthInterval = 300
)

// Text renders a grouping as one link per line. Ranked groupings carry a
// "# latency=Nms" annotation.
func Text(g Grouping) string {
	var b strings.Builder
	for _, e := range g.Entries {
		b.WriteString(e.Record.Link)
		if g.Ranked {
			fmt.Fprintf(&b, " # latency=%dms", e.LatencyMs)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Clash renders the grouping's Clash document using the health-check
// settings injected into config ("_health_url", "_health_interval").
func Clash(g Grouping, config map[string]interface{}) ([]byte, error) {
	url, _ := config["_health_url"].(string)
	if url == "" {
		url = DefaultHealthURL
	}
	interval, _ := config["_health_interval"].(int)
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return NewClashDocument(g, url, interval).Marshal()
}

// Payload renders a grouping in the format config asks for: "text" (default,
// optionally "base64": true) or "clash".
func Payload(g Grouping, config map[string]interface{}) ([]byte, error) {
	format, _ := config["format"].(string)
	switch format {
	case "", "text":
		text := Text(g)
		if useBase64, _ := config["base64"].(bool); useBase64 {
			return []byte(base64.StdEncoding.EncodeToString([]byte(text))), nil
		}
		return []byte(text), nil
	case "clash", "yaml":
		return Clash(g, config)
	}
	return nil, fmt.Errorf("unknown publish format %q", format)
}

// Find returns the grouping with the given name.
func Find(groups []Grouping, name string) (Grouping, bool) {
	for _, g := range groups {
		if g.Name == name {
			return g, true
		}
	}
	return Grouping{}, false
}
