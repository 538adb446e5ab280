package pipeline

import (
	"fastnodes/internal/logger"
	"fastnodes/internal/model"
)

// FromNode rebuilds a record from its stored form. The engine config is
// regenerated from the raw line.
func FromNode(n model.Node) *model.ProxyRecord {
	r := &model.ProxyRecord{
		RawLine:     n.Raw,
		Link:        n.Link,
		Protocol:    model.Protocol(n.Protocol),
		Host:        n.Host,
		Port:        uint16(n.Port),
		CountryCode: n.Country,
		CountryName: n.CountryName,
		Remark:      n.Remark,
		DedupKey:    n.DedupKey,
		Source:      n.Source,
	}
	if r.Protocol.Testable() {
		cfg, err := EngineConfig(n.Raw)
		if err != nil {
			logger.Log.Debugf("%s: %v", n.DedupKey, err)
		} else {
			r.Engine = cfg
		}
	}
	return r
}

// FromNodes maps FromNode over nodes.
func FromNodes(nodes []model.Node) []*model.ProxyRecord {
	out := make([]*model.ProxyRecord, len(nodes))
	for i, n := range nodes {
		out[i] = FromNode(n)
	}
	return out
}
