package model

import (
	"net"
	"strconv"
)

// ProxyRecord is one accepted proxy candidate.
type ProxyRecord struct {
	// RawLine is the source text exactly as fetched.
	RawLine string
	// Link is RawLine with its label rewritten.
	Link string

	Protocol Protocol
	Host     string
	Port     uint16

	CountryCode string
	CountryName string
	Remark      string
	DedupKey    string
	Source      string

	// Engine is nil when the link could not be turned into an engine config.
	Engine EngineConfig
}

// Endpoint returns host:port, bracketing IPv6 literals.
func (r *ProxyRecord) Endpoint() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(int(r.Port)))
}

// Tunnelable reports whether the record can be handed to a proxy engine.
func (r *ProxyRecord) Tunnelable() bool {
	return r.Protocol.Testable() && r.Engine != nil
}

// Phase identifies which probe produced a result.
type Phase int

const (
	PhaseQuick Phase = iota
	PhaseFull
)

func (p Phase) String() string {
	if p == PhaseFull {
		return "full"
	}
	return "quick"
}

// ProbeResult is immutable once produced by a probe.
type ProbeResult struct {
	Record    *ProxyRecord
	LatencyMs int32
	Phase     Phase
}
