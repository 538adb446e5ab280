// Package blacklist evaluates IP addresses against CIDR lists.
package blacklist

import (
	"bufio"
	"io"
	"net/netip"
	"strconv"
	"strings"
)

// Entry is one CIDR network. Network holds 4 bytes for IPv4 and 16 for IPv6.
type Entry struct {
	Network   []byte
	PrefixLen uint8
}

// Blacklist is read-only after Load and safe for concurrent IsBlocked calls.
type Blacklist struct {
	entries []Entry
}

// Load builds a blacklist from one or more CIDR-list sources. Blank lines and
// '#' comments are ignored, malformed lines are skipped silently.
func Load(sources ...io.Reader) (*Blacklist, error) {
	b := &Blacklist{}
	for _, src := range sources {
		sc := bufio.NewScanner(src)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			if e, ok := ParseLine(sc.Text()); ok {
				b.entries = append(b.entries, e)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// LoadStrings is Load over in-memory CIDR texts.
func LoadStrings(texts ...string) *Blacklist {
	readers := make([]io.Reader, len(texts))
	for i, t := range texts {
		readers[i] = strings.NewReader(t)
	}
	b, _ := Load(readers...)
	return b
}

// ParseLine parses "address/prefix". A prefix longer than the address family
// allows is treated as malformed.
func ParseLine(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, false
	}
	parts := strings.Split(line, "/")
	if len(parts) != 2 {
		return Entry{}, false
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(parts[0]))
	if err != nil {
		return Entry{}, false
	}
	prefix, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || prefix < 0 || prefix > addrBits(addr) {
		return Entry{}, false
	}
	return Entry{Network: addrBytes(addr), PrefixLen: uint8(prefix)}, true
}

// Len returns the number of loaded entries.
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// IsBlocked reports whether ip falls inside any entry. Unparsable input is
// blocked.
func (b *Blacklist) IsBlocked(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return true
	}
	if b == nil {
		return false
	}
	raw := addrBytes(addr)
	for _, e := range b.entries {
		if Contains(e, raw) {
			return true
		}
	}
	return false
}

// Contains compares the top PrefixLen bits of ip and e.Network byte by byte.
// Addresses of a different length never match.
func Contains(e Entry, ip []byte) bool {
	if len(ip) != len(e.Network) {
		return false
	}
	remaining := int(e.PrefixLen)
	for i := 0; i < len(ip) && remaining > 0; i++ {
		bits := remaining
		if bits > 8 {
			bits = 8
		}
		mask := byte(0xFF << (8 - bits))
		if ip[i]&mask != e.Network[i]&mask {
			return false
		}
		remaining -= bits
	}
	return true
}

// IPv4-mapped IPv6 addresses are treated as IPv4.
func addrBytes(a netip.Addr) []byte {
	a = a.Unmap()
	if a.Is4() {
		b := a.As4()
		return b[:]
	}
	b := a.As16()
	return b[:]
}

func addrBits(a netip.Addr) int {
	if a.Unmap().Is4() {
		return 32
	}
	return 128
}
