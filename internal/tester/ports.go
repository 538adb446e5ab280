package tester

import "sync/atomic"

// PortAllocator hands out local ports from [base, base+size) in rotation.
// It is the only state shared between concurrent tunnel probes.
type PortAllocator struct {
	base int
	size uint64
	next atomic.Uint64
}

func NewPortAllocator(base, size int) *PortAllocator {
	if size < 1 {
		size = 1
	}
	return &PortAllocator{base: base, size: uint64(size)}
}

func (a *PortAllocator) Next() int {
	n := a.next.Add(1) - 1
	return a.base + int(n%a.size)
}
