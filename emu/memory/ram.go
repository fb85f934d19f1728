package memory

import "context"

// RAM is the flat, word addressed physical memory backing store. It
// never misses; every access costs a fixed latency and it is the only
// layer that actually owns storage for the main address range
// [0, size).
type RAM struct {
	words   []uint32
	latency uint32
	Stats   Stats
}

// NewRAM allocates size words of backing store with the given
// per-access latency.
func NewRAM(sizeWords int, latency uint32) *RAM {
	return &RAM{words: make([]uint32, sizeWords), latency: latency}
}

func (m *RAM) index(addr uint32) uint32 { return addr / 4 % uint32(len(m.words)) }

// Size returns the byte length of the backing store, the upper bound
// of the valid RAM address range (RAM is always mapped starting at 0).
func (m *RAM) Size() uint32 { return uint32(len(m.words)) * 4 }

// Poke and Peek give the driver a way to load a program image and
// inspect memory directly, bypassing the cache/latency model - this
// is how code gets into the machine in the first place, since nothing
// in this package models loading a binary off disk.
func (m *RAM) Poke(addr, value uint32) { m.words[m.index(addr)] = value }
func (m *RAM) Peek(addr uint32) uint32 { return m.words[m.index(addr)] }

func (m *RAM) Latency() uint32 { return m.latency }

func (m *RAM) ReadWord(_ context.Context, req *Request) (uint32, bool) {
	if !stepLatency(req, m.latency) {
		return 0, false
	}
	m.Stats.Reads++
	return m.words[m.index(req.Addr)], true
}

func (m *RAM) WriteWord(_ context.Context, req *Request) bool {
	if !stepLatency(req, m.latency) {
		return false
	}
	m.Stats.Writes++
	if len(req.Data) > 0 {
		m.words[m.index(req.Addr)] = req.Data[0]
	}
	return true
}

func (m *RAM) ReadBlock(_ context.Context, req *Request) bool {
	if !stepLatency(req, m.latency*uint32(max(1, len(req.Data)))) {
		return false
	}
	base := m.index(req.Addr)
	for i := range req.Data {
		req.Data[i] = m.words[(base+uint32(i))%uint32(len(m.words))]
	}
	m.Stats.Reads++
	return true
}

func (m *RAM) WriteBlock(_ context.Context, req *Request) bool {
	if !stepLatency(req, m.latency*uint32(max(1, len(req.Data)))) {
		return false
	}
	base := m.index(req.Addr)
	for i, w := range req.Data {
		m.words[(base+uint32(i))%uint32(len(m.words))] = w
	}
	m.Stats.Writes++
	m.Stats.WriteBackCount++
	return true
}

func (m *RAM) FlushBlock(_ context.Context, _ uint32) bool { return true }
func (m *RAM) PurgeBlock(_ context.Context, _ uint32) bool { return true }
func (m *RAM) AbortOp()                                    {}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
