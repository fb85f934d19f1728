package core

// TlbMode selects how translation is organized: no translation at
// all, split instruction/data TLBs, or one unified table serving both
// sides.
type TlbMode int

const (
	TlbNone TlbMode = iota
	TlbSplit
	TlbUnified
)

// CacheL1Mode is always split I/D in this machine; kept as a type so
// the descriptor shape mirrors the TLB/L2 modes.
type CacheL1Mode int

const (
	L1Split CacheL1Mode = iota
)

// CacheL2Mode selects whether a unified second level cache sits
// between L1 and physical memory.
type CacheL2Mode int

const (
	L2None CacheL2Mode = iota
	L2Unified
)

// TlbDesc configures one TLB instance.
type TlbDesc struct {
	Entries int
	Latency uint32
}

// CacheDesc configures one cache instance.
type CacheDesc struct {
	Sets       int
	Ways       int
	BlockWords int
	Latency    uint32
}

// MemDesc configures a flat backing store (RAM, PDC or IO).
type MemDesc struct {
	SizeWords  int
	Latency    uint32
	StartAddr  uint32
	EndAddr    uint32
}

// Config is the full construction-time description of a core: which
// optional layers are present and their individual geometry/latency.
// It is the target the config file loader (see the config package)
// builds by parsing a model description file.
type Config struct {
	TlbMode  TlbMode
	ITlb     TlbDesc
	DTlb     TlbDesc
	L1Mode   CacheL1Mode
	ICacheL1 CacheDesc
	DCacheL1 CacheDesc
	L2Mode   CacheL2Mode
	CacheL2  CacheDesc
	RAM      MemDesc
	PDC      MemDesc
	IO       MemDesc
}

// DefaultConfig returns a minimal but complete configuration: split
// TLBs and L1 caches, no L2, 4 MiB (1 Mi words) of RAM, a small PDC ROM and a
// reserved IO window - enough to boot and run without any config file.
func DefaultConfig() Config {
	return Config{
		TlbMode: TlbSplit,
		ITlb:    TlbDesc{Entries: 256, Latency: 1},
		DTlb:    TlbDesc{Entries: 256, Latency: 1},
		L1Mode:  L1Split,
		ICacheL1: CacheDesc{Sets: 64, Ways: 2, BlockWords: 8, Latency: 1},
		DCacheL1: CacheDesc{Sets: 64, Ways: 2, BlockWords: 8, Latency: 1},
		L2Mode:  L2None,
		CacheL2: CacheDesc{Sets: 256, Ways: 4, BlockWords: 8, Latency: 8},
		RAM:     MemDesc{SizeWords: 1 << 20, Latency: 20, StartAddr: 0, EndAddr: (1 << 20) * 4},
		PDC:     MemDesc{SizeWords: 4096, Latency: 2, StartAddr: 0xf0000000, EndAddr: 0xf0000000 + 4096*4},
		IO:      MemDesc{SizeWords: 0, Latency: 4, StartAddr: 0xff000000, EndAddr: 0xffffffff},
	}
}
