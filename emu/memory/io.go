package memory

import "context"

// Device is a memory mapped peripheral. Reads and writes against an IO
// region are dispatched to whichever registered Device claims the
// address; a region with no claimant reads as zero and discards
// writes. This keeps the I/O region usable as a side-effecting
// target without requiring this repository to model any actual
// peripheral - the open question of what lives behind it is resolved
// by treating IO as a plain device table that starts out empty.
type Device interface {
	ReadWord(addr uint32) uint32
	WriteWord(addr uint32, value uint32)
}

// IO models the MMIO region: data accesses reach it uncached and are
// dispatched to a simple device table keyed by base address. Nothing
// refuses an instruction fetch from it; such a fetch is filled through
// the instruction cache.
type IO struct {
	start, end uint32
	latency    uint32
	devices    map[uint32]Device
	Stats      Stats
}

// NewIO creates an MMIO region covering [start, end).
func NewIO(start, end uint32, latency uint32) *IO {
	return &IO{start: start, end: end, latency: latency, devices: map[uint32]Device{}}
}

// RegisterDevice attaches dev to field reads/writes at exactly base.
func (io *IO) RegisterDevice(base uint32, dev Device) {
	io.devices[base] = dev
}

// Contains reports whether addr falls in this region.
func (io *IO) Contains(addr uint32) bool { return addr >= io.start && addr < io.end }

func (io *IO) Latency() uint32 { return io.latency }

func (io *IO) ReadWord(_ context.Context, req *Request) (uint32, bool) {
	if !stepLatency(req, io.latency) {
		return 0, false
	}
	io.Stats.Reads++
	if dev, ok := io.devices[req.Addr]; ok {
		return dev.ReadWord(req.Addr), true
	}
	return 0, true
}

func (io *IO) WriteWord(_ context.Context, req *Request) bool {
	if !stepLatency(req, io.latency) {
		return false
	}
	io.Stats.Writes++
	if dev, ok := io.devices[req.Addr]; ok && len(req.Data) > 0 {
		dev.WriteWord(req.Addr, req.Data[0])
	}
	return true
}

// IO is never block-accessed: it is explicitly excluded from caching,
// so ReadBlock/WriteBlock degrade to a single word operation repeated
// by the caller if ever invoked; they are not expected to be.
func (io *IO) ReadBlock(ctx context.Context, req *Request) bool {
	_, ok := io.ReadWord(ctx, req)
	return ok
}

func (io *IO) WriteBlock(ctx context.Context, req *Request) bool {
	return io.WriteWord(ctx, req)
}

func (io *IO) FlushBlock(_ context.Context, _ uint32) bool { return true }
func (io *IO) PurgeBlock(_ context.Context, _ uint32) bool { return true }
func (io *IO) AbortOp()                                    {}
