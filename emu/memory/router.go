package memory

import "context"

// Router dispatches a physical address to one of the three disjoint
// regions of the machine: main RAM, the PDC ROM window, or the MMIO
// window. It implements Layer itself so it can sit directly below an
// L1/L2 cache (or be accessed uncached, for the IO region and for PDC
// instruction fetches that bypass the I-cache).
type Router struct {
	RAM              *RAM
	PDCStart, PDCEnd uint32
	PDC              *PDC
	IO               *IO

	arb arbiter
}

// layerFor dispatches addr to whichever region claims it. It is only
// ever called with an address layerFor's own caller has already run
// through InRange: an address outside RAM, PDC and IO alike has no
// layer to fall back to, and is rejected with a PhysAddressCheck trap
// upstream in fetch/decode and memory-access before reaching here.
func (r *Router) layerFor(addr uint32) Layer {
	if r.PDC != nil && addr >= r.PDCStart && addr < r.PDCEnd {
		return r.PDC
	}
	if r.IO != nil && r.IO.Contains(addr) {
		return r.IO
	}
	return r.RAM
}

// InPDC reports whether addr falls in the PDC window: fetch-decode
// uses this to bypass the instruction cache entirely for PDC code.
func (r *Router) InPDC(addr uint32) bool {
	return r.PDC != nil && addr >= r.PDCStart && addr < r.PDCEnd
}

// InIO reports whether addr falls in the MMIO window: the
// memory-access stage uses this to skip caching for data accesses.
// Fetch/decode does not consult it, so an instruction fetch from the
// window goes through the instruction cache like any in-range address.
func (r *Router) InIO(addr uint32) bool {
	return r.IO != nil && r.IO.Contains(addr)
}

// InRange reports whether addr falls in any region this router knows
// how to serve. An address matching none of them is a physical
// address check condition, not a silent wraparound into RAM.
func (r *Router) InRange(addr uint32) bool {
	return addr < r.RAM.Size() || r.InPDC(addr) || r.InIO(addr)
}

func (r *Router) Latency() uint32 { return r.RAM.Latency() }

func (r *Router) ReadWord(ctx context.Context, req *Request) (uint32, bool) {
	if !r.arb.acquire(req) {
		return 0, false
	}
	v, ok := r.layerFor(req.Addr).ReadWord(ctx, req)
	if ok {
		r.arb.release(req)
	}
	return v, ok
}
func (r *Router) WriteWord(ctx context.Context, req *Request) bool {
	if !r.arb.acquire(req) {
		return false
	}
	ok := r.layerFor(req.Addr).WriteWord(ctx, req)
	if ok {
		r.arb.release(req)
	}
	return ok
}
func (r *Router) ReadBlock(ctx context.Context, req *Request) bool {
	if !r.arb.acquire(req) {
		return false
	}
	ok := r.layerFor(req.Addr).ReadBlock(ctx, req)
	if ok {
		r.arb.release(req)
	}
	return ok
}
func (r *Router) WriteBlock(ctx context.Context, req *Request) bool {
	if !r.arb.acquire(req) {
		return false
	}
	ok := r.layerFor(req.Addr).WriteBlock(ctx, req)
	if ok {
		r.arb.release(req)
	}
	return ok
}
func (r *Router) FlushBlock(ctx context.Context, addr uint32) bool {
	return r.layerFor(addr).FlushBlock(ctx, addr)
}
func (r *Router) PurgeBlock(ctx context.Context, addr uint32) bool {
	return r.layerFor(addr).PurgeBlock(ctx, addr)
}
func (r *Router) AbortOp() {
	r.arb.owner = nil
	r.RAM.AbortOp()
	if r.PDC != nil {
		r.PDC.AbortOp()
	}
	if r.IO != nil {
		r.IO.AbortOp()
	}
}
