// Package memory implements the layered memory hierarchy: split L1
// instruction/data caches, an optional unified L2, physical RAM, a PDC
// ROM region and a memory mapped I/O region, all built against the
// same non-blocking Layer interface so the pipeline's memory-access
// stage can drive any of them identically.
package memory

import "context"

// OpState is the lifecycle of a single outstanding request against a
// Layer. Every operation that is not immediately satisfiable (a cache
// miss, a slow backing store access) is modeled as an explicit state
// machine stepped once per clock rather than as blocking control flow,
// so the caller can poll it alongside everything else happening that
// cycle.
type OpState int

const (
	Idle OpState = iota
	Busy
	Fill
	WriteBack
	Done
)

// AccessKind distinguishes instruction fetch from data access. A cache
// records the side it was built for in Cache.Kind; no layer changes
// how it serves a request because of it.
type AccessKind int

const (
	AccessData AccessKind = iota
	AccessInstr
)

// Request describes one in-flight operation against a Layer. The
// caller owns it and passes the same Request back on every poll; a
// layer keeps no request storage of its own beyond its arbiter's
// owner pointer, and spawns no goroutines per access.
type Request struct {
	State    OpState
	Kind     AccessKind
	Write    bool
	Addr     uint32
	Data     []uint32 // block payload for fill/write-back; one word for readWord/writeWord
	Latency  int       // cycles remaining in the current state
	Dirty    bool
	Priority int      // arbitration priority against a concurrent requester; higher wins
	victim   int      // chosen set way, internal bookkeeping
	sub      *Request // downstream fill/write-back request, while Fill/WriteBack
}

// Priority levels for the two requesters that can contend for a shared
// downstream layer (a unified L2, or the router) in the same cycle:
// the memory-access stage's data request always wins a tie against the
// fetch/decode stage's instruction request, since a stalled load/store
// blocks retirement while a stalled fetch only delays issue.
const (
	PriorityInstrFetch = 0
	PriorityData       = 1
)

// Completed reports whether the request has reached a terminal state.
func (r *Request) Completed() bool {
	return r.State == Done
}

// Layer is the common, non-blocking interface every component of the
// memory hierarchy satisfies: L1/L2 caches, physical RAM, PDC and I/O.
// Every method starts or advances a Request by one cycle's worth of
// work and returns whether it finished. Callers poll until Completed.
type Layer interface {
	// ReadWord starts or advances a single word read.
	ReadWord(ctx context.Context, req *Request) (uint32, bool)
	// WriteWord starts or advances a single word write.
	WriteWord(ctx context.Context, req *Request) bool
	// ReadBlock starts or advances a full cache-line sized read.
	ReadBlock(ctx context.Context, req *Request) bool
	// WriteBlock starts or advances a full cache-line sized write
	// (write-back of a dirty victim, or a direct block store).
	WriteBlock(ctx context.Context, req *Request) bool
	// FlushBlock writes back the block containing addr if dirty,
	// leaving it resident (clean) in the cache.
	FlushBlock(ctx context.Context, addr uint32) bool
	// PurgeBlock evicts the block containing addr, writing it back
	// first if dirty.
	PurgeBlock(ctx context.Context, addr uint32) bool
	// AbortOp cancels any in-flight request, used when a pipeline
	// flush invalidates the instruction that issued it.
	AbortOp()
	// Latency returns the fixed per-access latency of this layer,
	// used for scheduling and statistics.
	Latency() uint32
}

// Stats accumulates simple per-layer counters. Cache, RAM, PDC and IO
// each embed one and expose it for driver-level reporting.
type Stats struct {
	Hits, Misses   uint64
	Reads, Writes  uint64
	FillCycles     uint64
	WriteBackCount uint64
}

func (s *Stats) recordHit()  { s.Hits++ }
func (s *Stats) recordMiss() { s.Misses++ }

// arbiter grants a shared downstream layer to at most one in-flight
// Request at a time, resolving same-cycle contention (an instruction
// fetch and a data access both missing into the same unified L2 or
// router) by priority: the higher priority request is granted, and a
// lower priority incumbent is preempted rather than queued, since
// nothing here models request queuing beyond "try again next cycle".
type arbiter struct {
	owner *Request
}

// acquire reports whether req may proceed against the arbitrated layer
// this cycle, granting or retaining ownership as needed.
func (a *arbiter) acquire(req *Request) bool {
	switch {
	case a.owner == nil || a.owner == req:
		a.owner = req
		return true
	case req.Priority > a.owner.Priority:
		a.owner = req
		return true
	default:
		return false
	}
}

// release gives up ownership once req has finished with the layer.
func (a *arbiter) release(req *Request) {
	if a.owner == req {
		a.owner = nil
	}
}

// stepLatency advances a request one cycle through a pure fixed-delay
// access: the first call arms req with the given latency and puts it
// in Busy (a request a cache has already moved to Busy, with nothing
// armed yet, is armed the same way), subsequent calls count it down,
// the call that reaches zero marks Done and returns true.
func stepLatency(req *Request, latency uint32) bool {
	if req.State == Idle || (req.State == Busy && req.Latency == 0) {
		req.State = Busy
		req.Latency = int(latency)
	}
	if req.Latency > 0 {
		req.Latency--
	}
	if req.Latency <= 0 {
		req.State = Done
		return true
	}
	return false
}
