package memory

import (
	"context"
	"testing"
)

func TestRAMReadWriteRoundTrip(t *testing.T) {
	ram := NewRAM(16, 2)
	ctx := context.Background()

	wreq := &Request{Addr: 8, Data: []uint32{0xdeadbeef}}
	for !ram.WriteWord(ctx, wreq) {
	}

	rreq := &Request{Addr: 8}
	var got uint32
	var ok bool
	for !ok {
		got, ok = ram.ReadWord(ctx, rreq)
	}
	if got != 0xdeadbeef {
		t.Fatalf("got %#x, want 0xdeadbeef", got)
	}
}

func TestCacheHitAfterFill(t *testing.T) {
	ram := NewRAM(64, 1)
	ctx := context.Background()

	seed := &Request{Addr: 32, Data: []uint32{123}}
	for !ram.WriteWord(ctx, seed) {
	}

	c := NewCache(4, 2, 4, 1, AccessData, ram)

	req1 := &Request{Addr: 32}
	var v uint32
	var ok bool
	for !ok {
		v, ok = c.ReadWord(ctx, req1)
	}
	if v != 123 {
		t.Fatalf("miss path got %d, want 123", v)
	}
	if c.Stats.Misses != 1 {
		t.Fatalf("expected exactly one miss, got %d", c.Stats.Misses)
	}

	req2 := &Request{Addr: 32}
	ok = false
	for !ok {
		v, ok = c.ReadWord(ctx, req2)
	}
	if v != 123 || c.Stats.Hits != 1 {
		t.Fatalf("expected a cache hit on second read, hits=%d", c.Stats.Hits)
	}
}

func TestCacheWriteBackOnEviction(t *testing.T) {
	ram := NewRAM(256, 1)
	ctx := context.Background()
	c := NewCache(1, 1, 4, 1, AccessData, ram) // one set, one way: every new block evicts.

	w1 := &Request{Addr: 0, Data: []uint32{1}}
	for !c.WriteWord(ctx, w1) {
	}
	// Touch a different block mapping to the same (only) set/way, forcing
	// the dirty block at address 0 to write back to RAM first.
	w2 := &Request{Addr: 16, Data: []uint32{2}}
	for !c.WriteWord(ctx, w2) {
	}

	rreq := &Request{Addr: 0}
	var v uint32
	var ok bool
	for !ok {
		v, ok = ram.ReadWord(ctx, rreq)
	}
	if v != 1 {
		t.Fatalf("dirty victim was not written back: ram[0]=%d, want 1", v)
	}
}

func TestIODeviceDispatch(t *testing.T) {
	io := NewIO(0x1000, 0x2000, 1)
	dev := &countingDevice{}
	io.RegisterDevice(0x1004, dev)

	ctx := context.Background()
	w := &Request{Addr: 0x1004, Data: []uint32{7}}
	for !io.WriteWord(ctx, w) {
	}
	if dev.last != 7 {
		t.Fatalf("device did not observe write, last=%d", dev.last)
	}
}

// TestArbiterPreemptsLowerPriority exercises the same contention a
// unified L2 or the router sees when an instruction fetch miss and a
// data access miss land on it the same cycle: the higher priority
// (data) request preempts a lower priority (instruction fetch) owner
// rather than queuing behind it, and the preempted request's own fill
// makes no progress while it is denied the arbiter.
func TestArbiterPreemptsLowerPriority(t *testing.T) {
	ram := NewRAM(64, 1)
	ctx := context.Background()
	c := NewCache(4, 2, 4, 1, AccessData, ram)

	low := &Request{Addr: 0, Priority: PriorityInstrFetch}
	if _, ok := c.ReadWord(ctx, low); ok {
		t.Fatalf("expected a miss in progress, not a completed read")
	}
	if low.sub == nil || low.sub.Latency != 3 {
		t.Fatalf("low priority request did not start its fill: sub=%+v", low.sub)
	}

	high := &Request{Addr: 64, Priority: PriorityData}
	if _, ok := c.ReadWord(ctx, high); ok {
		t.Fatalf("expected a miss in progress, not a completed read")
	}
	if high.sub == nil || high.sub.Latency != 3 {
		t.Fatalf("high priority request was denied the arbiter: sub=%+v", high.sub)
	}

	if _, ok := c.ReadWord(ctx, low); ok {
		t.Fatalf("low priority request should still be denied")
	}
	if low.sub.Latency != 3 {
		t.Fatalf("low priority request advanced while preempted: latency=%d, want 3", low.sub.Latency)
	}

	// AbortOp discards whatever request currently holds the arbiter -
	// the low priority request can resume once it is the only
	// contender left.
	c.AbortOp()
	if _, ok := c.ReadWord(ctx, low); ok {
		t.Fatalf("expected a miss in progress, not a completed read")
	}
	if low.sub.Latency != 2 {
		t.Fatalf("low priority request did not resume after AbortOp: latency=%d, want 2", low.sub.Latency)
	}
}

type countingDevice struct{ last uint32 }

func (d *countingDevice) ReadWord(addr uint32) uint32  { return d.last }
func (d *countingDevice) WriteWord(addr uint32, v uint32) { d.last = v }
