package memory

import "context"

// Cache is an N-way set-associative cache sitting in front of a
// downstream Layer (another cache, RAM, or PDC). It serves L1
// instruction, L1 data and the optional unified L2 alike; the only
// behavioral difference between them is which downstream Layer they
// wrap; Kind records the side a cache was built for and is not checked
// against requests.
//
// A miss issues a full block read against the downstream layer and
// blocks further progress on the same request until the fill
// completes; a dirty victim is written back first. Victim selection
// within a set is round robin.
type Cache struct {
	Sets, Ways, BlockWords int
	Kind                   AccessKind // AccessInstr for I-cache, AccessData for D/unified
	latency                uint32
	downstream             Layer

	tagAddr [][]uint32
	valid   [][]bool
	dirty   [][]bool
	data    [][][]uint32
	rr      []int

	arb arbiter

	Stats Stats
}

// NewCache builds a cache with the given geometry over downstream.
func NewCache(sets, ways, blockWords int, latency uint32, kind AccessKind, downstream Layer) *Cache {
	c := &Cache{
		Sets: sets, Ways: ways, BlockWords: blockWords,
		Kind: kind, latency: latency, downstream: downstream,
	}
	c.tagAddr = make([][]uint32, sets)
	c.valid = make([][]bool, sets)
	c.dirty = make([][]bool, sets)
	c.data = make([][][]uint32, sets)
	c.rr = make([]int, sets)
	for s := 0; s < sets; s++ {
		c.tagAddr[s] = make([]uint32, ways)
		c.valid[s] = make([]bool, ways)
		c.dirty[s] = make([]bool, ways)
		c.data[s] = make([][]uint32, ways)
		for w := 0; w < ways; w++ {
			c.data[s][w] = make([]uint32, blockWords)
		}
	}
	return c
}

func (c *Cache) Latency() uint32 { return c.latency }

func (c *Cache) blockBytes() uint32 { return uint32(c.BlockWords) * 4 }

func (c *Cache) blockBase(addr uint32) uint32 {
	bb := c.blockBytes()
	return addr &^ (bb - 1)
}

func (c *Cache) setIndex(addr uint32) int {
	return int((c.blockBase(addr) / c.blockBytes()) % uint32(c.Sets))
}

func (c *Cache) lookup(addr uint32) (set, way int, hit bool) {
	set = c.setIndex(addr)
	base := c.blockBase(addr)
	for w := 0; w < c.Ways; w++ {
		if c.valid[set][w] && c.tagAddr[set][w] == base {
			return set, w, true
		}
	}
	return set, -1, false
}

// pickVictim returns the next way to evict in set, round robin.
func (c *Cache) pickVictim(set int) int {
	w := c.rr[set]
	c.rr[set] = (w + 1) % c.Ways
	return w
}

// resolveMiss drives the fill state machine for req, which must have
// State == Fill. Returns true once the block is installed.
func (c *Cache) resolveMiss(ctx context.Context, req *Request) bool {
	set := c.setIndex(req.Addr)
	if req.sub == nil {
		way := c.pickVictim(set)
		req.victim = way
		if c.valid[set][way] && c.dirty[set][way] {
			wb := &Request{Addr: c.tagAddr[set][way], Data: append([]uint32(nil), c.data[set][way]...), Dirty: true}
			req.sub = wb
			if !c.downstream.WriteBlock(ctx, wb) {
				return false
			}
			c.Stats.WriteBackCount++
			req.sub = &Request{Addr: c.blockBase(req.Addr), Data: make([]uint32, c.BlockWords)}
		} else {
			req.sub = &Request{Addr: c.blockBase(req.Addr), Data: make([]uint32, c.BlockWords)}
		}
	}
	if req.sub.Dirty {
		// still draining a write-back issued on a previous call before
		// the fill itself has even started.
		if !c.downstream.WriteBlock(ctx, req.sub) {
			return false
		}
		c.Stats.WriteBackCount++
		req.sub = &Request{Addr: c.blockBase(req.Addr), Data: make([]uint32, c.BlockWords)}
		return false
	}
	if req.sub.State != Done {
		if !c.downstream.ReadBlock(ctx, req.sub) {
			return false
		}
	}
	set, way := c.setIndex(req.Addr), req.victim
	c.tagAddr[set][way] = c.blockBase(req.Addr)
	c.valid[set][way] = true
	c.dirty[set][way] = false
	copy(c.data[set][way], req.sub.Data)
	c.Stats.FillCycles += uint64(c.BlockWords)
	req.sub = nil
	return true
}

func (c *Cache) ReadWord(ctx context.Context, req *Request) (uint32, bool) {
	if !c.arb.acquire(req) {
		return 0, false
	}
	if req.State == Idle {
		set, way, hit := c.lookup(req.Addr)
		if hit {
			c.Stats.recordHit()
			req.State = Busy
			req.victim = way
			_ = set
		} else {
			c.Stats.recordMiss()
			req.State = Fill
		}
	}
	if req.State == Fill {
		if !c.resolveMiss(ctx, req) {
			return 0, false
		}
		req.State = Busy
	}
	if !stepLatency(req, c.latency) {
		return 0, false
	}
	set, way, hit := c.lookup(req.Addr)
	if !hit {
		return 0, false
	}
	off := (req.Addr % c.blockBytes()) / 4
	c.arb.release(req)
	return c.data[set][way][off], true
}

func (c *Cache) WriteWord(ctx context.Context, req *Request) bool {
	if !c.arb.acquire(req) {
		return false
	}
	if req.State == Idle {
		_, _, hit := c.lookup(req.Addr)
		if hit {
			c.Stats.recordHit()
			req.State = Busy
		} else {
			c.Stats.recordMiss()
			req.State = Fill
		}
	}
	if req.State == Fill {
		if !c.resolveMiss(ctx, req) {
			return false
		}
		req.State = Busy
	}
	if !stepLatency(req, c.latency) {
		return false
	}
	set, way, hit := c.lookup(req.Addr)
	if !hit || len(req.Data) == 0 {
		c.arb.release(req)
		return true
	}
	off := (req.Addr % c.blockBytes()) / 4
	c.data[set][way][off] = req.Data[0]
	c.dirty[set][way] = true
	c.arb.release(req)
	return true
}

func (c *Cache) ReadBlock(ctx context.Context, req *Request) bool {
	if !c.arb.acquire(req) {
		return false
	}
	if req.State == Idle {
		req.State = Fill
	}
	if req.State == Fill {
		if !c.resolveMiss(ctx, req) {
			return false
		}
		req.State = Busy
	}
	if !stepLatency(req, c.latency) {
		return false
	}
	set, way, _ := c.lookup(req.Addr)
	copy(req.Data, c.data[set][way])
	c.arb.release(req)
	return true
}

func (c *Cache) WriteBlock(ctx context.Context, req *Request) bool {
	if !c.arb.acquire(req) {
		return false
	}
	if req.State == Idle {
		req.State = Fill
	}
	if req.State == Fill {
		if !c.resolveMiss(ctx, req) {
			return false
		}
		req.State = Busy
	}
	if !stepLatency(req, c.latency) {
		return false
	}
	set, way, _ := c.lookup(req.Addr)
	copy(c.data[set][way], req.Data)
	c.dirty[set][way] = true
	c.arb.release(req)
	return true
}

func (c *Cache) FlushBlock(ctx context.Context, addr uint32) bool {
	set, way, hit := c.lookup(addr)
	if !hit || !c.dirty[set][way] {
		return true
	}
	wb := &Request{Addr: c.tagAddr[set][way], Data: append([]uint32(nil), c.data[set][way]...)}
	if !c.downstream.WriteBlock(ctx, wb) {
		return false
	}
	c.dirty[set][way] = false
	c.Stats.WriteBackCount++
	return true
}

func (c *Cache) PurgeBlock(ctx context.Context, addr uint32) bool {
	if !c.FlushBlock(ctx, addr) {
		return false
	}
	set, way, hit := c.lookup(addr)
	if hit {
		c.valid[set][way] = false
	}
	return true
}

// AbortOp cancels whatever Request currently holds this cache's
// arbiter, releasing it so a genuinely new requester is not refused
// service behind a request the caller has discarded on flush. The
// Request's own state lives with the caller and is abandoned there.
func (c *Cache) AbortOp() { c.arb.owner = nil }
