package core

import (
	"context"

	"github.com/rcornwell/vcpu32/emu/cpu"
	"github.com/rcornwell/vcpu32/emu/memory"
	"github.com/rcornwell/vcpu32/emu/tlb"
	"github.com/rcornwell/vcpu32/emu/trap"
)

// MaxCyclesPerInstr bounds InstrStep: an instruction that hasn't
// retired within this many clocks is treated as stuck: InstrStep
// returns the count retired so far rather than looping forever under
// a driver mistake.
const MaxCyclesPerInstr = 100000

// Core owns every piece of architected and microarchitectural state: the
// register files, both TLBs, the cache/memory hierarchy and the three
// pipeline stage latches. Nothing here is a package level global -
// every Core is an independent machine, and the methods below are the
// "core context" each stage's process step is given to read operands
// and latch traps.
type Core struct {
	Regs cpu.RegFile

	cfg Config

	itlb *tlb.TLB
	dtlb *tlb.TLB

	router *memory.Router
	l1i    memory.Layer
	l1d    memory.Layer
	l2     memory.Layer

	fdma StageReg[Micro]
	maex StageReg[Micro]

	cycles   uint64
	instrs   uint64
	stallCnt uint64
	flushCnt uint64

	itlbOp tlb.Op
	iReq   memory.Request
	dReq   memory.Request

	fetchSeg, fetchOfs uint32

	extInt bool
}

// RaiseExternalInterrupt latches a pending external interrupt. It is
// delivered in place of the next instruction to reach EX once
// StatusInterruptEnable is set, mirroring how a real external pin
// would be sampled at an instruction boundary.
func (c *Core) RaiseExternalInterrupt() { c.extInt = true }

// New builds a core from cfg, wiring up the memory hierarchy and TLBs
// according to the descriptor.
func New(cfg Config) *Core {
	c := &Core{cfg: cfg}

	ram := memory.NewRAM(cfg.RAM.SizeWords, cfg.RAM.Latency)
	var pdc *memory.PDC
	if cfg.PDC.SizeWords > 0 {
		pdc = memory.NewPDC(cfg.PDC.SizeWords, cfg.PDC.Latency, nil)
	}
	var io *memory.IO
	if cfg.IO.EndAddr > cfg.IO.StartAddr {
		io = memory.NewIO(cfg.IO.StartAddr, cfg.IO.EndAddr, cfg.IO.Latency)
	}
	c.router = &memory.Router{RAM: ram, PDC: pdc, PDCStart: cfg.PDC.StartAddr, PDCEnd: cfg.PDC.EndAddr, IO: io}

	var belowL1 memory.Layer = c.router
	if cfg.L2Mode == L2Unified {
		c.l2 = memory.NewCache(cfg.CacheL2.Sets, cfg.CacheL2.Ways, cfg.CacheL2.BlockWords, cfg.CacheL2.Latency, memory.AccessData, c.router)
		belowL1 = c.l2
	}
	c.l1i = memory.NewCache(cfg.ICacheL1.Sets, cfg.ICacheL1.Ways, cfg.ICacheL1.BlockWords, cfg.ICacheL1.Latency, memory.AccessInstr, belowL1)
	c.l1d = memory.NewCache(cfg.DCacheL1.Sets, cfg.DCacheL1.Ways, cfg.DCacheL1.BlockWords, cfg.DCacheL1.Latency, memory.AccessData, belowL1)

	switch cfg.TlbMode {
	case TlbSplit:
		c.itlb = tlb.New(cfg.ITlb.Entries, cfg.ITlb.Latency)
		c.dtlb = tlb.New(cfg.DTlb.Entries, cfg.DTlb.Latency)
	case TlbUnified:
		shared := tlb.New(cfg.ITlb.Entries, cfg.ITlb.Latency)
		c.itlb = shared
		c.dtlb = shared
	}

	c.Reset()
	return c
}

// Router exposes the physical memory router for driver-level image
// loading (there is no other way to get code/data into the machine).
func (c *Core) Router() *memory.Router { return c.router }

// ITlb/DTlb expose the TLBs so the driver can pre-load fixed
// translations (e.g. an identity map for PDC/boot code) without
// routing every one of them through the ITLB/DTLB instructions.
func (c *Core) ITlb() *tlb.TLB { return c.itlb }
func (c *Core) DTlb() *tlb.TLB { return c.dtlb }

// Reset restores every register and pipeline latch to its power-on
// value. The memory hierarchy and TLBs are left alone: a reset line on
// a real machine does not erase DRAM or the page cache.
func (c *Core) Reset() {
	c.Regs.Reset()
	c.fdma.Reset(nop())
	c.maex.Reset(nop())
	c.cycles, c.instrs = 0, 0
	c.stallCnt, c.flushCnt = 0, 0
	c.fetchSeg, c.fetchOfs = 0, 0
}

// ClearStats zeroes the cycle/instruction/stall/flush counters without
// disturbing architected state.
func (c *Core) ClearStats() {
	c.cycles, c.instrs, c.stallCnt, c.flushCnt = 0, 0, 0, 0
}

// Cycles and Instrs report the running totals since the last
// ClearStats.
func (c *Core) Cycles() uint64 { return c.cycles }
func (c *Core) Instrs() uint64 { return c.instrs }

// ClockStep advances the machine by n clock cycles.
func (c *Core) ClockStep(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		c.cycle(ctx)
	}
}

// InstrStep runs the machine until n instructions have retired, or
// MaxCyclesPerInstr cycles have elapsed since the last retirement,
// whichever comes first - the latter guards against a driver-supplied
// program that never retires (e.g. a TLB miss loop with no handler
// installed).
func (c *Core) InstrStep(ctx context.Context, n int) int {
	retired := 0
	for retired < n {
		stuck := 0
		before := c.instrs
		for c.instrs == before && stuck < MaxCyclesPerInstr {
			c.cycle(ctx)
			stuck++
		}
		if c.instrs == before {
			return retired
		}
		retired++
	}
	return retired
}

// cycle runs one clock: EX, then MA, then FD, each reading the
// previous stage's last-committed output, then commits every latch
// and register at the edge. Running them in this downstream-first
// order within the cycle - rather than FD first - is what gives the
// trap model its precise-trap property: by the time FD's instruction
// sets a trap, any trap MA or EX set this same cycle (for older
// instructions) has already been latched and cannot be clobbered by a
// younger one.
//
// Each stage can now hold the cycle open on a multi-cycle memory or
// TLB operation still in flight (EX on an ITLB insert, MA on a cache
// miss, FD on an instruction fetch miss). A stalling stage's
// own upstream latch (the one feeding it) is held so the same input
// is retried next cycle; the latch it feeds downstream gets a bubble,
// since it has produced nothing new to pass along. Getting the two
// ends of a stall backwards would let the next stage re-consume and
// re-retire an input it already processed.
func (c *Core) cycle(ctx context.Context) {
	c.cycles++

	exOut, exStall := c.runEX(c.maex.Get())
	if exStall {
		c.stallCnt++
		c.Regs.Tick()
		c.fdma.Tick()
		c.maex.Tick()
		return
	}

	flush := exOut.Branch

	var maOut Micro
	var maStall bool
	if flush {
		// The instruction straight-line fetch placed here was fetched
		// under the assumption this branch would not redirect; once
		// EX resolves otherwise it is simply wrong-path and discarded
		// rather than allowed to reach EX next cycle.
		maOut = nop()
	} else {
		maOut, maStall = c.runMA(ctx, c.fdma.Get(), exOut)
	}

	if maStall {
		c.maex.Set(nop())
		c.fdma.Hold()
		c.stallCnt++
	} else {
		c.maex.Set(maOut)
		if flush {
			c.fetchSeg, c.fetchOfs = exOut.BranchTarget.Seg, exOut.BranchTarget.Ofs
			c.iReq = memory.Request{}
			c.l1i.AbortOp()
			c.router.AbortOp()
		}
		fdOut, fdDone := c.runFD(ctx)
		if fdDone {
			c.fdma.Set(fdOut)
		} else {
			c.fdma.Set(nop())
		}
	}

	if exOut.Retired {
		c.instrs++
	}
	if flush {
		c.flushCnt++
	}

	c.Regs.Tick()
	c.fdma.Tick()
	c.maex.Tick()
}

// handleTrap is invoked by EX once a trap has been latched by any
// stage this cycle: it vectors the PC to the trap handler and saves
// the interrupted PSW for RFI to restore.
func (c *Core) handleTrap(t trap.Record) Micro {
	c.Regs.SetPendingTrap(t.ID, t.PSW0, t.PSW1, t.Parm1, t.Parm2, t.Parm3)
	vector := c.Regs.CReg[cpu.CrTrapVectorAdr].Get()
	handler := trap.HandlerAddress(vector, t.ID)
	level := cpu.WithExecutionLevel(cpu.PSW0Status(t.PSW0), 0)
	seg := cpu.PSW0Segment(t.PSW0)
	c.Regs.PSW0.Set(cpu.MakePSW0(seg, level))
	c.Regs.PSW1.Set(handler)

	out := nop()
	out.RegDst = cpu.RegSentinel
	out.Branch = true
	out.BranchTarget.Seg = seg
	out.BranchTarget.Ofs = handler
	return out
}
