package core

import (
	"context"

	"github.com/rcornwell/vcpu32/emu/cpu"
	"github.com/rcornwell/vcpu32/emu/memory"
	"github.com/rcornwell/vcpu32/emu/tlb"
	"github.com/rcornwell/vcpu32/emu/trap"
)

// operand reads general register id, taking the EX stage's bypassed
// result instead of the committed register file value when EX is
// about to write that same register this cycle - the register file
// itself will not reflect it until the end-of-cycle Tick.
func (c *Core) operand(id uint32, ex Micro) uint32 {
	if id >= cpu.NumGReg {
		return 0
	}
	if ex.Valid && ex.RegDst == id {
		return ex.Result
	}
	return c.Regs.GReg[id].Get()
}

// protectIDMatches reports whether id satisfies the access-id
// protection check against the four protect-id control registers. An
// entry tagged with id 0 is exempt by convention (an untagged page),
// matching any access regardless of the control registers' contents.
func (c *Core) protectIDMatches(id uint16) bool {
	if id == 0 {
		return true
	}
	want := uint32(id)
	return c.Regs.CReg[cpu.CrProtectID1].Get() == want ||
		c.Regs.CReg[cpu.CrProtectID2].Get() == want ||
		c.Regs.CReg[cpu.CrProtectID3].Get() == want ||
		c.Regs.CReg[cpu.CrProtectID4].Get() == want
}

// runMA resolves register operands (with EX bypass), computes
// effective addresses and drives data side TLB/cache accesses for
// loads and stores. It reports stall=true while a multi-cycle memory
// operation it issued is still in flight; cycle() holds the FD->MA
// latch and sends EX a bubble for as long as that lasts, which is how
// a cache miss propagates upstream as a pipeline stall instead of
// corrupting program order. A DTLB miss traps rather than stalls.
func (c *Core) runMA(ctx context.Context, in Micro, ex Micro) (Micro, bool) {
	if !in.Valid {
		return in, false
	}
	out := in
	out.RegDst = cpu.RegSentinel

	if !in.FDTrap.None() {
		out.MATrap = in.FDTrap
		return out, false
	}

	a := c.operand(in.Instr.R1, ex)
	b := uint32(0)
	if in.Instr.R2 < cpu.NumGReg {
		b = c.operand(in.Instr.R2, ex)
	}
	out.OpA, out.OpB = a, b

	switch in.Instr.Op {
	case cpu.OpLD:
		addr := b + uint32(in.Instr.Imm)
		out.EffAddr = addr
		val, trapRec, done := c.dataAccess(ctx, in, addr, false, 0)
		if !done {
			return out, true
		}
		c.dReq = memory.Request{}
		if !trapRec.None() {
			out.MATrap = trapRec
			return out, false
		}
		out.LoadVal = val
	case cpu.OpST:
		addr := b + uint32(in.Instr.Imm)
		out.EffAddr = addr
		_, trapRec, done := c.dataAccess(ctx, in, addr, true, a)
		if !done {
			return out, true
		}
		c.dReq = memory.Request{}
		if !trapRec.None() {
			out.MATrap = trapRec
			return out, false
		}
	case cpu.OpITLB, cpu.OpPTLB, cpu.OpPCA:
		out.EffAddr = b + uint32(in.Instr.Imm)
	}
	return out, false
}

// dataAccess resolves vaddr through the data TLB (if translation is
// enabled), checks page protection and access id, then drives the
// access against the IO router or the L1 data cache through the
// non-blocking Layer interface, using the Core's persisted dReq so the
// same in-flight request is polled across as many cycles as it takes
// to finish. The third return value reports whether the access has
// completed this call; the caller holds MA open (a pipeline stall)
// for as long as it reports false.
func (c *Core) dataAccess(ctx context.Context, in Micro, vaddr uint32, write bool, storeVal uint32) (uint32, trap.Record, bool) {
	status := c.Regs.Status()
	phys := vaddr
	if status&cpu.StatusDataTranslateEnable != 0 {
		if c.dtlb == nil {
			return 0, trap.Record{ID: trap.MachineCheck, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}, true
		}
		seg := c.Regs.SReg[0].Get()
		res := c.dtlb.Lookup(seg, vaddr)
		if !res.Hit {
			return 0, trap.Record{ID: trap.DTLBMiss, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}, true
		}
		level := cpu.ExecutionLevel(status)
		if write {
			if level > res.Entry.PrivL2 {
				return 0, trap.Record{ID: trap.DTLBAccessRights, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}, true
			}
			if res.Entry.Type != tlb.PageReadWrite {
				return 0, trap.Record{ID: trap.DataMemProtect, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}, true
			}
		} else {
			if level > res.Entry.PrivL1 {
				return 0, trap.Record{ID: trap.DTLBAccessRights, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}, true
			}
			if res.Entry.Type == tlb.PageGateway {
				return 0, trap.Record{ID: trap.DataMemProtect, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}, true
			}
		}
		if status&cpu.StatusProtectIDCheckEnable != 0 && !c.protectIDMatches(res.Entry.ProtectID) {
			return 0, trap.Record{ID: trap.DTLBProtectID, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}, true
		}
		if res.Entry.TrapOnAccess {
			return 0, trap.Record{ID: trap.DTLBNonAccess, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}, true
		}
		phys = res.PhysAdr
		if write {
			c.dtlb.MarkDirty(seg, vaddr)
		}
	}

	if !c.router.InRange(phys) {
		return 0, trap.Record{ID: trap.PhysAddressCheck, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}, true
	}

	c.dReq.Addr = phys
	c.dReq.Priority = memory.PriorityData
	var layer memory.Layer = c.l1d
	if c.router.InIO(phys) {
		layer = c.router
	}
	if write {
		c.dReq.Data = []uint32{storeVal}
		if !layer.WriteWord(ctx, &c.dReq) {
			return 0, trap.Record{}, false
		}
		return 0, trap.Record{}, true
	}
	v, ok := layer.ReadWord(ctx, &c.dReq)
	if !ok {
		return 0, trap.Record{}, false
	}
	return v, trap.Record{}, true
}
