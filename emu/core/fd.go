package core

import (
	"context"

	"github.com/rcornwell/vcpu32/emu/cpu"
	"github.com/rcornwell/vcpu32/emu/memory"
	"github.com/rcornwell/vcpu32/emu/tlb"
	"github.com/rcornwell/vcpu32/emu/trap"
)

// runFD translates and fetches one instruction. A translation fault is
// latched onto the Micro as FDTrap rather than resolved here: trap
// entry always happens in EX, once the faulting instruction has moved
// all the way down the pipeline, which is what keeps trap delivery
// precise against instructions still ahead of it in MA/EX.
//
// The fetch itself goes through the non-blocking cache/router Layer
// and can take several cycles on a miss; the second return value
// reports whether it resolved this call. fetchSeg/fetchOfs only
// advance once the fetch is actually done (trap or successful fill),
// so a stalled fetch retries the exact same PC rather than skipping
// ahead of an instruction it never produced.
func (c *Core) runFD(ctx context.Context) (Micro, bool) {
	seg, ofs := c.fetchSeg, c.fetchOfs
	status := c.Regs.Status()

	out := Micro{Valid: true, PC: ofs, Seg: seg, RegDst: cpu.RegSentinel}

	phys := ofs
	switch {
	case status&cpu.StatusCodeTranslateEnable == 0 || c.router.InPDC(ofs):
		if status&cpu.StatusCodeTranslateEnable == 0 && cpu.ExecutionLevel(status) != 0 {
			out.FDTrap = trap.Record{ID: trap.InstrMemProtect, PSW0: cpu.MakePSW0(seg, status), PSW1: ofs}
		}
	case c.itlb == nil:
		out.FDTrap = trap.Record{ID: trap.MachineCheck, PSW0: cpu.MakePSW0(seg, status), PSW1: ofs}
	default:
		res := c.itlb.Lookup(seg, ofs)
		switch {
		case !res.Hit:
			out.FDTrap = trap.Record{ID: trap.ITLBMiss, PSW0: cpu.MakePSW0(seg, status), PSW1: ofs}
		case cpu.ExecutionLevel(status) > res.Entry.PrivL1:
			out.FDTrap = trap.Record{ID: trap.ITLBAccessRights, PSW0: cpu.MakePSW0(seg, status), PSW1: ofs}
		case res.Entry.Type != tlb.PageExecute && res.Entry.Type != tlb.PageGateway:
			out.FDTrap = trap.Record{ID: trap.InstrMemProtect, PSW0: cpu.MakePSW0(seg, status), PSW1: ofs}
		case status&cpu.StatusProtectIDCheckEnable != 0 && !c.protectIDMatches(res.Entry.ProtectID):
			out.FDTrap = trap.Record{ID: trap.ITLBProtectID, PSW0: cpu.MakePSW0(seg, status), PSW1: ofs}
		case res.Entry.TrapOnAccess:
			out.FDTrap = trap.Record{ID: trap.ITLBNonAccess, PSW0: cpu.MakePSW0(seg, status), PSW1: ofs}
		default:
			phys = res.PhysAdr
		}
	}

	if out.FDTrap.None() && !c.router.InRange(phys) {
		out.FDTrap = trap.Record{ID: trap.PhysAddressCheck, PSW0: cpu.MakePSW0(seg, status), PSW1: ofs}
	}

	if !out.FDTrap.None() {
		c.fetchSeg, c.fetchOfs = seg, ofs+4
		c.iReq = memory.Request{}
		return out, true
	}

	c.iReq.Addr = phys
	c.iReq.Priority = memory.PriorityInstrFetch
	var layer memory.Layer = c.l1i
	if c.router.InPDC(phys) {
		layer = c.router
	}
	raw, ok := layer.ReadWord(ctx, &c.iReq)
	if !ok {
		return out, false
	}
	c.iReq = memory.Request{}
	c.fetchSeg, c.fetchOfs = seg, ofs+4

	out.Raw = raw
	out.Instr = cpu.Decode(raw)
	return out, true
}
