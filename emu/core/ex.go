package core

import (
	"context"

	"github.com/rcornwell/vcpu32/emu/cpu"
	"github.com/rcornwell/vcpu32/emu/tlb"
	"github.com/rcornwell/vcpu32/emu/trap"
)

// runEX performs the arithmetic/logical/branch computation for the
// instruction MA finished last cycle, writes back its general
// register result, and is the stage that ultimately commits a
// precise trap: in carries what MA produced for this instruction last
// cycle, so any MATrap field on it is this instruction's own fault from
// an earlier stage and is taken before EX computes anything, in place
// of a fault EX would otherwise raise.
//
// The second return value reports whether EX needs to hold the cycle
// open: an ITLB.A/ITLB.P insert charges the TLB's configured latency
// through the same Step state machine a cache miss uses, and until
// that resolves the instruction has not actually finished executing.
func (c *Core) runEX(in Micro) (Micro, bool) {
	out := in
	out.RegDst = cpu.RegSentinel
	if !in.Valid {
		return out, false
	}

	status := c.Regs.Status()
	level := cpu.ExecutionLevel(status)

	if !in.MATrap.None() {
		out.Trap = in.MATrap
		return c.handleTrap(out.Trap), false
	}

	instr := in.Instr
	if privileged(instr.Op) && level != 0 {
		t := trap.Record{ID: trap.PrivilegedInstruction, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}
		return c.handleTrap(t), false
	}

	if c.extInt && status&cpu.StatusInterruptEnable != 0 {
		c.extInt = false
		t := trap.Record{ID: trap.ExternalInterrupt, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}
		return c.handleTrap(t), false
	}

	switch instr.Op {
	case cpu.OpADD:
		a, b := int32(in.OpA), int32(in.OpB)
		useCarry := instr.Flag&1 != 0
		trapOvf := instr.Flag&2 != 0
		var carryIn int32
		if useCarry && status&cpu.StatusCarry != 0 {
			carryIn = 1
		}
		sum := a + b + carryIn
		overflowed := ((a >= 0 && b >= 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0))
		if trapOvf && overflowed {
			return c.handleTrap(trap.Record{ID: trap.Overflow, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}), false
		}
		out.Result = uint32(sum)
		out.RegDst = instr.R1
		c.setCarry(uint64(in.OpA)+uint64(in.OpB)+uint64(carryIn) > 0xffffffff)
	case cpu.OpSUB:
		a, b := int32(in.OpA), int32(in.OpB)
		useCarry := instr.Flag&1 != 0
		trapOvf := instr.Flag&2 != 0
		var borrow int32
		if useCarry && status&cpu.StatusCarry != 0 {
			borrow = 1
		}
		diff := a - b - borrow
		overflowed := (a >= 0 && b < 0 && diff < 0) || (a < 0 && b >= 0 && diff >= 0)
		if trapOvf && overflowed {
			return c.handleTrap(trap.Record{ID: trap.Overflow, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}), false
		}
		out.Result = uint32(diff)
		out.RegDst = instr.R1
		c.setCarry(uint64(in.OpA) < uint64(in.OpB)+uint64(borrow))
	case cpu.OpAND:
		b := in.OpB
		if instr.Flag&2 != 0 {
			b = ^b
		}
		r := in.OpA & b
		if instr.Flag&1 != 0 {
			r = ^r
		}
		out.Result, out.RegDst = r, instr.R1
	case cpu.OpOR:
		b := in.OpB
		if instr.Flag&2 != 0 {
			b = ^b
		}
		r := in.OpA | b
		if instr.Flag&1 != 0 {
			r = ^r
		}
		out.Result, out.RegDst = r, instr.R1
	case cpu.OpXOR:
		r := in.OpA ^ in.OpB
		if instr.Flag&1 != 0 {
			r = ^r
		}
		out.Result, out.RegDst = r, instr.R1
	case cpu.OpCMP:
		c.setCarry(cpu.EvalCondSigned(int32(in.OpA), int32(in.OpB), instr.Flag))
	case cpu.OpCMPU:
		c.setCarry(cpu.EvalCondUnsigned(in.OpA, in.OpB, instr.Flag))
	case cpu.OpEXTR:
		pos, length := uint(in.Instr.Imm), uint(instr.Len)
		r := cpu.Field(in.OpA, pos, length)
		if instr.Flag&1 != 0 {
			r = uint32(cpu.LowSignExt(r<<1|1, length+1))
		}
		out.Result, out.RegDst = r, instr.R1
	case cpu.OpDEP:
		pos, length := uint(in.Instr.Imm), uint(instr.Len)
		shift := 32 - pos - length
		mask := (uint32(1)<<length - 1) << shift
		r := (in.OpA &^ mask) | ((in.OpB << shift) & mask)
		out.Result, out.RegDst = r, instr.R1
	case cpu.OpDSR:
		amt := uint(in.Instr.Imm) & 31
		hi, lo := in.OpA, in.OpB
		r := uint32((uint64(hi)<<32 | uint64(lo)) >> amt)
		out.Result, out.RegDst = r, instr.R1
	case cpu.OpSHLA:
		amt := uint(in.Instr.Imm) & 3
		r := (in.OpA << amt) + in.OpB
		out.Result, out.RegDst = r, instr.R1
	case cpu.OpLDIL:
		out.Result, out.RegDst = uint32(instr.Imm)<<11, instr.R1
	case cpu.OpLDO, cpu.OpLDA:
		out.Result, out.RegDst = in.OpB+uint32(instr.Imm), instr.R1
	case cpu.OpLD:
		out.Result, out.RegDst = in.LoadVal, instr.R1
	case cpu.OpST:
		// side effect already performed in MA.
	case cpu.OpB, cpu.OpBL:
		out = c.takeBranch(out, in.Seg, uint32(int32(in.PC)+instr.Imm))
		if instr.Op == cpu.OpBL {
			out.Result, out.RegDst = in.PC+4, instr.R1
		}
	case cpu.OpBR, cpu.OpBLR:
		out = c.takeBranch(out, in.Seg, in.OpA)
		if instr.Op == cpu.OpBLR {
			out.Result, out.RegDst = in.PC+4, instr.R1
		}
	case cpu.OpBV, cpu.OpBVR:
		out = c.takeBranch(out, in.Seg, in.OpB)
	case cpu.OpBE, cpu.OpBLE:
		out = c.takeBranch(out, in.OpA, uint32(int32(in.OpB)+instr.Imm))
		if instr.Op == cpu.OpBLE {
			out.Result, out.RegDst = in.PC+4, instr.R1
		}
	case cpu.OpCBR:
		if cpu.EvalCondSigned(int32(in.OpA), int32(in.OpB), instr.Flag) {
			out = c.takeBranch(out, in.Seg, uint32(int32(in.PC)+instr.Imm))
		}
	case cpu.OpCBRU:
		if cpu.EvalCondUnsigned(in.OpA, in.OpB, instr.Flag) {
			out = c.takeBranch(out, in.Seg, uint32(int32(in.PC)+instr.Imm))
		}
	case cpu.OpMR:
		class := instr.Flag >> 1
		dir := instr.Flag & 1
		if dir == 0 {
			out.Result, out.RegDst = c.moveReg(instr, class), instr.R1
		} else {
			val := in.OpA
			switch class {
			case 1:
				idx := int(instr.R2 % cpu.NumSReg)
				if !cpu.SegWriteAllowed(idx, level) {
					t := trap.Record{ID: trap.PrivilegedInstruction, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}
					return c.handleTrap(t), false
				}
				c.Regs.SReg[idx].Set(val)
			case 2:
				if level != 0 {
					t := trap.Record{ID: trap.PrivilegedInstruction, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}
					return c.handleTrap(t), false
				}
				c.Regs.CReg[instr.R2%cpu.NumCReg].Set(val)
			default:
				out.Result, out.RegDst = val, instr.R1
			}
		}
	case cpu.OpMST:
		s := c.Regs.Status()
		switch instr.Flag {
		case 0:
			s |= uint32(instr.Imm)
		case 1:
			s &^= uint32(instr.Imm)
		default:
			s = uint32(instr.Imm)
		}
		c.Regs.SetStatus(s)
	case cpu.OpGATE:
		target := uint32(int32(in.PC) + instr.Imm)
		seg := c.Regs.SReg[instr.R2%cpu.NumSReg].Get()
		newLevel := uint32(0)
		if c.itlb != nil {
			if res := c.itlb.Lookup(seg, target); res.Hit && res.Entry.Type == tlb.PageGateway {
				newLevel = res.Entry.PrivL2
			}
		}
		c.Regs.SetStatus(cpu.WithExecutionLevel(c.Regs.Status(), newLevel))
		out = c.takeBranch(out, seg, target)
	case cpu.OpRFI:
		psw0 := c.Regs.CReg[cpu.CrTrapPSW0].Get()
		psw1 := c.Regs.CReg[cpu.CrTrapPSW1].Get()
		c.Regs.PSW0.Set(psw0)
		c.Regs.PSW1.Set(psw1)
		out.Branch = true
		out.BranchTarget.Seg = cpu.PSW0Segment(psw0)
		out.BranchTarget.Ofs = psw1
		c.Regs.SetStatus(cpu.PSW0Status(psw0))
	case cpu.OpBRK:
		if instr.R1 != 0 || instr.R2 != 0 {
			return c.handleTrap(trap.Record{ID: trap.Break, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC, Parm1: instr.R1, Parm2: instr.R2}), false
		}
	case cpu.OpITLB:
		if !c.execITLB(instr, in.OpB) {
			return in, true
		}
		c.itlbOp = tlb.Op{}
	case cpu.OpPTLB:
		seg := c.Regs.SReg[instr.R1%cpu.NumSReg].Get()
		if c.dtlb != nil {
			c.dtlb.Purge(seg, in.EffAddr)
		}
		if c.itlb != nil && c.itlb != c.dtlb {
			c.itlb.Purge(seg, in.EffAddr)
		}
	case cpu.OpPCA:
		c.execPCA(instr, in.EffAddr)
	case cpu.OpDIAG:
		// no architected effect; reserved for implementation diagnostics.
	default:
		return c.handleTrap(trap.Record{ID: trap.IllegalInstruction, PSW0: cpu.MakePSW0(in.Seg, status), PSW1: in.PC}), false
	}

	if out.RegDst < cpu.NumGReg {
		c.Regs.GReg[out.RegDst].Set(out.Result)
	}
	out.Retired = true
	return out, false
}

func (c *Core) takeBranch(out Micro, seg, ofs uint32) Micro {
	out.Branch = true
	out.BranchTarget.Seg = seg
	out.BranchTarget.Ofs = ofs
	return out
}

func (c *Core) setCarry(v bool) {
	s := c.Regs.Status()
	if v {
		s |= cpu.StatusCarry
	} else {
		s &^= cpu.StatusCarry
	}
	c.Regs.SetStatus(s)
}

// moveReg reads the MR source register out of the general, segment or
// control file according to class (0/1/2), mirroring the destination
// side's own class selector in runEX's OpMR case.
func (c *Core) moveReg(instr cpu.Instr, class uint32) uint32 {
	switch class {
	case 1:
		return c.Regs.SReg[instr.R2%cpu.NumSReg].Get()
	case 2:
		return c.Regs.CReg[instr.R2%cpu.NumCReg].Get()
	default:
		return c.Regs.GReg[instr.R2%cpu.NumGReg].Get()
	}
}

// execITLB drives one cycle of the ITLB.A/ITLB.P insert the instruction
// requests, charging the TLB's configured latency before the address
// tag or protection attributes actually land in the table. It reports
// whether the half has finished this cycle; the caller holds EX open
// until it has.
func (c *Core) execITLB(instr cpu.Instr, addr uint32) bool {
	t := c.itlb
	if t == nil {
		return true
	}
	seg := c.Regs.SReg[instr.R1%cpu.NumSReg].Get()
	if instr.Flag&1 == 0 {
		return t.StepInsertAddress(&c.itlbOp, seg, addr, addr)
	}
	pageType := tlb.PageType(instr.PType)
	return t.StepInsertProtection(&c.itlbOp, seg, addr, pageType, instr.PrivL1, instr.PrivL2, uint16(instr.ProtectID), instr.TrapOnAcc != 0)
}

func (c *Core) execPCA(instr cpu.Instr, addr uint32) {
	isFlush := instr.Flag&2 == 0
	isData := instr.Flag&1 != 0
	layer := c.l1i
	if isData {
		layer = c.l1d
	}
	if isFlush {
		layer.FlushBlock(context.Background(), addr)
	} else {
		layer.PurgeBlock(context.Background(), addr)
	}
}

func privileged(op uint32) bool {
	switch op {
	case cpu.OpRFI, cpu.OpITLB, cpu.OpPTLB, cpu.OpMST:
		return true
	default:
		return false
	}
}
