package core

import "github.com/rcornwell/vcpu32/emu/cpu"

// GetReg reads one architected or pipeline-visible register, selected
// by class and index. It is the read half of the driver's inspection
// interface and never participates in the datapath itself.
func (c *Core) GetReg(class cpu.RegClass, index uint32) uint32 {
	switch class {
	case cpu.RegClassGeneral:
		return c.Regs.GReg[index%cpu.NumGReg].Get()
	case cpu.RegClassSegment:
		return c.Regs.SReg[index%cpu.NumSReg].Get()
	case cpu.RegClassControl:
		return c.Regs.CReg[index%cpu.NumCReg].Get()
	case cpu.RegClassProgState:
		switch index {
		case cpu.PsRegSeg:
			return cpu.PSW0Segment(c.Regs.PSW0.Get())
		case cpu.PsRegOfs:
			return c.Regs.PSW1.Get()
		case cpu.PsRegStatus:
			return c.Regs.Status()
		}
	case cpu.RegClassFDStage:
		return fieldOfMicro(c.fdma.Get(), index)
	case cpu.RegClassMAStage:
		return fieldOfMicro(c.maex.Get(), index)
	}
	return 0
}

// SetReg writes one architected register. Writing a pipeline stage
// register class is not supported - those are read-only debug
// windows, not a way to inject state mid-pipeline.
func (c *Core) SetReg(class cpu.RegClass, index uint32, value uint32) {
	switch class {
	case cpu.RegClassGeneral:
		c.Regs.GReg[index%cpu.NumGReg].Load(value)
	case cpu.RegClassSegment:
		c.Regs.SReg[index%cpu.NumSReg].Load(value)
	case cpu.RegClassControl:
		c.Regs.CReg[index%cpu.NumCReg].Load(value)
	case cpu.RegClassProgState:
		switch index {
		case cpu.PsRegSeg:
			c.Regs.PSW0.Load(cpu.MakePSW0(value, c.Regs.Status()))
			c.fetchSeg = value
		case cpu.PsRegOfs:
			c.Regs.PSW1.Load(value)
			c.fetchOfs = value
		case cpu.PsRegStatus:
			c.Regs.PSW0.Load(cpu.MakePSW0(cpu.PSW0Segment(c.Regs.PSW0.Get()), value))
		}
	}
}

// fieldOfMicro exposes a handful of indexed fields of a pipeline stage
// register for diagnostic reads: 0=PC, 1=Seg, 2=Raw, 3=opcode.
func fieldOfMicro(m Micro, index uint32) uint32 {
	switch index {
	case 0:
		return m.PC
	case 1:
		return m.Seg
	case 2:
		return m.Raw
	case 3:
		return m.Instr.Op
	}
	return 0
}
