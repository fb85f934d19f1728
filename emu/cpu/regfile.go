package cpu

// RegFile holds the programmer visible register state of a core: the
// general, segment and control register files, the two halves of the
// program status word and the pending-trap bookkeeping fields mirrored
// into the control registers.
type RegFile struct {
	GReg [NumGReg]CpuReg
	SReg [NumSReg]CpuReg
	CReg [NumCReg]CpuReg

	// PSW0 carries the segment of the next instruction in its upper
	// half and the status flags in its lower half. PSW1 carries the
	// full byte offset.
	PSW0 CpuReg
	PSW1 CpuReg
}

// Reset clears every register to its power-on value.
func (r *RegFile) Reset() {
	for i := range r.GReg {
		r.GReg[i].Reset()
	}
	for i := range r.SReg {
		r.SReg[i].Reset()
	}
	for i := range r.CReg {
		r.CReg[i].Reset()
	}
	r.PSW0.Reset()
	r.PSW1.Reset()
}

// Status returns the live status flags out of psw0.
func (r *RegFile) Status() uint32 {
	return PSW0Status(r.PSW0.Get())
}

// SetStatus rewrites the status half of psw0, preserving the segment.
func (r *RegFile) SetStatus(status uint32) {
	r.PSW0.Load(MakePSW0(PSW0Segment(r.PSW0.Get()), status))
}

// SegWriteAllowed reports whether segment register index may be
// written from the current (non-privileged) execution level. Indices
// 4-7 require execution level 0.
func SegWriteAllowed(index int, level uint32) bool {
	if index < 4 {
		return true
	}
	return level == 0
}

// PendingTrapID returns the trap id latched in CR_TEMP_1, or 0 if no
// trap is pending.
func (r *RegFile) PendingTrapID() uint32 {
	return r.CReg[CrTemp1].Get()
}

// SetPendingTrap latches trap id and the three optional parameter
// words into the control registers for the handler to consult. Only
// the execute stage calls it, when it takes a trap; fetch/decode and
// memory-access record a fault on the instruction's pipeline record,
// which carries it to the execute stage.
func (r *RegFile) SetPendingTrap(trapID uint32, psw0, psw1, parm1, parm2, parm3 uint32) {
	r.CReg[CrTemp1].Set(trapID)
	r.CReg[CrTrapPSW0].Set(psw0)
	r.CReg[CrTrapPSW1].Set(psw1)
	r.CReg[CrTrapParm1].Set(parm1)
	r.CReg[CrTrapParm2].Set(parm2)
	r.CReg[CrTrapParm3].Set(parm3)
}

// ClearPendingTrap resets CR_TEMP_1 to the no-trap sentinel. Trap
// entry does not call it: the trap id stays in CR_TEMP_1 until it is
// cleared here or overwritten by a control register write.
func (r *RegFile) ClearPendingTrap() {
	r.CReg[CrTemp1].Load(0)
}

// Tick commits every register's staged value. Called once per clock
// cycle after all stages have run their combinational phase.
func (r *RegFile) Tick() {
	for i := range r.GReg {
		r.GReg[i].Tick()
	}
	for i := range r.SReg {
		r.SReg[i].Tick()
	}
	for i := range r.CReg {
		r.CReg[i].Tick()
	}
	r.PSW0.Tick()
	r.PSW1.Tick()
}
