package cpu

// CpuReg is the dual latch register primitive used throughout the
// pipeline. Every architected register is built from it, and the
// pipeline stage records follow the same discipline through
// core.StageReg: writes during a cycle land in the input latch and
// only become visible to readers after Tick copies input to output at
// the clock edge. This keeps the combinational phase of a cycle
// (Process) free of read-after-write ordering hazards between stages -
// every stage reads the PREVIOUS cycle's committed value.
type CpuReg struct {
	in  uint32
	out uint32
}

// Get returns the value committed at the last clock edge.
func (r *CpuReg) Get() uint32 {
	return r.out
}

// Set stages a new value for the next clock edge without disturbing
// the currently visible value.
func (r *CpuReg) Set(v uint32) {
	r.in = v
}

// Load writes both latches immediately, bypassing the clock edge. Used
// for reset and for driver-initiated register writes between
// instructions.
func (r *CpuReg) Load(v uint32) {
	r.in = v
	r.out = v
}

// Tick commits the staged value. Called once per clock cycle, after
// every stage has had a chance to Set a new input.
func (r *CpuReg) Tick() {
	r.out = r.in
}

// Reset clears both latches to zero.
func (r *CpuReg) Reset() {
	r.in = 0
	r.out = 0
}

// Pending returns the value staged for the next edge, without waiting
// for Tick. The pipeline's bypass does not use it: MA forwards from
// the EX stage record instead.
func (r *CpuReg) Pending() uint32 {
	return r.in
}
