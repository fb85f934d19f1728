// Package core assembles the register files, TLBs, memory hierarchy
// and the three pipeline stages into a single VCPU32 core, and
// exposes the reset/clock-step/instr-step/get-reg/set-reg surface the
// driver program uses to run and inspect it.
package core

import (
	"github.com/rcornwell/vcpu32/emu/cpu"
	"github.com/rcornwell/vcpu32/emu/trap"
)

// Micro is the record carried between pipeline stages. Each stage
// reads the previous stage's committed Micro and produces its own;
// fields below the "-- MA stage --" marker are zero until MA fills
// them in, and so on for EX.
type Micro struct {
	Valid bool
	PC    uint32
	Seg   uint32
	Raw   uint32
	Instr cpu.Instr
	FDTrap trap.Record

	// -- MA stage --
	OpA, OpB uint32 // resolved register operands, bypass applied
	EffAddr  uint32
	LoadVal  uint32
	MAWait   bool // not set by any stage; runMA reports a stall through its return value
	MATrap   trap.Record

	// -- EX stage --
	Result       uint32
	RegDst       uint32 // destination gReg id, or cpu.RegSentinel
	WritesCReg   bool
	CRegDst      uint32
	Branch       bool
	BranchTarget struct{ Seg, Ofs uint32 }
	Retired      bool
	Trap         trap.Record
}

// nop returns the bubble instruction a stage outputs on reset or when
// a downstream flush asks it to stop contributing work.
func nop() Micro {
	return Micro{Valid: false, RegDst: cpu.RegSentinel, MATrap: trap.Record{}, Trap: trap.Record{}}
}

// StageReg is the dual latch pipeline register: Set stages a value for
// the next edge, Tick commits it, Get reads the last committed value.
// It is the same two-phase discipline as cpu.CpuReg, generalized from
// a single word to an entire stage record.
type StageReg[T any] struct {
	cur, next T
}

func (s *StageReg[T]) Get() T     { return s.cur }
func (s *StageReg[T]) Set(v T)    { s.next = v }
func (s *StageReg[T]) Tick()      { s.cur = s.next }
func (s *StageReg[T]) Hold()      { s.next = s.cur }
func (s *StageReg[T]) Reset(v T)  { s.cur, s.next = v, v }
