// Package trap enumerates the machine's precise trap identifiers and
// the handler-address computation shared by every pipeline stage.
package trap

import "github.com/rcornwell/vcpu32/emu/cpu"

// Trap identifiers. Zero means "no trap pending" - every other value
// selects a handler TrapCodeBlockSize bytes above the one before it,
// starting at the trap vector control register.
const (
	None = iota
	MachineCheck
	PhysAddressCheck
	ExternalInterrupt
	IllegalInstruction
	PrivilegedInstruction
	Overflow
	InstrMemProtect
	DataMemProtect
	ITLBMiss
	ITLBAccessRights
	ITLBProtectID
	ITLBNonAccess
	DTLBMiss
	DTLBAccessRights
	DTLBProtectID
	DTLBNonAccess
	Break
	MaxTrapID
)

var names = [MaxTrapID]string{
	None:                  "NONE",
	MachineCheck:          "MACHINE_CHECK",
	PhysAddressCheck:      "PHYS_ADDRESS_CHECK",
	ExternalInterrupt:     "EXTERNAL_INTERRUPT",
	IllegalInstruction:    "ILLEGAL_INSTR_TRAP",
	PrivilegedInstruction: "PRIV_OPERATION_TRAP",
	Overflow:              "OVERFLOW_TRAP",
	InstrMemProtect:       "INSTR_MEM_PROTECT_TRAP",
	DataMemProtect:        "DATA_MEM_PROTECT_TRAP",
	ITLBMiss:              "ITLB_MISS_TRAP",
	ITLBAccessRights:      "ITLB_ACC_RIGHTS_TRAP",
	ITLBProtectID:         "ITLB_PROTECT_ID_TRAP",
	ITLBNonAccess:         "ITLB_NON_ACCESS_TRAP",
	DTLBMiss:              "DTLB_MISS_TRAP",
	DTLBAccessRights:      "DTLB_ACC_RIGHTS_TRAP",
	DTLBProtectID:         "DTLB_PROTECT_ID_TRAP",
	DTLBNonAccess:         "DTLB_NON_ACCESS_TRAP",
	Break:                 "BREAK_TRAP",
}

// Name returns the diagnostic name for a trap id.
func Name(id uint32) string {
	if id < MaxTrapID {
		return names[id]
	}
	return "UNKNOWN_TRAP"
}

// HandlerAddress computes the absolute handler entry point for trapID
// given the trap vector base held in CR_TRAP_VECTOR_ADR.
func HandlerAddress(vectorBase uint32, trapID uint32) uint32 {
	return vectorBase + trapID*cpu.TrapCodeBlockSize
}

// Record is the information latched by a stage when it detects a trap
// condition. It mirrors the fields SetPendingTrap writes into the
// control registers, kept alongside as a plain value so pipeline code
// can compare/override pending traps before committing them.
type Record struct {
	ID                 uint32
	PSW0, PSW1         uint32
	Parm1, Parm2, Parm3 uint32
}

// None reports whether r represents "no trap".
func (r Record) None() bool {
	return r.ID == 0
}
