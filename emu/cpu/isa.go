package cpu

// Instruction bit layout. Bits are numbered MSB first, bit 0 being the
// most significant bit of the 32 bit word - this follows the
// convention the original silicon documentation for this family of
// machines used, and every Field call site documents the position and
// length it expects.

// Field extracts a bit field length bits wide starting at bit
// position pos (0 = most significant bit of instr).
func Field(instr uint32, pos, length uint) uint32 {
	shift := 32 - pos - length
	mask := uint32(1)<<length - 1
	return (instr >> shift) & mask
}

// Opcode returns the 6 bit opcode occupying bits 0..5.
func Opcode(instr uint32) uint32 {
	return Field(instr, 0, 6)
}

// LowSignExt implements the "low bit is sign" immediate convention:
// the field's least significant bit carries the sign, the remaining
// len-1 bits carry the magnitude. This yields the asymmetric ranges
// typical of this family's short immediates (len=14 covers roughly
// -2^12 .. 2^12-1) because the magnitude is one bit narrower than the
// encoded field.
func LowSignExt(field uint32, length uint) int32 {
	sign := field & 1
	mag := field >> 1
	if sign != 0 {
		mag |= ^uint32(0) << (length - 1)
	}
	return int32(mag)
}

// Opcodes. Grouped by instruction class; field layouts for each class
// are documented beside the decode helper that reads them.
const (
	OpADD = iota
	OpSUB
	OpAND
	OpOR
	OpXOR
	OpCMP
	OpCMPU
	OpEXTR
	OpDEP
	OpDSR
	OpSHLA
	OpLDIL
	OpLDO
	OpLDA
	OpLD
	OpST
	OpB
	OpBR
	OpBV
	OpBE
	OpBL
	OpBLR
	OpBVR
	OpBLE
	OpCBR
	OpCBRU
	OpMR
	OpMST
	OpGATE
	OpRFI
	OpBRK
	OpITLB
	OpPTLB
	OpPCA
	OpDIAG
	numOpcodes
)

// opcodeNames is used only by diagnostics/logging, never by the
// datapath.
var opcodeNames = [numOpcodes]string{
	OpADD: "ADD", OpSUB: "SUB", OpAND: "AND", OpOR: "OR", OpXOR: "XOR",
	OpCMP: "CMP", OpCMPU: "CMPU", OpEXTR: "EXTR", OpDEP: "DEP", OpDSR: "DSR",
	OpSHLA: "SHLA", OpLDIL: "LDIL", OpLDO: "LDO", OpLDA: "LDA", OpLD: "LD",
	OpST: "ST", OpB: "B", OpBR: "BR", OpBV: "BV", OpBE: "BE", OpBL: "BL",
	OpBLR: "BLR", OpBVR: "BVR", OpBLE: "BLE", OpCBR: "CBR", OpCBRU: "CBRU",
	OpMR: "MR", OpMST: "MST", OpGATE: "GATE", OpRFI: "RFI", OpBRK: "BRK",
	OpITLB: "ITLB", OpPTLB: "PTLB", OpPCA: "PCA", OpDIAG: "DIAG",
}

// OpcodeName returns the mnemonic for op, or "???" if op is not a
// defined opcode (which decodes to an illegal-instruction trap).
func OpcodeName(op uint32) string {
	if op < numOpcodes {
		return opcodeNames[op]
	}
	return "???"
}

// Condition codes used by CMP/CMPU and tested by CBR/CBRU.
const (
	CondEQ = iota
	CondLT
	CondNE
	CondLE
	CondGT
	CondGE
	CondLS
	CondHI
)

// EvalCondSigned evaluates a signed comparison a-b against cond.
func EvalCondSigned(a, b int32, cond uint32) bool {
	switch cond {
	case CondEQ:
		return a == b
	case CondLT:
		return a < b
	case CondNE:
		return a != b
	case CondLE:
		return a <= b
	case CondGT:
		return a > b
	case CondGE:
		return a >= b
	default:
		return false
	}
}

// EvalCondUnsigned evaluates an unsigned comparison a-b against cond.
// Only LS (lower-or-same) and HI (higher) are meaningful for the
// unsigned compare/branch family; the signed codes fall back to their
// unsigned equivalents.
func EvalCondUnsigned(a, b uint32, cond uint32) bool {
	switch cond {
	case CondEQ:
		return a == b
	case CondNE:
		return a != b
	case CondLS:
		return a <= b
	case CondHI:
		return a > b
	case CondLT:
		return a < b
	case CondLE:
		return a <= b
	case CondGT:
		return a > b
	case CondGE:
		return a >= b
	default:
		return false
	}
}

// Instr is the fully decoded form of an instruction word, built once
// by the fetch/decode stage and carried downstream by the pipeline
// registers.
type Instr struct {
	Raw  uint32
	Op   uint32
	R1   uint32 // destination / first operand register
	R2   uint32 // second source register, or RegSentinel
	R3   uint32 // third operand register (ADD-class, DSR, SHLA), or RegSentinel
	Imm  int32  // decoded signed immediate, when the opcode carries one
	Len  uint32 // bit length / byte length field (EXTR, DEP, LD/ST size)
	Flag uint32 // opcode-specific flag bundle (carry-use, negate, cond, sub-op...)

	// ITLB.P page attribute fields, meaningful only for OpITLB with
	// Flag&1 == 1 (the protection half of the two step insert).
	PType     uint32 // tlb.PageType of the entry being installed
	PrivL1    uint32 // highest execution level allowed L1 (read/execute) access
	PrivL2    uint32 // highest execution level allowed L2 (write) access
	ProtectID uint32 // protection id the entry is tagged with, 0 = none
	TrapOnAcc uint32 // 1 installs the entry with its trap-on-access bit set
}

// Decode splits a raw instruction word into an Instr according to the
// field layout for its opcode class. Fields not used by a given
// opcode are left zero, except R2 and R3, which stay RegSentinel.
func Decode(raw uint32) Instr {
	op := Opcode(raw)
	in := Instr{Raw: raw, Op: op, R2: RegSentinel, R3: RegSentinel}

	switch op {
	case OpADD, OpSUB, OpAND, OpOR, OpXOR:
		// [op:6][r1:3][r2:3][flag:4][r3:3][--:13]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.Flag = Field(raw, 12, 4)
		in.R3 = Field(raw, 16, 3)
	case OpCMP, OpCMPU:
		// [op:6][r1:3][r2:3][cond:3][--:17]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.Flag = Field(raw, 12, 3)
	case OpEXTR, OpDEP:
		// [op:6][r1:3][r2:3][pos:5][len:5][flag:2][--:8]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.Imm = int32(Field(raw, 12, 5))
		in.Len = Field(raw, 17, 5)
		in.Flag = Field(raw, 22, 2)
	case OpDSR:
		// [op:6][r1:3][r2:3][r3:3][amt:5][--:12]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.R3 = Field(raw, 12, 3)
		in.Imm = int32(Field(raw, 15, 5))
	case OpSHLA:
		// [op:6][r1:3][r2:3][r3:3][amt:2][flag:1][--:14]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.R3 = Field(raw, 12, 3)
		in.Imm = int32(Field(raw, 15, 2))
		in.Flag = Field(raw, 17, 1)
	case OpLDIL, OpLDO, OpLDA:
		// [op:6][r1:3][r2:3][imm:20 low-sign]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.Imm = LowSignExt(Field(raw, 12, 20), 20)
	case OpLD, OpST:
		// [op:6][r1:3][r2:3][len:2][imm:18 low-sign]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.Len = Field(raw, 12, 2)
		in.Imm = LowSignExt(Field(raw, 14, 18), 18)
	case OpB, OpBL:
		// [op:6][r1:3][imm:23 low-sign]
		in.R1 = Field(raw, 6, 3)
		in.Imm = LowSignExt(Field(raw, 9, 23), 23)
	case OpBR, OpBLR, OpBV, OpBVR:
		// [op:6][r1:3][r2:3][--:20]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
	case OpBE, OpBLE:
		// [op:6][r1:3][r2:3][imm:18 low-sign]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.Imm = LowSignExt(Field(raw, 12, 18), 18)
	case OpCBR, OpCBRU:
		// [op:6][r1:3][r2:3][cond:3][imm:17 low-sign]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.Flag = Field(raw, 12, 3)
		in.Imm = LowSignExt(Field(raw, 15, 17), 17)
	case OpMR:
		// [op:6][r1:3][r2:3][class:2][dir:1][--:17]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.Flag = Field(raw, 12, 3)
	case OpMST:
		// [op:6][r1:3][mode:2][imm:6][--:15]
		in.R1 = Field(raw, 6, 3)
		in.Flag = Field(raw, 9, 2)
		in.Imm = int32(Field(raw, 11, 6))
	case OpGATE:
		// [op:6][r1:3][r2:3][imm:18 low-sign]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.Imm = LowSignExt(Field(raw, 12, 18), 18)
	case OpRFI, OpBRK:
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
	case OpITLB:
		// [op:6][r1:3][r2:3][half:1][type:2][pl1:2][pl2:2][pid:8][trap:1][--:4]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.Flag = Field(raw, 12, 1)
		in.PType = Field(raw, 13, 2)
		in.PrivL1 = Field(raw, 15, 2)
		in.PrivL2 = Field(raw, 17, 2)
		in.ProtectID = Field(raw, 19, 8)
		in.TrapOnAcc = Field(raw, 27, 1)
	case OpPTLB, OpPCA:
		// [op:6][r1:3][r2:3][sub:2][--:18]
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
		in.Flag = Field(raw, 12, 2)
	case OpDIAG:
		in.R1 = Field(raw, 6, 3)
		in.R2 = Field(raw, 9, 3)
	}
	return in
}
