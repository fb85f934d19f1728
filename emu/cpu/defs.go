/*
   CPU: fundamental constants, register classes and status bits.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

// Package cpu holds the programmer visible register state of the VCPU32
// core: the dual latch CpuReg primitive, the general/segment/control
// register files, the program status word and the status register.
package cpu

const (
	WordSize     = 32
	HalfWordSize = 16
	ByteSize     = 8

	PageBits = 12
	PageSize = 1 << PageBits
	PageMask = PageSize - 1

	NumGReg = 8
	NumSReg = 8
	NumCReg = 32

	// RegSentinel marks a pipeline register-id tag that is not sourced
	// from a general register (an immediate, or simply unused).
	RegSentinel = NumGReg
)

// RegClass identifies one of the register files or pipeline register sets
// addressable by the external driver through Core.GetReg/SetReg.
type RegClass uint32

const (
	RegClassNil RegClass = iota
	RegClassGeneral
	RegClassSegment
	RegClassControl
	RegClassProgState
	RegClassFDStage
	RegClassMAStage
	RegClassEXStage
)

// Fixed control register roles. The remaining control registers are
// reserved for future use and read/write as plain storage.
const (
	CrShiftAmount = iota
	CrProtectID1
	CrProtectID2
	CrProtectID3
	CrProtectID4
	CrTrapVectorAdr
	CrTrapPSW0
	CrTrapPSW1
	CrTrapParm1
	CrTrapParm2
	CrTrapParm3
	CrTemp1 // pending trap id; meaningful only when non-zero.
)

// TrapCodeBlockSize is the spacing, in bytes, between successive trap
// handler entry points above TrapVectorAdr.
const TrapCodeBlockSize = 32

// Status register bit positions. ExecutionLevel occupies two bits so
// the machine supports four privilege levels, 0 being the most
// privileged. Every status bit lies in the low half word, since psw0
// keeps the segment in its upper half.
const (
	StatusInterruptEnable      = 1 << 0
	StatusDataTranslateEnable  = 1 << 1
	StatusProtectIDCheckEnable = 1 << 2
	StatusCarry                = 1 << 15
	StatusExecutionLevelShift  = 12
	StatusExecutionLevelMask   = 0x3 << StatusExecutionLevelShift
	StatusCodeTranslateEnable  = 1 << 14
	StatusMachineCheck         = 1 << 11
)

// ProgState register identifiers, used by getReg/setReg and by RFI/trap
// entry to address the three fields of the program status word.
const (
	PsRegSeg = iota
	PsRegOfs
	PsRegStatus
)

// ExecutionLevel extracts the current privilege level (0..3) from a
// status word.
func ExecutionLevel(status uint32) uint32 {
	return (status & StatusExecutionLevelMask) >> StatusExecutionLevelShift
}

// WithExecutionLevel returns status with the execution level field
// replaced by level.
func WithExecutionLevel(status, level uint32) uint32 {
	return (status &^ StatusExecutionLevelMask) | ((level << StatusExecutionLevelShift) & StatusExecutionLevelMask)
}

// MakePSW0 packs a segment selector and status flags into the psw0 word:
// the upper half word carries the segment, the lower the status bits.
func MakePSW0(segment, status uint32) uint32 {
	return ((segment & 0xffff) << 16) | (status & 0xffff)
}

// PSW0Segment extracts the segment half of a psw0 word.
func PSW0Segment(psw0 uint32) uint32 {
	return psw0 >> 16
}

// PSW0Status extracts the status half of a psw0 word.
func PSW0Status(psw0 uint32) uint32 {
	return psw0 & 0xffff
}
