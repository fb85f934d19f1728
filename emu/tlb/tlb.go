// Package tlb implements the hashed, direct-mapped translation
// lookaside buffer used for both instruction and data side
// translation. A unified TLB is modeled as a single table addressed
// through two independent Lookup calls (one per pipeline side); since
// Lookup never mutates the table, the two "ports" never need to
// arbitrate against each other, only against Insert and Purge, which
// the core serializes by construction (only one instruction executes
// ITLB/PTLB at a time).
package tlb

import "context"

// PageType classifies the access rights a translation grants.
type PageType int

const (
	PageReadOnly PageType = iota
	PageReadWrite
	PageExecute
	PageGateway
)

// Entry is one resident translation. Insert is a two step protocol
// mirroring the ITLB instruction's two sub-opcodes: ITLB.A installs
// the address half and clears Valid, ITLB.P installs the protection
// half and sets Valid - a lookup against a half-installed entry always
// misses.
type Entry struct {
	Valid      bool
	Dirty      bool
	Type       PageType
	PrivL1     uint32 // highest (least privileged) execution level allowed L1 access
	PrivL2     uint32 // highest (least privileged) execution level allowed L2 access
	ProtectID  uint16
	VpnSeg     uint32
	VpnOffset  uint32
	Ppn        uint32
	TrapOnAccess bool
}

// Result is what a Lookup reports back to the caller.
type Result struct {
	Hit     bool
	Entry   Entry
	PhysAdr uint32
}

// TLB is a hashed direct mapped table of size entries.
type TLB struct {
	entries []Entry
	latency uint32

	Hits, Misses, Inserts, Purges uint64
}

// New creates a TLB with the given number of entries (hash table
// slots, not a way-associative set) and fixed per-operation latency.
func New(size int, latency uint32) *TLB {
	return &TLB{entries: make([]Entry, size), latency: latency}
}

func (t *TLB) hash(seg, offset uint32) int {
	vpn := (seg << 8) ^ (offset >> 12)
	return int(vpn % uint32(len(t.entries)))
}

// Lookup translates (seg, offset). A half-installed entry (Valid ==
// false) is treated identically to an absent entry.
func (t *TLB) Lookup(seg, offset uint32) Result {
	idx := t.hash(seg, offset)
	e := t.entries[idx]
	if !e.Valid || e.VpnSeg != seg || e.VpnOffset != offset&^0xfff {
		t.Misses++
		return Result{Hit: false}
	}
	t.Hits++
	return Result{Hit: true, Entry: e, PhysAdr: e.Ppn | (offset & 0xfff)}
}

// InsertAddress performs the ITLB.A half of an insert: it installs the
// address tag for the entry and marks it invalid, so any concurrent
// lookup misses until InsertProtection completes the entry.
func (t *TLB) InsertAddress(seg, offset, ppn uint32) {
	idx := t.hash(seg, offset)
	t.entries[idx] = Entry{VpnSeg: seg, VpnOffset: offset &^ 0xfff, Ppn: ppn &^ 0xfff, Valid: false}
}

// InsertProtection performs the ITLB.P half: it installs the
// protection attributes of the most recently address-installed entry
// in this hash slot and marks it valid.
func (t *TLB) InsertProtection(seg, offset uint32, pageType PageType, privL1, privL2 uint32, protID uint16, trapOnAccess bool) {
	idx := t.hash(seg, offset)
	e := &t.entries[idx]
	e.Type = pageType
	e.PrivL1 = privL1
	e.PrivL2 = privL2
	e.ProtectID = protID
	e.TrapOnAccess = trapOnAccess
	e.Valid = true
	t.Inserts++
}

// Purge invalidates the entry mapping (seg, offset), if resident.
func (t *TLB) Purge(seg, offset uint32) {
	idx := t.hash(seg, offset)
	if t.entries[idx].VpnSeg == seg && t.entries[idx].VpnOffset == offset&^0xfff {
		t.entries[idx].Valid = false
		t.Purges++
	}
}

// MarkDirty sets the dirty bit of the entry translating (seg, offset),
// called on the first store through a writable page.
func (t *TLB) MarkDirty(seg, offset uint32) {
	idx := t.hash(seg, offset)
	if t.entries[idx].Valid && t.entries[idx].VpnSeg == seg && t.entries[idx].VpnOffset == offset&^0xfff {
		t.entries[idx].Dirty = true
	}
}

func (t *TLB) Latency() uint32 { return t.latency }

// Op is the explicit multi-cycle request record for a translation in
// progress, stepped once per clock by its caller rather than resolved
// combinationally: the execute stage drives ITLB inserts through it.
// The memory-access stage does not use it; it calls Lookup directly.
type Op struct {
	done    bool
	Result  Result
	Latency int
}

// Step advances a translation lookup by one cycle. The lookup itself
// is combinational; Step exists so the cache/TLB latency is visible to
// the pipeline on the same footing as a cache miss.
func (t *TLB) Step(_ context.Context, op *Op, seg, offset uint32) bool {
	if !op.done && op.Latency <= 0 {
		op.Latency = int(t.latency)
	}
	op.Latency--
	if op.Latency > 0 {
		return false
	}
	if !op.done {
		op.Result = t.Lookup(seg, offset)
		op.done = true
	}
	return true
}

// StepInsertAddress advances the ITLB.A half by one cycle, charging the
// TLB's configured latency before installing the address tag - the
// same state machine shape as Step, for the opcode that writes instead
// of reads the table.
func (t *TLB) StepInsertAddress(op *Op, seg, offset, ppn uint32) bool {
	if !op.done && op.Latency <= 0 {
		op.Latency = int(t.latency)
	}
	op.Latency--
	if op.Latency > 0 {
		return false
	}
	if !op.done {
		t.InsertAddress(seg, offset, ppn)
		op.done = true
	}
	return true
}

// StepInsertProtection advances the ITLB.P half by one cycle, charging
// the TLB's configured latency before installing the protection
// attributes and validating the entry.
func (t *TLB) StepInsertProtection(op *Op, seg, offset uint32, pageType PageType, privL1, privL2 uint32, protID uint16, trapOnAccess bool) bool {
	if !op.done && op.Latency <= 0 {
		op.Latency = int(t.latency)
	}
	op.Latency--
	if op.Latency > 0 {
		return false
	}
	if !op.done {
		t.InsertProtection(seg, offset, pageType, privL1, privL2, protID, trapOnAccess)
		op.done = true
	}
	return true
}
