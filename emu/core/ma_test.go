package core

import (
	"context"
	"testing"

	"github.com/rcornwell/vcpu32/emu/cpu"
	"github.com/rcornwell/vcpu32/emu/tlb"
	"github.com/rcornwell/vcpu32/emu/trap"
)

func enableDataTranslate(c *Core, seg uint32) {
	c.Regs.SReg[0].Load(seg)
	c.Regs.SetStatus(c.Regs.Status() | cpu.StatusDataTranslateEnable)
}

func dataAccessUntilDone(ctx context.Context, c *Core, in Micro, vaddr uint32, write bool, storeVal uint32) (uint32, trap.Record) {
	for i := 0; i < 1000; i++ {
		v, rec, done := c.dataAccess(ctx, in, vaddr, write, storeVal)
		if done {
			return v, rec
		}
	}
	panic("dataAccess never completed")
}

func TestDataAccessWriteChecksPrivL2(t *testing.T) {
	c := newTestCore()
	enableDataTranslate(c, 1)
	c.dtlb.InsertAddress(1, 0, 0x2000)
	// PrivL1 permits level 0 reads, but PrivL2 restricts writes to level 0 only;
	// the core runs at level 0 by default so raise the page's PrivL2 requirement
	// by instead raising the running level via status.
	c.dtlb.InsertProtection(1, 0, tlb.PageReadWrite, 3, 0, 0, false)
	c.Regs.SetStatus(cpu.WithExecutionLevel(c.Regs.Status(), 1))

	in := Micro{Valid: true, Seg: 1, PC: 4}
	_, rec := dataAccessUntilDone(context.Background(), c, in, 0, true, 0xaa)
	if rec.ID != trap.DTLBAccessRights {
		t.Fatalf("trap = %v, want DTLBAccessRights", rec.ID)
	}
}

func TestDataAccessWriteRejectsReadOnlyPage(t *testing.T) {
	c := newTestCore()
	enableDataTranslate(c, 1)
	c.dtlb.InsertAddress(1, 0, 0x2000)
	c.dtlb.InsertProtection(1, 0, tlb.PageReadOnly, 0, 0, 0, false)

	in := Micro{Valid: true, Seg: 1, PC: 4}
	_, rec := dataAccessUntilDone(context.Background(), c, in, 0, true, 0xaa)
	if rec.ID != trap.DataMemProtect {
		t.Fatalf("trap = %v, want DataMemProtect", rec.ID)
	}
}

func TestDataAccessReadRejectsGatewayPage(t *testing.T) {
	c := newTestCore()
	enableDataTranslate(c, 1)
	c.dtlb.InsertAddress(1, 0, 0x2000)
	c.dtlb.InsertProtection(1, 0, tlb.PageGateway, 0, 0, 0, false)

	in := Micro{Valid: true, Seg: 1, PC: 4}
	_, rec := dataAccessUntilDone(context.Background(), c, in, 0, false, 0)
	if rec.ID != trap.DataMemProtect {
		t.Fatalf("trap = %v, want DataMemProtect", rec.ID)
	}
}

func TestDataAccessChecksProtectID(t *testing.T) {
	c := newTestCore()
	enableDataTranslate(c, 1)
	c.dtlb.InsertAddress(1, 0, 0x2000)
	c.dtlb.InsertProtection(1, 0, tlb.PageReadWrite, 0, 0, 5, false)
	c.Regs.SetStatus(c.Regs.Status() | cpu.StatusProtectIDCheckEnable)
	c.Regs.CReg[cpu.CrProtectID3].Load(44) // does not match the page's id 5

	in := Micro{Valid: true, Seg: 1, PC: 4}
	_, rec := dataAccessUntilDone(context.Background(), c, in, 0, false, 0)
	if rec.ID != trap.DTLBProtectID {
		t.Fatalf("trap = %v, want DTLBProtectID", rec.ID)
	}
}

func TestDataAccessTrapOnAccessEntry(t *testing.T) {
	c := newTestCore()
	enableDataTranslate(c, 1)
	c.dtlb.InsertAddress(1, 0, 0x2000)
	c.dtlb.InsertProtection(1, 0, tlb.PageReadWrite, 0, 0, 0, true)

	in := Micro{Valid: true, Seg: 1, PC: 4}
	_, rec := dataAccessUntilDone(context.Background(), c, in, 0, false, 0)
	if rec.ID != trap.DTLBNonAccess {
		t.Fatalf("trap = %v, want DTLBNonAccess", rec.ID)
	}
}

func TestDataAccessMachineCheckWithoutDTLB(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TlbMode = TlbNone
	c := New(cfg)
	enableDataTranslate(c, 1)

	in := Micro{Valid: true, Seg: 1, PC: 4}
	_, rec := dataAccessUntilDone(context.Background(), c, in, 0, false, 0)
	if rec.ID != trap.MachineCheck {
		t.Fatalf("trap = %v, want MachineCheck", rec.ID)
	}
}

func TestDataAccessPhysAddressCheck(t *testing.T) {
	c := newTestCore()
	enableDataTranslate(c, 1)
	past := c.Router().RAM.Size() + 0x1000
	c.dtlb.InsertAddress(1, 0, past)
	c.dtlb.InsertProtection(1, 0, tlb.PageReadWrite, 0, 0, 0, false)

	in := Micro{Valid: true, Seg: 1, PC: 4}
	_, rec := dataAccessUntilDone(context.Background(), c, in, 0, false, 0)
	if rec.ID != trap.PhysAddressCheck {
		t.Fatalf("trap = %v, want PhysAddressCheck", rec.ID)
	}
}

func TestDataAccessLoadStoreRoundTrip(t *testing.T) {
	c := newTestCore()
	enableDataTranslate(c, 1)
	c.dtlb.InsertAddress(1, 0, 0x3000)
	c.dtlb.InsertProtection(1, 0, tlb.PageReadWrite, 0, 0, 0, false)

	ctx := context.Background()
	in := Micro{Valid: true, Seg: 1, PC: 4}
	if _, rec := dataAccessUntilDone(ctx, c, in, 0, true, 0xcafef00d); !rec.None() {
		t.Fatalf("unexpected trap on store: %v", rec.ID)
	}
	v, rec := dataAccessUntilDone(ctx, c, in, 0, false, 0)
	if !rec.None() {
		t.Fatalf("unexpected trap on load: %v", rec.ID)
	}
	if v != 0xcafef00d {
		t.Fatalf("v = %#x, want 0xcafef00d", v)
	}
}
