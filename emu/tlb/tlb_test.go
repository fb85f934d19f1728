package tlb

import "testing"

func TestLookupMissBeforeInsert(t *testing.T) {
	tb := New(32, 1)
	res := tb.Lookup(1, 0x1000)
	if res.Hit {
		t.Fatalf("expected miss on empty TLB")
	}
	if tb.Misses != 1 {
		t.Fatalf("miss not counted")
	}
}

func TestTwoStepInsertProtocol(t *testing.T) {
	tb := New(32, 1)
	tb.InsertAddress(1, 0x2000, 0x50000)

	// Address half installed but protection half pending: must still miss.
	if res := tb.Lookup(1, 0x2000); res.Hit {
		t.Fatalf("half-installed entry must not be a hit")
	}

	tb.InsertProtection(1, 0x2000, PageReadWrite, 0, 0, 7, false)
	res := tb.Lookup(1, 0x2000)
	if !res.Hit {
		t.Fatalf("expected hit after both insert halves")
	}
	if res.PhysAdr != 0x50000 {
		t.Fatalf("got phys %#x, want %#x", res.PhysAdr, 0x50000)
	}
}

func TestPurgeInvalidates(t *testing.T) {
	tb := New(32, 1)
	tb.InsertAddress(2, 0x3000, 0x60000)
	tb.InsertProtection(2, 0x3000, PageReadOnly, 0, 0, 0, false)
	tb.Purge(2, 0x3000)
	if res := tb.Lookup(2, 0x3000); res.Hit {
		t.Fatalf("purged entry should miss")
	}
}

func TestStepCountsLatencyThenResolves(t *testing.T) {
	tb := New(32, 3)
	tb.InsertAddress(1, 0x1000, 0x9000)
	tb.InsertProtection(1, 0x1000, PageExecute, 0, 0, 0, false)

	var op Op
	calls := 0
	for !tb.Step(nil, &op, 1, 0x1000) {
		calls++
		if calls > 10 {
			t.Fatalf("Step never completed")
		}
	}
	if !op.Result.Hit || op.Result.PhysAdr != 0x9000 {
		t.Fatalf("unexpected result: %+v", op.Result)
	}
}
