package cpu

import "testing"

func TestCpuRegLatchDiscipline(t *testing.T) {
	var r CpuReg
	r.Load(5)
	if got := r.Get(); got != 5 {
		t.Fatalf("Load did not take effect immediately: got %d", got)
	}
	r.Set(9)
	if got := r.Get(); got != 5 {
		t.Fatalf("Set must not be visible before Tick: got %d", got)
	}
	r.Tick()
	if got := r.Get(); got != 9 {
		t.Fatalf("Tick did not commit staged value: got %d", got)
	}
}

func TestCpuRegReset(t *testing.T) {
	var r CpuReg
	r.Load(42)
	r.Reset()
	if r.Get() != 0 || r.Pending() != 0 {
		t.Fatalf("Reset left nonzero state: out=%d in=%d", r.Get(), r.Pending())
	}
}

func TestExecutionLevelRoundTrip(t *testing.T) {
	s := WithExecutionLevel(StatusInterruptEnable, 2)
	if ExecutionLevel(s) != 2 {
		t.Fatalf("execution level not preserved: got %d", ExecutionLevel(s))
	}
	if s&StatusInterruptEnable == 0 {
		t.Fatalf("unrelated status bit clobbered")
	}
}

func TestPSW0Pack(t *testing.T) {
	psw0 := MakePSW0(0x1234, 0xabcd)
	if PSW0Segment(psw0) != 0x1234 {
		t.Fatalf("segment not round-tripped: got %#x", PSW0Segment(psw0))
	}
	if PSW0Status(psw0) != 0xabcd {
		t.Fatalf("status not round-tripped: got %#x", PSW0Status(psw0))
	}
}
