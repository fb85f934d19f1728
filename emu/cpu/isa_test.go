package cpu

import "testing"

func TestFieldExtraction(t *testing.T) {
	// opcode in bits 0..5 = 0b100101 (0x25), rest arbitrary.
	instr := uint32(0b100101_000_000_00000000000000000000)
	if got := Opcode(instr); got != 0x25 {
		t.Fatalf("Opcode: got %#x, want %#x", got, 0x25)
	}
}

func TestLowSignExtPositive(t *testing.T) {
	// field = magnitude<<1 | sign(0) -> positive value equal to magnitude.
	field := uint32(10) << 1
	if got := LowSignExt(field, 14); got != 10 {
		t.Fatalf("got %d, want 10", got)
	}
}

func TestLowSignExtNegative(t *testing.T) {
	field := (uint32(10) << 1) | 1
	got := LowSignExt(field, 5)
	if got >= 0 {
		t.Fatalf("expected negative result, got %d", got)
	}
}

func TestDecodeADDFields(t *testing.T) {
	// op=OpADD, r1=3, r2=5, flag=0b0011, r3=2
	raw := uint32(OpADD)<<26 | 3<<23 | 5<<20 | 0b0011<<16 | 2<<13
	in := Decode(raw)
	if in.Op != OpADD || in.R1 != 3 || in.R2 != 5 || in.Flag != 0b0011 || in.R3 != 2 {
		t.Fatalf("unexpected decode: %+v", in)
	}
}

func TestDecodeLDIL(t *testing.T) {
	raw := uint32(OpLDIL)<<26 | 1<<23 | 0<<20 | (uint32(100)<<1 | 1)
	in := Decode(raw)
	if in.Op != OpLDIL || in.R1 != 1 {
		t.Fatalf("unexpected decode: %+v", in)
	}
	if in.Imm >= 0 {
		t.Fatalf("expected negative immediate, got %d", in.Imm)
	}
}

func TestEvalCondSigned(t *testing.T) {
	cases := []struct {
		a, b int32
		cond uint32
		want bool
	}{
		{1, 1, CondEQ, true},
		{1, 2, CondLT, true},
		{2, 1, CondGT, true},
		{1, 1, CondNE, false},
	}
	for _, c := range cases {
		if got := EvalCondSigned(c.a, c.b, c.cond); got != c.want {
			t.Errorf("EvalCondSigned(%d,%d,%d) = %v, want %v", c.a, c.b, c.cond, got, c.want)
		}
	}
}
