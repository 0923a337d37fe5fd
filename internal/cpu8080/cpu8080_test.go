package cpu8080

import (
	"testing"

	"github.com/dms3/trisim/internal/memory"
)

func newMem() *memory.Memory {
	return memory.New(memory.Altair8080, 64*1024)
}

func TestAddWithCarry(t *testing.T) {
	mem := newMem()
	mem.WriteB(0, 0x80) // ADD B
	s := &State{A: 0xFF, B: 0x01}

	if r := Step(s, mem, nil, nil); r != StopNone {
		t.Fatalf("unexpected stop reason %v", r)
	}
	if s.A != 0x00 {
		t.Fatalf("A: want 0x00 got %#x", s.A)
	}
	if !s.F.C || !s.F.Z || s.F.S || s.F.AC {
		t.Fatalf("flags: want C=1 Z=1 S=0 AC=0, got %+v", s.F)
	}
	if !s.F.P {
		t.Fatal("expected even parity (P=1) for A=0x00")
	}
	if s.PC != 1 {
		t.Fatalf("PC: want 1 got %d", s.PC)
	}
}

func TestDAAMatchesOriginalTwoPassAdjust(t *testing.T) {
	mem := newMem()
	mem.WriteB(0, 047) // DAA
	s := &State{A: 0x11}

	Step(s, mem, nil, nil)
	if s.A != 0x17 {
		t.Fatalf("A: want 0x17 got %#x", s.A)
	}
	if s.F.C {
		t.Fatal("expected C clear")
	}
}

func TestDAASecondPassGatedOnUpdatedAC(t *testing.T) {
	// A=0x15, AC set going in: the low-nibble pass consumes the incoming
	// AC and produces its own, so the high-nibble pass sees the
	// *recomputed* AC, not the original — matching
	// original_source/ALTAIR/altair_cpu.c's DAA exactly.
	mem := newMem()
	mem.WriteB(0, 047)
	s := &State{A: 0x15}
	s.F.AC = true

	Step(s, mem, nil, nil)
	if s.A != 0x1B {
		t.Fatalf("A: want 0x1B got %#x", s.A)
	}
	if s.F.C {
		t.Fatal("expected C clear")
	}
}

func TestHLTLeavesPCPointingAtInstruction(t *testing.T) {
	mem := newMem()
	mem.WriteB(5, 0166) // HLT
	s := &State{PC: 5}

	if r := Step(s, mem, nil, nil); r != StopHalt {
		t.Fatalf("want StopHalt got %v", r)
	}
	if s.PC != 5 {
		t.Fatalf("PC: want 5 (re-executable) got %d", s.PC)
	}
}

func TestPushPopRoundTripInvariant(t *testing.T) {
	// Invariant 8: getpush(3) then putpush(3, x) then getpush(3)
	// restores x bitwise in the flag subfield.
	s := &State{A: 0x42}
	s.F = Flags{C: true, Z: false, AC: true, S: true, P: false}
	x := s.getpush()

	s.putpush(x)
	got := s.getpush()
	if got != x {
		t.Fatalf("want %#04x got %#04x", x, got)
	}
}

func TestMVIAndMOV(t *testing.T) {
	mem := newMem()
	mem.WriteB(0, 0x06) // MVI B,0x55
	mem.WriteB(1, 0x55)
	mem.WriteB(2, 0x41) // MOV B,C  (dst=000 src=001 -> 0x40|0<<3|1 = 0x41)
	s := &State{C: 0x99}

	Step(s, mem, nil, nil)
	if s.B != 0x55 {
		t.Fatalf("after MVI: B want 0x55 got %#x", s.B)
	}
	Step(s, mem, nil, nil)
	if s.B != 0x99 {
		t.Fatalf("after MOV B,C: B want 0x99 got %#x", s.B)
	}
}

func TestLXIAndDAD(t *testing.T) {
	mem := newMem()
	mem.WriteB(0, 0x21) // LXI H,0x1234
	mem.WriteB(1, 0x34)
	mem.WriteB(2, 0x12)
	mem.WriteB(3, 0x09) // DAD B (rp=0)
	s := &State{B: 0x00, C: 0x10}

	Step(s, mem, nil, nil)
	if s.hl() != 0x1234 {
		t.Fatalf("HL: want 0x1234 got %#x", s.hl())
	}
	Step(s, mem, nil, nil)
	if s.hl() != 0x1244 {
		t.Fatalf("HL after DAD: want 0x1244 got %#x", s.hl())
	}
	if s.F.C {
		t.Fatal("expected no carry out of DAD")
	}
}

func TestConditionalJumpCallRet(t *testing.T) {
	mem := newMem()
	mem.WriteB(0, 0xC2) // JNZ 0x0010
	mem.WriteB(1, 0x10)
	mem.WriteB(2, 0x00)
	mem.WriteB(0x10, 0xCD) // CALL 0x0020
	mem.WriteB(0x11, 0x20)
	mem.WriteB(0x12, 0x00)
	mem.WriteB(0x20, 0xC9) // RET

	s := &State{SP: 0x100}
	s.F.Z = false // Z clear: JNZ taken
	Step(s, mem, nil, nil)
	if s.PC != 0x10 {
		t.Fatalf("after JNZ: PC want 0x10 got %#x", s.PC)
	}
	Step(s, mem, nil, nil)
	if s.PC != 0x20 {
		t.Fatalf("after CALL: PC want 0x20 got %#x", s.PC)
	}
	if s.SP != 0xFE {
		t.Fatalf("SP after CALL push: want 0xfe got %#x", s.SP)
	}
	Step(s, mem, nil, nil)
	if s.PC != 0x13 {
		t.Fatalf("after RET: PC want 0x13 (return address) got %#x", s.PC)
	}
	if s.SP != 0x100 {
		t.Fatalf("SP after RET pop: want 0x100 got %#x", s.SP)
	}
}

func TestRSTPushesPCAndJumpsToVector(t *testing.T) {
	mem := newMem()
	mem.WriteB(0x50, 0xEF) // RST 5 -> PC = 0x28
	s := &State{PC: 0x50, SP: 0x100}

	Step(s, mem, nil, nil)
	if s.PC != 0x28 {
		t.Fatalf("PC: want 0x28 got %#x", s.PC)
	}
	ret := s.pop(mem)
	if ret != 0x51 {
		t.Fatalf("pushed return address: want 0x51 got %#x", ret)
	}
}

func TestUnknownOpcodeTrapsOnlyWhenTrapSet(t *testing.T) {
	mem := newMem()
	mem.WriteB(0, 0xED) // undecoded by this 8080 subset

	s := &State{Trap: true}
	if r := Step(s, mem, nil, nil); r != StopOpcode {
		t.Fatalf("want StopOpcode got %v", r)
	}
	if s.PC != 0 {
		t.Fatalf("PC should be backed up to the undecoded opcode, got %d", s.PC)
	}

	s2 := &State{Trap: false}
	if r := Step(s2, mem, nil, nil); r != StopNone {
		t.Fatalf("want StopNone when Trap unset, got %v", r)
	}
}

func TestBreakpointStopsBeforeFetch(t *testing.T) {
	mem := newMem()
	mem.WriteB(0, 0x00) // NOP
	s := &State{}

	hit := func(pc uint16) bool { return pc == 0 }
	if r := Step(s, mem, nil, hit); r != StopIBkpt {
		t.Fatalf("want StopIBkpt got %v", r)
	}
	if s.PC != 0 {
		t.Fatalf("PC should be unchanged at the breakpoint, got %d", s.PC)
	}
}

func TestZ80VariantClearsParityOnArith(t *testing.T) {
	mem := newMem()
	mem.WriteB(0, 0x80) // ADD B
	s := &State{A: 0x01, B: 0x01, Chip: ChipZ80}

	Step(s, mem, nil, nil)
	if s.F.P {
		t.Fatal("Z80 variant should clear P on every arithmetic op")
	}
}
