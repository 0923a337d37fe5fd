package memory

import "testing"

func TestNewClampsSizeToMax(t *testing.T) {
	m := New(Altair8080, 1<<20)
	if m.Size() != m.MaxSize() {
		t.Fatalf("expected size clamped to maxSize %d, got %d", m.MaxSize(), m.Size())
	}
}

func TestUninstalledMemoryFill(t *testing.T) {
	m := New(Altair8080, 4*1024)
	if v := m.IOReadB(8*1024); v != 0xff {
		t.Fatalf("8080 uninstalled memory should read 0xff, got %#x", v)
	}

	id := New(Interdata16, 4*1024)
	if v := id.IOReadB(8 * 1024); v != 0 {
		t.Fatalf("Interdata uninstalled memory should read 0, got %#x", v)
	}
}

func TestStoreOutsideMemSizeNeverModifiesMemory(t *testing.T) {
	// Invariant 4: memory outside [0, MEMSIZE) is never modified by any
	// successful store.
	m := New(Interdata16, 4*1024)
	m.IOWriteB(8*1024, 0x42)
	if v := m.IOReadB(8 * 1024); v != 0 {
		t.Fatalf("store past MEMSIZE should be dropped, read back %#x", v)
	}
}

func TestExamineDepositExamineRoundTrip(t *testing.T) {
	m := New(Interdata32, 64*1024)
	m.IOWriteB(0x100, 0xaa)
	if v := m.IOReadB(0x100); v != 0xaa {
		t.Fatalf("round trip failed, got %#x", v)
	}
}

func TestShrinkReportsDiscardedNonZero(t *testing.T) {
	m := New(Interdata16, 8*1024)
	m.IOWriteB(6*1024, 1)
	if discarded := m.SetSize(4 * 1024); !discarded {
		t.Fatal("expected shrink to report a discarded non-zero byte")
	}

	m2 := New(Interdata16, 8*1024)
	if discarded := m2.SetSize(4 * 1024); discarded {
		t.Fatal("shrinking all-zero tail should not report discarded data")
	}
}

func TestMacAliasRoundTrip(t *testing.T) {
	// Invariant 5: writing mac_reg[k] through WriteReg and reading it
	// back through ReadReg (the accessors behind the MAC_BASE+4k alias)
	// returns the same value masked by SrMask.
	var mac Mac
	const k = 3
	v := uint32(0x12345678)
	mac.WriteReg(k, v)
	if got := mac.ReadReg(k); got != v&SrMask {
		t.Fatalf("expected %#x, got %#x", v&SrMask, got)
	}
}

func TestMacTranslateLimitFault(t *testing.T) {
	var mac Mac
	// Segment 0: base 0, present, limit field 0 -> GET_SRL = 0+0x100 = 0x100.
	mac.Reg[0] = srPRS
	if _, st := mac.Translate(0x00ff, AccessRead); st != MacNone {
		t.Fatalf("expected in-limit access to succeed, got status %#x", st)
	}
	if _, st := mac.Translate(0x0100, AccessRead); st != MacLimit {
		t.Fatalf("expected offset at the limit to fault, got status %#x", st)
	}
}

func TestMacTranslateNotPresent(t *testing.T) {
	var mac Mac
	if _, st := mac.Translate(0, AccessRead); st != MacNP {
		t.Fatalf("expected MacNP for an absent segment, got %#x", st)
	}
}

func TestMacWriteProtect(t *testing.T) {
	var mac Mac
	mac.Reg[0] = srPRS | srWRP
	_, status := mac.Translate(0, AccessWrite)
	if status != MacWP {
		t.Fatalf("expected MacWP, got %#x", status)
	}
	if !status.Aborts() {
		t.Fatal("MacWP must abort the instruction")
	}
}

func TestAltairPROMMaterializesOnce(t *testing.T) {
	m := New(Altair8080, 64*1024)
	img := make([]byte, altairPromLen)
	img[0] = 0xc3
	m.SetAltairPROM(img)

	if v := m.IOReadB(altairPromBase); v != 0xff {
		t.Fatalf("PROM should not be installed before PC visits it, got %#x", v)
	}
	m.NotePC(altairPromBase)
	if v := m.IOReadB(altairPromBase); v != 0xc3 {
		t.Fatalf("PROM should be installed after PC visits it, got %#x", v)
	}
}
