package interdata

import "testing"

func TestModelPSWMask(t *testing.T) {
	cases := []struct {
		m    Model
		want uint32
	}{
		{ModelI3, 0xF40F},
		{ModelI4, 0xF40F},
		{Model716, 0xFF0F},
		{Model816, 0xFF0F},
		{Model816E, 0xFFFF},
		{Model732, 0xFFFF},
		{Model832, 0xFFFF},
	}
	for _, c := range cases {
		if got := c.m.PSWMask(); got != c.want {
			t.Errorf("Model(%d).PSWMask() = %#x, want %#x", c.m, got, c.want)
		}
	}
}

func TestBuildPSW(t *testing.T) {
	// Old PSW carries EXI set plus a stale CC nibble; BuildPSW must drop
	// the stale CC and OR in the new one, then mask to the model.
	psw := uint32(PSWEXI | CCCarry)
	got := BuildPSW(psw, CCGreater, Model716.PSWMask())
	want := uint32(PSWEXI | CCGreater)
	if got != want {
		t.Fatalf("BuildPSW: got %#x want %#x", got, want)
	}
}

func TestBuildPSWMasksToModel(t *testing.T) {
	// A bit outside the I3/I4 mask (e.g. PSW_AIO, 0x0800) must not survive.
	psw := uint32(PSWAIO | PSWEXI)
	got := BuildPSW(psw, 0, ModelI3.PSWMask())
	if got&PSWAIO != 0 {
		t.Fatalf("BuildPSW: PSW_AIO should be masked off on ModelI3, got %#x", got)
	}
	if got&PSWEXI == 0 {
		t.Fatalf("BuildPSW: PSW_EXI should survive on ModelI3, got %#x", got)
	}
}

func TestPSWGetMapAndGetReg(t *testing.T) {
	// Map/register-set selector lives in bits 4-7.
	psw := uint32(0x00A0) // selector field = 0xA
	if got := PSWGetMap(psw); got != 0xA {
		t.Fatalf("PSWGetMap: got %#x want 0xa", got)
	}
	if got := PSWGetReg(psw); got != 0xA {
		t.Fatalf("PSWGetReg: got %#x want 0xa", got)
	}
}

func TestSEXT16(t *testing.T) {
	cases := []struct {
		in   uint32
		want int32
	}{
		{0x0000, 0},
		{0x7FFF, 0x7FFF},
		{0x8000, -32768},
		{0xFFFF, -1},
	}
	for _, c := range cases {
		if got := SEXT16(c.in); got != c.want {
			t.Errorf("SEXT16(%#x) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestPCQueueEntryAndAt(t *testing.T) {
	var q PCQueue
	q.Entry(0x100)
	q.Entry(0x200)
	q.Entry(0x300)

	if got := q.At(0); got != 0x300 {
		t.Fatalf("most recent entry: got %#x want 0x300", got)
	}
	if got := q.At(1); got != 0x200 {
		t.Fatalf("second entry: got %#x want 0x200", got)
	}
	if got := q.At(2); got != 0x100 {
		t.Fatalf("third entry: got %#x want 0x100", got)
	}
}

func TestPCQueueWrapsAt64Entries(t *testing.T) {
	var q PCQueue
	for i := 0; i < 65; i++ {
		q.Entry(uint16(i))
	}
	// 65 entries into a 64-slot ring: the oldest (0) has been overwritten,
	// so the 64th-most-recent slot now holds entry 1, not entry 0.
	if got := q.At(63); got != 1 {
		t.Fatalf("wrapped oldest slot: got %d want 1", got)
	}
	if got := q.At(0); got != 64 {
		t.Fatalf("most recent slot: got %d want 64", got)
	}
}

func TestRegsWindow(t *testing.T) {
	var r Regs
	w0 := r.Window(0)
	w1 := r.Window(1)
	w0[3] = 0xAAAA
	w1[3] = 0xBBBB
	if w0[3] != 0xAAAA || w1[3] != 0xBBBB {
		t.Fatalf("register sets should not alias: w0[3]=%#x w1[3]=%#x", w0[3], w1[3])
	}
	if &r.GREG[3] != &w0[3] {
		t.Fatal("Window(0) should view GREG[0:16] directly")
	}
	if &r.GREG[19] != &w1[3] {
		t.Fatal("Window(1) should view GREG[16:32]")
	}
}
