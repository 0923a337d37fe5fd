package autoint

import (
	"testing"

	"github.com/dms3/trisim/internal/memory"
)

func newQueue(t *testing.T, slots uint16) (*memory.Memory, *SysQueue) {
	t.Helper()
	mem := memory.New(memory.Interdata32, 64*1024)
	const base uint32 = 0x1000
	mem.IOWriteH(base+q16Slots, slots)
	return mem, &SysQueue{Mem: mem, Base: base}
}

func TestAddBotRemTopFIFO(t *testing.T) {
	_, q := newQueue(t, 4)
	for _, v := range []uint32{1, 2, 3} {
		if !q.AddBot(v) {
			t.Fatalf("AddBot(%d) unexpectedly full", v)
		}
	}
	for _, want := range []uint32{1, 2, 3} {
		got, ok := q.RemTop()
		if !ok {
			t.Fatal("unexpected empty queue")
		}
		if got != want {
			t.Fatalf("want %d got %d", want, got)
		}
	}
	if _, ok := q.RemTop(); ok {
		t.Fatal("expected empty queue after draining")
	}
}

func TestAddTopRemBotLIFOOrdering(t *testing.T) {
	_, q := newQueue(t, 4)
	q.AddTop(1)
	q.AddTop(2)
	q.AddTop(3)
	// top order is now 3,2,1; AddBot appends after bot so RemBot drains
	// insertion order from the far end.
	got, _ := q.RemBot()
	if got != 1 {
		t.Fatalf("want 1 got %d", got)
	}
}

func TestFullReportsCCV(t *testing.T) {
	_, q := newQueue(t, 2)
	if q.Full() {
		t.Fatal("empty queue should not report full")
	}
	q.AddBot(1)
	q.AddBot(2)
	if !q.Full() {
		t.Fatal("expected full once used == slots")
	}
	if q.AddBot(3) {
		t.Fatal("AddBot on full queue should fail")
	}
	if q.AddTop(3) {
		t.Fatal("AddTop on full queue should fail")
	}
}

func TestWraparoundAcrossSlots(t *testing.T) {
	_, q := newQueue(t, 3)
	q.AddBot(10)
	q.AddBot(20)
	q.RemTop()           // used=1, top now at slot 1
	q.AddBot(30)
	q.AddBot(40)         // bot wraps back to slot 0
	var got []uint32
	for {
		v, ok := q.RemTop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	want := []uint32{20, 30, 40}
	if len(got) != len(want) {
		t.Fatalf("want %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v got %v", want, got)
		}
	}
}

func TestRemBotEmptyQueue(t *testing.T) {
	_, q := newQueue(t, 2)
	if _, ok := q.RemBot(); ok {
		t.Fatal("expected empty queue to report not-ok")
	}
}
