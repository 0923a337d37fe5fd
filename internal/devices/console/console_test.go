package console

import (
	"testing"

	"github.com/dms3/trisim/internal/device"
)

func TestWriteAppendsToOutputAndFiresInterrupt(t *testing.T) {
	c := New()
	fired := 0
	c.SetInterruptHook(func() { fired++ })
	h := c.Handler()

	if _, err := h(0, device.IoOc, uint32(device.CmdIenb<<device.CmdIntShift|CmdWrite)); err != nil {
		t.Fatalf("IoOc: %v", err)
	}
	if _, err := h(0, device.IoWd, 'A'); err != nil {
		t.Fatalf("IoWd: %v", err)
	}
	if string(c.Output()) != "A" {
		t.Fatalf("output: want %q got %q", "A", c.Output())
	}
	if fired != 1 {
		t.Fatalf("interrupt should fire exactly once, fired %d times", fired)
	}
}

func TestReadDrainsFedBytesInOrder(t *testing.T) {
	c := New()
	c.Feed('h', 'i')
	h := c.Handler()

	h(0, device.IoOc, CmdRead)
	b1, _ := h(0, device.IoRd, 0)
	b2, _ := h(0, device.IoRd, 0)
	if b1 != 'h' || b2 != 'i' {
		t.Fatalf("want h,i got %c,%c", b1, b2)
	}
}

func TestFramingErrorScenario(t *testing.T) {
	// Scenario: inject a break, confirm the next status sense returns
	// STA_BRK|STA_EX, the next read returns 0, and an armed interrupt
	// fires exactly once.
	c := New()
	fired := 0
	c.SetInterruptHook(func() { fired++ })
	h := c.Handler()
	h(0, device.IoOc, uint32(device.CmdIenb<<device.CmdIntShift|CmdRead))

	c.Break()

	st, _ := h(0, device.IoSs, 0)
	if uint8(st)&(staBrk|device.StaEx) != (staBrk | device.StaEx) {
		t.Fatalf("sense after break: want STA_BRK|STA_EX set, got %#x", st)
	}

	b, _ := h(0, device.IoRd, 0)
	if b != 0 {
		t.Fatalf("read after break: want 0 got %#x", b)
	}
	if fired != 1 {
		t.Fatalf("interrupt should fire exactly once on the break read, fired %d times", fired)
	}
}

func TestBusyBitReflectsInFlightCommand(t *testing.T) {
	c := New()
	h := c.Handler()
	h(0, device.IoOc, CmdWrite)

	st, _ := h(0, device.IoSs, 0)
	if uint8(st)&device.StaBsy == 0 {
		t.Fatal("expected STA_BSY set while a write command is pending")
	}
	h(0, device.IoWd, 'x')
	st, _ = h(0, device.IoSs, 0)
	if uint8(st)&device.StaBsy != 0 {
		t.Fatal("STA_BSY should clear once the write completes")
	}
}
