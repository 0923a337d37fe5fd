package machine

import (
	"testing"

	"github.com/dms3/trisim/internal/device"
	"github.com/dms3/trisim/internal/interdata"
	"github.com/dms3/trisim/internal/interdata/id16"
	"github.com/dms3/trisim/internal/interdata/id32"
)

func TestNewFamilyDispatch(t *testing.T) {
	cases := []struct {
		name   string
		family Family
	}{
		{"altair", FamilyAltair},
		{"id16", FamilyID16},
		{"id32", FamilyID32},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := New(Config{Family: c.family, MemSize: 4096})
			n := 0
			if m.CPU8080() != nil {
				n++
			}
			if m.ID16() != nil {
				n++
			}
			if m.ID32() != nil {
				n++
			}
			if n != 1 {
				t.Fatalf("want exactly one non-nil CPU state, got %d", n)
			}
			switch c.family {
			case FamilyAltair:
				if m.CPU8080() == nil {
					t.Fatal("want CPU8080 state for FamilyAltair")
				}
			case FamilyID32:
				if m.ID32() == nil {
					t.Fatal("want ID32 state for FamilyID32")
				}
				if m.Mac() == nil {
					t.Fatal("want non-nil Mac for FamilyID32")
				}
			default:
				if m.ID16() == nil {
					t.Fatal("want ID16 state for FamilyID16")
				}
				if m.Mac() != nil {
					t.Fatal("want nil Mac for a non-32-bit family")
				}
			}
		})
	}
}

func TestRunID32DeliversMacExceptionPostInstruction(t *testing.T) {
	m := New(Config{Family: FamilyID32, Model: interdata.Model832, MemSize: 64 * 1024})
	s := m.ID32()
	mac := m.Mac()
	mac.Reg[0] = 0x10 | 0x80 // present | exec-protect: every fetch in segment 0 queues EV_MAC

	m.Mem.IOWriteH(0, 0x0812) // LR R1,R2
	m.Mem.IOWriteH(id32.MPRPSW+4, 0)       // new PSW
	m.Mem.IOWriteH(id32.MPRPSW+6, 0x0500) // new PC

	s.PSW = interdata.PSWREL
	s.Regs.Window(0)[2] = 0x1234

	if _, err := m.Run(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.PC != 0x0500 {
		t.Fatalf("want the MPRPSW trap delivered once Step returns, PC want 0x500 got %#x", s.PC)
	}
	if got := m.Mem.IOReadH(id32.MPRPSW + 2); got != 2 {
		t.Fatalf("want the faulting instruction's post-fetch PC (2) saved at MPRPSW+2, got %#x", got)
	}
	if mac.PendingEvent() {
		t.Fatal("want the MAC event consumed once the exception is delivered")
	}
}

func TestRun8080StopsOnHalt(t *testing.T) {
	m := New(Config{Family: FamilyAltair, MemSize: 4096})
	m.Mem.WriteB(0, 0166) // HLT
	reason, err := m.Run(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != StopHalt {
		t.Fatalf("want StopHalt, got %v", reason)
	}
}

func TestRun8080RecordsHistory(t *testing.T) {
	m := New(Config{Family: FamilyAltair, MemSize: 4096, HistoryLen: 4})
	m.Mem.WriteB(0, 0166) // HLT
	if _, err := m.Run(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hist := m.History()
	if len(hist) != 1 || hist[0].PC != 0 {
		t.Fatalf("want one history entry at PC 0, got %+v", hist)
	}
}

// stubDevice is a minimal device.Handler exercising just enough of the
// contract for drainBlock16/32: IoSs reports busy while busy is true,
// IoRd/IoWd record the bytes transferred.
type stubDevice struct {
	busy  bool
	reads []uint8 // bytes to return from successive IoRd calls
	wrote []uint8 // bytes received via IoWd
}

func (d *stubDevice) handler() device.Handler {
	return func(_ uint8, op device.IoOp, data uint32) (uint32, error) {
		switch op {
		case device.IoSs:
			if d.busy {
				return uint32(device.StaBsy), nil
			}
			return 0, nil
		case device.IoRd:
			if len(d.reads) == 0 {
				return 0, nil
			}
			b := d.reads[0]
			d.reads = d.reads[1:]
			return uint32(b), nil
		case device.IoWd:
			d.wrote = append(d.wrote, uint8(data))
			return 0, nil
		default:
			return 0, nil
		}
	}
}

func newID16Machine(t *testing.T) *Machine {
	t.Helper()
	return New(Config{Family: FamilyID16, Model: interdata.Model716, MemSize: 4096})
}

func TestDrainBlock16ReadTransfersOneByteThenStops(t *testing.T) {
	m := newID16Machine(t)
	dev := &stubDevice{reads: []uint8{0xAB}}
	if err := m.AttachDevices([]*device.DIB{
		{DevNum: 0x10, Channel: -1, IrqLevel: -1, IOT: dev.handler()},
	}); err != nil {
		t.Fatalf("AttachDevices: %v", err)
	}

	s := m.ID16()
	s.Blk = id16.BlkIO{Dev: 0x10, Cur: 0x100, End: 0x100, Active: true, Read: true}
	m.drainBlock16()

	if got := m.Mem.IOReadB(0x100); got != 0xAB {
		t.Fatalf("want byte 0xAB written to 0x100, got %#x", got)
	}
	if s.Blk.Active {
		t.Fatal("want Blk.Active cleared once Cur reached End")
	}
}

func TestDrainBlock16WriteDirectionSendsMemoryByteToDevice(t *testing.T) {
	m := newID16Machine(t)
	dev := &stubDevice{}
	if err := m.AttachDevices([]*device.DIB{
		{DevNum: 0x10, Channel: -1, IrqLevel: -1, IOT: dev.handler()},
	}); err != nil {
		t.Fatalf("AttachDevices: %v", err)
	}
	m.Mem.IOWriteB(0x200, 0x77)

	s := m.ID16()
	s.Blk = id16.BlkIO{Dev: 0x10, Cur: 0x200, End: 0x200, Active: true, Read: false}
	m.drainBlock16()

	if len(dev.wrote) != 1 || dev.wrote[0] != 0x77 {
		t.Fatalf("want device to receive byte 0x77, got %v", dev.wrote)
	}
	if s.Blk.Active {
		t.Fatal("want Blk.Active cleared once Cur reached End")
	}
}

func TestDrainBlock16LeavesBlockActiveWhileDeviceBusy(t *testing.T) {
	m := newID16Machine(t)
	dev := &stubDevice{busy: true, reads: []uint8{0x01}}
	if err := m.AttachDevices([]*device.DIB{
		{DevNum: 0x10, Channel: -1, IrqLevel: -1, IOT: dev.handler()},
	}); err != nil {
		t.Fatalf("AttachDevices: %v", err)
	}

	s := m.ID16()
	s.Blk = id16.BlkIO{Dev: 0x10, Cur: 0x100, End: 0x101, Active: true, Read: true}
	m.drainBlock16()

	if !s.Blk.Active {
		t.Fatal("want Blk.Active to stay set while the device reports busy")
	}
	if m.Mem.IOReadB(0x100) != 0 {
		t.Fatal("want no byte transferred while the device is busy")
	}
}

func TestDeliverInterrupt16GatedOnPSWEXI(t *testing.T) {
	m := newID16Machine(t)
	s := m.ID16()
	m.Intr.BindLevel(0, 0x10)
	m.Intr.Enable(0)
	m.Intr.Set(0)

	// PSW.EXI clear: interrupt stays pending, no trap taken.
	s.PSW = 0
	s.PC = 0x42
	m.deliverInterrupt16()
	if !m.Intr.Pending() {
		t.Fatal("want interrupt to stay pending when PSW.EXI is clear")
	}
	if s.PC != 0x42 {
		t.Fatalf("want PC unchanged when PSW.EXI is clear, got %#x", s.PC)
	}

	// PSW.EXI set: the trap runs and consumes the pending request.
	s.PSW = interdata.PSWEXI
	m.deliverInterrupt16()
	if m.Intr.Pending() {
		t.Fatal("want the interrupt consumed once PSW.EXI is set")
	}
}

func TestRunID16HaltsWhenWaitingWithEmptyQueue(t *testing.T) {
	m := newID16Machine(t)
	s := m.ID16()
	s.PSW = interdata.PSWWait

	reason, err := m.Run(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != StopHalt {
		t.Fatalf("want StopHalt on an idle WAIT with no pending event, got %v", reason)
	}
}

func TestDeliverInterrupt16AutoImmediateVector(t *testing.T) {
	m := newID16Machine(t)
	s := m.ID16()
	m.Intr.BindLevel(0, 0x10)
	m.Intr.Enable(0)
	m.Intr.Set(0)

	const loc uint32 = 0x300 // even address: INTSVT slot names an immediate vector, not a CCB
	m.Mem.IOWriteH(id16.INTSVT+0x10*2, uint16(loc))
	m.Mem.IOWriteH(loc+4, 0)      // new PSW
	m.Mem.IOWriteH(loc+6, 0x555) // new PC

	s.PSW = interdata.PSWEXI | interdata.PSWAIO
	s.PC = 0x42
	m.deliverInterrupt16()

	if s.PC != 0x555 {
		t.Fatalf("want PC loaded from the immediate vector's new-PSW slot, got %#x", s.PC)
	}
	if got := m.Mem.IOReadH(loc + 2); got != 0x42 {
		t.Fatalf("want old PC 0x42 saved at loc+2, got %#x", got)
	}
	if m.Intr.Pending() {
		t.Fatal("want the interrupt consumed")
	}
}

func TestDeliverInterrupt16AutoCCBTransfersThenNoOpsCCW(t *testing.T) {
	m := newID16Machine(t)
	s := m.ID16()
	dev := &stubDevice{reads: []uint8{0xAB}}
	if err := m.AttachDevices([]*device.DIB{
		{DevNum: 0x10, Channel: -1, IrqLevel: -1, IOT: dev.handler()},
	}); err != nil {
		t.Fatalf("AttachDevices: %v", err)
	}
	m.Intr.BindLevel(0, 0x10)
	m.Intr.Enable(0)
	m.Intr.Set(0)

	const ccb uint32 = 0x400
	const slot = 0x10*2 + 0 // offset within INTSVT
	m.Mem.IOWriteH(id16.INTSVT+uint32(slot), uint16(ccb|1)) // odd: names a CCB
	m.Mem.IOWriteH(ccb+0, 0)                                // CCW: fnc=RD, bpi=1, no flags
	m.Mem.IOWriteH(ccb+2, 0x600)                            // start
	m.Mem.IOWriteH(ccb+4, 0x600)                            // end: one byte transferred

	s.PSW = interdata.PSWEXI | interdata.PSWAIO
	m.deliverInterrupt16()

	if got := m.Mem.IOReadB(0x600); got != 0xAB {
		t.Fatalf("want the CCB's single byte transferred to 0x600, got %#x", got)
	}
	if m.Mem.IOReadH(ccb)&0x4000 == 0 { // ccwNop
		t.Fatal("want the CCW NOPed once the transfer reached its end address")
	}
	if m.Intr.Pending() {
		t.Fatal("want the interrupt consumed")
	}
}

func TestRunID16WaitResumesOnceEventFires(t *testing.T) {
	m := newID16Machine(t)
	s := m.ID16()
	s.PSW = interdata.PSWWait

	woke := false
	m.EQ.Activate(s, func(int) {
		woke = true
		s.PSW &^= interdata.PSWWait
	}, 3, 0)

	m.Mem.WriteB(uint32(s.PC), 0) // whatever sits at PC once WAIT clears is irrelevant to this assertion

	reason, _ := m.Run(1)
	_ = reason
	if !woke {
		t.Fatal("want the queued event to fire while idling in WAIT")
	}
}
