package autoint

import (
	"testing"

	"github.com/dms3/trisim/internal/memory"
)

type fakeDevice struct {
	buf       []uint8
	oc        uint8
	lastWrite []uint8
}

func (d *fakeDevice) SendOC(cmd uint8) { d.oc = cmd }

func (d *fakeDevice) TransferByte(write bool, b uint8) (uint8, bool) {
	if write {
		d.lastWrite = append(d.lastWrite, b)
		return 0, true
	}
	if len(d.buf) == 0 {
		return 0, false
	}
	v := d.buf[0]
	d.buf = d.buf[1:]
	return v, true
}

func (d *fakeDevice) Status() uint8 { return 0 }

// writeCCB16 lays out a CCB at base with fields per spec §3, leaving the
// 4-byte chain/dev/status header immediately before ccw.
func writeCCB16(mem *memory.Memory, base uint32, ccw uint16, start, end uint16, ioc, term uint8) {
	mem.IOWriteH(base+ccbCcw, ccw)
	mem.IOWriteH(base+ccbStr, start)
	mem.IOWriteH(base+ccbEnd, end)
	mem.IOWriteB(base+ccbIoc, ioc)
	mem.IOWriteB(base+ccbTrm, term)
}

func TestImmediateInterruptReadTransfer(t *testing.T) {
	mem := memory.New(memory.Interdata16, 64*1024)
	const base uint32 = 0x200
	const bufAddr uint16 = 0x400

	// Read function, 3 bytes per interrupt, buffer is exactly 3 bytes.
	ccw := uint16(fncRD)<<fncShift | 2 // bpi = 3
	writeCCB16(mem, base, ccw, bufAddr, bufAddr+2, 0, 0)

	dev := &fakeDevice{buf: []uint8{0xaa, 0xbb, 0xcc}}
	eng := &Engine{Mem: mem}

	res := eng.Run(0x42, base, 0xD0, dev)
	if !res.Terminated {
		t.Fatal("expected the 3-byte buffer to terminate in one pass")
	}
	for i, want := range []uint8{0xaa, 0xbb, 0xcc} {
		if got := mem.IOReadB(uint32(bufAddr) + uint32(i)); got != want {
			t.Fatalf("byte %d: want %#x got %#x", i, want, got)
		}
	}
	devStatus := mem.IOReadH(uint32(int64(base) + ccbDev))
	if uint8(devStatus>>8) != 0x42 {
		t.Fatalf("expected device number 0x42 recorded, got %#x", devStatus)
	}
	if mem.IOReadH(base+ccbCcw)&ccwNop == 0 {
		t.Fatal("expected CCW to be NOPed after termination")
	}
}

func TestDMTDecrementsUntilZero(t *testing.T) {
	mem := memory.New(memory.Interdata16, 64*1024)
	const base uint32 = 0x300
	ccw := uint16(fncDMT) << fncShift
	mem.IOWriteH(base+ccbCcw, ccw)
	mem.IOWriteH(base+ccbStr, 2)

	eng := &Engine{Mem: mem}
	dev := &fakeDevice{}

	res := eng.Run(0x10, base, 0, dev)
	if res.Terminated {
		t.Fatal("expected DMT not to terminate until counter reaches zero")
	}
	res = eng.Run(0x10, base, 0, dev)
	if !res.Terminated {
		t.Fatal("expected DMT to terminate once counter hits zero")
	}
}

func TestNopCCWIsInert(t *testing.T) {
	mem := memory.New(memory.Interdata16, 64*1024)
	const base uint32 = 0x100
	mem.IOWriteH(base+ccbCcw, ccwNop)
	eng := &Engine{Mem: mem}
	res := eng.Run(1, base, 0, &fakeDevice{})
	if !res.Terminated {
		t.Fatal("NOP CCW should report terminated with no transfer")
	}
}

func TestChainInstallsNextCCB(t *testing.T) {
	mem := memory.New(memory.Interdata16, 64*1024)
	const base uint32 = 0x500
	const vector uint32 = 0xD0
	ccw := uint16(fncRD)<<fncShift | ccwCHN
	writeCCB16(mem, base, ccw, 0x600, 0x600, 0, 0)
	mem.IOWriteH(uint32(int64(base)+ccbChn), 0x700)

	eng := &Engine{Mem: mem}
	res := eng.Run(3, base, vector, &fakeDevice{buf: []uint8{1}})
	if !res.Chained {
		t.Fatal("expected chained result")
	}
	if got := mem.IOReadH(vector); got != 0x700 {
		t.Fatalf("expected vector to hold chained address 0x700, got %#x", got)
	}
}
