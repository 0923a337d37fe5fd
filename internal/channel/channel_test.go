package channel

import (
	"testing"

	"github.com/dms3/trisim/internal/memory"
)

func TestProgramAndGoSetsBlk(t *testing.T) {
	mem := memory.New(memory.Interdata32, 64*1024)
	c := New(mem, 0xfffff)
	c.Adr(0, 0xb6)

	for _, b := range []uint8{0x00, 0x10, 0x00} { // start = 0x1000
		c.WriteAddrByte(0, b)
	}
	for _, b := range []uint8{0x00, 0x10, 0xff} { // end = 0x10ff
		c.WriteAddrByte(0, b)
	}
	c.OC(0, CmdGO|CmdRD)

	if !c.Blk(0xb6) {
		t.Fatal("expected sch_blk true after GO")
	}
}

func TestStopClearsBlk(t *testing.T) {
	mem := memory.New(memory.Interdata16, 64*1024)
	c := New(mem, 0x3fff)
	c.Adr(1, 0x20)
	c.OC(1, CmdGO)
	c.Stop(1)
	if c.Blk(0x20) {
		t.Fatal("expected sch_blk false after Stop")
	}
}

func TestReadDMAIntoMemory(t *testing.T) {
	mem := memory.New(memory.Interdata32, 64*1024)
	c := New(mem, 0xfffff)
	c.Adr(0, 0xb6)
	c.ResetSeq(0)
	for _, b := range []uint8{0x00, 0x10, 0x00} {
		c.WriteAddrByte(0, b)
	}
	for _, b := range []uint8{0x00, 0x10, 0xff} { // 256-byte window
		c.WriteAddrByte(0, b)
	}
	c.OC(0, CmdGO|CmdRD)

	sector := make([]byte, 256)
	for i := range sector {
		sector[i] = byte(i)
	}

	completions := 0
	c.OnComplete = func(idx int) { completions++ }

	n := c.WrMem(0, sector)
	if n != 256 {
		t.Fatalf("expected 256 bytes transferred, got %d", n)
	}
	if completions != 1 {
		t.Fatalf("expected exactly one completion interrupt, got %d", completions)
	}
	if c.Go(0) {
		t.Fatal("GO should clear once the range is exhausted")
	}
	for i := 0; i < 256; i++ {
		if v := mem.IOReadB(0x1000 + uint32(i)); v != byte(i) {
			t.Fatalf("byte %d: expected %d, got %d", i, i, v)
		}
	}
}

func TestBlkTrueUntilStopOrExhausted(t *testing.T) {
	// Invariant 6.
	mem := memory.New(memory.Interdata32, 64*1024)
	c := New(mem, 0xfffff)
	c.Adr(0, 0x10)
	for _, b := range []uint8{0, 0, 0} {
		c.WriteAddrByte(0, b)
	}
	for _, b := range []uint8{0, 0, 1} { // end = 1, 2 byte window
		c.WriteAddrByte(0, b)
	}
	c.OC(0, CmdGO|CmdRD)
	if !c.Blk(0x10) {
		t.Fatal("expected blocked immediately after GO")
	}
	c.WrMem(0, []byte{1})
	if !c.Blk(0x10) {
		t.Fatal("expected still blocked before end reached")
	}
	c.WrMem(0, []byte{2})
	if c.Blk(0x10) {
		t.Fatal("expected unblocked once cur passes end")
	}
}
