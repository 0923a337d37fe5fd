/*
trisim - Selector channel (DMA)

Copyright 2026
*/

// Package channel implements the Interdata selector channel (spec §4.8,
// C8): up to four channels, each with start/end address registers
// programmed by repeated byte writes, that pump bytes between memory and
// a bound device between CPU instructions.
package channel

import "github.com/dms3/trisim/internal/memory"

// Command byte bits (spec §3 "Selector channel state").
const (
	CmdEXA uint8 = 0x20 // examine address
	CmdRD  uint8 = 0x10 // direction: read from device into memory
	CmdGO  uint8 = 0x08 // start transfer
	CmdSTOP uint8 = 0x04 // stop transfer
	CmdSSTA uint8 = 0x02 // sense status
	CmdEXM  uint8 = 0x01 // examine/modify
)

// NumChannels is SCH_NUMCH.
const NumChannels = 4

type chanState struct {
	start   uint32 // current (next byte) address
	end     uint32 // last byte address
	cmd     uint8
	lastDev uint8
	wSeq    int // 0..2: which byte of start/end is next to be written
	rSeq    int
	go_     bool
	addrMask uint32
}

// Channels owns the four selector channels of one Machine.
type Channels struct {
	ch   [NumChannels]chanState
	mem  *memory.Memory
	// OnComplete, if set, is called with the channel index whenever a
	// transfer exhausts its address range (spec §4.8 step 4, "interrupt
	// service vector" completion).
	OnComplete func(idx int)
}

// New returns Channels bound to mem, with addrMask applied to every
// start/end address — 14 bits for 7/16, 18 for 8/16E, 20 for 32b
// (spec §4.8 step 1).
func New(mem *memory.Memory, addrMask uint32) *Channels {
	c := &Channels{mem: mem}
	for i := range c.ch {
		c.ch[i].addrMask = addrMask
	}
	return c
}

// Adr records which device last selected channel idx (sch_adr).
func (c *Channels) Adr(idx int, dev uint8) {
	c.ch[idx].lastDev = dev
}

// WriteAddrByte feeds one byte of the CPU's address-programming
// sequence into channel idx. The first three bytes written (after a
// Stop or before any Go) load the start address; bytes four through six
// load the end address, per the per-channel sequencer (spec §4.8 step
// 1). Callers reset the sequencer with ResetSeq before reprogramming.
func (c *Channels) WriteAddrByte(idx int, b uint8) {
	ch := &c.ch[idx]
	if ch.wSeq < 3 {
		ch.start = ((ch.start << 8) | uint32(b)) & 0xffffff
		ch.wSeq++
		return
	}
	ch.end = ((ch.end << 8) | uint32(b)) & 0xffffff
	if ch.wSeq < 5 {
		ch.wSeq++
	}
}

// ResetSeq restarts the address-byte sequencer for a fresh program.
func (c *Channels) ResetSeq(idx int) {
	c.ch[idx].wSeq = 0
	c.ch[idx].start = 0
	c.ch[idx].end = 0
}

// OC applies an output-command byte to channel idx (spec §4.8 step 2).
// Setting CmdGO starts the channel; clearing it (or CmdSTOP) halts it.
func (c *Channels) OC(idx int, cmd uint8) {
	ch := &c.ch[idx]
	ch.cmd = cmd
	ch.start &= ch.addrMask
	ch.end &= ch.addrMask
	if cmd&CmdGO != 0 {
		ch.go_ = true
	}
	if cmd&CmdSTOP != 0 {
		ch.go_ = false
	}
}

// Stop halts channel idx without waiting for it to exhaust its range.
func (c *Channels) Stop(idx int) {
	c.ch[idx].go_ = false
}

// Go reports whether channel idx currently has GO set.
func (c *Channels) Go(idx int) bool { return c.ch[idx].go_ }

// Blk (sch_blk) reports whether the channel bound to dev has GO set;
// the CPU uses this to refuse programmed-I/O access to a device in the
// middle of a channel transfer (spec §4.8 "Blocking test", invariant 6).
func (c *Channels) Blk(dev uint8) bool {
	for i := range c.ch {
		if c.ch[i].lastDev == dev && c.ch[i].go_ {
			return true
		}
	}
	return false
}

// Direction reports whether channel idx is programmed to read from the
// device into memory (true) or write memory to the device (false).
func (c *Channels) Direction(idx int) bool {
	return c.ch[idx].cmd&CmdRD != 0
}

// WrMem (sch_wrmem) transfers up to len(buf) bytes from buf into memory
// starting at the channel's current address, advancing it. It stops
// when the channel's end address is reached, clears GO, and fires
// OnComplete exactly once (spec §4.8 step 4, invariant: "a WR block-I/O
// that completes exactly as cur == end raises the device interrupt
// exactly once").
func (c *Channels) WrMem(idx int, buf []byte) int {
	ch := &c.ch[idx]
	n := 0
	for n < len(buf) {
		c.mem.IOWriteB(ch.start, buf[n])
		n++
		if ch.start == ch.end {
			ch.go_ = false
			if c.OnComplete != nil {
				c.OnComplete(idx)
			}
			return n
		}
		ch.start = (ch.start + 1) & ch.addrMask
	}
	return n
}

// RdMem (sch_rdmem) transfers up to len(buf) bytes from memory into buf
// starting at the channel's current address, with the same end-of-range
// completion behaviour as WrMem.
func (c *Channels) RdMem(idx int, buf []byte) int {
	ch := &c.ch[idx]
	n := 0
	for n < len(buf) {
		buf[n] = c.mem.IOReadB(ch.start)
		n++
		if ch.start == ch.end {
			ch.go_ = false
			if c.OnComplete != nil {
				c.OnComplete(idx)
			}
			return n
		}
		ch.start = (ch.start + 1) & ch.addrMask
	}
	return n
}

// Remaining returns end-cur+1, the number of bytes left to transfer.
func (c *Channels) Remaining(idx int) uint32 {
	ch := &c.ch[idx]
	if ch.end < ch.start {
		return 0
	}
	return ch.end - ch.start + 1
}

// StartAddr/EndAddr expose the programmed range, mainly for tests and
// for devices that need to know how large their transfer is up front.
func (c *Channels) StartAddr(idx int) uint32 { return c.ch[idx].start }
func (c *Channels) EndAddr(idx int) uint32   { return c.ch[idx].end }
