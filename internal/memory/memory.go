/*
trisim - Low level memory

Copyright 2024, Richard Cornwell
Copyright 2026

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
*/

// Package memory implements the byte-addressable backing store shared by
// all three CPU families (spec §4.1): MAXMEMSIZE/MEMSIZE semantics,
// non-existent-memory policy, and the 8080 boot-PROM materialization.
// Segment relocation for 8/16E and 8/32 lives alongside it since both
// transforms only rewrite the address before it reaches this store.
package memory

import "fmt"

// Family selects the fixed MAXMEMSIZE and non-existent-memory fill value.
type Family int

const (
	Altair8080 Family = iota
	Interdata16
	Interdata16E
	Interdata32
)

// maxSize and nxmFill per family, spec §3 "Memory".
func (f Family) maxSize() uint32 {
	switch f {
	case Altair8080:
		return 64 * 1024
	case Interdata16:
		return 64 * 1024
	case Interdata16E:
		return 256 * 1024
	case Interdata32:
		return 1024 * 1024
	default:
		panic(fmt.Sprintf("memory: unknown family %d", f))
	}
}

func (f Family) nxmFill() byte {
	if f == Altair8080 {
		return 0xff
	}
	return 0
}

// altairPromBase/altairPromLen are the boot-PROM window materialized the
// first time PC reaches altairPromBase (spec §4.1; octal 0177400..0177772
// in original_source/ALTAIR/altair_sys.c).
const (
	altairPromBase = 0x7f00
	altairPromLen  = 250
)

// Memory is one machine's address space. It is owned by a Machine value;
// there is no package-level global.
type Memory struct {
	family  Family
	buf     []byte
	size    uint32 // configured MEMSIZE <= maxSize
	promSet bool
	prom    [altairPromLen]byte // installed by SetAltairPROM

	// mac, when set (Interdata-32 only), intercepts the MAC_BASE..
	// MAC_BASE+0x3F register alias in the fullword accessors ReadF/WriteF
	// and the MAC_STA status byte in the byte accessors (spec §6.3), so
	// L/ST instructions addressing that window read/write the segment
	// registers instead of backing storage. Halfword accesses to the
	// register window reach backing storage.
	mac *Mac
}

// SetMac binds the Interdata-32 CPU's Mac unit so the memory-mapped
// register window (spec §6.3) reads and writes through it. Machine
// composition owns the Mac value and calls this once at startup; nil
// restores plain memory semantics.
func (m *Memory) SetMac(mac *Mac) { m.mac = mac }

// New allocates a Memory for family, with every uninstalled byte
// (size <= addr < maxSize) initialised per spec: 0xff on the 8080, 0
// elsewhere. size is clamped to the family's MAXMEMSIZE.
func New(family Family, size uint32) *Memory {
	max := family.maxSize()
	if size > max {
		size = max
	}
	m := &Memory{
		family: family,
		buf:    make([]byte, max),
		size:   size,
	}
	fill := family.nxmFill()
	if fill != 0 {
		for i := range m.buf {
			m.buf[i] = fill
		}
	}
	return m
}

// Size returns the configured MEMSIZE in bytes.
func (m *Memory) Size() uint32 { return m.size }

// MaxSize returns MAXMEMSIZE for this family.
func (m *Memory) MaxSize() uint32 { return uint32(len(m.buf)) }

// SetSize changes MEMSIZE. discardedNonZero reports whether any byte
// being dropped (when shrinking) is non-zero; per spec, the caller
// (control monitor) must get user confirmation in that case before
// calling SetSize — this package only reports the fact.
func (m *Memory) SetSize(size uint32) (discardedNonZero bool) {
	max := m.MaxSize()
	if size > max {
		size = max
	}
	if size < m.size {
		for a := size; a < m.size; a++ {
			if m.buf[a] != 0 {
				discardedNonZero = true
				break
			}
		}
	}
	m.size = size
	return discardedNonZero
}

// installPROM materializes the boot PROM into the uninstalled-memory
// window the first time it is referenced; it is idempotent.
func (m *Memory) installPROM() {
	if m.family != Altair8080 || m.promSet {
		return
	}
	m.promSet = true
	copy(m.buf[altairPromBase:altairPromBase+altairPromLen], m.prom[:])
}

// SetAltairPROM installs the boot-ROM image content used by
// installPROM; the image itself is supplied by the (out-of-scope)
// boot-loader collaborator.
func (m *Memory) SetAltairPROM(img []byte) {
	n := copy(m.prom[:], img)
	for i := n; i < altairPromLen; i++ {
		m.prom[i] = 0
	}
}

// NotePC is called once per instruction fetch by the CPU loop; on the
// 8080, reaching the boot PROM's base address triggers its one-time
// materialization (spec §4.1).
func (m *Memory) NotePC(pc uint32) {
	if m.family == Altair8080 && pc == altairPromBase {
		m.installPROM()
	}
}

// ---- Physical accessors (IOReadB/IOWriteB): used by DMA/channel code,
// never pass through relocation. ----

// IOReadB reads one physical byte. Out-of-range reads return the
// family's non-existent-memory fill value.
func (m *Memory) IOReadB(addr uint32) uint8 {
	if m.mac != nil && addr == MacStaAddr {
		return m.mac.ReadStatus()
	}
	if addr >= m.size {
		return m.family.nxmFill()
	}
	return m.buf[addr]
}

// IOWriteB writes one physical byte. Out-of-range writes are silently
// dropped.
func (m *Memory) IOWriteB(addr uint32, v uint8) {
	if m.mac != nil && addr == MacStaAddr {
		return // MAC_STA is read-only; writes are discarded same as the original
	}
	if addr >= m.size {
		return
	}
	m.buf[addr] = v
}

// IOReadH reads a big-endian physical halfword.
func (m *Memory) IOReadH(addr uint32) uint16 {
	hi := m.IOReadB(addr)
	lo := m.IOReadB(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

// IOWriteH writes a big-endian physical halfword.
func (m *Memory) IOWriteH(addr uint32, v uint16) {
	m.IOWriteB(addr, uint8(v>>8))
	m.IOWriteB(addr+1, uint8(v))
}

// IOReadBlk copies up to len(buf) physical bytes starting at addr into buf,
// returning the number of bytes actually transferred before running off
// the end of installed memory.
func (m *Memory) IOReadBlk(addr uint32, buf []byte) int {
	n := 0
	for n < len(buf) && addr+uint32(n) < m.size {
		buf[n] = m.buf[addr+uint32(n)]
		n++
	}
	return n
}

// IOWriteBlk copies buf into physical memory starting at addr, stopping
// silently at the end of installed memory.
func (m *Memory) IOWriteBlk(addr uint32, buf []byte) int {
	n := 0
	for n < len(buf) && addr+uint32(n) < m.size {
		m.buf[addr+uint32(n)] = buf[n]
		n++
	}
	return n
}

// ---- Logical (little helper, pre-relocation) word accessors used by
// the 8080 and un-relocated Interdata operand fetch. Byte order for the
// Interdata families is big-endian; the 8080 is little-endian. Both
// CPU packages call the physical accessors directly after performing
// their own (possibly no-op) relocation, so only byte/halfword/word
// convenience wrappers live here. ----

// ReadB/WriteB are the 8080's little-endian byte accessors; identical to
// the physical ones since the 8080 has no relocation.
func (m *Memory) ReadB(addr uint32) uint8     { return m.IOReadB(addr) }
func (m *Memory) WriteB(addr uint32, v uint8) { m.IOWriteB(addr, v) }

// ReadLE16 reads a little-endian halfword (8080 operand fetch).
func (m *Memory) ReadLE16(addr uint32) uint16 {
	lo := m.IOReadB(addr)
	hi := m.IOReadB(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

// WriteLE16 writes a little-endian halfword.
func (m *Memory) WriteLE16(addr uint32, v uint16) {
	m.IOWriteB(addr, uint8(v))
	m.IOWriteB(addr+1, uint8(v>>8))
}

// ReadF reads a big-endian physical fullword (32 bits), used by
// Interdata-32 and by the MAC register aliases.
func (m *Memory) ReadF(addr uint32) uint32 {
	if m.mac != nil {
		if k, ok := RegIndexFromAddr(addr); ok {
			return m.mac.ReadReg(k)
		}
	}
	b0 := uint32(m.IOReadB(addr))
	b1 := uint32(m.IOReadB(addr + 1))
	b2 := uint32(m.IOReadB(addr + 2))
	b3 := uint32(m.IOReadB(addr + 3))
	return b0<<24 | b1<<16 | b2<<8 | b3
}

// WriteF writes a big-endian physical fullword.
func (m *Memory) WriteF(addr uint32, v uint32) {
	if m.mac != nil {
		if k, ok := RegIndexFromAddr(addr); ok {
			m.mac.WriteReg(k, v)
			return
		}
	}
	m.IOWriteB(addr, uint8(v>>24))
	m.IOWriteB(addr+1, uint8(v>>16))
	m.IOWriteB(addr+2, uint8(v>>8))
	m.IOWriteB(addr+3, uint8(v))
}
