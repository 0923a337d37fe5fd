/*
trisim - Interdata 7/32-8/32 CPU interpreter

Copyright 2026
*/

// Package id32 implements the Interdata-32 instruction interpreter
// (spec §4.4, C4, Interdata-32 branch): the three-addressing-mode RX
// operand fetch (14-bit absolute / 15-bit PC-relative / 24-bit long
// form), register-set-switched general registers, the R13/R14/R15 SVC
// argument convention, and the automatic-interrupt-engine PSW swap on
// traps.
package id32

import (
	"math"

	"github.com/dms3/trisim/internal/device"
	"github.com/dms3/trisim/internal/interdata"
	"github.com/dms3/trisim/internal/iobus"
	"github.com/dms3/trisim/internal/memory"
)

// Low-memory trap vector addresses (id_defs.h).
const (
	ILOPSW  uint32 = 0x30
	AFIPSW  uint32 = 0x48
	EXIPSW  uint32 = 0x40
	MPRPSW  uint32 = 0x90 // memory-protect (MAC) trap
	SVNPS32 uint32 = 0x98
	SVNPC   uint32 = 0x9C
)

// Autoload device/command/buffer cells, shared with the 16-bit family
// (id_defs.h AL_DEV/AL_IOC/AL_BUF).
const (
	ALDev  uint32 = 0x78
	ALIoc  uint32 = 0x79
	ALBuf  uint32 = 0x80
	DevMax uint32 = 0xff
)

const vaMask uint32 = 0xFFFFF // 20-bit virtual address space

// StopReason is why Step returned without completing normally.
type StopReason int

const (
	StopNone StopReason = iota
	StopRsrv
	StopHalt
	StopIBkpt
	StopWait
)

// State is one Interdata-32 CPU's register file, PSW and bookkeeping.
// Regs holds every register set; r() selects the one PSWGetReg(PSW)
// names, per the 8/32 register-set-switching convention.
type State struct {
	Regs interdata.Regs
	PSW  uint32
	PC   uint32
	CC   uint32
	PCQ  interdata.PCQueue
	Mask uint32

	Trap bool

	// Mac is the 8/32 Memory Access Controller, bound once by Machine
	// composition. Relocation only engages when Mac is non-nil and
	// PSW.REL is set (spec §4.1); nil leaves every address physical,
	// which is how the unit tests in this package exercise the
	// interpreter without a MAC attached.
	Mac *memory.Mac

	// oPC and aborted back the MAC abort convention (spec §4.4 step 3,
	// §5): relocate sets aborted and, for an aborting status, restores
	// PC to oPC immediately, mirroring id32_cpu.c's setjmp/longjmp
	// recovery handler's "cpu_unit.flags & UNIT_832 ? PC = oPC" branch.
	oPC     uint32
	aborted bool

	// Blk is the in-progress block-I/O status, armed by WB/RB/AL and
	// drained a byte at a time by the Machine composition root between
	// instructions (spec §4.9's "can't be interrupted" block I/O model).
	Blk BlkIO

	// ChanBlk reports whether dev is currently claimed by a selector
	// channel (sch_blk); Machine-owned wiring to internal/channel.
	ChanBlk func(dev uint8) bool
}

// BlkIO mirrors id_defs.h's blk_io status block: a device number, the
// read/skip-zero flags (id32_cpu.c's BL_RD/BL_LZ, kept here as the
// separate Read and LZ fields rather than folded into Dev), and the
// current/end fullword addresses of the in-progress block transfer.
type BlkIO struct {
	Dev    uint16
	Cur    uint32
	End    uint32
	Active bool
	Read   bool
	LZ     bool
}

// r returns the active 16-register window for the PSW's current
// register-set selector.
func (s *State) r() []uint32 { return s.Regs.Window(interdata.PSWGetReg(s.PSW)) }

// relocate maps a virtual address through the MAC for mode, mirroring
// id32_cpu.c's Reloc() gating: unrelocated whenever the MAC isn't
// bound or PSW.REL is clear. Any non-MacNone status is latched via
// Mac.Fault so the owning Machine delivers MPRPSW once Step returns,
// and sets aborted so Step unwinds the rest of the current
// instruction; an aborting status (L/NP/WP) additionally restores PC
// to oPC.
func (s *State) relocate(va uint32, mode memory.Access) uint32 {
	if s.Mac == nil || s.PSW&interdata.PSWREL == 0 {
		return va
	}
	pa, status := s.Mac.Translate(va, mode)
	if status == memory.MacNone {
		return pa
	}
	s.Mac.Fault(status)
	s.aborted = true
	if status.Aborts() {
		s.PC = s.oPC
	}
	return pa
}

// checkAbort reports and clears a pending relocate() abort; callers
// that touch memory between decode steps use it to unwind Step early.
func (s *State) checkAbort() bool {
	if !s.aborted {
		return false
	}
	s.aborted = false
	return true
}

func (s *State) fetchH(mem *memory.Memory) uint32 {
	pa := s.relocate(s.PC, memory.AccessExec)
	v := uint32(mem.IOReadH(pa))
	s.PC = (s.PC + 2) & vaMask
	return v
}

// opShape classifies the operand-fetch form selected by the high
// nibble of the opcode, per id32_cpu.c's OP_NO/OP_RR/OP_RI1/OP_RI2/
// OP_RX family switch.
type opShape int

const (
	shapeNO opShape = iota
	shapeRR
	shapeRI1
	shapeRI2
	shapeRXH // halfword operand, sign-extended to 32 bits
	shapeRXF // fullword operand
	shapeRXAddr
)

func shapeFor(op uint8) opShape {
	switch op & 0xF0 {
	case 0x00, 0x10:
		return shapeRR
	case 0x20, 0x30:
		return shapeNO
	case 0x40:
		return shapeRXH
	case 0x50:
		return shapeRXF
	case 0xC0:
		return shapeRI1
	case 0xF0:
		return shapeRI2
	default:
		return shapeRXAddr
	}
}

// ea32 resolves the three RX addressing forms (spec §4.3): a leading
// 00 pair selects a 14-bit absolute displacement, a leading 1 bit
// selects a 15-bit PC-relative displacement, and a leading 01 pair
// selects the long form with an extra halfword and a second index
// register. The displacement halfwords are themselves fetched
// via fetchH (VE mode), so an exec-protect fault mid-ea computation
// sets aborted exactly as a plain opcode fetch would.
func (s *State) ea32(mem *memory.Memory, r2 uint32) uint32 {
	ir2 := s.fetchH(mem)
	var ea uint32
	switch {
	case ir2&0xC000 == 0:
		ea = ir2
	case ir2&0x8000 != 0:
		ea = (s.PC + uint32(sext15(ir2&0x7FFF))) & vaMask
	default:
		rx2 := (ir2 >> 8) & 0xF
		ir3 := s.fetchH(mem)
		ea = (ir2&0xFF)<<16 | ir3
		if rx2 != 0 {
			ea = ea + s.r()[rx2]
		}
	}
	if r2 != 0 {
		ea += s.r()[r2]
	}
	return ea & vaMask
}

// decode resolves (operand, effective address) for op given its r1/r2
// fields; ea is set only for the RX shapes and is 0 for the NO, RR and
// RI shapes (ST/STH do not call decode; they resolve ea32 directly).
// The returned ea is always the virtual address: callers that
// dereference it for a store relocate it themselves with the
// write-specific mode.
func (s *State) decode(mem *memory.Memory, op uint8, r1, r2 uint32) (opnd, ea uint32) {
	r := s.r()
	switch shapeFor(op) {
	case shapeNO:
		return r2, 0
	case shapeRR:
		return r[r2], 0
	case shapeRI1:
		imm := s.fetchH(mem)
		v := uint32(interdata.SEXT16(imm))
		if r2 != 0 {
			v += r[r2]
		}
		return v, 0
	case shapeRI2:
		hi := s.fetchH(mem)
		lo := s.fetchH(mem)
		v := hi<<16 | lo
		if r2 != 0 {
			v += r[r2]
		}
		return v, 0
	case shapeRXH:
		ea := s.ea32(mem, r2)
		pa := s.relocate(ea, memory.AccessRead)
		return uint32(interdata.SEXT16(uint32(mem.IOReadH(pa)))), ea
	case shapeRXF:
		ea := s.ea32(mem, r2)
		pa := s.relocate(ea, memory.AccessRead)
		return mem.ReadF(pa), ea
	default: // shapeRXAddr: address only, no memory read
		ea := s.ea32(mem, r2)
		return ea, ea
	}
}

// sext15 sign-extends a 15-bit PC-relative displacement field, per
// SEXT15 in id32_cpu.c.
func sext15(x uint32) int32 {
	x &= 0x7FFF
	if x&0x4000 != 0 {
		return int32(x | 0xFFFF8000)
	}
	return int32(x)
}

func ccGL32(x uint32) uint32 {
	if x&0x80000000 != 0 {
		return interdata.CCLess
	}
	if x != 0 {
		return interdata.CCGreater
	}
	return 0
}

// newPSW stores val (masked) and returns the folded-in condition codes.
func (s *State) newPSW(val uint32) uint32 {
	s.PSW = val & s.Mask
	return s.PSW & interdata.CCMask
}

// exception implements the trap convention: BUILD_PSW(cc) is saved at
// loc, PC at loc+2, then PSW/PC are reloaded from loc+4/loc+6 exactly
// as the 16-bit family's swap_psw, reused here since the low-memory
// trap vectors share the same 16-bit layout on 32b models. Trap
// vectors are always physical references (id32_cpu.c's P mode), never
// relocated through the MAC.
func (s *State) exception(mem *memory.Memory, loc uint32) {
	mem.IOWriteH(loc, uint16(interdata.BuildPSW(s.PSW, s.CC, s.Mask)))
	mem.IOWriteH(loc+2, uint16(s.PC))
	s.CC = s.newPSW(uint32(mem.IOReadH(loc + 4)))
	s.PC = uint32(mem.IOReadH(loc+6)) & vaMask
}

// DeliverInterrupt runs the external-interrupt trap (EXIPSW), the
// owning Machine's call once a pending, enabled interrupt has been
// found via the interrupt controller (spec §4.4 "Interrupt delivery").
// id32 has no AI opcode of its own, so interrupt delivery and the
// device-number fetch both live on the Machine side of this boundary.
func (s *State) DeliverInterrupt(mem *memory.Memory) {
	s.exception(mem, EXIPSW)
}

// MacException delivers the memory-protect trap (MPRPSW), the Machine
// composition root's call once Mac.PendingEvent reports an EV_MAC
// condition left over from the instruction Step just ran (spec §4.4
// step 3, §5's async-MAC-fault ordering guarantee): the fault is
// always delivered after the instruction that raised it, never mid-
// instruction, which is why this is a separate post-Step call rather
// than something relocate triggers directly.
func (s *State) MacException(mem *memory.Memory) {
	if s.Mac != nil {
		s.Mac.AckEvent()
	}
	s.exception(mem, MPRPSW)
}

// devAcc implements DEV_ACC(d): the device must be bound and not
// currently claimed by a selector channel.
func (s *State) devAcc(io *iobus.Table, dev uint8) bool {
	if !io.Bound(dev) {
		return false
	}
	if s.ChanBlk != nil && s.ChanBlk(dev) {
		return false
	}
	return true
}

// startBlock implements the shared WB/RB body: resolve the fullword
// limit per RX-vs-RR shape, and arm Blk unless start already exceeds
// end (id32_cpu.c's "start > end? cc = 0" no-op case). It reports
// whether a MAC abort unwound the instruction before Blk was armed.
func (s *State) startBlock(mem *memory.Memory, io *iobus.Table, op uint8, r1, r2, opnd, ea uint32, read bool) bool {
	dev := r1 & DevMax
	if !s.devAcc(io, uint8(dev)) {
		s.CC = interdata.CCOverflow
		return false
	}
	var lim uint32
	if op == 0xD6 || op == 0xD7 {
		pa := s.relocate((ea+4)&vaMask, memory.AccessRead)
		if s.checkAbort() {
			return true
		}
		lim = mem.ReadF(pa)
	} else {
		lim = s.r()[(r2+1)&0xf]
	}
	if opnd > lim {
		s.CC = 0
		return false
	}
	io.Do(uint8(dev), device.IoAdr, 0)
	s.Blk = BlkIO{Dev: uint16(dev), Cur: opnd, End: lim, Active: true, Read: read}
	return false
}

// BreakpointAt is checked once per instruction before fetch.
type BreakpointAt func(pc uint32) bool

// Step decodes and executes exactly one instruction.
func Step(s *State, mem *memory.Memory, io *iobus.Table, brk BreakpointAt) StopReason {
	if brk != nil && brk(s.PC) {
		return StopIBkpt
	}
	if s.PSW&interdata.PSWWait != 0 {
		return StopWait
	}

	oPC := s.PC
	s.oPC = oPC
	ir1 := s.fetchH(mem)
	if s.checkAbort() {
		return StopNone
	}
	op := uint8(ir1 >> 8)
	r1 := (ir1 >> 4) & 0xf
	r2 := ir1 & 0xf
	r := s.r()

	switch op {
	case 0x00:
		return StopNone

	case 0x08, 0x48, 0x58, 0xC8, 0xF8: // LR / LH / L / LHI / LI
		v, _ := s.decode(mem, op, r1, r2)
		if s.checkAbort() {
			return StopNone
		}
		r[r1] = v
		s.CC = ccGL32(r[r1])

	case 0x40: // STH (RX address-only)
		ea := s.ea32(mem, r2)
		if s.checkAbort() {
			return StopNone
		}
		pa := s.relocate(ea, memory.AccessWrite)
		if s.checkAbort() {
			return StopNone
		}
		mem.IOWriteH(pa, uint16(r[r1]))

	case 0x50: // ST (RX address-only, fullword)
		ea := s.ea32(mem, r2)
		if s.checkAbort() {
			return StopNone
		}
		pa := s.relocate(ea, memory.AccessWrite)
		if s.checkAbort() {
			return StopNone
		}
		mem.WriteF(pa, r[r1])

	case 0x01, 0x41: // BALR (RR) / BAL (RX)
		var target uint32
		if op == 0x01 {
			target = r[r2]
		} else {
			target = s.ea32(mem, r2)
			if s.checkAbort() {
				return StopNone
			}
		}
		s.PCQ.Entry(uint16(oPC & 0xffff))
		r[r1] = s.PC
		s.PC = target & vaMask

	case 0x02, 0x42: // BTCR (RR) / BTC (RX)
		var target uint32
		if op == 0x02 {
			target = r[r2]
		} else {
			target = s.ea32(mem, r2)
			if s.checkAbort() {
				return StopNone
			}
		}
		if s.CC&r1 != 0 {
			s.PCQ.Entry(uint16(oPC & 0xffff))
			s.PC = target & vaMask
		}

	case 0x03, 0x43: // BFCR (RR) / BFC (RX)
		var target uint32
		if op == 0x03 {
			target = r[r2]
		} else {
			target = s.ea32(mem, r2)
			if s.checkAbort() {
				return StopNone
			}
		}
		if s.CC&r1 == 0 {
			s.PCQ.Entry(uint16(oPC & 0xffff))
			s.PC = target & vaMask
		}

	case 0xC0, 0xC1: // BXH / BXLE
		ea := s.ea32(mem, r2)
		if s.checkAbort() {
			return StopNone
		}
		r1p1 := (r1 + 1) & 0xf
		r1p2 := (r1 + 2) & 0xf
		r[r1] += r[r1p1]
		branch := r[r1] > r[r1p2]
		if op == 0xC1 {
			branch = r[r1] <= r[r1p2]
		}
		if branch {
			s.PCQ.Entry(uint16(oPC & 0xffff))
			s.PC = ea & vaMask
		}

	case 0x04, 0x44, 0x54, 0xC4, 0xF4: // NR / NH / N / NHI / NI
		v, _ := s.decode(mem, op, r1, r2)
		if s.checkAbort() {
			return StopNone
		}
		r[r1] &= v
		s.CC = ccGL32(r[r1])

	case 0x06, 0x46, 0x56, 0xC6, 0xF6: // OR / OH / O / OHI / OI
		v, _ := s.decode(mem, op, r1, r2)
		if s.checkAbort() {
			return StopNone
		}
		r[r1] |= v
		s.CC = ccGL32(r[r1])

	case 0x07, 0x47, 0x57, 0xC7, 0xF7: // XR / XH / X / XHI / XI
		v, _ := s.decode(mem, op, r1, r2)
		if s.checkAbort() {
			return StopNone
		}
		r[r1] ^= v
		s.CC = ccGL32(r[r1])

	case 0x05, 0x45, 0x55, 0xC5, 0xF5: // CLR / CLH / CL / CLHI / CLI (unsigned compare)
		v, _ := s.decode(mem, op, r1, r2)
		if s.checkAbort() {
			return StopNone
		}
		rslt := r[r1] - v
		s.CC = ccGL32(rslt)
		if r[r1] < v {
			s.CC |= interdata.CCCarry
		}
		if ((r[r1]^v)&(^v^rslt))&0x80000000 != 0 {
			s.CC |= interdata.CCOverflow
		}

	case 0x09, 0x49, 0x59, 0xC9, 0xF9: // CR / CH / C / CHI / CI (signed compare)
		v, _ := s.decode(mem, op, r1, r2)
		if s.checkAbort() {
			return StopNone
		}
		sr := int32(r[r1])
		st := int32(v)
		switch {
		case sr < st:
			s.CC = interdata.CCCarry | interdata.CCLess
		case sr > st:
			s.CC = interdata.CCGreater
		default:
			s.CC = 0
		}
		if ((r[r1]^v)&(^v^(r[r1]-v)))&0x80000000 != 0 {
			s.CC |= interdata.CCOverflow
		}

	case 0x0A, 0x4A, 0x5A, 0xCA, 0xFA: // AR / AH / A / AHI / AI
		v, _ := s.decode(mem, op, r1, r2)
		if s.checkAbort() {
			return StopNone
		}
		rslt := r[r1] + v
		s.CC = ccGL32(rslt)
		if rslt < v {
			s.CC |= interdata.CCCarry
		}
		if ((^r[r1]^v)&(r[r1]^rslt))&0x80000000 != 0 {
			s.CC |= interdata.CCOverflow
		}
		r[r1] = rslt

	case 0x0B, 0x4B, 0x5B, 0xCB, 0xFB: // SR / SH / S / SHI / SI
		v, _ := s.decode(mem, op, r1, r2)
		if s.checkAbort() {
			return StopNone
		}
		rslt := r[r1] - v
		s.CC = ccGL32(rslt)
		if r[r1] < v {
			s.CC |= interdata.CCCarry
		}
		if ((r[r1]^v)&(^v^rslt))&0x80000000 != 0 {
			s.CC |= interdata.CCOverflow
		}
		r[r1] = rslt

	case 0x0D, 0x4D: // DHR (RR) / DH (RXH): 32b dividend, 16b divisor
		v, _ := s.decode(mem, op, r1, r2)
		if s.checkAbort() {
			return StopNone
		}
		v &= 0xffff
		r1p1 := (r1 + 1) & 0xf
		if v == 0 || (r[r1] == 0x80000000 && v == 0xffff) {
			if s.PSW&interdata.PSWAFI != 0 {
				s.exception(mem, AFIPSW)
			}
			break
		}
		dividend := int64(int32(r[r1]))
		divisor := int64(interdata.SEXT16(v))
		q := dividend / divisor
		rem := dividend % divisor
		if q < 0x8000 && q >= -0x8000 {
			r[r1] = uint32(rem)
			r[r1p1] = uint32(q)
		} else if s.PSW&interdata.PSWAFI != 0 {
			s.exception(mem, AFIPSW)
		}

	case 0x1D, 0x5D: // DR (RR) / D (RXF): 64b dividend (R1:R1+1), 32b divisor
		v, _ := s.decode(mem, op, r1, r2)
		if s.checkAbort() {
			return StopNone
		}
		r1p1 := (r1 + 1) & 0xf
		dividend := int64(uint64(r[r1])<<32 | uint64(r[r1p1]))
		divisor := int64(int32(v))
		if divisor == 0 || (dividend == math.MinInt64 && divisor == -1) {
			if s.PSW&interdata.PSWAFI != 0 {
				s.exception(mem, AFIPSW)
			}
			break
		}
		q := dividend / divisor
		rem := dividend % divisor
		if q <= math.MaxInt32 && q >= math.MinInt32 {
			r[r1] = uint32(rem)
			r[r1p1] = uint32(q)
		} else if s.PSW&interdata.PSWAFI != 0 {
			s.exception(mem, AFIPSW)
		}

	case 0xDE, 0x9E: // OC (RX) / OCR (RR): send command
		var opnd uint32
		if op == 0xDE {
			ea := s.ea32(mem, r2)
			if s.checkAbort() {
				return StopNone
			}
			pa := s.relocate(ea, memory.AccessRead)
			if s.checkAbort() {
				return StopNone
			}
			opnd = uint32(mem.IOReadB(pa))
		} else {
			opnd = r[r2]
		}
		dev := r[r1] & DevMax
		if s.devAcc(io, uint8(dev)) {
			io.Do(uint8(dev), device.IoAdr, 0)
			io.Do(uint8(dev), device.IoOc, opnd&0xff)
			s.CC = 0
		} else {
			s.CC = interdata.CCOverflow
		}

	case 0xDA, 0x9A: // WD (RX) / WDR (RR): write byte
		var opnd uint32
		if op == 0xDA {
			ea := s.ea32(mem, r2)
			if s.checkAbort() {
				return StopNone
			}
			pa := s.relocate(ea, memory.AccessRead)
			if s.checkAbort() {
				return StopNone
			}
			opnd = uint32(mem.IOReadB(pa))
		} else {
			opnd = r[r2]
		}
		dev := r[r1] & DevMax
		if s.devAcc(io, uint8(dev)) {
			io.Do(uint8(dev), device.IoAdr, 0)
			io.Do(uint8(dev), device.IoWd, opnd&0xff)
			s.CC = 0
		} else {
			s.CC = interdata.CCOverflow
		}

	case 0xD8, 0x98: // WH (RX) / WHR (RR): write halfword
		var opnd uint32
		if op == 0xD8 {
			ea := s.ea32(mem, r2)
			if s.checkAbort() {
				return StopNone
			}
			pa := s.relocate(ea, memory.AccessRead)
			if s.checkAbort() {
				return StopNone
			}
			opnd = uint32(mem.IOReadH(pa))
		} else {
			opnd = r[r2]
		}
		dev := r[r1] & DevMax
		if s.devAcc(io, uint8(dev)) {
			width, _ := io.Do(uint8(dev), device.IoAdr, 0)
			if width == uint32(device.WidthHalfword) {
				io.Do(uint8(dev), device.IoWh, opnd&0xffff)
			} else {
				io.Do(uint8(dev), device.IoWd, (opnd>>8)&0xff)
				io.Do(uint8(dev), device.IoWd, opnd&0xff)
			}
			s.CC = 0
		} else {
			s.CC = interdata.CCOverflow
		}

	case 0x9B, 0xDB: // RDR (RR) / RD (RX): read byte
		isRX := op == 0xDB
		var ea uint32
		if isRX {
			ea = s.ea32(mem, r2)
			if s.checkAbort() {
				return StopNone
			}
		}
		dev := r[r1] & DevMax
		var t uint32
		if s.devAcc(io, uint8(dev)) {
			io.Do(uint8(dev), device.IoAdr, 0)
			t, _ = io.Do(uint8(dev), device.IoRd, 0)
			s.CC = 0
		} else {
			s.CC = interdata.CCOverflow
		}
		if isRX {
			pa := s.relocate(ea, memory.AccessWrite)
			if s.checkAbort() {
				return StopNone
			}
			mem.IOWriteB(pa, uint8(t))
		} else {
			r[r2] = t & 0xff
		}

	case 0x99, 0xD9: // RHR (RR) / RH (RX): read halfword
		isRX := op == 0xD9
		var ea uint32
		if isRX {
			ea = s.ea32(mem, r2)
			if s.checkAbort() {
				return StopNone
			}
		}
		dev := r[r1] & DevMax
		var t uint32
		if s.devAcc(io, uint8(dev)) {
			width, _ := io.Do(uint8(dev), device.IoAdr, 0)
			if width == uint32(device.WidthHalfword) {
				t, _ = io.Do(uint8(dev), device.IoRh, 0)
			} else {
				hi, _ := io.Do(uint8(dev), device.IoRd, 0)
				lo, _ := io.Do(uint8(dev), device.IoRd, 0)
				t = (hi << 8) | lo
			}
			s.CC = 0
		} else {
			s.CC = interdata.CCOverflow
		}
		if isRX {
			pa := s.relocate(ea, memory.AccessWrite)
			if s.checkAbort() {
				return StopNone
			}
			mem.IOWriteH(pa, uint16(t))
		} else {
			r[r2] = t & 0xffff
		}

	case 0x9D, 0xDD: // SSR (RR) / SS (RX): sense status
		isRX := op == 0xDD
		var ea uint32
		if isRX {
			ea = s.ea32(mem, r2)
			if s.checkAbort() {
				return StopNone
			}
		}
		dev := r[r1] & DevMax
		var t uint32
		if s.devAcc(io, uint8(dev)) {
			io.Do(uint8(dev), device.IoAdr, 0)
			t, _ = io.Do(uint8(dev), device.IoSs, 0)
		} else {
			t = uint32(device.StaEx)
		}
		if isRX {
			pa := s.relocate(ea, memory.AccessWrite)
			if s.checkAbort() {
				return StopNone
			}
			mem.IOWriteB(pa, uint8(t))
		} else {
			r[r2] = t & 0xff
		}
		s.CC = t & 0xf

	case 0x96, 0xD6: // WBR (RR) / WB (RXF): start block write
		var opnd, ea uint32
		if op == 0xD6 {
			ea = s.ea32(mem, r2)
			if s.checkAbort() {
				return StopNone
			}
			pa := s.relocate(ea, memory.AccessRead)
			if s.checkAbort() {
				return StopNone
			}
			opnd = mem.ReadF(pa)
		} else {
			opnd = r[r2]
		}
		if s.startBlock(mem, io, op, r1, r2, opnd, ea, false) {
			return StopNone
		}

	case 0x97, 0xD7: // RBR (RR) / RB (RXF): start block read
		var opnd, ea uint32
		if op == 0xD7 {
			ea = s.ea32(mem, r2)
			if s.checkAbort() {
				return StopNone
			}
			pa := s.relocate(ea, memory.AccessRead)
			if s.checkAbort() {
				return StopNone
			}
			opnd = mem.ReadF(pa)
		} else {
			opnd = r[r2]
		}
		if s.startBlock(mem, io, op, r1, r2, opnd, ea, true) {
			return StopNone
		}

	case 0xD5: // AL (RX): autoload from the ALDev/ALIoc/ALBuf cells
		ea := s.ea32(mem, r2)
		if s.checkAbort() {
			return StopNone
		}
		dev := uint32(mem.IOReadB(ALDev)) & DevMax
		cmd := uint32(mem.IOReadB(ALIoc))
		if s.devAcc(io, uint8(dev)) {
			if ALBuf > ea {
				s.CC = 0
			} else {
				io.Do(uint8(dev), device.IoAdr, 0)
				io.Do(uint8(dev), device.IoOc, cmd&0xff)
				s.Blk = BlkIO{Dev: uint16(dev), Cur: ALBuf, End: ea, Active: true, Read: true, LZ: true}
			}
		} else {
			s.CC = interdata.CCOverflow
		}

	case 0xE1: // SVC (RX): stashes into R13/R14/R15, not memory (32b convention)
		ea := s.ea32(mem, r2)
		if s.checkAbort() {
			return StopNone
		}
		s.PCQ.Entry(uint16(oPC & 0xffff))
		oldPSW := interdata.BuildPSW(s.PSW, s.CC, s.Mask)
		s.CC = s.newPSW(mem.ReadF(SVNPS32))
		r[13] = ea & 0xFFFFFF
		r[14] = oldPSW
		r[15] = s.PC
		s.PC = uint32(mem.IOReadH(SVNPC+r1+r1)) & vaMask

	default:
		if s.Trap {
			s.PC = oPC
			return StopRsrv
		}
		s.exception(mem, ILOPSW)
	}

	s.PC &= vaMask
	return StopNone
}
