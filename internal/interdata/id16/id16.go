/*
trisim - Interdata 7/16-8/16-8/16E CPU interpreter

Copyright 2026
*/

// Package id16 implements the Interdata-16 instruction interpreter
// (spec §4.4, C4, Interdata-16 branch): a single large switch on opcode
// selecting an action per mnemonic, condition-code setting rules,
// the PSW-swap exception/trap convention, and the SVC argument-stash
// convention.
package id16

import (
	"github.com/dms3/trisim/internal/device"
	"github.com/dms3/trisim/internal/iobus"
	"github.com/dms3/trisim/internal/interdata"
	"github.com/dms3/trisim/internal/memory"
)

// Low-memory trap vector addresses (spec §6.4; id_defs.h).
const (
	FPFPSW  uint32 = 0x28
	ILOPSW  uint32 = 0x30
	EXIPSW  uint32 = 0x40
	AFIPSW  uint32 = 0x48
	SQP     uint32 = 0x80 // pointer to the system queue header
	SQIPSW  uint32 = 0x82
	SQOP    uint32 = 0x8A // system-queue overflow pointer (holds the overflowing CCB vector)
	SQVPSW  uint32 = 0x8C
	INTSVT  uint32 = 0xD0 // interrupt service table, two bytes per device number
	SVCAP   uint32 = 0x94
	SVOPS   uint32 = 0x96
	SVOPC   uint32 = 0x98
	SVNPS   uint32 = 0x9A
	SVNPC   uint32 = 0x9C

	ALDev uint32 = 0x78 // autoload: device number
	ALIoc uint32 = 0x79 // autoload: command byte
	ALBuf uint32 = 0x80 // autoload: buffer start
)

// DevMax is the highest valid device number (DEV_MAX).
const DevMax = 0xff

// StopReason is why Step returned without completing normally.
type StopReason int

const (
	StopNone StopReason = iota
	StopRsrv            // undefined instruction
	StopHalt
	StopIBkpt
	StopWait
)

// State is one Interdata-16 CPU's register file, PSW and bookkeeping.
type State struct {
	R    [16]uint32 // general registers (16-bit data in the low half)
	PSW  uint32
	PC   uint32
	CC   uint32 // current condition codes, folded into PSW at swap time
	PCQ  interdata.PCQueue
	Mask uint32 // psw_mask for this model (interdata.Model.PSWMask())

	Trap bool // stop on undefined opcode (stop_inst)

	// Blk is the block-I/O status record (spec §3 "Blocking I/O
	// record"); WB/RB/AL arm it and set Active, and the owning Machine
	// drains it between instructions (spec §4.4 "Block-I/O drain").
	Blk BlkIO

	// ChanBlk, if set, is sch_blk: it reports whether the selector
	// channel bound to dev currently has GO set, refusing programmed
	// I/O to that device (spec §4.8 "Blocking test", DEV_ACC's
	// "!sch_blk(d)" half). Nil means no device is ever channel-blocked.
	ChanBlk func(dev uint8) bool

	// GetIntDev is int_getdev: AI reads the highest-priority pending
	// interrupting device number. Nil reads as "nothing pending."
	GetIntDev func() (dev uint16, ok bool)

	// Reloc16E is the 8/16E segment-relocation unit (spec §4.1); nil on
	// every other model, so every CPU-side memory reference below
	// passes through unchanged. Machine composition binds it once at
	// startup.
	Reloc16E *memory.Reloc16E
}

// va maps a CPU-visible logical address through the 8/16E relocation
// constants selected by the PSW's current map field (id16_cpu.c's
// s0_rel/s1_rel, recomputed live here instead of cached at newPSW
// time since PSWGetMap(s.PSW) already reflects the latest load).
func (s *State) va(addr uint32) uint32 {
	if s.Reloc16E == nil {
		return addr
	}
	return s.Reloc16E.Translate(uint16(addr), uint8(interdata.PSWGetMap(s.PSW)))
}

func (s *State) rdH(mem *memory.Memory, addr uint32) uint32 {
	return uint32(mem.IOReadH(s.va(addr)))
}

func (s *State) wrH(mem *memory.Memory, addr uint32, v uint16) {
	mem.IOWriteH(s.va(addr), v)
}

func (s *State) rdB(mem *memory.Memory, addr uint32) uint32 {
	return uint32(mem.IOReadB(s.va(addr)))
}

func (s *State) wrB(mem *memory.Memory, addr uint32, v uint8) {
	mem.IOWriteB(s.va(addr), v)
}

// BlkIO is the Interdata block-I/O status record (spec §3 "Blocking I/O
// record"): dfl carries the device number plus direction/leading-zero
// flags, cur/end are the next and last byte addresses.
type BlkIO struct {
	Dev    uint16
	Cur    uint32
	End    uint32
	Active bool // EV_BLK set
	Read   bool // BL_RD: device -> memory
	LZ     bool // BL_LZ: suppress leading zero bytes (autoload only)
}

// opnd carries the decoded operand shape result for one instruction
// (spec §4.3): value plus effective address (ea is only meaningful for
// RX/RS shapes that also write back).
type opnd struct {
	r1  uint32
	r2  uint32
	val uint32
	ea  uint32
}

func (s *State) fetchH(mem *memory.Memory) uint32 {
	v := s.rdH(mem, s.PC)
	s.PC = (s.PC + 2) & 0xffff
	return v
}

// decode resolves the operand for op's first halfword ir1 = (opcode<<8)|r1r2
// already consumed by the caller; shape selection matches spec §4.3.
func (s *State) decode(mem *memory.Memory, r1, r2 uint32, shape rxShape) opnd {
	switch shape {
	case shapeNO:
		return opnd{r1: r1, r2: r2, val: r2}
	case shapeRR:
		return opnd{r1: r1, r2: r2, val: s.R[r2]}
	case shapeRS:
		imm := s.fetchH(mem)
		v := imm
		if r2 != 0 {
			v = (imm + s.R[r2]) & 0xffff
		}
		return opnd{r1: r1, r2: r2, val: v}
	case shapeRX:
		ir2 := s.fetchH(mem)
		ea := ir2 & 0xffff
		if r2 != 0 {
			ea = (ea + s.R[r2]) & 0xffff
		}
		return opnd{r1: r1, r2: r2, ea: ea, val: s.rdH(mem, ea)}
	case shapeRXB:
		ir2 := s.fetchH(mem)
		ea := ir2 & 0xffff
		if r2 != 0 {
			ea = (ea + s.R[r2]) & 0xffff
		}
		return opnd{r1: r1, r2: r2, ea: ea, val: s.rdB(mem, ea)}
	default:
		return opnd{r1: r1, r2: r2}
	}
}

type rxShape int

const (
	shapeNO rxShape = iota
	shapeRR
	shapeRS
	shapeRX
	shapeRXB
)

// ccGL16 sets CC_G/CC_L (not C/V) from a 16-bit result, per CC_GL_16.
func ccGL16(x uint32) uint32 {
	x &= 0xffff
	if x&0x8000 != 0 {
		return interdata.CCLess
	}
	if x != 0 {
		return interdata.CCGreater
	}
	return 0
}

// newPSW stores val (masked), matching newPSW's PSW-store/CC-extract
// half; event-flag side effects (EV_WAIT, map relocation, PSW_AIO->
// interrupt-enable) are the owning Machine's responsibility, not this
// package's, since they reach across C2/C6/C9 boundaries.
func (s *State) newPSW(val uint32) uint32 {
	s.PSW = val & s.Mask
	return s.PSW & interdata.CCMask
}

// swapPSW implements swap_psw: write {PSW|cc, PC} to loc, then load the
// new {PSW, PC} from loc+4.
func (s *State) swapPSW(mem *memory.Memory, loc uint32) {
	s.wrH(mem, loc, uint16(interdata.BuildPSW(s.PSW, s.CC, s.Mask)))
	s.wrH(mem, loc+2, uint16(s.PC))
	s.CC = s.newPSW(s.rdH(mem, loc+4))
	s.PC = s.rdH(mem, loc+6)
}

// DeliverInterrupt runs the external-interrupt trap: swap_psw into
// EXIPSW. It is the owning Machine's call once int_eval/int_getdev have
// found a pending, enabled interrupt and PSW.AIO is off (spec §4.4
// "Interrupt delivery").
func (s *State) DeliverInterrupt(mem *memory.Memory) {
	s.swapPSW(mem, EXIPSW)
}

// SwapPSWAt runs swap_psw against an arbitrary low-memory location: the
// automatic-interrupt engine's "immediate interrupt" case (INTSVT
// vector's low bit clear) and its system-queue traps (SQIPSW/SQVPSW)
// both reuse the same PSW-swap convention as an ordinary trap, just at
// a different fixed address than EXIPSW.
func (s *State) SwapPSWAt(mem *memory.Memory, loc uint32) {
	s.swapPSW(mem, loc)
}

// devAcc is DEV_ACC: dev must have a bound handler and must not be held
// by a selector channel mid-transfer (spec §4.8 "Blocking test").
func (s *State) devAcc(io *iobus.Table, dev uint8) bool {
	if !io.Bound(dev) {
		return false
	}
	if s.ChanBlk != nil && s.ChanBlk(dev) {
		return false
	}
	return true
}

// startBlock implements the shared body of WB/WBR and RB/RBR: arm
// s.Blk with the device's start/end transfer range, or set CC_V/CC=0
// per the original's start-vs-no-op-vs-nx-dev outcomes.
func (s *State) startBlock(mem *memory.Memory, io *iobus.Table, op uint8, r1, r2 uint32, read bool) {
	var start, lim uint32
	if op == 0xD6 || op == 0xD7 {
		o := s.decode(mem, r1, r2, shapeRX)
		start = o.val
		lim = s.rdH(mem, (o.ea+2)&0xffff)
	} else {
		start = s.R[r2]
		lim = s.R[(r2+1)&0xf]
	}
	dev := s.R[r1] & DevMax
	if !s.devAcc(io, uint8(dev)) {
		s.CC = interdata.CCOverflow
		return
	}
	if start > lim {
		s.CC = 0
		return
	}
	io.Do(uint8(dev), device.IoAdr, 0)
	s.Blk = BlkIO{Dev: uint16(dev), Cur: start, End: lim, Active: true, Read: read}
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
	ir1 := s.fetchH(mem)
	op := uint8(ir1 >> 8)
	r1 := (ir1 >> 4) & 0xf
	r2 := ir1 & 0xf

	switch op {
	case 0x00: // NOP / HALT depending on r1/r2 both zero is a NOP by convention
		return StopNone

	case 0x01, 0x41: // BALR (RR) / BAL (RX)
		var o opnd
		if op == 0x01 {
			o = s.decode(mem, r1, r2, shapeRR)
		} else {
			o = s.decode(mem, r1, r2, shapeRX)
			o.val = o.ea
		}
		s.PCQ.Entry(uint16(oPC))
		s.R[r1] = s.PC
		s.PC = o.val & 0xffff

	case 0x02, 0x42: // BTCR (RR) / BTC (RX): branch if any cc&r1 bit set
		var o opnd
		if op == 0x02 {
			o = s.decode(mem, r1, r2, shapeRR)
		} else {
			o = s.decode(mem, r1, r2, shapeRX)
			o.val = o.ea
		}
		if s.CC&r1 != 0 {
			s.PCQ.Entry(uint16(oPC))
			s.PC = o.val & 0xffff
		}

	case 0x03, 0x43: // BFCR (RR) / BFC (RX): branch if no cc&r1 bit set
		var o opnd
		if op == 0x03 {
			o = s.decode(mem, r1, r2, shapeRR)
		} else {
			o = s.decode(mem, r1, r2, shapeRX)
			o.val = o.ea
		}
		if s.CC&r1 == 0 {
			s.PCQ.Entry(uint16(oPC))
			s.PC = o.val & 0xffff
		}

	case 0x08, 0x48, 0xC8: // LHR (RR) / LH (RXH) / LHI (RS)
		v := s.operandByShapeForOp(mem, op, r1, r2)
		s.R[r1] = v & 0xffff
		s.CC = ccGL16(s.R[r1])

	case 0x40: // STH (RX)
		o := s.decode(mem, r1, r2, shapeRX)
		s.wrH(mem, o.ea, uint16(s.R[r1]))

	case 0xD1: // LM (RX): load R1..R15 from consecutive halfwords at ea
		o := s.decode(mem, r1, r2, shapeRX)
		ea := o.ea
		for rr := r1; rr <= 0xf; rr++ {
			s.R[rr] = s.rdH(mem, ea) & 0xffff
			ea = (ea + 2) & 0xffff
		}

	case 0xD0: // STM (RX): store R1..R15 to consecutive halfwords at ea
		o := s.decode(mem, r1, r2, shapeRX)
		ea := o.ea
		for rr := r1; rr <= 0xf; rr++ {
			s.wrH(mem, ea, uint16(s.R[rr]))
			ea = (ea + 2) & 0xffff
		}

	case 0xC0, 0xC1: // BXH / BXLE (RX)
		o := s.decode(mem, r1, r2, shapeRX)
		r1p1 := (r1 + 1) & 0xf
		r1p2 := (r1 + 2) & 0xf
		inc := s.R[r1p1]
		lim := s.R[r1p2]
		s.R[r1] = (s.R[r1] + inc) & 0xffff
		branch := s.R[r1] > lim
		if op == 0xC1 {
			branch = s.R[r1] <= lim
		}
		if branch {
			s.PCQ.Entry(uint16(oPC))
			s.PC = o.ea & 0xffff
		}

	case 0x04, 0x44, 0xC4: // NHR (RR) / NH (RXH) / NHI (RS)
		v := s.operandByShapeForOp(mem, op, r1, r2)
		s.R[r1] = (s.R[r1] & v) & 0xffff
		s.CC = ccGL16(s.R[r1])

	case 0x06, 0x46, 0xC6: // OHR / OH / OHI
		v := s.operandByShapeForOp(mem, op, r1, r2)
		s.R[r1] = (s.R[r1] | v) & 0xffff
		s.CC = ccGL16(s.R[r1])

	case 0x07, 0x47, 0xC7: // XHR / XH / XHI
		v := s.operandByShapeForOp(mem, op, r1, r2)
		s.R[r1] = (s.R[r1] ^ v) & 0xffff
		s.CC = ccGL16(s.R[r1])

	case 0x05, 0x45, 0xC5: // CLHR / CLH / CLHI (unsigned compare)
		v := s.operandByShapeForOp(mem, op, r1, r2)
		rslt := (s.R[r1] - v) & 0xffff
		s.CC = ccGL16(rslt)
		if s.R[r1] < v {
			s.CC |= interdata.CCCarry
		}
		if ((s.R[r1]^v)&(^v^rslt))&0x8000 != 0 {
			s.CC |= interdata.CCOverflow
		}

	case 0x09, 0x49, 0xC9: // CHR / CH / CHI (signed compare)
		v := s.operandByShapeForOp(mem, op, r1, r2)
		sr := interdata.SEXT16(s.R[r1])
		st := interdata.SEXT16(v)
		switch {
		case sr < st:
			s.CC = interdata.CCCarry | interdata.CCLess
		case sr > st:
			s.CC = interdata.CCGreater
		default:
			s.CC = 0
		}
		rslt := uint32(sr-st) & 0xffff
		if ((s.R[r1]^v)&(^v^rslt))&0x8000 != 0 {
			s.CC |= interdata.CCOverflow
		}

	case 0x0A, 0x4A, 0xCA: // AHR / AH / AHI
		v := s.operandByShapeForOp(mem, op, r1, r2)
		rslt := (s.R[r1] + v) & 0xffff
		s.CC = ccGL16(rslt)
		if rslt < v {
			s.CC |= interdata.CCCarry
		}
		if ((^s.R[r1]^v)&(s.R[r1]^rslt))&0x8000 != 0 {
			s.CC |= interdata.CCOverflow
		}
		s.R[r1] = rslt

	case 0x0B, 0x4B, 0xCB: // SHR / SH / SHI
		v := s.operandByShapeForOp(mem, op, r1, r2)
		rslt := (s.R[r1] - v) & 0xffff
		s.CC = ccGL16(rslt)
		if s.R[r1] < v {
			s.CC |= interdata.CCCarry
		}
		if ((s.R[r1]^v)&(^v^rslt))&0x8000 != 0 {
			s.CC |= interdata.CCOverflow
		}
		s.R[r1] = rslt

	case 0x0D, 0x4D: // DHR (RR) / DH (RXH)
		var v uint32
		if op == 0x0D {
			v = s.R[r2]
		} else {
			v = s.decode(mem, r1, r2, shapeRX).val
		}
		r1p1 := (r1 + 1) & 0xf
		if v == 0 || (s.R[r1] == 0x8000 && s.R[r1p1] == 0 && v == 0xffff) {
			if s.PSW&interdata.PSWAFI != 0 {
				s.swapPSW(mem, AFIPSW)
			}
			break
		}
		dividend := int64(s.R[r1])<<16 | int64(s.R[r1p1])
		divisor := int64(interdata.SEXT16(v))
		q := dividend / divisor
		r := dividend % divisor
		if q < 0x8000 && q >= -0x8000 {
			s.R[r1] = uint32(r) & 0xffff
			s.R[r1p1] = uint32(q) & 0xffff
		} else if s.PSW&interdata.PSWAFI != 0 {
			s.swapPSW(mem, AFIPSW)
		}

	case 0x92: // STBR (NO): store low byte of R1 into low byte of R2
		s.R[r2] = (s.R[r2] &^ 0xff) | (s.R[r1] & 0xff)

	case 0x93, 0xD3: // LDBR (RR) / LDB (RXB)
		var v uint32
		if op == 0x93 {
			v = s.R[r2] & 0xff
		} else {
			v = s.decode(mem, r1, r2, shapeRXB).val
		}
		s.R[r1] = v & 0xff

	case 0xD2: // STB (RX)
		o := s.decode(mem, r1, r2, shapeRX)
		s.wrB(mem, o.ea, uint8(s.R[r1]))

	case 0x94: // EXBR (RR): exchange the two halves of a byte pair
		v := s.decode(mem, r1, r2, shapeRR).val
		s.R[r1] = (v>>8)&0xff | (v&0xff)<<8

	case 0xDE, 0x9E: // OC (RX) / OCR (RR): output command
		opnd := r2
		if op == 0xDE {
			opnd = s.decode(mem, r1, r2, shapeRXB).val
		}
		dev := s.R[r1] & DevMax
		if s.devAcc(io, uint8(dev)) {
			io.Do(uint8(dev), device.IoAdr, 0)
			io.Do(uint8(dev), device.IoOc, opnd&0xff)
			s.CC = 0
		} else {
			s.CC = interdata.CCOverflow
		}

	case 0xDA, 0x9A: // WD (RX) / WDR (RR): write byte
		opnd := r2
		if op == 0xDA {
			opnd = s.decode(mem, r1, r2, shapeRXB).val
		} else {
			opnd = s.R[r2]
		}
		dev := s.R[r1] & DevMax
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
			opnd = s.decode(mem, r1, r2, shapeRX).val
		} else {
			opnd = s.R[r2]
		}
		dev := s.R[r1] & DevMax
		if s.devAcc(io, uint8(dev)) {
			width, _ := io.Do(uint8(dev), device.IoAdr, 0)
			if width == uint32(device.WidthHalfword) {
				io.Do(uint8(dev), device.IoWh, opnd)
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
			ea = s.decode(mem, r1, r2, shapeRX).ea
		}
		dev := s.R[r1] & DevMax
		var t uint32
		if s.devAcc(io, uint8(dev)) {
			io.Do(uint8(dev), device.IoAdr, 0)
			t, _ = io.Do(uint8(dev), device.IoRd, 0)
			s.CC = 0
		} else {
			s.CC = interdata.CCOverflow
		}
		if isRX {
			s.wrB(mem, ea, uint8(t))
		} else {
			s.R[r2] = t & 0xff
		}

	case 0x99, 0xD9: // RHR (RR) / RH (RX): read halfword
		isRX := op == 0xD9
		var ea uint32
		if isRX {
			ea = s.decode(mem, r1, r2, shapeRX).ea
		}
		dev := s.R[r1] & DevMax
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
			s.wrH(mem, ea, uint16(t))
		} else {
			s.R[r2] = t & 0xffff
		}

	case 0x9F, 0xDF: // AIR (RR) / AI (RX): fetch interrupting device number
		if s.GetIntDev != nil {
			if dev, ok := s.GetIntDev(); ok {
				s.R[r1] = uint32(dev)
			} else {
				s.R[r1] = 0
			}
		}
		fallthrough

	case 0x9D, 0xDD: // SSR (RR) / SS (RX): sense status
		isRX := op == 0xDD || op == 0xDF
		var ea uint32
		if isRX {
			ea = s.decode(mem, r1, r2, shapeRX).ea
		}
		dev := s.R[r1] & DevMax
		var t uint32
		if s.devAcc(io, uint8(dev)) {
			io.Do(uint8(dev), device.IoAdr, 0)
			t, _ = io.Do(uint8(dev), device.IoSs, 0)
		} else {
			t = uint32(device.StaEx)
		}
		if isRX {
			s.wrB(mem, ea, uint8(t))
		} else {
			s.R[r2] = t & 0xff
		}
		s.CC = t & 0xf

	case 0x96, 0xD6: // WBR (RR) / WB (RXH): start write-block I/O
		s.startBlock(mem, io, op, r1, r2, false)

	case 0x97, 0xD7: // RBR (RR) / RB (RXH): start read-block I/O
		s.startBlock(mem, io, op, r1, r2, true)

	case 0xD5: // AL (RX): autoload
		o := s.decode(mem, r1, r2, shapeRX)
		dev := s.rdB(mem, ALDev)
		cmd := s.rdB(mem, ALIoc)
		if s.devAcc(io, uint8(dev)) {
			if ALBuf > o.ea {
				s.CC = 0
			} else {
				io.Do(uint8(dev), device.IoAdr, 0)
				io.Do(uint8(dev), device.IoOc, cmd)
				s.Blk = BlkIO{Dev: uint16(dev), Cur: ALBuf, End: o.ea, Active: true, Read: true, LZ: true}
			}
		} else {
			s.CC = interdata.CCOverflow
		}

	case 0xE1: // SVC (RX)
		ir2 := s.fetchH(mem)
		ea := ir2 & 0xffff
		if r2 != 0 {
			ea = (ea + s.R[r2]) & 0xffff
		}
		s.PCQ.Entry(uint16(oPC))
		s.wrH(mem, SVCAP, uint16(ea))
		s.wrH(mem, SVOPS, uint16(interdata.BuildPSW(s.PSW, s.CC, s.Mask)))
		s.wrH(mem, SVOPC, uint16(s.PC))
		s.PC = s.rdH(mem, SVNPC+r1+r1)
		s.CC = s.newPSW(s.rdH(mem, SVNPS))

	default:
		if s.Trap {
			s.PC = oPC
			return StopRsrv
		}
	}

	s.PC &= 0xffff
	return StopNone
}

// operandByShapeForOp resolves the second operand for the RR/RXH/RS
// opcode triples that share one handler above.
func (s *State) operandByShapeForOp(mem *memory.Memory, op uint8, r1, r2 uint32) uint32 {
	switch op & 0xC0 {
	case 0x00:
		return s.decode(mem, r1, r2, shapeRR).val
	case 0x40:
		return s.decode(mem, r1, r2, shapeRX).val
	default: // 0xC0: RS immediate
		return s.decode(mem, r1, r2, shapeRS).val
	}
}
