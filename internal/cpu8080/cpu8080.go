/*
trisim - Intel 8080 CPU interpreter (MITS Altair 8800)

Copyright 2026
*/

// Package cpu8080 implements the Intel 8080 register file, flags, and
// instruction interpreter for the Altair 8800 family (spec §4.2-§4.4,
// C2-C4, 8080 branch). Opcode space is decoded by bit-field matching
// against masked prefixes, the same shape original_source/ALTAIR's
// altair_cpu.c uses, rather than a flat 256-entry table: MOV/MVI/LXI/
// LDAX/STAX/CMP/conditional-branch families are recognized by AND-mask
// comparison before falling through to a switch on the remaining single
// opcodes.
package cpu8080

import (
	"github.com/dms3/trisim/internal/device"
	"github.com/dms3/trisim/internal/iobus"
	"github.com/dms3/trisim/internal/memory"
)

// StopReason is why Step returned without completing normally.
type StopReason int

const (
	StopNone   StopReason = iota
	StopHalt              // HLT executed; PC left pointing at the HLT
	StopOpcode            // undecoded opcode, only reported if Trap is set
	StopIBkpt             // breakpoint hit at fetch
	StopIOE               // device signalled a fatal I/O error
)

// Flags holds the 8080 condition bits. Per the resolved Open Question
// (DESIGN.md), P is a plain bool, not the historical 17-bit field with
// only bit 16 meaningful.
type Flags struct {
	C  bool // carry
	Z  bool // zero
	AC bool // auxiliary carry
	S  bool // sign
	P  bool // parity (even)
}

// State is the 8080 register file and flags, owned by the caller (no
// package-level globals).
type State struct {
	A  uint8
	B, C uint8
	D, E uint8
	H, L uint8
	SP   uint16
	PC   uint16
	F    Flags

	INTE bool  // interrupt-enable latch (EI/DI); 8080 interrupts are not
	           // otherwise dispatched, matching the original: "8080
	           // interrupts not implemented... all I/O is programmed."
	SR   uint8 // front-panel switch register, read back via IN 0xFF

	// Trap, when set, makes an undecoded opcode stop the loop with
	// StopOpcode instead of silently executing as a NOP (UNIT_OPSTOP).
	Trap bool

	// Chip selects Z80-variant flag behaviour: setarith/setinc always
	// clear P instead of computing real parity.
	Chip ChipVariant
}

// ChipVariant distinguishes 8080 flag semantics from the Z80 variant
// mentioned by the original source's UNIT_CHIP flag.
type ChipVariant int

const (
	Chip8080 ChipVariant = iota
	ChipZ80
)

// getreg/putreg map the 3-bit register field: 0=B,1=C,2=D,3=E,4=H,5=L,
// 6=M (memory at HL), 7=A.
func (s *State) getreg(mem *memory.Memory, reg uint8) uint8 {
	switch reg {
	case 0:
		return s.B
	case 1:
		return s.C
	case 2:
		return s.D
	case 3:
		return s.E
	case 4:
		return s.H
	case 5:
		return s.L
	case 6:
		return mem.ReadB(uint32(s.hl()))
	default: // 7 — and only 7, no fallthrough: resolved Open Question.
		return s.A
	}
}

func (s *State) putreg(mem *memory.Memory, reg uint8, val uint8) {
	switch reg {
	case 0:
		s.B = val
	case 1:
		s.C = val
	case 2:
		s.D = val
	case 3:
		s.E = val
	case 4:
		s.H = val
	case 5:
		s.L = val
	case 6:
		mem.WriteB(uint32(s.hl()), val)
	case 7:
		s.A = val
	}
}

func (s *State) bc() uint16 { return uint16(s.B)<<8 | uint16(s.C) }
func (s *State) de() uint16 { return uint16(s.D)<<8 | uint16(s.E) }
func (s *State) hl() uint16 { return uint16(s.H)<<8 | uint16(s.L) }

func (s *State) setBC(v uint16) { s.B, s.C = uint8(v>>8), uint8(v) }
func (s *State) setDE(v uint16) { s.D, s.E = uint8(v>>8), uint8(v) }
func (s *State) setHL(v uint16) { s.H, s.L = uint8(v>>8), uint8(v) }

// getpair/putpair map the 2-bit register-pair field for LXI/INX/DCX/DAD.
func (s *State) getpair(rp uint8) uint16 {
	switch rp {
	case 0:
		return s.bc()
	case 1:
		return s.de()
	case 2:
		return s.hl()
	default:
		return s.SP
	}
}

func (s *State) putpair(rp uint8, v uint16) {
	switch rp {
	case 0:
		s.setBC(v)
	case 1:
		s.setDE(v)
	case 2:
		s.setHL(v)
	default:
		s.SP = v
	}
}

// getpush/putpush map the 2-bit register-pair field for PUSH/POP, where
// pair 3 means A plus the packed flag byte instead of SP.
func (s *State) getpush() uint16 {
	stat := uint8(0x02)
	if s.F.S {
		stat |= 0x80
	}
	if s.F.Z {
		stat |= 0x40
	}
	if s.F.AC {
		stat |= 0x10
	}
	if s.F.P {
		stat |= 0x04
	}
	if s.F.C {
		stat |= 0x01
	}
	return uint16(s.A)<<8 | uint16(stat)
}

func (s *State) putpush(data uint16) {
	s.A = uint8(data >> 8)
	s.F = Flags{
		S:  data&0x80 != 0,
		Z:  data&0x40 != 0,
		AC: data&0x10 != 0,
		P:  data&0x04 != 0,
		C:  data&0x01 != 0,
	}
}

// parity sets F.P from the XOR-reduction of the low eight bits (even
// parity: set when the number of one-bits is even).
func parity(reg uint8) bool {
	v := reg
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v&1 == 0
}

// setarith updates C/Z/S/AC/P following an arithmetic op; reg carries a
// possible bit 8 carry-out. AC is always cleared (the original leaves
// half-carry unimplemented except in DAA).
func (s *State) setarith(reg int) {
	s.F.C = reg&0x100 != 0
	s.F.S = reg&0x80 != 0
	s.F.Z = reg&0xff == 0
	s.F.AC = false
	if s.Chip == ChipZ80 {
		s.F.P = false
	} else {
		s.F.P = parity(uint8(reg))
	}
}

// setlogical updates C=0/Z/S/AC=0/P following a bitwise op.
func (s *State) setlogical(reg uint8) {
	s.F.C = false
	s.F.S = reg&0x80 != 0
	s.F.Z = reg == 0
	s.F.AC = false
	s.F.P = parity(reg)
}

// setinc updates Z/S/P (no carry change) following INR/DCR.
func (s *State) setinc(reg uint8) {
	s.F.S = reg&0x80 != 0
	s.F.Z = reg == 0
	if s.Chip == ChipZ80 {
		s.F.P = false
	} else {
		s.F.P = parity(reg)
	}
}

// cond tests the 3-bit condition selector: {NZ,Z,NC,C,PO,PE,P,M}.
func (s *State) cond(sel uint8) bool {
	switch sel {
	case 0:
		return !s.F.Z
	case 1:
		return s.F.Z
	case 2:
		return !s.F.C
	case 3:
		return s.F.C
	case 4:
		return !s.F.P
	case 5:
		return s.F.P
	case 6:
		return !s.F.S
	default:
		return s.F.S
	}
}

func (s *State) push(mem *memory.Memory, v uint16) {
	s.SP--
	mem.WriteB(uint32(s.SP), uint8(v>>8))
	s.SP--
	mem.WriteB(uint32(s.SP), uint8(v))
}

func (s *State) pop(mem *memory.Memory) uint16 {
	lo := mem.ReadB(uint32(s.SP))
	s.SP++
	hi := mem.ReadB(uint32(s.SP))
	s.SP++
	return uint16(hi)<<8 | uint16(lo)
}

func (s *State) fetch(mem *memory.Memory) uint8 {
	v := mem.ReadB(uint32(s.PC))
	s.PC++
	return v
}

func (s *State) fetch16(mem *memory.Memory) uint16 {
	lo := s.fetch(mem)
	hi := s.fetch(mem)
	return uint16(hi)<<8 | uint16(lo)
}

// BreakpointAt is checked by Step once per instruction, before fetch
// (spec §4.4); nil means no breakpoints are installed.
type BreakpointAt func(pc uint16) bool

// Step executes exactly one instruction (or the bit-field-matched
// register-group instructions, which share the same single-opcode
// shape), per the shared loop skeleton of spec §4.4.
func Step(s *State, mem *memory.Memory, io *iobus.Table, brk BreakpointAt) StopReason {
	mem.NotePC(uint32(s.PC))
	if brk != nil && brk(s.PC) {
		return StopIBkpt
	}

	op := mem.ReadB(uint32(s.PC))
	s.PC++

	if op == 0166 { // HLT
		s.PC--
		return StopHalt
	}

	// Register-group instructions recognized by masked-prefix matching,
	// ahead of the big opcode switch (spec §4.4).
	switch {
	case op&0xC0 == 0x40: // MOV
		v := s.getreg(mem, op&0x07)
		s.putreg(mem, (op>>3)&0x07, v)
		return StopNone
	case op&0xC7 == 0x06: // MVI
		s.putreg(mem, (op>>3)&0x07, s.fetch(mem))
		return StopNone
	case op&0xCF == 0x01: // LXI
		s.putpair((op>>4)&0x03, s.fetch16(mem))
		return StopNone
	case op&0xEF == 0x0A: // LDAX
		s.A = mem.ReadB(uint32(s.getpair((op >> 4) & 0x03)))
		return StopNone
	case op&0xEF == 0x02: // STAX
		mem.WriteB(uint32(s.getpair((op>>4)&0x03)), s.A)
		return StopNone
	case op&0xF8 == 0xB8: // CMP
		d := int(s.A) - int(s.getreg(mem, op&0x07))
		s.setarith(d)
		return StopNone
	case op&0xC7 == 0xC2: // JMP <cond>
		a := s.fetch16(mem)
		if s.cond((op >> 3) & 0x07) {
			s.PC = a
		}
		return StopNone
	case op&0xC7 == 0xC4: // CALL <cond>
		a := s.fetch16(mem)
		if s.cond((op >> 3) & 0x07) {
			s.push(mem, s.PC)
			s.PC = a
		}
		return StopNone
	case op&0xC7 == 0xC0: // RET <cond>
		if s.cond((op >> 3) & 0x07) {
			s.PC = s.pop(mem)
		}
		return StopNone
	case op&0xC7 == 0xC7: // RST
		s.push(mem, s.PC)
		s.PC = uint16(op & 0x38)
		return StopNone
	case op&0xCF == 0xC5: // PUSH
		s.push(mem, s.getpushOrPair((op>>4)&0x03))
		return StopNone
	case op&0xCF == 0xC1: // POP
		v := s.pop(mem)
		s.putpushOrPair((op>>4)&0x03, v)
		return StopNone
	case op&0xF8 == 0x80: // ADD
		r := int(s.A) + int(s.getreg(mem, op&0x07))
		s.setarith(r)
		s.A = uint8(r)
		return StopNone
	case op&0xF8 == 0x88: // ADC
		carry := 0
		if s.F.C {
			carry = 1
		}
		r := int(s.A) + int(s.getreg(mem, op&0x07)) + carry
		s.setarith(r)
		s.A = uint8(r)
		return StopNone
	case op&0xF8 == 0x90: // SUB
		r := int(s.A) - int(s.getreg(mem, op&0x07))
		s.setarith(r)
		s.A = uint8(r)
		return StopNone
	case op&0xF8 == 0x98: // SBB
		carry := 0
		if s.F.C {
			carry = 1
		}
		r := int(s.A) - int(s.getreg(mem, op&0x07)) - carry
		s.setarith(r)
		s.A = uint8(r)
		return StopNone
	case op&0xC7 == 0x04: // INR
		v := int(s.getreg(mem, (op>>3)&0x07)) + 1
		s.setinc(uint8(v))
		s.putreg(mem, (op>>3)&0x07, uint8(v))
		return StopNone
	case op&0xC7 == 0x05: // DCR
		v := int(s.getreg(mem, (op>>3)&0x07)) - 1
		s.setinc(uint8(v))
		s.putreg(mem, (op>>3)&0x07, uint8(v))
		return StopNone
	case op&0xCF == 0x03: // INX
		s.putpair((op>>4)&0x03, s.getpair((op>>4)&0x03)+1)
		return StopNone
	case op&0xCF == 0x0B: // DCX
		s.putpair((op>>4)&0x03, s.getpair((op>>4)&0x03)-1)
		return StopNone
	case op&0xCF == 0x09: // DAD
		r := uint32(s.hl()) + uint32(s.getpair((op>>4)&0x03))
		s.F.C = r&0x10000 != 0
		s.setHL(uint16(r))
		return StopNone
	case op&0xF8 == 0xA0: // ANA
		s.A &= s.getreg(mem, op&0x07)
		s.setlogical(s.A)
		return StopNone
	case op&0xF8 == 0xA8: // XRA
		s.A ^= s.getreg(mem, op&0x07)
		s.setlogical(s.A)
		return StopNone
	case op&0xF8 == 0xB0: // ORA
		s.A |= s.getreg(mem, op&0x07)
		s.setlogical(s.A)
		return StopNone
	}

	return s.execSingle(op, mem, io)
}

// getpushOrPair/putpushOrPair route PUSH/POP pair 3 to the A+flags form.
func (s *State) getpushOrPair(rp uint8) uint16 {
	if rp == 3 {
		return s.getpush()
	}
	return s.getpair(rp)
}

func (s *State) putpushOrPair(rp uint8, v uint16) {
	if rp == 3 {
		s.putpush(v)
		return
	}
	s.putpair(rp, v)
}

// execSingle handles the remaining single-value opcodes not recognized
// by bit-field matching, matching altair_cpu.c's "Big Instruction Decode
// Switch".
func (s *State) execSingle(op uint8, mem *memory.Memory, io *iobus.Table) StopReason {
	switch op {
	case 0376: // CPI
		d := int(s.A) - int(s.fetch(mem))
		s.setarith(d)
	case 0346: // ANI
		s.A &= s.fetch(mem)
		s.F.C, s.F.AC = false, false
		s.setlogical(s.A)
	case 0356: // XRI
		s.A ^= s.fetch(mem)
		s.F.C, s.F.AC = false, false
		s.setlogical(s.A)
	case 0366: // ORI
		s.A |= s.fetch(mem)
		s.F.C, s.F.AC = false, false
		s.setlogical(s.A)
	case 0303: // JMP
		s.PC = s.fetch16(mem)
	case 0351: // PCHL
		s.PC = s.hl()
	case 0315: // CALL
		a := s.fetch16(mem)
		s.push(mem, s.PC)
		s.PC = a
	case 0311: // RET
		s.PC = s.pop(mem)
	case 062: // STA
		mem.WriteB(uint32(s.fetch16(mem)), s.A)
	case 072: // LDA
		s.A = mem.ReadB(uint32(s.fetch16(mem)))
	case 042: // SHLD
		a := s.fetch16(mem)
		mem.WriteB(uint32(a), s.L)
		mem.WriteB(uint32(a+1), s.H)
	case 052: // LHLD
		a := s.fetch16(mem)
		s.L = mem.ReadB(uint32(a))
		s.H = mem.ReadB(uint32(a + 1))
	case 0353: // XCHG
		h, l := s.H, s.L
		s.H, s.L = s.D, s.E
		s.D, s.E = h, l
	case 0306: // ADI
		r := int(s.A) + int(s.fetch(mem))
		s.setarith(r)
		s.A = uint8(r)
	case 0316: // ACI
		carry := 0
		if s.F.C {
			carry = 1
		}
		r := int(s.A) + int(s.fetch(mem)) + carry
		s.setarith(r)
		s.A = uint8(r)
	case 0326: // SUI
		r := int(s.A) - int(s.fetch(mem))
		s.setarith(r)
		s.A = uint8(r)
	case 0336: // SBI
		carry := 0
		if s.F.C {
			carry = 1
		}
		r := int(s.A) - int(s.fetch(mem)) - carry
		s.setarith(r)
		s.A = uint8(r)
	case 047: // DAA
		s.daa()
	case 07: // RLC
		carry := s.A&0x80 != 0
		s.A = s.A << 1
		s.F.C = carry
		if carry {
			s.A |= 0x01
		}
	case 017: // RRC
		carry := s.A&0x01 != 0
		s.A = s.A >> 1
		s.F.C = carry
		if carry {
			s.A |= 0x80
		}
	case 027: // RAL
		prevCarry := s.F.C
		s.F.C = s.A&0x80 != 0
		s.A = s.A << 1
		if prevCarry {
			s.A |= 1
		} else {
			s.A &^= 1
		}
	case 037: // RAR
		prevCarry := s.F.C
		s.F.C = s.A&0x01 != 0
		s.A = s.A >> 1
		if prevCarry {
			s.A |= 0x80
		} else {
			s.A &^= 0x80
		}
	case 057: // CMA
		s.A = ^s.A
	case 077: // CMC
		s.F.C = !s.F.C
	case 067: // STC
		s.F.C = true
	case 0: // NOP
	case 0343: // XTHL
		lo := mem.ReadB(uint32(s.SP))
		hi := mem.ReadB(uint32(s.SP) + 1)
		mem.WriteB(uint32(s.SP), s.L)
		mem.WriteB(uint32(s.SP)+1, s.H)
		s.H, s.L = hi, lo
	case 0371: // SPHL
		s.SP = s.hl()
	case 0373: // EI
		s.INTE = true
	case 0363: // DI
		s.INTE = false
	case 0333: // IN
		port := s.fetch(mem)
		if port == 0xff {
			s.A = s.SR
		} else if io != nil {
			v, err := io.Do(port, device.IoRd, 0)
			if err != nil {
				return StopIOE
			}
			s.A = uint8(v)
		}
	case 0323: // OUT
		port := s.fetch(mem)
		if io != nil {
			if _, err := io.Do(port, device.IoWd, uint32(s.A)); err != nil {
				return StopIOE
			}
		}
	default:
		if s.Trap {
			s.PC--
			return StopOpcode
		}
	}
	return StopNone
}

// daa implements the documented post-add decimal adjustment, following
// the original's two-nibble pass exactly (spec §4.4 "8080 execution").
func (s *State) daa() {
	lo := s.A & 0x0F
	if lo > 9 || s.F.AC {
		lo += 6
		s.A = (s.A &^ 0x0F) | (lo & 0x0F)
		s.F.AC = lo&0x10 != 0
	}
	hi := (s.A >> 4) & 0x0F
	carryOut := false
	if hi > 9 || s.F.AC {
		hi += 6
		if s.F.AC {
			hi++
		}
		carryOut = hi&0x10 != 0
		s.A = (s.A & 0x0F) | (hi << 4)
	}
	s.F.C = carryOut
	s.F.S = s.A&0x80 != 0
	s.F.Z = s.A == 0
	s.F.P = parity(s.A)
}
