/*
trisim programmed-I/O device contract.

Copyright (c) 2024, Richard Cornwell
Copyright (c) 2026

Permission is hereby granted, free of charge, to any person obtaining a
copy of this software and associated documentation files (the "Software"),
to deal in the Software without restriction, including without limitation
the rights to use, copy, modify, merge, publish, distribute, sublicense,
and/or sell copies of the Software, and to permit persons to whom the
Software is furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
*/

// Package device defines the programmed-I/O dispatch contract (spec §6.1)
// shared by every Interdata device model and the selector channel.
package device

// IoOp is one of the seven operations a device handler understands.
type IoOp int

const (
	IoAdr IoOp = iota // address select: device becomes selected
	IoRd              // read byte
	IoRh              // read halfword
	IoWd              // write byte
	IoWh              // write halfword
	IoOc              // output command
	IoSs              // sense status
)

// Width is the value a handler returns from IoAdr: whether the device
// accepts only byte transfers or also halfword transfers.
type Width uint32

const (
	WidthByte     Width = 0 // BY
	WidthHalfword Width = 1 // HW
)

// Status byte conventions, common to every Interdata device (spec §6.2;
// constants from original_source/Interdata/id_defs.h STA_*).
const (
	StaBsy uint8 = 0x8 // device is processing a previous command
	StaEx  uint8 = 0x4 // STA_EX: any device-examine bit is set
	StaEom uint8 = 0x2 // end of medium / operation
	StaDu  uint8 = 0x1 // device unavailable (detached, off-line)
)

// Command byte arm/enable field (top two bits, CMD_V_INT).
const (
	CmdIntShift = 6
	CmdIntMask  = 0x3

	CmdIenb = 1 // arm + enable
	CmdIdis = 2 // arm, drop enable
	CmdIdsa = 3 // drop both, clear request
)

// Handler is the signature every device handler implements (spec §6.1):
// fn(dev, op, data) -> (result, error). error is reserved for host-side
// faults (e.g. I/O on a detached unit with stopioe set); ordinary status
// is conveyed in the returned value, never via error.
type Handler func(dev uint8, op IoOp, data uint32) (uint32, error)

// NoDev is the sentinel device number meaning "nothing attached."
const NoDev uint16 = 0xffff

// DIB is the Device Information Block: the metadata record binding a
// device handler to a device number, selector channel, and interrupt
// line (spec §3 "Device Information Block").
type DIB struct {
	DevNum   uint16   // base device number, 1..255
	Channel  int      // assigned selector-channel index, -1 if none
	IrqLevel int      // interrupt-level index into the level/device table
	Template []uint16 // additional device numbers; nil == single number
	IOT      Handler  // device I/O handler
	Init     func()   // initialization hook: regenerates device/vector maps
}

// Numbers returns the full set of device numbers this DIB occupies:
// DevNum plus every entry of Template.
func (d *DIB) Numbers() []uint16 {
	if len(d.Template) == 0 {
		return []uint16{d.DevNum}
	}
	out := make([]uint16, 0, len(d.Template)+1)
	out = append(out, d.DevNum)
	out = append(out, d.Template...)
	return out
}

// ExamineBit reports whether any bit in mask (the device's own
// "examine" subset of its status byte) is set in status. Callers OR the
// result, shifted into StaEx, onto the sense-status return value.
func ExamineBit(status, mask uint8) uint8 {
	if status&mask != 0 {
		return StaEx
	}
	return 0
}

// IntChg applies the command byte's 2-bit arm/enable field to the
// previous armed state, per spec §4.6: IENB arms and enables, IDIS keeps
// arm but drops enable, IDSA drops both and clears any pending request.
// It returns the new armed state and whether a pending request should be
// cleared.
func IntChg(cmd uint8, prevArmed bool) (armed, enable, clearReq bool) {
	switch (cmd >> CmdIntShift) & CmdIntMask {
	case CmdIenb:
		return true, true, false
	case CmdIdis:
		return prevArmed, false, false
	case CmdIdsa:
		return false, false, true
	default:
		return prevArmed, prevArmed, false
	}
}
