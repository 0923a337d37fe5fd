/*
trisim - Automatic interrupt engine (Interdata CCB/CCW)

Copyright 2026
*/

// Package autoint implements the Interdata automatic-interrupt engine
// (spec §4.9, C9): on interrupt, the vector table entry may point (low
// bit set) to a memory-resident Channel Command Block that the engine
// runs instead of trapping directly, moving bytes to/from a
// driver-owned buffer until the CCW goes NOP, the transfer completes,
// or the device signals an error.
package autoint

import "github.com/dms3/trisim/internal/memory"

// CCW16 function codes and flag bits (spec §3, §4.9; constants from
// original_source/Interdata/id_defs.h).
const (
	ccwInit = 0x8000
	ccwNop  = 0x4000
	fncShift = 12
	fncMask  = 0x3
	fncRD   = 0
	fncWR   = 1
	fncDMT  = 2
	fncNUL  = 3
	ccwTRM  = 0x0400
	ccwQ    = 0x0200
	ccwHI   = 0x0100
	ccwOC   = 0x0080
	ccwCHN  = 0x0020
	ccwCon  = 0x0010
	bpiMask = 0xf

	// staErrMask is the status nibble int_auto treats as a transfer
	// error (any of busy/EOM/DU/examine set neuters the CCW).
	staErrMask = 0xf
)

// ccwErr neuters a CCW after a sense-status error: force INIT+NOP+Q,
// drop CHN/CON/HI (id16_cpu.c's CCW16_ERR macro).
func ccwErr(ccw uint16) uint16 {
	return (ccw | ccwInit | ccwNop | ccwQ) &^ (ccwCHN | ccwCon | ccwHI)
}

// CCB16 field offsets, relative to the CCB base address (spec §3).
const (
	ccbChn = -4
	ccbDev = -2
	ccbSts = -1
	ccbCcw = 0
	ccbStr = 2
	ccbEnd = 4
	ccbIoc = 6
	ccbTrm = 7
)

// Device is the narrow device-facing contract the engine needs: send an
// init-phase output-command byte, and transfer one byte in the
// programmed direction. ok is false on a device error, ending the pass.
type Device interface {
	SendOC(cmd uint8)
	TransferByte(write bool, b uint8) (result uint8, ok bool)
	Status() uint8
}

// Engine runs CCB programs against a Machine's physical memory. It
// has no opinion about the system queue: a Result with Queued set is
// the caller's cue to push vec onto its own SysQueue and handle
// overflow (spec §4.9 "System queue").
type Engine struct {
	Mem *memory.Memory
}

// Result reports what one pass over a CCB produced, so the CPU's
// interrupt-delivery code can decide whether to post the system-queue
// PSW swap.
type Result struct {
	Terminated bool // CCW went NOP this pass
	Queued     bool // CCB was enqueued on the system queue
	QueuedHi   bool
	Chained    bool // a chained CCB address was installed
}

func (e *Engine) readCCW(ccb uint32) uint16 {
	return e.Mem.IOReadH(uint32(int64(ccb) + ccbCcw))
}

func (e *Engine) writeCCW(ccb uint32, v uint16) {
	e.Mem.IOWriteH(uint32(int64(ccb)+ccbCcw), v)
}

// Run performs one pass of the CCB at ccb for dev, per spec §4.9. vector
// is the address of this device's slot in the interrupt-service vector
// table (INTSVT), used to install a chained CCB address.
func (e *Engine) Run(dev uint8, ccb uint32, vector uint32, d Device) Result {
	ccw := e.readCCW(ccb)
	if ccw&ccwNop != 0 {
		return Result{Terminated: true}
	}

	if ccw&ccwInit != 0 {
		ccw &^= ccwInit
		e.writeCCW(ccb, ccw)
		if ccw&ccwOC != 0 {
			d.SendOC(e.Mem.IOReadB(uint32(int64(ccb) + ccbIoc)))
		}
	}

	fnc := (ccw >> fncShift) & fncMask
	switch fnc {
	case fncDMT:
		str := uint32(int64(ccb) + ccbStr)
		cnt := e.Mem.IOReadH(str)
		cnt--
		e.Mem.IOWriteH(str, cnt)
		if cnt != 0 {
			return Result{}
		}
		return e.terminate(dev, ccb, vector, ccw)
	case fncNUL:
		return Result{}
	case fncRD, fncWR:
		return e.transfer(dev, ccb, vector, ccw, fnc == fncWR, d)
	default:
		return Result{}
	}
}

func (e *Engine) transfer(dev uint8, ccb uint32, vector uint32, ccw uint16, write bool, d Device) Result {
	if d.Status()&staErrMask != 0 {
		e.writeCCW(ccb, ccwErr(ccw))
		return Result{}
	}

	bpi := int(ccw&bpiMask) + 1
	str := uint32(int64(ccb) + ccbStr)
	end := uint32(int64(ccb) + ccbEnd)
	cur := e.Mem.IOReadH(str)
	last := e.Mem.IOReadH(end)
	term := e.Mem.IOReadB(uint32(int64(ccb) + ccbTrm))
	checkTerm := ccw&ccwTRM != 0

	for i := 0; i < bpi; i++ {
		var b uint8
		if write {
			b = e.Mem.IOReadB(uint32(cur))
		}
		result, ok := d.TransferByte(write, b)
		if !ok {
			e.Mem.IOWriteH(str, cur)
			return Result{}
		}
		if !write {
			e.Mem.IOWriteB(uint32(cur), result)
		}

		done := cur == last
		matchedTerm := checkTerm && result == term
		if cur < last {
			cur++
		}
		e.Mem.IOWriteH(str, cur)
		if done || matchedTerm {
			return e.terminate(dev, ccb, vector, ccw)
		}
	}
	return Result{}
}

func (e *Engine) terminate(dev uint8, ccb uint32, vector uint32, ccw uint16) Result {
	ccw |= ccwNop
	e.writeCCW(ccb, ccw)

	e.Mem.IOWriteH(uint32(int64(ccb)+ccbDev), uint16(dev)<<8|uint16(e.Mem.IOReadB(uint32(int64(ccb)+ccbSts))))

	res := Result{Terminated: true}
	if ccw&ccwQ != 0 {
		res.Queued = true
		res.QueuedHi = ccw&ccwHI != 0
	}
	if ccw&ccwCHN != 0 {
		chain := e.Mem.IOReadH(uint32(int64(ccb) + ccbChn))
		e.Mem.IOWriteH(vector, chain)
		res.Chained = true
	}
	return res
}
