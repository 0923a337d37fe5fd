/*
trisim - Interdata 9-track tape controller

Copyright 2026
*/

// Package tape implements a single-drive 9-track tape controller (spec
// §4.10, C10): REW/RD/WR/WEOF commands operating on an in-memory record
// sequence, a selector-channel data path for read/write, and the
// canonical three-stage completion pattern — operation done, then a
// STOP1 pass clears busy and sets EOM, then a STOP2 pass sets NMTN —
// each stage capable of raising an interrupt.
package tape

import (
	"github.com/dms3/trisim/internal/channel"
	"github.com/dms3/trisim/internal/device"
	"github.com/dms3/trisim/internal/event"
)

// Commands (id_mt.c MTC_*). Space-file-forward/reverse and backspace are
// out of scope: spec §4.10's three-stage pattern and §8's round-trip
// scenario only exercise REW/RD/WR/WEOF.
const (
	CmdMask uint8 = 0x3F
	CmdClr  uint8 = 0x20
	CmdRd   uint8 = 0x21
	CmdWr   uint8 = 0x22
	CmdWeof uint8 = 0x30
	CmdRew  uint8 = 0x38

	cmdStop1 uint8 = 0x40 // stop, set EOM
	cmdStop2 uint8 = 0x80 // stop, set NMTN
)

// Status bits (id_mt.c STA_*); STA_BSY/STA_EOM are the shared
// device.StaBsy/device.StaEom bits.
const (
	staErr  uint8 = 0x80
	staEof  uint8 = 0x40
	staEot  uint8 = 0x20
	staNmtn uint8 = 0x10
	staEx   uint8 = staErr | staEof | staNmtn
)

const (
	cmdLatency = 5   // mt_rtime: delay before a command's first service
	stopLatency = 5  // mt_rtime reused for the STOP1/STOP2 settle passes
)

// Tape is one drive and its medium. Each entry of records is one tape
// record, or nil standing in for a tapemark (id_mt.c's MTSE_TMK).
type Tape struct {
	records  [][]byte
	pos      int
	attached bool

	ctrlSta uint8 // controller-level status (mt_sta)
	unitSta uint8 // unit-level status (UST): STA_EOT|STA_NMTN
	cmd     uint8

	armed   bool
	enabled bool

	chans   *channel.Channels
	chanIdx int
	eq      *event.Queue
	irqFn   func()
}

// New returns an idle, unattached tape drive bound to channel chanIdx.
func New(chans *channel.Channels, chanIdx int, eq *event.Queue) *Tape {
	return &Tape{unitSta: staNmtn, chans: chans, chanIdx: chanIdx, eq: eq}
}

// SetInterruptHook installs the callback invoked once per settling stage
// that finds its interrupt armed.
func (t *Tape) SetInterruptHook(fn func()) { t.irqFn = fn }

// Attach mounts records as the drive's medium (spec §1 Non-goals: image
// format/host file I/O is out of scope, so records are plain in-memory
// byte slices; a nil entry marks a tapemark). The tape starts rewound.
func (t *Tape) Attach(records [][]byte) {
	t.records = records
	t.pos = 0
	t.attached = true
	t.unitSta = 0
}

// Detach removes the medium; subsequent commands report STA_DU.
func (t *Tape) Detach() {
	t.records = nil
	t.attached = false
	t.unitSta = staNmtn
}

// Handler returns the device.Handler bound to this drive.
func (t *Tape) Handler() device.Handler {
	return func(_ uint8, op device.IoOp, data uint32) (uint32, error) {
		switch op {
		case device.IoAdr:
			t.chans.Adr(t.chanIdx, 0)
			return uint32(device.WidthByte), nil

		case device.IoSs:
			st := t.ctrlSta & (staErr | staEof | device.StaBsy | device.StaEom)
			if t.attached {
				st |= t.unitSta & (staEot | staNmtn)
			} else {
				st |= device.StaDu
			}
			if st&staEx != 0 {
				st |= device.StaEx
			}
			return uint32(st), nil

		case device.IoOc:
			t.startCmd(uint8(data))
			return 0, nil

		default:
			return 0, nil
		}
	}
}

func (t *Tape) startCmd(cmd uint8) {
	armed, enabled, _ := device.IntChg(cmd, t.armed)
	t.armed = armed
	t.enabled = enabled

	f := cmd & CmdMask
	if f == CmdClr {
		t.resetDrive()
		return
	}
	if !t.attached {
		return
	}
	if f == CmdWr || f == CmdRew {
		t.ctrlSta = 0
	} else {
		t.ctrlSta = device.StaBsy
	}
	t.cmd = f
	t.unitSta = 0
	t.eq.Activate(t, func(int) { t.svc() }, cmdLatency, 0)
}

func (t *Tape) resetDrive() {
	t.ctrlSta = 0
	t.cmd = 0
}

// Reset implements the host-level reset(device) lifecycle operation
// (spec §3 "Lifecycle", invariant 3): it drops any pending settle event
// and restores power-on register values without touching attach state.
func (t *Tape) Reset() {
	t.eq.Cancel(t, 0)
	t.resetDrive()
}

// svc runs the command, then the STOP1/STOP2 settling pattern, matching
// mt_svc's three possible interrupts per operation.
func (t *Tape) svc() {
	if t.cmd&cmdStop2 != 0 {
		t.cmd = 0
		t.unitSta |= staNmtn
		t.fireIrq()
		return
	}
	if t.cmd&cmdStop1 != 0 {
		t.cmd |= cmdStop2
		t.ctrlSta = (t.ctrlSta &^ device.StaBsy) | device.StaEom
		t.fireIrq()
		t.eq.Activate(t, func(int) { t.svc() }, stopLatency, 0)
		return
	}

	switch t.cmd {
	case CmdRew:
		t.pos = 0
		t.cmd = 0
		t.unitSta = staNmtn | staEot
		t.ctrlSta &^= device.StaBsy
		t.fireIrq()
		return

	case CmdRd:
		rec, ok := t.nextRecord()
		if !ok {
			t.ctrlSta |= staEof
			t.fireIrq()
			break
		}
		buf := make([]byte, len(rec))
		copy(buf, rec)
		t.chans.WrMem(t.chanIdx, buf)

	case CmdWr:
		buf := make([]byte, t.chans.Remaining(t.chanIdx))
		t.chans.RdMem(t.chanIdx, buf)
		t.writeRecord(buf)

	case CmdWeof:
		t.writeRecord(nil)
		t.ctrlSta |= staEof
		t.fireIrq()
	}

	t.cmd |= cmdStop1
	t.eq.Activate(t, func(int) { t.svc() }, stopLatency, 0)
}

// nextRecord returns the record at pos and advances past it; a nil
// record (tapemark) or running off the end reports ok=false.
func (t *Tape) nextRecord() ([]byte, bool) {
	if t.pos >= len(t.records) || t.records[t.pos] == nil {
		if t.pos < len(t.records) {
			t.pos++
		}
		return nil, false
	}
	rec := t.records[t.pos]
	t.pos++
	return rec, true
}

// writeRecord overwrites the record at pos (truncating anything after,
// per real tape semantics: a write destroys everything downstream of
// the write point) and advances pos.
func (t *Tape) writeRecord(rec []byte) {
	if t.pos < len(t.records) {
		t.records = t.records[:t.pos]
	}
	t.records = append(t.records, rec)
	t.pos++
}

func (t *Tape) fireIrq() {
	if t.enabled && t.irqFn != nil {
		t.irqFn()
	}
}
