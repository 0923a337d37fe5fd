/*
trisim - Interdata MSM/IDC cartridge disk controller

Copyright 2026
*/

// Package disk implements a single-drive cartridge/MSM disk controller
// (spec §4.10, C10): a byte-level programmed-I/O front end that loads a
// head/cylinder/sector address three bytes at a time, drives a selector
// channel for the 256-byte-per-sector data path, and settles through the
// idle/busy/transfer-error status bits on the controller's own timing
// via the event scheduler.
package disk

import (
	"fmt"

	"github.com/dms3/trisim/internal/channel"
	"github.com/dms3/trisim/internal/device"
	"github.com/dms3/trisim/internal/event"
)

// Geometry, per id_idc.c (IDC_NUMBY/IDC_NUMSC).
const (
	BytesPerSector   = 256
	SectorsPerTrack  = 64
)

// Controller status bits (id_idc.c STC_*).
const (
	staWRP uint8 = 0x80 // write protected
	staACF uint8 = 0x40 // address compare failed (bad cylinder)
	staIDL uint8 = 0x02 // controller idle
	staDTE uint8 = 0x01 // transfer error
	staEX        = staWRP | staACF | staDTE
)

// Controller commands (id_idc.c CMC_*). The intelligent-controller-only
// functions (read/write RAM, self-test, formatting) are out of scope —
// spec §1's Non-goals exclude image formatting, and nothing in spec §4.10
// exercises them.
const (
	CmdMask uint8 = 0x3F
	CmdClr  uint8 = 0x08 // reset
	CmdRd   uint8 = 0x01
	CmdWr   uint8 = 0x02
	CmdRChk uint8 = 0x03
)

// cmdLatency/sectLatency are the fixed command/sector latencies (idc_ctime/
// idc_rtime), in simulated instructions, before the service routine runs.
const (
	cmdLatency  = 5
	sectLatency = 100
)

// Disk is one cartridge-disk controller and its single attached drive.
// Multi-drive addressing (idc_svun, per-drive armed state) is out of
// scope: spec §4.10's scenario only ever exercises one unit, so this
// models the controller's own command/status/transfer path and drops
// the id/idc split between controller and per-drive I/O routine.
type Disk struct {
	image    []byte
	attached bool

	status uint8
	hcyl   uint32 // head/cylinder word, written one byte at a time
	sec    uint8
	wdptr  int // 0,1,2: next byte of hcyl/sec being written

	cmd     uint8
	armed   bool
	enabled bool

	chans   *channel.Channels
	chanIdx int
	eq      *event.Queue
	irqFn   func()
}

// New returns an idle, unattached disk bound to channel chanIdx of chans,
// using eq to schedule its command/transfer latency.
func New(chans *channel.Channels, chanIdx int, eq *event.Queue) *Disk {
	return &Disk{status: staIDL, chans: chans, chanIdx: chanIdx, eq: eq}
}

// SetInterruptHook installs the callback Svc invokes when an armed,
// enabled operation completes.
func (d *Disk) SetInterruptHook(fn func()) { d.irqFn = fn }

// Attach loads image as the drive's backing store (spec §1 Non-goals:
// the on-disk image format is out of scope, so this is a plain in-memory
// byte slice rather than a host file).
func (d *Disk) Attach(image []byte) {
	d.image = image
	d.attached = true
	d.status &^= staDTE
}

// Detach removes the backing store; subsequent commands report STA_DTE.
func (d *Disk) Detach() {
	d.image = nil
	d.attached = false
}

func (d *Disk) sectorOffset() (int, bool) {
	sec := uint32(d.sec) % SectorsPerTrack
	track := d.hcyl
	off := int(track)*SectorsPerTrack*BytesPerSector + int(sec)*BytesPerSector
	if off+BytesPerSector > len(d.image) {
		return 0, false
	}
	return off, true
}

// Handler returns the device.Handler bound to this controller.
func (d *Disk) Handler() device.Handler {
	return func(_ uint8, op device.IoOp, data uint32) (uint32, error) {
		switch op {
		case device.IoAdr:
			d.chans.Adr(d.chanIdx, 0)
			return uint32(device.WidthHalfword), nil

		case device.IoWd:
			d.wdByte(uint8(data))
			return 0, nil

		case device.IoWh:
			d.wdByte(uint8(data >> 8))
			d.wdByte(uint8(data))
			return 0, nil

		case device.IoSs:
			st := d.status & (staWRP | staACF | staIDL | staDTE | device.StaBsy)
			if st&staEX != 0 {
				st |= device.StaEx
			}
			return uint32(st), nil

		case device.IoOc:
			d.startCmd(uint8(data))
			return 0, nil

		default:
			return 0, nil
		}
	}
}

func (d *Disk) wdByte(b uint8) {
	switch d.wdptr {
	case 0:
		d.sec = b
		d.wdptr++
	case 1:
		d.hcyl = (d.hcyl &^ 0xff00) | uint32(b)<<8
		d.wdptr++
	default:
		d.hcyl = (d.hcyl &^ 0xff) | uint32(b)
		d.wdptr = 0
	}
}

func (d *Disk) startCmd(cmd uint8) {
	armed, enabled, _ := device.IntChg(cmd, d.armed)
	d.armed = armed
	d.enabled = enabled
	d.wdptr = 0

	f := cmd & CmdMask
	if f&CmdClr != 0 {
		d.reset()
		return
	}
	if f == 0 || d.status&staIDL == 0 {
		return // nop, or controller busy: ignored per idc()
	}
	d.status = device.StaBsy
	d.cmd = f
	d.eq.Activate(d, func(int) { d.svc() }, cmdLatency, 0)
}

func (d *Disk) reset() {
	d.status = staIDL
	d.wdptr = 0
	d.cmd = 0
}

// Reset implements the host-level reset(device) lifecycle operation
// (spec §3 "Lifecycle", invariant 3): it drops any pending service event
// and restores power-on register values, but never touches attach state
// — a reset drive stays attached to whatever image it already has.
func (d *Disk) Reset() {
	d.eq.Cancel(d, 0)
	d.reset()
}

// svc runs the controller's service routine (spec §4.10): transfer one
// 256-byte sector through the selector channel, re-arming itself if the
// channel still has GO set (more sectors requested), else completing.
func (d *Disk) svc() {
	if !d.attached {
		d.done(staDTE)
		return
	}

	off, ok := d.sectorOffset()
	if !ok {
		d.done(staDTE) // bad cylinder: idc_dter's STC_DTE path
		return
	}

	switch d.cmd {
	case CmdRd, CmdRChk:
		if !d.chans.Go(d.chanIdx) {
			d.done(staDTE)
			return
		}
		buf := make([]byte, BytesPerSector)
		copy(buf, d.image[off:off+BytesPerSector])
		d.chans.WrMem(d.chanIdx, buf)

	case CmdWr:
		if !d.chans.Go(d.chanIdx) {
			d.done(staDTE)
			return
		}
		buf := make([]byte, BytesPerSector)
		d.chans.RdMem(d.chanIdx, buf)
		copy(d.image[off:off+BytesPerSector], buf)

	default:
		d.done(staDTE)
		return
	}

	if d.chans.Go(d.chanIdx) {
		d.sec++
		d.eq.Activate(d, func(int) { d.svc() }, sectLatency, 0)
		return
	}
	d.done(0)
}

func (d *Disk) done(extra uint8) {
	d.status = staIDL | extra
	if d.enabled && d.irqFn != nil {
		d.irqFn()
	}
}

// String satisfies fmt.Stringer for debug logging.
func (d *Disk) String() string {
	return fmt.Sprintf("disk(attached=%v hcyl=%#x sec=%d status=%#x)", d.attached, d.hcyl, d.sec, d.status)
}
