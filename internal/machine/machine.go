/*
trisim - Machine composition root

Copyright 2026
*/

// Package machine wires one CPU family's interpreter together with the
// shared fabric (memory, device dispatch, selector channels, interrupt
// controller, event scheduler) into a single runnable unit (spec §2
// "components C1-C10", §4.4 "Top-of-loop algorithm"). It owns no
// package-level state: every Machine is an independent instance.
package machine

import (
	"fmt"

	"github.com/dms3/trisim/internal/autoint"
	"github.com/dms3/trisim/internal/channel"
	"github.com/dms3/trisim/internal/cpu8080"
	"github.com/dms3/trisim/internal/device"
	"github.com/dms3/trisim/internal/event"
	"github.com/dms3/trisim/internal/interdata"
	"github.com/dms3/trisim/internal/interdata/id16"
	"github.com/dms3/trisim/internal/interdata/id32"
	"github.com/dms3/trisim/internal/intr"
	"github.com/dms3/trisim/internal/iobus"
	"github.com/dms3/trisim/internal/memory"
)

// Family selects which CPU interpreter and memory geometry a Machine
// runs; it is memory.Family directly, since the two are never allowed
// to drift apart (spec §3 "Data model").
type Family = memory.Family

const (
	FamilyAltair Family = memory.Altair8080
	FamilyID16   Family = memory.Interdata16
	FamilyID16E  Family = memory.Interdata16E
	FamilyID32   Family = memory.Interdata32
)

// selChanMask is the selector channel address mask per family (spec
// §4.8 step 1): 14 bits on 7/16, 18 on 8/16E, 20 on 32b. The 8080
// family has no selector channel; the value is unused there.
func selChanMask(f Family) uint32 {
	switch f {
	case memory.Interdata16:
		return 0x3fff
	case memory.Interdata16E:
		return 0x3ffff
	case memory.Interdata32:
		return 0xfffff
	default:
		return 0xffff
	}
}

// Model, where it matters (PSW mask, register-set count), is supplied
// directly by the caller alongside Family, since one Family spans
// several Model values (e.g. Interdata16 covers ModelI3..Model816).

// Config is the set of CPU configuration knobs observable at the host
// interface (spec §6.6).
type Config struct {
	Family      Family
	Model       interdata.Model // ignored for FamilyAltair
	MemSize     uint32
	TrapIllegal bool // stop_inst: stop on an undecoded opcode rather than treat it as a NOP/trap
	Chip        cpu8080.ChipVariant
	HistoryLen  int // instruction-history ring length; 0 disables history
}

// StopReason is the family-agnostic reason Run returned control to its
// caller (spec §7 "Propagation": the loop's reason word is the single
// channel out).
type StopReason int

const (
	StopNone      StopReason = iota
	StopHalt                 // HALT/WAIT in a quiescent system (spec §7 "Halt")
	StopIllegalOp            // undecoded opcode with TrapIllegal set
	StopBreakpoint
	StopIOError // a device's stopioe-flagged error became the loop's reason
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopHalt:
		return "halt"
	case StopIllegalOp:
		return "illegal-opcode"
	case StopBreakpoint:
		return "breakpoint"
	case StopIOError:
		return "io-error"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// BreakpointAt is checked once per instruction before fetch (spec §7
// "Breakpoint").
type BreakpointAt func(pc uint32) bool

// HistoryEntry is one instruction-history ring slot (spec §6.6
// "Instruction history length").
type HistoryEntry struct {
	PC uint32
}

// Resettable is implemented by every device model's Reset method (spec
// §3 "Lifecycle"): drop pending events, restore power-on values, leave
// attach state and the DIB untouched.
type Resettable interface {
	Reset()
}

// Machine is the composition root: one memory, one device dispatch
// table, one set of selector channels, one interrupt controller, one
// event queue, and exactly one CPU family's register state.
type Machine struct {
	cfg Config

	Mem   *memory.Memory
	IO    *iobus.Table
	Intr  *intr.Controller
	Chans *channel.Channels
	EQ    *event.Queue

	cpu8080 *cpu8080.State
	id16    *id16.State
	id32    *id32.State

	mac memory.Mac // Interdata-32 segment registers (spec §4.1, §6.3)

	autoEngine16 *autoint.Engine // Interdata-16 automatic-interrupt engine (spec §4.9, C9)

	Breakpoint BreakpointAt

	history  []HistoryEntry
	histNext int
}

// New allocates a Machine for cfg.Family and wires its CPU state to the
// shared fabric: ChanBlk to the selector channels' blocking test,
// GetIntDev to the interrupt controller's priority scan (16-bit family
// only; the 32-bit family fetches the interrupting device inline in
// Run, per id32's DeliverInterrupt doc comment).
func New(cfg Config) *Machine {
	mem := memory.New(cfg.Family, cfg.MemSize)
	m := &Machine{
		cfg:   cfg,
		Mem:   mem,
		IO:    iobus.New(),
		Intr:  intr.New(),
		Chans: channel.New(mem, selChanMask(cfg.Family)),
		EQ:    event.NewQueue(),
	}
	if cfg.HistoryLen > 0 {
		m.history = make([]HistoryEntry, cfg.HistoryLen)
	}

	switch cfg.Family {
	case memory.Altair8080:
		m.cpu8080 = &cpu8080.State{Trap: cfg.TrapIllegal, Chip: cfg.Chip}

	case memory.Interdata32:
		m.Mem.SetMac(&m.mac)
		m.id32 = &id32.State{
			Mask:    cfg.Model.PSWMask(),
			Trap:    cfg.TrapIllegal,
			ChanBlk: m.Chans.Blk,
			Mac:     &m.mac,
		}

	default: // Interdata16, Interdata16E
		m.id16 = &id16.State{
			Mask:      cfg.Model.PSWMask(),
			Trap:      cfg.TrapIllegal,
			ChanBlk:   m.Chans.Blk,
			GetIntDev: m.Intr.GetDev,
		}
		if cfg.Family == memory.Interdata16E {
			m.id16.Reloc16E = memory.NewReloc16E()
		}
		m.autoEngine16 = &autoint.Engine{Mem: mem}
	}
	return m
}

// autoDevice16 adapts the programmed-I/O dispatch table to the
// automatic-interrupt engine's narrower Device contract (spec §4.9).
type autoDevice16 struct {
	io  *iobus.Table
	dev uint8
}

func (d autoDevice16) SendOC(cmd uint8) { d.io.Do(d.dev, device.IoOc, uint32(cmd)) }

func (d autoDevice16) TransferByte(write bool, b uint8) (uint8, bool) {
	if write {
		_, err := d.io.Do(d.dev, device.IoWd, uint32(b))
		return 0, err == nil
	}
	v, err := d.io.Do(d.dev, device.IoRd, 0)
	return uint8(v), err == nil
}

func (d autoDevice16) Status() uint8 {
	v, _ := d.io.Do(d.dev, device.IoSs, 0)
	return uint8(v)
}

// AttachDevices builds the device dispatch table from dibs (spec §4.7
// "Init"). It must run once before Run and again after any change to
// the device roster.
func (m *Machine) AttachDevices(dibs []*device.DIB) error {
	return m.IO.Init(dibs)
}

// CPU8080/ID16/ID32 expose the family-specific register state for
// direct inspection/seeding by tests and the config loader; exactly one
// is non-nil, matching m.cfg.Family.
func (m *Machine) CPU8080() *cpu8080.State { return m.cpu8080 }
func (m *Machine) ID16() *id16.State       { return m.id16 }
func (m *Machine) ID32() *id32.State       { return m.id32 }

// Mac exposes the Interdata-32 segment-register unit bound into m.Mem's
// memory-mapped alias (spec §6.3); nil for every other family.
func (m *Machine) Mac() *memory.Mac {
	if m.cfg.Family != memory.Interdata32 {
		return nil
	}
	return &m.mac
}

// ResetDevice runs the host-level reset(device) lifecycle operation
// (spec §3 "Lifecycle", invariant 3) against one device model. It is a
// thin pass-through: each device's own Reset cancels its pending event
// and restores power-on values; the DIB and dispatch table are never
// touched here.
func (m *Machine) ResetDevice(r Resettable) {
	r.Reset()
}

func (m *Machine) recordHistory(pc uint32) {
	if len(m.history) == 0 {
		return
	}
	m.history[m.histNext] = HistoryEntry{PC: pc}
	m.histNext = (m.histNext + 1) % len(m.history)
}

// History returns the recorded PCs, oldest first.
func (m *Machine) History() []HistoryEntry {
	if len(m.history) == 0 {
		return nil
	}
	out := make([]HistoryEntry, 0, len(m.history))
	for i := 0; i < len(m.history); i++ {
		idx := (m.histNext + i) % len(m.history)
		out = append(out, m.history[idx])
	}
	return out
}

// Run executes instructions until a non-resumable StopReason occurs or
// maxInstr instructions have retired (maxInstr <= 0 means unbounded).
// The loop is the single-threaded cooperative model of spec §5: every
// suspension point (event processing, block-I/O drain, interrupt
// dispatch, WAIT idle) happens only between instructions, never inside
// one (spec §4.4, §5 "Suspension points").
func (m *Machine) Run(maxInstr int) (StopReason, error) {
	switch m.cfg.Family {
	case memory.Altair8080:
		return m.run8080(maxInstr)
	case memory.Interdata32:
		return m.runID32(maxInstr)
	default:
		return m.runID16(maxInstr)
	}
}

func (m *Machine) run8080(maxInstr int) (StopReason, error) {
	s := m.cpu8080
	var brk cpu8080.BreakpointAt
	if m.Breakpoint != nil {
		brk = func(pc uint16) bool { return m.Breakpoint(uint32(pc)) }
	}
	for n := 0; maxInstr <= 0 || n < maxInstr; n++ {
		m.recordHistory(uint32(s.PC))
		reason := cpu8080.Step(s, m.Mem, m.IO, brk)
		switch reason {
		case cpu8080.StopNone:
		case cpu8080.StopHalt:
			return StopHalt, nil
		case cpu8080.StopOpcode:
			return StopIllegalOp, nil
		case cpu8080.StopIBkpt:
			return StopBreakpoint, nil
		case cpu8080.StopIOE:
			return StopIOError, fmt.Errorf("machine: device signalled a fatal I/O error")
		}
		m.EQ.Advance(1)
	}
	return StopNone, nil
}

func (m *Machine) runID16(maxInstr int) (StopReason, error) {
	s := m.id16
	for n := 0; maxInstr <= 0 || n < maxInstr; n++ {
		if s.PSW&interdata.PSWWait != 0 {
			if stop, done := m.idle16(); done {
				return stop, nil
			}
			continue
		}

		m.recordHistory(s.PC)
		reason := id16.Step(s, m.Mem, m.IO, id16.BreakpointAt(m.Breakpoint))
		switch reason {
		case id16.StopNone:
		case id16.StopRsrv:
			return StopIllegalOp, nil
		case id16.StopHalt:
			return StopHalt, nil
		case id16.StopIBkpt:
			return StopBreakpoint, nil
		case id16.StopWait:
			continue // PSW.Wait was set mid-instruction (e.g. by the trap it just ran)
		}

		m.drainBlock16()
		m.EQ.Advance(1)
		m.deliverInterrupt16()
	}
	return StopNone, nil
}

// idle16 advances time until either an interrupt becomes pending (PSW
// stays in WAIT and the caller's loop re-enters Step, which will now
// run the trap instead) or the event queue runs dry with nothing to
// wake the CPU, which is the quiescent halt of spec §7 "Halt".
func (m *Machine) idle16() (StopReason, bool) {
	s := m.id16
	delay := m.EQ.NextDelay()
	if delay < 0 {
		return StopHalt, true
	}
	m.EQ.Advance(delay)
	m.deliverInterrupt16()
	if s.PSW&interdata.PSWWait != 0 && m.EQ.NextDelay() < 0 && !m.pendingInterrupt() {
		return StopHalt, true
	}
	return StopNone, false
}

func (m *Machine) pendingInterrupt() bool {
	return m.cfg.Family != memory.Altair8080 && m.Intr.Pending()
}

// drainBlock16 transfers one byte of an armed WB/RB block-I/O transfer
// (spec §4.4 "Block-I/O drain"): on BUSY it forces an event cycle next
// iteration by leaving Active set; otherwise it moves one byte and
// advances Cur, clearing Active once Cur reaches End.
func (m *Machine) drainBlock16() {
	s := m.id16
	if !s.Blk.Active {
		return
	}
	dev := uint8(s.Blk.Dev)
	st, _ := m.IO.Do(dev, device.IoSs, 0)
	if uint8(st)&device.StaBsy != 0 {
		return
	}
	if s.Blk.Read {
		b, _ := m.IO.Do(dev, device.IoRd, 0)
		m.Mem.IOWriteB(s.Blk.Cur, uint8(b))
	} else {
		b := m.Mem.IOReadB(s.Blk.Cur)
		m.IO.Do(dev, device.IoWd, uint32(b))
	}
	if s.Blk.Cur == s.Blk.End {
		s.Blk.Active = false
		return
	}
	s.Blk.Cur = (s.Blk.Cur + 1) & 0xffff
}

// deliverInterrupt16 runs int_eval/int_getdev/exception for the 16-bit
// family: a pending request needs both PSW.EXI and a winning GetDev
// scan (spec §4.4 "Interrupt delivery"). PSW.AIO selects between the
// plain EXIPSW trap and the automatic-interrupt engine (spec §4.9).
func (m *Machine) deliverInterrupt16() {
	s := m.id16
	if s.PSW&interdata.PSWEXI == 0 {
		return
	}
	dev, ok := m.Intr.GetDev()
	if !ok {
		return
	}
	if s.PSW&interdata.PSWAIO != 0 {
		m.runAutoInterrupt16(dev)
		return
	}
	s.DeliverInterrupt(m.Mem)
}

// runAutoInterrupt16 is int_auto (spec §4.9): the device's INTSVT slot
// either names an immediate-interrupt vector (low bit clear, same
// PSW-swap convention as EXIPSW but at the device's own location) or a
// CCB the engine runs one pass of. A pass that asks to enqueue pushes
// the vector address onto the system queue named by SQP, trapping via
// SQVPSW on overflow or SQIPSW once PSW.SQI is enabled and the queue
// gained an entry.
func (m *Machine) runAutoInterrupt16(devNum uint16) {
	s := m.id16
	slot := id16.INTSVT + uint32(devNum)*2
	vec := uint32(m.Mem.IOReadH(slot))
	if vec&1 == 0 {
		s.SwapPSWAt(m.Mem, vec)
		return
	}
	ccb := vec &^ 1

	adapter := autoDevice16{io: m.IO, dev: uint8(devNum)}
	res := m.autoEngine16.Run(uint8(devNum), ccb, slot, adapter)

	queued := false
	if res.Queued {
		sq := &autoint.SysQueue{Mem: m.Mem, Base: uint32(m.Mem.IOReadH(id16.SQP))}
		if res.QueuedHi {
			queued = sq.AddBot(ccb) // CCW16_HI set: ABL, add at the bottom
		} else {
			queued = sq.AddTop(ccb) // CCW16_HI clear: ATL, add at the top
		}
		if !queued {
			m.Mem.IOWriteH(id16.SQOP, uint16(ccb))
			s.SwapPSWAt(m.Mem, id16.SQVPSW)
			return
		}
	}
	if queued && s.PSW&interdata.PSWSQI != 0 {
		s.SwapPSWAt(m.Mem, id16.SQIPSW)
	}
}

func (m *Machine) runID32(maxInstr int) (StopReason, error) {
	s := m.id32
	for n := 0; maxInstr <= 0 || n < maxInstr; n++ {
		if s.PSW&interdata.PSWWait != 0 {
			if stop, done := m.idle32(); done {
				return stop, nil
			}
			continue
		}

		m.recordHistory(s.PC)
		reason := id32.Step(s, m.Mem, m.IO, id32.BreakpointAt(m.Breakpoint))
		switch reason {
		case id32.StopNone:
		case id32.StopRsrv:
			return StopIllegalOp, nil
		case id32.StopHalt:
			return StopHalt, nil
		case id32.StopIBkpt:
			return StopBreakpoint, nil
		case id32.StopWait:
			continue
		}

		if s.Mac != nil && s.Mac.PendingEvent() {
			s.MacException(m.Mem)
			continue
		}

		m.drainBlock32()
		m.EQ.Advance(1)
		m.deliverInterrupt32()
	}
	return StopNone, nil
}

func (m *Machine) idle32() (StopReason, bool) {
	s := m.id32
	delay := m.EQ.NextDelay()
	if delay < 0 {
		return StopHalt, true
	}
	m.EQ.Advance(delay)
	m.deliverInterrupt32()
	if s.PSW&interdata.PSWWait != 0 && m.EQ.NextDelay() < 0 && !m.pendingInterrupt() {
		return StopHalt, true
	}
	return StopNone, false
}

// drainBlock32 mirrors drainBlock16 with the 32-bit family's full-word
// Cur/End addressing (WB/RB resolve their limit as a fullword; see
// id32.go's startBlock).
func (m *Machine) drainBlock32() {
	s := m.id32
	if !s.Blk.Active {
		return
	}
	dev := uint8(s.Blk.Dev)
	st, _ := m.IO.Do(dev, device.IoSs, 0)
	if uint8(st)&device.StaBsy != 0 {
		return
	}
	if s.Blk.Read {
		b, _ := m.IO.Do(dev, device.IoRd, 0)
		m.Mem.IOWriteB(s.Blk.Cur, uint8(b))
	} else {
		b := m.Mem.IOReadB(s.Blk.Cur)
		m.IO.Do(dev, device.IoWd, uint32(b))
	}
	if s.Blk.Cur == s.Blk.End {
		s.Blk.Active = false
		return
	}
	s.Blk.Cur++
}

// deliverInterrupt32 is int_eval/int_getdev/exception for the 32-bit
// family. Unlike id16, id32 has no AI opcode to fetch the interrupting
// device number itself, so Run performs that fetch here and leaves the
// result in the device's own convention (id32 has no register slot that
// an external interrupt populates beyond the PSW/PC swap itself).
func (m *Machine) deliverInterrupt32() {
	s := m.id32
	if s.PSW&interdata.PSWEXI == 0 {
		return
	}
	if _, ok := m.Intr.GetDev(); ok {
		s.DeliverInterrupt(m.Mem)
	}
}
