/*
trisim - Device dispatch table

Copyright 2026
*/

// Package iobus implements the 256-entry device-number dispatch table
// (spec §4.7 C7): dev_tab keyed by device number, template-based
// conflict detection at start-up, and the sch_tab/int_tab side tables
// the selector channel and interrupt controller consult.
package iobus

import (
	"fmt"

	"github.com/dms3/trisim/internal/device"
)

// ErrNoDevice is returned by Do when no handler is bound to dev.
var ErrNoDevice = fmt.Errorf("iobus: no device bound")

// Table is the 256-entry device dispatch table for one Machine.
type Table struct {
	handler [256]device.Handler
	width   [256]device.Width
	channel [256]int // selector-channel index, -1 if none
	level   [256]int // interrupt-level index, -1 if none
	bound   [256]bool
}

// New returns an empty dispatch table.
func New() *Table {
	t := &Table{}
	for i := range t.channel {
		t.channel[i] = -1
		t.level[i] = -1
	}
	return t
}

// Init walks every enabled device's DIB, expands its device-number
// template, and populates dev_tab/sch_tab/int_tab. It is a precondition
// for every CPU run (spec §4.7). A device number claimed by more than
// one DIB is an overlap error, never a silent alias.
func (t *Table) Init(dibs []*device.DIB) error {
	*t = *New()
	for _, d := range dibs {
		if d.Init != nil {
			d.Init()
		}
		for _, num := range d.Numbers() {
			if num > 0xff {
				return fmt.Errorf("iobus: device number %#x out of range", num)
			}
			idx := uint8(num)
			if t.bound[idx] {
				return fmt.Errorf("iobus: device number %#x claimed by more than one DIB", num)
			}
			t.bound[idx] = true
			t.handler[idx] = d.IOT
			t.channel[idx] = d.Channel
			t.level[idx] = d.IrqLevel
		}
	}
	return nil
}

// Bound reports whether a handler is bound to dev.
func (t *Table) Bound(dev uint8) bool { return t.bound[dev] }

// Channel returns the selector-channel index bound to dev, or -1.
func (t *Table) Channel(dev uint8) int { return t.channel[dev] }

// Level returns the interrupt-level index bound to dev, or -1.
func (t *Table) Level(dev uint8) int { return t.level[dev] }

// Do dispatches one programmed-I/O operation to the handler bound to
// dev. It returns ErrNoDevice if nothing is bound there; that is the
// host-facing precondition violation, distinct from a device's own
// status-byte-encoded I/O errors.
func (t *Table) Do(dev uint8, op device.IoOp, data uint32) (uint32, error) {
	if !t.bound[dev] {
		return 0, ErrNoDevice
	}
	if op == device.IoAdr {
		v, err := t.handler[dev](dev, op, data)
		if err == nil {
			t.width[dev] = device.Width(v)
		}
		return v, err
	}
	return t.handler[dev](dev, op, data)
}

// Width returns the width (BY/HW) the device last reported on IoAdr.
func (t *Table) Width(dev uint8) device.Width { return t.width[dev] }
