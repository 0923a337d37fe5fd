/*
trisim - Interdata console device

Copyright 2026
*/

// Package console implements a model-1052-style inquiry console adapted
// to the Interdata programmed-I/O byte contract (spec §6.1, §4.10): a
// one-byte input/output queue, a status byte with the busy/examine/
// break bits, and the arm/enable interrupt convention.
package console

import "github.com/dms3/trisim/internal/device"

// Command codes, grounded on model1052.go's cmdWrite/cmdRead/cmdAlarm
// plus the shared CmdSense/CmdCTL understood by every device.
const (
	CmdWrite = 0x01
	CmdRead  = 0x02
	CmdAlarm = 0x03
	CmdSense = 0x04
	CmdCTL   = 0x05
)

// staBrk is the console's device-specific "examine" condition (spec §8
// scenario 6): a framing error (break) was detected on the input line.
// It has no Interdata-wide STA_* counterpart; only this device's sense
// byte carries it, surfaced through device.ExamineBit like any other
// per-device examine condition.
const staBrk uint8 = 0x80

// Console is one inquiry-console unit's state.
type Console struct {
	busy    bool
	sense   uint8
	inQ     []byte // pending input bytes, oldest first
	outLine []byte // bytes written since the last flush
	armed   bool
	enabled bool
	irqFn   func() // called once per byte when an armed interrupt fires
}

// New returns an idle console with no pending input.
func New() *Console {
	return &Console{}
}

// SetInterruptHook installs the callback Handler invokes when an armed,
// enabled console operation completes (spec §4.6's arm/enable wiring);
// nil disables delivery.
func (c *Console) SetInterruptHook(fn func()) { c.irqFn = fn }

// Feed enqueues input bytes as if typed at the terminal.
func (c *Console) Feed(b ...byte) { c.inQ = append(c.inQ, b...) }

// Break simulates a framing error on the input line: the next sense
// reports STA_BRK|STA_EX and the next read returns a zero byte (spec §8
// scenario 6).
func (c *Console) Break() {
	c.sense |= staBrk
	c.inQ = append([]byte{0}, c.inQ...)
}

// Output returns the bytes written since the last ResetOutput.
func (c *Console) Output() []byte { return c.outLine }

// ResetOutput clears the captured output buffer.
func (c *Console) ResetOutput() { c.outLine = nil }

// Reset implements the host-level reset(device) lifecycle operation
// (spec §3 "Lifecycle", invariant 3): restores power-on register values.
// The console has no event-queue presence to cancel (its operations
// complete synchronously within Handler), and pending input/output
// buffers are host-side convenience state, not device register state,
// so they survive a reset along with the interrupt hook.
func (c *Console) Reset() {
	c.busy = false
	c.sense = 0
	c.armed = false
	c.enabled = false
}

// Handler returns the device.Handler bound to this console instance.
func (c *Console) Handler() device.Handler {
	return func(_ uint8, op device.IoOp, data uint32) (uint32, error) {
		switch op {
		case device.IoAdr:
			return uint32(device.WidthByte), nil

		case device.IoOc:
			return uint32(c.startCmd(uint8(data))), nil

		case device.IoSs:
			st := c.sense | device.ExamineBit(c.sense, staBrk)
			if c.busy {
				st |= device.StaBsy
			}
			return uint32(st), nil

		case device.IoRd:
			return uint32(c.readByte()), nil

		case device.IoWd:
			c.outLine = append(c.outLine, byte(data))
			c.busy = false
			if c.enabled && c.irqFn != nil {
				c.irqFn()
			}
			return 0, nil

		default:
			return 0, nil
		}
	}
}

func (c *Console) startCmd(cmd uint8) uint8 {
	armed, enabled, clearReq := device.IntChg(cmd, c.armed)
	c.armed = armed
	c.enabled = enabled
	_ = clearReq

	switch cmd &^ (device.CmdIntMask << device.CmdIntShift) {
	case CmdWrite:
		c.busy = true
	case CmdRead:
		c.busy = len(c.inQ) > 0
	case CmdAlarm:
		c.busy = false
	case CmdSense:
	case CmdCTL:
		c.busy = false
	}
	return 0
}

func (c *Console) readByte() uint8 {
	if len(c.inQ) == 0 {
		c.busy = false
		return 0
	}
	b := c.inQ[0]
	c.inQ = c.inQ[1:]
	c.busy = len(c.inQ) > 0
	c.sense &^= staBrk
	if c.enabled && c.irqFn != nil {
		c.irqFn()
	}
	return b
}
