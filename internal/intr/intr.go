/*
trisim - Interrupt controller

Copyright 2024, Richard Cornwell
Copyright 2026

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
*/

// Package intr implements the Interdata interrupt controller (spec §4.6):
// four 32-bit request/enable words (word 0 DMA devices, word 1 programmed
// devices, words 2-3 async lines), a level->device-number table, and the
// arm-vs-enable command byte semantics.
package intr

// Words is the number of 32-bit request/enable words (INTSZ in the
// original source): word 0 is DMA devices, word 1 programmed I/O, words
// 2-3 are async line (PAS) devices.
const Words = 4

// Controller holds the interrupt-request and interrupt-enable bit
// vectors and the level-to-device map. It belongs to one Machine; there
// is no package-level state.
type Controller struct {
	req [Words]uint32
	enb [Words]uint32
	tab [Words * 32]uint16 // int_tab: level index -> device number
}

// New returns an interrupt controller with every level mapped to NoDev.
func New() *Controller {
	c := &Controller{}
	for i := range c.tab {
		c.tab[i] = 0xffff
	}
	return c
}

// level returns the (word, bit) pair for a flat level index.
func level(v int) (word, bit int) {
	return v >> 5, v & 0x1f
}

// BindLevel records which device number answers for interrupt level v.
func (c *Controller) BindLevel(v int, devNum uint16) {
	c.tab[v] = devNum
}

// Set raises the request bit for level v (SET_INT).
func (c *Controller) Set(v int) {
	w, b := level(v)
	c.req[w] |= 1 << uint(b)
}

// Clear drops the request bit for level v (CLR_INT).
func (c *Controller) Clear(v int) {
	w, b := level(v)
	c.req[w] &^= 1 << uint(b)
}

// Enable sets the enable bit for level v (SET_ENB).
func (c *Controller) Enable(v int) {
	w, b := level(v)
	c.enb[w] |= 1 << uint(b)
}

// Disable drops the enable bit for level v (CLR_ENB).
func (c *Controller) Disable(v int) {
	w, b := level(v)
	c.enb[w] &^= 1 << uint(b)
}

// Pending reports whether any (req & enb) bit is set across all words;
// this drives qevent's EV_INT bit. Bits set in req but not enb never
// cause a pending interrupt (spec invariant 2).
func (c *Controller) Pending() bool {
	for i := 0; i < Words; i++ {
		if c.req[i]&c.enb[i] != 0 {
			return true
		}
	}
	return false
}

// GetDev scans request/enable words from highest priority (word 0) to
// lowest, and within a word from bit 0 upward. The first active bit is
// cleared and its mapped device number returned. ok is false if nothing
// is pending.
func (c *Controller) GetDev() (devNum uint16, ok bool) {
	for w := 0; w < Words; w++ {
		active := c.req[w] & c.enb[w]
		if active == 0 {
			continue
		}
		for b := 0; b < 32; b++ {
			mask := uint32(1) << uint(b)
			if active&mask == 0 {
				continue
			}
			c.req[w] &^= mask
			idx := w*32 + b
			return c.tab[idx], true
		}
	}
	return 0, false
}

// Armed is the per-device software-arm latch, tracked separately from
// the hardware enable bit so IDIS can drop enable while keeping arm.
type Armed struct {
	armed bool
}

// Chg applies a device command byte's 2-bit arm/enable field (CMD_V_INT)
// to the level's enable bit and to the device's own Armed latch, per
// spec §4.6: IENB -> arm+enable, IDIS -> keep arm, drop enable, IDSA ->
// drop both and clear any pending request.
func (c *Controller) Chg(v int, cmd uint8, st *Armed) {
	const (
		shift = 6
		mask  = 0x3
		ienb  = 1
		idis  = 2
		idsa  = 3
	)
	switch (cmd >> shift) & mask {
	case ienb:
		st.armed = true
		c.Enable(v)
	case idis:
		c.Disable(v)
	case idsa:
		st.armed = false
		c.Disable(v)
		c.Clear(v)
	}
}

// IsArmed reports the device's current arm state.
func (st *Armed) IsArmed() bool { return st.armed }
