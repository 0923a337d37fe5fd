package autoint

import "github.com/dms3/trisim/internal/memory"

// SysQueue implements the Interdata system queue (spec §4.9 "System
// queue"): a halfword header {slots, used, top, bot} followed by an
// array of slots, each one fullword wide. ATL/ABL add to the top/bottom,
// RTL/RBL remove from the top/bottom; all indices wrap modulo slots.
// These primitives back the automatic-interrupt engine's CCB enqueue
// step (machine.runAutoInterrupt16); no CPU interpreter in this module
// decodes ATL/ABL/RTL/RBL as instructions.
type SysQueue struct {
	Mem  *memory.Memory
	Base uint32 // address of the {slots,used,top,bot} header
}

const (
	q16Slots = 0
	q16Used  = 2
	q16Top   = 4
	q16Bot   = 6
	q16Base  = 8
	q16Slnt  = 4 // bytes per slot (one fullword)
)

func (q *SysQueue) slots() uint16 { return q.Mem.IOReadH(q.Base + q16Slots) }
func (q *SysQueue) used() uint16  { return q.Mem.IOReadH(q.Base + q16Used) }
func (q *SysQueue) setUsed(v uint16) { q.Mem.IOWriteH(q.Base+q16Used, v) }
func (q *SysQueue) top() uint16   { return q.Mem.IOReadH(q.Base + q16Top) }
func (q *SysQueue) setTop(v uint16) { q.Mem.IOWriteH(q.Base+q16Top, v) }
func (q *SysQueue) bot() uint16   { return q.Mem.IOReadH(q.Base + q16Bot) }
func (q *SysQueue) setBot(v uint16) { q.Mem.IOWriteH(q.Base+q16Bot, v) }

func (q *SysQueue) slotAddr(i uint16) uint32 {
	return q.Base + q16Base + uint32(i)*q16Slnt
}

// Full reports whether the queue has no free slots (CC_V condition).
func (q *SysQueue) Full() bool {
	return q.used() >= q.slots()
}

// AddTop (ATL) pushes data onto the top of the queue.
func (q *SysQueue) AddTop(data uint32) bool {
	slots := q.slots()
	if q.used() >= slots {
		return false
	}
	top := q.top()
	top = (top + slots - 1) % slots
	q.Mem.WriteF(q.slotAddr(top), data)
	q.setTop(top)
	q.setUsed(q.used() + 1)
	return true
}

// AddBot (ABL) pushes data onto the bottom of the queue.
func (q *SysQueue) AddBot(data uint32) bool {
	slots := q.slots()
	if q.used() >= slots {
		return false
	}
	bot := q.bot()
	q.Mem.WriteF(q.slotAddr(bot), data)
	q.setBot((bot + 1) % slots)
	q.setUsed(q.used() + 1)
	return true
}

// RemTop (RTL) pops the top entry.
func (q *SysQueue) RemTop() (uint32, bool) {
	if q.used() == 0 {
		return 0, false
	}
	top := q.top()
	v := q.Mem.ReadF(q.slotAddr(top))
	q.setTop((top + 1) % q.slots())
	q.setUsed(q.used() - 1)
	return v, true
}

// RemBot (RBL) pops the bottom entry.
func (q *SysQueue) RemBot() (uint32, bool) {
	if q.used() == 0 {
		return 0, false
	}
	slots := q.slots()
	bot := (q.bot() + slots - 1) % slots
	v := q.Mem.ReadF(q.slotAddr(bot))
	q.setBot(bot)
	q.setUsed(q.used() - 1)
	return v, true
}
