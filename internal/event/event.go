/*
trisim - Event scheduler

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

// Package event implements the discrete-event co-scheduler (spec §4.5): a
// single priority queue keyed by simulated instruction count, plus the
// wall-clock tick/cosched convention used to avoid duplicate polling.
package event

// Callback runs when a scheduled event's delay reaches zero. arg is the
// integer argument the unit was activated with.
type Callback func(arg int)

type entry struct {
	time int      // cycles remaining, relative to previous entry
	unit any      // unit this event belongs to, for Cancel/IsActive
	cb   Callback // function to run
	arg  int      // integer argument
	prev *entry
	next *entry
}

// Queue is a per-machine event list. It owns no package-level state; a
// Machine constructs one and threads it into every device and CPU.
type Queue struct {
	head *entry
	tail *entry
}

// NewQueue returns an empty event queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Activate schedules cb to run in delay simulated instructions, tagged
// with unit (used by Cancel and IsActive) and arg. A delay of zero runs
// cb immediately and never touches the queue.
func (q *Queue) Activate(unit any, cb Callback, delay int, arg int) {
	if delay <= 0 {
		cb(arg)
		return
	}

	ev := &entry{unit: unit, cb: cb, time: delay, arg: arg}

	cur := q.head
	if cur == nil {
		q.head = ev
		q.tail = ev
		return
	}

	for cur != nil {
		if ev.time <= cur.time {
			cur.time -= ev.time
			ev.prev = cur.prev
			ev.next = cur
			cur.prev = ev
			if ev.prev != nil {
				ev.prev.next = ev
			} else {
				q.head = ev
			}
			return
		}
		ev.time -= cur.time
		cur = cur.next
	}

	ev.prev = q.tail
	q.tail.next = ev
	q.tail = ev
}

// Cancel removes the first pending event for (unit, arg), if any. It
// folds the cancelled event's remaining time into its successor so total
// queue time is preserved.
func (q *Queue) Cancel(unit any, arg int) {
	for cur := q.head; cur != nil; cur = cur.next {
		if cur.unit != unit || cur.arg != arg {
			continue
		}
		if cur.next != nil {
			cur.next.time += cur.time
			cur.next.prev = cur.prev
		} else {
			q.tail = cur.prev
		}
		if cur.prev != nil {
			cur.prev.next = cur.next
		} else {
			q.head = cur.next
		}
		return
	}
}

// IsActive reports whether (unit, arg) has a pending event.
func (q *Queue) IsActive(unit any, arg int) bool {
	for cur := q.head; cur != nil; cur = cur.next {
		if cur.unit == unit && cur.arg == arg {
			return true
		}
	}
	return false
}

// Remaining returns the cycles left for (unit, arg), or -1 if not queued.
// Event times in the list are stored relative to their predecessor, so
// this sums every entry from the head up to and including the match.
func (q *Queue) Remaining(unit any, arg int) int {
	total := 0
	for cur := q.head; cur != nil; cur = cur.next {
		total += cur.time
		if cur.unit == unit && cur.arg == arg {
			return total
		}
	}
	return -1
}

// Empty reports whether any event is pending.
func (q *Queue) Empty() bool {
	return q.head == nil
}

// Advance consumes t simulated instructions, firing every event whose
// time has expired, in order. Each fired callback may itself call
// Activate to re-arm its unit.
func (q *Queue) Advance(t int) {
	cur := q.head
	if cur == nil {
		return
	}
	cur.time -= t
	for cur != nil && cur.time <= 0 {
		cb, arg := cur.cb, cur.arg
		q.head = cur.next
		if q.head != nil {
			q.head.prev = nil
		} else {
			q.tail = nil
		}
		cb(arg)
		cur = q.head
	}
}

// NextDelay returns the delay, in simulated instructions, until the next
// event fires, or -1 if the queue is empty. The CPU loop uses this as the
// new sim_interval after Advance drains everything due "now".
func (q *Queue) NextDelay() int {
	if q.head == nil {
		return -1
	}
	return q.head.time
}

// Cosched returns the delay a co-scheduled unit (console poll, async
// line poll) should use so its next activation lines up exactly with the
// next firing of tick, avoiding duplicate polling of the same resource
// (spec §4.5 "Co-scheduling"). It returns 1 if tick has no pending event.
func (q *Queue) Cosched(tick any, arg int) int {
	remaining := q.Remaining(tick, arg)
	if remaining <= 1 {
		return 1
	}
	return remaining - 1
}
