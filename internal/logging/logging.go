/*
trisim - Debug/trace logging

Copyright 2026
*/

// Package logging wraps log/slog the way the teacher's util/logger does
// (spec AMBIENT STACK "Logging"): a handler that timestamps and writes
// to one configured writer, and gates each call site on a per-subsystem
// debug mask rather than slog's own level. Unlike util/logger's single
// on/off debug bool, the mask here carries the teacher's six category
// bits (CMD, INST, DATA, DETAIL, IO, IRQ, from emu/cpu/cpudefs.go)
// generalized across all three families, and unlike util/debug.go's
// package-level logFile, every Logger is an owned value.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// Mask is the bitset of debug categories a Logger emits (spec AMBIENT
// STACK "Logging").
type Mask uint32

const (
	Cmd Mask = 1 << iota
	Inst
	Data
	Detail
	IO
	Irq
)

var names = map[string]Mask{
	"CMD":    Cmd,
	"INST":   Inst,
	"DATA":   Data,
	"DETAIL": Detail,
	"IO":     IO,
	"IRQ":    Irq,
}

// ParseMask OR-together the named categories (case-insensitive), per
// the config file's "log" line (spec AMBIENT STACK "Configuration").
// An unrecognized name is an error rather than a silently ignored bit.
func ParseMask(tokens ...string) (Mask, error) {
	var m Mask
	for _, tok := range tokens {
		bit, ok := names[strings.ToUpper(tok)]
		if !ok {
			return 0, fmt.Errorf("logging: unknown debug category %q", tok)
		}
		m |= bit
	}
	return m, nil
}

// handler is the slog.Handler the teacher's LogHandler implements:
// plain "time level message attrs" lines, written to one configured
// writer. Gating on the debug mask happens one layer up, in Logger, so
// this handler always reports itself enabled and just formats.
type handler struct {
	out io.Writer
	mu  *sync.Mutex
}

func (h *handler) Enabled(context.Context, slog.Level) bool { return true }

func (h *handler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *handler) WithGroup(string) slog.Handler { return h }

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	parts := []string{r.Time.Format("2006/01/02 15:04:05"), r.Level.String() + ":", r.Message}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, a.Value.String())
		return true
	})
	line := []byte(strings.Join(parts, " ") + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(line)
	return err
}

// Logger is one machine's category-gated tracer (spec AMBIENT STACK
// "Logging"). It owns no package-level state; a Machine constructs and
// threads it into whichever cpu/channel/device packages need it.
type Logger struct {
	mask Mask
	s    *slog.Logger
}

// New returns a Logger that writes through slog to out, gated by mask.
// A nil out discards everything (a no-op logger, useful as a zero-cost
// default when the caller never configured a "log" line).
func New(out io.Writer, mask Mask) *Logger {
	if out == nil {
		out = io.Discard
	}
	h := &handler{out: out, mu: &sync.Mutex{}}
	return &Logger{mask: mask, s: slog.New(h)}
}

// Enabled reports whether any bit of want is set in the Logger's mask.
func (l *Logger) Enabled(want Mask) bool {
	if l == nil {
		return false
	}
	return l.mask&want != 0
}

// Devf logs a device-tagged debug line (spec AMBIENT STACK; teacher's
// debug.DebugDevf) if want is enabled.
func (l *Logger) Devf(devNum uint16, want Mask, format string, args ...any) {
	if !l.Enabled(want) {
		return
	}
	l.s.Debug(fmt.Sprintf(format, args...), slog.String("dev", strconv.FormatUint(uint64(devNum), 16)))
}

// Chanf logs a channel-tagged debug line (teacher's debug.DebugChanf)
// if want is enabled.
func (l *Logger) Chanf(idx int, want Mask, format string, args ...any) {
	if !l.Enabled(want) {
		return
	}
	l.s.Debug(fmt.Sprintf(format, args...), slog.Int("chan", idx))
}

// Cpuf logs an untagged CPU-level debug line (teacher's debug.Debugf)
// if want is enabled.
func (l *Logger) Cpuf(want Mask, format string, args ...any) {
	if !l.Enabled(want) {
		return
	}
	l.s.Debug(fmt.Sprintf(format, args...))
}
