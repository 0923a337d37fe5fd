/*
trisim - simcore configuration loader

Copyright 2026
*/

package main

import (
	"fmt"
	"os"
	"strings"

	cfg "github.com/dms3/trisim/internal/config"
	"github.com/dms3/trisim/internal/device"
	"github.com/dms3/trisim/internal/devices/console"
	"github.com/dms3/trisim/internal/devices/disk"
	"github.com/dms3/trisim/internal/devices/tape"
	"github.com/dms3/trisim/internal/logging"
	"github.com/dms3/trisim/internal/machine"
)

// roster accumulates the DIBs one configuration file builds, handing
// out selector-channel indices and interrupt levels in registration
// order (spec §4.7 "Init": every device needs a distinct channel/level
// before AttachDevices runs).
type roster struct {
	m        *machine.Machine
	dibs     []*device.DIB
	nextChan int
	nextLvl  int
	logger   *logging.Logger
}

func (r *roster) allocChan() (int, error) {
	if r.nextChan >= 4 {
		return 0, fmt.Errorf("simcore: more than 4 selector-channel devices configured")
	}
	idx := r.nextChan
	r.nextChan++
	return idx, nil
}

func (r *roster) allocLevel() int {
	lvl := r.nextLvl
	r.nextLvl++
	return lvl
}

// irqHook binds devNum to level in the interrupt controller and
// returns the callback a device's SetInterruptHook expects.
func (r *roster) irqHook(devNum uint16, level int) func() {
	r.m.Intr.BindLevel(level, devNum)
	r.m.Intr.Enable(level)
	return func() { r.m.Intr.Set(level) }
}

func firstFile(opts []cfg.Option) string {
	for _, o := range opts {
		if o.Name == "FILE" && o.EqualOpt != "" {
			return o.EqualOpt
		}
	}
	return ""
}

func (r *roster) addDisk(devNum uint16, _ string, opts []cfg.Option) error {
	chanIdx, err := r.allocChan()
	if err != nil {
		return err
	}
	level := r.allocLevel()
	d := disk.New(r.m.Chans, chanIdx, r.m.EQ)
	d.SetInterruptHook(r.irqHook(devNum, level))
	if path := firstFile(opts); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("simcore: disk %#x: %w", devNum, err)
		}
		d.Attach(data)
	}
	r.dibs = append(r.dibs, &device.DIB{
		DevNum: devNum, Channel: chanIdx, IrqLevel: level, IOT: d.Handler(),
	})
	return nil
}

func (r *roster) addTape(devNum uint16, _ string, opts []cfg.Option) error {
	chanIdx, err := r.allocChan()
	if err != nil {
		return err
	}
	level := r.allocLevel()
	t := tape.New(r.m.Chans, chanIdx, r.m.EQ)
	t.SetInterruptHook(r.irqHook(devNum, level))
	if path := firstFile(opts); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("simcore: tape %#x: %w", devNum, err)
		}
		t.Attach([][]byte{data})
	}
	r.dibs = append(r.dibs, &device.DIB{
		DevNum: devNum, Channel: chanIdx, IrqLevel: level, IOT: t.Handler(),
	})
	return nil
}

func (r *roster) addConsole(devNum uint16, _ string, _ []cfg.Option) error {
	level := r.allocLevel()
	c := console.New()
	c.SetInterruptHook(r.irqHook(devNum, level))
	r.dibs = append(r.dibs, &device.DIB{
		DevNum: devNum, Channel: -1, IrqLevel: level, IOT: c.Handler(),
	})
	return nil
}

// addLog parses a "log <category> <category> ..." line into r's
// logger mask (spec AMBIENT STACK "Configuration"). The first category
// arrives as value (the token right after "log"); any further ones are
// bare options, e.g. "log cmd irq data".
func (r *roster) addLog(_ uint16, value string, opts []cfg.Option) error {
	var cats []string
	if value != "" {
		cats = append(cats, value)
	}
	for _, o := range opts {
		cats = append(cats, o.Name)
		cats = append(cats, o.Value...)
	}
	mask, err := logging.ParseMask(cats...)
	if err != nil {
		return fmt.Errorf("simcore: log: %w", err)
	}
	r.logger = logging.New(os.Stderr, mask)
	return nil
}

// loadConfig reads path and attaches every device it describes to m.
// It returns the roster's logger, non-nil only if the file contained a
// "log" line.
func loadConfig(m *machine.Machine, path string) (*logging.Logger, error) {
	r := &roster{m: m}
	p := cfg.New()
	p.Register("DISK", cfg.KindModel, r.addDisk)
	p.Register("TAPE", cfg.KindModel, r.addTape)
	p.Register("CONSOLE", cfg.KindModel, r.addConsole)
	p.Register("LOG", cfg.KindOptions, r.addLog)

	if err := p.LoadFile(path); err != nil {
		return nil, err
	}
	if err := m.AttachDevices(r.dibs); err != nil {
		return nil, err
	}
	return r.logger, nil
}

func parseFamily(name string) (machine.Family, error) {
	switch strings.ToLower(name) {
	case "altair", "8080":
		return machine.FamilyAltair, nil
	case "id16", "7/16", "8/16":
		return machine.FamilyID16, nil
	case "id16e", "8/16e":
		return machine.FamilyID16E, nil
	case "id32", "7/32", "8/32":
		return machine.FamilyID32, nil
	default:
		return 0, fmt.Errorf("simcore: unknown family %q (want altair, id16, id16e, or id32)", name)
	}
}
