/*
trisim - simcore command-line front end

Copyright 2026
*/

// Command simcore drives one Machine from the command line: pick a CPU
// family and memory size, load a configuration file describing its
// device roster, then run it to completion or to an instruction cap
// (spec §6.6 "host interface").
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dms3/trisim/internal/interdata"
	"github.com/dms3/trisim/internal/machine"
)

var (
	flagFamily      string
	flagModel       string
	flagMemSize     string
	flagConfig      string
	flagMaxInstr    int
	flagTrapIllegal bool
	flagHistoryLen  int
)

func main() {
	root := &cobra.Command{
		Use:   "simcore",
		Short: "Run an Intel 8080 or Interdata CPU family against a configured device roster",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Construct a machine and execute it",
		RunE:  runMachine,
	}
	run.Flags().StringVar(&flagFamily, "family", "altair", "CPU family: altair, id16, id16e, or id32")
	run.Flags().StringVar(&flagModel, "model", "", "model within the family (e.g. 716, 816, 732); defaults to the family's baseline")
	run.Flags().StringVar(&flagMemSize, "mem", "64K", "memory size, e.g. 64K or 1M")
	run.Flags().StringVar(&flagConfig, "config", "", "configuration file describing the device roster")
	run.Flags().IntVar(&flagMaxInstr, "max-instr", 0, "stop after this many instructions (0 means unbounded)")
	run.Flags().BoolVar(&flagTrapIllegal, "trap-illegal", false, "stop on an undecoded opcode instead of treating it as a no-op")
	run.Flags().IntVar(&flagHistoryLen, "history", 0, "instruction-history ring length (0 disables history)")

	cfgCmd := &cobra.Command{
		Use:   "config <file>",
		Short: "Validate a configuration file without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  checkConfig,
	}
	cfgCmd.Flags().StringVar(&flagFamily, "family", "altair", "CPU family: altair, id16, id16e, or id32")
	cfgCmd.Flags().StringVar(&flagModel, "model", "", "model within the family")
	cfgCmd.Flags().StringVar(&flagMemSize, "mem", "64K", "memory size, e.g. 64K or 1M")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the simcore build identifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "simcore (trisim)")
			return nil
		},
	}

	root.AddCommand(run, cfgCmd, version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseMemSize accepts a bare byte count or a K/M-suffixed shorthand
// (spec §6.6 "Memory size").
func parseMemSize(s string) (uint32, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	mult := uint64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("simcore: invalid memory size: %w", err)
	}
	return uint32(n * mult), nil
}

func defaultModel(fam machine.Family) interdata.Model {
	switch fam {
	case machine.FamilyID16:
		return interdata.Model716
	case machine.FamilyID16E:
		return interdata.Model816E
	case machine.FamilyID32:
		return interdata.Model732
	default:
		return interdata.ModelI3
	}
}

func parseModel(name string) (interdata.Model, error) {
	switch strings.ToLower(name) {
	case "i3":
		return interdata.ModelI3, nil
	case "i4":
		return interdata.ModelI4, nil
	case "716", "7/16":
		return interdata.Model716, nil
	case "816", "8/16":
		return interdata.Model816, nil
	case "816e", "8/16e":
		return interdata.Model816E, nil
	case "732", "7/32":
		return interdata.Model732, nil
	case "832", "8/32":
		return interdata.Model832, nil
	default:
		return 0, fmt.Errorf("simcore: unknown model %q", name)
	}
}

func buildConfig() (machine.Config, error) {
	fam, err := parseFamily(flagFamily)
	if err != nil {
		return machine.Config{}, err
	}
	model := defaultModel(fam)
	if flagModel != "" {
		model, err = parseModel(flagModel)
		if err != nil {
			return machine.Config{}, err
		}
	}
	memSize, err := parseMemSize(flagMemSize)
	if err != nil {
		return machine.Config{}, err
	}
	return machine.Config{
		Family:      fam,
		Model:       model,
		MemSize:     memSize,
		TrapIllegal: flagTrapIllegal,
		HistoryLen:  flagHistoryLen,
	}, nil
}

func runMachine(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	m := machine.New(cfg)

	if flagConfig != "" {
		if _, err := loadConfig(m, flagConfig); err != nil {
			return err
		}
	}

	reason, err := m.Run(flagMaxInstr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stopped: %s\n", reason)
	return nil
}

func checkConfig(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	m := machine.New(cfg)
	if _, err := loadConfig(m, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "config OK")
	return nil
}
