package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// runChunk is the number of instructions executed between checks of the
// instruction limit.
const runChunk = 1 << 20

func newRunCommand(opts *options) *cobra.Command {
	var (
		maxInsts  uint64
		showStats bool
	)

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run a program until it halts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := stderrLogger(opts)
			m, err := setup(cmd, opts, args[0], logger)
			if err != nil {
				return err
			}

			runErr := m.run(maxInsts)
			switch {
			case showStats:
				if err := m.emu.Stats().Snapshot().Format(cmd.OutOrStdout()); err != nil {
					return err
				}
			case opts.verbose > 0:
				printSummary(cmd.ErrOrStderr(), m)
			}
			if err := m.dbg.Shutdown(); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}

	cmd.Flags().Uint64Var(&maxInsts, "max-insts", 0, "stop after this many instructions (0 = no limit)")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print statistics when the program stops")
	return cmd
}

// run executes until the machine halts or limit instructions have run.
// Breakpoints do not stop it.
func (m *machine) run(limit uint64) error {
	var done uint64
	for !m.emu.IsHalted() {
		n := uint64(runChunk)
		if limit > 0 {
			if done >= limit {
				return errors.Errorf("instruction limit of %d reached", limit)
			}
			n = min(n, limit-done)
		}
		res := m.emu.Run(n)
		done += res.Steps
	}
	return m.emu.HaltError()
}

func printSummary(w io.Writer, m *machine) {
	fmt.Fprintf(w, "Instructions: %d\n", m.emu.InstructionCount())
	fmt.Fprintf(w, "Cycles:       %d\n", m.emu.Cycles())
}
