package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/mmixsim/config"
	"github.com/sarchlab/mmixsim/debug"
	"github.com/sarchlab/mmixsim/emu"
	"github.com/sarchlab/mmixsim/loader"
	"github.com/sarchlab/mmixsim/stats"
)

// options holds the flags shared by all subcommands.
type options struct {
	configPath  string
	verbose     int
	symbolsPath string
	raw         bool
	base        uint64
	traceOutput string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "mmixsim",
		Short: "MMIX simulator and debugger",
		Long: `mmixsim executes MMIX programs, either straight through or under an
interactive debugger with breakpoints, tracepoints, backtraces and cache
statistics.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "simulator configuration file (.json, .yaml)")
	flags.CountVarP(&opts.verbose, "verbose", "v", "log verbosity, repeat for more")
	flags.StringVar(&opts.symbolsPath, "symbols", "", "symbol map in nm format")
	flags.BoolVar(&opts.raw, "raw", false, "treat the program as a flat memory image")
	flags.Uint64Var(&opts.base, "base", 0, "load address of a raw image (overrides the configuration)")
	flags.StringVar(&opts.traceOutput, "trace", "", "stream traced instructions to this file")

	root.AddCommand(newRunCommand(opts), newDebugCommand(opts))
	return root
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

// machine is a loaded program ready to execute.
type machine struct {
	cfg     *config.Config
	emu     *emu.Emulator
	dbg     *debug.Manager
	symbols *loader.SymbolTable
}

// setup reads the configuration, builds the emulator and the debug
// manager, and loads the program.
func setup(cmd *cobra.Command, opts *options, path string, logger logr.Logger) (*machine, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("base") {
		cfg.LoadAddress = opts.base
	}
	if opts.traceOutput != "" {
		cfg.TraceOutput = opts.traceOutput
	}

	emuOpts, err := cfg.EmulatorOptions()
	if err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	dbg := debug.NewManager(debug.WithLogger(logger.WithName("debug")))
	emuOpts = append(emuOpts,
		emu.WithStats(stats.NewCollector()),
		emu.WithLogger(logger.WithName("emu")),
		emu.WithHooks(dbg),
	)
	e := emu.NewEmulator(emuOpts...)

	var prog *loader.Program
	if opts.raw {
		prog, err = loader.LoadRaw(path, cfg.LoadAddress)
	} else {
		prog, err = loader.Load(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	if err := prog.LoadInto(e); err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}

	symbols := prog.Symbols
	if opts.symbolsPath != "" {
		extra, err := loader.LoadSymbolMap(opts.symbolsPath)
		if err != nil {
			return nil, err
		}
		symbols = symbols.Merge(extra)
	}
	dbg.SetSymbols(symbols)

	if cfg.TraceOutput != "" {
		if err := dbg.OpenTraceOutput(cfg.TraceOutput); err != nil {
			return nil, err
		}
	}

	logger.V(1).Info("program loaded",
		"path", path, "entry", prog.EntryPoint, "segments", len(prog.Segments), "symbols", symbols.Len())

	return &machine{cfg: cfg, emu: e, dbg: dbg, symbols: symbols}, nil
}

func stderrLogger(opts *options) logr.Logger {
	return newLogger(os.Stderr, opts.verbose)
}
