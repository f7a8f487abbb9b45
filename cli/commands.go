package cli

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/mmixsim/emu"
	"github.com/sarchlab/mmixsim/mem"
)

// defaultBacktraceDepth bounds bt without an argument.
const defaultBacktraceDepth = 32

// defaultListing is the number of instructions d prints.
const defaultListing = 8

func commandTable() []*Command {
	return []*Command{
		{
			Name: "c", Aliases: []string{"continue"},
			Run: runContinue,
			Variants: []Variant{
				{"", "run until a breakpoint or halt, at most one instruction"},
				{"<count>", "run at most <count> instructions"},
			},
		},
		{
			Name: "s", Aliases: []string{"step"},
			Run: runStep,
			Variants: []Variant{
				{"", "execute one instruction"},
				{"<count>", "execute <count> instructions, ignoring breakpoints"},
			},
		},
		{
			Name: "ov", Aliases: []string{"over"},
			Run: runStepOver,
			Variants: []Variant{
				{"", "execute one instruction, running calls to completion"},
				{"<count>", "step over <count> instructions"},
			},
		},
		{
			Name: "ou", Aliases: []string{"out"},
			Run: runStepOut,
			Variants: []Variant{
				{"", "run until the current subroutine returns"},
				{"<count>", "run until <count> subroutines have returned"},
			},
		},
		{
			Name: "e", Aliases: []string{"effects"},
			Run: runEffects,
			Variants: []Variant{
				{"", "print the register changes of the last instruction"},
			},
		},
		{
			Name: "d", Aliases: []string{"disasm"},
			Run: runDisassemble,
			Variants: []Variant{
				{"", "disassemble at the PC"},
				{"<addr>", "disassemble at <addr>"},
				{"<addr> <count>", "disassemble <count> instructions at <addr>"},
			},
		},
		{
			Name: "b", Aliases: []string{"break"},
			Run: runBreak,
			Variants: []Variant{
				{"", "list breakpoints"},
				{"<addr>", "set a breakpoint at <addr>"},
				{"<addr> on|off", "enable or disable the breakpoint at <addr>"},
			},
		},
		{
			Name: "db", Aliases: []string{"delbreak"},
			Run: runDelBreak,
			Variants: []Variant{
				{"<addr>", "remove the breakpoint at <addr>"},
			},
		},
		{
			Name: "tr", Aliases: []string{"trace"},
			Run: runTrace,
			Variants: []Variant{
				{"", "list tracepoints"},
				{"<addr>", "trace the instruction at <addr>"},
				{"all", "trace every instruction"},
			},
		},
		{
			Name: "dtr", Aliases: []string{"deltrace"},
			Run: runDelTrace,
			Variants: []Variant{
				{"<addr>", "stop tracing <addr>"},
				{"all", "stop tracing every instruction"},
			},
		},
		{
			Name: "trp", Aliases: []string{"traceprint"},
			Run: runTracePrint,
			Variants: []Variant{
				{"", "print the trace log"},
				{"tree", "print the trace log nested by calls"},
			},
		},
		{
			Name: "bt", Aliases: []string{"backtrace"},
			Run: runBacktrace,
			Variants: []Variant{
				{"", "print the call stack"},
				{"<depth>", "print at most <depth> frames"},
			},
		},
		{
			Name: "btt",
			Run:  runCallTree,
			Variants: []Variant{
				{"<file>", "write the call tree to <file>"},
			},
		},
		{
			Name: "ic",
			Run:  cacheCommand(mem.Fetch),
			Variants: []Variant{
				{"", "print instruction cache statistics"},
				{"<addr>", "print the instruction cache line holding <addr>"},
			},
		},
		{
			Name: "dc",
			Run:  cacheCommand(mem.Read),
			Variants: []Variant{
				{"", "print data cache statistics"},
				{"<addr>", "print the data cache line holding <addr>"},
			},
		},
		{
			Name: "cr",
			Run:  runCacheReset,
			Variants: []Variant{
				{"", "reset cache statistics"},
			},
		},
		{
			Name: "v2p",
			Run:  runV2P,
			Variants: []Variant{
				{"<addr>", "translate <addr> for each access kind"},
			},
		},
		{
			Name: "itc",
			Run:  tcCommand(mem.Fetch),
			Variants: []Variant{
				{"", "print the instruction translation cache"},
				{"<addr>", "print the instruction translation of <addr>"},
			},
		},
		{
			Name: "dtc",
			Run:  tcCommand(mem.Read),
			Variants: []Variant{
				{"", "print the data translation cache"},
				{"<addr>", "print the data translation of <addr>"},
			},
		},
		{
			Name: "st", Aliases: []string{"stat"},
			Run: runStat,
			Variants: []Variant{
				{"", "print statistics"},
				{"reset", "reset statistics"},
				{"on|off", "enable or disable statistics"},
			},
		},
		{
			Name: "r", Aliases: []string{"reset"},
			Run: runReset,
			Variants: []Variant{
				{"", "reset the machine and the debugger"},
			},
		},
		{
			Name: "h", Aliases: []string{"help"},
			Run: runHelp,
			Variants: []Variant{
				{"", "print this help"},
				{"<command>", "print the usage of <command>"},
			},
		},
		{
			Name: "q", Aliases: []string{"quit"},
			Run: runQuit,
			Variants: []Variant{
				{"", "quit"},
			},
		},
	}
}

func runContinue(s *Session, args []Arg) error {
	count, err := s.count(args, 1)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	if s.emu.IsHalted() {
		return errors.Wrap(emu.ErrHalted, "cannot continue")
	}

	res := s.emu.Run(count)
	return s.reportStop(res.Last)
}

func runStep(s *Session, args []Arg) error {
	count, err := s.count(args, 1)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	if s.emu.IsHalted() {
		return errors.Wrap(emu.ErrHalted, "cannot step")
	}

	var last emu.StepResult
	for i := uint64(0); i < count; i++ {
		last = s.emu.Step()
		if last.Halted {
			break
		}
	}
	last.Breakpoint = false
	return s.reportStop(last)
}

// reportStop prints why execution stopped and where the PC is.
func (s *Session) reportStop(last emu.StepResult) error {
	switch {
	case last.Halted:
		s.printf("Halted after %d instructions\n", s.emu.InstructionCount())
		if err := s.emu.HaltError(); err != nil {
			return err
		}
		return nil
	case last.Breakpoint:
		s.printf("%s\n", s.hitStyle("Breakpoint at "+s.symbolize(s.emu.RegFile().PC)))
	}
	s.where()
	return nil
}

func runBreak(s *Session, args []Arg) error {
	switch len(args) {
	case 0:
		bps := s.dbg.Breakpoints()
		if len(bps) == 0 {
			s.printf("No breakpoints\n")
		}
		for _, bp := range bps {
			state := "on"
			if !bp.Enabled {
				state = "off"
			}
			s.printf("%s %s\n", s.symbolize(bp.Addr), state)
		}
		return nil
	case 1:
		addr, err := s.addr(args[0])
		if err != nil {
			return err
		}
		s.dbg.AddBreakpoint(addr)
		return nil
	case 2:
		addr, err := s.addr(args[0])
		if err != nil {
			return err
		}
		var on bool
		switch args[1] {
		case SymArg("on"):
			on = true
		case SymArg("off"):
		default:
			return usage()
		}
		if !s.dbg.EnableBreakpoint(addr, on) {
			return fail("No breakpoint at #%X", addr)
		}
		return nil
	}
	return usage()
}

func runDelBreak(s *Session, args []Arg) error {
	if len(args) != 1 {
		return usage()
	}
	addr, err := s.addr(args[0])
	if err != nil {
		return err
	}
	s.dbg.RemoveBreakpoint(addr)
	return nil
}

func isAll(a Arg) bool {
	return a.Kind == ArgSymbol && (a.Sym == "all" || a.Sym == "ALL")
}

func runTrace(s *Session, args []Arg) error {
	switch len(args) {
	case 0:
		if s.dbg.TracingAll() {
			s.printf("Tracing all instructions\n")
		}
		for _, addr := range s.dbg.Tracepoints() {
			s.printf("%s\n", s.symbolize(addr))
		}
		return nil
	case 1:
		if isAll(args[0]) {
			s.dbg.TraceAll(true)
			return nil
		}
		addr, err := s.addr(args[0])
		if err != nil {
			return err
		}
		s.dbg.AddTracepoint(addr)
		return nil
	}
	return usage()
}

func runDelTrace(s *Session, args []Arg) error {
	if len(args) != 1 {
		return usage()
	}
	if isAll(args[0]) {
		s.dbg.TraceAll(false)
		return nil
	}
	addr, err := s.addr(args[0])
	if err != nil {
		return err
	}
	s.dbg.RemoveTracepoint(addr)
	return nil
}

func runTracePrint(s *Session, args []Arg) error {
	asTree := false
	switch len(args) {
	case 0:
	case 1:
		if args[0] != SymArg("tree") {
			return usage()
		}
		asTree = true
	default:
		return usage()
	}
	return s.dbg.RenderTrace(s.out, asTree)
}

func runBacktrace(s *Session, args []Arg) error {
	depth, err := s.count(args, defaultBacktraceDepth)
	if err != nil {
		return err
	}
	if depth == 0 {
		return usage()
	}
	frames := s.dbg.Backtrace(s.emu, int(depth))
	if len(frames) == 0 {
		s.printf("No stack\n")
	}
	for _, f := range frames {
		s.printf("%s\n", f)
	}
	return nil
}

func runCallTree(s *Session, args []Arg) error {
	if len(args) != 1 || args[0].Kind != ArgSymbol {
		return usage()
	}
	if err := s.dbg.WriteCallTree(args[0].Sym); err != nil {
		return fail("%v", err)
	}
	return nil
}

func cacheCommand(kind mem.AccessKind) func(*Session, []Arg) error {
	return func(s *Session, args []Arg) error {
		switch len(args) {
		case 0:
		case 1:
			return s.cacheLine(kind, args[0])
		default:
			return usage()
		}
		c := s.emu.MMU().Cache(kind).Config()
		st := s.emu.MMU().CacheStats(kind)
		s.printf("%d bytes, %d-way, %d-byte lines, LRU\n", c.Size, c.Associativity, c.BlockSize)
		s.printf("reads:      %d\n", st.Reads)
		s.printf("writes:     %d\n", st.Writes)
		s.printf("hits:       %d\n", st.Hits)
		s.printf("misses:     %d\n", st.Misses)
		s.printf("evictions:  %d\n", st.Evictions)
		s.printf("writebacks: %d\n", st.Writebacks)
		return nil
	}
}

func runCacheReset(s *Session, args []Arg) error {
	if len(args) != 0 {
		return usage()
	}
	s.emu.MMU().CacheReset()
	return nil
}

func runV2P(s *Session, args []Arg) error {
	if len(args) != 1 {
		return usage()
	}
	va, err := s.addr(args[0])
	if err != nil {
		return err
	}
	for _, kind := range []mem.AccessKind{mem.Fetch, mem.Read, mem.Write} {
		pa, err := s.emu.MMU().Peek(va, kind)
		if err != nil {
			s.printf("%-5s #%016X: %v\n", kind, va, err)
			continue
		}
		s.printf("%-5s #%016X -> #%016X\n", kind, va, pa)
	}
	return nil
}

func tcCommand(kind mem.AccessKind) func(*Session, []Arg) error {
	return func(s *Session, args []Arg) error {
		switch len(args) {
		case 0:
		case 1:
			return s.cachedTranslation(kind, args[0])
		default:
			return usage()
		}
		st := s.emu.MMU().TCStats(kind)
		s.printf("hits: %d misses: %d insertions: %d evictions: %d invalidations: %d\n",
			st.Hits, st.Misses, st.Insertions, st.Evictions, st.Invalidations)
		for _, e := range s.emu.MMU().TCEntries(kind) {
			s.printf("  page #%013X pid %3d -> #%016X %s\n", e.Page, e.PID, e.Frame, e.Perm)
		}
		return nil
	}
}

func runStat(s *Session, args []Arg) error {
	if s.stats == nil {
		return fail("Statistics are not collected")
	}
	switch len(args) {
	case 0:
		snap := s.stats.Snapshot()
		if err := snap.Format(s.out); err != nil {
			return errors.Wrap(err, "print statistics")
		}
		if !s.stats.Enabled() {
			s.printf("(collection is off)\n")
		}
		return nil
	case 1:
		switch args[0] {
		case SymArg("reset"):
			s.stats.Reset()
		case SymArg("on"):
			s.stats.Enable(true)
		case SymArg("off"):
			s.stats.Enable(false)
		default:
			return usage()
		}
		return nil
	}
	return usage()
}

func runReset(s *Session, args []Arg) error {
	if len(args) != 0 {
		return usage()
	}
	s.Reset()
	s.where()
	return nil
}

func runHelp(s *Session, args []Arg) error {
	if len(args) == 1 && args[0].Kind == ArgSymbol {
		c, ok := s.byName[args[0].Sym]
		if !ok {
			return fail("Unknown command '%s'", args[0].Sym)
		}
		c.PrintUsage(s.out)
		return nil
	}
	if len(args) != 0 {
		return usage()
	}
	for _, c := range s.commands {
		c.PrintUsage(s.out)
	}
	return nil
}

func runQuit(s *Session, args []Arg) error {
	if len(args) != 0 {
		return usage()
	}
	s.quit = true
	return nil
}

// cacheLine prints the cache line holding the physical address va
// translates to.
func (s *Session) cacheLine(kind mem.AccessKind, a Arg) error {
	va, err := s.addr(a)
	if err != nil {
		return err
	}
	pa, err := s.emu.MMU().Peek(va, kind)
	if err != nil {
		return fail("Unable to translate #%X: %v", va, err)
	}
	line, ok := s.emu.MMU().Cache(kind).Line(pa)
	if !ok {
		s.printf("#%016X -> #%016X: not cached\n", va, pa)
		return nil
	}
	dirty := ""
	if line.Dirty {
		dirty = " dirty"
	}
	s.printf("#%016X -> #%016X: line #%016X set %d way %d%s\n",
		va, pa, line.Addr, line.Set, line.Way, dirty)
	return nil
}

func (s *Session) cachedTranslation(kind mem.AccessKind, a Arg) error {
	va, err := s.addr(a)
	if err != nil {
		return err
	}
	e, ok := s.emu.MMU().CachedTranslation(va, kind)
	if !ok {
		s.printf("#%016X: not cached\n", va)
		return nil
	}
	s.printf("#%016X: page #%013X pid %3d -> #%016X %s\n", va, e.Page, e.PID, e.Frame, e.Perm)
	return nil
}

// runStepOver steps like s but runs a call to completion, stopping early
// at a breakpoint or halt.
func runStepOver(s *Session, args []Arg) error {
	count, err := s.count(args, 1)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	if s.emu.IsHalted() {
		return errors.Wrap(emu.ErrHalted, "cannot step")
	}

	rf := s.emu.RegFile()
	var last emu.StepResult
	for i := uint64(0); i < count && !last.Halted && !last.Breakpoint; i++ {
		depth := rf.Depth()
		last = s.emu.Step()
		for !last.Halted && !last.Breakpoint && rf.Depth() > depth {
			last = s.emu.Step()
		}
	}
	return s.reportStop(last)
}

// runStepOut runs until count frames have been popped.
func runStepOut(s *Session, args []Arg) error {
	count, err := s.count(args, 1)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	if s.emu.IsHalted() {
		return errors.Wrap(emu.ErrHalted, "cannot step out")
	}

	rf := s.emu.RegFile()
	depth := uint64(rf.Depth())
	if depth < count {
		return fail("Only %d frames to step out of", depth)
	}
	target := int(depth - count)

	var last emu.StepResult
	for {
		last = s.emu.Step()
		if last.Halted || last.Breakpoint || rf.Depth() <= target {
			break
		}
	}
	return s.reportStop(last)
}

func runEffects(s *Session, args []Arg) error {
	if len(args) != 0 {
		return usage()
	}
	last, ok := s.dbg.Last()
	if !ok {
		s.printf("No instruction executed\n")
		return nil
	}
	s.printf("%s: %08X  %s\n", s.symbolize(last.PC), last.Word, last.Mnemonic)
	if len(last.Deltas) == 0 {
		s.printf("  no register changes\n")
	}
	for _, d := range last.Deltas {
		s.printf("  %s\n", d)
	}
	return nil
}

func runDisassemble(s *Session, args []Arg) error {
	addr := s.emu.RegFile().PC
	count := uint64(defaultListing)
	if len(args) > 2 {
		return usage()
	}
	if len(args) > 0 {
		a, err := s.addr(args[0])
		if err != nil {
			return err
		}
		addr = a
	}
	if len(args) == 2 {
		if args[1].Kind != ArgInt || args[1].Int <= 0 {
			return usage()
		}
		count = uint64(args[1].Int)
	}

	addr &^= 3
	for i := uint64(0); i < count; i++ {
		s.disassemble(addr + 4*i)
	}
	return nil
}
