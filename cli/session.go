package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/sarchlab/mmixsim/debug"
	"github.com/sarchlab/mmixsim/emu"
	"github.com/sarchlab/mmixsim/insts"
	"github.com/sarchlab/mmixsim/loader"
	"github.com/sarchlab/mmixsim/stats"
)

// Session executes debugger commands against one machine.
type Session struct {
	emu     *emu.Emulator
	dbg     *debug.Manager
	stats   *stats.Collector
	symbols *loader.SymbolTable

	out        io.Writer
	errorStyle func(string) string
	hitStyle   func(string) string
	logger     logr.Logger

	commands []*Command
	byName   map[string]*Command
	quit     bool
}

// Option configures a Session.
type Option func(*Session)

// WithOutput sets where command output goes. Default: os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) {
		s.out = w
	}
}

// WithSymbols sets the symbol table used to resolve symbol arguments.
func WithSymbols(t *loader.SymbolTable) Option {
	return func(s *Session) {
		s.symbols = t
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithErrorStyle decorates error messages, for example with color.
func WithErrorStyle(fn func(string) string) Option {
	return func(s *Session) {
		s.errorStyle = fn
	}
}

// WithHitStyle decorates breakpoint hit messages.
func WithHitStyle(fn func(string) string) Option {
	return func(s *Session) {
		s.hitStyle = fn
	}
}

func plain(s string) string { return s }

// NewSession creates a session. The debug manager is installed as the
// emulator's hooks and receives the symbol table.
func NewSession(e *emu.Emulator, dbg *debug.Manager, opts ...Option) *Session {
	s := &Session{
		emu:        e,
		dbg:        dbg,
		stats:      e.Stats(),
		symbols:    loader.NewSymbolTable(nil),
		out:        os.Stdout,
		errorStyle: plain,
		hitStyle:   plain,
		logger:     logr.Discard(),
		byName:     make(map[string]*Command),
	}
	for _, opt := range opts {
		opt(s)
	}

	e.SetHooks(dbg)
	dbg.SetSymbols(s.symbols)

	for _, c := range commandTable() {
		s.register(c)
	}
	return s
}

func (s *Session) register(c *Command) {
	s.commands = append(s.commands, c)
	s.byName[c.Name] = c
	for _, a := range c.Aliases {
		s.byName[a] = c
	}
}

// Commands returns the command table in help order.
func (s *Session) Commands() []*Command {
	return append([]*Command(nil), s.commands...)
}

// Lookup finds a command by name or alias.
func (s *Session) Lookup(name string) (*Command, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Emulator returns the machine the session drives.
func (s *Session) Emulator() *emu.Emulator {
	return s.emu
}

// Debugger returns the debug manager.
func (s *Session) Debugger() *debug.Manager {
	return s.dbg
}

// Done reports whether quit was executed.
func (s *Session) Done() bool {
	return s.quit
}

// Exec runs the named command.
func (s *Session) Exec(name string, args []Arg) error {
	c, ok := s.byName[name]
	if !ok {
		return fail("Unknown command '%s'", name)
	}
	s.logger.V(1).Info("command", "name", c.Name, "args", len(args))
	return c.Run(s, args)
}

// ExecLine parses and runs one command line. Empty lines do nothing.
func (s *Session) ExecLine(line string) error {
	name, args := ParseLine(line)
	if name == "" {
		return nil
	}
	return s.Exec(name, args)
}

// Report prints err the way the session presents failures: the usage of
// the command for a bare CommandError, the message otherwise.
func (s *Session) Report(name string, err error) {
	var ce *CommandError
	if errors.As(err, &ce) && ce.Msg == "" {
		if c, ok := s.byName[name]; ok {
			fmt.Fprintln(s.out, "Usage:")
			c.PrintUsage(s.out)
			return
		}
	}
	fmt.Fprintln(s.out, s.errorStyle(strings.TrimRight(err.Error(), "\n")))
}

// Reset resets the machine, the debugger state and the statistics, then
// runs the reset hook of every command.
func (s *Session) Reset() {
	s.emu.Reset()
	s.dbg.Reset()
	if s.stats != nil {
		s.stats.Reset()
	}
	for _, c := range s.commands {
		if c.Reset != nil {
			c.Reset(s)
		}
	}
}

// Close releases the resources held by the debugger.
func (s *Session) Close() error {
	return s.dbg.Shutdown()
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// addr evaluates an address argument.
func (s *Session) addr(a Arg) (uint64, error) {
	if a.Kind == ArgInt {
		return uint64(a.Int), nil
	}
	addr, ok := s.symbols.Address(a.Sym)
	if !ok {
		return 0, fail("Unable to find symbol '%s'", a.Sym)
	}
	return addr, nil
}

// count evaluates an optional non-negative count argument.
func (s *Session) count(args []Arg, def int64) (uint64, error) {
	switch len(args) {
	case 0:
		return uint64(def), nil
	case 1:
		if args[0].Kind != ArgInt || args[0].Int < 0 {
			return 0, usage()
		}
		return uint64(args[0].Int), nil
	}
	return 0, usage()
}

// symbolize renders addr as #addr <sym+off>.
func (s *Session) symbolize(addr uint64) string {
	name, base, ok := s.symbols.Nearest(addr)
	if !ok {
		return fmt.Sprintf("#%016X", addr)
	}
	if addr == base {
		return fmt.Sprintf("#%016X <%s>", addr, name)
	}
	return fmt.Sprintf("#%016X <%s+%#x>", addr, name, addr-base)
}

// where prints the instruction at the PC.
func (s *Session) where() {
	s.disassemble(s.emu.RegFile().PC)
}

// disassemble prints the instruction at addr, or ??? when it cannot be
// read.
func (s *Session) disassemble(addr uint64) {
	buf := make([]byte, 4)
	if err := s.emu.MMU().ReadBytes(addr, buf); err != nil {
		s.printf("%s: ???\n", s.symbolize(addr))
		return
	}
	word := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	inst := insts.NewDecoder().Decode(word)
	s.printf("%s: %08X  %s\n", s.symbolize(addr), word, insts.Disassemble(inst))
}
