// Package debug implements the debugger side of the simulator:
// breakpoints, tracepoints, the trace log, the call tree and backtraces.
// A Manager connects to the emulator through emu.Hooks.
package debug

import (
	"io"
	"sort"

	"github.com/go-logr/logr"

	"github.com/sarchlab/mmixsim/emu"
)

// SymbolTable resolves addresses to symbols.
type SymbolTable interface {
	// Nearest returns the symbol at or before addr and its address.
	Nearest(addr uint64) (name string, base uint64, ok bool)
}

// Breakpoint is one entry of the breakpoint set.
type Breakpoint struct {
	Addr    uint64
	Enabled bool
}

// Manager owns the breakpoint set, the trace set, the trace log and the
// call tree.
type Manager struct {
	breakpoints map[uint64]bool
	tracepoints map[uint64]struct{}
	traceAll    bool

	log   []TraceEntry
	last  *TraceEntry
	calls *CallNode
	cur   *CallNode

	symbols SymbolTable
	logger  logr.Logger

	out    io.WriteCloser
	outErr error
}

// Option configures a Manager.
type Option func(*Manager)

// WithSymbols sets the symbol table used by backtraces and the call tree.
func WithSymbols(s SymbolTable) Option {
	return func(m *Manager) {
		m.symbols = s
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager with empty sets.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		breakpoints: make(map[uint64]bool),
		tracepoints: make(map[uint64]struct{}),
		logger:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resetCalls()
	return m
}

// SetSymbols replaces the symbol table.
func (m *Manager) SetSymbols(s SymbolTable) {
	m.symbols = s
}

// AddBreakpoint adds an enabled breakpoint at addr. Adding an existing
// breakpoint enables it.
func (m *Manager) AddBreakpoint(addr uint64) {
	m.breakpoints[addr] = true
}

// RemoveBreakpoint removes the breakpoint at addr, if any.
func (m *Manager) RemoveBreakpoint(addr uint64) {
	delete(m.breakpoints, addr)
}

// EnableBreakpoint enables or disables the breakpoint at addr without
// removing it. It reports whether the breakpoint exists.
func (m *Manager) EnableBreakpoint(addr uint64, on bool) bool {
	if _, ok := m.breakpoints[addr]; !ok {
		return false
	}
	m.breakpoints[addr] = on
	return true
}

// Breakpoints returns the breakpoint set sorted by address.
func (m *Manager) Breakpoints() []Breakpoint {
	bps := make([]Breakpoint, 0, len(m.breakpoints))
	for addr, on := range m.breakpoints {
		bps = append(bps, Breakpoint{Addr: addr, Enabled: on})
	}
	sort.Slice(bps, func(i, j int) bool { return bps[i].Addr < bps[j].Addr })
	return bps
}

// AddTracepoint traces the instruction at addr.
func (m *Manager) AddTracepoint(addr uint64) {
	m.tracepoints[addr] = struct{}{}
}

// RemoveTracepoint stops tracing the instruction at addr.
func (m *Manager) RemoveTracepoint(addr uint64) {
	delete(m.tracepoints, addr)
}

// TraceAll turns tracing of every instruction on or off. Address
// tracepoints are kept.
func (m *Manager) TraceAll(on bool) {
	m.traceAll = on
}

// TracingAll reports whether every instruction is traced.
func (m *Manager) TracingAll() bool {
	return m.traceAll
}

// Tracepoints returns the traced addresses in ascending order.
func (m *Manager) Tracepoints() []uint64 {
	addrs := make([]uint64, 0, len(m.tracepoints))
	for addr := range m.tracepoints {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// Journals implements emu.Hooks. Every instruction is journaled so that
// Last can report its effects.
func (m *Manager) Journals(uint64) bool {
	return true
}

// Traces reports whether the instruction at pc is logged.
func (m *Manager) Traces(pc uint64) bool {
	if m.traceAll {
		return true
	}
	_, ok := m.tracepoints[pc]
	return ok
}

// BreakpointAt implements emu.Hooks.
func (m *Manager) BreakpointAt(pc uint64) bool {
	return m.breakpoints[pc]
}

// Executed implements emu.Hooks. Traced instructions are appended to the
// log and streamed to the trace output; calls and returns grow the call
// tree whether traced or not.
func (m *Manager) Executed(rec *emu.ExecRecord) {
	m.recordCall(rec)

	entry := TraceEntry{
		Seq:      rec.Seq,
		PC:       rec.PC,
		Word:     rec.Word,
		Mnemonic: rec.Mnemonic,
		Flow:     rec.Flow,
		Deltas:   append([]emu.RegDelta(nil), rec.Deltas...),
	}
	m.last = &entry

	if !m.Traces(rec.PC) {
		return
	}
	m.log = append(m.log, entry)
	m.stream(&entry)
}

// Last returns the most recently executed instruction with its register
// changes.
func (m *Manager) Last() (TraceEntry, bool) {
	if m.last == nil {
		return TraceEntry{}, false
	}
	return *m.last, true
}

// Reset clears the breakpoint set, the trace set, the trace log and the
// call tree. Machine state and the trace output are left alone.
func (m *Manager) Reset() {
	m.breakpoints = make(map[uint64]bool)
	m.tracepoints = make(map[uint64]struct{})
	m.traceAll = false
	m.log = nil
	m.last = nil
	m.resetCalls()
}

// Shutdown releases the trace output, returning the first error met while
// writing or closing it.
func (m *Manager) Shutdown() error {
	return m.CloseTraceOutput()
}
