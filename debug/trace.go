package debug

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/mmixsim/emu"
)

// TraceEntry is one traced instruction.
type TraceEntry struct {
	Seq      uint64
	PC       uint64
	Word     uint32
	Mnemonic string
	Flow     emu.FlowKind
	Deltas   []emu.RegDelta
}

// String renders the entry on one line.
func (e TraceEntry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%016X: %08X  %-24s", e.PC, e.Word, e.Mnemonic)
	for i, d := range e.Deltas {
		if i == 0 {
			sb.WriteString(" ;")
		}
		sb.WriteString(" ")
		sb.WriteString(d.String())
	}
	return strings.TrimRight(sb.String(), " ")
}

// TraceNode is a node of the trace tree. A call entry owns the entries
// executed until its matching return, the return included.
type TraceNode struct {
	Entry    TraceEntry
	Children []*TraceNode
}

// Trace returns a copy of the trace log in execution order.
func (m *Manager) Trace() []TraceEntry {
	return append([]TraceEntry(nil), m.log...)
}

// TraceTree nests the trace log by calls and returns. A return without a
// traced call stays at the level it was seen.
func (m *Manager) TraceTree() []*TraceNode {
	root := &TraceNode{}
	stack := []*TraceNode{root}

	for _, entry := range m.log {
		top := stack[len(stack)-1]
		node := &TraceNode{Entry: entry}
		top.Children = append(top.Children, node)

		switch entry.Flow {
		case emu.FlowCall:
			stack = append(stack, node)
		case emu.FlowReturn:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	return root.Children
}

// RenderTrace writes the trace log to w, either flat in execution order
// or as a tree indented by call depth.
func (m *Manager) RenderTrace(w io.Writer, asTree bool) error {
	if !asTree {
		for _, entry := range m.log {
			if _, err := fmt.Fprintln(w, entry.String()); err != nil {
				return errors.Wrap(err, "render trace")
			}
		}
		return nil
	}

	var walk func(nodes []*TraceNode, depth int) error
	walk = func(nodes []*TraceNode, depth int) error {
		for _, n := range nodes {
			indent := strings.Repeat("  ", depth)
			if _, err := fmt.Fprintf(w, "%s%s\n", indent, n.Entry.String()); err != nil {
				return errors.Wrap(err, "render trace")
			}
			if err := walk(n.Children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(m.TraceTree(), 0)
}

// OpenTraceOutput streams every subsequent trace entry to the file at
// path, one line per entry. An output already open is closed first.
func (m *Manager) OpenTraceOutput(path string) error {
	if err := m.CloseTraceOutput(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "open trace output %s", path)
	}
	m.out = f
	m.logger.V(1).Info("trace output opened", "path", path)
	return nil
}

// TraceOutputOpen reports whether a trace output is open.
func (m *Manager) TraceOutputOpen() bool {
	return m.out != nil
}

// CloseTraceOutput closes the trace output, if open. It returns the first
// write error or the close error.
func (m *Manager) CloseTraceOutput() error {
	if m.out == nil {
		return nil
	}

	err := m.out.Close()
	if m.outErr != nil {
		err = m.outErr
	}
	m.out = nil
	m.outErr = nil

	if err != nil {
		return errors.Wrap(err, "close trace output")
	}
	return nil
}

// stream writes an entry to the trace output. After the first failure
// nothing more is written; the error is reported on close.
func (m *Manager) stream(entry *TraceEntry) {
	if m.out == nil || m.outErr != nil {
		return
	}
	if _, err := fmt.Fprintln(m.out, entry.String()); err != nil {
		m.outErr = err
		m.logger.Error(err, "trace output write failed")
	}
}
