package debug

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/mmixsim/emu"
)

// CallNode is a node of the call tree. The root has no site or target.
type CallNode struct {
	Site     uint64
	Target   uint64
	Returned bool
	Children []*CallNode

	parent *CallNode
}

func (m *Manager) resetCalls() {
	m.calls = &CallNode{}
	m.cur = m.calls
}

func (m *Manager) recordCall(rec *emu.ExecRecord) {
	switch rec.Flow {
	case emu.FlowCall:
		n := &CallNode{Site: rec.PC, Target: rec.Next, parent: m.cur}
		m.cur.Children = append(m.cur.Children, n)
		m.cur = n
	case emu.FlowReturn:
		if m.cur.parent != nil {
			m.cur.Returned = true
			m.cur = m.cur.parent
		}
	}
}

// CallTree returns the root of the call tree.
func (m *Manager) CallTree() *CallNode {
	return m.calls
}

// WriteCallTree writes the call tree to the file at path, one call per
// line indented by depth. The file is closed before returning, also when
// writing fails.
func (m *Manager) WriteCallTree(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()

	w := bufio.NewWriter(f)
	if err := m.RenderCallTree(w); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// RenderCallTree writes the call tree to w.
func (m *Manager) RenderCallTree(w io.Writer) error {
	var walk func(n *CallNode, depth int) error
	walk = func(n *CallNode, depth int) error {
		for _, c := range n.Children {
			mark := ""
			if !c.Returned {
				mark = " *"
			}
			_, err := fmt.Fprintf(w, "%s%s <- %s%s\n",
				strings.Repeat("  ", depth), m.describe(c.Target), m.describe(c.Site), mark)
			if err != nil {
				return err
			}
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(m.calls, 0)
}

// describe renders an address as symbol+offset when a symbol precedes it.
func (m *Manager) describe(addr uint64) string {
	if m.symbols != nil {
		if name, base, ok := m.symbols.Nearest(addr); ok {
			if addr == base {
				return fmt.Sprintf("%s (#%X)", name, addr)
			}
			return fmt.Sprintf("%s+%#x (#%X)", name, addr-base, addr)
		}
	}
	return fmt.Sprintf("#%X", addr)
}
