package debug

import (
	"fmt"

	"github.com/sarchlab/mmixsim/emu"
)

// FrameWalker walks call frames innermost first until fn returns false.
type FrameWalker interface {
	WalkFrames(fn func(emu.Frame) bool)
}

// BacktraceFrame describes one frame of a backtrace.
type BacktraceFrame struct {
	Index  int
	Addr   uint64
	Symbol string
	Offset uint64
}

// String renders the frame as "#i addr in symbol+offset".
func (f BacktraceFrame) String() string {
	if f.Symbol == "" {
		return fmt.Sprintf("#%-2d #%016X", f.Index, f.Addr)
	}
	if f.Offset == 0 {
		return fmt.Sprintf("#%-2d #%016X in %s", f.Index, f.Addr, f.Symbol)
	}
	return fmt.Sprintf("#%-2d #%016X in %s+%#x", f.Index, f.Addr, f.Symbol, f.Offset)
}

// Backtrace reconstructs the call stack from w, innermost frame first,
// resolving each address to the nearest preceding symbol. A maxDepth of
// zero or less means no limit. The result is empty before the machine
// executed its first instruction.
func (m *Manager) Backtrace(w FrameWalker, maxDepth int) []BacktraceFrame {
	var frames []BacktraceFrame
	w.WalkFrames(func(f emu.Frame) bool {
		bf := BacktraceFrame{Index: f.Index, Addr: f.Addr}
		if m.symbols != nil {
			if name, base, ok := m.symbols.Nearest(f.Addr); ok {
				bf.Symbol = name
				bf.Offset = f.Addr - base
			}
		}
		frames = append(frames, bf)
		return maxDepth <= 0 || len(frames) < maxDepth
	})
	return frames
}
