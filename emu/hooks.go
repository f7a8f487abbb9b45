package emu

import "github.com/sarchlab/mmixsim/insts"

// FlowKind classifies the control transfer an instruction performed.
type FlowKind uint8

// Control-flow kinds.
const (
	FlowNone FlowKind = iota
	FlowCall
	FlowReturn
	FlowJump
	FlowTrap
	FlowResume
)

func (k FlowKind) String() string {
	switch k {
	case FlowCall:
		return "call"
	case FlowReturn:
		return "return"
	case FlowJump:
		return "jump"
	case FlowTrap:
		return "trap"
	case FlowResume:
		return "resume"
	}
	return "none"
}

// ExecRecord describes one executed instruction.
type ExecRecord struct {
	// Seq is the instruction count after the instruction.
	Seq uint64
	PC  uint64
	// Word is the raw instruction tetra; zero when the fetch failed.
	Word     uint32
	Op       insts.Op
	Mnemonic string
	// Deltas holds the register changes. It is only filled when the
	// hooks asked for the instruction to be journaled.
	Deltas []RegDelta
	Flow   FlowKind
	// Next is the address of the next instruction.
	Next uint64
}

// Hooks connect a debugger to the execution engine.
type Hooks interface {
	// Journals reports whether the instruction at pc should record its
	// register deltas.
	Journals(pc uint64) bool
	// Executed is called after every instruction.
	Executed(rec *ExecRecord)
	// BreakpointAt reports whether an enabled breakpoint sits at pc.
	BreakpointAt(pc uint64) bool
}
