// Package emu provides functional MMIX emulation.
package emu

import (
	"errors"
	"fmt"
	"strconv"
)

// StackBase is the address rO and rS report for an empty register stack
// after reset.
const StackBase uint64 = 0x6000000000000000

// DefaultGlobalThreshold is the initial value of rG.
const DefaultGlobalThreshold = 255

// ErrStackUnderflow is returned by POP when no frame is left to return to.
var ErrStackUnderflow = errors.New("register stack underflow")

// RegDelta records one register change made by an instruction.
type RegDelta struct {
	Reg string
	Old uint64
	New uint64
}

func (d RegDelta) String() string {
	return fmt.Sprintf("%s: #%X -> #%X", d.Reg, d.Old, d.New)
}

// frame is one pushed register-stack frame.
type frame struct {
	hole   int
	site   uint64
	ret    uint64
	target uint64
}

// RegFile represents the MMIX register file: 256 general registers split
// into local and global registers, the register stack and the special
// registers.
//
// Local registers of all frames live on one stack; the current frame
// starts at offset o. $0..$(L-1) are local, $G..$255 are global and the
// registers in between are marginal: they read as zero and writing one
// makes it local.
type RegFile struct {
	// PC is the program counter.
	PC uint64

	globals [256]uint64
	locals  []uint64
	o, l, g int

	// bottom is rS: the memory address locals[0] spills to. Frames below
	// it were written by SAVE and are reloaded by POP.
	bottom uint64

	special [NumSpecials]uint64

	frames []frame

	recording bool
	deltas    []RegDelta
}

// NewRegFile creates a register file in its reset state.
func NewRegFile() *RegFile {
	r := &RegFile{}
	r.Reset(DefaultGlobalThreshold)
	return r
}

// Reset clears every register, empties the register stack and sets rG.
func (r *RegFile) Reset(g int) {
	*r = RegFile{
		locals: r.locals[:0],
		frames: r.frames[:0],
		g:      g,
		bottom: StackBase,
	}
}

// L returns the number of local registers.
func (r *RegFile) L() int {
	return r.l
}

// G returns the global threshold.
func (r *RegFile) G() int {
	return r.g
}

// Depth returns the number of pushed frames.
func (r *RegFile) Depth() int {
	return len(r.frames)
}

func (r *RegFile) record(reg string, old, v uint64) {
	if r.recording && old != v {
		r.deltas = append(r.deltas, RegDelta{Reg: reg, Old: old, New: v})
	}
}

// startJournal discards recorded deltas and enables or disables
// recording for the next instruction.
func (r *RegFile) startJournal(on bool) {
	r.recording = on
	r.deltas = r.deltas[:0]
}

// takeJournal returns a copy of the recorded deltas.
func (r *RegFile) takeJournal() []RegDelta {
	if len(r.deltas) == 0 {
		return nil
	}
	return append([]RegDelta(nil), r.deltas...)
}

func regName(x int) string {
	return "$" + strconv.Itoa(x)
}

func (r *RegFile) local(i int) uint64 {
	if r.o+i < len(r.locals) {
		return r.locals[r.o+i]
	}
	return 0
}

func (r *RegFile) setLocal(i int, v uint64) {
	idx := r.o + i
	for len(r.locals) <= idx {
		r.locals = append(r.locals, 0)
	}
	r.locals[idx] = v
}

// grow makes $0..$(n-1) local, zeroing the newly local registers.
func (r *RegFile) grow(n int) {
	for i := r.l; i < n; i++ {
		r.setLocal(i, 0)
	}
	if n > r.l {
		r.l = n
	}
}

// ReadReg reads $x.
func (r *RegFile) ReadReg(x uint8) uint64 {
	i := int(x)
	switch {
	case i >= r.g:
		return r.globals[i]
	case i < r.l:
		return r.local(i)
	}
	return 0
}

// WriteReg writes $x. Writing a marginal register grows rL.
func (r *RegFile) WriteReg(x uint8, v uint64) {
	i := int(x)
	old := r.ReadReg(x)

	if i >= r.g {
		r.globals[i] = v
	} else {
		if i >= r.l {
			r.grow(i + 1)
		}
		r.setLocal(i, v)
	}
	r.record(regName(i), old, v)
}

// Special returns the value of a special register.
func (r *RegFile) Special(s Special) uint64 {
	switch s {
	case RL:
		return uint64(r.l)
	case RG:
		return uint64(r.g)
	case RO:
		return r.bottom + 8*uint64(r.o)
	case RS:
		return r.bottom
	}
	return r.special[s]
}

// SetSpecial stores v into a special register without the checks PUT
// applies. rL, rG, rO and rS are derived from the register stack and
// cannot be set this way.
func (r *RegFile) SetSpecial(s Special, v uint64) {
	switch s {
	case RL, RG, RO, RS:
		return
	}
	old := r.special[s]
	r.special[s] = v
	r.record(s.String(), old, v)
}

// tick advances rC without recording a delta.
func (r *RegFile) tick() {
	r.special[RC]++
}

// PutSpecial performs PUT: it stores v into special register s, applying
// the rules of the architecture. It fails for read-only registers and
// out-of-range values.
func (r *RegFile) PutSpecial(s Special, v uint64) error {
	if int(s) >= NumSpecials {
		return ErrIllegalInstruction
	}

	switch s {
	case RC, RN, RO, RS:
		return ErrIllegalInstruction
	case RA:
		if v >= 0x40000 {
			return ErrIllegalInstruction
		}
	case RL:
		if v < uint64(r.l) {
			old := uint64(r.l)
			r.l = int(v)
			r.record(s.String(), old, v)
		}
		return nil
	case RG:
		if v > 255 || v < 32 || v < uint64(r.l) {
			return ErrIllegalInstruction
		}
		old := r.g
		for i := int(v); i < r.g; i++ {
			r.globals[i] = 0
		}
		r.g = int(v)
		r.record(s.String(), uint64(old), v)
		return nil
	}

	r.SetSpecial(s, v)
	return nil
}

// Push pushes a register-stack frame for PUSHJ or PUSHGO with hole $x.
// $0..$(x-1) stay with the caller, $x records the frame size and the
// registers above it become the callee's locals. rJ is set to ret.
func (r *RegFile) Push(x uint8, site, ret, target uint64) {
	k := int(x)
	if k >= r.g {
		k = r.l
		r.grow(r.l + 1)
	} else if k >= r.l {
		r.grow(k + 1)
	}

	old := r.local(k)
	r.setLocal(k, uint64(k))
	r.record(regName(k), old, uint64(k))

	r.o += k + 1
	r.l -= k + 1
	r.frames = append(r.frames, frame{hole: k, site: site, ret: ret, target: target})

	r.SetSpecial(RJ, ret)
}

// Pop returns from the current frame keeping x results, with $(x-1) as
// the main result placed in the caller's hole. It returns rJ.
func (r *RegFile) Pop(x uint8) (uint64, error) {
	if len(r.frames) == 0 || r.o == 0 {
		return 0, ErrStackUnderflow
	}

	n := int(x)
	var y uint64
	if n != 0 && n <= r.l {
		y = r.local(n - 1)
	}

	k := int(r.locals[r.o-1] & 0xFF)
	if k >= r.o {
		return 0, ErrStackUnderflow
	}

	keep := n
	if n > r.l {
		keep = r.l + 1
	}
	newL := k + keep
	if newL > r.g {
		newL = r.g
	}

	oldL := r.l
	r.o -= k + 1
	r.l = newL
	if newL > k {
		old := r.local(k)
		r.setLocal(k, y)
		r.record(regName(k), old, y)
	}
	r.frames = r.frames[:len(r.frames)-1]
	r.record(RL.String(), uint64(oldL), uint64(newL))

	return r.special[RJ], nil
}

// clearStack empties the register stack after SAVE, leaving rS and rO at
// bottom.
func (r *RegFile) clearStack(bottom uint64) {
	oldL := r.l
	r.locals = r.locals[:0]
	r.frames = r.frames[:0]
	r.o, r.l = 0, 0
	r.bottom = bottom
	r.record(RL.String(), uint64(oldL), 0)
}

// restore installs a context read by UNSAVE: the current frame's locals
// spilled at bottom, rG and the globals $G..$255.
func (r *RegFile) restore(bottom uint64, g int, locals, globals []uint64) {
	oldL, oldG := r.l, r.g
	r.locals = append(r.locals[:0], locals...)
	r.frames = r.frames[:0]
	r.o = 0
	r.l = min(len(locals), g)
	r.g = g
	r.bottom = bottom
	for i := range r.globals[:g] {
		r.globals[i] = 0
	}
	for i, v := range globals {
		x := g + i
		r.record(regName(x), r.globals[x], v)
		r.globals[x] = v
	}
	r.record(RG.String(), uint64(oldG), uint64(g))
	r.record(RL.String(), uint64(oldL), uint64(r.l))
}

// prependFrame places a frame reloaded from memory below the frames held
// in registers. vals ends with the frame's hole marker.
func (r *RegFile) prependFrame(vals []uint64) {
	r.locals = append(vals, r.locals...)
	r.o += len(vals)
	r.bottom -= 8 * uint64(len(vals))
	r.frames = append([]frame{{hole: len(vals) - 1}}, r.frames...)
}
