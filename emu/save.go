package emu

import (
	"fmt"

	"github.com/sarchlab/mmixsim/insts"
	"github.com/sarchlab/mmixsim/mem"
	"github.com/sarchlab/mmixsim/mem/mmu"
)

// savedSpecials are the special registers of a SAVE image, in memory
// order. rG and rA follow them packed into one octa.
var savedSpecials = [...]Special{RB, RD, RE, RH, RJ, RM, RR, RP, RW, RX, RY, RZ}

// rAMax bounds the rA value UNSAVE accepts.
const rAMax = 0x40000

// ensureStack maps the pages of [lo, hi) for reading and writing when the
// emulator runs on a page map. Under rV translation the operating system
// owns the stack segment.
func (e *Emulator) ensureStack(lo, hi uint64) error {
	pm := e.PageMap()
	if pm == nil || lo&mmu.PhysicalBit != 0 || hi <= lo {
		return nil
	}
	size := pm.PageSize()
	for p := lo &^ (size - 1); p < hi; p += size {
		if _, err := pm.Ensure(p, mem.PermRead|mem.PermWrite); err != nil {
			return fmt.Errorf("register stack at #%X: %w", p, err)
		}
	}
	return nil
}

// executeSave executes SAVE $X,0. Starting at rS it writes the pending
// frames, the current locals, rL, the globals, the saved specials and
// finally rG and rA, then empties the register stack. $X receives the
// address of the last octa.
func (e *Emulator) executeSave(inst *insts.Instruction) error {
	r := e.regFile
	if int(inst.X) < r.g || inst.Y != 0 || inst.Z != 0 {
		return fmt.Errorf("%w: SAVE into $%d", ErrIllegalInstruction, inst.X)
	}

	image := make([]uint64, 0, r.o+r.l+1+256-r.g+len(savedSpecials)+1)
	image = append(image, r.locals[:r.o]...)
	for i := 0; i < r.l; i++ {
		image = append(image, r.local(i))
	}
	image = append(image, uint64(r.l))
	image = append(image, r.globals[r.g:]...)
	for _, s := range savedSpecials {
		image = append(image, r.special[s])
	}
	image = append(image, uint64(r.g)<<56|r.special[RA])

	base := r.bottom
	end := base + 8*uint64(len(image))
	if err := e.ensureStack(base, end); err != nil {
		return err
	}
	for i, v := range image {
		if err := e.mmu.Store(base+8*uint64(i), 8, v); err != nil {
			return err
		}
	}

	r.clearStack(end)
	r.WriteReg(inst.X, end-8)
	e.logger.V(2).Info("saved context", "base", base, "octas", len(image))
	return nil
}

// executeUnsave executes UNSAVE $Z, restoring a context written by SAVE
// whose last octa is at z. Frames older than the restored one stay in
// memory until POP needs them.
func (e *Emulator) executeUnsave(inst *insts.Instruction, z uint64) error {
	if inst.X != 0 || inst.Y != 0 {
		return fmt.Errorf("%w: UNSAVE %d", ErrIllegalInstruction, inst.X)
	}

	load := func(a uint64) (uint64, error) {
		return e.mmu.Load(a, 8)
	}

	ga, err := load(z)
	if err != nil {
		return err
	}
	g, ra := int(ga>>56), ga&(1<<56-1)
	if g < 32 || ra >= rAMax {
		return fmt.Errorf("%w: UNSAVE of rG=%d rA=#%X", ErrIllegalInstruction, g, ra)
	}

	a := z
	var specials [len(savedSpecials)]uint64
	for i := len(savedSpecials) - 1; i >= 0; i-- {
		a -= 8
		if specials[i], err = load(a); err != nil {
			return err
		}
	}
	globals := make([]uint64, 256-g)
	for i := len(globals) - 1; i >= 0; i-- {
		a -= 8
		if globals[i], err = load(a); err != nil {
			return err
		}
	}
	a -= 8
	l, err := load(a)
	if err != nil {
		return err
	}
	l &= 0xFF
	locals := make([]uint64, l)
	for i := len(locals) - 1; i >= 0; i-- {
		a -= 8
		if locals[i], err = load(a); err != nil {
			return err
		}
	}

	r := e.regFile
	r.restore(a, g, locals, globals)
	for i, s := range savedSpecials {
		r.SetSpecial(s, specials[i])
	}
	r.SetSpecial(RA, ra)
	e.logger.V(2).Info("restored context", "bottom", a, "locals", r.l, "globals", g)
	return nil
}

// reloadFrame brings the newest frame written by SAVE back into the
// register file when POP finds no frame above rS.
func (e *Emulator) reloadFrame() error {
	r := e.regFile
	if r.o > 0 || r.bottom <= StackBase {
		return nil
	}

	top := r.bottom - 8
	k, err := e.mmu.Load(top, 8)
	if err != nil {
		return err
	}
	k &= 0xFF
	if r.bottom-StackBase < 8*(k+1) {
		return ErrStackUnderflow
	}

	vals := make([]uint64, k+1)
	vals[k] = k
	for i := uint64(0); i < k; i++ {
		if vals[i], err = e.mmu.Load(top-8*(k-i), 8); err != nil {
			return err
		}
	}
	r.prependFrame(vals)
	return nil
}

// executeTranslate executes LDVTS: it updates or drops the translation
// cache entries for the key y+z and sets $X to the MMIX status code.
func (e *Emulator) executeTranslate(inst *insts.Instruction, key uint64) error {
	if !e.privileged() {
		return fmt.Errorf("LDVTS: %w", ErrPrivilegedInstruction)
	}
	status, err := e.mmu.UpdateTranslation(key)
	if err != nil {
		return err
	}
	e.regFile.WriteReg(inst.X, status)
	return nil
}
