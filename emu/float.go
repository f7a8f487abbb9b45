package emu

import (
	"github.com/sarchlab/mmixsim/fpu"
	"github.com/sarchlab/mmixsim/insts"
)

// FloatUnit executes MMIX floating-point instructions through the software
// FPU. The rounding mode comes from rA unless the instruction names one.
type FloatUnit struct {
	regFile *RegFile
}

// NewFloatUnit creates a new FloatUnit connected to the given register
// file.
func NewFloatUnit(regFile *RegFile) *FloatUnit {
	return &FloatUnit{regFile: regFile}
}

// Mode returns the current rounding mode from rA.
func (f *FloatUnit) Mode() fpu.RoundingMode {
	return fpu.ModeFromRA(f.regFile.Special(RA))
}

// modeFor resolves the Y field of FIX, FINT, FLOT, SFLOT and FSQRT.
func (f *FloatUnit) modeFor(y uint8) (fpu.RoundingMode, error) {
	if y > uint8(fpu.RoundNear) {
		return 0, ErrIllegalInstruction
	}
	if y == 0 {
		return f.Mode(), nil
	}
	return fpu.RoundingMode(y), nil
}

// Execute computes a floating-point instruction. y is $Y for binary
// operations and ignored otherwise; z is $Z or the immediate Z.
func (f *FloatUnit) Execute(inst *insts.Instruction, y, z uint64) (uint64, uint64, error) {
	var (
		x  uint64
		ex fpu.Exceptions
	)
	mode := f.Mode()

	switch inst.Base() {
	case insts.OpFCMP:
		c, ordered := fpu.Compare(y, z)
		if !ordered {
			return 0, EventI, nil
		}
		return uint64(int64(c)), 0, nil
	case insts.OpFUN:
		if _, ordered := fpu.Compare(y, z); !ordered {
			return 1, 0, nil
		}
		return 0, 0, nil
	case insts.OpFEQL:
		if c, ordered := fpu.Compare(y, z); ordered && c == 0 {
			return 1, 0, nil
		}
		return 0, 0, nil
	case insts.OpFCMPE:
		switch fpu.CompareEpsilon(y, z, f.regFile.Special(RE), true) {
		case fpu.Unordered:
			return 0, EventI, nil
		case fpu.Near:
			return 0, 0, nil
		}
		c, _ := fpu.Compare(y, z)
		return uint64(int64(c)), 0, nil
	case insts.OpFUNE:
		if fpu.CompareEpsilon(y, z, f.regFile.Special(RE), true) == fpu.Unordered {
			return 1, 0, nil
		}
		return 0, 0, nil
	case insts.OpFEQLE:
		switch fpu.CompareEpsilon(y, z, f.regFile.Special(RE), false) {
		case fpu.Unordered:
			return 0, EventI, nil
		case fpu.Near:
			return 1, 0, nil
		}
		return 0, 0, nil
	case insts.OpFADD:
		x, ex = fpu.Add(y, z, mode)
	case insts.OpFSUB:
		x, ex = fpu.Sub(y, z, mode)
	case insts.OpFMUL:
		x, ex = fpu.Mul(y, z, mode)
	case insts.OpFDIV:
		x, ex = fpu.Div(y, z, mode)
	case insts.OpFREM:
		x, ex = fpu.Rem(y, z)
	default:
		m, err := f.modeFor(inst.Y)
		if err != nil {
			return 0, 0, err
		}
		switch inst.Base() {
		case insts.OpFSQRT:
			x, ex = fpu.Sqrt(z, m)
		case insts.OpFINT:
			x, ex = fpu.Int(z, m)
		case insts.OpFIX:
			x, ex = fpu.Fix(z, m, false)
		case insts.OpFIXU:
			x, ex = fpu.Fix(z, m, true)
		case insts.OpFLOT:
			x, ex = fpu.Flot(z, m, false)
		case insts.OpFLOTU:
			x, ex = fpu.Flot(z, m, true)
		case insts.OpSFLOT:
			x, ex = fpu.FlotShort(z, m, false)
		case insts.OpSFLOTU:
			x, ex = fpu.FlotShort(z, m, true)
		default:
			return 0, 0, ErrIllegalInstruction
		}
	}

	return x, uint64(ex), nil
}
