package emu

import (
	"github.com/sarchlab/mmixsim/fpu"
	"github.com/sarchlab/mmixsim/insts"
	"github.com/sarchlab/mmixsim/mem"
	"github.com/sarchlab/mmixsim/mem/mmu"
)

// LoadStoreUnit implements MMIX loads, stores and memory hints.
type LoadStoreUnit struct {
	regFile *RegFile
	mmu     *mmu.MMU
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and MMU.
func NewLoadStoreUnit(regFile *RegFile, m *mmu.MMU) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		mmu:     m,
	}
}

// accessSize returns the operand size of LDB..LDOU and STB..STOU.
func accessSize(op insts.Op) int {
	return 1 << ((op >> 2) & 3)
}

func signExtend(v uint64, size int) uint64 {
	shift := 64 - 8*uint(size)
	return uint64(int64(v<<shift) >> shift)
}

// Load executes a load or CSWAP from address a.
func (lsu *LoadStoreUnit) Load(inst *insts.Instruction, a uint64) error {
	op := inst.Base()
	switch op {
	case insts.OpLDHT:
		v, err := lsu.mmu.Load(a, 4)
		if err != nil {
			return err
		}
		lsu.regFile.WriteReg(inst.X, v<<32)
		return nil
	case insts.OpLDUNC:
		v, err := lsu.mmu.Load(a, 8)
		if err != nil {
			return err
		}
		lsu.regFile.WriteReg(inst.X, v)
		return nil
	case insts.OpLDSF:
		v, err := lsu.mmu.Load(a, 4)
		if err != nil {
			return err
		}
		lsu.regFile.WriteReg(inst.X, fpu.FromShort(uint32(v)))
		return nil
	case insts.OpCSWAP:
		return lsu.cswap(inst, a)
	}

	size := accessSize(op)
	v, err := lsu.mmu.Load(a, size)
	if err != nil {
		return err
	}
	// Even opcodes of LDB..LDT are the signed loads.
	if op&2 == 0 && size < 8 {
		v = signExtend(v, size)
	}
	lsu.regFile.WriteReg(inst.X, v)
	return nil
}

// cswap compares the octa at a with rP and swaps in $X when they match.
func (lsu *LoadStoreUnit) cswap(inst *insts.Instruction, a uint64) error {
	m, err := lsu.mmu.Load(a, 8)
	if err != nil {
		return err
	}
	if m == lsu.regFile.Special(RP) {
		if err := lsu.mmu.Store(a, 8, lsu.regFile.ReadReg(inst.X)); err != nil {
			return err
		}
		lsu.regFile.WriteReg(inst.X, 1)
		return nil
	}
	lsu.regFile.SetSpecial(RP, m)
	lsu.regFile.WriteReg(inst.X, 0)
	return nil
}

// Store executes a store to address a. Signed stores of values that do
// not fit raise EventV but still store the truncated value.
func (lsu *LoadStoreUnit) Store(inst *insts.Instruction, a uint64) (uint64, error) {
	op := inst.Base()
	x := lsu.regFile.ReadReg(inst.X)

	switch op {
	case insts.OpSTHT:
		return 0, lsu.mmu.Store(a, 4, x>>32)
	case insts.OpSTCO:
		return 0, lsu.mmu.Store(a, 8, uint64(inst.X))
	case insts.OpSTUNC:
		return 0, lsu.mmu.Store(a, 8, x)
	case insts.OpSTSF:
		z, ex := fpu.ToShort(x, fpu.ModeFromRA(lsu.regFile.Special(RA)))
		if err := lsu.mmu.Store(a, 4, uint64(z)); err != nil {
			return 0, err
		}
		return uint64(ex), nil
	}

	size := accessSize(op)
	var events uint64
	if op&2 == 0 && size < 8 && signExtend(x, size) != x {
		events = EventV
	}
	return events, lsu.mmu.Store(a, size, x)
}

// Hint executes the prefetch and synchronization instructions. They never
// fault.
func (lsu *LoadStoreUnit) Hint(inst *insts.Instruction, a uint64) {
	switch inst.Base() {
	case insts.OpPRELD:
		_ = lsu.mmu.Touch(a, mem.Read)
	case insts.OpPREGO:
		_ = lsu.mmu.Touch(a, mem.Fetch)
	case insts.OpPREST:
		_ = lsu.mmu.Touch(a, mem.Write)
	case insts.OpSYNCD:
		_ = lsu.mmu.SyncData(a, false)
	case insts.OpSYNCID:
		_ = lsu.mmu.SyncInstr(a, false)
	}
}
