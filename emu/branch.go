package emu

import "github.com/sarchlab/mmixsim/insts"

// DefaultBranchPenalty is the extra cost in cycles of a mispredicted
// branch.
const DefaultBranchPenalty = 2

// BranchUnit implements MMIX branches, jumps and subroutine linkage.
type BranchUnit struct {
	regFile *RegFile
	penalty uint64
}

// NewBranchUnit creates a new BranchUnit connected to the given register
// file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile, penalty: DefaultBranchPenalty}
}

// Branch evaluates a conditional or probable branch at pc. It returns the
// next PC and the misprediction penalty: ordinary branches are predicted
// not taken and probable branches taken.
func (b *BranchUnit) Branch(inst *insts.Instruction, pc uint64) (uint64, uint64) {
	taken := Cond(inst.Op, b.regFile.ReadReg(inst.X))
	probable := inst.Base() >= insts.OpPBN && inst.Base() < insts.OpCSN

	var penalty uint64
	if taken != probable {
		penalty = b.penalty
	}
	if taken {
		return pc + uint64(inst.RelOffset()), penalty
	}
	return pc + 4, penalty
}

// Jump returns the target of JMP at pc.
func (b *BranchUnit) Jump(inst *insts.Instruction, pc uint64) uint64 {
	return pc + uint64(inst.RelOffset())
}

// Geta sets $X to the relative address of GETA at pc.
func (b *BranchUnit) Geta(inst *insts.Instruction, pc uint64) {
	b.regFile.WriteReg(inst.X, pc+uint64(inst.RelOffset()))
}

// Go sets $X to the return address and returns the target of GO.
func (b *BranchUnit) Go(inst *insts.Instruction, pc, z uint64) uint64 {
	target := (b.regFile.ReadReg(inst.Y) + z) &^ 3
	b.regFile.WriteReg(inst.X, pc+4)
	return target
}

// Push performs PUSHJ or PUSHGO at pc and returns the target.
func (b *BranchUnit) Push(inst *insts.Instruction, pc, z uint64) uint64 {
	var target uint64
	if inst.Base() == insts.OpPUSHJ {
		target = pc + uint64(inst.RelOffset())
	} else {
		target = (b.regFile.ReadReg(inst.Y) + z) &^ 3
	}
	b.regFile.Push(inst.X, pc, pc+4, target)
	return target
}

// Pop performs POP and returns the address it returns to.
func (b *BranchUnit) Pop(inst *insts.Instruction) (uint64, error) {
	rj, err := b.regFile.Pop(inst.X)
	if err != nil {
		return 0, err
	}
	return rj + 4*uint64(inst.YZ()), nil
}
