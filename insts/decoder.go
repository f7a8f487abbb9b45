package insts

import "fmt"

// Instruction represents a decoded MMIX instruction.
type Instruction struct {
	Op     Op
	Format Format
	X      uint8
	Y      uint8
	Z      uint8

	// Immediate is set for the odd member of a register/immediate pair:
	// Z (or YZ for PUT) is a constant rather than a register number.
	Immediate bool
	// Backward is set for the odd member of a relative pair: the offset
	// counts back from the instruction.
	Backward bool

	// Raw is the undecoded instruction tetra.
	Raw uint32
}

// Name returns the mnemonic of the instruction.
func (i *Instruction) Name() string {
	return i.Op.Name()
}

// Base returns the even member of a paired opcode, or the opcode itself.
func (i *Instruction) Base() Op {
	if opTable[i.Op].paired {
		return i.Op &^ 1
	}
	return i.Op
}

// Class returns the statistics class of the instruction.
func (i *Instruction) Class() Class {
	return opTable[i.Op].Class
}

// YZ returns the 16-bit YZ field.
func (i *Instruction) YZ() uint16 {
	return uint16(i.Y)<<8 | uint16(i.Z)
}

// XYZ returns the 24-bit XYZ field.
func (i *Instruction) XYZ() uint32 {
	return uint32(i.X)<<16 | uint32(i.Y)<<8 | uint32(i.Z)
}

// RelOffset returns the byte offset of a relative branch, jump, GETA or
// PUSHJ from the address of the instruction.
func (i *Instruction) RelOffset() int64 {
	var tetras int64
	if i.Format == FormatJump {
		tetras = int64(i.XYZ())
		if i.Backward {
			tetras -= 1 << 24
		}
	} else {
		tetras = int64(i.YZ())
		if i.Backward {
			tetras -= 1 << 16
		}
	}
	return tetras * 4
}

// Decoder decodes MMIX instruction tetras.
type Decoder struct{}

// NewDecoder creates a new decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	op := Op(word >> 24)
	info := &opTable[op]

	inst := &Instruction{
		Op:     op,
		Format: info.Format,
		X:      uint8(word >> 16),
		Y:      uint8(word >> 8),
		Z:      uint8(word),
		Raw:    word,
	}

	if info.paired && op&1 == 1 {
		if info.relative {
			inst.Backward = true
		} else {
			inst.Immediate = true
		}
	}

	return inst
}

// Encode builds an OP X Y Z tetra.
func Encode(op Op, x, y, z uint8) uint32 {
	return uint32(op)<<24 | uint32(x)<<16 | uint32(y)<<8 | uint32(z)
}

// EncodeYZ builds an OP X YZ tetra.
func EncodeYZ(op Op, x uint8, yz uint16) uint32 {
	return uint32(op)<<24 | uint32(x)<<16 | uint32(yz)
}

// EncodeRel builds a relative branch, GETA, PUSHJ or JMP whose target is
// offset bytes away from the instruction. The backward variant is chosen
// for negative offsets. For JMP, x is ignored.
func EncodeRel(op Op, x uint8, offset int64) uint32 {
	op &^= 1
	tetras := offset / 4
	if op == OpJMP {
		if tetras < 0 {
			return uint32(op|1)<<24 | uint32(tetras+(1<<24))&0xFFFFFF
		}
		return uint32(op)<<24 | uint32(tetras)&0xFFFFFF
	}
	if tetras < 0 {
		return EncodeYZ(op|1, x, uint16(tetras+(1<<16)))
	}
	return EncodeYZ(op, x, uint16(tetras))
}

// Disassemble renders an instruction in assembler syntax.
func Disassemble(inst *Instruction) string {
	name := inst.Name()
	switch inst.Format {
	case FormatBranch, FormatGeta:
		return fmt.Sprintf("%s $%d,@%+d", name, inst.X, inst.RelOffset())
	case FormatJump:
		return fmt.Sprintf("%s @%+d", name, inst.RelOffset())
	case FormatPush:
		if inst.Base() == OpPUSHJ {
			return fmt.Sprintf("%s $%d,@%+d", name, inst.X, inst.RelOffset())
		}
	case FormatWyde:
		return fmt.Sprintf("%s $%d,#%X", name, inst.X, inst.YZ())
	case FormatPop:
		return fmt.Sprintf("%s %d,%d", name, inst.X, inst.YZ())
	case FormatTrap, FormatResume, FormatHint, FormatUnknown:
		return fmt.Sprintf("%s %d,%d,%d", name, inst.X, inst.Y, inst.Z)
	case FormatSpecial:
		if inst.Op == OpGET {
			return fmt.Sprintf("%s $%d,%d", name, inst.X, inst.Z)
		}
		if inst.Immediate {
			return fmt.Sprintf("%s %d,%d", name, inst.X, inst.Z)
		}
		return fmt.Sprintf("%s %d,$%d", name, inst.X, inst.Z)
	case FormatSave:
		if inst.Op == OpSAVE {
			return fmt.Sprintf("%s $%d,%d", name, inst.X, inst.Z)
		}
		return fmt.Sprintf("%s %d,$%d", name, inst.X, inst.Z)
	case FormatFloat:
		if isConversion(inst.Base()) || isUnaryFloat(inst.Op) {
			// Y is a rounding mode rather than a register.
			if inst.Immediate {
				return fmt.Sprintf("%s $%d,%d,%d", name, inst.X, inst.Y, inst.Z)
			}
			return fmt.Sprintf("%s $%d,%d,$%d", name, inst.X, inst.Y, inst.Z)
		}
		return fmt.Sprintf("%s $%d,$%d,$%d", name, inst.X, inst.Y, inst.Z)
	}

	if inst.Immediate {
		return fmt.Sprintf("%s $%d,$%d,%d", name, inst.X, inst.Y, inst.Z)
	}
	return fmt.Sprintf("%s $%d,$%d,$%d", name, inst.X, inst.Y, inst.Z)
}

func isConversion(op Op) bool {
	switch op {
	case OpFLOT, OpFLOTU, OpSFLOT, OpSFLOTU:
		return true
	}
	return false
}

func isUnaryFloat(op Op) bool {
	switch op {
	case OpFIX, OpFIXU, OpFSQRT, OpFINT:
		return true
	}
	return false
}
