package emu

import (
	"math/bits"

	"github.com/sarchlab/mmixsim/insts"
)

// ALU implements MMIX integer arithmetic and logic operations.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

func signOf(v uint64) bool {
	return int64(v) < 0
}

// Arith computes an integer arithmetic, compare or shift operation. It
// returns the result and the arithmetic events raised (EventV, EventD).
// rH, rD and rR are read and written as the operation requires.
func (a *ALU) Arith(op insts.Op, y, z uint64) (uint64, uint64) {
	switch op {
	case insts.OpADD:
		x := y + z
		if signOf(y) == signOf(z) && signOf(x) != signOf(y) {
			return x, EventV
		}
		return x, 0
	case insts.OpADDU:
		return y + z, 0
	case insts.OpSUB, insts.OpNEG:
		x := y - z
		if signOf(y) != signOf(z) && signOf(x) != signOf(y) {
			return x, EventV
		}
		return x, 0
	case insts.OpSUBU, insts.OpNEGU:
		return y - z, 0
	case insts.Op2ADDU:
		return y<<1 + z, 0
	case insts.Op4ADDU:
		return y<<2 + z, 0
	case insts.Op8ADDU:
		return y<<3 + z, 0
	case insts.Op16ADDU:
		return y<<4 + z, 0
	case insts.OpCMP:
		return compare(int64(y) < int64(z), int64(y) > int64(z)), 0
	case insts.OpCMPU:
		return compare(y < z, y > z), 0
	case insts.OpMUL:
		return a.mul(y, z)
	case insts.OpMULU:
		hi, lo := bits.Mul64(y, z)
		a.regFile.SetSpecial(RH, hi)
		return lo, 0
	case insts.OpDIV:
		return a.div(y, z)
	case insts.OpDIVU:
		return a.divu(y, z), 0
	case insts.OpSL:
		return shiftLeft(y, z)
	case insts.OpSLU:
		if z >= 64 {
			return 0, 0
		}
		return y << z, 0
	case insts.OpSR:
		if z >= 64 {
			z = 63
		}
		return uint64(int64(y) >> z), 0
	case insts.OpSRU:
		if z >= 64 {
			return 0, 0
		}
		return y >> z, 0
	}
	return 0, 0
}

func compare(less, greater bool) uint64 {
	switch {
	case less:
		return ^uint64(0)
	case greater:
		return 1
	}
	return 0
}

// mul is the signed product; V is raised when it does not fit in 64 bits.
func (a *ALU) mul(y, z uint64) (uint64, uint64) {
	hi, lo := bits.Mul64(y, z)
	if signOf(y) {
		hi -= z
	}
	if signOf(z) {
		hi -= y
	}
	if hi != uint64(int64(lo)>>63) {
		return lo, EventV
	}
	return lo, 0
}

// div is the floored signed quotient with the remainder in rR.
func (a *ALU) div(y, z uint64) (uint64, uint64) {
	if z == 0 {
		a.regFile.SetSpecial(RR, y)
		return 0, EventD
	}
	sy, sz := int64(y), int64(z)
	if sz == -1 && y == 1<<63 {
		a.regFile.SetSpecial(RR, 0)
		return y, EventV
	}

	q, r := sy/sz, sy%sz
	if r != 0 && (r < 0) != (sz < 0) {
		q--
		r += sz
	}
	a.regFile.SetSpecial(RR, uint64(r))
	return uint64(q), 0
}

// divu divides the 128-bit value rD:y by z. When the quotient would not
// fit, the result is rD and the remainder is y.
func (a *ALU) divu(y, z uint64) uint64 {
	d := a.regFile.Special(RD)
	if z <= d {
		a.regFile.SetSpecial(RR, y)
		return d
	}
	q, r := bits.Div64(d, y, z)
	a.regFile.SetSpecial(RR, r)
	return q
}

func shiftLeft(y, z uint64) (uint64, uint64) {
	if z >= 64 {
		if y != 0 {
			return 0, EventV
		}
		return 0, 0
	}
	x := y << z
	if int64(x)>>z != int64(y) {
		return x, EventV
	}
	return x, 0
}

// Logic computes a bitwise or byte-wise operation.
func (a *ALU) Logic(op insts.Op, y, z uint64) uint64 {
	switch op {
	case insts.OpOR:
		return y | z
	case insts.OpORN:
		return y | ^z
	case insts.OpNOR:
		return ^(y | z)
	case insts.OpXOR:
		return y ^ z
	case insts.OpAND:
		return y & z
	case insts.OpANDN:
		return y &^ z
	case insts.OpNAND:
		return ^(y & z)
	case insts.OpNXOR:
		return ^(y ^ z)
	case insts.OpBDIF:
		return saturatingDiff(y, z, 8)
	case insts.OpWDIF:
		return saturatingDiff(y, z, 16)
	case insts.OpTDIF:
		return saturatingDiff(y, z, 32)
	case insts.OpODIF:
		if y > z {
			return y - z
		}
		return 0
	case insts.OpMUX:
		m := a.regFile.Special(RM)
		return y&m | z&^m
	case insts.OpSADD:
		return uint64(bits.OnesCount64(y &^ z))
	case insts.OpMOR:
		return boolMult(y, z, false)
	case insts.OpMXOR:
		return boolMult(y, z, true)
	}
	return 0
}

// saturatingDiff subtracts each width-bit field of z from y, clamping at
// zero.
func saturatingDiff(y, z uint64, width uint) uint64 {
	mask := uint64(1)<<width - 1
	var x uint64
	for shift := uint(0); shift < 64; shift += width {
		fy, fz := (y>>shift)&mask, (z>>shift)&mask
		if fy > fz {
			x |= (fy - fz) << shift
		}
	}
	return x
}

// boolMult multiplies y and z as 8x8 bit matrices, combining with OR or,
// with xor set, XOR.
func boolMult(y, z uint64, xor bool) uint64 {
	var x uint64
	for k, o := 0, y; o != 0; k, o = k+1, o>>8 {
		if o&0xFF == 0 {
			continue
		}
		a := ((z >> k) & 0x0101010101010101) * 0xFF
		c := (o & 0xFF) * 0x0101010101010101
		if xor {
			x ^= a & c
		} else {
			x |= a & c
		}
	}
	return x
}

// Wyde computes SETH..ANDNL from the current $X and the YZ field.
func (a *ALU) Wyde(op insts.Op, x uint64, yz uint16) uint64 {
	shift := 48 - 16*uint(op&3)
	v := uint64(yz) << shift
	switch op &^ 3 {
	case insts.OpSETH:
		return v
	case insts.OpINCH:
		return x + v
	case insts.OpORH:
		return x | v
	}
	return x &^ v
}

// Cond evaluates the branch or conditional-set condition selected by the
// low bits of op on v.
func Cond(op insts.Op, v uint64) bool {
	s := int64(v)
	switch (op >> 1) & 7 {
	case 0:
		return s < 0
	case 1:
		return s == 0
	case 2:
		return s > 0
	case 3:
		return v&1 == 1
	case 4:
		return s >= 0
	case 5:
		return s != 0
	case 6:
		return s <= 0
	}
	return v&1 == 0
}
