// Package fpu implements MMIX floating-point arithmetic in software.
//
// Values are IEEE-754 binary64 bit patterns held in uint64. Every operation
// takes an explicit rounding mode and reports the arithmetic exceptions it
// raised, so the result never depends on the host's floating-point
// environment.
package fpu

// RoundingMode selects how inexact results are rounded. The numbering
// matches the rounding field of rA and the Y field of FIX/FINT/FLOT, where
// 0 stands for "current mode".
type RoundingMode uint8

// Rounding modes.
const (
	RoundCurrent RoundingMode = 0
	RoundOff     RoundingMode = 1 // toward zero
	RoundUp      RoundingMode = 2 // toward +infinity
	RoundDown    RoundingMode = 3 // toward -infinity
	RoundNear    RoundingMode = 4 // to nearest, ties to even
)

var modeNames = map[RoundingMode]string{
	RoundCurrent: "current",
	RoundOff:     "off",
	RoundUp:      "up",
	RoundDown:    "down",
	RoundNear:    "near",
}

// String returns the short name of the mode.
func (m RoundingMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "invalid"
}

// ModeFromRA extracts the rounding mode from the rA register.
func ModeFromRA(ra uint64) RoundingMode {
	m := RoundingMode((ra >> 16) & 3)
	if m == 0 {
		return RoundNear
	}
	return m
}

// ModeToRA returns rA with its rounding field set to m.
func ModeToRA(ra uint64, m RoundingMode) uint64 {
	field := uint64(m)
	if m == RoundNear {
		field = 0
	}
	return ra&^(3<<16) | field<<16
}

// Exceptions is a set of arithmetic event bits, laid out like the low byte
// of rA.
type Exceptions uint8

// Arithmetic exceptions.
const (
	ExInexact      Exceptions = 0x01 // X
	ExDivByZero    Exceptions = 0x02 // Z
	ExUnderflow    Exceptions = 0x04 // U
	ExOverflow     Exceptions = 0x08 // O
	ExInvalid      Exceptions = 0x10 // I
	ExFloatToFix   Exceptions = 0x20 // W
	ExIntOverflow  Exceptions = 0x40 // V
	ExIntDivideChk Exceptions = 0x80 // D
)

// Bit patterns used throughout.
const (
	SignBit  uint64 = 1 << 63
	Infinity uint64 = 0x7FF0000000000000
	StdNaN   uint64 = 0x7FF8000000000000
	QuietBit uint64 = 0x0008000000000000
	MaxFloat uint64 = 0x7FEFFFFFFFFFFFFF
)

type kind uint8

const (
	kindZero kind = iota
	kindNum
	kindInf
	kindNaN
)

const zeroExponent = -1000

const (
	hiddenBit = uint64(1) << 54
	carryBit  = uint64(1) << 55
)

// unpacked is a float with the fraction shifted left by two (two guard bits)
// and the hidden bit at 2^54. The exponent is the biased exponent minus one.
type unpacked struct {
	neg  bool
	e    int
	f    uint64
	kind kind
}

func unpack(x uint64) unpacked {
	u := unpacked{neg: x&SignBit != 0}
	u.f = (x << 2) & 0x003FFFFFFFFFFFFF
	ee := int((x >> 52) & 0x7FF)

	switch {
	case ee != 0:
		u.e = ee - 1
		u.f |= hiddenBit
		switch {
		case ee < 0x7FF:
			u.kind = kindNum
		case u.f == hiddenBit:
			u.kind = kindInf
		default:
			u.kind = kindNaN
		}
	case u.f == 0:
		u.e = zeroExponent
		u.kind = kindZero
	default:
		// Subnormal: normalize so the hidden bit is set.
		for u.f&hiddenBit == 0 {
			ee--
			u.f <<= 1
		}
		u.e = ee
		u.kind = kindNum
	}

	return u
}

func round(x uint64, neg bool, mode RoundingMode) uint64 {
	switch mode {
	case RoundDown:
		if neg {
			x += 3
		}
	case RoundUp:
		if !neg {
			x += 3
		}
	case RoundOff:
	default:
		if x&4 != 0 {
			x += 2
		} else {
			x++
		}
	}
	return x
}

// overflowResult is the IEEE result of an overflow: infinity when the mode
// rounds away from zero for this sign, the largest finite value otherwise.
func overflowResult(neg bool, mode RoundingMode) uint64 {
	toInf := mode == RoundNear || mode == RoundCurrent ||
		(mode == RoundUp && !neg) || (mode == RoundDown && neg)
	if toInf {
		return Infinity
	}
	return MaxFloat
}

func pack(u unpacked, mode RoundingMode, ex *Exceptions) uint64 {
	var o uint64
	e := u.e

	if e > 0x7FD {
		*ex |= ExOverflow | ExInexact
		o = overflowResult(u.neg, mode)
		if u.neg {
			o |= SignBit
		}
		return o
	}

	if e < 0 {
		if e < -54 {
			o = 1
		} else {
			o = u.f >> uint(-e)
			if o<<uint(-e) != u.f {
				o |= 1 // sticky
			}
		}
		e = 0
	} else {
		o = u.f
	}

	if o&3 != 0 {
		*ex |= ExInexact
	}
	o = round(o, u.neg, mode)

	// The hidden bit carries into the exponent field, which is why e is one
	// less than the biased exponent.
	o >>= 2
	o += uint64(e) << 52

	if o >= Infinity {
		*ex |= ExOverflow | ExInexact
	} else if o < 0x0010000000000000 {
		*ex |= ExUnderflow
	}

	if u.neg {
		o |= SignBit
	}
	return o
}

func isQuiet(x uint64) bool {
	return x&QuietBit != 0
}

// propagateNaN returns the NaN result of a binary operation with at least
// one NaN operand, quieting it and raising invalid for a signaling one.
// It returns 0 when neither operand is a NaN.
func propagateNaN(y, z uint64, yk, zk kind, ex *Exceptions) uint64 {
	switch {
	case zk == kindNaN:
		if yk == kindNaN && !isQuiet(y) {
			*ex |= ExInvalid
		}
		if !isQuiet(z) {
			*ex |= ExInvalid
			z |= QuietBit
		}
		return z
	case yk == kindNaN:
		if !isQuiet(y) {
			*ex |= ExInvalid
			y |= QuietBit
		}
		return y
	}
	return 0
}

// quietUnary handles a NaN operand of a unary operation.
func quietUnary(z uint64, ex *Exceptions) uint64 {
	if !isQuiet(z) {
		*ex |= ExInvalid
		z |= QuietBit
	}
	return z
}

func withSign(x uint64, neg bool) uint64 {
	if neg {
		return x | SignBit
	}
	return x
}
