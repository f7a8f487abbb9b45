// Package fporacle checks simulated floating-point results against a host
// reference computation under every IEEE rounding mode.
package fporacle

import "github.com/sarchlab/mmixsim/fpu"

// Class is the category of a binary64 bit pattern.
type Class uint8

// Floating-point classes. Subnormal values classify as Normal.
const (
	Normal Class = iota
	Zero
	Infinity
	QuietNaN
	SignalingNaN
)

func (c Class) String() string {
	switch c {
	case Normal:
		return "normal"
	case Zero:
		return "zero"
	case Infinity:
		return "infinity"
	case QuietNaN:
		return "qNaN"
	case SignalingNaN:
		return "sNaN"
	}
	return "unknown"
}

const (
	exponentMask = uint64(0x7FF0000000000000)
	fractionMask = uint64(0x000FFFFFFFFFFFFF)
)

// Classify inspects the encoding of x.
func Classify(x uint64) Class {
	exp := x & exponentMask
	frac := x & fractionMask

	switch {
	case exp == 0 && frac == 0:
		return Zero
	case exp != exponentMask:
		return Normal
	case frac == 0:
		return Infinity
	case x&fpu.QuietBit != 0:
		return QuietNaN
	default:
		return SignalingNaN
	}
}

// IsNaN reports whether x is a quiet or signaling NaN.
func IsNaN(x uint64) bool {
	c := Classify(x)
	return c == QuietNaN || c == SignalingNaN
}

// IsNegative reports the sign bit of x.
func IsNegative(x uint64) bool {
	return x&fpu.SignBit != 0
}

// SetSign returns x with its sign bit forced to negative or positive.
func SetSign(x uint64, negative bool) uint64 {
	if negative {
		return x | fpu.SignBit
	}
	return x &^ fpu.SignBit
}
