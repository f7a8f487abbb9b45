package fpu

// Int rounds z to an integral floating-point value (FINT).
func Int(z uint64, mode RoundingMode) (uint64, Exceptions) {
	var ex Exceptions
	fz := unpack(z)

	switch fz.kind {
	case kindNaN:
		return quietUnary(z, &ex), ex
	case kindInf, kindZero:
		return z, ex
	}

	if fz.e >= 1074 {
		// Already integral.
		return pack(fz, RoundOff, &ex), ex
	}

	var xf uint64
	if fz.e <= 1020 {
		xf = 1
	} else {
		shift := uint(1074 - fz.e)
		xf = fz.f >> shift
		if xf<<shift != fz.f {
			xf |= 1
		}
	}

	xf = round(xf, fz.neg, mode)
	xf &^= 3

	if fz.e >= 1022 {
		fx := unpacked{f: xf << uint(1074-fz.e), e: fz.e, neg: fz.neg, kind: kindNum}
		return pack(fx, RoundOff, &ex), ex
	}

	// |z| < 1 rounds to zero or one.
	if xf != 0 {
		xf = 0x3FF0000000000000
	}
	return withSign(xf, fz.neg), ex
}

// Fix converts z to a signed 64-bit integer (FIX). With unsigned set the
// result is taken modulo 2^64 and never reports float-to-fix overflow (FIXU).
func Fix(z uint64, mode RoundingMode, unsigned bool) (uint64, Exceptions) {
	var ex Exceptions
	fz := unpack(z)

	switch fz.kind {
	case kindNaN, kindInf:
		ex |= ExInvalid
		return z, ex
	case kindZero:
		return 0, ex
	}

	i, iex := Int(z, mode)
	ex |= iex
	fz = unpack(i)
	if fz.kind == kindZero {
		return 0, ex
	}

	var o uint64
	if fz.e <= 1076 {
		o = fz.f >> uint(1076-fz.e)
	} else {
		if !fz.neg && fz.e >= 1085 {
			ex |= ExFloatToFix
		} else if fz.neg && (fz.e > 1085 || (fz.e == 1085 && fz.f > hiddenBit)) {
			ex |= ExFloatToFix
		}
		if fz.e >= 1140 {
			o = 0
		} else {
			o = fz.f << uint(fz.e-1076)
		}
	}

	if unsigned {
		ex &^= ExFloatToFix
	}
	if fz.neg {
		return -o, ex
	}
	return o, ex
}

// Flot converts a signed (or, with unsigned set, unsigned) 64-bit integer
// to floating point (FLOT, FLOTU).
func Flot(z uint64, mode RoundingMode, unsigned bool) (uint64, Exceptions) {
	var ex Exceptions
	if z == 0 {
		return 0, ex
	}
	return pack(fromInt(z, unsigned), mode, &ex), ex
}

// FlotShort converts like Flot but rounds the result to single precision
// first (SFLOT, SFLOTU).
func FlotShort(z uint64, mode RoundingMode, unsigned bool) (uint64, Exceptions) {
	var ex Exceptions
	if z == 0 {
		return 0, ex
	}
	x := unpackShort(packShort(fromInt(z, unsigned), mode, &ex))
	return pack(x, mode, &ex), ex
}

// fromInt normalizes a nonzero integer. Bits below the guard bits are
// folded into a sticky bit.
func fromInt(z uint64, unsigned bool) unpacked {
	x := unpacked{f: z, kind: kindNum, e: 1076}
	if !unsigned && z&SignBit != 0 {
		x.neg = true
		x.f = -z
	}

	for x.f < hiddenBit {
		x.e--
		x.f <<= 1
	}
	for x.f >= carryBit {
		sticky := x.f & 1
		x.e++
		x.f = x.f>>1 | sticky
	}
	return x
}

// Compare orders y and z. It returns -1, 0 or 1 and false when the values
// are unordered because at least one is a NaN. Zeros of either sign are
// equal.
func Compare(y, z uint64) (int, bool) {
	fy, fz := unpack(y), unpack(z)

	if fy.kind == kindNaN || fz.kind == kindNaN {
		return 0, false
	}
	if fy.kind == kindZero && fz.kind == kindZero {
		return 0, true
	}

	var c int
	switch {
	case fy.neg != fz.neg:
		c = 1
	case y > z:
		c = 1
	case z > y:
		c = -1
	default:
		return 0, true
	}

	if fy.neg {
		return -c, true
	}
	return c, true
}

// IsNaN reports whether x encodes a NaN.
func IsNaN(x uint64) bool {
	return unpack(x).kind == kindNaN
}
