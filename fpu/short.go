package fpu

// Single-precision bit patterns.
const (
	ShortSignBit  uint32 = 1 << 31
	ShortInfinity uint32 = 0x7F800000
	ShortMaxFloat uint32 = 0x7F7FFFFF

	// shortBias maps a single-precision exponent onto the double one.
	shortBias = 0x380
)

// unpackShort widens a single-precision value to the unpacked form used
// for doubles. The hidden bit lands at 2^54 like in unpack.
func unpackShort(x uint32) unpacked {
	u := unpacked{neg: x&ShortSignBit != 0}
	u.f = uint64(x&0x7FFFFF) << 31
	ee := int((x >> 23) & 0xFF)

	switch {
	case ee != 0:
		u.e = ee + shortBias - 1
		u.f |= hiddenBit
		switch {
		case ee < 0xFF:
			u.kind = kindNum
		case x&^ShortSignBit == ShortInfinity:
			u.kind = kindInf
		default:
			u.kind = kindNaN
		}
	case x&^ShortSignBit == 0:
		u.e = zeroExponent
		u.kind = kindZero
	default:
		for u.f&hiddenBit == 0 {
			ee--
			u.f <<= 1
		}
		u.e = ee + shortBias
		u.kind = kindNum
	}

	return u
}

// packShort rounds a number to single precision.
func packShort(u unpacked, mode RoundingMode, ex *Exceptions) uint32 {
	e := u.e

	if e > 0x47D {
		*ex |= ExOverflow | ExInexact
		o := ShortMaxFloat
		if overflowResult(u.neg, mode) == Infinity {
			o = ShortInfinity
		}
		if u.neg {
			o |= ShortSignBit
		}
		return o
	}

	// Keep two guard bits below the 23-bit fraction.
	o := uint32(u.f >> 29)
	if u.f&0x1FFFFFFF != 0 {
		o |= 1
	}
	if e < shortBias {
		if e < shortBias-25 {
			o = 1
		} else {
			shift := uint(shortBias - e)
			full := o
			o >>= shift
			if o<<shift != full {
				o |= 1
			}
		}
		e = shortBias
	}

	if o&3 != 0 {
		*ex |= ExInexact
	}
	o = uint32(round(uint64(o), u.neg, mode))

	o >>= 2
	o += uint32(e-shortBias) << 23

	if o >= ShortInfinity {
		*ex |= ExOverflow | ExInexact
	} else if o < 0x00800000 {
		*ex |= ExUnderflow
	}

	if u.neg {
		o |= ShortSignBit
	}
	return o
}

// FromShort widens a single-precision value (LDSF). The conversion is
// exact and a signaling NaN stays signaling.
func FromShort(z uint32) uint64 {
	var ex Exceptions
	u := unpackShort(z)

	var x uint64
	switch u.kind {
	case kindNum:
		return pack(u, RoundOff, &ex)
	case kindInf:
		x = Infinity
	case kindNaN:
		x = Infinity | u.f>>2
	}
	return withSign(x, u.neg)
}

// ToShort rounds a double to single precision (STSF). A signaling NaN is
// quieted and raises invalid.
func ToShort(x uint64, mode RoundingMode) (uint32, Exceptions) {
	var ex Exceptions
	u := unpack(x)

	var z uint32
	switch u.kind {
	case kindNum:
		return packShort(u, mode, &ex), ex
	case kindInf:
		z = ShortInfinity
	case kindNaN:
		if u.f&(QuietBit<<2) == 0 {
			u.f |= QuietBit << 2
			ex |= ExInvalid
		}
		z = ShortInfinity | uint32(u.f>>31)
	}
	if u.neg {
		z |= ShortSignBit
	}
	return z, ex
}
