package fpu

import "math/bits"

// Add returns y + z.
func Add(y, z uint64, mode RoundingMode) (uint64, Exceptions) {
	var ex Exceptions
	fy, fz := unpack(y), unpack(z)

	if x := propagateNaN(y, z, fy.kind, fz.kind, &ex); x != 0 {
		return x, ex
	}

	var (
		x   uint64
		neg bool
	)
	switch {
	case fy.kind == kindZero && fz.kind == kindNum:
		return pack(fz, RoundOff, &ex), ex
	case fy.kind == kindNum && fz.kind == kindZero:
		return pack(fy, RoundOff, &ex), ex
	case fy.kind == kindInf && fz.kind == kindInf:
		if fy.neg != fz.neg {
			ex |= ExInvalid
			x = StdNaN
		} else {
			x = Infinity
		}
		neg = fz.neg
	case fz.kind == kindInf:
		x, neg = Infinity, fz.neg
	case fy.kind == kindInf:
		x, neg = Infinity, fy.neg
	case fy.kind == kindNum && y != z^SignBit:
		return addNums(fy, fz, mode, &ex), ex
	default:
		// Both zero, or exact cancellation.
		if fy.neg == fz.neg {
			neg = fy.neg
		} else {
			neg = mode == RoundDown
		}
	}

	return withSign(x, neg), ex
}

// Sub returns y - z.
func Sub(y, z uint64, mode RoundingMode) (uint64, Exceptions) {
	if unpack(z).kind != kindNaN {
		z ^= SignBit
	}
	return Add(y, z, mode)
}

func addNums(fy, fz unpacked, mode RoundingMode, ex *Exceptions) uint64 {
	if fy.e < fz.e || (fy.e == fz.e && fy.f < fz.f) {
		fy, fz = fz, fy
	}

	d := fy.e - fz.e
	fx := unpacked{e: fy.e, neg: fy.neg, kind: kindNum}

	if d > 0 {
		switch {
		case d <= 2:
			fz.f >>= uint(d)
		case d > 53:
			fz.f = 1
		default:
			if fy.neg != fz.neg {
				// One extra bit of precision for the subtraction.
				d--
				fx.e--
				fy.f <<= 1
			}
			o := fz.f
			fz.f = o >> uint(d)
			if fz.f<<uint(d) != o {
				fz.f |= 1
			}
		}
	}

	if fy.neg == fz.neg {
		fx.f = fy.f + fz.f
	} else {
		fx.f = fy.f - fz.f
	}

	if fx.f >= carryBit {
		fx.e++
		sticky := fx.f & 1
		fx.f = fx.f>>1 | sticky
	} else {
		for fx.f < hiddenBit {
			fx.e--
			fx.f <<= 1
		}
	}

	return pack(fx, mode, ex)
}

// Mul returns y * z.
func Mul(y, z uint64, mode RoundingMode) (uint64, Exceptions) {
	var ex Exceptions
	fy, fz := unpack(y), unpack(z)
	neg := fy.neg != fz.neg

	if x := propagateNaN(y, z, fy.kind, fz.kind, &ex); x != 0 {
		return x, ex
	}

	var x uint64
	switch {
	case (fy.kind == kindZero && fz.kind == kindInf) || (fy.kind == kindInf && fz.kind == kindZero):
		x = StdNaN
		ex |= ExInvalid
	case fy.kind == kindZero || fz.kind == kindZero:
		x = 0
	case fy.kind == kindInf || fz.kind == kindInf:
		x = Infinity
	default:
		fx := unpacked{neg: neg, kind: kindNum, e: fy.e + fz.e - 0x3FD}
		hi, lo := bits.Mul64(fy.f, fz.f<<9)
		if hi >= hiddenBit {
			fx.f = hi
		} else {
			fx.f = hi << 1
			fx.e--
		}
		if lo != 0 {
			fx.f |= 1
		}
		return pack(fx, mode, &ex), ex
	}

	return withSign(x, neg), ex
}

// Div returns y / z.
func Div(y, z uint64, mode RoundingMode) (uint64, Exceptions) {
	var ex Exceptions
	fy, fz := unpack(y), unpack(z)
	neg := fy.neg != fz.neg

	if x := propagateNaN(y, z, fy.kind, fz.kind, &ex); x != 0 {
		return x, ex
	}

	var x uint64
	switch {
	case (fy.kind == kindZero && fz.kind == kindZero) || (fy.kind == kindInf && fz.kind == kindInf):
		x = StdNaN
		ex |= ExInvalid
	case fy.kind == kindZero || fz.kind == kindInf:
		x = 0
	case fz.kind == kindZero:
		if fy.kind == kindNum {
			ex |= ExDivByZero
		}
		x = Infinity
	case fy.kind == kindInf:
		x = Infinity
	default:
		fx := unpacked{neg: neg, kind: kindNum, e: fy.e - fz.e + 0x3FD}
		q, rem := bits.Div64(fy.f, 0, fz.f<<9)
		if q >= carryBit {
			rem |= q & 1
			q >>= 1
			fx.e++
		}
		fx.f = q
		if rem != 0 {
			fx.f |= 1
		}
		return pack(fx, mode, &ex), ex
	}

	return withSign(x, neg), ex
}

// Sqrt returns the square root of z.
func Sqrt(z uint64, mode RoundingMode) (uint64, Exceptions) {
	var ex Exceptions
	fz := unpack(z)

	switch {
	case fz.kind == kindNaN:
		return quietUnary(z, &ex), ex
	case fz.neg && fz.kind != kindZero:
		ex |= ExInvalid
		return StdNaN | SignBit, ex
	case fz.kind == kindInf, fz.kind == kindZero:
		return z, ex
	}

	fx := unpacked{f: 2, kind: kindNum, e: (fz.e + 0x3FE) >> 1}
	if fz.e&1 != 0 {
		fz.f <<= 1
	}

	// Digit-by-digit root; fx.f holds twice the partial root.
	rf := (fz.f >> 54) - 1
	for k := 53; k > 0; k-- {
		rf <<= 2
		fx.f <<= 1
		if k >= 43 {
			rf += (fz.f >> uint(32+2*(k-43))) & 3
		} else if k >= 27 {
			rf += (fz.f >> uint(2*(k-27))) & 3
		}
		if rf > fx.f {
			fx.f++
			rf -= fx.f
			fx.f++
		}
	}
	if rf != 0 {
		fx.f++
	}

	return pack(fx, mode, &ex), ex
}

// Rem returns the IEEE remainder y rem z.
func Rem(y, z uint64) (uint64, Exceptions) {
	var ex Exceptions
	fy, fz := unpack(y), unpack(z)

	if x := propagateNaN(y, z, fy.kind, fz.kind, &ex); x != 0 {
		return x, ex
	}

	switch {
	case fz.kind == kindZero || fy.kind == kindInf:
		ex |= ExInvalid
		return withSign(StdNaN, fy.neg), ex
	case fy.kind == kindZero || fz.kind == kindInf:
		return y, ex
	}

	x := remNums(fy, fz, 2500, &ex)
	if x == 0 {
		return withSign(0, fy.neg), ex
	}
	return x, ex
}

func remNums(fy, fz unpacked, delta int, ex *Exceptions) uint64 {
	odd := false
	thresh := fy.e - delta
	if thresh < fz.e {
		thresh = fz.e
	}

	complement := false
	for fy.e >= thresh {
		if fy.f == fz.f {
			return 0
		}
		if fy.f < fz.f {
			if fy.e == fz.e {
				complement = true
				break
			}
			fy.e--
			fy.f <<= 1
		}
		fy.f -= fz.f
		if fy.e == fz.e {
			odd = true
		}
		for fy.f < hiddenBit {
			fy.e--
			fy.f <<= 1
		}
	}

	if !complement {
		if fy.e < fz.e-1 {
			return pack(fy, RoundOff, ex)
		}
		fy.f >>= 1
	}

	fx := unpacked{f: fz.f - fy.f, e: fz.e, neg: !fy.neg, kind: kindNum}
	if fx.f > fy.f || (fx.f == fy.f && !odd) {
		fx.f = fy.f
		fx.neg = fy.neg
	}
	for fx.f < hiddenBit {
		fx.e--
		fx.f <<= 1
	}
	return pack(fx, RoundOff, ex)
}
