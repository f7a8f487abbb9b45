package fpu

// Neighborhood classifies two values against an epsilon.
type Neighborhood uint8

// Results of CompareEpsilon.
const (
	// Apart means neither value is close enough to the other.
	Apart Neighborhood = iota
	// Near means the values are close with respect to epsilon.
	Near
	// Unordered means an operand is a NaN or epsilon is negative or a NaN.
	Unordered
)

// CompareEpsilon decides whether y and z are within epsilon e of each
// other, scaled by their magnitude. With similar set one value in the
// neighborhood of the other suffices (y ~ z, used by FCMPE and FUNE);
// otherwise each must lie in the neighborhood of the other (y ≈ z, used
// by FEQLE).
func CompareEpsilon(y, z, e uint64, similar bool) Neighborhood {
	fe := unpack(e)
	if fe.neg {
		return Unordered
	}
	switch fe.kind {
	case kindNaN:
		return Unordered
	case kindInf:
		fe.e = 10000
	}

	fy, fz := unpack(y), unpack(z)
	switch {
	case fy.kind == kindNaN || fz.kind == kindNaN:
		return Unordered
	case fy.kind == kindInf && fz.kind == kindInf:
		if fy.neg == fz.neg || fe.e >= 1023 {
			return Near
		}
		return Apart
	case fy.kind == kindInf || fz.kind == kindInf:
		if similar && fe.e >= 1022 {
			return Near
		}
		return Apart
	case fy.kind == kindZero && fz.kind == kindZero:
		return Near
	case (fy.kind == kindZero || fz.kind == kindZero) && !similar:
		return Apart
	}

	// Subnormals compare by their raw fraction.
	if fy.e < 0 && fy.kind != kindZero {
		fy.f, fy.e = y<<2, 0
	}
	if fz.e < 0 && fz.kind != kindZero {
		fz.f, fz.e = z<<2, 0
	}

	if fy.e < fz.e || (fy.e == fz.e && fy.f < fz.f) {
		fy, fz = fz, fy
	}
	if fz.kind == kindZero {
		fz.e = fy.e
	}

	d := fy.e - fz.e
	if !similar {
		fe.e -= d
	}
	if fe.e >= 1023 {
		return Near
	}

	var diff, check uint64
	if d > 54 {
		check = fz.f
	} else {
		diff = fz.f >> uint(d)
		check = diff << uint(d)
	}
	if check != fz.f {
		if fe.e < 1020 {
			return Apart
		}
		if fy.neg != fz.neg {
			diff++
		}
	}
	if fy.neg == fz.neg {
		diff = fy.f - diff
	} else {
		diff = fy.f + diff
	}

	if diff == 0 {
		return Near
	}
	if fe.e < 968 {
		return Apart
	}

	if fe.e >= 1021 {
		fe.f <<= uint(fe.e - 1021)
	} else {
		fe.f >>= uint(1021 - fe.e)
	}
	if diff <= fe.f {
		return Near
	}
	return Apart
}
