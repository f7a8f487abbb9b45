package fporacle

import (
	"math"
	"math/big"

	"github.com/sarchlab/mmixsim/fpu"
)

// Op is an arithmetic operation the oracle can check.
type Op uint8

// Checked operations.
const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpSqrt
)

func (op Op) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	case OpSqrt:
		return "sqrt"
	}
	return "unknown"
}

// HostNaN is the NaN the reference produces for invalid operations. It
// differs from the simulator's standard NaN in sign, which is allowed.
const HostNaN uint64 = 0xFFF8000000000000

const minSubnormal uint64 = 1

// Simulate computes op with the simulator's arithmetic.
func Simulate(op Op, y, z uint64, mode fpu.RoundingMode) uint64 {
	var x uint64
	switch op {
	case OpAdd:
		x, _ = fpu.Add(y, z, mode)
	case OpSub:
		x, _ = fpu.Sub(y, z, mode)
	case OpMul:
		x, _ = fpu.Mul(y, z, mode)
	case OpDiv:
		x, _ = fpu.Div(y, z, mode)
	case OpSqrt:
		x, _ = fpu.Sqrt(z, mode)
	}
	return x
}

// Reference computes op on the host with arbitrary precision and rounds the
// result to binary64 using the current host rounding mode. For OpSqrt only
// z is used.
func Reference(op Op, y, z uint64) uint64 {
	mode := HostRoundingMode()

	if op == OpSqrt {
		return refSqrt(z, mode)
	}

	if IsNaN(y) {
		return y | fpu.QuietBit
	}
	if IsNaN(z) {
		return z | fpu.QuietBit
	}

	switch op {
	case OpAdd:
		return refAdd(y, z, mode)
	case OpSub:
		return refAdd(y, z^fpu.SignBit, mode)
	case OpMul:
		return refMul(y, z, mode)
	case OpDiv:
		return refDiv(y, z, mode)
	}
	return HostNaN
}

func toBig(x uint64) *big.Float {
	return new(big.Float).SetFloat64(math.Float64frombits(x))
}

func signedZero(neg bool) uint64 {
	return SetSign(0, neg)
}

func refAdd(y, z uint64, mode big.RoundingMode) uint64 {
	cy, cz := Classify(y), Classify(z)
	switch {
	case cy == Infinity && cz == Infinity:
		if IsNegative(y) != IsNegative(z) {
			return HostNaN
		}
		return y
	case cy == Infinity:
		return y
	case cz == Infinity:
		return z
	case cy == Zero && cz == Zero:
		ny, nz := IsNegative(y), IsNegative(z)
		return signedZero((ny && nz) || (ny != nz && mode == big.ToNegativeInf))
	case cy == Zero:
		return z
	case cz == Zero:
		return y
	}

	// 2200 bits hold any binary64 sum exactly.
	sum := new(big.Float).SetPrec(2200).Add(toBig(y), toBig(z))
	if sum.Sign() == 0 {
		return signedZero(mode == big.ToNegativeInf)
	}
	return roundToBinary64(sum, mode)
}

func refMul(y, z uint64, mode big.RoundingMode) uint64 {
	cy, cz := Classify(y), Classify(z)
	neg := IsNegative(y) != IsNegative(z)
	switch {
	case (cy == Zero && cz == Infinity) || (cy == Infinity && cz == Zero):
		return HostNaN
	case cy == Infinity || cz == Infinity:
		return SetSign(fpu.Infinity, neg)
	case cy == Zero || cz == Zero:
		return signedZero(neg)
	}

	prod := new(big.Float).SetPrec(128).Mul(toBig(y), toBig(z))
	return roundToBinary64(prod, mode)
}

func refDiv(y, z uint64, mode big.RoundingMode) uint64 {
	cy, cz := Classify(y), Classify(z)
	neg := IsNegative(y) != IsNegative(z)
	switch {
	case (cy == Zero && cz == Zero) || (cy == Infinity && cz == Infinity):
		return HostNaN
	case cy == Zero || cz == Infinity:
		return signedZero(neg)
	case cz == Zero || cy == Infinity:
		return SetSign(fpu.Infinity, neg)
	}

	// A truncated 256-bit quotient never sits on a binary64 rounding
	// boundary unless it is exact.
	quo := new(big.Float).SetPrec(256).SetMode(big.ToZero).Quo(toBig(y), toBig(z))
	return roundToBinary64(quo, mode)
}

func refSqrt(z uint64, mode big.RoundingMode) uint64 {
	switch Classify(z) {
	case QuietNaN, SignalingNaN:
		return z | fpu.QuietBit
	case Zero:
		return z
	}
	if IsNegative(z) {
		return HostNaN
	}
	if Classify(z) == Infinity {
		return z
	}

	bz := toBig(z)
	root := new(big.Float).SetPrec(256).Sqrt(bz)

	// Exact roots must not be rounded from an approximation.
	nearest := new(big.Float).SetPrec(53).Set(root)
	square := new(big.Float).SetPrec(256).Mul(nearest, nearest)
	if square.Cmp(bz) == 0 {
		f, _ := nearest.Float64()
		return math.Float64bits(f)
	}
	return roundToBinary64(root, mode)
}

// roundToBinary64 rounds a nonzero finite x to binary64 under mode,
// including gradual underflow and IEEE overflow.
func roundToBinary64(x *big.Float, mode big.RoundingMode) uint64 {
	neg := x.Signbit()
	exp := x.MantExp(nil) // |x| in [2^(exp-1), 2^exp)

	prec := 53
	if exp < -1021 {
		prec = exp + 1074
	}

	if prec <= 0 {
		return roundBelowSubnormal(x, prec, neg, mode)
	}

	r := new(big.Float).SetPrec(uint(prec)).SetMode(mode).Set(x)
	if r.MantExp(nil) > 1024 {
		return SetSign(overflowFor(neg, mode), neg)
	}

	f, _ := r.Float64()
	return math.Float64bits(f)
}

// roundBelowSubnormal handles |x| < 2^-1074.
func roundBelowSubnormal(x *big.Float, prec int, neg bool, mode big.RoundingMode) uint64 {
	var mag uint64
	switch mode {
	case big.ToNearestEven:
		half := new(big.Float).SetMantExp(big.NewFloat(1), -1075)
		abs := new(big.Float).Abs(x)
		if prec == 0 && abs.Cmp(half) > 0 {
			mag = minSubnormal
		}
	case big.ToPositiveInf:
		if !neg {
			mag = minSubnormal
		}
	case big.ToNegativeInf:
		if neg {
			mag = minSubnormal
		}
	}
	return SetSign(mag, neg)
}

func overflowFor(neg bool, mode big.RoundingMode) uint64 {
	switch mode {
	case big.ToZero:
		return fpu.MaxFloat
	case big.ToPositiveInf:
		if neg {
			return fpu.MaxFloat
		}
	case big.ToNegativeInf:
		if !neg {
			return fpu.MaxFloat
		}
	}
	return fpu.Infinity
}
