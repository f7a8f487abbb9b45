package fporacle

import (
	"fmt"

	"github.com/sarchlab/mmixsim/fpu"
)

// Canonical NaN encodings used after reconciliation.
const (
	canonicalQuietNaN     uint64 = 0x7FF8000000000000
	canonicalSignalingNaN uint64 = 0x7FF4000000000000
)

func canonical(x uint64) uint64 {
	switch Classify(x) {
	case QuietNaN:
		return canonicalQuietNaN
	case SignalingNaN:
		return canonicalSignalingNaN
	}
	return x
}

// ReconcileNaN normalizes the simulator result and the host result of the
// same operation so that NaNs compare by class only. Non-NaN values are
// returned unchanged and must then match bit for bit.
func ReconcileNaN(sim, host uint64) (uint64, uint64) {
	return canonical(sim), canonical(host)
}

// Verdict is the outcome of one differential check.
type Verdict struct {
	Op   Op
	Mode fpu.RoundingMode
	Y, Z uint64
	Sim  uint64
	Host uint64
	// NaN is set when either side produced a NaN.
	NaN   bool
	Match bool
}

func (v Verdict) String() string {
	status := "ok"
	if !v.Match {
		status = "MISMATCH"
	}
	return fmt.Sprintf("%s %s y=#%016X z=#%016X sim=#%016X host=#%016X %s",
		v.Op, v.Mode, v.Y, v.Z, v.Sim, v.Host, status)
}

// Check compares an already computed simulator result against the host
// reference evaluated in the current host rounding mode.
func Check(op Op, y, z, sim uint64) Verdict {
	host := Reference(op, y, z)
	s, h := ReconcileNaN(sim, host)
	return Verdict{
		Op:    op,
		Y:     y,
		Z:     z,
		Sim:   sim,
		Host:  host,
		NaN:   IsNaN(sim) || IsNaN(host),
		Match: s == h,
	}
}

// MismatchError reports a failed check.
type MismatchError struct {
	Verdict Verdict
}

func (e *MismatchError) Error() string {
	return "floating-point mismatch: " + e.Verdict.String()
}

// CheckAllModes runs op on the simulator and the host under each of the
// four rounding modes and returns one verdict per mode. A mismatch is
// returned as a *MismatchError together with the verdicts gathered so far.
func CheckAllModes(op Op, y, z uint64) ([]Verdict, error) {
	var verdicts []Verdict
	err := ForEachRoundingMode(func(mode fpu.RoundingMode) error {
		v := Check(op, y, z, Simulate(op, y, z, mode))
		v.Mode = mode
		verdicts = append(verdicts, v)
		if !v.Match {
			return &MismatchError{Verdict: v}
		}
		return nil
	})
	return verdicts, err
}
