package fporacle

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/sarchlab/mmixsim/fpu"
)

// RoundingMode ties a simulator rounding mode to the host setting that
// produces the same results.
type RoundingMode struct {
	Sim  fpu.RoundingMode
	Host big.RoundingMode
	Name string
}

var roundingModes = [4]RoundingMode{
	{Sim: fpu.RoundNear, Host: big.ToNearestEven, Name: "round-to-nearest"},
	{Sim: fpu.RoundUp, Host: big.ToPositiveInf, Name: "round-up"},
	{Sim: fpu.RoundDown, Host: big.ToNegativeInf, Name: "round-down"},
	{Sim: fpu.RoundOff, Host: big.ToZero, Name: "round-toward-zero"},
}

// RoundingModes returns a copy of the rounding-mode table.
func RoundingModes() [4]RoundingMode {
	return roundingModes
}

// LookupMode returns the table entry for a simulator mode.
func LookupMode(m fpu.RoundingMode) (RoundingMode, bool) {
	for _, rm := range roundingModes {
		if rm.Sim == m {
			return rm, true
		}
	}
	return RoundingMode{}, false
}

// hostEnv is the process-wide rounding mode of the reference computation.
var hostEnv = struct {
	sync.Mutex
	mode big.RoundingMode
}{mode: big.ToNearestEven}

// HostRoundingMode returns the current host rounding mode. Outside of
// ForEachRoundingMode and WithHostRounding this is round-to-nearest-even.
func HostRoundingMode() big.RoundingMode {
	hostEnv.Lock()
	defer hostEnv.Unlock()
	return hostEnv.mode
}

func swapHostRoundingMode(m big.RoundingMode) big.RoundingMode {
	hostEnv.Lock()
	defer hostEnv.Unlock()
	prev := hostEnv.mode
	hostEnv.mode = m
	return prev
}

// WithHostRounding runs fn with the host rounding mode set to m and
// restores the previous mode when fn returns or panics.
func WithHostRounding(m big.RoundingMode, fn func() error) error {
	prev := swapHostRoundingMode(m)
	defer swapHostRoundingMode(prev)
	return fn()
}

// ForEachRoundingMode calls f once per table entry with the host set to the
// matching mode. It stops at the first error, which is returned annotated
// with the mode name. The host mode is restored in every case.
func ForEachRoundingMode(f func(fpu.RoundingMode) error) error {
	for _, rm := range roundingModes {
		err := WithHostRounding(rm.Host, func() error {
			return f(rm.Sim)
		})
		if err != nil {
			return fmt.Errorf("%s: %w", rm.Name, err)
		}
	}
	return nil
}
