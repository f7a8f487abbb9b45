package emu

import "strings"

// Special identifies one of the 32 special registers.
type Special uint8

// Special registers in hardware order.
const (
	RB  Special = iota // bootstrap register (trip)
	RD                 // dividend register
	RE                 // epsilon register
	RH                 // himult register
	RJ                 // return-jump register
	RM                 // multiplex mask register
	RR                 // remainder register
	RBB                // bootstrap register (trap)
	RC                 // cycle counter
	RN                 // serial number
	RO                 // register stack offset
	RS                 // register stack pointer
	RI                 // interval counter
	RT                 // trap address register
	RTT                // dynamic trap address register
	RK                 // interrupt mask register
	RQ                 // interrupt request register
	RU                 // usage counter
	RV                 // virtual translation register
	RG                 // global threshold register
	RL                 // local threshold register
	RA                 // arithmetic status register
	RF                 // failure location register
	RP                 // prediction register
	RW                 // where-interrupted register (trip)
	RX                 // execution register (trip)
	RY                 // Y operand (trip)
	RZ                 // Z operand (trip)
	RWW                // where-interrupted register (trap)
	RXX                // execution register (trap)
	RYY                // Y operand (trap)
	RZZ                // Z operand (trap)

	NumSpecials = int(RZZ) + 1
)

var specialNames = [NumSpecials]string{
	"rB", "rD", "rE", "rH", "rJ", "rM", "rR", "rBB",
	"rC", "rN", "rO", "rS", "rI", "rT", "rTT", "rK",
	"rQ", "rU", "rV", "rG", "rL", "rA", "rF", "rP",
	"rW", "rX", "rY", "rZ", "rWW", "rXX", "rYY", "rZZ",
}

// String returns the assembler name of the register, e.g. "rA".
func (s Special) String() string {
	if int(s) < NumSpecials {
		return specialNames[s]
	}
	return "r?"
}

// ParseSpecial looks up a special register by name. The match ignores
// case after the leading "r".
func ParseSpecial(name string) (Special, bool) {
	for i, n := range specialNames {
		if strings.EqualFold(n, name) {
			return Special(i), true
		}
	}
	return 0, false
}

// Event bits of rA, in the order of trip priority from lowest to highest.
const (
	EventX uint64 = 1 << iota // floating inexact
	EventZ                    // floating division by zero
	EventU                    // floating underflow
	EventO                    // floating overflow
	EventI                    // floating invalid
	EventW                    // float-to-fix overflow
	EventV                    // integer overflow
	EventD                    // integer divide check
)

// Program bits of rQ raised by dynamic traps.
const (
	QPrivilegedAccess uint64 = 1 << 32 // p
	QBreaksRules      uint64 = 1 << 34 // b
	QPrivilegedInstr  uint64 = 1 << 35 // k
	QNonexistent      uint64 = 1 << 36 // n
	QExec             uint64 = 1 << 37 // x
	QWrite            uint64 = 1 << 38 // w
	QRead             uint64 = 1 << 39 // r
)

// tripHandler returns the handler address of the highest-priority event
// in events: #10 for D down to #80 for X.
func tripHandler(events uint64) uint64 {
	for bit := 7; bit >= 0; bit-- {
		if events&(1<<bit) != 0 {
			return uint64(16 * (8 - bit))
		}
	}
	return 0
}
