// Package mem provides the physical memory of the simulated machine.
package mem

import (
	"errors"
	"fmt"
)

// AccessKind identifies why memory is being accessed.
type AccessKind uint8

// Access kinds.
const (
	Fetch AccessKind = iota
	Read
	Write
)

// String returns the name of the access kind.
func (k AccessKind) String() string {
	switch k {
	case Fetch:
		return "fetch"
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return "unknown"
}

// Perm is a set of page permissions, laid out like the low bits of an MMIX
// page table entry.
type Perm uint8

// Page permissions.
const (
	PermExec  Perm = 1 << 0
	PermWrite Perm = 1 << 1
	PermRead  Perm = 1 << 2

	PermRWX = PermRead | PermWrite | PermExec
)

// Perm returns the permission an access of kind k requires.
func (k AccessKind) Perm() Perm {
	switch k {
	case Fetch:
		return PermExec
	case Write:
		return PermWrite
	}
	return PermRead
}

// Allows reports whether p grants an access of kind k.
func (p Perm) Allows(k AccessKind) bool {
	return p&k.Perm() != 0
}

// String renders p as "rwx" with dashes for missing permissions.
func (p Perm) String() string {
	b := []byte("---")
	if p&PermRead != 0 {
		b[0] = 'r'
	}
	if p&PermWrite != 0 {
		b[1] = 'w'
	}
	if p&PermExec != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// ErrMemoryFault is the sentinel wrapped by every *Fault.
var ErrMemoryFault = errors.New("memory fault")

// Fault reports an access to a physical address that does not exist.
type Fault struct {
	Addr uint64
	Kind AccessKind
}

func (f *Fault) Error() string {
	return fmt.Sprintf("memory fault: %s at physical #%X", f.Kind, f.Addr)
}

// Unwrap lets errors.Is match ErrMemoryFault.
func (f *Fault) Unwrap() error {
	return ErrMemoryFault
}
