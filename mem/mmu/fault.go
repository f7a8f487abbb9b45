// Package mmu translates virtual addresses of the simulated machine to
// physical ones and performs sized memory accesses through the translation
// caches and the statistics caches.
package mmu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/mmixsim/mem"
)

// ErrTranslationFault is the sentinel wrapped by every *TranslationFault.
var ErrTranslationFault = errors.New("translation fault")

// Reasons a resolver can fail with.
var (
	ErrUnmapped      = errors.New("page not mapped")
	ErrInvalidRV     = errors.New("invalid rV")
	ErrSegmentBounds = errors.New("page outside segment")
	ErrBadPTP        = errors.New("invalid page table pointer")
	ErrBadPTE        = errors.New("invalid page table entry")
	ErrPermission    = errors.New("access not permitted")
	ErrPrivileged    = errors.New("privileged address")
)

// TranslationFault reports a virtual address that could not be
// translated for the requested access.
type TranslationFault struct {
	Addr uint64
	Kind mem.AccessKind
	Err  error
}

func (f *TranslationFault) Error() string {
	return fmt.Sprintf("translation fault: %s of #%016X: %v", f.Kind, f.Addr, f.Err)
}

// Unwrap returns both the sentinel and the reason.
func (f *TranslationFault) Unwrap() []error {
	return []error{ErrTranslationFault, f.Err}
}
