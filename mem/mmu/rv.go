package mmu

import (
	"github.com/sarchlab/akita/v4/mem/vm"

	"github.com/sarchlab/mmixsim/mem"
)

const signBit = uint64(1) << 63

// RV is the unpacked virtual translation register.
type RV struct {
	// B holds the segment boundaries b0..b4; b0 is always zero.
	B [5]uint
	// S is log2 of the page size.
	S uint
	// N is the process number.
	N uint16
	// R is the physical address of the root page table.
	R uint64
	// F selects software translation when 1.
	F uint8
}

// UnpackRV decodes rv. It reports false when the page size is out of
// range or the function field is unknown.
func UnpackRV(rv uint64) (RV, bool) {
	var v RV
	for i := 0; i < 4; i++ {
		v.B[i+1] = uint((rv >> (60 - i*4)) & 0xF)
	}
	v.S = uint((rv >> 40) & 0xFF)
	v.N = uint16((rv >> 3) & 0x3FF)
	v.R = rv & 0xFFFFFFE000
	v.F = uint8(rv & 0x7)
	return v, v.S >= 13 && v.S <= 48 && v.F <= 1
}

// PackRV encodes v.
func PackRV(v RV) uint64 {
	var rv uint64
	for i := 0; i < 4; i++ {
		rv |= uint64(v.B[i+1]&0xF) << (60 - i*4)
	}
	rv |= uint64(v.S&0xFF) << 40
	rv |= v.R & 0xFFFFFFE000
	rv |= uint64(v.N&0x3FF) << 3
	rv |= uint64(v.F & 0x7)
	return rv
}

// RVWalker resolves pages by walking the page tables described by the
// rV special register.
type RVWalker struct {
	rv func() uint64
}

// NewRVWalker creates a walker that reads rV through rv.
func NewRVWalker(rv func() uint64) *RVWalker {
	return &RVWalker{rv: rv}
}

// Space implements Resolver.
func (w *RVWalker) Space() (Space, error) {
	v, ok := UnpackRV(w.rv())
	if !ok {
		return Space{}, ErrInvalidRV
	}
	return Space{PageShift: v.S, PID: vm.PID(v.N)}, nil
}

// Resolve implements Resolver.
func (w *RVWalker) Resolve(va uint64, read PageReader) (Mapping, error) {
	v, ok := UnpackRV(w.rv())
	if !ok {
		return Mapping{}, ErrInvalidRV
	}
	if v.F == 1 {
		// Software translation: the hardware never walks.
		return Mapping{}, ErrUnmapped
	}

	segment := va >> 61
	addr := va & 0x1FFFFFFFFFFFFFFF
	pageNo := addr >> v.S

	lo, hi := v.B[segment], v.B[segment+1]
	if hi < lo || pageNo >= limitPages(hi-lo) {
		return Mapping{}, ErrSegmentBounds
	}

	// Number of page-table-pointer levels above the PTE.
	j := uint(0)
	for p := pageNo; p >= 1024; p /= 1024 {
		j++
	}

	c := (v.R >> 13) + uint64(lo) + uint64(j)
	for ; j > 0; j-- {
		ax := (pageNo >> (10 * j)) & 0x3FF
		ptp, err := read((c << 13) + (ax << 3))
		if err != nil {
			return Mapping{}, err
		}
		if ptp&signBit == 0 || uint16((ptp>>3)&0x3FF) != v.N {
			return Mapping{}, ErrBadPTP
		}
		c = (ptp &^ signBit) >> 13
	}

	a0 := pageNo & 0x3FF
	pte, err := read((c << 13) + (a0 << 3))
	if err != nil {
		return Mapping{}, err
	}
	if uint16((pte>>3)&0x3FF) != v.N {
		return Mapping{}, ErrBadPTE
	}

	frame := pte & 0x0000FFFFFFFFFFFF &^ ((uint64(1) << v.S) - 1)
	return Mapping{Frame: frame, Perm: mem.Perm(pte & 0x7)}, nil
}

// limitPages returns the number of pages a segment spanning d table levels
// can address.
func limitPages(d uint) uint64 {
	if d >= 7 {
		return ^uint64(0)
	}
	return uint64(1) << (10 * d)
}

// PTE builds a page table entry mapping to frame for process n.
func PTE(frame uint64, n uint16, perm mem.Perm) uint64 {
	return frame&0x0000FFFFFFFFE000 | uint64(n&0x3FF)<<3 | uint64(perm&mem.PermRWX)
}

// PTP builds a page table pointer to the table at addr for process n.
func PTP(addr uint64, n uint16) uint64 {
	return signBit | addr&0x7FFFFFFFFFFFE000 | uint64(n&0x3FF)<<3
}
