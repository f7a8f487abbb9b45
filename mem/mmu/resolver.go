package mmu

import (
	"fmt"
	"sort"

	"github.com/sarchlab/akita/v4/mem/vm"

	"github.com/sarchlab/mmixsim/mem"
)

// Mapping is the physical frame and permissions of one virtual page.
type Mapping struct {
	Frame uint64
	Perm  mem.Perm
}

// Space describes the address space currently in effect.
type Space struct {
	// PageShift is log2 of the page size.
	PageShift uint
	// PID is the process number translations are tagged with.
	PID vm.PID
}

// PageReader reads an octa of physical memory during a page-table walk.
type PageReader func(paddr uint64) (uint64, error)

// Resolver performs the full translation of a page on a translation cache
// miss.
type Resolver interface {
	// Space returns the current address-space parameters.
	Space() (Space, error)
	// Resolve returns the mapping of the page holding va.
	Resolve(va uint64, read PageReader) (Mapping, error)
}

// changeNotifier is implemented by resolvers whose mappings change behind
// the MMU's back.
type changeNotifier interface {
	onChange(fn func(pid vm.PID, page uint64))
}

// PageMap is a resolver backed by an explicit table of virtual pages.
// Frames for new pages are handed out from a bump allocator.
type PageMap struct {
	shift uint
	pages map[uint64]Mapping

	nextFrame  uint64
	frameLimit uint64

	listeners []func(pid vm.PID, page uint64)
}

// NewPageMap creates an empty page map with pages of 2^shift bytes.
// Frames are allocated from physical addresses [0, limit).
func NewPageMap(shift uint, limit uint64) *PageMap {
	return &PageMap{
		shift:      shift,
		pages:      make(map[uint64]Mapping),
		frameLimit: limit,
	}
}

// PageSize returns the page size in bytes.
func (pm *PageMap) PageSize() uint64 {
	return 1 << pm.shift
}

// Page returns the page number of va.
func (pm *PageMap) Page(va uint64) uint64 {
	return va >> pm.shift
}

// SetFrameBase moves the frame allocator. Frames below base are left to
// explicit Map calls.
func (pm *PageMap) SetFrameBase(base uint64) {
	size := pm.PageSize()
	pm.nextFrame = (base + size - 1) &^ (size - 1)
}

func (pm *PageMap) onChange(fn func(pid vm.PID, page uint64)) {
	pm.listeners = append(pm.listeners, fn)
}

func (pm *PageMap) changed(page uint64) {
	for _, fn := range pm.listeners {
		fn(0, page)
	}
}

// Map maps the page holding va to frame with perm, replacing any
// existing mapping.
func (pm *PageMap) Map(va, frame uint64, perm mem.Perm) {
	page := pm.Page(va)
	pm.pages[page] = Mapping{Frame: frame &^ (pm.PageSize() - 1), Perm: perm}
	pm.changed(page)
}

// Unmap removes the mapping of the page holding va.
func (pm *PageMap) Unmap(va uint64) {
	page := pm.Page(va)
	if _, ok := pm.pages[page]; !ok {
		return
	}
	delete(pm.pages, page)
	pm.changed(page)
}

// Protect changes the permissions of a mapped page.
func (pm *PageMap) Protect(va uint64, perm mem.Perm) error {
	page := pm.Page(va)
	m, ok := pm.pages[page]
	if !ok {
		return fmt.Errorf("protect #%X: %w", va, ErrUnmapped)
	}
	m.Perm = perm
	pm.pages[page] = m
	pm.changed(page)
	return nil
}

// Ensure returns the mapping of the page holding va, allocating a fresh
// frame with perm when the page is unmapped. An existing mapping gains
// perm in addition to its own permissions.
func (pm *PageMap) Ensure(va uint64, perm mem.Perm) (Mapping, error) {
	page := pm.Page(va)
	if m, ok := pm.pages[page]; ok {
		if m.Perm&perm != perm {
			m.Perm |= perm
			pm.pages[page] = m
			pm.changed(page)
		}
		return m, nil
	}

	size := pm.PageSize()
	if pm.nextFrame+size > pm.frameLimit || pm.nextFrame+size < pm.nextFrame {
		return Mapping{}, fmt.Errorf("map #%X: out of physical frames", va)
	}
	m := Mapping{Frame: pm.nextFrame, Perm: perm}
	pm.nextFrame += size
	pm.pages[page] = m
	pm.changed(page)
	return m, nil
}

// Lookup returns the mapping of the page holding va.
func (pm *PageMap) Lookup(va uint64) (Mapping, bool) {
	m, ok := pm.pages[pm.Page(va)]
	return m, ok
}

// Pages returns the mapped page numbers in ascending order.
func (pm *PageMap) Pages() []uint64 {
	pages := make([]uint64, 0, len(pm.pages))
	for p := range pm.pages {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
	return pages
}

// Clear removes every mapping and rewinds the frame allocator to base.
func (pm *PageMap) Clear(base uint64) {
	for page := range pm.pages {
		delete(pm.pages, page)
		pm.changed(page)
	}
	pm.SetFrameBase(base)
}

// Space implements Resolver.
func (pm *PageMap) Space() (Space, error) {
	return Space{PageShift: pm.shift}, nil
}

// Resolve implements Resolver.
func (pm *PageMap) Resolve(va uint64, _ PageReader) (Mapping, error) {
	m, ok := pm.Lookup(va)
	if !ok {
		return Mapping{}, ErrUnmapped
	}
	return m, nil
}
