package mmu

import (
	"errors"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/mem/vm"

	"github.com/sarchlab/mmixsim/mem"
	"github.com/sarchlab/mmixsim/mem/cache"
	"github.com/sarchlab/mmixsim/mem/tc"
)

// PhysicalBit marks an address as physical. Such addresses bypass
// translation and are only reachable from privileged code.
const PhysicalBit = signBit

// DefaultPageShift selects 8KB pages.
const DefaultPageShift = 13

// Observer is notified of every translation-cache and statistics-cache
// access that has side effects.
type Observer interface {
	TranslationAccess(kind mem.AccessKind, hit bool)
	CacheAccess(kind mem.AccessKind, hit bool)
}

type nopObserver struct{}

func (nopObserver) TranslationAccess(mem.AccessKind, bool) {}
func (nopObserver) CacheAccess(mem.AccessKind, bool)       {}

// MMU is the memory management unit.
type MMU struct {
	phys     *mem.Physical
	resolver Resolver

	itc, dtc *tc.Cache
	ic, dc   *cache.Cache

	observer   Observer
	privileged func() bool
	logger     logr.Logger

	itcConfig, dtcConfig tc.Config
	icConfig, dcConfig   cache.Config
}

// Option is a functional option for configuring the MMU.
type Option func(*MMU)

// WithResolver sets the resolver consulted on translation cache misses.
func WithResolver(r Resolver) Option {
	return func(m *MMU) {
		m.resolver = r
	}
}

// WithITC sets the instruction translation cache geometry.
func WithITC(c tc.Config) Option {
	return func(m *MMU) {
		m.itcConfig = c
	}
}

// WithDTC sets the data translation cache geometry.
func WithDTC(c tc.Config) Option {
	return func(m *MMU) {
		m.dtcConfig = c
	}
}

// WithIC sets the instruction cache geometry.
func WithIC(c cache.Config) Option {
	return func(m *MMU) {
		m.icConfig = c
	}
}

// WithDC sets the data cache geometry.
func WithDC(c cache.Config) Option {
	return func(m *MMU) {
		m.dcConfig = c
	}
}

// WithObserver registers an observer of cache accesses.
func WithObserver(o Observer) Option {
	return func(m *MMU) {
		m.observer = o
	}
}

// WithPrivilege sets the predicate deciding whether physical addresses may
// be used.
func WithPrivilege(fn func() bool) Option {
	return func(m *MMU) {
		m.privileged = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(m *MMU) {
		m.logger = l
	}
}

// New creates an MMU over phys. Without a resolver, an empty PageMap with
// 8KB pages is used.
func New(phys *mem.Physical, opts ...Option) *MMU {
	m := &MMU{
		phys:      phys,
		observer:  nopObserver{},
		logger:    logr.Discard(),
		itcConfig: tc.DefaultConfig(),
		dtcConfig: tc.DefaultConfig(),
		icConfig:  cache.DefaultICConfig(),
		dcConfig:  cache.DefaultDCConfig(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.resolver == nil {
		m.resolver = NewPageMap(DefaultPageShift, phys.Size())
	}
	m.itc = tc.New(m.itcConfig)
	m.dtc = tc.New(m.dtcConfig)
	m.ic = cache.New(m.icConfig)
	m.dc = cache.New(m.dcConfig)
	m.attach(m.resolver)

	return m
}

func (m *MMU) attach(r Resolver) {
	if n, ok := r.(changeNotifier); ok {
		n.onChange(m.invalidatePage)
	}
}

func (m *MMU) invalidatePage(pid vm.PID, page uint64) {
	m.itc.Invalidate(pid, page)
	m.dtc.Invalidate(pid, page)
}

// Physical returns the physical memory.
func (m *MMU) Physical() *mem.Physical {
	return m.phys
}

// Resolver returns the active resolver.
func (m *MMU) Resolver() Resolver {
	return m.resolver
}

// SetResolver replaces the resolver and drops every cached translation.
func (m *MMU) SetResolver(r Resolver) {
	m.resolver = r
	m.attach(r)
	m.InvalidateAll()
}

func (m *MMU) tcFor(kind mem.AccessKind) *tc.Cache {
	if kind == mem.Fetch {
		return m.itc
	}
	return m.dtc
}

func (m *MMU) cacheFor(kind mem.AccessKind) *cache.Cache {
	if kind == mem.Fetch {
		return m.ic
	}
	return m.dc
}

// Translate returns the physical address of va for an access of kind,
// consulting and filling the matching translation cache.
func (m *MMU) Translate(va uint64, kind mem.AccessKind) (uint64, error) {
	return m.translate(va, kind, true, true)
}

// Peek translates va like Translate but leaves caches, counters and
// replacement order untouched.
func (m *MMU) Peek(va uint64, kind mem.AccessKind) (uint64, error) {
	return m.translate(va, kind, false, true)
}

func (m *MMU) translate(va uint64, kind mem.AccessKind, sideEffects, checkPerm bool) (uint64, error) {
	if va&PhysicalBit != 0 {
		if m.privileged != nil && !m.privileged() {
			return 0, &TranslationFault{Addr: va, Kind: kind, Err: ErrPrivileged}
		}
		return va &^ PhysicalBit, nil
	}

	space, err := m.resolver.Space()
	if err != nil {
		return 0, &TranslationFault{Addr: va, Kind: kind, Err: err}
	}

	page := va >> space.PageShift
	tcache := m.tcFor(kind)

	var (
		e   tc.Entry
		hit bool
	)
	if sideEffects {
		e, hit = tcache.Lookup(space.PID, page)
		m.observer.TranslationAccess(kind, hit)
	} else {
		e, hit = tcache.Peek(space.PID, page)
	}

	if !hit {
		mapping, err := m.resolver.Resolve(va, m.pageReader(sideEffects))
		if err != nil {
			var memFault *mem.Fault
			if errors.As(err, &memFault) {
				return 0, err
			}
			return 0, &TranslationFault{Addr: va, Kind: kind, Err: err}
		}

		e = tc.Entry{Page: page, PID: space.PID, Frame: mapping.Frame, Perm: mapping.Perm}
		if sideEffects {
			tcache.Insert(e)
			m.logger.V(2).Info("translation cache miss",
				"kind", kind.String(), "va", va, "frame", e.Frame, "perm", e.Perm.String())
		}
	}

	if checkPerm && !e.Perm.Allows(kind) {
		return 0, &TranslationFault{Addr: va, Kind: kind, Err: ErrPermission}
	}

	return e.Frame | va&(uint64(1)<<space.PageShift-1), nil
}

// pageReader returns the reader used for page-table walks. With side
// effects the reads go through the data cache.
func (m *MMU) pageReader(sideEffects bool) PageReader {
	return func(paddr uint64) (uint64, error) {
		if sideEffects {
			m.observer.CacheAccess(mem.Read, m.dc.Read(paddr))
		}
		return m.phys.Read64(paddr)
	}
}

func (m *MMU) account(paddr uint64, kind mem.AccessKind) {
	c := m.cacheFor(kind)
	var hit bool
	if kind == mem.Write {
		hit = c.Write(paddr)
	} else {
		hit = c.Read(paddr)
	}
	m.observer.CacheAccess(kind, hit)
}

// Fetch reads the instruction tetra at va. The address is aligned down to
// a multiple of four.
func (m *MMU) Fetch(va uint64) (uint32, error) {
	v, err := m.access(va&^3, 4, mem.Fetch)
	return uint32(v), err
}

// Load reads a size-byte big-endian value at va aligned down to a
// multiple of size.
func (m *MMU) Load(va uint64, size int) (uint64, error) {
	return m.access(va&^uint64(size-1), size, mem.Read)
}

func (m *MMU) access(va uint64, size int, kind mem.AccessKind) (uint64, error) {
	paddr, err := m.Translate(va, kind)
	if err != nil {
		return 0, err
	}
	v, err := m.phys.Read(paddr, size)
	if err != nil {
		return 0, err
	}
	m.account(paddr, kind)
	return v, nil
}

// Store writes the low size bytes of value at va aligned down to a
// multiple of size.
func (m *MMU) Store(va uint64, size int, value uint64) error {
	va &^= uint64(size - 1)
	paddr, err := m.Translate(va, mem.Write)
	if err != nil {
		return err
	}
	if err := m.phys.Write(paddr, size, value); err != nil {
		return err
	}
	m.account(paddr, mem.Write)
	return nil
}

// Touch translates va and records a cache access without moving data.
// It serves the prefetch instructions.
func (m *MMU) Touch(va uint64, kind mem.AccessKind) error {
	paddr, err := m.Translate(va, kind)
	if err != nil {
		return err
	}
	m.account(paddr, kind)
	return nil
}

// SyncData writes back the data cache line holding va. With radical set
// the line is also dropped.
func (m *MMU) SyncData(va uint64, radical bool) error {
	paddr, err := m.Translate(va, mem.Write)
	if err != nil {
		return err
	}
	m.dc.Flush(paddr)
	if radical {
		m.dc.Invalidate(paddr)
	}
	return nil
}

// SyncInstr drops the instruction cache line holding va and writes back
// (or, with radical set, drops) the matching data cache line.
func (m *MMU) SyncInstr(va uint64, radical bool) error {
	paddr, err := m.Translate(va, mem.Write)
	if err != nil {
		return err
	}
	m.ic.Invalidate(paddr)
	if radical {
		m.dc.Invalidate(paddr)
	} else {
		m.dc.Flush(paddr)
	}
	return nil
}

// ReadBytes copies memory at va into buf, translating page by page
// without side effects. Page permissions are not checked.
func (m *MMU) ReadBytes(va uint64, buf []byte) error {
	return m.eachChunk(va, len(buf), mem.Read, func(paddr uint64, lo, hi int) error {
		return m.phys.ReadBytes(paddr, buf[lo:hi])
	})
}

// WriteBytes copies data to va, translating page by page without side
// effects. Page permissions are not checked.
func (m *MMU) WriteBytes(va uint64, data []byte) error {
	return m.eachChunk(va, len(data), mem.Write, func(paddr uint64, lo, hi int) error {
		return m.phys.WriteBytes(paddr, data[lo:hi])
	})
}

func (m *MMU) eachChunk(va uint64, n int, kind mem.AccessKind, fn func(paddr uint64, lo, hi int) error) error {
	shift := uint(DefaultPageShift)
	if space, err := m.resolver.Space(); err == nil {
		shift = space.PageShift
	}
	pageSize := uint64(1) << shift

	for done := 0; done < n; {
		a := va + uint64(done)
		paddr, err := m.translate(a, kind, false, false)
		if err != nil {
			return err
		}
		chunk := min(int(pageSize-a&(pageSize-1)), n-done)
		if err := fn(paddr, done, done+chunk); err != nil {
			return err
		}
		done += chunk
	}
	return nil
}

// CacheStats returns the counters of the instruction cache for
// mem.Fetch and of the data cache otherwise.
func (m *MMU) CacheStats(kind mem.AccessKind) cache.Statistics {
	return m.cacheFor(kind).Stats()
}

// CacheReset empties both statistics caches and zeroes their counters.
func (m *MMU) CacheReset() {
	m.ic.Reset()
	m.dc.Reset()
}

// Cache returns the instruction cache for mem.Fetch and the data cache
// otherwise.
func (m *MMU) Cache(kind mem.AccessKind) *cache.Cache {
	return m.cacheFor(kind)
}

// TCStats returns the counters of the ITC for mem.Fetch and of the DTC
// otherwise.
func (m *MMU) TCStats(kind mem.AccessKind) tc.Statistics {
	return m.tcFor(kind).Stats()
}

// TCEntries returns the valid entries of the ITC for mem.Fetch and of the
// DTC otherwise.
func (m *MMU) TCEntries(kind mem.AccessKind) []tc.Entry {
	return m.tcFor(kind).Entries()
}

// CachedTranslation returns the ITC entry for mem.Fetch, or the DTC entry
// otherwise, covering va. Caches and counters are left untouched.
func (m *MMU) CachedTranslation(va uint64, kind mem.AccessKind) (tc.Entry, bool) {
	if va&PhysicalBit != 0 {
		return tc.Entry{}, false
	}
	space, err := m.resolver.Space()
	if err != nil {
		return tc.Entry{}, false
	}
	return m.tcFor(kind).Peek(space.PID, va>>space.PageShift)
}

// UpdateTranslation looks up the translation key in both translation
// caches, as LDVTS does. The key holds the virtual page address, the
// process number in bits 3..12 and new permissions in bits 0..2. A cached
// entry gets the new permissions, or is dropped when they are empty. The
// result is 2 when the ITC held the key plus 1 when the DTC did.
func (m *MMU) UpdateTranslation(key uint64) (uint64, error) {
	space, err := m.resolver.Space()
	if err != nil {
		return 0, err
	}

	page := (key &^ PhysicalBit) >> space.PageShift
	pid := vm.PID((key >> 3) & 0x3FF)
	perm := mem.Perm(key) & mem.PermRWX

	var status uint64
	if m.itc.Update(pid, page, perm) {
		status |= 2
	}
	if m.dtc.Update(pid, page, perm) {
		status |= 1
	}
	m.logger.V(2).Info("translation status", "key", key, "status", status)
	return status, nil
}

// InvalidateAll drops every entry of both translation caches.
func (m *MMU) InvalidateAll() {
	m.itc.InvalidateAll()
	m.dtc.InvalidateAll()
}

// Reset empties all four caches and zeroes their counters.
func (m *MMU) Reset() {
	m.itc.Reset()
	m.dtc.Reset()
	m.CacheReset()
}
