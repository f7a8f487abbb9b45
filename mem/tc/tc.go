// Package tc implements the translation caches (ITC and DTC) of the
// simulated machine.
//
// A translation cache holds recently resolved virtual page to physical
// frame mappings. Entries are keyed by page number and process number and
// are replaced least-recently-used within a set, using an Akita cache
// directory for tag and replacement state.
package tc

import (
	"sort"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
	"github.com/sarchlab/akita/v4/mem/vm"

	"github.com/sarchlab/mmixsim/mem"
)

// Config holds translation cache geometry.
type Config struct {
	Sets int `json:"sets" yaml:"sets"`
	Ways int `json:"ways" yaml:"ways"`
}

// DefaultConfig returns the default geometry: 64 entries, 4-way.
func DefaultConfig() Config {
	return Config{Sets: 16, Ways: 4}
}

// Capacity returns the number of entries.
func (c Config) Capacity() int {
	return c.Sets * c.Ways
}

// Entry is one cached translation.
type Entry struct {
	// Page is the virtual page number, including the segment bits.
	Page uint64
	// PID is the process number the translation belongs to.
	PID vm.PID
	// Frame is the physical address of the page.
	Frame uint64
	// Perm holds the access rights of the page.
	Perm mem.Perm
}

// Statistics holds translation cache counters.
type Statistics struct {
	Hits          uint64
	Misses        uint64
	Insertions    uint64
	Evictions     uint64
	Invalidations uint64
}

// Cache is a set-associative translation cache.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl

	// Translations indexed by (setID * ways + wayID).
	slots []Entry

	stats Statistics
}

// New creates a translation cache.
func New(config Config) *Cache {
	return &Cache{
		config: config,
		// One tag per page: the block size of the directory is 1 and the
		// page number itself is the address.
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Ways,
			1,
			akitacache.NewLRUVictimFinder(),
		),
		slots: make([]Entry, config.Capacity()),
	}
}

// Config returns the geometry.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns the counters.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears the counters.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) slot(block *akitacache.Block) *Entry {
	return &c.slots[block.SetID*c.config.Ways+block.WayID]
}

// Lookup returns the cached translation of page for pid and records a hit
// or miss.
func (c *Cache) Lookup(pid vm.PID, page uint64) (Entry, bool) {
	block := c.directory.Lookup(pid, page)
	if block == nil {
		c.stats.Misses++
		return Entry{}, false
	}

	c.stats.Hits++
	c.directory.Visit(block)
	return *c.slot(block), true
}

// Peek returns the cached translation without touching counters or
// replacement order.
func (c *Cache) Peek(pid vm.PID, page uint64) (Entry, bool) {
	block := c.directory.Lookup(pid, page)
	if block == nil {
		return Entry{}, false
	}
	return *c.slot(block), true
}

// Insert caches e, replacing an existing entry for the same page or the
// least recently used entry of its set.
func (c *Cache) Insert(e Entry) {
	block := c.directory.Lookup(e.PID, e.Page)
	if block == nil {
		block = c.directory.FindVictim(e.Page)
		if block == nil {
			return
		}
		if block.IsValid {
			c.stats.Evictions++
		}
	}

	block.Tag = e.Page
	block.PID = e.PID
	block.IsValid = true
	*c.slot(block) = e

	c.stats.Insertions++
	c.directory.Visit(block)
}

// Invalidate drops the entry for page, if any.
func (c *Cache) Invalidate(pid vm.PID, page uint64) {
	block := c.directory.Lookup(pid, page)
	if block == nil {
		return
	}
	block.IsValid = false
	*c.slot(block) = Entry{}
	c.stats.Invalidations++
}

// Update sets the permissions of the entry for page to perm, dropping the
// entry when perm is empty. It reports whether the entry was present.
func (c *Cache) Update(pid vm.PID, page uint64, perm mem.Perm) bool {
	block := c.directory.Lookup(pid, page)
	if block == nil {
		return false
	}
	if perm == 0 {
		block.IsValid = false
		*c.slot(block) = Entry{}
		c.stats.Invalidations++
		return true
	}
	c.slot(block).Perm = perm
	return true
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				block.IsValid = false
				*c.slot(block) = Entry{}
				c.stats.Invalidations++
			}
		}
	}
}

// Len returns the number of valid entries.
func (c *Cache) Len() int {
	n := 0
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				n++
			}
		}
	}
	return n
}

// Entries returns the valid entries ordered by PID and page.
func (c *Cache) Entries() []Entry {
	var entries []Entry
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				entries = append(entries, *c.slot(block))
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PID != entries[j].PID {
			return entries[i].PID < entries[j].PID
		}
		return entries[i].Page < entries[j].Page
	})
	return entries
}

// Reset drops every entry and clears the counters.
func (c *Cache) Reset() {
	c.directory.Reset()
	clear(c.slots)
	c.stats = Statistics{}
}
