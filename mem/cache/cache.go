// Package cache models the instruction and data caches of the simulated
// machine using Akita cache components.
//
// The caches only observe the address stream. They hold no data and never
// affect the values returned by memory, but their hit and miss counters
// reflect what a real set-associative cache would see.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache geometry.
type Config struct {
	// Size in bytes
	Size int `json:"size" yaml:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity" yaml:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size" yaml:"block_size"`
}

// DefaultICConfig returns the default instruction cache geometry:
// 32KB, 4-way, 32B lines.
func DefaultICConfig() Config {
	return Config{
		Size:          32 * 1024,
		Associativity: 4,
		BlockSize:     32,
	}
}

// DefaultDCConfig returns the default data cache geometry:
// 32KB, 4-way, 32B lines.
func DefaultDCConfig() Config {
	return Config{
		Size:          32 * 1024,
		Associativity: 4,
		BlockSize:     32,
	}
}

// Sets returns the number of sets of the geometry.
func (c Config) Sets() int {
	if c.Associativity <= 0 || c.BlockSize <= 0 {
		return 0
	}
	return c.Size / (c.Associativity * c.BlockSize)
}

// Statistics holds cache access statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// Cache is a set-associative cache with LRU replacement that records hits
// and misses.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	stats Statistics
}

// New creates a new cache with the given configuration.
func New(config Config) *Cache {
	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			config.Sets(),
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	bs := uint64(c.config.BlockSize)
	return (addr / bs) * bs
}

// Read records a read of addr and reports whether it hit.
func (c *Cache) Read(addr uint64) bool {
	c.stats.Reads++
	return c.access(addr, false)
}

// Write records a write of addr and reports whether it hit. Writes
// allocate on miss and leave the line dirty.
func (c *Cache) Write(addr uint64) bool {
	c.stats.Writes++
	return c.access(addr, true)
}

func (c *Cache) access(addr uint64, isWrite bool) bool {
	blockAddr := c.blockAddr(addr)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block) // Update LRU
		if isWrite {
			block.IsDirty = true
		}
		return true
	}

	c.stats.Misses++
	c.handleMiss(blockAddr, isWrite)
	return false
}

// handleMiss allocates a line for blockAddr, evicting the LRU line of the
// set when every way is valid.
func (c *Cache) handleMiss(blockAddr uint64, isWrite bool) {
	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return
	}

	if victim.IsValid {
		c.stats.Evictions++
		if victim.IsDirty {
			c.stats.Writebacks++
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = isWrite

	c.directory.Visit(victim)
}

// Contains reports whether the line holding addr is cached, without
// touching statistics or LRU order.
func (c *Cache) Contains(addr uint64) bool {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	return block != nil && block.IsValid
}

// Line describes one valid cache line.
type Line struct {
	Addr  uint64
	Set   int
	Way   int
	Dirty bool
}

// Line returns the line holding addr, without touching statistics or LRU
// order.
func (c *Cache) Line(addr uint64) (Line, bool) {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block == nil || !block.IsValid {
		return Line{}, false
	}
	return Line{Addr: block.Tag, Set: block.SetID, Way: block.WayID, Dirty: block.IsDirty}, true
}

// Invalidate marks a cache line as invalid without writeback.
func (c *Cache) Invalidate(addr uint64) {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush writes back the line holding addr if it is dirty. The line stays
// cached.
func (c *Cache) Flush(addr uint64) {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid && block.IsDirty {
		c.stats.Writebacks++
		block.IsDirty = false
	}
}

// FlushAll writes back all dirty lines and invalidates every line.
func (c *Cache) FlushAll() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// ValidLines returns the number of valid lines.
func (c *Cache) ValidLines() int {
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

// Reset invalidates all cache lines without writeback and clears
// statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
