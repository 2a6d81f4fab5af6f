// Package cache provides an optional data-cache latency model built on Akita
// cache components. The simulator's memory is word-addressed, so sizes and
// addresses here are in words, not bytes.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// SizeWords is the total capacity in words.
	SizeWords int
	// Associativity (number of ways).
	Associativity int
	// BlockWords is the cache line size in words.
	BlockWords int
	// HitLatency in cycles.
	HitLatency int
	// MissLatency in cycles (includes the backing memory access).
	MissLatency int
}

// DefaultConfig returns a small teaching-sized data cache.
func DefaultConfig() Config {
	return Config{
		SizeWords:     256,
		Associativity: 2,
		BlockWords:    4,
		HitLatency:    1,
		MissLatency:   10,
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles the access takes.
	Latency int
	// Evicted is true if a valid block was evicted.
	Evicted bool
	// EvictedAddr is the block-aligned address of the evicted block.
	EvictedAddr uint64
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns the hit rate as a percentage.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Cache models a data cache using the Akita cache directory for tag and
// replacement state. It tracks which blocks are resident and returns the
// latency of each access; data itself stays in the backing memory.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management.
	directory *akitacache.DirectoryImpl

	stats Statistics
}

// New creates a cache with the given configuration.
func New(config Config) *Cache {
	numSets := config.SizeWords / (config.Associativity * config.BlockWords)

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockWords,
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

// blockAddr returns the block-aligned address containing addr.
func (c *Cache) blockAddr(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockWords)) * uint64(c.config.BlockWords)
}

// Read performs a cache read access and returns its hit/miss latency.
func (c *Cache) Read(addr uint64) AccessResult {
	c.stats.Reads++
	return c.access(addr, false)
}

// Write performs a cache write access with write-allocate policy.
func (c *Cache) Write(addr uint64) AccessResult {
	c.stats.Writes++
	return c.access(addr, true)
}

// access looks up the block, updating LRU state on a hit and allocating a
// victim block on a miss.
func (c *Cache) access(addr uint64, isWrite bool) AccessResult {
	blockAddr := c.blockAddr(addr)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		if isWrite {
			block.IsDirty = true
		}
		return AccessResult{
			Hit:     true,
			Latency: c.config.HitLatency,
		}
	}

	c.stats.Misses++
	return c.handleMiss(blockAddr, isWrite)
}

// handleMiss allocates a block for blockAddr, evicting a victim if needed.
func (c *Cache) handleMiss(blockAddr uint64, isWrite bool) AccessResult {
	result := AccessResult{
		Hit:     false,
		Latency: c.config.MissLatency,
	}

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return result
	}

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag
		if victim.IsDirty {
			c.stats.Writebacks++
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = isWrite
	c.directory.Visit(victim)

	return result
}
