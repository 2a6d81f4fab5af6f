package tomasulo

import "sort"

// CDB models the common data bus: the broadcast channel carrying (tag, value)
// pairs from completed operations to the reservation stations and the ROB.
// At most Width broadcasts happen per cycle; contenders that lose arbitration
// keep their completion cycle and retry.
type CDB struct {
	width   int
	pending []*RSEntry
}

// NewCDB creates a bus with the given number of broadcast slots per cycle.
func NewCDB(width int) *CDB {
	return &CDB{width: width}
}

// Width returns the number of broadcast slots per cycle.
func (c *CDB) Width() int {
	return c.width
}

// Push enqueues a completed entry for broadcast.
func (c *CDB) Push(e *RSEntry) {
	c.pending = append(c.pending, e)
}

// Pending returns the number of completions awaiting the bus.
func (c *CDB) Pending() int {
	return len(c.pending)
}

// Arbitrate removes and returns this cycle's winners: up to Width entries
// ordered by kind priority (Load > ALU > Mul/Div > Branch), then oldest
// program id.
func (c *CDB) Arbitrate() []*RSEntry {
	if len(c.pending) == 0 {
		return nil
	}

	sort.Slice(c.pending, func(i, j int) bool {
		a, b := c.pending[i], c.pending[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.InstrID < b.InstrID
	})

	n := c.width
	if n > len(c.pending) {
		n = len(c.pending)
	}
	winners := c.pending[:n]
	c.pending = append([]*RSEntry(nil), c.pending[n:]...)
	return winners
}

// FlushTags drops pending completions tied to squashed ROB slots so they
// never broadcast.
func (c *CDB) FlushTags(flushed map[int]bool) {
	kept := c.pending[:0]
	for _, e := range c.pending {
		if !flushed[e.ROBTag] {
			kept = append(kept, e)
		}
	}
	c.pending = kept
}
