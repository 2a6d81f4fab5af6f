package tomasulo

import (
	"fmt"

	"github.com/sarchlab/tomsim/insts"
)

// ROBEntry is one in-flight instruction in the reorder buffer. The entry's
// id doubles as the CDB tag: ids come from a monotonic counter and are never
// reused while the entry could still be referenced, so a stale broadcast
// after a flush matches nothing.
type ROBEntry struct {
	// ID is the slot id, stable while the entry is in the buffer.
	ID int

	// Op is the instruction's opcode.
	Op insts.Op

	// Destination register, when the instruction writes one.
	DestReg uint8
	HasDest bool

	// Value is the result to commit, set at writeback.
	Value int64

	// Ready reports that Value is valid and the entry may retire.
	Ready bool

	// Addr is the effective address of a memory instruction, valid once
	// AddrValid is set (during the instruction's first execution cycle).
	// Loads consult older stores' entries through these fields.
	Addr      int64
	AddrValid bool

	// Branch state, valid when Op is a conditional branch.
	PredictedTaken bool
	Resolved       bool
	Taken          bool
	Mispredicted   bool
	TargetIndex    int

	// Trap carries a trap detected during execution, surfaced at commit.
	Trap *Trap

	// Record is the dynamic instruction this entry belongs to.
	Record *InstrRecord
}

// ROB is the reorder buffer: a circular FIFO of in-flight instructions and
// the source of truth for speculative values. Instructions retire from the
// head in program order.
type ROB struct {
	entries []*ROBEntry
	head    int
	tail    int
	count   int
	nextID  int
}

// NewROB creates a reorder buffer with the given capacity.
func NewROB(size int) *ROB {
	return &ROB{
		entries: make([]*ROBEntry, size),
	}
}

// IsFull reports whether the buffer has no free slot.
func (b *ROB) IsFull() bool {
	return b.count == len(b.entries)
}

// IsEmpty reports whether the buffer holds no entries.
func (b *ROB) IsEmpty() bool {
	return b.count == 0
}

// Len returns the number of in-flight entries.
func (b *ROB) Len() int {
	return b.count
}

// Allocate appends an entry for record at the tail and returns it. It
// returns nil when the buffer is full (structural stall: the caller must
// also stall issue).
func (b *ROB) Allocate(record *InstrRecord) *ROBEntry {
	if b.IsFull() {
		return nil
	}

	inst := record.Inst
	entry := &ROBEntry{
		ID:     b.nextID,
		Op:     inst.Op,
		Record: record,
	}
	if rd, ok := inst.DestReg(); ok {
		entry.DestReg = rd
		entry.HasDest = true
	}

	b.entries[b.tail] = entry
	b.tail = (b.tail + 1) % len(b.entries)
	b.count++
	b.nextID++
	return entry
}

// Entry returns the live entry with the given id, or nil.
func (b *ROB) Entry(id int) *ROBEntry {
	for i, idx := 0, b.head; i < b.count; i, idx = i+1, (idx+1)%len(b.entries) {
		if e := b.entries[idx]; e != nil && e.ID == id {
			return e
		}
	}
	return nil
}

// Complete marks the entry with the given id ready and stores its value.
// It returns false when no live entry matches, which after a flush is the
// expected fate of a stale broadcast.
func (b *ROB) Complete(id int, value int64) bool {
	entry := b.Entry(id)
	if entry == nil {
		return false
	}
	entry.Value = value
	entry.Ready = true
	return true
}

// PeekHead returns the head entry without removing it, or nil when empty.
func (b *ROB) PeekHead() *ROBEntry {
	if b.IsEmpty() {
		return nil
	}
	return b.entries[b.head]
}

// RetireHead removes and returns the head entry iff it is ready.
func (b *ROB) RetireHead() *ROBEntry {
	entry := b.PeekHead()
	if entry == nil || !entry.Ready {
		return nil
	}
	b.entries[b.head] = nil
	b.head = (b.head + 1) % len(b.entries)
	b.count--
	return entry
}

// FlushAfter drops every entry strictly younger than id and returns the
// dropped entries for downstream cleanup (station reset, RAT repair).
func (b *ROB) FlushAfter(id int) []*ROBEntry {
	var flushed []*ROBEntry

	for !b.IsEmpty() {
		lastIdx := (b.tail - 1 + len(b.entries)) % len(b.entries)
		entry := b.entries[lastIdx]
		if entry == nil || entry.ID <= id {
			break
		}
		flushed = append(flushed, entry)
		b.entries[lastIdx] = nil
		b.tail = lastIdx
		b.count--
	}

	return flushed
}

// HasUnresolvedBranch reports whether any live entry is a conditional branch
// whose predicted path is not yet confirmed: either it has not resolved, or
// it resolved as mispredicted and still awaits its commit-time squash. Used
// to tag newly issued instructions as speculative.
func (b *ROB) HasUnresolvedBranch() bool {
	for i, idx := 0, b.head; i < b.count; i, idx = i+1, (idx+1)%len(b.entries) {
		if e := b.entries[idx]; e != nil && e.Op.IsBranch() && (!e.Resolved || e.Mispredicted) {
			return true
		}
	}
	return false
}

// OlderEntries returns the live entries strictly older than id, in program
// order. Loads use this to check address overlap against earlier stores.
func (b *ROB) OlderEntries(id int) []*ROBEntry {
	var older []*ROBEntry
	for i, idx := 0, b.head; i < b.count; i, idx = i+1, (idx+1)%len(b.entries) {
		e := b.entries[idx]
		if e == nil || e.ID >= id {
			break
		}
		older = append(older, e)
	}
	return older
}

// Entries returns the live entries in program order, oldest first.
func (b *ROB) Entries() []*ROBEntry {
	out := make([]*ROBEntry, 0, b.count)
	for i, idx := 0, b.head; i < b.count; i, idx = i+1, (idx+1)%len(b.entries) {
		if e := b.entries[idx]; e != nil {
			out = append(out, e)
		}
	}
	return out
}

// String renders the buffer occupancy for diagnostics.
func (b *ROB) String() string {
	return fmt.Sprintf("<ROB head=%d tail=%d count=%d/%d>",
		b.head, b.tail, b.count, len(b.entries))
}
