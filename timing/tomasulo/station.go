package tomasulo

import (
	"fmt"
	"sort"

	"github.com/sarchlab/tomsim/insts"
)

// StationKind identifies a reservation station pool. The enum order is the
// CDB arbitration priority: Load > ALU > Mul/Div > Branch. Stores never
// arbitrate for the bus.
type StationKind uint8

// Station kinds.
const (
	StationLoad StationKind = iota
	StationALU
	StationMulDiv
	StationBranch
	StationStore
)

// stationKinds is the fixed iteration order over pools.
var stationKinds = [...]StationKind{
	StationLoad, StationALU, StationMulDiv, StationBranch, StationStore,
}

// String returns the pool name.
func (k StationKind) String() string {
	switch k {
	case StationLoad:
		return "Load"
	case StationALU:
		return "ALU"
	case StationMulDiv:
		return "MulDiv"
	case StationBranch:
		return "Branch"
	case StationStore:
		return "Store"
	default:
		return fmt.Sprintf("StationKind(%d)", uint8(k))
	}
}

// KindForOp maps an opcode to the reservation station pool that serves it.
// Direct jumps and NOP share the branch pool.
func KindForOp(op insts.Op) StationKind {
	switch op {
	case insts.OpADD, insts.OpSUB, insts.OpADDI:
		return StationALU
	case insts.OpMUL, insts.OpDIV:
		return StationMulDiv
	case insts.OpLW:
		return StationLoad
	case insts.OpSW:
		return StationStore
	default:
		return StationBranch
	}
}

// RSEntry is one reservation station entry. Operand slots follow the classic
// naming: Vj/Vk hold values once available, Qj/Qk hold the producing ROB slot
// id while waiting (NoTag once satisfied).
type RSEntry struct {
	// Name identifies the entry for diagnostics (e.g. "ALU2").
	Name string

	// Kind is the pool the entry belongs to.
	Kind StationKind

	Busy bool
	Op   insts.Op

	// Operands.
	Vj, Vk int64
	Qj, Qk int

	// A holds the immediate of a memory instruction at issue and the
	// effective address once computed during execution.
	A         int64
	AddrValid bool

	// ROBTag is the ROB slot this entry feeds.
	ROBTag int

	// InstrID is the dynamic program id, used for oldest-first selection.
	InstrID int

	// Record is the dynamic instruction back-reference.
	Record *InstrRecord

	// Execution state.
	Executing       bool
	Done            bool
	RemainingCycles int
	Result          int64
	Trap            *Trap

	// ReadyCycle is the cycle the last missing operand arrived. Dispatch
	// requires ReadyCycle < current cycle so a value broadcast this cycle
	// is consumed no earlier than the next.
	ReadyCycle int
}

// OperandsReady reports whether both operands are available.
func (e *RSEntry) OperandsReady() bool {
	return e.Qj == NoTag && e.Qk == NoTag
}

// Clear releases the entry.
func (e *RSEntry) Clear() {
	name, kind := e.Name, e.Kind
	*e = RSEntry{Name: name, Kind: kind, Qj: NoTag, Qk: NoTag, ROBTag: NoTag}
}

// String renders the entry for diagnostics.
func (e *RSEntry) String() string {
	if !e.Busy {
		return fmt.Sprintf("<RS %s free>", e.Name)
	}
	return fmt.Sprintf("<RS %s op=%v Vj=%d Vk=%d Qj=%d Qk=%d A=%d rob=%d done=%v>",
		e.Name, e.Op, e.Vj, e.Vk, e.Qj, e.Qk, e.A, e.ROBTag, e.Done)
}

// Station is a typed pool of reservation station entries.
type Station struct {
	Kind    StationKind
	entries []*RSEntry
}

// NewStation creates a pool of the given kind and size.
func NewStation(kind StationKind, size int) *Station {
	s := &Station{Kind: kind}
	for i := 0; i < size; i++ {
		e := &RSEntry{Name: fmt.Sprintf("%v%d", kind, i+1), Kind: kind}
		e.Clear()
		s.entries = append(s.entries, e)
	}
	return s
}

// HasFree reports whether the pool has a free entry.
func (s *Station) HasFree() bool {
	for _, e := range s.entries {
		if !e.Busy {
			return true
		}
	}
	return false
}

// Allocate returns a free entry marked busy, or nil when the pool is full
// (structural stall).
func (s *Station) Allocate() *RSEntry {
	for _, e := range s.entries {
		if !e.Busy {
			e.Clear()
			e.Busy = true
			return e
		}
	}
	return nil
}

// UpdateFromCDB fills every operand waiting on tag with value, clearing the
// satisfied Q field and stamping the cycle the entry became ready. The tag is
// compared per field before mutation so one broadcast cannot double-match.
func (s *Station) UpdateFromCDB(tag int, value int64, cycle int) {
	for _, e := range s.entries {
		if !e.Busy {
			continue
		}
		if e.Qj == tag {
			e.Vj = value
			e.Qj = NoTag
			e.ReadyCycle = cycle
		}
		if e.Qk == tag {
			e.Vk = value
			e.Qk = NoTag
			e.ReadyCycle = cycle
		}
	}
}

// ReadyEntries returns the busy entries whose operands were complete before
// cycle and that have not started executing, oldest program id first.
func (s *Station) ReadyEntries(cycle int) []*RSEntry {
	var ready []*RSEntry
	for _, e := range s.entries {
		if e.Busy && !e.Executing && !e.Done && e.OperandsReady() && e.ReadyCycle < cycle {
			ready = append(ready, e)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return ready[i].InstrID < ready[j].InstrID
	})
	return ready
}

// FlushTags clears every entry whose ROB slot was squashed.
func (s *Station) FlushTags(flushed map[int]bool) {
	for _, e := range s.entries {
		if e.Busy && flushed[e.ROBTag] {
			e.Clear()
		}
	}
}

// AllFree reports whether no entry is busy.
func (s *Station) AllFree() bool {
	for _, e := range s.entries {
		if e.Busy {
			return false
		}
	}
	return true
}

// Entries returns the pool's entries.
func (s *Station) Entries() []*RSEntry {
	return s.entries
}
