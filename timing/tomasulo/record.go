// Package tomasulo implements a cycle-accurate model of Tomasulo's algorithm
// with register renaming, a reorder buffer and speculative execution.
//
// The engine advances four pipeline phases per cycle in a fixed order:
//   - Commit: retire ready instructions in order from the ROB head
//   - Writeback: arbitrate the CDB and broadcast results
//   - Execute: advance functional units and dispatch ready station entries
//   - Issue: rename and place the next fetched instruction into RS + ROB
//
// Running Writeback before Execute while only dispatching operands that were
// ready before the current cycle gives the classic Tomasulo timing: a value
// broadcast in cycle N is consumable no earlier than cycle N+1.
package tomasulo

import (
	"fmt"

	"github.com/sarchlab/tomsim/insts"
)

// TrapKind identifies a simulated trap condition.
type TrapKind uint8

// Trap kinds.
const (
	// TrapDivideByZero is raised by DIV with a zero divisor.
	TrapDivideByZero TrapKind = iota
	// TrapMemoryOutOfRange is raised by a memory access outside the
	// simulated address space.
	TrapMemoryOutOfRange
)

// String returns a human-readable name for the trap kind.
func (k TrapKind) String() string {
	switch k {
	case TrapDivideByZero:
		return "divide by zero"
	case TrapMemoryOutOfRange:
		return "memory address out of range"
	default:
		return fmt.Sprintf("TrapKind(%d)", uint8(k))
	}
}

// Trap describes a trap attached to an instruction. Traps are detected
// during execution and surfaced when the instruction commits; the
// architectural write of a trapped instruction is suppressed.
type Trap struct {
	Kind   TrapKind
	Detail string
}

// Error implements the error interface.
func (t *Trap) Error() string {
	if t.Detail == "" {
		return t.Kind.String()
	}
	return fmt.Sprintf("%v: %s", t.Kind, t.Detail)
}

// InstrRecord tracks the dynamic state of one fetched instruction: the cycle
// at which it traversed each pipeline stage plus its renaming and speculation
// metadata. A stage stamp of 0 means the stage was never reached.
type InstrRecord struct {
	// ID is the dynamic program id, assigned in fetch order starting at 0.
	// Refetching after a squash produces a fresh record with a fresh id.
	ID int

	// Inst is the static instruction.
	Inst *insts.Instruction

	// Stage timestamps.
	Issue     int
	ExecStart int
	ExecEnd   int
	Writeback int
	Commit    int

	// Tag is the ROB slot id assigned at issue (-1 before issue).
	Tag int

	// Speculative is true iff an older branch in the ROB was unresolved, or
	// resolved as mispredicted and not yet squashed, when this instruction
	// issued.
	Speculative bool

	// Branch outcome, valid for conditional branches.
	PredictedTaken bool
	ActualTaken    bool

	// Squashed is true if the instruction was discarded by a
	// misprediction flush before committing.
	Squashed bool

	// Result is the computed value (for instructions that produce one).
	Result int64

	// Addr is the effective address of a memory instruction, valid once
	// AddrValid is set.
	Addr      int64
	AddrValid bool

	// Trap is set if the instruction trapped during execution.
	Trap *Trap
}

// Retired reports whether the instruction committed.
func (r *InstrRecord) Retired() bool {
	return r.Commit != 0
}

// String renders a compact one-line summary of the record.
func (r *InstrRecord) String() string {
	s := fmt.Sprintf("#%d %s", r.ID, r.Inst)
	if r.Squashed {
		return s + " [squashed]"
	}
	s += fmt.Sprintf(" issue=%s exec=%s-%s wb=%s commit=%s",
		stamp(r.Issue), stamp(r.ExecStart), stamp(r.ExecEnd),
		stamp(r.Writeback), stamp(r.Commit))
	if r.Trap != nil {
		s += fmt.Sprintf(" trap(%v)", r.Trap.Kind)
	}
	return s
}

// stamp formats a stage cycle, rendering unset stages as "-".
func stamp(cycle int) string {
	if cycle == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", cycle)
}
