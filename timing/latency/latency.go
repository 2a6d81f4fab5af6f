// Package latency provides instruction timing models for cycle-accurate
// simulation. Latency values follow the classic Tomasulo teaching
// configuration and can be customized via TimingConfig.
package latency

import (
	"github.com/sarchlab/tomsim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with a custom timing
// configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given opcode.
func (t *Table) GetLatency(op insts.Op) int {
	switch op {
	case insts.OpADD, insts.OpSUB, insts.OpADDI:
		return t.config.ALULatency

	case insts.OpMUL:
		return t.config.MultiplyLatency

	case insts.OpDIV:
		return t.config.DivideLatency

	case insts.OpLW, insts.OpSW:
		return t.config.MemoryLatency

	case insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGT:
		return t.config.BranchLatency

	case insts.OpJ, insts.OpJAL:
		return t.config.JumpLatency

	default:
		return t.config.NopLatency
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
