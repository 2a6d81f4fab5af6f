// Package core provides the cycle-accurate processor model. It wraps the
// Tomasulo engine together with its architectural state to provide a
// high-level simulation interface.
package core

import (
	"github.com/sarchlab/tomsim/emu"
	"github.com/sarchlab/tomsim/insts"
	"github.com/sarchlab/tomsim/timing/tomasulo"
)

// Core represents one simulated out-of-order core.
type Core struct {
	// Engine is the underlying Tomasulo cycle engine.
	Engine *tomasulo.Engine

	// Shared architectural state.
	regFile *emu.RegFile
	memory  *emu.Memory
}

// NewCore creates a core for the given program with fresh architectural
// state. Engine options pass through to the Tomasulo engine.
func NewCore(program []*insts.Instruction, opts ...tomasulo.Option) *Core {
	regFile := emu.NewRegFile()
	memory := emu.NewMemory()
	return NewCoreWithState(program, regFile, memory, opts...)
}

// NewCoreWithState creates a core operating on caller-provided register file
// and memory, e.g. to preload data before simulation.
func NewCoreWithState(program []*insts.Instruction, regFile *emu.RegFile, memory *emu.Memory, opts ...tomasulo.Option) *Core {
	return &Core{
		Engine:  tomasulo.NewEngine(program, regFile, memory, opts...),
		regFile: regFile,
		memory:  memory,
	}
}

// RegFile returns the architectural register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// Memory returns the data memory.
func (c *Core) Memory() *emu.Memory {
	return c.memory
}

// Tick executes one cycle.
func (c *Core) Tick() error {
	return c.Engine.Tick()
}

// Run executes until the program retires.
func (c *Core) Run() error {
	return c.Engine.Run()
}

// RunCycles executes at most n cycles. It returns true while the simulation
// is still running.
func (c *Core) RunCycles(n int) (bool, error) {
	return c.Engine.RunCycles(n)
}

// Finished reports whether the program has fully retired.
func (c *Core) Finished() bool {
	return c.Engine.Finished()
}

// Cycle returns the current cycle count.
func (c *Core) Cycle() int {
	return c.Engine.Cycle()
}

// Stats returns engine statistics.
func (c *Core) Stats() tomasulo.Stats {
	return c.Engine.Stats()
}

// Records returns the dynamic instruction records in fetch order.
func (c *Core) Records() []*tomasulo.InstrRecord {
	return c.Engine.Records()
}

// Retired returns the committed instructions in retirement order.
func (c *Core) Retired() []*tomasulo.InstrRecord {
	return c.Engine.Retired()
}
