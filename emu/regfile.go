// Package emu provides the architectural state of the simulated machine:
// the register file and a flat word-addressed memory. The timing engine owns
// when this state changes (at commit); this package only models what it is.
package emu

// NumRegs is the number of architectural registers (R0-R31).
const NumRegs = 32

// RegFile represents the architectural register file.
// R0 is hardwired to zero: reads return 0 and writes are ignored.
type RegFile struct {
	regs [NumRegs]int64
}

// NewRegFile creates a register file with all registers zeroed.
func NewRegFile() *RegFile {
	return &RegFile{}
}

// Read reads a register value. R0 always returns 0; registers out of range
// also read as 0.
func (r *RegFile) Read(reg uint8) int64 {
	if reg == 0 || reg >= NumRegs {
		return 0
	}
	return r.regs[reg]
}

// Write writes a value to a register. Writes to R0 and out-of-range
// registers are ignored.
func (r *RegFile) Write(reg uint8, value int64) {
	if reg == 0 || reg >= NumRegs {
		return
	}
	r.regs[reg] = value
}

// Snapshot returns a copy of all register values, indexed by register number.
func (r *RegFile) Snapshot() [NumRegs]int64 {
	return r.regs
}

// Reset zeroes every register.
func (r *RegFile) Reset() {
	r.regs = [NumRegs]int64{}
}
