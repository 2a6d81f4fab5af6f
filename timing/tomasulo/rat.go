package tomasulo

import "github.com/sarchlab/tomsim/emu"

// NoTag marks the absence of a producer tag: the architectural value is
// current.
const NoTag = -1

// RAT is the register alias table. For each architectural register it holds
// either "the architectural value is current" or the ROB slot id of the
// in-flight instruction that will produce the register's next value.
//
// R0 is never renamed: its alias is permanently clear.
type RAT struct {
	alias [emu.NumRegs]int
}

// NewRAT creates a RAT with every register mapped to its architectural value.
func NewRAT() *RAT {
	r := &RAT{}
	r.FlushAll()
	return r
}

// RenameDest stamps a new producer tag on reg. Renaming R0 is a no-op.
func (r *RAT) RenameDest(reg uint8, tag int) {
	if reg == 0 || reg >= emu.NumRegs {
		return
	}
	r.alias[reg] = tag
}

// Lookup returns the producer tag for reg, or (NoTag, false) when the
// architectural value is current.
func (r *RAT) Lookup(reg uint8) (tag int, renamed bool) {
	if reg == 0 || reg >= emu.NumRegs {
		return NoTag, false
	}
	if r.alias[reg] == NoTag {
		return NoTag, false
	}
	return r.alias[reg], true
}

// ClearIfMatches clears reg's alias iff it still points at tag. The
// conditional clear keeps a newer in-flight rename of the same register
// intact when an older writer commits.
func (r *RAT) ClearIfMatches(reg uint8, tag int) {
	if reg == 0 || reg >= emu.NumRegs {
		return
	}
	if r.alias[reg] == tag {
		r.alias[reg] = NoTag
	}
}

// FlushAll clears every alias. Used on misprediction squash, after which no
// in-flight producer remains.
func (r *RAT) FlushAll() {
	for i := range r.alias {
		r.alias[i] = NoTag
	}
}
