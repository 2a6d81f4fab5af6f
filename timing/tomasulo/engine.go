package tomasulo

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sarchlab/tomsim/emu"
	"github.com/sarchlab/tomsim/insts"
	"github.com/sarchlab/tomsim/timing/cache"
	"github.com/sarchlab/tomsim/timing/latency"
)

// Stats holds engine performance statistics.
type Stats struct {
	// Cycles is the number of cycles simulated.
	Cycles int
	// InstructionsIssued counts dynamic instructions entered into the ROB,
	// including ones later squashed.
	InstructionsIssued int
	// InstructionsRetired counts committed instructions.
	InstructionsRetired int
	// InstructionsSquashed counts instructions discarded by misprediction
	// flushes.
	InstructionsSquashed int
	// StructuralStalls counts cycles issue was blocked by a full
	// reservation station pool or a full ROB.
	StructuralStalls int
	// Flushes counts misprediction squashes.
	Flushes int
	// CDBConflicts counts completions that lost bus arbitration and had to
	// retry.
	CDBConflicts int
	// Traps counts trapped instructions reported at commit.
	Traps int
}

// CPI returns cycles per retired instruction.
func (s Stats) CPI() float64 {
	if s.InstructionsRetired == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.InstructionsRetired)
}

// Engine is the Tomasulo cycle engine. It exclusively owns the shared
// structures (stations, ROB, RAT, CDB, functional units) and advances them
// in the fixed intra-cycle phase order Commit, Writeback, Execute, Issue.
type Engine struct {
	program []*insts.Instruction
	regFile *emu.RegFile
	memory  *emu.Memory

	latTable  *latency.Table
	config    Config
	predictor Predictor
	dcache    *cache.Cache
	trace     *tracer

	rat      *RAT
	rob      *ROB
	stations map[StationKind]*Station
	units    map[StationKind]*FuncUnitPool
	cdb      *CDB

	pc       int
	cycle    int
	nextID   int
	records  []*InstrRecord
	retired  []*InstrRecord
	finished bool
	fatal    error

	stats Stats
}

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithConfig sets the structure sizing configuration.
func WithConfig(config Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithLatencyTable sets a custom latency table.
func WithLatencyTable(table *latency.Table) Option {
	return func(e *Engine) {
		e.latTable = table
	}
}

// WithPredictor sets a custom branch predictor.
func WithPredictor(p Predictor) Option {
	return func(e *Engine) {
		e.predictor = p
	}
}

// WithDataCache attaches a data-cache latency model to the load unit. Load
// memory cycles then cost the cache's hit or miss latency instead of the
// flat table value.
func WithDataCache(c *cache.Cache) Option {
	return func(e *Engine) {
		e.dcache = c
	}
}

// WithTraceLogger enables structured per-event tracing.
func WithTraceLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.trace = &tracer{log: log}
	}
}

// NewEngine creates an engine for the given program operating on the given
// architectural state.
func NewEngine(program []*insts.Instruction, regFile *emu.RegFile, memory *emu.Memory, opts ...Option) *Engine {
	e := &Engine{
		program: program,
		regFile: regFile,
		memory:  memory,
		config:  DefaultConfig(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.latTable == nil {
		e.latTable = latency.NewTable()
	}
	if e.predictor == nil {
		e.predictor = NewNotTakenPredictor()
	}

	e.rat = NewRAT()
	e.rob = NewROB(e.config.ROBSize)
	e.cdb = NewCDB(e.config.CDBWidth)
	e.stations = make(map[StationKind]*Station)
	e.units = make(map[StationKind]*FuncUnitPool)
	for _, kind := range stationKinds {
		e.stations[kind] = NewStation(kind, e.config.stationSize(kind))
		e.units[kind] = NewFuncUnitPool(kind, e.config.unitCount(kind))
	}

	return e
}

// Cycle returns the current cycle count. Cycles are numbered from 1; the
// counter stops advancing once the simulation finishes.
func (e *Engine) Cycle() int {
	return e.cycle
}

// Finished reports whether the program has fully retired.
func (e *Engine) Finished() bool {
	return e.finished
}

// Stats returns the engine statistics.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Cycles = e.cycle
	return s
}

// Predictor returns the branch predictor in use.
func (e *Engine) Predictor() Predictor {
	return e.predictor
}

// Records returns every dynamic instruction fetched so far, in fetch order,
// including squashed ones.
func (e *Engine) Records() []*InstrRecord {
	return e.records
}

// Retired returns the committed instructions in retirement order.
func (e *Engine) Retired() []*InstrRecord {
	return e.retired
}

// ROBEntries returns a snapshot of the live ROB entries, oldest first.
func (e *Engine) ROBEntries() []*ROBEntry {
	return e.rob.Entries()
}

// Tick advances the simulation by one cycle. It returns an error only on an
// internal invariant violation, which aborts the simulation.
func (e *Engine) Tick() error {
	if e.finished || e.fatal != nil {
		return e.fatal
	}

	e.cycle++

	squashed := e.commit()
	if e.fatal != nil {
		return e.fatal
	}
	if err := e.writeback(); err != nil {
		e.fatal = err
		return err
	}
	e.execute()
	if !squashed {
		e.issue()
	}
	e.checkFinished()

	return nil
}

// Run advances the simulation until the program retires. The caller is
// responsible for bounding runaway programs (see RunCycles).
func (e *Engine) Run() error {
	for !e.finished {
		if err := e.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunCycles advances at most n cycles. It returns true while the simulation
// is still running.
func (e *Engine) RunCycles(n int) (bool, error) {
	for i := 0; i < n && !e.finished; i++ {
		if err := e.Tick(); err != nil {
			return false, err
		}
	}
	return !e.finished, nil
}

// commit retires ready instructions in order from the ROB head, up to the
// configured commit width. It returns true if a misprediction squash
// happened, which also suppresses issue for the rest of the cycle (the
// redirected fetch begins next cycle).
func (e *Engine) commit() bool {
	for committed := 0; committed < e.config.CommitWidth; committed++ {
		entry := e.rob.RetireHead()
		if entry == nil {
			return false
		}

		rec := entry.Record
		rec.Commit = e.cycle
		e.retired = append(e.retired, rec)
		e.stats.InstructionsRetired++
		e.trace.commit(e.cycle, entry)

		if entry.Trap != nil {
			// Report the trap and suppress the architectural write.
			e.stats.Traps++
			e.trace.trap(e.cycle, rec)
		} else {
			switch {
			case entry.Op.IsStore():
				if err := e.memory.Write(entry.Addr, entry.Value); err != nil {
					// Range traps are detected at execute; a write
					// failing here is an engine bug.
					e.fatal = fmt.Errorf("commit: %w", err)
					return false
				}
				if e.dcache != nil {
					e.dcache.Write(uint64(entry.Addr))
				}
			case entry.HasDest:
				e.regFile.Write(entry.DestReg, entry.Value)
			}
		}

		// The rename made at issue is undone even on a trap.
		if entry.HasDest {
			e.rat.ClearIfMatches(entry.DestReg, entry.ID)
		}

		if entry.Op.IsBranch() {
			e.predictor.Update(entry.Record.Inst.Index, entry.Taken)
			if entry.Mispredicted {
				e.squash(entry)
				return true
			}
		}
	}
	return false
}

// squash discards everything younger than the mispredicted branch and
// redirects fetch to the correct path.
func (e *Engine) squash(branch *ROBEntry) {
	flushed := e.rob.FlushAfter(branch.ID)

	tags := make(map[int]bool, len(flushed))
	for _, entry := range flushed {
		tags[entry.ID] = true
		entry.Record.Squashed = true
		e.stats.InstructionsSquashed++
	}

	// The CDB and the units must drop squashed work before the stations
	// clear the tags they match on, or a stale completion would survive
	// the flush and broadcast later.
	e.cdb.FlushTags(tags)
	for _, kind := range stationKinds {
		e.units[kind].FlushTags(tags)
	}
	for _, kind := range stationKinds {
		e.stations[kind].FlushTags(tags)
	}

	// The branch was the ROB head, so the buffer is now empty and no alias
	// can point at a live producer.
	e.rat.FlushAll()

	if branch.Taken {
		e.pc = branch.TargetIndex
	} else {
		e.pc = branch.Record.Inst.Index + 1
	}

	e.stats.Flushes++
	e.trace.squash(e.cycle, branch, len(flushed), e.pc)
}

// writeback arbitrates the CDB and broadcasts the winners to the stations
// and the ROB. Losers keep their completion cycle and retry next cycle.
func (e *Engine) writeback() error {
	winners := e.cdb.Arbitrate()

	for _, winner := range winners {
		tag := winner.ROBTag // Snapshot before any mutation below.

		if !e.rob.Complete(tag, winner.Result) {
			return fmt.Errorf(
				"writeback: CDB broadcast for tag %d matches no live ROB entry (inst #%d)",
				tag, winner.InstrID)
		}
		for _, kind := range stationKinds {
			e.stations[kind].UpdateFromCDB(tag, winner.Result, e.cycle)
		}

		winner.Record.Writeback = e.cycle
		winner.Record.Result = winner.Result
		e.trace.broadcast(e.cycle, winner)
		winner.Clear()
	}

	e.stats.CDBConflicts += e.cdb.Pending()
	return nil
}

// execute advances in-flight functional units, then dispatches ready
// reservation station entries onto free units.
func (e *Engine) execute() {
	// Advance ops dispatched in earlier cycles.
	for _, kind := range stationKinds {
		for _, unit := range e.units[kind].Units() {
			if !unit.Busy() {
				continue
			}
			entry := unit.Entry
			entry.RemainingCycles--
			if entry.RemainingCycles <= 0 {
				e.completeExecution(entry)
				unit.Release(e.cycle)
			}
		}
	}

	// Dispatch newly ready entries. A unit freed this cycle only accepts
	// work next cycle: an iterative unit serves one op for its full
	// latency before becoming free.
	for _, kind := range stationKinds {
		for _, unit := range e.units[kind].Units() {
			if !unit.Available(e.cycle) {
				continue
			}
			entry := e.pickDispatch(kind)
			if entry == nil {
				break
			}
			e.dispatch(entry, unit)
		}
	}
}

// pickDispatch selects the oldest ready entry of the given kind, applying
// the load ordering check for the load pool.
func (e *Engine) pickDispatch(kind StationKind) *RSEntry {
	for _, entry := range e.stations[kind].ReadyEntries(e.cycle) {
		if kind == StationLoad && !e.loadMayExecute(entry) {
			continue
		}
		return entry
	}
	return nil
}

// loadMayExecute applies the memory ordering rule: a load may execute only
// when every older in-flight store has a known address that differs from the
// load's. An older store with an unknown or matching address blocks the load
// until it resolves or commits.
func (e *Engine) loadMayExecute(load *RSEntry) bool {
	addr := load.Vj + load.A
	for _, older := range e.rob.OlderEntries(load.ROBTag) {
		if !older.Op.IsStore() {
			continue
		}
		if !older.AddrValid || older.Addr == addr {
			return false
		}
	}
	return true
}

// dispatch starts entry on unit. The dispatch cycle is the first execution
// cycle, so the remaining-cycle count is decremented immediately and
// single-cycle ops complete in the same cycle they start.
func (e *Engine) dispatch(entry *RSEntry, unit *FuncUnit) {
	entry.Executing = true
	entry.Record.ExecStart = e.cycle
	entry.RemainingCycles = e.latTable.GetLatency(entry.Op)

	if entry.Op.IsMemory() {
		e.computeAddress(entry)
		if entry.Op.IsLoad() && entry.Trap == nil && e.dcache != nil {
			// Address cycle plus the cache's hit or miss latency.
			access := e.dcache.Read(uint64(entry.A))
			entry.RemainingCycles = 1 + access.Latency
		}
	}

	unit.Entry = entry
	e.trace.dispatch(e.cycle, entry)

	// The dispatch cycle counts as the first execution cycle.
	entry.RemainingCycles--
	if entry.RemainingCycles <= 0 {
		e.completeExecution(entry)
		unit.Release(e.cycle)
	}
}

// computeAddress computes a memory instruction's effective address during
// its first execution cycle and publishes it to the ROB so loads can check
// ordering against older stores.
func (e *Engine) computeAddress(entry *RSEntry) {
	entry.A = entry.Vj + entry.A
	entry.AddrValid = true
	entry.Record.Addr = entry.A
	entry.Record.AddrValid = true

	robEntry := e.rob.Entry(entry.ROBTag)
	if robEntry != nil {
		robEntry.Addr = entry.A
		robEntry.AddrValid = true
	}

	if !e.memory.InRange(entry.A) {
		entry.Trap = &Trap{
			Kind:   TrapMemoryOutOfRange,
			Detail: fmt.Sprintf("address %d", entry.A),
		}
	}
}

// completeExecution finishes entry's execution: it computes the result,
// resolves branches, and routes the completion either onto the CDB or, for
// stores, directly into the ROB.
func (e *Engine) completeExecution(entry *RSEntry) {
	entry.Executing = false
	entry.Done = true
	entry.Record.ExecEnd = e.cycle

	robEntry := e.rob.Entry(entry.ROBTag)

	switch {
	case entry.Op.IsStore():
		// Stores do not broadcast: the value is written to memory at
		// commit. Mark the ROB entry ready directly.
		entry.Record.Writeback = e.cycle
		if robEntry != nil {
			robEntry.Trap = entry.Trap
			robEntry.Value = entry.Vk
			robEntry.Ready = true
		}
		entry.Record.Result = entry.Vk
		entry.Record.Trap = entry.Trap
		entry.Clear()
		return

	case entry.Op.IsLoad():
		if entry.Trap == nil {
			value, err := e.memory.Read(entry.A)
			if err == nil {
				entry.Result = value
			}
		}

	case entry.Op.IsBranch():
		taken := resolveBranch(entry.Op, entry.Vj, entry.Vk)
		entry.Record.ActualTaken = taken
		if robEntry != nil {
			robEntry.Resolved = true
			robEntry.Taken = taken
			robEntry.Mispredicted = taken != robEntry.PredictedTaken
		}

	default:
		entry.Result, entry.Trap = computeALU(entry)
	}

	if robEntry != nil {
		robEntry.Trap = entry.Trap
	}
	entry.Record.Trap = entry.Trap
	e.cdb.Push(entry)
}

// resolveBranch evaluates a conditional branch.
func resolveBranch(op insts.Op, vj, vk int64) bool {
	switch op {
	case insts.OpBEQ:
		return vj == vk
	case insts.OpBNE:
		return vj != vk
	case insts.OpBLT:
		return vj < vk
	case insts.OpBGT:
		return vj > vk
	default:
		return false
	}
}

// computeALU evaluates an arithmetic or jump-class operation.
func computeALU(entry *RSEntry) (int64, *Trap) {
	switch entry.Op {
	case insts.OpADD, insts.OpADDI:
		return entry.Vj + entry.Vk, nil
	case insts.OpSUB:
		return entry.Vj - entry.Vk, nil
	case insts.OpMUL:
		return entry.Vj * entry.Vk, nil
	case insts.OpDIV:
		if entry.Vk == 0 {
			return 0, &Trap{Kind: TrapDivideByZero}
		}
		return entry.Vj / entry.Vk, nil
	case insts.OpJAL:
		// The link value: the index after the jump.
		return int64(entry.Record.Inst.Index + 1), nil
	default:
		return 0, nil
	}
}

// issue fetches, renames and places the next instruction(s) into a
// reservation station and the ROB. A full pool or a full ROB stalls fetch
// without advancing the program counter.
func (e *Engine) issue() {
	for issued := 0; issued < e.config.IssueWidth; issued++ {
		if e.pc < 0 || e.pc >= len(e.program) {
			return
		}
		inst := e.program[e.pc]
		kind := KindForOp(inst.Op)
		station := e.stations[kind]

		if !station.HasFree() || e.rob.IsFull() {
			e.stats.StructuralStalls++
			return
		}

		rec := &InstrRecord{
			ID:          e.nextID,
			Inst:        inst,
			Tag:         NoTag,
			Issue:       e.cycle,
			Speculative: e.rob.HasUnresolvedBranch(),
		}
		e.nextID++
		e.records = append(e.records, rec)

		robEntry := e.rob.Allocate(rec)
		entry := station.Allocate()
		rec.Tag = robEntry.ID

		e.populateOperands(entry, robEntry, rec)

		if dest, ok := inst.DestReg(); ok {
			e.rat.RenameDest(dest, robEntry.ID)
		}

		e.stats.InstructionsIssued++
		e.trace.issue(e.cycle, rec)

		// Advance fetch along the predicted path.
		switch {
		case inst.Op.IsBranch():
			predicted := e.predictor.Predict(inst.Index)
			rec.PredictedTaken = predicted
			robEntry.PredictedTaken = predicted
			robEntry.TargetIndex = inst.BranchTarget()
			if predicted {
				e.pc = inst.BranchTarget()
			} else {
				e.pc++
			}
		case inst.Op.IsJump():
			e.pc = inst.JumpTarget()
		default:
			e.pc++
		}
	}
}

// populateOperands captures the instruction's operands into the reservation
// station entry, reading values from the register file or a ready ROB entry,
// or recording the producer tag when the value is still in flight.
func (e *Engine) populateOperands(entry *RSEntry, robEntry *ROBEntry, rec *InstrRecord) {
	inst := rec.Inst

	entry.Op = inst.Op
	entry.ROBTag = robEntry.ID
	entry.InstrID = rec.ID
	entry.Record = rec
	entry.ReadyCycle = e.cycle

	switch inst.Op {
	case insts.OpADD, insts.OpSUB, insts.OpMUL, insts.OpDIV:
		entry.Vj, entry.Qj = e.resolveOperand(inst.R1)
		entry.Vk, entry.Qk = e.resolveOperand(inst.R2)

	case insts.OpADDI:
		entry.Vj, entry.Qj = e.resolveOperand(inst.R1)
		entry.Vk = inst.Imm

	case insts.OpLW:
		entry.Vj, entry.Qj = e.resolveOperand(inst.R1)
		entry.A = inst.Imm

	case insts.OpSW:
		entry.Vj, entry.Qj = e.resolveOperand(inst.R2)
		entry.Vk, entry.Qk = e.resolveOperand(inst.R1)
		entry.A = inst.Imm

	case insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGT:
		entry.Vj, entry.Qj = e.resolveOperand(inst.R1)
		entry.Vk, entry.Qk = e.resolveOperand(inst.R2)
	}
}

// resolveOperand returns the operand value for reg, or the ROB tag that will
// produce it. A renamed register whose producer has already broadcast reads
// the value straight from the ROB.
func (e *Engine) resolveOperand(reg uint8) (int64, int) {
	tag, renamed := e.rat.Lookup(reg)
	if !renamed {
		return e.regFile.Read(reg), NoTag
	}

	if producer := e.rob.Entry(tag); producer != nil && producer.Ready {
		return producer.Value, NoTag
	}
	return 0, tag
}

// checkFinished marks the simulation finished once fetch is exhausted and
// every structure has drained.
func (e *Engine) checkFinished() {
	if e.pc >= 0 && e.pc < len(e.program) {
		return
	}
	if !e.rob.IsEmpty() || e.cdb.Pending() > 0 {
		return
	}
	for _, kind := range stationKinds {
		if !e.stations[kind].AllFree() || !e.units[kind].AllFree() {
			return
		}
	}
	e.finished = true
}
