// Package benchmarks provides timing benchmark infrastructure for the
// Tomasulo engine: small assembly workloads with expected results, and a
// harness that runs them and reports per-benchmark cycle counts and CPI.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sarchlab/tomsim/emu"
	"github.com/sarchlab/tomsim/insts"
	"github.com/sarchlab/tomsim/timing/core"
	"github.com/sarchlab/tomsim/timing/tomasulo"
)

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark.
	Name string

	// Description explains what the benchmark measures.
	Description string

	// Program is the assembly source.
	Program string

	// Setup optionally preloads architectural state before the run.
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Check optionally validates the final state; it returns an error
	// when the result is wrong.
	Check func(regFile *emu.RegFile, memory *emu.Memory) error
}

// Result holds the timing results for a single benchmark run.
type Result struct {
	// Name identifies the benchmark.
	Name string `json:"name"`

	// Description explains what the benchmark measures.
	Description string `json:"description"`

	// Cycles is the total simulated cycle count.
	Cycles int `json:"cycles"`

	// InstructionsRetired is the number of committed instructions.
	InstructionsRetired int `json:"instructions_retired"`

	// CPI is cycles per retired instruction.
	CPI float64 `json:"cpi"`

	// StructuralStalls counts cycles issue was blocked.
	StructuralStalls int `json:"structural_stalls"`

	// Flushes counts misprediction squashes.
	Flushes int `json:"flushes"`

	// CDBConflicts counts lost bus arbitrations.
	CDBConflicts int `json:"cdb_conflicts"`

	// CheckFailed is set when the benchmark's result validation failed.
	CheckFailed string `json:"check_failed,omitempty"`

	// WallTime is the host time taken to run the simulation.
	WallTime time.Duration `json:"wall_time_ns"`
}

// Harness runs a set of benchmarks with shared engine options.
type Harness struct {
	benchmarks []Benchmark
	opts       []tomasulo.Option
}

// NewHarness creates a harness. Engine options apply to every run.
func NewHarness(opts ...tomasulo.Option) *Harness {
	return &Harness{opts: opts}
}

// AddBenchmarks appends benchmarks to the run set.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes every benchmark and returns their results.
func (h *Harness) RunAll() ([]Result, error) {
	results := make([]Result, 0, len(h.benchmarks))
	for _, b := range h.benchmarks {
		result, err := h.runOne(b)
		if err != nil {
			return nil, fmt.Errorf("benchmark %s: %w", b.Name, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// runOne executes a single benchmark.
func (h *Harness) runOne(b Benchmark) (Result, error) {
	program, parseErrs, err := insts.ParseString(b.Program)
	if err != nil {
		return Result{}, err
	}
	if len(parseErrs) > 0 {
		return Result{}, fmt.Errorf("program does not parse: %v", parseErrs[0])
	}

	regFile := emu.NewRegFile()
	memory := emu.NewMemory()
	if b.Setup != nil {
		b.Setup(regFile, memory)
	}

	c := core.NewCoreWithState(program, regFile, memory, h.opts...)

	start := time.Now()
	if err := c.Run(); err != nil {
		return Result{}, err
	}
	elapsed := time.Since(start)

	stats := c.Stats()
	result := Result{
		Name:                b.Name,
		Description:         b.Description,
		Cycles:              stats.Cycles,
		InstructionsRetired: stats.InstructionsRetired,
		CPI:                 stats.CPI(),
		StructuralStalls:    stats.StructuralStalls,
		Flushes:             stats.Flushes,
		CDBConflicts:        stats.CDBConflicts,
		WallTime:            elapsed,
	}
	if b.Check != nil {
		if err := b.Check(regFile, memory); err != nil {
			result.CheckFailed = err.Error()
		}
	}
	return result, nil
}

// PrintResults writes a human-readable results table.
func PrintResults(w io.Writer, results []Result) {
	fmt.Fprintf(w, "%-24s %8s %8s %6s %7s %8s\n",
		"Benchmark", "Cycles", "Insts", "CPI", "Flushes", "Stalls")
	for _, r := range results {
		fmt.Fprintf(w, "%-24s %8d %8d %6.2f %7d %8d\n",
			r.Name, r.Cycles, r.InstructionsRetired, r.CPI,
			r.Flushes, r.StructuralStalls)
		if r.CheckFailed != "" {
			fmt.Fprintf(w, "  CHECK FAILED: %s\n", r.CheckFailed)
		}
	}
}

// PrintJSON writes the results as indented JSON.
func PrintJSON(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
