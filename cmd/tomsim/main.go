// Package main provides the entry point for TomSim.
// TomSim is a cycle-accurate simulator of Tomasulo's algorithm with a
// reorder buffer, register renaming and speculative execution.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/sarchlab/tomsim/insts"
	"github.com/sarchlab/tomsim/timing/cache"
	"github.com/sarchlab/tomsim/timing/core"
	"github.com/sarchlab/tomsim/timing/latency"
	"github.com/sarchlab/tomsim/timing/tomasulo"
)

var (
	configPath = flag.String("config", "", "Path to timing configuration JSON file")
	predictor  = flag.String("predictor", "not-taken", "Branch predictor: not-taken or bimodal")
	useCache   = flag.Bool("cache", false, "Model a data cache on loads and stores")
	trace      = flag.Bool("trace", false, "Log every pipeline event")
	verbose    = flag.Bool("v", false, "Verbose output")
	maxCycles  = flag.Int("max-cycles", 1_000_000, "Abort after this many cycles (0 = no limit)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: tomsim [options] <program.asm>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)

	f, err := os.Open(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening program: %v\n", err)
		os.Exit(1)
	}
	program, parseErrs, err := insts.Parse(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading program: %v\n", err)
		os.Exit(1)
	}
	for _, perr := range parseErrs {
		fmt.Fprintf(os.Stderr, "Parse error: %v\n", perr)
	}
	if len(program) == 0 {
		fmt.Fprintf(os.Stderr, "No valid instructions in %s\n", programPath)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Instructions: %d\n", len(program))
	}

	os.Exit(runSimulation(program, programPath))
}

// runSimulation builds the core from the flags, runs it and prints the
// report. It returns the process exit code.
func runSimulation(program []*insts.Instruction, programPath string) int {
	var opts []tomasulo.Option

	if *configPath != "" {
		timingConfig, err := latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			return 1
		}
		if err := timingConfig.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid timing config: %v\n", err)
			return 1
		}
		opts = append(opts, tomasulo.WithLatencyTable(
			latency.NewTableWithConfig(timingConfig)))
	}

	switch *predictor {
	case "not-taken":
		// Engine default.
	case "bimodal":
		opts = append(opts, tomasulo.WithPredictor(
			tomasulo.NewBimodalPredictor(tomasulo.DefaultBimodalSize)))
	default:
		fmt.Fprintf(os.Stderr, "Unknown predictor %q\n", *predictor)
		return 1
	}

	if *useCache {
		opts = append(opts, tomasulo.WithDataCache(
			cache.New(cache.DefaultConfig())))
	}

	if *trace {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel).
			With().Timestamp().Logger()
		opts = append(opts, tomasulo.WithTraceLogger(log))
	}

	c := core.NewCore(program, opts...)

	if *maxCycles > 0 {
		running, err := c.RunCycles(*maxCycles)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Simulation aborted: %v\n", err)
			return 1
		}
		if running {
			fmt.Fprintf(os.Stderr, "Simulation did not finish within %d cycles\n", *maxCycles)
			return 1
		}
	} else if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Simulation aborted: %v\n", err)
		return 1
	}

	printReport(c, programPath)
	return 0
}

// printReport prints the per-instruction stage table, final architectural
// state and statistics.
func printReport(c *core.Core, programPath string) {
	fmt.Printf("\n")
	fmt.Printf("Program: %s\n", programPath)
	fmt.Printf("Total Cycles: %d\n", c.Cycle())

	fmt.Printf("\n")
	fmt.Printf("%-4s %-22s %7s %6s %6s %6s %7s\n",
		"#", "Instruction", "Issue", "ExecS", "ExecE", "WB", "Commit")
	for _, rec := range c.Records() {
		if rec.Squashed {
			fmt.Printf("%-4d %-22s %s\n", rec.ID, rec.Inst, "squashed")
			continue
		}
		fmt.Printf("%-4d %-22s %7d %6d %6d %6d %7d\n",
			rec.ID, rec.Inst,
			rec.Issue, rec.ExecStart, rec.ExecEnd, rec.Writeback, rec.Commit)
		if rec.Trap != nil {
			fmt.Printf("     trap: %v\n", rec.Trap)
		}
	}

	fmt.Printf("\nRegisters (non-zero):\n")
	regs := c.RegFile().Snapshot()
	for i, v := range regs {
		if v != 0 {
			fmt.Printf("  R%-2d = %d\n", i, v)
		}
	}

	fmt.Printf("\nMemory (non-zero words):\n")
	for addr, v := range c.Memory().Snapshot() {
		if v != 0 {
			fmt.Printf("  [%d] = %d\n", addr, v)
		}
	}

	stats := c.Stats()
	fmt.Printf("\n")
	fmt.Printf("Instructions issued:   %d\n", stats.InstructionsIssued)
	fmt.Printf("Instructions retired:  %d\n", stats.InstructionsRetired)
	fmt.Printf("Instructions squashed: %d\n", stats.InstructionsSquashed)
	fmt.Printf("Structural stalls:     %d\n", stats.StructuralStalls)
	fmt.Printf("Flushes:               %d\n", stats.Flushes)
	fmt.Printf("CDB conflicts:         %d\n", stats.CDBConflicts)
	fmt.Printf("Traps:                 %d\n", stats.Traps)
	fmt.Printf("CPI:                   %.2f\n", stats.CPI())

	pstats := c.Engine.Predictor().Stats()
	if pstats.Predictions > 0 {
		fmt.Printf("\nBranch predictions: %d (%.1f%% accurate)\n",
			pstats.Predictions, pstats.Accuracy())
	}

	if *verbose {
		fmt.Printf("\nRetirement order:\n")
		for _, rec := range c.Retired() {
			fmt.Printf("  %v\n", rec)
		}
	}
}
