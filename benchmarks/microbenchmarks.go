package benchmarks

import (
	"fmt"

	"github.com/sarchlab/tomsim/emu"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// targets a specific engine characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticIndependent(),
		dependencyChain(),
		multiplyDivide(),
		memoryRoundTrip(),
		branchLoop(),
		mixedOperations(),
	}
}

// expectReg builds a check asserting one register's final value.
func expectReg(reg uint8, want int64) func(*emu.RegFile, *emu.Memory) error {
	return func(regFile *emu.RegFile, _ *emu.Memory) error {
		if got := regFile.Read(reg); got != want {
			return fmt.Errorf("R%d = %d, want %d", reg, got, want)
		}
		return nil
	}
}

// arithmeticIndependent measures ALU and CDB throughput with no data
// dependencies.
func arithmeticIndependent() Benchmark {
	return Benchmark{
		Name:        "arithmetic_independent",
		Description: "8 independent ADDIs - ALU and CDB throughput",
		Program: `
			ADDI R1, R0, 1
			ADDI R2, R0, 2
			ADDI R3, R0, 3
			ADDI R4, R0, 4
			ADDI R5, R0, 5
			ADDI R6, R0, 6
			ADDI R7, R0, 7
			ADDI R8, R0, 8
		`,
		Check: expectReg(8, 8),
	}
}

// dependencyChain measures serialized execution through RAW dependencies.
func dependencyChain() Benchmark {
	return Benchmark{
		Name:        "dependency_chain",
		Description: "5 chained ADDs - RAW latency through the CDB",
		Program: `
			ADDI R1, R0, 1
			ADD R2, R1, R1
			ADD R3, R2, R2
			ADD R4, R3, R3
			ADD R5, R4, R4
			ADD R6, R5, R5
		`,
		Check: expectReg(6, 32),
	}
}

// multiplyDivide measures long-latency unit occupancy.
func multiplyDivide() Benchmark {
	return Benchmark{
		Name:        "multiply_divide",
		Description: "MUL/DIV chain - iterative unit occupancy",
		Program: `
			ADDI R1, R0, 6
			ADDI R2, R0, 3
			MUL R3, R1, R2
			DIV R4, R3, R2
			MUL R5, R4, R4
		`,
		Check: expectReg(5, 36),
	}
}

// memoryRoundTrip measures the store-to-load ordering path.
func memoryRoundTrip() Benchmark {
	return Benchmark{
		Name:        "memory_round_trip",
		Description: "store then reload - load/store ordering",
		Program: `
			ADDI R1, R0, 7
			SW R1, 0(R0)
			LW R2, 0(R0)
			SW R2, 1(R0)
			LW R3, 1(R0)
			ADD R4, R3, R3
		`,
		Check: expectReg(4, 14),
	}
}

// branchLoop measures misprediction recovery in a countdown loop.
func branchLoop() Benchmark {
	return Benchmark{
		Name:        "branch_loop",
		Description: "countdown loop - speculation and squash",
		Program: `
			ADDI R1, R0, 4
			ADDI R2, R0, 0
			ADDI R2, R2, 2
			ADDI R1, R1, -1
			BGT R1, R0, -2
		`,
		Check: expectReg(2, 8),
	}
}

// mixedOperations exercises every station pool in one program.
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "ALU, MUL, memory and branch mix",
		Program: `
			ADDI R1, R0, 3
			MUL R2, R1, R1
			SW R2, 2(R0)
			LW R3, 2(R0)
			SUB R4, R3, R1
			BEQ R4, R0, 2
			ADDI R5, R4, 0
			ADD R6, R5, R1
		`,
		Check: expectReg(6, 9),
	}
}
