package tomasulo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomsim/emu"
	"github.com/sarchlab/tomsim/insts"
	"github.com/sarchlab/tomsim/timing/cache"
	"github.com/sarchlab/tomsim/timing/latency"
	"github.com/sarchlab/tomsim/timing/tomasulo"
)

// simResult bundles a finished simulation with its architectural state.
type simResult struct {
	engine *tomasulo.Engine
	regs   *emu.RegFile
	mem    *emu.Memory
}

// run parses src, simulates it to completion and returns the result.
func run(src string, opts ...tomasulo.Option) simResult {
	GinkgoHelper()

	program, parseErrs, err := insts.ParseString(src)
	Expect(err).NotTo(HaveOccurred())
	Expect(parseErrs).To(BeEmpty())

	regs := emu.NewRegFile()
	mem := emu.NewMemory()
	engine := tomasulo.NewEngine(program, regs, mem, opts...)
	Expect(engine.Run()).To(Succeed())
	Expect(engine.Finished()).To(BeTrue())

	return simResult{engine: engine, regs: regs, mem: mem}
}

var _ = Describe("Engine", func() {
	Describe("dependent arithmetic", func() {
		const src = `
			ADDI R1, R0, 5
			ADDI R2, R0, 7
			ADD R3, R1, R2
		`

		It("should compute the dependent sum", func() {
			result := run(src)
			Expect(result.regs.Read(3)).To(Equal(int64(12)))
		})

		It("should finish within seven cycles at default sizing", func() {
			result := run(src)
			Expect(result.engine.Cycle()).To(BeNumerically("<=", 7))
		})

		It("should retire everything it issued", func() {
			result := run(src)
			stats := result.engine.Stats()
			Expect(stats.InstructionsIssued).To(Equal(3))
			Expect(stats.InstructionsRetired).To(Equal(3))
			Expect(stats.InstructionsSquashed).To(BeZero())
		})
	})

	Describe("multiply dependency chain", func() {
		const src = `
			ADDI R1, R0, 4
			MUL R2, R1, R1
			ADD R3, R2, R1
		`

		It("should compute through the chain", func() {
			result := run(src)
			Expect(result.regs.Read(2)).To(Equal(int64(16)))
			Expect(result.regs.Read(3)).To(Equal(int64(20)))
		})

		It("should start the consumer the cycle after the producer broadcasts", func() {
			result := run(src)
			records := result.engine.Records()
			mul, add := records[1], records[2]
			Expect(add.ExecStart).To(Equal(mul.Writeback + 1))
			Expect(add.ExecStart).To(BeNumerically(">=", mul.Issue+3+2))
		})
	})

	Describe("divide by zero", func() {
		const src = `
			ADDI R1, R0, 8
			DIV R2, R1, R0
		`

		It("should report the trap at commit and keep retired state intact", func() {
			result := run(src)
			Expect(result.regs.Read(1)).To(Equal(int64(8)))
			Expect(result.regs.Read(2)).To(Equal(int64(0)))

			retired := result.engine.Retired()
			Expect(retired).To(HaveLen(2))
			div := retired[1]
			Expect(div.Trap).NotTo(BeNil())
			Expect(div.Trap.Kind).To(Equal(tomasulo.TrapDivideByZero))
			Expect(div.Retired()).To(BeTrue())
			Expect(result.engine.Stats().Traps).To(Equal(1))
		})
	})

	Describe("branch misprediction", func() {
		const src = `
			ADDI R1, R0, 0
			ADDI R2, R0, 10
			BEQ R1, R0, 2
			ADDI R2, R0, 99
			ADDI R2, R0, 7
		`

		It("should squash the wrong path and resume at the target", func() {
			result := run(src)
			Expect(result.regs.Read(2)).To(Equal(int64(7)))
		})

		It("should keep wrong-path instructions out of the retired stream", func() {
			result := run(src)
			var indices []int
			for _, rec := range result.engine.Retired() {
				indices = append(indices, rec.Inst.Index)
			}
			Expect(indices).To(Equal([]int{0, 1, 2, 4}))
		})

		It("should mark wrong-path instructions speculative and squashed", func() {
			result := run(src)
			var wrongPath *tomasulo.InstrRecord
			for _, rec := range result.engine.Records() {
				if rec.Inst.Index == 3 {
					wrongPath = rec
				}
			}
			Expect(wrongPath).NotTo(BeNil())
			Expect(wrongPath.Speculative).To(BeTrue())
			Expect(wrongPath.Squashed).To(BeTrue())
			Expect(wrongPath.Retired()).To(BeFalse())

			Expect(result.engine.Stats().Flushes).To(Equal(1))
			Expect(result.engine.Stats().InstructionsSquashed).To(BeNumerically(">=", 1))
		})

		It("should record prediction and outcome on the branch", func() {
			result := run(src)
			branch := result.engine.Retired()[2]
			Expect(branch.Inst.Op).To(Equal(insts.OpBEQ))
			Expect(branch.PredictedTaken).To(BeFalse())
			Expect(branch.ActualTaken).To(BeTrue())
		})
	})

	Describe("store-to-load ordering", func() {
		const src = `
			ADDI R1, R0, 5
			SW R1, 0(R0)
			LW R2, 0(R0)
			ADD R3, R2, R1
		`

		It("should read the stored value through memory", func() {
			result := run(src)
			Expect(result.regs.Read(2)).To(Equal(int64(5)))
			Expect(result.regs.Read(3)).To(Equal(int64(10)))

			v, err := result.mem.Read(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(int64(5)))
		})

		It("should hold the load until the aliasing store commits", func() {
			result := run(src)
			records := result.engine.Records()
			store, load := records[1], records[2]
			Expect(load.ExecStart).To(BeNumerically(">=", store.Commit))
		})

		It("should not delay a load behind a store to a different address", func() {
			result := run(`
				ADDI R1, R0, 5
				SW R1, 4(R0)
				LW R2, 8(R0)
			`)
			records := result.engine.Records()
			store, load := records[1], records[2]
			Expect(load.ExecStart).To(BeNumerically("<", store.Commit))
		})
	})

	Describe("CDB serialization", func() {
		It("should write back back-to-back ALU results on consecutive cycles", func() {
			config := tomasulo.DefaultConfig()
			config.ALUStations = 2
			result := run(`
				ADD R1, R0, R0
				ADD R2, R0, R0
			`, tomasulo.WithConfig(config))

			records := result.engine.Records()
			Expect(records[1].Writeback).To(Equal(records[0].Writeback + 1))
		})

		It("should give the bus to loads over multiply results", func() {
			result := run(`
				MUL R1, R0, R0
				LW R2, 0(R0)
			`)
			records := result.engine.Records()
			mul, load := records[0], records[1]
			Expect(mul.ExecEnd).To(Equal(load.ExecEnd))
			Expect(load.Writeback).To(Equal(load.ExecEnd + 1))
			Expect(mul.Writeback).To(Equal(load.Writeback + 1))
			Expect(result.engine.Stats().CDBConflicts).To(BeNumerically(">=", 1))
		})

		It("should keep the loser's completion cycle intact", func() {
			result := run(`
				MUL R1, R0, R0
				LW R2, 0(R0)
			`)
			mul := result.engine.Records()[0]
			Expect(mul.ExecEnd - mul.ExecStart + 1).To(Equal(3))
		})

		It("should broadcast both on a two-wide bus", func() {
			config := tomasulo.DefaultConfig()
			config.CDBWidth = 2
			result := run(`
				MUL R1, R0, R0
				LW R2, 0(R0)
			`, tomasulo.WithConfig(config))
			records := result.engine.Records()
			Expect(records[0].Writeback).To(Equal(records[1].Writeback))
		})
	})

	Describe("renaming", func() {
		It("should resolve WAW chains without serializing execution", func() {
			result := run(`
				ADDI R1, R0, 1
				ADDI R1, R0, 2
				ADD R2, R1, R1
			`)
			Expect(result.regs.Read(1)).To(Equal(int64(2)))
			Expect(result.regs.Read(2)).To(Equal(int64(4)))

			records := result.engine.Records()
			// The second writer starts right after issue; it does not
			// wait for the first writer to retire.
			Expect(records[1].ExecStart).To(Equal(records[1].Issue + 1))
		})

		It("should let a WAR-dependent writer run ahead of the reader", func() {
			result := run(`
				ADDI R2, R0, 5
				MUL R1, R2, R2
				ADD R3, R1, R1
				ADDI R1, R0, 9
			`)
			Expect(result.regs.Read(3)).To(Equal(int64(50)))
			Expect(result.regs.Read(1)).To(Equal(int64(9)))

			records := result.engine.Records()
			reader, writer := records[2], records[3]
			// The writer executes before the reader, which still sees
			// the old value through its renamed operand copy.
			Expect(writer.ExecStart).To(BeNumerically("<", reader.ExecStart))
		})
	})

	Describe("loops", func() {
		const src = `
			ADDI R1, R0, 2
			ADDI R2, R0, 0
			ADDI R2, R2, 1
			ADDI R1, R1, -1
			BGT R1, R0, -2
		`

		It("should execute a backward branch loop to completion", func() {
			result := run(src)
			Expect(result.regs.Read(1)).To(Equal(int64(0)))
			Expect(result.regs.Read(2)).To(Equal(int64(2)))
			Expect(result.engine.Stats().Flushes).To(Equal(1))
		})

		It("should create a fresh dynamic record per loop iteration", func() {
			result := run(src)
			var bodyCount int
			for _, rec := range result.engine.Retired() {
				if rec.Inst.Index == 2 {
					bodyCount++
				}
			}
			Expect(bodyCount).To(Equal(2))
		})

		It("should also converge with a bimodal predictor", func() {
			result := run(src,
				tomasulo.WithPredictor(tomasulo.NewBimodalPredictor(16)))
			Expect(result.regs.Read(2)).To(Equal(int64(2)))
			Expect(result.engine.Predictor().Stats().Predictions).To(
				BeNumerically(">=", 2))
		})
	})

	Describe("direct jumps", func() {
		It("should skip over jumped instructions", func() {
			result := run(`
				ADDI R1, R0, 1
				J 3
				ADDI R1, R0, 99
				ADDI R2, R0, 2
			`)
			Expect(result.regs.Read(1)).To(Equal(int64(1)))
			Expect(result.regs.Read(2)).To(Equal(int64(2)))
		})

		It("should link the return index on JAL", func() {
			result := run(`
				JAL 2
				NOP
				ADDI R1, R0, 3
			`)
			Expect(result.regs.Read(31)).To(Equal(int64(1)))
			Expect(result.regs.Read(1)).To(Equal(int64(3)))
		})
	})

	Describe("structural stalls", func() {
		It("should stall issue on a full ROB and still complete", func() {
			config := tomasulo.DefaultConfig()
			config.ROBSize = 2
			result := run(`
				ADDI R1, R0, 1
				ADDI R2, R0, 2
				ADDI R3, R0, 3
				ADDI R4, R0, 4
			`, tomasulo.WithConfig(config))

			Expect(result.regs.Read(4)).To(Equal(int64(4)))
			Expect(result.engine.Stats().StructuralStalls).To(BeNumerically(">", 0))
		})

		It("should stall issue on a full station pool and still complete", func() {
			config := tomasulo.DefaultConfig()
			config.MulDivStations = 1
			result := run(`
				MUL R1, R0, R0
				MUL R2, R0, R0
				MUL R3, R0, R0
			`, tomasulo.WithConfig(config))

			Expect(result.engine.Stats().StructuralStalls).To(BeNumerically(">", 0))
			Expect(result.engine.Stats().InstructionsRetired).To(Equal(3))
		})
	})

	Describe("memory traps", func() {
		It("should trap an out-of-range load at commit", func() {
			result := run(`LW R1, 9999(R0)`)
			load := result.engine.Retired()[0]
			Expect(load.Trap).NotTo(BeNil())
			Expect(load.Trap.Kind).To(Equal(tomasulo.TrapMemoryOutOfRange))
			Expect(result.regs.Read(1)).To(Equal(int64(0)))
		})

		It("should trap an out-of-range store without writing", func() {
			result := run(`
				ADDI R1, R0, 5
				SW R1, -3(R0)
			`)
			store := result.engine.Retired()[1]
			Expect(store.Trap).NotTo(BeNil())
			Expect(store.Trap.Kind).To(Equal(tomasulo.TrapMemoryOutOfRange))
			Expect(result.engine.Stats().Traps).To(Equal(1))
		})
	})

	Describe("wide commit", func() {
		It("should retire multiple instructions per cycle when configured", func() {
			config := tomasulo.DefaultConfig()
			config.CommitWidth = 2
			// The multiply blocks the ROB head while the adds complete,
			// so two entries are ready together once it writes back.
			result := run(`
				MUL R1, R0, R0
				ADDI R2, R0, 1
				ADDI R3, R0, 2
			`, tomasulo.WithConfig(config))

			byCycle := map[int]int{}
			for _, rec := range result.engine.Retired() {
				byCycle[rec.Commit]++
			}
			max := 0
			for _, n := range byCycle {
				if n > max {
					max = n
				}
			}
			Expect(max).To(Equal(2))
		})
	})

	Describe("data cache", func() {
		It("should stretch a load's memory cycle to the miss latency", func() {
			result := run(`
				LW R1, 0(R0)
				LW R2, 0(R0)
			`, tomasulo.WithDataCache(cache.New(cache.DefaultConfig())))

			records := result.engine.Records()
			miss, hit := records[0], records[1]
			// Address cycle + 10-cycle miss, then address cycle + 1-cycle hit.
			Expect(miss.ExecEnd - miss.ExecStart + 1).To(Equal(11))
			Expect(hit.ExecEnd - hit.ExecStart + 1).To(Equal(2))
		})
	})

	Describe("custom latencies", func() {
		It("should honor a custom timing configuration", func() {
			config := latency.DefaultTimingConfig()
			config.MultiplyLatency = 5
			result := run(`MUL R1, R0, R0`,
				tomasulo.WithLatencyTable(latency.NewTableWithConfig(config)))

			mul := result.engine.Records()[0]
			Expect(mul.ExecEnd - mul.ExecStart + 1).To(Equal(5))
		})
	})
})

var _ = Describe("Engine properties", func() {
	// programs exercises retirement across arithmetic, memory, branches and
	// contention; each entry must terminate.
	programs := map[string]string{
		"arithmetic": `
			ADDI R1, R0, 5
			ADDI R2, R0, 7
			ADD R3, R1, R2
			SUB R4, R3, R1
			MUL R5, R4, R2
		`,
		"memory": `
			ADDI R1, R0, 5
			SW R1, 0(R0)
			LW R2, 0(R0)
			SW R2, 1(R0)
			LW R3, 1(R0)
		`,
		"branchy": `
			ADDI R1, R0, 2
			ADDI R2, R0, 0
			ADDI R2, R2, 1
			ADDI R1, R1, -1
			BGT R1, R0, -2
			ADD R3, R2, R2
		`,
	}

	lat := latency.NewTable()

	for name, src := range programs {
		Context(name, func() {
			It("should retire in program order", func() {
				result := run(src)
				retired := result.engine.Retired()
				for i := 1; i < len(retired); i++ {
					Expect(retired[i-1].ID).To(BeNumerically("<", retired[i].ID))
					Expect(retired[i-1].Commit).To(
						BeNumerically("<=", retired[i].Commit))
				}
			})

			It("should keep stage stamps monotonic with exact latency", func() {
				result := run(src)
				for _, rec := range result.engine.Retired() {
					Expect(rec.Issue).To(BeNumerically(">", 0))
					Expect(rec.ExecStart).To(BeNumerically(">", rec.Issue))
					Expect(rec.ExecEnd).To(BeNumerically(">=", rec.ExecStart))
					Expect(rec.Writeback).To(BeNumerically(">=", rec.ExecEnd))
					Expect(rec.Commit).To(BeNumerically(">", rec.Writeback))
					Expect(rec.ExecEnd - rec.ExecStart + 1).To(
						Equal(lat.GetLatency(rec.Inst.Op)))
				}
			})

			It("should never share a writeback cycle on the one-wide bus", func() {
				result := run(src)
				seen := map[int]bool{}
				for _, rec := range result.engine.Retired() {
					if rec.Inst.Op.IsStore() {
						// Stores complete off the bus.
						continue
					}
					Expect(seen[rec.Writeback]).To(BeFalse(),
						"two broadcasts share cycle %d", rec.Writeback)
					seen[rec.Writeback] = true
				}
			})

			It("should satisfy read-after-write ordering", func() {
				result := run(src)
				retired := result.engine.Retired()
				for i, consumer := range retired {
					for _, src := range consumer.Inst.SrcRegs() {
						if src == 0 {
							continue
						}
						// Find the closest earlier retired writer.
						for j := i - 1; j >= 0; j-- {
							dest, ok := retired[j].Inst.DestReg()
							if ok && dest == src {
								Expect(consumer.ExecStart).To(BeNumerically(
									">", retired[j].Writeback))
								break
							}
						}
					}
				}
			})
		})
	}
})
