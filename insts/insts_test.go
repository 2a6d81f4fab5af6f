package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomsim/insts"
)

var _ = Describe("Instruction", func() {
	Describe("Format", func() {
		It("should classify register arithmetic as R-type", func() {
			Expect(insts.OpADD.Format()).To(Equal(insts.FormatR))
			Expect(insts.OpDIV.Format()).To(Equal(insts.FormatR))
		})

		It("should classify immediates, memory and branches as I-type", func() {
			Expect(insts.OpADDI.Format()).To(Equal(insts.FormatI))
			Expect(insts.OpLW.Format()).To(Equal(insts.FormatI))
			Expect(insts.OpSW.Format()).To(Equal(insts.FormatI))
			Expect(insts.OpBEQ.Format()).To(Equal(insts.FormatI))
		})

		It("should classify direct jumps as J-type", func() {
			Expect(insts.OpJ.Format()).To(Equal(insts.FormatJ))
			Expect(insts.OpJAL.Format()).To(Equal(insts.FormatJ))
		})

		It("should classify NOP", func() {
			Expect(insts.OpNOP.Format()).To(Equal(insts.FormatNOP))
		})
	})

	Describe("SrcRegs", func() {
		It("should report both sources of an R-type", func() {
			inst, err := insts.ParseLine("ADD R3, R1, R2", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.SrcRegs()).To(Equal([]uint8{1, 2}))
		})

		It("should report only the base register for LW", func() {
			inst, err := insts.ParseLine("LW R2, 4(R5)", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.SrcRegs()).To(Equal([]uint8{5}))
		})

		It("should report value and base registers for SW", func() {
			inst, err := insts.ParseLine("SW R7, 0(R8)", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.SrcRegs()).To(Equal([]uint8{7, 8}))
		})

		It("should report no sources for jumps and NOP", func() {
			inst, err := insts.ParseLine("J 3", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.SrcRegs()).To(BeEmpty())

			inst, err = insts.ParseLine("NOP", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.SrcRegs()).To(BeEmpty())
		})
	})

	Describe("DestReg", func() {
		It("should report the destination of arithmetic and loads", func() {
			inst, err := insts.ParseLine("LW R2, 0(R0)", 0)
			Expect(err).NotTo(HaveOccurred())
			rd, ok := inst.DestReg()
			Expect(ok).To(BeTrue())
			Expect(rd).To(Equal(uint8(2)))

			inst, err = insts.ParseLine("ADD R3, R1, R2", 0)
			Expect(err).NotTo(HaveOccurred())
			rd, ok = inst.DestReg()
			Expect(ok).To(BeTrue())
			Expect(rd).To(Equal(uint8(3)))
		})

		It("should report R31 as the JAL link register", func() {
			inst, err := insts.ParseLine("JAL 5", 0)
			Expect(err).NotTo(HaveOccurred())
			rd, ok := inst.DestReg()
			Expect(ok).To(BeTrue())
			Expect(rd).To(Equal(insts.LinkReg))
		})

		It("should report no destination for stores and branches", func() {
			inst, err := insts.ParseLine("SW R1, 0(R0)", 0)
			Expect(err).NotTo(HaveOccurred())
			_, ok := inst.DestReg()
			Expect(ok).To(BeFalse())

			inst, err = insts.ParseLine("BEQ R1, R2, 2", 0)
			Expect(err).NotTo(HaveOccurred())
			_, ok = inst.DestReg()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("BranchTarget", func() {
		It("should resolve targets relative to the branch index", func() {
			inst, err := insts.ParseLine("BEQ R1, R0, 2", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.BranchTarget()).To(Equal(4))
		})

		It("should allow backward targets", func() {
			inst, err := insts.ParseLine("BNE R1, R0, -2", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.BranchTarget()).To(Equal(3))
		})
	})

	Describe("String", func() {
		It("should keep the raw assembly text", func() {
			inst, err := insts.ParseLine("ADD R3, R1, R2", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.String()).To(Equal("ADD R3, R1, R2"))
		})

		It("should reconstruct programmatic instructions", func() {
			inst := &insts.Instruction{Op: insts.OpLW, Rd: 2, R1: 1, Imm: 8}
			Expect(inst.String()).To(Equal("LW R2, 8(R1)"))
		})
	})
})
