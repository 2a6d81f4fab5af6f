package tomasulo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomsim/timing/tomasulo"
)

var _ = Describe("RAT", func() {
	var rat *tomasulo.RAT

	BeforeEach(func() {
		rat = tomasulo.NewRAT()
	})

	It("should start with every register architectural", func() {
		for reg := uint8(0); reg < 32; reg++ {
			_, renamed := rat.Lookup(reg)
			Expect(renamed).To(BeFalse())
		}
	})

	It("should record a rename", func() {
		rat.RenameDest(5, 7)
		tag, renamed := rat.Lookup(5)
		Expect(renamed).To(BeTrue())
		Expect(tag).To(Equal(7))
	})

	It("should keep at most one alias per register", func() {
		rat.RenameDest(5, 7)
		rat.RenameDest(5, 9)
		tag, renamed := rat.Lookup(5)
		Expect(renamed).To(BeTrue())
		Expect(tag).To(Equal(9))
	})

	It("should never rename R0", func() {
		rat.RenameDest(0, 3)
		_, renamed := rat.Lookup(0)
		Expect(renamed).To(BeFalse())
	})

	Describe("ClearIfMatches", func() {
		It("should clear a matching alias", func() {
			rat.RenameDest(5, 7)
			rat.ClearIfMatches(5, 7)
			_, renamed := rat.Lookup(5)
			Expect(renamed).To(BeFalse())
		})

		It("should preserve a newer rename of the same register", func() {
			rat.RenameDest(5, 7)
			rat.RenameDest(5, 9)
			rat.ClearIfMatches(5, 7)
			tag, renamed := rat.Lookup(5)
			Expect(renamed).To(BeTrue())
			Expect(tag).To(Equal(9))
		})
	})

	It("should clear every alias on FlushAll", func() {
		rat.RenameDest(1, 2)
		rat.RenameDest(3, 4)
		rat.FlushAll()
		for reg := uint8(0); reg < 32; reg++ {
			_, renamed := rat.Lookup(reg)
			Expect(renamed).To(BeFalse())
		}
	})
})
