package stats_test

import (
	"bytes"
	"math"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mmixsim/insts"
	"github.com/sarchlab/mmixsim/mem"
	"github.com/sarchlab/mmixsim/stats"
)

var _ = Describe("Collector", func() {
	var c *stats.Collector

	BeforeEach(func() {
		c = stats.NewCollector()
	})

	It("should start at zero", func() {
		Expect(c.Snapshot()).To(Equal(stats.Snapshot{}))
		Expect(c.Enabled()).To(BeTrue())
	})

	It("should count instructions per class", func() {
		c.Instruction(insts.ClassArith, 1, 0)
		c.Instruction(insts.ClassLoad, 1, 1)
		c.Instruction(insts.ClassLoad, 1, 1)

		s := c.Snapshot()
		Expect(s.Instructions).To(Equal(uint64(3)))
		Expect(s.ByClass[insts.ClassArith]).To(Equal(uint64(1)))
		Expect(s.ByClass[insts.ClassLoad]).To(Equal(uint64(2)))
		Expect(s.Cycles).To(Equal(uint64(3)))
		Expect(s.Mems).To(Equal(uint64(2)))
		Expect(s.CPI()).To(Equal(1.0))
	})

	It("should split instruction and data caches", func() {
		c.TranslationAccess(mem.Fetch, false)
		c.TranslationAccess(mem.Fetch, true)
		c.TranslationAccess(mem.Read, true)
		c.TranslationAccess(mem.Write, false)
		c.CacheAccess(mem.Fetch, true)
		c.CacheAccess(mem.Write, false)

		s := c.Snapshot()
		Expect(s.ITC).To(Equal(stats.HitMiss{Hits: 1, Misses: 1}))
		Expect(s.DTC).To(Equal(stats.HitMiss{Hits: 1, Misses: 1}))
		Expect(s.IC).To(Equal(stats.HitMiss{Hits: 1}))
		Expect(s.DC).To(Equal(stats.HitMiss{Misses: 1}))
		Expect(s.ITC.HitRate()).To(Equal(0.5))
	})

	It("should return an immutable snapshot", func() {
		c.Trap()
		s := c.Snapshot()
		c.Trap()

		Expect(s.Traps).To(Equal(uint64(1)))
		Expect(c.Snapshot().Traps).To(Equal(uint64(2)))
	})

	It("should zero every counter on reset", func() {
		c.Instruction(insts.ClassFloat, 4, 0)
		c.TranslationAccess(mem.Read, false)
		c.Trap()

		c.Reset()

		Expect(c.Snapshot()).To(Equal(stats.Snapshot{}))
	})

	It("should not accumulate while disabled", func() {
		c.Enable(false)
		c.Instruction(insts.ClassArith, 1, 0)
		c.CacheAccess(mem.Read, true)
		c.Enable(true)
		c.Instruction(insts.ClassArith, 1, 0)

		Expect(c.Snapshot().Instructions).To(Equal(uint64(1)))
		Expect(c.Snapshot().DC.Accesses()).To(BeZero())
	})

	It("should saturate instead of wrapping", func() {
		c.Instruction(insts.ClassArith, math.MaxUint64, 0)
		c.Instruction(insts.ClassArith, 5, 0)

		Expect(c.Snapshot().Cycles).To(Equal(uint64(math.MaxUint64)))
	})

	It("should never expose a partial reset", func() {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.Instruction(insts.ClassArith, 2, 0)
			}
		}()
		for i := 0; i < 100; i++ {
			c.Reset()
			s := c.Snapshot()
			Expect(s.Cycles).To(Equal(2 * s.Instructions))
		}
		wg.Wait()
	})

	Describe("Format", func() {
		It("should print a stable table", func() {
			c.Instruction(insts.ClassArith, 1, 0)
			c.TranslationAccess(mem.Fetch, false)

			var buf bytes.Buffer
			Expect(c.Snapshot().Format(&buf)).To(Succeed())

			out := buf.String()
			Expect(out).To(ContainSubstring("Instructions: 1\n"))
			Expect(out).To(ContainSubstring("CPI:          1.00\n"))
			Expect(out).To(MatchRegexp(`ITC\s+0\s+1\s+0\.0%`))
			Expect(out).To(ContainSubstring("arith"))
		})
	})
})
