package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mmixsim/mem/cache"
)

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		// Small cache for testing: 4KB, 4-way, 64B lines
		c = cache.New(cache.Config{
			Size:          4 * 1024,
			Associativity: 4,
			BlockSize:     64,
		})
	})

	Describe("Read operations", func() {
		It("should miss on cold cache", func() {
			Expect(c.Read(0x1000)).To(BeFalse())

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(0)))
		})

		It("should hit on cached line", func() {
			c.Read(0x1000)
			Expect(c.Read(0x1000)).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(2)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
		})

		It("should hit on different addresses in same cache line", func() {
			c.Read(0x1000)
			Expect(c.Read(0x103F)).To(BeTrue())
			Expect(c.Read(0x1040)).To(BeFalse())
		})
	})

	Describe("Write operations", func() {
		It("should allocate on write miss", func() {
			Expect(c.Write(0x2000)).To(BeFalse())
			Expect(c.Read(0x2008)).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Writes).To(Equal(uint64(1)))
			Expect(stats.Reads).To(Equal(uint64(1)))
		})
	})

	Describe("Replacement", func() {
		// 4KB / (4 * 64B) = 16 sets, so lines 1KB apart share a set.
		const stride = 16 * 64

		It("should evict the least recently used way", func() {
			for i := uint64(0); i < 4; i++ {
				c.Read(i * stride)
			}
			// Touch line 0 so line 1 becomes LRU.
			c.Read(0)
			c.Read(4 * stride)

			Expect(c.Contains(0)).To(BeTrue())
			Expect(c.Contains(1 * stride)).To(BeFalse())
			Expect(c.Contains(2 * stride)).To(BeTrue())
			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		})

		It("should count writebacks of dirty victims", func() {
			c.Write(0)
			for i := uint64(1); i <= 4; i++ {
				c.Read(i * stride)
			}
			stats := c.Stats()
			Expect(stats.Evictions).To(Equal(uint64(1)))
			Expect(stats.Writebacks).To(Equal(uint64(1)))
		})

		It("should prefer an invalidated way over eviction", func() {
			for i := uint64(0); i < 4; i++ {
				c.Read(i * stride)
			}
			c.Invalidate(2 * stride)
			c.Read(5 * stride)

			Expect(c.Stats().Evictions).To(BeZero())
			Expect(c.Contains(0)).To(BeTrue())
		})
	})

	Describe("Contains", func() {
		It("should not change statistics", func() {
			c.Read(0x40)
			before := c.Stats()
			Expect(c.Contains(0x40)).To(BeTrue())
			Expect(c.Contains(0x4000)).To(BeFalse())
			Expect(c.Stats()).To(Equal(before))
		})
	})

	Describe("Flush", func() {
		It("should write back dirty lines and invalidate everything", func() {
			c.Write(0x100)
			c.Read(0x200)
			c.FlushAll()

			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
			Expect(c.ValidLines()).To(BeZero())
		})

		It("should keep a flushed line cached", func() {
			c.Write(0x100)
			c.Flush(0x100)
			c.Flush(0x100)
			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
			Expect(c.Contains(0x100)).To(BeTrue())
		})
	})

	It("should describe the line holding an address", func() {
		c.Write(0x1040)

		line, ok := c.Line(0x1050)
		Expect(ok).To(BeTrue())
		Expect(line.Addr).To(Equal(uint64(0x1040)))
		Expect(line.Set).To(Equal(1))
		Expect(line.Dirty).To(BeTrue())
		Expect(c.Stats().Hits).To(BeZero())

		_, ok = c.Line(0x2000)
		Expect(ok).To(BeFalse())
	})

	Describe("Reset", func() {
		It("should clear lines and statistics", func() {
			c.Read(0x1000)
			c.Reset()
			Expect(c.Stats()).To(Equal(cache.Statistics{}))
			Expect(c.Read(0x1000)).To(BeFalse())
		})

		It("should zero statistics but keep lines on ResetStats", func() {
			c.Read(0x1000)
			c.ResetStats()
			Expect(c.Stats()).To(Equal(cache.Statistics{}))
			Expect(c.Read(0x1000)).To(BeTrue())
		})
	})

	It("should report its geometry", func() {
		Expect(c.Config().Sets()).To(Equal(16))
		Expect(cache.DefaultICConfig().Sets()).To(Equal(256))
	})
})
