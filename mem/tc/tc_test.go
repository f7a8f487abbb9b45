package tc_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/mem/vm"

	"github.com/sarchlab/mmixsim/mem"
	"github.com/sarchlab/mmixsim/mem/tc"
)

func entry(page uint64) tc.Entry {
	return tc.Entry{Page: page, Frame: 0x10000 + page<<13, Perm: mem.PermRWX}
}

var _ = Describe("Translation cache", func() {
	var c *tc.Cache

	BeforeEach(func() {
		c = tc.New(tc.Config{Sets: 2, Ways: 2})
	})

	It("should miss when empty", func() {
		_, ok := c.Lookup(0, 5)
		Expect(ok).To(BeFalse())
		Expect(c.Stats().Misses).To(Equal(uint64(1)))
	})

	It("should hit after insertion", func() {
		c.Insert(entry(5))
		e, ok := c.Lookup(0, 5)
		Expect(ok).To(BeTrue())
		Expect(e.Frame).To(Equal(uint64(0x10000 + 5<<13)))

		stats := c.Stats()
		Expect(stats.Hits).To(Equal(uint64(1)))
		Expect(stats.Insertions).To(Equal(uint64(1)))
	})

	It("should keep processes apart", func() {
		c.Insert(entry(5))
		_, ok := c.Lookup(vm.PID(3), 5)
		Expect(ok).To(BeFalse())
	})

	It("should replace an existing entry for the same page in place", func() {
		c.Insert(entry(4))
		updated := entry(4)
		updated.Perm = mem.PermRead
		c.Insert(updated)

		Expect(c.Len()).To(Equal(1))
		e, _ := c.Peek(0, 4)
		Expect(e.Perm).To(Equal(mem.PermRead))
	})

	It("should evict the least recently used entry of a set", func() {
		// Even pages share set 0.
		c.Insert(entry(0))
		c.Insert(entry(2))
		c.Lookup(0, 0)
		c.Insert(entry(4))

		_, ok := c.Peek(0, 2)
		Expect(ok).To(BeFalse())
		_, ok = c.Peek(0, 0)
		Expect(ok).To(BeTrue())
		Expect(c.Stats().Evictions).To(Equal(uint64(1)))
	})

	It("should not count a Peek", func() {
		c.Insert(entry(1))
		c.Peek(0, 1)
		c.Peek(0, 9)
		Expect(c.Stats().Hits).To(BeZero())
		Expect(c.Stats().Misses).To(BeZero())
	})

	It("should invalidate a single page", func() {
		c.Insert(entry(1))
		c.Insert(entry(3))
		c.Invalidate(0, 1)
		c.Invalidate(0, 7)

		Expect(c.Len()).To(Equal(1))
		Expect(c.Stats().Invalidations).To(Equal(uint64(1)))
	})

	It("should update or drop an entry in place", func() {
		c.Insert(entry(1))

		Expect(c.Update(0, 1, mem.PermRead)).To(BeTrue())
		e, ok := c.Peek(0, 1)
		Expect(ok).To(BeTrue())
		Expect(e.Perm).To(Equal(mem.PermRead))
		Expect(e.Frame).To(Equal(uint64(0x10000 + 1<<13)))

		Expect(c.Update(0, 1, 0)).To(BeTrue())
		Expect(c.Len()).To(BeZero())
		Expect(c.Update(0, 1, mem.PermRead)).To(BeFalse())
		Expect(c.Update(vm.PID(2), 3, mem.PermRead)).To(BeFalse())
	})

	It("should invalidate everything", func() {
		for p := uint64(0); p < 4; p++ {
			c.Insert(entry(p))
		}
		c.InvalidateAll()
		Expect(c.Len()).To(BeZero())
		Expect(c.Entries()).To(BeEmpty())
	})

	It("should list entries in page order", func() {
		c.Insert(entry(3))
		c.Insert(entry(0))
		c.Insert(entry(1))

		var pages []uint64
		for _, e := range c.Entries() {
			pages = append(pages, e.Page)
		}
		Expect(pages).To(Equal([]uint64{0, 1, 3}))
	})

	It("should clear entries and counters on Reset", func() {
		c.Insert(entry(1))
		c.Lookup(0, 1)
		c.Reset()
		Expect(c.Len()).To(BeZero())
		Expect(c.Stats()).To(Equal(tc.Statistics{}))
	})
})
