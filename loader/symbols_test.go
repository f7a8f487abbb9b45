package loader_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mmixsim/loader"
)

var _ = Describe("SymbolTable", func() {
	var t *loader.SymbolTable

	BeforeEach(func() {
		t = loader.NewSymbolTable([]loader.Symbol{
			{Name: "Inner", Addr: 0x1020},
			{Name: "Main", Addr: 0x1000},
			{Name: "Alias", Addr: 0x1000},
			{Name: "Outer", Addr: 0x1010},
		})
	})

	It("should find the symbol at or before an address", func() {
		name, base, ok := t.Nearest(0x1018)
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal("Outer"))
		Expect(base).To(Equal(uint64(0x1010)))

		name, _, _ = t.Nearest(0x1020)
		Expect(name).To(Equal("Inner"))

		name, _, _ = t.Nearest(0xFFFFFF)
		Expect(name).To(Equal("Inner"))
	})

	It("should prefer the first listed of symbols sharing an address", func() {
		name, _, ok := t.Nearest(0x1004)
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal("Main"))
	})

	It("should find nothing before the first symbol", func() {
		_, _, ok := t.Nearest(0xFFF)
		Expect(ok).To(BeFalse())
	})

	It("should look up addresses by name", func() {
		addr, ok := t.Address("Outer")
		Expect(ok).To(BeTrue())
		Expect(addr).To(Equal(uint64(0x1010)))

		_, ok = t.Address("Missing")
		Expect(ok).To(BeFalse())
	})

	It("should merge tables", func() {
		merged := t.Merge(loader.NewSymbolTable([]loader.Symbol{{Name: "Extra", Addr: 0x2000}}))
		Expect(merged.Len()).To(Equal(5))
		Expect(t.Len()).To(Equal(4))
	})

	Describe("ReadSymbolMap", func() {
		It("should parse nm output", func() {
			m, err := loader.ReadSymbolMap(strings.NewReader(
				"# symbols\n" +
					"0000000000001000 T Main\n" +
					"\n" +
					"2000 Data\n" +
					"0x3000 D Buffer\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Symbols()).To(Equal([]loader.Symbol{
				{Name: "Main", Addr: 0x1000},
				{Name: "Data", Addr: 0x2000},
				{Name: "Buffer", Addr: 0x3000},
			}))
		})

		It("should reject a malformed line", func() {
			_, err := loader.ReadSymbolMap(strings.NewReader("1000 T Main extra\n"))
			Expect(err).To(MatchError(ContainSubstring("line 1")))
		})

		It("should reject a bad address", func() {
			_, err := loader.ReadSymbolMap(strings.NewReader("xyz Main\n"))
			Expect(err).To(MatchError(ContainSubstring("line 1")))
		})
	})
})
