package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mmixsim/config"
	"github.com/sarchlab/mmixsim/emu"
	"github.com/sarchlab/mmixsim/fpu"
	"github.com/sarchlab/mmixsim/mem"
)

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	Describe("Default", func() {
		It("should be valid", func() {
			Expect(config.Default().Validate()).To(Succeed())
		})

		It("should use the page map and round to nearest", func() {
			c := config.Default()
			Expect(c.Translation).To(Equal(config.TranslationPageMap))
			Expect(c.MemorySize).To(Equal(uint64(mem.DefaultSize)))
			mode, err := c.Rounding()
			Expect(err).NotTo(HaveOccurred())
			Expect(mode).To(Equal(fpu.RoundNear))
		})
	})

	Describe("Load and Save", func() {
		It("should round-trip JSON", func() {
			path := filepath.Join(tempDir, "sim.json")
			c := config.Default()
			c.RoundingMode = "down"
			c.ITC.Ways = 8

			Expect(c.Save(path)).To(Succeed())
			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(c))
		})

		It("should round-trip YAML", func() {
			path := filepath.Join(tempDir, "sim.yaml")
			c := config.Default()
			c.Translation = config.TranslationRV
			c.TraceOutput = "trace.txt"

			Expect(c.Save(path)).To(Succeed())
			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("translation: rv"))

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(c))
		})

		It("should keep defaults for missing fields", func() {
			path := filepath.Join(tempDir, "partial.yml")
			Expect(os.WriteFile(path, []byte("rounding_mode: up\nic:\n  size: 8192\n"), 0644)).To(Succeed())

			c, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.RoundingMode).To(Equal("up"))
			Expect(c.IC.Size).To(Equal(8192))
			Expect(c.IC.Associativity).To(Equal(4))
			Expect(c.GlobalThreshold).To(Equal(255))
		})

		It("should report a missing file", func() {
			_, err := config.Load(filepath.Join(tempDir, "missing.json"))
			Expect(err).To(MatchError(ContainSubstring("failed to read config file")))
		})

		It("should report malformed JSON", func() {
			path := filepath.Join(tempDir, "bad.json")
			Expect(os.WriteFile(path, []byte("{"), 0644)).To(Succeed())

			_, err := config.Load(path)
			Expect(err).To(MatchError(ContainSubstring("failed to parse config")))
		})
	})

	Describe("Validate", func() {
		DescribeTable("rejects",
			func(mutate func(*config.Config), msg string) {
				c := config.Default()
				mutate(c)
				Expect(c.Validate()).To(MatchError(ContainSubstring(msg)))
			},
			Entry("zero memory", func(c *config.Config) { c.MemorySize = 0 }, "memory_size"),
			Entry("small pages", func(c *config.Config) { c.PageShift = 12 }, "page_shift"),
			Entry("unknown translation", func(c *config.Config) { c.Translation = "tlb" }, "translation"),
			Entry("odd block size", func(c *config.Config) { c.DC.BlockSize = 24 }, "dc"),
			Entry("empty translation cache", func(c *config.Config) { c.ITC.Sets = 0 }, "itc"),
			Entry("unknown rounding mode", func(c *config.Config) { c.RoundingMode = "sideways" }, "rounding_mode"),
			Entry("tiny rG", func(c *config.Config) { c.GlobalThreshold = 8 }, "global_threshold"),
			Entry("unaligned load address", func(c *config.Config) { c.LoadAddress = 2 }, "load_address"),
		)
	})

	Describe("Clone", func() {
		It("should copy independently", func() {
			c := config.Default()
			clone := c.Clone()
			clone.IC.Size = 1024

			Expect(c.IC.Size).To(Equal(32 * 1024))
		})
	})

	Describe("EmulatorOptions", func() {
		It("should build the configured machine", func() {
			c := config.Default()
			c.RoundingMode = "off"
			c.GlobalThreshold = 128

			opts, err := c.EmulatorOptions()
			Expect(err).NotTo(HaveOccurred())
			e := emu.NewEmulator(opts...)

			Expect(e.RegFile().G()).To(Equal(128))
			Expect(fpu.ModeFromRA(e.RegFile().Special(emu.RA))).To(Equal(fpu.RoundOff))
			Expect(e.MMU().Cache(mem.Fetch).Config()).To(Equal(c.IC))
			Expect(e.PageMap()).NotTo(BeNil())
		})

		It("should select rV translation", func() {
			c := config.Default()
			c.Translation = config.TranslationRV

			opts, err := c.EmulatorOptions()
			Expect(err).NotTo(HaveOccurred())
			Expect(emu.NewEmulator(opts...).PageMap()).To(BeNil())
		})

		It("should refuse an invalid configuration", func() {
			c := config.Default()
			c.MemorySize = 3
			_, err := c.EmulatorOptions()
			Expect(err).To(HaveOccurred())
		})
	})
})
