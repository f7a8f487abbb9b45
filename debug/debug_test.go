package debug_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mmixsim/debug"
	"github.com/sarchlab/mmixsim/emu"
	"github.com/sarchlab/mmixsim/insts"
)

type symbol struct {
	name string
	addr uint64
}

type symbols []symbol

func (s symbols) Nearest(addr uint64) (string, uint64, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].addr > addr })
	if i == 0 {
		return "", 0, false
	}
	return s[i-1].name, s[i-1].addr, true
}

func program(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

var _ = Describe("Manager", func() {
	var (
		m *debug.Manager
		e *emu.Emulator
	)

	BeforeEach(func() {
		m = debug.NewManager(debug.WithLogger(GinkgoLogr))
		e = emu.NewEmulator(emu.WithHooks(m))
	})

	Describe("breakpoints", func() {
		It("should add and remove idempotently", func() {
			m.AddBreakpoint(0x100)
			m.AddBreakpoint(0x100)
			Expect(m.Breakpoints()).To(HaveLen(1))

			m.RemoveBreakpoint(0x100)
			m.RemoveBreakpoint(0x100)
			m.RemoveBreakpoint(0x200)
			Expect(m.Breakpoints()).To(BeEmpty())
		})

		It("should list breakpoints sorted", func() {
			m.AddBreakpoint(0x300)
			m.AddBreakpoint(0x100)
			m.AddBreakpoint(0x200)

			Expect(m.Breakpoints()).To(Equal([]debug.Breakpoint{
				{Addr: 0x100, Enabled: true},
				{Addr: 0x200, Enabled: true},
				{Addr: 0x300, Enabled: true},
			}))
		})

		It("should ignore disabled breakpoints", func() {
			m.AddBreakpoint(0x100)
			Expect(m.EnableBreakpoint(0x100, false)).To(BeTrue())
			Expect(m.BreakpointAt(0x100)).To(BeFalse())
			Expect(m.Breakpoints()).To(Equal([]debug.Breakpoint{{Addr: 0x100}}))

			Expect(m.EnableBreakpoint(0x100, true)).To(BeTrue())
			Expect(m.BreakpointAt(0x100)).To(BeTrue())
		})

		It("should report enabling an absent breakpoint", func() {
			Expect(m.EnableBreakpoint(0x100, true)).To(BeFalse())
		})
	})

	Describe("tracepoints", func() {
		It("should trace only the chosen addresses", func() {
			m.AddTracepoint(0x10)
			Expect(m.Traces(0x10)).To(BeTrue())
			Expect(m.Traces(0x14)).To(BeFalse())

			m.RemoveTracepoint(0x10)
			m.RemoveTracepoint(0x10)
			Expect(m.Traces(0x10)).To(BeFalse())
		})

		It("should trace everything when all is set", func() {
			m.AddTracepoint(0x10)
			m.TraceAll(true)
			Expect(m.Traces(0x999)).To(BeTrue())

			m.TraceAll(false)
			Expect(m.Traces(0x999)).To(BeFalse())
			Expect(m.Tracepoints()).To(Equal([]uint64{0x10}))
		})
	})

	Describe("Last", func() {
		It("should keep the effects of an untraced instruction", func() {
			_, ok := m.Last()
			Expect(ok).To(BeFalse())

			Expect(e.LoadProgram(0, program(
				insts.EncodeYZ(insts.OpSETL, 1, 5),
			))).To(Succeed())
			e.Step()

			last, ok := m.Last()
			Expect(ok).To(BeTrue())
			Expect(last.PC).To(BeZero())
			Expect(last.Deltas).To(ContainElement(emu.RegDelta{Reg: "$1", Old: 0, New: 5}))
			Expect(m.Trace()).To(BeEmpty())

			m.Reset()
			_, ok = m.Last()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("a three-instruction loop", func() {
		BeforeEach(func() {
			e.RegFile().WriteReg(2, 100)
			Expect(e.LoadProgram(0, program(
				insts.EncodeYZ(insts.OpINCL, 1, 1),
				insts.Encode(insts.OpSUB+1, 2, 2, 1),
				insts.EncodeRel(insts.OpPBNZ, 2, -8),
			))).To(Succeed())
			m.AddBreakpoint(0)
			m.AddTracepoint(0)
		})

		It("should stop at each hit of the loop head", func() {
			for i := 0; i < 3; i++ {
				result := e.Run(5)
				Expect(result.Last.Breakpoint).To(BeTrue())
				Expect(result.Steps).To(Equal(uint64(3)))
			}

			Expect(e.InstructionCount()).To(Equal(uint64(9)))
			Expect(e.RegFile().PC).To(BeZero())

			trace := m.Trace()
			Expect(trace).To(HaveLen(3))
			for _, entry := range trace {
				Expect(entry.PC).To(BeZero())
				Expect(entry.Mnemonic).To(HavePrefix("INCL"))
			}
		})

		It("should record register deltas of traced instructions", func() {
			e.Run(5)

			trace := m.Trace()
			Expect(trace[0].Deltas).To(ContainElement(emu.RegDelta{Reg: "$1", Old: 0, New: 1}))
		})
	})

	Describe("RenderTrace", func() {
		It("should render traced steps in order", func() {
			Expect(e.LoadProgram(0x1000, program(
				insts.EncodeYZ(insts.OpSETL, 1, 1),
				insts.EncodeYZ(insts.OpSETL, 2, 2),
				insts.EncodeYZ(insts.OpSETL, 3, 3),
				insts.EncodeYZ(insts.OpSETL, 4, 4),
				insts.Encode(insts.OpTRAP, 0, 0, 0),
			))).To(Succeed())
			m.TraceAll(true)

			e.Run(4)

			var buf bytes.Buffer
			Expect(m.RenderTrace(&buf, false)).To(Succeed())
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			Expect(lines).To(HaveLen(4))
			for i, line := range lines {
				Expect(line).To(HavePrefix("#%016X", 0x1000+4*i))
			}

			seqs := []uint64{}
			for _, entry := range m.Trace() {
				seqs = append(seqs, entry.Seq)
			}
			Expect(seqs).To(Equal([]uint64{1, 2, 3, 4}))
		})

		Context("with calls and returns", func() {
			BeforeEach(func() {
				Expect(e.LoadProgram(0x1000, program(
					insts.EncodeRel(insts.OpPUSHJ, 0, 12),
					insts.EncodeRel(insts.OpPUSHJ, 0, 8),
					insts.Encode(insts.OpTRAP, 0, 0, 0),
					insts.EncodeYZ(insts.OpPOP, 0, 0),
				))).To(Succeed())
				m.TraceAll(true)
				e.Run(4)
			})

			It("should nest each call with its return", func() {
				tree := m.TraceTree()

				Expect(tree).To(HaveLen(2))
				for _, n := range tree {
					Expect(n.Entry.Flow).To(Equal(emu.FlowCall))
					Expect(n.Children).To(HaveLen(1))
					Expect(n.Children[0].Entry.Flow).To(Equal(emu.FlowReturn))
					Expect(n.Children[0].Children).To(BeEmpty())
				}
			})

			It("should indent the tree rendering", func() {
				var buf bytes.Buffer
				Expect(m.RenderTrace(&buf, true)).To(Succeed())

				lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
				Expect(lines).To(HaveLen(4))
				Expect(lines[0]).To(HavePrefix("#0000000000001000"))
				Expect(lines[1]).To(HavePrefix("  #000000000000100C"))
				Expect(lines[2]).To(HavePrefix("#0000000000001004"))
				Expect(lines[3]).To(HavePrefix("  #000000000000100C"))
			})

			It("should build the call tree", func() {
				root := m.CallTree()
				Expect(root.Children).To(HaveLen(2))
				Expect(root.Children[0].Site).To(Equal(uint64(0x1000)))
				Expect(root.Children[0].Target).To(Equal(uint64(0x100C)))
				Expect(root.Children[0].Returned).To(BeTrue())
				Expect(root.Children[1].Site).To(Equal(uint64(0x1004)))
			})
		})

		It("should flatten orphan returns", func() {
			Expect(e.LoadProgram(0x1000, program(
				insts.EncodeRel(insts.OpPUSHJ, 0, 8),
				insts.Encode(insts.OpTRAP, 0, 0, 0),
				insts.EncodeYZ(insts.OpSETL, 1, 1),
				insts.EncodeYZ(insts.OpPOP, 0, 0),
			))).To(Succeed())
			m.AddTracepoint(0x100C)

			e.Run(3)

			tree := m.TraceTree()
			Expect(tree).To(HaveLen(1))
			Expect(tree[0].Entry.Flow).To(Equal(emu.FlowReturn))

			var buf bytes.Buffer
			Expect(m.RenderTrace(&buf, true)).To(Succeed())
			Expect(buf.String()).To(HavePrefix("#000000000000100C"))
		})

		Context("with a trap handled inside a call", func() {
			BeforeEach(func() {
				Expect(e.LoadProgram(0x1000, program(
					insts.EncodeYZ(insts.OpSETL, 1, 0x1030),
					insts.Encode(insts.OpPUT, uint8(emu.RT), 0, 1),
					insts.EncodeRel(insts.OpPUSHJ, 2, 12),
					insts.Encode(insts.OpTRAP, 0, 0, 0),
					0,
					insts.Encode(insts.OpGET, 0, 0, uint8(emu.RJ)), // #1014
					insts.Encode(insts.OpTRAP, 1, 0, 0),
					insts.EncodeRel(insts.OpPUSHJ, 1, 12),
					insts.Encode(insts.OpPUT, uint8(emu.RJ), 0, 0),
					insts.EncodeYZ(insts.OpPOP, 0, 0),
					insts.EncodeYZ(insts.OpPOP, 0, 0), // #1028
					0,
					insts.Encode(insts.OpRESUME, 0, 0, 1), // #1030
				))).To(Succeed())
				m.TraceAll(true)
				e.Run(20)
				Expect(e.IsHalted()).To(BeTrue())
				Expect(e.RegFile().PC).To(Equal(uint64(0x100C)))
			})

			It("should keep the resumed call open in the call tree", func() {
				root := m.CallTree()
				Expect(root.Children).To(HaveLen(1))

				outer := root.Children[0]
				Expect(outer.Site).To(Equal(uint64(0x1008)))
				Expect(outer.Returned).To(BeTrue())
				Expect(outer.Children).To(HaveLen(1))
				Expect(outer.Children[0].Site).To(Equal(uint64(0x101C)))
				Expect(outer.Children[0].Target).To(Equal(uint64(0x1028)))
				Expect(outer.Children[0].Returned).To(BeTrue())
			})

			It("should nest the inner call under the outer one in the trace tree", func() {
				var outer *debug.TraceNode
				for _, n := range m.TraceTree() {
					if n.Entry.Flow == emu.FlowCall {
						outer = n
					}
				}
				Expect(outer).NotTo(BeNil())
				Expect(outer.Entry.PC).To(Equal(uint64(0x1008)))

				flows := []emu.FlowKind{}
				for _, c := range outer.Children {
					flows = append(flows, c.Entry.Flow)
				}
				Expect(flows).To(Equal([]emu.FlowKind{
					emu.FlowNone, emu.FlowTrap, emu.FlowResume,
					emu.FlowCall, emu.FlowNone, emu.FlowReturn,
				}))
				Expect(outer.Children[3].Children).To(HaveLen(1))
				Expect(outer.Children[3].Children[0].Entry.Flow).To(Equal(emu.FlowReturn))
			})
		})
	})

	Describe("Backtrace", func() {
		BeforeEach(func() {
			m.SetSymbols(symbols{
				{"Main", 0x1000},
				{"Outer", 0x1010},
				{"Inner", 0x1020},
			})
			Expect(e.LoadProgram(0x1000, program(
				insts.EncodeRel(insts.OpPUSHJ, 0, 16), // Main
				insts.Encode(insts.OpTRAP, 0, 0, 0),
				0, 0,
				insts.EncodeRel(insts.OpPUSHJ, 0, 16), // Outer
				insts.EncodeYZ(insts.OpPOP, 0, 0),
				0, 0,
				insts.EncodeYZ(insts.OpSETL, 1, 1), // Inner
				insts.EncodeYZ(insts.OpPOP, 0, 0),
			))).To(Succeed())
		})

		It("should be empty before execution starts", func() {
			Expect(m.Backtrace(e, 0)).To(BeEmpty())
		})

		It("should walk from the innermost frame outward", func() {
			e.Run(2)

			Expect(m.Backtrace(e, 0)).To(Equal([]debug.BacktraceFrame{
				{Index: 0, Addr: 0x1020, Symbol: "Inner"},
				{Index: 1, Addr: 0x1014, Symbol: "Outer", Offset: 4},
				{Index: 2, Addr: 0x1004, Symbol: "Main", Offset: 4},
			}))
		})

		It("should stop at the maximum depth", func() {
			e.Run(2)

			frames := m.Backtrace(e, 2)
			Expect(frames).To(HaveLen(2))
			Expect(frames[1].String()).To(Equal("#1  #0000000000001014 in Outer+0x4"))
		})

		It("should recompute after returns", func() {
			e.Run(4)

			Expect(m.Backtrace(e, 0)).To(HaveLen(2))
		})

		It("should write the call tree to a file", func() {
			e.Run(2)
			path := filepath.Join(GinkgoT().TempDir(), "calls.txt")

			Expect(m.WriteCallTree(path)).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(Equal(
				"Outer (#1010) <- Main (#1000) *\n" +
					"  Inner (#1020) <- Outer (#1010) *\n"))
		})

		It("should fail to write into a missing directory", func() {
			path := filepath.Join(GinkgoT().TempDir(), "missing", "calls.txt")
			Expect(m.WriteCallTree(path)).To(MatchError(ContainSubstring("create")))
		})
	})

	Describe("trace output", func() {
		It("should stream traced entries until shutdown", func() {
			path := filepath.Join(GinkgoT().TempDir(), "trace.txt")
			Expect(m.OpenTraceOutput(path)).To(Succeed())
			Expect(e.LoadProgram(0x1000, program(
				insts.EncodeYZ(insts.OpSETL, 1, 1),
				insts.EncodeYZ(insts.OpSETL, 2, 2),
			))).To(Succeed())
			m.TraceAll(true)

			e.Run(2)
			Expect(m.Shutdown()).To(Succeed())
			Expect(m.TraceOutputOpen()).To(BeFalse())

			data, err := os.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(strings.Count(string(data), "\n")).To(Equal(2))
			Expect(string(data)).To(ContainSubstring("$2: #0 -> #2"))
		})

		It("should report an unopenable path", func() {
			path := filepath.Join(GinkgoT().TempDir(), "missing", "trace.txt")
			Expect(m.OpenTraceOutput(path)).To(HaveOccurred())
			Expect(m.TraceOutputOpen()).To(BeFalse())
		})

		It("should succeed on shutdown without an output", func() {
			Expect(m.Shutdown()).To(Succeed())
		})
	})

	Describe("Reset", func() {
		It("should clear debugger state but not machine state", func() {
			Expect(e.LoadProgram(0x1000, program(
				insts.EncodeYZ(insts.OpSETL, 1, 1),
			))).To(Succeed())
			m.AddBreakpoint(0x1000)
			m.AddTracepoint(0x1000)
			m.TraceAll(true)
			e.Step()

			m.Reset()

			Expect(m.Breakpoints()).To(BeEmpty())
			Expect(m.Tracepoints()).To(BeEmpty())
			Expect(m.TracingAll()).To(BeFalse())
			Expect(m.Trace()).To(BeEmpty())
			Expect(m.CallTree().Children).To(BeEmpty())
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint64(1)))
		})
	})
})
