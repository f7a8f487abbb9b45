package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mmixsim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("Register and immediate pairs", func() {
		// ADD $1,$2,$3 -> 0x20010203
		It("should decode ADD $1,$2,$3", func() {
			inst := decoder.Decode(0x20010203)

			Expect(inst.Op).To(Equal(insts.OpADD))
			Expect(inst.Format).To(Equal(insts.FormatArith))
			Expect(inst.X).To(Equal(uint8(1)))
			Expect(inst.Y).To(Equal(uint8(2)))
			Expect(inst.Z).To(Equal(uint8(3)))
			Expect(inst.Immediate).To(BeFalse())
			Expect(inst.Name()).To(Equal("ADD"))
		})

		// ADD $1,$2,42 -> 0x2101022A
		It("should decode the immediate variant", func() {
			inst := decoder.Decode(0x2101022A)

			Expect(inst.Op).To(Equal(insts.Op(0x21)))
			Expect(inst.Base()).To(Equal(insts.OpADD))
			Expect(inst.Immediate).To(BeTrue())
			Expect(inst.Z).To(Equal(uint8(42)))
			Expect(insts.Disassemble(inst)).To(Equal("ADD $1,$2,42"))
		})

		It("should keep single opcodes as their own base", func() {
			inst := decoder.Decode(insts.Encode(insts.OpFSQRT, 1, 0, 2))
			Expect(inst.Base()).To(Equal(insts.OpFSQRT))
			Expect(inst.Immediate).To(BeFalse())
		})
	})

	Describe("Relative offsets", func() {
		It("should decode a forward branch", func() {
			inst := decoder.Decode(insts.EncodeRel(insts.OpBZ, 3, 12))

			Expect(inst.Op).To(Equal(insts.OpBZ))
			Expect(inst.Format).To(Equal(insts.FormatBranch))
			Expect(inst.Backward).To(BeFalse())
			Expect(inst.RelOffset()).To(Equal(int64(12)))
		})

		It("should decode a backward branch", func() {
			inst := decoder.Decode(insts.EncodeRel(insts.OpPBNZ, 1, -8))

			Expect(inst.Op).To(Equal(insts.OpPBNZ | 1))
			Expect(inst.Backward).To(BeTrue())
			Expect(inst.Immediate).To(BeFalse())
			Expect(inst.RelOffset()).To(Equal(int64(-8)))
			Expect(insts.Disassemble(inst)).To(Equal("PBNZ $1,@-8"))
		})

		It("should use the 24-bit field for JMP", func() {
			inst := decoder.Decode(insts.EncodeRel(insts.OpJMP, 0, -0x40000))
			Expect(inst.Format).To(Equal(insts.FormatJump))
			Expect(inst.RelOffset()).To(Equal(int64(-0x40000)))

			inst = decoder.Decode(insts.EncodeRel(insts.OpJMP, 0, 0x100000))
			Expect(inst.RelOffset()).To(Equal(int64(0x100000)))
		})

		It("should decode PUSHJ as a relative push", func() {
			inst := decoder.Decode(insts.EncodeRel(insts.OpPUSHJ, 2, 16))
			Expect(inst.Format).To(Equal(insts.FormatPush))
			Expect(inst.Base()).To(Equal(insts.OpPUSHJ))
			Expect(inst.RelOffset()).To(Equal(int64(16)))
		})
	})

	DescribeTable("opcode table",
		func(op insts.Op, name string, format insts.Format, class insts.Class) {
			info := insts.Info(op)
			Expect(info.Name).To(Equal(name))
			Expect(info.Format).To(Equal(format))
			Expect(info.Class).To(Equal(class))
		},
		Entry("TRAP", insts.OpTRAP, "TRAP", insts.FormatTrap, insts.ClassSystem),
		Entry("FADD", insts.OpFADD, "FADD", insts.FormatFloat, insts.ClassFloat),
		Entry("16ADDUI", insts.Op16ADDU|1, "16ADDU", insts.FormatArith, insts.ClassArith),
		Entry("PBEVB", insts.Op(0x5F), "PBEV", insts.FormatBranch, insts.ClassBranch),
		Entry("ZSEVI", insts.Op(0x7F), "ZSEV", insts.FormatCondSet, insts.ClassArith),
		Entry("LDOUI", insts.OpLDOU|1, "LDOU", insts.FormatLoad, insts.ClassLoad),
		Entry("STCO", insts.OpSTCO, "STCO", insts.FormatStore, insts.ClassStore),
		Entry("MXORI", insts.OpMXOR|1, "MXOR", insts.FormatLogic, insts.ClassLogic),
		Entry("ANDNL", insts.OpANDNL, "ANDNL", insts.FormatWyde, insts.ClassLogic),
		Entry("POP", insts.OpPOP, "POP", insts.FormatPop, insts.ClassJump),
		Entry("GET", insts.OpGET, "GET", insts.FormatSpecial, insts.ClassSystem),
		Entry("SFLOT", insts.OpSFLOT, "SFLOT", insts.FormatFloat, insts.ClassFloat),
		Entry("SFLOTI", insts.OpSFLOT|1, "SFLOT", insts.FormatFloat, insts.ClassFloat),
		Entry("SFLOTU", insts.OpSFLOTU, "SFLOTU", insts.FormatFloat, insts.ClassFloat),
		Entry("SFLOTUI", insts.OpSFLOTU|1, "SFLOTU", insts.FormatFloat, insts.ClassFloat),
		Entry("FCMPE", insts.OpFCMPE, "FCMPE", insts.FormatFloat, insts.ClassFloat),
		Entry("FUNE", insts.OpFUNE, "FUNE", insts.FormatFloat, insts.ClassFloat),
		Entry("FEQLE", insts.OpFEQLE, "FEQLE", insts.FormatFloat, insts.ClassFloat),
		Entry("LDSF", insts.OpLDSF, "LDSF", insts.FormatLoad, insts.ClassLoad),
		Entry("LDSFI", insts.OpLDSF|1, "LDSF", insts.FormatLoad, insts.ClassLoad),
		Entry("STSF", insts.OpSTSF, "STSF", insts.FormatStore, insts.ClassStore),
		Entry("STSFI", insts.OpSTSF|1, "STSF", insts.FormatStore, insts.ClassStore),
		Entry("LDVTS", insts.OpLDVTS, "LDVTS", insts.FormatTranslate, insts.ClassSystem),
		Entry("LDVTSI", insts.OpLDVTS|1, "LDVTS", insts.FormatTranslate, insts.ClassSystem),
		Entry("SAVE", insts.OpSAVE, "SAVE", insts.FormatSave, insts.ClassSystem),
		Entry("UNSAVE", insts.OpUNSAVE, "UNSAVE", insts.FormatSave, insts.ClassSystem),
	)

	It("should name every opcode", func() {
		for op := 0; op < 256; op++ {
			Expect(insts.Op(op).Name()).ToNot(BeEmpty(), "opcode %#02x", op)
		}
	})

	It("should give every opcode an execution format", func() {
		for op := 0; op < 256; op++ {
			Expect(insts.Info(insts.Op(op)).Format).ToNot(Equal(insts.FormatUnknown), "opcode %#02x", op)
		}
	})

	DescribeTable("disassembly of system and single-precision instructions",
		func(word uint32, want string) {
			Expect(insts.Disassemble(decoder.Decode(word))).To(Equal(want))
		},
		Entry("SFLOT with a rounding mode", insts.Encode(insts.OpSFLOT, 1, 4, 2), "SFLOT $1,4,$2"),
		Entry("SFLOTUI", insts.Encode(insts.OpSFLOTU|1, 1, 0, 7), "SFLOTU $1,0,7"),
		Entry("FCMPE", insts.Encode(insts.OpFCMPE, 1, 2, 3), "FCMPE $1,$2,$3"),
		Entry("LDSFI", insts.Encode(insts.OpLDSF|1, 1, 2, 8), "LDSF $1,$2,8"),
		Entry("LDVTS", insts.Encode(insts.OpLDVTS, 1, 2, 3), "LDVTS $1,$2,$3"),
		Entry("SAVE", insts.Encode(insts.OpSAVE, 255, 0, 0), "SAVE $255,0"),
		Entry("UNSAVE", insts.Encode(insts.OpUNSAVE, 0, 0, 255), "UNSAVE 0,$255"),
	)

	It("should charge memory operations to loads and stores", func() {
		Expect(insts.Info(insts.OpLDO).Mems).To(Equal(uint8(1)))
		Expect(insts.Info(insts.OpSTB).Mems).To(Equal(uint8(1)))
		Expect(insts.Info(insts.OpADD).Mems).To(BeZero())
		Expect(insts.Info(insts.OpDIV).Oops).To(Equal(uint8(60)))
	})
})
