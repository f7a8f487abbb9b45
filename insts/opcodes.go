package insts

// Op is an MMIX opcode byte.
type Op uint8

// Named opcodes. Paired opcodes are named by their even member; the odd
// member is the immediate (or backward) variant.
const (
	OpTRAP  Op = 0x00
	OpFCMP  Op = 0x01
	OpFUN   Op = 0x02
	OpFEQL  Op = 0x03
	OpFADD  Op = 0x04
	OpFIX   Op = 0x05
	OpFSUB  Op = 0x06
	OpFIXU  Op = 0x07
	OpFLOT  Op = 0x08
	OpFLOTU  Op = 0x0A
	OpSFLOT  Op = 0x0C
	OpSFLOTU Op = 0x0E
	OpFMUL   Op = 0x10
	OpFCMPE  Op = 0x11
	OpFUNE   Op = 0x12
	OpFEQLE  Op = 0x13
	OpFDIV   Op = 0x14
	OpFSQRT Op = 0x15
	OpFREM  Op = 0x16
	OpFINT  Op = 0x17

	OpMUL    Op = 0x18
	OpMULU   Op = 0x1A
	OpDIV    Op = 0x1C
	OpDIVU   Op = 0x1E
	OpADD    Op = 0x20
	OpADDU   Op = 0x22
	OpSUB    Op = 0x24
	OpSUBU   Op = 0x26
	Op2ADDU  Op = 0x28
	Op4ADDU  Op = 0x2A
	Op8ADDU  Op = 0x2C
	Op16ADDU Op = 0x2E
	OpCMP    Op = 0x30
	OpCMPU   Op = 0x32
	OpNEG    Op = 0x34
	OpNEGU   Op = 0x36
	OpSL     Op = 0x38
	OpSLU    Op = 0x3A
	OpSR     Op = 0x3C
	OpSRU    Op = 0x3E

	OpBN   Op = 0x40
	OpBZ   Op = 0x42
	OpBP   Op = 0x44
	OpBOD  Op = 0x46
	OpBNN  Op = 0x48
	OpBNZ  Op = 0x4A
	OpBNP  Op = 0x4C
	OpBEV  Op = 0x4E
	OpPBN  Op = 0x50
	OpPBZ  Op = 0x52
	OpPBNZ Op = 0x5A
	OpCSN  Op = 0x60
	OpCSZ  Op = 0x62
	OpZSN  Op = 0x70
	OpZSZ  Op = 0x72

	OpLDB   Op = 0x80
	OpLDBU  Op = 0x82
	OpLDW   Op = 0x84
	OpLDWU  Op = 0x86
	OpLDT   Op = 0x88
	OpLDTU  Op = 0x8A
	OpLDO   Op = 0x8C
	OpLDOU  Op = 0x8E
	OpLDSF  Op = 0x90
	OpLDHT  Op = 0x92
	OpCSWAP Op = 0x94
	OpLDUNC Op = 0x96
	OpLDVTS Op = 0x98
	OpPRELD Op = 0x9A
	OpPREGO Op = 0x9C
	OpGO    Op = 0x9E

	OpSTB    Op = 0xA0
	OpSTBU   Op = 0xA2
	OpSTW    Op = 0xA4
	OpSTWU   Op = 0xA6
	OpSTT    Op = 0xA8
	OpSTTU   Op = 0xAA
	OpSTO    Op = 0xAC
	OpSTOU   Op = 0xAE
	OpSTSF   Op = 0xB0
	OpSTHT   Op = 0xB2
	OpSTCO   Op = 0xB4
	OpSTUNC  Op = 0xB6
	OpSYNCD  Op = 0xB8
	OpPREST  Op = 0xBA
	OpSYNCID Op = 0xBC
	OpPUSHGO Op = 0xBE

	OpOR   Op = 0xC0
	OpORN  Op = 0xC2
	OpNOR  Op = 0xC4
	OpXOR  Op = 0xC6
	OpAND  Op = 0xC8
	OpANDN Op = 0xCA
	OpNAND Op = 0xCC
	OpNXOR Op = 0xCE
	OpBDIF Op = 0xD0
	OpWDIF Op = 0xD2
	OpTDIF Op = 0xD4
	OpODIF Op = 0xD6
	OpMUX  Op = 0xD8
	OpSADD Op = 0xDA
	OpMOR  Op = 0xDC
	OpMXOR Op = 0xDE

	OpSETH   Op = 0xE0
	OpSETMH  Op = 0xE1
	OpSETML  Op = 0xE2
	OpSETL   Op = 0xE3
	OpINCH   Op = 0xE4
	OpINCMH  Op = 0xE5
	OpINCML  Op = 0xE6
	OpINCL   Op = 0xE7
	OpORH    Op = 0xE8
	OpORMH   Op = 0xE9
	OpORML   Op = 0xEA
	OpORL    Op = 0xEB
	OpANDNH  Op = 0xEC
	OpANDNMH Op = 0xED
	OpANDNML Op = 0xEE
	OpANDNL  Op = 0xEF

	OpJMP    Op = 0xF0
	OpPUSHJ  Op = 0xF2
	OpGETA   Op = 0xF4
	OpPUT    Op = 0xF6
	OpPOP    Op = 0xF8
	OpRESUME Op = 0xF9
	OpSAVE   Op = 0xFA
	OpUNSAVE Op = 0xFB
	OpSYNC   Op = 0xFC
	OpSWYM   Op = 0xFD
	OpGET    Op = 0xFE
	OpTRIP   Op = 0xFF
)

// Format groups opcodes by how the execution engine handles them.
type Format uint8

// Instruction formats.
const (
	FormatUnknown   Format = iota // executes as illegal
	FormatTrap                    // TRAP, TRIP
	FormatArith                   // integer arithmetic, compare, shift
	FormatLogic                   // bitwise and byte-wise operations
	FormatWyde                    // SETH..ANDNL with a 16-bit YZ immediate
	FormatCondSet                 // CSxx, ZSxx
	FormatFloat                   // floating point
	FormatBranch                  // Bxx, PBxx with a relative YZ offset
	FormatLoad                    // loads and CSWAP
	FormatStore                   // stores
	FormatHint                    // cache hints and SYNC/SWYM
	FormatJump                    // JMP with a relative XYZ offset
	FormatGeta                    // GETA with a relative YZ offset
	FormatGo                      // GO
	FormatPush                    // PUSHJ, PUSHGO
	FormatPop                     // POP
	FormatSpecial                 // GET, PUT
	FormatResume                  // RESUME
	FormatSave                    // SAVE, UNSAVE
	FormatTranslate               // LDVTS
)

// Class is the statistics category of an opcode.
type Class uint8

// Statistics classes.
const (
	ClassArith Class = iota
	ClassLogic
	ClassFloat
	ClassLoad
	ClassStore
	ClassBranch
	ClassJump
	ClassSystem

	NumClasses = int(ClassSystem) + 1
)

var classNames = [NumClasses]string{
	"arith", "logic", "float", "load", "store", "branch", "jump", "system",
}

// String returns the lower-case class name.
func (c Class) String() string {
	if int(c) < NumClasses {
		return classNames[c]
	}
	return "unknown"
}

// OpInfo describes one opcode.
type OpInfo struct {
	// Name is the assembler mnemonic, shared by both members of a pair.
	Name   string
	Format Format
	Class  Class
	// Oops is the cost in cycles (υ) and Mems the number of memory
	// accesses (μ) charged by the cost model.
	Oops uint8
	Mems uint8

	paired   bool
	relative bool
}

var opTable [256]OpInfo

// Info returns the table entry for an opcode.
func Info(op Op) OpInfo {
	return opTable[op]
}

// Name returns the mnemonic of an opcode.
func (op Op) Name() string {
	return opTable[op].Name
}

type opRow struct {
	op       Op
	name     string
	format   Format
	class    Class
	oops     uint8
	mems     uint8
	paired   bool
	relative bool
}

func single(op Op, name string, f Format, c Class, oops, mems uint8) opRow {
	return opRow{op: op, name: name, format: f, class: c, oops: oops, mems: mems}
}

func pair(op Op, name string, f Format, c Class, oops, mems uint8) opRow {
	return opRow{op: op, name: name, format: f, class: c, oops: oops, mems: mems, paired: true}
}

func relPair(op Op, name string, f Format, c Class) opRow {
	return opRow{op: op, name: name, format: f, class: c, oops: 1, paired: true, relative: true}
}

func opRows() []opRow {
	rows := []opRow{
		single(OpTRAP, "TRAP", FormatTrap, ClassSystem, 5, 0),
		single(OpFCMP, "FCMP", FormatFloat, ClassFloat, 1, 0),
		single(OpFUN, "FUN", FormatFloat, ClassFloat, 1, 0),
		single(OpFEQL, "FEQL", FormatFloat, ClassFloat, 1, 0),
		single(OpFADD, "FADD", FormatFloat, ClassFloat, 4, 0),
		single(OpFIX, "FIX", FormatFloat, ClassFloat, 4, 0),
		single(OpFSUB, "FSUB", FormatFloat, ClassFloat, 4, 0),
		single(OpFIXU, "FIXU", FormatFloat, ClassFloat, 4, 0),
		pair(OpFLOT, "FLOT", FormatFloat, ClassFloat, 4, 0),
		pair(OpFLOTU, "FLOTU", FormatFloat, ClassFloat, 4, 0),
		pair(OpSFLOT, "SFLOT", FormatFloat, ClassFloat, 4, 0),
		pair(OpSFLOTU, "SFLOTU", FormatFloat, ClassFloat, 4, 0),
		single(OpFMUL, "FMUL", FormatFloat, ClassFloat, 4, 0),
		single(OpFCMPE, "FCMPE", FormatFloat, ClassFloat, 4, 0),
		single(OpFUNE, "FUNE", FormatFloat, ClassFloat, 1, 0),
		single(OpFEQLE, "FEQLE", FormatFloat, ClassFloat, 4, 0),
		single(OpFDIV, "FDIV", FormatFloat, ClassFloat, 40, 0),
		single(OpFSQRT, "FSQRT", FormatFloat, ClassFloat, 40, 0),
		single(OpFREM, "FREM", FormatFloat, ClassFloat, 4, 0),
		single(OpFINT, "FINT", FormatFloat, ClassFloat, 4, 0),

		pair(OpMUL, "MUL", FormatArith, ClassArith, 10, 0),
		pair(OpMULU, "MULU", FormatArith, ClassArith, 10, 0),
		pair(OpDIV, "DIV", FormatArith, ClassArith, 60, 0),
		pair(OpDIVU, "DIVU", FormatArith, ClassArith, 60, 0),

		pair(OpLDHT, "LDHT", FormatLoad, ClassLoad, 1, 1),
		pair(OpCSWAP, "CSWAP", FormatLoad, ClassStore, 2, 2),
		pair(OpLDUNC, "LDUNC", FormatLoad, ClassLoad, 1, 1),
		pair(OpLDSF, "LDSF", FormatLoad, ClassLoad, 1, 1),
		pair(OpLDVTS, "LDVTS", FormatTranslate, ClassSystem, 1, 0),
		pair(OpPRELD, "PRELD", FormatHint, ClassLoad, 1, 0),
		pair(OpPREGO, "PREGO", FormatHint, ClassSystem, 1, 0),
		pair(OpGO, "GO", FormatGo, ClassJump, 3, 0),

		pair(OpSTSF, "STSF", FormatStore, ClassStore, 1, 1),
		pair(OpSTHT, "STHT", FormatStore, ClassStore, 1, 1),
		pair(OpSTCO, "STCO", FormatStore, ClassStore, 1, 1),
		pair(OpSTUNC, "STUNC", FormatStore, ClassStore, 1, 1),
		pair(OpSYNCD, "SYNCD", FormatHint, ClassSystem, 1, 0),
		pair(OpPREST, "PREST", FormatHint, ClassStore, 1, 0),
		pair(OpSYNCID, "SYNCID", FormatHint, ClassSystem, 1, 0),
		pair(OpPUSHGO, "PUSHGO", FormatPush, ClassJump, 3, 0),

		relPair(OpJMP, "JMP", FormatJump, ClassJump),
		relPair(OpPUSHJ, "PUSHJ", FormatPush, ClassJump),
		relPair(OpGETA, "GETA", FormatGeta, ClassArith),
		pair(OpPUT, "PUT", FormatSpecial, ClassSystem, 1, 0),
		single(OpPOP, "POP", FormatPop, ClassJump, 3, 0),
		single(OpRESUME, "RESUME", FormatResume, ClassSystem, 5, 0),
		single(OpSAVE, "SAVE", FormatSave, ClassSystem, 1, 20),
		single(OpUNSAVE, "UNSAVE", FormatSave, ClassSystem, 1, 20),
		single(OpSYNC, "SYNC", FormatHint, ClassSystem, 1, 0),
		single(OpSWYM, "SWYM", FormatHint, ClassSystem, 1, 0),
		single(OpGET, "GET", FormatSpecial, ClassSystem, 1, 0),
		single(OpTRIP, "TRIP", FormatTrap, ClassSystem, 5, 0),
	}

	arith := []string{"ADD", "ADDU", "SUB", "SUBU", "2ADDU", "4ADDU", "8ADDU", "16ADDU",
		"CMP", "CMPU", "NEG", "NEGU", "SL", "SLU", "SR", "SRU"}
	for i, name := range arith {
		rows = append(rows, pair(OpADD+Op(2*i), name, FormatArith, ClassArith, 1, 0))
	}

	conds := []string{"N", "Z", "P", "OD", "NN", "NZ", "NP", "EV"}
	for i, c := range conds {
		rows = append(rows,
			relPair(OpBN+Op(2*i), "B"+c, FormatBranch, ClassBranch),
			relPair(OpPBN+Op(2*i), "PB"+c, FormatBranch, ClassBranch),
			pair(OpCSN+Op(2*i), "CS"+c, FormatCondSet, ClassArith, 1, 0),
			pair(OpZSN+Op(2*i), "ZS"+c, FormatCondSet, ClassArith, 1, 0),
		)
	}

	loads := []string{"LDB", "LDBU", "LDW", "LDWU", "LDT", "LDTU", "LDO", "LDOU"}
	stores := []string{"STB", "STBU", "STW", "STWU", "STT", "STTU", "STO", "STOU"}
	logic := []string{"OR", "ORN", "NOR", "XOR", "AND", "ANDN", "NAND", "NXOR",
		"BDIF", "WDIF", "TDIF", "ODIF", "MUX", "SADD", "MOR", "MXOR"}
	for i := range loads {
		rows = append(rows,
			pair(OpLDB+Op(2*i), loads[i], FormatLoad, ClassLoad, 1, 1),
			pair(OpSTB+Op(2*i), stores[i], FormatStore, ClassStore, 1, 1),
		)
	}
	for i, name := range logic {
		rows = append(rows, pair(OpOR+Op(2*i), name, FormatLogic, ClassLogic, 1, 0))
	}

	wydes := []string{"SETH", "SETMH", "SETML", "SETL", "INCH", "INCMH", "INCML", "INCL",
		"ORH", "ORMH", "ORML", "ORL", "ANDNH", "ANDNMH", "ANDNML", "ANDNL"}
	for i, name := range wydes {
		rows = append(rows, single(OpSETH+Op(i), name, FormatWyde, ClassLogic, 1, 0))
	}

	return rows
}

func init() {
	for _, r := range opRows() {
		info := OpInfo{
			Name:     r.name,
			Format:   r.format,
			Class:    r.class,
			Oops:     r.oops,
			Mems:     r.mems,
			paired:   r.paired,
			relative: r.relative,
		}
		opTable[r.op] = info
		if r.paired {
			opTable[r.op|1] = info
		}
	}
}
