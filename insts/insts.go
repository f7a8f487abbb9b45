// Package insts provides MMIX instruction definitions and decoding.
//
// Every MMIX instruction is one big-endian tetra laid out as OP X Y Z.
// This package holds the 256-entry opcode table (mnemonic, format,
// statistics class and cost), decodes tetras into Instruction values and
// encodes them back for tests and tools. Formats group opcodes so the
// execution engine can dispatch on a closed set of kinds:
//   - Arithmetic and shifts: ADD, SUB, MUL, DIV, CMP, NEG, SL, SR and friends
//   - Logic: bitwise, byte-wise, wyde immediates and conditional sets
//   - Control: branches, JMP, GO, PUSHJ, PUSHGO, POP, GETA
//   - Memory: loads, stores, CSWAP and cache hints
//   - Floating point: FADD, FSUB, FMUL, FDIV, FSQRT, FINT, FIX, FLOT, FCMP
//   - System: TRAP, TRIP, RESUME, GET, PUT
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x20010203) // ADD $1,$2,$3
//	fmt.Println(insts.Disassemble(inst))
package insts
