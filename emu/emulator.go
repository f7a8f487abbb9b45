package emu

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/mmixsim/fpu"
	"github.com/sarchlab/mmixsim/insts"
	"github.com/sarchlab/mmixsim/mem"
	"github.com/sarchlab/mmixsim/mem/mmu"
	"github.com/sarchlab/mmixsim/stats"
)

// Execution errors.
var (
	// ErrHalted is returned by Step and Run once the machine has halted.
	ErrHalted = errors.New("machine already halted")
	// ErrIllegalInstruction reports an opcode or operand combination the
	// machine does not execute.
	ErrIllegalInstruction = errors.New("illegal instruction")
	// ErrUnhandledTrap reports a TRAP while rT is zero.
	ErrUnhandledTrap = errors.New("unhandled trap")
	// ErrPrivilegedInstruction reports a privileged instruction executed
	// from a virtual address.
	ErrPrivilegedInstruction = errors.New("privileged instruction")
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// PC is the address of the executed instruction.
	PC uint64

	// Halted is true if the machine stopped, either through TRAP 0,0,0 or
	// an unrecoverable trap.
	Halted bool

	// Breakpoint is true if the next instruction sits on an enabled
	// breakpoint.
	Breakpoint bool

	// Err is set if the step failed: ErrHalted when the machine was
	// already halted, or the fault that halted it.
	Err error
}

// RunResult summarizes a Run call.
type RunResult struct {
	// Steps is the number of instructions executed.
	Steps uint64
	// Last is the result of the final step.
	Last StepResult
}

// Emulator executes MMIX instructions functionally.
type Emulator struct {
	regFile *RegFile
	mmu     *mmu.MMU
	pages   *mmu.PageMap
	decoder *insts.Decoder

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit
	floatUnit  *FloatUnit

	hooks  Hooks
	stats  *stats.Collector
	logger logr.Logger

	// Construction parameters
	phys        *mem.Physical
	useRV       bool
	mmuOpts     []mmu.Option
	globalReg   int
	initialMode fpu.RoundingMode
	penalty     uint64

	// Execution state
	entry            uint64
	started          bool
	halted           bool
	haltErr          error
	instructionCount uint64
	cycles           uint64
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMemory sets the physical memory.
func WithMemory(p *mem.Physical) EmulatorOption {
	return func(e *Emulator) {
		e.phys = p
	}
}

// WithPageMap translates virtual addresses through pm.
func WithPageMap(pm *mmu.PageMap) EmulatorOption {
	return func(e *Emulator) {
		e.pages = pm
	}
}

// WithRVTranslation translates virtual addresses by walking the page
// tables described by rV.
func WithRVTranslation() EmulatorOption {
	return func(e *Emulator) {
		e.useRV = true
	}
}

// WithMMUOptions passes options, such as cache geometry, to the MMU.
func WithMMUOptions(opts ...mmu.Option) EmulatorOption {
	return func(e *Emulator) {
		e.mmuOpts = append(e.mmuOpts, opts...)
	}
}

// WithHooks connects a debugger.
func WithHooks(h Hooks) EmulatorOption {
	return func(e *Emulator) {
		e.hooks = h
	}
}

// WithStats sets the statistics collector fed by execution and memory
// accesses.
func WithStats(c *stats.Collector) EmulatorOption {
	return func(e *Emulator) {
		e.stats = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = l
	}
}

// WithGlobalThreshold sets the initial rG.
func WithGlobalThreshold(g int) EmulatorOption {
	return func(e *Emulator) {
		e.globalReg = g
	}
}

// WithBranchPenalty sets the cycles charged for a mispredicted branch.
func WithBranchPenalty(cycles uint64) EmulatorOption {
	return func(e *Emulator) {
		e.penalty = cycles
	}
}

// WithRoundingMode sets the initial rounding mode in rA.
func WithRoundingMode(m fpu.RoundingMode) EmulatorOption {
	return func(e *Emulator) {
		e.initialMode = m
	}
}

// NewEmulator creates a new MMIX emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile:     NewRegFile(),
		decoder:     insts.NewDecoder(),
		logger:      logr.Discard(),
		globalReg:   DefaultGlobalThreshold,
		initialMode: fpu.RoundNear,
		penalty:     DefaultBranchPenalty,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.phys == nil {
		e.phys = mem.NewPhysical(mem.DefaultSize)
	}

	mmuOpts := []mmu.Option{
		mmu.WithLogger(e.logger),
		mmu.WithPrivilege(e.privileged),
	}
	switch {
	case e.useRV:
		mmuOpts = append(mmuOpts, mmu.WithResolver(mmu.NewRVWalker(func() uint64 {
			return e.regFile.Special(RV)
		})))
	default:
		if e.pages == nil {
			e.pages = mmu.NewPageMap(mmu.DefaultPageShift, e.phys.Size())
		}
		mmuOpts = append(mmuOpts, mmu.WithResolver(e.pages))
	}
	if e.stats != nil {
		mmuOpts = append(mmuOpts, mmu.WithObserver(e.stats))
	}
	mmuOpts = append(mmuOpts, e.mmuOpts...)
	e.mmu = mmu.New(e.phys, mmuOpts...)

	// Create execution units
	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.mmu)
	e.branchUnit = NewBranchUnit(e.regFile)
	e.branchUnit.penalty = e.penalty
	e.floatUnit = NewFloatUnit(e.regFile)

	e.resetRegisters()

	return e
}

// privileged reports whether physical addresses are accessible: only code
// running from a physical address may use them.
func (e *Emulator) privileged() bool {
	return e.regFile.PC&mmu.PhysicalBit != 0
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// MMU returns the memory management unit.
func (e *Emulator) MMU() *mmu.MMU {
	return e.mmu
}

// PageMap returns the page map, or nil when translating through rV.
func (e *Emulator) PageMap() *mmu.PageMap {
	if e.useRV {
		return nil
	}
	return e.pages
}

// Stats returns the statistics collector, if any.
func (e *Emulator) Stats() *stats.Collector {
	return e.stats
}

// SetHooks connects or, with nil, disconnects a debugger.
func (e *Emulator) SetHooks(h Hooks) {
	e.hooks = h
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Cycles returns the number of cycles charged by the cost model.
func (e *Emulator) Cycles() uint64 {
	return e.cycles
}

// Entry returns the entry point.
func (e *Emulator) Entry() uint64 {
	return e.entry
}

// Started reports whether any instruction has executed since the last
// reset.
func (e *Emulator) Started() bool {
	return e.started
}

// IsHalted reports whether the machine has halted.
func (e *Emulator) IsHalted() bool {
	return e.halted
}

// HaltError returns the error that halted the machine, or nil.
func (e *Emulator) HaltError() error {
	return e.haltErr
}

// SetEntry sets the entry point and moves the PC there.
func (e *Emulator) SetEntry(pc uint64) {
	e.entry = pc
	e.regFile.PC = pc
}

// LoadSegment copies data to virtual address va. With a page map, missing
// pages are mapped with perm first.
func (e *Emulator) LoadSegment(va uint64, data []byte, perm mem.Perm) error {
	if pm := e.PageMap(); pm != nil && va&mmu.PhysicalBit == 0 {
		size := pm.PageSize()
		for p := va &^ (size - 1); p < va+uint64(len(data)); p += size {
			if _, err := pm.Ensure(p, perm); err != nil {
				return fmt.Errorf("load segment at #%X: %w", va, err)
			}
		}
	}
	if va&mmu.PhysicalBit != 0 {
		return e.phys.WriteBytes(va&^mmu.PhysicalBit, data)
	}
	if err := e.mmu.WriteBytes(va, data); err != nil {
		return fmt.Errorf("load segment at #%X: %w", va, err)
	}
	return nil
}

// LoadProgram loads a flat program image at entry with full permissions
// and sets the entry point.
func (e *Emulator) LoadProgram(entry uint64, program []byte) error {
	if err := e.LoadSegment(entry, program, mem.PermRWX); err != nil {
		return err
	}
	e.SetEntry(entry)
	return nil
}

func (e *Emulator) resetRegisters() {
	e.regFile.Reset(e.globalReg)
	e.regFile.special[RA] = fpu.ModeToRA(0, e.initialMode)
	e.regFile.PC = e.entry
}

// Reset restores registers, the register stack, the rounding mode and the
// PC to their initial state and clears the halted flag. Memory contents
// stay loaded; the caches are emptied.
func (e *Emulator) Reset() {
	e.resetRegisters()
	e.mmu.Reset()
	e.started = false
	e.halted = false
	e.haltErr = nil
	e.instructionCount = 0
	e.cycles = 0
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	pc := e.regFile.PC
	if e.halted {
		return StepResult{PC: pc, Halted: true, Err: ErrHalted}
	}

	journal := e.hooks != nil && e.hooks.Journals(pc)
	e.regFile.startJournal(journal)

	rec := ExecRecord{PC: pc}
	var out outcome

	// 1. Fetch
	word, err := e.mmu.Fetch(pc)
	fetched := err == nil
	if !fetched {
		out = e.fault(pc, 0, err)
	} else {
		// 2. Decode
		inst := e.decoder.Decode(word)
		rec.Word = word
		rec.Op = inst.Op
		rec.Mnemonic = insts.Disassemble(inst)

		// 3. Execute
		out = e.execute(inst, pc)
	}

	e.started = true
	e.instructionCount++
	e.regFile.tick()
	e.charge(rec.Op, fetched, out)

	e.regFile.PC = out.next
	if out.halt {
		e.halted = true
		e.haltErr = out.err
		if out.err != nil {
			e.logger.Info("halted by unrecoverable trap", "pc", pc, "error", out.err.Error())
		} else {
			e.logger.Info("halted", "pc", pc, "instructions", e.instructionCount)
		}
	}

	rec.Seq = e.instructionCount
	rec.Flow = out.flow
	rec.Next = out.next
	rec.Deltas = e.regFile.takeJournal()
	e.regFile.startJournal(false)

	result := StepResult{PC: pc, Halted: e.halted, Err: out.err}
	if e.hooks != nil {
		e.hooks.Executed(&rec)
		if !e.halted && e.hooks.BreakpointAt(out.next) {
			result.Breakpoint = true
			e.logger.V(1).Info("breakpoint", "pc", out.next)
		}
	}

	return result
}

// fetchFaultCost is the cycle cost of an instruction whose fetch faulted.
const fetchFaultCost = 1

// charge applies the cost model and feeds the statistics collector. A
// failed fetch has no opcode: it costs fetchFaultCost and is counted as an
// instruction of no class.
func (e *Emulator) charge(op insts.Op, fetched bool, out outcome) {
	class := insts.Class(insts.NumClasses)
	cost := uint64(fetchFaultCost)
	var mems uint64
	if fetched {
		info := insts.Info(op)
		class = info.Class
		mems = uint64(info.Mems)
		cost = uint64(info.Oops) + mems + out.penalty
	}
	e.cycles += cost

	if e.stats != nil {
		e.stats.Instruction(class, cost, mems)
		if out.flow == FlowTrap {
			e.stats.Trap()
		}
	}
}

// Run executes up to count instructions, stopping early when the machine
// halts or reaches a breakpoint. A count of zero does nothing.
func (e *Emulator) Run(count uint64) RunResult {
	var res RunResult
	for res.Steps < count {
		step := e.Step()
		if errors.Is(step.Err, ErrHalted) {
			res.Last = step
			return res
		}
		res.Steps++
		res.Last = step
		if step.Halted || step.Breakpoint {
			break
		}
	}
	return res
}

// outcome is the effect of one instruction on control flow.
type outcome struct {
	next    uint64
	flow    FlowKind
	penalty uint64
	halt    bool
	err     error
}

// operands returns $Y and $Z or the immediate Z.
func (e *Emulator) operands(inst *insts.Instruction) (uint64, uint64) {
	y := e.regFile.ReadReg(inst.Y)
	if inst.Immediate {
		return y, uint64(inst.Z)
	}
	return y, e.regFile.ReadReg(inst.Z)
}

// execute dispatches and executes a decoded instruction.
func (e *Emulator) execute(inst *insts.Instruction, pc uint64) outcome {
	out := outcome{next: pc + 4}
	y, z := e.operands(inst)

	switch inst.Format {
	case insts.FormatArith:
		if op := inst.Base(); op == insts.OpNEG || op == insts.OpNEGU {
			y = uint64(inst.Y)
		}
		x, events := e.alu.Arith(inst.Base(), y, z)
		e.regFile.WriteReg(inst.X, x)
		return e.raise(events, inst, pc, y, z, out)

	case insts.FormatLogic:
		e.regFile.WriteReg(inst.X, e.alu.Logic(inst.Base(), y, z))

	case insts.FormatWyde:
		e.regFile.WriteReg(inst.X, e.alu.Wyde(inst.Op, e.regFile.ReadReg(inst.X), inst.YZ()))

	case insts.FormatCondSet:
		zs := inst.Base() >= insts.OpZSN
		switch {
		case Cond(inst.Op, y):
			e.regFile.WriteReg(inst.X, z)
		case zs:
			e.regFile.WriteReg(inst.X, 0)
		}

	case insts.FormatFloat:
		x, events, err := e.floatUnit.Execute(inst, y, z)
		if err != nil {
			return e.fault(pc, inst.Raw, err)
		}
		e.regFile.WriteReg(inst.X, x)
		return e.raise(events, inst, pc, y, z, out)

	case insts.FormatBranch:
		out.next, out.penalty = e.branchUnit.Branch(inst, pc)
		if out.next != pc+4 {
			out.flow = FlowJump
		}

	case insts.FormatLoad:
		if err := e.lsu.Load(inst, y+z); err != nil {
			return e.fault(pc, inst.Raw, err)
		}

	case insts.FormatStore:
		events, err := e.lsu.Store(inst, y+z)
		if err != nil {
			return e.fault(pc, inst.Raw, err)
		}
		return e.raise(events, inst, pc, y, z, out)

	case insts.FormatHint:
		e.lsu.Hint(inst, y+z)

	case insts.FormatJump:
		out.next = e.branchUnit.Jump(inst, pc)
		out.flow = FlowJump

	case insts.FormatGeta:
		e.branchUnit.Geta(inst, pc)

	case insts.FormatGo:
		out.next = e.branchUnit.Go(inst, pc, z)
		out.flow = FlowJump

	case insts.FormatPush:
		out.next = e.branchUnit.Push(inst, pc, z)
		out.flow = FlowCall

	case insts.FormatPop:
		if err := e.reloadFrame(); err != nil {
			return e.fault(pc, inst.Raw, err)
		}
		next, err := e.branchUnit.Pop(inst)
		if err != nil {
			return e.fault(pc, inst.Raw, err)
		}
		out.next = next
		out.flow = FlowReturn

	case insts.FormatSpecial:
		if err := e.executeSpecial(inst, z); err != nil {
			return e.fault(pc, inst.Raw, err)
		}

	case insts.FormatSave:
		var err error
		if inst.Op == insts.OpUNSAVE {
			err = e.executeUnsave(inst, z)
		} else {
			err = e.executeSave(inst)
		}
		if err != nil {
			return e.fault(pc, inst.Raw, err)
		}

	case insts.FormatTranslate:
		if err := e.executeTranslate(inst, y+z); err != nil {
			return e.fault(pc, inst.Raw, err)
		}

	case insts.FormatTrap:
		return e.executeTrap(inst, pc)

	case insts.FormatResume:
		return e.executeResume(inst, pc)

	default:
		return e.fault(pc, inst.Raw, fmt.Errorf("%w: %s", ErrIllegalInstruction, inst.Name()))
	}

	return out
}

// executeSpecial executes GET and PUT.
func (e *Emulator) executeSpecial(inst *insts.Instruction, z uint64) error {
	if inst.Op == insts.OpGET {
		if inst.Y != 0 || int(inst.Z) >= NumSpecials {
			return ErrIllegalInstruction
		}
		e.regFile.WriteReg(inst.X, e.regFile.Special(Special(inst.Z)))
		return nil
	}

	if inst.Y != 0 || int(inst.X) >= NumSpecials {
		return ErrIllegalInstruction
	}
	s := Special(inst.X)
	if err := e.regFile.PutSpecial(s, z); err != nil {
		return err
	}
	if s == RV {
		e.mmu.InvalidateAll()
	}
	return nil
}

// raise records arithmetic events. Disabled events accumulate in rA; the
// highest-priority enabled event trips to its handler.
func (e *Emulator) raise(events uint64, inst *insts.Instruction, pc, y, z uint64, out outcome) outcome {
	if events == 0 {
		return out
	}

	ra := e.regFile.Special(RA)
	enabled := events & (ra >> 8) & 0xFF
	if sticky := events &^ enabled; sticky != 0 {
		e.regFile.SetSpecial(RA, ra|sticky)
	}
	if enabled == 0 {
		return out
	}

	handler := tripHandler(enabled)
	e.logger.V(1).Info("trip", "pc", pc, "events", enabled, "handler", handler)
	e.trip(inst.Raw, out.next, y, z)
	return outcome{next: handler, flow: FlowTrap, penalty: out.penalty}
}

// trip saves the interrupted state in rW, rX, rY, rZ and rB.
func (e *Emulator) trip(word uint32, resume, y, z uint64) {
	e.regFile.SetSpecial(RW, resume)
	e.regFile.SetSpecial(RX, 1<<63|uint64(word))
	e.regFile.SetSpecial(RY, y)
	e.regFile.SetSpecial(RZ, z)
	e.regFile.SetSpecial(RB, e.regFile.ReadReg(255))
	e.regFile.WriteReg(255, e.regFile.Special(RJ))
}

// trap saves the interrupted state in rWW, rXX, rYY, rZZ and rBB.
func (e *Emulator) trap(xx, resume, y, z uint64) {
	e.regFile.SetSpecial(RWW, resume)
	e.regFile.SetSpecial(RXX, xx)
	e.regFile.SetSpecial(RYY, y)
	e.regFile.SetSpecial(RZZ, z)
	e.regFile.SetSpecial(RBB, e.regFile.ReadReg(255))
	e.regFile.WriteReg(255, e.regFile.Special(RJ))
}

// executeTrap executes TRAP and TRIP.
func (e *Emulator) executeTrap(inst *insts.Instruction, pc uint64) outcome {
	y := e.regFile.ReadReg(inst.Y)
	z := e.regFile.ReadReg(inst.Z)

	if inst.Op == insts.OpTRIP {
		e.trip(inst.Raw, pc+4, y, z)
		return outcome{next: 0, flow: FlowTrap}
	}

	if inst.X == 0 && inst.Y == 0 && inst.Z == 0 {
		return outcome{next: pc, halt: true}
	}

	rt := e.regFile.Special(RT)
	if rt == 0 {
		return outcome{
			next: pc,
			halt: true,
			err:  fmt.Errorf("%w %d,%d,%d at #%016X", ErrUnhandledTrap, inst.X, inst.Y, inst.Z, pc),
		}
	}

	e.logger.V(1).Info("trap", "pc", pc, "handler", rt)
	e.trap(1<<63|uint64(inst.Raw), pc+4, y, z)
	return outcome{next: rt, flow: FlowTrap}
}

// executeResume executes RESUME. When the saved execution register has
// its sign bit clear, the instruction it holds is executed before control
// returns to the saved address.
func (e *Emulator) executeResume(inst *insts.Instruction, pc uint64) outcome {
	if inst.X != 0 || inst.Y != 0 || inst.Z > 1 {
		return e.fault(pc, inst.Raw, ErrIllegalInstruction)
	}

	where, exec := e.regFile.Special(RW), e.regFile.Special(RX)
	if inst.Z == 1 {
		where, exec = e.regFile.Special(RWW), e.regFile.Special(RXX)
		e.regFile.WriteReg(255, e.regFile.Special(RBB))
	}

	out := outcome{next: where, flow: FlowResume}
	if exec>>63 == 0 {
		replay := e.decoder.Decode(uint32(exec))
		switch replay.Format {
		case insts.FormatTrap, insts.FormatResume, insts.FormatPush, insts.FormatPop,
			insts.FormatJump, insts.FormatGo, insts.FormatBranch, insts.FormatSave,
			insts.FormatTranslate, insts.FormatUnknown:
			return e.fault(pc, inst.Raw, ErrIllegalInstruction)
		}
		res := e.execute(replay, where-4)
		if res.halt || res.flow == FlowTrap {
			return res
		}
	}
	return out
}

// fault turns an error raised while executing the instruction at pc into
// a dynamic trap through rTT, or halts the machine when rTT is zero.
func (e *Emulator) fault(pc uint64, word uint32, err error) outcome {
	rtt := e.regFile.Special(RTT)
	if rtt == 0 {
		return outcome{
			next: pc,
			halt: true,
			err:  fmt.Errorf("at #%016X: %w", pc, err),
		}
	}

	e.regFile.SetSpecial(RQ, e.regFile.Special(RQ)|faultBits(err))
	e.logger.V(1).Info("dynamic trap", "pc", pc, "handler", rtt, "error", err.Error())
	e.trap(uint64(word), pc+4, 0, 0)
	return outcome{next: rtt, flow: FlowTrap}
}

// faultBits maps an execution error to its rQ program bits.
func faultBits(err error) uint64 {
	var tf *mmu.TranslationFault
	switch {
	case errors.Is(err, mmu.ErrPrivileged):
		return QPrivilegedAccess
	case errors.Is(err, ErrPrivilegedInstruction):
		return QPrivilegedInstr
	case errors.As(err, &tf):
		switch tf.Kind {
		case mem.Fetch:
			return QExec
		case mem.Write:
			return QWrite
		}
		return QRead
	case errors.Is(err, mem.ErrMemoryFault):
		return QNonexistent
	}
	return QBreaksRules
}
