// Package cpu implements the pipelined CPU core of spec §4.6: a five-stage
// (FETCH, DECODE, EXECUTE, MEMORY, WRITEBACK) state machine operating one
// instruction at a time, driven by a memory device tree. This generalizes
// the teacher's explicit state-machine dispatch loop
// (simulator/simulator.go's GetOp/GetTwoArgs1/GetTwoArgs2/GetSingleArg/Exec
// states reading one word at a time and dispatching through a handler map)
// from a single variable-arity dispatch state to five always-present
// pipeline stages threaded through one micro-op struct, per spec §4.6's
// explicit instruction: "An implementation may represent stage state as a
// single struct threaded through all five operations."
package cpu

import (
	"fmt"

	"github.com/chominskid/retro16/internal/isa"
	"github.com/chominskid/retro16/internal/memory"
	"github.com/chominskid/retro16/internal/mslock"
)

// Stage names the five pipeline stages of spec §4.6, in execution order.
type Stage int

const (
	Fetch Stage = iota
	Decode
	Execute
	Memory
	Writeback
)

func (s Stage) String() string {
	switch s {
	case Fetch:
		return "FETCH"
	case Decode:
		return "DECODE"
	case Execute:
		return "EXECUTE"
	case Memory:
		return "MEMORY"
	case Writeback:
		return "WRITEBACK"
	default:
		return "?"
	}
}

// IllegalInstruction is the fatal halt condition of spec §4.6/§7: "Any
// undefined FMT, addressing-mode, ALU op, or condition code raises a fatal
// illegal-instruction condition that halts the machine."
type IllegalInstruction struct {
	Word uint16
	Why  string
}

func (e *IllegalInstruction) Error() string {
	return fmt.Sprintf("illegal instruction 0x%04x: %s", e.Word, e.Why)
}

// uop is the per-instruction micro-op state threaded through all five
// stages, per spec §4.6.
type uop struct {
	word uint16
	fmt  isa.Fmt

	aluOp       isa.ALUOp
	operand1    int
	operand2    int
	writeReg    int
	aluWrite    bool
	setFlags    bool
	memLoad     bool
	memStore    bool
	storeVal    byte
	saveReturn  bool
	takeJump    bool
	jumpTarget  int

	result int
}

// CPU is the register file, program counter, and memory bus, plus the
// in-flight micro-op state for the current instruction.
type CPU struct {
	Registers [isa.NumRegisters]byte
	PC        uint16
	Mem       memory.Device

	// stateLock guards Registers/PC/Mem access during a micro-step, per
	// spec §5: "each CPU micro-step acquires the state lock as SLAVE."
	stateLock mslock.Lock

	halted bool
	haltErr error

	// lastAccess is the most recent MEMORY-stage access result, surfaced
	// for `cmd/remu --trace` without affecting execution (spec §7 /
	// DESIGN.md Open Question #4).
	lastAccess memory.Result

	cur uop
}

// LastAccess returns the most recent MEMORY-stage access result.
func (c *CPU) LastAccess() memory.Result { return c.lastAccess }

// New builds a CPU over the given memory bus, registers and PC zeroed.
func New(mem memory.Device) *CPU {
	return &CPU{Mem: mem}
}

// Halted reports whether a fatal illegal-instruction condition has stopped
// the machine.
func (c *CPU) Halted() bool { return c.halted }

// HaltError returns the condition that halted the machine, or nil.
func (c *CPU) HaltError() error { return c.haltErr }

// Step runs one full FETCH->WRITEBACK cycle. It is a no-op (returns the
// existing halt error) once the machine has halted.
func (c *CPU) Step() error {
	if c.halted {
		return c.haltErr
	}
	c.stateLock.Acquire(mslock.Slave)
	defer c.stateLock.Release(mslock.Slave)

	c.cur = uop{}
	if err := c.fetch(); err != nil {
		return c.halt(err)
	}
	if err := c.decode(); err != nil {
		return c.halt(err)
	}
	c.execute()
	c.memoryStage()
	c.writeback()
	return nil
}

func (c *CPU) halt(err error) error {
	c.halted = true
	c.haltErr = err
	return err
}

// fetch reads two bytes at PC in big-endian order and advances PC by 2, per
// spec §4.6.
func (c *CPU) fetch() error {
	hi := c.readByte(uint64(c.PC))
	lo := c.readByte(uint64(c.PC) + 1)
	c.cur.word = uint16(hi)<<8 | uint16(lo)
	c.PC += 2
	return nil
}

func (c *CPU) readByte(addr uint64) byte {
	_, v := c.Mem.Read(addr)
	return v
}

// decode inspects FMT and populates the micro-op fields, per spec §4.6.
func (c *CPU) decode() error {
	w := c.cur.word
	c.cur.fmt = isa.Fmt(w >> 14 & 0x3)
	switch c.cur.fmt {
	case isa.FmtA:
		return c.decodeA(w)
	case isa.FmtIA:
		return c.decodeIA(w)
	case isa.FmtM:
		return c.decodeM(w)
	case isa.FmtC:
		return c.decodeC(w)
	default:
		return &IllegalInstruction{Word: w, Why: "undefined format"}
	}
}

func (c *CPU) decodeA(w uint16) error {
	op := isa.ALUOp(w >> 10 & 0xF)
	if !op.Valid() {
		return &IllegalInstruction{Word: w, Why: "undefined ALU op"}
	}
	x := int(w >> 4 & 0xF)
	y := int(w & 0xF)
	c.cur.aluOp = op
	c.cur.operand1 = int(c.Registers[x])
	c.cur.operand2 = int(c.Registers[y])
	c.cur.writeReg = x
	c.cur.aluWrite = op.AluWrites()
	c.cur.setFlags = true
	return nil
}

func (c *CPU) decodeIA(w uint16) error {
	op := isa.ALUOp(w >> 10 & 0xF)
	if !op.Valid() {
		return &IllegalInstruction{Word: w, Why: "undefined ALU op"}
	}
	ih := byte(w >> 8 & 0x3)
	x := int(w >> 4 & 0xF)
	il := byte(w & 0xF)
	imm := isa.ComposeImm6(ih, il)
	c.cur.aluOp = op
	c.cur.operand1 = int(c.Registers[x])
	c.cur.operand2 = imm
	c.cur.writeReg = x
	c.cur.aluWrite = op.AluWrites()
	c.cur.setFlags = true
	return nil
}

func (c *CPU) decodeM(w uint16) error {
	store := w>>13&0x1 != 0
	mode := isa.MemMode(w >> 10 & 0x7)
	if !mode.Valid() {
		return &IllegalInstruction{Word: w, Why: "undefined memory addressing mode"}
	}
	ih := byte(w >> 8 & 0x3)
	x := int(w >> 4 & 0xF)
	il := byte(w & 0xF)
	imm := isa.ComposeImm6(ih, il)

	base, err := c.memBase(mode)
	if err != nil {
		return err
	}
	c.cur.aluOp = isa.ADD
	c.cur.operand1 = base + mode.BaseOf()
	c.cur.operand2 = imm
	c.cur.writeReg = x
	c.cur.aluWrite = !store
	c.cur.setFlags = false
	c.cur.memLoad = !store
	c.cur.memStore = store
	if store {
		c.cur.storeVal = c.Registers[x]
	}
	return nil
}

// memBase resolves the register-pair base for format-M addressing, per
// spec §4.6: STACK->SP, FRAME->FP, REL->RA, ZPG->GB, GE..GH->the wide pair.
func (c *CPU) memBase(mode isa.MemMode) (int, error) {
	switch mode {
	case isa.MemStack:
		return int(c.Registers[isa.RegSP]), nil
	case isa.MemFrame:
		return int(c.Registers[isa.RegFP]), nil
	case isa.MemRel:
		return int(c.Registers[isa.RegRAL]) | int(c.Registers[isa.RegRAH])<<8, nil
	case isa.MemZpg:
		return int(c.Registers[isa.RegGB]), nil
	case isa.MemGE:
		return c.wregValue(isa.WRegGE), nil
	case isa.MemGF:
		return c.wregValue(isa.WRegGF), nil
	case isa.MemGG:
		return c.wregValue(isa.WRegGG), nil
	case isa.MemGH:
		return c.wregValue(isa.WRegGH), nil
	default:
		return 0, &IllegalInstruction{Why: "undefined memory addressing mode"}
	}
}

func (c *CPU) wregValue(w isa.WReg) int {
	return int(c.Registers[w.Low()]) | int(c.Registers[w.High()])<<8
}

func (c *CPU) decodeC(w uint16) error {
	save := w>>13&0x1 != 0
	mode := isa.CtrlMode(w >> 10 & 0x7)
	if !mode.Valid() {
		return &IllegalInstruction{Word: w, Why: "undefined control addressing mode"}
	}
	ih := byte(w >> 8 & 0x3)
	negate := w>>7&0x1 != 0
	cond := isa.Cond(w >> 4 & 0x7)
	if !cond.Valid() {
		return &IllegalInstruction{Word: w, Why: "undefined condition code"}
	}
	il := byte(w & 0xF)
	imm := isa.ComposeImm6(ih, il)

	base, err := c.ctrlBase(mode)
	if err != nil {
		return err
	}
	c.cur.aluOp = isa.ADD
	c.cur.operand1 = base
	c.cur.operand2 = imm << 1
	c.cur.aluWrite = false
	c.cur.setFlags = false
	c.cur.saveReturn = save
	c.cur.takeJump = c.evalCond(cond, negate)
	return nil
}

// ctrlBase resolves the control-format addressing-mode base, per spec
// §4.6: BLD_LOW/BLD_HIGH are fixed bases, REL is PC, RET is RA, GE..GH are
// the wide pairs.
func (c *CPU) ctrlBase(mode isa.CtrlMode) (int, error) {
	switch mode {
	case isa.CtrlBldLow:
		return isa.BldLowBase, nil
	case isa.CtrlBldHigh:
		return isa.BldHighBase, nil
	case isa.CtrlRel:
		return int(c.PC), nil
	case isa.CtrlRet:
		return int(c.Registers[isa.RegRAL]) | int(c.Registers[isa.RegRAH])<<8, nil
	case isa.CtrlGE:
		return c.wregValue(isa.WRegGE), nil
	case isa.CtrlGF:
		return c.wregValue(isa.WRegGF), nil
	case isa.CtrlGG:
		return c.wregValue(isa.WRegGG), nil
	case isa.CtrlGH:
		return c.wregValue(isa.WRegGH), nil
	default:
		return 0, &IllegalInstruction{Why: "undefined control addressing mode"}
	}
}

// evalCond implements the jump-condition table of spec §4.6.
func (c *CPU) evalCond(cond isa.Cond, negate bool) bool {
	sr := c.Registers[isa.RegSR]
	cf := sr&isa.SRFlagC != 0
	vf := sr&isa.SRFlagV != 0
	nf := sr&isa.SRFlagN != 0
	zf := sr&isa.SRFlagZ != 0

	var take bool
	switch cond {
	case isa.CondC:
		take = cf
	case isa.CondV:
		take = vf
	case isa.CondN:
		take = nf
	case isa.CondZ:
		take = zf
	case isa.CondG:
		var signOK bool
		if !vf {
			signOK = !nf
		} else {
			signOK = cf
		}
		take = signOK && !zf
	case isa.CondGE:
		if !vf {
			take = !nf
		} else {
			take = cf
		}
	case isa.CondGU:
		take = cf && !zf
	case isa.CondALW:
		take = true
	}
	if negate {
		take = !take
	}
	return take
}

// execute runs the ALU and applies flags/jump-target handling, per spec
// §4.6.
func (c *CPU) execute() {
	u := &c.cur
	carryIn := 0
	switch u.aluOp {
	case isa.ADD:
		carryIn = 0
	case isa.ADC:
		carryIn = boolToInt(c.Registers[isa.RegSR]&isa.SRFlagC != 0)
	case isa.SUB, isa.CMP:
		carryIn = 1
	case isa.SBC, isa.CMC:
		carryIn = boolToInt(c.Registers[isa.RegSR]&isa.SRFlagC != 0)
	}

	op1 := u.operand1
	op2 := u.operand2
	invertOp2 := u.aluOp == isa.SUB || u.aluOp == isa.CMP || u.aluOp == isa.SBC || u.aluOp == isa.CMC
	rawOp2 := op2
	if invertOp2 {
		// One's-complement invert within the byte: subtraction is ADD of the
		// inverted operand plus a carry-in of 1, so the invert must stay
		// 8-bit or the borrow/carry-out math below breaks.
		rawOp2 = (^op2) & 0xFF
	}

	var result int
	var carryOut bool
	switch u.aluOp {
	case isa.ADD, isa.ADC, isa.SUB, isa.SBC, isa.CMP, isa.CMC:
		sum := op1 + rawOp2 + carryIn
		result = sum & 0xFFFF
		// Format-M/C address/target computation (aluOp always ADD there)
		// can legitimately carry 16-bit operand1 values; that path never
		// sets setFlags, so the byte-wide carry-out threshold below only
		// matters for format-A/IA register arithmetic.
		carryOut = sum > 0xFF
	case isa.AND:
		result = op1 & op2
	case isa.OR:
		result = op1 | op2
	case isa.XOR:
		result = op1 ^ op2
	case isa.SHL:
		result = (op1 << uint(op2&0x7)) & 0xFF
	case isa.SHR:
		result = (op1 & 0xFF) >> uint(op2&0x7)
	case isa.MOV:
		result = op2 & 0xFF
	case isa.MOVH:
		// Combines with the low 6 bits already written by the preceding
		// MOV (operand1 holds the register's current value) rather than
		// clobbering them, per the assembler's MOV+MOVH expansion
		// (internal/encode.movByteWords).
		result = (op1 & 0x3F) | ((op2 & 0x3) << 6)
	case isa.TSB:
		bit := op2 & 0x7
		result = op1
		carryOut = c.Registers[isa.RegSR]&isa.SRFlagC != 0
		u.result = result
		c.applyTSBFlags(op1, op2, bit)
		c.finishExecute()
		return
	case isa.SEB:
		bit := op2 & 0x7
		result = op1 | (1 << uint(bit))
	default:
		result = op1
	}

	oldZero := c.Registers[isa.RegSR]&isa.SRFlagZ != 0
	newZero := result&0xFF == 0
	usesCarryIn := u.aluOp == isa.ADC || u.aluOp == isa.SBC || u.aluOp == isa.CMC
	zero := newZero
	if usesCarryIn {
		zero = oldZero && newZero
	}

	overflow := false
	if u.aluOp == isa.ADD || u.aluOp == isa.ADC || u.aluOp == isa.SUB || u.aluOp == isa.SBC || u.aluOp == isa.CMP || u.aluOp == isa.CMC {
		sign1 := op1&0x80 != 0
		sign2 := rawOp2&0x80 != 0
		signR := result&0x80 != 0
		overflow = sign1 == sign2 && sign1 != signR
	}
	negBit := result&0x80 != 0

	u.result = result
	if u.setFlags {
		var sr byte
		if carryOut {
			sr |= isa.SRFlagC
		}
		if overflow {
			sr |= isa.SRFlagV
		}
		if negBit {
			sr |= isa.SRFlagN
		}
		if zero {
			sr |= isa.SRFlagZ
		}
		c.Registers[isa.RegSR] = sr
	}
	c.finishExecute()
}

func (c *CPU) applyTSBFlags(op1, op2, bit int) {
	u := &c.cur
	n := op2&0x8 != 0
	z := op1&(1<<uint(bit)) != 0
	if u.setFlags {
		sr := c.Registers[isa.RegSR] & isa.SRFlagC
		if n {
			sr |= isa.SRFlagN
		}
		if z {
			sr |= isa.SRFlagZ
		}
		c.Registers[isa.RegSR] = sr
	}
}

func (c *CPU) finishExecute() {
	u := &c.cur
	if u.saveReturn {
		c.Registers[isa.RegRAL] = byte(c.PC)
		c.Registers[isa.RegRAH] = byte(c.PC >> 8)
	}
	if u.takeJump {
		c.PC = uint16(u.result)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// memoryStage performs the load/store indicated by decode, per spec §4.6.
// Per §7's explicit policy ("CPU currently ignores") and DESIGN.md's Open
// Question #4, a non-Success result is observable on LastAccess but does
// not change execution: reads yield 0, writes are dropped.
func (c *CPU) memoryStage() {
	u := &c.cur
	if u.memLoad {
		res, v := c.Mem.Read(uint64(uint16(u.result)))
		c.lastAccess = res
		if res == memory.Success {
			u.result = int(v)
		} else {
			u.result = 0
		}
	} else if u.memStore {
		c.lastAccess = c.Mem.Write(uint64(uint16(u.result)), u.storeVal)
	}
}

func (c *CPU) writeback() {
	u := &c.cur
	if u.aluWrite {
		c.Registers[u.writeReg] = byte(u.result & 0xFF)
	}
}
