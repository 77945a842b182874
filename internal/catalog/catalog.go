// Package catalog is the instruction table of spec §4.2: a set keyed by
// Signature (opcode plus ordered argument-token-type tuple), each entry
// carrying its encoder list and an Independent flag. This generalizes the
// teacher's map-keyed InstMap/InstHandler pattern
// (shared/instruction.go:InstMap/InstHandlers) from "opcode name -> single
// fixed-shape handler" to "signature -> ranked list of candidate encoders",
// which is what the resolver's relaxation loop needs.
package catalog

import (
	"fmt"

	"github.com/chominskid/retro16/internal/encode"
	"github.com/chominskid/retro16/internal/isa"
	"github.com/chominskid/retro16/internal/token"
)

// Signature is the catalog's lookup key: an opcode name plus the ordered
// sequence of argument token kinds, per spec §3. Equality is structural, so
// it's directly usable as a Go map key once ArgKinds is captured by value
// via a fixed-size array wrapper (sigKey below); Signature itself stays a
// friendly slice-based type for construction and diagnostics.
type Signature struct {
	Opcode   string
	ArgKinds []token.Kind
}

func (s Signature) String() string {
	return fmt.Sprintf("%s%v", s.Opcode, s.ArgKinds)
}

type sigKey struct {
	opcode string
	arity  int
	kinds  [3]token.Kind
}

func keyOf(opcode string, kinds []token.Kind) sigKey {
	k := sigKey{opcode: opcode, arity: len(kinds)}
	for i, kind := range kinds {
		if i >= len(k.kinds) {
			break
		}
		k.kinds[i] = kind
	}
	return k
}

// Instruction is a catalog entry: its signature, whether its encoding can
// ever depend on an address (spec §3: "independent = true means the chosen
// encoding does not depend on any address"), and its encoders sorted by
// non-decreasing declared size with variable-size encoders last.
type Instruction struct {
	Signature  Signature
	Independent bool
	Encoders   []encode.Encoder
}

// Catalog is the full set of accepted (opcode, argument-shape) entries.
type Catalog struct {
	entries map[sigKey]Instruction
}

// Lookup resolves an opcode plus its argument tokens' kinds to the matching
// catalog Instruction. ok is false for an unrecognized signature (spec §7:
// "Unknown instruction signature ... Fatal; list signature").
func (c *Catalog) Lookup(opcode string, args []token.Token) (Instruction, bool) {
	kinds := make([]token.Kind, len(args))
	for i, a := range args {
		kinds[i] = a.Kind
	}
	inst, ok := c.entries[keyOf(opcode, kinds)]
	return inst, ok
}

// Mnemonics returns every distinct opcode name registered in the catalog,
// across all of its argument-shape signatures. internal/lexer uses this as
// the single source of truth for which bare names are reserved opcodes
// rather than hand-maintaining a second, driftable copy of the same list.
func (c *Catalog) Mnemonics() []string {
	seen := make(map[string]bool)
	var names []string
	for key := range c.entries {
		if !seen[key.opcode] {
			seen[key.opcode] = true
			names = append(names, key.opcode)
		}
	}
	return names
}

func (c *Catalog) add(opcode string, kinds []token.Kind, independent bool, encoders ...encode.Encoder) {
	if c.entries == nil {
		c.entries = make(map[sigKey]Instruction)
	}
	c.entries[keyOf(opcode, kinds)] = Instruction{
		Signature:   Signature{Opcode: opcode, ArgKinds: kinds},
		Independent: independent,
		Encoders:    encoders,
	}
}

var regReg = []token.Kind{token.KindReg, token.KindReg}
var regImm = []token.Kind{token.KindReg, token.KindInt}
var wregImm = []token.Kind{token.KindWReg, token.KindInt}
var wregLabel = []token.Kind{token.KindWReg, token.KindLabelRef}

// aluOps is every ALU opcode exposed directly as an assembly mnemonic, with
// the two-byte reg-reg and variable-size/fixed-size reg-imm forms it takes.
// SHL/SHR restrict their immediate to [0,7] per spec §4.3; every form here
// is fixed-size (MOV's variable-size forms are registered separately below).
var aluOps = []struct {
	name      string
	op        isa.ALUOp
	shiftForm bool
}{
	{"add", isa.ADD, false}, {"adc", isa.ADC, false},
	{"sub", isa.SUB, false}, {"sbc", isa.SBC, false},
	{"cmp", isa.CMP, false}, {"cmc", isa.CMC, false},
	{"and", isa.AND, false}, {"or", isa.OR, false}, {"xor", isa.XOR, false},
	{"shl", isa.SHL, true}, {"shr", isa.SHR, true},
	{"tsb", isa.TSB, false}, {"seb", isa.SEB, false},
}

// memForms enumerates every ld/st mnemonic, one per addressing mode, per
// spec §6.1's M-format mode table. Syntax is `ld<mode> rd, imm` /
// `st<mode> rd, imm`; the spec fixes the wire encoding (§6.1) but leaves
// assembly-source mnemonic spelling unspecified, so this mirrors the
// addressing-mode names already canonicalized in internal/isa.
var memForms = []struct {
	suffix string
	mode   isa.MemMode
}{
	{"stack", isa.MemStack}, {"frame", isa.MemFrame}, {"rel", isa.MemRel}, {"zpg", isa.MemZpg},
	{"ge", isa.MemGE}, {"gf", isa.MemGF}, {"gg", isa.MemGG}, {"gh", isa.MemGH},
}

// New builds the complete catalog of accepted signatures, per spec §4.2.
func New() *Catalog {
	c := &Catalog{}

	for _, a := range aluOps {
		c.add(a.name, regReg, true, encode.RegReg(a.op))
		if a.shiftForm {
			c.add(a.name, regImm, true, encode.ShiftImm(a.op))
		} else {
			c.add(a.name, regImm, true, encode.RegImm(a.op))
		}
	}

	// MOV reg,reg is just another format-A ALU op (spec §4.3: "nop" is
	// `mov gb,gb`).
	c.add("mov", regReg, true, encode.RegReg(isa.MOV))
	// MOV reg,imm is variable-size: one word when the immediate fits
	// signed-6, else MOV+MOVH (spec §4.2/§4.3).
	c.add("mov", regImm, true, encode.MovRegImm())
	// MOV wreg,imm is one MOV reg,imm expansion per byte half, low half
	// first (two to four words), independent because the 16-bit value is
	// already known.
	c.add("mov", wregImm, true, encode.MovWRegImm())
	// MOV wreg,label is the same shape but non-independent: the label's
	// address isn't known until the resolver assigns it (spec §4.2).
	c.add("mov", wregLabel, false, encode.MovWRegLabel())

	// nop: the canonical encoding of `mov gb,gb`, exposed as a zero-arg
	// mnemonic for readability. Independent and fixed-size.
	c.add("nop", nil, true, encode.Encoder{Size: 2, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		self := []token.Token{token.Reg(0, isa.RegGB), token.Reg(0, isa.RegGB)}
		return encode.RegReg(isa.MOV).Fn(site, self)
	}})

	for _, m := range memForms {
		c.add("ld"+m.suffix, regImm, true, encode.Mem(m.mode, false))
		c.add("st"+m.suffix, regImm, true, encode.Mem(m.mode, true))
	}

	// jmp/call over a condition and a wide-register base, optional
	// immediate offset (spec §4.3 "control"; DESIGN.md Open Question #2
	// resolves the (cond, wreg[, offset]) argument order).
	condWReg := []token.Kind{token.KindCond, token.KindWReg}
	condWRegImm := []token.Kind{token.KindCond, token.KindWReg, token.KindInt}
	modeOf := func(w isa.WReg) isa.CtrlMode {
		switch w {
		case isa.WRegGE:
			return isa.CtrlGE
		case isa.WRegGF:
			return isa.CtrlGF
		case isa.WRegGG:
			return isa.CtrlGG
		default:
			return isa.CtrlGH
		}
	}
	c.add("jmp", condWReg, true, encode.CtrlReg(false, modeOf))
	c.add("jmp", condWRegImm, true, encode.CtrlReg(false, modeOf))
	c.add("call", condWReg, true, encode.CtrlReg(true, modeOf))
	c.add("call", condWRegImm, true, encode.CtrlReg(true, modeOf))

	// ret cond: the RET addressing mode, base = RA (spec §6.1).
	c.add("ret", []token.Kind{token.KindCond}, true, encode.CtrlRet(false))

	// jmpl/jmph cond,imm: the BLD_LOW/BLD_HIGH fixed-trampoline short
	// forward jumps (spec §6.1, glossary "BLD_LOW/BLD_HIGH").
	condImm := []token.Kind{token.KindCond, token.KindInt}
	c.add("jmpl", condImm, true, encode.CtrlBld(false, isa.CtrlBldLow))
	c.add("jmph", condImm, true, encode.CtrlBld(false, isa.CtrlBldHigh))
	c.add("calll", condImm, true, encode.CtrlBld(true, isa.CtrlBldLow))
	c.add("callh", condImm, true, encode.CtrlBld(true, isa.CtrlBldHigh))

	// rjmp/rcall [cond,] label: relative jump/call over a label, the
	// address-dependent form (spec §4.2 "relative jumps with a label
	// argument are also non-independent").
	justLabel := []token.Kind{token.KindLabelRef}
	condLabel := []token.Kind{token.KindCond, token.KindLabelRef}
	c.add("rjmp", justLabel, false, encode.CtrlRel(false, isa.CondALW, false))
	c.add("rjmp", condLabel, false, encode.CtrlRel(false, isa.CondALW, false))
	c.add("rcall", justLabel, false, encode.CtrlRel(true, isa.CondALW, false))
	c.add("rcall", condLabel, false, encode.CtrlRel(true, isa.CondALW, false))

	return c
}
