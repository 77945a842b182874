// Package encode implements the pure encoder primitives of spec §4.3: each
// function takes a site address and argument tokens and produces either the
// instruction's bytes or a diagnostic naming the offending operand. None of
// these functions touch global state or the resolver's bookkeeping — that
// separation is what lets the resolver retry an encoder freely across
// passes.
package encode

import (
	"fmt"

	"github.com/chominskid/retro16/internal/isa"
	"github.com/chominskid/retro16/internal/token"
)

// Func is the shape every encoder primitive has: (site address, argument
// tokens) -> bytes or failure reason, per spec §3.
type Func func(site uint64, args []token.Token) ([]byte, error)

// Encoder pairs an encode function with its declared size. Size < 0 means
// variable size, discoverable only by successfully encoding (spec §3).
type Encoder struct {
	Size int
	Fn   Func
}

const VariableSize = -1

func beWord(w uint16) []byte {
	return []byte{byte(w >> 8), byte(w)}
}

// RegReg builds the format-A (reg-reg ALU) encoder for op.
func RegReg(op isa.ALUOp) Encoder {
	return Encoder{Size: 2, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		if len(args) != 2 || args[0].Kind != token.KindReg || args[1].Kind != token.KindReg {
			return nil, fmt.Errorf("%s: expected reg,reg", op)
		}
		rd, rs := args[0].Reg, args[1].Reg
		word := uint16(isa.FmtA)<<14 | uint16(op)<<10 | uint16(rd&0xF)<<4 | uint16(rs&0xF)
		return beWord(word), nil
	}}
}

// RegImm builds the fixed-size format-IA (reg-imm ALU) encoder for op. The
// immediate must fit a signed 6-bit field; out-of-range values fail. The
// catalog does not use it for MOV: `mov reg,imm` goes through MovRegImm,
// which grows to MOV+MOVH instead.
func RegImm(op isa.ALUOp) Encoder {
	return Encoder{Size: 2, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		if len(args) != 2 || args[0].Kind != token.KindReg || args[1].Kind != token.KindInt {
			return nil, fmt.Errorf("%s: expected reg,imm", op)
		}
		rd := args[0].Reg
		imm := int(args[1].SignedValue())
		if !isa.FitsSigned6(imm) {
			return nil, fmt.Errorf("%s: immediate %d does not fit signed 6-bit field", op, imm)
		}
		return regImmWord(op, rd, imm), nil
	}}
}

func regImmWord(op isa.ALUOp, rd int, imm int) []byte {
	ih, il := isa.Imm6(imm)
	word := uint16(isa.FmtIA)<<14 | uint16(op)<<10 | uint16(ih&0x3)<<8 | uint16(rd&0xF)<<4 | uint16(il&0xF)
	return beWord(word)
}

// ShiftImm builds the format-IA encoder for SHL/SHR, restricted to a shift
// count of 0..7 per spec §4.3.
func ShiftImm(op isa.ALUOp) Encoder {
	return Encoder{Size: 2, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		if len(args) != 2 || args[0].Kind != token.KindReg || args[1].Kind != token.KindInt {
			return nil, fmt.Errorf("%s: expected reg,imm", op)
		}
		rd := args[0].Reg
		imm := int(args[1].SignedValue())
		if imm < 0 || imm > 7 {
			return nil, fmt.Errorf("%s: shift amount %d out of range [0,7]", op, imm)
		}
		return regImmWord(op, rd, imm), nil
	}}
}

// movByteWords encodes a single byte-wide register load: one word if the
// value fits signed-6, else a MOV of the low 6 bits followed by a MOVH of
// the top 2 bits (spec §4.3 "mov reg,imm (wide range)").
func movByteWords(rd int, value byte) []byte {
	low6 := int(value & 0x3F)
	if fitsSingleWord(value) {
		return regImmWord(isa.MOV, rd, isa.SignExtend6(low6))
	}
	out := regImmWord(isa.MOV, rd, isa.SignExtend6(low6))
	high2 := int(value >> 6)
	out = append(out, regImmWord(isa.MOVH, rd, high2)...)
	return out
}

// fitsSingleWord reports whether the byte value is exactly reproduced by
// sign-extending its own low 6 bits (i.e. its top 2 bits are just the sign
// extension of bit 5), meaning MOVH isn't needed.
func fitsSingleWord(value byte) bool {
	low6 := value & 0x3F
	if low6&0x20 != 0 {
		return value>>6 == 0x3
	}
	return value>>6 == 0x0
}

// MovRegImm is the variable-size encoder for `mov reg,imm`: one word when
// the immediate fits signed-6, otherwise MOV+MOVH (spec §4.3/§4.2).
func MovRegImm() Encoder {
	return Encoder{Size: VariableSize, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		if len(args) != 2 || args[0].Kind != token.KindReg || args[1].Kind != token.KindInt {
			return nil, fmt.Errorf("mov: expected reg,imm")
		}
		rd := args[0].Reg
		value := args[1].SignedValue()
		if value < -128 || value > 255 {
			return nil, fmt.Errorf("mov: immediate %d does not fit a byte register", value)
		}
		return movByteWords(rd, byte(value)), nil
	}}
}

// movWideBytes builds the two-half expansion shared by `mov wreg,imm` and
// `mov wreg,label`: low half first, high half second (spec §4.3).
func movWideBytes(w isa.WReg, addr uint64) []byte {
	low := byte(addr)
	high := byte(addr >> 8)
	out := movByteWords(w.Low(), low)
	out = append(out, movByteWords(w.High(), high)...)
	return out
}

// MovWRegImm is the always-immediate-known variant of `mov wreg,imm`
// (spec §4.2: "independent").
func MovWRegImm() Encoder {
	return Encoder{Size: VariableSize, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		if len(args) != 2 || args[0].Kind != token.KindWReg || args[1].Kind != token.KindInt {
			return nil, fmt.Errorf("mov: expected wreg,imm")
		}
		value := args[1].SignedValue()
		if value < -32768 || value > 65535 {
			return nil, fmt.Errorf("mov: immediate %d does not fit 16 bits", value)
		}
		return movWideBytes(args[0].WReg, uint64(uint16(value))), nil
	}}
}

// MovWRegLabel is the non-independent variant of `mov wreg,label`: the
// label reference's resolved address supplies the 16-bit value (spec §4.2:
// "marked non-independent because the label address is not yet known").
func MovWRegLabel() Encoder {
	return Encoder{Size: VariableSize, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		if len(args) != 2 || args[0].Kind != token.KindWReg || args[1].Kind != token.KindLabelRef {
			return nil, fmt.Errorf("mov: expected wreg,label")
		}
		return movWideBytes(args[0].WReg, args[1].Addr), nil
	}}
}

// Mem builds the format-M (memory) encoder for the given addressing mode
// and store flag. args are (reg, imm-offset).
func Mem(mode isa.MemMode, store bool) Encoder {
	return Encoder{Size: 2, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		if len(args) != 2 || args[0].Kind != token.KindReg || args[1].Kind != token.KindInt {
			return nil, fmt.Errorf("mem: expected reg,imm")
		}
		reg := args[0].Reg
		off := int(args[1].SignedValue())
		if !isa.FitsSigned6(off) {
			return nil, fmt.Errorf("mem: offset %d does not fit signed 6-bit field", off)
		}
		ih, il := isa.Imm6(off)
		s := uint16(0)
		if store {
			s = 1
		}
		word := uint16(isa.FmtM)<<14 | s<<13 | uint16(mode&0x7)<<10 | uint16(ih&0x3)<<8 | uint16(reg&0xF)<<4 | uint16(il&0xF)
		return beWord(word), nil
	}}
}

func ctrlWord(save bool, mode isa.CtrlMode, imm int, negate bool, cond isa.Cond) uint16 {
	ih, il := isa.Imm6(imm)
	s := uint16(0)
	if save {
		s = 1
	}
	n := uint16(0)
	if negate {
		n = 1
	}
	return uint16(isa.FmtC)<<14 | s<<13 | uint16(mode&0x7)<<10 | uint16(ih&0x3)<<8 | n<<7 | uint16(cond&0x7)<<4 | uint16(il&0xF)
}

// CtrlReg builds the control encoder for the register/wide-register-base
// forms: args are (cond, wreg[, imm]); a missing imm defaults to 0.
func CtrlReg(save bool, modeOf func(isa.WReg) isa.CtrlMode) Encoder {
	return Encoder{Size: 2, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		if len(args) < 2 || args[0].Kind != token.KindCond || args[1].Kind != token.KindWReg {
			return nil, fmt.Errorf("ctrl: expected cond,wreg[,imm]")
		}
		imm := 0
		if len(args) == 3 {
			if args[2].Kind != token.KindInt {
				return nil, fmt.Errorf("ctrl: expected immediate offset")
			}
			imm = int(args[2].SignedValue())
		}
		if !isa.FitsSigned6(imm) {
			return nil, fmt.Errorf("ctrl: offset %d does not fit signed 6-bit field", imm)
		}
		mode := modeOf(args[1].WReg)
		word := ctrlWord(save, mode, imm, args[0].CondNegate, args[0].Cond)
		return beWord(word), nil
	}}
}

// CtrlRet builds the RET encoder: args are exactly (cond); a call with no
// arguments fails.
func CtrlRet(save bool) Encoder {
	return Encoder{Size: 2, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		if len(args) != 1 || args[0].Kind != token.KindCond {
			return nil, fmt.Errorf("ret: expected cond")
		}
		word := ctrlWord(save, isa.CtrlRet, 0, args[0].CondNegate, args[0].Cond)
		return beWord(word), nil
	}}
}

// CtrlBld builds the BLD_LOW/BLD_HIGH fixed-trampoline encoder: args are
// (cond, imm).
func CtrlBld(save bool, mode isa.CtrlMode) Encoder {
	return Encoder{Size: 2, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		if len(args) != 2 || args[0].Kind != token.KindCond || args[1].Kind != token.KindInt {
			return nil, fmt.Errorf("ctrl: expected cond,imm")
		}
		imm := int(args[1].SignedValue())
		if !isa.FitsSigned6(imm) {
			return nil, fmt.Errorf("ctrl: offset %d does not fit signed 6-bit field", imm)
		}
		word := ctrlWord(save, mode, imm, args[0].CondNegate, args[0].Cond)
		return beWord(word), nil
	}}
}

// CtrlRel builds the relative-jump/call encoder over a label argument. The
// site address must be 2-byte aligned and the halved instruction-unit
// offset (measured from the address immediately after this instruction,
// matching the CPU's already-advanced PC at DECODE time — spec §4.6) must
// fit signed-6 (spec §4.3).
func CtrlRel(save bool, cond isa.Cond, negate bool) Encoder {
	return Encoder{Size: 2, Fn: func(site uint64, args []token.Token) ([]byte, error) {
		var label token.Token
		switch {
		case len(args) == 1 && args[0].Kind == token.KindLabelRef:
			label = args[0]
		case len(args) == 2 && args[0].Kind == token.KindCond && args[1].Kind == token.KindLabelRef:
			cond, negate = args[0].Cond, args[0].CondNegate
			label = args[1]
		default:
			return nil, fmt.Errorf("rel jump: expected [cond,]label")
		}
		if site%2 != 0 {
			return nil, fmt.Errorf("rel jump: site address 0x%x is not 2-byte aligned", site)
		}
		diff := int64(label.Addr) - int64(site+2)
		if diff%2 != 0 {
			return nil, fmt.Errorf("rel jump: target 0x%x is not reachable on a word boundary", label.Addr)
		}
		offset := int(diff / 2)
		if !isa.FitsSigned6(offset) {
			return nil, fmt.Errorf("rel jump: offset %d (to 0x%x) does not fit signed 6-bit field", offset, label.Addr)
		}
		word := ctrlWord(save, isa.CtrlRel, offset, negate, cond)
		return beWord(word), nil
	}}
}
