// Package token defines the tagged-variant token produced by internal/lexer
// and consumed by internal/program and internal/encode. Every instance of
// Token is one variant from spec §3; Kind says which fields are live.
package token

import (
	"fmt"

	"github.com/chominskid/retro16/internal/isa"
)

// Kind discriminates which variant a Token holds.
type Kind int

const (
	KindInt Kind = iota
	KindOpcode
	KindCond
	KindReg
	KindWReg
	KindDirective
	KindLabelRef
	KindLabelDecl
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindOpcode:
		return "opcode"
	case KindCond:
		return "cond"
	case KindReg:
		return "reg"
	case KindWReg:
		return "wreg"
	case KindDirective:
		return "directive"
	case KindLabelRef:
		return "label-ref"
	case KindLabelDecl:
		return "label-decl"
	default:
		return "?"
	}
}

// Token is the sum type. Only the fields relevant to Kind are populated;
// the rest are zero. Line is always set, for diagnostics.
type Token struct {
	Kind Kind
	Line int

	// KindInt
	IntValue int64
	Base     int
	Negative bool

	// KindOpcode
	Opcode string

	// KindCond
	Cond       isa.Cond
	CondNegate bool

	// KindReg
	Reg int

	// KindWReg
	WReg isa.WReg

	// KindDirective
	Directive string

	// KindLabelRef / KindLabelDecl
	Name string
	// Addr is mutated in place by the resolver once the label's address is
	// known (spec §3: "label reference (name plus mutable resolved
	// address)"). It is meaningless until the resolver's label-update step
	// runs.
	Addr uint64
}

func Int(line int, value int64, base int, negative bool) Token {
	return Token{Kind: KindInt, Line: line, IntValue: value, Base: base, Negative: negative}
}

func Opcode(line int, name string) Token {
	return Token{Kind: KindOpcode, Line: line, Opcode: name}
}

func Condition(line int, c isa.Cond, negate bool) Token {
	return Token{Kind: KindCond, Line: line, Cond: c, CondNegate: negate}
}

func Reg(line int, idx int) Token {
	return Token{Kind: KindReg, Line: line, Reg: idx}
}

func WReg(line int, w isa.WReg) Token {
	return Token{Kind: KindWReg, Line: line, WReg: w}
}

func Directive(line int, name string) Token {
	return Token{Kind: KindDirective, Line: line, Directive: name}
}

func LabelRef(line int, name string) Token {
	return Token{Kind: KindLabelRef, Line: line, Name: name}
}

func LabelDecl(line int, name string) Token {
	return Token{Kind: KindLabelDecl, Line: line, Name: name}
}

// SignedValue returns the literal's value with its sign applied.
func (t Token) SignedValue() int64 {
	if t.Negative {
		return -t.IntValue
	}
	return t.IntValue
}

func (t Token) String() string {
	switch t.Kind {
	case KindInt:
		return fmt.Sprintf("int(%d)", t.SignedValue())
	case KindOpcode:
		return fmt.Sprintf("opcode(%s)", t.Opcode)
	case KindCond:
		if t.CondNegate {
			return fmt.Sprintf("cond(!%s)", t.Cond)
		}
		return fmt.Sprintf("cond(%s)", t.Cond)
	case KindReg:
		return fmt.Sprintf("reg(%s)", isa.RegName(t.Reg))
	case KindWReg:
		return fmt.Sprintf("wreg(%s)", t.WReg)
	case KindDirective:
		return fmt.Sprintf("directive(%s)", t.Directive)
	case KindLabelRef:
		return fmt.Sprintf("label-ref(%s)", t.Name)
	case KindLabelDecl:
		return fmt.Sprintf("label-decl(%s)", t.Name)
	default:
		return "?"
	}
}
