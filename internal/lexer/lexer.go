// Package lexer turns UTF-8 assembly source into the statement list consumed
// by internal/program: a character stream in, a sequence of already-grouped
// instruction statements (each a []token.Token) plus the label map out. This
// generalizes the teacher's line-based parseAsmLine (shared/assembler/assembler.go)
// from "split one line on ':' and whitespace" to a real rune-stream scanner,
// per spec §4.1.
package lexer

import (
	"strings"
	"unicode"

	"github.com/chominskid/retro16/internal/asmerr"
	"github.com/chominskid/retro16/internal/catalog"
	"github.com/chominskid/retro16/internal/isa"
	"github.com/chominskid/retro16/internal/token"
)

// reservedOpcodes lists every mnemonic the catalog can key on, derived
// directly from catalog.New() rather than hand-maintained: a name added to
// the catalog (a new ld/st addressing suffix, a new jmpl/jmph/calll/callh
// trampoline, ...) is automatically reserved here too, so the two can never
// drift apart. The lexer itself doesn't validate argument shape — that's
// internal/catalog's job — it only needs to know a name is a reserved
// opcode so it can emit an Opcode token instead of a label reference.
var reservedOpcodes = buildReservedOpcodes()

func buildReservedOpcodes() map[string]bool {
	m := make(map[string]bool)
	for _, name := range catalog.New().Mnemonics() {
		m[name] = true
	}
	return m
}

// reservedDirectives are no-ops at the lexer/program level (spec §4.1:
// "directives are reserved but currently no-ops"); they still start a new
// statement like an opcode does, and still need to be rejected as label
// names. Lex drops a directive's statement instead of returning it.
var reservedDirectives = map[string]bool{
	"org": true,
}

// Lex scans src and returns the statement list (one []token.Token per
// instruction) and the label map (name -> index into the statement list),
// per spec §3/§4.1. Statements and label-decl bookkeeping are produced in a
// single left-to-right pass.
func Lex(src string) (statements [][]token.Token, labels map[string]int, err error) {
	l := &lexer{src: []rune(src), line: 1}
	labels = make(map[string]int)
	var cur []token.Token

	finish := func() {
		if len(cur) > 0 && cur[0].Kind != token.KindDirective {
			statements = append(statements, cur)
		}
		cur = nil
	}

	for {
		l.skipSpaceAndComments()
		if l.atEnd() {
			break
		}
		r := l.peek()
		switch {
		case r == '-' || unicode.IsDigit(r):
			tok, e := l.lexNumber()
			if e != nil {
				return nil, nil, e
			}
			cur = append(cur, tok)
		case isNameStart(r):
			name, line := l.lexName()
			if l.peek() == ':' {
				l.advance()
				if reservedOpcodes[name] || isReservedWord(name) {
					return nil, nil, asmerr.At(line, "%q is reserved and cannot be used as a label", name)
				}
				if _, dup := labels[name]; dup {
					return nil, nil, asmerr.At(line, "duplicate label %q", name)
				}
				finish()
				labels[name] = len(statements)
				continue
			}
			tok, isStatementStart := classifyName(name, line)
			if isStatementStart && len(cur) > 0 {
				finish()
			}
			// "ge" names both a condition and a wide register. It is the
			// condition only as the first argument of an opcode other than
			// mov (every control opcode takes its condition first);
			// everywhere else it is the wide register.
			if w, ok := isa.LookupWReg(strings.ToLower(name)); ok && tok.Kind == token.KindCond &&
				!(len(cur) == 1 && cur[0].Opcode != "mov") {
				tok = token.WReg(line, w)
			}
			cur = append(cur, tok)
		default:
			return nil, nil, asmerr.At(l.line, "unexpected character %q", r)
		}
	}
	finish()
	// A trailing label with no following instruction points one past the
	// end of the statement list (spec §3: "a trailing label points one
	// past the end").
	return statements, labels, nil
}

func isReservedWord(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := isa.LookupCond(lower); ok {
		return true
	}
	if _, ok := isa.LookupReg(lower); ok {
		return true
	}
	if _, ok := isa.LookupWReg(lower); ok {
		return true
	}
	return reservedOpcodes[lower] || reservedDirectives[lower]
}

// classifyName resolves a bare name to its canonical token, per spec §4.1:
// opcodes and directives first, then conditions (including an "n"-prefixed
// negated condition), then registers and wide registers, else it's a label
// reference. The bool return says whether this token kind
// starts a new statement (opcode or directive do; the rest are arguments).
func classifyName(name string, line int) (token.Token, bool) {
	lower := strings.ToLower(name)
	if reservedOpcodes[lower] {
		return token.Opcode(line, lower), true
	}
	if reservedDirectives[lower] {
		return token.Directive(line, lower), true
	}
	if c, ok := isa.LookupCond(lower); ok {
		return token.Condition(line, c, false), false
	}
	if strings.HasPrefix(lower, "n") {
		if c, ok := isa.LookupCond(lower[1:]); ok {
			return token.Condition(line, c, true), false
		}
	}
	if r, ok := isa.LookupReg(lower); ok {
		return token.Reg(line, r), false
	}
	if w, ok := isa.LookupWReg(lower); ok {
		return token.WReg(line, w), false
	}
	return token.LabelRef(line, name), false
}

type lexer struct {
	src  []rune
	pos  int
	line int
}

func (l *lexer) atEnd() bool { return l.pos >= len(l.src) }
func (l *lexer) peek() rune {
	if l.atEnd() {
		return 0
	}
	return l.src[l.pos]
}
func (l *lexer) peekAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}
func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *lexer) skipSpaceAndComments() {
	for !l.atEnd() {
		r := l.peek()
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.advance()
		case r == '#' && l.peekAt(1) == '#':
			l.advance()
			l.advance()
			for !l.atEnd() && !(l.peek() == '#' && l.peekAt(1) == '#') {
				l.advance()
			}
			if !l.atEnd() {
				l.advance()
				l.advance()
			}
		case r == '#':
			for !l.atEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}
func isNameCont(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *lexer) lexName() (string, int) {
	line := l.line
	start := l.pos
	for !l.atEnd() && isNameCont(l.peek()) {
		l.advance()
	}
	return string(l.src[start:l.pos]), line
}

// lexNumber implements spec §4.1's literal grammar: optional '-', optional
// base prefix (0x=16, 0b=2, leading-0 followed by an octal digit=8, else
// 10), then digits valid in that base. Digits accumulate in source
// (left-to-right, most-significant-first) order — see DESIGN.md's Open
// Question #1.
func (l *lexer) lexNumber() (token.Token, error) {
	line := l.line
	negative := false
	if l.peek() == '-' {
		negative = true
		l.advance()
	}
	base := 10
	start := l.pos
	switch {
	case l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X'):
		base = 16
		l.advance()
		l.advance()
		start = l.pos
	case l.peek() == '0' && (l.peekAt(1) == 'b' || l.peekAt(1) == 'B'):
		base = 2
		l.advance()
		l.advance()
		start = l.pos
	case l.peek() == '0' && isOctalDigit(l.peekAt(1)):
		base = 8
		l.advance()
		start = l.pos
	}
	digitsStart := l.pos
	for !l.atEnd() && isDigitInBase(l.peek(), base) {
		l.advance()
	}
	if l.pos == digitsStart && l.pos == start {
		return token.Token{}, asmerr.At(line, "malformed integer literal")
	}
	var value int64
	for _, r := range l.src[digitsStart:l.pos] {
		value = value*int64(base) + int64(digitVal(r))
	}
	return token.Int(line, value, base, negative), nil
}

func isOctalDigit(r rune) bool { return r >= '0' && r <= '7' }

func isDigitInBase(r rune, base int) bool {
	switch base {
	case 2:
		return r == '0' || r == '1'
	case 8:
		return r >= '0' && r <= '7'
	case 16:
		return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
	default:
		return unicode.IsDigit(r)
	}
}

func digitVal(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10
	default:
		return 0
	}
}
