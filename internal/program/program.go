// Package program builds the Placeholder list and label map of spec §3 from
// the lexer's statement list, resolving each statement against
// internal/catalog. This is the direct generalization of the teacher's
// UndefSymChain/FirstPass bookkeeping
// (shared/assembler/assembler.go:FirstPass/registerLabel) from "emit words
// immediately, patch undefined symbols in a second pass" to "build a
// Placeholder per statement and let internal/resolver own the fixpoint".
package program

import (
	"github.com/chominskid/retro16/internal/asmerr"
	"github.com/chominskid/retro16/internal/catalog"
	"github.com/chominskid/retro16/internal/token"
)

// Placeholder is a pending instruction site, per spec §3.
type Placeholder struct {
	FixedAddr     *uint64
	TentativeAddr uint64
	EncIdx        int
	Inst          catalog.Instruction
	Args          []token.Token
	Errs          asmerr.List
	LastOutput    []byte
	Final         bool
}

// minWordGuess is the optimistic initial-size guess a layout sweep uses for
// a variable-size encoder that has never yet produced output: one machine
// word, the smallest unit any instruction can occupy. This is what makes
// forward references to a not-yet-encoded variable-size site converge:
// guess small, grow on the next pass once the real size is known (spec
// §8 scenario 4 — a one-word-short guess shifts a later label's address by
// exactly "the extra word" on the very next pass).
const minWordGuess = 2

// Size returns the placeholder's tentative size for the layout sweep (spec
// §4.4 step 1): the committed output size if Final; otherwise the size of
// the last successful encode attempt if one has happened (the best known
// estimate while still converging); otherwise the current candidate
// encoder's declared size if it has one; otherwise the optimistic
// minWordGuess.
func (p *Placeholder) Size() int {
	if p.Final {
		return len(p.LastOutput)
	}
	if len(p.LastOutput) > 0 {
		return len(p.LastOutput)
	}
	if size := p.Inst.Encoders[p.EncIdx].Size; size >= 0 {
		return size
	}
	return minWordGuess
}

// Program is the ordered Placeholder list plus the label map, per spec §3.
type Program struct {
	Placeholders []*Placeholder
	Labels       map[string]int
}

// Build resolves each statement's opcode against cat and produces the
// initial (unresolved) Program. Line numbers on errors come from the
// statement's opcode token. Spec §7: "Unknown instruction signature ...
// Fatal; list signature".
func Build(statements [][]token.Token, labels map[string]int, cat *catalog.Catalog) (*Program, error) {
	prog := &Program{Labels: labels}
	for _, stmt := range statements {
		if len(stmt) == 0 {
			continue
		}
		opTok := stmt[0]
		if opTok.Kind != token.KindOpcode {
			return nil, asmerr.At(opTok.Line, "statement does not begin with an opcode: %v", opTok)
		}
		args := stmt[1:]
		inst, ok := cat.Lookup(opTok.Opcode, args)
		if !ok {
			return nil, asmerr.At(opTok.Line, "unknown instruction signature %s%v", opTok.Opcode, argKinds(args))
		}
		prog.Placeholders = append(prog.Placeholders, &Placeholder{
			Inst: inst,
			Args: args,
		})
	}
	if err := validateLabels(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

func argKinds(args []token.Token) []token.Kind {
	kinds := make([]token.Kind, len(args))
	for i, a := range args {
		kinds[i] = a.Kind
	}
	return kinds
}

// validateLabels checks the label-map-bounds invariant of spec §3: "A label
// map entry's index is in [0, |placeholders|]".
func validateLabels(prog *Program) error {
	for name, idx := range prog.Labels {
		if idx < 0 || idx > len(prog.Placeholders) {
			return asmerr.New("label %q index %d out of bounds [0,%d]", name, idx, len(prog.Placeholders))
		}
	}
	return nil
}
