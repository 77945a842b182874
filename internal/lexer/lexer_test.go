package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chominskid/retro16/internal/catalog"
	"github.com/chominskid/retro16/internal/isa"
	"github.com/chominskid/retro16/internal/token"
)

func TestEmptySource(t *testing.T) {
	statements, labels, err := Lex("")
	require.NoError(t, err)
	assert.Empty(t, statements)
	assert.Empty(t, labels)
}

func TestSingleNop(t *testing.T) {
	statements, _, err := Lex("nop\n")
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, token.KindOpcode, statements[0][0].Kind)
	assert.Equal(t, "nop", statements[0][0].Opcode)
}

func TestLabelDeclAndReference(t *testing.T) {
	statements, labels, err := Lex("here: rjmp here\n")
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, 0, labels["here"])
	require.Len(t, statements[0], 2)
	assert.Equal(t, token.KindLabelRef, statements[0][1].Kind)
	assert.Equal(t, "here", statements[0][1].Name)
}

func TestTrailingLabelPointsPastEnd(t *testing.T) {
	statements, labels, err := Lex("nop\nend:")
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, 1, labels["end"])
}

func TestDuplicateLabelIsFatal(t *testing.T) {
	_, _, err := Lex("a: nop\na: nop\n")
	assert.Error(t, err)
}

func TestReservedWordCannotBeLabel(t *testing.T) {
	_, _, err := Lex("nop: nop\n")
	assert.Error(t, err)
}

func TestIntegerLiteralBases(t *testing.T) {
	statements, _, err := Lex("add ga -0b10000000\n")
	require.NoError(t, err)
	require.Len(t, statements, 1)
	imm := statements[0][2]
	require.Equal(t, token.KindInt, imm.Kind)
	assert.Equal(t, int64(-128), imm.SignedValue())
}

// TestImm6RoundTrips is the immediate round-trip property of spec §8:
// for -32 <= x <= 31, sign_extend_6(encode_imm(x)) == x. lexNumber's digit
// accumulation order (DESIGN.md's Open Question #1) is covered by
// TestIntegerLiteralBases instead.
func TestImm6RoundTrips(t *testing.T) {
	for x := -32; x <= 31; x++ {
		ih, il := isa.Imm6(x)
		got := isa.SignExtend6(isa.ComposeImm6(ih, il))
		assert.Equal(t, x, got)
	}
}

func TestConditionAndRegisterNamesAreReserved(t *testing.T) {
	statements, _, err := Lex("jmp alw ge\n")
	require.NoError(t, err)
	require.Len(t, statements, 1)
	require.Len(t, statements[0], 3)
	assert.Equal(t, token.KindCond, statements[0][1].Kind)
	assert.Equal(t, isa.CondALW, statements[0][1].Cond)
	assert.Equal(t, token.KindWReg, statements[0][2].Kind)
	assert.Equal(t, isa.WRegGE, statements[0][2].WReg)
}

func TestNegatedCondition(t *testing.T) {
	statements, _, err := Lex("jmp nz ge\n")
	require.NoError(t, err)
	cond := statements[0][1]
	assert.Equal(t, isa.CondZ, cond.Cond)
	assert.True(t, cond.CondNegate)
}

func TestLineCommentsAreIgnored(t *testing.T) {
	statements, _, err := Lex("nop # this is a comment\nnop\n")
	require.NoError(t, err)
	assert.Len(t, statements, 2)
}

// TestAllCatalogMnemonicsAreReservedOpcodes guards against reservedOpcodes
// drifting out of sync with the catalog again: every ld/st addressing-mode
// suffix and every jmpl/jmph/calll/callh trampoline must lex as a single
// Opcode token that starts a statement, not fall through to LabelRef.
func TestAllCatalogMnemonicsAreReservedOpcodes(t *testing.T) {
	for _, name := range catalog.New().Mnemonics() {
		tok, isStatementStart := classifyName(name, 1)
		assert.Equal(t, token.KindOpcode, tok.Kind, "mnemonic %q", name)
		assert.True(t, isStatementStart, "mnemonic %q must start a statement", name)
	}
}

// TestMemoryAddressingMnemonicsLex is a regression test for the ld<mode>/
// st<mode> whole-identifier mnemonics (e.g. "ldge", "stzpg") that
// reservedOpcodes previously only covered via the bare "ld"/"st" prefixes,
// which lexName's full-identifier read never produces.
func TestMemoryAddressingMnemonicsLex(t *testing.T) {
	statements, _, err := Lex("ldge ga 3\nstzpg ga 3\n")
	require.NoError(t, err)
	require.Len(t, statements, 2)
	assert.Equal(t, "ldge", statements[0][0].Opcode)
	assert.Equal(t, "stzpg", statements[1][0].Opcode)
}

// TestShortJumpTrampolineMnemonicsLex is a regression test for the
// BLD_LOW/BLD_HIGH trampoline mnemonics.
func TestShortJumpTrampolineMnemonicsLex(t *testing.T) {
	statements, _, err := Lex("jmpl alw 5\njmph alw 5\ncalll alw 5\ncallh alw 5\n")
	require.NoError(t, err)
	require.Len(t, statements, 4)
	for i, name := range []string{"jmpl", "jmph", "calll", "callh"} {
		assert.Equal(t, name, statements[i][0].Opcode)
	}
}

func TestBlockCommentsAreIgnored(t *testing.T) {
	// The block runs from the first "##" to the second; the nop after it is
	// code again, so there are two statements and "this" is not an argument.
	statements, _, err := Lex("nop ## skip\nthis\n## nop\n")
	require.NoError(t, err)
	assert.Len(t, statements, 2)
}
