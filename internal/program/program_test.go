package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chominskid/retro16/internal/catalog"
	"github.com/chominskid/retro16/internal/lexer"
)

func TestBuildResolvesKnownSignatures(t *testing.T) {
	statements, labels, err := lexer.Lex("nop\nnop\n")
	require.NoError(t, err)

	prog, err := Build(statements, labels, catalog.New())
	require.NoError(t, err)
	assert.Len(t, prog.Placeholders, 2)
}

func TestBuildRejectsUnknownSignature(t *testing.T) {
	statements, labels, err := lexer.Lex("add ga ga ga\n")
	require.NoError(t, err)

	_, err = Build(statements, labels, catalog.New())
	assert.Error(t, err)
}

func TestPlaceholderSizeFallsBackToMinWordGuess(t *testing.T) {
	statements, labels, err := lexer.Lex("mov ge forward\nnop\nforward:\n")
	require.NoError(t, err)

	prog, err := Build(statements, labels, catalog.New())
	require.NoError(t, err)

	p := prog.Placeholders[0]
	assert.False(t, p.Final)
	assert.Equal(t, minWordGuess, p.Size())
}

func TestPlaceholderSizeUsesLastOutputOnceKnown(t *testing.T) {
	p := &Placeholder{LastOutput: []byte{1, 2, 3, 4}}
	assert.Equal(t, 4, p.Size())
}

func TestValidateLabelsRejectsOutOfBounds(t *testing.T) {
	prog := &Program{Labels: map[string]int{"bad": 5}}
	assert.Error(t, validateLabels(prog))
}

func TestValidateLabelsAllowsTrailingLabel(t *testing.T) {
	prog := &Program{
		Labels:       map[string]int{"end": 1},
		Placeholders: []*Placeholder{{}},
	}
	assert.NoError(t, validateLabels(prog))
}
