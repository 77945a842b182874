package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chominskid/retro16/internal/isa"
	"github.com/chominskid/retro16/internal/token"
)

func TestLookupKnownSignature(t *testing.T) {
	cat := New()
	args := []token.Token{token.Reg(0, isa.RegGA), token.Reg(0, isa.RegGB)}
	inst, ok := cat.Lookup("mov", args)
	require.True(t, ok)
	assert.True(t, inst.Independent)
	require.Len(t, inst.Encoders, 1)
}

func TestLookupUnknownSignatureFails(t *testing.T) {
	cat := New()
	_, ok := cat.Lookup("frobnicate", nil)
	assert.False(t, ok)
}

// TestNopEncodesToMovGbGb confirms scenario 2 of spec §8: nop is the
// canonical encoding of mov gb,gb -> 0x30, 0x22.
func TestNopEncodesToMovGbGb(t *testing.T) {
	cat := New()
	inst, ok := cat.Lookup("nop", nil)
	require.True(t, ok)
	out, err := inst.Encoders[0].Fn(0, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x22}, out)
}

// TestCondWRegArgOrder is DESIGN.md's Open Question #2: jmp/call take
// (cond, wreg[, offset]), condition first.
func TestCondWRegArgOrder(t *testing.T) {
	cat := New()
	args := []token.Token{token.Condition(0, isa.CondALW, false), token.WReg(0, isa.WRegGE)}
	inst, ok := cat.Lookup("jmp", args)
	require.True(t, ok)
	assert.Equal(t, token.KindCond, inst.Signature.ArgKinds[0])
	assert.Equal(t, token.KindWReg, inst.Signature.ArgKinds[1])

	out, err := inst.Encoders[0].Fn(0, args)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestMemFormsCoverAllAddressingModes(t *testing.T) {
	cat := New()
	for _, suffix := range []string{"stack", "frame", "rel", "zpg", "ge", "gf", "gg", "gh"} {
		args := []token.Token{token.Reg(0, isa.RegGA), token.Int(0, 3, 10, false)}
		_, ok := cat.Lookup("ld"+suffix, args)
		assert.True(t, ok, "ld%s", suffix)
		_, ok = cat.Lookup("st"+suffix, args)
		assert.True(t, ok, "st%s", suffix)
	}
}

func TestShiftFormRestrictsImmediateRange(t *testing.T) {
	cat := New()
	inst, ok := cat.Lookup("shl", []token.Token{token.Reg(0, isa.RegGA), token.Int(0, 7, 10, false)})
	require.True(t, ok)
	_, err := inst.Encoders[0].Fn(0, []token.Token{token.Reg(0, isa.RegGA), token.Int(0, 8, 10, false)})
	assert.Error(t, err)
}

func TestMovRegLabelIsNonIndependent(t *testing.T) {
	cat := New()
	args := []token.Token{token.WReg(0, isa.WRegGE), token.LabelRef(0, "there")}
	inst, ok := cat.Lookup("mov", args)
	require.True(t, ok)
	assert.False(t, inst.Independent)
}
