package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestRunAssemblesToOutputFile(t *testing.T) {
	dir := t.TempDir()
	in := writeSource(t, dir, "a.s", "nop\n")
	out := filepath.Join(dir, "a.bin")

	code := run([]string{"-i", in, "-o", out})
	assert.Equal(t, 0, code)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x22}, got)
}

func TestRunMissingInputIsEinval(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "a.bin")
	assert.Equal(t, einval, run([]string{"-o", out}))
}

func TestRunMissingOutputIsEinval(t *testing.T) {
	dir := t.TempDir()
	in := writeSource(t, dir, "a.s", "nop\n")
	assert.Equal(t, einval, run([]string{"-i", in}))
}

// TestRunDuplicateInputFlagIsEinval is the regression test for the
// duplicate-argument gap: repeating -i (or mixing -i with --input) must
// reject the run outright rather than silently keeping the last value.
func TestRunDuplicateInputFlagIsEinval(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.s", "nop\n")
	b := writeSource(t, dir, "b.s", "nop\n")
	out := filepath.Join(dir, "a.bin")

	assert.Equal(t, einval, run([]string{"-i", a, "-i", b, "-o", out}))
	assert.Equal(t, einval, run([]string{"-i", a, "--input", b, "-o", out}))
}

// TestRunDuplicateOutputFlagIsEinval covers -o/--output the same way.
func TestRunDuplicateOutputFlagIsEinval(t *testing.T) {
	dir := t.TempDir()
	in := writeSource(t, dir, "a.s", "nop\n")
	out1 := filepath.Join(dir, "a.bin")
	out2 := filepath.Join(dir, "b.bin")

	assert.Equal(t, einval, run([]string{"-i", in, "-o", out1, "--output", out2}))
}
