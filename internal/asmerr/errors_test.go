package asmerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHasNoLinePrefix(t *testing.T) {
	err := New("bad thing: %d", 3)
	assert.Equal(t, "bad thing: 3", err.Error())
}

func TestAtPrefixesLine(t *testing.T) {
	err := At(7, "bad thing: %d", 3)
	assert.Equal(t, "line 7: bad thing: 3", err.Error())
}

func TestListAddAndEmpty(t *testing.T) {
	var l List
	assert.True(t, l.Empty())
	l.Add(New("first"))
	l.Add(New("second"))
	assert.False(t, l.Empty())
	assert.Len(t, l.Errs, 2)
}

// TestListErrsJoinsWithErrorsJoin is the regression test for §7's
// "Recoverable per-encoder diagnostics are plain error values joined with
// errors.Join": a List's accumulated Errs must round-trip through
// errors.Join and remain individually inspectable via errors.Is, not just
// concatenated into an opaque string.
func TestListErrsJoinsWithErrorsJoin(t *testing.T) {
	var l List
	sentinel := errors.New("sentinel")
	l.Add(sentinel)
	l.Add(New("other"))

	joined := errors.Join(l.Errs...)
	assert.ErrorIs(t, joined, sentinel)
	assert.Contains(t, joined.Error(), "sentinel")
	assert.Contains(t, joined.Error(), "other")
}
