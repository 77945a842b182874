package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferDeviceReadWrite(t *testing.T) {
	b := NewBuffer(4, ReadWrite)
	res := b.Write(1, 0x42)
	assert.Equal(t, Success, res)

	res, v := b.Read(1)
	assert.Equal(t, Success, res)
	assert.Equal(t, byte(0x42), v)
}

func TestBufferDeviceOutOfRange(t *testing.T) {
	b := NewBuffer(2, ReadWrite)
	res, _ := b.Read(5)
	assert.Equal(t, OutOfRange, res)
	assert.Equal(t, OutOfRange, b.Write(5, 1))
}

func TestBufferDeviceAccessMask(t *testing.T) {
	ro := NewBuffer(1, ReadOnly)
	assert.Equal(t, CannotWrite, ro.Write(0, 1))
	ok, _ := ro.Read(0)
	assert.Equal(t, Success, ok)

	wo := NewBuffer(1, WriteOnly)
	res, _ := wo.Read(0)
	assert.Equal(t, CannotRead, res)
}

func TestDebugWriteBypassesAccessMask(t *testing.T) {
	ro := NewBuffer(1, ReadOnly)
	ro.DebugWrite(0, 0x99)
	_, v := ro.Read(0)
	assert.Equal(t, byte(0x99), v)
}

func TestSnapshotCopiesCurrentContents(t *testing.T) {
	b := NewBuffer(3, ReadWrite)
	b.Write(0, 1)
	b.Write(1, 2)
	b.Write(2, 3)

	snap := b.Snapshot()
	assert.Equal(t, []byte{1, 2, 3}, snap)

	snap[0] = 0xFF
	_, v := b.Read(0)
	assert.Equal(t, byte(1), v, "snapshot must be a copy, not a live view")
}

func TestInterfaceDeviceRoutesByBase(t *testing.T) {
	bus := NewInterface()
	low := NewBuffer(0x10, ReadWrite)
	high := NewBuffer(0x10, ReadWrite)
	require.NoError(t, bus.Register(0x00, low))
	require.NoError(t, bus.Register(0x10, high))

	require.Equal(t, Success, bus.Write(0x05, 1))
	require.Equal(t, Success, bus.Write(0x15, 2))

	_, v := low.Read(0x05)
	assert.Equal(t, byte(1), v)
	_, v = high.Read(0x05)
	assert.Equal(t, byte(2), v)
}

func TestInterfaceDeviceRejectsDuplicateBase(t *testing.T) {
	bus := NewInterface()
	require.NoError(t, bus.Register(0x00, NewBuffer(1, ReadWrite)))
	assert.Error(t, bus.Register(0x00, NewBuffer(1, ReadWrite)))
}

func TestInterfaceDeviceOutOfRangeBeforeFirstChild(t *testing.T) {
	bus := NewInterface()
	require.NoError(t, bus.Register(0x10, NewBuffer(4, ReadWrite)))
	res, _ := bus.Read(0x05)
	assert.Equal(t, OutOfRange, res)
}

func TestInterfaceDeviceSizeIsLastEntryBound(t *testing.T) {
	bus := NewInterface()
	require.NoError(t, bus.Register(0x10, NewBuffer(4, ReadWrite)))
	assert.Equal(t, uint64(0x14), bus.Size())
}

func TestLoadHexText(t *testing.T) {
	doc := "# boot rom\n0x0102\nFFFF\n\n# trailing\n0003\n"
	out, err := LoadHexText(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0xFF, 0xFF, 0x00, 0x03}, out)
}

func TestLoadHexTextRejectsMalformedLine(t *testing.T) {
	_, err := LoadHexText(strings.NewReader("not-hex\n"))
	assert.Error(t, err)
}
