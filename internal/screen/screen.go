// Package screen implements the character×attribute framebuffer device of
// spec §4.7: a width×height grid of (charcode, color) cells backed by an
// internal/memory.BufferDevice, plus the 16-color indexed palette used by
// cmd/remu's tcell-backed rendering. The teacher has no screen device at
// all (dubcc is a pure batch assembler/simulator); this package is new code
// in the teacher's declarative-struct idiom, grounded on
// internal/memory.BufferDevice for storage and on
// github.com/gdamore/tcell/v2 for the palette (DESIGN.md: tcell is in the
// teacher's go.mod for its own terminal UI, repurposed here as the color
// table cmd/remu renders through).
package screen

import (
	"github.com/gdamore/tcell/v2"

	"github.com/chominskid/retro16/internal/memory"
)

// Palette is the 16 indexed colors of spec §4.7: 0 black, 1 white, 2..7
// bright RGB-ish, 8..D darker, E gray, F dark gray.
var Palette = [16]tcell.Color{
	tcell.ColorBlack,
	tcell.ColorWhite,
	tcell.ColorRed,
	tcell.ColorGreen,
	tcell.ColorBlue,
	tcell.ColorYellow,
	tcell.ColorFuchsia,
	tcell.ColorAqua,
	tcell.ColorMaroon,
	tcell.ColorDarkGreen,
	tcell.ColorNavy,
	tcell.ColorOlive,
	tcell.ColorPurple,
	tcell.ColorTeal,
	tcell.ColorGray,
	tcell.ColorDarkSlateGray,
}

// ceilPow2 rounds n up to the next power of two (n itself if already one).
func ceilPow2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Size returns the BufferDevice size spec §4.7 requires for a width×height
// screen: ceil_pow2(width*height*2).
func Size(width, height int) uint64 {
	return ceilPow2(uint64(width) * uint64(height) * 2)
}

// Screen wraps a BufferDevice with the cell-addressing and color-unpacking
// rules of spec §4.7. It is itself a memory.Device (delegates Read/Write/
// DebugWrite/Size/AccessMask), so it slots directly into an
// internal/memory.InterfaceDevice bus at the screen base address.
type Screen struct {
	*memory.BufferDevice
	Width, Height int
}

// New builds a Screen of the given cell dimensions, backed by a
// read-write BufferDevice sized per Size.
func New(width, height int) *Screen {
	return &Screen{
		BufferDevice: memory.NewBuffer(Size(width, height), memory.ReadWrite),
		Width:        width,
		Height:       height,
	}
}

// cellOffset returns the byte offset of cell (x,y)'s charcode byte, per
// spec §4.7: "2·(y·width + x)". The color byte is cellOffset+1.
func cellOffset(width, x, y int) uint64 {
	return 2 * uint64(y*width+x)
}

// Cell reads the (charcode, foreground, background) triple at (x,y). The
// foreground/background indices are the color byte's high/low nibbles.
func (s *Screen) Cell(x, y int) (charcode byte, fg, bg int) {
	off := cellOffset(s.Width, x, y)
	_, ch := s.BufferDevice.Read(off)
	_, color := s.BufferDevice.Read(off + 1)
	return ch, int(color >> 4 & 0xF), int(color & 0xF)
}

// SetCell writes charcode and the packed (fg<<4|bg) color byte at (x,y),
// bypassing the access mask like the rest of debug tooling (spec §4.5's
// DebugWrite semantics) — used by test fixtures, not by CPU execution
// itself (the CPU only ever goes through the bus's ordinary Read/Write).
func (s *Screen) SetCell(x, y int, charcode byte, fg, bg int) {
	off := cellOffset(s.Width, x, y)
	s.BufferDevice.DebugWrite(off, charcode)
	s.BufferDevice.DebugWrite(off+1, byte(fg&0xF)<<4|byte(bg&0xF))
}

// TcellColor resolves a 4-bit palette index to its tcell.Color, clamping
// out-of-range indices to the first entry rather than panicking (a
// malformed color byte should render as something, not crash the
// renderer).
func TcellColor(index int) tcell.Color {
	if index < 0 || index >= len(Palette) {
		return Palette[0]
	}
	return Palette[index]
}
