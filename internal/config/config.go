// Package config loads cmd/remu's TOML configuration and computes the
// memory map it describes, per spec §6.3 and SPEC_FULL.md §3B. Grounded on
// ezrec-ucapp's BurntSushi/toml decode-into-struct style (DESIGN.md);
// dubcc has no configuration file at all — it hardcodes its memory map.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/chominskid/retro16/internal/screen"
)

// Defaults match spec §6.3's default memory map: a 256-byte boot ROM at
// 0x0000, RAM filling the gap up to the screen, and an 80x25 screen
// occupying the top of address space.
const (
	DefaultROMBase      = 0x0000
	DefaultROMSize      = 0x0100
	DefaultRAMBase      = 0x0100
	DefaultScreenW      = 80
	DefaultScreenH      = 25
	DefaultProgramBase  = 0x0300
	DefaultStepLimit    = 10000
	AddressSpaceSize    = 0x10000
	DefaultBurstSize    = 256
	DefaultBurstSleepMS = 0
)

// Config is the decoded TOML document. Every field has a zero value that
// Resolve treats as "use the default", so an empty or partial config file
// is valid input.
type Config struct {
	ScreenWidth  int `toml:"screen_width"`
	ScreenHeight int `toml:"screen_height"`
	ROMSize      int `toml:"rom_size"`
	ProgramBase  int `toml:"program_base"`
	StepLimit    int `toml:"step_limit"`
	// BurstSize and BurstSleepMS are the §5 "bounded burst" and "sleep
	// between bursts to pace" knobs: the executor runs BurstSize CPU steps
	// then sleeps BurstSleepMS milliseconds before its next burst.
	BurstSize    int `toml:"burst_size"`
	BurstSleepMS int `toml:"burst_sleep_ms"`
}

// Layout is the computed, fully-resolved memory map a Config describes.
type Layout struct {
	ROMBase      uint64
	ROMSize      uint64
	RAMBase      uint64
	RAMSize      uint64
	ScreenBase   uint64
	ScreenSize   uint64
	ScreenWidth  int
	ScreenHeight int
	ProgramBase  uint64
	StepLimit    int
	BurstSize    int
	BurstSleepMS int
}

// Load decodes a TOML config file at path. A file that cannot be read
// (including a missing one) and malformed TOML are both reported as errors.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve fills in defaults for every zero-valued field and computes the
// derived Layout (screen size via internal/screen.Size, RAM filling the gap
// between ROM and screen), per spec §6.3: "0x0000..0x00FF boot ROM,
// 0x0100..0xFFFF-screen_size main RAM, 0x10000-screen_size..0xFFFF screen".
func (c Config) Resolve() (Layout, error) {
	width := c.ScreenWidth
	if width == 0 {
		width = DefaultScreenW
	}
	height := c.ScreenHeight
	if height == 0 {
		height = DefaultScreenH
	}
	romSize := uint64(c.ROMSize)
	if romSize == 0 {
		romSize = DefaultROMSize
	}
	programBase := uint64(c.ProgramBase)
	if programBase == 0 {
		programBase = DefaultProgramBase
	}
	stepLimit := c.StepLimit
	if stepLimit == 0 {
		stepLimit = DefaultStepLimit
	}
	burstSize := c.BurstSize
	if burstSize == 0 {
		burstSize = DefaultBurstSize
	}

	screenSize := screen.Size(width, height)
	if romSize+screenSize > AddressSpaceSize {
		return Layout{}, fmt.Errorf("config: rom_size (%d) + screen size (%d) exceeds address space", romSize, screenSize)
	}
	screenBase := uint64(AddressSpaceSize) - screenSize
	ramBase := romSize
	ramSize := screenBase - ramBase
	if programBase < ramBase || programBase >= screenBase {
		return Layout{}, fmt.Errorf("config: program_base 0x%04x falls outside RAM [0x%04x,0x%04x)", programBase, ramBase, screenBase)
	}

	return Layout{
		ROMBase:      DefaultROMBase,
		ROMSize:      romSize,
		RAMBase:      ramBase,
		RAMSize:      ramSize,
		ScreenBase:   screenBase,
		ScreenSize:   screenSize,
		ScreenWidth:  width,
		ScreenHeight: height,
		ProgramBase:  programBase,
		StepLimit:    stepLimit,
		BurstSize:    burstSize,
		BurstSleepMS: c.BurstSleepMS,
	}, nil
}
