// Command remu is the headless emulator driver of spec §6.4: it builds the
// memory map (boot ROM + RAM + screen, per §6.3/internal/config), loads a
// program binary, resets a CPU over that bus, steps it, and prints the
// screen to stdout. Argument parsing, file I/O, and screen rendering are
// the permitted "external collaborator" surface (spec §1); the pipelined
// datapath itself lives entirely in internal/cpu. Grounded on the
// teacher's top-level simulator.go driver loop, generalized from its
// single-goroutine GetOp/Exec state machine to the executor/inspector
// errgroup split of SPEC_FULL.md §3A/§5.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/chominskid/retro16/internal/config"
	"github.com/chominskid/retro16/internal/cpu"
	"github.com/chominskid/retro16/internal/encode"
	"github.com/chominskid/retro16/internal/isa"
	"github.com/chominskid/retro16/internal/memory"
	"github.com/chominskid/retro16/internal/screen"
	"github.com/chominskid/retro16/internal/token"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	// The positional program.bin argument leads, per spec §6.4's usage
	// string; flag.Parse stops at the first non-flag token, so it's pulled
	// off separately instead of trailing the flag set.
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintln(stderr, "remu: program.bin argument is required")
		return 22
	}
	programPath := args[0]

	fs := flag.NewFlagSet("remu", flag.ContinueOnError)
	var romPath, configPath string
	var stepLimit int
	var color, trace bool
	fs.StringVar(&romPath, "rom", "", "boot ROM path (.bin or .hex)")
	fs.StringVar(&configPath, "config", "", "TOML memory-map config path")
	fs.IntVar(&stepLimit, "step-limit", 0, "override the configured step limit")
	fs.BoolVar(&color, "color", false, "force ANSI-colorized screen dump")
	fs.BoolVar(&trace, "trace", false, "print one line per cycle")
	var inspectMS int
	fs.IntVar(&inspectMS, "inspect-ms", 0, "run a periodic MASTER-role inspector every N ms, snapshotting screen state to stderr (0 disables)")
	fs.SetOutput(stderr)
	if err := fs.Parse(args[1:]); err != nil {
		return 22
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "remu: unexpected trailing arguments:", fs.Args())
		return 22
	}

	layout, err := resolveLayout(configPath)
	if err != nil {
		fmt.Fprintln(stderr, "remu:", err)
		return 1
	}
	if stepLimit > 0 {
		layout.StepLimit = stepLimit
	}

	rom, err := loadROM(romPath, layout.ROMSize)
	if err != nil {
		fmt.Fprintln(stderr, "remu:", err)
		return 1
	}
	program, err := os.ReadFile(programPath)
	if err != nil {
		fmt.Fprintln(stderr, "remu:", err)
		return 1
	}

	bus, scr, err := buildBus(layout, rom, program)
	if err != nil {
		fmt.Fprintln(stderr, "remu:", err)
		return 1
	}

	c := cpu.New(bus)

	useColor := color || term.IsTerminal(int(stdout.Fd()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// cancel unblocks the inspector's select loop once execution finishes,
		// whatever the outcome (step-limit exhaustion, halt, or error): without
		// it, an inspector with no other exit signal would never return and
		// g.Wait below would block forever.
		defer cancel()
		return executor(ctx, c, layout, trace, stderr)
	})
	if inspectMS > 0 {
		g.Go(func() error {
			return inspector(ctx, scr, time.Duration(inspectMS)*time.Millisecond, stderr)
		})
	}
	if err := g.Wait(); err != nil && c.HaltError() == nil {
		fmt.Fprintln(stderr, "remu:", err)
		return 1
	}

	dumpScreen(stdout, scr, useColor)
	if c.Halted() {
		fmt.Fprintln(stderr, "remu: halted:", c.HaltError())
	}
	return 0
}

// executor runs c in bounded bursts of layout.BurstSize steps, sleeping
// layout.BurstSleepMS between bursts so the --inspect-ms inspector goroutine
// (when running) gets a real chance to acquire the screen device as MASTER
// between bursts, per spec §5's "bounded burst" / "sleep between bursts to
// pace" knobs.
func executor(ctx context.Context, c *cpu.CPU, layout config.Layout, trace bool, stderr *os.File) error {
	sleep := time.Duration(layout.BurstSleepMS) * time.Millisecond
	for i := 0; i < layout.StepLimit; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if c.Halted() {
			return nil
		}
		if err := c.Step(); err != nil {
			if trace {
				fmt.Fprintf(stderr, "cycle %d: halt: %v\n", i, err)
			}
			return nil
		}
		if trace {
			fmt.Fprintf(stderr, "cycle %d: pc=0x%04x access=%s\n", i, c.PC, c.LastAccess())
		}
		if sleep > 0 && i%layout.BurstSize == layout.BurstSize-1 {
			time.Sleep(sleep)
		}
	}
	return nil
}

// inspector is the MASTER-role goroutine of spec §3A/Glossary ("Inspector: a
// MASTER-role goroutine ... that freezes execution for a consistent
// snapshot"): on each tick it acquires scr's underlying BufferDevice as
// MASTER via Snapshot, which blocks out every SLAVE-role CPU bus access for
// the duration of the copy, then prints a one-line summary of the frozen
// state. It runs concurrently with executor (a SLAVE-role accessor on every
// CPU step) under the same errgroup, and returns once ctx is canceled.
func inspector(ctx context.Context, scr *screen.Screen, interval time.Duration, stderr *os.File) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := scr.Snapshot()
			fmt.Fprintf(stderr, "inspect: screen snapshot, %d bytes, checksum=0x%04x\n", len(snap), checksum(snap))
		}
	}
}

// checksum is a cheap consistency signal for an inspector dump: a snapshot
// read while the executor was mid-write would still be internally
// consistent (Snapshot holds MASTER for the whole copy), but varies run to
// run, which is enough to show a human the inspector is actually observing
// live state rather than a frozen first read.
func checksum(b []byte) uint16 {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}
	return sum
}

func resolveLayout(configPath string) (config.Layout, error) {
	if configPath == "" {
		return config.Config{}.Resolve()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Layout{}, err
	}
	return cfg.Resolve()
}

// loadROM returns romPath's contents padded/truncated to size, or the
// built-in default ROM when romPath is empty. ".hex" files are parsed as
// big-endian hex text via internal/memory.LoadHexText, which already emits
// bytes in the big-endian order the CPU's FETCH stage expects (spec §4.6:
// "reads two bytes at PC in big-endian order") — no further byte-swap is
// applied. Anything else is read and copied verbatim as a raw binary image,
// per spec §6.4's default ROM behavior and SPEC_FULL.md §3C's hex-text
// variant.
func loadROM(romPath string, size uint64) ([]byte, error) {
	var raw []byte
	switch {
	case romPath == "":
		raw = defaultBootROM()
	case strings.EqualFold(filepath.Ext(romPath), ".hex"):
		f, err := os.Open(romPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		words, err := memory.LoadHexText(f)
		if err != nil {
			return nil, err
		}
		raw = words
	default:
		data, err := os.ReadFile(romPath)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	out := make([]byte, size)
	copy(out, raw)
	return out, nil
}

func buildBus(layout config.Layout, rom, program []byte) (memory.Device, *screen.Screen, error) {
	bus := memory.NewInterface()

	romDev := memory.NewBuffer(layout.ROMSize, memory.ReadOnly)
	for i, b := range rom {
		romDev.DebugWrite(uint64(i), b)
	}
	if err := bus.Register(layout.ROMBase, romDev); err != nil {
		return nil, nil, err
	}

	ramDev := memory.NewBuffer(layout.RAMSize, memory.ReadWrite)
	progOffset := layout.ProgramBase - layout.RAMBase
	for i, b := range program {
		ramDev.DebugWrite(progOffset+uint64(i), b)
	}
	if err := bus.Register(layout.RAMBase, ramDev); err != nil {
		return nil, nil, err
	}

	scr := screen.New(layout.ScreenWidth, layout.ScreenHeight)
	if err := bus.Register(layout.ScreenBase, scr); err != nil {
		return nil, nil, err
	}

	return bus, scr, nil
}

// dumpScreen prints the framebuffer as a plain or ANSI-colorized character
// grid, per spec §6.4; colors go through screen.Palette as 24-bit escapes. This is the one rendering surface spec §1 allows as
// an external collaborator.
func dumpScreen(w *os.File, scr *screen.Screen, useColor bool) {
	var b strings.Builder
	for y := 0; y < scr.Height; y++ {
		for x := 0; x < scr.Width; x++ {
			ch, fg, bg := scr.Cell(x, y)
			if ch == 0 {
				ch = ' '
			}
			if useColor {
				fr, fgr, fb := screen.TcellColor(fg).RGB()
				br, bgg, bb := screen.TcellColor(bg).RGB()
				fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm%c", fr, fgr, fb, br, bgg, bb, ch)
			} else {
				b.WriteByte(ch)
			}
		}
		if useColor {
			b.WriteString("\x1b[0m")
		}
		b.WriteByte('\n')
	}
	fmt.Fprint(w, b.String())
}

// defaultBootROM is the built-in default boot program (spec §6.4): load GE
// with the default program base and jump there unconditionally, assembled
// directly through internal/encode (the same primitives internal/catalog
// wires to the `mov ge,imm` / `jmp alw,ge` mnemonics) rather than shipped
// as a byte blob, so the stub and the assembler can never drift apart.
func defaultBootROM() []byte {
	geImm := []token.Token{token.WReg(0, isa.WRegGE), token.Int(0, int64(config.DefaultProgramBase), 16, false)}
	loadGE, err := encode.MovWRegImm().Fn(0, geImm)
	if err != nil {
		panic(err)
	}

	jmpArgs := []token.Token{token.Condition(0, isa.CondALW, false), token.WReg(0, isa.WRegGE)}
	jmpGE, err := encode.CtrlReg(false, func(isa.WReg) isa.CtrlMode { return isa.CtrlGE }).Fn(0, jmpArgs)
	if err != nil {
		panic(err)
	}

	return append(loadGE, jmpGE...)
}
