// Command robjdump is the disassembler of spec §6.4/SPEC_FULL.md §3C: a
// best-effort re-decoding of each 16-bit word in a program binary against
// internal/isa's format tables, pretty-printed via pp for debugging the
// resolver's output. Grounded directly on the teacher's
// debug/objdump.go (read the whole file, pp.Println the result).
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/k0kubun/pp/v3"

	"github.com/chominskid/retro16/internal/isa"
)

// Word is one best-effort re-decoding of a 16-bit instruction word.
type Word struct {
	Addr uint64
	Raw  uint16
	Fmt  string
	Desc string
}

func main() {
	raw := flag.Bool("raw", false, "dump with go-spew instead of pp (stable, uncolored, for diffing)")
	flag.Parse()

	var r io.Reader = os.Stdin
	if flag.NArg() == 1 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			log.Fatal(err)
		}
		r = bytes.NewReader(data)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		log.Fatal(err)
	}

	var words []Word
	for addr := 0; addr+1 < len(data); addr += 2 {
		w := uint16(data[addr])<<8 | uint16(data[addr+1])
		words = append(words, decode(uint64(addr), w))
	}

	if *raw {
		fmt.Print(spew.Sdump(words))
		return
	}
	pp.Println(words)
}

// decode re-derives a word's format and a human-readable field dump,
// purely for inspection — it never validates the way internal/cpu does,
// so an illegal encoding still prints its raw fields instead of erroring.
func decode(addr uint64, w uint16) Word {
	f := isa.Fmt(w >> 14 & 0x3)
	switch f {
	case isa.FmtA:
		op := isa.ALUOp(w >> 10 & 0xF)
		x := w >> 4 & 0xF
		y := w & 0xF
		return Word{addr, w, f.String(), fmt.Sprintf("%s %s, %s", op, isa.RegName(int(x)), isa.RegName(int(y)))}
	case isa.FmtIA:
		op := isa.ALUOp(w >> 10 & 0xF)
		ih := byte(w >> 8 & 0x3)
		x := w >> 4 & 0xF
		il := byte(w & 0xF)
		imm := isa.ComposeImm6(ih, il)
		return Word{addr, w, f.String(), fmt.Sprintf("%s %s, #%d", op, isa.RegName(int(x)), imm)}
	case isa.FmtM:
		store := w>>13&0x1 != 0
		mode := isa.MemMode(w >> 10 & 0x7)
		ih := byte(w >> 8 & 0x3)
		x := w >> 4 & 0xF
		il := byte(w & 0xF)
		imm := isa.ComposeImm6(ih, il)
		verb := "ld"
		if store {
			verb = "st"
		}
		return Word{addr, w, f.String(), fmt.Sprintf("%s %s, [%s%+d]", verb, isa.RegName(int(x)), mode, imm)}
	case isa.FmtC:
		save := w>>13&0x1 != 0
		mode := isa.CtrlMode(w >> 10 & 0x7)
		negate := w>>7&0x1 != 0
		cond := isa.Cond(w >> 4 & 0x7)
		ih := byte(w >> 8 & 0x3)
		il := byte(w & 0xF)
		imm := isa.ComposeImm6(ih, il)
		verb := "jmp"
		if save {
			verb = "call"
		}
		neg := ""
		if negate {
			neg = "n"
		}
		return Word{addr, w, f.String(), fmt.Sprintf("%s %s%s, [%s%+d]", verb, neg, cond, mode, imm)}
	default:
		return Word{addr, w, "?", "undefined format"}
	}
}
