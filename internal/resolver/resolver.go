// Package resolver implements the address/encoding fixpoint of spec §4.4:
// the two-pass (pre-pass + iterative relaxation) algorithm that assigns
// addresses, selects an encoder per Placeholder, and emits the final byte
// image. This generalizes the teacher's two-phase
// FirstPass/SecondPass shape (shared/assembler/assembler.go) from "emit
// words immediately, patch undefined symbols once at the end" to genuine
// iterative relaxation, since this ISA's instruction sizes can depend on
// label addresses that in turn depend on instruction sizes.
package resolver

import (
	"errors"
	"fmt"

	"github.com/chominskid/retro16/internal/asmerr"
	"github.com/chominskid/retro16/internal/program"
	"github.com/chominskid/retro16/internal/token"
)

// Tracer receives human-readable progress lines during the iterative pass,
// for `cmd/rasm -v`'s pp-rendered trace (SPEC_FULL.md §3A). A nil Tracer
// disables tracing.
type Tracer func(format string, args ...any)

// Resolve runs the pre-pass and iterative relaxation pass over prog and
// returns the emitted byte image, per spec §4.4.
func Resolve(prog *program.Program, trace Tracer) ([]byte, error) {
	if trace == nil {
		trace = func(string, ...any) {}
	}
	if err := prePass(prog, trace); err != nil {
		return nil, err
	}
	if err := iterate(prog, trace); err != nil {
		return nil, err
	}
	return emit(prog), nil
}

// prePass pre-encodes every independent Placeholder, per spec §4.4: "encoders
// are tried in order; the first success becomes last_output and the
// Placeholder is marked final. If all encoders fail, assembly aborts with
// the accumulated per-encoder diagnostics." Independent instructions never
// reference a label's address, so site 0 is as good as any address here —
// the real tentative_address is assigned by the first layout sweep.
func prePass(prog *program.Program, trace Tracer) error {
	for i, p := range prog.Placeholders {
		if !p.Inst.Independent {
			continue
		}
		ok := false
		for idx, enc := range p.Inst.Encoders {
			out, err := enc.Fn(0, p.Args)
			if err == nil {
				p.EncIdx = idx
				p.LastOutput = out
				p.Final = true
				ok = true
				trace("pre-pass: placeholder %d (%s) -> %d bytes via encoder %d", i, p.Inst.Signature, len(out), idx)
				break
			}
			p.Errs.Add(err)
		}
		if !ok {
			return fmt.Errorf("placeholder %d (%s): all encoders failed: %w", i, p.Inst.Signature, errors.Join(p.Errs.Errs...))
		}
	}
	return nil
}

// maxPasses bounds the iterative pass per spec §4.4's termination argument:
// "the total encoder index sum ... is bounded ... therefore the resolver
// terminates in at most Σ|encoders_i| passes." The limit is that sum plus
// one, for the extra pass sameAddrs needs to confirm a layout. This closes
// the "no progress counter" bug flagged in spec §9/DESIGN.md Open Question #3.
func maxPasses(prog *program.Program) int {
	total := 1
	for _, p := range prog.Placeholders {
		total += len(p.Inst.Encoders)
	}
	return total
}

// iterate drives the relaxation loop. A pass is the fixpoint only when
// every non-final Placeholder encodes successfully AND the addresses it
// used are the same ones the next pass's layout sweep would produce (spec
// §4.4: "their current last_output is correct under the current tentative
// addresses, which are equal to the next pass's addresses"). Checking only
// "every encode succeeded" isn't enough on its own: a variable-size
// encoder's first successful attempt can still have used a stale size
// guess for everything laid out after it, so the next pass's addresses
// would differ even though this pass's encode calls all returned cleanly.
func iterate(prog *program.Program, trace Tracer) error {
	if allFinal(prog) {
		return nil
	}
	limit := maxPasses(prog)
	var prevAddrs []uint64
	for pass := 0; pass < limit; pass++ {
		addrs, allOK, err := runPass(prog, trace, pass)
		if err != nil {
			return err
		}
		if allOK && sameAddrs(prevAddrs, addrs) {
			for _, p := range prog.Placeholders {
				p.Final = true
			}
			return nil
		}
		prevAddrs = addrs
	}
	return asmerr.New("resolver did not converge after %d passes", limit)
}

func allFinal(prog *program.Program) bool {
	for _, p := range prog.Placeholders {
		if !p.Final {
			return false
		}
	}
	return true
}

func sameAddrs(a, b []uint64) bool {
	if a == nil || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// runPass performs one full layout-sweep + label-update + encode-attempt
// cycle over every non-final Placeholder, per spec §4.4 steps 1-3. It
// returns the addresses this pass assigned and whether every non-final
// Placeholder encoded successfully.
func runPass(prog *program.Program, trace Tracer, pass int) ([]uint64, bool, error) {
	// Step 1: layout sweep.
	addrs := make([]uint64, len(prog.Placeholders))
	var addr uint64
	for i, p := range prog.Placeholders {
		p.TentativeAddr = addr
		addrs[i] = addr
		addr += uint64(p.Size())
	}
	finalAddr := addr

	// Step 2: label update.
	for i, p := range prog.Placeholders {
		if p.Final {
			continue
		}
		for ai := range p.Args {
			if p.Args[ai].Kind != token.KindLabelRef {
				continue
			}
			t, ok := prog.Labels[p.Args[ai].Name]
			if !ok {
				return nil, false, asmerr.New("placeholder %d: unknown label %q", i, p.Args[ai].Name)
			}
			if t == len(prog.Placeholders) {
				p.Args[ai].Addr = finalAddr
			} else if t >= 0 && t < len(prog.Placeholders) {
				p.Args[ai].Addr = prog.Placeholders[t].TentativeAddr
			} else {
				return nil, false, asmerr.New("placeholder %d: label %q index %d out of range", i, p.Args[ai].Name, t)
			}
		}
	}

	// Step 3: encode attempt.
	allOK := true
	for i, p := range prog.Placeholders {
		if p.Final {
			continue
		}
		enc := p.Inst.Encoders[p.EncIdx]
		out, err := enc.Fn(p.TentativeAddr, p.Args)
		if err == nil {
			p.LastOutput = out
			trace("pass %d: placeholder %d (%s) converged -> %d bytes", pass, i, p.Inst.Signature, len(out))
			continue
		}
		allOK = false
		p.Errs.Add(err)
		p.EncIdx++
		if p.EncIdx >= len(p.Inst.Encoders) {
			return nil, false, fmt.Errorf("placeholder %d (%s): all encoders exhausted: %w", i, p.Inst.Signature, errors.Join(p.Errs.Errs...))
		}
	}
	return addrs, allOK, nil
}

// emit allocates the output buffer and copies each Placeholder's committed
// bytes to its tentative address, per spec §4.4 "Emission". Gaps (there
// shouldn't be any, since the layout sweep is contiguous) remain zero.
func emit(prog *program.Program) []byte {
	var size uint64
	for _, p := range prog.Placeholders {
		end := p.TentativeAddr + uint64(len(p.LastOutput))
		if end > size {
			size = end
		}
	}
	out := make([]byte, size)
	for _, p := range prog.Placeholders {
		copy(out[p.TentativeAddr:], p.LastOutput)
	}
	return out
}
