// Package mslock implements the MASTER/SLAVE coordination primitive of spec
// §5 and §9: an inverted-priority lock where inspectors (MASTER) can freeze
// execution (SLAVE) for consistent snapshots without starving normal
// execution throughput. No analogue exists in the teacher beyond
// VirtualMachine/terminal.go's plain sync.RWMutex-guarded ring buffer — a
// plain RWMutex can't express "an outstanding MASTER claim blocks new
// SLAVEs, while every holder of either role still excludes every other",
// so this is new code generalized from that mutex-guarded-state
// shape, built from sync.Mutex/sync.Cond per spec §9's "a custom
// implementation is fine; document the semantics and fuzz-test the
// priority property."
package mslock

import "sync"

// Role distinguishes the two acquisition modes.
type Role int

const (
	Slave Role = iota
	Master
)

// Lock is the MASTER/SLAVE gate described in spec §5:
//   - Any number of MASTERs can be outstanding before they all release;
//     while any MASTER holds a claim, no SLAVE may acquire.
//   - SLAVE acquisition: wait until the outstanding-MASTER count is zero,
//     then contend for the mutual-exclusion flag.
//   - MASTER acquisition: bump the count, then contend for the flag.
//   - Release is symmetric; the last-departing MASTER wakes waiting SLAVEs.
//
// The zero value is a ready-to-use, unlocked Lock.
type Lock struct {
	mu         sync.Mutex
	cond       *sync.Cond
	masters    int  // outstanding MASTER claims (bumped before the exclusion flag is contended)
	held       bool // the single mutual-exclusion flag, shared by both roles
}

func (l *Lock) init() {
	if l.cond == nil {
		l.cond = sync.NewCond(&l.mu)
	}
}

// Acquire blocks until role may proceed, per the semantics above.
func (l *Lock) Acquire(role Role) {
	l.mu.Lock()
	l.init()
	if role == Master {
		l.masters++
	} else {
		for l.masters > 0 {
			l.cond.Wait()
		}
	}
	for l.held {
		l.cond.Wait()
	}
	l.held = true
	l.mu.Unlock()
}

// Release ends the critical section started by the matching Acquire(role).
func (l *Lock) Release(role Role) {
	l.mu.Lock()
	l.init()
	l.held = false
	if role == Master {
		l.masters--
		if l.masters < 0 {
			panic("mslock: MASTER count went negative")
		}
	}
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Masters reports the number of outstanding MASTER claims, for tests and
// diagnostics.
func (l *Lock) Masters() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.masters
}
