package mslock

import (
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestZeroValueIsUsable(t *testing.T) {
	var l Lock
	l.Acquire(Master)
	assert.Equal(t, 1, l.Masters())
	l.Release(Master)
	assert.Equal(t, 0, l.Masters())
}

func TestSlaveBlocksWhileMasterOutstanding(t *testing.T) {
	var l Lock
	l.Acquire(Master)

	done := make(chan struct{})
	go func() {
		l.Acquire(Slave)
		close(done)
		l.Release(Slave)
	}()

	select {
	case <-done:
		t.Fatal("slave acquired while a master was outstanding")
	case <-time.After(20 * time.Millisecond):
	}

	l.Release(Master)
	<-done
}

func TestReleaseMasterPanicsOnNegativeCount(t *testing.T) {
	var l Lock
	assert.Panics(t, func() { l.Release(Master) })
}

// TestFuzzNoSlaveOverlapsMaster is spec §8 property 7: many errgroup-managed
// goroutines randomly acquire MASTER or SLAVE with randomized hold durations,
// and no SLAVE's critical section may ever overlap a MASTER's.
func TestFuzzNoSlaveOverlapsMaster(t *testing.T) {
	var l Lock
	var activeMasters, activeSlaves, held int32

	const workers = 32
	const roundsPerWorker = 200

	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		seed := int64(w*7919 + 1)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			for r := 0; r < roundsPerWorker; r++ {
				role := Slave
				if rng.Intn(2) == 0 {
					role = Master
				}
				l.Acquire(role)

				if prev := atomic.AddInt32(&held, 1); prev != 1 {
					l.Release(role)
					return assertionFailure("held was not exclusive")
				}
				if role == Master {
					atomic.AddInt32(&activeMasters, 1)
				} else {
					atomic.AddInt32(&activeSlaves, 1)
					if atomic.LoadInt32(&activeMasters) != 0 {
						atomic.AddInt32(&activeSlaves, -1)
						atomic.AddInt32(&held, -1)
						l.Release(role)
						return assertionFailure("slave overlapped an active master")
					}
				}

				time.Sleep(time.Duration(rng.Intn(200)) * time.Microsecond)

				if role == Master {
					atomic.AddInt32(&activeMasters, -1)
				} else {
					atomic.AddInt32(&activeSlaves, -1)
				}
				atomic.AddInt32(&held, -1)
				l.Release(role)
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, 0, l.Masters())
}

type assertionFailure string

func (a assertionFailure) Error() string { return string(a) }
