package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFireDeliversArmedGeneration(t *testing.T) {
	var tm Timer
	fired := make(chan int, 1)

	gen := tm.Arm(10*time.Millisecond, func(g int) { fired <- g })
	select {
	case g := <-fired:
		require.Equal(t, gen, g)
		require.True(t, tm.Live(g))
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestDisarmPreventsFire(t *testing.T) {
	var tm Timer
	fired := make(chan int, 1)

	tm.Arm(20*time.Millisecond, func(g int) { fired <- g })
	tm.Disarm()
	require.False(t, tm.Armed())

	select {
	case <-fired:
		t.Fatal("disarmed timer fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestRearmInvalidatesOldGeneration(t *testing.T) {
	var tm Timer
	fired := make(chan int, 2)

	old := tm.Arm(5*time.Millisecond, func(g int) { fired <- g })
	fresh := tm.Arm(5*time.Millisecond, func(g int) { fired <- g })
	require.NotEqual(t, old, fresh)

	// The old callback may still run if it was already in flight, but
	// its generation no longer passes the liveness check.
	deadline := time.After(time.Second)
	for {
		select {
		case g := <-fired:
			if g == fresh {
				require.True(t, tm.Live(fresh))
				require.False(t, tm.Live(old))
				return
			}
			require.False(t, tm.Live(g))
		case <-deadline:
			t.Fatal("rearmed timer never fired")
		}
	}
}

func TestZeroValueIsDisarmed(t *testing.T) {
	var tm Timer
	require.False(t, tm.Armed())
	require.False(t, tm.Live(0))
	tm.Disarm() // no-op on the zero value
}
