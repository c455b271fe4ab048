package limiter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerIncDec(t *testing.T) {
	tr := New("inodes", 10)
	require.NoError(t, tr.Inc(4))
	require.NoError(t, tr.Inc(6))
	err := tr.Inc(1)
	require.Error(t, err)
	var ee *ExceededError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "inodes", ee.Name)
	require.Equal(t, int64(10), ee.Current)
	require.Equal(t, int64(1), ee.Requested)

	tr.Dec(3)
	require.Equal(t, int64(7), tr.Current())
	require.NoError(t, tr.Inc(3))
}

func TestTrackerDecNeverNegative(t *testing.T) {
	tr := New("x", 0)
	tr.Dec(5)
	require.Equal(t, int64(0), tr.Current())
}

func TestTrackerConcurrentInc(t *testing.T) {
	tr := New("concurrent", 1000)
	var wg sync.WaitGroup
	var oks int32
	for i := 0; i < 2000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tr.Inc(1); err == nil {
				oks++
			}
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, tr.Current(), int64(1000))
}

func TestGreedyPoolCeiling(t *testing.T) {
	p := &GreedyPool{Ceiling: 100}
	require.NoError(t, p.Grow(60))
	require.Error(t, p.Grow(60))
	p.Shrink(30)
	require.NoError(t, p.Grow(60))
}

func TestUnboundedPoolNeverFails(t *testing.T) {
	p := &UnboundedPool{}
	require.NoError(t, p.Grow(1<<40))
}

func TestMemoryResourceLimits(t *testing.T) {
	m := NewMemory(&UnboundedPool{}, ResourceLimits{NInstances: 1})
	require.NoError(t, m.NewInstance())
	require.Error(t, m.NewInstance())
	m.DropInstance()
	require.NoError(t, m.NewInstance())
}
