package statsrefresh

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeAggregator struct {
	calls atomic.Int64
	err   error
}

func (f *fakeAggregator) RefreshStatusCounts(ctx context.Context) (map[string]int, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return map[string]int{"Livre": 1}, nil
}

func TestRefresher_Run_StopsOnContextCancel(t *testing.T) {
	agg := &fakeAggregator{}
	r := New(agg, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	err := r.Run(ctx)
	require.Error(t, err)
	require.GreaterOrEqual(t, agg.calls.Load(), int64(2))

	st := r.Stats()
	require.GreaterOrEqual(t, st.TotalCycles, int64(2))
	require.Zero(t, st.TotalErrors)
	require.NotNil(t, st.LastCycleAt)
}

func TestRefresher_TriggerForcesCycle(t *testing.T) {
	agg := &fakeAggregator{}
	r := New(agg, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Trigger()
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_ = r.Run(ctx)
	// Startup warm plus the trigger.
	require.GreaterOrEqual(t, agg.calls.Load(), int64(2))
	require.NotNil(t, r.Stats().LastTriggerAt)
}

func TestRefresher_ErrorsAreCountedNotFatal(t *testing.T) {
	agg := &fakeAggregator{err: errors.New("provider down")}
	r := New(agg, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	_ = r.Run(ctx)
	st := r.Stats()
	require.GreaterOrEqual(t, st.TotalErrors, int64(1))
	require.Equal(t, "provider down", st.LastError)
}
