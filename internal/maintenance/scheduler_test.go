package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPurger struct {
	calls atomic.Int32
}

func (p *countingPurger) PurgeExpiredCache() int {
	p.calls.Add(1)
	return 2
}

type optimizerFunc func(ctx context.Context) error

func (f optimizerFunc) Optimize(ctx context.Context) error { return f(ctx) }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewSchedulerRejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	_, err := NewScheduler("every now and then", 0, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every now and then")
}

func TestRunOnceRunsEveryJob(t *testing.T) {
	t.Parallel()

	purger := &countingPurger{}
	failure := errors.New("database is locked")
	var optimized atomic.Bool

	scheduler, err := NewScheduler("@every 1h", time.Second, discardLogger(),
		OptimizeJob(optimizerFunc(func(ctx context.Context) error {
			optimized.Store(true)
			return failure
		})),
		CachePurgeJob(purger, discardLogger()),
	)
	require.NoError(t, err)

	err = scheduler.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	assert.Contains(t, err.Error(), "optimize_storage")
	assert.True(t, optimized.Load())
	assert.Equal(t, int32(1), purger.calls.Load())
}

func TestRunOnceAppliesTimeout(t *testing.T) {
	t.Parallel()

	scheduler, err := NewScheduler("@daily", 10*time.Millisecond, discardLogger(), Job{
		Name: "slow",
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	require.NoError(t, err)

	err = scheduler.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSchedulerRunsOnSchedule(t *testing.T) {
	t.Parallel()

	purger := &countingPurger{}
	scheduler, err := NewScheduler("@every 1s", 0, discardLogger(), CachePurgeJob(purger, discardLogger()))
	require.NoError(t, err)

	scheduler.Start()
	assert.Eventually(t, func() bool { return purger.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(ctx))
}
