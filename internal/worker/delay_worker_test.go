package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/internal/infrastructure/redis"
	"github.com/oljc/arcoserve/pkg/logger"
)

type recordingRevocation struct {
	cleaned []int64
}

func (r *recordingRevocation) Blacklist(ctx context.Context, token string)  {}
func (r *recordingRevocation) Track(ctx context.Context, token string)      {}
func (r *recordingRevocation) Untrack(ctx context.Context, token string)    {}
func (r *recordingRevocation) IsValid(ctx context.Context, token string) bool {
	return true
}
func (r *recordingRevocation) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return false, nil
}
func (r *recordingRevocation) RevokeAllForUser(ctx context.Context, userID int64) error {
	return nil
}
func (r *recordingRevocation) ActiveTokenCount(ctx context.Context, userID int64) (int64, error) {
	return 0, nil
}
func (r *recordingRevocation) CleanupExpired(ctx context.Context, userID int64) error {
	r.cleaned = append(r.cleaned, userID)
	return nil
}

func testAtomic(t *testing.T) (service.AtomicStore, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return redis.NewAtomicStoreWithClock(rdb, func() time.Time { return now }), &now
}

func TestSchedulerEnqueuesWithDelay(t *testing.T) {
	atomic, now := testAtomic(t)
	scheduler := NewScheduler(atomic, 15*time.Minute)
	ctx := context.Background()

	require.NoError(t, scheduler.ScheduleUserCleanup(ctx, 42))

	// Not due before the delay elapses.
	items, err := atomic.DelayQueuePop(ctx, CleanupQueueKey, 10)
	require.NoError(t, err)
	assert.Empty(t, items)

	*now = now.Add(16 * time.Minute)
	items, err = atomic.DelayQueuePop(ctx, CleanupQueueKey, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, items)
}

func TestDrainRunsDueCleanups(t *testing.T) {
	atomic, now := testAtomic(t)
	scheduler := NewScheduler(atomic, time.Minute)
	ctx := context.Background()

	require.NoError(t, scheduler.ScheduleUserCleanup(ctx, 42))
	require.NoError(t, scheduler.ScheduleUserCleanup(ctx, 7))

	rev := &recordingRevocation{}
	w := NewWorker(atomic, rev, time.Second, 10, logger.NewNullLogger())

	// Nothing due yet.
	w.drain(ctx)
	assert.Empty(t, rev.cleaned)

	*now = now.Add(2 * time.Minute)
	w.drain(ctx)
	assert.ElementsMatch(t, []int64{42, 7}, rev.cleaned)

	// Tasks are consumed, not redelivered.
	w.drain(ctx)
	assert.Len(t, rev.cleaned, 2)
}

func TestDrainSkipsMalformedItems(t *testing.T) {
	atomic, now := testAtomic(t)
	ctx := context.Background()

	require.NoError(t, atomic.DelayQueueAdd(ctx, CleanupQueueKey, "not-a-user-id", time.Second))
	require.NoError(t, atomic.DelayQueueAdd(ctx, CleanupQueueKey, "42", time.Second))

	rev := &recordingRevocation{}
	w := NewWorker(atomic, rev, time.Second, 10, logger.NewNullLogger())

	*now = now.Add(time.Minute)
	w.drain(ctx)
	assert.Equal(t, []int64{42}, rev.cleaned)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	atomic, _ := testAtomic(t)
	w := NewWorker(atomic, &recordingRevocation{}, 10*time.Millisecond, 10, logger.NewNullLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
