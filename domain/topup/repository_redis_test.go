package topup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepository(t *testing.T) (*redisRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := NewRedisRepository(client).(*redisRepository)
	r.now = clock
	return r, mr
}

// TestRedisRepository_RoundTrip verifies a record survives the JSON encoding and carries a TTL.
func TestRedisRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	r, mr := newRedisRepository(t)
	ctx := context.Background()

	want := pendingRecord("req-1")
	require.NoError(t, r.Create(ctx, want))

	got, err := r.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, want.CorrelationID, got.CorrelationID)
	assert.Equal(t, want.PhoneNumber, got.PhoneNumber)
	assert.True(t, want.Amount.Equal(got.Amount))
	assert.Equal(t, StatusPending, got.Status)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	assert.Equal(t, 24*time.Hour, mr.TTL("topup:req-1"))
}

// TestRedisRepository_CreateDuplicate verifies SETNX refuses a second create.
func TestRedisRepository_CreateDuplicate(t *testing.T) {
	t.Parallel()

	r, _ := newRedisRepository(t)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, pendingRecord("req-1")))
	require.ErrorIs(t, r.Create(ctx, pendingRecord("req-1")), ErrAlreadyExists)
}

// TestRedisRepository_CompareAndSwap verifies status guards and the resolved TTL.
func TestRedisRepository_CompareAndSwap(t *testing.T) {
	t.Parallel()

	r, mr := newRedisRepository(t)
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, pendingRecord("req-1")))

	declined := withStatus(pendingRecord("req-1"), StatusDeclined)
	declined.DeclineReason = "recent swap"
	declined.ExpiresAt = testRetention.ExpiresAt(StatusDeclined, fixedNow)
	require.NoError(t, r.CompareAndSwap(ctx, "req-1", StatusPending, declined))

	err := r.CompareAndSwap(ctx, "req-1", StatusPending, withStatus(pendingRecord("req-1"), StatusDisbursing))
	require.ErrorIs(t, err, ErrStatusConflict)

	got, err := r.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, got.Status)
	assert.Equal(t, "recent swap", got.DeclineReason)
	assert.Equal(t, 72*time.Hour, mr.TTL("topup:req-1"))
}

// TestRedisRepository_Missing verifies unknown and expired ids are ErrNotFound.
func TestRedisRepository_Missing(t *testing.T) {
	t.Parallel()

	r, mr := newRedisRepository(t)
	ctx := context.Background()

	_, err := r.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Create(ctx, pendingRecord("req-1")))
	mr.FastForward(25 * time.Hour)

	_, err = r.Get(ctx, "req-1")
	require.ErrorIs(t, err, ErrNotFound)

	err = r.CompareAndSwap(ctx, "req-1", StatusPending, withStatus(pendingRecord("req-1"), StatusDeclined))
	require.ErrorIs(t, err, ErrNotFound)
}

// TestRedisRepository_ConcurrentCompareAndSwap verifies WATCH lets only one racing swap through.
func TestRedisRepository_ConcurrentCompareAndSwap(t *testing.T) {
	t.Parallel()

	r, _ := newRedisRepository(t)
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, pendingRecord("req-1")))

	var (
		wg   sync.WaitGroup
		wins int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.CompareAndSwap(ctx, "req-1", StatusPending, withStatus(pendingRecord("req-1"), StatusDisbursing)); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

// rewriteBeforeExec touches key from another connection before every
// MULTI/EXEC, so each WATCH sees a concurrent write.
type rewriteBeforeExec struct {
	other *redis.Client
	key   string
}

func (h rewriteBeforeExec) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h rewriteBeforeExec) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h rewriteBeforeExec) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		raw := h.other.Get(ctx, h.key).Val()
		h.other.Set(ctx, h.key, raw, time.Hour)
		return next(ctx, cmds)
	}
}

// TestRedisRepository_WatchExhausted verifies contention that never settles is
// reported as a retryable store error, not as a status conflict.
func TestRedisRepository_WatchExhausted(t *testing.T) {
	t.Parallel()

	r, mr := newRedisRepository(t)
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, pendingRecord("req-1")))

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = other.Close() })
	r.client.AddHook(rewriteBeforeExec{other: other, key: "topup:req-1"})

	err := r.CompareAndSwap(ctx, "req-1", StatusPending, withStatus(pendingRecord("req-1"), StatusDisbursing))
	require.ErrorIs(t, err, ErrStoreBusy)
	assert.ErrorIs(t, err, redis.TxFailedErr)
	assert.NotErrorIs(t, err, ErrStatusConflict)

	got, err := r.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}
