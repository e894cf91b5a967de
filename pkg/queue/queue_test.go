package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, visibility time.Duration) (*Queue, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	q := New(rdb, Options{
		Stream:           "jobs",
		Group:            "workers",
		DeadLetterStream: "jobs_dead",
		Visibility:       visibility,
	})
	require.NoError(t, q.EnsureGroup(context.Background()))
	return q, mr, rdb
}

func TestPublishFetchAck(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Minute)
	ctx := context.Background()

	id, err := q.Publish(ctx, []byte(`{"attempt_id":1}`))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msg, err := q.Fetch(ctx, "c1", 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, `{"attempt_id":1}`, string(msg.Payload))
	assert.EqualValues(t, 1, msg.Deliveries)

	require.NoError(t, q.Ack(ctx, msg.ID))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, depth, "确认后消息从 stream 删除")

	again, err := q.Fetch(ctx, "c1", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestFetchEmptyReturnsNil(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Minute)

	msg, err := q.Fetch(context.Background(), "c1", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestEnsureGroupIdempotent(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Minute)

	require.NoError(t, q.EnsureGroup(context.Background()))
	require.NoError(t, q.EnsureGroup(context.Background()))
}

func TestUnackedMessageStaysInStream(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Minute)
	ctx := context.Background()

	_, err := q.Publish(ctx, []byte("payload"))
	require.NoError(t, err)
	msg, err := q.Fetch(ctx, "c1", 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, msg)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth, "未确认的消息保留在 stream 中")
}

func TestRedeliveryAfterVisibility(t *testing.T) {
	q, mr, _ := newTestQueue(t, 200*time.Millisecond)
	ctx := context.Background()

	id, err := q.Publish(ctx, []byte("lease-me"))
	require.NoError(t, err)

	first, err := q.Fetch(ctx, "c1", 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, first)

	// 租约未到期,其他消费者取不到
	early, err := q.Fetch(ctx, "c2", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, early)

	mr.FastForward(250 * time.Millisecond)

	second, err := q.Fetch(ctx, "c2", 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, second, "租约过期后消息可被认领")
	assert.Equal(t, id, second.ID)
	assert.Equal(t, "lease-me", string(second.Payload))
	assert.GreaterOrEqual(t, second.Deliveries, int64(1))
}

func TestDeadLetterMovesMessage(t *testing.T) {
	q, _, rdb := newTestQueue(t, time.Minute)
	ctx := context.Background()

	_, err := q.Publish(ctx, []byte(`{"attempt_id":9}`))
	require.NoError(t, err)
	msg, err := q.Fetch(ctx, "c1", 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, msg)
	msg.Deliveries = 3

	require.NoError(t, q.DeadLetter(ctx, msg, "scoring exhausted"))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, depth, "死信化的消息从主 stream 移除")

	dead, err := rdb.XRange(ctx, "jobs_dead", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, `{"attempt_id":9}`, dead[0].Values["payload"])
	assert.Equal(t, "scoring exhausted", dead[0].Values["reason"])
	assert.Equal(t, "3", dead[0].Values["deliveries"])
	failedAt, ok := dead[0].Values["failed_at"].(string)
	require.True(t, ok)
	_, err = time.Parse(time.RFC3339, failedAt)
	assert.NoError(t, err)
}

func TestDefaultVisibility(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	q := New(rdb, Options{Stream: "s", Group: "g"})
	assert.Equal(t, 5*time.Minute, q.opts.Visibility)

	q = New(rdb, Options{Stream: "s", Group: "g", Visibility: 100 * time.Millisecond})
	assert.Equal(t, 100*time.Millisecond, q.opts.Visibility)
}
