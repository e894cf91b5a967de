package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoom(t *testing.T, capacity int) *WaitingRoom {
	t.Helper()
	room := NewWaitingRoom(capacity, time.Hour, nil)
	t.Cleanup(room.Stop)
	return room
}

func TestWaitingRoomGrantsUnderCapacity(t *testing.T) {
	room := newRoom(t, 2)
	ctx := context.Background()

	release1, err := room.Acquire(ctx, 1)
	require.NoError(t, err)
	release2, err := room.Acquire(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, room.Active())
	assert.Equal(t, 0, room.Position(1))

	release1()
	assert.Equal(t, 1, room.Active())
	release2()
	assert.Equal(t, 0, room.Active())
}

func TestWaitingRoomFIFOHandOff(t *testing.T) {
	room := newRoom(t, 1)
	ctx := context.Background()

	release, err := room.Acquire(ctx, 1)
	require.NoError(t, err)

	granted := make(chan uint, 2)
	acquireAsync := func(id uint) {
		go func() {
			r, aerr := room.Acquire(ctx, id)
			if aerr == nil {
				granted <- id
				r()
			}
		}()
	}
	acquireAsync(2)
	require.Eventually(t, func() bool { return room.Position(2) == 1 }, time.Second, 5*time.Millisecond)
	acquireAsync(3)
	require.Eventually(t, func() bool { return room.Position(3) == 2 }, time.Second, 5*time.Millisecond)

	// 释放后槽位按先来后到转交
	release()
	assert.Equal(t, uint(2), recvID(t, granted))
	assert.Equal(t, uint(3), recvID(t, granted))

	require.Eventually(t, func() bool { return room.Active() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWaitingRoomAbandonOnContextCancel(t *testing.T) {
	room := newRoom(t, 1)

	release, err := room.Acquire(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, aerr := room.Acquire(ctx, 2)
		errCh <- aerr
	}()
	require.Eventually(t, func() bool { return room.Position(2) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case aerr := <-errCh:
		assert.ErrorIs(t, aerr, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("acquire did not observe cancellation")
	}
	assert.Equal(t, 0, room.Position(2), "离场后出队")

	release()
	assert.Equal(t, 0, room.Active())
}

func TestWaitingRoomReleaseIdempotent(t *testing.T) {
	room := newRoom(t, 1)

	release, err := room.Acquire(context.Background(), 1)
	require.NoError(t, err)
	release()
	release()
	assert.Equal(t, 0, room.Active(), "重复释放不产生负计数")
}

func TestWaitingRoomMirrorsPositionToRedis(t *testing.T) {
	mr, client := newTestRedis(t)
	room := NewWaitingRoom(1, 50*time.Millisecond, client)
	t.Cleanup(room.Stop)
	ctx := context.Background()

	release, err := room.Acquire(ctx, 1)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if r, aerr := room.Acquire(ctx, 2); aerr == nil {
			r()
		}
		close(done)
	}()
	require.Eventually(t, func() bool { return mr.Exists("waiting_pos:2") }, time.Second, 5*time.Millisecond)

	pos, err := mr.Get("waiting_pos:2")
	require.NoError(t, err)
	assert.Equal(t, "1", pos)
	ttl := mr.TTL("waiting_pos:2")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 150*time.Millisecond)

	// 放行后镜像键清除;推送协程的迟到写入靠TTL衰减兜底
	release()
	<-done
	require.Eventually(t, func() bool {
		mr.FastForward(200 * time.Millisecond)
		return !mr.Exists("waiting_pos:2")
	}, time.Second, 20*time.Millisecond)
}

func recvID(t *testing.T, ch chan uint) uint {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(time.Second):
		t.Fatal("no hand-off within deadline")
		return 0
	}
}
