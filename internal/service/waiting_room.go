package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oral_eval_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
)

const waitingPosPrefix = "waiting_pos:"

type waiter struct {
	attemptID uint
	ready     chan struct{}
}

// WaitingRoom 有限槽位的FIFO等候室
// 并发会话占满配额后,新会话按先来后到排队;队内位置按固定间隔
// 镜像到redis,状态接口据此向考生推送排队进度
type WaitingRoom struct {
	mu       sync.Mutex
	capacity int
	active   int
	queue    []*waiter

	rdb       *redis.Client
	pushEvery time.Duration
	stop      chan struct{}
	once      sync.Once
}

func NewWaitingRoom(capacity int, pushEvery time.Duration, rdb *redis.Client) *WaitingRoom {
	if capacity < 1 {
		capacity = 1
	}
	w := &WaitingRoom{
		capacity:  capacity,
		rdb:       rdb,
		pushEvery: pushEvery,
		stop:      make(chan struct{}),
	}
	go w.pushLoop()
	return w
}

// Acquire 占用一个会话槽,满员时排队直到被放行或ctx结束
// 成功时返回释放函数,调用方必须在会话结束后调用
func (w *WaitingRoom) Acquire(ctx context.Context, attemptID uint) (func(), error) {
	w.mu.Lock()
	if w.active < w.capacity {
		w.active++
		monitoring.ActiveSessions.Set(float64(w.active))
		w.mu.Unlock()
		return w.releaseOnce(), nil
	}

	wt := &waiter{attemptID: attemptID, ready: make(chan struct{})}
	w.queue = append(w.queue, wt)
	pos := len(w.queue)
	monitoring.WaitingSessions.Set(float64(len(w.queue)))
	w.mu.Unlock()

	w.writePosition(attemptID, pos)

	select {
	case <-wt.ready:
		// 放行时槽位已直接转交,不再竞争
		w.clearPosition(attemptID)
		return w.releaseOnce(), nil
	case <-ctx.Done():
		w.abandon(wt)
		w.clearPosition(attemptID)
		return nil, ctx.Err()
	}
}

// Position 返回排队位置(1起),未在队中返回0
func (w *WaitingRoom) Position(attemptID uint) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, wt := range w.queue {
		if wt.attemptID == attemptID {
			return i + 1
		}
	}
	return 0
}

// Active 当前占用的会话槽数
func (w *WaitingRoom) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *WaitingRoom) Stop() {
	w.once.Do(func() { close(w.stop) })
}

// releaseOnce 返回幂等的槽位释放函数
// 队列非空时槽位直接转交队首,active计数保持不变
func (w *WaitingRoom) releaseOnce() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			if len(w.queue) > 0 {
				head := w.queue[0]
				w.queue = w.queue[1:]
				monitoring.WaitingSessions.Set(float64(len(w.queue)))
				close(head.ready)
			} else {
				w.active--
				monitoring.ActiveSessions.Set(float64(w.active))
			}
			w.mu.Unlock()
		})
	}
}

// abandon 排队方超时离场,若恰好已被放行则把槽位继续传下去
func (w *WaitingRoom) abandon(wt *waiter) {
	w.mu.Lock()
	for i, q := range w.queue {
		if q == wt {
			w.queue = append(w.queue[:i], w.queue[i+1:]...)
			monitoring.WaitingSessions.Set(float64(len(w.queue)))
			w.mu.Unlock()
			return
		}
	}
	w.mu.Unlock()

	select {
	case <-wt.ready:
		w.releaseOnce()()
	default:
	}
}

func (w *WaitingRoom) pushLoop() {
	ticker := time.NewTicker(w.pushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.mu.Lock()
			snapshot := make([]uint, len(w.queue))
			for i, wt := range w.queue {
				snapshot[i] = wt.attemptID
			}
			w.mu.Unlock()
			for i, id := range snapshot {
				w.writePosition(id, i+1)
			}
		}
	}
}

func (w *WaitingRoom) writePosition(attemptID uint, pos int) {
	if w.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := fmt.Sprintf("%s%d", waitingPosPrefix, attemptID)
	w.rdb.Set(ctx, key, pos, 3*w.pushEvery)
}

func (w *WaitingRoom) clearPosition(attemptID uint) {
	if w.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w.rdb.Del(ctx, fmt.Sprintf("%s%d", waitingPosPrefix, attemptID))
}
