package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Message 队列中的一条待处理消息
// Deliveries 为消费组的投递次数,首次投递为1
type Message struct {
	ID         string
	Payload    []byte
	Deliveries int64
}

// Options 队列参数
type Options struct {
	Stream           string
	Group            string
	DeadLetterStream string
	Visibility       time.Duration // 租约时长,超时未确认的消息可被其他worker认领
}

// Queue 基于 redis stream 消费组的持久化任务队列
// 至少一次投递:消息须显式 Ack;持有者失联后经 Visibility 超时由 XAUTOCLAIM 重新投递
type Queue struct {
	rdb  *redis.Client
	opts Options
}

func New(rdb *redis.Client, opts Options) *Queue {
	if opts.Visibility <= 0 {
		opts.Visibility = 5 * time.Minute
	}
	return &Queue{rdb: rdb, opts: opts}
}

// EnsureGroup 创建 stream 与消费组,幂等
func (q *Queue) EnsureGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.opts.Stream, q.opts.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Publish 投递一条消息,redis 落盘即视为持久
func (q *Queue) Publish(ctx context.Context, payload []byte) (string, error) {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.opts.Stream,
		Values: map[string]interface{}{"payload": string(payload)},
	}).Result()
}

// Fetch 为指定消费者取一条消息
// 优先认领租约过期的悬挂消息,没有再阻塞读取新消息;无消息时返回 (nil, nil)
func (q *Queue) Fetch(ctx context.Context, consumer string, block time.Duration) (*Message, error) {
	claimed, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.opts.Stream,
		Group:    q.opts.Group,
		Consumer: consumer,
		MinIdle:  q.opts.Visibility,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if len(claimed) > 0 {
		return q.toMessage(ctx, claimed[0])
	}

	streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.opts.Group,
		Consumer: consumer,
		Streams:  []string{q.opts.Stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	return q.toMessage(ctx, streams[0].Messages[0])
}

func (q *Queue) toMessage(ctx context.Context, m redis.XMessage) (*Message, error) {
	payload, _ := m.Values["payload"].(string)
	msg := &Message{ID: m.ID, Payload: []byte(payload), Deliveries: 1}

	// 投递计数来自消费组的 pending 表
	pending, err := q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.opts.Stream,
		Group:  q.opts.Group,
		Start:  m.ID,
		End:    m.ID,
		Count:  1,
	}).Result()
	if err == nil && len(pending) > 0 {
		msg.Deliveries = pending[0].RetryCount
	}
	return msg, nil
}

// Ack 确认消息处理完成并从 stream 中移除
func (q *Queue) Ack(ctx context.Context, id string) error {
	if err := q.rdb.XAck(ctx, q.opts.Stream, q.opts.Group, id).Err(); err != nil {
		return err
	}
	return q.rdb.XDel(ctx, q.opts.Stream, id).Err()
}

// DeadLetter 将重试耗尽的消息转入死信 stream 并确认原消息
func (q *Queue) DeadLetter(ctx context.Context, msg *Message, reason string) error {
	err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.opts.DeadLetterStream,
		Values: map[string]interface{}{
			"payload":    string(msg.Payload),
			"reason":     reason,
			"deliveries": msg.Deliveries,
			"failed_at":  time.Now().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return err
	}
	return q.Ack(ctx, msg.ID)
}

// Depth 当前 stream 长度,用于指标上报
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.XLen(ctx, q.opts.Stream).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
