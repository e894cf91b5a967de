package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// takeScript 令牌桶的取令牌脚本,先按流逝时间补充再尝试扣减
// 返回 {granted, wait_ms};桶状态保留在 hash 中,对运维可见且跨进程重启生效
var takeScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_per_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

local state = redis.call('HMGET', key, 'tokens', 'updated_ms')
local tokens = tonumber(state[1])
local updated = tonumber(state[2])
if tokens == nil or updated == nil then
  tokens = capacity
  updated = now_ms
end

local elapsed = now_ms - updated
if elapsed > 0 then
  tokens = math.min(capacity, tokens + elapsed * refill_per_ms)
  updated = now_ms
end

local granted = 0
local wait_ms = 0
if tokens >= 1 then
  tokens = tokens - 1
  granted = 1
else
  wait_ms = math.ceil((1 - tokens) / refill_per_ms)
end

redis.call('HMSET', key, 'tokens', tokens, 'updated_ms', updated)
redis.call('PEXPIRE', key, 600000)
return {granted, wait_ms}
`)

// Bucket 存放在 redis 的共享令牌桶
// 所有实例的语义评分worker从同一个桶取令牌,保证对外请求速率全局不超限
type Bucket struct {
	rdb         *redis.Client
	key         string
	capacity    int
	refillPerMs float64
}

// New 创建速率为 ratePerMinute 的令牌桶,容量等于一分钟的预算
func New(rdb *redis.Client, key string, ratePerMinute int) *Bucket {
	if ratePerMinute <= 0 {
		ratePerMinute = 60
	}
	return &Bucket{
		rdb:         rdb,
		key:         key,
		capacity:    ratePerMinute,
		refillPerMs: float64(ratePerMinute) / float64(60*1000),
	}
}

// TryTake 尝试取一个令牌,未取到时返回建议等待时长
func (b *Bucket) TryTake(ctx context.Context) (bool, time.Duration, error) {
	res, err := takeScript.Run(ctx, b.rdb, []string{b.key},
		b.capacity, b.refillPerMs, time.Now().UnixMilli()).Result()
	if err != nil {
		return false, 0, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, fmt.Errorf("unexpected bucket reply: %v", res)
	}
	granted, _ := vals[0].(int64)
	waitMs, _ := vals[1].(int64)
	return granted == 1, time.Duration(waitMs) * time.Millisecond, nil
}

// Take 阻塞直到取得令牌或 ctx 结束
func (b *Bucket) Take(ctx context.Context) error {
	for {
		granted, wait, err := b.TryTake(ctx)
		if err != nil {
			return err
		}
		if granted {
			return nil
		}
		if wait < 50*time.Millisecond {
			wait = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Remaining 当前桶内剩余令牌数,仅用于观测
func (b *Bucket) Remaining(ctx context.Context) (float64, error) {
	v, err := b.rdb.HGet(ctx, b.key, "tokens").Float64()
	if err == redis.Nil {
		return float64(b.capacity), nil
	}
	return v, err
}
