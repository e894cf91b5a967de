// 手动重投语义评分死信脚本
//
// 评分任务重试耗尽后会转入死信 stream,对应测评进入 failed(系统原因,可重试)。
// 排除外部评分服务故障后运行本脚本,死信会被重新投递回任务队列触发再次评分。
//
// 用法: go run scripts/requeue_dead_letters.go

package main

import (
	"context"
	"log"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/pkg/database"
	"oral_eval_backend/pkg/queue"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Redis 连接失败: %v", err)
	}

	q := queue.New(rdb, queue.Options{
		Stream:           cfg.Semantic.Stream,
		Group:            cfg.Semantic.Group,
		DeadLetterStream: cfg.Semantic.DeadLetterStream,
	})

	ctx := context.Background()
	entries, err := rdb.XRange(ctx, cfg.Semantic.DeadLetterStream, "-", "+").Result()
	if err != nil {
		log.Fatalf("读取死信失败: %v", err)
	}
	if len(entries) == 0 {
		log.Println("死信队列为空")
		return
	}

	requeued := 0
	for _, e := range entries {
		payload, ok := e.Values["payload"].(string)
		if !ok || payload == "" {
			log.Printf("跳过无法解析的死信 %s", e.ID)
			continue
		}
		if _, err := q.Publish(ctx, []byte(payload)); err != nil {
			log.Fatalf("重投 %s 失败: %v", e.ID, err)
		}
		if err := rdb.XDel(ctx, cfg.Semantic.DeadLetterStream, e.ID).Err(); err != nil {
			log.Printf("清除死信 %s 失败: %v", e.ID, err)
		}
		requeued++
	}
	log.Printf("完成，共重投 %d 条", requeued)
}
