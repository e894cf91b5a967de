package model

import "time"

// SemanticJob 语义评分任务负载
// 任务本体存放在 redis stream 中,不入库;Deliveries 由消费组的投递计数填充
type SemanticJob struct {
	JobID      string    `json:"job_id"`
	AttemptID  uint      `json:"attempt_id"`
	AudioKey   string    `json:"audio_key"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Deliveries int64     `json:"-"`
}
