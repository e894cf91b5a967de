package model

import "time"

// QuotaState 名额状态
type QuotaState string

const (
	QuotaNotStarted QuotaState = "not_started"
	QuotaInProgress QuotaState = "in_progress"
	QuotaCompleted  QuotaState = "completed"
)

// QuotaRecord 考试名额账本
// 每个 考生+级别+单元 仅一行,唯一索引兜底并发插入;名额状态是资格判定的唯一依据
type QuotaRecord struct {
	BaseModel
	ExamineeID  uint       `gorm:"not null;uniqueIndex:idx_quota_scope" json:"examinee_id"`
	Level       string     `gorm:"size:20;not null;uniqueIndex:idx_quota_scope" json:"level"`
	Unit        int        `gorm:"not null;uniqueIndex:idx_quota_scope" json:"unit"`
	State       QuotaState `gorm:"size:20;not null;default:not_started" json:"state"`
	AttemptID   *uint      `json:"attempt_id,omitempty"`
	ResetCount  int        `gorm:"default:0" json:"reset_count"`
	LastResetAt *time.Time `json:"last_reset_at,omitempty"`
	LastResetBy *uint      `json:"last_reset_by,omitempty"`
}

// TableName 指定表名
func (QuotaRecord) TableName() string {
	return "quota_records"
}
