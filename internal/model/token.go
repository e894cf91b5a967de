package model

import "time"

// EntryToken 入场令牌
// 一次性使用,UsedAt 仅允许由 NULL 翻转一次;兑换成功即预占名额并创建测评
type EntryToken struct {
	BaseModel
	Token        string     `gorm:"size:64;uniqueIndex;not null" json:"token"`
	ExamineeID   uint       `gorm:"not null;index" json:"examinee_id"`
	AssignmentID uint       `gorm:"not null;index" json:"assignment_id"`
	Level        string     `gorm:"size:20;not null" json:"level"`
	Unit         int        `gorm:"not null" json:"unit"`
	IssuedBy     uint       `gorm:"not null" json:"issued_by"`
	ExpiresAt    time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	Revoked      bool       `gorm:"default:false" json:"revoked"`
	AttemptID    *uint      `json:"attempt_id,omitempty"`
}

// TableName 指定表名
func (EntryToken) TableName() string {
	return "entry_tokens"
}

// Usable 是否仍可兑换,now 由调用方传入便于测试
func (t *EntryToken) Usable(now time.Time) bool {
	return !t.Revoked && t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// ShareToken 成绩分享令牌
// 指向一次已完成的测评,ExpiresAt 为 NULL 表示长期有效;每次解析都重新校验
type ShareToken struct {
	BaseModel
	Token     string     `gorm:"size:64;uniqueIndex;not null" json:"token"`
	AttemptID uint       `gorm:"not null;index" json:"attempt_id"`
	IssuedBy  uint       `gorm:"not null" json:"issued_by"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Revoked   bool       `gorm:"default:false" json:"revoked"`
}

// TableName 指定表名
func (ShareToken) TableName() string {
	return "share_tokens"
}
