package model

import "time"

// AttemptStatus 测评状态
type AttemptStatus string

const (
	AttemptPending    AttemptStatus = "pending"     // 已创建,第一阶段未完成
	AttemptPhase1Done AttemptStatus = "phase1_done" // 声学得分已落库,第二阶段未完成
	AttemptProcessing AttemptStatus = "processing"  // 语义音频已提交,等待异步评分
	AttemptCompleted  AttemptStatus = "completed"   // 两阶段得分齐备,终态
	AttemptFailed     AttemptStatus = "failed"      // 终态,携带失败原因
)

// Terminal 是否为终态
func (s AttemptStatus) Terminal() bool {
	return s == AttemptCompleted || s == AttemptFailed
}

// FailureClass 失败归因,决定名额能否重置
type FailureClass string

const (
	FailureClassUser   FailureClass = "user"   // 考生自身原因,不允许重置
	FailureClassSystem FailureClass = "system" // 系统/服务方原因,允许监考重置
)

// 失败原因代码
const (
	ReasonStreamDisconnected = "stream_disconnected"         // 流式会话中断且重试耗尽
	ReasonSessionTimeout     = "session_timeout"             // 流式会话超出钟面时长上限
	ReasonProviderRejected   = "provider_rejected"           // 评分服务明确拒绝
	ReasonAudioUnreadable    = "audio_unreadable"            // 音频无法解析
	ReasonSemanticExhausted  = "semantic_scoring_exhausted"  // 语义评分重试耗尽
	ReasonMalformedResult    = "malformed_scoring_result"    // 语义结果结构非法且重试耗尽
	ReasonAbandoned          = "abandoned"                   // 考生中途放弃
)

// Attempt 一次完整测评
// 终态 completed 之后所有得分字段不可变更
type Attempt struct {
	BaseModel
	ExamineeID   uint          `gorm:"not null;index" json:"examinee_id"`
	AssignmentID uint          `gorm:"not null;index" json:"assignment_id"`
	Level        string        `gorm:"size:20;not null" json:"level"`
	Unit         int           `gorm:"not null" json:"unit"`
	Status       AttemptStatus `gorm:"size:20;not null;default:pending;index" json:"status"`

	// 第一阶段:声学评分,0-20,由四项分项分合成
	PhoneticScore  *int     `json:"phonetic_score,omitempty"`
	PronAccuracy   *float64 `json:"pron_accuracy,omitempty"`
	PronFluency    *float64 `json:"pron_fluency,omitempty"`
	PronIntegrity  *float64 `json:"pron_integrity,omitempty"`
	PronTone       *float64 `json:"pron_tone,omitempty"`
	StreamAttempts int      `gorm:"default:0" json:"stream_attempts"` // 流式连接重试计数

	// 第二阶段:语义评分,0-24,12题每题0/1/2
	SemanticScore *int        `json:"semantic_score,omitempty"`
	Transcript    string      `gorm:"type:text" json:"transcript,omitempty"`
	Feedback      string      `gorm:"type:text" json:"feedback,omitempty"`
	RetryCount    int         `gorm:"default:0" json:"retry_count"` // 语义评分重试计数
	ItemScores    []ItemScore `gorm:"foreignKey:AttemptID" json:"item_scores,omitempty"`

	// 两阶段音频的对象存储键
	PhoneticAudioKey string `gorm:"size:255" json:"phonetic_audio_key,omitempty"`
	SemanticAudioKey string `gorm:"size:255" json:"semantic_audio_key,omitempty"`

	FailureReason string       `gorm:"size:50" json:"failure_reason,omitempty"`
	FailureClass  FailureClass `gorm:"size:10" json:"failure_class,omitempty"`
	Retryable     bool         `json:"retryable"`

	ReportSerial string     `gorm:"size:32;index" json:"report_serial,omitempty"`
	Phase1DoneAt *time.Time `json:"phase1_done_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (Attempt) TableName() string {
	return "attempts"
}

// PhoneticComponents 声学评分的四项分项分,满分各100
type PhoneticComponents struct {
	Accuracy  float64 `json:"accuracy"`
	Fluency   float64 `json:"fluency"`
	Integrity float64 `json:"integrity"`
	Tone      float64 `json:"tone"`
}

// ItemScore 语义逐题得分
type ItemScore struct {
	BaseModel
	AttemptID uint   `gorm:"not null;uniqueIndex:idx_item_attempt_no" json:"attempt_id"`
	No        int    `gorm:"not null;uniqueIndex:idx_item_attempt_no" json:"no"` // 1-12
	Score     int    `gorm:"not null" json:"score"`                             // 0/1/2
	Feedback  string `gorm:"type:text" json:"feedback,omitempty"`
}

// TableName 指定表名
func (ItemScore) TableName() string {
	return "item_scores"
}
