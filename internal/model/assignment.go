package model

// Assignment 测评任务
// 一个级别+单元对应一套卷面:第一阶段朗读参考文本 + 第二阶段12道口头问答题
type Assignment struct {
	BaseModel
	Level         string               `gorm:"size:20;not null;uniqueIndex:idx_assignment_scope" json:"level"`
	Unit          int                  `gorm:"not null;uniqueIndex:idx_assignment_scope" json:"unit"`
	Title         string               `gorm:"size:200" json:"title"`
	ReferenceText string               `gorm:"type:text;not null" json:"reference_text"` // 朗读篇章原文
	Active        bool                 `gorm:"default:true" json:"active"`
	Questions     []AssignmentQuestion `gorm:"foreignKey:AssignmentID" json:"questions,omitempty"`
}

// TableName 指定表名
func (Assignment) TableName() string {
	return "assignments"
}

// AssignmentQuestion 语义阶段题目,每套固定12题,题号1-12
type AssignmentQuestion struct {
	BaseModel
	AssignmentID    uint   `gorm:"not null;uniqueIndex:idx_question_no" json:"assignment_id"`
	No              int    `gorm:"not null;uniqueIndex:idx_question_no" json:"no"`
	Text            string `gorm:"type:text;not null" json:"text"`
	ReferenceAnswer string `gorm:"type:text" json:"reference_answer"`
}

// TableName 指定表名
func (AssignmentQuestion) TableName() string {
	return "assignment_questions"
}
