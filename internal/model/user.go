package model

import "time"

// UserRole 用户角色
type UserRole string

const (
	RoleExaminee UserRole = "examinee" // 考生,仅通过入场令牌进入
	RoleProctor  UserRole = "proctor"  // 监考教师,签发令牌/查看成绩/重置名额
	RoleAdmin    UserRole = "admin"
)

// User 用户模型
// 监考与管理员使用账号密码登录;考生档案在兑换入场令牌时自动建立,无密码
type User struct {
	BaseModel
	Username    string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Password    string     `gorm:"size:100" json:"-"`
	DisplayName string     `gorm:"size:50" json:"display_name"`
	Role        UserRole   `gorm:"size:20;not null;default:examinee;index" json:"role"`
	StudentNo   string     `gorm:"size:50;index" json:"student_no,omitempty"`
	ClassName   string     `gorm:"size:100" json:"class_name,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
