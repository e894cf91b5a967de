package repository

import (
	"errors"
	"time"

	"oral_eval_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("username = ?", username).First(&user).Error
	return &user, err
}

func (r *UserRepository) Update(user *model.User) error {
	return r.DB.Save(user).Error
}

func (r *UserRepository) UpdateLastLogin(userID uint) error {
	now := time.Now()
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_login_at", now).
		Error
}

// FindOrCreateExaminee 按学号定位考生档案,不存在则建档
// 签发入场令牌时调用,并发签发依赖 username 唯一索引兜底
func (r *UserRepository) FindOrCreateExaminee(studentNo, displayName, className string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("username = ? AND role = ?", studentNo, model.RoleExaminee).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = model.User{
		Username:    studentNo,
		DisplayName: displayName,
		Role:        model.RoleExaminee,
		StudentNo:   studentNo,
		ClassName:   className,
	}
	if err := r.DB.Create(&user).Error; err != nil {
		// 并发建档撞唯一索引时读回已有记录
		var existing model.User
		if ferr := r.DB.Where("username = ? AND role = ?", studentNo, model.RoleExaminee).First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &user, nil
}
