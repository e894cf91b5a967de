package repository

import (
	"oral_eval_backend/internal/model"

	"gorm.io/gorm"
)

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) Create(assignment *model.Assignment) error {
	return r.DB.Create(assignment).Error
}

func (r *AssignmentRepository) FindByID(id uint) (*model.Assignment, error) {
	var a model.Assignment
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("no ASC")
	}).First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindActiveByLevelUnit 按级别+单元取启用中的试卷,含按题号排序的题目
func (r *AssignmentRepository) FindActiveByLevelUnit(level string, unit int) (*model.Assignment, error) {
	var a model.Assignment
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("no ASC")
	}).Where("level = ? AND unit = ? AND active = ?", level, unit, true).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) ListActive() ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.DB.Where("active = ?", true).Order("level ASC, unit ASC").Find(&list).Error
	return list, err
}
