package service

import (
	"errors"

	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/repository"
	"oral_eval_backend/internal/util"

	"gorm.io/gorm"
)

// AssignmentService 卷面查询
type AssignmentService struct {
	AssignmentRepo *repository.AssignmentRepository
}

func NewAssignmentService(repo *repository.AssignmentRepository) *AssignmentService {
	return &AssignmentService{AssignmentRepo: repo}
}

func (s *AssignmentService) List() ([]model.Assignment, error) {
	return s.AssignmentRepo.ListActive()
}

func (s *AssignmentService) Get(id uint) (*model.Assignment, error) {
	a, err := s.AssignmentRepo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByScope 按级别+单元取启用中的试卷
func (s *AssignmentService) GetByScope(level string, unit int) (*model.Assignment, error) {
	a, err := s.AssignmentRepo.FindActiveByLevelUnit(level, unit)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
