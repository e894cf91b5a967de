package service

import (
	"errors"
	"fmt"
	"time"

	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/repository"
	"oral_eval_backend/internal/util"
	"oral_eval_backend/pkg/logger"
	"oral_eval_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttemptService 测评状态机
// 所有状态流转只经由这里:两个评分适配器的回调、失败标记与名额联动
type AttemptService struct {
	AttemptRepo *repository.AttemptRepository
	Quota       *QuotaService
}

func NewAttemptService(attemptRepo *repository.AttemptRepository, quota *QuotaService) *AttemptService {
	return &AttemptService{
		AttemptRepo: attemptRepo,
		Quota:       quota,
	}
}

func (s *AttemptService) Get(id uint) (*model.Attempt, error) {
	a, err := s.AttemptRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AttemptService) GetWithItems(id uint) (*model.Attempt, error) {
	a, err := s.AttemptRepo.FindByIDWithItems(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AttemptService) ListByAssignment(assignmentID uint, page, limit int) ([]model.Attempt, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.AttemptRepo.ListByAssignment(assignmentID, limit, (page-1)*limit)
}

// ValidateItemScores 语义结果的结构校验
// 恰好12条、题号严格为1..12升序且不重复、每题分值只允许0/1/2
func ValidateItemScores(items []model.ItemScore) error {
	if len(items) != 12 {
		return fmt.Errorf("%w: 题目数 %d", util.ErrMalformedResult, len(items))
	}
	for i, it := range items {
		if it.No != i+1 {
			return fmt.Errorf("%w: 第%d条题号为 %d", util.ErrMalformedResult, i+1, it.No)
		}
		if it.Score < 0 || it.Score > 2 {
			return fmt.Errorf("%w: 题号%d分值 %d", util.ErrMalformedResult, it.No, it.Score)
		}
	}
	return nil
}

// ApplyPhoneticResult 声学适配器回调,写入0-20的合成分与四项分项分
func (s *AttemptService) ApplyPhoneticResult(id uint, score int, comps model.PhoneticComponents) (model.AttemptStatus, error) {
	if score < 0 || score > 20 {
		return "", fmt.Errorf("%w: 声学得分 %d", util.ErrMalformedResult, score)
	}

	applied, final, err := s.AttemptRepo.ApplyPhoneticScore(id, score, comps, time.Now())
	if err != nil {
		return "", err
	}
	if !applied {
		return "", util.ErrInvalidTransition
	}

	monitoring.AttemptsByStatus.WithLabelValues(string(final)).Inc()
	if final == model.AttemptCompleted {
		s.syncQuotaCompleted(id)
	}
	return final, nil
}

// ApplySemanticResult 语义消费者回调
// 重复投递整体覆盖既有结果;completed 之后的重复投递按幂等成功处理
func (s *AttemptService) ApplySemanticResult(id uint, items []model.ItemScore, transcript, feedback string) (model.AttemptStatus, error) {
	if err := ValidateItemScores(items); err != nil {
		return "", err
	}

	score := 0
	for _, it := range items {
		score += it.Score
	}

	applied, final, err := s.AttemptRepo.ApplySemanticResult(id, items, transcript, feedback, score, time.Now())
	if err != nil {
		return "", err
	}
	if !applied {
		a, gerr := s.AttemptRepo.FindByID(id)
		if gerr == nil && a.Status == model.AttemptCompleted && a.SemanticScore != nil {
			return model.AttemptCompleted, nil
		}
		return "", util.ErrInvalidTransition
	}

	monitoring.AttemptsByStatus.WithLabelValues(string(final)).Inc()
	if final == model.AttemptCompleted {
		s.syncQuotaCompleted(id)
	}
	return final, nil
}

// MarkProcessing 第二阶段音频就位,进入等待异步评分
func (s *AttemptService) MarkProcessing(id uint, audioKey string) error {
	ok, err := s.AttemptRepo.MarkProcessing(id, audioKey)
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrInvalidTransition
	}
	monitoring.AttemptsByStatus.WithLabelValues(string(model.AttemptProcessing)).Inc()
	return nil
}

// Fail 从任意非终态进入 failed;对已失败的测评重复调用不报错
func (s *AttemptService) Fail(id uint, reason string, class model.FailureClass, retryable bool) error {
	ok, err := s.AttemptRepo.MarkFailed(id, reason, class, retryable)
	if err != nil {
		return err
	}
	if !ok {
		a, gerr := s.AttemptRepo.FindByID(id)
		if gerr != nil {
			if errors.Is(gerr, gorm.ErrRecordNotFound) {
				return util.ErrAttemptNotFound
			}
			return gerr
		}
		if a.Status == model.AttemptFailed {
			return nil
		}
		return util.ErrInvalidTransition
	}

	monitoring.AttemptsByStatus.WithLabelValues(string(model.AttemptFailed)).Inc()
	logger.Log.Warn("attempt failed",
		zap.Uint("attempt_id", id),
		zap.String("reason", reason),
		zap.String("class", string(class)),
		zap.Bool("retryable", retryable))
	return nil
}

func (s *AttemptService) syncQuotaCompleted(id uint) {
	a, err := s.AttemptRepo.FindByID(id)
	if err != nil {
		logger.Log.Error("load attempt for quota sync failed", zap.Uint("attempt_id", id), zap.Error(err))
		return
	}
	if err := s.Quota.MarkCompleted(a); err != nil {
		logger.Log.Error("quota completion sync failed", zap.Uint("attempt_id", id), zap.Error(err))
	}
}
