package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/repository"
	"oral_eval_backend/internal/util"
	"oral_eval_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FailureClassifier 判定一次失败测评的归因
// 名额重置只对系统原因开放;实现可替换,状态机本身不感知分类规则
type FailureClassifier interface {
	Classify(attempt *model.Attempt) model.FailureClass
}

// ReasonClassifier 默认分类器:优先采用失败时落库的归因,缺失时按原因代码推断
type ReasonClassifier struct{}

func (ReasonClassifier) Classify(a *model.Attempt) model.FailureClass {
	if a.FailureClass != "" {
		return a.FailureClass
	}
	switch a.FailureReason {
	case model.ReasonAudioUnreadable, model.ReasonAbandoned:
		return model.FailureClassUser
	default:
		return model.FailureClassSystem
	}
}

// ProbeClassifier 探测音频本体再归因:拉取存储对象做 ffprobe,
// 无法解析或时长过短视为考生方原因
type ProbeClassifier struct {
	Storage     *StorageService
	MinDuration float64
}

func (p *ProbeClassifier) Classify(a *model.Attempt) model.FailureClass {
	key := a.PhoneticAudioKey
	if key == "" {
		key = a.SemanticAudioKey
	}
	if key == "" {
		return ReasonClassifier{}.Classify(a)
	}

	rc, err := p.Storage.Fetch(context.Background(), key)
	if err != nil {
		return ReasonClassifier{}.Classify(a)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "probe-*.audio")
	if err != nil {
		return ReasonClassifier{}.Classify(a)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return ReasonClassifier{}.Classify(a)
	}
	tmp.Close()

	info, err := util.GetAudioInfo(tmp.Name())
	if err != nil {
		return model.FailureClassUser
	}
	minDur := p.MinDuration
	if minDur <= 0 {
		minDur = 1.0
	}
	if info.Duration < minDur {
		return model.FailureClassUser
	}
	return model.FailureClassSystem
}

// ChainClassifier 已落库的归因优先,缺失时退回探针分类
type ChainClassifier struct {
	Probe FailureClassifier
}

func (c ChainClassifier) Classify(a *model.Attempt) model.FailureClass {
	if a.FailureClass != "" {
		return a.FailureClass
	}
	if c.Probe != nil {
		return c.Probe.Classify(a)
	}
	return ReasonClassifier{}.Classify(a)
}

// QuotaService 名额账本
type QuotaService struct {
	QuotaRepo   *repository.QuotaRepository
	AttemptRepo *repository.AttemptRepository
	Classifier  FailureClassifier
	Audit       *AuditService
	Cfg         *config.Config
}

func NewQuotaService(quotaRepo *repository.QuotaRepository, attemptRepo *repository.AttemptRepository,
	classifier FailureClassifier, audit *AuditService, cfg *config.Config) *QuotaService {
	if classifier == nil {
		classifier = ReasonClassifier{}
	}
	return &QuotaService{
		QuotaRepo:   quotaRepo,
		AttemptRepo: attemptRepo,
		Classifier:  classifier,
		Audit:       audit,
		Cfg:         cfg,
	}
}

// Reserve 预占名额:not_started→in_progress 的条件更新保证并发下只有一个赢家
func (s *QuotaService) Reserve(examineeID uint, level string, unit int) (*model.QuotaRecord, error) {
	q, err := s.QuotaRepo.FindOrCreate(examineeID, level, unit)
	if err != nil {
		return nil, err
	}
	ok, err := s.QuotaRepo.Transition(q.ID, model.QuotaNotStarted, model.QuotaInProgress, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrQuotaConflict
	}
	q.State = model.QuotaInProgress
	return q, nil
}

// AttachAttempt 预占后回填创建出的测评ID
func (s *QuotaService) AttachAttempt(quotaID, attemptID uint) error {
	return s.QuotaRepo.AttachAttempt(quotaID, attemptID)
}

// MarkCompleted 测评收口后把名额推进到 completed,重复调用无副作用
func (s *QuotaService) MarkCompleted(attempt *model.Attempt) error {
	q, err := s.QuotaRepo.FindByScope(attempt.ExamineeID, attempt.Level, attempt.Unit)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Log.Warn("quota record missing at completion",
				zap.Uint("attempt_id", attempt.ID))
			return nil
		}
		return err
	}
	ok, err := s.QuotaRepo.Transition(q.ID, model.QuotaInProgress, model.QuotaCompleted, &attempt.ID)
	if err != nil {
		return err
	}
	if !ok {
		current, rerr := s.QuotaRepo.FindByID(q.ID)
		if rerr == nil && current.State == model.QuotaCompleted {
			return nil
		}
		return util.ErrInvalidTransition
	}
	return nil
}

// Eligible 当前名额状态,令牌签发前的资格预检
func (s *QuotaService) Eligible(examineeID uint, level string, unit int) (bool, model.QuotaState, error) {
	q, err := s.QuotaRepo.FindByScope(examineeID, level, unit)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, model.QuotaNotStarted, nil
		}
		return false, "", err
	}
	return q.State == model.QuotaNotStarted, q.State, nil
}

// Reset 重置名额,仅限系统原因的失败、特权角色操作、次数受限,全程审计
func (s *QuotaService) Reset(examineeID uint, level string, unit int, actor *model.User, ip string) error {
	outcome := "denied"
	defer func() {
		s.Audit.Report(AuditEvent{
			Actor:   fmt.Sprintf("user:%d", actor.ID),
			Action:  AuditQuotaReset,
			Subject: fmt.Sprintf("quota:%d/%s/%d", examineeID, level, unit),
			Outcome: outcome,
			IP:      ip,
		})
	}()

	if actor.Role != model.RoleProctor && actor.Role != model.RoleAdmin {
		return util.ErrPermissionDenied
	}

	q, err := s.QuotaRepo.FindByScope(examineeID, level, unit)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrResetNotAllowed
		}
		outcome = "error"
		return err
	}
	if q.State != model.QuotaInProgress || q.AttemptID == nil {
		return util.ErrResetNotAllowed
	}

	attempt, err := s.AttemptRepo.FindByID(*q.AttemptID)
	if err != nil {
		outcome = "error"
		return err
	}
	if attempt.Status != model.AttemptFailed {
		return util.ErrResetNotAllowed
	}
	if s.Classifier.Classify(attempt) != model.FailureClassSystem {
		return util.ErrResetNotAllowed
	}

	ok, err := s.QuotaRepo.Reset(q.ID, actor.ID, s.Cfg.Assess.ResetsAllowedPerQuota)
	if err != nil {
		outcome = "error"
		return err
	}
	if !ok {
		if q.ResetCount >= s.Cfg.Assess.ResetsAllowedPerQuota {
			return util.ErrResetCapReached
		}
		return util.ErrResetNotAllowed
	}

	outcome = "ok"
	logger.Log.Info("quota reset",
		zap.Uint("examinee_id", examineeID),
		zap.String("level", level),
		zap.Int("unit", unit),
		zap.Uint("actor_id", actor.ID))
	return nil
}
