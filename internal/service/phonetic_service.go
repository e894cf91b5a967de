package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/repository"
	"oral_eval_backend/internal/util"
	"oral_eval_backend/pkg/logger"

	"go.uber.org/zap"
)

const retrySweepBatch = 20

// PhoneticEvaluator 流式声学评分的最小依赖面
type PhoneticEvaluator interface {
	EvaluateStream(ctx context.Context, audio io.Reader, referenceText string) (*StreamOutcome, error)
}

// PhoneticService 第一阶段编排:音频落库、等候室准入、会话生命周期与后台补扫
type PhoneticService struct {
	Evaluator      PhoneticEvaluator
	Room           *WaitingRoom
	Storage        *StorageService
	Attempts       *AttemptService
	AttemptRepo    *repository.AttemptRepository
	AssignmentRepo *repository.AssignmentRepository
	Cfg            *config.Config

	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewPhoneticService(
	evaluator PhoneticEvaluator,
	room *WaitingRoom,
	storage *StorageService,
	attempts *AttemptService,
	attemptRepo *repository.AttemptRepository,
	assignmentRepo *repository.AssignmentRepository,
	cfg *config.Config,
) *PhoneticService {
	return &PhoneticService{
		Evaluator:      evaluator,
		Room:           room,
		Storage:        storage,
		Attempts:       attempts,
		AttemptRepo:    attemptRepo,
		AssignmentRepo: assignmentRepo,
		Cfg:            cfg,
		quit:           make(chan struct{}),
	}
}

// SubmitAudio 保存第一阶段朗读音频并异步拉起评分会话
// 同一答题记录只接受一次上传,重复提交返回会话占用错误
func (s *PhoneticService) SubmitAudio(ctx context.Context, attemptID uint, audio io.Reader, size int64, ext, contentType string) error {
	attempt, err := s.Attempts.Get(attemptID)
	if err != nil {
		return err
	}
	if attempt.Status != model.AttemptPending {
		return util.ErrInvalidTransition
	}
	if attempt.PhoneticAudioKey != "" {
		return util.ErrSessionBusy
	}

	key := AudioObjectKey(attemptID, util.StagePhonetic, util.NewObjectSuffix(), ext)
	if _, err := s.Storage.Upload(ctx, key, audio, size, contentType); err != nil {
		return err
	}
	if err := s.AttemptRepo.SetPhoneticAudioKey(attemptID, key); err != nil {
		return err
	}

	s.StartSession(attemptID)
	return nil
}

// StartSession 异步执行一次评分会话,幂等:重复拉起同一记录最终只有一次结果落库
func (s *PhoneticService) StartSession(attemptID uint) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSession(attemptID)
	}()
}

// WaitingPosition 查询排队位置,0表示不在队中
func (s *PhoneticService) WaitingPosition(attemptID uint) int {
	return s.Room.Position(attemptID)
}

// StartRetrySweep 周期补扫可重试的声学失败并重新拉起会话
func (s *PhoneticService) StartRetrySweep(ctx context.Context) {
	interval := time.Duration(s.Cfg.Phonetic.RetrySweepMinutes) * time.Minute
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepOnce()
			}
		}
	}()
}

// Stop 终止在途会话并等待全部goroutine退出
func (s *PhoneticService) Stop() {
	s.once.Do(func() { close(s.quit) })
	s.wg.Wait()
}

func (s *PhoneticService) sweepOnce() {
	attempts, err := s.AttemptRepo.ListRetryablePhonetic(retrySweepBatch)
	if err != nil {
		logger.Log.Error("补扫查询失败", zap.Error(err))
		return
	}

	// 重启遗留的孤儿会话:音频在库但会话已不存在,停摆超过一个会话上限即重拉
	staleBefore := time.Now().Add(-2 * time.Duration(s.Cfg.Phonetic.SessionCapMinutes) * time.Minute)
	stalled, err := s.AttemptRepo.ListStalledPhonetic(staleBefore, retrySweepBatch)
	if err != nil {
		logger.Log.Error("停摆会话查询失败", zap.Error(err))
	} else {
		attempts = append(attempts, stalled...)
	}

	for _, a := range attempts {
		logger.Log.Info("补扫重试声学评分", zap.Uint("attempt_id", a.ID))
		s.StartSession(a.ID)
	}
}

func (s *PhoneticService) runSession(attemptID uint) {
	sessionCap := time.Duration(s.Cfg.Phonetic.SessionCapMinutes) * time.Minute
	ctx, cancel := context.WithTimeout(context.Background(), sessionCap)
	defer cancel()
	go func() {
		select {
		case <-s.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	release, err := s.Room.Acquire(ctx, attemptID)
	if err != nil {
		// 排队到会话上限仍未放行
		s.fail(attemptID, model.ReasonSessionTimeout, model.FailureClassSystem, true)
		return
	}
	defer release()

	attempt, err := s.Attempts.Get(attemptID)
	if err != nil {
		logger.Log.Error("评分会话读取答题记录失败", zap.Uint("attempt_id", attemptID), zap.Error(err))
		return
	}
	if attempt.PhoneticScore != nil {
		return
	}
	switch attempt.Status {
	case model.AttemptPending, model.AttemptProcessing:
	case model.AttemptFailed:
		if !attempt.Retryable {
			return
		}
	default:
		return
	}
	if attempt.PhoneticAudioKey == "" {
		logger.Log.Warn("答题记录缺少朗读音频", zap.Uint("attempt_id", attemptID))
		return
	}

	assignment, err := s.AssignmentRepo.FindByID(attempt.AssignmentID)
	if err != nil {
		logger.Log.Error("评分会话读取考核单元失败",
			zap.Uint("attempt_id", attemptID), zap.Uint("assignment_id", attempt.AssignmentID), zap.Error(err))
		return
	}

	for try := 0; try < s.Cfg.Phonetic.MaxConnectRetries; try++ {
		if ctx.Err() != nil {
			break
		}

		outcome, serr := s.streamOnce(ctx, attempt.PhoneticAudioKey, assignment.ReferenceText)
		if serr == nil {
			if _, aerr := s.Attempts.ApplyPhoneticResult(attemptID, outcome.Score, outcome.Components); aerr != nil {
				logger.Log.Warn("声学评分结果落库被拒",
					zap.Uint("attempt_id", attemptID), zap.Error(aerr))
			}
			return
		}

		_ = s.AttemptRepo.IncrementStreamAttempts(attemptID)

		if errors.Is(serr, ErrProviderRejected) {
			logger.Log.Warn("评分服务拒绝会话", zap.Uint("attempt_id", attemptID), zap.Error(serr))
			s.fail(attemptID, model.ReasonProviderRejected, model.FailureClassUser, false)
			return
		}
		logger.Log.Warn("声学评分会话中断",
			zap.Uint("attempt_id", attemptID), zap.Int("try", try+1), zap.Error(serr))
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.fail(attemptID, model.ReasonSessionTimeout, model.FailureClassSystem, true)
		return
	}
	s.fail(attemptID, model.ReasonStreamDisconnected, model.FailureClassSystem, true)
}

func (s *PhoneticService) streamOnce(ctx context.Context, audioKey, referenceText string) (*StreamOutcome, error) {
	rc, err := s.Storage.Fetch(ctx, audioKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return s.Evaluator.EvaluateStream(ctx, rc, referenceText)
}

func (s *PhoneticService) fail(attemptID uint, reason string, class model.FailureClass, retryable bool) {
	if err := s.Attempts.Fail(attemptID, reason, class, retryable); err != nil {
		logger.Log.Error("标记答题失败状态出错",
			zap.Uint("attempt_id", attemptID), zap.String("reason", reason), zap.Error(err))
	}
}
