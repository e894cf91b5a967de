package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/repository"
	"oral_eval_backend/internal/util"
	"oral_eval_backend/pkg/logger"
	"oral_eval_backend/pkg/monitoring"
	"oral_eval_backend/pkg/queue"
	"oral_eval_backend/pkg/ratelimit"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SemanticScorer 批式语义评分的最小依赖面
type SemanticScorer interface {
	Score(ctx context.Context, audioURL string, questions []model.AssignmentQuestion) (*SemanticOutcome, error)
}

// SemanticService 第二阶段编排:问答音频入队与限速消费
// 队列保证至少一次投递,结果落库侧幂等,重复消费无副作用
type SemanticService struct {
	Scorer         SemanticScorer
	Queue          *queue.Queue
	Bucket         *ratelimit.Bucket
	Storage        *StorageService
	Attempts       *AttemptService
	AttemptRepo    *repository.AttemptRepository
	AssignmentRepo *repository.AssignmentRepository
	Cfg            *config.Config

	// sleep 可注入,测试中绕过节流等待
	sleep func(time.Duration)
	wg    sync.WaitGroup
}

func NewSemanticService(
	scorer SemanticScorer,
	q *queue.Queue,
	bucket *ratelimit.Bucket,
	storage *StorageService,
	attempts *AttemptService,
	attemptRepo *repository.AttemptRepository,
	assignmentRepo *repository.AssignmentRepository,
	cfg *config.Config,
) *SemanticService {
	return &SemanticService{
		Scorer:         scorer,
		Queue:          q,
		Bucket:         bucket,
		Storage:        storage,
		Attempts:       attempts,
		AttemptRepo:    attemptRepo,
		AssignmentRepo: assignmentRepo,
		Cfg:            cfg,
		sleep:          time.Sleep,
	}
}

// SubmitAudio 保存第二阶段问答音频并投递评分任务
// 状态机允许声学结果尚未返回时就提交,两路结果以先到先落的方式汇合
func (s *SemanticService) SubmitAudio(ctx context.Context, attemptID uint, audio io.Reader, size int64, ext, contentType string) error {
	attempt, err := s.Attempts.Get(attemptID)
	if err != nil {
		return err
	}
	if attempt.Status != model.AttemptPending && attempt.Status != model.AttemptPhase1Done {
		return util.ErrInvalidTransition
	}
	if attempt.SemanticAudioKey != "" {
		return util.ErrSessionBusy
	}

	key := AudioObjectKey(attemptID, util.StageSemantic, util.NewObjectSuffix(), ext)
	if _, err := s.Storage.Upload(ctx, key, audio, size, contentType); err != nil {
		return err
	}
	if err := s.Attempts.MarkProcessing(attemptID, key); err != nil {
		return err
	}

	job := model.SemanticJob{
		JobID:      uuid.NewString(),
		AttemptID:  attemptID,
		AudioKey:   key,
		EnqueuedAt: time.Now(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if _, err := s.Queue.Publish(ctx, payload); err != nil {
		// 音频已落库,后续可由运维重投;状态保持 processing 等待结果
		logger.Log.Error("语义评分任务入队失败",
			zap.Uint("attempt_id", attemptID), zap.Error(err))
		return err
	}
	return nil
}

// StartWorkers 拉起消费worker,ctx 结束后全部退出
func (s *SemanticService) StartWorkers(ctx context.Context) {
	workers := s.Cfg.Semantic.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		consumer := fmt.Sprintf("semantic-worker-%d", i)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.workLoop(ctx, consumer)
		}()
	}
}

// Stop 等待全部worker退出
func (s *SemanticService) Stop() {
	s.wg.Wait()
}

func (s *SemanticService) workLoop(ctx context.Context, consumer string) {
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := s.Queue.Fetch(ctx, consumer, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.Error("拉取语义评分任务失败", zap.String("consumer", consumer), zap.Error(err))
			s.sleep(time.Second)
			continue
		}
		if msg == nil {
			continue
		}

		s.handle(ctx, msg)

		// 全局令牌桶之外再压一个固定的任务间隔,避免多worker同时放行导致瞬时突发
		if s.Cfg.Semantic.RatePerMinute > 0 {
			s.sleep(time.Minute / time.Duration(s.Cfg.Semantic.RatePerMinute))
		}
	}
}

// handle 处理一条评分任务
// 无法恢复的负载直接确认并丢弃;业务失败按投递计数决定重投或进入死信
func (s *SemanticService) handle(ctx context.Context, msg *queue.Message) {
	var job model.SemanticJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil || job.AttemptID == 0 {
		logger.Log.Error("丢弃无法解析的评分任务", zap.String("msg_id", msg.ID), zap.Error(err))
		if derr := s.Queue.DeadLetter(ctx, msg, "unparseable payload"); derr != nil {
			logger.Log.Error("死信投递失败", zap.String("msg_id", msg.ID), zap.Error(derr))
		}
		monitoring.SemanticJobsTotal.WithLabelValues("poison").Inc()
		return
	}
	job.Deliveries = msg.Deliveries

	attempt, err := s.Attempts.Get(job.AttemptID)
	if err != nil {
		if errors.Is(err, util.ErrAttemptNotFound) {
			_ = s.Queue.Ack(ctx, msg.ID)
			monitoring.SemanticJobsTotal.WithLabelValues("orphan").Inc()
			return
		}
		logger.Log.Error("评分任务读取答题记录失败", zap.Uint("attempt_id", job.AttemptID), zap.Error(err))
		return // 不确认,租约到期后重投
	}

	// 已终态:completed 直接确认;failed 且不可重试的同样丢弃
	if attempt.Status == model.AttemptCompleted ||
		(attempt.Status == model.AttemptFailed && !attempt.Retryable) {
		_ = s.Queue.Ack(ctx, msg.ID)
		monitoring.SemanticJobsTotal.WithLabelValues("stale").Inc()
		return
	}

	if err := s.takeBudget(ctx); err != nil {
		return // ctx 结束或预算服务异常,等待重投
	}

	serr := s.scoreOnce(ctx, &job)
	if serr == nil {
		_ = s.Queue.Ack(ctx, msg.ID)
		monitoring.SemanticJobsTotal.WithLabelValues("ok").Inc()
		return
	}

	if err := s.AttemptRepo.IncrementRetryCount(job.AttemptID); err != nil {
		logger.Log.Warn("递增语义重试计数失败", zap.Uint("attempt_id", job.AttemptID), zap.Error(err))
	}

	if job.Deliveries >= int64(s.Cfg.Semantic.MaxRetries) {
		reason := model.ReasonSemanticExhausted
		if errors.Is(serr, util.ErrMalformedResult) {
			reason = model.ReasonMalformedResult
		}
		logger.Log.Error("语义评分重试耗尽,任务转入死信",
			zap.Uint("attempt_id", job.AttemptID),
			zap.Int64("deliveries", job.Deliveries),
			zap.String("reason", reason),
			zap.Error(serr))
		if derr := s.Queue.DeadLetter(ctx, msg, reason); derr != nil {
			logger.Log.Error("死信投递失败", zap.String("msg_id", msg.ID), zap.Error(derr))
		}
		if ferr := s.Attempts.Fail(job.AttemptID, reason, model.FailureClassSystem, true); ferr != nil {
			logger.Log.Error("标记语义失败状态出错", zap.Uint("attempt_id", job.AttemptID), zap.Error(ferr))
		}
		monitoring.SemanticJobsTotal.WithLabelValues("dead").Inc()
		return
	}

	// 不确认,等待租约超时后重投
	logger.Log.Warn("语义评分失败,等待重投",
		zap.Uint("attempt_id", job.AttemptID),
		zap.Int64("deliveries", job.Deliveries),
		zap.Error(serr))
	monitoring.SemanticJobsTotal.WithLabelValues("retry").Inc()
}

// takeBudget 从共享令牌桶取一个请求额度
func (s *SemanticService) takeBudget(ctx context.Context) error {
	granted, wait, err := s.Bucket.TryTake(ctx)
	if err != nil {
		logger.Log.Error("请求评分预算失败", zap.Error(err))
		return err
	}
	if granted {
		return nil
	}
	monitoring.RateBudgetWaits.Inc()
	for !granted {
		if wait < 50*time.Millisecond {
			wait = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		granted, wait, err = s.Bucket.TryTake(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// scoreOnce 执行一次完整评分并落库
func (s *SemanticService) scoreOnce(ctx context.Context, job *model.SemanticJob) error {
	attempt, err := s.Attempts.Get(job.AttemptID)
	if err != nil {
		return err
	}
	assignment, err := s.AssignmentRepo.FindByID(attempt.AssignmentID)
	if err != nil {
		return err
	}

	ttl := time.Duration(s.Cfg.Assess.ReportURLTTLMinutes) * time.Minute
	audioURL, err := s.Storage.Presign(ctx, job.AudioKey, ttl)
	if err != nil {
		return fmt.Errorf("生成音频访问地址失败: %w", err)
	}

	outcome, err := s.Scorer.Score(ctx, audioURL, assignment.Questions)
	if err != nil {
		return err
	}

	if _, err := s.Attempts.ApplySemanticResult(job.AttemptID, outcome.Items, outcome.Transcript, outcome.Feedback); err != nil {
		return err
	}
	return nil
}
