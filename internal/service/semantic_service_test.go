package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/util"
	"oral_eval_backend/pkg/queue"
	"oral_eval_backend/pkg/ratelimit"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubScorer 可编程的假语义评分器,默认返回满结构的合法结果
type stubScorer struct {
	mu        sync.Mutex
	calls     int
	lastURL   string
	lastCount int
	fn        func() (*SemanticOutcome, error)
}

func (s *stubScorer) Score(ctx context.Context, audioURL string, qs []model.AssignmentQuestion) (*SemanticOutcome, error) {
	s.mu.Lock()
	s.calls++
	s.lastURL = audioURL
	s.lastCount = len(qs)
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return &SemanticOutcome{Transcript: "考生转写", Feedback: "总评", Items: validItems(2)}, nil
}

func (s *stubScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type semanticTestEnv struct {
	*testEnv
	svc    *SemanticService
	queue  *queue.Queue
	rdb    *redis.Client
	scorer *stubScorer
}

func newSemanticEnv(t *testing.T) *semanticTestEnv {
	t.Helper()
	env := newTestEnv(t)
	_, client := newTestRedis(t)

	q := queue.New(client, queue.Options{
		Stream:           env.cfg.Semantic.Stream,
		Group:            env.cfg.Semantic.Group,
		DeadLetterStream: env.cfg.Semantic.DeadLetterStream,
		Visibility:       100 * time.Millisecond,
	})
	require.NoError(t, q.EnsureGroup(context.Background()))

	bucket := ratelimit.New(client, "semantic_budget", env.cfg.Semantic.RatePerMinute)
	scorer := &stubScorer{}
	svc := NewSemanticService(scorer, q, bucket, env.storage, env.attempts,
		env.attemptRepo, env.assignments, env.cfg)
	svc.sleep = func(time.Duration) {} // 测试无需任务间隔

	return &semanticTestEnv{testEnv: env, svc: svc, queue: q, rdb: client, scorer: scorer}
}

// seedProcessingJob 铺一条声学已出分、等待语义评分的记录并取出队列消息
func seedProcessingJob(t *testing.T, se *semanticTestEnv, unit int) (*model.Attempt, *queue.Message) {
	t.Helper()
	assignment := seedAssignment(t, se.testEnv, "KET", unit)
	examinee := seedExaminee(t, se.testEnv, "20240001")
	attempt := seedAttempt(t, se.testEnv, examinee, assignment, model.AttemptPending)
	_, err := se.attempts.ApplyPhoneticResult(attempt.ID, 17, sampleComponents)
	require.NoError(t, err)

	require.NoError(t, se.svc.SubmitAudio(context.Background(), attempt.ID,
		strings.NewReader("answer-audio"), 12, ".m4a", "audio/mp4"))

	msg, err := se.queue.Fetch(context.Background(), "test-consumer", 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, msg)
	return attempt, msg
}

func TestSemanticSubmitAudioPublishesJob(t *testing.T) {
	se := newSemanticEnv(t)
	attempt, msg := seedProcessingJob(t, se, 1)

	got, err := se.attemptRepo.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptProcessing, got.Status)
	assert.Regexp(t, `^audio/\d{4}/\d{2}/`, got.SemanticAudioKey)

	var job model.SemanticJob
	require.NoError(t, json.Unmarshal(msg.Payload, &job))
	assert.Equal(t, attempt.ID, job.AttemptID)
	assert.Equal(t, got.SemanticAudioKey, job.AudioKey)
	assert.NotEmpty(t, job.JobID)
	assert.EqualValues(t, 1, msg.Deliveries, "首次投递")
}

func TestSemanticSubmitAudioGuards(t *testing.T) {
	se := newSemanticEnv(t)
	assignment := seedAssignment(t, se.testEnv, "KET", 1)
	examinee := seedExaminee(t, se.testEnv, "20240001")
	ctx := context.Background()

	for _, status := range []model.AttemptStatus{
		model.AttemptProcessing, model.AttemptCompleted, model.AttemptFailed,
	} {
		attempt := seedAttempt(t, se.testEnv, examinee, assignment, status)
		err := se.svc.SubmitAudio(ctx, attempt.ID, strings.NewReader("x"), 1, ".m4a", "audio/mp4")
		assert.ErrorIs(t, err, util.ErrInvalidTransition, "status=%s", status)
	}

	// 已有音频在途的记录拒绝重复提交
	busy := seedAttempt(t, se.testEnv, examinee, assignment, model.AttemptPending)
	require.NoError(t, se.db.Model(&model.Attempt{}).Where("id = ?", busy.ID).
		UpdateColumn("semantic_audio_key", "audio/inflight.m4a").Error)
	err := se.svc.SubmitAudio(ctx, busy.ID, strings.NewReader("x"), 1, ".m4a", "audio/mp4")
	assert.ErrorIs(t, err, util.ErrSessionBusy)
}

func TestHandleCompletesAttempt(t *testing.T) {
	se := newSemanticEnv(t)
	attempt, msg := seedProcessingJob(t, se, 1)

	se.svc.handle(context.Background(), msg)

	got, err := se.attemptRepo.FindByIDWithItems(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, got.Status)
	require.NotNil(t, got.SemanticScore)
	assert.Equal(t, 24, *got.SemanticScore)
	assert.Len(t, got.ItemScores, 12)

	assert.Equal(t, 1, se.scorer.callCount())
	se.scorer.mu.Lock()
	assert.Equal(t, "/uploads/"+got.SemanticAudioKey, se.scorer.lastURL, "评分器拿到的是可下载地址")
	assert.Equal(t, 12, se.scorer.lastCount)
	se.scorer.mu.Unlock()

	// 成功即确认,队列清空
	depth, err := se.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, depth)
}

func TestHandlePoisonMessage(t *testing.T) {
	se := newSemanticEnv(t)
	ctx := context.Background()

	for _, payload := range []string{"not-json", `{"attempt_id":0}`} {
		_, err := se.queue.Publish(ctx, []byte(payload))
		require.NoError(t, err)
		msg, err := se.queue.Fetch(ctx, "test-consumer", 50*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, msg)

		se.svc.handle(ctx, msg)
	}

	assert.Equal(t, 0, se.scorer.callCount())
	depth, err := se.queue.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, depth, "毒消息确认后丢弃")

	dead, err := se.rdb.XRange(ctx, se.cfg.Semantic.DeadLetterStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, dead, 2)
	assert.Equal(t, "unparseable payload", dead[0].Values["reason"])
}

func TestHandleOrphanJob(t *testing.T) {
	se := newSemanticEnv(t)
	ctx := context.Background()

	payload, err := json.Marshal(model.SemanticJob{JobID: "j1", AttemptID: 424242, AudioKey: "audio/x.m4a"})
	require.NoError(t, err)
	_, err = se.queue.Publish(ctx, payload)
	require.NoError(t, err)
	msg, err := se.queue.Fetch(ctx, "test-consumer", 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, msg)

	se.svc.handle(ctx, msg)

	assert.Equal(t, 0, se.scorer.callCount())
	depth, err := se.queue.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, depth, "孤儿任务直接确认")
}

func TestHandleSkipsSettledAttempt(t *testing.T) {
	se := newSemanticEnv(t)
	assignment := seedAssignment(t, se.testEnv, "KET", 1)
	examinee := seedExaminee(t, se.testEnv, "20240001")
	ctx := context.Background()

	terminal := []struct {
		name   string
		status model.AttemptStatus
	}{
		{"completed", model.AttemptCompleted},
		{"failed non-retryable", model.AttemptFailed},
	}
	for _, tc := range terminal {
		t.Run(tc.name, func(t *testing.T) {
			attempt := seedAttempt(t, se.testEnv, examinee, assignment, tc.status)
			payload, err := json.Marshal(model.SemanticJob{JobID: "j", AttemptID: attempt.ID, AudioKey: "audio/x.m4a"})
			require.NoError(t, err)
			_, err = se.queue.Publish(ctx, payload)
			require.NoError(t, err)
			msg, err := se.queue.Fetch(ctx, "test-consumer", 50*time.Millisecond)
			require.NoError(t, err)
			require.NotNil(t, msg)

			se.svc.handle(ctx, msg)

			depth, err := se.queue.Depth(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 0, depth)
		})
	}
	assert.Equal(t, 0, se.scorer.callCount())
}

func TestHandleTransientFailureLeavesMessage(t *testing.T) {
	se := newSemanticEnv(t)
	se.scorer.fn = func() (*SemanticOutcome, error) { return nil, errors.New("upstream 500") }
	attempt, msg := seedProcessingJob(t, se, 1)

	se.svc.handle(context.Background(), msg)

	// 首次失败不确认,消息留在队列等待租约超时重投
	depth, err := se.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)

	got, err := se.attemptRepo.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptProcessing, got.Status)
	assert.Equal(t, 1, got.RetryCount)
}

func TestHandleDeadLettersAfterRetriesExhausted(t *testing.T) {
	se := newSemanticEnv(t)
	se.scorer.fn = func() (*SemanticOutcome, error) { return nil, errors.New("upstream 500") }
	attempt, fetched := seedProcessingJob(t, se, 1)

	// 最后一次投递:计数已达上限
	msg := &queue.Message{
		ID:         fetched.ID,
		Payload:    fetched.Payload,
		Deliveries: int64(se.cfg.Semantic.MaxRetries),
	}
	se.svc.handle(context.Background(), msg)

	got, err := se.attemptRepo.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptFailed, got.Status)
	assert.Equal(t, model.ReasonSemanticExhausted, got.FailureReason)
	assert.Equal(t, model.FailureClassSystem, got.FailureClass)
	assert.True(t, got.Retryable, "运维重投后仍可恢复")

	ctx := context.Background()
	dead, err := se.rdb.XRange(ctx, se.cfg.Semantic.DeadLetterStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, model.ReasonSemanticExhausted, dead[0].Values["reason"])
	assert.Equal(t, string(fetched.Payload), dead[0].Values["payload"])

	depth, err := se.queue.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, depth, "死信后原消息确认")
}

func TestHandleMalformedResultReason(t *testing.T) {
	se := newSemanticEnv(t)
	se.scorer.fn = func() (*SemanticOutcome, error) {
		return nil, fmt.Errorf("%w: 题目数 3", util.ErrMalformedResult)
	}
	attempt, fetched := seedProcessingJob(t, se, 1)

	msg := &queue.Message{
		ID:         fetched.ID,
		Payload:    fetched.Payload,
		Deliveries: int64(se.cfg.Semantic.MaxRetries),
	}
	se.svc.handle(context.Background(), msg)

	got, err := se.attemptRepo.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptFailed, got.Status)
	assert.Equal(t, model.ReasonMalformedResult, got.FailureReason)

	dead, err := se.rdb.XRange(context.Background(), se.cfg.Semantic.DeadLetterStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, model.ReasonMalformedResult, dead[0].Values["reason"])
}

func TestHandleKeepsMessageWhenBudgetUnavailable(t *testing.T) {
	se := newSemanticEnv(t)
	attempt, msg := seedProcessingJob(t, se, 1)

	// 预算服务不可达时不消费也不确认
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	se.svc.handle(canceled, msg)

	assert.Equal(t, 0, se.scorer.callCount())
	depth, err := se.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)

	got, err := se.attemptRepo.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptProcessing, got.Status)
	assert.Equal(t, 0, got.RetryCount)
}

func TestWorkLoopProcessesPublishedJob(t *testing.T) {
	se := newSemanticEnv(t)
	assignment := seedAssignment(t, se.testEnv, "KET", 1)
	examinee := seedExaminee(t, se.testEnv, "20240001")
	attempt := seedAttempt(t, se.testEnv, examinee, assignment, model.AttemptPending)
	_, err := se.attempts.ApplyPhoneticResult(attempt.ID, 17, sampleComponents)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	se.svc.StartWorkers(ctx)

	require.NoError(t, se.svc.SubmitAudio(context.Background(), attempt.ID,
		strings.NewReader("answer-audio"), 12, ".m4a", "audio/mp4"))

	waitForStatus(t, se.testEnv, attempt.ID, model.AttemptCompleted)

	// 叫醒阻塞中的worker再关停
	cancel()
	orphan, _ := json.Marshal(model.SemanticJob{JobID: "wake", AttemptID: 999999})
	_, _ = se.queue.Publish(context.Background(), orphan)
	se.svc.Stop()
}
