package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEvaluator 按脚本逐次返回结果的假评分器,超出脚本后复用最后一项
type scriptedEvaluator struct {
	mu        sync.Mutex
	calls     int
	lastRef   string
	lastAudio []byte
	script    []func() (*StreamOutcome, error)
}

func (e *scriptedEvaluator) EvaluateStream(ctx context.Context, audio io.Reader, ref string) (*StreamOutcome, error) {
	data, _ := io.ReadAll(audio)
	e.mu.Lock()
	idx := e.calls
	e.calls++
	e.lastRef = ref
	e.lastAudio = data
	e.mu.Unlock()
	if idx >= len(e.script) {
		idx = len(e.script) - 1
	}
	return e.script[idx]()
}

func (e *scriptedEvaluator) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func okOutcome() (*StreamOutcome, error) {
	return &StreamOutcome{Components: sampleComponents, Score: 18}, nil
}

func newPhoneticService(t *testing.T, env *testEnv, eval *scriptedEvaluator) (*PhoneticService, *WaitingRoom) {
	t.Helper()
	room := NewWaitingRoom(env.cfg.Phonetic.MaxSessions, time.Hour, nil)
	t.Cleanup(room.Stop)
	svc := NewPhoneticService(eval, room, env.storage, env.attempts, env.attemptRepo, env.assignments, env.cfg)
	t.Cleanup(svc.Stop)
	return svc, room
}

// seedPendingWithAudio 铺一条已存朗读音频的 pending 记录,不拉起会话
func seedPendingWithAudio(t *testing.T, env *testEnv, unit int) *model.Attempt {
	t.Helper()
	assignment := seedAssignment(t, env, "KET", unit)
	examinee := seedExaminee(t, env, "20240001")
	attempt := seedAttempt(t, env, examinee, assignment, model.AttemptPending)
	key := AudioObjectKey(attempt.ID, util.StagePhonetic, util.NewObjectSuffix(), ".wav")
	_, err := env.storage.Upload(context.Background(), key, strings.NewReader("fake-pcm"), 8, "audio/wav")
	require.NoError(t, err)
	require.NoError(t, env.attemptRepo.SetPhoneticAudioKey(attempt.ID, key))
	return attempt
}

func waitForStatus(t *testing.T, env *testEnv, id uint, want model.AttemptStatus) *model.Attempt {
	t.Helper()
	var got *model.Attempt
	require.Eventually(t, func() bool {
		a, err := env.attemptRepo.FindByID(id)
		if err != nil || a.Status != want {
			return false
		}
		got = a
		return true
	}, 2*time.Second, 10*time.Millisecond)
	return got
}

func TestSubmitAudioRunsSession(t *testing.T) {
	env := newTestEnv(t)
	eval := &scriptedEvaluator{script: []func() (*StreamOutcome, error){okOutcome}}
	svc, _ := newPhoneticService(t, env, eval)

	assignment := seedAssignment(t, env, "KET", 1)
	examinee := seedExaminee(t, env, "20240001")
	attempt := seedAttempt(t, env, examinee, assignment, model.AttemptPending)

	err := svc.SubmitAudio(context.Background(), attempt.ID,
		strings.NewReader("fake-pcm-bytes"), 14, ".wav", "audio/wav")
	require.NoError(t, err)

	got := waitForStatus(t, env, attempt.ID, model.AttemptPhase1Done)
	require.NotNil(t, got.PhoneticScore)
	assert.Equal(t, 18, *got.PhoneticScore)
	assert.Regexp(t, `^audio/\d{4}/\d{2}/`, got.PhoneticAudioKey)

	eval.mu.Lock()
	defer eval.mu.Unlock()
	assert.Equal(t, assignment.ReferenceText, eval.lastRef, "朗读评分对照试卷参照文本")
	assert.Equal(t, "fake-pcm-bytes", string(eval.lastAudio), "推流内容即落库音频")
}

func TestSubmitAudioGuards(t *testing.T) {
	env := newTestEnv(t)
	eval := &scriptedEvaluator{script: []func() (*StreamOutcome, error){okOutcome}}
	svc, _ := newPhoneticService(t, env, eval)
	assignment := seedAssignment(t, env, "KET", 1)
	examinee := seedExaminee(t, env, "20240001")

	t.Run("unknown attempt", func(t *testing.T) {
		err := svc.SubmitAudio(context.Background(), 99999, strings.NewReader("x"), 1, ".wav", "audio/wav")
		assert.Error(t, err)
	})

	t.Run("not pending", func(t *testing.T) {
		attempt := seedAttempt(t, env, examinee, assignment, model.AttemptCompleted)
		err := svc.SubmitAudio(context.Background(), attempt.ID, strings.NewReader("x"), 1, ".wav", "audio/wav")
		assert.ErrorIs(t, err, util.ErrInvalidTransition)
	})

	t.Run("repeated upload", func(t *testing.T) {
		attempt := seedAttempt(t, env, examinee, assignment, model.AttemptPending)
		require.NoError(t, env.attemptRepo.SetPhoneticAudioKey(attempt.ID, "audio/existing.wav"))
		err := svc.SubmitAudio(context.Background(), attempt.ID, strings.NewReader("x"), 1, ".wav", "audio/wav")
		assert.ErrorIs(t, err, util.ErrSessionBusy)
	})
}

func TestRunSessionProviderRejected(t *testing.T) {
	env := newTestEnv(t)
	eval := &scriptedEvaluator{script: []func() (*StreamOutcome, error){
		func() (*StreamOutcome, error) { return nil, ErrProviderRejected },
	}}
	svc, _ := newPhoneticService(t, env, eval)
	attempt := seedPendingWithAudio(t, env, 1)

	svc.runSession(attempt.ID)

	got, err := env.attemptRepo.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptFailed, got.Status)
	assert.Equal(t, model.ReasonProviderRejected, got.FailureReason)
	assert.Equal(t, model.FailureClassUser, got.FailureClass)
	assert.False(t, got.Retryable, "明确拒绝不参与补扫")
	assert.Equal(t, 1, got.StreamAttempts)
	assert.Equal(t, 1, eval.callCount(), "拒绝不重试")
}

func TestRunSessionRetriesExhausted(t *testing.T) {
	env := newTestEnv(t)
	eval := &scriptedEvaluator{script: []func() (*StreamOutcome, error){
		func() (*StreamOutcome, error) { return nil, errors.New("connection reset") },
	}}
	svc, _ := newPhoneticService(t, env, eval)
	attempt := seedPendingWithAudio(t, env, 1)

	svc.runSession(attempt.ID)

	got, err := env.attemptRepo.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptFailed, got.Status)
	assert.Equal(t, model.ReasonStreamDisconnected, got.FailureReason)
	assert.Equal(t, model.FailureClassSystem, got.FailureClass)
	assert.True(t, got.Retryable)
	assert.Equal(t, env.cfg.Phonetic.MaxConnectRetries, got.StreamAttempts)
}

func TestRunSessionRecoversOnRetry(t *testing.T) {
	env := newTestEnv(t)
	eval := &scriptedEvaluator{script: []func() (*StreamOutcome, error){
		func() (*StreamOutcome, error) { return nil, errors.New("connection reset") },
		okOutcome,
	}}
	svc, _ := newPhoneticService(t, env, eval)
	attempt := seedPendingWithAudio(t, env, 1)

	svc.runSession(attempt.ID)

	got, err := env.attemptRepo.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptPhase1Done, got.Status)
	require.NotNil(t, got.PhoneticScore)
	assert.Equal(t, 18, *got.PhoneticScore)
	assert.Equal(t, 1, got.StreamAttempts, "仅失败的连接计数")
	assert.Equal(t, 2, eval.callCount())
}

func TestRunSessionSkipsAlreadyScored(t *testing.T) {
	env := newTestEnv(t)
	eval := &scriptedEvaluator{script: []func() (*StreamOutcome, error){okOutcome}}
	svc, _ := newPhoneticService(t, env, eval)
	attempt := seedPendingWithAudio(t, env, 1)

	_, err := env.attempts.ApplyPhoneticResult(attempt.ID, 16, sampleComponents)
	require.NoError(t, err)

	// 重复拉起不再评分,得分保持不变
	svc.runSession(attempt.ID)
	assert.Equal(t, 0, eval.callCount())

	got, err := env.attemptRepo.FindByID(attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PhoneticScore)
	assert.Equal(t, 16, *got.PhoneticScore)
}

func TestRunSessionSkipsNonRetryableFailure(t *testing.T) {
	env := newTestEnv(t)
	eval := &scriptedEvaluator{script: []func() (*StreamOutcome, error){okOutcome}}
	svc, _ := newPhoneticService(t, env, eval)
	attempt := seedPendingWithAudio(t, env, 1)
	require.NoError(t, env.attempts.Fail(attempt.ID, model.ReasonAudioUnreadable, model.FailureClassUser, false))

	svc.runSession(attempt.ID)
	assert.Equal(t, 0, eval.callCount())
}

func TestRunSessionTimesOutInQueue(t *testing.T) {
	env := newTestEnv(t)
	eval := &scriptedEvaluator{script: []func() (*StreamOutcome, error){okOutcome}}
	room := NewWaitingRoom(1, time.Hour, nil)
	t.Cleanup(room.Stop)
	svc := NewPhoneticService(eval, room, env.storage, env.attempts, env.attemptRepo, env.assignments, env.cfg)

	blocker, err := room.Acquire(context.Background(), 999)
	require.NoError(t, err)
	defer blocker()

	attempt := seedPendingWithAudio(t, env, 1)
	svc.StartSession(attempt.ID)
	require.Eventually(t, func() bool { return svc.WaitingPosition(attempt.ID) == 1 },
		time.Second, 5*time.Millisecond)

	// 关停把排队中的会话按超时失败落库
	svc.Stop()

	got, ferr := env.attemptRepo.FindByID(attempt.ID)
	require.NoError(t, ferr)
	assert.Equal(t, model.AttemptFailed, got.Status)
	assert.Equal(t, model.ReasonSessionTimeout, got.FailureReason)
	assert.Equal(t, model.FailureClassSystem, got.FailureClass)
	assert.True(t, got.Retryable)
	assert.Equal(t, 0, eval.callCount())
}

func TestSweepOnceRelaunchesCandidates(t *testing.T) {
	env := newTestEnv(t)
	eval := &scriptedEvaluator{script: []func() (*StreamOutcome, error){okOutcome}}
	svc, _ := newPhoneticService(t, env, eval)

	// 可重试失败的候选
	retryable := seedPendingWithAudio(t, env, 1)
	require.NoError(t, env.attempts.Fail(retryable.ID, model.ReasonStreamDisconnected, model.FailureClassSystem, true))

	// 实例重启遗留的停摆记录:音频在库但长时间无写入
	stalled := seedPendingWithAudio(t, env, 2)
	old := time.Now().Add(-5 * time.Minute)
	require.NoError(t, env.db.Model(&model.Attempt{}).Where("id = ?", stalled.ID).
		UpdateColumn("updated_at", old).Error)

	// 新鲜的 pending 不在补扫范围
	fresh := seedPendingWithAudio(t, env, 3)

	svc.sweepOnce()

	waitForStatus(t, env, retryable.ID, model.AttemptPhase1Done)
	waitForStatus(t, env, stalled.ID, model.AttemptPhase1Done)
	assert.Equal(t, 2, eval.callCount())

	got, err := env.attemptRepo.FindByID(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptPending, got.Status)
	assert.Nil(t, got.PhoneticScore)
}
