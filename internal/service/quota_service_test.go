package service

import (
	"sync"
	"testing"

	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	examinee := seedExaminee(t, env, "20240001")

	q, err := env.quota.Reserve(examinee.ID, "KET", 1)
	require.NoError(t, err)
	assert.Equal(t, model.QuotaInProgress, q.State)

	_, err = env.quota.Reserve(examinee.ID, "KET", 1)
	assert.ErrorIs(t, err, util.ErrQuotaConflict)

	// 其他单元互不影响
	_, err = env.quota.Reserve(examinee.ID, "KET", 2)
	assert.NoError(t, err)
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	examinee := seedExaminee(t, env, "20240001")

	const workers = 8
	var wg sync.WaitGroup
	wins := make(chan uint, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q, err := env.quota.Reserve(examinee.ID, "KET", 1); err == nil {
				wins <- q.ID
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []uint
	for id := range wins {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1, "同一名额并发预占只允许一个赢家")

	q, err := env.quotaRepo.FindByScope(examinee.ID, "KET", 1)
	require.NoError(t, err)
	assert.Equal(t, model.QuotaInProgress, q.State)
}

func TestEligibleStates(t *testing.T) {
	env := newTestEnv(t)
	examinee := seedExaminee(t, env, "20240001")

	ok, state, err := env.quota.Eligible(examinee.ID, "KET", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.QuotaNotStarted, state)

	q, err := env.quota.Reserve(examinee.ID, "KET", 1)
	require.NoError(t, err)

	ok, state, err = env.quota.Eligible(examinee.ID, "KET", 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.QuotaInProgress, state)

	_, err = env.quotaRepo.Transition(q.ID, model.QuotaInProgress, model.QuotaCompleted, nil)
	require.NoError(t, err)

	ok, state, err = env.quota.Eligible(examinee.ID, "KET", 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.QuotaCompleted, state)
}

func TestMarkCompletedIdempotent(t *testing.T) {
	env := newTestEnv(t)
	assignment := seedAssignment(t, env, "KET", 1)
	examinee := seedExaminee(t, env, "20240001")

	quota, err := env.quota.Reserve(examinee.ID, "KET", 1)
	require.NoError(t, err)
	attempt := seedAttempt(t, env, examinee, assignment, model.AttemptCompleted)
	require.NoError(t, env.quota.AttachAttempt(quota.ID, attempt.ID))

	require.NoError(t, env.quota.MarkCompleted(attempt))
	require.NoError(t, env.quota.MarkCompleted(attempt), "重复收口无副作用")

	q, err := env.quotaRepo.FindByID(quota.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuotaCompleted, q.State)
	require.NotNil(t, q.AttemptID)
	assert.Equal(t, attempt.ID, *q.AttemptID)
}

func TestMarkCompletedWithoutQuotaRow(t *testing.T) {
	env := newTestEnv(t)
	assignment := seedAssignment(t, env, "KET", 1)
	examinee := seedExaminee(t, env, "20240001")
	attempt := seedAttempt(t, env, examinee, assignment, model.AttemptCompleted)

	// 名额缺失仅告警,不阻塞测评收口
	assert.NoError(t, env.quota.MarkCompleted(attempt))
}

// resetFixture 重置用例的公共铺垫:in_progress 名额挂一个 failed 测评
func resetFixture(t *testing.T, env *testEnv, unit int, reason string, class model.FailureClass) (*model.User, *model.QuotaRecord, *model.Attempt) {
	t.Helper()
	assignment := seedAssignment(t, env, "KET", unit)
	examinee := seedExaminee(t, env, "20240001")
	quota, err := env.quota.Reserve(examinee.ID, "KET", unit)
	require.NoError(t, err)
	attempt := seedAttempt(t, env, examinee, assignment, model.AttemptPending)
	require.NoError(t, env.quota.AttachAttempt(quota.ID, attempt.ID))
	require.NoError(t, env.attempts.Fail(attempt.ID, reason, class, false))
	return examinee, quota, attempt
}

func TestResetHappyPath(t *testing.T) {
	env := newTestEnv(t)
	proctor := &model.User{Username: "proctor01", Role: model.RoleProctor}
	require.NoError(t, env.db.Create(proctor).Error)

	examinee, quota, _ := resetFixture(t, env, 1, model.ReasonSessionTimeout, model.FailureClassSystem)

	require.NoError(t, env.quota.Reset(examinee.ID, "KET", 1, proctor, "10.0.0.1"))

	q, err := env.quotaRepo.FindByID(quota.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuotaNotStarted, q.State)
	assert.Nil(t, q.AttemptID)
	assert.Equal(t, 1, q.ResetCount)
	assert.NotNil(t, q.LastResetAt)
	require.NotNil(t, q.LastResetBy)
	assert.Equal(t, proctor.ID, *q.LastResetBy)

	// 重置后可重新预占
	_, err = env.quota.Reserve(examinee.ID, "KET", 1)
	assert.NoError(t, err)
}

func TestResetDenials(t *testing.T) {
	env := newTestEnv(t)
	proctor := &model.User{Username: "proctor01", Role: model.RoleProctor}
	require.NoError(t, env.db.Create(proctor).Error)
	student := &model.User{Username: "student01", Role: model.RoleExaminee}
	require.NoError(t, env.db.Create(student).Error)

	t.Run("examinee role denied", func(t *testing.T) {
		examinee, _, _ := resetFixture(t, env, 1, model.ReasonSessionTimeout, model.FailureClassSystem)
		err := env.quota.Reset(examinee.ID, "KET", 1, student, "10.0.0.1")
		assert.ErrorIs(t, err, util.ErrPermissionDenied)
	})

	t.Run("no quota row", func(t *testing.T) {
		err := env.quota.Reset(424242, "KET", 9, proctor, "10.0.0.1")
		assert.ErrorIs(t, err, util.ErrResetNotAllowed)
	})

	t.Run("quota not in progress", func(t *testing.T) {
		examinee := seedExaminee(t, env, "20240001")
		_, err := env.quotaRepo.FindOrCreate(examinee.ID, "PET", 2)
		require.NoError(t, err)
		err = env.quota.Reset(examinee.ID, "PET", 2, proctor, "10.0.0.1")
		assert.ErrorIs(t, err, util.ErrResetNotAllowed)
	})

	t.Run("attempt not failed", func(t *testing.T) {
		assignment := seedAssignment(t, env, "PET", 3)
		examinee := seedExaminee(t, env, "20240001")
		quota, err := env.quota.Reserve(examinee.ID, "PET", 3)
		require.NoError(t, err)
		attempt := seedAttempt(t, env, examinee, assignment, model.AttemptProcessing)
		require.NoError(t, env.quota.AttachAttempt(quota.ID, attempt.ID))
		err = env.quota.Reset(examinee.ID, "PET", 3, proctor, "10.0.0.1")
		assert.ErrorIs(t, err, util.ErrResetNotAllowed)
	})

	t.Run("user-class failure denied", func(t *testing.T) {
		examinee, _, _ := resetFixture(t, env, 5, model.ReasonAbandoned, model.FailureClassUser)
		err := env.quota.Reset(examinee.ID, "KET", 5, proctor, "10.0.0.1")
		assert.ErrorIs(t, err, util.ErrResetNotAllowed)
	})
}

func TestResetCapReached(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Assess.ResetsAllowedPerQuota = 1
	admin := &model.User{Username: "admin01", Role: model.RoleAdmin}
	require.NoError(t, env.db.Create(admin).Error)

	examinee, quota, _ := resetFixture(t, env, 1, model.ReasonSessionTimeout, model.FailureClassSystem)
	require.NoError(t, env.quota.Reset(examinee.ID, "KET", 1, admin, "10.0.0.1"))

	// 第二轮:重新预占、再次失败,重置次数已到上限
	assignment, err := env.assignments.FindActiveByLevelUnit("KET", 1)
	require.NoError(t, err)
	q2, err := env.quota.Reserve(examinee.ID, "KET", 1)
	require.NoError(t, err)
	require.Equal(t, quota.ID, q2.ID)
	attempt := seedAttempt(t, env, examinee, assignment, model.AttemptPending)
	require.NoError(t, env.quota.AttachAttempt(q2.ID, attempt.ID))
	require.NoError(t, env.attempts.Fail(attempt.ID, model.ReasonSessionTimeout, model.FailureClassSystem, false))

	err = env.quota.Reset(examinee.ID, "KET", 1, admin, "10.0.0.1")
	assert.ErrorIs(t, err, util.ErrResetCapReached)
}

func TestReasonClassifier(t *testing.T) {
	cases := []struct {
		name    string
		attempt model.Attempt
		want    model.FailureClass
	}{
		{"stored class wins", model.Attempt{FailureClass: model.FailureClassUser, FailureReason: model.ReasonSessionTimeout}, model.FailureClassUser},
		{"audio unreadable", model.Attempt{FailureReason: model.ReasonAudioUnreadable}, model.FailureClassUser},
		{"abandoned", model.Attempt{FailureReason: model.ReasonAbandoned}, model.FailureClassUser},
		{"stream disconnected", model.Attempt{FailureReason: model.ReasonStreamDisconnected}, model.FailureClassSystem},
		{"unknown reason", model.Attempt{FailureReason: "mystery"}, model.FailureClassSystem},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ReasonClassifier{}.Classify(&tc.attempt))
		})
	}
}

type staticClassifier struct{ class model.FailureClass }

func (s staticClassifier) Classify(*model.Attempt) model.FailureClass { return s.class }

func TestChainClassifier(t *testing.T) {
	stored := &model.Attempt{FailureClass: model.FailureClassUser}
	bare := &model.Attempt{FailureReason: model.ReasonStreamDisconnected}

	chain := ChainClassifier{Probe: staticClassifier{class: model.FailureClassUser}}
	assert.Equal(t, model.FailureClassUser, chain.Classify(stored), "已落库归因优先")
	assert.Equal(t, model.FailureClassUser, chain.Classify(bare), "缺失时退回探针")

	noProbe := ChainClassifier{}
	assert.Equal(t, model.FailureClassSystem, noProbe.Classify(bare))
}
