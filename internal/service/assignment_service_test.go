package service

import (
	"testing"

	"oral_eval_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignmentListActiveOnly(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAssignmentService(env.assignments)
	seedAssignment(t, env, "KET", 1)
	seedAssignment(t, env, "KET", 2)
	retired := seedAssignment(t, env, "PET", 1)
	require.NoError(t, env.db.Model(retired).Update("active", false).Error)

	list, err := svc.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Unit)
	assert.Equal(t, 2, list[1].Unit)
}

func TestAssignmentGet(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAssignmentService(env.assignments)
	seeded := seedAssignment(t, env, "KET", 3)

	got, err := svc.Get(seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "KET 第3单元", got.Title)
	require.Len(t, got.Questions, 12)
	assert.Equal(t, 1, got.Questions[0].No, "题目按题号升序")
	assert.Equal(t, 12, got.Questions[11].No)

	_, err = svc.Get(999999)
	assert.ErrorIs(t, err, util.ErrAssignmentNotFound)
}

func TestAssignmentGetByScope(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAssignmentService(env.assignments)
	seeded := seedAssignment(t, env, "KET", 4)

	got, err := svc.GetByScope("KET", 4)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, got.ID)

	_, err = svc.GetByScope("KET", 99)
	assert.ErrorIs(t, err, util.ErrAssignmentNotFound)

	// 停用的试卷对签发不可见
	require.NoError(t, env.db.Model(seeded).Update("active", false).Error)
	_, err = svc.GetByScope("KET", 4)
	assert.ErrorIs(t, err, util.ErrAssignmentNotFound)
}
