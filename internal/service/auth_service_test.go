package service

import (
	"strings"
	"testing"

	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(env *testEnv) *AuthService {
	return NewAuthService(env.users, env.cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)

	user := &model.User{Username: "teacher01", Password: "s3cret-pass", DisplayName: "王老师"}
	require.NoError(t, svc.Register(user))

	assert.NotEqual(t, "s3cret-pass", user.Password, "密码必须散列存储")
	assert.True(t, strings.HasPrefix(user.Password, "$2a$"))
	assert.Equal(t, model.RoleProctor, user.Role, "未指定角色时默认监考")

	token, logged, err := svc.Login("teacher01", "s3cret-pass")
	require.NoError(t, err)
	require.NotNil(t, logged)
	assert.Equal(t, user.ID, logged.ID)

	claims, err := util.ParseJWT(token, env.cfg)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "proctor", claims.Role)

	refreshed, err := svc.GetUser(user.ID)
	require.NoError(t, err)
	assert.NotNil(t, refreshed.LastLoginAt, "登录后记录时间")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	require.NoError(t, svc.Register(&model.User{Username: "teacher02", Password: "right-pass"}))

	_, _, err := svc.Login("teacher02", "wrong-pass")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	_, _, err = svc.Login("no-such-user", "whatever")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}

func TestLoginRejectsExaminee(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	examinee := seedExaminee(t, env, "20240001")

	// 考生档案无密码,不可凭账号入口登录
	_, _, err := svc.Login(examinee.Username, "")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	require.NoError(t, svc.Register(&model.User{Username: "teacher03", Password: "pass-one"}))

	err := svc.Register(&model.User{Username: "teacher03", Password: "pass-two"})
	assert.ErrorIs(t, err, util.ErrUsernameTaken)
}

func TestGetUserNotFound(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)

	_, err := svc.GetUser(404404)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}
