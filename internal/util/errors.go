package util

import "errors"

// 业务哨兵错误,controller 层据此映射HTTP状态码
var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUsernameTaken      = errors.New("该用户名已被注册")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrPermissionDenied   = errors.New("无权执行该操作")

	// 令牌类错误,对客户端可见且不可重试
	ErrTokenNotFound = errors.New("令牌不存在")
	ErrTokenExpired  = errors.New("令牌已过期")
	ErrTokenUsed     = errors.New("令牌已被使用")
	ErrTokenRevoked  = errors.New("令牌已被撤销")

	// 名额账本
	ErrQuotaConflict   = errors.New("该考生在此单元已有进行中或已完成的测评")
	ErrResetNotAllowed = errors.New("当前失败不满足重置条件")
	ErrResetCapReached = errors.New("重置次数已达上限")

	// 测评状态机
	ErrAttemptNotFound    = errors.New("测评记录不存在")
	ErrAttemptNotTerminal = errors.New("测评尚未完成")
	ErrInvalidTransition  = errors.New("非法的状态流转")

	ErrAssignmentNotFound = errors.New("试卷不存在或未启用")
	ErrMalformedResult    = errors.New("评分结果结构非法")
	ErrSessionBusy        = errors.New("该测评已有进行中的评分会话")
)
