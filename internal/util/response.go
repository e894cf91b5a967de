package util

import (
	"errors"
	"net/http"

	"oral_eval_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err))
	InternalServerError(c)
}

// BusinessError 将业务哨兵错误映射为对应的HTTP状态码
// 未识别的错误按500处理并记录日志
func BusinessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTokenNotFound),
		errors.Is(err, ErrAttemptNotFound),
		errors.Is(err, ErrAssignmentNotFound),
		errors.Is(err, ErrUserNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenUsed),
		errors.Is(err, ErrTokenRevoked):
		Error(c, http.StatusGone, err.Error())
	case errors.Is(err, ErrQuotaConflict),
		errors.Is(err, ErrSessionBusy):
		Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrAttemptNotTerminal),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrResetNotAllowed),
		errors.Is(err, ErrResetCapReached),
		errors.Is(err, ErrMalformedResult):
		Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		Error(c, http.StatusForbidden, err.Error())
	default:
		LogInternalError(c, err)
	}
}
