package util

import (
	"errors"
	"time"

	"oral_eval_backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims 自定义JWT声明
// AttemptID 仅在考生会话中携带,用于将考生限定在自己的测评上
type Claims struct {
	UserID    uint   `json:"user_id"`
	Role      string `json:"role"`
	AttemptID uint   `json:"attempt_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateJWT 为监考/管理员签发会话令牌
func GenerateJWT(userID uint, role string, cfg *config.Config) (string, error) {
	expirationTime := time.Now().Add(time.Duration(cfg.JWT.ExpireHours) * time.Hour)
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWT.Secret))
}

// GenerateExamineeJWT 兑换入场令牌成功后为考生签发短时会话
func GenerateExamineeJWT(userID uint, attemptID uint, cfg *config.Config) (string, error) {
	expirationTime := time.Now().Add(time.Duration(cfg.JWT.ExamineeExpireMinutes) * time.Minute)
	claims := &Claims{
		UserID:    userID,
		Role:      "examinee",
		AttemptID: attemptID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWT.Secret))
}

// GetUserFromContext 取出认证中间件写入的会话声明,未认证时返回nil
func GetUserFromContext(c *gin.Context) *Claims {
	v, exists := c.Get("user")
	if !exists {
		return nil
	}
	claims, ok := v.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// ParseJWT 解析并校验会话令牌
func ParseJWT(tokenString string, cfg *config.Config) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
