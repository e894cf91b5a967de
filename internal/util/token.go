package util

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewOpaqueToken 生成不可猜测的URL安全令牌
// nBytes 为熵字节数,入场/分享令牌均要求不低于32字节
func NewOpaqueToken(nBytes int) (string, error) {
	if nBytes < 32 {
		nBytes = 32
	}
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成随机令牌失败: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewObjectSuffix 生成对象键的随机后缀
func NewObjectSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "00000000"
	}
	return fmt.Sprintf("%x", buf)
}
