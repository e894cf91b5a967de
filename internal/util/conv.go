package util

import (
	"strconv"
)

// MustParseUint 将字符串转换为无符号整数，解析失败或越界时返回 0
func MustParseUint(s string) uint {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}
