package middleware

import (
	"strings"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/util"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg)
		if err != nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			// 管理员拥有监考的全部权限,直接放行
			if user.Role == string(model.RoleAdmin) {
				hasRole = true
				break
			}
			if user.Role == string(role) {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// AttemptGuard 考生会话只能操作自己令牌对应的那一次测评
// 监考与管理员不受限制
func AttemptGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if user.Role != string(model.RoleExaminee) {
			c.Next()
			return
		}

		id := util.MustParseUint(c.Param("id"))
		if id == 0 || id != user.AttemptID {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
