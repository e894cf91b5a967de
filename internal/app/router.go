package app

import (
	"oral_eval_backend/docs"
	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/middleware"
	"oral_eval_backend/internal/model"
	"oral_eval_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 考生路由:兑换入场令牌后凭短时会话访问,只能操作自己的测评
	a.registerExamineeRoutes(router, c, cfg)

	// 监考/管理员路由
	a.registerProctorRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		// 入场令牌兑换:考生的唯一入口,无需预先登录
		public.POST("/redeem", c.token.Redeem)

		// 分享令牌查看成绩:免登录
		public.GET("/shared/:token", c.report.GetShared)
	}
}

func (a *App) registerExamineeRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	attempts := router.Group("/api/attempts")
	attempts.Use(middleware.AuthMiddleware(cfg), middleware.AttemptGuard())
	{
		attempts.GET("/:id", c.attempt.Get)
		attempts.POST("/:id/phase1", c.attempt.SubmitPhase1)
		attempts.POST("/:id/phase2", c.attempt.SubmitPhase2)
		attempts.POST("/:id/abandon", c.attempt.Abandon)
		attempts.GET("/:id/report", c.report.Get)
	}
}

func (a *App) registerProctorRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	proctor := router.Group("/api")
	proctor.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.RoleProctor))
	{
		proctor.GET("/profile", c.auth.GetProfile)

		proctor.POST("/tokens/entry", c.token.IssueEntry)
		proctor.GET("/tokens/entry", c.token.ListEntry)
		proctor.DELETE("/tokens/entry/:token", c.token.RevokeEntry)
		proctor.POST("/tokens/share", c.token.IssueShare)
		proctor.DELETE("/tokens/share/:token", c.token.RevokeShare)

		proctor.GET("/assignments", c.assignment.List)
		proctor.GET("/assignments/:id", c.assignment.Get)
		proctor.GET("/assignments/:id/attempts", c.attempt.ListByAssignment)

		proctor.POST("/quotas/reset", c.quota.Reset)
		proctor.GET("/quotas/eligibility", c.quota.Eligibility)
	}
}
