package controller

import (
	"oral_eval_backend/internal/service"
	"oral_eval_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ReportController struct {
	ReportService *service.ReportService
	TokenService  *service.TokenService
}

func NewReportController(reportService *service.ReportService, tokenService *service.TokenService) *ReportController {
	return &ReportController{
		ReportService: reportService,
		TokenService:  tokenService,
	}
}

// Get godoc
// @Summary 获取成绩报告
// @Description 装配指定测评的成绩报告;仅已完成的测评可装配,音频地址为限时预签名URL
// @Tags 报告
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测评ID"
// @Success 200 {object} util.Response{data=service.Report} "成功"
// @Failure 404 {object} util.Response "测评不存在"
// @Failure 422 {object} util.Response "测评尚未完成"
// @Router /api/attempts/{id}/report [get]
func (c *ReportController) Get(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	report, err := c.ReportService.Assemble(ctx.Request.Context(), id)
	if err != nil {
		util.BusinessError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// GetShared godoc
// @Summary 通过分享令牌查看成绩报告
// @Description 免登录入口;令牌过期或被撤销后立即失效,撤销对缓存同样生效
// @Tags 报告
// @Produce  json
// @Param   token path string true "分享令牌"
// @Success 200 {object} util.Response{data=service.Report} "成功"
// @Failure 404 {object} util.Response "令牌不存在"
// @Failure 410 {object} util.Response "令牌已过期或已撤销"
// @Router /api/shared/{token} [get]
func (c *ReportController) GetShared(ctx *gin.Context) {
	attemptID, err := c.TokenService.ResolveShareToken(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		util.BusinessError(ctx, err)
		return
	}

	report, err := c.ReportService.Assemble(ctx.Request.Context(), attemptID)
	if err != nil {
		util.BusinessError(ctx, err)
		return
	}
	util.Success(ctx, report)
}
