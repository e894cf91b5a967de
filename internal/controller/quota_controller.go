package controller

import (
	"oral_eval_backend/internal/service"
	"oral_eval_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuotaController struct {
	QuotaService *service.QuotaService
	UserService  *service.AuthService
}

func NewQuotaController(quotaService *service.QuotaService, userService *service.AuthService) *QuotaController {
	return &QuotaController{
		QuotaService: quotaService,
		UserService:  userService,
	}
}

// QuotaResetRequest 名额重置请求
// swagger:model QuotaResetRequest
type QuotaResetRequest struct {
	ExamineeID uint   `json:"examinee_id" binding:"required"`
	Level      string `json:"level" binding:"required"`
	Unit       int    `json:"unit" binding:"required,min=1"`
}

// Reset godoc
// @Summary 重置测评名额
// @Description 仅当测评失败且归因为系统原因时允许重置;每个名额的重置次数有限
// @Tags 名额
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body QuotaResetRequest true "重置参数"
// @Success 200 {object} util.Response "重置成功"
// @Failure 403 {object} util.Response "无权操作"
// @Failure 422 {object} util.Response "不满足重置条件或次数已达上限"
// @Router /api/quotas/reset [post]
func (c *QuotaController) Reset(ctx *gin.Context) {
	var req QuotaResetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	actor := actorFromContext(ctx)
	if actor == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.QuotaService.Reset(req.ExamineeID, req.Level, req.Unit, actor, ctx.ClientIP()); err != nil {
		util.BusinessError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Eligibility godoc
// @Summary 查询考生名额状态
// @Description 查询考生在指定单元是否还能发起测评
// @Tags 名额
// @Produce  json
// @Security ApiKeyAuth
// @Param   examinee_id query int true "考生ID"
// @Param   level query string true "级别"
// @Param   unit query int true "单元"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/quotas/eligibility [get]
func (c *QuotaController) Eligibility(ctx *gin.Context) {
	examineeID := util.MustParseUint(ctx.Query("examinee_id"))
	level := ctx.Query("level")
	unit := int(util.MustParseUint(ctx.Query("unit")))
	if examineeID == 0 || level == "" || unit == 0 {
		util.BadRequest(ctx, "examinee_id, level and unit are required")
		return
	}

	eligible, state, err := c.QuotaService.Eligible(examineeID, level, unit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"eligible": eligible,
		"state":    state,
	})
}
