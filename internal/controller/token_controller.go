package controller

import (
	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/service"
	"oral_eval_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TokenController struct {
	TokenService *service.TokenService
}

func NewTokenController(tokenService *service.TokenService) *TokenController {
	return &TokenController{TokenService: tokenService}
}

// actorFromContext 从会话声明还原操作者,审计与权限判断用
func actorFromContext(ctx *gin.Context) *model.User {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		return nil
	}
	return &model.User{
		BaseModel: model.BaseModel{ID: claims.UserID},
		Role:      model.UserRole(claims.Role),
	}
}

// IssueEntryRequest 入场令牌签发请求
// swagger:model IssueEntryRequest
type IssueEntryRequest struct {
	StudentNo   string `json:"student_no" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	ClassName   string `json:"class_name"`
	Level       string `json:"level" binding:"required"`
	Unit        int    `json:"unit" binding:"required,min=1"`
	TTLMinutes  int    `json:"ttl_minutes" binding:"omitempty,min=1,max=1440"`
}

// IssueEntry godoc
// @Summary 签发入场令牌
// @Description 为考生签发一次性入场令牌;该考生在目标单元已有进行中或已完成的测评时返回409
// @Tags 令牌
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body IssueEntryRequest true "签发参数"
// @Success 201 {object} util.Response{data=model.EntryToken} "签发成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "试卷不存在"
// @Failure 409 {object} util.Response "名额冲突"
// @Router /api/tokens/entry [post]
func (c *TokenController) IssueEntry(ctx *gin.Context) {
	var req IssueEntryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	actor := actorFromContext(ctx)
	if actor == nil {
		util.Unauthorized(ctx)
		return
	}

	t, err := c.TokenService.IssueEntryToken(service.IssueEntryRequest{
		StudentNo:   req.StudentNo,
		DisplayName: req.DisplayName,
		ClassName:   req.ClassName,
		Level:       req.Level,
		Unit:        req.Unit,
		TTLMinutes:  req.TTLMinutes,
	}, actor, ctx.ClientIP())
	if err != nil {
		util.BusinessError(ctx, err)
		return
	}

	util.Created(ctx, t)
}

// ListEntry godoc
// @Summary 查询已签发的入场令牌
// @Description 按签发人分页列出入场令牌
// @Tags 令牌
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/tokens/entry [get]
func (c *TokenController) ListEntry(ctx *gin.Context) {
	actor := actorFromContext(ctx)
	if actor == nil {
		util.Unauthorized(ctx)
		return
	}

	page := util.MustParseUint(ctx.DefaultQuery("page", "1"))
	limit := util.MustParseUint(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	list, total, err := c.TokenService.ListIssued(actor.ID, int(page), int(limit))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  list,
		Total: total,
		Page:  int(page),
		Limit: int(limit),
	})
}

// RevokeEntry godoc
// @Summary 撤销入场令牌
// @Description 撤销未使用的入场令牌,重复撤销幂等返回成功
// @Tags 令牌
// @Produce  json
// @Security ApiKeyAuth
// @Param   token path string true "令牌值"
// @Success 200 {object} util.Response "撤销成功"
// @Failure 404 {object} util.Response "令牌不存在"
// @Failure 410 {object} util.Response "令牌已被使用"
// @Router /api/tokens/entry/{token} [delete]
func (c *TokenController) RevokeEntry(ctx *gin.Context) {
	actor := actorFromContext(ctx)
	if actor == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.TokenService.RevokeEntryToken(ctx.Param("token"), actor, ctx.ClientIP()); err != nil {
		util.BusinessError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// RedeemRequest 入场令牌兑换请求
// swagger:model RedeemRequest
type RedeemRequest struct {
	Token string `json:"token" binding:"required"`
}

// Redeem godoc
// @Summary 兑换入场令牌
// @Description 消费一次性入场令牌,创建测评并返回考生会话;过期/已用/已撤销分别返回可区分的错误
// @Tags 令牌
// @Accept  json
// @Produce  json
// @Param   body body RedeemRequest true "令牌值"
// @Success 200 {object} util.Response{data=service.RedeemResult} "兑换成功"
// @Failure 404 {object} util.Response "令牌不存在"
// @Failure 409 {object} util.Response "名额冲突"
// @Failure 410 {object} util.Response "令牌已过期/已使用/已撤销"
// @Router /api/redeem [post]
func (c *TokenController) Redeem(ctx *gin.Context) {
	var req RedeemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.TokenService.RedeemEntryToken(req.Token, ctx.ClientIP())
	if err != nil {
		util.BusinessError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// IssueShareRequest 成绩分享令牌签发请求
// swagger:model IssueShareRequest
type IssueShareRequest struct {
	AttemptID  uint `json:"attempt_id" binding:"required"`
	TTLMinutes int  `json:"ttl_minutes" binding:"omitempty,min=1"` // 0 表示长期有效
}

// IssueShare godoc
// @Summary 签发成绩分享令牌
// @Description 为已完成的测评签发只读分享令牌,可设有效期或长期有效
// @Tags 令牌
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body IssueShareRequest true "签发参数"
// @Success 201 {object} util.Response{data=model.ShareToken} "签发成功"
// @Failure 404 {object} util.Response "测评不存在"
// @Failure 422 {object} util.Response "测评尚未完成"
// @Router /api/tokens/share [post]
func (c *TokenController) IssueShare(ctx *gin.Context) {
	var req IssueShareRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	actor := actorFromContext(ctx)
	if actor == nil {
		util.Unauthorized(ctx)
		return
	}

	t, err := c.TokenService.IssueShareToken(req.AttemptID, req.TTLMinutes, actor, ctx.ClientIP())
	if err != nil {
		util.BusinessError(ctx, err)
		return
	}

	util.Created(ctx, t)
}

// RevokeShare godoc
// @Summary 撤销成绩分享令牌
// @Description 撤销分享令牌并立即失效其解析缓存,重复撤销幂等
// @Tags 令牌
// @Produce  json
// @Security ApiKeyAuth
// @Param   token path string true "令牌值"
// @Success 200 {object} util.Response "撤销成功"
// @Failure 404 {object} util.Response "令牌不存在"
// @Router /api/tokens/share/{token} [delete]
func (c *TokenController) RevokeShare(ctx *gin.Context) {
	actor := actorFromContext(ctx)
	if actor == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.TokenService.RevokeShareToken(ctx.Request.Context(), ctx.Param("token"), actor, ctx.ClientIP()); err != nil {
		util.BusinessError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
