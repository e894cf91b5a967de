package controller

import (
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"oral_eval_backend/internal/model"
	"oral_eval_backend/internal/service"
	"oral_eval_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService  *service.AttemptService
	PhoneticService *service.PhoneticService
	SemanticService *service.SemanticService
}

func NewAttemptController(
	attemptService *service.AttemptService,
	phoneticService *service.PhoneticService,
	semanticService *service.SemanticService,
) *AttemptController {
	return &AttemptController{
		AttemptService:  attemptService,
		PhoneticService: phoneticService,
		SemanticService: semanticService,
	}
}

// openAudioUpload 打开并校验上传音频,返回已回绕到起始位置的文件
func openAudioUpload(header *multipart.FileHeader) (multipart.File, string, string, error) {
	src, err := header.Open()
	if err != nil {
		return nil, "", "", err
	}
	if _, err := util.ValidateAudioUpload(src, header.Filename); err != nil {
		src.Close()
		return nil, "", "", err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		src.Close()
		return nil, "", "", err
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = util.MimeOctetStream
	}
	return src, ext, contentType, nil
}

// Get godoc
// @Summary 查询测评状态
// @Description 轮询测评状态;第一阶段排队时返回等候室位置
// @Tags 测评
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测评ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "测评不存在"
// @Router /api/attempts/{id} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	attempt, err := c.AttemptService.GetWithItems(id)
	if err != nil {
		util.BusinessError(ctx, err)
		return
	}

	resp := gin.H{"attempt": attempt}
	if pos := c.PhoneticService.WaitingPosition(id); pos > 0 {
		resp["waiting_position"] = pos
	}
	util.Success(ctx, resp)
}

// SubmitPhase1 godoc
// @Summary 提交第一阶段朗读音频
// @Description 上传朗读音频并进入流式声学评分;并发会话满时进入等候室排队
// @Tags 测评
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测评ID"
// @Param   audio formData file true "音频文件"
// @Success 200 {object} util.Response "已受理"
// @Failure 400 {object} util.Response "音频不合法"
// @Failure 409 {object} util.Response "已有进行中的评分会话"
// @Failure 422 {object} util.Response "当前状态不允许提交"
// @Router /api/attempts/{id}/phase1 [post]
func (c *AttemptController) SubmitPhase1(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	header, err := ctx.FormFile("audio")
	if err != nil {
		util.BadRequest(ctx, "audio file is required")
		return
	}

	src, ext, contentType, err := openAudioUpload(header)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	defer src.Close()

	if err := c.PhoneticService.SubmitAudio(ctx.Request.Context(), id, src, header.Size, ext, contentType); err != nil {
		util.BusinessError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"status": "accepted"})
}

// SubmitPhase2 godoc
// @Summary 提交第二阶段问答音频
// @Description 上传问答音频并投递异步语义评分;允许在声学结果返回前提交
// @Tags 测评
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测评ID"
// @Param   audio formData file true "音频文件"
// @Success 200 {object} util.Response "已受理"
// @Failure 400 {object} util.Response "音频不合法"
// @Failure 409 {object} util.Response "已提交过问答音频"
// @Failure 422 {object} util.Response "当前状态不允许提交"
// @Router /api/attempts/{id}/phase2 [post]
func (c *AttemptController) SubmitPhase2(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	header, err := ctx.FormFile("audio")
	if err != nil {
		util.BadRequest(ctx, "audio file is required")
		return
	}

	src, ext, contentType, err := openAudioUpload(header)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	defer src.Close()

	if err := c.SemanticService.SubmitAudio(ctx.Request.Context(), id, src, header.Size, ext, contentType); err != nil {
		util.BusinessError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"status": "queued"})
}

// Abandon godoc
// @Summary 放弃测评
// @Description 考生中途放弃,测评进入失败终态且名额不可重置
// @Tags 测评
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测评ID"
// @Success 200 {object} util.Response "成功"
// @Failure 422 {object} util.Response "测评已完成,不可放弃"
// @Router /api/attempts/{id}/abandon [post]
func (c *AttemptController) Abandon(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	if err := c.AttemptService.Fail(id, model.ReasonAbandoned, model.FailureClassUser, false); err != nil {
		util.BusinessError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListByAssignment godoc
// @Summary 按试卷查询测评列表
// @Description 监考分页查看某试卷下的全部测评
// @Tags 测评
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "试卷ID"
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/assignments/{id}/attempts [get]
func (c *AttemptController) ListByAssignment(ctx *gin.Context) {
	assignmentID := util.MustParseUint(ctx.Param("id"))
	page := int(util.MustParseUint(ctx.DefaultQuery("page", "1")))
	limit := int(util.MustParseUint(ctx.DefaultQuery("limit", "20")))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	list, total, err := c.AttemptService.ListByAssignment(assignmentID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  list,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
