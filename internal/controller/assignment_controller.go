package controller

import (
	"oral_eval_backend/internal/service"
	"oral_eval_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssignmentController struct {
	AssignmentService *service.AssignmentService
}

func NewAssignmentController(assignmentService *service.AssignmentService) *AssignmentController {
	return &AssignmentController{AssignmentService: assignmentService}
}

// List godoc
// @Summary 试卷列表
// @Description 列出全部启用中的试卷
// @Tags 试卷
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Assignment} "成功"
// @Router /api/assignments [get]
func (c *AssignmentController) List(ctx *gin.Context) {
	list, err := c.AssignmentService.List()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// Get godoc
// @Summary 试卷详情
// @Description 获取试卷及按题号排序的12道问答题
// @Tags 试卷
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "试卷ID"
// @Success 200 {object} util.Response{data=model.Assignment} "成功"
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/assignments/{id} [get]
func (c *AssignmentController) Get(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	assignment, err := c.AssignmentService.Get(id)
	if err != nil {
		util.BusinessError(ctx, err)
		return
	}
	util.Success(ctx, assignment)
}
