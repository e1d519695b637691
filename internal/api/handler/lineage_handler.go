package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/MR-GREEN1337/Thoth-sub001/internal/service"
	pkgerrors "github.com/MR-GREEN1337/Thoth-sub001/pkg/errors"
	"github.com/MR-GREEN1337/Thoth-sub001/pkg/response"
)

// LineageHandler 血缘与 Fork 模块 HTTP 处理器
type LineageHandler struct {
	lineageSvc service.LineageService
	forkSvc    service.ForkService
}

// NewLineageHandler 创建 LineageHandler
func NewLineageHandler(lineageSvc service.LineageService, forkSvc service.ForkService) *LineageHandler {
	return &LineageHandler{lineageSvc: lineageSvc, forkSvc: forkSvc}
}

// ForkCourse Fork 课程
// POST /api/v1/courses/:id/fork
func (h *LineageHandler) ForkCourse(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "课程ID不能为空")
		return
	}

	result, err := h.forkSvc.CreateFork(c.Request.Context(), userID, id)
	if err != nil {
		h.handleLineageError(c, err)
		return
	}

	response.Created(c, result)
}

// GetLineage 获取课程所在血缘树
// 任意节点的课程ID都先解析到根，再返回整棵树
// GET /api/v1/courses/:id/lineage
func (h *LineageHandler) GetLineage(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "课程ID不能为空")
		return
	}

	root, err := h.lineageSvc.FindRoot(c.Request.Context(), id)
	if err != nil {
		h.handleLineageError(c, err)
		return
	}

	tree, err := h.lineageSvc.BuildTree(c.Request.Context(), root.RootCourseID)
	if err != nil {
		h.handleLineageError(c, err)
		return
	}

	response.OK(c, tree)
}

// GetLineageRoot 解析课程的血缘根
// GET /api/v1/courses/:id/root
func (h *LineageHandler) GetLineageRoot(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "课程ID不能为空")
		return
	}

	root, err := h.lineageSvc.FindRoot(c.Request.Context(), id)
	if err != nil {
		h.handleLineageError(c, err)
		return
	}

	response.OK(c, root)
}

func (h *LineageHandler) handleLineageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 12001, "课程不存在")
	case errors.Is(err, service.ErrDuplicateFork):
		response.Conflict(c, 13001, "已 Fork 过该课程")
	case errors.Is(err, pkgerrors.ErrTransactionTimeout):
		response.GatewayTimeout(c, 50003, "Fork 操作超时，请稍后重试")
	default:
		response.InternalError(c)
	}
}
