package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MR-GREEN1337/Thoth-sub001/internal/service"
	"github.com/MR-GREEN1337/Thoth-sub001/pkg/response"
)

const (
	contentTypeICS  = "text/calendar"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportStudyPlan 导出课程学习计划为 ICS 日历
// GET /api/v1/courses/:id/export/study-plan?start_date=2026-09-01
func (h *ExportHandler) ExportStudyPlan(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "课程ID不能为空")
		return
	}

	startDate := time.Now().UTC()
	if raw := c.Query("start_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.BadRequest(c, 10001, "start_date 格式应为 YYYY-MM-DD")
			return
		}
		startDate = parsed
	}

	buf, filename, err := h.exportSvc.ExportStudyPlan(c.Request.Context(), id, startDate)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	writeDownload(c, contentTypeICS, filename, buf.Bytes())
}

// ExportLineageReport 导出血缘树报表为 Excel
// GET /api/v1/courses/:id/export/lineage
func (h *ExportHandler) ExportLineageReport(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "课程ID不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportLineageReport(c.Request.Context(), id)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	writeDownload(c, contentTypeXLSX, filename, buf.Bytes())
}

// writeDownload 设置下载响应头后写出文件内容
func writeDownload(c *gin.Context, contentType, filename string, data []byte) {
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, data)
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 12001, "课程不存在")
	case errors.Is(err, service.ErrExportNoModules):
		response.BadRequest(c, 16001, "课程没有模块，无法生成学习计划")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
