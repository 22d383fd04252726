package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// DashboardHandler serves the KPI summary and workbook export.
type DashboardHandler struct {
	reports *service.ReportService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(reportService *service.ReportService) *DashboardHandler {
	return &DashboardHandler{reports: reportService}
}

// Summary handles GET /dashboard/summary.
func (h *DashboardHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.reports.BuildSummary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// Export handles GET /dashboard/export, streaming an xlsx workbook.
func (h *DashboardHandler) Export(c *fiber.Ctx) error {
	workbook, err := h.reports.ExportWorkbook(c.UserContext())
	if err != nil {
		return err
	}

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	filename := fmt.Sprintf("triage_export_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}
