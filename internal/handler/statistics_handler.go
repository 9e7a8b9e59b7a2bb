package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"stockroom/internal/middleware"
	"stockroom/internal/report"
	"stockroom/internal/service"
	"stockroom/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	auth              *middleware.Auth
}

func NewStatisticsHandler(statisticsService service.StatisticsService, auth *middleware.Auth) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, auth: auth}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/api/statistics")
	statsGroup.Use(h.auth.RequireRole())
	{
		statsGroup.GET("", h.GetStatistics)
		statsGroup.GET("/export", h.ExportStatistics)
	}
}

// @Summary      Get Sales Statistics
// @Description  Sales, profit and shipment totals with per-salesperson rollups inside a time window
// @Tags         Statistics
// @Produce      json
// @Param        filter     query string false "day, week, month, year or all"
// @Param        start_date query string false "Start Date (RFC3339), used when filter is empty"
// @Param        end_date   query string false "End Date (RFC3339), used when filter is empty"
// @Param        status     query string false "Only count tasks in this status"
// @Success      200 {object} response.Response{data=model.AggregateResult}
// @Failure      400 {object} response.Response "Invalid window or status"
// @Failure      401 {object} response.Response "Unauthorized"
// @Failure      500 {object} response.Response "Internal server error"
// @Security     BearerAuth
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	var query service.StatisticsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid query: "+err.Error()))
		return
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), viewer(c), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// @Summary      Export Sales Statistics
// @Description  Same statistics as GET /api/statistics rendered as an XLSX workbook
// @Tags         Statistics
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        filter     query string false "day, week, month, year or all"
// @Param        start_date query string false "Start Date (RFC3339)"
// @Param        end_date   query string false "End Date (RFC3339)"
// @Param        status     query string false "Only count tasks in this status"
// @Success      200 {file} file
// @Failure      400 {object} response.Response
// @Security     BearerAuth
// @Router       /api/statistics/export [get]
func (h *StatisticsHandler) ExportStatistics(c *gin.Context) {
	var query service.StatisticsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid query: "+err.Error()))
		return
	}

	// buffered so a failure can still be reported as JSON
	var buf bytes.Buffer
	if err := h.statisticsService.ExportStatistics(c.Request.Context(), viewer(c), query, &buf); err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("statistics-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}
