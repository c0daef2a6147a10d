package moderation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hackmate/pkg/response"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/messages/:messageId/report", h.reportMessage)
	router.GET("/moderation/reports", h.listReports)
	router.PUT("/moderation/reports/:reportId", h.updateStatus)
}

type reportRequest struct {
	ReporterID string `json:"reporterId" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
	Details    string `json:"details"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrAlreadyReported):
		return http.StatusConflict
	case errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidReason), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidUUID), errors.Is(err, ErrDetailsLength):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// @Summary      Report a message
// @Tags         moderation
// @Accept       json
// @Produce      json
// @Param        messageId path string true "Message UUID"
// @Param        request body reportRequest true "Report"
// @Success      201 {object} response.APIResponse{data=Report}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /messages/{messageId}/report [post]
func (h *Handler) reportMessage(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	report, err := h.service.ReportMessage(c.Request.Context(), c.Param("messageId"), req.ReporterID, req.Reason, req.Details)
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusCreated, true, "message reported", report)
}

// @Summary      List reports
// @Tags         moderation
// @Produce      json
// @Param        status query string false "open, reviewed or dismissed"
// @Param        page   query int false "Page number" default(1)
// @Param        limit  query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=ReportList}
// @Failure      400 {object} response.APIResponse
// @Router       /moderation/reports [get]
func (h *Handler) listReports(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	items, total, err := h.service.ListReports(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "reports listed", ReportList{Items: items, Total: total, Page: page, Limit: limit})
}

// @Summary      Update report status
// @Tags         moderation
// @Accept       json
// @Produce      json
// @Param        reportId path string true "Report UUID"
// @Param        request body statusRequest true "New status"
// @Success      200 {object} response.APIResponse{data=Report}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /moderation/reports/{reportId} [put]
func (h *Handler) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	report, err := h.service.UpdateStatus(c.Request.Context(), c.Param("reportId"), req.Status)
	if err != nil {
		response.SendError(c, statusFor(err), err.Error())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "report updated", report)
}
