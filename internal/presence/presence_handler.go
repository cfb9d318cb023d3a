package presence

import (
	"context"
	"net/http"

	"go-presence/internal/shared/apperror"
	"go-presence/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// GroupDirectory is the slice of the group service the handler needs:
// how a group wants its summary rendered.
type GroupDirectory interface {
	DisplayModeFor(ctx context.Context, groupID string) (string, error)
}

type Handler struct {
	service Service
	groups  GroupDirectory
}

func NewHandler(service Service, groups GroupDirectory) *Handler {
	return &Handler{service: service, groups: groups}
}

func writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) CheckIn(c *gin.Context) {
	userID := c.GetString("user_id")
	displayName := c.GetString("display_name")
	groupID := c.Param("group_id")

	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input", err.Error())
		return
	}

	resp, err := h.service.CheckIn(c.Request.Context(), userID, groupID, displayName, req.DurationMinutes)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

func (h *Handler) CheckOut(c *gin.Context) {
	userID := c.GetString("user_id")
	groupID := c.Param("group_id")

	resp, err := h.service.CheckOut(c.Request.Context(), userID, groupID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

func (h *Handler) Summary(c *gin.Context) {
	groupID := c.Param("group_id")

	mode, err := h.groups.DisplayModeFor(c.Request.Context(), groupID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), groupID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := SummaryResponse{
		GroupID:      summary.GroupID,
		PresentCount: summary.PresentCount,
		Display:      FormatSummary(summary, mode),
	}
	if mode == DisplayModeNames {
		resp.PresentMembers = summary.PresentMembers
	}
	response.Success(c, http.StatusOK, resp)
}
