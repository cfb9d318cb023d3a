package member

import (
	"net/http"

	"go-presence/internal/shared/apperror"
	"go-presence/internal/shared/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) Join(c *gin.Context) {
	userID := c.GetString("user_id")
	groupID := c.Param("group_id")

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input", err.Error())
		return
	}

	resp, err := h.service.Join(c.Request.Context(), groupID, userID, req.DisplayName)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp)
}

func (h *Handler) List(c *gin.Context) {
	groupID := c.Param("group_id")

	resp, err := h.service.List(c.Request.Context(), groupID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}
