package group

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

func (h *Handler) Create(c *gin.Context) {
	userID := c.GetString("user_id")
	displayName := c.GetString("display_name")

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input", err.Error())
		return
	}

	resp, err := h.service.Create(c.Request.Context(), userID, displayName, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp)
}

func (h *Handler) Get(c *gin.Context) {
	resp, err := h.service.GetByID(c.Request.Context(), c.Param("group_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

func (h *Handler) ListMine(c *gin.Context) {
	resp, err := h.service.ListForUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

func (h *Handler) UpdateBoundary(c *gin.Context) {
	var req UpdateBoundaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input", err.Error())
		return
	}

	resp, err := h.service.UpdateBoundary(c.Request.Context(), c.Param("group_id"), c.GetString("user_id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

func (h *Handler) UpdateDisplayMode(c *gin.Context) {
	var req UpdateDisplayModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input", err.Error())
		return
	}

	resp, err := h.service.UpdateDisplayMode(c.Request.Context(), c.Param("group_id"), c.GetString("user_id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}
