package session

import (
	"net/http"

	"go-presence/internal/shared/apperror"
	"go-presence/internal/shared/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	manager Manager
}

func NewHandler(manager Manager) *Handler {
	return &Handler{manager: manager}
}

func writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) SignIn(c *gin.Context) {
	userID := c.GetString("user_id")
	displayName := c.GetString("display_name")

	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input", err.Error())
		return
	}

	resp, err := h.manager.SignIn(c.Request.Context(), userID, displayName, req.ContinuousLocation)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp)
}

func (h *Handler) SignOut(c *gin.Context) {
	if err := h.manager.SignOut(c.Request.Context(), c.GetString("user_id")); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"signed_out": true})
}

func (h *Handler) UpdateLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input", err.Error())
		return
	}

	resp, err := h.manager.UpdateLocation(c.Request.Context(), c.GetString("user_id"), req.Lat, req.Lon)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

func (h *Handler) RegionEvent(c *gin.Context) {
	var req RegionEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input", err.Error())
		return
	}

	resp, err := h.manager.RegionEvent(c.Request.Context(), c.GetString("user_id"), req.GroupID, req.Event)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}
