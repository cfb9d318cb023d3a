package achievement

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

func (h *Handler) ListMine(c *gin.Context) {
	resp, err := h.service.ListForUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		httpErr := apperror.ToHTTP(err)
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
		return
	}
	response.Success(c, http.StatusOK, resp)
}
