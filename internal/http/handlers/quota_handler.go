package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetQuota godoc
// @ID          getQuota
// @Summary     Current daily usage
// @Description Reports today's usage for the caller without consuming quota.
// @Tags        Quota
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer ID token"
//
// @Success     200  {object} services.Usage
// @Failure     401  {object} handlers.ErrorResponse "Invalid or expired session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /quota [get]
func (h *Handlers) GetQuota(c *gin.Context) {
	u, err := h.gate.Usage(c.Request.Context(), userID(c))
	if err != nil {
		failWith(c, http.StatusInternalServerError, ErrCodeInternal, "failed to read quota", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, u)
}
