// History HTTP handlers.
//
// This file exposes the caller's generation history:
//   - GET    /history        (list, newest first, paginated, ETag support)
//   - GET    /history/{id}   (single item)
//   - DELETE /history/{id}   (remove)
//
// All routes require a verified bearer identity (middleware.RequireIdentity).
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-reply-backend/internal/domain"
	"github.com/tbourn/go-review-reply-backend/internal/repo"
	"github.com/tbourn/go-review-reply-backend/internal/services"
	"github.com/tbourn/go-review-reply-backend/internal/utils"
)

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListHistoryResponse wraps a page of history items.
type ListHistoryResponse struct {
	Items      []domain.HistoryItem `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

//
// Handlers
//

// ListHistory godoc
// @ID          listHistory
// @Summary     List generated replies (paginated)
// @Description Returns the caller's history newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        History
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer ID token"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"history:3:1700000000\")
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(50) default(20)
//
// @Success     200  {object} handlers.ListHistoryResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Invalid or expired session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /history [get]
func (h *Handlers) ListHistory(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"), 20, h.HistoryPageMax)

	// ETag pre-check (best effort). The user id is left out of the tag.
	var db *gorm.DB
	if svc, ok := h.histSvc.(*services.HistoryService); ok {
		db = svc.DB
	}
	if db != nil {
		count, newest, err := repo.HistoryStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if newest != nil {
				ts = newest.UnixNano()
			}
			etag := fmt.Sprintf(`W/"history:%d:%d:%d:%d"`, count, ts, page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.histSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		failWith(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list history", err)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListHistoryResponse{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetHistory godoc
// @ID          getHistory
// @Summary     Get one generated reply
// @Tags        History
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer ID token"
// @Param       id             path    string  true  "History item ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.HistoryItem
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Invalid or expired session"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /history/{id} [get]
func (h *Handlers) GetHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "history id must be a UUID")
		return
	}
	it, err := h.histSvc.Get(c.Request.Context(), userID(c), id)
	switch {
	case errors.Is(err, services.ErrHistoryNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "history item not found")
	case err != nil:
		failWith(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load history item", err)
	default:
		ok(c, http.StatusOK, it)
	}
}

// DeleteHistory godoc
// @ID          deleteHistory
// @Summary     Delete a generated reply
// @Description Removes one history item owned by the caller.
// @Tags        History
//
// @Param       Authorization  header  string  true  "Bearer ID token"
// @Param       id             path    string  true  "History item ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Invalid or expired session"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /history/{id} [delete]
func (h *Handlers) DeleteHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "history id must be a UUID")
		return
	}
	err := h.histSvc.Delete(c.Request.Context(), userID(c), id)
	switch {
	case errors.Is(err, services.ErrHistoryNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "history item not found")
	case err != nil:
		failWith(c, http.StatusInternalServerError, ErrCodeInternal, "failed to delete history item", err)
	default:
		noContent(c)
	}
}
