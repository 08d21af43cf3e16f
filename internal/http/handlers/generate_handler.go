// Generate HTTP handlers.
//
// This file exposes the review-reply endpoint:
//   - POST    /api/generate   (also mounted as {base}/generate)
//   - OPTIONS /api/generate   (CORS pre-flight)
//
// Idempotency:
// A verified caller that repeats an Idempotency-Key within its TTL receives
// the previously generated reply with `Idempotency-Replayed: true`; the quota
// gate is not consulted again.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-review-reply-backend/internal/http/middleware"
	"github.com/tbourn/go-review-reply-backend/internal/services"
)

// HeaderReplayed marks a response served from the idempotency store.
const HeaderReplayed = "Idempotency-Replayed"

// GenerateRequest is the JSON payload for a reply generation.
type GenerateRequest struct {
	// ReviewText is the customer review to answer.
	ReviewText string `json:"reviewText" example:"Food was cold and the waiter ignored us."`
	// BusinessType names the kind of business replying.
	BusinessType string `json:"businessType" example:"Restaurant"`
	// Tone is Professional (default), Friendly or Empathetic.
	Tone string `json:"tone,omitempty" example:"Empathetic" enums:"Professional,Friendly,Empathetic"`
	// UserID is a legacy, unverified identity used only without a bearer token.
	UserID string `json:"userId,omitempty" example:"legacy-user-1"`
}

// GenerateResponse carries the generated reply.
type GenerateResponse struct {
	Reply string `json:"reply" example:"We're so sorry your meal arrived cold. Please email support@example.com so we can make it right."`
}

//
// Handlers
//

// Preflight answers CORS pre-flight requests that reach the route.
func (h *Handlers) Preflight(c *gin.Context) {
	hd := c.Writer.Header()
	if hd.Get("Access-Control-Allow-Origin") == "" {
		hd.Set("Access-Control-Allow-Origin", "*")
	}
	hd.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	hd.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+middleware.HeaderIdempotencyKey)
	c.Status(http.StatusOK)
}

// Generate godoc
// @ID          generateReply
// @Summary     Generate a reply to a customer review
// @Description Validates the review, applies the daily quota for identified callers, and returns one generated reply.
// @Description A bearer token takes precedence over the legacy userId field. Supports Idempotency-Key replays.
// @Tags        Generate
// @Accept      json
// @Produce     json
//
// @Param       Authorization    header  string  false "Bearer ID token"  example(Bearer eyJhbGciOi...)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.GenerateRequest  true  "Review payload"
//
// @Success     200  {object}  handlers.GenerateResponse
// @Header      200  {string}  Idempotency-Replayed  "true when a stored reply was returned"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing reviewText or businessType"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid or expired session"
// @Failure     429  {object}  handlers.ErrorResponse  "Daily limit reached"
// @Failure     500  {object}  handlers.ErrorResponse  "Configuration or upstream failure"
// @Router      /generate [post]
func (h *Handlers) Generate(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.genSvc.Ready(); err != nil {
		failService(c, err)
		return
	}

	var body GenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, MsgMissingFields)
		return
	}
	req := services.GenerationRequest{
		ReviewText:   strings.TrimSpace(body.ReviewText),
		BusinessType: strings.TrimSpace(body.BusinessType),
		Tone:         services.ParseTone(body.Tone),
	}
	if err := h.genSvc.Validate(req); err != nil {
		failService(c, err)
		return
	}

	id, err := h.identify(c, body.UserID)
	if err != nil {
		failService(c, err)
		return
	}

	// Idempotency (replay path): verified callers only.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	verified := id != nil && id.Verified
	if verified && idemKey != "" && h.idem != nil {
		if hid, found, err := h.idem.Lookup(ctx, id.Subject, idemKey, h.now().UTC()); err == nil && found {
			if prev, err := h.histSvc.Get(ctx, id.Subject, hid); err == nil {
				c.Header(HeaderReplayed, "true")
				ok(c, http.StatusOK, GenerateResponse{Reply: prev.GeneratedReply})
				return
			}
		}
	}

	if _, err := h.gate.Admit(ctx, id); err != nil {
		failService(c, err)
		return
	}

	res, err := h.genSvc.Generate(ctx, req)
	if err != nil {
		failService(c, err)
		return
	}

	// History and idempotency records are best effort and belong to
	// verified callers only; a claimed body userId never writes history.
	if verified && h.histSvc != nil {
		lg := middleware.LoggerFrom(c)
		item, err := h.histSvc.Record(ctx, id.Subject, req, res.Reply)
		if err != nil {
			lg.Warn().Err(err).Str("identity", id.Subject).Msg("history write failed")
		} else if idemKey != "" && h.idem != nil {
			if err := h.idem.Remember(ctx, id.Subject, idemKey, item.ID); err != nil {
				lg.Warn().Err(err).Str("identity", id.Subject).Msg("idempotency write failed")
			}
		}
	}

	ok(c, http.StatusOK, GenerateResponse{Reply: res.Reply})
}
