// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers are transport-thin: they bind and validate input, resolve the
// caller, call application services, and translate service errors into the
// standard error envelope.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-review-reply-backend/internal/auth"
	"github.com/tbourn/go-review-reply-backend/internal/domain"
	"github.com/tbourn/go-review-reply-backend/internal/http/middleware"
	"github.com/tbourn/go-review-reply-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// GenerationService produces replies for validated reviews.
type GenerationService interface {
	// Ready reports services.ErrConfiguration when no backend key is set.
	Ready() error
	// Validate checks required fields without calling the backend.
	Validate(req services.GenerationRequest) error
	// Generate performs exactly one upstream call.
	Generate(ctx context.Context, req services.GenerationRequest) (*services.GenerationResult, error)
}

// QuotaGate admits or rejects metered callers and reports usage.
type QuotaGate interface {
	Admit(ctx context.Context, id *auth.Identity) (services.Decision, error)
	Usage(ctx context.Context, identity string) (services.Usage, error)
}

// HistoryService stores and lists generated replies per user.
type HistoryService interface {
	Record(ctx context.Context, userID string, req services.GenerationRequest, reply string) (*domain.HistoryItem, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.HistoryItem, int64, error)
	Get(ctx context.Context, userID, id string) (*domain.HistoryItem, error)
	Delete(ctx context.Context, userID, id string) error
}

// IdempotencyStore remembers which history item answered a given
// (user, Idempotency-Key) pair.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, key string, now time.Time) (historyID string, found bool, err error)
	Remember(ctx context.Context, userID, key, historyID string) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints.
type Handlers struct {
	genSvc   GenerationService
	gate     QuotaGate
	histSvc  HistoryService
	idem     IdempotencyStore
	resolver *auth.Resolver

	// HistoryPageMax caps page_size on history listings.
	HistoryPageMax int
	now            func() time.Time
}

// New constructs Handlers. idem may be nil to disable replays.
func New(gen GenerationService, gate QuotaGate, hist HistoryService, idem IdempotencyStore, resolver *auth.Resolver) *Handlers {
	return &Handlers{
		genSvc:         gen,
		gate:           gate,
		histSvc:        hist,
		idem:           idem,
		resolver:       resolver,
		HistoryPageMax: 50,
		now:            time.Now,
	}
}

// userID returns the verified user id set by middleware.Identify.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// identify reuses the credential result of middleware.Identify when present
// and otherwise resolves the header here, falling back to claimedID.
func (h *Handlers) identify(c *gin.Context, claimedID string) (*auth.Identity, error) {
	id, err := middleware.IdentityFrom(c)
	if errors.Is(err, auth.ErrProviderUnavailable) {
		return nil, fmt.Errorf("%w: %w", services.ErrConfiguration, err)
	}
	if err != nil || id != nil {
		return id, err
	}
	return services.ResolveIdentity(c.Request.Context(), h.resolver, c.GetHeader("Authorization"), claimedID)
}

// failService maps the service error taxonomy onto status codes.
func failService(c *gin.Context, err error) {
	var (
		qe *services.QuotaExceededError
		ue *services.UpstreamError
	)
	switch {
	case errors.Is(err, services.ErrReviewTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, MsgReviewTooLong)
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, MsgMissingFields)
	case errors.Is(err, auth.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, middleware.MsgSessionExpired)
	case errors.As(err, &qe):
		fail(c, http.StatusTooManyRequests, ErrCodeQuotaExceeded, qe.Error()+MsgQuotaSuffix)
	case errors.Is(err, services.ErrConfiguration):
		failWith(c, http.StatusInternalServerError, ErrCodeConfiguration, MsgConfiguration, err)
	case errors.As(err, &ue):
		failWith(c, http.StatusInternalServerError, ErrCodeGenerationFailed, ue.Error(), err)
	default:
		failWith(c, http.StatusInternalServerError, ErrCodeInternal, MsgGenerationFailed, err)
	}
}
