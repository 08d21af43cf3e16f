// Package services – HistoryService
//
// HistoryService keeps the per-user log of generated replies: it records
// successful generations, pages through them newest first, and deletes
// single items owned by the caller.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-review-reply-backend/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HistoryRepo defines the repository contract required by HistoryService.
type HistoryRepo interface {
	CreateHistory(ctx context.Context, db *gorm.DB, userID, review, businessType, tone, reply string) (*domain.HistoryItem, error)
	CountHistory(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListHistoryPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.HistoryItem, error)
	GetHistory(ctx context.Context, db *gorm.DB, id, userID string) (*domain.HistoryItem, error)
	DeleteHistory(ctx context.Context, db *gorm.DB, id, userID string) error
}

// HistoryService provides history operations scoped to one user.
type HistoryService struct {
	DB   *gorm.DB
	Repo HistoryRepo

	// PageMax caps page sizes.
	PageMax int
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(db *gorm.DB, r HistoryRepo, pageMax int) *HistoryService {
	if pageMax <= 0 {
		pageMax = 50
	}
	return &HistoryService{DB: db, Repo: r, PageMax: pageMax}
}

// Record stores a generated reply.
func (s *HistoryService) Record(ctx context.Context, userID string, req GenerationRequest, reply string) (*domain.HistoryItem, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrValidation
	}
	return s.Repo.CreateHistory(ctx, s.DB, userID, req.ReviewText, strings.TrimSpace(req.BusinessType), req.Tone.String(), reply)
}

// ListPage returns one page of the user's history, newest first, with the
// total count. Invalid page values fall back to defaults.
func (s *HistoryService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.HistoryItem, int64, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if s.PageMax > 0 && pageSize > s.PageMax {
		pageSize = s.PageMax
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountHistory(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.HistoryItem{}, 0, nil
	}

	items, err := s.Repo.ListHistoryPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Get returns one item owned by userID.
func (s *HistoryService) Get(ctx context.Context, userID, id string) (*domain.HistoryItem, error) {
	it, err := s.Repo.GetHistory(ctx, s.DB, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrHistoryNotFound
	}
	return it, err
}

// Delete removes one item owned by userID.
func (s *HistoryService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("history.id", id),
		),
	)
	defer span.End()

	err := s.Repo.DeleteHistory(ctx, s.DB, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrHistoryNotFound
	}
	return err
}
