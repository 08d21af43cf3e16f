// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for HistoryItem.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an item is not found (or not owned by the caller), functions
//     return gorm.ErrRecordNotFound (exported here as ErrNotFound).
//   - On DB errors the raw gorm error is propagated.
//
// Usage:
//
//	item, err := repo.CreateHistory(ctx, db, userID, review, business, tone, reply)
//	if err != nil {
//	    // history is best-effort; log and continue
//	}
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-reply-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateHistory inserts a HistoryItem owned by userID. The ID is a random
// UUID and CreatedAt is set to UTC now.
func CreateHistory(ctx context.Context, db *gorm.DB, userID, review, businessType, tone, reply string) (*domain.HistoryItem, error) {
	h := &domain.HistoryItem{
		ID:             uuid.NewString(),
		UserID:         userID,
		OriginalReview: review,
		BusinessType:   businessType,
		Tone:           tone,
		GeneratedReply: reply,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(h).Error; err != nil {
		return nil, err
	}
	return h, nil
}

// CountHistory returns the total number of items owned by userID.
func CountHistory(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.HistoryItem{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListHistoryPage returns a page of userID's items, newest first.
// The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListHistoryPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.HistoryItem, error) {
	var out []domain.HistoryItem
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetHistory fetches one item by id and owner.
func GetHistory(ctx context.Context, db *gorm.DB, id, userID string) (*domain.HistoryItem, error) {
	var h domain.HistoryItem
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&h).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// DeleteHistory removes the item identified by id if owned by userID.
// It returns ErrNotFound when nothing was deleted.
func DeleteHistory(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.HistoryItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
