package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-review-reply-backend/internal/domain"
)

// IsExempt reports whether the profile for id carries the exemption flag.
// A missing profile is an ordinary, non-exempt user.
func IsExempt(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var p domain.Profile
	err := db.WithContext(ctx).Select("id", "is_exempt").Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsExempt, nil
}

// SetExempt upserts the exemption flag for id. Used by administration tooling
// and tests; the request path only reads it.
func SetExempt(ctx context.Context, db *gorm.DB, id string, exempt bool) error {
	p := domain.Profile{ID: id, IsExempt: exempt}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_exempt", "updated_at"}),
	}).Create(&p).Error
}

// ProfileStore adapts IsExempt to the services.PrivilegeChecker contract.
type ProfileStore struct {
	DB *gorm.DB
}

// IsExempt looks up the exemption flag.
func (s ProfileStore) IsExempt(ctx context.Context, identity string) (bool, error) {
	return IsExempt(ctx, s.DB, identity)
}
