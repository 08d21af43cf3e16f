// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the SQL-backed quota counter.
//
// Every mutation is a single conditional UPDATE so concurrent requests for the
// same identity serialize on the row instead of racing a read-modify-write:
//
//   - ResetQuotaIfNewDay swaps (count, last_reset) only if last_reset is still
//     the value that was judged stale.
//   - IncrementQuota adds one only while daily_count is below the ceiling.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-review-reply-backend/internal/domain"
	"github.com/tbourn/go-review-reply-backend/internal/timeutil"
)

// ErrLimitReached is returned by IncrementQuota when the counter is already
// at the ceiling. The row is left unchanged.
var ErrLimitReached = errors.New("daily limit reached")

// maxResetAttempts bounds the compare-and-swap loop in ResetQuotaIfNewDay.
const maxResetAttempts = 5

// GetQuota returns the stored record for identity, or a zero-value record
// (DailyCount 0, zero LastReset) when none exists. It never creates a row.
func GetQuota(ctx context.Context, db *gorm.DB, identity string) (*domain.QuotaRecord, error) {
	var rec domain.QuotaRecord
	err := db.WithContext(ctx).Where("identity = ?", identity).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.QuotaRecord{Identity: identity}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ResetQuotaIfNewDay lazily creates the record and zeroes it when its
// LastReset is not on now's calendar day in loc. It returns the record as it
// stands after normalization.
func ResetQuotaIfNewDay(ctx context.Context, db *gorm.DB, identity string, now time.Time, loc *time.Location) (*domain.QuotaRecord, error) {
	now = now.UTC()
	db = db.WithContext(ctx)

	// Lazy creation; a concurrent creator wins silently.
	seed := domain.QuotaRecord{Identity: identity, DailyCount: 0, LastReset: now}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxResetAttempts; attempt++ {
		var rec domain.QuotaRecord
		if err := db.Where("identity = ?", identity).Take(&rec).Error; err != nil {
			return nil, err
		}
		if timeutil.SameDay(rec.LastReset, now, loc) {
			return &rec, nil
		}

		res := db.Model(&domain.QuotaRecord{}).
			Where("identity = ? AND last_reset = ?", identity, rec.LastReset.UTC()).
			Updates(map[string]any{"daily_count": 0, "last_reset": now})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return &domain.QuotaRecord{Identity: identity, DailyCount: 0, LastReset: now}, nil
		}
		// Someone else reset or incremented in between; re-read and re-judge.
	}
	return nil, errors.New("quota reset contention")
}

// IncrementQuota atomically adds one to the counter and refreshes LastReset,
// but only while the stored count is below limit. It returns the new count,
// or ErrLimitReached without touching the row. A limit <= 0 means unbounded.
func IncrementQuota(ctx context.Context, db *gorm.DB, identity string, now time.Time, limit int) (int, error) {
	db = db.WithContext(ctx)

	q := db.Model(&domain.QuotaRecord{}).Where("identity = ?", identity)
	if limit > 0 {
		q = q.Where("daily_count < ?", limit)
	}
	res := q.Updates(map[string]any{
		"daily_count": gorm.Expr("daily_count + 1"),
		"last_reset":  now.UTC(),
	})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(&domain.QuotaRecord{}).Where("identity = ?", identity).Count(&n).Error; err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrNotFound
		}
		return 0, ErrLimitReached
	}

	rec, err := GetQuota(ctx, db, identity)
	if err != nil {
		return 0, err
	}
	return rec.DailyCount, nil
}

// SQLQuotaStore adapts the quota functions above to the services.QuotaStore
// contract.
type SQLQuotaStore struct {
	DB *gorm.DB
}

// Read returns the stored record or a zero record.
func (s SQLQuotaStore) Read(ctx context.Context, identity string) (domain.QuotaRecord, error) {
	rec, err := GetQuota(ctx, s.DB, identity)
	if err != nil {
		return domain.QuotaRecord{}, err
	}
	return *rec, nil
}

// ResetIfNewDay normalizes the day boundary, creating the row if needed.
func (s SQLQuotaStore) ResetIfNewDay(ctx context.Context, identity string, now time.Time, loc *time.Location) (domain.QuotaRecord, error) {
	rec, err := ResetQuotaIfNewDay(ctx, s.DB, identity, now, loc)
	if err != nil {
		return domain.QuotaRecord{}, err
	}
	return *rec, nil
}

// Increment adds one below limit; ok is false when the ceiling was hit.
func (s SQLQuotaStore) Increment(ctx context.Context, identity string, now time.Time, limit int) (int, bool, error) {
	n, err := IncrementQuota(ctx, s.DB, identity, now, limit)
	if errors.Is(err, ErrLimitReached) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
