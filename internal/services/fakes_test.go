package services

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/go-review-reply-backend/internal/domain"
	"github.com/tbourn/go-review-reply-backend/internal/timeutil"
)

// memQuotaStore is an in-memory QuotaStore with the same atomicity as the
// real backends: every method holds the lock for its whole body.
type memQuotaStore struct {
	mu   sync.Mutex
	recs map[string]domain.QuotaRecord

	resetErr error
	incErr   error

	resets     int
	increments int
}

func newMemQuotaStore() *memQuotaStore {
	return &memQuotaStore{recs: map[string]domain.QuotaRecord{}}
}

func (s *memQuotaStore) seed(id string, count int, lastReset time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[id] = domain.QuotaRecord{Identity: id, DailyCount: count, LastReset: lastReset}
}

func (s *memQuotaStore) get(id string) (domain.QuotaRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[id]
	return r, ok
}

func (s *memQuotaStore) Read(_ context.Context, id string) (domain.QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recs[id], nil
}

func (s *memQuotaStore) ResetIfNewDay(_ context.Context, id string, now time.Time, loc *time.Location) (domain.QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	if s.resetErr != nil {
		return domain.QuotaRecord{}, s.resetErr
	}
	r, ok := s.recs[id]
	if !ok || !timeutil.SameDay(r.LastReset, now, loc) {
		r = domain.QuotaRecord{Identity: id, DailyCount: 0, LastReset: now}
		s.recs[id] = r
	}
	return r, nil
}

func (s *memQuotaStore) Increment(_ context.Context, id string, now time.Time, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incErr != nil {
		return 0, false, s.incErr
	}
	r := s.recs[id]
	if limit > 0 && r.DailyCount >= limit {
		return 0, false, nil
	}
	s.increments++
	r.Identity = id
	r.DailyCount++
	r.LastReset = now
	s.recs[id] = r
	return r.DailyCount, true, nil
}

type fakePrivileges struct {
	exempt map[string]bool
	err    error
	calls  int
}

func (p *fakePrivileges) IsExempt(_ context.Context, id string) (bool, error) {
	p.calls++
	if p.err != nil {
		return false, p.err
	}
	return p.exempt[id], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
