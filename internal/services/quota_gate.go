// Package services – QuotaGate
//
// QuotaGate decides whether a resolved caller may run one more generation
// today. The store is the arbiter: the snapshot check is best-effort and the
// bounded increment decides races, so the counter never passes the limit.
//
// Observability: Admit and Usage are OpenTelemetry-instrumented and every
// decision is counted in quota_decisions_total.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-review-reply-backend/internal/auth"
	"github.com/tbourn/go-review-reply-backend/internal/domain"
	"github.com/tbourn/go-review-reply-backend/internal/timeutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultDailyLimit applies when a gate is built with a non-positive limit.
const DefaultDailyLimit = 10

// QuotaStore is the counter contract implemented by repo.SQLQuotaStore and
// redisstore.QuotaStore.
type QuotaStore interface {
	// Read returns the stored record, or a zero record when none exists.
	Read(ctx context.Context, identity string) (domain.QuotaRecord, error)

	// ResetIfNewDay zeroes the counter when lastReset falls on an earlier
	// calendar day in loc, and returns the resulting record.
	ResetIfNewDay(ctx context.Context, identity string, now time.Time, loc *time.Location) (domain.QuotaRecord, error)

	// Increment atomically adds one while the count is below limit and
	// refreshes lastReset. ok is false when the ceiling was already reached.
	Increment(ctx context.Context, identity string, now time.Time, limit int) (count int, ok bool, err error)
}

// PrivilegeChecker reports whether an identity bypasses the quota.
type PrivilegeChecker interface {
	IsExempt(ctx context.Context, identity string) (bool, error)
}

// PrivilegePolicy decides what a failed exemption lookup means.
type PrivilegePolicy int

const (
	// FailClosed treats the caller as non-exempt and keeps metering.
	FailClosed PrivilegePolicy = iota
	// FailOpen treats the caller as exempt.
	FailOpen
)

// ParsePrivilegePolicy maps configuration text to a policy. Anything other
// than fail_open (or fail-open) is FailClosed.
func ParsePrivilegePolicy(s string) PrivilegePolicy {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "fail_open":
		return FailOpen
	default:
		return FailClosed
	}
}

func (p PrivilegePolicy) String() string {
	if p == FailOpen {
		return "fail_open"
	}
	return "fail_closed"
}

// QuotaGate meters non-exempt identities against a daily limit.
type QuotaGate struct {
	Store      QuotaStore
	Privileges PrivilegeChecker // nil means nobody is exempt
	Limit      int
	Policy     PrivilegePolicy
	Now        timeutil.Clock
	Location   *time.Location
}

// NewQuotaGate constructs a gate with the system clock.
func NewQuotaGate(store QuotaStore, privileges PrivilegeChecker, limit int, policy PrivilegePolicy, loc *time.Location) *QuotaGate {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &QuotaGate{
		Store:      store,
		Privileges: privileges,
		Limit:      limit,
		Policy:     policy,
		Now:        timeutil.SystemClock,
		Location:   timeutil.EnsureLocation(loc),
	}
}

// Decision describes an admitted request.
type Decision struct {
	// Metered is false for anonymous and exempt callers.
	Metered bool
	Exempt  bool
	// Used is the counter after this request was charged.
	Used int
}

// Usage is a read-only view of an identity's quota for the current day.
type Usage struct {
	Used      int       `json:"used" example:"3"`
	Limit     int       `json:"limit" example:"10"`
	Remaining int       `json:"remaining" example:"7"`
	Exempt    bool      `json:"exempt" example:"false"`
	ResetsAt  time.Time `json:"resetsAt" example:"2025-01-02T00:00:00Z"`
}

// Admit runs the gate for an already resolved caller. A nil identity is the
// anonymous path and is admitted without accounting. On rejection the error
// is a *QuotaExceededError and the counter is unchanged.
func (g *QuotaGate) Admit(ctx context.Context, id *auth.Identity) (Decision, error) {
	if id == nil || id.Subject == "" {
		quotaDecisions.WithLabelValues(decisionAnonymous).Inc()
		return Decision{}, nil
	}

	tr := otel.Tracer("services/QuotaGate")
	ctx, span := tr.Start(ctx, "Admit",
		trace.WithAttributes(
			attribute.String("user.id", id.Subject),
			attribute.Bool("user.verified", id.Verified),
			attribute.Int("quota.limit", g.limit()),
		),
	)
	defer span.End()

	now := g.now()
	snap, err := g.Store.ResetIfNewDay(ctx, id.Subject, now, g.loc())
	if err != nil {
		quotaDecisions.WithLabelValues(decisionError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "reset")
		return Decision{}, fmt.Errorf("quota reset: %w", err)
	}

	if g.exempt(ctx, id.Subject) {
		quotaDecisions.WithLabelValues(decisionExempt).Inc()
		span.SetAttributes(attribute.Bool("quota.exempt", true))
		return Decision{Exempt: true, Used: snap.DailyCount}, nil
	}

	limit := g.limit()
	if snap.DailyCount >= limit {
		quotaDecisions.WithLabelValues(decisionRejected).Inc()
		span.SetAttributes(attribute.Int("quota.used", snap.DailyCount))
		return Decision{}, &QuotaExceededError{Limit: limit, Used: snap.DailyCount}
	}

	n, ok, err := g.Store.Increment(ctx, id.Subject, now, limit)
	if err != nil {
		quotaDecisions.WithLabelValues(decisionError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "increment")
		return Decision{}, fmt.Errorf("quota increment: %w", err)
	}
	if !ok {
		// Another request took the last slot after the snapshot.
		quotaDecisions.WithLabelValues(decisionRejected).Inc()
		return Decision{}, &QuotaExceededError{Limit: limit, Used: limit}
	}

	quotaDecisions.WithLabelValues(decisionAdmitted).Inc()
	span.SetAttributes(attribute.Int("quota.used", n))
	return Decision{Metered: true, Used: n}, nil
}

// Usage reports the caller's standing without writing to the store. A stored
// count from an earlier day is reported as zero.
func (g *QuotaGate) Usage(ctx context.Context, identity string) (Usage, error) {
	tr := otel.Tracer("services/QuotaGate")
	ctx, span := tr.Start(ctx, "Usage",
		trace.WithAttributes(attribute.String("user.id", identity)),
	)
	defer span.End()

	if strings.TrimSpace(identity) == "" {
		return Usage{}, ErrValidation
	}

	now := g.now()
	loc := g.loc()
	rec, err := g.Store.Read(ctx, identity)
	if err != nil {
		span.RecordError(err)
		return Usage{}, fmt.Errorf("quota read: %w", err)
	}

	used := 0
	if timeutil.SameDay(rec.LastReset, now, loc) {
		used = rec.DailyCount
	}
	limit := g.limit()
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Usage{
		Used:      used,
		Limit:     limit,
		Remaining: remaining,
		Exempt:    g.exempt(ctx, identity),
		ResetsAt:  timeutil.NextMidnight(now, loc),
	}, nil
}

// exempt looks up the privilege flag and resolves failures by policy.
func (g *QuotaGate) exempt(ctx context.Context, identity string) bool {
	if g.Privileges == nil {
		return false
	}
	ok, err := g.Privileges.IsExempt(ctx, identity)
	if err == nil {
		return ok
	}
	privilegeLookupFailures.Inc()
	trace.SpanFromContext(ctx).RecordError(err)
	lvl := log.Warn()
	if errors.Is(err, context.Canceled) {
		lvl = log.Debug()
	}
	lvl.Err(err).
		Str("identity", identity).
		Str("policy", g.Policy.String()).
		Msg("privilege lookup failed")
	return g.Policy == FailOpen
}

func (g *QuotaGate) limit() int {
	if g.Limit <= 0 {
		return DefaultDailyLimit
	}
	return g.Limit
}

func (g *QuotaGate) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

func (g *QuotaGate) loc() *time.Location {
	return timeutil.EnsureLocation(g.Location)
}
