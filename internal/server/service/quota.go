package service

import (
	"context"
	"log/slog"
	"time"

	"peerdrop/internal/server/config"
	"peerdrop/internal/server/database"
)

// QuotaTracker maintains per-user daily counters with lazy calendar-day
// rollover. Counters are reset on read when the current date is strictly
// later than the stored reset timestamp's date; there is no background
// clock. Callers must not cache counter values across a day boundary.
type QuotaTracker struct {
	users UserStore
	cfg   *config.Config
	now   Clock
}

// NewQuotaTracker creates a quota tracker. A nil clock defaults to time.Now.
func NewQuotaTracker(users UserStore, cfg *config.Config, clock Clock) *QuotaTracker {
	if clock == nil {
		clock = time.Now
	}
	return &QuotaTracker{users: users, cfg: cfg, now: clock}
}

// dateAfter reports whether a's calendar date (UTC) is strictly after b's.
func dateAfter(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}

// RefreshIfStale rolls the user's daily counters over to a new day if
// needed. The upload and review clocks are independent: one may reset
// without the other. A reset timestamp that was never set is initialized
// without zeroing (first touch). Idempotent within a calendar day.
//
// The mutation is persisted immediately. If persistence fails the refresh
// still takes effect in memory and the fault is logged; the tracker serves
// best-effort values rather than failing the caller's flow.
func (q *QuotaTracker) RefreshIfStale(ctx context.Context, u *database.User) {
	now := q.now().UTC()
	changed := false

	if u.DailyUploadReset.IsZero() {
		u.DailyUploadReset = now
		changed = true
	} else if dateAfter(now, u.DailyUploadReset) {
		u.DailyUploadBytes = 0
		u.DailyUploadCount = 0
		u.DailyUploadReset = now
		changed = true
	}

	if u.DailyReviewReset.IsZero() {
		u.DailyReviewReset = now
		changed = true
	} else if dateAfter(now, u.DailyReviewReset) {
		u.DailyReviewCount = 0
		u.DailyReviewReset = now
		changed = true
	}

	if !changed {
		return
	}

	if err := q.users.SaveDailyCounters(ctx, u); err != nil {
		slog.Warn("quota refresh not persisted, serving stale counters",
			"user_id", u.ID, "error", err)
	}
}

// RemainingUploadBytes returns how many bytes the user may still upload today.
func (q *QuotaTracker) RemainingUploadBytes(ctx context.Context, u *database.User) int64 {
	q.RefreshIfStale(ctx, u)
	remaining := q.cfg.MaxDailyBytes - u.DailyUploadBytes
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanUploadToday reports whether the user has upload slots left today.
func (q *QuotaTracker) CanUploadToday(ctx context.Context, u *database.User) bool {
	q.RefreshIfStale(ctx, u)
	return u.DailyUploadCount < q.cfg.MaxDailyUploads
}

// CanReviewToday reports whether the user has review slots left today.
func (q *QuotaTracker) CanReviewToday(ctx context.Context, u *database.User) bool {
	q.RefreshIfStale(ctx, u)
	return u.DailyReviewCount < q.cfg.MaxDailyReviews
}

// RemainingUploadSlots returns how many uploads the user may still make today.
func (q *QuotaTracker) RemainingUploadSlots(ctx context.Context, u *database.User) int {
	q.RefreshIfStale(ctx, u)
	remaining := q.cfg.MaxDailyUploads - u.DailyUploadCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingReviewSlots returns how many reviews the user may still make today.
func (q *QuotaTracker) RemainingReviewSlots(ctx context.Context, u *database.User) int {
	q.RefreshIfStale(ctx, u)
	remaining := q.cfg.MaxDailyReviews - u.DailyReviewCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
