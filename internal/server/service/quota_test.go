package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"peerdrop/internal/server/database"
)

func TestRefreshIfStale(t *testing.T) {
	ctx := context.Background()
	day1 := time.Date(2025, 3, 10, 22, 15, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 11, 0, 5, 0, 0, time.UTC)

	t.Run("zeroes counters on a later calendar date", func(t *testing.T) {
		store := newFakeStore()
		user := &database.User{
			ID:               "u1",
			DailyUploadBytes: 1024,
			DailyUploadCount: 2,
			DailyUploadReset: day1,
			DailyReviewCount: 4,
			DailyReviewReset: day1,
		}
		store.addUser(user)

		q := NewQuotaTracker(store, testConfig(), fixedClock(day2))
		q.RefreshIfStale(ctx, user)

		if user.DailyUploadBytes != 0 || user.DailyUploadCount != 0 {
			t.Errorf("upload counters not zeroed: bytes=%d count=%d", user.DailyUploadBytes, user.DailyUploadCount)
		}
		if user.DailyReviewCount != 0 {
			t.Errorf("review counter not zeroed: %d", user.DailyReviewCount)
		}
		if !user.DailyUploadReset.Equal(day2) || !user.DailyReviewReset.Equal(day2) {
			t.Error("reset timestamps not advanced")
		}

		// Rollover must be persisted immediately
		stored, _ := store.GetUserByID(ctx, "u1")
		if stored.DailyUploadCount != 0 || stored.DailyReviewCount != 0 {
			t.Error("rollover not persisted")
		}
	})

	t.Run("no reset within the same day", func(t *testing.T) {
		store := newFakeStore()
		later := day1.Add(90 * time.Minute) // still March 10
		user := &database.User{
			ID:               "u1",
			DailyUploadBytes: 1024,
			DailyUploadCount: 2,
			DailyUploadReset: day1,
			DailyReviewCount: 4,
			DailyReviewReset: day1,
		}
		store.addUser(user)

		q := NewQuotaTracker(store, testConfig(), fixedClock(later))
		q.RefreshIfStale(ctx, user)

		if user.DailyUploadCount != 2 || user.DailyReviewCount != 4 {
			t.Error("counters reset within the same day")
		}
		if store.saveCalls != 0 {
			t.Errorf("expected no persistence call, got %d", store.saveCalls)
		}
	})

	t.Run("idempotent within a day", func(t *testing.T) {
		store := newFakeStore()
		user := &database.User{ID: "u1", DailyUploadCount: 3, DailyUploadReset: day1, DailyReviewReset: day1}
		store.addUser(user)

		q := NewQuotaTracker(store, testConfig(), fixedClock(day2))
		q.RefreshIfStale(ctx, user)
		saves := store.saveCalls
		q.RefreshIfStale(ctx, user)
		q.RefreshIfStale(ctx, user)

		if store.saveCalls != saves {
			t.Errorf("repeated refresh persisted again: %d -> %d", saves, store.saveCalls)
		}
	})

	t.Run("first touch initializes without zeroing", func(t *testing.T) {
		store := newFakeStore()
		user := &database.User{ID: "u1", DailyUploadBytes: 512, DailyUploadCount: 1}
		store.addUser(user)

		q := NewQuotaTracker(store, testConfig(), fixedClock(day1))
		q.RefreshIfStale(ctx, user)

		if user.DailyUploadReset.IsZero() || user.DailyReviewReset.IsZero() {
			t.Error("reset timestamps not initialized")
		}
		if user.DailyUploadBytes != 512 || user.DailyUploadCount != 1 {
			t.Error("first touch must not zero counters")
		}
	})

	t.Run("independent clocks reset independently", func(t *testing.T) {
		store := newFakeStore()
		user := &database.User{
			ID:               "u1",
			DailyUploadCount: 2,
			DailyUploadReset: day2, // already current
			DailyReviewCount: 4,
			DailyReviewReset: day1, // stale
		}
		store.addUser(user)

		q := NewQuotaTracker(store, testConfig(), fixedClock(day2))
		q.RefreshIfStale(ctx, user)

		if user.DailyUploadCount != 2 {
			t.Error("upload counter reset although its clock was current")
		}
		if user.DailyReviewCount != 0 {
			t.Error("review counter not reset although its clock was stale")
		}
	})

	t.Run("persistence failure degrades to in-memory refresh", func(t *testing.T) {
		store := newFakeStore()
		user := &database.User{ID: "u1", DailyUploadCount: 3, DailyUploadReset: day1, DailyReviewReset: day1}
		store.addUser(user)
		store.saveCountersErr = errors.New("connection lost")

		q := NewQuotaTracker(store, testConfig(), fixedClock(day2))

		// Must not panic or surface the error; counters still roll over in memory.
		q.RefreshIfStale(ctx, user)
		if user.DailyUploadCount != 0 {
			t.Error("in-memory rollover lost on persistence failure")
		}
		if !q.CanUploadToday(ctx, user) {
			t.Error("quota queries should serve the refreshed value")
		}
	})
}

func TestQuotaQueries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cfg := testConfig()

	newTracker := func(u *database.User) *QuotaTracker {
		store := newFakeStore()
		store.addUser(u)
		return NewQuotaTracker(store, cfg, fixedClock(now))
	}

	t.Run("remaining upload bytes", func(t *testing.T) {
		user := &database.User{ID: "u1", DailyUploadBytes: 100 * 1024 * 1024, DailyUploadReset: now, DailyReviewReset: now}
		q := newTracker(user)

		want := cfg.MaxDailyBytes - 100*1024*1024
		if got := q.RemainingUploadBytes(ctx, user); got != want {
			t.Errorf("expected %d remaining bytes, got %d", want, got)
		}
	})

	t.Run("upload slots", func(t *testing.T) {
		user := &database.User{ID: "u1", DailyUploadCount: 2, DailyUploadReset: now, DailyReviewReset: now}
		q := newTracker(user)

		if !q.CanUploadToday(ctx, user) {
			t.Error("2 of 3 uploads used, should still be allowed")
		}
		if got := q.RemainingUploadSlots(ctx, user); got != 1 {
			t.Errorf("expected 1 slot, got %d", got)
		}

		user.DailyUploadCount = 3
		if q.CanUploadToday(ctx, user) {
			t.Error("3 of 3 uploads used, should be blocked")
		}
		if got := q.RemainingUploadSlots(ctx, user); got != 0 {
			t.Errorf("expected 0 slots, got %d", got)
		}
	})

	t.Run("review slots", func(t *testing.T) {
		user := &database.User{ID: "u1", DailyReviewCount: 4, DailyUploadReset: now, DailyReviewReset: now}
		q := newTracker(user)

		if !q.CanReviewToday(ctx, user) {
			t.Error("4 of 5 reviews used, should still be allowed")
		}

		user.DailyReviewCount = 5
		if q.CanReviewToday(ctx, user) {
			t.Error("5 of 5 reviews used, should be blocked")
		}
		if got := q.RemainingReviewSlots(ctx, user); got != 0 {
			t.Errorf("expected 0 slots, got %d", got)
		}
	})

	t.Run("query refreshes stale counters first", func(t *testing.T) {
		yesterday := now.Add(-24 * time.Hour)
		user := &database.User{ID: "u1", DailyUploadCount: 3, DailyUploadReset: yesterday, DailyReviewReset: now}
		q := newTracker(user)

		if !q.CanUploadToday(ctx, user) {
			t.Error("stale counter must roll over before the check")
		}
	})
}

func TestDateAfter(t *testing.T) {
	base := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b time.Time
		want bool
	}{
		{"next day", base.Add(2 * time.Minute), base, true},
		{"same day", base, base.Add(-time.Hour), false},
		{"next month", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), base, true},
		{"next year", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), base, true},
		{"earlier day", base.Add(-48 * time.Hour), base, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dateAfter(tt.a, tt.b); got != tt.want {
				t.Errorf("dateAfter(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
