package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"peerdrop/internal/server/config"
	"peerdrop/internal/server/database"

	"github.com/google/uuid"
)

// StrikeService accumulates violation strikes and bans accounts that
// cross the threshold. The ban is permanent; there is no transition back.
type StrikeService struct {
	strikes StrikeStore
	cfg     *config.Config
	now     Clock
}

// NewStrikeService creates a new strike service. A nil clock defaults to time.Now.
func NewStrikeService(strikes StrikeStore, cfg *config.Config, clock Clock) *StrikeService {
	if clock == nil {
		clock = time.Now
	}
	return &StrikeService{strikes: strikes, cfg: cfg, now: clock}
}

// Add appends an immutable strike record, bumps the matching counter, and
// bans the user when either counter reaches the threshold. Returns the
// recorded strike and whether the user is now banned.
func (s *StrikeService) Add(ctx context.Context, user *database.User, strikeType, reason string) (*database.Strike, bool, error) {
	if strikeType != database.StrikeUploader && strikeType != database.StrikeReviewer {
		return nil, false, fmt.Errorf("%w: unknown strike type %q", ErrValidation, strikeType)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, false, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	strike := &database.Strike{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		StrikeType: strikeType,
		Reason:     reason,
		CreatedAt:  s.now().UTC(),
	}

	banned, err := s.strikes.AddStrike(ctx, strike, s.cfg.BanThreshold)
	if err != nil {
		return nil, false, fmt.Errorf("failed to add strike: %w", err)
	}

	if strikeType == database.StrikeUploader {
		user.UploaderStrikes++
	} else {
		user.ReviewerStrikes++
	}
	if banned {
		user.IsBanned = true
	}

	slog.Info("strike recorded",
		"user_id", user.ID,
		"strike_type", strikeType,
		"banned", banned,
	)

	return strike, banned, nil
}

// ListForUser returns a user's violation history, newest first.
func (s *StrikeService) ListForUser(ctx context.Context, userID string) ([]*database.Strike, error) {
	return s.strikes.ListStrikesByUser(ctx, userID)
}
