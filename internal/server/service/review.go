package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"peerdrop/internal/server/config"
	"peerdrop/internal/server/database"

	"github.com/google/uuid"
)

// Review description length bounds.
const (
	minReviewLen = 10
	maxReviewLen = 500
)

// ReviewService contains the business logic for peer reviews.
type ReviewService struct {
	reviews ReviewStore
	uploads UploadStore
	quota   *QuotaTracker
	cfg     *config.Config
	now     Clock
}

// NewReviewService creates a new review service. A nil clock defaults to time.Now.
func NewReviewService(reviews ReviewStore, uploads UploadStore, quota *QuotaTracker, cfg *config.Config, clock Clock) *ReviewService {
	if clock == nil {
		clock = time.Now
	}
	return &ReviewService{
		reviews: reviews,
		uploads: uploads,
		quota:   quota,
		cfg:     cfg,
		now:     clock,
	}
}

// Create records a review and awards review XP. Preconditions, in order:
// valid input, reviewer not banned, no self-review, no duplicate review by
// this reviewer, upload under its review cap, daily review quota. The
// review row and the reviewer's counters are written as one atomic unit;
// the store re-checks the cap and quota under a row lock so concurrent
// requests cannot overshoot either invariant.
func (s *ReviewService) Create(ctx context.Context, reviewer *database.User, uploadID, rating, description string) (*database.Review, error) {
	if rating != database.RatingGood && rating != database.RatingBad {
		return nil, fmt.Errorf("%w: rating must be %q or %q", ErrValidation, database.RatingGood, database.RatingBad)
	}
	description = strings.TrimSpace(description)
	if len(description) < minReviewLen || len(description) > maxReviewLen {
		return nil, fmt.Errorf("%w: description must be %d-%d characters", ErrValidation, minReviewLen, maxReviewLen)
	}

	if reviewer.IsBanned {
		return nil, ErrBanned
	}

	upload, err := s.uploads.GetUploadByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, database.ErrUploadNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if upload.UserID == reviewer.ID {
		return nil, ErrSelfReview
	}

	exists, err := s.reviews.HasReview(ctx, uploadID, reviewer.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateReview
	}

	_, total, err := s.uploads.ReviewCounts(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if total >= s.cfg.MaxReviews {
		return nil, ErrUploadFull
	}

	if !s.quota.CanReviewToday(ctx, reviewer) {
		return nil, fmt.Errorf("%w: daily review limit reached", ErrQuotaExceeded)
	}

	review := &database.Review{
		ID:           uuid.NewString(),
		UploadID:     uploadID,
		ReviewerID:   reviewer.ID,
		Rating:       rating,
		Description:  description,
		XPEarned:     s.cfg.ReviewXP,
		IsFlagged:    false,
		QualityScore: 1.0,
		CreatedAt:    s.now().UTC(),
	}

	err = s.reviews.CreateReview(ctx, review, s.cfg.ReviewXP, s.cfg.MaxReviews, database.QuotaLimits{
		MaxDailyBytes:   s.cfg.MaxDailyBytes,
		MaxDailyUploads: s.cfg.MaxDailyUploads,
		MaxDailyReviews: s.cfg.MaxDailyReviews,
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicateReview):
			return nil, ErrDuplicateReview
		case errors.Is(err, database.ErrUploadFull):
			return nil, ErrUploadFull
		case errors.Is(err, database.ErrQuotaExceeded):
			return nil, fmt.Errorf("%w: daily review limit reached", ErrQuotaExceeded)
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	reviewer.XPPoints += s.cfg.ReviewXP
	reviewer.DailyReviewCount++

	slog.Info("review created",
		"review_id", review.ID,
		"upload_id", uploadID,
		"reviewer_id", reviewer.ID,
		"rating", rating,
	)

	return review, nil
}
