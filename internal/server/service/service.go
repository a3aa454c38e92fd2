// Package service contains the business logic for the upload/review
// lifecycle: daily quota tracking, upload and review creation, strikes
// and bans, and ranking tiers.
package service

import (
	"context"
	"errors"
	"time"

	"peerdrop/internal/server/database"
)

// Sentinel errors for the service layer.
var (
	ErrNotFound        = errors.New("upload not found")
	ErrValidation      = errors.New("invalid input")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrQuotaExceeded   = errors.New("daily quota exceeded")
	ErrDuplicateReview = errors.New("upload already reviewed")
	ErrUploadFull      = errors.New("upload already has the maximum number of reviews")
	ErrSelfReview      = errors.New("cannot review own upload")
	ErrNotOwner        = errors.New("upload belongs to another user")
	ErrBanned          = errors.New("account is banned")
)

// Clock supplies the current time. Injected so quota rollover and
// deadline logic are deterministic under test.
type Clock func() time.Time

// UserStore persists user accounts and their daily counters.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*database.User, error)
	SaveDailyCounters(ctx context.Context, u *database.User) error
}

// UploadStore persists uploads. CreateUpload must apply the XP award and
// counter increments atomically with the insert.
type UploadStore interface {
	CreateUpload(ctx context.Context, upload *database.Upload, xpAward int64, limits database.QuotaLimits) error
	GetUploadByID(ctx context.Context, id string) (*database.Upload, error)
	DeleteUploadCascade(ctx context.Context, uploadID string) error
	CountUploadsByUser(ctx context.Context, userID string) (int64, error)
	ListReviewable(ctx context.Context, reviewerID string, maxReviews, limit int) ([]*database.Upload, error)
	ReviewCounts(ctx context.Context, uploadID string) (good, total int, err error)
}

// ReviewStore persists reviews. CreateReview must apply the XP award and
// counter increment atomically with the insert.
type ReviewStore interface {
	CreateReview(ctx context.Context, review *database.Review, xpAward int64, maxPerUpload int, limits database.QuotaLimits) error
	HasReview(ctx context.Context, uploadID, reviewerID string) (bool, error)
	CountReviewsByReviewer(ctx context.Context, reviewerID string) (int64, error)
}

// StrikeStore persists strike records.
type StrikeStore interface {
	AddStrike(ctx context.Context, strike *database.Strike, banThreshold int) (banned bool, err error)
	ListStrikesByUser(ctx context.Context, userID string) ([]*database.Strike, error)
}
