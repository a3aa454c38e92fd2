package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"peerdrop/internal/server/config"
	"peerdrop/internal/server/database"
	"peerdrop/internal/server/storage"

	"github.com/google/uuid"
)

// Description length bounds for uploads.
const (
	minDescriptionLen = 10
	maxDescriptionLen = 1000
)

// UploadService contains the business logic for the upload lifecycle.
type UploadService struct {
	uploads UploadStore
	store   storage.Store
	quota   *QuotaTracker
	cfg     *config.Config
	now     Clock
}

// NewUploadService creates a new upload service. A nil clock defaults to time.Now.
func NewUploadService(uploads UploadStore, store storage.Store, quota *QuotaTracker, cfg *config.Config, clock Clock) *UploadService {
	if clock == nil {
		clock = time.Now
	}
	return &UploadService{
		uploads: uploads,
		store:   store,
		quota:   quota,
		cfg:     cfg,
		now:     clock,
	}
}

// Create validates and records a new upload, stores its blob, and awards
// upload XP. All checks run before any mutation; the database record and
// the owner's counters are written as one atomic unit. The blob is removed
// again if the database write fails.
func (s *UploadService) Create(ctx context.Context, user *database.User, filename string, data io.Reader, size int64, description, category string, aiConsent bool) (*database.Upload, error) {
	description = strings.TrimSpace(description)
	if len(description) < minDescriptionLen || len(description) > maxDescriptionLen {
		return nil, fmt.Errorf("%w: description must be %d-%d characters", ErrValidation, minDescriptionLen, maxDescriptionLen)
	}
	if !database.ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}
	if !aiConsent {
		return nil, fmt.Errorf("%w: consent is required", ErrValidation)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: empty file", ErrValidation)
	}

	// Quota preconditions, first failure wins: per-file cap, daily bytes,
	// daily slots, ban state.
	if size > s.cfg.MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if s.quota.RemainingUploadBytes(ctx, user) < size {
		return nil, fmt.Errorf("%w: daily upload bytes exhausted", ErrQuotaExceeded)
	}
	if !s.quota.CanUploadToday(ctx, user) {
		return nil, fmt.Errorf("%w: daily upload limit reached", ErrQuotaExceeded)
	}
	if user.IsBanned {
		return nil, ErrBanned
	}

	uploadID := uuid.NewString()

	storedBytes, err := s.store.Save(uploadID, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	now := s.now().UTC()
	upload := &database.Upload{
		ID:               uploadID,
		UserID:           user.ID,
		Filename:         uploadID,
		OriginalFilename: sanitizeFilename(filename),
		FileSize:         storedBytes,
		Description:      description,
		Category:         category,
		Status:           database.StatusPending,
		AIConsent:        aiConsent,
		UploadedAt:       now,
		DeletionDeadline: now.Add(s.cfg.DeletionGrace),
		CreatedAt:        now,
	}

	err = s.uploads.CreateUpload(ctx, upload, s.cfg.UploadXP, database.QuotaLimits{
		MaxDailyBytes:   s.cfg.MaxDailyBytes,
		MaxDailyUploads: s.cfg.MaxDailyUploads,
		MaxDailyReviews: s.cfg.MaxDailyReviews,
	})
	if err != nil {
		// No partial state: remove the blob when the record fails.
		if delErr := s.store.Delete(uploadID); delErr != nil {
			slog.Error("failed to remove blob after create failure", "upload_id", uploadID, "error", delErr)
		}
		if errors.Is(err, database.ErrQuotaExceeded) {
			return nil, fmt.Errorf("%w: quota re-check failed", ErrQuotaExceeded)
		}
		return nil, fmt.Errorf("failed to create upload record: %w", err)
	}

	user.XPPoints += s.cfg.UploadXP
	user.DailyUploadCount++
	user.DailyUploadBytes += storedBytes

	slog.Info("upload created",
		"upload_id", uploadID,
		"user_id", user.ID,
		"filename", upload.OriginalFilename,
		"size", storedBytes,
		"category", category,
	)

	return upload, nil
}

// DeletionPenalty computes the XP penalty for deleting an upload at the
// given time: zero within the grace window, then perHour XP per full hour
// late (fractional hours count toward the product before flooring),
// clamped at max.
func DeletionPenalty(upload *database.Upload, now time.Time, perHour, max int64) int64 {
	if now.Before(upload.DeletionDeadline) {
		return 0
	}
	hoursLate := now.Sub(upload.DeletionDeadline).Hours()
	penalty := int64(hoursLate * float64(perHour))
	if penalty > max {
		return max
	}
	return penalty
}

// Delete removes an upload: its reviews and record in one transaction,
// then its blob (best-effort). Only the owner may delete. The returned
// penalty is informational and is not deducted from the owner's balance.
func (s *UploadService) Delete(ctx context.Context, user *database.User, uploadID string) (penalty int64, err error) {
	upload, err := s.uploads.GetUploadByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, database.ErrUploadNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	if upload.UserID != user.ID {
		return 0, ErrNotOwner
	}

	penalty = DeletionPenalty(upload, s.now().UTC(), s.cfg.PenaltyPerHour, s.cfg.PenaltyMax)

	if err := s.uploads.DeleteUploadCascade(ctx, uploadID); err != nil {
		return 0, fmt.Errorf("failed to delete upload record: %w", err)
	}

	// The record is gone; a blob failure here only orphans a file, which
	// the janitor collects later.
	if err := s.store.Delete(uploadID); err != nil {
		slog.Error("failed to delete blob", "upload_id", uploadID, "error", err)
	}

	slog.Info("upload deleted",
		"upload_id", uploadID,
		"user_id", user.ID,
		"penalty", penalty,
	)

	return penalty, nil
}

// Get returns an upload by id.
func (s *UploadService) Get(ctx context.Context, uploadID string) (*database.Upload, error) {
	upload, err := s.uploads.GetUploadByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, database.ErrUploadNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return upload, nil
}

// AverageRating returns the share of good reviews in [0,1], or nil when
// the upload has no reviews yet. Recomputed on every call; review volume
// per upload is capped so no aggregate is cached.
func (s *UploadService) AverageRating(ctx context.Context, uploadID string) (*float64, error) {
	good, total, err := s.uploads.ReviewCounts(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}
	avg := float64(good) / float64(total)
	return &avg, nil
}

// ReviewQueue returns uploads the user may still review, newest first.
func (s *UploadService) ReviewQueue(ctx context.Context, user *database.User, limit int) ([]*database.Upload, error) {
	return s.uploads.ListReviewable(ctx, user.ID, s.cfg.MaxReviews, limit)
}

// sanitizeFilename strips directory components and limits length.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	if len(name) > 255 {
		ext := filepath.Ext(name)
		name = name[:255-len(ext)] + ext
	}

	if name == "" || name == "." || name == "/" {
		name = "upload"
	}

	return name
}
