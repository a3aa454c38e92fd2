package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUploadNotFound  = errors.New("upload not found")
	ErrQuotaExceeded   = errors.New("daily quota exceeded")
	ErrDuplicateReview = errors.New("upload already reviewed by this user")
	ErrUploadFull      = errors.New("upload has reached its review cap")
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// QuotaLimits are the per-day caps re-verified inside write transactions.
// The service layer checks them first for precise errors; the transaction
// re-checks under a row lock so two concurrent requests cannot both pass.
type QuotaLimits struct {
	MaxDailyBytes   int64
	MaxDailyUploads int
	MaxDailyReviews int
}

// Repository provides CRUD operations for users, uploads, reviews and strikes.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, username, name, email, password_hash, xp_points,
	uploader_strikes, reviewer_strikes, is_banned,
	daily_upload_bytes, daily_upload_count, daily_upload_reset,
	daily_review_count, daily_review_reset, created_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	var uploadReset, reviewReset *time.Time
	err := row.Scan(
		&u.ID, &u.Username, &u.Name, &u.Email, &u.PasswordHash, &u.XPPoints,
		&u.UploaderStrikes, &u.ReviewerStrikes, &u.IsBanned,
		&u.DailyUploadBytes, &u.DailyUploadCount, &uploadReset,
		&u.DailyReviewCount, &reviewReset, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if uploadReset != nil {
		u.DailyUploadReset = *uploadReset
	}
	if reviewReset != nil {
		u.DailyReviewReset = *reviewReset
	}
	return u, nil
}

// nullTime maps the zero time to SQL NULL so "never reset" survives a round trip.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CreateUser inserts a new user record.
func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO users (
			id, username, name, email, password_hash, xp_points,
			uploader_strikes, reviewer_strikes, is_banned,
			daily_upload_bytes, daily_upload_count, daily_upload_reset,
			daily_review_count, daily_review_reset, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		u.ID, u.Username, u.Name, u.Email, u.PasswordHash, u.XPPoints,
		u.UploaderStrikes, u.ReviewerStrikes, u.IsBanned,
		u.DailyUploadBytes, u.DailyUploadCount, nullTime(u.DailyUploadReset),
		u.DailyReviewCount, nullTime(u.DailyReviewReset), u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by id.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(r.db.Pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(r.db.Pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, nil
}

// SaveDailyCounters persists a user's quota counters and reset timestamps.
func (r *Repository) SaveDailyCounters(ctx context.Context, u *User) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE users SET
			daily_upload_bytes = $2, daily_upload_count = $3, daily_upload_reset = $4,
			daily_review_count = $5, daily_review_reset = $6
		WHERE id = $1
	`,
		u.ID,
		u.DailyUploadBytes, u.DailyUploadCount, nullTime(u.DailyUploadReset),
		u.DailyReviewCount, nullTime(u.DailyReviewReset),
	)
	if err != nil {
		return fmt.Errorf("failed to save daily counters: %w", err)
	}
	return nil
}

// CreateUpload inserts an upload record and applies its XP award and quota
// counter increments to the owner in a single transaction. The owner row is
// locked and the quota re-checked so concurrent uploads cannot both slip
// under the daily caps.
func (r *Repository) CreateUpload(ctx context.Context, upload *Upload, xpAward int64, limits QuotaLimits) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int
	var bytes int64
	err = tx.QueryRow(ctx, `
		SELECT daily_upload_count, daily_upload_bytes
		FROM users WHERE id = $1 FOR UPDATE
	`, upload.UserID).Scan(&count, &bytes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to lock user row: %w", err)
	}

	if count >= limits.MaxDailyUploads || bytes+upload.FileSize > limits.MaxDailyBytes {
		return ErrQuotaExceeded
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO uploads (
			id, user_id, filename, original_filename, file_size, description,
			category, status, ai_consent, uploaded_at, deletion_deadline, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		upload.ID, upload.UserID, upload.Filename, upload.OriginalFilename,
		upload.FileSize, upload.Description, upload.Category, upload.Status,
		upload.AIConsent, upload.UploadedAt, upload.DeletionDeadline, upload.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET
			xp_points = xp_points + $2,
			daily_upload_count = daily_upload_count + 1,
			daily_upload_bytes = daily_upload_bytes + $3
		WHERE id = $1
	`, upload.UserID, xpAward, upload.FileSize)
	if err != nil {
		return fmt.Errorf("failed to update uploader stats: %w", err)
	}

	return tx.Commit(ctx)
}

// GetUploadByID retrieves an upload by its id.
func (r *Repository) GetUploadByID(ctx context.Context, id string) (*Upload, error) {
	upload := &Upload{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, filename, original_filename, file_size, description,
			   category, status, ai_consent, uploaded_at, deletion_deadline, created_at
		FROM uploads WHERE id = $1
	`, id).Scan(
		&upload.ID, &upload.UserID, &upload.Filename, &upload.OriginalFilename,
		&upload.FileSize, &upload.Description, &upload.Category, &upload.Status,
		&upload.AIConsent, &upload.UploadedAt, &upload.DeletionDeadline, &upload.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUploadNotFound
		}
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return upload, nil
}

// DeleteUploadCascade removes an upload's reviews and then the upload itself
// in one transaction. Blob removal is the caller's concern and happens after
// the commit; an orphaned file beats a dangling database reference.
func (r *Repository) DeleteUploadCascade(ctx context.Context, uploadID string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM reviews WHERE upload_id = $1", uploadID); err != nil {
		return fmt.Errorf("failed to delete reviews: %w", err)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM uploads WHERE id = $1", uploadID)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUploadNotFound
	}

	return tx.Commit(ctx)
}

// CountUploadsByUser returns a user's lifetime upload count.
func (r *Repository) CountUploadsByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM uploads WHERE user_id = $1", userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count uploads: %w", err)
	}
	return n, nil
}

// ListReviewable returns uploads the given user may still review: not their
// own, not already reviewed by them, and under the per-upload review cap.
func (r *Repository) ListReviewable(ctx context.Context, reviewerID string, maxReviews, limit int) ([]*Upload, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT u.id, u.user_id, u.filename, u.original_filename, u.file_size,
			   u.description, u.category, u.status, u.ai_consent,
			   u.uploaded_at, u.deletion_deadline, u.created_at
		FROM uploads u
		WHERE u.user_id != $1
		  AND NOT EXISTS (
			SELECT 1 FROM reviews r WHERE r.upload_id = u.id AND r.reviewer_id = $1
		  )
		  AND (SELECT COUNT(*) FROM reviews r WHERE r.upload_id = u.id) < $2
		ORDER BY u.uploaded_at DESC
		LIMIT $3
	`, reviewerID, maxReviews, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviewable uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		upload := &Upload{}
		if err := rows.Scan(
			&upload.ID, &upload.UserID, &upload.Filename, &upload.OriginalFilename,
			&upload.FileSize, &upload.Description, &upload.Category, &upload.Status,
			&upload.AIConsent, &upload.UploadedAt, &upload.DeletionDeadline, &upload.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, upload)
	}
	return uploads, rows.Err()
}

// ReviewCounts returns the number of good reviews and total reviews for an upload.
func (r *Repository) ReviewCounts(ctx context.Context, uploadID string) (good, total int, err error) {
	err = r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE rating = 'good'), COUNT(*)
		FROM reviews WHERE upload_id = $1
	`, uploadID).Scan(&good, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return good, total, nil
}

// HasReview reports whether the reviewer has already reviewed the upload.
func (r *Repository) HasReview(ctx context.Context, uploadID, reviewerID string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM reviews WHERE upload_id = $1 AND reviewer_id = $2)",
		uploadID, reviewerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check review existence: %w", err)
	}
	return exists, nil
}

// CreateReview inserts a review and applies its XP award and review counter
// increment to the reviewer in a single transaction. The reviewer row is
// locked and the daily quota and per-upload cap re-checked; the unique index
// on (upload_id, reviewer_id) backs the duplicate check under races.
func (r *Repository) CreateReview(ctx context.Context, review *Review, xpAward int64, maxPerUpload int, limits QuotaLimits) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int
	err = tx.QueryRow(ctx,
		"SELECT daily_review_count FROM users WHERE id = $1 FOR UPDATE",
		review.ReviewerID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to lock reviewer row: %w", err)
	}
	if count >= limits.MaxDailyReviews {
		return ErrQuotaExceeded
	}

	var existing int
	err = tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM reviews WHERE upload_id = $1", review.UploadID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to count existing reviews: %w", err)
	}
	if existing >= maxPerUpload {
		return ErrUploadFull
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reviews (
			id, upload_id, reviewer_id, rating, description,
			xp_earned, is_flagged, quality_score, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		review.ID, review.UploadID, review.ReviewerID, review.Rating,
		review.Description, review.XPEarned, review.IsFlagged,
		review.QualityScore, review.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateReview
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET
			xp_points = xp_points + $2,
			daily_review_count = daily_review_count + 1
		WHERE id = $1
	`, review.ReviewerID, xpAward)
	if err != nil {
		return fmt.Errorf("failed to update reviewer stats: %w", err)
	}

	return tx.Commit(ctx)
}

// CountReviewsByReviewer returns a user's lifetime review count.
func (r *Repository) CountReviewsByReviewer(ctx context.Context, reviewerID string) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM reviews WHERE reviewer_id = $1", reviewerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews by reviewer: %w", err)
	}
	return n, nil
}

// AddStrike appends a strike record, increments the matching counter, and
// bans the user when either counter reaches banThreshold. Returns the final
// banned state. One transaction; strikes are never updated or removed.
func (r *Repository) AddStrike(ctx context.Context, strike *Strike, banThreshold int) (banned bool, err error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO strikes (id, user_id, strike_type, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, strike.ID, strike.UserID, strike.StrikeType, strike.Reason, strike.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create strike: %w", err)
	}

	column := "uploader_strikes"
	if strike.StrikeType == StrikeReviewer {
		column = "reviewer_strikes"
	}

	var uploaderStrikes, reviewerStrikes int
	err = tx.QueryRow(ctx, `
		UPDATE users SET `+column+` = `+column+` + 1
		WHERE id = $1
		RETURNING uploader_strikes, reviewer_strikes
	`, strike.UserID).Scan(&uploaderStrikes, &reviewerStrikes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to increment strike counter: %w", err)
	}

	if uploaderStrikes >= banThreshold || reviewerStrikes >= banThreshold {
		banned = true
		if _, err := tx.Exec(ctx,
			"UPDATE users SET is_banned = TRUE WHERE id = $1", strike.UserID); err != nil {
			return false, fmt.Errorf("failed to ban user: %w", err)
		}
	}

	return banned, tx.Commit(ctx)
}

// ListStrikesByUser returns a user's strikes, newest first.
func (r *Repository) ListStrikesByUser(ctx context.Context, userID string) ([]*Strike, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, strike_type, reason, created_at
		FROM strikes WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query strikes: %w", err)
	}
	defer rows.Close()

	var strikes []*Strike
	for rows.Next() {
		s := &Strike{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.StrikeType, &s.Reason, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan strike: %w", err)
		}
		strikes = append(strikes, s)
	}
	return strikes, rows.Err()
}

// CreateFeedback inserts a site-rating record.
func (r *Repository) CreateFeedback(ctx context.Context, f *Feedback) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO feedback (id, user_id, rating, category, description, contact_email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.UserID, f.Rating, f.Category, f.Description, f.ContactEmail, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// ListUploadIDs returns the ids of all upload records. Used by the storage
// janitor to detect orphaned blobs.
func (r *Repository) ListUploadIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, "SELECT id FROM uploads")
	if err != nil {
		return nil, fmt.Errorf("failed to query upload ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan upload id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetStats returns aggregate platform statistics.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE is_banned),
			(SELECT COUNT(*) FROM uploads),
			(SELECT COUNT(*) FROM reviews),
			(SELECT COALESCE(SUM(file_size), 0) FROM uploads)
	`).Scan(
		&stats.TotalUsers,
		&stats.BannedUsers,
		&stats.TotalUploads,
		&stats.TotalReviews,
		&stats.StorageUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}
