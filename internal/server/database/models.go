package database

import "time"

// Upload categories accepted by the platform.
const (
	CategoryAudio    = "audio"
	CategoryDocument = "document"
	CategoryCode     = "code"
	CategoryText     = "text"
	CategoryImage    = "image"
	CategoryArchive  = "archive"
)

// ValidCategory reports whether c is one of the accepted upload categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryAudio, CategoryDocument, CategoryCode, CategoryText, CategoryImage, CategoryArchive:
		return true
	}
	return false
}

// Upload moderation statuses. Only StatusPending is set by this service;
// transitions happen through external moderation.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Strike categories. A user is banned when either counter reaches the limit.
const (
	StrikeUploader = "uploader"
	StrikeReviewer = "reviewer"
)

// Review ratings are binary.
const (
	RatingGood = "good"
	RatingBad  = "bad"
)

// User is a platform account with XP and daily quota counters.
// A zero reset timestamp means the corresponding counter has never
// been touched.
type User struct {
	ID              string
	Username        string
	Name            string
	Email           string
	PasswordHash    string
	XPPoints        int64
	UploaderStrikes int
	ReviewerStrikes int
	IsBanned        bool

	DailyUploadBytes int64
	DailyUploadCount int
	DailyUploadReset time.Time
	DailyReviewCount int
	DailyReviewReset time.Time

	CreatedAt time.Time
}

// Upload is a user-contributed file awaiting peer review.
type Upload struct {
	ID               string
	UserID           string
	Filename         string
	OriginalFilename string
	FileSize         int64
	Description      string
	Category         string
	Status           string
	AIConsent        bool
	UploadedAt       time.Time
	DeletionDeadline time.Time
	CreatedAt        time.Time
}

// Review is one reviewer's verdict on one upload. At most one review per
// (upload, reviewer) pair; at most five reviews per upload.
type Review struct {
	ID           string
	UploadID     string
	ReviewerID   string
	Rating       string
	Description  string
	XPEarned     int64
	IsFlagged    bool
	QualityScore float64
	CreatedAt    time.Time
}

// Strike is an append-only violation record. Strikes are never mutated
// or deleted; they are the audit trail behind ban decisions.
type Strike struct {
	ID         string
	UserID     string
	StrikeType string
	Reason     string
	CreatedAt  time.Time
}

// Feedback is a site-rating submission (1-5 stars).
type Feedback struct {
	ID           string
	UserID       string
	Rating       int
	Category     string
	Description  string
	ContactEmail string
	CreatedAt    time.Time
}

// Stats holds aggregate platform statistics.
type Stats struct {
	TotalUsers   int64
	BannedUsers  int64
	TotalUploads int64
	TotalReviews int64
	StorageUsed  int64
}
