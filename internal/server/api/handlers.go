package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"peerdrop/internal/server/config"
	"peerdrop/internal/server/database"
	"peerdrop/internal/server/identity"
	"peerdrop/internal/server/motivation"
	"peerdrop/internal/server/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler contains the HTTP handlers for the peerdrop API.
type Handler struct {
	provider identity.Provider
	uploads  *service.UploadService
	reviews  *service.ReviewService
	strikes  *service.StrikeService
	ranks    *service.RankService
	quota    *service.QuotaTracker
	repo     *database.Repository
	db       *database.DB
	cfg      *config.Config
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(
	provider identity.Provider,
	uploads *service.UploadService,
	reviews *service.ReviewService,
	strikes *service.StrikeService,
	ranks *service.RankService,
	quota *service.QuotaTracker,
	repo *database.Repository,
	db *database.DB,
	cfg *config.Config,
) *Handler {
	return &Handler{
		provider: provider,
		uploads:  uploads,
		reviews:  reviews,
		strikes:  strikes,
		ranks:    ranks,
		quota:    quota,
		repo:     repo,
		db:       db,
		cfg:      cfg,
	}
}

func currentUser(c echo.Context) *database.User {
	return c.Get(userContextKey).(*database.User)
}

// userSummary is the user shape returned by the API.
type userSummary struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	XPPoints        int64  `json:"xp_points"`
	UploaderStrikes int    `json:"uploader_strikes"`
	ReviewerStrikes int    `json:"reviewer_strikes"`
	IsBanned        bool   `json:"is_banned"`
}

func summarize(u *database.User) userSummary {
	return userSummary{
		ID:              u.ID,
		Username:        u.Username,
		Name:            u.Name,
		XPPoints:        u.XPPoints,
		UploaderStrikes: u.UploaderStrikes,
		ReviewerStrikes: u.ReviewerStrikes,
		IsBanned:        u.IsBanned,
	}
}

// uploadInfo is the upload shape returned by the API.
type uploadInfo struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	OriginalFilename string    `json:"filename"`
	FileSize         int64     `json:"file_size"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Status           string    `json:"status"`
	UploadedAt       time.Time `json:"uploaded_at"`
	DeletionDeadline time.Time `json:"deletion_deadline"`
	AverageRating    *float64  `json:"average_rating"`
	ReviewCount      int       `json:"review_count"`
}

// HandleCreateSession handles POST /api/session.
// Issues a session id and creates the account behind it.
func (h *Handler) HandleCreateSession(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	name := strings.TrimSpace(req.Name)
	if len(name) < 2 || len(name) > 50 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "name must be 2-50 characters",
		})
	}

	sessionID, err := h.provider.NewSessionID()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	user, err := h.provider.Resolve(c.Request().Context(), sessionID, name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"session_id": sessionID,
		"user":       summarize(user),
		"message":    motivation.Welcome(),
	})
}

// HandleMe handles GET /api/me.
// Returns the caller's profile: quota state, ranks, and strike history.
func (h *Handler) HandleMe(c echo.Context) error {
	ctx := c.Request().Context()
	user := currentUser(c)

	uploaderRank, err := h.ranks.UploaderRank(ctx, user.ID)
	if err != nil {
		return mapServiceError(c, err)
	}
	reviewerRank, err := h.ranks.ReviewerRank(ctx, user.ID)
	if err != nil {
		return mapServiceError(c, err)
	}
	strikes, err := h.strikes.ListForUser(ctx, user.ID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user": summarize(user),
		"quota": echo.Map{
			"remaining_upload_bytes": h.quota.RemainingUploadBytes(ctx, user),
			"remaining_uploads":      h.quota.RemainingUploadSlots(ctx, user),
			"remaining_reviews":      h.quota.RemainingReviewSlots(ctx, user),
		},
		"uploader_rank": uploaderRank,
		"reviewer_rank": reviewerRank,
		"strikes":       strikes,
	})
}

// HandleUpload handles POST /api/uploads.
// Accepts a multipart form with "file", "description", "category" and
// "ai_consent" fields.
func (h *Handler) HandleUpload(c echo.Context) error {
	user := currentUser(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "file is required (use form field 'file')",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to read uploaded file",
		})
	}
	defer src.Close()

	consent := c.FormValue("ai_consent") == "true" || c.FormValue("ai_consent") == "on"

	upload, err := h.uploads.Create(
		c.Request().Context(),
		user,
		fileHeader.Filename,
		src,
		fileHeader.Size,
		c.FormValue("description"),
		c.FormValue("category"),
		consent,
	)
	if err != nil {
		return mapServiceError(c, err)
	}

	rank, err := h.ranks.UploaderRank(c.Request().Context(), user.ID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"upload":    h.uploadInfo(c, upload),
		"xp_earned": h.cfg.UploadXP,
		"user":      summarize(user),
		"rank":      rank,
		"message":   motivation.UploadSuccess(h.cfg.UploadXP, rank.Count),
	})
}

// HandleGetUpload handles GET /api/uploads/:id.
// Returns upload metadata including its average rating.
func (h *Handler) HandleGetUpload(c echo.Context) error {
	upload, err := h.uploads.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, h.uploadInfo(c, upload))
}

// HandleDeleteUpload handles DELETE /api/uploads/:id.
// Owner-only; reports the late-deletion penalty.
func (h *Handler) HandleDeleteUpload(c echo.Context) error {
	user := currentUser(c)

	penalty, err := h.uploads.Delete(c.Request().Context(), user, c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":    "upload deleted successfully",
		"xp_penalty": penalty,
	})
}

// HandleReviewQueue handles GET /api/reviews/queue.
// Lists uploads the caller may still review.
func (h *Handler) HandleReviewQueue(c echo.Context) error {
	user := currentUser(c)

	queue, err := h.uploads.ReviewQueue(c.Request().Context(), user, 50)
	if err != nil {
		return mapServiceError(c, err)
	}

	infos := make([]uploadInfo, 0, len(queue))
	for _, upload := range queue {
		infos = append(infos, h.uploadInfo(c, upload))
	}

	return c.JSON(http.StatusOK, echo.Map{"uploads": infos})
}

// HandleCreateReview handles POST /api/uploads/:id/reviews.
func (h *Handler) HandleCreateReview(c echo.Context) error {
	user := currentUser(c)

	var req struct {
		Rating      string `json:"rating"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	review, err := h.reviews.Create(c.Request().Context(), user, c.Param("id"), req.Rating, req.Description)
	if err != nil {
		return mapServiceError(c, err)
	}

	rank, err := h.ranks.ReviewerRank(c.Request().Context(), user.ID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"review_id": review.ID,
		"xp_earned": review.XPEarned,
		"user":      summarize(user),
		"rank":      rank,
		"message":   motivation.ReviewSuccess(review.XPEarned, rank.Count),
	})
}

// HandleFeedback handles POST /api/feedback.
// Stores a 1-5 star site rating.
func (h *Handler) HandleFeedback(c echo.Context) error {
	user := currentUser(c)

	var req struct {
		Rating       int    `json:"rating"`
		Category     string `json:"category"`
		Description  string `json:"description"`
		ContactEmail string `json:"contact_email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be 1-5"})
	}
	if strings.TrimSpace(req.Category) == "" || strings.TrimSpace(req.Description) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "category and description are required"})
	}

	feedback := &database.Feedback{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Rating:       req.Rating,
		Category:     req.Category,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.repo.CreateFeedback(c.Request().Context(), feedback); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store feedback"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "thank you for your feedback",
	})
}

// HandleAddStrike handles POST /api/admin/users/:id/strikes.
func (h *Handler) HandleAddStrike(c echo.Context) error {
	var req struct {
		StrikeType string `json:"strike_type"`
		Reason     string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	user, err := h.repo.GetUserByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	strike, banned, err := h.strikes.Add(c.Request().Context(), user, req.StrikeType, req.Reason)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"strike_id": strike.ID,
		"banned":    banned,
		"user":      summarize(user),
	})
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// HandleStats handles GET /api/stats.
// Returns aggregate platform statistics.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.repo.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to retrieve stats",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_users":        stats.TotalUsers,
		"banned_users":       stats.BannedUsers,
		"total_uploads":      stats.TotalUploads,
		"total_reviews":      stats.TotalReviews,
		"storage_used_bytes": stats.StorageUsed,
		"storage_used_human": humanizeBytes(stats.StorageUsed),
	})
}

func (h *Handler) uploadInfo(c echo.Context, upload *database.Upload) uploadInfo {
	info := uploadInfo{
		ID:               upload.ID,
		OwnerID:          upload.UserID,
		OriginalFilename: upload.OriginalFilename,
		FileSize:         upload.FileSize,
		Description:      upload.Description,
		Category:         upload.Category,
		Status:           upload.Status,
		UploadedAt:       upload.UploadedAt,
		DeletionDeadline: upload.DeletionDeadline,
	}

	avg, err := h.uploads.AverageRating(c.Request().Context(), upload.ID)
	if err == nil {
		info.AverageRating = avg
	}
	if _, total, err := h.repo.ReviewCounts(c.Request().Context(), upload.ID); err == nil {
		info.ReviewCount = total
	}

	return info
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "upload not found"})
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "file exceeds maximum allowed size",
		})
	case errors.Is(err, service.ErrQuotaExceeded):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrDuplicateReview):
		return c.JSON(http.StatusConflict, echo.Map{"error": "you have already reviewed this upload"})
	case errors.Is(err, service.ErrUploadFull):
		return c.JSON(http.StatusConflict, echo.Map{"error": "upload already has the maximum number of reviews"})
	case errors.Is(err, service.ErrSelfReview):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you cannot review your own upload"})
	case errors.Is(err, service.ErrNotOwner):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you can only delete your own uploads"})
	case errors.Is(err, service.ErrBanned):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is banned"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
