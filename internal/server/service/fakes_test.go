package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"peerdrop/internal/server/config"
	"peerdrop/internal/server/database"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxFileSize:     100 * 1024 * 1024,
		MaxDailyBytes:   500 * 1024 * 1024,
		MaxDailyUploads: 3,
		MaxDailyReviews: 5,
		UploadXP:        20,
		ReviewXP:        15,
		StartingXP:      500,
		MaxReviews:      5,
		BanThreshold:    3,
		DeletionGrace:   48 * time.Hour,
		PenaltyPerHour:  5,
		PenaltyMax:      100,
	}
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// fakeStore is an in-memory implementation of the store interfaces. It
// keeps its own copies of user records so tests can tell persisted state
// apart from the in-memory user the service mutates, like the real
// database does.
type fakeStore struct {
	mu      sync.Mutex
	users   map[string]*database.User
	uploads map[string]*database.Upload
	reviews map[string]*database.Review
	strikes []*database.Strike

	saveCountersErr error
	saveCalls       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*database.User),
		uploads: make(map[string]*database.Upload),
		reviews: make(map[string]*database.Review),
	}
}

func (f *fakeStore) addUser(u *database.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
}

func (f *fakeStore) addUpload(u *database.Upload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.uploads[u.ID] = &cp
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) SaveDailyCounters(ctx context.Context, u *database.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.saveCountersErr != nil {
		return f.saveCountersErr
	}
	stored, ok := f.users[u.ID]
	if !ok {
		return database.ErrUserNotFound
	}
	stored.DailyUploadBytes = u.DailyUploadBytes
	stored.DailyUploadCount = u.DailyUploadCount
	stored.DailyUploadReset = u.DailyUploadReset
	stored.DailyReviewCount = u.DailyReviewCount
	stored.DailyReviewReset = u.DailyReviewReset
	return nil
}

func (f *fakeStore) CreateUpload(ctx context.Context, upload *database.Upload, xpAward int64, limits database.QuotaLimits) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.users[upload.UserID]
	if !ok {
		return database.ErrUserNotFound
	}
	if owner.DailyUploadCount >= limits.MaxDailyUploads ||
		owner.DailyUploadBytes+upload.FileSize > limits.MaxDailyBytes {
		return database.ErrQuotaExceeded
	}
	cp := *upload
	f.uploads[upload.ID] = &cp
	owner.XPPoints += xpAward
	owner.DailyUploadCount++
	owner.DailyUploadBytes += upload.FileSize
	return nil
}

func (f *fakeStore) GetUploadByID(ctx context.Context, id string) (*database.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.uploads[id]
	if !ok {
		return nil, database.ErrUploadNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) DeleteUploadCascade(ctx context.Context, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.uploads[uploadID]; !ok {
		return database.ErrUploadNotFound
	}
	for id, r := range f.reviews {
		if r.UploadID == uploadID {
			delete(f.reviews, id)
		}
	}
	delete(f.uploads, uploadID)
	return nil
}

func (f *fakeStore) CountUploadsByUser(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.uploads {
		if u.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListReviewable(ctx context.Context, reviewerID string, maxReviews, limit int) ([]*database.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*database.Upload
	for _, u := range f.uploads {
		if u.UserID == reviewerID {
			continue
		}
		reviewed := false
		count := 0
		for _, r := range f.reviews {
			if r.UploadID != u.ID {
				continue
			}
			count++
			if r.ReviewerID == reviewerID {
				reviewed = true
			}
		}
		if reviewed || count >= maxReviews {
			continue
		}
		cp := *u
		out = append(out, &cp)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) ReviewCounts(ctx context.Context, uploadID string) (good, total int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reviews {
		if r.UploadID != uploadID {
			continue
		}
		total++
		if r.Rating == database.RatingGood {
			good++
		}
	}
	return good, total, nil
}

func (f *fakeStore) HasReview(ctx context.Context, uploadID, reviewerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reviews {
		if r.UploadID == uploadID && r.ReviewerID == reviewerID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateReview(ctx context.Context, review *database.Review, xpAward int64, maxPerUpload int, limits database.QuotaLimits) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reviewer, ok := f.users[review.ReviewerID]
	if !ok {
		return database.ErrUserNotFound
	}
	if reviewer.DailyReviewCount >= limits.MaxDailyReviews {
		return database.ErrQuotaExceeded
	}
	count := 0
	for _, r := range f.reviews {
		if r.UploadID == review.UploadID {
			count++
			if r.ReviewerID == review.ReviewerID {
				return database.ErrDuplicateReview
			}
		}
	}
	if count >= maxPerUpload {
		return database.ErrUploadFull
	}
	cp := *review
	f.reviews[review.ID] = &cp
	reviewer.XPPoints += xpAward
	reviewer.DailyReviewCount++
	return nil
}

func (f *fakeStore) CountReviewsByReviewer(ctx context.Context, reviewerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.reviews {
		if r.ReviewerID == reviewerID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) AddStrike(ctx context.Context, strike *database.Strike, banThreshold int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[strike.UserID]
	if !ok {
		return false, database.ErrUserNotFound
	}
	cp := *strike
	f.strikes = append(f.strikes, &cp)
	if strike.StrikeType == database.StrikeUploader {
		user.UploaderStrikes++
	} else {
		user.ReviewerStrikes++
	}
	if user.UploaderStrikes >= banThreshold || user.ReviewerStrikes >= banThreshold {
		user.IsBanned = true
		return true, nil
	}
	return user.IsBanned, nil
}

func (f *fakeStore) ListStrikesByUser(ctx context.Context, userID string) ([]*database.Strike, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*database.Strike
	for _, s := range f.strikes {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeBlobStore is an in-memory storage.Store.
type fakeBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saveErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Save(uploadID string, data io.Reader) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, data)
	if err != nil {
		return 0, err
	}
	f.blobs[uploadID] = buf.Bytes()
	return n, nil
}

func (f *fakeBlobStore) GetPath(uploadID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[uploadID]; !ok {
		return "", errors.New("blob not found")
	}
	return "/fake/" + uploadID, nil
}

func (f *fakeBlobStore) Delete(uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, uploadID)
	return nil
}

func (f *fakeBlobStore) List() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.blobs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeBlobStore) EnsureDir() error { return nil }
