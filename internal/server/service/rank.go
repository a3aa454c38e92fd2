package service

import "context"

// Tier is one named rank bucket in a threshold table.
type Tier struct {
	Threshold  int64  `json:"threshold"`
	Name       string `json:"name"`
	Percentile string `json:"percentile"`
	NextGoal   string `json:"next_goal"`
}

// UploaderTiers maps lifetime upload counts to named ranks.
// Thresholds ascend and start at zero, so every count has a tier.
var UploaderTiers = []Tier{
	{0, "Newer User", "99%", "Complete your first upload to advance!"},
	{2, "Beginner", "95-98%", "Upload 2+ files to reach Contributor"},
	{6, "Contributor", "90-94%", "Upload 6+ files to reach Active Member"},
	{11, "Active Member", "80-89%", "Upload 11+ files to reach Regular"},
	{21, "Regular", "70-79%", "Upload 21+ files to reach Veteran"},
	{31, "Veteran", "50-69%", "Upload 31+ files to reach Expert"},
	{51, "Expert", "30-49%", "Upload 51+ files to reach Master"},
	{81, "Master", "10-29%", "Upload 81+ files to reach Legend"},
	{121, "Legend", "5-9%", "Upload 121+ files to reach Elite"},
	{201, "Elite", "2-4%", "Upload 201+ files to reach Ultimate Elite"},
	{500, "Ultimate Elite", "1%", "You've reached the highest tier!"},
}

// ReviewerTiers maps lifetime review counts to named ranks.
var ReviewerTiers = []Tier{
	{0, "Newer Reviewer", "99%", "Complete your first review to advance!"},
	{1, "Review Beginner", "95-98%", "Complete 3+ reviews to reach Review Contributor"},
	{3, "Review Contributor", "90-94%", "Complete 6+ reviews to reach Active Reviewer"},
	{6, "Active Reviewer", "80-89%", "Complete 11+ reviews to reach Regular Reviewer"},
	{11, "Regular Reviewer", "70-79%", "Complete 16+ reviews to reach Veteran Reviewer"},
	{16, "Veteran Reviewer", "50-69%", "Complete 26+ reviews to reach Expert Reviewer"},
	{26, "Expert Reviewer", "30-49%", "Complete 41+ reviews to reach Master Reviewer"},
	{41, "Master Reviewer", "10-29%", "Complete 61+ reviews to reach Legend Reviewer"},
	{61, "Legend Reviewer", "5-9%", "Complete 101+ reviews to reach Elite Reviewer"},
	{101, "Elite Reviewer", "2-4%", "Complete 200+ reviews to reach Ultimate Elite"},
	{200, "Ultimate Elite Reviewer", "1%", "You've reached the highest tier!"},
}

// ResolveTier returns the entry with the largest threshold not exceeding
// count (a floor lookup over the ascending table). It never fails:
// negative counts fall through to the zero-threshold entry.
func ResolveTier(count int64, tiers []Tier) Tier {
	current := tiers[0]
	for _, t := range tiers {
		if count >= t.Threshold {
			current = t
		} else {
			break
		}
	}
	return current
}

// RankInfo pairs an activity count with its resolved tier.
type RankInfo struct {
	Count int64 `json:"count"`
	Tier  Tier  `json:"tier"`
}

// RankService resolves users' uploader and reviewer ranks.
type RankService struct {
	uploads UploadStore
	reviews ReviewStore
}

// NewRankService creates a new rank service.
func NewRankService(uploads UploadStore, reviews ReviewStore) *RankService {
	return &RankService{uploads: uploads, reviews: reviews}
}

// UploaderRank resolves a user's rank from their lifetime upload count.
func (s *RankService) UploaderRank(ctx context.Context, userID string) (*RankInfo, error) {
	count, err := s.uploads.CountUploadsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &RankInfo{Count: count, Tier: ResolveTier(count, UploaderTiers)}, nil
}

// ReviewerRank resolves a user's rank from their lifetime review count.
func (s *RankService) ReviewerRank(ctx context.Context, userID string) (*RankInfo, error) {
	count, err := s.reviews.CountReviewsByReviewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &RankInfo{Count: count, Tier: ResolveTier(count, ReviewerTiers)}, nil
}
