package service

import (
	"context"
	"sort"

	"github.com/godilite/workforce-server/internal/analytics"
	"github.com/godilite/workforce-server/internal/repository/models"
)

// viewByID is the single read path for a profile by id.
func (s *ProfileService) viewByID(ctx context.Context, profileID int64) (ProfileView, error) {
	profile, err := s.storage.GetProfile(ctx, profileID)
	if err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}
	if profile == nil {
		return ProfileView{}, notFoundErr("Profile not found")
	}
	return s.buildView(ctx, profile)
}

// buildView assembles the complete serving shape for a profile: stored
// fields, child timelines, the distinct category list and freshly computed
// analytics. Every query operation funnels through here so analytics are
// never served stale.
func (s *ProfileService) buildView(ctx context.Context, profile *models.WorkerProfile) (ProfileView, error) {
	ratings, err := s.storage.ListRatings(ctx, profile.ID)
	if err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}
	history, err := s.storage.ListHistory(ctx, profile.ID)
	if err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}
	notes, err := s.storage.ListNotes(ctx, profile.ID)
	if err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}

	seen := make(map[string]struct{}, len(ratings))
	categories := make([]string, 0, len(ratings))
	for _, r := range ratings {
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		categories = append(categories, r.Category)
	}
	sort.Strings(categories)

	metrics := analytics.Compute(ratings)

	if ratings == nil {
		ratings = []models.Rating{}
	}
	if history == nil {
		history = []models.HistoryEntry{}
	}
	if notes == nil {
		notes = []models.ProfileNote{}
	}

	return ProfileView{
		ID:                 profile.ID,
		Name:               profile.Name,
		JobCategory:        profile.JobCategory,
		Score:              profile.Score,
		Reviewer:           profile.Reviewer,
		Notes:              profile.Notes,
		RatedAt:            profile.RatedAt,
		CreatedAt:          profile.CreatedAt,
		UpdatedAt:          profile.UpdatedAt,
		ProfileStatus:      profile.ProfileStatus,
		BackgroundInfo:     profile.BackgroundInfo,
		ExternalEmployeeID: profile.ExternalEmployeeID,
		CanonicalName:      profile.CanonicalName,
		CanonicalWorkerKey: profile.CanonicalKey,
		Ratings:            ratings,
		HistoryEntries:     history,
		ProfileNotes:       notes,
		JobCategories:      categories,
		OverallScore:       metrics.OverallScore,
		Analytics:          metrics,
	}, nil
}
