package service_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/godilite/workforce-server/internal/repository"
	"github.com/godilite/workforce-server/internal/service"
	"github.com/godilite/workforce-server/internal/service/mocks"
)

func setupService(t *testing.T) (*service.ProfileService, *mocks.MockPublisher) {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewProfileRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))

	// The seeded catalog would reject the categories used in these tests.
	require.NoError(t, repo.SaveCatalogList(context.Background(), repository.CatalogJobTypes, nil))
	require.NoError(t, repo.SaveCatalogList(context.Background(), repository.CatalogCriteriaNames, nil))

	publisher := &mocks.MockPublisher{}
	return service.NewProfileService(repo, publisher, zap.NewNop()), publisher
}

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

func submission(name, employeeID string, score float64) service.RatingSubmission {
	return service.RatingSubmission{
		WorkerName:         name,
		ExternalEmployeeID: employeeID,
		Category:           "Warehouse",
		Score:              fptr(score),
		Reviewer:           "Sam",
	}
}

func TestSubmitRatingValidation(t *testing.T) {
	svc, publisher := setupService(t)
	ctx := context.Background()

	t.Run("short name", func(t *testing.T) {
		_, _, err := svc.SubmitRating(ctx, submission("J", "", 2))
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("missing score", func(t *testing.T) {
		in := submission("Jane Doe", "", 0)
		in.Score = nil
		_, _, err := svc.SubmitRating(ctx, in)
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("score out of range", func(t *testing.T) {
		_, _, err := svc.SubmitRating(ctx, submission("Jane Doe", "", 6))
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("missing reviewer", func(t *testing.T) {
		in := submission("Jane Doe", "", 2)
		in.Reviewer = "  "
		_, _, err := svc.SubmitRating(ctx, in)
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("nothing published on failure", func(t *testing.T) {
		assert.Empty(t, publisher.Events())
	})
}

func TestSubmitRatingResolvesWhitespaceVariants(t *testing.T) {
	svc, publisher := setupService(t)
	ctx := context.Background()

	first, created, err := svc.SubmitRating(ctx, submission(" jane  doe ", "", 2))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.SubmitRating(ctx, submission("Jane Doe", "", 4))
	require.NoError(t, err)
	assert.False(t, created, "case/whitespace variant must update the same profile")
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Ratings, 2)

	last := publisher.Last()
	assert.Equal(t, "profiles_updated", last.Type)
	assert.Equal(t, "submit_rating", last.Payload["action"])
	assert.Equal(t, second.ID, last.Payload["profileId"])
}

func TestSubmitRatingEmployeeIDIsAuthoritative(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	first, created, err := svc.SubmitRating(ctx, submission("Jane Doe", "E1", 2))
	require.NoError(t, err)
	assert.True(t, created)

	// An explicit new employee id never falls back to name matching: a
	// distinct profile appears despite the identical display name.
	second, created, err := svc.SubmitRating(ctx, submission("Jane Doe", "E2", 3))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	// Two same-name profiles exist, both with employee ids. An id-less
	// submission is ambiguous: the resolver refuses to guess and a third
	// profile is created.
	third, created, err := svc.SubmitRating(ctx, submission("JANE DOE", "", 4))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
	assert.NotEqual(t, second.ID, third.ID)

	// The id-less profile now owns the bare-name key, so a fourth id-less
	// submission matches it exactly.
	fourth, created, err := svc.SubmitRating(ctx, submission("Jane Doe", "", 1))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, third.ID, fourth.ID)
}

func TestSubmitRatingMatchesByEmployeeID(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	first, _, err := svc.SubmitRating(ctx, submission("Jane Doe", "E1", 2))
	require.NoError(t, err)

	// Same identity with noisy formatting.
	second, created, err := svc.SubmitRating(ctx, submission("  JANE doe", " e 1", 3))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestSubmitRatingCatalogRejection(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.SaveCatalog(ctx, []string{"Warehouse"}, []string{"Work quality"})
	require.NoError(t, err)

	t.Run("disallowed category", func(t *testing.T) {
		in := submission("Jane Doe", "", 2)
		in.Category = "Janitorial"
		_, _, err := svc.SubmitRating(ctx, in)
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("disallowed criterion", func(t *testing.T) {
		in := submission("Jane Doe", "", 2)
		in.SelectedCriteria = []service.SelectedCriterion{{Criterion: "Vibes", Score: 1}}
		_, _, err := svc.SubmitRating(ctx, in)
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("criterion without a name", func(t *testing.T) {
		in := submission("Jane Doe", "", 2)
		in.SelectedCriteria = []service.SelectedCriterion{{Criterion: " "}}
		_, _, err := svc.SubmitRating(ctx, in)
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("allowed values pass case-insensitively", func(t *testing.T) {
		in := submission("Jane Doe", "", 2)
		in.Category = "warehouse"
		in.SelectedCriteria = []service.SelectedCriterion{{Criterion: "WORK QUALITY", Score: 2}}
		_, _, err := svc.SubmitRating(ctx, in)
		assert.NoError(t, err)
	})
}

func TestCreateOrUpdateProfile(t *testing.T) {
	svc, publisher := setupService(t)
	ctx := context.Background()

	view, created, err := svc.CreateOrUpdateProfile(ctx, service.ProfileInput{
		Name:       "Jane Doe",
		Status:     "active",
		Background: "night shift",
		History: []service.HistoryEntryInput{
			{Category: "Picker", Score: fptr(2), Note: "ramp-up"},
		},
		Notes: []service.ProfileNoteInput{{Note: "prefers mornings"}},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, view.HistoryEntries, 1)
	assert.Len(t, view.ProfileNotes, 1)
	assert.Empty(t, view.Ratings, "profile creation must not append a rating")
	assert.Equal(t, "create_profile", publisher.Last().Payload["action"])

	// A second call replaces the timelines wholesale.
	updated, created, err := svc.CreateOrUpdateProfile(ctx, service.ProfileInput{
		Name:   "Jane Doe",
		Status: "on leave",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, view.ID, updated.ID)
	assert.Empty(t, updated.HistoryEntries)
	assert.Empty(t, updated.ProfileNotes)
}

func TestAddRating(t *testing.T) {
	svc, publisher := setupService(t)
	ctx := context.Background()

	view, _, err := svc.SubmitRating(ctx, submission("Jane Doe", "", 1))
	require.NoError(t, err)

	t.Run("unknown profile", func(t *testing.T) {
		_, err := svc.AddRating(ctx, 9999, submission("", "", 2))
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("appends and refreshes snapshot", func(t *testing.T) {
		in := service.RatingSubmission{
			Category: "Picker",
			Score:    fptr(4),
			Reviewer: "Kim",
			Note:     "fast hands",
		}
		updated, err := svc.AddRating(ctx, view.ID, in)
		require.NoError(t, err)
		assert.Len(t, updated.Ratings, 2)
		require.NotNil(t, updated.Score)
		assert.Equal(t, 4.0, *updated.Score)
		assert.Equal(t, []string{"Picker", "Warehouse"}, updated.JobCategories)
		assert.Equal(t, "add_rating", publisher.Last().Payload["action"])
	})
}

func TestUpdateProfilePartialSemantics(t *testing.T) {
	svc, publisher := setupService(t)
	ctx := context.Background()

	view, _, err := svc.SubmitRating(ctx, submission("Jane Doe", "", 3))
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, view.ID, service.ProfileUpdateInput{
		Status: sptr("probation"),
	})
	require.NoError(t, err)

	// Omitted fields keep their stored values.
	assert.Equal(t, "Jane Doe", updated.Name)
	require.NotNil(t, updated.Score)
	assert.Equal(t, 3.0, *updated.Score)
	require.NotNil(t, updated.ProfileStatus)
	assert.Equal(t, "probation", *updated.ProfileStatus)
	assert.Equal(t, "update_profile", publisher.Last().Payload["action"])

	t.Run("short name rejected", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, view.ID, service.ProfileUpdateInput{Name: sptr("J")})
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, 9999, service.ProfileUpdateInput{})
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestUpdateProfileLogRating(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	view, _, err := svc.SubmitRating(ctx, submission("Jane Doe", "", 1))
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, view.ID, service.ProfileUpdateInput{
		Category:  sptr("Picker"),
		Score:     fptr(5),
		Reviewer:  sptr("Kim"),
		LogRating: true,
	})
	require.NoError(t, err)
	assert.Len(t, updated.Ratings, 2)
	assert.Equal(t, 5.0, updated.Ratings[len(updated.Ratings)-1].Score)
}

func TestUpdateProfileConflict(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, _, err := svc.SubmitRating(ctx, submission("Jane Doe", "E1", 2))
	require.NoError(t, err)
	other, _, err := svc.SubmitRating(ctx, submission("Kim Lee", "E2", 2))
	require.NoError(t, err)

	// Renaming Kim onto Jane's employee id collides with the uniqueness
	// constraint and must surface as a conflict, not corruption.
	_, err = svc.UpdateProfile(ctx, other.ID, service.ProfileUpdateInput{
		ExternalEmployeeID: sptr("E1"),
	})
	assert.ErrorIs(t, err, service.ErrConflict)
}

func TestMergeProfiles(t *testing.T) {
	svc, publisher := setupService(t)
	ctx := context.Background()

	source, _, err := svc.SubmitRating(ctx, submission("Jane Doe", "E1", 2))
	require.NoError(t, err)
	target, _, err := svc.SubmitRating(ctx, submission("Jane D", "", 4))
	require.NoError(t, err)

	t.Run("same ids rejected", func(t *testing.T) {
		_, err := svc.MergeProfiles(ctx, target.ID, target.ID)
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("missing side rejected", func(t *testing.T) {
		_, err := svc.MergeProfiles(ctx, 9999, target.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("merge combines histories", func(t *testing.T) {
		merged, err := svc.MergeProfiles(ctx, source.ID, target.ID)
		require.NoError(t, err)

		assert.Len(t, merged.Ratings, len(source.Ratings)+len(target.Ratings))
		assert.Len(t, merged.HistoryEntries, len(source.HistoryEntries)+len(target.HistoryEntries))
		assert.Equal(t, "merge", publisher.Last().Payload["action"])

		// Target keeps its own identity and snapshot.
		assert.Equal(t, "Jane D", merged.Name)
		assert.Nil(t, merged.ExternalEmployeeID)

		_, err = svc.GetProfile(ctx, source.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestDeleteOperations(t *testing.T) {
	svc, publisher := setupService(t)
	ctx := context.Background()

	view, _, err := svc.SubmitRating(ctx, submission("Jane Doe", "", 2))
	require.NoError(t, err)
	other, _, err := svc.SubmitRating(ctx, submission("Kim Lee", "", 3))
	require.NoError(t, err)

	t.Run("delete rating is scoped to its profile", func(t *testing.T) {
		_, err := svc.DeleteRating(ctx, view.ID, other.Ratings[0].ID)
		assert.ErrorIs(t, err, service.ErrNotFound)

		// The other profile's rating is untouched.
		got, err := svc.GetProfile(ctx, other.ID)
		require.NoError(t, err)
		assert.Len(t, got.Ratings, 1)
	})

	t.Run("delete rating", func(t *testing.T) {
		updated, err := svc.DeleteRating(ctx, view.ID, view.Ratings[0].ID)
		require.NoError(t, err)
		assert.Empty(t, updated.Ratings)
		assert.Equal(t, "delete_rating", publisher.Last().Payload["action"])
	})

	t.Run("delete profile", func(t *testing.T) {
		require.NoError(t, svc.DeleteProfile(ctx, view.ID))
		_, err := svc.GetProfile(ctx, view.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
		assert.Equal(t, "delete_profile", publisher.Last().Payload["action"])

		assert.ErrorIs(t, svc.DeleteProfile(ctx, view.ID), service.ErrNotFound)
	})

	t.Run("clear all", func(t *testing.T) {
		require.NoError(t, svc.ClearAll(ctx))
		views, err := svc.ListProfiles(ctx)
		require.NoError(t, err)
		assert.Empty(t, views)
		assert.Equal(t, "clear_all", publisher.Last().Payload["action"])
	})
}

func TestDeleteNote(t *testing.T) {
	svc, publisher := setupService(t)
	ctx := context.Background()

	view, _, err := svc.CreateOrUpdateProfile(ctx, service.ProfileInput{
		Name:  "Jane Doe",
		Notes: []service.ProfileNoteInput{{Note: "first"}, {Note: "second"}},
	})
	require.NoError(t, err)
	require.Len(t, view.ProfileNotes, 2)

	updated, err := svc.DeleteNote(ctx, view.ID, view.ProfileNotes[0].ID)
	require.NoError(t, err)
	assert.Len(t, updated.ProfileNotes, 1)
	assert.Equal(t, "delete_note", publisher.Last().Payload["action"])

	_, err = svc.DeleteNote(ctx, view.ID, 9999)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestListProfilesOrderedByName(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	for _, name := range []string{"Zed Short", "Amy Long", "Mia Chen"} {
		_, _, err := svc.SubmitRating(ctx, submission(name, "", 2))
		require.NoError(t, err)
	}

	views, err := svc.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "Amy Long", views[0].Name)
	assert.Equal(t, "Mia Chen", views[1].Name)
	assert.Equal(t, "Zed Short", views[2].Name)
}

func TestViewAnalyticsAreFresh(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	in := service.RatingSubmission{
		WorkerName: "Jane Doe",
		Category:   "Punctuality",
		Score:      fptr(-2),
		Reviewer:   "Sam",
	}
	var view service.ProfileView
	var err error
	for i := 0; i < 3; i++ {
		view, _, err = svc.SubmitRating(ctx, in)
		require.NoError(t, err)
	}

	assert.True(t, view.Analytics.LateTrendApplied)
	assert.Equal(t, view.Analytics.OverallScore, view.OverallScore)

	fetched, err := svc.GetProfile(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Analytics, fetched.Analytics)
}

func TestAdminSettings(t *testing.T) {
	svc, publisher := setupService(t)
	ctx := context.Background()

	t.Run("key required", func(t *testing.T) {
		assert.ErrorIs(t, svc.SaveSetting(ctx, " ", []byte(`1`)), service.ErrValidation)
		_, err := svc.GetSetting(ctx, "")
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, svc.SaveSetting(ctx, "review_window", []byte(`{"days":30}`)))
		assert.Equal(t, "admin_settings_updated", publisher.Last().Type)

		value, err := svc.GetSetting(ctx, "review_window")
		require.NoError(t, err)
		assert.JSONEq(t, `{"days":30}`, string(value))
	})
}
