package service

import (
	"context"
	"encoding/json"

	"github.com/godilite/workforce-server/internal/repository"
	"github.com/godilite/workforce-server/internal/repository/models"
)

// Storage defines the persistence operations the profile service needs.
// *repository.ProfileRepository satisfies it.
type Storage interface {
	GetProfile(ctx context.Context, id int64) (*models.WorkerProfile, error)
	FindByCanonicalKey(ctx context.Context, key string) (*models.WorkerProfile, error)
	FindByCanonicalName(ctx context.Context, name string) ([]models.WorkerProfile, error)
	ListProfiles(ctx context.Context) ([]models.WorkerProfile, error)
	ListRatings(ctx context.Context, workerID int64) ([]models.Rating, error)
	ListHistory(ctx context.Context, workerID int64) ([]models.HistoryEntry, error)
	ListNotes(ctx context.Context, workerID int64) ([]models.ProfileNote, error)

	UpsertProfile(ctx context.Context, existingID *int64, p repository.ProfileUpsert) (int64, error)
	SubmitRating(ctx context.Context, existingID *int64, p repository.SnapshotUpsert, rating repository.RatingInsert, historyNote string) (int64, error)
	AddRating(ctx context.Context, workerID int64, rating repository.RatingInsert, historyNote string) error
	UpdateProfile(ctx context.Context, workerID int64, u repository.ProfileUpdate, historyNote string) error
	MergeProfiles(ctx context.Context, sourceID, targetID int64) error

	DeleteProfile(ctx context.Context, id int64) (bool, error)
	DeleteRating(ctx context.Context, workerID, ratingID int64) (bool, error)
	DeleteNote(ctx context.Context, workerID, noteID int64) (bool, error)
	ClearAll(ctx context.Context) error

	LoadCatalogList(ctx context.Context, key string) ([]string, error)
	SaveCatalogList(ctx context.Context, key string, values []string) error
	LoadSetting(ctx context.Context, key string) (json.RawMessage, error)
	SaveSetting(ctx context.Context, key string, value json.RawMessage) error
	MaintenanceReport(ctx context.Context) ([]models.DuplicateGroup, models.OrphanCounts, error)
}

// Publisher receives a change event after every successful mutation. The
// service owns no subscriber state; delivery is the broker's problem.
type Publisher interface {
	Publish(eventType string, payload map[string]any)
}
