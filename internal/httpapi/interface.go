package httpapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/godilite/workforce-server/internal/service"
	"github.com/godilite/workforce-server/pkg/events"
)

// Cacher defines the cache operations the handlers use.
type Cacher interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ProfileService is the core surface the HTTP layer adapts.
type ProfileService interface {
	SubmitRating(ctx context.Context, in service.RatingSubmission) (service.ProfileView, bool, error)
	CreateOrUpdateProfile(ctx context.Context, in service.ProfileInput) (service.ProfileView, bool, error)
	AddRating(ctx context.Context, profileID int64, in service.RatingSubmission) (service.ProfileView, error)
	UpdateProfile(ctx context.Context, profileID int64, in service.ProfileUpdateInput) (service.ProfileView, error)
	MergeProfiles(ctx context.Context, sourceID, targetID int64) (service.ProfileView, error)
	DeleteProfile(ctx context.Context, profileID int64) error
	DeleteRating(ctx context.Context, profileID, ratingID int64) (service.ProfileView, error)
	DeleteNote(ctx context.Context, profileID, noteID int64) (service.ProfileView, error)
	ClearAll(ctx context.Context) error
	GetProfile(ctx context.Context, profileID int64) (service.ProfileView, error)
	ListProfiles(ctx context.Context) ([]service.ProfileView, error)
	Catalog(ctx context.Context) (service.Catalog, error)
	SaveCatalog(ctx context.Context, jobTypes, criteriaNames []string) (service.Catalog, error)
	GetSetting(ctx context.Context, key string) (json.RawMessage, error)
	SaveSetting(ctx context.Context, key string, value json.RawMessage) error
	Maintenance(ctx context.Context) (service.MaintenanceReport, error)
}

// Subscriber is the change-feed side the SSE handler consumes.
type Subscriber interface {
	Subscribe() (<-chan events.Event, func())
}
