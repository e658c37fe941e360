package service

import (
	"github.com/godilite/workforce-server/internal/analytics"
	"github.com/godilite/workforce-server/internal/repository/models"
)

// Inputs arrive here already stripped of wire-format concerns: field-name
// aliases are resolved at the HTTP boundary, never in this package.
// Pointer fields distinguish "omitted" from zero values.

// RatingSubmission is one reviewer rating, addressed by worker identity.
type RatingSubmission struct {
	WorkerName         string
	ExternalEmployeeID string
	Category           string
	Score              *float64
	Reviewer           string
	Note               string
	RatedAt            string
	SelectedCriteria   []SelectedCriterion
}

// SelectedCriterion names an admin-defined rating criterion applied to a
// submission.
type SelectedCriterion struct {
	Criterion string
	Score     float64
}

// HistoryEntryInput is one caller-managed narrative record.
type HistoryEntryInput struct {
	Category  string
	Score     *float64
	Note      string
	CreatedAt string
}

// ProfileNoteInput is one free-form annotation.
type ProfileNoteInput struct {
	Note      string
	CreatedAt string
}

// ProfileInput creates or updates a profile without logging a rating.
// History and Notes replace the stored timelines wholesale.
type ProfileInput struct {
	Name               string
	ExternalEmployeeID string
	Status             string
	Background         string
	History            []HistoryEntryInput
	Notes              []ProfileNoteInput
}

// ProfileUpdateInput carries a partial update: nil fields keep their stored
// values. History and Notes always replace the stored timelines, absent
// arrays meaning empty. LogRating additionally appends a rating built from
// the merged values.
type ProfileUpdateInput struct {
	Name               *string
	ExternalEmployeeID *string
	Category           *string
	Score              *float64
	Reviewer           *string
	Note               *string
	Status             *string
	Background         *string
	RatedAt            *string
	LogRating          bool
	History            []HistoryEntryInput
	Notes              []ProfileNoteInput
	SelectedCriteria   []SelectedCriterion
}

// ProfileView is the single read shape for a profile: stored fields, full
// child timelines and freshly computed analytics.
type ProfileView struct {
	ID                 int64                 `json:"id"`
	Name               string                `json:"name"`
	JobCategory        *string               `json:"jobCategory"`
	Score              *float64              `json:"score"`
	Reviewer           *string               `json:"reviewer"`
	Notes              *string               `json:"notes"`
	RatedAt            *string               `json:"ratedAt"`
	CreatedAt          string                `json:"createdAt"`
	UpdatedAt          string                `json:"updatedAt"`
	ProfileStatus      *string               `json:"profileStatus"`
	BackgroundInfo     *string               `json:"backgroundInfo"`
	ExternalEmployeeID *string               `json:"externalEmployeeId"`
	CanonicalName      string                `json:"canonicalName"`
	CanonicalWorkerKey string                `json:"canonicalWorkerKey"`
	Ratings            []models.Rating       `json:"ratings"`
	HistoryEntries     []models.HistoryEntry `json:"historyEntries"`
	ProfileNotes       []models.ProfileNote  `json:"profileNotes"`
	JobCategories      []string              `json:"jobCategories"`
	OverallScore       float64               `json:"overallScore"`
	Analytics          analytics.Metrics     `json:"analytics"`
}

// MaintenanceReport is the operator-facing catalog health view.
type MaintenanceReport struct {
	PotentialDuplicates []models.DuplicateGroup `json:"potentialDuplicates"`
	Orphans             models.OrphanCounts     `json:"orphans"`
}

// Catalog is the admin-defined validation list pair.
type Catalog struct {
	JobTypes      []string `json:"jobTypes"`
	CriteriaNames []string `json:"criteriaNames"`
}
