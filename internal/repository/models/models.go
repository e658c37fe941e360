package models

// WorkerProfile is one canonical worker record. The job category, score,
// reviewer, notes and rated-at columns are a denormalized snapshot of the
// most recent rating.
type WorkerProfile struct {
	ID                 int64
	Name               string
	JobCategory        *string
	Score              *float64
	Reviewer           *string
	Notes              *string
	RatedAt            *string
	CreatedAt          string
	UpdatedAt          string
	ProfileStatus      *string
	BackgroundInfo     *string
	ExternalEmployeeID *string
	CanonicalName      string
	CanonicalKey       string
}

// Rating is one immutable reviewer submission. Analytics order ratings by
// (RatedAt, ID) ascending; ID breaks timestamp ties.
type Rating struct {
	ID        int64   `json:"id"`
	Category  string  `json:"category"`
	Score     float64 `json:"score"`
	Reviewer  string  `json:"reviewer"`
	Note      *string `json:"note"`
	RatedAt   string  `json:"ratedAt"`
	CreatedAt string  `json:"-"`
}

// HistoryEntry is a caller-managed narrative record, replaced wholesale on
// profile updates. Not append-only like Rating.
type HistoryEntry struct {
	ID        int64   `json:"id"`
	Category  string  `json:"category"`
	Score     float64 `json:"score"`
	Note      *string `json:"note"`
	CreatedAt string  `json:"createdAt"`
}

// ProfileNote is a free-form timestamped annotation.
type ProfileNote struct {
	ID        int64  `json:"id"`
	Note      string `json:"note"`
	CreatedAt string `json:"createdAt"`
}

// DuplicateGroup is one maintenance-report row: profiles sharing a
// canonical name.
type DuplicateGroup struct {
	CanonicalName string `json:"canonicalName"`
	Count         int    `json:"count"`
	Workers       string `json:"workers"`
}

// OrphanCounts reports child rows whose owning profile no longer exists.
type OrphanCounts struct {
	Ratings        int `json:"ratings"`
	HistoryEntries int `json:"historyEntries"`
	ProfileNotes   int `json:"profileNotes"`
}
