package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/godilite/workforce-server/internal/identity"
	"github.com/godilite/workforce-server/internal/repository"
	"github.com/godilite/workforce-server/internal/repository/models"
	"github.com/godilite/workforce-server/pkg/events"
)

const dbTimeout = 5 * time.Second

var (
	// ErrValidation marks malformed or out-of-range input; nothing was
	// written.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing profile, rating or note.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness violation surfacing at write time,
	// e.g. two resolvers racing to create the same worker.
	ErrConflict = errors.New("conflict")
	// ErrStorageFailure wraps unexpected storage errors.
	ErrStorageFailure = errors.New("storage failure")
)

const conflictMessage = "Duplicate worker key or employee ID detected. Merge duplicates or change employee ID."

// ProfileService implements the worker-profile operations: identity
// resolution, rating submission, profile maintenance, merging and the
// aggregated read path.
type ProfileService struct {
	storage   Storage
	publisher Publisher
	logger    *zap.Logger
}

// NewProfileService creates a ProfileService instance.
func NewProfileService(storage Storage, publisher Publisher, logger *zap.Logger) *ProfileService {
	if storage == nil {
		panic("storage must not be nil")
	}
	if publisher == nil {
		panic("publisher must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	return &ProfileService{
		storage:   storage,
		publisher: publisher,
		logger:    logger,
	}
}

func validationErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func notFoundErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, msg)
}

func (s *ProfileService) wrapStorage(err error) error {
	if repository.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrConflict, conflictMessage)
	}
	return fmt.Errorf("%w: %v", ErrStorageFailure, err)
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// resolveIdentity finds the one existing profile a (name, employeeId) pair
// should update, or nil meaning "create new". Order: exact canonical-key
// match; then, only when no employee id was supplied, an unambiguous
// normalized-name match. An explicit employee id is authoritative and never
// falls back to name matching. Read-only; never fails on "no match".
func (s *ProfileService) resolveIdentity(ctx context.Context, name, employeeID string) (*models.WorkerProfile, error) {
	key := identity.CanonicalKey(name, employeeID)

	existing, err := s.storage.FindByCanonicalKey(ctx, key)
	if err != nil {
		return nil, s.wrapStorage(err)
	}
	if existing != nil {
		return existing, nil
	}

	if identity.NormalizeEmployeeID(employeeID) != "" {
		return nil, nil
	}

	matches, err := s.storage.FindByCanonicalName(ctx, identity.NormalizeName(name))
	if err != nil {
		return nil, s.wrapStorage(err)
	}
	if len(matches) == 1 {
		return &matches[0], nil
	}
	return nil, nil
}

func employeeIDColumn(raw string) *string {
	normalized := identity.NormalizeEmployeeID(raw)
	if normalized == "" {
		return nil
	}
	return &normalized
}

func historyNoteFor(reviewer, note string) string {
	if note != "" {
		return fmt.Sprintf("Rating logged by %s: %s", reviewer, note)
	}
	return fmt.Sprintf("Rating logged by %s", reviewer)
}

// SubmitRating resolves the worker identity, creates or updates the
// profile, and always appends a rating. The returned flag reports whether a
// new profile was created.
func (s *ProfileService) SubmitRating(ctx context.Context, in RatingSubmission) (ProfileView, bool, error) {
	workerName := strings.TrimSpace(in.WorkerName)
	if len(workerName) < 2 {
		return ProfileView{}, false, validationErr("workerName is required and must be at least 2 characters")
	}
	if err := validateRatingFields(in.Score, in.Reviewer); err != nil {
		return ProfileView{}, false, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.validateAgainstCatalog(dbCtx, in.Category, in.SelectedCriteria); err != nil {
		return ProfileView{}, false, err
	}

	existing, err := s.resolveIdentity(dbCtx, workerName, in.ExternalEmployeeID)
	if err != nil {
		return ProfileView{}, false, err
	}

	ratedAt := strings.TrimSpace(in.RatedAt)
	if ratedAt == "" {
		ratedAt = nowISO()
	}
	rating := repository.RatingInsert{
		Category: strings.TrimSpace(in.Category),
		Score:    *in.Score,
		Reviewer: strings.TrimSpace(in.Reviewer),
		Note:     strings.TrimSpace(in.Note),
		RatedAt:  ratedAt,
	}
	snapshot := repository.SnapshotUpsert{
		Name:               workerName,
		ExternalEmployeeID: employeeIDColumn(in.ExternalEmployeeID),
		CanonicalName:      identity.NormalizeName(workerName),
		CanonicalKey:       identity.CanonicalKey(workerName, in.ExternalEmployeeID),
	}

	var existingID *int64
	if existing != nil {
		existingID = &existing.ID
	}
	workerID, err := s.storage.SubmitRating(dbCtx, existingID, snapshot, rating,
		historyNoteFor(rating.Reviewer, rating.Note))
	if err != nil {
		return ProfileView{}, false, s.wrapStorage(err)
	}

	view, err := s.viewByID(dbCtx, workerID)
	if err != nil {
		return ProfileView{}, false, err
	}

	s.logger.Info("rating submitted",
		zap.Int64("profile_id", workerID),
		zap.Bool("created", existing == nil),
		zap.String("category", rating.Category))
	s.publisher.Publish(events.TypeProfilesUpdated,
		map[string]any{"profileId": workerID, "action": "submit_rating"})

	return view, existing == nil, nil
}

// CreateOrUpdateProfile resolves identity like a rating submission but only
// writes profile fields and replaces the history/notes timelines; no rating
// is appended.
func (s *ProfileService) CreateOrUpdateProfile(ctx context.Context, in ProfileInput) (ProfileView, bool, error) {
	name := strings.TrimSpace(in.Name)
	if len(name) < 2 {
		return ProfileView{}, false, validationErr("name is required and must be at least 2 characters")
	}
	if err := validateProfileNotes(in.Notes); err != nil {
		return ProfileView{}, false, err
	}
	if err := validateHistoryEntries(in.History); err != nil {
		return ProfileView{}, false, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	existing, err := s.resolveIdentity(dbCtx, name, in.ExternalEmployeeID)
	if err != nil {
		return ProfileView{}, false, err
	}

	upsert := repository.ProfileUpsert{
		Name:               name,
		Status:             strings.TrimSpace(in.Status),
		Background:         strings.TrimSpace(in.Background),
		ExternalEmployeeID: employeeIDColumn(in.ExternalEmployeeID),
		CanonicalName:      identity.NormalizeName(name),
		CanonicalKey:       identity.CanonicalKey(name, in.ExternalEmployeeID),
		History:            historyInserts(in.History),
		Notes:              noteInserts(in.Notes),
	}

	var existingID *int64
	if existing != nil {
		existingID = &existing.ID
	}
	workerID, err := s.storage.UpsertProfile(dbCtx, existingID, upsert)
	if err != nil {
		return ProfileView{}, false, s.wrapStorage(err)
	}

	view, err := s.viewByID(dbCtx, workerID)
	if err != nil {
		return ProfileView{}, false, err
	}

	s.logger.Info("profile upserted",
		zap.Int64("profile_id", workerID),
		zap.Bool("created", existing == nil))
	s.publisher.Publish(events.TypeProfilesUpdated,
		map[string]any{"profileId": workerID, "action": "create_profile"})

	return view, existing == nil, nil
}

// AddRating appends a rating to a known profile id.
func (s *ProfileService) AddRating(ctx context.Context, profileID int64, in RatingSubmission) (ProfileView, error) {
	if err := validateRatingFields(in.Score, in.Reviewer); err != nil {
		return ProfileView{}, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	profile, err := s.storage.GetProfile(dbCtx, profileID)
	if err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}
	if profile == nil {
		return ProfileView{}, notFoundErr("Profile not found")
	}

	if err := s.validateAgainstCatalog(dbCtx, in.Category, in.SelectedCriteria); err != nil {
		return ProfileView{}, err
	}

	ratedAt := strings.TrimSpace(in.RatedAt)
	if ratedAt == "" {
		ratedAt = nowISO()
	}
	rating := repository.RatingInsert{
		Category: strings.TrimSpace(in.Category),
		Score:    *in.Score,
		Reviewer: strings.TrimSpace(in.Reviewer),
		Note:     strings.TrimSpace(in.Note),
		RatedAt:  ratedAt,
	}

	if err := s.storage.AddRating(dbCtx, profileID, rating, historyNoteFor(rating.Reviewer, rating.Note)); err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}

	view, err := s.viewByID(dbCtx, profileID)
	if err != nil {
		return ProfileView{}, err
	}

	s.publisher.Publish(events.TypeProfilesUpdated,
		map[string]any{"profileId": profileID, "action": "add_rating"})
	return view, nil
}

// UpdateProfile applies a partial update; omitted fields keep their stored
// values. History and notes are replaced with the supplied arrays, and
// LogRating additionally appends a rating built from the merged values.
func (s *ProfileService) UpdateProfile(ctx context.Context, profileID int64, in ProfileUpdateInput) (ProfileView, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	existing, err := s.storage.GetProfile(dbCtx, profileID)
	if err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}
	if existing == nil {
		return ProfileView{}, notFoundErr("Profile not found")
	}

	name := strings.TrimSpace(orStored(in.Name, &existing.Name))
	if len(name) < 2 {
		return ProfileView{}, validationErr("name must be at least 2 characters")
	}

	employeeRaw := orStored(in.ExternalEmployeeID, existing.ExternalEmployeeID)
	category := strings.TrimSpace(orStored(in.Category, existing.JobCategory))
	reviewer := strings.TrimSpace(orStored(in.Reviewer, existing.Reviewer))
	note := strings.TrimSpace(orStored(in.Note, existing.Notes))
	status := strings.TrimSpace(orStored(in.Status, existing.ProfileStatus))
	background := strings.TrimSpace(orStored(in.Background, existing.BackgroundInfo))
	ratedAt := strings.TrimSpace(orStored(in.RatedAt, existing.RatedAt))
	if ratedAt == "" {
		ratedAt = nowISO()
	}

	score := 0.0
	switch {
	case in.Score != nil:
		score = *in.Score
	case existing.Score != nil:
		score = *existing.Score
	}
	if score < -5 || score > 5 {
		return ProfileView{}, validationErr("score must be a number between -5 and 5")
	}

	if err := validateHistoryEntries(in.History); err != nil {
		return ProfileView{}, err
	}
	if err := validateProfileNotes(in.Notes); err != nil {
		return ProfileView{}, err
	}
	if err := s.validateAgainstCatalog(dbCtx, category, in.SelectedCriteria); err != nil {
		return ProfileView{}, err
	}

	update := repository.ProfileUpdate{
		Name:               name,
		Category:           category,
		Score:              score,
		Reviewer:           reviewer,
		Note:               note,
		Status:             status,
		Background:         background,
		RatedAt:            ratedAt,
		ExternalEmployeeID: employeeIDColumn(employeeRaw),
		CanonicalName:      identity.NormalizeName(name),
		CanonicalKey:       identity.CanonicalKey(name, employeeRaw),
		LogRating:          in.LogRating,
		History:            historyInserts(in.History),
		Notes:              noteInserts(in.Notes),
	}

	if err := s.storage.UpdateProfile(dbCtx, profileID, update, historyNoteFor(reviewer, note)); err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}

	view, err := s.viewByID(dbCtx, profileID)
	if err != nil {
		return ProfileView{}, err
	}

	s.publisher.Publish(events.TypeProfilesUpdated,
		map[string]any{"profileId": profileID, "action": "update_profile"})
	return view, nil
}

// MergeProfiles reparents every child record of source onto target and
// removes the source profile. Target's own snapshot and identity fields
// survive untouched.
func (s *ProfileService) MergeProfiles(ctx context.Context, sourceID, targetID int64) (ProfileView, error) {
	if sourceID <= 0 || targetID <= 0 || sourceID == targetID {
		return ProfileView{}, validationErr("sourceProfileId and targetProfileId must be different numeric values")
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	source, err := s.storage.GetProfile(dbCtx, sourceID)
	if err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}
	target, err := s.storage.GetProfile(dbCtx, targetID)
	if err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}
	if source == nil || target == nil {
		return ProfileView{}, notFoundErr("One or both profiles were not found")
	}

	if err := s.storage.MergeProfiles(dbCtx, sourceID, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ProfileView{}, notFoundErr("One or both profiles were not found")
		}
		return ProfileView{}, s.wrapStorage(err)
	}

	view, err := s.viewByID(dbCtx, targetID)
	if err != nil {
		return ProfileView{}, err
	}

	s.logger.Info("profiles merged",
		zap.Int64("source_id", sourceID),
		zap.Int64("target_id", targetID))
	s.publisher.Publish(events.TypeProfilesUpdated,
		map[string]any{"profileId": targetID, "action": "merge"})
	return view, nil
}

// DeleteProfile removes a profile and, via cascade, all its child records.
func (s *ProfileService) DeleteProfile(ctx context.Context, profileID int64) error {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	deleted, err := s.storage.DeleteProfile(dbCtx, profileID)
	if err != nil {
		return s.wrapStorage(err)
	}
	if !deleted {
		return notFoundErr("Profile not found")
	}

	s.publisher.Publish(events.TypeProfilesUpdated,
		map[string]any{"profileId": profileID, "action": "delete_profile"})
	return nil
}

// DeleteRating removes one rating scoped to its owning profile and returns
// the rebuilt view.
func (s *ProfileService) DeleteRating(ctx context.Context, profileID, ratingID int64) (ProfileView, error) {
	return s.deleteEntry(ctx, profileID, ratingID, s.storage.DeleteRating, "delete_rating")
}

// DeleteNote removes one annotation scoped to its owning profile and
// returns the rebuilt view.
func (s *ProfileService) DeleteNote(ctx context.Context, profileID, noteID int64) (ProfileView, error) {
	return s.deleteEntry(ctx, profileID, noteID, s.storage.DeleteNote, "delete_note")
}

func (s *ProfileService) deleteEntry(ctx context.Context, profileID, entryID int64,
	remove func(context.Context, int64, int64) (bool, error), action string) (ProfileView, error) {

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	profile, err := s.storage.GetProfile(dbCtx, profileID)
	if err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}
	if profile == nil {
		return ProfileView{}, notFoundErr("Profile not found")
	}

	deleted, err := remove(dbCtx, profileID, entryID)
	if err != nil {
		return ProfileView{}, s.wrapStorage(err)
	}
	if !deleted {
		return ProfileView{}, notFoundErr("Entry not found")
	}

	view, err := s.viewByID(dbCtx, profileID)
	if err != nil {
		return ProfileView{}, err
	}

	s.publisher.Publish(events.TypeProfilesUpdated,
		map[string]any{"profileId": profileID, "action": action})
	return view, nil
}

// ClearAll wipes every profile and child record.
func (s *ProfileService) ClearAll(ctx context.Context) error {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.storage.ClearAll(dbCtx); err != nil {
		return s.wrapStorage(err)
	}

	s.logger.Warn("all profiles cleared")
	s.publisher.Publish(events.TypeProfilesUpdated, map[string]any{"action": "clear_all"})
	return nil
}

// GetProfile returns the aggregated view for one profile.
func (s *ProfileService) GetProfile(ctx context.Context, profileID int64) (ProfileView, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.viewByID(dbCtx, profileID)
}

// ListProfiles returns every profile's aggregated view ordered by name.
func (s *ProfileService) ListProfiles(ctx context.Context) ([]ProfileView, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	profiles, err := s.storage.ListProfiles(dbCtx)
	if err != nil {
		return nil, s.wrapStorage(err)
	}

	views := make([]ProfileView, 0, len(profiles))
	for i := range profiles {
		view, err := s.buildView(dbCtx, &profiles[i])
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func orStored(override *string, stored *string) string {
	if override != nil {
		return *override
	}
	if stored != nil {
		return *stored
	}
	return ""
}

func validateRatingFields(score *float64, reviewer string) error {
	if score == nil || *score < -5 || *score > 5 {
		return validationErr("score must be a number between -5 and 5")
	}
	if strings.TrimSpace(reviewer) == "" {
		return validationErr("Missing required field: reviewer")
	}
	return nil
}

func validateHistoryEntries(entries []HistoryEntryInput) error {
	for _, entry := range entries {
		if strings.TrimSpace(entry.Category) == "" {
			return validationErr("Each history entry requires a category")
		}
		if entry.Score == nil || *entry.Score < -5 || *entry.Score > 5 {
			return validationErr("Each history entry score must be a number between -5 and 5")
		}
	}
	return nil
}

func validateProfileNotes(notes []ProfileNoteInput) error {
	for _, note := range notes {
		if strings.TrimSpace(note.Note) == "" {
			return validationErr("Each profile note requires note text")
		}
	}
	return nil
}

func historyInserts(entries []HistoryEntryInput) []repository.HistoryInsert {
	out := make([]repository.HistoryInsert, 0, len(entries))
	for _, entry := range entries {
		createdAt := strings.TrimSpace(entry.CreatedAt)
		if createdAt == "" {
			createdAt = nowISO()
		}
		out = append(out, repository.HistoryInsert{
			Category:  strings.TrimSpace(entry.Category),
			Score:     *entry.Score,
			Note:      strings.TrimSpace(entry.Note),
			CreatedAt: createdAt,
		})
	}
	return out
}

func noteInserts(notes []ProfileNoteInput) []repository.NoteInsert {
	out := make([]repository.NoteInsert, 0, len(notes))
	for _, note := range notes {
		createdAt := strings.TrimSpace(note.CreatedAt)
		if createdAt == "" {
			createdAt = nowISO()
		}
		out = append(out, repository.NoteInsert{
			Note:      strings.TrimSpace(note.Note),
			CreatedAt: createdAt,
		})
	}
	return out
}
