package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/godilite/workforce-server/internal/repository/models"
)

// Catalog keys in the admin_catalog table.
const (
	CatalogJobTypes      = "job_types"
	CatalogCriteriaNames = "criteria_names"
)

// ProfileRepository persists worker profiles and their child records in
// sqlite. Every multi-row mutation runs inside a single transaction so a
// failed operation leaves prior state untouched.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// IsUniqueViolation reports whether err is a sqlite uniqueness-constraint
// failure, e.g. two resolvers racing to insert the same canonical key.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Migrations are applied in order on startup; PRAGMA user_version records
// the last applied step. Additive changes append a new entry.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS worker_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		job_category TEXT,
		score REAL,
		reviewer TEXT,
		notes TEXT,
		rated_at TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		profile_status TEXT,
		background_info TEXT,
		external_employee_id TEXT,
		canonical_name TEXT NOT NULL,
		canonical_worker_key TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS worker_ratings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		worker_id INTEGER NOT NULL,
		job_category TEXT NOT NULL,
		score REAL NOT NULL,
		reviewer TEXT NOT NULL,
		notes TEXT,
		rated_at TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (worker_id) REFERENCES worker_profiles(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS worker_profile_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		worker_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		score REAL NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (worker_id) REFERENCES worker_profiles(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS worker_profile_notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		worker_id INTEGER NOT NULL,
		note TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (worker_id) REFERENCES worker_profiles(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS admin_catalog (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_worker_profiles_external_employee_id
		ON worker_profiles(external_employee_id) WHERE external_employee_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_worker_profiles_canonical_key
		ON worker_profiles(canonical_worker_key);
	CREATE INDEX IF NOT EXISTS idx_worker_profiles_canonical_name
		ON worker_profiles(canonical_name);
	CREATE INDEX IF NOT EXISTS idx_worker_ratings_worker_id
		ON worker_ratings(worker_id);
	`,
}

// Migrate applies pending schema migrations and seeds the admin catalog
// defaults. Safe to run on every startup.
func (r *ProfileRepository) Migrate(ctx context.Context) error {
	var version int
	if err := r.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("bump schema version to %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return r.seedCatalogDefaults(ctx)
}

func (r *ProfileRepository) seedCatalogDefaults(ctx context.Context) error {
	defaults := map[string][]string{
		CatalogJobTypes:      {"Loading dock", "Warehouse", "Picker"},
		CatalogCriteriaNames: {"Late / on time", "Work quality"},
	}
	for key, values := range defaults {
		encoded, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("encode catalog default %q: %w", key, err)
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO admin_catalog (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
			key, string(encoded))
		if err != nil {
			return fmt.Errorf("seed catalog default %q: %w", key, err)
		}
	}
	return nil
}

const profileColumns = `id, name, job_category, score, reviewer, notes, rated_at,
	created_at, updated_at, profile_status, background_info,
	external_employee_id, canonical_name, canonical_worker_key`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.WorkerProfile, error) {
	var p models.WorkerProfile
	err := row.Scan(&p.ID, &p.Name, &p.JobCategory, &p.Score, &p.Reviewer,
		&p.Notes, &p.RatedAt, &p.CreatedAt, &p.UpdatedAt, &p.ProfileStatus,
		&p.BackgroundInfo, &p.ExternalEmployeeID, &p.CanonicalName, &p.CanonicalKey)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfile returns the profile or nil when the id is unknown.
func (r *ProfileRepository) GetProfile(ctx context.Context, id int64) (*models.WorkerProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM worker_profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query getProfile: %w", err)
	}
	return p, nil
}

// FindByCanonicalKey returns the single profile owning key, or nil.
func (r *ProfileRepository) FindByCanonicalKey(ctx context.Context, key string) (*models.WorkerProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM worker_profiles WHERE canonical_worker_key = ?`, key)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query findByCanonicalKey: %w", err)
	}
	return p, nil
}

// FindByCanonicalName lists profiles sharing a normalized name, most
// recently updated first.
func (r *ProfileRepository) FindByCanonicalName(ctx context.Context, name string) ([]models.WorkerProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM worker_profiles
		 WHERE canonical_name = ? ORDER BY updated_at DESC, id DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("query findByCanonicalName: %w", err)
	}
	defer rows.Close()

	var profiles []models.WorkerProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan findByCanonicalName row: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findByCanonicalName: %w", err)
	}
	return profiles, nil
}

// ListProfiles returns all profiles ordered by display name.
func (r *ProfileRepository) ListProfiles(ctx context.Context) ([]models.WorkerProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM worker_profiles ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query listProfiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.WorkerProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listProfiles row: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listProfiles: %w", err)
	}
	return profiles, nil
}

// ListRatings returns a profile's rating history in analytics order:
// (rated_at, id) ascending.
func (r *ProfileRepository) ListRatings(ctx context.Context, workerID int64) ([]models.Rating, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, job_category, score, reviewer, notes, rated_at, created_at
		 FROM worker_ratings WHERE worker_id = ?
		 ORDER BY datetime(rated_at) ASC, id ASC`, workerID)
	if err != nil {
		return nil, fmt.Errorf("query listRatings: %w", err)
	}
	defer rows.Close()

	var ratings []models.Rating
	for rows.Next() {
		var rt models.Rating
		if err := rows.Scan(&rt.ID, &rt.Category, &rt.Score, &rt.Reviewer, &rt.Note, &rt.RatedAt, &rt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan listRatings row: %w", err)
		}
		ratings = append(ratings, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listRatings: %w", err)
	}
	return ratings, nil
}

// ListHistory returns a profile's narrative history in insertion order.
func (r *ProfileRepository) ListHistory(ctx context.Context, workerID int64) ([]models.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, score, note, created_at
		 FROM worker_profile_history WHERE worker_id = ? ORDER BY id ASC`, workerID)
	if err != nil {
		return nil, fmt.Errorf("query listHistory: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Category, &e.Score, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan listHistory row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listHistory: %w", err)
	}
	return entries, nil
}

// ListNotes returns a profile's annotations oldest first.
func (r *ProfileRepository) ListNotes(ctx context.Context, workerID int64) ([]models.ProfileNote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, note, created_at FROM worker_profile_notes
		 WHERE worker_id = ? ORDER BY datetime(created_at) ASC, id ASC`, workerID)
	if err != nil {
		return nil, fmt.Errorf("query listNotes: %w", err)
	}
	defer rows.Close()

	var notes []models.ProfileNote
	for rows.Next() {
		var n models.ProfileNote
		if err := rows.Scan(&n.ID, &n.Note, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan listNotes row: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listNotes: %w", err)
	}
	return notes, nil
}

// RatingInsert is one rating row to append. RatedAt is RFC3339.
type RatingInsert struct {
	Category string
	Score    float64
	Reviewer string
	Note     string
	RatedAt  string
}

// HistoryInsert is one narrative history row.
type HistoryInsert struct {
	Category  string
	Score     float64
	Note      string
	CreatedAt string
}

// NoteInsert is one annotation row.
type NoteInsert struct {
	Note      string
	CreatedAt string
}

// ProfileUpsert carries the identity and free-text fields written by the
// create-or-update operation.
type ProfileUpsert struct {
	Name               string
	Status             string
	Background         string
	ExternalEmployeeID *string
	CanonicalName      string
	CanonicalKey       string
	History            []HistoryInsert
	Notes              []NoteInsert
}

// UpsertProfile inserts a new profile or updates existingID, then replaces
// the narrative history and notes timelines, all in one transaction.
// Returns the profile id.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, existingID *int64, p ProfileUpsert) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsertProfile: %w", err)
	}
	defer tx.Rollback()

	var workerID int64
	if existingID == nil {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO worker_profiles
			 (name, profile_status, background_info, external_employee_id, canonical_name, canonical_worker_key)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.Name, p.Status, p.Background, p.ExternalEmployeeID, p.CanonicalName, p.CanonicalKey)
		if err != nil {
			return 0, fmt.Errorf("insert profile: %w", err)
		}
		workerID, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("profile id: %w", err)
		}
	} else {
		workerID = *existingID
		_, err := tx.ExecContext(ctx,
			`UPDATE worker_profiles
			 SET profile_status = ?, background_info = ?, external_employee_id = ?,
			     canonical_name = ?, canonical_worker_key = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			p.Status, p.Background, p.ExternalEmployeeID, p.CanonicalName, p.CanonicalKey, workerID)
		if err != nil {
			return 0, fmt.Errorf("update profile: %w", err)
		}
	}

	if err := replaceHistory(ctx, tx, workerID, p.History); err != nil {
		return 0, err
	}
	if err := replaceNotes(ctx, tx, workerID, p.Notes); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsertProfile: %w", err)
	}
	return workerID, nil
}

// SnapshotUpsert carries the fields written when a rating submission
// creates or refreshes a profile's latest-rating snapshot.
type SnapshotUpsert struct {
	Name               string
	ExternalEmployeeID *string
	CanonicalName      string
	CanonicalKey       string
}

// SubmitRating creates the profile (existingID nil) or refreshes its
// snapshot, appends the rating row and the derived history entry. One
// transaction: either all three writes land or none do.
func (r *ProfileRepository) SubmitRating(ctx context.Context, existingID *int64, p SnapshotUpsert, rating RatingInsert, historyNote string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin submitRating: %w", err)
	}
	defer tx.Rollback()

	var workerID int64
	if existingID == nil {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO worker_profiles
			 (name, job_category, score, reviewer, notes, rated_at, external_employee_id, canonical_name, canonical_worker_key)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Name, rating.Category, rating.Score, rating.Reviewer, rating.Note,
			rating.RatedAt, p.ExternalEmployeeID, p.CanonicalName, p.CanonicalKey)
		if err != nil {
			return 0, fmt.Errorf("insert rated profile: %w", err)
		}
		workerID, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("profile id: %w", err)
		}
	} else {
		workerID = *existingID
		_, err := tx.ExecContext(ctx,
			`UPDATE worker_profiles
			 SET job_category = ?, score = ?, reviewer = ?, notes = ?, rated_at = ?,
			     external_employee_id = ?, canonical_name = ?, canonical_worker_key = ?,
			     updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			rating.Category, rating.Score, rating.Reviewer, rating.Note, rating.RatedAt,
			p.ExternalEmployeeID, p.CanonicalName, p.CanonicalKey, workerID)
		if err != nil {
			return 0, fmt.Errorf("update snapshot: %w", err)
		}
	}

	if err := insertRating(ctx, tx, workerID, rating); err != nil {
		return 0, err
	}
	if err := appendHistory(ctx, tx, workerID, rating, historyNote); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit submitRating: %w", err)
	}
	return workerID, nil
}

// AddRating appends a rating to an existing profile, refreshing the
// snapshot and narrative history in the same transaction.
func (r *ProfileRepository) AddRating(ctx context.Context, workerID int64, rating RatingInsert, historyNote string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin addRating: %w", err)
	}
	defer tx.Rollback()

	if err := insertRating(ctx, tx, workerID, rating); err != nil {
		return err
	}
	if err := appendHistory(ctx, tx, workerID, rating, historyNote); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE worker_profiles
		 SET job_category = ?, score = ?, reviewer = ?, notes = ?, rated_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		rating.Category, rating.Score, rating.Reviewer, rating.Note, rating.RatedAt, workerID)
	if err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit addRating: %w", err)
	}
	return nil
}

// ProfileUpdate is the fully merged field set written by updateProfile.
type ProfileUpdate struct {
	Name               string
	Category           string
	Score              float64
	Reviewer           string
	Note               string
	Status             string
	Background         string
	RatedAt            string
	ExternalEmployeeID *string
	CanonicalName      string
	CanonicalKey       string
	LogRating          bool
	History            []HistoryInsert
	Notes              []NoteInsert
}

// UpdateProfile rewrites the profile row, optionally logs a rating from the
// merged values, and replaces the history/notes timelines, atomically.
func (r *ProfileRepository) UpdateProfile(ctx context.Context, workerID int64, u ProfileUpdate, historyNote string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin updateProfile: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE worker_profiles
		 SET name = ?, job_category = ?, score = ?, reviewer = ?, notes = ?, rated_at = ?,
		     profile_status = ?, background_info = ?, external_employee_id = ?,
		     canonical_name = ?, canonical_worker_key = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		u.Name, u.Category, u.Score, u.Reviewer, u.Note, u.RatedAt,
		u.Status, u.Background, u.ExternalEmployeeID, u.CanonicalName, u.CanonicalKey, workerID)
	if err != nil {
		return fmt.Errorf("update profile row: %w", err)
	}

	if u.LogRating {
		rating := RatingInsert{
			Category: u.Category,
			Score:    u.Score,
			Reviewer: u.Reviewer,
			Note:     u.Note,
			RatedAt:  u.RatedAt,
		}
		if err := insertRating(ctx, tx, workerID, rating); err != nil {
			return err
		}
		if err := appendHistory(ctx, tx, workerID, rating, historyNote); err != nil {
			return err
		}
	}

	if err := replaceHistory(ctx, tx, workerID, u.History); err != nil {
		return err
	}
	if err := replaceNotes(ctx, tx, workerID, u.Notes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit updateProfile: %w", err)
	}
	return nil
}

// MergeProfiles reparents every child record of source onto target, removes
// the source profile and touches target's updated_at. Target's own snapshot
// fields are left as they are.
func (r *ProfileRepository) MergeProfiles(ctx context.Context, sourceID, targetID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mergeProfiles: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"worker_ratings", "worker_profile_history", "worker_profile_notes"} {
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET worker_id = ? WHERE worker_id = ?", table),
			targetID, sourceID)
		if err != nil {
			return fmt.Errorf("reparent %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM worker_profiles WHERE id = ?`, sourceID)
	if err != nil {
		return fmt.Errorf("delete source profile: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete source profile: %w", err)
	} else if n == 0 {
		return sql.ErrNoRows
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE worker_profiles SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, targetID)
	if err != nil {
		return fmt.Errorf("touch target profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mergeProfiles: %w", err)
	}
	return nil
}

// DeleteProfile removes a profile; child rows cascade. Returns true when a
// row was deleted.
func (r *ProfileRepository) DeleteProfile(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM worker_profiles WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("exec deleteProfile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleteProfile rows: %w", err)
	}
	return n > 0, nil
}

// DeleteRating removes one rating scoped to its owning profile, so a rating
// id cannot be used against another worker's history.
func (r *ProfileRepository) DeleteRating(ctx context.Context, workerID, ratingID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM worker_ratings WHERE id = ? AND worker_id = ?`, ratingID, workerID)
	if err != nil {
		return false, fmt.Errorf("exec deleteRating: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleteRating rows: %w", err)
	}
	return n > 0, nil
}

// DeleteNote removes one annotation scoped to its owning profile.
func (r *ProfileRepository) DeleteNote(ctx context.Context, workerID, noteID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM worker_profile_notes WHERE id = ? AND worker_id = ?`, noteID, workerID)
	if err != nil {
		return false, fmt.Errorf("exec deleteNote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleteNote rows: %w", err)
	}
	return n > 0, nil
}

// ClearAll wipes every profile and child record.
func (r *ProfileRepository) ClearAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clearAll: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"worker_profile_notes", "worker_profile_history", "worker_ratings", "worker_profiles"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clearAll: %w", err)
	}
	return nil
}

// LoadCatalogList reads a JSON string list from the admin catalog,
// de-duplicated case-insensitively preserving first casing. A missing or
// malformed row yields an empty list.
func (r *ProfileRepository) LoadCatalogList(ctx context.Context, key string) ([]string, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM admin_catalog WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query loadCatalogList: %w", err)
	}

	var parsed []string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var unique []string
	for _, item := range parsed {
		text := strings.TrimSpace(item)
		lower := strings.ToLower(text)
		if text == "" {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		unique = append(unique, text)
	}
	return unique, nil
}

// SaveCatalogList writes a JSON string list into the admin catalog.
func (r *ProfileRepository) SaveCatalogList(ctx context.Context, key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode catalog list %q: %w", key, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO admin_catalog (key, value, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(encoded))
	if err != nil {
		return fmt.Errorf("exec saveCatalogList: %w", err)
	}
	return nil
}

// LoadSetting reads an arbitrary JSON value by key; nil when absent or
// undecodable.
func (r *ProfileRepository) LoadSetting(ctx context.Context, key string) (json.RawMessage, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM admin_catalog WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query loadSetting: %w", err)
	}
	if !json.Valid([]byte(raw)) {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// SaveSetting stores an arbitrary JSON value by key.
func (r *ProfileRepository) SaveSetting(ctx context.Context, key string, value json.RawMessage) error {
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_catalog (key, value, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("exec saveSetting: %w", err)
	}
	return nil
}

// MaintenanceReport aggregates profiles sharing a canonical name and counts
// child rows whose owner is gone.
func (r *ProfileRepository) MaintenanceReport(ctx context.Context) ([]models.DuplicateGroup, models.OrphanCounts, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT canonical_name, COUNT(*),
		        GROUP_CONCAT(name || ' (#' || id || ')', '; ')
		 FROM worker_profiles
		 GROUP BY canonical_name
		 HAVING COUNT(*) > 1
		 ORDER BY COUNT(*) DESC, canonical_name ASC`)
	if err != nil {
		return nil, models.OrphanCounts{}, fmt.Errorf("query duplicates: %w", err)
	}
	defer rows.Close()

	var duplicates []models.DuplicateGroup
	for rows.Next() {
		var d models.DuplicateGroup
		if err := rows.Scan(&d.CanonicalName, &d.Count, &d.Workers); err != nil {
			return nil, models.OrphanCounts{}, fmt.Errorf("scan duplicates row: %w", err)
		}
		duplicates = append(duplicates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, models.OrphanCounts{}, fmt.Errorf("iterate duplicates: %w", err)
	}

	var orphans models.OrphanCounts
	orphanQueries := []struct {
		table string
		dest  *int
	}{
		{"worker_ratings", &orphans.Ratings},
		{"worker_profile_history", &orphans.HistoryEntries},
		{"worker_profile_notes", &orphans.ProfileNotes},
	}
	for _, q := range orphanQueries {
		err := r.db.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT COUNT(*) FROM %s c
			 LEFT JOIN worker_profiles p ON p.id = c.worker_id
			 WHERE p.id IS NULL`, q.table)).Scan(q.dest)
		if err != nil {
			return nil, models.OrphanCounts{}, fmt.Errorf("count orphans in %s: %w", q.table, err)
		}
	}

	return duplicates, orphans, nil
}

func insertRating(ctx context.Context, tx *sql.Tx, workerID int64, rating RatingInsert) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO worker_ratings (worker_id, job_category, score, reviewer, notes, rated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		workerID, rating.Category, rating.Score, rating.Reviewer, nullIfEmpty(rating.Note), rating.RatedAt)
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func appendHistory(ctx context.Context, tx *sql.Tx, workerID int64, rating RatingInsert, note string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO worker_profile_history (worker_id, category, score, note, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		workerID, rating.Category, rating.Score, nullIfEmpty(note), rating.RatedAt)
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

func replaceHistory(ctx context.Context, tx *sql.Tx, workerID int64, entries []HistoryInsert) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM worker_profile_history WHERE worker_id = ?`, workerID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO worker_profile_history (worker_id, category, score, note, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			workerID, e.Category, e.Score, nullIfEmpty(e.Note), e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
	}
	return nil
}

func replaceNotes(ctx context.Context, tx *sql.Tx, workerID int64, notes []NoteInsert) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM worker_profile_notes WHERE worker_id = ?`, workerID); err != nil {
		return fmt.Errorf("clear notes: %w", err)
	}
	for _, n := range notes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO worker_profile_notes (worker_id, note, created_at)
			 VALUES (?, ?, ?)`,
			workerID, n.Note, n.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
