package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/godilite/workforce-server/internal/repository"
	"github.com/godilite/workforce-server/internal/repository/models"
	"github.com/godilite/workforce-server/pkg/events"
)

// Catalog returns the admin-defined job types and criteria names.
func (s *ProfileService) Catalog(ctx context.Context) (Catalog, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	jobTypes, err := s.storage.LoadCatalogList(dbCtx, repository.CatalogJobTypes)
	if err != nil {
		return Catalog{}, s.wrapStorage(err)
	}
	criteria, err := s.storage.LoadCatalogList(dbCtx, repository.CatalogCriteriaNames)
	if err != nil {
		return Catalog{}, s.wrapStorage(err)
	}
	return Catalog{JobTypes: emptyIfNil(jobTypes), CriteriaNames: emptyIfNil(criteria)}, nil
}

// SaveCatalog replaces both admin lists, de-duplicated case-insensitively
// preserving first casing, and returns what was stored.
func (s *ProfileService) SaveCatalog(ctx context.Context, jobTypes, criteriaNames []string) (Catalog, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	normalizedJobs := dedupeList(jobTypes)
	normalizedCriteria := dedupeList(criteriaNames)

	if err := s.storage.SaveCatalogList(dbCtx, repository.CatalogJobTypes, normalizedJobs); err != nil {
		return Catalog{}, s.wrapStorage(err)
	}
	if err := s.storage.SaveCatalogList(dbCtx, repository.CatalogCriteriaNames, normalizedCriteria); err != nil {
		return Catalog{}, s.wrapStorage(err)
	}

	s.logger.Info("admin catalog updated",
		zap.Int("job_types", len(normalizedJobs)),
		zap.Int("criteria_names", len(normalizedCriteria)))
	s.publisher.Publish(events.TypeAdminCatalogUpdated, nil)

	return Catalog{JobTypes: normalizedJobs, CriteriaNames: normalizedCriteria}, nil
}

// GetSetting reads an arbitrary admin setting; nil when unset.
func (s *ProfileService) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	if strings.TrimSpace(key) == "" {
		return nil, validationErr("key is required")
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	value, err := s.storage.LoadSetting(dbCtx, strings.TrimSpace(key))
	if err != nil {
		return nil, s.wrapStorage(err)
	}
	return value, nil
}

// SaveSetting stores an arbitrary JSON admin setting.
func (s *ProfileService) SaveSetting(ctx context.Context, key string, value json.RawMessage) error {
	if strings.TrimSpace(key) == "" {
		return validationErr("key is required")
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.storage.SaveSetting(dbCtx, strings.TrimSpace(key), value); err != nil {
		return s.wrapStorage(err)
	}

	s.publisher.Publish(events.TypeAdminSettingsUpdated,
		map[string]any{"key": strings.TrimSpace(key)})
	return nil
}

// Maintenance reports potential duplicate identities and orphaned child
// rows for operator review.
func (s *ProfileService) Maintenance(ctx context.Context) (MaintenanceReport, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	duplicates, orphans, err := s.storage.MaintenanceReport(dbCtx)
	if err != nil {
		return MaintenanceReport{}, s.wrapStorage(err)
	}
	if duplicates == nil {
		duplicates = []models.DuplicateGroup{}
	}
	return MaintenanceReport{PotentialDuplicates: duplicates, Orphans: orphans}, nil
}

// validateAgainstCatalog rejects categories and criteria outside the
// admin-defined lists. Empty lists disable the check.
func (s *ProfileService) validateAgainstCatalog(ctx context.Context, category string, criteria []SelectedCriterion) error {
	category = strings.TrimSpace(category)
	if category != "" {
		jobTypes, err := s.storage.LoadCatalogList(ctx, repository.CatalogJobTypes)
		if err != nil {
			return s.wrapStorage(err)
		}
		if len(jobTypes) > 0 && !containsFold(jobTypes, category) {
			return validationErr(fmt.Sprintf(
				"category must be one of the admin-defined job types: %s",
				strings.Join(jobTypes, ", ")))
		}
	}

	if len(criteria) == 0 {
		return nil
	}

	allowed, err := s.storage.LoadCatalogList(ctx, repository.CatalogCriteriaNames)
	if err != nil {
		return s.wrapStorage(err)
	}
	for _, entry := range criteria {
		criterion := strings.TrimSpace(entry.Criterion)
		if criterion == "" {
			return validationErr("Each selectedCriteria entry must include criterion")
		}
		if len(allowed) > 0 && !containsFold(allowed, criterion) {
			return validationErr(fmt.Sprintf("criterion %q is not admin-defined", criterion))
		}
	}
	return nil
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

func dedupeList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		text := strings.TrimSpace(value)
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, text)
	}
	return out
}

func emptyIfNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
