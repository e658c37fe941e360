// Package analytics derives performance metrics from a profile's rating
// history. Compute is a pure function: identical input always yields
// identical output, which keeps served analytics reproducible.
package analytics

import (
	"math"
	"sort"
	"strings"

	"github.com/godilite/workforce-server/internal/repository/models"
)

const (
	// A rating is punctuality-related when its category contains one of
	// these tokens, case-insensitively.
	trendWindow = 3

	// Normalized scores at or above this keep a positive streak alive.
	streakThreshold = 3.5

	streakBonusStep = 0.1
	streakBonusCap  = 0.5
)

const (
	TrendNone      = "No punctuality trend yet"
	TrendMonitored = "Punctuality is being monitored"
	TrendLate      = "Always late trend detected; punctuality scores are doubled"
)

var punctualityTokens = []string{"punctuality", "attendance", "timeliness", "late"}

// Metrics is the derived analytics block served alongside a profile.
type Metrics struct {
	OverallScore          float64 `json:"normalizedOverallScore"`
	ConsistencyScore      float64 `json:"consistencyScore"`
	CurrentPositiveStreak int     `json:"currentPositiveStreak"`
	BestPositiveStreak    int     `json:"bestPositiveStreak"`
	LateTrendApplied      bool    `json:"lateTrendWeightApplied"`
	LateTrend             string  `json:"lateTrend"`
}

// IsPunctualityCategory reports whether a category counts toward the late
// trend.
func IsPunctualityCategory(category string) bool {
	normalized := strings.ToLower(strings.TrimSpace(category))
	for _, token := range punctualityTokens {
		if strings.Contains(normalized, token) {
			return true
		}
	}
	return false
}

// ToFivePointScale maps a raw [-5, 5] score onto [0, 5], rounded to two
// decimals.
func ToFivePointScale(raw float64) float64 {
	return round2((clamp(raw, -5, 5) + 5) / 2)
}

// Compute scores a rating history. Ratings are ordered by (ratedAt, id)
// ascending before any pass; the input slice is not modified.
func Compute(ratings []models.Rating) Metrics {
	if len(ratings) == 0 {
		return Metrics{LateTrend: TrendNone}
	}

	sorted := make([]models.Rating, len(ratings))
	copy(sorted, ratings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RatedAt != sorted[j].RatedAt {
			return sorted[i].RatedAt < sorted[j].RatedAt
		}
		return sorted[i].ID < sorted[j].ID
	})

	var punctuality []models.Rating
	for _, r := range sorted {
		if IsPunctualityCategory(r.Category) {
			punctuality = append(punctuality, r)
		}
	}
	recent := punctuality
	if len(recent) > trendWindow {
		recent = recent[len(recent)-trendWindow:]
	}
	lateTrend := len(recent) == trendWindow
	for _, r := range recent {
		if r.Score > 0 {
			lateTrend = false
		}
	}

	var (
		weightedSum   float64
		normalized    = make([]float64, 0, len(sorted))
		currentStreak int
		bestStreak    int
	)
	for _, r := range sorted {
		score := ToFivePointScale(r.Score)
		normalized = append(normalized, score)

		if score >= streakThreshold {
			currentStreak++
			if currentStreak > bestStreak {
				bestStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}

		weighted := r.Score
		if lateTrend && IsPunctualityCategory(r.Category) {
			weighted *= 2
		}
		weightedSum += weighted
	}

	overall := ToFivePointScale(weightedSum / float64(len(sorted)))
	bonus := math.Min(streakBonusCap, float64(currentStreak)*streakBonusStep)
	overall = round2(clamp(overall+bonus, 0, 5))

	var mean float64
	for _, s := range normalized {
		mean += s
	}
	mean /= float64(len(normalized))
	var variance float64
	for _, s := range normalized {
		variance += (s - mean) * (s - mean)
	}
	variance /= float64(len(normalized))
	consistency := round2(clamp(100-math.Sqrt(variance)*20, 0, 100))

	trend := TrendNone
	switch {
	case lateTrend:
		trend = TrendLate
	case len(punctuality) > 0:
		trend = TrendMonitored
	}

	return Metrics{
		OverallScore:          overall,
		ConsistencyScore:      consistency,
		CurrentPositiveStreak: currentStreak,
		BestPositiveStreak:    bestStreak,
		LateTrendApplied:      lateTrend,
		LateTrend:             trend,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
