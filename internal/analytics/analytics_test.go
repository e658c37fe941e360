package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/godilite/workforce-server/internal/repository/models"
)

func rating(id int64, category string, score float64, ratedAt string) models.Rating {
	return models.Rating{ID: id, Category: category, Score: score, Reviewer: "sam", RatedAt: ratedAt}
}

func TestComputeEmpty(t *testing.T) {
	m := Compute(nil)

	assert.Zero(t, m.OverallScore)
	assert.Zero(t, m.ConsistencyScore)
	assert.Zero(t, m.CurrentPositiveStreak)
	assert.Zero(t, m.BestPositiveStreak)
	assert.False(t, m.LateTrendApplied)
	assert.Equal(t, TrendNone, m.LateTrend)
}

func TestComputeLateTrend(t *testing.T) {
	t.Run("three non-positive punctuality ratings double their weight", func(t *testing.T) {
		ratings := []models.Rating{
			rating(1, "Punctuality", -2, "2025-01-01T10:00:00Z"),
			rating(2, "Punctuality", -2, "2025-01-02T10:00:00Z"),
			rating(3, "Punctuality", -2, "2025-01-03T10:00:00Z"),
		}

		m := Compute(ratings)

		assert.True(t, m.LateTrendApplied)
		assert.Equal(t, TrendLate, m.LateTrend)
		// weighted average is -4, normalized onto the 5-point scale.
		assert.Equal(t, 0.5, m.OverallScore)
		assert.Equal(t, 100.0, m.ConsistencyScore)
	})

	t.Run("fewer than three punctuality ratings only monitor", func(t *testing.T) {
		ratings := []models.Rating{
			rating(1, "Attendance", -5, "2025-01-01T10:00:00Z"),
			rating(2, "Late arrivals", -5, "2025-01-02T10:00:00Z"),
		}

		m := Compute(ratings)

		assert.False(t, m.LateTrendApplied)
		assert.Equal(t, TrendMonitored, m.LateTrend)
	})

	t.Run("a positive rating in the window breaks the trend", func(t *testing.T) {
		ratings := []models.Rating{
			rating(1, "Timeliness", -3, "2025-01-01T10:00:00Z"),
			rating(2, "Timeliness", 2, "2025-01-02T10:00:00Z"),
			rating(3, "Timeliness", -3, "2025-01-03T10:00:00Z"),
		}

		m := Compute(ratings)

		assert.False(t, m.LateTrendApplied)
		assert.Equal(t, TrendMonitored, m.LateTrend)
	})

	t.Run("only the most recent three count", func(t *testing.T) {
		ratings := []models.Rating{
			rating(1, "Punctuality", 4, "2025-01-01T10:00:00Z"),
			rating(2, "Punctuality", -1, "2025-01-02T10:00:00Z"),
			rating(3, "Punctuality", -1, "2025-01-03T10:00:00Z"),
			rating(4, "Punctuality", 0, "2025-01-04T10:00:00Z"),
		}

		m := Compute(ratings)

		assert.True(t, m.LateTrendApplied)
	})
}

func TestComputeStreaks(t *testing.T) {
	// Raw scores 3,3,3,-1,3 normalize to 4,4,4,2,4.
	ratings := []models.Rating{
		rating(1, "Warehouse", 3, "2025-02-01T09:00:00Z"),
		rating(2, "Warehouse", 3, "2025-02-02T09:00:00Z"),
		rating(3, "Warehouse", 3, "2025-02-03T09:00:00Z"),
		rating(4, "Warehouse", -1, "2025-02-04T09:00:00Z"),
		rating(5, "Warehouse", 3, "2025-02-05T09:00:00Z"),
	}

	m := Compute(ratings)

	assert.Equal(t, 3, m.BestPositiveStreak)
	assert.Equal(t, 1, m.CurrentPositiveStreak)
	assert.Equal(t, 3.7, m.OverallScore)
	assert.Equal(t, 84.0, m.ConsistencyScore)
}

func TestComputeDeterminism(t *testing.T) {
	a := []models.Rating{
		rating(2, "Picker", 4, "2025-03-01T08:00:00Z"),
		rating(1, "Picker", -3, "2025-03-01T08:00:00Z"),
		rating(3, "Punctuality", 1, "2025-03-02T08:00:00Z"),
	}
	// Same entries, shuffled; ids tie-break the equal timestamps.
	b := []models.Rating{a[2], a[0], a[1]}

	assert.Equal(t, Compute(a), Compute(b))
	assert.Equal(t, Compute(a), Compute(a))
}

func TestComputeBounds(t *testing.T) {
	cases := [][]models.Rating{
		{rating(1, "Warehouse", 5, "2025-01-01T00:00:00Z")},
		{rating(1, "Warehouse", -5, "2025-01-01T00:00:00Z")},
		{
			rating(1, "Punctuality", -5, "2025-01-01T00:00:00Z"),
			rating(2, "Punctuality", -5, "2025-01-02T00:00:00Z"),
			rating(3, "Punctuality", -5, "2025-01-03T00:00:00Z"),
			rating(4, "Warehouse", 5, "2025-01-04T00:00:00Z"),
		},
	}

	for _, ratings := range cases {
		m := Compute(ratings)
		assert.GreaterOrEqual(t, m.OverallScore, 0.0)
		assert.LessOrEqual(t, m.OverallScore, 5.0)
		assert.GreaterOrEqual(t, m.ConsistencyScore, 0.0)
		assert.LessOrEqual(t, m.ConsistencyScore, 100.0)
	}
}

func TestComputeStreakBonusCapped(t *testing.T) {
	var ratings []models.Rating
	for i := int64(1); i <= 8; i++ {
		ratings = append(ratings, rating(i, "Warehouse", 2, "2025-04-01T00:00:00Z"))
	}

	m := Compute(ratings)

	assert.Equal(t, 8, m.CurrentPositiveStreak)
	// raw average 2 -> 3.5 on the 5-point scale, bonus capped at 0.5.
	assert.Equal(t, 4.0, m.OverallScore)
}

func TestIsPunctualityCategory(t *testing.T) {
	assert.True(t, IsPunctualityCategory("Punctuality"))
	assert.True(t, IsPunctualityCategory("  ATTENDANCE check "))
	assert.True(t, IsPunctualityCategory("chronically late"))
	assert.True(t, IsPunctualityCategory("Timeliness"))
	assert.False(t, IsPunctualityCategory("Work quality"))
	assert.False(t, IsPunctualityCategory(""))
}

func TestToFivePointScale(t *testing.T) {
	assert.Equal(t, 5.0, ToFivePointScale(5))
	assert.Equal(t, 0.0, ToFivePointScale(-5))
	assert.Equal(t, 2.5, ToFivePointScale(0))
	assert.Equal(t, 1.5, ToFivePointScale(-2))
	// Out-of-range raw scores clamp first.
	assert.Equal(t, 5.0, ToFivePointScale(9))
}
