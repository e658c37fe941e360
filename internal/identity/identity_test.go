package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	t.Run("collapses whitespace and lowercases", func(t *testing.T) {
		assert.Equal(t, "jane doe", NormalizeName("  Jane\t  DOE "))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", NormalizeName(""))
		assert.Equal(t, "", NormalizeName("   "))
	})
}

func TestNormalizeEmployeeID(t *testing.T) {
	t.Run("strips all whitespace", func(t *testing.T) {
		assert.Equal(t, "e12", NormalizeEmployeeID(" E 1 2 "))
	})

	t.Run("blank becomes empty", func(t *testing.T) {
		assert.Equal(t, "", NormalizeEmployeeID(" \t "))
	})
}

func TestCanonicalKey(t *testing.T) {
	t.Run("name only", func(t *testing.T) {
		assert.Equal(t, "jane doe", CanonicalKey("Jane Doe", ""))
	})

	t.Run("with employee id", func(t *testing.T) {
		assert.Equal(t, "jane doe::e1", CanonicalKey("Jane Doe", " E1 "))
	})

	t.Run("idempotent under normalization", func(t *testing.T) {
		variants := []struct{ name, id string }{
			{" jane  doe ", "E1"},
			{"JANE DOE", " e 1"},
			{"Jane\tDoe", "E1 "},
		}
		for _, v := range variants {
			key := CanonicalKey(v.name, v.id)
			assert.Equal(t, "jane doe::e1", key)
			assert.Equal(t, key, CanonicalKey(NormalizeName(v.name), NormalizeEmployeeID(v.id)))
		}
	})
}
