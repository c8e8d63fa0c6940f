package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertygate/internal/models"
)

func candidate(fips, apn, zip, unit string) models.MatchCandidate {
	return models.MatchCandidate{
		FIPS:       fips,
		APN:        apn,
		Address:    "123 MAIN ST",
		City:       "LOS ANGELES",
		State:      "CA",
		Zip:        zip,
		UnitNumber: unit,
	}
}

func TestSelect_SingleCandidatePassesThrough(t *testing.T) {
	only := candidate("06037", "6327-030-021", "90001", "")

	got, ok := Select([]models.MatchCandidate{only}, "", "")
	require.True(t, ok)
	assert.Equal(t, only, got)
}

func TestSelect_EmptyList(t *testing.T) {
	_, ok := Select(nil, "90001", "A")
	assert.False(t, ok)
}

func TestSelect_UnitTieBreak(t *testing.T) {
	// Two candidates differing only by unit number; the caller asked for
	// unit A, so the unit rule decides.
	candidates := []models.MatchCandidate{
		candidate("06037", "6327-030-021", "90001", ""),
		candidate("06037", "6327-030-022", "90001", "A"),
	}

	got, ok := Select(candidates, "90001", "A")
	require.True(t, ok)
	assert.Equal(t, "A", got.UnitNumber)
	assert.Equal(t, "6327-030-022", got.APN)
}

func TestSelect_ZipRuleRunsBeforeUnit(t *testing.T) {
	// Different ZIPs and the caller's ZIP matches the second candidate
	// exactly: the ZIP rule decides without consulting units.
	candidates := []models.MatchCandidate{
		candidate("06037", "6327-030-021", "90002", "A"),
		candidate("06037", "6327-030-022", "90001", "B"),
	}

	got, ok := Select(candidates, "90001", "A")
	require.True(t, ok)
	assert.Equal(t, "6327-030-022", got.APN)
}

func TestSelect_ZipAmbiguousFallsToUnit(t *testing.T) {
	candidates := []models.MatchCandidate{
		candidate("06037", "6327-030-021", "90001", "1"),
		candidate("06037", "6327-030-022", "90001", "2"),
	}

	got, ok := Select(candidates, "90001", "2")
	require.True(t, ok)
	assert.Equal(t, "6327-030-022", got.APN)
}

func TestSelect_NoRuleNarrows(t *testing.T) {
	candidates := []models.MatchCandidate{
		candidate("06037", "6327-030-021", "90001", "1"),
		candidate("06037", "6327-030-022", "90001", "2"),
	}

	// No expected unit and the shared ZIP cannot narrow: stay unresolved
	// rather than silently picking the first candidate.
	_, ok := Select(candidates, "90001", "")
	assert.False(t, ok)
}

func TestSelect_NoExpectedValues(t *testing.T) {
	candidates := []models.MatchCandidate{
		candidate("06037", "6327-030-021", "90001", ""),
		candidate("06037", "6327-030-022", "90002", ""),
	}

	_, ok := Select(candidates, "", "")
	assert.False(t, ok)
}

func TestSelect_CaseAndWhitespaceInsensitive(t *testing.T) {
	candidates := []models.MatchCandidate{
		candidate("06037", "6327-030-021", "90001", "a"),
		candidate("06037", "6327-030-022", "90001", "B"),
	}

	got, ok := Select(candidates, "90001", " A ")
	require.True(t, ok)
	assert.Equal(t, "6327-030-021", got.APN)
}

func TestSelect_Deterministic(t *testing.T) {
	candidates := []models.MatchCandidate{
		candidate("06037", "6327-030-021", "90002", ""),
		candidate("06037", "6327-030-022", "90001", "A"),
		candidate("06037", "6327-030-023", "90003", ""),
	}

	first, okFirst := Select(candidates, "90001", "A")
	require.True(t, okFirst)

	for i := 0; i < 100; i++ {
		got, ok := Select(candidates, "90001", "A")
		require.True(t, ok)
		require.Equal(t, first, got)
	}
}
