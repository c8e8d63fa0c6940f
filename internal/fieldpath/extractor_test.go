package fieldpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	data := map[string]interface{}{
		"Profile": map[string]interface{}{
			"Owner": map[string]interface{}{
				"Name": "JOHN DOE",
			},
			"SaleHistory": []interface{}{
				map[string]interface{}{"Price": float64(450000)},
				map[string]interface{}{"Price": float64(512000)},
			},
		},
	}

	tests := []struct {
		name     string
		path     string
		expected interface{}
	}{
		{"nested map", "Profile.Owner.Name", "JOHN DOE"},
		{"array bracket syntax", "Profile.SaleHistory[1].Price", float64(512000)},
		{"array dot syntax", "Profile.SaleHistory.0.Price", float64(450000)},
		{"missing key", "Profile.Owner.Phone", nil},
		{"missing branch", "Listing.Owner.Name", nil},
		{"index out of range", "Profile.SaleHistory[5].Price", nil},
		{"empty path", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Get(data, tt.path))
		})
	}
}

func TestExtract_FallbackOrdering(t *testing.T) {
	// Brief legal description absent, generic legal description present:
	// the second path must be returned.
	data := map[string]interface{}{
		"Profile": map[string]interface{}{
			"LegalDescription": "LOT 12 BLK 3 TRACT 9876",
		},
	}

	value := Extract(data,
		"Profile.LegalBriefDescription",
		"Profile.LegalDescription",
	)
	assert.Equal(t, "LOT 12 BLK 3 TRACT 9876", value)
}

func TestExtract_FirstNonEmptyWins(t *testing.T) {
	data := map[string]interface{}{
		"Profile": map[string]interface{}{
			"LegalBriefDescription": "LOT 12",
			"LegalDescription":      "LOT 12 BLK 3 TRACT 9876",
		},
	}

	value := Extract(data,
		"Profile.LegalBriefDescription",
		"Profile.LegalDescription",
	)
	assert.Equal(t, "LOT 12", value)
}

func TestExtract_EmptyStringSkipped(t *testing.T) {
	data := map[string]interface{}{
		"A": "   ",
		"B": "value",
	}

	assert.Equal(t, "value", Extract(data, "A", "B"))
}

func TestExtract_NoneMatch(t *testing.T) {
	data := map[string]interface{}{"A": "x"}

	assert.Equal(t, "", Extract(data, "B", "C"))
}

func TestExtract_NumberRendering(t *testing.T) {
	data := map[string]interface{}{
		"AssessedValue": float64(512000),
		"TaxRate":       1.25,
	}

	assert.Equal(t, "512000", Extract(data, "AssessedValue"))
	assert.Equal(t, "1.25", Extract(data, "TaxRate"))
}

func TestExtract_StructuralNodesNotScalars(t *testing.T) {
	data := map[string]interface{}{
		"Owner": map[string]interface{}{"Name": "JANE DOE"},
	}

	// A sub-tree must not stringify; the fallback should keep walking.
	assert.Equal(t, "", Extract(data, "Owner"))
}

func TestExtractAny(t *testing.T) {
	data := map[string]interface{}{
		"Candidates": []interface{}{
			map[string]interface{}{"APN": "1234-001"},
		},
	}

	node := ExtractAny(data, "Results", "Candidates")
	list, ok := node.([]interface{})
	assert.True(t, ok)
	assert.Len(t, list, 1)

	assert.Nil(t, ExtractAny(data, "Missing", "AlsoMissing"))
}
