package normalize

import (
	"propertygate/internal/fieldpath"
	"propertygate/internal/models"
)

// candidateListPaths locates the multi-match candidate list in the REST
// provider's search response
var candidateListPaths = []string{
	"Locations",
	"LocationMatches",
	"Matches",
}

// Candidates parses the multi-match candidate rows out of a search
// response tree. Returns nil when the response carries no candidate list.
func Candidates(tree map[string]interface{}) []models.MatchCandidate {
	node := fieldpath.ExtractAny(tree, candidateListPaths...)
	if node == nil {
		return nil
	}

	var items []interface{}
	switch v := node.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		items = []interface{}{v}
	default:
		return nil
	}

	var candidates []models.MatchCandidate
	for _, item := range items {
		row, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		c := models.MatchCandidate{
			FIPS:             fieldpath.Extract(row, "FIPS", "FIPSCode"),
			APN:              fieldpath.Extract(row, "APN", "FormattedAPN"),
			Address:          fieldpath.Extract(row, "Address", "SiteAddress", "StreetAddress"),
			City:             fieldpath.Extract(row, "City", "SiteCity"),
			State:            fieldpath.Extract(row, "State", "SiteState"),
			Zip:              fieldpath.Extract(row, "Zip", "ZipCode", "SiteZip"),
			UnitType:         fieldpath.Extract(row, "UnitType"),
			UnitNumber:       fieldpath.Extract(row, "UnitNumber", "UnitNo"),
			OwnerNamePreview: fieldpath.Extract(row, "OwnerName", "PrimaryOwnerName"),
		}
		if c.APN != "" || c.Address != "" {
			candidates = append(candidates, c)
		}
	}
	return candidates
}
