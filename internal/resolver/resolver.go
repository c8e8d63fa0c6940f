// Package resolver picks a single candidate from a multi-match address
// search, or reports that the match stays ambiguous.
package resolver

import (
	"strings"

	"propertygate/internal/models"
)

// Select applies the tie-break policy to a multi-match candidate list:
//
//  1. Exact ZIP match against the expected ZIP, if one was provided.
//  2. Exact unit-number match against the expected unit, if the query
//     specified a unit.
//
// The first rule that narrows the list to exactly one candidate wins. If
// neither does, Select reports no selection; the engine never guesses
// among equally plausible candidates.
//
// Select is a pure function: identical inputs always yield the identical
// decision.
func Select(candidates []models.MatchCandidate, expectedZip, expectedUnit string) (models.MatchCandidate, bool) {
	if len(candidates) == 0 {
		return models.MatchCandidate{}, false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	if zip := canon(expectedZip); zip != "" {
		if c, ok := narrow(candidates, func(c models.MatchCandidate) bool {
			return canon(c.Zip) == zip
		}); ok {
			return c, true
		}
	}

	if unit := canon(expectedUnit); unit != "" {
		if c, ok := narrow(candidates, func(c models.MatchCandidate) bool {
			return canon(c.UnitNumber) == unit
		}); ok {
			return c, true
		}
	}

	return models.MatchCandidate{}, false
}

// narrow returns the sole candidate matching the predicate. Zero or
// several matches leave the list ambiguous and the rule does not apply.
func narrow(candidates []models.MatchCandidate, match func(models.MatchCandidate) bool) (models.MatchCandidate, bool) {
	var found models.MatchCandidate
	count := 0
	for _, c := range candidates {
		if match(c) {
			found = c
			count++
			if count > 1 {
				return models.MatchCandidate{}, false
			}
		}
	}
	return found, count == 1
}

func canon(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
