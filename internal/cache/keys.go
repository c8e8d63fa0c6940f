package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"propertygate/internal/models"
)

// KeyVersion prefixes every cache key. Bump it whenever the normalizer's
// output shape or the extraction path lists change, so entries written by
// the previous shape are never served as the new one.
const KeyVersion = 1

// Key builds the version-prefixed hash key for a search query. Address
// components are normalized (case, surrounding whitespace) so that
// trivially different spellings of the same address share an entry.
func Key(query models.SearchQuery) string {
	normalized := strings.Join([]string{
		normalize(query.Street),
		normalize(query.City),
		normalize(query.State),
		normalize(query.Zip),
		normalize(query.Unit),
	}, "|")

	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("propv%d:%s", KeyVersion, hex.EncodeToString(sum[:]))
}

func normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
