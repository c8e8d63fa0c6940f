// Package orchestrate drives the two provider protocols: the synchronous
// REST address search with multi-match resolution, and the legacy
// create/poll/fetch asynchronous flow.
package orchestrate

import (
	"context"
	"strings"

	apperrors "propertygate/internal/common/errors"
	"propertygate/internal/common/logging"
	"propertygate/internal/fieldpath"
	"propertygate/internal/models"
	"propertygate/internal/normalize"
	"propertygate/internal/resolver"
)

// OutcomeKind tags a search outcome
type OutcomeKind int

const (
	// OutcomeSingle means a record was produced, directly or after
	// resolving a multi-match
	OutcomeSingle OutcomeKind = iota
	// OutcomeMulti means the candidates stayed ambiguous after the
	// tie-break rules; the caller must disambiguate
	OutcomeMulti
	// OutcomeNotFound means the provider answered with no match
	OutcomeNotFound
)

// Outcome is the tagged result of one address search
type Outcome struct {
	Kind       OutcomeKind
	Record     *models.PropertyRecord
	Candidates []models.MatchCandidate
}

// AddressSearcher is the REST provider surface the orchestrator needs
type AddressSearcher interface {
	SearchAddress(ctx context.Context, query models.SearchQuery) (map[string]interface{}, error)
	SearchByAPN(ctx context.Context, fips, apn, clientReference string) (map[string]interface{}, error)
}

// SearchOrchestrator runs the address search and settles ambiguity
type SearchOrchestrator struct {
	provider AddressSearcher
	logger   logging.Logger
}

// NewSearchOrchestrator creates a search orchestrator
func NewSearchOrchestrator(provider AddressSearcher, logger logging.Logger) *SearchOrchestrator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &SearchOrchestrator{provider: provider, logger: logger}
}

// Search runs one address search and classifies the response: an explicit
// no-match becomes NotFound; a candidate list is narrowed through the
// resolver and, when a candidate with both FIPS and APN wins, settled with
// a precise re-query; everything else parses as a single match.
func (o *SearchOrchestrator) Search(ctx context.Context, query models.SearchQuery) (Outcome, error) {
	tree, err := o.provider.SearchAddress(ctx, query)
	if err != nil {
		return Outcome{}, err
	}

	if noMatch(tree) {
		return Outcome{Kind: OutcomeNotFound}, nil
	}

	candidates := normalize.Candidates(tree)
	if len(candidates) > 1 {
		return o.resolveMulti(ctx, query, candidates)
	}
	if len(candidates) == 1 {
		// A lone candidate row without a profile body still needs the
		// precise lookup to obtain the full record
		return o.requery(ctx, query, candidates[0], normalize.ConfidenceSingle, candidates)
	}

	record := normalize.Record(tree, models.SourceProviderA, normalize.ConfidenceSingle)
	if !normalize.Usable(record) {
		return Outcome{}, apperrors.ParseError("search response carried no profile or candidates", "")
	}

	return Outcome{Kind: OutcomeSingle, Record: record}, nil
}

// resolveMulti applies the tie-break rules to a multi-match candidate list
func (o *SearchOrchestrator) resolveMulti(ctx context.Context, query models.SearchQuery, candidates []models.MatchCandidate) (Outcome, error) {
	pick, ok := resolver.Select(candidates, query.Zip, query.Unit)
	if !ok || pick.FIPS == "" || pick.APN == "" {
		o.logger.Info("multi-match stayed unresolved",
			logging.Int("candidates", len(candidates)),
			logging.String("client_reference", query.ClientReference),
		)
		return Outcome{Kind: OutcomeMulti, Candidates: candidates}, nil
	}

	o.logger.Debug("multi-match resolved, re-querying by parcel",
		logging.String("fips", pick.FIPS),
		logging.String("apn", pick.APN),
	)

	return o.requery(ctx, query, pick, normalize.ConfidenceResolved, candidates)
}

// requery settles a selected candidate with the precise FIPS+APN endpoint
func (o *SearchOrchestrator) requery(ctx context.Context, query models.SearchQuery, pick models.MatchCandidate, confidence float64, candidates []models.MatchCandidate) (Outcome, error) {
	if pick.FIPS == "" || pick.APN == "" {
		return Outcome{Kind: OutcomeMulti, Candidates: candidates}, nil
	}

	tree, err := o.provider.SearchByAPN(ctx, pick.FIPS, pick.APN, query.ClientReference)
	if err != nil {
		return Outcome{}, err
	}

	record := normalize.Record(tree, models.SourceProviderA, confidence)
	if !normalize.Usable(record) {
		return Outcome{}, apperrors.ParseError("parcel lookup returned an empty profile", "")
	}

	return Outcome{Kind: OutcomeSingle, Record: record}, nil
}

// noMatch detects the provider's explicit no-match answers
func noMatch(tree map[string]interface{}) bool {
	if len(tree) == 0 {
		return true
	}
	status := strings.ToUpper(fieldpath.Extract(tree, "Status", "MatchStatus"))
	switch {
	case strings.Contains(status, "NO MATCH"), strings.Contains(status, "NO_MATCH"), status == "NOMATCH":
		return true
	}
	return false
}
