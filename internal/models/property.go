// Package models holds the shared data types of the enrichment engine
package models

import "time"

// Enrichment sources tagged on every record
const (
	SourceProviderA = "provider-A" // REST address-search provider
	SourceProviderB = "provider-B" // legacy async title-data provider
)

// SearchQuery is the immutable per-request address query
type SearchQuery struct {
	Street          string `json:"street"`
	City            string `json:"city"`
	State           string `json:"state"`
	Zip             string `json:"zip"`
	Unit            string `json:"unit,omitempty"`
	ClientReference string `json:"client_reference"`
}

// MatchCandidate is one row of a multi-match search response. Candidates are
// ephemeral; they exist only for the duration of disambiguation.
type MatchCandidate struct {
	FIPS             string `json:"fips"`
	APN              string `json:"apn"`
	Address          string `json:"address"`
	City             string `json:"city"`
	State            string `json:"state"`
	Zip              string `json:"zip"`
	UnitType         string `json:"unit_type,omitempty"`
	UnitNumber       string `json:"unit_number,omitempty"`
	OwnerNamePreview string `json:"owner_name_preview,omitempty"`
}

// SaleRecord is one entry of a parcel's sale history
type SaleRecord struct {
	Date   string `json:"date,omitempty"`
	Price  string `json:"price,omitempty"`
	DocNum string `json:"doc_num,omitempty"`
}

// PropertyRecord is the canonical normalized output of the engine.
// Immutable once constructed; it is the unit of caching and the public
// return value.
type PropertyRecord struct {
	// Identifiers
	APN  string `json:"apn"`
	FIPS string `json:"fips"`

	// Location
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	County  string `json:"county"`

	// Legal
	LegalDescription string `json:"legal_description,omitempty"`
	Subdivision      string `json:"subdivision,omitempty"`
	Lot              string `json:"lot,omitempty"`
	Block            string `json:"block,omitempty"`

	// Ownership
	PrimaryOwner   string `json:"primary_owner,omitempty"`
	SecondaryOwner string `json:"secondary_owner,omitempty"`
	VestingType    string `json:"vesting_type,omitempty"`

	// Valuation / tax
	AssessedValue string `json:"assessed_value,omitempty"`
	TaxAmount     string `json:"tax_amount,omitempty"`
	TaxYear       string `json:"tax_year,omitempty"`

	SaleHistory []SaleRecord `json:"sale_history,omitempty"`

	ConfidenceScore  float64 `json:"confidence_score"`
	EnrichmentSource string  `json:"enrichment_source"`
}

// ManualEntry reasons returned when the engine cannot produce a record
const (
	ReasonAuthFailed           = "auth_failed"
	ReasonProviderUnavailable  = "provider_unavailable"
	ReasonMultiMatchUnresolved = "multi_match_unresolved"
	ReasonTimedOut             = "timed_out"
	ReasonNotFound             = "not_found"
	ReasonParseFailed          = "parse_failed"
)

// ManualEntry is the degraded outcome: the calling workflow should prompt
// the user for property details instead of blocking.
type ManualEntry struct {
	Reason string `json:"reason"`
	// Candidates carries the unresolved matches when the reason is
	// multi_match_unresolved, so the UI can offer them for selection.
	Candidates []MatchCandidate `json:"candidates,omitempty"`
}

// AsyncState is the state of a legacy-provider request handle
type AsyncState string

const (
	AsyncCreated  AsyncState = "created"
	AsyncPolling  AsyncState = "polling"
	AsyncComplete AsyncState = "complete"
	AsyncFailed   AsyncState = "failed"
	AsyncTimedOut AsyncState = "timed_out"
)

// Terminal reports whether no further polls may occur from this state
func (s AsyncState) Terminal() bool {
	switch s {
	case AsyncComplete, AsyncFailed, AsyncTimedOut:
		return true
	default:
		return false
	}
}

// AsyncRequestHandle tracks one legacy-provider request through the
// create/poll/fetch protocol. Mutated only by its owning orchestrator.
type AsyncRequestHandle struct {
	RequestID    string     `json:"request_id"`
	State        AsyncState `json:"state"`
	CreatedAt    time.Time  `json:"created_at"`
	LastPolledAt time.Time  `json:"last_polled_at,omitempty"`
	PollCount    int        `json:"poll_count"`
	// ErrorText carries the provider's failure message when State is failed
	ErrorText string `json:"error_text,omitempty"`
}
