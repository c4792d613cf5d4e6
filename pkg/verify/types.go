package verify

import (
	"github.com/veritylabs/research-client/pkg/extract"
)

// MaxSources is the upper bound on sources requested per query.
const MaxSources = 10

// Fact is an extracted fact tagged with its provenance.
type Fact struct {
	Fact       string             `json:"fact"`
	Type       extract.FactType   `json:"type"`
	Confidence float64            `json:"confidence"`
	Sentiment  *extract.Sentiment `json:"sentiment,omitempty"`

	// Source is the normalized origin (domain, or title when no URL).
	Source string `json:"source"`

	// SourceURL is the originating document, when known.
	SourceURL string `json:"source_url,omitempty"`
}

// ConflictingClaim is a pair of facts from different sources that
// contradict each other on the same subject.
type ConflictingClaim struct {
	Subject string `json:"subject"`
	ClaimA  Fact   `json:"claim_a"`
	ClaimB  Fact   `json:"claim_b"`
}

// ConfidenceDetails explains how the score was reached.
type ConfidenceDetails struct {
	// SourceCount is the number of documents returned by queries that
	// completed successfully.
	SourceCount int `json:"source_count"`

	// UniqueSources lists the distinct normalized origins seen.
	UniqueSources []string `json:"unique_sources"`

	// Corroborations counts cross-source fact pairs that agree.
	Corroborations int `json:"corroborations"`

	// FailedQueries counts verification queries that failed terminally
	// and were degraded rather than propagated.
	FailedQueries int `json:"failed_queries,omitempty"`

	ConflictingClaims []ConflictingClaim `json:"conflicting_claims"`
}

// Confidence is the aggregate cross-source confidence block.
type Confidence struct {
	Score   float64           `json:"score"`
	Details ConfidenceDetails `json:"details"`
}

// VerificationResult is the outcome of one verification run.
type VerificationResult struct {
	RunID           string     `json:"run_id"`
	Query           string     `json:"query"`
	VerifiedResults []Fact     `json:"verified_results"`
	Confidence      Confidence `json:"confidence"`
}

// Request is the inbound shape of a verification call.
type Request struct {
	Query               string   `json:"query"`
	VerificationQueries []string `json:"verificationQueries,omitempty"`

	// Sources bounds results per query. Omitted selects the configured
	// default; an explicit value outside [1, MaxSources] is rejected,
	// zero included.
	Sources *int `json:"sources,omitempty"`

	// MinConfidence filters verified facts below the threshold.
	MinConfidence float64 `json:"minConfidence,omitempty"`
}

// queryStatus tracks a query through its lifecycle, for logs and metrics.
type queryStatus string

const (
	statusPending   queryStatus = "pending"
	statusInFlight  queryStatus = "in_flight"
	statusSucceeded queryStatus = "succeeded"
	statusFailed    queryStatus = "failed"
)
