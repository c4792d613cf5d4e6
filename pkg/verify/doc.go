// Package verify implements cross-source research verification.
//
// A verification run issues a primary research query plus optional
// verification queries through a provider, extracts typed facts from every
// returned source, and scores agreement across sources. The primary query
// is load-bearing: its failure fails the run. Verification queries degrade
// gracefully and are reported in the confidence details instead.
//
// # Usage
//
//	engine, err := verify.New(verify.Deps{
//		Provider:  searchProvider,
//		Extractor: extract.NewHeuristic(),
//	}, verify.DefaultConfig())
//	if err != nil {
//		log.Fatal().Err(err).Msg("Failed to create engine")
//	}
//
//	result, err := engine.VerifyResearch(ctx, verify.Request{
//		Query:               "quantum error correction milestones",
//		VerificationQueries: []string{"quantum computing error rates 2026"},
//	})
//
// # Scoring
//
// The confidence score starts from a configured base, rises with each
// corroborating cross-source fact pair and each additional unique source,
// and falls with each conflicting pair. It is clamped to [0, 1]. Two facts
// are compared only when their content-word overlap passes the similarity
// threshold; agreement is judged by claim polarity.
//
// # Metrics
//
// The package exposes Prometheus metrics under the rv_verification prefix:
// run counts by outcome, score and duration distributions, per-query
// status counts, and detected conflicts.
package verify
