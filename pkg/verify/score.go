package verify

import (
	"net/url"
	"sort"
	"strings"

	"github.com/veritylabs/research-client/pkg/extract"
	"github.com/veritylabs/research-client/pkg/provider"
)

// Cross-source comparison is inherently heuristic. The similarity threshold
// below which two facts are considered unrelated is a tunable (Config), not
// a constant; everything else here is plain set arithmetic.

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "in": true, "is": true, "it": true,
	"its": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "this": true, "to": true, "was": true, "were": true,
	"will": true, "with": true,
}

// negationMarkers flag a claim as negated for polarity comparison.
var negationMarkers = map[string]bool{
	"not": true, "no": true, "never": true, "none": true,
	"denies": true, "denied": true, "disputes": true, "disputed": true,
	"false": true, "isn't": true, "wasn't": true, "aren't": true,
	"doesn't": true, "didn't": true, "won't": true, "cannot": true,
}

// normalizeOrigin reduces a source to its identity for uniqueness counting:
// the registrable host for URLs, the lowercased title otherwise.
func normalizeOrigin(src provider.SourceResult) string {
	if src.URL != "" {
		if u, err := url.Parse(src.URL); err == nil && u.Host != "" {
			return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		}
	}
	return strings.ToLower(strings.TrimSpace(src.Title))
}

// subjectTokens extracts the comparable content words of a fact, with
// negation markers stripped so "X is safe" and "X is not safe" share a
// subject.
func subjectTokens(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) < 3 || stopwords[w] || negationMarkers[w] {
			continue
		}
		tokens[w] = true
	}
	return tokens
}

func isNegated(text string) bool {
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if negationMarkers[strings.Trim(w, ".,;:!?\"'()")] {
			return true
		}
	}
	return false
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func sharedTokens(a, b map[string]bool) []string {
	var shared []string
	for t := range a {
		if b[t] {
			shared = append(shared, t)
		}
	}
	sort.Strings(shared)
	return shared
}

// polarity returns the direction of a fact's claim: sentiment facts use
// their score sign, everything else uses negation markers.
func polarity(f Fact) int {
	if f.Type == extract.FactSentiment && f.Sentiment != nil {
		if f.Sentiment.Score < 0 {
			return -1
		}
		return 1
	}
	if isNegated(f.Fact) {
		return -1
	}
	return 1
}

// compareFacts pairs facts from different sources on overlapping subject
// matter and classifies each pair as corroborating or conflicting.
func compareFacts(facts []Fact, similarityThreshold float64) (int, []ConflictingClaim) {
	tokenSets := make([]map[string]bool, len(facts))
	for i, f := range facts {
		tokenSets[i] = subjectTokens(f.Fact)
	}

	corroborations := 0
	var conflicts []ConflictingClaim

	for i := 0; i < len(facts); i++ {
		for j := i + 1; j < len(facts); j++ {
			if facts[i].Source == facts[j].Source {
				continue
			}
			if jaccard(tokenSets[i], tokenSets[j]) < similarityThreshold {
				continue
			}

			if polarity(facts[i]) == polarity(facts[j]) {
				corroborations++
				continue
			}
			conflicts = append(conflicts, ConflictingClaim{
				Subject: strings.Join(sharedTokens(tokenSets[i], tokenSets[j]), " "),
				ClaimA:  facts[i],
				ClaimB:  facts[j],
			})
		}
	}

	return corroborations, conflicts
}

// computeScore maps corroboration, source diversity, and conflicts to a
// confidence in [0, 1]. The weights are configuration; the monotonicity
// directions (more corroboration or sources up, more conflicts down) are
// the contract.
func computeScore(cfg Config, corroborations, uniqueSources, conflicts int) float64 {
	score := cfg.ScoreBase +
		cfg.CorroborationWeight*float64(corroborations) +
		cfg.SourceWeight*float64(uniqueSources-1) -
		cfg.ConflictWeight*float64(conflicts)

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// dedupeFacts keeps the highest-confidence instance of each normalized fact
// text, drops facts below minConfidence, and orders the remainder by
// confidence descending (stable on first appearance).
func dedupeFacts(facts []Fact, minConfidence float64) []Fact {
	best := make(map[string]int)
	var out []Fact

	for _, f := range facts {
		if f.Confidence < minConfidence {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(f.Fact))
		if idx, ok := best[key]; ok {
			if f.Confidence > out[idx].Confidence {
				out[idx] = f
			}
			continue
		}
		best[key] = len(out)
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}
