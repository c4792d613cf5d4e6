// Package extract turns raw source text into typed, confidence-scored
// facts. The verification engine consumes it through the Extractor
// interface, so the heuristic implementation here can be swapped for a
// smarter one without touching the engine.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// FactType categorizes an extracted fact.
type FactType string

const (
	FactNamedEntity  FactType = "named_entity"
	FactRelationship FactType = "relationship"
	FactStatement    FactType = "statement"
	FactSentiment    FactType = "sentiment"
)

// Sentiment carries a polarity score in [-1, 1].
type Sentiment struct {
	Score float64 `json:"score"`
}

// Fact is a single extracted claim with its heuristic confidence.
type Fact struct {
	Fact       string     `json:"fact"`
	Type       FactType   `json:"type"`
	Confidence float64    `json:"confidence"`
	Sentiment  *Sentiment `json:"sentiment,omitempty"`
}

// Options selects which heuristics run.
type Options struct {
	Entities      bool
	Relationships bool
	Statements    bool
	Sentiment     bool

	// MaxFacts caps the output; zero means no cap.
	MaxFacts int
}

// DefaultOptions enables every heuristic with a sane cap.
func DefaultOptions() Options {
	return Options{
		Entities:      true,
		Relationships: true,
		Statements:    true,
		Sentiment:     true,
		MaxFacts:      25,
	}
}

// Extraction is the result of one extractor run. Confidence is the
// extractor's overall trust in its own output, not a per-fact value.
type Extraction struct {
	Facts      []Fact  `json:"facts"`
	Confidence float64 `json:"confidence"`
}

// Extractor is the collaborator contract the verification engine depends on.
type Extractor interface {
	ExtractFacts(text string, opts Options) (Extraction, error)
}

var (
	// Two or more capitalized words in a row, e.g. "European Space Agency".
	entityPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)+\b`)

	// Subject VERB Object where the verb signals a concrete relation.
	relationPattern = regexp.MustCompile(`\b([A-Z][A-Za-z]*(?: [A-Z][A-Za-z]*)*) (acquired|founded|owns|launched|announced|merged with|partnered with|invested in) ([A-Z][A-Za-z]*(?: [A-Z][A-Za-z]*)*)`)

	sentenceSplit = regexp.MustCompile(`[.!?]+\s+`)

	statementVerbs = map[string]bool{
		"is": true, "are": true, "was": true, "were": true,
		"has": true, "have": true, "had": true,
		"will": true, "can": true, "does": true,
	}

	positiveWords = map[string]bool{
		"good": true, "great": true, "excellent": true, "positive": true,
		"success": true, "successful": true, "growth": true, "improved": true,
		"strong": true, "breakthrough": true, "effective": true, "safe": true,
	}

	negativeWords = map[string]bool{
		"bad": true, "poor": true, "negative": true, "failure": true,
		"failed": true, "decline": true, "weak": true, "harmful": true,
		"risk": true, "dangerous": true, "ineffective": true, "unsafe": true,
	}
)

// HeuristicExtractor is the default pattern-based implementation.
type HeuristicExtractor struct{}

// NewHeuristic creates the default extractor.
func NewHeuristic() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

// ExtractFacts implements Extractor.
func (x *HeuristicExtractor) ExtractFacts(text string, opts Options) (Extraction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Extraction{Confidence: 0}, nil
	}

	var facts []Fact

	if opts.Relationships {
		for _, m := range relationPattern.FindAllStringSubmatch(text, -1) {
			facts = append(facts, Fact{
				Fact:       fmt.Sprintf("%s %s %s", m[1], m[2], m[3]),
				Type:       FactRelationship,
				Confidence: 0.75,
			})
		}
	}

	if opts.Entities {
		seen := make(map[string]bool)
		for _, entity := range entityPattern.FindAllString(text, -1) {
			if seen[entity] {
				continue
			}
			seen[entity] = true
			facts = append(facts, Fact{
				Fact:       entity,
				Type:       FactNamedEntity,
				Confidence: entityConfidence(entity),
			})
		}
	}

	if opts.Statements {
		for _, sentence := range sentenceSplit.Split(text, -1) {
			sentence = strings.TrimSpace(sentence)
			if !isStatement(sentence) {
				continue
			}
			facts = append(facts, Fact{
				Fact:       strings.TrimRight(sentence, ".!?"),
				Type:       FactStatement,
				Confidence: 0.55,
			})
		}
	}

	if opts.Sentiment {
		if fact, ok := sentimentFact(text); ok {
			facts = append(facts, fact)
		}
	}

	if opts.MaxFacts > 0 && len(facts) > opts.MaxFacts {
		facts = facts[:opts.MaxFacts]
	}

	return Extraction{
		Facts:      facts,
		Confidence: overallConfidence(facts),
	}, nil
}

func entityConfidence(entity string) float64 {
	// Longer multi-word names are less likely to be sentence-initial noise.
	words := strings.Count(entity, " ") + 1
	c := 0.55 + 0.05*float64(words)
	if c > 0.8 {
		c = 0.8
	}
	return c
}

func isStatement(sentence string) bool {
	words := strings.Fields(sentence)
	if len(words) < 4 || len(words) > 40 {
		return false
	}
	for _, w := range words[1:] {
		if statementVerbs[strings.ToLower(w)] {
			return true
		}
	}
	return false
}

func sentimentFact(text string) (Fact, bool) {
	var pos, neg int
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	if pos+neg == 0 {
		return Fact{}, false
	}

	score := float64(pos-neg) / float64(pos+neg)
	label := "neutral"
	switch {
	case score > 0.2:
		label = "positive"
	case score < -0.2:
		label = "negative"
	}

	return Fact{
		Fact:       fmt.Sprintf("overall sentiment: %s", label),
		Type:       FactSentiment,
		Confidence: 0.5 + 0.3*abs(score),
		Sentiment:  &Sentiment{Score: score},
	}, true
}

func overallConfidence(facts []Fact) float64 {
	if len(facts) == 0 {
		return 0
	}
	var sum float64
	for _, f := range facts {
		sum += f.Confidence
	}
	return sum / float64(len(facts))
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
