package router

import "strings"

// heavyThreshold is the complexity score at or above which the hybrid
// policy routes to the remote backend.
const heavyThreshold = 7.0

// Scorer estimates how much reasoning capability a prompt needs, on a
// 0 to 10 scale.
type Scorer interface {
	Score(prompt string) float64
}

// complexKeywords mark prompts that need multi-step or architectural
// reasoning. Partial words match their inflections (concurren covers
// concurrent and concurrency).
var complexKeywords = []string{
	"architect",
	"design",
	"refactor",
	"optimize",
	"debug",
	"implement",
	"algorithm",
	"concurren",
	"security",
	"migrate",
}

// simpleMarkers mark lookup-style prompts that a small model answers fine.
var simpleMarkers = []string{
	"what is",
	"list",
	"show",
	"read",
	"status",
	"explain briefly",
}

const maxKeywordBonus = 3

// KeywordScorer is the default Scorer. It is deterministic: the same
// prompt always produces the same score.
type KeywordScorer struct{}

// NewKeywordScorer returns the default scorer.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

// Score computes the complexity of a prompt from its length and
// keyword markers.
func (ks *KeywordScorer) Score(prompt string) float64 {
	score := 5.0

	if len(prompt) > 200 {
		score++
	}
	if len(prompt) > 500 {
		score++
	}

	lower := strings.ToLower(prompt)

	matched := 0
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			matched++
			if matched == maxKeywordBonus {
				break
			}
		}
	}
	score += float64(matched)

	for _, marker := range simpleMarkers {
		if strings.Contains(lower, marker) {
			score -= 2
			break
		}
	}

	return clampScore(score)
}

// clampScore bounds a score to the [0, 10] scale.
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
