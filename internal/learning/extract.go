package learning

import "strings"

// ExtractPatterns pulls significant keywords out of consultation text.
// It drops short words, stop words, and duplicates, and lowercases
// everything so patterns match across callers.
func ExtractPatterns(text string) []string {
	// Common stop words plus prompt scaffolding
	stopWords := map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true,
		"but": true, "is": true, "are": true, "was": true, "were": true,
		"be": true, "been": true, "being": true, "have": true, "has": true,
		"had": true, "do": true, "does": true, "did": true, "will": true,
		"would": true, "could": true, "should": true, "may": true, "might": true,
		"must": true, "shall": true, "can": true, "this": true, "that": true,
		"these": true, "those": true, "it": true, "its": true, "of": true,
		"in": true, "on": true, "at": true, "to": true, "for": true,
		"with": true, "by": true, "from": true, "as": true, "into": true,
		"through": true, "during": true, "before": true, "after": true,
		"above": true, "below": true, "between": true, "under": true,
		"what": true, "how": true, "why": true, "please": true,
	}

	// Split on non-alphanumeric characters
	words := strings.FieldsFunc(text, func(c rune) bool {
		return !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'))
	})

	var patterns []string
	seen := make(map[string]bool)

	for _, word := range words {
		lower := strings.ToLower(word)
		// Skip short words, stop words, and duplicates
		if len(lower) < 3 || stopWords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		patterns = append(patterns, lower)
	}

	return patterns
}
